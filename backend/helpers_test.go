// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/ttbt-io/scorecard/backend/scorecard"
	"github.com/ttbt-io/scorecard/backend/syncqueue"
)

const (
	testAccount = "acct-1"
	testGame    = "g1"
	testScorer  = "scorer@example.com"
)

var (
	alex  = scorecard.RunnerState{ID: "p-alex", Name: "Alex"}
	river = scorecard.RunnerState{ID: "p-river", Name: "River"}
)

func single(batter scorecard.RunnerState) *scorecard.AtBatInput {
	return &scorecard.AtBatInput{
		Batter:   batter,
		Result:   scorecard.OutcomeSingle,
		Advances: []scorecard.RunnerAdvance{{Runner: batter, Start: scorecard.BaseBatter, End: scorecard.BaseFirst}},
	}
}

func strikeout(batter scorecard.RunnerState) *scorecard.AtBatInput {
	return &scorecard.AtBatInput{Batter: batter, Result: scorecard.OutcomeStrikeoutSwinging}
}

type transportFunc func(ctx context.Context, token string, m syncqueue.Mutation) (syncqueue.SubmitResult, error)

func (f transportFunc) Submit(ctx context.Context, token string, m syncqueue.Mutation) (syncqueue.SubmitResult, error) {
	return f(ctx, token, m)
}

// ackAll acknowledges every mutation with a server id derived from the
// event id.
var ackAll = transportFunc(func(_ context.Context, _ string, m syncqueue.Mutation) (syncqueue.SubmitResult, error) {
	return syncqueue.SubmitResult{ServerEventID: "srv-" + m.EventID, Sequence: m.Sequence}, nil
})

func testClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC) }
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// newTestSession returns an opened session for testScorer with game g1
// active. The aggregate and the queue live in dir.
func newTestSession(t *testing.T, dir, deviceID string, tr syncqueue.Transport) *Session {
	t.Helper()
	s := storage.New(dir, nil)
	sc := scorecard.New(scorecard.Options{
		Store: NewGameStore(dir, s),
		Now:   testClock(),
		NewID: sequentialIDs(deviceID),
	})
	sess, err := NewSession(SessionOptions{
		AccountID:  testAccount,
		UserID:     testScorer,
		DeviceID:   deviceID,
		Scorecard:  sc,
		Transport:  tr,
		QueueStore: NewQueueStore(s),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ctx := context.Background()
	if err := sess.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := sess.SetActiveGame(ctx, scorecard.GameMetadata{ID: testGame, Home: "Hawks", Away: "Owls"}); err != nil {
		t.Fatalf("SetActiveGame: %v", err)
	}
	return sess
}

// newTestServer starts a mock-auth server on a fresh data dir.
func newTestServer(t *testing.T) (*httptest.Server, *HubManager) {
	t.Helper()
	return newTestServerWith(t, Options{})
}

func newTestServerWith(t *testing.T, opts Options) (*httptest.Server, *HubManager) {
	t.Helper()
	dir := t.TempDir()
	opts.DataDir = dir
	opts.Storage = storage.New(dir, nil)
	opts.UseMockAuth = true
	if opts.Hubs == nil {
		opts.Hubs = NewHubManager()
	}
	h, err := NewServerHandler(opts)
	if err != nil {
		t.Fatalf("NewServerHandler: %v", err)
	}
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, opts.Hubs
}

func mustGame(t *testing.T, sess *Session) scorecard.Game {
	t.Helper()
	g, ok := sess.Scorecard().Game(testGame)
	if !ok {
		t.Fatalf("game %s not found", testGame)
	}
	return g
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
