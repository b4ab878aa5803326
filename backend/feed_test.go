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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ttbt-io/scorecard/backend/scorecard"
)

type applyCall struct {
	kind     string
	gameID   string
	serverID string
}

type recordingApplier struct {
	mu    sync.Mutex
	calls []applyCall
}

func (r *recordingApplier) IngestRemote(_ context.Context, gameID string, e scorecard.ScoreEvent) (scorecard.ScoreEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, applyCall{"ingest", gameID, e.ServerID})
	return e, nil
}

func (r *recordingApplier) RemoveRemote(_ context.Context, gameID, serverID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, applyCall{"remove", gameID, serverID})
	return true, nil
}

func TestFeedHandle(t *testing.T) {
	fromA := &scorecard.ScoreEvent{ServerID: "srv-a", Audit: scorecard.Audit{DeviceID: "dev-a"}, Input: single(alex)}
	fromB := &scorecard.ScoreEvent{ServerID: "srv-b", Audit: scorecard.Audit{DeviceID: "dev-b"}, Input: single(alex)}

	for _, tc := range []struct {
		name    string
		msg     FeedMessage
		want    []applyCall
		wantErr bool
	}{
		{"Create", FeedMessage{Type: MsgTypeScoreEvent, GameID: testGame, Event: fromA}, []applyCall{{"ingest", testGame, "srv-a"}}, false},
		{"Delete", FeedMessage{Type: MsgTypeScoreEventDeleted, GameID: testGame, Event: fromA}, []applyCall{{"remove", testGame, "srv-a"}}, false},
		{"OwnDevice", FeedMessage{Type: MsgTypeScoreEvent, GameID: testGame, Event: fromB}, nil, false},
		{"OtherGame", FeedMessage{Type: MsgTypeScoreEvent, GameID: "g2", Event: fromA}, nil, false},
		{"NoEvent", FeedMessage{Type: MsgTypeScoreEvent, GameID: testGame}, nil, false},
		{"Pong", FeedMessage{Type: MsgTypePong}, nil, false},
		{"Error", FeedMessage{Type: MsgTypeError, Error: "Unknown message type"}, nil, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			target := &recordingApplier{}
			f := NewFeed(FeedOptions{AccountID: testAccount, GameID: testGame, DeviceID: "dev-b", Target: target})
			err := f.handle(context.Background(), tc.msg)
			if (err != nil) != tc.wantErr {
				t.Errorf("handle = %v, wantErr %v", err, tc.wantErr)
			}
			if len(target.calls) != len(tc.want) {
				t.Fatalf("calls = %+v, want %+v", target.calls, tc.want)
			}
			for i := range tc.want {
				if target.calls[i] != tc.want[i] {
					t.Errorf("call %d = %+v, want %+v", i, target.calls[i], tc.want[i])
				}
			}
		})
	}
}

func TestFeedSyncsTwoDevices(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts, hm := newTestServer(t)
	tr := NewHTTPTransport(ts.URL + "/api")
	a := newTestSession(t, t.TempDir(), "dev-a", tr)
	b := newTestSession(t, t.TempDir(), "dev-b", tr)

	feed := NewFeed(FeedOptions{
		URL:        wsURL(ts),
		AccountID:  testAccount,
		GameID:     testGame,
		DeviceID:   "dev-b",
		Header:     authHeader(testScorer),
		Target:     b,
		MinBackoff: 10 * time.Millisecond,
	})
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()
	waitFor(t, "device b to subscribe", func() bool { return hm.ClientCount(testAccount, testGame) == 1 })

	e, err := a.Record(ctx, testGame, single(alex))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if res := a.Flush(ctx, testScorer); res.Succeeded != 1 {
		t.Fatalf("flush = %+v", res)
	}
	ga := mustGame(t, a)
	stamped, _ := ga.Event(e.ID)

	waitFor(t, "device b to receive the play", func() bool {
		g, _ := b.Scorecard().Game(testGame)
		return len(g.Events) == 1
	})
	got := mustGame(t, b).Events[0]
	if got.ServerID != stamped.ServerID || got.SyncStatus != scorecard.SyncSynced {
		t.Errorf("device b event = %s %s, want %s synced", got.ServerID, got.SyncStatus, stamped.ServerID)
	}
	if mustGame(t, b).State.Bases.First == nil {
		t.Error("device b has nobody on first")
	}
	if n := len(b.Queue().Mutations()); n != 0 {
		t.Errorf("device b queued %d mutations for a remote play", n)
	}

	if _, err := a.Delete(ctx, testGame, e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if res := a.Flush(ctx, testScorer); res.Succeeded != 1 {
		t.Fatalf("flush delete = %+v", res)
	}
	waitFor(t, "device b to drop the play", func() bool {
		g, _ := b.Scorecard().Game(testGame)
		return len(g.Events) == 0
	})

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop")
	}
}
