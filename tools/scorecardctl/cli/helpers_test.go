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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/c2FmZQ/storage"
	"github.com/stretchr/testify/require"

	"github.com/ttbt-io/scorecard/backend"
	"github.com/ttbt-io/scorecard/backend/scorecard"
	"github.com/ttbt-io/scorecard/backend/sqlitestore"
	"github.com/ttbt-io/scorecard/backend/syncqueue"
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

type offline struct{ t *testing.T }

func (o offline) Submit(context.Context, string, syncqueue.Mutation) (syncqueue.SubmitResult, error) {
	o.t.Error("seeding session must not submit")
	return syncqueue.SubmitResult{}, context.Canceled
}

// recordPlays stores game g1 with a single by Alex and a strikeout of River,
// both still queued for the server.
func recordPlays(t *testing.T, games scorecard.SnapshotStore, queue syncqueue.Store) {
	t.Helper()
	ctx := context.Background()
	sess, err := backend.NewSession(backend.SessionOptions{
		AccountID:  "acct-1",
		UserID:     "scorer@example.com",
		DeviceID:   "dev-a",
		Scorecard:  scorecard.New(scorecard.Options{Store: games}),
		Transport:  offline{t},
		QueueStore: queue,
	})
	require.NoError(t, err)
	require.NoError(t, sess.Open(ctx))
	_, err = sess.SetActiveGame(ctx, scorecard.GameMetadata{ID: "g1", Home: "Hawks", Away: "Owls"})
	require.NoError(t, err)
	_, err = sess.Record(ctx, "g1", single(alex))
	require.NoError(t, err)
	_, err = sess.Record(ctx, "g1", strikeout(river))
	require.NoError(t, err)
}

// seedDataDir creates a device data dir holding recordPlays' game.
func seedDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	s, err := backend.OpenStorage(dir, "")
	require.NoError(t, err)
	recordPlays(t, backend.NewGameStore(dir, s), backend.NewQueueStore(s))
	return dir
}

// run executes scorecardctl with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decode unwraps a JSON response envelope into data.
func decode(t *testing.T, out string, data any) {
	t.Helper()
	resp := struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, data))
}

// newSyncServer starts a mock-auth sync server and returns its API root.
func newSyncServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	h, err := backend.NewServerHandler(backend.Options{
		DataDir:     dir,
		Storage:     storage.New(dir, nil),
		UseMockAuth: true,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}

func sqlitePath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scorecard.db")
	db, err := sqlitestore.Open(path)
	require.NoError(t, err)
	recordPlays(t, db, db)
	require.NoError(t, db.Close())
	return path
}
