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

package scorecard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var (
	alex  = RunnerState{ID: "p-alex", Name: "Alex"}
	river = RunnerState{ID: "p-river", Name: "River"}
	sam   = RunnerState{ID: "p-sam", Name: "Sam"}
	jo    = RunnerState{ID: "p-jo", Name: "Jo"}
)

func atBat(batter RunnerState, result Outcome, advances ...RunnerAdvance) *AtBatInput {
	return &AtBatInput{Batter: batter, Result: result, Advances: advances}
}

func adv(r RunnerState, start, end Base) RunnerAdvance {
	return RunnerAdvance{Runner: r, Start: start, End: end}
}

func intPtr(v int) *int { return &v }

// memStore is an in-memory SnapshotStore. It round-trips snapshots through
// JSON so tests exercise the persisted encoding.
type memStore struct {
	mu      sync.Mutex
	games   map[string][]byte
	saves   int
	failErr error
}

func newMemStore() *memStore {
	return &memStore{games: make(map[string][]byte)}
}

func (m *memStore) SaveGame(_ context.Context, g PersistedGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	b, err := json.Marshal(g)
	if err != nil {
		return err
	}
	m.games[g.Metadata.ID] = b
	m.saves++
	return nil
}

func (m *memStore) DeleteGame(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	delete(m.games, gameID)
	return nil
}

func (m *memStore) LoadGames(_ context.Context) ([]PersistedGame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PersistedGame
	for id, b := range m.games {
		var g PersistedGame
		if err := json.Unmarshal(b, &g); err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		out = append(out, g)
	}
	return out, nil
}

var errDiskFull = errors.New("disk full")

// newTestScorecard returns a Scorecard with a fixed clock, sequential ids
// and one active game "g1".
func newTestScorecard(t *testing.T, store SnapshotStore) *Scorecard {
	t.Helper()
	n := 0
	var mu sync.Mutex
	s := New(Options{
		Store: store,
		Now:   func() time.Time { return time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC) },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("ev-%d", n)
		},
	})
	if _, err := s.SetActiveGame(context.Background(), GameInit{Metadata: GameMetadata{ID: "g1", Home: "Hawks", Away: "Owls"}}); err != nil {
		t.Fatalf("SetActiveGame: %v", err)
	}
	return s
}

func record(t *testing.T, s *Scorecard, in Input) ScoreEvent {
	t.Helper()
	e, err := s.RecordEvent(context.Background(), "g1", in, Audit{CreatedBy: "scorer@example.com", DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("RecordEvent(%s): %v", Notation(in), err)
	}
	return e
}

func mustGame(t *testing.T, s *Scorecard) Game {
	t.Helper()
	g, ok := s.Game("g1")
	if !ok {
		t.Fatal("game g1 not found")
	}
	return g
}
