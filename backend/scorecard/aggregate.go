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

// Package scorecard records baseball plays as an event log and derives game
// state and box-score totals by replaying it.
package scorecard

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options configures a Scorecard.
type Options struct {
	// Store receives a snapshot after every change. A nil Store keeps games
	// in memory only.
	Store SnapshotStore
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to uuid.NewString.
	NewID func() string
	Debug bool
}

// GameInit seeds a game from schedule data.
type GameInit struct {
	Metadata GameMetadata
}

// ServerAck is the server's acknowledgment of a submitted event. Event is
// nil when the server accepted the event without rewriting it.
type ServerAck struct {
	ServerID string
	Event    *ScoreEvent
}

// Scorecard is the aggregate root over every game scored on this device.
// Mutating calls on one game are serialized; calls on different games run
// concurrently.
type Scorecard struct {
	store SnapshotStore
	now   func() time.Time
	newID func() string
	debug bool

	locks sync.Map // gameID -> *sync.Mutex

	mu     sync.RWMutex
	games  map[string]Game
	active string
}

// New returns an empty Scorecard. Call Hydrate to load persisted games.
func New(opts Options) *Scorecard {
	s := &Scorecard{
		store: opts.Store,
		now:   opts.Now,
		newID: opts.NewID,
		debug: opts.Debug,
		games: make(map[string]Game),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *Scorecard) lock(gameID string) func() {
	m, _ := s.locks.LoadOrStore(gameID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Scorecard) load(gameID string) (Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[gameID]
	if !ok {
		return Game{}, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return g, nil
}

// commit persists g and then publishes it. Nothing is published when the
// write fails.
func (s *Scorecard) commit(ctx context.Context, g Game) error {
	if s.store != nil {
		if err := s.store.SaveGame(ctx, Snapshot(g, s.now())); err != nil {
			return fmt.Errorf("save game %s: %w", g.Metadata.ID, err)
		}
	}
	s.mu.Lock()
	s.games[g.Metadata.ID] = g
	s.mu.Unlock()
	return nil
}

// SetActiveGame marks the game active, creating and persisting it first if
// it does not exist yet.
func (s *Scorecard) SetActiveGame(ctx context.Context, init GameInit) (Game, error) {
	id := init.Metadata.ID
	if id == "" {
		return Game{}, fmt.Errorf("%w: game id is required", ErrInvalidInput)
	}
	defer s.lock(id)()

	g, err := s.load(id)
	if err != nil {
		g, err = Recompute(Game{Metadata: init.Metadata})
		if err != nil {
			return Game{}, err
		}
		if err := s.commit(ctx, g); err != nil {
			return Game{}, err
		}
		if s.debug {
			log.Printf("[SCORECARD] Created game %s (%s at %s)", id, init.Metadata.Away, init.Metadata.Home)
		}
	}

	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
	return g.clone(), nil
}

// RecordEvent appends a new play and returns it with its replay snapshot.
func (s *Scorecard) RecordEvent(ctx context.Context, gameID string, in Input, audit Audit) (ScoreEvent, error) {
	if err := ValidateInput(in); err != nil {
		return ScoreEvent{}, err
	}
	defer s.lock(gameID)()

	g, err := s.load(gameID)
	if err != nil {
		return ScoreEvent{}, err
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = s.now()
	}
	id := s.newID()
	e := ScoreEvent{
		ID:            id,
		ClientEventID: id,
		Sequence:      g.nextSequence(),
		Input:         in,
		Audit:         audit,
		SyncStatus:    SyncPending,
	}

	next := g.clone()
	next.Events = append(next.Events, e)
	next.RedoStack = nil
	next, err = Recompute(next)
	if err != nil {
		return ScoreEvent{}, err
	}
	if err := s.commit(ctx, next); err != nil {
		return ScoreEvent{}, err
	}
	stored, _ := next.Event(id)
	return stored, nil
}

// Undo moves the last event onto the redo stack. It returns nil when there
// is nothing to undo.
func (s *Scorecard) Undo(ctx context.Context, gameID string) (*ScoreEvent, error) {
	defer s.lock(gameID)()

	g, err := s.load(gameID)
	if err != nil {
		return nil, err
	}
	if len(g.Events) == 0 {
		return nil, nil
	}
	next := g.clone()
	last := next.Events[len(next.Events)-1]
	next.Events = next.Events[:len(next.Events)-1]
	next.RedoStack = append([]ScoreEvent{last}, next.RedoStack...)
	next, err = Recompute(next)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}
	undone := next.RedoStack[0]
	return &undone, nil
}

// Redo moves the most recently undone event back onto the log. It returns
// nil when the redo stack is empty.
func (s *Scorecard) Redo(ctx context.Context, gameID string) (*ScoreEvent, error) {
	defer s.lock(gameID)()

	g, err := s.load(gameID)
	if err != nil {
		return nil, err
	}
	if len(g.RedoStack) == 0 {
		return nil, nil
	}
	next := g.clone()
	e := next.RedoStack[0]
	e.SyncStatus = SyncPending
	e.SyncError = ""
	next.RedoStack = next.RedoStack[1:]
	next.Events = append(next.Events, e)
	next, err = Recompute(next)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}
	redone, _ := next.Event(e.ID)
	return &redone, nil
}

// EditEvent replaces an event's input in place and replays the whole game.
// The sequence is unchanged.
func (s *Scorecard) EditEvent(ctx context.Context, gameID, eventID string, in Input) (ScoreEvent, error) {
	if err := ValidateInput(in); err != nil {
		return ScoreEvent{}, err
	}
	defer s.lock(gameID)()

	g, err := s.load(gameID)
	if err != nil {
		return ScoreEvent{}, err
	}
	i := g.indexOf(eventID)
	if i < 0 {
		return ScoreEvent{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	next := g.clone()
	next.Events[i].Input = in
	next.Events[i].SyncStatus = SyncPending
	next.Events[i].SyncError = ""
	next.RedoStack = nil
	next, err = Recompute(next)
	if err != nil {
		return ScoreEvent{}, err
	}
	if err := s.commit(ctx, next); err != nil {
		return ScoreEvent{}, err
	}
	stored, _ := next.Event(eventID)
	return stored, nil
}

// DeleteEvent removes an event and returns it as it was before removal.
func (s *Scorecard) DeleteEvent(ctx context.Context, gameID, eventID string) (ScoreEvent, error) {
	defer s.lock(gameID)()

	g, err := s.load(gameID)
	if err != nil {
		return ScoreEvent{}, err
	}
	i := g.indexOf(eventID)
	if i < 0 {
		return ScoreEvent{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	removed := g.Events[i]
	next := g.clone()
	next.Events = slices.Delete(next.Events, i, i+1)
	next.RedoStack = nil
	next, err = Recompute(next)
	if err != nil {
		return ScoreEvent{}, err
	}
	if err := s.commit(ctx, next); err != nil {
		return ScoreEvent{}, err
	}
	return removed, nil
}

// ClearGame removes the game and its snapshot.
func (s *Scorecard) ClearGame(ctx context.Context, gameID string) error {
	defer s.lock(gameID)()

	if _, err := s.load(gameID); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.DeleteGame(ctx, gameID); err != nil {
			return fmt.Errorf("delete game %s: %w", gameID, err)
		}
	}
	s.mu.Lock()
	delete(s.games, gameID)
	if s.active == gameID {
		s.active = ""
	}
	s.mu.Unlock()
	return nil
}

// Hydrate loads every persisted game and rebuilds it by replay. Games that
// fail to replay are skipped.
func (s *Scorecard) Hydrate(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snapshots, err := s.store.LoadGames(ctx)
	if err != nil {
		return fmt.Errorf("load games: %w", err)
	}
	loaded := 0
	for _, p := range snapshots {
		g, err := Restore(p)
		if err != nil {
			log.Printf("[SCORECARD] Skipping game %s: %v", p.Metadata.ID, err)
			continue
		}
		unlock := s.lock(g.Metadata.ID)
		s.mu.Lock()
		s.games[g.Metadata.ID] = g
		s.mu.Unlock()
		unlock()
		loaded++
	}
	if s.debug {
		log.Printf("[SCORECARD] Hydrated %d of %d games", loaded, len(snapshots))
	}
	return nil
}

// Game returns a copy of the game.
func (s *Scorecard) Game(gameID string) (Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[gameID]
	if !ok {
		return Game{}, false
	}
	return g.clone(), true
}

// ActiveGame returns a copy of the active game.
func (s *Scorecard) ActiveGame() (Game, bool) {
	s.mu.RLock()
	id := s.active
	s.mu.RUnlock()
	if id == "" {
		return Game{}, false
	}
	return s.Game(id)
}

// GameIDs returns the ids of all loaded games, sorted.
func (s *Scorecard) GameIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ApplyServerAck stamps an event with its server identity and marks it
// synced. When the server returned a canonical event, its input, creation
// time and sequence replace the local ones. A canonical sequence that
// collides with another local event is ignored, as is a canonical input
// that no longer replays.
func (s *Scorecard) ApplyServerAck(ctx context.Context, gameID, eventID string, ack ServerAck) (ScoreEvent, error) {
	defer s.lock(gameID)()

	g, err := s.load(gameID)
	if err != nil {
		return ScoreEvent{}, err
	}
	i := g.indexOf(eventID)
	if i < 0 {
		return ScoreEvent{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}

	stamp := func(g Game) Game {
		next := g.clone()
		e := &next.Events[i]
		if ack.ServerID != "" {
			e.ServerID = ack.ServerID
		}
		e.SyncStatus = SyncSynced
		e.SyncError = ""
		return next
	}

	next := stamp(g)
	if c := ack.Event; c != nil {
		e := &next.Events[i]
		if c.Input != nil {
			e.Input = c.Input
		}
		if !c.CreatedAt.IsZero() {
			e.CreatedAt = c.CreatedAt
		}
		if c.Sequence > 0 && c.Sequence != e.Sequence {
			if other := sequenceOwner(next, c.Sequence); other != "" && other != eventID {
				log.Printf("[SCORECARD] Canonical sequence %d for event %s is held by %s; keeping %d", c.Sequence, eventID, other, e.Sequence)
			} else {
				e.Sequence = c.Sequence
			}
		}
	}

	replayed, err := Recompute(next)
	if err != nil {
		log.Printf("[SCORECARD] Canonical event %s does not replay, keeping local input: %v", eventID, err)
		if replayed, err = Recompute(stamp(g)); err != nil {
			return ScoreEvent{}, err
		}
	}
	if err := s.commit(ctx, replayed); err != nil {
		return ScoreEvent{}, err
	}
	stored, _ := replayed.Event(eventID)
	return stored, nil
}

// MarkSyncStatus records the sync state of one event.
func (s *Scorecard) MarkSyncStatus(ctx context.Context, gameID, eventID string, status SyncStatus, syncErr string) error {
	defer s.lock(gameID)()

	g, err := s.load(gameID)
	if err != nil {
		return err
	}
	i := g.indexOf(eventID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	if g.Events[i].SyncStatus == status && g.Events[i].SyncError == syncErr {
		return nil
	}
	next := g.clone()
	next.Events[i].SyncStatus = status
	next.Events[i].SyncError = syncErr
	return s.commit(ctx, next)
}

// ApplyRemoteEvent merges an event created on another device. An event the
// game already knows, by server id or local id, has its input replaced.
// Otherwise the event is inserted at its canonical sequence, or at the end of
// the log when that sequence is taken locally.
func (s *Scorecard) ApplyRemoteEvent(ctx context.Context, gameID string, remote ScoreEvent) (ScoreEvent, error) {
	if err := ValidateInput(remote.Input); err != nil {
		return ScoreEvent{}, err
	}
	defer s.lock(gameID)()

	g, err := s.load(gameID)
	if err != nil {
		return ScoreEvent{}, err
	}
	next := g.clone()
	next.RedoStack = nil

	id := ""
	if i := indexOfServerID(next, remote.ServerID); i >= 0 {
		id = next.Events[i].ID
		next.Events[i].Input = remote.Input
		next.Events[i].SyncStatus = SyncSynced
		next.Events[i].SyncError = ""
	} else if i := next.indexOf(remote.ID); i >= 0 && remote.ID != "" {
		id = remote.ID
		next.Events[i].Input = remote.Input
		next.Events[i].ServerID = remote.ServerID
		next.Events[i].SyncStatus = SyncSynced
		next.Events[i].SyncError = ""
	} else {
		e := remote
		if e.ID == "" {
			e.ID = s.newID()
		}
		if e.Sequence <= 0 || sequenceOwner(next, e.Sequence) != "" {
			e.Sequence = next.nextSequence()
		}
		e.SyncStatus = SyncSynced
		e.SyncError = ""
		id = e.ID
		next.Events = append(next.Events, e)
	}

	next, err = Recompute(next)
	if err != nil {
		return ScoreEvent{}, err
	}
	if err := s.commit(ctx, next); err != nil {
		return ScoreEvent{}, err
	}
	stored, _ := next.Event(id)
	return stored, nil
}

// RemoveRemoteEvent removes the event with the given server id. It reports
// false when no such event exists.
func (s *Scorecard) RemoveRemoteEvent(ctx context.Context, gameID, serverID string) (bool, error) {
	defer s.lock(gameID)()

	g, err := s.load(gameID)
	if err != nil {
		return false, err
	}
	i := indexOfServerID(g, serverID)
	if i < 0 {
		return false, nil
	}
	next := g.clone()
	next.Events = slices.Delete(next.Events, i, i+1)
	next.RedoStack = nil
	next, err = Recompute(next)
	if err != nil {
		return false, err
	}
	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func indexOfServerID(g Game, serverID string) int {
	if serverID == "" {
		return -1
	}
	for i := range g.Events {
		if g.Events[i].ServerID == serverID {
			return i
		}
	}
	return -1
}

func sequenceOwner(g Game, seq int64) string {
	for _, e := range g.Events {
		if e.Sequence == seq {
			return e.ID
		}
	}
	for _, e := range g.RedoStack {
		if e.Sequence == seq {
			return e.ID
		}
	}
	return ""
}
