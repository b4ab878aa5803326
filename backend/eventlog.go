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
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/google/uuid"
	"github.com/ttbt-io/scorecard/backend/scorecard"
	"github.com/ttbt-io/scorecard/backend/syncqueue"
)

// ErrSubmissionConflict is returned when a submission names a server event
// that belongs to a different client event.
var ErrSubmissionConflict = errors.New("submission conflicts with canonical log")

// gameLog is the stored canonical log of one game.
type gameLog struct {
	AccountID string                 `json:"accountId"`
	GameID    string                 `json:"gameId"`
	Events    []scorecard.ScoreEvent `json:"events"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

func (l *gameLog) indexOf(serverID, clientID string) int {
	if serverID != "" {
		if i := slices.IndexFunc(l.Events, func(e scorecard.ScoreEvent) bool { return e.ServerID == serverID }); i >= 0 {
			return i
		}
	}
	return slices.IndexFunc(l.Events, func(e scorecard.ScoreEvent) bool { return e.ClientEventID == clientID })
}

func (l *gameLog) sequenceTaken(seq int64, except int) bool {
	for i, e := range l.Events {
		if i != except && e.Sequence == seq {
			return true
		}
	}
	return false
}

func (l *gameLog) maxSequence() int64 {
	var hi int64
	for _, e := range l.Events {
		hi = max(hi, e.Sequence)
	}
	return hi
}

// SubmitOutcome is the result of applying one submission to the log.
type SubmitOutcome struct {
	Result syncqueue.SubmitResult
	// Broadcast is the feed message for other devices, nil when the log
	// did not change.
	Broadcast *FeedMessage
}

// EventLog is the server's canonical store of score events, one file per
// account and game.
type EventLog struct {
	storage *storage.Storage
	locks   sync.Map // account/game -> *sync.Mutex
	now     func() time.Time
	newID   func() string
	debug   bool
}

// NewEventLog creates an EventLog backed by s.
func NewEventLog(s *storage.Storage, debug bool) *EventLog {
	return &EventLog{
		storage: s,
		now:     time.Now,
		newID:   uuid.NewString,
		debug:   debug,
	}
}

func (el *EventLog) lock(key string) func() {
	m, _ := el.locks.LoadOrStore(key, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func eventLogFilename(accountID, gameID string) string {
	return filepath.Join(eventLogsDir, url.PathEscape(accountID), url.PathEscape(gameID)+".json")
}

func (el *EventLog) load(accountID, gameID string) (gameLog, error) {
	l := gameLog{AccountID: accountID, GameID: gameID}
	if err := el.storage.ReadDataFile(eventLogFilename(accountID, gameID), &l); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return gameLog{AccountID: accountID, GameID: gameID}, nil
		}
		return gameLog{}, fmt.Errorf("ReadDataFile: %w", err)
	}
	return l, nil
}

func (el *EventLog) save(l gameLog) error {
	l.UpdatedAt = el.now()
	slices.SortStableFunc(l.Events, func(a, b scorecard.ScoreEvent) int {
		switch {
		case a.Sequence < b.Sequence:
			return -1
		case a.Sequence > b.Sequence:
			return 1
		}
		return 0
	})
	if err := el.storage.SaveDataFile(eventLogFilename(l.AccountID, l.GameID), &l); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// Events returns the canonical log of a game in sequence order.
func (el *EventLog) Events(_ context.Context, accountID, gameID string) ([]scorecard.ScoreEvent, error) {
	defer el.lock(hubKey(accountID, gameID))()
	l, err := el.load(accountID, gameID)
	if err != nil {
		return nil, err
	}
	return l.Events, nil
}

// Submit applies one validated submission. Creates are idempotent on the
// client event id. A create keeps the client's sequence unless another
// event holds it, in which case the event is appended and the rewritten
// event is returned. Updates keep the canonical sequence. Deleting an
// unknown event succeeds without change.
func (el *EventLog) Submit(_ context.Context, accountID, gameID, userID string, req SubmitRequest) (SubmitOutcome, error) {
	defer el.lock(hubKey(accountID, gameID))()

	l, err := el.load(accountID, gameID)
	if err != nil {
		return SubmitOutcome{}, err
	}
	i := l.indexOf(req.ServerEventID, req.ClientEventID)
	if i >= 0 && req.ServerEventID != "" && l.Events[i].ClientEventID != req.ClientEventID {
		return SubmitOutcome{}, fmt.Errorf("%w: server event %s belongs to client event %s", ErrSubmissionConflict, req.ServerEventID, l.Events[i].ClientEventID)
	}

	switch req.Type {
	case SubmitDelete:
		if i < 0 {
			return SubmitOutcome{Result: syncqueue.SubmitResult{ServerEventID: req.ServerEventID, Sequence: req.Sequence}}, nil
		}
		removed := l.Events[i]
		l.Events = slices.Delete(l.Events, i, i+1)
		if err := el.save(l); err != nil {
			return SubmitOutcome{}, err
		}
		if el.debug {
			log.Printf("[STORE] Deleted event %s (sequence %d) from %s/%s", removed.ServerID, removed.Sequence, accountID, gameID)
		}
		return SubmitOutcome{
			Result:    syncqueue.SubmitResult{ServerEventID: removed.ServerID, Sequence: removed.Sequence},
			Broadcast: &FeedMessage{Type: MsgTypeScoreEventDeleted, GameID: gameID, Event: &removed},
		}, nil

	case SubmitCreate, SubmitUpdate:
		if i >= 0 && req.Type == SubmitCreate {
			existing := l.Events[i]
			res := syncqueue.SubmitResult{ServerEventID: existing.ServerID, Sequence: existing.Sequence}
			if existing.Sequence != req.Sequence {
				res.Event = &existing
			}
			return SubmitOutcome{Result: res}, nil
		}

		in := req.Event.Input
		if i >= 0 {
			// Update of a known event: replace the input, keep its place.
			e := &l.Events[i]
			e.Input = in
			e.Notation = scorecard.Notation(in)
			e.Summary = scorecard.Summary(in)
			canonical := *e
			if err := el.save(l); err != nil {
				return SubmitOutcome{}, err
			}
			res := syncqueue.SubmitResult{ServerEventID: canonical.ServerID, Sequence: canonical.Sequence}
			if canonical.Sequence != req.Sequence {
				res.Event = &canonical
			}
			return SubmitOutcome{Result: res, Broadcast: &FeedMessage{Type: MsgTypeScoreEvent, GameID: gameID, Event: &canonical}}, nil
		}

		audit := req.Audit
		if audit.CreatedBy == "" {
			audit.CreatedBy = userID
		}
		if audit.CreatedAt.IsZero() {
			audit.CreatedAt = el.now()
		}
		e := scorecard.ScoreEvent{
			ID:            req.ClientEventID,
			ServerID:      el.newID(),
			ClientEventID: req.ClientEventID,
			Sequence:      req.Sequence,
			Input:         in,
			Audit:         audit,
			Notation:      scorecard.Notation(in),
			Summary:       scorecard.Summary(in),
			SyncStatus:    scorecard.SyncSynced,
		}
		rewritten := false
		if l.sequenceTaken(e.Sequence, -1) {
			e.Sequence = l.maxSequence() + 1
			rewritten = true
		}
		l.Events = append(l.Events, e)
		if err := el.save(l); err != nil {
			return SubmitOutcome{}, err
		}
		if el.debug {
			log.Printf("[STORE] Accepted event %s as %s (sequence %d) from %s", req.ClientEventID, e.ServerID, e.Sequence, maskEmail(userID))
		}
		res := syncqueue.SubmitResult{ServerEventID: e.ServerID, Sequence: e.Sequence}
		if rewritten {
			res.Event = &e
		}
		return SubmitOutcome{Result: res, Broadcast: &FeedMessage{Type: MsgTypeScoreEvent, GameID: gameID, Event: &e}}, nil
	}
	return SubmitOutcome{}, fmt.Errorf("%w: unknown type %q", ErrInvalidSubmission, req.Type)
}
