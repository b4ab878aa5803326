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
	"log"
	"time"

	"github.com/ttbt-io/scorecard/backend/scorecard"
	"github.com/ttbt-io/scorecard/backend/syncqueue"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	AccountID string
	// UserID is recorded as the creator of every event.
	UserID   string
	DeviceID string

	Scorecard *scorecard.Scorecard
	Transport syncqueue.Transport
	// QueueStore is optional; without it the queue lives in memory only.
	QueueStore syncqueue.Store

	Now            func() time.Time
	QueueRetention time.Duration
	Debug          bool
}

// Session is the scoring surface for one signed-in device. It records plays
// through the aggregate and keeps the sync queue in step with them. Sync
// failures never surface from scoring calls.
type Session struct {
	accountID string
	userID    string
	deviceID  string
	debug     bool

	sc    *scorecard.Scorecard
	queue *syncqueue.Queue
}

// NewSession binds an aggregate to a new sync queue whose outcomes are
// written back to the aggregate.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Scorecard == nil {
		return nil, errors.New("session: scorecard is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("session: transport is required")
	}
	s := &Session{
		accountID: opts.AccountID,
		userID:    normalizeEmail(opts.UserID),
		deviceID:  opts.DeviceID,
		debug:     opts.Debug,
		sc:        opts.Scorecard,
	}
	s.queue = syncqueue.New(syncqueue.Options{
		Transport: opts.Transport,
		Store:     opts.QueueStore,
		Sink:      s,
		Now:       opts.Now,
		Retention: opts.QueueRetention,
		Debug:     opts.Debug,
	})
	return s, nil
}

// Open restores persisted games and the persisted queue.
func (s *Session) Open(ctx context.Context) error {
	if err := s.sc.Hydrate(ctx); err != nil {
		return err
	}
	return s.queue.Load(ctx)
}

func (s *Session) Scorecard() *scorecard.Scorecard { return s.sc }
func (s *Session) Queue() *syncqueue.Queue         { return s.queue }
func (s *Session) DeviceID() string                { return s.deviceID }

// SetActiveGame creates the game if needed and makes it active.
func (s *Session) SetActiveGame(ctx context.Context, meta scorecard.GameMetadata) (scorecard.Game, error) {
	if meta.AccountID == "" {
		meta.AccountID = s.accountID
	}
	return s.sc.SetActiveGame(ctx, scorecard.GameInit{Metadata: meta})
}

// Record adds a play and queues its creation on the server.
func (s *Session) Record(ctx context.Context, gameID string, in scorecard.Input) (scorecard.ScoreEvent, error) {
	e, err := s.sc.RecordEvent(ctx, gameID, in, scorecard.Audit{CreatedBy: s.userID, DeviceID: s.deviceID})
	if err != nil {
		return scorecard.ScoreEvent{}, err
	}
	s.enqueue(ctx, gameID, e, syncqueue.TypeCreate, false)
	return e, nil
}

// Edit replaces a play's input. Any undelivered change for the event is
// superseded by a single update.
func (s *Session) Edit(ctx context.Context, gameID, eventID string, in scorecard.Input) (scorecard.ScoreEvent, error) {
	e, err := s.sc.EditEvent(ctx, gameID, eventID, in)
	if err != nil {
		return scorecard.ScoreEvent{}, err
	}
	sent := s.queue.Withdraw(ctx, eventID)
	s.enqueue(ctx, gameID, e, syncqueue.TypeUpdate, sent)
	return e, nil
}

// Delete removes a play. The server is told unless the play never left the
// device.
func (s *Session) Delete(ctx context.Context, gameID, eventID string) (scorecard.ScoreEvent, error) {
	e, err := s.sc.DeleteEvent(ctx, gameID, eventID)
	if err != nil {
		return scorecard.ScoreEvent{}, err
	}
	s.retract(ctx, gameID, e)
	return e, nil
}

// Undo takes back the last play. It returns nil when there is nothing to
// undo.
func (s *Session) Undo(ctx context.Context, gameID string) (*scorecard.ScoreEvent, error) {
	e, err := s.sc.Undo(ctx, gameID)
	if err != nil || e == nil {
		return e, err
	}
	s.retract(ctx, gameID, *e)
	return e, nil
}

// Redo restores the last undone play. A delete still waiting in the queue
// is cancelled; an event the server has acknowledged is re-sent as an
// update, which the server treats as a create once the event is gone.
func (s *Session) Redo(ctx context.Context, gameID string) (*scorecard.ScoreEvent, error) {
	e, err := s.sc.Redo(ctx, gameID)
	if err != nil || e == nil {
		return e, err
	}
	sent := s.queue.Withdraw(ctx, e.ID)
	typ := syncqueue.TypeCreate
	if e.ServerID != "" {
		typ = syncqueue.TypeUpdate
	}
	s.enqueue(ctx, gameID, *e, typ, sent)
	return e, nil
}

// ClearGame removes a game and every queued change for it.
func (s *Session) ClearGame(ctx context.Context, gameID string) error {
	if err := s.sc.ClearGame(ctx, gameID); err != nil {
		return err
	}
	if n := s.queue.RemoveForGame(ctx, gameID); n > 0 && s.debug {
		log.Printf("[SYNC] Dropped %d queued mutations for cleared game %s", n, gameID)
	}
	return nil
}

// Flush submits every eligible queued change.
func (s *Session) Flush(ctx context.Context, token string) syncqueue.FlushResult {
	return s.queue.Flush(ctx, token)
}

// Retry resubmits one failed change now.
func (s *Session) Retry(ctx context.Context, token, mutationID string) (syncqueue.FlushResult, error) {
	return s.queue.Retry(ctx, token, mutationID)
}

// IngestRemote merges an event another device created.
func (s *Session) IngestRemote(ctx context.Context, gameID string, e scorecard.ScoreEvent) (scorecard.ScoreEvent, error) {
	if e.ServerID == "" {
		return scorecard.ScoreEvent{}, fmt.Errorf("%w: remote event without server id", scorecard.ErrInvalidInput)
	}
	return s.sc.ApplyRemoteEvent(ctx, gameID, e)
}

// RemoveRemote drops an event another device deleted, along with any local
// change still queued for it.
func (s *Session) RemoveRemote(ctx context.Context, gameID, serverID string) (bool, error) {
	if g, ok := s.sc.Game(gameID); ok {
		for _, e := range g.Events {
			if e.ServerID == serverID {
				s.queue.RemoveForEvent(ctx, e.ID)
				break
			}
		}
	}
	return s.sc.RemoveRemoteEvent(ctx, gameID, serverID)
}

// retract purges undelivered changes for a removed event and queues a
// delete when the server may have it: it acknowledged the event, or a
// submission was sent whose ack never arrived.
func (s *Session) retract(ctx context.Context, gameID string, e scorecard.ScoreEvent) {
	sent := s.queue.Withdraw(ctx, e.ID)
	if e.ServerID != "" || sent || e.SyncStatus == scorecard.SyncFailed {
		s.enqueue(ctx, gameID, e, syncqueue.TypeDelete, true)
	}
}

func (s *Session) enqueue(ctx context.Context, gameID string, e scorecard.ScoreEvent, typ syncqueue.MutationType, sent bool) {
	if _, err := s.queue.Enqueue(ctx, syncqueue.EnqueueRequest{
		AccountID: s.accountID,
		GameID:    gameID,
		Event:     e,
		Type:      typ,
		Submitted: sent,
	}); err != nil {
		log.Printf("[SYNC] Could not queue %s for event %s: %v", typ, e.ID, err)
	}
}

// Synced stamps the acknowledged event with its server identity.
func (s *Session) Synced(ctx context.Context, m syncqueue.Mutation, res syncqueue.SubmitResult) error {
	if m.Type == syncqueue.TypeDelete {
		return nil
	}
	_, err := s.sc.ApplyServerAck(ctx, m.GameID, m.EventID, scorecard.ServerAck{ServerID: res.ServerEventID, Event: res.Event})
	if errors.Is(err, scorecard.ErrEventNotFound) || errors.Is(err, scorecard.ErrGameNotFound) {
		if s.debug {
			log.Printf("[SYNC] Ack for event %s arrived after it was removed", m.EventID)
		}
		return nil
	}
	return err
}

// Failed marks the event as failed to sync.
func (s *Session) Failed(ctx context.Context, m syncqueue.Mutation, cause error) error {
	if m.Type == syncqueue.TypeDelete {
		return nil
	}
	err := s.sc.MarkSyncStatus(ctx, m.GameID, m.EventID, scorecard.SyncFailed, cause.Error())
	if errors.Is(err, scorecard.ErrEventNotFound) || errors.Is(err, scorecard.ErrGameNotFound) {
		return nil
	}
	return err
}
