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

// Package syncqueue holds local event changes until the server acknowledges
// them. The queue never schedules itself; callers invoke Flush.
package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMutationNotFound = errors.New("mutation not found")
	ErrNotFailed        = errors.New("mutation has not failed")
)

// Options configures a Queue.
type Options struct {
	Transport Transport
	// Store is optional; without it the queue lives in memory only.
	Store Store
	// Sink is optional.
	Sink EventSink

	Now   func() time.Time
	NewID func() string

	BaseDelay time.Duration
	MaxDelay  time.Duration
	Retention time.Duration
	Debug     bool
}

// FlushResult reports what one Flush did.
type FlushResult struct {
	// Skipped is set when another flush was already running.
	Skipped   bool
	Attempted int
	Succeeded int
	Failed    int
}

// Queue is a persisted list of mutations in enqueue order.
type Queue struct {
	opts Options

	flushing  atomic.Bool
	persistMu sync.Mutex

	mu        sync.Mutex
	mutations []Mutation
}

// New returns an empty queue. Call Load to restore a persisted one.
func New(opts Options) *Queue {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	return &Queue{opts: opts}
}

// Load restores the persisted queue. A queue written with another schema
// version, or stored longer ago than the retention window, is discarded.
// Mutations interrupted mid-submission become pending again.
func (q *Queue) Load(ctx context.Context) error {
	if q.opts.Store == nil {
		return nil
	}
	pq, ok, err := q.opts.Store.LoadQueue(ctx)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	if !ok {
		return nil
	}
	now := q.opts.Now()
	discarded := false
	switch {
	case pq.SchemaVersion != CurrentSchemaVersion:
		log.Printf("[SYNC] Discarding queue with schema version %d (want %d), %d mutations lost", pq.SchemaVersion, CurrentSchemaVersion, len(pq.Mutations))
		discarded = true
	case now.Sub(pq.StoredAt) > q.opts.Retention:
		log.Printf("[SYNC] Discarding queue stored at %s, %d mutations lost", pq.StoredAt.Format(time.RFC3339), len(pq.Mutations))
		discarded = true
	}
	if discarded {
		pq.Mutations = nil
	}
	for i := range pq.Mutations {
		if pq.Mutations[i].Status == StatusSyncing {
			pq.Mutations[i].Status = StatusPending
		}
	}

	q.mu.Lock()
	q.mutations = pq.Mutations
	q.mu.Unlock()
	if discarded {
		q.persist(ctx)
	}
	return nil
}

// Enqueue adds a new pending mutation, eligible immediately. It never
// replaces an existing mutation; call RemoveForEvent first to supersede one.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (Mutation, error) {
	if req.GameID == "" || req.Event.ID == "" {
		return Mutation{}, fmt.Errorf("enqueue: game id and event id are required")
	}
	if req.Type == "" {
		req.Type = TypeCreate
	}
	now := q.opts.Now()
	m := Mutation{
		ID:          q.opts.NewID(),
		GameID:      req.GameID,
		AccountID:   req.AccountID,
		EventID:     req.Event.ID,
		ServerID:    req.Event.ServerID,
		Sequence:    req.Event.Sequence,
		Type:        req.Type,
		Audit:       req.Event.Audit,
		Status:      StatusPending,
		NextRetryAt: now,
		CreatedAt:   now,
		Submitted:   req.Submitted,
	}
	if req.Type != TypeDelete {
		e := req.Event
		m.Payload = &e
	}

	q.mu.Lock()
	q.mutations = append(q.mutations, m)
	q.mu.Unlock()
	q.persist(ctx)

	if q.opts.Debug {
		log.Printf("[SYNC] Enqueued %s %s for event %s (game %s)", m.Type, m.ID, m.EventID, m.GameID)
	}
	return m, nil
}

// Flush submits every eligible mutation, one at a time in queue order. A
// call made while another flush is running returns immediately with
// Skipped set.
func (q *Queue) Flush(ctx context.Context, token string) FlushResult {
	if !q.flushing.CompareAndSwap(false, true) {
		return FlushResult{Skipped: true}
	}
	defer q.flushing.Store(false)

	var res FlushResult
	for _, id := range q.eligible(q.opts.Now()) {
		if ctx.Err() != nil {
			break
		}
		m, ok := q.update(id, func(m *Mutation) { m.Status = StatusSyncing })
		if !ok {
			continue
		}
		q.persist(ctx)
		res.Attempted++

		ack, err := q.opts.Transport.Submit(ctx, token, m)
		if err != nil {
			res.Failed++
			q.recordFailure(ctx, id, err)
			continue
		}
		res.Succeeded++
		q.recordSuccess(ctx, m, ack)
	}
	return res
}

func (q *Queue) recordFailure(ctx context.Context, id string, cause error) {
	now := q.opts.Now()
	m, ok := q.update(id, func(m *Mutation) {
		m.Attempts++
		m.Status = StatusFailed
		m.LastError = cause.Error()
		m.NextRetryAt = now.Add(Backoff(m.Attempts, q.opts.BaseDelay, q.opts.MaxDelay))
	})
	if !ok {
		// Purged while in flight; a newer mutation supersedes it.
		return
	}
	q.persist(ctx)
	log.Printf("[SYNC] %s %s for event %s failed (attempt %d, retry at %s): %v", m.Type, m.ID, m.EventID, m.Attempts, m.NextRetryAt.Format(time.RFC3339), cause)
	if q.opts.Sink != nil {
		if err := q.opts.Sink.Failed(ctx, m, cause); err != nil {
			log.Printf("[SYNC] Could not mark event %s failed: %v", m.EventID, err)
		}
	}
}

func (q *Queue) recordSuccess(ctx context.Context, m Mutation, ack SubmitResult) {
	q.mu.Lock()
	i := q.indexOf(m.ID)
	if i >= 0 {
		q.mutations = slices.Delete(q.mutations, i, i+1)
	}
	q.mu.Unlock()
	if i < 0 {
		if q.opts.Debug {
			log.Printf("[SYNC] %s %s was purged in flight, ignoring ack", m.Type, m.ID)
		}
		return
	}
	q.persist(ctx)
	if q.opts.Debug {
		log.Printf("[SYNC] %s %s for event %s acknowledged as %s", m.Type, m.ID, m.EventID, ack.ServerEventID)
	}
	if q.opts.Sink != nil {
		if err := q.opts.Sink.Synced(ctx, m, ack); err != nil {
			log.Printf("[SYNC] Could not stamp event %s: %v", m.EventID, err)
		}
	}
}

// Retry makes one failed mutation eligible now and flushes.
func (q *Queue) Retry(ctx context.Context, token, mutationID string) (FlushResult, error) {
	q.mu.Lock()
	i := q.indexOf(mutationID)
	if i < 0 {
		q.mu.Unlock()
		return FlushResult{}, fmt.Errorf("%w: %s", ErrMutationNotFound, mutationID)
	}
	if q.mutations[i].Status != StatusFailed {
		q.mu.Unlock()
		return FlushResult{}, fmt.Errorf("%w: %s is %s", ErrNotFailed, mutationID, q.mutations[i].Status)
	}
	q.mutations[i].Status = StatusPending
	q.mutations[i].NextRetryAt = q.opts.Now()
	q.mutations[i].LastError = ""
	q.mu.Unlock()

	q.persist(ctx)
	return q.Flush(ctx, token), nil
}

// RemoveForEvent purges every mutation for the event and returns how many
// were removed. A purged mutation that is in flight is neither stamped nor
// rescheduled when its submission returns.
func (q *Queue) RemoveForEvent(ctx context.Context, eventID string) int {
	return q.removeWhere(ctx, func(m Mutation) bool { return m.EventID == eventID })
}

// Withdraw purges every mutation for the event, like RemoveForEvent, and
// reports whether the server may already hold the event. That is the case
// once any of its mutations has been submitted, even if no ack arrived.
func (q *Queue) Withdraw(ctx context.Context, eventID string) bool {
	q.mu.Lock()
	sent := false
	n := 0
	q.mutations = slices.DeleteFunc(q.mutations, func(m Mutation) bool {
		if m.EventID != eventID {
			return false
		}
		if m.Submitted || m.Attempts > 0 || m.Status == StatusSyncing {
			sent = true
		}
		n++
		return true
	})
	q.mu.Unlock()
	if n > 0 {
		q.persist(ctx)
	}
	return sent
}

// RemoveForGame purges every mutation for the game.
func (q *Queue) RemoveForGame(ctx context.Context, gameID string) int {
	return q.removeWhere(ctx, func(m Mutation) bool { return m.GameID == gameID })
}

func (q *Queue) removeWhere(ctx context.Context, match func(Mutation) bool) int {
	q.mu.Lock()
	before := len(q.mutations)
	q.mutations = slices.DeleteFunc(q.mutations, match)
	n := before - len(q.mutations)
	q.mu.Unlock()
	if n > 0 {
		q.persist(ctx)
	}
	return n
}

// Mutations returns a copy of the queue in order.
func (q *Queue) Mutations() []Mutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.mutations)
}

// Counts tallies the queue by status.
func (q *Queue) Counts() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()
	var c Counts
	for _, m := range q.mutations {
		switch m.Status {
		case StatusPending:
			c.Pending++
		case StatusSyncing:
			c.Syncing++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Flushing reports whether a flush is in progress.
func (q *Queue) Flushing() bool {
	return q.flushing.Load()
}

func (q *Queue) eligible(now time.Time) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ids []string
	for _, m := range q.mutations {
		if (m.Status == StatusPending || m.Status == StatusFailed) && !m.NextRetryAt.After(now) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// update applies fn to the mutation with the given id and returns a copy of
// the result. It reports false if the mutation is gone.
func (q *Queue) update(id string, fn func(m *Mutation)) (Mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.indexOf(id)
	if i < 0 {
		return Mutation{}, false
	}
	fn(&q.mutations[i])
	return q.mutations[i], true
}

func (q *Queue) indexOf(id string) int {
	return slices.IndexFunc(q.mutations, func(m Mutation) bool { return m.ID == id })
}

// persist writes the queue. Failures are logged; the in-memory queue stays
// authoritative until the next successful write.
func (q *Queue) persist(ctx context.Context) {
	if q.opts.Store == nil {
		return
	}
	q.persistMu.Lock()
	defer q.persistMu.Unlock()
	q.mu.Lock()
	pq := PersistedQueue{
		SchemaVersion: CurrentSchemaVersion,
		StoredAt:      q.opts.Now(),
		Mutations:     slices.Clone(q.mutations),
	}
	q.mu.Unlock()
	if pq.Mutations == nil {
		pq.Mutations = []Mutation{}
	}
	if err := q.opts.Store.SaveQueue(ctx, pq); err != nil {
		log.Printf("[SYNC] Failed to persist queue (%d mutations): %v", len(pq.Mutations), err)
	}
}
