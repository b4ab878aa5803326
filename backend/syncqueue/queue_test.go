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

package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ttbt-io/scorecard/backend/scorecard"
)

type transportFunc func(ctx context.Context, token string, m Mutation) (SubmitResult, error)

func (f transportFunc) Submit(ctx context.Context, token string, m Mutation) (SubmitResult, error) {
	return f(ctx, token, m)
}

type sinkCall struct {
	eventID  string
	serverID string
	cause    string
}

type recordingSink struct {
	mu     sync.Mutex
	synced []sinkCall
	failed []sinkCall
}

func (s *recordingSink) Synced(_ context.Context, m Mutation, res SubmitResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, sinkCall{eventID: m.EventID, serverID: res.ServerEventID})
	return nil
}

func (s *recordingSink) Failed(_ context.Context, m Mutation, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, sinkCall{eventID: m.EventID, cause: cause.Error()})
	return nil
}

// memQueueStore round-trips the queue through JSON.
type memQueueStore struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	failErr error
}

func (s *memQueueStore) SaveQueue(_ context.Context, q PersistedQueue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}
	s.data = b
	s.saves++
	return nil
}

func (s *memQueueStore) LoadQueue(_ context.Context) (PersistedQueue, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return PersistedQueue{}, false, nil
	}
	var q PersistedQueue
	if err := json.Unmarshal(s.data, &q); err != nil {
		return PersistedQueue{}, false, err
	}
	return q, true, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)}
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("m-%d", n)
	}
}

func event(id string, seq int64) scorecard.ScoreEvent {
	return scorecard.ScoreEvent{
		ID:       id,
		Sequence: seq,
		Input:    &scorecard.AtBatInput{Batter: scorecard.RunnerState{ID: "p-alex", Name: "Alex"}, Result: scorecard.OutcomeSingle},
		Audit:    scorecard.Audit{CreatedBy: "scorer@example.com", DeviceID: "dev-1"},
	}
}

func enqueue(t *testing.T, q *Queue, e scorecard.ScoreEvent, typ MutationType) Mutation {
	t.Helper()
	m, err := q.Enqueue(context.Background(), EnqueueRequest{AccountID: "acct", GameID: "g1", Event: e, Type: typ})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return m
}

func TestFlushFailureSchedulesBackoff(t *testing.T) {
	clock := newClock()
	sink := &recordingSink{}
	q := New(Options{
		Transport: transportFunc(func(context.Context, string, Mutation) (SubmitResult, error) {
			return SubmitResult{}, errors.New("network down")
		}),
		Store: &memQueueStore{},
		Sink:  sink,
		Now:   clock.Now,
		NewID: sequentialIDs(),
	})
	enqueue(t, q, event("e1", 1), TypeCreate)

	res := q.Flush(context.Background(), "token")
	if res.Attempted != 1 || res.Failed != 1 {
		t.Fatalf("flush result = %+v", res)
	}
	ms := q.Mutations()
	if len(ms) != 1 {
		t.Fatalf("queue length = %d, want 1", len(ms))
	}
	m := ms[0]
	if m.Status != StatusFailed || m.Attempts != 1 || m.LastError != "network down" {
		t.Errorf("mutation = %s attempts %d %q", m.Status, m.Attempts, m.LastError)
	}
	if !m.NextRetryAt.After(clock.Now()) {
		t.Errorf("nextRetryAt %s is not after now", m.NextRetryAt)
	}
	if len(sink.failed) != 1 || sink.failed[0].eventID != "e1" || sink.failed[0].cause != "network down" {
		t.Errorf("sink failures = %+v", sink.failed)
	}

	if res := q.Flush(context.Background(), "token"); res.Attempted != 0 {
		t.Errorf("mutation retried before its backoff elapsed: %+v", res)
	}
	clock.Advance(DefaultBaseDelay)
	q.Flush(context.Background(), "token")
	if m := q.Mutations()[0]; m.Attempts != 2 || !m.NextRetryAt.Equal(clock.Now().Add(2*DefaultBaseDelay)) {
		t.Errorf("second failure = attempts %d, retry at %s", m.Attempts, m.NextRetryAt)
	}
	if c := q.Counts(); c.Failed != 1 || c.Total() != 1 {
		t.Errorf("counts = %+v", c)
	}
}

func TestFlushSuccessRemovesAndStamps(t *testing.T) {
	sink := &recordingSink{}
	store := &memQueueStore{}
	var order []string
	q := New(Options{
		Transport: transportFunc(func(_ context.Context, token string, m Mutation) (SubmitResult, error) {
			if token != "tok" {
				return SubmitResult{}, errors.New("bad token")
			}
			order = append(order, m.EventID)
			return SubmitResult{ServerEventID: "srv-" + m.EventID, Sequence: m.Sequence}, nil
		}),
		Store: store,
		Sink:  sink,
		NewID: sequentialIDs(),
	})
	enqueue(t, q, event("e1", 1), TypeCreate)
	enqueue(t, q, event("e2", 2), TypeCreate)
	enqueue(t, q, event("e3", 3), TypeCreate)

	res := q.Flush(context.Background(), "tok")
	if res.Succeeded != 3 {
		t.Fatalf("flush result = %+v", res)
	}
	if len(q.Mutations()) != 0 {
		t.Errorf("queue not empty: %+v", q.Mutations())
	}
	if fmt.Sprint(order) != "[e1 e2 e3]" {
		t.Errorf("submission order = %v", order)
	}
	if len(sink.synced) != 3 || sink.synced[1].serverID != "srv-e2" {
		t.Errorf("sink synced = %+v", sink.synced)
	}

	stored, ok, err := store.LoadQueue(context.Background())
	if err != nil || !ok || len(stored.Mutations) != 0 || stored.SchemaVersion != CurrentSchemaVersion {
		t.Errorf("stored queue = %+v %v %v", stored, ok, err)
	}
}

func TestConcurrentFlushIsNoop(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	q := New(Options{
		Transport: transportFunc(func(context.Context, string, Mutation) (SubmitResult, error) {
			close(entered)
			<-release
			return SubmitResult{ServerEventID: "srv"}, nil
		}),
	})
	enqueue(t, q, event("e1", 1), TypeCreate)

	done := make(chan FlushResult)
	go func() { done <- q.Flush(context.Background(), "") }()
	<-entered
	if !q.Flushing() {
		t.Error("Flushing() = false during a flush")
	}
	if res := q.Flush(context.Background(), ""); !res.Skipped {
		t.Errorf("overlapping flush = %+v, want skipped", res)
	}
	if c := q.Counts(); c.Syncing != 1 {
		t.Errorf("counts during flush = %+v", c)
	}
	close(release)
	if res := <-done; res.Succeeded != 1 {
		t.Errorf("first flush = %+v", res)
	}
	if q.Flushing() {
		t.Error("Flushing() = true after flush returned")
	}
}

func TestPurgedInFlightIsNotStampedOrRescheduled(t *testing.T) {
	for _, fail := range []bool{false, true} {
		t.Run(fmt.Sprintf("fail=%v", fail), func(t *testing.T) {
			sink := &recordingSink{}
			var q *Queue
			q = New(Options{
				Transport: transportFunc(func(ctx context.Context, _ string, m Mutation) (SubmitResult, error) {
					q.RemoveForEvent(ctx, m.EventID)
					if fail {
						return SubmitResult{}, errors.New("timeout")
					}
					return SubmitResult{ServerEventID: "srv"}, nil
				}),
				Sink: sink,
			})
			enqueue(t, q, event("e1", 1), TypeCreate)
			q.Flush(context.Background(), "")
			if len(q.Mutations()) != 0 {
				t.Errorf("purged mutation came back: %+v", q.Mutations())
			}
			if len(sink.synced)+len(sink.failed) != 0 {
				t.Errorf("sink called for a purged mutation: %+v %+v", sink.synced, sink.failed)
			}
		})
	}
}

func TestEnqueueShapes(t *testing.T) {
	clock := newClock()
	q := New(Options{Now: clock.Now, NewID: sequentialIDs()})
	e := event("e1", 7)
	e.ServerID = "srv-1"

	m := enqueue(t, q, e, "")
	if m.Type != TypeCreate || m.Status != StatusPending || m.Attempts != 0 || !m.NextRetryAt.Equal(clock.Now()) {
		t.Errorf("create mutation = %+v", m)
	}
	if m.Payload == nil || m.Payload.ID != "e1" || m.Sequence != 7 || m.ServerID != "srv-1" || m.Audit.DeviceID != "dev-1" {
		t.Errorf("create payload = %+v", m)
	}
	d := enqueue(t, q, e, TypeDelete)
	if d.Payload != nil {
		t.Errorf("delete mutation carries a payload")
	}
	if d.ID == m.ID {
		t.Error("Enqueue reused a mutation id")
	}
	if _, err := q.Enqueue(context.Background(), EnqueueRequest{GameID: "g1"}); err == nil {
		t.Error("Enqueue without an event id succeeded")
	}
}

func TestRemoveForEventAndGame(t *testing.T) {
	q := New(Options{NewID: sequentialIDs()})
	enqueue(t, q, event("e1", 1), TypeCreate)
	enqueue(t, q, event("e1", 1), TypeUpdate)
	enqueue(t, q, event("e2", 2), TypeCreate)
	other, _ := q.Enqueue(context.Background(), EnqueueRequest{GameID: "g2", Event: event("e9", 1)})

	if n := q.RemoveForEvent(context.Background(), "e1"); n != 2 {
		t.Errorf("RemoveForEvent removed %d, want 2", n)
	}
	if n := q.RemoveForGame(context.Background(), "g1"); n != 1 {
		t.Errorf("RemoveForGame removed %d, want 1", n)
	}
	if ms := q.Mutations(); len(ms) != 1 || ms[0].ID != other.ID {
		t.Errorf("remaining = %+v", ms)
	}
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	var q *Queue
	var inFlight bool
	q = New(Options{
		Now:   clock.Now,
		NewID: sequentialIDs(),
		Transport: transportFunc(func(ctx context.Context, _ string, m Mutation) (SubmitResult, error) {
			if m.EventID == "e3" {
				inFlight = q.Withdraw(ctx, "e3")
			}
			return SubmitResult{}, errors.New("timeout")
		}),
	})

	enqueue(t, q, event("e1", 1), TypeCreate)
	if q.Withdraw(ctx, "e1") {
		t.Error("Withdraw of a never-sent create reported it sent")
	}

	enqueue(t, q, event("e2", 2), TypeCreate)
	q.Flush(ctx, "")
	if !q.Withdraw(ctx, "e2") {
		t.Error("Withdraw after a failed attempt reported it unsent")
	}

	enqueue(t, q, event("e3", 3), TypeCreate)
	q.Flush(ctx, "")
	if !inFlight {
		t.Error("Withdraw during submission reported it unsent")
	}

	if _, err := q.Enqueue(ctx, EnqueueRequest{GameID: "g1", Event: event("e4", 4), Type: TypeUpdate, Submitted: true}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !q.Withdraw(ctx, "e4") {
		t.Error("Withdraw lost the submitted mark carried by an update")
	}
	if ms := q.Mutations(); len(ms) != 0 {
		t.Errorf("remaining = %+v", ms)
	}
}

func TestRetry(t *testing.T) {
	clock := newClock()
	down := true
	q := New(Options{
		Transport: transportFunc(func(context.Context, string, Mutation) (SubmitResult, error) {
			if down {
				return SubmitResult{}, errors.New("network down")
			}
			return SubmitResult{ServerEventID: "srv"}, nil
		}),
		Now:   clock.Now,
		NewID: sequentialIDs(),
	})
	m := enqueue(t, q, event("e1", 1), TypeCreate)

	if _, err := q.Retry(context.Background(), "", m.ID); !errors.Is(err, ErrNotFailed) {
		t.Errorf("Retry of a pending mutation = %v, want ErrNotFailed", err)
	}
	q.Flush(context.Background(), "")
	down = false
	res, err := q.Retry(context.Background(), "", m.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if res.Succeeded != 1 || len(q.Mutations()) != 0 {
		t.Errorf("retry result = %+v, queue %d", res, len(q.Mutations()))
	}
	if _, err := q.Retry(context.Background(), "", m.ID); !errors.Is(err, ErrMutationNotFound) {
		t.Errorf("Retry of a removed mutation = %v, want ErrMutationNotFound", err)
	}
}

func TestLoad(t *testing.T) {
	clock := newClock()
	tests := []struct {
		name      string
		version   int
		age       time.Duration
		empty     bool
		want      int
		rewritten bool
	}{
		{"Current queue", CurrentSchemaVersion, time.Hour, false, 2, false},
		{"Empty queue", CurrentSchemaVersion, time.Hour, true, 0, false},
		{"Other schema version", CurrentSchemaVersion + 1, time.Hour, false, 0, true},
		{"Older than retention", CurrentSchemaVersion, DefaultRetention + time.Minute, false, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &memQueueStore{}
			pq := PersistedQueue{
				SchemaVersion: tc.version,
				StoredAt:      clock.Now().Add(-tc.age),
				Mutations: []Mutation{
					{ID: "m-1", GameID: "g1", EventID: "e1", Type: TypeCreate, Status: StatusSyncing},
					{ID: "m-2", GameID: "g1", EventID: "e2", Type: TypeDelete, Status: StatusFailed, Attempts: 3},
				},
			}
			if tc.empty {
				pq.Mutations = nil
			}
			if err := store.SaveQueue(context.Background(), pq); err != nil {
				t.Fatalf("SaveQueue: %v", err)
			}

			q := New(Options{Store: store, Now: clock.Now})
			if err := q.Load(context.Background()); err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := store.saves > 1; got != tc.rewritten {
				t.Errorf("queue rewritten on load = %v, want %v", got, tc.rewritten)
			}
			ms := q.Mutations()
			if len(ms) != tc.want {
				t.Fatalf("loaded %d mutations, want %d", len(ms), tc.want)
			}
			if tc.want > 0 && (ms[0].Status != StatusPending || ms[1].Attempts != 3) {
				t.Errorf("loaded = %+v", ms)
			}
		})
	}

	q := New(Options{Store: &memQueueStore{}})
	if err := q.Load(context.Background()); err != nil || len(q.Mutations()) != 0 {
		t.Errorf("Load of empty store = %v, %d mutations", err, len(q.Mutations()))
	}
}

func TestQueueWriteFailureKeepsMemory(t *testing.T) {
	store := &memQueueStore{failErr: errors.New("disk full")}
	q := New(Options{Store: store})
	enqueue(t, q, event("e1", 1), TypeCreate)
	if len(q.Mutations()) != 1 {
		t.Errorf("mutation lost after failed write")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{6, 160 * time.Second},
		{7, 5 * time.Minute},
		{100, 5 * time.Minute},
	}
	for _, tc := range tests {
		if got := Backoff(tc.attempts, DefaultBaseDelay, DefaultMaxDelay); got != tc.want {
			t.Errorf("Backoff(%d) = %s, want %s", tc.attempts, got, tc.want)
		}
	}
}
