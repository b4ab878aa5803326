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
	"time"

	"github.com/ttbt-io/scorecard/backend/scorecard"
)

// MutationType is the kind of change a mutation propagates.
type MutationType string

const (
	TypeCreate MutationType = "create"
	TypeUpdate MutationType = "update"
	TypeDelete MutationType = "delete"
)

// Status is the state of a mutation in the queue. Acknowledged mutations
// are removed rather than given a status.
type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusFailed  Status = "failed"
)

// Mutation is one attempt to propagate a local event change to the server.
type Mutation struct {
	ID          string                `json:"id"`
	GameID      string                `json:"gameId"`
	AccountID   string                `json:"accountId"`
	EventID     string                `json:"eventId"`
	ServerID    string                `json:"serverId,omitempty"`
	Sequence    int64                 `json:"sequence"`
	Type        MutationType          `json:"type"`
	Payload     *scorecard.ScoreEvent `json:"payload"`
	Audit       scorecard.Audit       `json:"audit"`
	Attempts    int                   `json:"attempts"`
	Status      Status                `json:"status"`
	LastError   string                `json:"lastError,omitempty"`
	NextRetryAt time.Time             `json:"nextRetryAt"`
	CreatedAt   time.Time             `json:"createdAt"`
	// Submitted is set when an earlier mutation for the event was sent, so
	// the server may hold the event even without a ServerID.
	Submitted bool `json:"submitted,omitempty"`
}

// EnqueueRequest describes a mutation to add. Type defaults to create.
type EnqueueRequest struct {
	AccountID string
	GameID    string
	Event     scorecard.ScoreEvent
	Type      MutationType
	// Submitted carries forward what Withdraw reported for the event.
	Submitted bool
}

// SubmitResult is the server's answer to an accepted mutation. Event is nil
// when the server kept the submitted event as is.
type SubmitResult struct {
	ServerEventID string                `json:"serverEventId"`
	Sequence      int64                 `json:"sequence"`
	Event         *scorecard.ScoreEvent `json:"event"`
}

// Transport submits one mutation to the server.
type Transport interface {
	Submit(ctx context.Context, token string, m Mutation) (SubmitResult, error)
}

// Store persists the queue.
type Store interface {
	SaveQueue(ctx context.Context, q PersistedQueue) error
	// LoadQueue reports false when nothing has been stored yet.
	LoadQueue(ctx context.Context) (PersistedQueue, bool, error)
}

// EventSink receives the outcome of each submission so the originating
// event can be stamped.
type EventSink interface {
	Synced(ctx context.Context, m Mutation, res SubmitResult) error
	Failed(ctx context.Context, m Mutation, cause error) error
}

// PersistedQueue is the stored form of the queue.
type PersistedQueue struct {
	SchemaVersion int        `json:"schemaVersion"`
	StoredAt      time.Time  `json:"storedAt"`
	Mutations     []Mutation `json:"mutations"`
}

// Counts summarizes the queue for display.
type Counts struct {
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Failed  int `json:"failed"`
}

// Total returns the number of queued mutations.
func (c Counts) Total() int {
	return c.Pending + c.Syncing + c.Failed
}
