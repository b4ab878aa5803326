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
	"time"
)

// SnapshotStore persists game snapshots keyed by game id.
type SnapshotStore interface {
	SaveGame(ctx context.Context, g PersistedGame) error
	DeleteGame(ctx context.Context, gameID string) error
	LoadGames(ctx context.Context) ([]PersistedGame, error)
}

// PersistedEvent is the on-disk form of a ScoreEvent. Only the raw input is
// kept; every snapshot field is rebuilt on load.
type PersistedEvent struct {
	ID            string     `json:"id"`
	ServerID      string     `json:"serverId,omitempty"`
	ClientEventID string     `json:"clientEventId,omitempty"`
	Input         Input      `json:"input"`
	CreatedAt     time.Time  `json:"createdAt"`
	CreatedBy     string     `json:"createdBy"`
	DeviceID      string     `json:"deviceId"`
	Sequence      int64      `json:"sequence"`
	SyncStatus    SyncStatus `json:"syncStatus"`
	SyncError     string     `json:"syncError,omitempty"`
}

func (e *PersistedEvent) UnmarshalJSON(data []byte) error {
	type alias PersistedEvent
	aux := struct {
		*alias
		Input json.RawMessage `json:"input"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in, err := UnmarshalInput(aux.Input)
	if err != nil {
		return err
	}
	e.Input = in
	return nil
}

// PersistedGame is the on-disk form of a Game.
type PersistedGame struct {
	Metadata     GameMetadata     `json:"metadata"`
	Events       []PersistedEvent `json:"events"`
	LastSequence int64            `json:"lastSequence"`
	LastUpdated  time.Time        `json:"lastUpdated"`
}

// Snapshot converts g to its persisted form.
func Snapshot(g Game, now time.Time) PersistedGame {
	p := PersistedGame{
		Metadata:     g.Metadata,
		Events:       make([]PersistedEvent, 0, len(g.Events)),
		LastSequence: g.LastSequence,
		LastUpdated:  now,
	}
	for _, e := range g.Events {
		p.Events = append(p.Events, PersistedEvent{
			ID:            e.ID,
			ServerID:      e.ServerID,
			ClientEventID: e.ClientEventID,
			Input:         e.Input,
			CreatedAt:     e.CreatedAt,
			CreatedBy:     e.CreatedBy,
			DeviceID:      e.DeviceID,
			Sequence:      e.Sequence,
			SyncStatus:    e.SyncStatus,
			SyncError:     e.SyncError,
		})
	}
	return p
}

// Restore rebuilds a Game from its persisted form with a full Recompute.
func Restore(p PersistedGame) (Game, error) {
	g := Game{
		Metadata:     p.Metadata,
		State:        InitialState(),
		Events:       make([]ScoreEvent, 0, len(p.Events)),
		LastSequence: p.LastSequence,
	}
	for _, e := range p.Events {
		g.Events = append(g.Events, ScoreEvent{
			ID:            e.ID,
			ServerID:      e.ServerID,
			ClientEventID: e.ClientEventID,
			Sequence:      e.Sequence,
			Input:         e.Input,
			Audit: Audit{
				CreatedAt: e.CreatedAt,
				CreatedBy: e.CreatedBy,
				DeviceID:  e.DeviceID,
			},
			SyncStatus: e.SyncStatus,
			SyncError:  e.SyncError,
		})
	}
	return Recompute(g)
}
