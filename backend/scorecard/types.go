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
	"time"
)

// Base names a bag on the field, or one of the pseudo-locations used by
// runner advances ("batter" as a start, "home" and "out" as an end).
type Base string

const (
	BaseFirst  Base = "first"
	BaseSecond Base = "second"
	BaseThird  Base = "third"

	BaseBatter Base = "batter"
	BaseHome   Base = "home"
	BaseOut    Base = "out"
)

// IsBag reports whether b is one of first, second or third.
func (b Base) IsBag() bool {
	return b == BaseFirst || b == BaseSecond || b == BaseThird
}

// Half is the half of an inning.
type Half string

const (
	HalfTop    Half = "top"
	HalfBottom Half = "bottom"
)

// RunnerState identifies a player on the bases. Two runners are the same
// runner iff their IDs match.
type RunnerState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Same reports whether r and other are the same player.
func (r RunnerState) Same(other RunnerState) bool {
	return r.ID == other.ID
}

// Bases holds at most one runner per bag. A nil pointer is an empty bag.
// The pointed-to values are never mutated; moving a runner always assigns a
// fresh pointer, so copying a Bases value is enough to snapshot it.
type Bases struct {
	First  *RunnerState `json:"first"`
	Second *RunnerState `json:"second"`
	Third  *RunnerState `json:"third"`
}

// Get returns the runner on bag b, or nil.
func (bs Bases) Get(b Base) *RunnerState {
	switch b {
	case BaseFirst:
		return bs.First
	case BaseSecond:
		return bs.Second
	case BaseThird:
		return bs.Third
	}
	return nil
}

func (bs *Bases) set(b Base, r *RunnerState) {
	var v *RunnerState
	if r != nil {
		c := *r
		v = &c
	}
	switch b {
	case BaseFirst:
		bs.First = v
	case BaseSecond:
		bs.Second = v
	case BaseThird:
		bs.Third = v
	}
}

// Empty reports whether no bag is occupied.
func (bs Bases) Empty() bool {
	return bs.First == nil && bs.Second == nil && bs.Third == nil
}

// Find returns the bag currently held by the runner with the given id.
func (bs Bases) Find(runnerID string) (Base, bool) {
	for _, b := range Bags {
		if r := bs.Get(b); r != nil && r.ID == runnerID {
			return b, true
		}
	}
	return "", false
}

// Bags lists the three bags in running order.
var Bags = []Base{BaseFirst, BaseSecond, BaseThird}

// Score is the running score of both teams.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Total returns home plus away.
func (s Score) Total() int {
	return s.Home + s.Away
}

// GameState is the state derived from replaying a game's events.
type GameState struct {
	Inning int   `json:"inning"`
	Half   Half  `json:"half"`
	Outs   int   `json:"outs"`
	Bases  Bases `json:"bases"`
	Score  Score `json:"score"`
}

// InitialState is the canonical state before the first pitch.
func InitialState() GameState {
	return GameState{Inning: 1, Half: HalfTop}
}

// PitchingStats accumulates pitching totals.
type PitchingStats struct {
	TotalPitches int `json:"totalPitches"`
}

// BattingStats accumulates batting totals.
type BattingStats struct {
	AtBats     int `json:"atBats"`
	Runs       int `json:"runs"`
	Hits       int `json:"hits"`
	RBI        int `json:"rbi"`
	Walks      int `json:"walks"`
	Strikeouts int `json:"strikeouts"`
}

// DerivedStats is the box-score accumulator folded over the event log.
type DerivedStats struct {
	Pitching PitchingStats `json:"pitching"`
	Batting  BattingStats  `json:"batting"`
}

func (d DerivedStats) add(delta Delta) DerivedStats {
	d.Pitching.TotalPitches += delta.Pitches
	d.Batting.Runs += delta.RunsScored
	d.Batting.Hits += delta.HitsRecorded
	d.Batting.RBI += delta.RBI
	if delta.AtBat {
		d.Batting.AtBats++
	}
	if delta.Walk {
		d.Batting.Walks++
	}
	if delta.Strikeout {
		d.Batting.Strikeouts++
	}
	return d
}

// SyncStatus tracks an event's propagation to the server.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Audit records who created an event and where.
type Audit struct {
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
	DeviceID  string    `json:"deviceId"`
}

// ScoreEvent is one recorded play with its replay snapshot.
type ScoreEvent struct {
	ID            string `json:"id"`
	ServerID      string `json:"serverId,omitempty"`
	ClientEventID string `json:"clientEventId,omitempty"`
	Sequence      int64  `json:"sequence"`
	Input         Input  `json:"input"`
	Audit

	// Snapshot fields are filled in by Recompute and never persisted.
	Inning     int    `json:"inning"`
	Half       Half   `json:"half"`
	OutsBefore int    `json:"outsBefore"`
	OutsAfter  int    `json:"outsAfter"`
	ScoreAfter Score  `json:"scoreAfter"`
	BasesAfter Bases  `json:"basesAfter"`
	Notation   string `json:"notation"`
	Summary    string `json:"summary"`

	SyncStatus SyncStatus `json:"syncStatus"`
	SyncError  string     `json:"syncError,omitempty"`
}

// GameMetadata is the schedule data a game is seeded from.
type GameMetadata struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId,omitempty"`
	Home        string    `json:"home"`
	Away        string    `json:"away"`
	Location    string    `json:"location,omitempty"`
	ScheduledAt time.Time `json:"scheduledAt,omitempty"`
}

// Game is the aggregate root for one game's scorecard.
type Game struct {
	Metadata     GameMetadata `json:"metadata"`
	State        GameState    `json:"state"`
	Events       []ScoreEvent `json:"events"`
	RedoStack    []ScoreEvent `json:"redoStack"`
	Derived      DerivedStats `json:"derived"`
	LastSequence int64        `json:"lastSequence"`
}

// Event returns the event with the given local id.
func (g *Game) Event(eventID string) (ScoreEvent, bool) {
	if i := g.indexOf(eventID); i >= 0 {
		return g.Events[i], true
	}
	return ScoreEvent{}, false
}

func (g *Game) indexOf(eventID string) int {
	for i := range g.Events {
		if g.Events[i].ID == eventID {
			return i
		}
	}
	return -1
}

// nextSequence returns the next unused sequence number.
func (g *Game) nextSequence() int64 {
	hi := g.LastSequence
	for _, e := range g.Events {
		hi = max(hi, e.Sequence)
	}
	for _, e := range g.RedoStack {
		hi = max(hi, e.Sequence)
	}
	return hi + 1
}

func (g Game) clone() Game {
	c := g
	c.Events = append([]ScoreEvent(nil), g.Events...)
	c.RedoStack = append([]ScoreEvent(nil), g.RedoStack...)
	return c
}
