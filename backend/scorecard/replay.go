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
	"cmp"
	"fmt"
	"slices"
)

// Recompute replays every event of g from the initial state and returns a
// copy with State, Derived and each event's snapshot rebuilt. g itself is not
// modified. On error the returned game is g, untouched.
func Recompute(g Game) (Game, error) {
	out := g.clone()
	slices.SortStableFunc(out.Events, func(a, b ScoreEvent) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	state := InitialState()
	var derived DerivedStats
	for i := range out.Events {
		e := &out.Events[i]
		next, delta, err := Apply(state, e.Input)
		if err != nil {
			return g, fmt.Errorf("replay event %s (sequence %d): %w", e.ID, e.Sequence, err)
		}
		e.Inning = state.Inning
		e.Half = state.Half
		e.OutsBefore = state.Outs
		e.OutsAfter = min(3, state.Outs+delta.Outs)
		e.ScoreAfter = next.Score
		e.BasesAfter = next.Bases
		e.Notation = Notation(e.Input)
		e.Summary = Summary(e.Input)
		out.LastSequence = max(out.LastSequence, e.Sequence)

		derived = derived.add(delta)
		state = next
	}
	for i := range out.RedoStack {
		e := &out.RedoStack[i]
		e.Notation = Notation(e.Input)
		e.Summary = Summary(e.Input)
		out.LastSequence = max(out.LastSequence, e.Sequence)
	}

	out.State = state
	out.Derived = derived
	return out, nil
}
