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
	"testing"
)

func TestDefaultAdvances(t *testing.T) {
	tests := []struct {
		name      string
		bases     Bases
		outcome   Outcome
		want      string
		wantRuns  int
		wantFirst string
	}{
		{"Single, bases empty", Bases{}, OutcomeSingle, "B-1", 0, "Jo"},
		{"Single, corners", Bases{First: &alex, Third: &sam}, OutcomeSingle, "B-1;1-2;3-H", 1, "Jo"},
		{"Double, runner on first", Bases{First: &alex}, OutcomeDouble, "B-2;1-3", 0, ""},
		{"Triple clears the bases", Bases{First: &alex, Second: &river}, OutcomeTriple, "B-3;1-H;2-H", 2, ""},
		{"Walk, bases loaded", Bases{First: &alex, Second: &river, Third: &sam}, OutcomeWalk, "B-1;1-2;2-3;3-H", 1, "Jo"},
		{"Walk, runner on second only", Bases{Second: &river}, OutcomeWalk, "B-1", 0, "Jo"},
		{"Hit by pitch, corners", Bases{First: &alex, Third: &sam}, OutcomeHitByPitch, "B-1;1-2", 0, "Jo"},
		{"Error, first and second", Bases{First: &alex, Second: &river}, OutcomeReachOnError, "B-1;1-2;2-3", 0, "Jo"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			advances := DefaultAdvances(tc.bases, jo, tc.outcome)
			if got := FormatAdvances(advances); got != tc.want {
				t.Fatalf("advances = %q, want %q", got, tc.want)
			}
			state := InitialState()
			state.Bases = tc.bases
			next, delta, err := Apply(state, atBat(jo, tc.outcome, advances...))
			if err != nil {
				t.Fatalf("proposed advances do not apply: %v", err)
			}
			if delta.RunsScored != tc.wantRuns {
				t.Errorf("runs = %d, want %d", delta.RunsScored, tc.wantRuns)
			}
			if got := runnerName(next.Bases.First); got != tc.wantFirst {
				t.Errorf("first = %q, want %q", got, tc.wantFirst)
			}
		})
	}
}

func TestDefaultAdvancesForOuts(t *testing.T) {
	for _, o := range []Outcome{OutcomeGroundOut, OutcomeFlyOut, OutcomeStrikeoutSwinging, OutcomeSacrificeFly} {
		if got := DefaultAdvances(Bases{First: &alex}, jo, o); got != nil {
			t.Errorf("DefaultAdvances(%s) = %v, want nil", o, got)
		}
	}
}

func TestRunnersOnBase(t *testing.T) {
	got := RunnersOnBase(Bases{First: &alex, Third: &sam})
	if len(got) != 2 || got[0].Base != BaseFirst || got[1].Runner.ID != sam.ID {
		t.Errorf("RunnersOnBase = %+v", got)
	}
	if got := RunnersOnBase(Bases{}); len(got) != 0 {
		t.Errorf("RunnersOnBase(empty) = %+v", got)
	}
}
