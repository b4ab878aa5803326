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
	"fmt"
)

// Delta is what a single event contributes to the derived statistics.
type Delta struct {
	RunsScored   int  `json:"runsScored"`
	HitsRecorded int  `json:"hitsRecorded"`
	RBI          int  `json:"rbi"`
	AtBat        bool `json:"atBat"`
	Walk         bool `json:"walk"`
	Strikeout    bool `json:"strikeout"`
	Pitches      int  `json:"pitches"`
	// Outs is the number of outs the event recorded, before the half-inning
	// rollover resets the count.
	Outs int `json:"outs"`
}

// Apply reduces one input against state. It has no side effects: state is
// returned unchanged alongside any error.
func Apply(state GameState, in Input) (GameState, Delta, error) {
	if in == nil {
		return state, Delta{}, ErrUnknownInput
	}
	r := reducer{state: state}
	if err := in.Accept(&r); err != nil {
		return state, Delta{}, err
	}
	return r.state, r.delta, nil
}

type reducer struct {
	state GameState
	delta Delta
}

func (r *reducer) VisitAtBat(in *AtBatInput) error {
	if !in.Result.Valid() {
		return fmt.Errorf("%w: outcome %q", ErrInvalidInput, in.Result)
	}
	advances := in.Advances
	if len(advances) == 0 {
		if dest, ok := in.Result.batterDestination(); ok {
			advances = []RunnerAdvance{{Runner: in.Batter, Start: BaseBatter, End: dest}}
		}
	}

	bases, outs, runs, rbi, err := moveRunners(r.state.Bases, advances)
	if err != nil {
		return err
	}
	if in.Result.IsBattedOut() && outs == 0 {
		outs = 1
	}

	r.delta = Delta{
		RunsScored: runs,
		RBI:        rbi,
		AtBat:      in.Result.CountsAsAtBat(),
		Walk:       in.Result == OutcomeWalk,
		Strikeout:  in.Result.IsStrikeout(),
		Pitches:    1,
		Outs:       outs,
	}
	if in.Result.IsHit() {
		r.delta.HitsRecorded = 1
	}
	if in.Pitches != nil {
		r.delta.Pitches = *in.Pitches
	}
	r.state.Bases = bases
	r.settle(outs, runs)
	return nil
}

func (r *reducer) VisitRunner(in *RunnerInput) error {
	if !in.From.IsBag() {
		return fmt.Errorf("%w: runner event must start on a base, got %q", ErrInvalidInput, in.From)
	}
	bases := r.state.Bases
	if occ := bases.Get(in.From); occ == nil || !occ.Same(in.Runner) {
		return fmt.Errorf("%w: %s is not on %s", ErrRunnerMismatch, playerName(in.Runner, "runner"), in.From)
	}
	bases.set(in.From, nil)

	var outs, runs int
	switch {
	case in.To == BaseOut:
		outs = 1
	case in.To == BaseHome:
		runs = 1
	case in.To.IsBag():
		if bases.Get(in.To) != nil {
			return fmt.Errorf("%w: %s", ErrBaseOccupied, in.To)
		}
		bases.set(in.To, &in.Runner)
	default:
		return fmt.Errorf("%w: runner destination %q", ErrInvalidInput, in.To)
	}

	r.delta = Delta{RunsScored: runs, Outs: outs}
	r.state.Bases = bases
	r.settle(outs, runs)
	return nil
}

func (r *reducer) VisitSubstitution(in *SubstitutionInput) error {
	if in.Role != RoleRunner || in.Outgoing == nil {
		return nil
	}
	if b, ok := r.state.Bases.Find(in.Outgoing.ID); ok {
		r.state.Bases.set(b, &in.Incoming)
	}
	return nil
}

// settle credits runs to the batting team and applies the half-inning
// rollover once three outs accumulate.
func (r *reducer) settle(outs, runs int) {
	if r.state.Half == HalfTop {
		r.state.Score.Away += runs
	} else {
		r.state.Score.Home += runs
	}
	r.state.Outs += outs
	if r.state.Outs < 3 {
		return
	}
	r.state.Outs = 0
	r.state.Bases = Bases{}
	if r.state.Half == HalfTop {
		r.state.Half = HalfBottom
	} else {
		r.state.Half = HalfTop
		r.state.Inning++
	}
}

// moveRunners applies every advance of one play. All runners leave their
// start bags before anyone lands, so the order of advances does not matter;
// a runner who stays put still blocks his bag.
func moveRunners(bases Bases, advances []RunnerAdvance) (Bases, int, int, int, error) {
	var outs, runs, rbi int
	started := make(map[Base]bool, len(advances))
	for _, adv := range advances {
		switch {
		case adv.Start == BaseBatter:
			if started[BaseBatter] {
				return bases, 0, 0, 0, fmt.Errorf("%w: more than one batter advance", ErrInvalidInput)
			}
		case adv.Start.IsBag():
			if started[adv.Start] {
				return bases, 0, 0, 0, fmt.Errorf("%w: two advances start from %s", ErrInvalidInput, adv.Start)
			}
			if occ := bases.Get(adv.Start); occ == nil || !occ.Same(adv.Runner) {
				return bases, 0, 0, 0, fmt.Errorf("%w: %s is not on %s", ErrRunnerMismatch, playerName(adv.Runner, "runner"), adv.Start)
			}
		default:
			return bases, 0, 0, 0, fmt.Errorf("%w: advance start %q", ErrInvalidInput, adv.Start)
		}
		started[adv.Start] = true
	}

	next := bases
	for _, adv := range advances {
		if adv.Start.IsBag() {
			next.set(adv.Start, nil)
		}
	}

	for _, adv := range advances {
		switch {
		case adv.End == BaseOut:
			outs++
		case adv.End == BaseHome:
			runs++
			if adv.RBIs != nil {
				rbi += *adv.RBIs
			} else {
				rbi++
			}
		case adv.End.IsBag():
			if next.Get(adv.End) != nil {
				return bases, 0, 0, 0, fmt.Errorf("%w: %s", ErrBaseOccupied, adv.End)
			}
			next.set(adv.End, &adv.Runner)
		default:
			return bases, 0, 0, 0, fmt.Errorf("%w: advance end %q", ErrInvalidInput, adv.End)
		}
	}
	return next, outs, runs, rbi, nil
}
