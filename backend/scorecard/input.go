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
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// Kind is the tag of an Input variant.
type Kind string

const (
	KindAtBat        Kind = "at_bat"
	KindRunner       Kind = "runner"
	KindSubstitution Kind = "substitution"
)

// Outcome is the result code of a plate appearance.
type Outcome string

const (
	OutcomeSingle            Outcome = "single"
	OutcomeDouble            Outcome = "double"
	OutcomeTriple            Outcome = "triple"
	OutcomeHomeRun           Outcome = "home_run"
	OutcomeWalk              Outcome = "walk"
	OutcomeHitByPitch        Outcome = "hit_by_pitch"
	OutcomeStrikeoutSwinging Outcome = "strikeout_swinging"
	OutcomeStrikeoutLooking  Outcome = "strikeout_looking"
	OutcomeGroundOut         Outcome = "ground_out"
	OutcomeFlyOut            Outcome = "fly_out"
	OutcomeSacrificeFly      Outcome = "sacrifice_fly"
	OutcomeReachOnError      Outcome = "reach_on_error"
	OutcomeFieldersChoice    Outcome = "fielders_choice"
)

// Outcomes lists every outcome code.
var Outcomes = []Outcome{
	OutcomeSingle, OutcomeDouble, OutcomeTriple, OutcomeHomeRun,
	OutcomeWalk, OutcomeHitByPitch,
	OutcomeStrikeoutSwinging, OutcomeStrikeoutLooking,
	OutcomeGroundOut, OutcomeFlyOut, OutcomeSacrificeFly,
	OutcomeReachOnError, OutcomeFieldersChoice,
}

// Valid reports whether o is a known outcome code.
func (o Outcome) Valid() bool {
	_, ok := outcomeCodes[o]
	return ok
}

// IsHit reports whether o credits the batter with a hit.
func (o Outcome) IsHit() bool {
	switch o {
	case OutcomeSingle, OutcomeDouble, OutcomeTriple, OutcomeHomeRun:
		return true
	}
	return false
}

// IsBattedOut reports whether o always retires at least one runner.
func (o Outcome) IsBattedOut() bool {
	switch o {
	case OutcomeStrikeoutSwinging, OutcomeStrikeoutLooking, OutcomeGroundOut, OutcomeFlyOut, OutcomeSacrificeFly:
		return true
	}
	return false
}

// IsStrikeout reports whether o is either strikeout code.
func (o Outcome) IsStrikeout() bool {
	return o == OutcomeStrikeoutSwinging || o == OutcomeStrikeoutLooking
}

// CountsAsAtBat reports whether the plate appearance is an official at-bat.
func (o Outcome) CountsAsAtBat() bool {
	switch o {
	case OutcomeWalk, OutcomeHitByPitch, OutcomeSacrificeFly:
		return false
	}
	return true
}

// batterDestination is where the batter ends up when the caller supplies no
// explicit advances. ok is false for outs.
func (o Outcome) batterDestination() (Base, bool) {
	switch o {
	case OutcomeSingle, OutcomeWalk, OutcomeHitByPitch, OutcomeReachOnError, OutcomeFieldersChoice:
		return BaseFirst, true
	case OutcomeDouble:
		return BaseSecond, true
	case OutcomeTriple:
		return BaseThird, true
	case OutcomeHomeRun:
		return BaseHome, true
	}
	return "", false
}

// RunnerAction is the cause of a between-pitches runner movement.
type RunnerAction string

const (
	ActionStolenBase     RunnerAction = "stolen_base"
	ActionCaughtStealing RunnerAction = "caught_stealing"
	ActionPickoff        RunnerAction = "pickoff"
	ActionAdvance        RunnerAction = "advance"
)

// SubRole is the role of a substitution.
type SubRole string

const (
	RoleBatter  SubRole = "batter"
	RoleRunner  SubRole = "runner"
	RolePitcher SubRole = "pitcher"
	RoleFielder SubRole = "fielder"
)

// RunnerAdvance is one runner movement caused by a play. RBIs overrides the
// default of one run batted in when End is home.
type RunnerAdvance struct {
	Runner RunnerState `json:"runner"`
	Start  Base        `json:"start"`
	End    Base        `json:"end"`
	RBIs   *int        `json:"rbis,omitempty"`
}

// Input is the caller-supplied part of a ScoreEvent. The set of
// implementations is closed: AtBatInput, RunnerInput and SubstitutionInput.
type Input interface {
	Kind() Kind
	Accept(v InputVisitor) error
}

// Snapshots and queues are stored with gob, which needs the concrete
// types behind Input.
func init() {
	gob.Register(&AtBatInput{})
	gob.Register(&RunnerInput{})
	gob.Register(&SubstitutionInput{})
}

// InputVisitor handles each Input variant. Adding a variant adds a method
// here, so every switch over inputs fails to compile until it handles it.
type InputVisitor interface {
	VisitAtBat(in *AtBatInput) error
	VisitRunner(in *RunnerInput) error
	VisitSubstitution(in *SubstitutionInput) error
}

// AtBatInput records the result of a plate appearance.
type AtBatInput struct {
	Batter   RunnerState     `json:"batter"`
	Result   Outcome         `json:"result"`
	Advances []RunnerAdvance `json:"advances"`
	Pitches  *int            `json:"pitches,omitempty"`
	Notes    string          `json:"notes,omitempty"`
}

func (*AtBatInput) Kind() Kind                    { return KindAtBat }
func (in *AtBatInput) Accept(v InputVisitor) error { return v.VisitAtBat(in) }

// RunnerInput records a runner moving between plate appearances.
type RunnerInput struct {
	Runner RunnerState  `json:"runner"`
	From   Base         `json:"from"`
	To     Base         `json:"to"`
	Action RunnerAction `json:"action"`
	Notes  string       `json:"notes,omitempty"`
}

func (*RunnerInput) Kind() Kind                    { return KindRunner }
func (in *RunnerInput) Accept(v InputVisitor) error { return v.VisitRunner(in) }

// SubstitutionInput records a lineup change.
type SubstitutionInput struct {
	Role     SubRole      `json:"role"`
	Incoming RunnerState  `json:"incoming"`
	Outgoing *RunnerState `json:"outgoing,omitempty"`
	Position string       `json:"position,omitempty"`
	Notes    string       `json:"notes,omitempty"`
}

func (*SubstitutionInput) Kind() Kind                    { return KindSubstitution }
func (in *SubstitutionInput) Accept(v InputVisitor) error { return v.VisitSubstitution(in) }

func (in *AtBatInput) MarshalJSON() ([]byte, error) {
	type alias AtBatInput
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindAtBat, (*alias)(in)})
}

func (in *RunnerInput) MarshalJSON() ([]byte, error) {
	type alias RunnerInput
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindRunner, (*alias)(in)})
}

func (in *SubstitutionInput) MarshalJSON() ([]byte, error) {
	type alias SubstitutionInput
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindSubstitution, (*alias)(in)})
}

// UnmarshalInput decodes a tagged Input.
func UnmarshalInput(data []byte) (Input, error) {
	var tag struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownInput, err)
	}
	var in Input
	switch tag.Type {
	case KindAtBat:
		in = &AtBatInput{}
	case KindRunner:
		in = &RunnerInput{}
	case KindSubstitution:
		in = &SubstitutionInput{}
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnknownInput, tag.Type)
	}
	if err := json.Unmarshal(data, in); err != nil {
		return nil, fmt.Errorf("decode %s input: %w", tag.Type, err)
	}
	return in, nil
}

// UnmarshalJSON decodes the tagged input field.
func (e *ScoreEvent) UnmarshalJSON(data []byte) error {
	type alias ScoreEvent
	aux := struct {
		*alias
		Input json.RawMessage `json:"input"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Input = nil
	if len(aux.Input) == 0 || string(aux.Input) == "null" {
		return nil
	}
	in, err := UnmarshalInput(aux.Input)
	if err != nil {
		return err
	}
	e.Input = in
	return nil
}
