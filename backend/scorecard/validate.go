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

const (
	maxNotesLength = 500
	maxIDLength    = 128
	maxNameLength  = 100
)

// ValidateInput checks the shape of in without looking at game state.
// Occupancy is checked by Apply.
func ValidateInput(in Input) error {
	if in == nil {
		return ErrUnknownInput
	}
	return in.Accept(validator{})
}

type validator struct{}

func (validator) VisitAtBat(in *AtBatInput) error {
	if err := validatePlayer("batter", in.Batter); err != nil {
		return err
	}
	if !in.Result.Valid() {
		return fmt.Errorf("%w: unknown result %q", ErrInvalidInput, in.Result)
	}
	if in.Pitches != nil && *in.Pitches < 0 {
		return fmt.Errorf("%w: negative pitch count", ErrInvalidInput)
	}
	for i, a := range in.Advances {
		if err := validatePlayer(fmt.Sprintf("advances[%d].runner", i), a.Runner); err != nil {
			return err
		}
		if a.Start != BaseBatter && !a.Start.IsBag() {
			return fmt.Errorf("%w: advances[%d] start %q", ErrInvalidInput, i, a.Start)
		}
		if a.End != BaseHome && a.End != BaseOut && !a.End.IsBag() {
			return fmt.Errorf("%w: advances[%d] end %q", ErrInvalidInput, i, a.End)
		}
		if a.RBIs != nil && *a.RBIs < 0 {
			return fmt.Errorf("%w: advances[%d] negative rbis", ErrInvalidInput, i)
		}
	}
	return validateNotes(in.Notes)
}

func (validator) VisitRunner(in *RunnerInput) error {
	if err := validatePlayer("runner", in.Runner); err != nil {
		return err
	}
	if !in.From.IsBag() {
		return fmt.Errorf("%w: from %q", ErrInvalidInput, in.From)
	}
	if in.To != BaseHome && in.To != BaseOut && !in.To.IsBag() {
		return fmt.Errorf("%w: to %q", ErrInvalidInput, in.To)
	}
	if _, ok := actionCodes[in.Action]; !ok {
		return fmt.Errorf("%w: action %q", ErrInvalidInput, in.Action)
	}
	return validateNotes(in.Notes)
}

func (validator) VisitSubstitution(in *SubstitutionInput) error {
	if _, ok := roleCodes[in.Role]; !ok {
		return fmt.Errorf("%w: role %q", ErrInvalidInput, in.Role)
	}
	if err := validatePlayer("incoming", in.Incoming); err != nil {
		return err
	}
	if in.Outgoing != nil {
		if err := validatePlayer("outgoing", *in.Outgoing); err != nil {
			return err
		}
	}
	if len(in.Position) > maxNameLength {
		return fmt.Errorf("%w: position too long", ErrInvalidInput)
	}
	return validateNotes(in.Notes)
}

func validatePlayer(field string, r RunnerState) error {
	if r.ID == "" {
		return fmt.Errorf("%w: %s id is required", ErrInvalidInput, field)
	}
	if len(r.ID) > maxIDLength {
		return fmt.Errorf("%w: %s id too long", ErrInvalidInput, field)
	}
	if len(r.Name) > maxNameLength {
		return fmt.Errorf("%w: %s name too long", ErrInvalidInput, field)
	}
	return nil
}

func validateNotes(notes string) error {
	if len(notes) > maxNotesLength {
		return fmt.Errorf("%w: notes exceed %d characters", ErrInvalidInput, maxNotesLength)
	}
	return nil
}
