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

import "errors"

var (
	// ErrRunnerMismatch is returned when a play names a runner who is not on
	// the stated base.
	ErrRunnerMismatch = errors.New("runner is not on the stated base")
	// ErrBaseOccupied is returned when a runner would land on an occupied bag,
	// or two advances in one play target the same bag.
	ErrBaseOccupied = errors.New("destination base is occupied")
	// ErrUnknownInput is returned for an input with an unrecognized shape.
	ErrUnknownInput = errors.New("unknown event input")
	// ErrInvalidInput is returned for a structurally invalid input.
	ErrInvalidInput = errors.New("invalid event input")

	ErrGameNotFound  = errors.New("game not found")
	ErrEventNotFound = errors.New("event not found")
)
