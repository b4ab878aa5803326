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

package backend

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"

	"github.com/ttbt-io/scorecard/backend/scorecard"
)

// ErrInvalidSubmission wraps every submission validation failure.
var ErrInvalidSubmission = errors.New("invalid submission")

// uuidRegex is a regex for standard UUIDs (8-4-4-4-12 hex digits)
var uuidRegex = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)

// idRegex limits path identifiers to characters that need no escaping.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// isValidUUID checks if the string is a valid UUID.
func isValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

// isValidEmail checks if the string is a valid email address.
func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// validateStringLen checks if the string length is within the limit.
func validateStringLen(s string, max int, name string) error {
	if len(s) > max {
		return fmt.Errorf("%s too long (max %d chars)", name, max)
	}
	return nil
}

// validateID checks an account, game or event identifier.
func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s is required", name)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%s is invalid", name)
	}
	return nil
}

// ValidateSubmission checks a score-event submission before it touches the
// event log.
func ValidateSubmission(req SubmitRequest) error {
	if err := validateSubmission(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	return nil
}

func validateSubmission(req SubmitRequest) error {
	switch req.Type {
	case SubmitCreate, SubmitUpdate, SubmitDelete:
	default:
		return fmt.Errorf("unknown type %q", req.Type)
	}
	if err := validateID(req.ClientEventID, "clientEventId"); err != nil {
		return err
	}
	if req.ServerEventID != "" && !isValidUUID(req.ServerEventID) {
		return fmt.Errorf("serverEventId is not a UUID")
	}
	if req.Sequence < 0 {
		return fmt.Errorf("negative sequence %d", req.Sequence)
	}
	if err := validateStringLen(req.Audit.CreatedBy, 254, "audit.createdBy"); err != nil {
		return err
	}
	if req.Audit.CreatedBy != "" && !isValidEmail(req.Audit.CreatedBy) {
		return fmt.Errorf("audit.createdBy is not an email address")
	}
	if err := validateStringLen(req.Audit.DeviceID, 128, "audit.deviceId"); err != nil {
		return err
	}

	if req.Type == SubmitDelete {
		return nil
	}
	if req.Sequence == 0 {
		return fmt.Errorf("sequence is required")
	}
	if req.Event == nil || req.Event.Input == nil {
		return fmt.Errorf("event input is required for %s", req.Type)
	}
	if err := scorecard.ValidateInput(req.Event.Input); err != nil {
		return err
	}
	return nil
}
