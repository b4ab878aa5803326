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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidateSubmission(t *testing.T) {
	validUUID := "aaaaaaaa-aaaa-4aaa-aaaa-aaaaaaaaaaaa"
	single := `{"type": "at_bat", "batter": {"id": "p-alex", "name": "Alex"}, "result": "single",
		"advances": [{"runner": {"id": "p-alex"}, "start": "batter", "end": "first"}]}`

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "Valid create",
			body: fmt.Sprintf(`{
				"type": "create",
				"clientEventId": "dev-a-1",
				"sequence": 1,
				"audit": {"createdBy": "scorer@example.com", "deviceId": "dev-a"},
				"event": {"id": "dev-a-1", "sequence": 1, "input": %s}
			}`, single),
		},
		{
			name: "Valid update",
			body: fmt.Sprintf(`{
				"type": "update",
				"clientEventId": "dev-a-1",
				"serverEventId": "%s",
				"sequence": 1,
				"event": {"id": "dev-a-1", "sequence": 1, "input": {"type": "runner", "runner": {"id": "p-alex"}, "from": "first", "to": "second", "action": "stolen_base"}}
			}`, validUUID),
		},
		{
			name: "Valid delete without event",
			body: fmt.Sprintf(`{"type": "delete", "clientEventId": "dev-a-1", "serverEventId": "%s", "sequence": 1}`, validUUID),
		},
		{
			name:    "Unknown type",
			body:    fmt.Sprintf(`{"type": "upsert", "clientEventId": "dev-a-1", "sequence": 1, "event": {"input": %s}}`, single),
			wantErr: true,
		},
		{
			name:    "Missing client event id",
			body:    fmt.Sprintf(`{"type": "create", "sequence": 1, "event": {"input": %s}}`, single),
			wantErr: true,
		},
		{
			name:    "Client event id with slash",
			body:    fmt.Sprintf(`{"type": "create", "clientEventId": "dev/a", "sequence": 1, "event": {"input": %s}}`, single),
			wantErr: true,
		},
		{
			name:    "Server event id not a UUID",
			body:    fmt.Sprintf(`{"type": "update", "clientEventId": "dev-a-1", "serverEventId": "srv-1", "sequence": 1, "event": {"input": %s}}`, single),
			wantErr: true,
		},
		{
			name:    "Missing sequence",
			body:    fmt.Sprintf(`{"type": "create", "clientEventId": "dev-a-1", "event": {"input": %s}}`, single),
			wantErr: true,
		},
		{
			name:    "Negative sequence on delete",
			body:    `{"type": "delete", "clientEventId": "dev-a-1", "sequence": -1}`,
			wantErr: true,
		},
		{
			name:    "Missing input",
			body:    `{"type": "create", "clientEventId": "dev-a-1", "sequence": 1, "event": {"id": "dev-a-1"}}`,
			wantErr: true,
		},
		{
			name:    "Unknown input type",
			body:    `{"type": "create", "clientEventId": "dev-a-1", "sequence": 1, "event": {"input": {"type": "balk"}}}`,
			wantErr: true,
		},
		{
			name:    "Unknown result",
			body:    `{"type": "create", "clientEventId": "dev-a-1", "sequence": 1, "event": {"input": {"type": "at_bat", "batter": {"id": "p-alex"}, "result": "foul_tip"}}}`,
			wantErr: true,
		},
		{
			name:    "Batter without id",
			body:    `{"type": "create", "clientEventId": "dev-a-1", "sequence": 1, "event": {"input": {"type": "at_bat", "batter": {"name": "Alex"}, "result": "walk"}}}`,
			wantErr: true,
		},
		{
			name:    "Creator not an email",
			body:    fmt.Sprintf(`{"type": "create", "clientEventId": "dev-a-1", "sequence": 1, "audit": {"createdBy": "scorer"}, "event": {"input": %s}}`, single),
			wantErr: true,
		},
		{
			name:    "Device id too long",
			body:    fmt.Sprintf(`{"type": "create", "clientEventId": "dev-a-1", "sequence": 1, "audit": {"deviceId": "%s"}, "event": {"input": %s}}`, strings.Repeat("d", 129), single),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req SubmitRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if err == nil {
				err = ValidateSubmission(req)
				if err != nil && !errors.Is(err, ErrInvalidSubmission) {
					t.Errorf("error %v does not wrap ErrInvalidSubmission", err)
				}
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSubmission() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	for _, tc := range []struct {
		id string
		ok bool
	}{
		{"acct-1", true},
		{"2026-04-01.game:7_b", true},
		{"", false},
		{"a/b", false},
		{"a b", false},
		{strings.Repeat("x", 128), true},
		{strings.Repeat("x", 129), false},
	} {
		if err := validateID(tc.id, "id"); (err == nil) != tc.ok {
			t.Errorf("validateID(%q) = %v, want ok=%v", tc.id, err, tc.ok)
		}
	}
}
