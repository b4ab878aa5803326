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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/ttbt-io/scorecard/backend/scorecard"
	"github.com/ttbt-io/scorecard/backend/syncqueue"
)

// SubmitRequest is the body of a score-event submission.
type SubmitRequest struct {
	Type          string                `json:"type"`
	ClientEventID string                `json:"clientEventId"`
	Sequence      int64                 `json:"sequence"`
	Audit         scorecard.Audit       `json:"audit"`
	ServerEventID string                `json:"serverEventId,omitempty"`
	Event         *scorecard.ScoreEvent `json:"event,omitempty"`
}

// SubmitError is a submission the server answered with a non-2xx status.
type SubmitError struct {
	StatusCode int
	Message    string
}

func (e *SubmitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server rejected submission: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server rejected submission: %d %s", e.StatusCode, e.Message)
}

// IsConflict reports whether the server refused the change as conflicting
// with its canonical log. Retrying will not help.
func (e *SubmitError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// HTTPTransport submits queued mutations to the score-events endpoint. It
// implements syncqueue.Transport.
type HTTPTransport struct {
	// BaseURL is the API root, e.g. "https://example.com/api".
	BaseURL string
	Client  *http.Client
	Debug   bool
}

// NewHTTPTransport returns a transport using a pooled client without
// shared global state.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  cleanhttp.DefaultPooledClient(),
	}
}

func (t *HTTPTransport) endpoint(accountID, gameID string) string {
	return fmt.Sprintf("%s/accounts/%s/games/%s/score-events", strings.TrimRight(t.BaseURL, "/"), url.PathEscape(accountID), url.PathEscape(gameID))
}

// Submit posts one mutation and decodes the server's acknowledgment.
func (t *HTTPTransport) Submit(ctx context.Context, token string, m syncqueue.Mutation) (syncqueue.SubmitResult, error) {
	body, err := json.Marshal(SubmitRequest{
		Type:          string(m.Type),
		ClientEventID: m.EventID,
		Sequence:      m.Sequence,
		Audit:         m.Audit,
		ServerEventID: m.ServerID,
		Event:         m.Payload,
	})
	if err != nil {
		return syncqueue.SubmitResult{}, fmt.Errorf("encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(m.AccountID, m.GameID), bytes.NewReader(body))
	if err != nil {
		return syncqueue.SubmitResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := t.Client
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return syncqueue.SubmitResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return syncqueue.SubmitResult{}, &SubmitError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var res syncqueue.SubmitResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRequestBody)).Decode(&res); err != nil {
		return syncqueue.SubmitResult{}, fmt.Errorf("decode acknowledgment: %w", err)
	}
	if res.ServerEventID == "" && m.Type != syncqueue.TypeDelete {
		return syncqueue.SubmitResult{}, fmt.Errorf("acknowledgment for %s has no serverEventId", m.EventID)
	}
	if t.Debug {
		log.Printf("[SYNC] %s %s acknowledged as %s (sequence %d)", m.Type, m.EventID, res.ServerEventID, res.Sequence)
	}
	return res, nil
}

// ListEvents fetches the server's canonical log for a game.
func (t *HTTPTransport) ListEvents(ctx context.Context, token, accountID, gameID string) ([]scorecard.ScoreEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint(accountID, gameID), nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := t.Client
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &SubmitError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	var out struct {
		Events []scorecard.ScoreEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return out.Events, nil
}
