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
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ttbt-io/scorecard/backend/scorecard"
	"github.com/ttbt-io/scorecard/backend/syncqueue"
)

// RemoteApplier receives events other devices created or deleted.
// *Session implements it.
type RemoteApplier interface {
	IngestRemote(ctx context.Context, gameID string, e scorecard.ScoreEvent) (scorecard.ScoreEvent, error)
	RemoveRemote(ctx context.Context, gameID, serverID string) (bool, error)
}

// FeedOptions configures a Feed.
type FeedOptions struct {
	// URL is the websocket endpoint, e.g. "wss://example.com/api/ws".
	URL       string
	AccountID string
	GameID    string
	// DeviceID identifies this device; its own events are ignored.
	DeviceID string
	// Header is sent with the handshake (cookies, Authorization).
	Header http.Header
	Target RemoteApplier
	Dialer *websocket.Dialer

	// Reconnect delays follow the sync queue backoff.
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Debug      bool
}

// Feed applies live updates from the server to a local session.
type Feed struct {
	opts FeedOptions
}

func NewFeed(opts FeedOptions) *Feed {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = time.Minute
	}
	return &Feed{opts: opts}
}

func (f *Feed) endpoint() (string, error) {
	u, err := url.Parse(f.opts.URL)
	if err != nil {
		return "", fmt.Errorf("feed url: %w", err)
	}
	q := u.Query()
	q.Set("accountId", f.opts.AccountID)
	q.Set("gameId", f.opts.GameID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run keeps a connection open until ctx is done, reconnecting with backoff
// after failures.
func (f *Feed) Run(ctx context.Context) error {
	attempts := 0
	for {
		connected, err := f.RunOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			attempts = 0
		}
		attempts++
		delay := syncqueue.Backoff(attempts, f.opts.MinBackoff, f.opts.MaxBackoff)
		log.Printf("[FEED] Connection to %s/%s lost, retrying in %s: %v", f.opts.AccountID, f.opts.GameID, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// RunOnce dials the feed and applies messages until the connection drops
// or ctx is done. It reports whether the handshake succeeded.
func (f *Feed) RunOnce(ctx context.Context) (bool, error) {
	endpoint, err := f.endpoint()
	if err != nil {
		return false, err
	}
	conn, resp, err := f.opts.Dialer.DialContext(ctx, endpoint, f.opts.Header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial feed: %w (status %d)", err, resp.StatusCode)
		}
		return false, fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if f.opts.Debug {
		log.Printf("[FEED] Connected to %s/%s", f.opts.AccountID, f.opts.GameID)
	}
	for {
		var msg FeedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return true, err
		}
		if err := f.handle(ctx, msg); err != nil {
			log.Printf("[FEED] Could not apply %s: %v", msg.Type, err)
		}
	}
}

func (f *Feed) handle(ctx context.Context, msg FeedMessage) error {
	switch msg.Type {
	case MsgTypeScoreEvent, MsgTypeScoreEventDeleted:
	case MsgTypeError:
		return fmt.Errorf("server error: %s", msg.Error)
	default:
		return nil
	}
	if msg.Event == nil || msg.GameID != f.opts.GameID {
		return nil
	}
	if f.opts.DeviceID != "" && msg.Event.DeviceID == f.opts.DeviceID {
		return nil
	}
	if msg.Type == MsgTypeScoreEventDeleted {
		_, err := f.opts.Target.RemoveRemote(ctx, msg.GameID, msg.Event.ServerID)
		return err
	}
	_, err := f.opts.Target.IngestRemote(ctx, msg.GameID, *msg.Event)
	return err
}
