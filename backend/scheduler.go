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
	"log"
	"sync"
	"time"

	"github.com/ttbt-io/scorecard/backend/syncqueue"
)

// DefaultFlushInterval is how often the scheduler flushes without a nudge.
const DefaultFlushInterval = 30 * time.Second

// Flusher is anything that can drain a sync queue.
type Flusher interface {
	Flush(ctx context.Context, token string) syncqueue.FlushResult
}

// FlushScheduler drives a queue from a ticker and from explicit nudges,
// such as connectivity returning or the app coming to the foreground.
type FlushScheduler struct {
	Queue    Flusher
	Interval time.Duration
	// Online reports connectivity. Nil means always online.
	Online func() bool
	// Token returns the bearer token for submissions.
	Token func() string
	Debug bool

	once  sync.Once
	nudge chan struct{}
}

func (fs *FlushScheduler) init() {
	fs.once.Do(func() {
		fs.nudge = make(chan struct{}, 1)
	})
}

// Nudge requests a flush as soon as possible. Nudges coalesce.
func (fs *FlushScheduler) Nudge() {
	fs.init()
	select {
	case fs.nudge <- struct{}{}:
	default:
	}
}

// Run flushes on every tick and nudge until ctx is done.
func (fs *FlushScheduler) Run(ctx context.Context) error {
	fs.init()
	interval := fs.Interval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-fs.nudge:
		}
		fs.flush(ctx)
	}
}

func (fs *FlushScheduler) flush(ctx context.Context) {
	if fs.Online != nil && !fs.Online() {
		return
	}
	token := ""
	if fs.Token != nil {
		token = fs.Token()
	}
	res := fs.Queue.Flush(ctx, token)
	if fs.Debug && res.Attempted > 0 {
		log.Printf("[SYNC] Scheduled flush: %d attempted, %d succeeded, %d failed", res.Attempted, res.Succeeded, res.Failed)
	}
}
