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
	"net/http"
	"sync"
	"time"
)

const (
	LatencyBuckets    = 41
	LatencyBucketSize = 25 * time.Millisecond
)

// Histogram counts submission latencies in fixed-width buckets. The last
// bucket collects everything slower.
type Histogram struct {
	Buckets [LatencyBuckets]uint64 `json:"b"`
	Count   uint64                 `json:"c"`
	Sum     float64                `json:"s"` // milliseconds
}

func (h *Histogram) Add(d time.Duration) {
	idx := int(d / LatencyBucketSize)
	if idx >= LatencyBuckets {
		idx = LatencyBuckets - 1
	}
	if idx < 0 {
		idx = 0
	}
	h.Buckets[idx]++
	h.Count++
	h.Sum += float64(d.Milliseconds())
}

func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	for i := range LatencyBuckets {
		h.Buckets[i] += other.Buckets[i]
	}
	h.Count += other.Count
	h.Sum += other.Sum
}

// Mean returns the average latency in milliseconds.
func (h *Histogram) Mean() float64 {
	if h.Count == 0 {
		return 0
	}
	return h.Sum / float64(h.Count)
}

// ResolutionConfig defines one ring of time buckets.
type ResolutionConfig struct {
	Name       string        `json:"name"`
	Resolution time.Duration `json:"resolution"`
	Buckets    int           `json:"buckets"`
}

var DefaultResolutions = []ResolutionConfig{
	{"1m", time.Minute, 120},
	{"1h", time.Hour, 168},
}

// Point is a single bucket of a time series.
type Point[T any] struct {
	Timestamp int64 `json:"t"`
	Value     T     `json:"v"`
}

// RingBuffer is a fixed-size circular buffer of time buckets.
type RingBuffer[T any] struct {
	Config ResolutionConfig `json:"config"`
	Data   []Point[T]       `json:"data"`
	Head   int              `json:"head"` // next write position
}

func NewRingBuffer[T any](cfg ResolutionConfig) *RingBuffer[T] {
	return &RingBuffer[T]{
		Config: cfg,
		Data:   make([]Point[T], cfg.Buckets),
	}
}

// At returns the bucket covering timestamp, starting a new one (and
// overwriting the oldest) when timestamp is past the newest bucket.
func (rb *RingBuffer[T]) At(timestamp int64) *T {
	resSec := int64(rb.Config.Resolution.Seconds())
	alignedTs := (timestamp / resSec) * resSec

	prevIdx := (rb.Head - 1 + len(rb.Data)) % len(rb.Data)
	if rb.Data[prevIdx].Timestamp == alignedTs {
		return &rb.Data[prevIdx].Value
	}
	rb.Data[rb.Head] = Point[T]{Timestamp: alignedTs}
	v := &rb.Data[rb.Head].Value
	rb.Head = (rb.Head + 1) % len(rb.Data)
	return v
}

// GetPoints returns the used buckets, oldest first.
func (rb *RingBuffer[T]) GetPoints() []Point[T] {
	points := make([]Point[T], 0, len(rb.Data))
	for i := range rb.Data {
		idx := (rb.Head + i) % len(rb.Data)
		if rb.Data[idx].Timestamp > 0 {
			points = append(points, rb.Data[idx])
		}
	}
	return points
}

// SubmissionStats counts score-event submissions by outcome.
type SubmissionStats struct {
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Deleted   int       `json:"deleted"`
	Conflicts int       `json:"conflicts"`
	Rejected  int       `json:"rejected"`
	Errors    int       `json:"errors"`
	Latency   Histogram `json:"latency"`
}

func (s *SubmissionStats) record(typ string, status int, d time.Duration) {
	switch {
	case status == http.StatusOK:
		switch typ {
		case SubmitCreate:
			s.Created++
		case SubmitUpdate:
			s.Updated++
		case SubmitDelete:
			s.Deleted++
		}
	case status == http.StatusConflict:
		s.Conflicts++
	case status >= 500:
		s.Errors++
	default:
		s.Rejected++
	}
	s.Latency.Add(d)
}

// Monitor aggregates submission activity into fixed-size time series.
type Monitor struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	totals  SubmissionStats
	series  map[string]*RingBuffer[SubmissionStats]
}

func NewMonitor() *Monitor {
	m := &Monitor{
		now:    time.Now,
		series: make(map[string]*RingBuffer[SubmissionStats]),
	}
	for _, cfg := range DefaultResolutions {
		m.series[cfg.Name] = NewRingBuffer[SubmissionStats](cfg)
	}
	m.started = m.now()
	return m
}

// RecordSubmission counts one handled submission. status is the HTTP
// status written to the client.
func (m *Monitor) RecordSubmission(typ string, status int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.now().Unix()
	m.totals.record(typ, status, d)
	for _, rb := range m.series {
		rb.At(ts).record(typ, status, d)
	}
}

// MonitorReport is the JSON body of the metrics endpoint.
type MonitorReport struct {
	UptimeSeconds int64                               `json:"uptimeSeconds"`
	Watchers      int                                 `json:"watchers"`
	WatchedGames  int                                 `json:"watchedGames"`
	Totals        SubmissionStats                     `json:"totals"`
	Series        map[string][]Point[SubmissionStats] `json:"series"`
}

// Report snapshots the counters together with the live-feed audience.
func (m *Monitor) Report(hm *HubManager) MonitorReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := MonitorReport{
		UptimeSeconds: int64(m.now().Sub(m.started).Seconds()),
		Totals:        m.totals,
		Series:        make(map[string][]Point[SubmissionStats], len(m.series)),
	}
	for name, rb := range m.series {
		r.Series[name] = rb.GetPoints()
	}
	if hm != nil {
		r.Watchers, r.WatchedGames = hm.Watchers()
	}
	return r
}
