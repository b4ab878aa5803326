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

package syncqueue

import "time"

const (
	DefaultBaseDelay = 5 * time.Second
	DefaultMaxDelay  = 5 * time.Minute
	DefaultRetention = 7 * 24 * time.Hour

	// CurrentSchemaVersion is the version of PersistedQueue this package
	// writes. Stored queues with any other version are discarded.
	CurrentSchemaVersion = 1
)

// Backoff returns min(maxDelay, base*2^(attempts-1)). attempts below one is
// treated as one.
func Backoff(attempts int, base, maxDelay time.Duration) time.Duration {
	d := base
	for i := 1; i < attempts && d < maxDelay; i++ {
		d *= 2
	}
	return min(d, maxDelay)
}
