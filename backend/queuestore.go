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
	"errors"
	"fmt"
	"io/fs"

	"github.com/c2FmZQ/storage"
	"github.com/ttbt-io/scorecard/backend/syncqueue"
)

// QueueStore keeps the sync queue in a single storage file. It implements
// syncqueue.Store.
type QueueStore struct {
	storage *storage.Storage
	name    string
}

// NewQueueStore returns a QueueStore writing to the default queue file.
func NewQueueStore(s *storage.Storage) *QueueStore {
	return &QueueStore{storage: s, name: queueFile}
}

func (qs *QueueStore) SaveQueue(_ context.Context, q syncqueue.PersistedQueue) error {
	if err := qs.storage.SaveDataFile(qs.name, &q); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

func (qs *QueueStore) LoadQueue(_ context.Context) (syncqueue.PersistedQueue, bool, error) {
	var q syncqueue.PersistedQueue
	if err := qs.storage.ReadDataFile(qs.name, &q); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return syncqueue.PersistedQueue{}, false, nil
		}
		return syncqueue.PersistedQueue{}, false, fmt.Errorf("ReadDataFile: %w", err)
	}
	return q, true, nil
}
