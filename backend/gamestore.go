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
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/c2FmZQ/storage"
	"github.com/ttbt-io/scorecard/backend/scorecard"
)

// GameStore persists scorecard snapshots, one file per game, through
// c2FmZQ storage. It implements scorecard.SnapshotStore.
type GameStore struct {
	DataDir string
	Debug   bool
	storage *storage.Storage
	mu      sync.Map // gameID -> *sync.Mutex
}

// NewGameStore creates a new GameStore.
func NewGameStore(dataDir string, s *storage.Storage) *GameStore {
	return &GameStore{
		DataDir: dataDir,
		storage: s,
	}
}

func (gs *GameStore) lock(gameID string) func() {
	m, _ := gs.mu.LoadOrStore(gameID, &sync.Mutex{})
	mutex := m.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

func gameFilename(gameID string) string {
	return filepath.Join(gamesDir, url.PathEscape(gameID)+".json")
}

// SaveGame writes the snapshot atomically.
func (gs *GameStore) SaveGame(_ context.Context, g scorecard.PersistedGame) error {
	id := g.Metadata.ID
	if id == "" {
		return errors.New("save game: missing game id")
	}
	defer gs.lock(id)()

	if err := gs.storage.SaveDataFile(gameFilename(id), &g); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	if gs.Debug {
		log.Printf("[STORE] Saved game %s (%d events, last sequence %d)", id, len(g.Events), g.LastSequence)
	}
	return nil
}

// LoadGame reads one snapshot.
func (gs *GameStore) LoadGame(gameID string) (scorecard.PersistedGame, error) {
	defer gs.lock(gameID)()

	var g scorecard.PersistedGame
	if err := gs.storage.ReadDataFile(gameFilename(gameID), &g); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return scorecard.PersistedGame{}, os.ErrNotExist
		}
		return scorecard.PersistedGame{}, fmt.Errorf("ReadDataFile: %w", err)
	}
	return g, nil
}

// DeleteGame removes a snapshot. Deleting a missing game is not an error.
func (gs *GameStore) DeleteGame(_ context.Context, gameID string) error {
	defer gs.lock(gameID)()

	if err := os.Remove(filepath.Join(gs.DataDir, gameFilename(gameID))); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove game %s: %w", gameID, err)
	}
	return nil
}

// LoadGames reads every stored snapshot. Files that cannot be decoded are
// logged and skipped.
func (gs *GameStore) LoadGames(ctx context.Context) ([]scorecard.PersistedGame, error) {
	var out []scorecard.PersistedGame
	for g, err := range gs.ListAllGames() {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// ListAllGames returns an iterator over every snapshot in the games
// directory.
func (gs *GameStore) ListAllGames() iter.Seq2[scorecard.PersistedGame, error] {
	return func(yield func(scorecard.PersistedGame, error) bool) {
		files, err := os.ReadDir(filepath.Join(gs.DataDir, gamesDir))
		if err != nil && !os.IsNotExist(err) {
			yield(scorecard.PersistedGame{}, fmt.Errorf("could not read games directory: %w", err))
			return
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			gameID, err := url.PathUnescape(strings.TrimSuffix(file.Name(), ".json"))
			if err != nil {
				continue
			}
			g, err := gs.LoadGame(gameID)
			if err != nil {
				log.Printf("[STORE] Warning: could not load game '%s': %v", gameID, err)
				continue
			}
			if !yield(g, nil) {
				return
			}
		}
	}
}
