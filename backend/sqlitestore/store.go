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

// Package sqlitestore keeps scorecard snapshots and the sync queue in a
// single SQLite database. It is an alternative to the file-per-game layout
// for devices that score many games.
package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/ttbt-io/scorecard/backend/scorecard"
	"github.com/ttbt-io/scorecard/backend/syncqueue"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements scorecard.SnapshotStore and syncqueue.Store.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrationsFS, "migrations"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveGame upserts one snapshot.
func (s *Store) SaveGame(ctx context.Context, g scorecard.PersistedGame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.Metadata.ID == "" {
		return fmt.Errorf("game id is required")
	}
	snapshot, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode game %s: %w", g.Metadata.ID, err)
	}
	updated := g.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO games (game_id, account_id, last_sequence, snapshot, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(game_id) DO UPDATE SET
	account_id = excluded.account_id,
	last_sequence = excluded.last_sequence,
	snapshot = excluded.snapshot,
	updated_at = excluded.updated_at
`,
		g.Metadata.ID,
		g.Metadata.AccountID,
		g.LastSequence,
		string(snapshot),
		updated.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save game %s: %w", g.Metadata.ID, err)
	}
	return nil
}

// DeleteGame removes a snapshot. Deleting a missing game is not an error.
func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM games WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("delete game %s: %w", gameID, err)
	}
	return nil
}

// LoadGames returns every snapshot, most recently updated first. Rows that
// cannot be decoded are logged and skipped.
func (s *Store) LoadGames(ctx context.Context) ([]scorecard.PersistedGame, error) {
	return s.queryGames(ctx, `SELECT game_id, snapshot FROM games ORDER BY updated_at DESC, game_id`)
}

// GamesForAccount returns the snapshots of one account.
func (s *Store) GamesForAccount(ctx context.Context, accountID string) ([]scorecard.PersistedGame, error) {
	return s.queryGames(ctx, `SELECT game_id, snapshot FROM games WHERE account_id = ? ORDER BY updated_at DESC, game_id`, accountID)
}

func (s *Store) queryGames(ctx context.Context, query string, args ...any) ([]scorecard.PersistedGame, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var games []scorecard.PersistedGame
	for rows.Next() {
		var id, snapshot string
		if err := rows.Scan(&id, &snapshot); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		var g scorecard.PersistedGame
		if err := json.Unmarshal([]byte(snapshot), &g); err != nil {
			log.Printf("[STORE] Warning: could not decode game '%s': %v", id, err)
			continue
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return games, nil
}

// SaveQueue replaces the stored queue.
func (s *Store) SaveQueue(ctx context.Context, q syncqueue.PersistedQueue) error {
	mutations := q.Mutations
	if mutations == nil {
		mutations = []syncqueue.Mutation{}
	}
	payload, err := json.Marshal(mutations)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO sync_queue (id, schema_version, stored_at, mutations)
VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	schema_version = excluded.schema_version,
	stored_at = excluded.stored_at,
	mutations = excluded.mutations
`,
		q.SchemaVersion,
		q.StoredAt.UTC().UnixMilli(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	return nil
}

// LoadQueue reads the stored queue. It reports false when none was saved.
func (s *Store) LoadQueue(ctx context.Context) (syncqueue.PersistedQueue, bool, error) {
	var (
		q        syncqueue.PersistedQueue
		storedAt int64
		payload  string
	)
	err := s.sqlDB.QueryRowContext(ctx, `SELECT schema_version, stored_at, mutations FROM sync_queue WHERE id = 1`).Scan(&q.SchemaVersion, &storedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return syncqueue.PersistedQueue{}, false, nil
	}
	if err != nil {
		return syncqueue.PersistedQueue{}, false, fmt.Errorf("load queue: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &q.Mutations); err != nil {
		return syncqueue.PersistedQueue{}, false, fmt.Errorf("decode queue: %w", err)
	}
	q.StoredAt = time.UnixMilli(storedAt).UTC()
	return q, true, nil
}
