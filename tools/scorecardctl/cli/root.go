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

// Package cli implements the scorecardctl commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/ttbt-io/scorecard/backend"
	"github.com/ttbt-io/scorecard/backend/scorecard"
	"github.com/ttbt-io/scorecard/backend/sqlitestore"
	"github.com/ttbt-io/scorecard/backend/syncqueue"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DataDir string
	SQLite  string
	Format  string // "json" | "text"
	Verbose bool

	// Passphrase unlocks an encrypted data dir. Read from SK_MASTER_KEY only.
	Passphrase string
	// QueueRetention is how long a stored queue stays valid.
	QueueRetention time.Duration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. Flag defaults come from the
// SK_* environment.
func NewRootCommand() *cobra.Command {
	cfg, err := backend.LoadConfig()
	if err != nil {
		cfg = backend.Config{DataDir: "data", QueueRetention: syncqueue.DefaultRetention}
	}
	opts := &RootOptions{Passphrase: cfg.MasterKey, QueueRetention: cfg.QueueRetention}

	cmd := &cobra.Command{
		Use:   "scorecardctl",
		Short: "Inspect local scorecard data",
		Long:  "Inspect the games, event logs and sync queue a scoring device keeps on disk.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", cfg.DataDir, "device data directory")
	cmd.PersistentFlags().StringVar(&opts.SQLite, "sqlite", cfg.SQLitePath, "SQLite database to use instead of the data directory")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", cfg.Debug, "verbose output")

	cmd.AddCommand(NewGamesCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))

	return cmd
}

// localStores are the persisted stores of one device.
type localStores struct {
	games scorecard.SnapshotStore
	queue syncqueue.Store
	close func() error
}

func (o *RootOptions) openStores() (*localStores, error) {
	if o.SQLite != "" {
		db, err := sqlitestore.Open(o.SQLite)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "open database", err)
		}
		return &localStores{games: db, queue: db, close: db.Close}, nil
	}
	s, err := backend.OpenStorage(o.DataDir, o.Passphrase)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open data dir", err)
	}
	gs := backend.NewGameStore(o.DataDir, s)
	gs.Debug = o.Verbose
	return &localStores{games: gs, queue: backend.NewQueueStore(s), close: func() error { return nil }}, nil
}

// openScorecard hydrates every stored game.
func (o *RootOptions) openScorecard(ctx context.Context) (*scorecard.Scorecard, *localStores, error) {
	st, err := o.openStores()
	if err != nil {
		return nil, nil, err
	}
	sc := scorecard.New(scorecard.Options{Store: st.games, Debug: o.Verbose})
	if err := sc.Hydrate(ctx); err != nil {
		st.close()
		return nil, nil, WrapExitError(ExitCommandError, "load games", err)
	}
	return sc, st, nil
}

func gameByID(sc *scorecard.Scorecard, id string) (scorecard.Game, error) {
	g, ok := sc.Game(id)
	if !ok {
		return scorecard.Game{}, WrapExitError(ExitCommandError, id, scorecard.ErrGameNotFound)
	}
	return g, nil
}

func (o *RootOptions) formatter(w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: w, Verbose: o.Verbose}
}
