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

package cli

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"slices"

	"github.com/spf13/cobra"
	"github.com/ttbt-io/scorecard/backend/scorecard"
)

// ReplayResult is the outcome of replaying one stored game.
type ReplayResult struct {
	GameID        string                 `json:"gameId"`
	Events        int                    `json:"events"`
	LastSequence  int64                  `json:"lastSequence"`
	State         scorecard.GameState    `json:"state"`
	Derived       scorecard.DerivedStats `json:"derived"`
	Deterministic bool                   `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <game-id>",
		Short: "Replay a stored game and verify determinism",
		Long: `Rebuild a game's state from its stored event inputs, twice, and report
the resulting state and box score.

Exit codes:
  0 - The game replays and both passes agree
  1 - An event no longer replays, or the passes differ
  2 - Command error (game not found, unreadable data)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd, args[0])
		},
	}
}

func runReplay(opts *RootOptions, cmd *cobra.Command, gameID string) error {
	ctx := context.Background()
	st, err := opts.openStores()
	if err != nil {
		return err
	}
	defer st.close()

	// Read the raw snapshots so a game that no longer replays is reported
	// rather than skipped.
	stored, err := st.games.LoadGames(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "load games", err)
	}
	var (
		p     scorecard.PersistedGame
		found bool
	)
	for _, g := range stored {
		if g.Metadata.ID == gameID {
			p, found = g, true
			break
		}
	}
	if !found {
		return WrapExitError(ExitCommandError, gameID, scorecard.ErrGameNotFound)
	}

	first, err := scorecard.Restore(p)
	if err != nil {
		return WrapExitError(ExitFailure, "replay failed", err)
	}
	second, err := scorecard.Recompute(first)
	if err != nil {
		return WrapExitError(ExitFailure, "second replay failed", err)
	}

	res := ReplayResult{
		GameID:        gameID,
		Events:        len(first.Events),
		LastSequence:  first.LastSequence,
		State:         first.State,
		Derived:       first.Derived,
		Deterministic: sameReplay(first, second),
	}
	if err := opts.formatter(cmd.OutOrStdout()).Result(res, func(w io.Writer) { printReplay(w, res) }); err != nil {
		return err
	}
	if !res.Deterministic {
		return NewExitError(ExitFailure, "replay is not deterministic")
	}
	return nil
}

func sameReplay(a, b scorecard.Game) bool {
	return reflect.DeepEqual(a.State, b.State) &&
		a.Derived == b.Derived &&
		a.LastSequence == b.LastSequence &&
		slices.EqualFunc(a.Events, b.Events, func(x, y scorecard.ScoreEvent) bool { return reflect.DeepEqual(x, y) })
}

func printReplay(w io.Writer, r ReplayResult) {
	s := r.State
	fmt.Fprintf(w, "Game %s: %d events, last sequence %d\n", r.GameID, r.Events, r.LastSequence)
	fmt.Fprintf(w, "State: %s %d, %d out, away %d home %d\n", s.Half, s.Inning, s.Outs, s.Score.Away, s.Score.Home)
	for _, b := range scorecard.Bags {
		if runner := s.Bases.Get(b); runner != nil {
			fmt.Fprintf(w, "  %s: %s\n", b, runner.Name)
		}
	}
	bat := r.Derived.Batting
	fmt.Fprintf(w, "Batting: AB %d, R %d, H %d, RBI %d, BB %d, K %d\n", bat.AtBats, bat.Runs, bat.Hits, bat.RBI, bat.Walks, bat.Strikeouts)
	fmt.Fprintf(w, "Pitching: %d pitches\n", r.Derived.Pitching.TotalPitches)
	if r.Deterministic {
		fmt.Fprintln(w, "Deterministic: yes")
	} else {
		fmt.Fprintln(w, "Deterministic: NO")
	}
}
