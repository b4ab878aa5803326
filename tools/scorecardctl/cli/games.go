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

	"github.com/spf13/cobra"
	"github.com/ttbt-io/scorecard/backend/scorecard"
)

// GameSummary is one row of the games listing.
type GameSummary struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"accountId,omitempty"`
	Home         string          `json:"home"`
	Away         string          `json:"away"`
	Inning       int             `json:"inning"`
	Half         scorecard.Half  `json:"half"`
	Outs         int             `json:"outs"`
	Score        scorecard.Score `json:"score"`
	Events       int             `json:"events"`
	Unsynced     int             `json:"unsynced"`
	LastSequence int64           `json:"lastSequence"`
}

func summarize(g scorecard.Game) GameSummary {
	s := GameSummary{
		ID:           g.Metadata.ID,
		AccountID:    g.Metadata.AccountID,
		Home:         g.Metadata.Home,
		Away:         g.Metadata.Away,
		Inning:       g.State.Inning,
		Half:         g.State.Half,
		Outs:         g.State.Outs,
		Score:        g.State.Score,
		Events:       len(g.Events),
		LastSequence: g.LastSequence,
	}
	for _, e := range g.Events {
		if e.SyncStatus != scorecard.SyncSynced {
			s.Unsynced++
		}
	}
	return s
}

// NewGamesCommand creates the games command.
func NewGamesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List stored games",
		Long: `List every game stored on this device with its current state.

Examples:
  scorecardctl games --data-dir ./data
  scorecardctl games --sqlite ./scorecard.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGames(rootOpts, cmd)
		},
	}
}

func runGames(opts *RootOptions, cmd *cobra.Command) error {
	sc, st, err := opts.openScorecard(context.Background())
	if err != nil {
		return err
	}
	defer st.close()

	summaries := []GameSummary{}
	for _, id := range sc.GameIDs() {
		g, _ := sc.Game(id)
		summaries = append(summaries, summarize(g))
	}
	return opts.formatter(cmd.OutOrStdout()).Result(summaries, func(w io.Writer) {
		if len(summaries) == 0 {
			fmt.Fprintln(w, "No games stored.")
			return
		}
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s %d at %s %d\t%s %d, %d out\t%d events (%d unsynced)\n",
				s.ID, s.Away, s.Score.Away, s.Home, s.Score.Home, s.Half, s.Inning, s.Outs, s.Events, s.Unsynced)
		}
	})
}
