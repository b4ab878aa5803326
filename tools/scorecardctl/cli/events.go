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
	"strings"

	"github.com/spf13/cobra"
	"github.com/ttbt-io/scorecard/backend/scorecard"
	"github.com/ttbt-io/scorecard/backend/search"
)

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events <game-id> [query...]",
		Short: "List a game's events",
		Long: `List the events of one game in sequence order, optionally filtered.

The query uses key:value filters and free text. Numeric keys accept
comparisons and ranges.

Keys: ` + strings.Join(search.EventKeys, ", ") + `

Examples:
  scorecardctl events g1
  scorecardctl events g1 inning:7..9 result:home_run
  scorecardctl events g1 sync:failed
  scorecardctl events g1 "Alex Kim"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(rootOpts, cmd, args[0], strings.Join(args[1:], " "))
		},
	}
}

func runEvents(opts *RootOptions, cmd *cobra.Command, gameID, query string) error {
	q := search.Parse(query)
	if unknown := search.UnknownKeys(q, search.EventKeys); len(unknown) > 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown filter keys %v", unknown))
	}

	sc, st, err := opts.openScorecard(context.Background())
	if err != nil {
		return err
	}
	defer st.close()

	g, err := gameByID(sc, gameID)
	if err != nil {
		return err
	}
	events := []scorecard.ScoreEvent{}
	for _, e := range g.Events {
		if search.MatchEvent(q, e) {
			events = append(events, e)
		}
	}
	return opts.formatter(cmd.OutOrStdout()).Result(events, func(w io.Writer) {
		for _, e := range events {
			fmt.Fprintf(w, "%4d  %-6s %2d  %-10s %s", e.Sequence, e.Half, e.Inning, e.Notation, e.Summary)
			if e.SyncStatus != scorecard.SyncSynced {
				fmt.Fprintf(w, "  [%s]", e.SyncStatus)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%d of %d events\n", len(events), len(g.Events))
	})
}
