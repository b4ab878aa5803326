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
	"time"

	"github.com/spf13/cobra"
	"github.com/ttbt-io/scorecard/backend"
	"github.com/ttbt-io/scorecard/backend/scorecard"
	"github.com/ttbt-io/scorecard/backend/search"
	"github.com/ttbt-io/scorecard/backend/syncqueue"
)

// QueueOptions holds flags for the queue commands that talk to a server.
type QueueOptions struct {
	*RootOptions
	Server string
	Token  string
}

// FlushReport is the outcome of a flush or retry.
type FlushReport struct {
	Attempted int              `json:"attempted"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Remaining syncqueue.Counts `json:"remaining"`
}

// NewQueueCommand creates the queue command and its subcommands.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and drain the sync queue",
	}
	cmd.PersistentFlags().StringVar(&opts.Server, "server", "", "API root of the sync server, e.g. https://example.com/api")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "bearer token for submissions")

	cmd.AddCommand(&cobra.Command{
		Use:   "list [query...]",
		Short: "List queued mutations",
		Long: `List the mutations waiting to reach the server, optionally filtered.

Keys: ` + strings.Join(search.MutationKeys, ", ") + `

Examples:
  scorecardctl queue list
  scorecardctl queue list status:failed attempts:>3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueList(opts, cmd, strings.Join(args, " "))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "flush",
		Short:         "Submit every eligible mutation now",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueFlush(opts, cmd, "")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "retry <mutation-id>",
		Short:         "Resubmit one failed mutation now",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueFlush(opts, cmd, args[0])
		},
	})
	return cmd
}

func runQueueList(opts *QueueOptions, cmd *cobra.Command, query string) error {
	q := search.Parse(query)
	if unknown := search.UnknownKeys(q, search.MutationKeys); len(unknown) > 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown filter keys %v", unknown))
	}

	ctx := context.Background()
	st, err := opts.openStores()
	if err != nil {
		return err
	}
	defer st.close()

	queue := syncqueue.New(syncqueue.Options{Store: st.queue, Retention: opts.QueueRetention, Debug: opts.Verbose})
	if err := queue.Load(ctx); err != nil {
		return WrapExitError(ExitCommandError, "load queue", err)
	}
	mutations := []syncqueue.Mutation{}
	for _, m := range queue.Mutations() {
		if search.MatchMutation(q, m) {
			mutations = append(mutations, m)
		}
	}
	return opts.formatter(cmd.OutOrStdout()).Result(mutations, func(w io.Writer) {
		for _, m := range mutations {
			fmt.Fprintf(w, "%s  %-6s %-7s %s/%s event %s seq %d", m.ID, m.Type, m.Status, m.AccountID, m.GameID, m.EventID, m.Sequence)
			if m.Attempts > 0 {
				fmt.Fprintf(w, "  attempts %d, next %s", m.Attempts, m.NextRetryAt.Format(time.RFC3339))
			}
			if m.LastError != "" {
				fmt.Fprintf(w, "  (%s)", m.LastError)
			}
			fmt.Fprintln(w)
		}
		c := queue.Counts()
		fmt.Fprintf(w, "%d shown; %d pending, %d syncing, %d failed\n", len(mutations), c.Pending, c.Syncing, c.Failed)
	})
}

// runQueueFlush flushes the queue, or retries one mutation when mutationID
// is set. Acknowledgments are written back to the stored games.
func runQueueFlush(opts *QueueOptions, cmd *cobra.Command, mutationID string) error {
	if opts.Server == "" {
		return NewExitError(ExitCommandError, "--server is required")
	}
	ctx := context.Background()
	st, err := opts.openStores()
	if err != nil {
		return err
	}
	defer st.close()

	transport := backend.NewHTTPTransport(opts.Server)
	transport.Debug = opts.Verbose
	sess, err := backend.NewSession(backend.SessionOptions{
		Scorecard:      scorecard.New(scorecard.Options{Store: st.games, Debug: opts.Verbose}),
		Transport:      transport,
		QueueStore:     st.queue,
		QueueRetention: opts.QueueRetention,
		Debug:          opts.Verbose,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "session", err)
	}
	if err := sess.Open(ctx); err != nil {
		return WrapExitError(ExitCommandError, "load local state", err)
	}

	var res syncqueue.FlushResult
	if mutationID != "" {
		res, err = sess.Retry(ctx, opts.Token, mutationID)
		if err != nil {
			return WrapExitError(ExitCommandError, "retry", err)
		}
	} else {
		res = sess.Flush(ctx, opts.Token)
	}

	report := FlushReport{
		Attempted: res.Attempted,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Remaining: sess.Queue().Counts(),
	}
	if err := opts.formatter(cmd.OutOrStdout()).Result(report, func(w io.Writer) {
		fmt.Fprintf(w, "%d attempted, %d succeeded, %d failed; %d still queued\n",
			report.Attempted, report.Succeeded, report.Failed, report.Remaining.Total())
	}); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d submissions failed", report.Failed))
	}
	return nil
}
