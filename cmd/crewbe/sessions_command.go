package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"crewbe/internal/session"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var phaseFilters []string
	var limit int

	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List recorded sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			phases, err := parsePhaseFilters(phaseFilters)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *session.Store) error {
				sessions, err := store.List(cmd.Context(), limit, phases...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No sessions found")
					return nil
				}
				fmt.Fprint(out, renderSessionsTable(sessions))
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&phaseFilters, "phase", "p", nil, "Only show sessions in these phases")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to show (0 for all)")

	cmd.AddCommand(newSessionsRemoveCommand(ctx))
	cmd.AddCommand(newSessionsClearCommand(ctx))
	cmd.AddCommand(newSessionsStatsCommand(ctx))
	return cmd
}

func parsePhaseFilters(values []string) ([]session.Phase, error) {
	phases := make([]session.Phase, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		phase, ok := session.ParsePhase(value)
		if !ok {
			names := make([]string, 0, len(session.AllPhases()))
			for _, p := range session.AllPhases() {
				names = append(names, string(p))
			}
			return nil, fmt.Errorf("unknown phase %q (expected one of %s)", value, strings.Join(names, ", "))
		}
		phases = append(phases, phase)
	}
	return phases, nil
}

func renderSessionsTable(sessions []*session.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		key := orDash(sess.StorageKey)
		if sess.Simulated {
			key += " (simulated)"
		}
		rows = append(rows, []string{
			shortID(sess.ID),
			string(sess.Phase),
			orDash(sess.Candidate.Name),
			formatSeconds(sess.DurationSeconds),
			formatBytes(sess.BlobSize),
			key,
			formatTimestamp(sess.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Phase", "Candidate", "Duration", "Size", "Storage Key", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func newSessionsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove sessions from the local history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *session.Store) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					sess, err := store.Resolve(cmd.Context(), arg)
					if err != nil {
						return err
					}
					if sess.Phase.IsActive() {
						return fmt.Errorf("session %s is still %s", shortID(sess.ID), sess.Phase)
					}
					removed, err := store.Remove(cmd.Context(), sess.ID)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(out, "Removed session %s\n", shortID(sess.ID))
					}
				}
				return nil
			})
		},
	}
}

func newSessionsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every finished session from the local history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *session.Store) error {
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d session(s)\n", n)
				return nil
			})
		},
	}
}

func newSessionsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count sessions per phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *session.Store) error {
				counts, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(counts))
				for _, phase := range session.AllPhases() {
					if n := counts[phase]; n > 0 {
						rows = append(rows, []string{string(phase), fmt.Sprintf("%d", n)})
					}
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No sessions recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable([]string{"Phase", "Sessions"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
