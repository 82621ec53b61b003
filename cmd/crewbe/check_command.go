package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crewbe/internal/preflight"
	"crewbe/internal/session"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the capture device, crewbe API and local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, line := range preflightLines(results, colorize) {
				fmt.Fprintln(out, line)
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Session history", colorize) {
				fmt.Fprintln(out, line)
			}
			err = ctx.withStore(func(store *session.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					fmt.Fprintln(out, renderStatusLine("Database", statusError, err.Error(), colorize))
					return nil
				}
				kind, detail := statusOK, "integrity ok"
				if !health.IntegrityOK {
					kind, detail = statusError, "integrity check failed"
				}
				fmt.Fprintln(out, renderStatusLine("Database", kind, fmt.Sprintf("%s (%s, schema v%d)", detail, formatBytes(health.SizeBytes), health.SchemaVersion), colorize))
				fmt.Fprintln(out, renderStatusLine("Path", statusInfo, health.Path, colorize))
				fmt.Fprintln(out, renderStatusLine("Sessions", statusInfo, fmt.Sprintf("%d", health.Sessions), colorize))
				return nil
			})
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Database", statusError, err.Error(), colorize))
			}

			if blocking := preflight.Blocking(results); len(blocking) > 0 {
				return fmt.Errorf("%d blocking check(s) failed", len(blocking))
			}
			return nil
		},
	}
}
