package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"crewbe/internal/api"
	"crewbe/internal/services/backend"
	"crewbe/internal/session"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var verify bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one session with its upload attempts, jobs and report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *session.Store) error {
				sess, err := store.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.FromSession(sess))
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				renderSession(out, sess, colorize)

				if verify {
					if sess.StorageKey == "" || sess.Simulated {
						fmt.Fprintln(out, renderStatusLine("Verify", statusWarn, "no stored object to verify", colorize))
						return nil
					}
					status, err := backend.NewFromConfig(cfg).UploadStatus(cmd.Context(), sess.StorageKey)
					switch {
					case err != nil:
						fmt.Fprintln(out, renderStatusLine("Verify", statusError, err.Error(), colorize))
					case !status.Exists:
						fmt.Fprintln(out, renderStatusLine("Verify", statusError, "object is missing from storage", colorize))
					default:
						fmt.Fprintln(out, renderStatusLine("Verify", statusOK, fmt.Sprintf("%s stored", formatBytes(status.FileSize)), colorize))
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&verify, "verify", false, "Confirm the stored object with the crewbe API")
	return cmd
}

func renderSession(out io.Writer, sess *session.Session, colorize bool) {
	for _, line := range renderSectionHeader("Session "+sess.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Phase", phaseStatusKind(sess.Phase), string(sess.Phase), colorize))
	fmt.Fprintln(out, renderStatusLine("Candidate", statusInfo, candidateLabel(sess.Candidate), colorize))
	fmt.Fprintln(out, renderStatusLine("Recorded", statusInfo, fmt.Sprintf("%s, %s", formatSeconds(sess.DurationSeconds), formatBytes(sess.BlobSize)), colorize))
	fmt.Fprintln(out, renderStatusLine("Created", statusInfo, formatTimestamp(sess.CreatedAt), colorize))
	if sess.StorageKey != "" {
		kind, key := statusOK, sess.StorageKey
		if sess.Simulated {
			kind, key = statusWarn, key+" (simulated)"
		}
		fmt.Fprintln(out, renderStatusLine("Storage key", kind, key, colorize))
	}
	if sess.Phase == session.PhaseFailed {
		fmt.Fprintln(out, renderStatusLine("Failure", statusError, fmt.Sprintf("%s: %s", orDash(sess.ErrorKind), orDash(sess.ErrorMessage)), colorize))
	}

	if len(sess.Attempts) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderAttemptsTable(sess.Attempts))
	}
	if len(sess.Jobs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderJobsTable(sess.Jobs))
	}
	if report := sess.Report; report != nil {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Report", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, renderStatusLine("Transcript", statusOK, orDash(report.Transcription.ResultURI), colorize))
		fmt.Fprintln(out, renderStatusLine("Faces", statusOK, countLabel(report.Faces.Total, len(report.Faces.Faces)), colorize))
		fmt.Fprintln(out, renderStatusLine("Segments", statusOK, countLabel(report.Segments.Total, len(report.Segments.Segments)), colorize))
	}
}

func renderAttemptsTable(attempts []session.UploadAttempt) string {
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		outcome := string(a.Outcome)
		if a.StrayObject {
			outcome += " (stray object)"
		}
		rows = append(rows, []string{
			string(a.Role),
			a.Strategy,
			outcome,
			formatBytes(a.BytesTransferred),
			a.Duration().Round(time.Millisecond).String(),
			fmt.Sprintf("%.2f", a.ThroughputMbps()),
			orDash(a.Error),
		})
	}
	return renderTable(
		[]string{"Attempt", "Strategy", "Outcome", "Bytes", "Took", "Mbps", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

func renderJobsTable(jobs []session.AnalysisJob) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.Kind.Label(),
			string(job.Status),
			orDash(job.Handle),
			orDash(job.Error),
		})
	}
	return renderTable([]string{"Job", "Status", "Handle", "Error"}, rows, nil)
}

func candidateLabel(c session.Candidate) string {
	switch {
	case c.Name != "" && c.Airline != "":
		return fmt.Sprintf("%s (%s)", c.Name, c.Airline)
	case c.Name != "":
		return c.Name
	default:
		return "-"
	}
}

func countLabel(total, listed int) string {
	if total > listed {
		return fmt.Sprintf("%d detected, %d listed", total, listed)
	}
	return fmt.Sprintf("%d detected", total)
}
