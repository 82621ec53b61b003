package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"crewbe/internal/api"
	"crewbe/internal/capture"
	"crewbe/internal/config"
	"crewbe/internal/logging"
	"crewbe/internal/notifications"
	"crewbe/internal/preflight"
	"crewbe/internal/services/backend"
	"crewbe/internal/session"
	"crewbe/internal/upload"
	"crewbe/internal/workflow"
)

var errSessionAbandoned = errors.New("session abandoned")

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var duration time.Duration
	var simulate bool
	var skipChecks bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a session, upload it and run analysis",
		Long: `Record a session from the configured capture device.

Press Enter to stop recording. Upload and analysis then run to completion.
Ctrl-C during recording stops it the same way; Ctrl-C afterwards abandons the
session and records it as failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if simulate {
				cfg.Upload.SimulateOnFailure = true
			}
			logger, err := ctx.logger("crewbe.log")
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}

			progress := cmd.OutOrStdout()
			if jsonOutput {
				progress = cmd.ErrOrStderr()
			}
			out := &syncWriter{w: progress}
			colorize := shouldColorize(progress)

			if !skipChecks {
				results := preflight.RunAll(cmd.Context(), cfg)
				if blocking := preflight.Blocking(results); len(blocking) > 0 {
					for _, line := range preflightLines(results, colorize) {
						fmt.Fprintln(out, line)
					}
					names := make([]string, 0, len(blocking))
					for _, r := range blocking {
						names = append(names, r.Name)
					}
					return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
				}
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if n, err := store.FailInterrupted(cmd.Context()); err != nil {
				logger.Warn("could not mark interrupted sessions", logging.Error(err))
			} else if n > 0 {
				fmt.Fprintf(out, "Marked %d interrupted session(s) as failed\n", n)
			}

			pipeline, err := buildPipeline(cfg, store, logger)
			if err != nil {
				return err
			}
			pipeline.Subscribe(workflow.ObserverFuncs{
				PhaseChange: func(change workflow.PhaseChange) {
					if change.To == session.PhaseIdle {
						return
					}
					fmt.Fprintln(out, renderStatusLine("Phase", phaseStatusKind(change.To), string(change.To), colorize))
				},
				Error: func(kind workflow.ErrorKind, detail string) {
					fmt.Fprintln(out, renderStatusLine("Error", statusError, fmt.Sprintf("%s: %s", kind, detail), colorize))
				},
			})

			snap, runErr := runRecording(cmd, pipeline, out, duration)
			closeErr := pipeline.Close()

			if jsonOutput && snap.SessionID != "" {
				sess, err := store.Get(context.Background(), snap.SessionID)
				if err != nil {
					return err
				}
				if sess != nil {
					if err := writeJSON(cmd, api.FromSession(sess)); err != nil {
						return err
					}
				}
			} else {
				printRecordSummary(out, snap, colorize)
			}

			if runErr != nil {
				return runErr
			}
			if snap.Phase == session.PhaseFailed {
				category := "unknown error"
				if snap.Failure != nil {
					category = snap.Failure.Category
				}
				return fmt.Errorf("session %s failed: %s", shortID(snap.SessionID), category)
			}
			return closeErr
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop recording automatically after this long")
	cmd.Flags().BoolVar(&simulate, "simulate-on-failure", false, "Report a flagged simulated upload when both upload strategies fail")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip preflight checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the finished session as JSON")
	return cmd
}

func buildPipeline(cfg *config.Config, store *session.Store, logger *slog.Logger) (*workflow.Pipeline, error) {
	client := backend.NewFromConfig(cfg)
	chain := upload.Chain(
		upload.NewPresignedStrategy(client, client),
		upload.NewProxiedStrategy(client),
		upload.Options{
			SimulateOnFailure: cfg.Upload.SimulateOnFailure,
			SimulatedDelay:    time.Duration(cfg.Upload.SimulatedDelayMilli) * time.Millisecond,
		},
	)
	coordinator := upload.NewCoordinator(upload.NewKeyGenerator(cfg.Storage.KeyPrefix), chain, logger)
	return workflow.New(cfg, workflow.Deps{
		Store:     store,
		Device:    capture.OpenDevice(cfg, logger),
		Uploader:  coordinator,
		Providers: client.Providers(),
		Notifier:  notifications.NewService(cfg),
	}, logger)
}

// runRecording starts a session and blocks until it reaches a terminal phase
// or is abandoned.
func runRecording(cmd *cobra.Command, pipeline *workflow.Pipeline, out io.Writer, duration time.Duration) (workflow.Snapshot, error) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	id, err := pipeline.Start(cmd.Context())
	if err != nil {
		if id == "" {
			return workflow.Snapshot{}, err
		}
		return pipeline.Snapshot(), nil
	}

	prompt := fmt.Sprintf("Recording session %s. Press Enter to stop.", shortID(id))
	if duration > 0 {
		prompt = fmt.Sprintf("Recording session %s for up to %s. Press Enter to stop early.", shortID(id), duration)
	}
	fmt.Fprintln(out, prompt)

	enter := make(chan struct{}, 1)
	go watchEnter(cmd.InOrStdin(), enter)

	var deadline <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		deadline = timer.C
	}

	type waitResult struct {
		snap workflow.Snapshot
		err  error
	}
	done := make(chan waitResult, 1)
	go func() {
		snap, err := pipeline.Wait(context.Background())
		done <- waitResult{snap: snap, err: err}
	}()

	for {
		select {
		case res := <-done:
			return res.snap, res.err
		case <-enter:
			stopRecording(pipeline, out)
		case <-deadline:
			deadline = nil
			stopRecording(pipeline, out)
		case <-signals:
			if pipeline.Phase() == session.PhaseRecording {
				stopRecording(pipeline, out)
				fmt.Fprintln(out, "Press Ctrl-C again to abandon the session.")
				continue
			}
			snap := pipeline.Snapshot()
			if err := pipeline.Reset(context.Background()); err != nil {
				return snap, err
			}
			snap.Phase = session.PhaseFailed
			return snap, errSessionAbandoned
		}
	}
}

func stopRecording(pipeline *workflow.Pipeline, out io.Writer) {
	if pipeline.Phase() != session.PhaseRecording {
		return
	}
	if err := pipeline.Stop(); err != nil && !errors.Is(err, workflow.ErrNotRecording) {
		fmt.Fprintf(out, "Stop failed: %v\n", err)
		return
	}
	fmt.Fprintln(out, "Recording stopped; uploading.")
}

// watchEnter signals once per line read. EOF ends the watch without a signal.
func watchEnter(in io.Reader, enter chan<- struct{}) {
	if in == nil {
		return
	}
	reader := bufio.NewReader(in)
	for {
		if _, err := reader.ReadString('\n'); err != nil {
			return
		}
		select {
		case enter <- struct{}{}:
		default:
		}
	}
}

func printRecordSummary(out io.Writer, snap workflow.Snapshot, colorize bool) {
	if snap.SessionID == "" {
		return
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Session "+shortID(snap.SessionID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Phase", phaseStatusKind(snap.Phase), string(snap.Phase), colorize))
	if snap.StorageKey != "" {
		if snap.Simulated {
			fmt.Fprintln(out, renderStatusLine("Storage key", statusWarn, snap.StorageKey+" (simulated, no object stored)", colorize))
		} else {
			fmt.Fprintln(out, renderStatusLine("Storage key", statusOK, snap.StorageKey, colorize))
		}
	}
	if report := snap.Report; report != nil {
		fmt.Fprintln(out, renderStatusLine("Transcript", statusOK, orDash(report.Transcription.ResultURI), colorize))
		fmt.Fprintln(out, renderStatusLine("Faces", statusOK, fmt.Sprintf("%d detected", report.Faces.Total), colorize))
		fmt.Fprintln(out, renderStatusLine("Segments", statusOK, fmt.Sprintf("%d detected", report.Segments.Total), colorize))
	}
	if failure := snap.Failure; failure != nil {
		fmt.Fprintln(out, renderStatusLine("Failure", statusError, failure.Category, colorize))
		if detail := failure.Detail(); detail != "" && detail != failure.Category {
			fmt.Fprintln(out, renderStatusLine("Detail", statusError, detail, colorize))
		}
	}
}

// syncWriter serializes writes from observer callbacks and the command.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
