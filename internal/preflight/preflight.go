package preflight

import (
	"context"
	"strings"

	"crewbe/internal/capture"
	"crewbe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Blocking reports whether the result should stop a recording from starting.
func (r Result) Blocking() bool {
	return !r.Passed && !r.Optional
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Spool directory", cfg.Paths.SpoolDir),
		CheckCaptureDevice(cfg.Capture.Device),
	}

	// Replayed clips never touch ffmpeg.
	if !capture.IsReplay(cfg.Capture.Device) {
		results = append(results, CheckFFmpeg(ctx, cfg.Capture.FFmpegBinary, strings.TrimSpace(cfg.Capture.AudioDevice) != ""))
	}

	api := CheckAPI(ctx, cfg)
	api.Optional = cfg.Upload.SimulateOnFailure
	results = append(results, api)

	return results
}

// Blocking returns the results that should stop a recording from starting.
func Blocking(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Blocking() {
			out = append(out, r)
		}
	}
	return out
}
