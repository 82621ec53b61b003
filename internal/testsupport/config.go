package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"crewbe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SpoolDir = filepath.Join(base, "spool")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Capture.Device = "file:" + filepath.Join(base, "fixture.webm")
	cfgVal.Capture.WatchHotplug = false
	cfgVal.Candidate = config.Candidate{Name: "Test Candidate", Airline: "Test Air"}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIBaseURL points the upload client at a test server.
func WithAPIBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.APIBaseURL = url
	}
}

// WithSimulateOnFailure toggles the degraded upload mode.
func WithSimulateOnFailure(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.SimulateOnFailure = enabled
		b.cfg.Upload.SimulatedDelayMilli = 0
	}
}

// WithFixtureClip writes a replay clip of the given size and points the
// capture device at it.
func WithFixtureClip(size int64) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "fixture.webm")
		WriteClip(b.t, path, size)
		b.cfg.Capture.Device = "file:" + path
	}
}

// WithStubFFmpeg points capture at a camera node inside the test directory
// and at a stub ffmpeg whose encoder listing holds exactly the given encoders.
func WithStubFFmpeg(encoders ...string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		var listing strings.Builder
		listing.WriteString("Encoders:\n V..... = Video\n ------\n")
		for _, name := range encoders {
			fmt.Fprintf(&listing, " V....D %-20s %s\n", name, name)
		}
		stub := filepath.Join(binDir, "ffmpeg")
		script := "#!/bin/sh\ncat <<'LIST'\n" + listing.String() + "LIST\n"
		if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write ffmpeg stub: %v", err)
		}
		node := filepath.Join(b.baseDir, "video0")
		if err := os.WriteFile(node, nil, 0o600); err != nil {
			b.t.Fatalf("write camera node: %v", err)
		}
		b.cfg.Capture.FFmpegBinary = stub
		b.cfg.Capture.Device = node
		b.cfg.Capture.AudioDevice = ""
	}
}
