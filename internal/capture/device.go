package capture

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"crewbe/internal/config"
	"crewbe/internal/deps"
)

// Device is a capture source that can be acquired exclusively.
type Device interface {
	// Name identifies the device in logs and errors.
	Name() string
	// Acquire grants exclusive access and starts producing encoded bytes.
	// Failures are returned as *Error.
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is an acquired device. Close releases the device and must be safe to
// call more than once.
type Stream interface {
	io.Reader
	io.Closer
}

const filePrefix = "file:"

// OpenDevice builds the device described by the capture configuration.
func OpenDevice(cfg *config.Config, logger *slog.Logger) Device {
	source := strings.TrimSpace(cfg.Capture.Device)
	if path, ok := strings.CutPrefix(source, filePrefix); ok {
		return NewFileDevice(path, cfg.Capture.VideoBitrateKbps+cfg.Capture.AudioBitrateKbps)
	}
	return NewFFmpegDevice(FFmpegOptions{
		Binary:           deps.ResolveFFmpegPath(cfg.Capture.FFmpegBinary),
		InputFormat:      cfg.Capture.InputFormat,
		Path:             source,
		AudioDevice:      cfg.Capture.AudioDevice,
		VideoBitrateKbps: cfg.Capture.VideoBitrateKbps,
		AudioBitrateKbps: cfg.Capture.AudioBitrateKbps,
		LockDir:          cfg.Paths.StateDir,
	}, logger)
}

// DevicePath returns the filesystem node behind a device source, stripping the
// file replay prefix.
func DevicePath(source string) string {
	source = strings.TrimSpace(source)
	if path, ok := strings.CutPrefix(source, filePrefix); ok {
		return path
	}
	return source
}

// IsReplay reports whether the device source names a file replay source.
func IsReplay(source string) bool {
	return strings.HasPrefix(strings.TrimSpace(source), filePrefix)
}
