package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"crewbe/internal/logging"
)

var commandContext = exec.CommandContext

const ffmpegDrainTimeout = 5 * time.Second

// FFmpegOptions configures the V4L2 camera device.
type FFmpegOptions struct {
	Binary           string
	InputFormat      string
	Path             string
	AudioDevice      string
	VideoBitrateKbps int
	AudioBitrateKbps int
	// LockDir holds per-device lock files so two recorders never share a camera.
	LockDir string
}

// FFmpegDevice captures from a camera node and encodes WebM through ffmpeg.
type FFmpegDevice struct {
	opts   FFmpegOptions
	logger *slog.Logger
}

// NewFFmpegDevice constructs an ffmpeg-backed device.
func NewFFmpegDevice(opts FFmpegOptions, logger *slog.Logger) *FFmpegDevice {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if strings.TrimSpace(opts.InputFormat) == "" {
		opts.InputFormat = "v4l2"
	}
	return &FFmpegDevice{opts: opts, logger: logging.NewComponentLogger(logger, "capture")}
}

// Name returns the device node path.
func (d *FFmpegDevice) Name() string { return d.opts.Path }

// Acquire probes permissions, takes the device lock and starts ffmpeg.
func (d *FFmpegDevice) Acquire(ctx context.Context) (Stream, error) {
	path := d.opts.Path
	if err := ProbeAccess(path); err != nil {
		return nil, err
	}

	var lock *flock.Flock
	if d.opts.LockDir != "" {
		if err := os.MkdirAll(d.opts.LockDir, 0o755); err != nil {
			return nil, newError(KindDeviceUnavailable, path, fmt.Errorf("create lock dir: %w", err))
		}
		lock = flock.New(filepath.Join(d.opts.LockDir, "capture-"+filepath.Base(path)+".lock"))
		locked, err := lock.TryLock()
		if err != nil {
			return nil, newError(KindDeviceUnavailable, path, fmt.Errorf("lock device: %w", err))
		}
		if !locked {
			return nil, newError(KindDeviceUnavailable, path, errors.New("device is in use by another recording"))
		}
	}

	cmd := commandContext(context.WithoutCancel(ctx), d.opts.Binary, d.args()...) //nolint:gosec
	stderr := &stderrTail{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		unlock(lock)
		return nil, newError(KindDeviceUnavailable, path, fmt.Errorf("ffmpeg stdout: %w", err))
	}
	if err := cmd.Start(); err != nil {
		unlock(lock)
		return nil, newError(KindDeviceUnavailable, path, fmt.Errorf("start %s: %w", d.opts.Binary, err))
	}

	d.logger.Debug("ffmpeg capture started",
		logging.String("device", path),
		logging.Int("pid", cmd.Process.Pid),
	)

	return &ffmpegStream{
		device: path,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		lock:   lock,
		eof:    make(chan struct{}),
		logger: d.logger,
	}, nil
}

func (d *FFmpegDevice) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", d.opts.InputFormat, "-i", d.opts.Path}
	hasAudio := strings.TrimSpace(d.opts.AudioDevice) != ""
	if hasAudio {
		args = append(args, "-f", "pulse", "-i", d.opts.AudioDevice)
	}
	args = append(args,
		"-c:v", "libvpx",
		"-deadline", "realtime",
		"-b:v", strconv.Itoa(d.opts.VideoBitrateKbps)+"k",
	)
	if hasAudio {
		args = append(args, "-c:a", "libopus", "-b:a", strconv.Itoa(d.opts.AudioBitrateKbps)+"k")
	}
	return append(args, "-f", "webm", "pipe:1")
}

type ffmpegStream struct {
	device string
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *stderrTail
	lock   *flock.Flock
	logger *slog.Logger

	eof       chan struct{}
	eofOnce   sync.Once
	closing   sync.Once
	closeErr  error
	stopping  bool
	stoppingM sync.Mutex
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err == nil {
		return n, nil
	}
	s.eofOnce.Do(func() { close(s.eof) })
	s.stoppingM.Lock()
	stopping := s.stopping
	s.stoppingM.Unlock()
	if stopping {
		return n, io.EOF
	}
	// ffmpeg exited on its own: the camera went away or refused the format.
	detail := s.stderr.LastLine()
	if detail == "" {
		detail = "ffmpeg exited unexpectedly"
	}
	return n, newError(KindDeviceLost, s.device, errors.New(detail))
}

// Close asks ffmpeg to finish the WebM stream, waits for the reader to drain
// it, then reaps the process and releases the device lock.
func (s *ffmpegStream) Close() error {
	s.closing.Do(func() {
		s.stoppingM.Lock()
		s.stopping = true
		s.stoppingM.Unlock()

		if s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(syscall.SIGINT)
		}
		select {
		case <-s.eof:
		case <-time.After(ffmpegDrainTimeout):
			s.logger.Warn("ffmpeg did not finish after interrupt; killing",
				logging.String("device", s.device),
				logging.String(logging.FieldEventType, "capture_kill"),
				logging.String(logging.FieldErrorHint, "check the camera driver"),
				logging.String(logging.FieldImpact, "recording tail may be truncated"),
			)
			if s.cmd.Process != nil {
				_ = s.cmd.Process.Kill()
			}
		}
		if err := s.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				s.closeErr = err
			}
		}
		unlock(s.lock)
	})
	return s.closeErr
}

func unlock(lock *flock.Flock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}

// stderrTail collects ffmpeg's stderr. exec copies into it from its own
// goroutine while the stream reader may already be asking for the last line.
type stderrTail struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

const stderrTailLimit = 16 * 1024

func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - stderrTailLimit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

// LastLine returns the last non-empty line written so far.
func (t *stderrTail) LastLine() string {
	t.mu.Lock()
	value := strings.TrimSpace(t.buf.String())
	t.mu.Unlock()
	if value == "" {
		return ""
	}
	lines := strings.Split(value, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
