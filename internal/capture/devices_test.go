package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"crewbe/internal/config"
)

func TestFileDeviceReplaysClip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.webm")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 4096)), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	rec := NewRecorder(NewFileDevice(path, 0), Options{ChunkInterval: 5 * time.Millisecond}, nil)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-rec.Done():
	case <-time.After(time.Second):
		t.Fatal("expected replay to end at EOF")
	}
	recording, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if recording.Size() != 4096 {
		t.Fatalf("expected full clip, got %d bytes", recording.Size())
	}
}

func TestFileDeviceMissingClipIsUnavailable(t *testing.T) {
	dev := NewFileDevice(filepath.Join(t.TempDir(), "missing.webm"), 0)
	_, err := dev.Acquire(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected device unavailable, got %v", err)
	}
}

func TestProbeAccessClassifiesErrors(t *testing.T) {
	if err := ProbeAccess(filepath.Join(t.TempDir(), "video9")); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected unavailable for missing node, got %v", err)
	}
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}
	path := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(path, nil, 0o000); err != nil {
		t.Fatalf("write node: %v", err)
	}
	if err := ProbeAccess(path); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestFFmpegDeviceArgs(t *testing.T) {
	dev := NewFFmpegDevice(FFmpegOptions{Path: "/dev/video2", AudioDevice: "default", VideoBitrateKbps: 800, AudioBitrateKbps: 96}, nil)
	args := strings.Join(dev.args(), " ")
	for _, want := range []string{"-f v4l2 -i /dev/video2", "-f pulse -i default", "-b:v 800k", "-c:a libopus -b:a 96k", "-f webm pipe:1"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in %q", want, args)
		}
	}
	silent := NewFFmpegDevice(FFmpegOptions{Path: "/dev/video0", VideoBitrateKbps: 1000}, nil)
	if strings.Contains(strings.Join(silent.args(), " "), "libopus") {
		t.Fatal("expected no audio encoder without an audio device")
	}
}

func TestFFmpegDeviceLostWhileStderrIsWritten(t *testing.T) {
	node := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(node, nil, 0o600); err != nil {
		t.Fatalf("write node: %v", err)
	}
	// ffmpeg closes stdout first and keeps reporting on stderr afterwards.
	script := `printf frame; exec 1>&-; i=0; while [ $i -lt 20 ]; do echo "v4l2 retry $i" >&2; i=$((i+1)); sleep 0.01; done; echo "No such device" >&2; exit 1`
	orig := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "/bin/sh", "-c", script)
	}
	t.Cleanup(func() { commandContext = orig })

	dev := NewFFmpegDevice(FFmpegOptions{Path: node, LockDir: t.TempDir()}, nil)
	stream, err := dev.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	data, err := io.ReadAll(stream)
	if !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("expected device lost, got %v", err)
	}
	if string(data) != "frame" {
		t.Fatalf("expected captured bytes before the loss, got %q", data)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	relock, err := dev.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected device lock to be released, got %v", err)
	}
	_, _ = io.ReadAll(relock)
	_ = relock.Close()
}

func TestStderrTailKeepsLastLine(t *testing.T) {
	tail := &stderrTail{}
	if tail.LastLine() != "" {
		t.Fatal("expected empty tail")
	}
	_, _ = tail.Write([]byte("first\n"))
	_, _ = tail.Write([]byte(strings.Repeat("x", stderrTailLimit)))
	_, _ = tail.Write([]byte("\n/dev/video0: No such device\n\n"))
	if got := tail.LastLine(); got != "/dev/video0: No such device" {
		t.Fatalf("unexpected last line %q", got)
	}
	tail.mu.Lock()
	size := tail.buf.Len()
	tail.mu.Unlock()
	if size > stderrTailLimit {
		t.Fatalf("expected tail capped at %d bytes, got %d", stderrTailLimit, size)
	}
}

func TestOpenDeviceSelectsImplementation(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.Device = "file:/tmp/clip.webm"
	if _, ok := OpenDevice(&cfg, nil).(*FileDevice); !ok {
		t.Fatal("expected file device for file: source")
	}
	cfg.Capture.Device = "/dev/video0"
	if _, ok := OpenDevice(&cfg, nil).(*FFmpegDevice); !ok {
		t.Fatal("expected ffmpeg device for device node")
	}
	if DevicePath("file:/tmp/a.webm") != "/tmp/a.webm" || !IsReplay(" file:/x") {
		t.Fatal("unexpected device source helpers")
	}
}

func TestHotplugWatcher(t *testing.T) {
	if NewHotplugWatcher("file:/tmp/clip.webm", nil, nil) != nil {
		t.Fatal("expected no watcher for replay devices")
	}

	var got error
	w := NewHotplugWatcher("/dev/video0", nil, func(err error) { got = err })

	matcher := w.buildMatcher()
	if !matcher.Evaluate(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "video4linux"}}) {
		t.Fatal("expected matcher to accept video4linux removal")
	}
	if matcher.Evaluate(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "video4linux"}}) {
		t.Fatal("expected matcher to reject add events")
	}

	w.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "video1"}})
	if got != nil {
		t.Fatal("removal of another device must be ignored")
	}
	w.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "/dev/video0"}})
	if !errors.Is(got, ErrDeviceLost) {
		t.Fatalf("expected device lost callback, got %v", got)
	}

	got = nil
	w.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/video4linux/video0"}})
	if got == nil {
		t.Fatal("expected DEVPATH fallback to identify the device")
	}
}
