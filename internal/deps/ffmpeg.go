package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Encoders capture asks ffmpeg for. The audio encoder only matters when an
// audio device is configured.
const (
	VideoEncoder = "libvpx"
	AudioEncoder = "libopus"
)

const encoderListTimeout = 5 * time.Second

// FFmpegStatus describes the ffmpeg build capture would run.
type FFmpegStatus struct {
	Command   string
	Available bool
	// Missing lists required encoders the build was compiled without.
	Missing []string
	Detail  string
}

// ResolveFFmpegPath returns the ffmpeg binary capture should execute.
//
// An explicitly configured binary wins. Otherwise an ffmpeg that sits next to
// the running crewbe executable is preferred, falling back to "ffmpeg" on PATH.
func ResolveFFmpegPath(configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), executableName("ffmpeg"))
		if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
			return candidate
		}
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path
	}
	return "ffmpeg"
}

// CheckFFmpeg resolves the ffmpeg binary and asks it for its encoder list.
// The build must provide libvpx, and libopus as well when withAudio is set.
func CheckFFmpeg(ctx context.Context, configured string, withAudio bool) FFmpegStatus {
	command := ResolveFFmpegPath(configured)
	status := FFmpegStatus{Command: command}

	path, err := exec.LookPath(command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", command)
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, encoderListTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-encoders").Output() //nolint:gosec
	if err != nil {
		status.Detail = fmt.Sprintf("%s -encoders: %v", command, err)
		return status
	}

	encoders := parseEncoders(out)
	required := []string{VideoEncoder}
	if withAudio {
		required = append(required, AudioEncoder)
	}
	for _, name := range required {
		if !encoders[name] {
			status.Missing = append(status.Missing, name)
		}
	}
	if len(status.Missing) > 0 {
		status.Detail = fmt.Sprintf("%s lacks encoder %s", command, strings.Join(status.Missing, ", "))
		return status
	}
	status.Available = true
	status.Detail = command
	return status
}

// parseEncoders reads `ffmpeg -encoders` output. Encoder lines start with a
// six character capability column such as "V....D".
func parseEncoders(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		if kind := fields[0][0]; kind != 'V' && kind != 'A' && kind != 'S' {
			continue
		}
		if fields[1] == "=" {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
