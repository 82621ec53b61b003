package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"crewbe/internal/capture"
	"crewbe/internal/config"
	"crewbe/internal/deps"
	"crewbe/internal/services"
	"crewbe/internal/services/backend"
)

const apiCheckTimeout = 5 * time.Second

// CheckAPI verifies that the crewbe API answers /health with the configured
// token.
func CheckAPI(ctx context.Context, cfg *config.Config) Result {
	const name = "Crewbe API"

	if strings.TrimSpace(cfg.Upload.APIBaseURL) == "" {
		return Result{Name: name, Detail: "missing upload.api_base_url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, apiCheckTimeout)
	defer cancel()

	client := backend.NewFromConfig(cfg)
	health, err := client.Health(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	detail := fmt.Sprintf("%s (bucket %s, region %s)", client.BaseURL(), health.Bucket, health.Region)
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckCaptureDevice verifies the configured camera can be opened, or that a
// replay clip exists.
func CheckCaptureDevice(source string) Result {
	const name = "Capture device"

	path := capture.DevicePath(source)
	if path == "" {
		return Result{Name: name, Detail: "capture.device not configured"}
	}
	if capture.IsReplay(source) {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: replay clip: %v)", path, err)}
		}
		if info.IsDir() || info.Size() == 0 {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: replay clip is empty)", path)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (replay, %d bytes)", path, info.Size())}
	}
	if err := capture.ProbeAccess(path); err != nil {
		var capErr *capture.Error
		if errors.As(err, &capErr) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", path, capErr.Category())}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFFmpeg verifies the ffmpeg binary used for capture exists and was
// built with the WebM encoders capture needs.
func CheckFFmpeg(ctx context.Context, configured string, withAudio bool) Result {
	const name = "FFmpeg"
	status := deps.CheckFFmpeg(ctx, configured, withAudio)
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}
	return Result{Name: name, Passed: true, Detail: status.Detail}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeAPIError produces a human-readable summary for API health check failures.
func summarizeAPIError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		return "health check timed out (API unresponsive)"
	case errors.Is(err, services.ErrUnauthorized):
		return "auth failed (check paths.api_token)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
