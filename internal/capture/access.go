package capture

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ProbeAccess checks that the current user may open the device node for
// reading and writing. It maps the kernel's answer onto capture error kinds.
func ProbeAccess(path string) error {
	err := unix.Access(path, unix.R_OK|unix.W_OK)
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM), errors.Is(err, unix.EROFS):
		return newError(KindPermissionDenied, path, fmt.Errorf("add the user to the video group: %w", err))
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return newError(KindDeviceUnavailable, path, err)
	default:
		return newError(KindDeviceUnavailable, path, err)
	}
}
