package capture

import (
	"errors"
	"fmt"
)

// ErrorKind classifies capture failures.
type ErrorKind string

const (
	KindPermissionDenied  ErrorKind = "permission_denied"
	KindDeviceUnavailable ErrorKind = "device_unavailable"
	KindDeviceLost        ErrorKind = "device_lost"
)

var (
	// ErrPermissionDenied matches any *Error of kind permission_denied.
	ErrPermissionDenied = errors.New("capture permission denied")
	// ErrDeviceUnavailable matches any *Error of kind device_unavailable.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrDeviceLost matches any *Error of kind device_lost.
	ErrDeviceLost = errors.New("capture device lost")
	// ErrNotRecording is returned by Stop on a recorder that never started.
	ErrNotRecording = errors.New("recorder has not been started")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("recorder already started")
)

// Error is the typed failure for anything that goes wrong with the device.
type Error struct {
	Kind   ErrorKind
	Device string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("capture %s: %s", e.Device, e.Category())
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is match the package sentinels by kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrPermissionDenied:
		return e.Kind == KindPermissionDenied
	case ErrDeviceUnavailable:
		return e.Kind == KindDeviceUnavailable
	case ErrDeviceLost:
		return e.Kind == KindDeviceLost
	}
	return false
}

// ErrorKind returns the classification as a string.
func (e *Error) ErrorKind() string {
	if e == nil {
		return ""
	}
	return string(e.Kind)
}

// Category returns a human-readable description of the failure class.
func (e *Error) Category() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindPermissionDenied:
		return "camera or microphone access was denied"
	case KindDeviceUnavailable:
		return "camera is not available"
	case KindDeviceLost:
		return "camera stopped delivering video"
	default:
		return "capture failed"
	}
}

func newError(kind ErrorKind, device string, err error) *Error {
	return &Error{Kind: kind, Device: device, Err: err}
}

// asError normalizes arbitrary acquisition failures into *Error.
func asError(device string, err error) error {
	if err == nil {
		return nil
	}
	var capErr *Error
	if errors.As(err, &capErr) {
		return capErr
	}
	return newError(KindDeviceUnavailable, device, err)
}
