package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"
)

const replayTick = 100 * time.Millisecond

// FileDevice replays a pre-recorded clip at a bitrate that approximates a live
// camera. It is used for demos, preflight and tests.
type FileDevice struct {
	path        string
	bytesPerSec int
}

// NewFileDevice constructs a replay device. bitrateKbps <= 0 replays as fast as
// the recorder reads.
func NewFileDevice(path string, bitrateKbps int) *FileDevice {
	return &FileDevice{path: path, bytesPerSec: bitrateKbps * 1000 / 8}
}

// Name returns the replayed file path.
func (d *FileDevice) Name() string { return d.path }

// Acquire opens the clip for replay.
func (d *FileDevice) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindDeviceUnavailable, d.path, err)
	}
	file, err := os.Open(d.path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrPermission):
			return nil, newError(KindPermissionDenied, d.path, err)
		default:
			return nil, newError(KindDeviceUnavailable, d.path, err)
		}
	}
	return &fileStream{file: file, bytesPerSec: d.bytesPerSec, closed: make(chan struct{})}, nil
}

type fileStream struct {
	file        *os.File
	bytesPerSec int
	closed      chan struct{}
	closeOnce   sync.Once
}

func (s *fileStream) Read(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, io.EOF
	default:
	}
	if s.bytesPerSec > 0 {
		select {
		case <-s.closed:
			return 0, io.EOF
		case <-time.After(replayTick):
		}
		limit := s.bytesPerSec * int(replayTick) / int(time.Second)
		if limit < 1 {
			limit = 1
		}
		if len(p) > limit {
			p = p[:limit]
		}
	}
	n, err := s.file.Read(p)
	if errors.Is(err, os.ErrClosed) {
		return n, io.EOF
	}
	return n, err
}

func (s *fileStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.file.Close()
	})
	return err
}
