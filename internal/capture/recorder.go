package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"crewbe/internal/logging"
)

const (
	defaultChunkInterval = time.Second
	readBufferSize       = 32 * 1024
)

// Options tunes a Recorder.
type Options struct {
	// ChunkInterval is the cadence at which buffered bytes become a chunk.
	ChunkInterval time.Duration
	// MaxDuration ends capture automatically; zero disables it.
	MaxDuration time.Duration
	ContentType string
	// OnChunk is called after each chunk is appended. It must not block.
	OnChunk func(Chunk)
}

// Chunk describes one appended slice of the recording.
type Chunk struct {
	Index   int
	Size    int
	Total   int64
	Elapsed time.Duration
}

// Recording is the finished capture. It is immutable once Stop returns.
type Recording struct {
	Data        []byte
	ContentType string
	Chunks      int
	StartedAt   time.Time
	Duration    time.Duration
}

// Size returns the blob length in bytes.
func (r Recording) Size() int64 { return int64(len(r.Data)) }

type recorderState int

const (
	stateIdle recorderState = iota
	stateRecording
	stateStopped
)

// Recorder owns a device between Start and Stop and assembles the blob.
type Recorder struct {
	device Device
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	state     recorderState
	stream    Stream
	pending   bytes.Buffer
	blob      bytes.Buffer
	chunks    int
	startedAt time.Time
	endedAt   time.Time
	cause     error
	result    Recording
	cancel    context.CancelFunc

	wg          sync.WaitGroup
	releaseOnce sync.Once
	done        chan struct{}
	doneOnce    sync.Once
}

// NewRecorder constructs a recorder for the device.
func NewRecorder(device Device, opts Options, logger *slog.Logger) *Recorder {
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = defaultChunkInterval
	}
	if opts.ContentType == "" {
		opts.ContentType = "video/webm"
	}
	return &Recorder{
		device: device,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "capture"),
		done:   make(chan struct{}),
	}
}

// Start acquires the device and begins producing chunks. Acquisition
// failures are returned as *Error and leave the recorder stopped.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != stateIdle {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.mu.Unlock()

	stream, err := r.device.Acquire(ctx)
	if err != nil {
		r.mu.Lock()
		r.state = stateStopped
		r.mu.Unlock()
		r.signalDone()
		return asError(r.device.Name(), err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	r.mu.Lock()
	r.state = stateRecording
	r.stream = stream
	r.startedAt = time.Now()
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(2)
	go r.readLoop(stream)
	go r.tickLoop(loopCtx)

	r.logger.Info("recording started",
		logging.String(logging.FieldEventType, "capture_started"),
		logging.String("device", r.device.Name()),
		logging.Duration("chunk_interval", r.opts.ChunkInterval),
	)
	return nil
}

// Stop halts capture, releases the device and returns the recording. Calling
// Stop again returns the same recording and a nil error. If capture had
// already ended because the device failed, that failure is returned alongside
// the partial recording.
func (r *Recorder) Stop() (Recording, error) {
	r.mu.Lock()
	switch r.state {
	case stateIdle:
		r.mu.Unlock()
		return Recording{}, ErrNotRecording
	case stateStopped:
		result := r.result
		r.mu.Unlock()
		return result, nil
	}
	r.state = stateStopped
	if r.endedAt.IsZero() {
		r.endedAt = time.Now()
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.releaseDevice()
	r.wg.Wait()

	r.mu.Lock()
	r.flushLocked()
	r.result = Recording{
		Data:        bytes.Clone(r.blob.Bytes()),
		ContentType: r.opts.ContentType,
		Chunks:      r.chunks,
		StartedAt:   r.startedAt,
		Duration:    r.endedAt.Sub(r.startedAt),
	}
	result, cause := r.result, r.cause
	r.mu.Unlock()
	r.signalDone()

	r.logger.Info("recording stopped",
		logging.String(logging.FieldEventType, "capture_stopped"),
		logging.Int64("bytes", result.Size()),
		logging.Int("chunks", result.Chunks),
		logging.Duration("duration", result.Duration),
	)
	return result, cause
}

// Interrupt ends capture from outside, for example when the camera is
// unplugged. A nil cause ends capture without error. The recorder still needs
// Stop to collect the recording.
func (r *Recorder) Interrupt(cause error) {
	r.mu.Lock()
	if r.state != stateRecording || !r.endedAt.IsZero() {
		r.mu.Unlock()
		return
	}
	r.endedAt = time.Now()
	r.cause = cause
	r.mu.Unlock()

	if cause != nil {
		logging.WarnWithContext(r.logger, "capture interrupted", "capture_interrupted",
			logging.Error(cause),
			logging.String("device", r.device.Name()),
			logging.String(logging.FieldErrorHint, "reconnect the camera and record again"),
			logging.String(logging.FieldImpact, "session will fail"),
		)
	}
	go r.releaseDevice()
	r.signalDone()
}

// Done is closed when capture has ended, either through Stop or on its own.
func (r *Recorder) Done() <-chan struct{} { return r.done }

// Err returns the reason capture ended on its own, or nil.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cause
}

// Elapsed returns how long the recorder has been capturing.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startedAt.IsZero() {
		return 0
	}
	if !r.endedAt.IsZero() {
		return r.endedAt.Sub(r.startedAt)
	}
	return time.Since(r.startedAt)
}

func (r *Recorder) readLoop(stream Stream) {
	defer r.wg.Done()
	buf := make([]byte, readBufferSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			r.mu.Lock()
			r.pending.Write(buf[:n])
			r.mu.Unlock()
		}
		if err == nil {
			continue
		}
		if r.ending() {
			return
		}
		if errors.Is(err, io.EOF) {
			r.logger.Info("capture source ended",
				logging.String(logging.FieldEventType, "capture_source_ended"),
				logging.String("device", r.device.Name()),
			)
			r.Interrupt(nil)
			return
		}
		var capErr *Error
		if !errors.As(err, &capErr) {
			capErr = newError(KindDeviceLost, r.device.Name(), err)
		}
		r.Interrupt(capErr)
		return
	}
}

func (r *Recorder) tickLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.ChunkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			chunk, ok := r.flush()
			if ok && r.opts.OnChunk != nil {
				r.opts.OnChunk(chunk)
			}
			if r.opts.MaxDuration > 0 && r.Elapsed() >= r.opts.MaxDuration {
				r.logger.Info("maximum recording duration reached",
					logging.String(logging.FieldEventType, "capture_max_duration"),
					logging.Duration("max_duration", r.opts.MaxDuration),
				)
				r.Interrupt(nil)
				return
			}
		}
	}
}

func (r *Recorder) flush() (Chunk, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() (Chunk, bool) {
	if r.pending.Len() == 0 {
		return Chunk{}, false
	}
	size := r.pending.Len()
	r.blob.Write(r.pending.Bytes())
	r.pending.Reset()
	r.chunks++
	return Chunk{
		Index:   r.chunks,
		Size:    size,
		Total:   int64(r.blob.Len()),
		Elapsed: time.Since(r.startedAt),
	}, true
}

func (r *Recorder) ending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateStopped || !r.endedAt.IsZero()
}

func (r *Recorder) releaseDevice() {
	r.releaseOnce.Do(func() {
		r.mu.Lock()
		stream := r.stream
		r.mu.Unlock()
		if stream == nil {
			return
		}
		if err := stream.Close(); err != nil {
			r.logger.Debug("device release reported error", logging.Error(err))
		}
	})
}

func (r *Recorder) signalDone() {
	r.doneOnce.Do(func() { close(r.done) })
}
