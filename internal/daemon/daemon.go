package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"crewbe/internal/analysis"
	"crewbe/internal/config"
	"crewbe/internal/logging"
)

// Daemon serves the crewbe API and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Address      string
	LockFilePath string
	Bucket       string
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithVersion sets the version reported by /health.
func WithVersion(version string) Option {
	return func(d *Daemon) { d.api.version = version }
}

// New constructs a daemon around storage and the three job providers.
func New(cfg *config.Config, storage ObjectStore, providers analysis.Providers, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || storage == nil {
		return nil, errors.New("daemon requires config and object storage")
	}
	if err := providers.Validate(); err != nil {
		return nil, fmt.Errorf("daemon providers: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		api:      newAPIServer(cfg, storage, providers, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock and begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another crewbed instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("crewbed started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
	)
	return nil
}

// Stop stops serving and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("crewbed stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Address:      d.api.address(),
		LockFilePath: d.lockPath,
		Bucket:       d.api.storage.Bucket(),
	}
}
