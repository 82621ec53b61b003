package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"crewbe/internal/logging"
	"crewbe/internal/session"
)

// Blob is the recording handed to the Coordinator.
type Blob struct {
	Data        []byte
	ContentType string
}

// Result describes a successful upload.
type Result struct {
	// Key is the canonical storage key: the one from the strategy that
	// succeeded, or the generated key when Simulated is set.
	Key string
	// Simulated marks a placeholder success that stored no object.
	Simulated bool
	Attempts  []session.UploadAttempt
}

// Options selects the optional tail of the standard chain.
type Options struct {
	// SimulateOnFailure appends the simulated placeholder, which reports a
	// flagged success when every real strategy failed.
	SimulateOnFailure bool
	// SimulatedDelay is waited before a simulated success is reported.
	SimulatedDelay time.Duration
}

// Chain returns the standard strategy order: presigned, proxied, then the
// simulated placeholder when enabled. Nil strategies are left out.
func Chain(presigned, proxied Strategy, opts Options) []Strategy {
	var chain []Strategy
	for _, s := range []Strategy{presigned, proxied} {
		if s != nil {
			chain = append(chain, s)
		}
	}
	if opts.SimulateOnFailure {
		chain = append(chain, NewSimulatedStrategy(opts.SimulatedDelay))
	}
	return chain
}

// Coordinator runs the upload strategy chain.
type Coordinator struct {
	keys   *KeyGenerator
	chain  []Strategy
	logger *slog.Logger
}

// NewCoordinator builds a coordinator that tries chain in order until one
// strategy succeeds. The first entry is the primary; the rest are fallbacks.
func NewCoordinator(keys *KeyGenerator, chain []Strategy, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		keys:   keys,
		chain:  append([]Strategy(nil), chain...),
		logger: logging.NewComponentLogger(logger, "upload"),
	}
}

// Upload stores the blob and returns the canonical key. The key is generated
// once, before any network call, and offered to every strategy; a strategy
// that stores under a different key wins with its own key.
func (c *Coordinator) Upload(ctx context.Context, blob Blob) (Result, error) {
	logger := logging.WithContext(ctx, c.logger)
	key := c.keys.New(blob.ContentType)
	logger.Info("storage key generated", logging.String(logging.FieldStorageKey, key))

	var (
		attempts []session.UploadAttempt
		lastErr  error
	)
	for i, strategy := range c.chain {
		if i > 0 {
			if ctx.Err() != nil {
				return Result{}, &Error{Attempts: attempts, Err: ctx.Err()}
			}
			previous := attempts[len(attempts)-1]
			logging.WarnWithContext(logger, "upload strategy failed; trying "+strategy.Name(), "upload_fallback",
				logging.Error(lastErr),
				logging.String(logging.FieldStrategy, previous.Strategy),
				logging.String("next_strategy", strategy.Name()),
				logging.Bool("stray_object", previous.StrayObject),
				logging.String(logging.FieldErrorHint, "check storage credentials and network reachability"),
				logging.String(logging.FieldImpact, "upload continues with the next strategy"),
			)
		}

		role := session.RoleFallback
		if i == 0 {
			role = session.RolePrimary
		}
		stored, attempt, err := c.attempt(ctx, logger, role, strategy, key, blob)
		if err == nil && stored.Simulated {
			logging.WarnWithContext(logger, "all upload strategies failed; reporting simulated upload", "upload_simulated",
				logging.Error(lastErr),
				logging.String(logging.FieldStorageKey, stored.Key),
				logging.Bool(logging.FieldSimulated, true),
				logging.String(logging.FieldErrorHint, "disable upload.simulate_on_failure to fail instead"),
				logging.String(logging.FieldImpact, "no object was stored; analysis will not find the recording"),
			)
			return Result{Key: stored.Key, Simulated: true, Attempts: attempts}, nil
		}
		attempts = append(attempts, attempt)
		if err == nil {
			return Result{Key: stored.Key, Attempts: attempts}, nil
		}
		lastErr = err
	}

	if ctx.Err() != nil {
		return Result{}, &Error{Attempts: attempts, Err: ctx.Err()}
	}
	if lastErr == nil {
		lastErr = errors.New("no upload strategy configured")
	}
	logging.ErrorWithContext(logger, "upload failed", "upload_failed",
		logging.Error(lastErr),
		logging.Int("attempts", len(attempts)),
		logging.String(logging.FieldErrorHint, "check the crewbe API and storage configuration"),
	)
	return Result{}, &Error{Attempts: attempts, Err: lastErr}
}

func (c *Coordinator) attempt(ctx context.Context, logger *slog.Logger, role session.AttemptRole, strategy Strategy, key string, blob Blob) (Stored, session.UploadAttempt, error) {
	counter := &countingReader{r: bytes.NewReader(blob.Data)}
	attempt := session.UploadAttempt{
		Role:      role,
		Strategy:  strategy.Name(),
		Key:       key,
		StartedAt: time.Now(),
	}
	stored, err := strategy.Upload(ctx, Request{
		Key:         key,
		ContentType: blob.ContentType,
		Size:        int64(len(blob.Data)),
		Body:        counter,
	})
	attempt.EndedAt = time.Now()
	attempt.BytesTransferred = counter.n.Load()

	if err != nil {
		attempt.Outcome = session.OutcomeFailed
		attempt.Error = err.Error()
		var maybe maybeStored
		attempt.StrayObject = errors.As(err, &maybe) && maybe.MaybeStored()
		return Stored{}, attempt, err
	}
	if stored.Simulated {
		return stored, attempt, nil
	}

	attempt.Outcome = session.OutcomeSucceeded
	attempt.Key = stored.Key
	logger.Info("recording uploaded",
		logging.String(logging.FieldEventType, "upload_succeeded"),
		logging.String(logging.FieldStrategy, attempt.Strategy),
		logging.String(logging.FieldStorageKey, stored.Key),
		logging.Int64("bytes", attempt.BytesTransferred),
		logging.Duration("duration", attempt.Duration()),
		logging.Float64("mbps", attempt.ThroughputMbps()),
	)
	return stored, attempt, nil
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
