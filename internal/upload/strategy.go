package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Request is one write of the recording. Body is consumed by the strategy.
type Request struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Credential is a delegated write permission scoped to a single key.
type Credential struct {
	URL       string
	Key       string
	Bucket    string
	ExpiresAt time.Time
}

// CredentialIssuer hands out short-lived write credentials.
type CredentialIssuer interface {
	IssueWriteCredential(ctx context.Context, key, contentType string) (Credential, error)
}

// CredentialWriter writes an object using a delegated credential.
type CredentialWriter interface {
	PutWithCredential(ctx context.Context, cred Credential, req Request) error
}

// ProxyWriter writes an object through a server that holds its own
// credentials. It returns the key the server stored the object under.
type ProxyWriter interface {
	PutProxied(ctx context.Context, req Request) (string, error)
}

// Stored is what a strategy reports after a successful write.
type Stored struct {
	// Key is where the object landed, which may differ from Request.Key.
	Key string
	// Simulated marks a placeholder that wrote nothing.
	Simulated bool
}

// Strategy is one way of storing the recording.
type Strategy interface {
	Name() string
	Upload(ctx context.Context, req Request) (Stored, error)
}

// maybeStored marks failures where an object may exist despite the error.
type maybeStored interface {
	MaybeStored() bool
}

type writeError struct {
	err error
}

func (e *writeError) Error() string     { return e.err.Error() }
func (e *writeError) Unwrap() error     { return e.err }
func (e *writeError) MaybeStored() bool { return true }

// PresignedStrategy writes directly to object storage with a credential
// scoped to the pre-generated key.
type PresignedStrategy struct {
	issuer CredentialIssuer
	writer CredentialWriter
}

// NewPresignedStrategy builds the primary strategy.
func NewPresignedStrategy(issuer CredentialIssuer, writer CredentialWriter) *PresignedStrategy {
	return &PresignedStrategy{issuer: issuer, writer: writer}
}

func (s *PresignedStrategy) Name() string { return "presigned" }

func (s *PresignedStrategy) Upload(ctx context.Context, req Request) (Stored, error) {
	cred, err := s.issuer.IssueWriteCredential(ctx, req.Key, req.ContentType)
	if err != nil {
		return Stored{}, fmt.Errorf("issue write credential: %w", err)
	}
	if strings.TrimSpace(cred.URL) == "" {
		return Stored{}, errors.New("issue write credential: empty upload url")
	}
	if cred.Key == "" {
		cred.Key = req.Key
	}
	if !cred.ExpiresAt.IsZero() && time.Now().After(cred.ExpiresAt) {
		return Stored{}, fmt.Errorf("write credential expired at %s", cred.ExpiresAt.Format(time.RFC3339))
	}
	if err := s.writer.PutWithCredential(ctx, cred, req); err != nil {
		return Stored{}, &writeError{err: fmt.Errorf("direct write: %w", err)}
	}
	return Stored{Key: cred.Key}, nil
}

// ProxiedStrategy writes through the crewbe API, which picks the key.
type ProxiedStrategy struct {
	proxy ProxyWriter
}

// NewProxiedStrategy builds the fallback strategy.
func NewProxiedStrategy(proxy ProxyWriter) *ProxiedStrategy {
	return &ProxiedStrategy{proxy: proxy}
}

func (s *ProxiedStrategy) Name() string { return "proxied" }

func (s *ProxiedStrategy) Upload(ctx context.Context, req Request) (Stored, error) {
	key, err := s.proxy.PutProxied(ctx, req)
	if err != nil {
		return Stored{}, fmt.Errorf("proxied write: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return Stored{}, errors.New("proxied write: server returned no key")
	}
	return Stored{Key: key}, nil
}

// SimulatedStrategy ends the chain with a flagged placeholder. It writes
// nothing and reports the pre-generated key after an optional delay.
type SimulatedStrategy struct {
	delay time.Duration
}

// NewSimulatedStrategy builds the terminal placeholder strategy.
func NewSimulatedStrategy(delay time.Duration) *SimulatedStrategy {
	return &SimulatedStrategy{delay: delay}
}

func (s *SimulatedStrategy) Name() string { return "simulated" }

func (s *SimulatedStrategy) Upload(ctx context.Context, req Request) (Stored, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Stored{}, ctx.Err()
		case <-timer.C:
		}
	}
	return Stored{Key: req.Key, Simulated: true}, nil
}
