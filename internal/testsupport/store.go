package testsupport

import (
	"context"
	"testing"

	"crewbe/internal/config"
	"crewbe/internal/session"
)

// MustOpenStore opens a session.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *session.Store {
	t.Helper()

	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession creates an idle session for tests using the provided store.
func NewSession(t testing.TB, store *session.Store) *session.Session {
	t.Helper()

	sess, err := store.Create(context.Background(), session.Candidate{Name: "Test Candidate"}, "video/webm")
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return sess
}
