package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"crewbe/internal/services"
)

// Create inserts a new session in the idle phase and returns it.
func (s *Store) Create(ctx context.Context, candidate Candidate, contentType string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:          uuid.NewString(),
		Phase:       PhaseIdle,
		Candidate:   candidate,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	timestamp := formatTime(now)
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO sessions (
            id, phase, candidate_name, candidate_airline, content_type, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.Phase,
		nullableString(candidate.Name),
		nullableString(candidate.Airline),
		nullableString(contentType),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// Get returns a session with its attempts, jobs and report. It returns nil
// without error when the id is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Attempts, err = s.attempts(ctx, id); err != nil {
		return nil, err
	}
	if sess.Jobs, err = s.jobs(ctx, id); err != nil {
		return nil, err
	}
	return sess, nil
}

// Resolve finds a session by full id or unique id prefix.
func (s *Store) Resolve(ctx context.Context, idOrPrefix string) (*Session, error) {
	ctx = ensureContext(ctx)
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, services.Wrap(services.ErrValidation, "session", "resolve", "session id is required", nil)
	}
	if sess, err := s.Get(ctx, idOrPrefix); err != nil || sess != nil {
		return sess, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions WHERE id LIKE ? ORDER BY created_at DESC LIMIT 2`, idOrPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, services.Wrap(services.ErrNotFound, "session", "resolve", fmt.Sprintf("no session matches %q", idOrPrefix), nil)
	case 1:
		return s.Get(ctx, ids[0])
	default:
		return nil, services.Wrap(services.ErrValidation, "session", "resolve", fmt.Sprintf("session prefix %q is ambiguous", idOrPrefix), nil)
	}
}

// List returns sessions newest first, optionally filtered by phase. Attempts
// and jobs are not loaded; limit <= 0 returns all rows.
func (s *Store) List(ctx context.Context, limit int, phases ...Phase) ([]*Session, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	args := make([]any, 0, len(phases)+1)
	if len(phases) > 0 {
		query += ` WHERE phase IN (` + makePlaceholders(len(phases)) + `)`
		for _, phase := range phases {
			args = append(args, phase)
		}
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// UpdatePhase records a phase change. errKind and errMessage are stored only
// for the failed phase and cleared otherwise.
func (s *Store) UpdatePhase(ctx context.Context, id string, phase Phase, errKind, errMessage string) error {
	if phase != PhaseFailed {
		errKind, errMessage = "", ""
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions SET phase = ?, error_kind = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		phase,
		nullableString(errKind),
		nullableString(errMessage),
		formatTime(time.Time{}),
		id,
	)
	if err != nil {
		return fmt.Errorf("update session phase: %w", err)
	}
	return requireRow(res, id)
}

// RecordCapture stores the finished recording's size, duration and spool path.
func (s *Store) RecordCapture(ctx context.Context, id string, duration time.Duration, size int64, blobPath string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions SET duration_seconds = ?, blob_size = ?, blob_path = ?, updated_at = ? WHERE id = ?`,
		duration.Seconds(),
		size,
		nullableString(blobPath),
		formatTime(time.Time{}),
		id,
	)
	if err != nil {
		return fmt.Errorf("record capture: %w", err)
	}
	return requireRow(res, id)
}

// SetStorageKey records the canonical storage key. A key is accepted once;
// later calls with a different key fail.
func (s *Store) SetStorageKey(ctx context.Context, id, key string, simulated bool) error {
	if strings.TrimSpace(key) == "" {
		return services.Wrap(services.ErrValidation, "session", "set storage key", "storage key is empty", nil)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions SET storage_key = ?, simulated = ?, updated_at = ?
         WHERE id = ? AND (storage_key IS NULL OR storage_key = ?)`,
		key,
		boolToInt(simulated),
		formatTime(time.Time{}),
		id,
		key,
	)
	if err != nil {
		return fmt.Errorf("set storage key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrValidation, "session", "set storage key",
			fmt.Sprintf("session %s already has a different storage key", id), nil)
	}
	return nil
}

// SaveReport persists the merged analysis report.
func (s *Store) SaveReport(ctx context.Context, id string, report Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions SET report_json = ?, updated_at = ? WHERE id = ?`,
		string(data),
		formatTime(time.Time{}),
		id,
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return requireRow(res, id)
}

// Remove deletes a session and its attempts and jobs.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes every terminal session and returns the number deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM sessions WHERE phase IN (?, ?)`, PhaseDone, PhaseFailed)
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return services.Wrap(services.ErrNotFound, "session", "update", fmt.Sprintf("session %s not found", id), nil)
	}
	return nil
}
