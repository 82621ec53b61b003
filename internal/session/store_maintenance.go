package session

import (
	"context"
	"fmt"
	"os"
	"time"
)

// FailInterrupted marks sessions left in an active phase by a crashed process
// as failed. Remote analysis jobs are not touched.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions SET phase = ?, error_kind = ?, error_message = ?, updated_at = ?
         WHERE phase IN (?, ?, ?)`,
		PhaseFailed,
		"internal",
		"interrupted: process exited before the session finished",
		formatTime(time.Time{}),
		PhaseRecording,
		PhaseUploading,
		PhaseAnalyzing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted sessions: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of sessions grouped by phase.
func (s *Store) Stats(ctx context.Context) (map[Phase]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT phase, COUNT(1) FROM sessions GROUP BY phase`)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Phase]int)
	for rows.Next() {
		var phase Phase
		var count int
		if err := rows.Scan(&phase, &count); err != nil {
			return nil, err
		}
		stats[phase] = count
	}
	return stats, rows.Err()
}

// DatabaseHealth describes the session database for diagnostics.
type DatabaseHealth struct {
	Path          string
	SizeBytes     int64
	SchemaVersion int
	Sessions      int
	IntegrityOK   bool
}

// CheckHealth returns diagnostic information about the session database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	ctx = ensureContext(ctx)
	health := DatabaseHealth{Path: s.path}
	if info, err := os.Stat(s.path); err == nil {
		health.SizeBytes = info.Size()
	}
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&health.SchemaVersion); err != nil {
		return health, fmt.Errorf("read schema version: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions`).Scan(&health.Sessions); err != nil {
		return health, fmt.Errorf("count sessions: %w", err)
	}
	var integrity string
	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&integrity); err != nil {
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityOK = integrity == "ok"
	return health, nil
}
