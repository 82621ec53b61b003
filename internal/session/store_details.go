package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordAttempt stores an upload attempt. Each role is recorded at most once
// per session.
func (s *Store) RecordAttempt(ctx context.Context, id string, attempt UploadAttempt) error {
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO upload_attempts (
            session_id, role, strategy, storage_key, started_at, ended_at,
            bytes_transferred, outcome, error_message, stray_object
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		attempt.Role,
		attempt.Strategy,
		nullableString(attempt.Key),
		formatTime(attempt.StartedAt),
		formatTime(attempt.EndedAt),
		attempt.BytesTransferred,
		attempt.Outcome,
		nullableString(attempt.Error),
		boolToInt(attempt.StrayObject),
	)
	if err != nil {
		return fmt.Errorf("record upload attempt: %w", err)
	}
	return nil
}

// SaveJobs records the three dispatched jobs in one transaction.
func (s *Store) SaveJobs(ctx context.Context, id string, jobs []AnalysisJob) error {
	ctx = ensureContext(ctx)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, job := range jobs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO analysis_jobs (session_id, kind, handle, status, error_message, started_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id,
				job.Kind,
				nullableString(job.Handle),
				job.Status,
				nullableString(job.Error),
				formatTime(job.StartedAt),
				formatTime(job.UpdatedAt),
			); err != nil {
				return fmt.Errorf("insert %s job: %w", job.Kind, err)
			}
		}
		return nil
	})
}

// UpdateJob writes a polled job status.
func (s *Store) UpdateJob(ctx context.Context, id string, job AnalysisJob) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE analysis_jobs SET status = ?, error_message = ?, updated_at = ? WHERE session_id = ? AND kind = ?`,
		job.Status,
		nullableString(job.Error),
		formatTime(job.UpdatedAt),
		id,
		job.Kind,
	)
	if err != nil {
		return fmt.Errorf("update %s job: %w", job.Kind, err)
	}
	return requireRow(res, id)
}

func (s *Store) attempts(ctx context.Context, id string) ([]UploadAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, strategy, storage_key, started_at, ended_at, bytes_transferred, outcome, error_message, stray_object
         FROM upload_attempts WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load upload attempts: %w", err)
	}
	defer rows.Close()

	var out []UploadAttempt
	for rows.Next() {
		var (
			attempt              UploadAttempt
			key, errMsg          sql.NullString
			startedRaw, endedRaw string
			stray                int64
		)
		if err := rows.Scan(&attempt.Role, &attempt.Strategy, &key, &startedRaw, &endedRaw,
			&attempt.BytesTransferred, &attempt.Outcome, &errMsg, &stray); err != nil {
			return nil, err
		}
		attempt.Key = key.String
		attempt.Error = errMsg.String
		attempt.StrayObject = stray != 0
		attempt.StartedAt = mustParseTime(startedRaw)
		attempt.EndedAt = mustParseTime(endedRaw)
		out = append(out, attempt)
	}
	return out, rows.Err()
}

func (s *Store) jobs(ctx context.Context, id string) ([]AnalysisJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, handle, status, error_message, started_at, updated_at
         FROM analysis_jobs WHERE session_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("load analysis jobs: %w", err)
	}
	defer rows.Close()

	byKind := make(map[JobKind]AnalysisJob, 3)
	for rows.Next() {
		var (
			job                    AnalysisJob
			handle, errMsg         sql.NullString
			startedRaw, updatedRaw string
		)
		if err := rows.Scan(&job.Kind, &handle, &job.Status, &errMsg, &startedRaw, &updatedRaw); err != nil {
			return nil, err
		}
		job.Handle = handle.String
		job.Error = errMsg.String
		job.StartedAt = mustParseTime(startedRaw)
		job.UpdatedAt = mustParseTime(updatedRaw)
		byKind[job.Kind] = job
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []AnalysisJob
	for _, kind := range AllJobKinds() {
		if job, ok := byKind[kind]; ok {
			out = append(out, job)
		}
	}
	return out, nil
}

func mustParseTime(value string) time.Time {
	t, err := parseTimeString(value)
	if err != nil {
		return time.Time{}
	}
	return t
}
