package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const sessionColumns = "id, phase, candidate_name, candidate_airline, duration_seconds, blob_size, blob_path, content_type, storage_key, simulated, error_kind, error_message, report_json, created_at, updated_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id               string
		phase            string
		candidateName    sql.NullString
		candidateAirline sql.NullString
		duration         sql.NullFloat64
		blobSize         sql.NullInt64
		blobPath         sql.NullString
		contentType      sql.NullString
		storageKey       sql.NullString
		simulated        sql.NullInt64
		errorKind        sql.NullString
		errorMessage     sql.NullString
		reportJSON       sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&phase,
		&candidateName,
		&candidateAirline,
		&duration,
		&blobSize,
		&blobPath,
		&contentType,
		&storageKey,
		&simulated,
		&errorKind,
		&errorMessage,
		&reportJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:              id,
		Phase:           Phase(phase),
		Candidate:       Candidate{Name: candidateName.String, Airline: candidateAirline.String},
		DurationSeconds: duration.Float64,
		BlobSize:        blobSize.Int64,
		BlobPath:        blobPath.String,
		ContentType:     contentType.String,
		StorageKey:      storageKey.String,
		Simulated:       simulated.Valid && simulated.Int64 != 0,
		ErrorKind:       errorKind.String,
		ErrorMessage:    errorMessage.String,
	}
	if reportJSON.Valid && reportJSON.String != "" {
		var report Report
		if err := json.Unmarshal([]byte(reportJSON.String), &report); err == nil {
			sess.Report = &report
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		sess.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sess.UpdatedAt = updated
	}
	return sess, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		value = time.Now()
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
