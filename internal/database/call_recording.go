package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/donorline/donorline/internal/database/models"
)

// callRecordingRepo implements CallRecordingRepository.
type callRecordingRepo struct {
	db *DB
}

// NewCallRecordingRepository creates a new CallRecordingRepository.
func NewCallRecordingRepository(db *DB) CallRecordingRepository {
	return &callRecordingRepo{db: db}
}

const callRecordingColumns = `id, call_id, external_recording_id, media_url,
	 duration_seconds, transcription_text, created_at, updated_at`

// GetByExternalID returns a recording by the provider's recording SID.
func (r *callRecordingRepo) GetByExternalID(ctx context.Context, externalRecordingID string) (*models.CallRecording, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+callRecordingColumns+` FROM call_recordings
		 WHERE external_recording_id = ?`), externalRecordingID,
	))
}

// ListByCall returns all recordings for a call, oldest first.
func (r *callRecordingRepo) ListByCall(ctx context.Context, callID int64) ([]models.CallRecording, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`SELECT `+callRecordingColumns+` FROM call_recordings
		 WHERE call_id = ? ORDER BY created_at`), callID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying call recordings: %w", err)
	}
	defer rows.Close()

	var recs []models.CallRecording
	for rows.Next() {
		var rec models.CallRecording
		if err := rows.Scan(&rec.ID, &rec.CallID, &rec.ExternalRecordingID,
			&rec.MediaURL, &rec.DurationSeconds, &rec.TranscriptionText,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning call recording row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// AttachTranscription sets the transcript on the recording matched by the
// provider's recording SID. Returns the number of rows updated; zero means
// the recording row does not exist yet and the caller should buffer the
// transcript instead.
func (r *callRecordingRepo) AttachTranscription(ctx context.Context, externalRecordingID, text string) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE call_recordings SET transcription_text = ?, updated_at = ?
		 WHERE external_recording_id = ?`),
		text, time.Now().UTC(), externalRecordingID,
	)
	if err != nil {
		return 0, fmt.Errorf("attaching transcription: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting affected rows: %w", err)
	}
	return n, nil
}

func (r *callRecordingRepo) scanOne(row *sql.Row) (*models.CallRecording, error) {
	var rec models.CallRecording
	err := row.Scan(&rec.ID, &rec.CallID, &rec.ExternalRecordingID,
		&rec.MediaURL, &rec.DurationSeconds, &rec.TranscriptionText,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning call recording: %w", err)
	}
	return &rec, nil
}
