package database

import (
	"context"
	"fmt"
	"time"

	"github.com/donorline/donorline/internal/database/models"
)

// pendingTranscriptionRepo implements PendingTranscriptionRepository.
type pendingTranscriptionRepo struct {
	db *DB
}

// NewPendingTranscriptionRepository creates a new PendingTranscriptionRepository.
func NewPendingTranscriptionRepository(db *DB) PendingTranscriptionRepository {
	return &pendingTranscriptionRepo{db: db}
}

// Upsert stores a transcript that arrived before its recording row, keyed
// on the provider's recording SID. Duplicate delivery overwrites the text.
func (r *pendingTranscriptionRepo) Upsert(ctx context.Context, externalRecordingID, text string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`INSERT INTO pending_transcriptions (external_recording_id, transcription_text,
		 attempts, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT (external_recording_id) DO UPDATE SET
		 transcription_text = excluded.transcription_text, updated_at = excluded.updated_at`),
		externalRecordingID, text, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting pending transcription: %w", err)
	}
	return nil
}

// List returns all buffered transcripts, oldest first.
func (r *pendingTranscriptionRepo) List(ctx context.Context) ([]models.PendingTranscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, external_recording_id, transcription_text, attempts, created_at, updated_at
		 FROM pending_transcriptions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying pending transcriptions: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingTranscription
	for rows.Next() {
		var p models.PendingTranscription
		if err := rows.Scan(&p.ID, &p.ExternalRecordingID, &p.TranscriptionText,
			&p.Attempts, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning pending transcription row: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// IncrementAttempts records one more failed reconcile pass.
func (r *pendingTranscriptionRepo) IncrementAttempts(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE pending_transcriptions SET attempts = attempts + 1, updated_at = ? WHERE id = ?`),
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("incrementing pending transcription attempts: %w", err)
	}
	return nil
}

// Delete removes a buffered transcript by ID.
func (r *pendingTranscriptionRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`DELETE FROM pending_transcriptions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting pending transcription: %w", err)
	}
	return nil
}

// DeleteOlderThan prunes entries created before the cutoff, returning the
// abandoned recording ids so the reconciler can log each loss.
func (r *pendingTranscriptionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(
		`DELETE FROM pending_transcriptions WHERE created_at < ?
		 RETURNING external_recording_id`), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("pruning pending transcriptions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning pruned transcription id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of buffered transcripts.
func (r *pendingTranscriptionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_transcriptions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending transcriptions: %w", err)
	}
	return n, nil
}
