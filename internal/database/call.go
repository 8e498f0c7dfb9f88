package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/donorline/donorline/internal/database/models"
	"github.com/google/uuid"
)

// callRepo implements CallRepository.
type callRepo struct {
	db *DB
}

// NewCallRepository creates a new CallRepository.
func NewCallRepository(db *DB) CallRepository {
	return &callRepo{db: db}
}

const callColumns = `id, public_id, owner_user_id, phone_number_id, caller_number,
	 external_call_id, status, duration_seconds, has_recording, call_time,
	 created_at, updated_at`

// CreateIfAbsent inserts a call keyed on external_call_id. The provider
// delivers webhooks at least once, so a redelivered inbound-call
// notification must not create a second row.
func (r *callRepo) CreateIfAbsent(ctx context.Context, call *models.Call) (bool, error) {
	if call.PublicID == "" {
		call.PublicID = uuid.NewString()
	}
	now := time.Now().UTC()
	call.CreatedAt = now
	call.UpdatedAt = now
	if call.CallTime.IsZero() {
		call.CallTime = now
	}
	if call.Status == "" {
		call.Status = models.CallStatusInProgress
	}

	var id int64
	err := r.db.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO calls (public_id, owner_user_id, phone_number_id, caller_number,
		 external_call_id, status, duration_seconds, has_recording, call_time,
		 created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (external_call_id) DO NOTHING
		 RETURNING id`),
		call.PublicID, call.OwnerUserID, call.PhoneNumberID, call.CallerNumber,
		call.ExternalCallID, call.Status, call.DurationSeconds, call.HasRecording,
		call.CallTime, call.CreatedAt, call.UpdatedAt,
	).Scan(&id)
	if err == sql.ErrNoRows {
		// Duplicate delivery; surface the existing row's identity.
		existing, lookupErr := r.GetByExternalID(ctx, call.ExternalCallID)
		if lookupErr != nil {
			return false, lookupErr
		}
		if existing != nil {
			*call = *existing
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inserting call: %w", err)
	}
	call.ID = id
	return true, nil
}

// GetByExternalID returns a call by the provider's call SID.
func (r *callRepo) GetByExternalID(ctx context.Context, externalCallID string) (*models.Call, error) {
	return scanCall(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+callColumns+` FROM calls WHERE external_call_id = ?`), externalCallID,
	))
}

// GetByID returns a call by ID.
func (r *callRepo) GetByID(ctx context.Context, id int64) (*models.Call, error) {
	return scanCall(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+callColumns+` FROM calls WHERE id = ?`), id,
	))
}

// CompleteWithRecording applies a recording-completed notification as one
// transaction: the call row is marked completed, the recording row is
// inserted if absent, and any transcript buffered ahead of the recording
// is attached. The whole operation is keyed on the provider's external
// ids, so redelivering the notification changes nothing.
func (r *callRepo) CompleteWithRecording(ctx context.Context, externalCallID, externalRecordingID, mediaURL string, durationSeconds int) (*CompletionResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	call, err := scanCall(tx.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+callColumns+` FROM calls WHERE external_call_id = ?`), externalCallID,
	))
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, nil
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, r.db.rebind(
		`UPDATE calls SET status = ?, has_recording = ?, duration_seconds = ?, updated_at = ?
		 WHERE id = ?`),
		models.CallStatusCompleted, true, durationSeconds, now, call.ID,
	); err != nil {
		return nil, fmt.Errorf("completing call: %w", err)
	}

	var recordingID int64
	recordingCreated := true
	err = tx.QueryRowContext(ctx, r.db.rebind(
		`INSERT INTO call_recordings (call_id, external_recording_id, media_url,
		 duration_seconds, transcription_text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, NULL, ?, ?)
		 ON CONFLICT (external_recording_id) DO NOTHING
		 RETURNING id`),
		call.ID, externalRecordingID, mediaURL, durationSeconds, now, now,
	).Scan(&recordingID)
	if err == sql.ErrNoRows {
		recordingCreated = false
	} else if err != nil {
		return nil, fmt.Errorf("inserting call recording: %w", err)
	}

	// Attach a transcript that arrived before the recording existed.
	var applied string
	if recordingCreated {
		var pendingID int64
		var text string
		err = tx.QueryRowContext(ctx, r.db.rebind(
			`SELECT id, transcription_text FROM pending_transcriptions
			 WHERE external_recording_id = ?`), externalRecordingID,
		).Scan(&pendingID, &text)
		switch {
		case err == sql.ErrNoRows:
			// No buffered transcript.
		case err != nil:
			return nil, fmt.Errorf("checking pending transcription: %w", err)
		default:
			if _, err := tx.ExecContext(ctx, r.db.rebind(
				`UPDATE call_recordings SET transcription_text = ?, updated_at = ? WHERE id = ?`),
				text, now, recordingID,
			); err != nil {
				return nil, fmt.Errorf("applying pending transcription: %w", err)
			}
			if _, err := tx.ExecContext(ctx, r.db.rebind(
				`DELETE FROM pending_transcriptions WHERE id = ?`), pendingID,
			); err != nil {
				return nil, fmt.Errorf("deleting pending transcription: %w", err)
			}
			applied = text
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing recording completion: %w", err)
	}

	call.Status = models.CallStatusCompleted
	call.HasRecording = true
	call.DurationSeconds = &durationSeconds
	call.UpdatedAt = now

	return &CompletionResult{
		Call:              call,
		RecordingCreated:  recordingCreated,
		AppliedTranscript: applied,
	}, nil
}

// List returns calls with their recordings matching the filter, newest
// first, along with the total count.
func (r *callRepo) List(ctx context.Context, filter CallListFilter) ([]CallRecordingSummary, int, error) {
	where := "1=1"
	args := []any{}

	if filter.OwnerUserID != "" {
		where += " AND c.owner_user_id = ?"
		args = append(args, filter.OwnerUserID)
	}
	switch filter.Kind {
	case "voicemail":
		where += " AND r.transcription_text IS NOT NULL AND r.transcription_text != ''"
	case "callback":
		where += " AND (r.transcription_text IS NULL OR r.transcription_text = '')"
	}
	if filter.Search != "" {
		where += " AND c.caller_number LIKE ?"
		args = append(args, "%"+filter.Search+"%")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM calls c
		 LEFT JOIN call_recordings r ON r.call_id = c.id WHERE ` + where
	if err := r.db.QueryRowContext(ctx, r.db.rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting calls: %w", err)
	}

	query := `SELECT c.id, c.public_id, c.owner_user_id, c.phone_number_id, c.caller_number,
		 c.external_call_id, c.status, c.duration_seconds, c.has_recording, c.call_time,
		 c.created_at, c.updated_at,
		 r.id, r.external_recording_id, r.media_url, r.duration_seconds,
		 r.transcription_text, r.created_at, r.updated_at
		 FROM calls c
		 LEFT JOIN call_recordings r ON r.call_id = c.id
		 WHERE ` + where + ` ORDER BY c.call_time DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing calls: %w", err)
	}
	defer rows.Close()

	var items []CallRecordingSummary
	for rows.Next() {
		var c models.Call
		var recID sql.NullInt64
		var recExternalID, recMediaURL, recTranscript sql.NullString
		var recDuration sql.NullInt64
		var recCreated, recUpdated sql.NullTime

		if err := rows.Scan(&c.ID, &c.PublicID, &c.OwnerUserID, &c.PhoneNumberID,
			&c.CallerNumber, &c.ExternalCallID, &c.Status, &c.DurationSeconds,
			&c.HasRecording, &c.CallTime, &c.CreatedAt, &c.UpdatedAt,
			&recID, &recExternalID, &recMediaURL, &recDuration,
			&recTranscript, &recCreated, &recUpdated); err != nil {
			return nil, 0, fmt.Errorf("scanning call row: %w", err)
		}

		item := CallRecordingSummary{Call: c}
		if recID.Valid {
			rec := models.CallRecording{
				ID:                  recID.Int64,
				CallID:              c.ID,
				ExternalRecordingID: recExternalID.String,
				MediaURL:            recMediaURL.String,
				CreatedAt:           recCreated.Time,
				UpdatedAt:           recUpdated.Time,
			}
			if recDuration.Valid {
				d := int(recDuration.Int64)
				rec.DurationSeconds = &d
			}
			if recTranscript.Valid {
				t := recTranscript.String
				rec.TranscriptionText = &t
			}
			item.Recording = &rec
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating call rows: %w", err)
	}
	return items, total, nil
}

// CountByKind returns how many recorded calls are plain callbacks versus
// transcribed voicemails, for the metrics collector.
func (r *callRepo) CountByKind(ctx context.Context) (int64, int64, error) {
	var callbacks, voicemails int64
	err := r.db.QueryRowContext(ctx,
		`SELECT
		 COALESCE(SUM(CASE WHEN r.transcription_text IS NULL OR r.transcription_text = '' THEN 1 ELSE 0 END), 0),
		 COALESCE(SUM(CASE WHEN r.transcription_text IS NOT NULL AND r.transcription_text != '' THEN 1 ELSE 0 END), 0)
		 FROM call_recordings r`,
	).Scan(&callbacks, &voicemails)
	if err != nil {
		return 0, 0, fmt.Errorf("counting calls by kind: %w", err)
	}
	return callbacks, voicemails, nil
}

func scanCall(row *sql.Row) (*models.Call, error) {
	var c models.Call
	err := row.Scan(&c.ID, &c.PublicID, &c.OwnerUserID, &c.PhoneNumberID,
		&c.CallerNumber, &c.ExternalCallID, &c.Status, &c.DurationSeconds,
		&c.HasRecording, &c.CallTime, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning call: %w", err)
	}
	return &c, nil
}
