package database

import (
	"context"
	"errors"
	"time"

	"github.com/donorline/donorline/internal/database/models"
)

// ErrConflict is returned when an insert would violate a uniqueness
// invariant, such as a second phone number for the same owner.
var ErrConflict = errors.New("database: conflict")

// PhoneNumberRepository manages provisioned phone numbers.
type PhoneNumberRepository interface {
	// Create inserts a purchased number. Returns ErrConflict if the owner
	// already has a number or the number itself is already recorded, so a
	// concurrent-purchase race loses cleanly at the storage layer.
	Create(ctx context.Context, num *models.PhoneNumber) error
	GetByID(ctx context.Context, id int64) (*models.PhoneNumber, error)
	GetByNumber(ctx context.Context, number string) (*models.PhoneNumber, error)
	GetByOwner(ctx context.Context, ownerUserID string) (*models.PhoneNumber, error)
	List(ctx context.Context) ([]models.PhoneNumber, error)
}

// CallListFilter specifies filtering and pagination for call list queries.
type CallListFilter struct {
	OwnerUserID string
	Kind        string // "voicemail", "callback", or "" for all
	Search      string // matches caller_number
	Limit       int
	Offset      int
}

// CallRecordingSummary attaches the recording (if any) to a call for list
// responses.
type CallRecordingSummary struct {
	Call      models.Call
	Recording *models.CallRecording
}

// CompletionResult reports what CompleteWithRecording did.
type CompletionResult struct {
	Call             *models.Call
	RecordingCreated bool   // false when the notification was a duplicate
	AppliedTranscript string // non-empty when a buffered transcript was attached
}

// CallRepository manages inbound call records.
type CallRepository interface {
	// CreateIfAbsent inserts a call keyed on its external call id. Duplicate
	// deliveries of the same inbound-call notification are no-ops; the
	// returned bool reports whether a row was created.
	CreateIfAbsent(ctx context.Context, call *models.Call) (bool, error)
	GetByExternalID(ctx context.Context, externalCallID string) (*models.Call, error)
	GetByID(ctx context.Context, id int64) (*models.Call, error)
	// CompleteWithRecording marks the call completed and attaches its
	// recording in one transaction. Keyed on the external ids, it is safe
	// against duplicate delivery: a repeated notification updates nothing
	// and creates no second recording row. Any buffered transcript for the
	// recording is applied in the same transaction. Returns (nil, nil) when
	// no call matches externalCallID.
	CompleteWithRecording(ctx context.Context, externalCallID, externalRecordingID, mediaURL string, durationSeconds int) (*CompletionResult, error)
	List(ctx context.Context, filter CallListFilter) ([]CallRecordingSummary, int, error)
	CountByKind(ctx context.Context) (callbacks, voicemails int64, err error)
}

// CallRecordingRepository manages call recordings and their transcripts.
type CallRecordingRepository interface {
	GetByExternalID(ctx context.Context, externalRecordingID string) (*models.CallRecording, error)
	ListByCall(ctx context.Context, callID int64) ([]models.CallRecording, error)
	// AttachTranscription sets the transcript on the recording matched by
	// external id and returns the number of rows updated (0 when the
	// recording does not exist yet).
	AttachTranscription(ctx context.Context, externalRecordingID, text string) (int64, error)
}

// GreetingRepository manages committee greetings.
type GreetingRepository interface {
	Create(ctx context.Context, g *models.Greeting) error
	GetByID(ctx context.Context, id int64) (*models.Greeting, error)
	// GetDefaultByOwner returns the owner's default greeting, or (nil, nil)
	// when none is marked default.
	GetDefaultByOwner(ctx context.Context, ownerUserID string) (*models.Greeting, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]models.Greeting, error)
	Update(ctx context.Context, g *models.Greeting) error
	// SetDefault makes the given greeting the owner's single default,
	// clearing any previous default in the same transaction.
	SetDefault(ctx context.Context, ownerUserID string, id int64) error
	Delete(ctx context.Context, id int64) error
}

// PendingTranscriptionRepository buffers transcripts that arrived before
// their recording row existed.
type PendingTranscriptionRepository interface {
	// Upsert stores the transcript keyed on the external recording id,
	// overwriting the text on duplicate delivery (last write wins).
	Upsert(ctx context.Context, externalRecordingID, text string) error
	List(ctx context.Context) ([]models.PendingTranscription, error)
	IncrementAttempts(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	// DeleteOlderThan prunes entries created before the cutoff and returns
	// the abandoned external recording ids for logging.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
	Count(ctx context.Context) (int64, error)
}
