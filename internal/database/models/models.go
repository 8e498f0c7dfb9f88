package models

import "time"

// Call status values as reported through the provider lifecycle.
const (
	CallStatusInProgress = "in-progress"
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
)

// PhoneNumber represents a provider number purchased for a committee.
// At most one number exists per owner; the storage layer enforces this
// with a unique index on owner_user_id.
type PhoneNumber struct {
	ID               int64
	PublicID         string // uuid exposed to API clients
	OwnerUserID      string
	Number           string // E.164
	ExternalNumberID string // provider's number SID
	FriendlyName     string
	Status           string
	VoiceCapable     bool
	SMSCapable       bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Call represents one inbound call on a provisioned number. Created once
// when the provider reports the call starting, completed once when its
// recording finishes, immutable thereafter.
type Call struct {
	ID              int64
	PublicID        string // uuid exposed to API clients
	OwnerUserID     string
	PhoneNumberID   int64
	CallerNumber    string // E.164 of the caller
	ExternalCallID  string // provider's call SID, unique
	Status          string // in-progress | completed | failed
	DurationSeconds *int
	HasRecording    bool
	CallTime        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CallRecording is the audio captured for a call. TranscriptionText is
// attached later by the transcription webhook, matched on
// ExternalRecordingID. A recording with a transcript is classified as a
// voicemail; without one it is a plain callback.
type CallRecording struct {
	ID                  int64
	CallID              int64
	ExternalRecordingID string // provider's recording SID, unique
	MediaURL            string
	DurationSeconds     *int
	TranscriptionText   *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Voicemail reports whether the recording carries a transcript, which is
// how the UI distinguishes voicemails from plain callbacks.
func (r *CallRecording) Voicemail() bool {
	return r.TranscriptionText != nil && *r.TranscriptionText != ""
}

// Greeting is the pre-recorded audio a committee plays to callers before
// recording their message. Exactly one greeting per owner may be the
// default; GreetingRepository.SetDefault enforces this transactionally.
type Greeting struct {
	ID          int64
	OwnerUserID string
	DisplayName string
	Description string
	MediaURL    string
	IsDefault   bool
	NotifyEmail string // optional address for new-voicemail notifications
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PendingTranscription buffers a transcript that arrived before its
// recording row existed. The reconciler retries these until the recording
// appears or the entry ages out.
type PendingTranscription struct {
	ID                  int64
	ExternalRecordingID string
	TranscriptionText   string
	Attempts            int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
