package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/donorline/donorline/internal/database/models"
	"github.com/donorline/donorline/internal/email"
	"github.com/donorline/donorline/internal/twiml"
)

// Spoken prompts for the inbound-call sequence. The greeting audio plays
// between them when the committee has one configured.
const (
	voicePromptIntro = "Thank you for calling. Please wait for the message."
	voicePromptOutro = "We did not receive a recording. Goodbye."
)

// maxRecordingSeconds caps caller message length.
const maxRecordingSeconds = 120

// webhookURL builds an externally reachable callback URL from the configured
// public base.
func (s *Server) webhookURL(path string) string {
	return s.cfg.PublicBaseURL + path
}

// handleVoiceWebhook answers the provider's inbound-call notification with
// the call-control document that plays the greeting and records the caller.
//
// The provider must always receive well-formed instructions or the live call
// drops ungracefully, so every failure past field validation answers with an
// empty document instead of an HTTP error.
func (s *Server) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeXML(w, http.StatusBadRequest, twiml.Empty())
		return
	}

	callSid := r.PostFormValue("CallSid")
	from := r.PostFormValue("From")
	to := r.PostFormValue("To")
	if callSid == "" || from == "" || to == "" {
		writeXML(w, http.StatusBadRequest, twiml.Empty())
		return
	}

	ctx := r.Context()

	phone, err := s.phones.GetByNumber(ctx, to)
	if err != nil {
		slog.Error("voice webhook: phone number lookup failed", "error", err, "to", to)
		writeXML(w, http.StatusOK, twiml.Empty())
		return
	}
	if phone == nil {
		// Calls to numbers we no longer track are not an error; hang up
		// cleanly with a no-op document.
		slog.Info("voice webhook: unrecognised destination", "to", to, "call_sid", callSid)
		writeXML(w, http.StatusOK, twiml.Empty())
		return
	}

	call := &models.Call{
		OwnerUserID:    phone.OwnerUserID,
		PhoneNumberID:  phone.ID,
		CallerNumber:   from,
		ExternalCallID: callSid,
		Status:         models.CallStatusInProgress,
		CallTime:       time.Now().UTC(),
	}
	created, err := s.calls.CreateIfAbsent(ctx, call)
	if err != nil {
		slog.Error("voice webhook: failed to record call", "error", err, "call_sid", callSid)
		writeXML(w, http.StatusOK, twiml.Empty())
		return
	}
	if !created {
		slog.Info("voice webhook: duplicate notification", "call_sid", callSid)
	}

	greeting, err := s.greetings.GetDefaultByOwner(ctx, phone.OwnerUserID)
	if err != nil {
		slog.Error("voice webhook: greeting lookup failed", "error", err, "owner", phone.OwnerUserID)
		greeting = nil
	}

	doc := twiml.New().Say(voicePromptIntro)
	if greeting != nil && greeting.MediaURL != "" {
		doc.Play(greeting.MediaURL)
	}
	doc.Record(twiml.RecordOptions{
		Action:             s.webhookURL("/recording-status"),
		Method:             http.MethodPost,
		MaxLengthSeconds:   maxRecordingSeconds,
		PlayBeep:           true,
		Trim:               "trim-silence",
		Transcribe:         true,
		TranscribeCallback: s.webhookURL("/transcription-webhook"),
	})
	doc.Say(voicePromptOutro)

	rendered, err := doc.Render()
	if err != nil {
		slog.Error("voice webhook: failed to render document", "error", err, "call_sid", callSid)
		writeXML(w, http.StatusOK, twiml.Empty())
		return
	}

	slog.Info("voice webhook: call answered",
		"call_sid", callSid,
		"caller", from,
		"owner", phone.OwnerUserID,
		"new_call", created,
	)
	writeXML(w, http.StatusOK, rendered)
}

// handleRecordingStatus processes the asynchronous recording-finished
// notification: marks the call completed and attaches the recording in one
// transaction. Partial or failed recordings are acknowledged and dropped.
func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeXML(w, http.StatusOK, twiml.Empty())
		return
	}

	callSid := r.PostFormValue("CallSid")
	recordingSid := r.PostFormValue("RecordingSid")
	recordingURL := r.PostFormValue("RecordingUrl")
	status := r.PostFormValue("RecordingStatus")

	if status != "completed" || callSid == "" || recordingSid == "" || recordingURL == "" {
		slog.Debug("recording status: dropped notification",
			"call_sid", callSid, "recording_sid", recordingSid, "status", status)
		writeXML(w, http.StatusOK, twiml.Empty())
		return
	}

	duration, err := strconv.Atoi(r.PostFormValue("RecordingDuration"))
	if err != nil || duration < 0 {
		duration = 0
	}

	res, err := s.calls.CompleteWithRecording(r.Context(), callSid, recordingSid, recordingURL, duration)
	if err != nil {
		slog.Error("recording status: failed to complete call", "error", err, "call_sid", callSid)
		writeXML(w, http.StatusOK, twiml.Empty())
		return
	}
	if res == nil {
		// The provider can deliver this before (or without) the inbound-call
		// notification. Acknowledge so it stops retrying.
		slog.Warn("recording status: no matching call", "call_sid", callSid)
		writeXML(w, http.StatusOK, twiml.Empty())
		return
	}

	if !res.RecordingCreated {
		slog.Info("recording status: duplicate notification", "recording_sid", recordingSid)
	}

	slog.Info("recording status: call completed",
		"call_sid", callSid,
		"recording_sid", recordingSid,
		"duration_s", duration,
		"buffered_transcript", res.AppliedTranscript != "",
	)

	// A buffered transcript applied in the same transaction upgrades this
	// callback to a voicemail right now.
	if res.RecordingCreated && res.AppliedTranscript != "" {
		s.notifyVoicemail(res.Call, recordingURL, duration, res.AppliedTranscript)
	}

	writeXML(w, http.StatusOK, twiml.Empty())
}

// handleTranscription attaches a transcript to its recording, matched by the
// provider's recording id. A transcript arriving before the recording row
// exists is buffered for the reconciler rather than dropped.
func (s *Server) handleTranscription(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form body")
		return
	}

	recordingSid := r.PostFormValue("RecordingSid")
	text := r.PostFormValue("TranscriptionText")
	if recordingSid == "" || text == "" {
		writeError(w, http.StatusBadRequest, "RecordingSid and TranscriptionText are required")
		return
	}

	ctx := r.Context()

	updated, err := s.recordings.AttachTranscription(ctx, recordingSid, text)
	if err != nil {
		slog.Error("transcription: attach failed", "error", err, "recording_sid", recordingSid)
		updated = 0
	}

	if updated == 0 {
		// Recording row not there yet (webhooks carry no ordering guarantee)
		// or the store hiccuped. Park the transcript; the reconciler applies
		// it once the recording appears.
		if err := s.pending.Upsert(ctx, recordingSid, text); err != nil {
			slog.Error("transcription: failed to buffer transcript", "error", err, "recording_sid", recordingSid)
			// Surface the failure so the provider's at-least-once delivery
			// redelivers; the call is already over, nothing breaks mid-call.
			writeError(w, http.StatusInternalServerError, "failed to store transcription")
			return
		}
		slog.Info("transcription: buffered until recording arrives", "recording_sid", recordingSid)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	slog.Info("transcription: transcript attached", "recording_sid", recordingSid)

	// The recording just became a voicemail; notify the committee.
	if rec, err := s.recordings.GetByExternalID(ctx, recordingSid); err == nil && rec != nil {
		if call, err := s.calls.GetByID(ctx, rec.CallID); err == nil && call != nil {
			dur := 0
			if rec.DurationSeconds != nil {
				dur = *rec.DurationSeconds
			}
			s.notifyVoicemail(call, rec.MediaURL, dur, text)
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// smtpConfig builds the SMTP settings for notification email from config.
func (s *Server) smtpConfig() email.SMTPConfig {
	return email.SMTPConfig{
		Host:     s.cfg.SMTPHost,
		Port:     s.cfg.SMTPPort,
		From:     s.cfg.SMTPFrom,
		Username: s.cfg.SMTPUsername,
		Password: s.cfg.SMTPPassword,
		TLS:      s.cfg.SMTPTLS,
	}
}

// notifyVoicemail emails the committee about a new transcribed voicemail, if
// notifications are configured. Best effort: delivery runs detached from the
// webhook request and failures only log.
func (s *Server) notifyVoicemail(call *models.Call, mediaURL string, durationSecs int, transcript string) {
	if s.sender == nil || call == nil {
		return
	}
	cfg := s.smtpConfig()
	if !cfg.Valid() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	greeting, err := s.greetings.GetDefaultByOwner(ctx, call.OwnerUserID)
	if err != nil {
		slog.Error("voicemail notify: greeting lookup failed", "error", err, "owner", call.OwnerUserID)
		return
	}
	if greeting == nil || greeting.NotifyEmail == "" {
		return
	}

	notif := email.VoicemailNotification{
		To:           greeting.NotifyEmail,
		GreetingName: greeting.DisplayName,
		CallerNumber: call.CallerNumber,
		Timestamp:    call.CallTime,
		DurationSecs: durationSecs,
		Transcript:   transcript,
		MediaURL:     mediaURL,
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.sender.SendVoicemailNotification(sendCtx, cfg, notif); err != nil {
			slog.Warn("voicemail notify: send failed", "error", err, "to", notif.To)
		}
	}()
}
