package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/donorline/donorline/internal/api/middleware"
	"github.com/donorline/donorline/internal/database"
)

// recordingResponse is the JSON shape of a call's recording.
type recordingResponse struct {
	MediaURL        string  `json:"media_url"`
	DurationSeconds *int    `json:"duration_seconds"`
	Transcript      *string `json:"transcript"`
}

// callResponse is the JSON response for a single inbound call.
type callResponse struct {
	ID              string             `json:"id"`
	CallerNumber    string             `json:"caller_number"`
	Status          string             `json:"status"`
	DurationSeconds *int               `json:"duration_seconds"`
	HasRecording    bool               `json:"has_recording"`
	CallTime        string             `json:"call_time"`
	Kind            string             `json:"kind"` // "voicemail" or "callback"
	Recording       *recordingResponse `json:"recording,omitempty"`
}

// toCallResponse converts a call+recording summary to the API response. A
// recording with a transcript classifies the call as a voicemail.
func toCallResponse(sum *database.CallRecordingSummary) callResponse {
	resp := callResponse{
		ID:              sum.Call.PublicID,
		CallerNumber:    sum.Call.CallerNumber,
		Status:          sum.Call.Status,
		DurationSeconds: sum.Call.DurationSeconds,
		HasRecording:    sum.Call.HasRecording,
		CallTime:        sum.Call.CallTime.Format(time.RFC3339),
		Kind:            "callback",
	}
	if sum.Recording != nil {
		resp.Recording = &recordingResponse{
			MediaURL:        sum.Recording.MediaURL,
			DurationSeconds: sum.Recording.DurationSeconds,
			Transcript:      sum.Recording.TranscriptionText,
		}
		if sum.Recording.Voicemail() {
			resp.Kind = "voicemail"
		}
	}
	return resp
}

// handleListCalls returns the authenticated user's calls with recordings.
// Query params: limit, offset, kind (callback|voicemail), search.
func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	q := r.URL.Query()
	kind := q.Get("kind")
	if kind != "" && kind != "callback" && kind != "voicemail" {
		writeError(w, http.StatusBadRequest, "kind must be \"callback\" or \"voicemail\"")
		return
	}

	filter := database.CallListFilter{
		OwnerUserID: middleware.UserIDFromContext(r.Context()),
		Kind:        kind,
		Search:      q.Get("search"),
		Limit:       pg.Limit,
		Offset:      pg.Offset,
	}

	sums, total, err := s.calls.List(r.Context(), filter)
	if err != nil {
		slog.Error("list calls: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]callResponse, len(sums))
	for i := range sums {
		items[i] = toCallResponse(&sums[i])
	}

	writeJSON(w, http.StatusOK, PaginatedResponse{
		Items:  items,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}

// handleGetPhoneNumber returns the authenticated user's provisioned number.
func (s *Server) handleGetPhoneNumber(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	num, err := s.phones.GetByOwner(r.Context(), userID)
	if err != nil {
		slog.Error("get phone number: failed to query", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if num == nil {
		writeError(w, http.StatusNotFound, "no phone number provisioned")
		return
	}

	writeJSON(w, http.StatusOK, toPhoneNumberResponse(num))
}
