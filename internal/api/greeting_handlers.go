package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/donorline/donorline/internal/api/middleware"
	"github.com/donorline/donorline/internal/database"
	"github.com/donorline/donorline/internal/database/models"
	"github.com/go-chi/chi/v5"
)

// greetingRequest is the JSON request body for creating/updating a greeting.
type greetingRequest struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	MediaURL    string `json:"media_url"`
	IsDefault   bool   `json:"is_default"`
	NotifyEmail string `json:"notify_email"`
}

// validate returns an error message for a bad request, empty string if OK.
func (req *greetingRequest) validate() string {
	if msg := validateRequiredStringLen("display_name", req.DisplayName, maxNameLen); msg != "" {
		return msg
	}
	if msg := validateNoControlChars("display_name", req.DisplayName); msg != "" {
		return msg
	}
	if msg := validateStringLen("description", req.Description, maxDescriptionLen); msg != "" {
		return msg
	}
	if msg := validateStringLen("media_url", req.MediaURL, maxURLLen); msg != "" {
		return msg
	}
	if msg := validateEmail("notify_email", req.NotifyEmail); msg != "" {
		return msg
	}
	return ""
}

// greetingResponse is the JSON response for a single greeting.
type greetingResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	MediaURL    string `json:"media_url"`
	IsDefault   bool   `json:"is_default"`
	NotifyEmail string `json:"notify_email"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// toGreetingResponse converts a models.Greeting to the API response.
func toGreetingResponse(g *models.Greeting) greetingResponse {
	return greetingResponse{
		ID:          g.ID,
		DisplayName: g.DisplayName,
		Description: g.Description,
		MediaURL:    g.MediaURL,
		IsDefault:   g.IsDefault,
		NotifyEmail: g.NotifyEmail,
		CreatedAt:   g.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   g.UpdatedAt.Format(time.RFC3339),
	}
}

// handleListGreetings returns the authenticated user's greetings.
func (s *Server) handleListGreetings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	list, err := s.greetings.ListByOwner(r.Context(), userID)
	if err != nil {
		slog.Error("list greetings: failed to query", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]greetingResponse, len(list))
	for i := range list {
		items[i] = toGreetingResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, items)
}

// handleCreateGreeting creates a greeting for the authenticated user.
func (s *Server) handleCreateGreeting(w http.ResponseWriter, r *http.Request) {
	var req greetingRequest
	if msg := readJSON(r, &req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	g := &models.Greeting{
		OwnerUserID: middleware.UserIDFromContext(r.Context()),
		DisplayName: req.DisplayName,
		Description: req.Description,
		MediaURL:    req.MediaURL,
		IsDefault:   req.IsDefault,
		NotifyEmail: req.NotifyEmail,
	}
	if err := s.greetings.Create(r.Context(), g); err != nil {
		if errors.Is(err, database.ErrConflict) {
			writeError(w, http.StatusBadRequest, "a default greeting already exists")
			return
		}
		slog.Error("create greeting: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, toGreetingResponse(g))
}

// greetingFromRequest loads the greeting in the URL and checks it belongs to
// the authenticated user. Writes the error response and returns nil when it
// does not.
func (s *Server) greetingFromRequest(w http.ResponseWriter, r *http.Request) *models.Greeting {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid greeting id")
		return nil
	}

	g, err := s.greetings.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("greeting lookup failed", "error", err, "greeting_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if g == nil || g.OwnerUserID != middleware.UserIDFromContext(r.Context()) {
		// Hide other users' greetings behind the same 404.
		writeError(w, http.StatusNotFound, "greeting not found")
		return nil
	}
	return g
}

// handleGetGreeting returns a single greeting by ID.
func (s *Server) handleGetGreeting(w http.ResponseWriter, r *http.Request) {
	g := s.greetingFromRequest(w, r)
	if g == nil {
		return
	}
	writeJSON(w, http.StatusOK, toGreetingResponse(g))
}

// handleUpdateGreeting updates a greeting's fields. The default flag is
// changed only through the dedicated default endpoint.
func (s *Server) handleUpdateGreeting(w http.ResponseWriter, r *http.Request) {
	g := s.greetingFromRequest(w, r)
	if g == nil {
		return
	}

	var req greetingRequest
	if msg := readJSON(r, &req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	g.DisplayName = req.DisplayName
	g.Description = req.Description
	g.MediaURL = req.MediaURL
	g.NotifyEmail = req.NotifyEmail
	if err := s.greetings.Update(r.Context(), g); err != nil {
		slog.Error("update greeting: failed", "error", err, "greeting_id", g.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toGreetingResponse(g))
}

// handleDeleteGreeting removes a greeting.
func (s *Server) handleDeleteGreeting(w http.ResponseWriter, r *http.Request) {
	g := s.greetingFromRequest(w, r)
	if g == nil {
		return
	}

	if err := s.greetings.Delete(r.Context(), g.ID); err != nil {
		slog.Error("delete greeting: failed", "error", err, "greeting_id", g.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleSetDefaultGreeting makes the greeting the user's single default.
func (s *Server) handleSetDefaultGreeting(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid greeting id")
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if err := s.greetings.SetDefault(r.Context(), userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "greeting not found")
			return
		}
		slog.Error("set default greeting: failed", "error", err, "greeting_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	g, err := s.greetings.GetByID(r.Context(), id)
	if err != nil || g == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"default": true})
		return
	}
	writeJSON(w, http.StatusOK, toGreetingResponse(g))
}
