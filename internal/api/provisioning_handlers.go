package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/donorline/donorline/internal/api/middleware"
	"github.com/donorline/donorline/internal/database"
	"github.com/donorline/donorline/internal/database/models"
	"github.com/donorline/donorline/internal/telephony"
)

// purchaseRequest is the JSON request body for buying a number. Both hints
// are optional; at most one is honoured.
type purchaseRequest struct {
	AreaCode string `json:"areaCode"`
	ZipCode  string `json:"zipCode"`
}

// phoneNumberResponse is the JSON response for a provisioned number.
type phoneNumberResponse struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
	VoiceCapable bool   `json:"voice_capable"`
	SMSCapable   bool   `json:"sms_capable"`
	CreatedAt    string `json:"created_at"`
}

// toPhoneNumberResponse converts a models.PhoneNumber to the API response.
func toPhoneNumberResponse(n *models.PhoneNumber) phoneNumberResponse {
	return phoneNumberResponse{
		ID:           n.PublicID,
		Number:       n.Number,
		FriendlyName: n.FriendlyName,
		Status:       n.Status,
		VoiceCapable: n.VoiceCapable,
		SMSCapable:   n.SMSCapable,
		CreatedAt:    n.CreatedAt.Format(time.RFC3339),
	}
}

// handlePurchasePhoneNumber searches and buys one number for the
// authenticated user, registering the webhook callback URLs with the
// provider. One number per user: the pre-check gives a friendly error, the
// unique owner index decides races.
func (s *Server) handlePurchasePhoneNumber(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	// Both hints are optional, so a missing body means "anywhere".
	var req purchaseRequest
	if msg := readJSON(r, &req); msg != "" && msg != "request body must not be empty" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.AreaCode != "" {
		if msg := validateAreaCode("areaCode", req.AreaCode); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}
	if req.ZipCode != "" {
		if msg := validatePostalCode("zipCode", req.ZipCode); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	ctx := r.Context()

	existing, err := s.phones.GetByOwner(ctx, userID)
	if err != nil {
		slog.Error("purchase number: owner lookup failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "User already has a phone number")
		return
	}

	candidates, err := s.tel.SearchAvailableNumbers(ctx, telephony.SearchFilter{
		AreaCode:   req.AreaCode,
		PostalCode: req.ZipCode,
		Limit:      1,
	})
	if err != nil {
		slog.Error("purchase number: search failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "telephony provider search failed")
		return
	}
	if len(candidates) == 0 {
		writeError(w, http.StatusNotFound, noNumbersMessage(req.AreaCode, req.ZipCode))
		return
	}

	candidate := candidates[0]
	purchased, err := s.tel.PurchaseNumber(ctx, telephony.PurchaseRequest{
		Number:               candidate.Number,
		FriendlyName:         "Donorline callback line",
		VoiceURL:             s.webhookURL("/voice-webhook"),
		VoiceMethod:          http.MethodPost,
		StatusCallback:       s.webhookURL("/recording-status"),
		StatusCallbackMethod: http.MethodPost,
	})
	if err != nil {
		slog.Error("purchase number: provider rejected purchase",
			"error", err, "user", userID, "number", candidate.Number)
		writeError(w, http.StatusInternalServerError, upstreamMessage(err))
		return
	}

	num := &models.PhoneNumber{
		OwnerUserID:      userID,
		Number:           purchased.Number,
		ExternalNumberID: purchased.SID,
		FriendlyName:     purchased.FriendlyName,
		Status:           "active",
		VoiceCapable:     purchased.Capabilities.Voice,
		SMSCapable:       purchased.Capabilities.SMS,
	}
	if err := s.phones.Create(ctx, num); err != nil {
		// The number is bought on the provider side but has no local row.
		// Give it back rather than leak a billable orphan.
		s.releasePurchased(purchased.SID, userID)

		if errors.Is(err, database.ErrConflict) {
			// Lost a concurrent-purchase race; the winner's row stands.
			writeError(w, http.StatusBadRequest, "User already has a phone number")
			return
		}
		slog.Error("purchase number: failed to persist", "error", err, "user", userID, "sid", purchased.SID)
		writeError(w, http.StatusInternalServerError, "failed to save phone number")
		return
	}

	slog.Info("purchase number: provisioned",
		"user", userID,
		"number", num.Number,
		"sid", num.ExternalNumberID,
	)
	writeJSON(w, http.StatusCreated, toPhoneNumberResponse(num))
}

// releasePurchased returns an orphaned provider purchase. Best effort: a
// failed release is logged for manual cleanup, never surfaced to the caller.
func (s *Server) releasePurchased(numberSID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.tel.ReleaseNumber(ctx, numberSID); err != nil {
		slog.Error("purchase number: failed to release orphaned purchase",
			"error", err, "sid", numberSID, "user", userID)
	}
}

// noNumbersMessage names the unmet location hint in the not-found error.
func noNumbersMessage(areaCode, zipCode string) string {
	switch {
	case areaCode != "":
		return "no available numbers for area code " + areaCode
	case zipCode != "":
		return "no available numbers for zip code " + zipCode
	default:
		return "no available numbers"
	}
}

// upstreamMessage forwards the provider's rejection message where safe.
func upstreamMessage(err error) string {
	var apiErr *telephony.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return "provider rejected purchase: " + apiErr.Message
	}
	return "provider rejected purchase"
}

// availabilityRequest is the JSON request body for the availability checks.
type availabilityRequest struct {
	AreaCode string `json:"areaCode"`
	Code     string `json:"code"`
	Type     string `json:"type"` // "areaCode" or "zipCode"
}

// handleCheckAreaCode reports whether any number is purchasable in an area code.
func (s *Server) handleCheckAreaCode(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if msg := readJSON(r, &req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateAreaCode("areaCode", req.AreaCode); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	s.checkAvailability(w, r, telephony.SearchFilter{AreaCode: req.AreaCode, Limit: 1})
}

// handleCheckLocationAvailability reports purchasability for a typed
// location hint (area code or ZIP).
func (s *Server) handleCheckLocationAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if msg := readJSON(r, &req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var filter telephony.SearchFilter
	switch req.Type {
	case "areaCode":
		if msg := validateAreaCode("code", req.Code); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		filter = telephony.SearchFilter{AreaCode: req.Code, Limit: 1}
	case "zipCode":
		if msg := validatePostalCode("code", req.Code); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		filter = telephony.SearchFilter{PostalCode: req.Code, Limit: 1}
	default:
		writeError(w, http.StatusBadRequest, "type must be \"areaCode\" or \"zipCode\"")
		return
	}

	s.checkAvailability(w, r, filter)
}

// checkAvailability runs a one-candidate search and reports the result.
func (s *Server) checkAvailability(w http.ResponseWriter, r *http.Request, filter telephony.SearchFilter) {
	candidates, err := s.tel.SearchAvailableNumbers(r.Context(), filter)
	if err != nil {
		slog.Error("availability check: search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "telephony provider search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": len(candidates) > 0})
}
