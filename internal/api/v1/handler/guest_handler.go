package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/service"
	"app/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// GuestHandler handles the anonymous generation flow and the session claim.
type GuestHandler struct {
	guestSvc service.GuestSessionService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewGuestHandler creates a new GuestHandler.
func NewGuestHandler(guestSvc service.GuestSessionService, v *validator.Validate, logger zerolog.Logger) *GuestHandler {
	return &GuestHandler{guestSvc: guestSvc, validate: v, logger: logger}
}

// RegisterRoutes mounts guest endpoints. Generation and email delivery are
// unauthenticated but rate-limited; claiming requires a bearer token.
func (h *GuestHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /generateGuestMockups", http.HandlerFunc(h.generate))
	mux.Handle("POST /sendGuestMockups", http.HandlerFunc(h.sendEmail))
	mux.Handle("POST /claimGuestSession", authMw(http.HandlerFunc(h.claim)))
}

// generate godoc
// @Summary Generate guest mockups
// @Description Creates a guest session and renders the requested categories.
// @Tags guest
// @Accept json
// @Produce json
// @Param request body dto.GenerateGuestMockupsRequest true "Generation request"
// @Success 200 {object} dto.GuestSessionResponse
// @Failure 400 {object} object "invalid artwork URL or categories"
// @Failure 429 {object} object "rate limit exceeded"
// @Failure 500 {object} object "all generations failed"
// @Router /generateGuestMockups [post]
func (h *GuestHandler) generate(w http.ResponseWriter, r *http.Request) {
	var req dto.GenerateGuestMockupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	fingerprint := util.ClientFingerprint(r)
	session, err := h.guestSvc.StartSession(r.Context(), fingerprint, req.ArtworkURL, req.Categories)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "daily guest generation limit reached")
		case errors.Is(err, service.ErrInvalidArtworkURL),
			errors.Is(err, service.ErrArtworkHostNotAllowed),
			errors.Is(err, service.ErrUnknownCategory):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAllGenerationsFailed):
			writeError(w, http.StatusInternalServerError, "all generations failed")
		default:
			h.logger.Error().Err(err).Msg("Guest generation failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.GuestSessionResponse{
		OK:        true,
		SessionID: session.ID,
		Status:    session.Status,
		Results:   session.Results,
		Errors:    session.Errors,
	})
}

// sendEmail godoc
// @Summary Email a guest session's mockups
// @Tags guest
// @Accept json
// @Produce json
// @Param request body dto.SendGuestMockupsRequest true "Delivery request"
// @Success 202 {object} map[string]bool
// @Failure 403 {object} object "email mismatch"
// @Failure 404 {object} object "session not found"
// @Failure 429 {object} object "rate limit exceeded"
// @Router /sendGuestMockups [post]
func (h *GuestHandler) sendEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.SendGuestMockupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	fingerprint := util.ClientFingerprint(r)
	err := h.guestSvc.RequestEmail(r.Context(), fingerprint, req.SessionID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "daily email limit reached")
		case errors.Is(err, repository.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, repository.ErrEmailMismatch):
			writeError(w, http.StatusForbidden, "email does not match this session")
		case errors.Is(err, repository.ErrEmailAlreadySent):
			writeError(w, http.StatusBadRequest, "mockups were already emailed for this session")
		case errors.Is(err, repository.ErrSessionClaimed):
			writeError(w, http.StatusBadRequest, "session already claimed")
		default:
			h.logger.Error().Err(err).Str("session_id", req.SessionID).Msg("Failed to queue guest email")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// claim godoc
// @Summary Claim a guest session into the caller's account
// @Tags guest
// @Accept json
// @Produce json
// @Param request body dto.ClaimGuestSessionRequest true "Claim request"
// @Success 200 {object} dto.GuestSessionResponse
// @Failure 400 {object} object "already claimed"
// @Failure 403 {object} object "email mismatch"
// @Failure 404 {object} object "session not found"
// @Router /claimGuestSession [post]
func (h *GuestHandler) claim(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req dto.ClaimGuestSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	session, err := h.guestSvc.Claim(r.Context(), req.SessionID, userID, middleware.UserEmail(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, repository.ErrSessionClaimed):
			writeError(w, http.StatusBadRequest, "session already claimed")
		case errors.Is(err, repository.ErrEmailMismatch):
			writeError(w, http.StatusForbidden, "email does not match this session")
		default:
			h.logger.Error().Err(err).Str("session_id", req.SessionID).Msg("Claim failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.GuestSessionResponse{
		OK:        true,
		SessionID: session.ID,
		Status:    session.Status,
		Results:   session.Results,
		Errors:    session.Errors,
	})
}
