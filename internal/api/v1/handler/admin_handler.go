package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AdminHandler handles operator-only endpoints gated on an email allowlist.
type AdminHandler struct {
	credits     repository.CreditRepository
	adminEmails []string
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(credits repository.CreditRepository, adminEmails []string, v *validator.Validate, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{credits: credits, adminEmails: adminEmails, validate: v, logger: logger}
}

// RegisterRoutes mounts admin endpoints.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /admin/grantCredits", authMw(http.HandlerFunc(h.grantCredits)))
}

func (h *AdminHandler) isAdmin(email string) bool {
	for _, admin := range h.adminEmails {
		if strings.EqualFold(admin, email) {
			return true
		}
	}
	return false
}

// grantCredits godoc
// @Summary Grant credits to an account
// @Description Adds credits to a user and records an audit adjustment row.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body dto.GrantCreditsRequest true "Grant request"
// @Success 200 {object} map[string]bool
// @Failure 403 {object} object "caller is not an admin"
// @Failure 404 {object} object "user not found"
// @Security BearerAuth
// @Router /admin/grantCredits [post]
func (h *AdminHandler) grantCredits(w http.ResponseWriter, r *http.Request) {
	email := middleware.UserEmail(r.Context())
	if !h.isAdmin(email) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var req dto.GrantCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	adj := &model.CreditAdjustment{
		UserID:     req.UserID,
		Amount:     req.Credits,
		Reason:     req.Reason,
		ActorEmail: email,
	}
	if err := h.credits.GrantWithReason(r.Context(), adj); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Credit grant failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info().
		Str("user_id", req.UserID).
		Int("credits", req.Credits).
		Str("actor", email).
		Msg("Credits granted")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
