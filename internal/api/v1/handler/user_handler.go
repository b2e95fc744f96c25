package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// UserHandler handles account profile endpoints.
type UserHandler struct {
	userSvc  service.UserService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userSvc service.UserService, v *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{userSvc: userSvc, validate: v, logger: logger}
}

// RegisterRoutes mounts user endpoints.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /users/me", authMw(http.HandlerFunc(h.create)))
	mux.Handle("GET /users/me", authMw(http.HandlerFunc(h.get)))
}

// create godoc
// @Summary Bootstrap the caller's account
// @Description Creates the account row for a freshly signed-up user and
// @Description grants the signup bonus credits. Idempotent.
// @Tags users
// @Accept json
// @Produce json
// @Param request body dto.UserCreateDTO true "Profile"
// @Success 200 {object} dto.UserResponseDTO
// @Security BearerAuth
// @Router /users/me [post]
func (h *UserHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req dto.UserCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	user, err := h.userSvc.Create(r.Context(), req.ToModel(userID))
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Account creation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserResponse(user))
}

// get godoc
// @Summary Fetch the caller's account
// @Tags users
// @Produce json
// @Success 200 {object} dto.UserResponseDTO
// @Failure 404 {object} object "account not found"
// @Security BearerAuth
// @Router /users/me [get]
func (h *UserHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.userSvc.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Account lookup failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserResponse(user))
}
