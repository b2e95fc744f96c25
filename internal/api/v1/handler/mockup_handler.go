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

// MockupHandler handles authenticated generation, editing and uploads.
type MockupHandler struct {
	mockupSvc service.MockupService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewMockupHandler creates a new MockupHandler.
func NewMockupHandler(mockupSvc service.MockupService, v *validator.Validate, logger zerolog.Logger) *MockupHandler {
	return &MockupHandler{mockupSvc: mockupSvc, validate: v, logger: logger}
}

// RegisterRoutes mounts member mockup endpoints. All require a bearer token.
func (h *MockupHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /generateMemberMockups", authMw(http.HandlerFunc(h.generate)))
	mux.Handle("POST /editMockup", authMw(http.HandlerFunc(h.edit)))
	mux.Handle("POST /createArtworkUpload", authMw(http.HandlerFunc(h.createUpload)))
}

// generate godoc
// @Summary Generate mockups for a member
// @Description Reserves credits for the batch, renders each category, and
// @Description refunds credits for failed renders.
// @Tags mockups
// @Accept json
// @Produce json
// @Param request body dto.GenerateMemberMockupsRequest true "Generation request"
// @Success 200 {object} dto.MemberMockupsResponse
// @Failure 402 {object} object "insufficient credits"
// @Failure 500 {object} object "all generations failed"
// @Security BearerAuth
// @Router /generateMemberMockups [post]
func (h *MockupHandler) generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req dto.GenerateMemberMockupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	outcome, err := h.mockupSvc.Generate(r.Context(), userID, req.ArtworkURL, req.Categories, req.Variations)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientCredits):
			writeError(w, http.StatusPaymentRequired, "insufficient credits")
		case errors.Is(err, repository.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrUnknownCategory),
			errors.Is(err, service.ErrTooManyVariations),
			errors.Is(err, service.ErrInvalidArtworkURL):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAllGenerationsFailed):
			writeError(w, http.StatusInternalServerError, "all generations failed")
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Member generation failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.MemberMockupsResponse{
		OK:        true,
		ArtworkID: outcome.Artwork.ID,
		Mockups:   outcome.Mockups,
		Errors:    outcome.Errors,
		Remaining: outcome.Remaining,
	})
}

// edit godoc
// @Summary Re-render an existing mockup
// @Tags mockups
// @Accept json
// @Produce json
// @Param request body dto.EditMockupRequest true "Edit request"
// @Success 200 {object} dto.EditMockupResponse
// @Failure 402 {object} object "insufficient credits"
// @Failure 404 {object} object "mockup not found"
// @Security BearerAuth
// @Router /editMockup [post]
func (h *MockupHandler) edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req dto.EditMockupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	mockup, err := h.mockupSvc.Edit(r.Context(), userID, req.MockupID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMockupNotFound):
			writeError(w, http.StatusNotFound, "mockup not found")
		case errors.Is(err, repository.ErrInsufficientCredits):
			writeError(w, http.StatusPaymentRequired, "insufficient credits")
		default:
			h.logger.Error().Err(err).Str("mockup_id", req.MockupID).Msg("Mockup edit failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.EditMockupResponse{OK: true, Mockup: *mockup})
}

// createUpload godoc
// @Summary Create a presigned artwork upload
// @Tags mockups
// @Accept json
// @Produce json
// @Param request body dto.ArtworkUploadRequest true "Upload request"
// @Success 200 {object} dto.ArtworkUploadResponse
// @Security BearerAuth
// @Router /createArtworkUpload [post]
func (h *MockupHandler) createUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req dto.ArtworkUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	artwork, uploadURL, err := h.mockupSvc.CreateArtworkUpload(r.Context(), userID, req.Filename)
	if err != nil {
		if errors.Is(err, service.ErrInvalidArtworkURL) {
			writeError(w, http.StatusBadRequest, "unsupported file extension")
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create artwork upload")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, dto.ArtworkUploadResponse{
		OK:         true,
		ArtworkID:  artwork.ID,
		ArtworkURL: artwork.URL,
		UploadURL:  uploadURL,
	})
}
