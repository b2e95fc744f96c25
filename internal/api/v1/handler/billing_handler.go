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

// BillingHandler handles Stripe checkout, subscription lifecycle and webhooks.
type BillingHandler struct {
	stripeSvc *service.StripeService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(stripeSvc *service.StripeService, v *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{stripeSvc: stripeSvc, validate: v, logger: logger}
}

// RegisterRoutes mounts billing endpoints. The webhook is unauthenticated and
// verified by signature instead.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /createCheckoutSession", authMw(http.HandlerFunc(h.createCheckout)))
	mux.Handle("POST /createTopUpSession", authMw(http.HandlerFunc(h.createTopUp)))
	mux.Handle("POST /cancelSubscription", authMw(http.HandlerFunc(h.cancelSubscription)))
	mux.Handle("POST /syncSubscription", authMw(http.HandlerFunc(h.syncSubscription)))
	mux.Handle("POST /stripeWebhook", http.HandlerFunc(h.stripeSvc.HandleWebhook))
}

// createCheckout godoc
// @Summary Create a subscription checkout session
// @Tags billing
// @Accept json
// @Produce json
// @Param request body dto.CheckoutSessionRequest true "Checkout request"
// @Success 200 {object} dto.CheckoutSessionResponse
// @Failure 400 {object} object "unknown plan"
// @Security BearerAuth
// @Router /createCheckoutSession [post]
func (h *BillingHandler) createCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req dto.CheckoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	url, err := h.stripeSvc.CreateCheckoutSession(r.Context(), userID, req.Plan)
	if err != nil {
		h.respondStripeError(w, err, userID)
		return
	}
	writeJSON(w, http.StatusOK, dto.CheckoutSessionResponse{OK: true, URL: url})
}

// createTopUp godoc
// @Summary Create a one-time credit top-up checkout session
// @Tags billing
// @Produce json
// @Success 200 {object} dto.CheckoutSessionResponse
// @Security BearerAuth
// @Router /createTopUpSession [post]
func (h *BillingHandler) createTopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	url, err := h.stripeSvc.CreateTopUpSession(r.Context(), userID)
	if err != nil {
		h.respondStripeError(w, err, userID)
		return
	}
	writeJSON(w, http.StatusOK, dto.CheckoutSessionResponse{OK: true, URL: url})
}

// cancelSubscription godoc
// @Summary Cancel the caller's subscription at period end
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} object "no active subscription"
// @Security BearerAuth
// @Router /cancelSubscription [post]
func (h *BillingHandler) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.stripeSvc.CancelSubscription(r.Context(), userID); err != nil {
		h.respondStripeError(w, err, userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// syncSubscription godoc
// @Summary Re-read the caller's subscription state from Stripe
// @Produce json
// @Success 200 {object} map[string]bool
// @Security BearerAuth
// @Router /syncSubscription [post]
func (h *BillingHandler) syncSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.stripeSvc.SyncSubscription(r.Context(), userID); err != nil {
		h.respondStripeError(w, err, userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *BillingHandler) respondStripeError(w http.ResponseWriter, err error, userID string) {
	switch {
	case errors.Is(err, service.ErrInvalidPlan):
		writeError(w, http.StatusBadRequest, "unknown plan")
	case errors.Is(err, service.ErrNoActiveSubscription):
		writeError(w, http.StatusBadRequest, "no active subscription")
	case errors.Is(err, service.ErrMissingPriceConfig):
		h.logger.Error().Err(err).Msg("Stripe price not configured")
		writeError(w, http.StatusInternalServerError, "billing misconfigured")
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Stripe operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
