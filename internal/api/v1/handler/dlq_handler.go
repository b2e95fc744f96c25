package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// DLQHandler receives dead-lettered delivery jobs pushed by Pub/Sub and
// persists them for operator review.
type DLQHandler struct {
	dlqSvc service.DLQService
	logger zerolog.Logger
}

// NewDLQHandler creates a new DLQHandler.
func NewDLQHandler(dlqSvc service.DLQService, logger zerolog.Logger) *DLQHandler {
	return &DLQHandler{dlqSvc: dlqSvc, logger: logger}
}

// RegisterRoutes mounts the push endpoint. pushAuthMw verifies the OIDC token
// Pub/Sub attaches to push requests.
func (h *DLQHandler) RegisterRoutes(mux *http.ServeMux, pushAuthMw func(http.Handler) http.Handler) {
	mux.Handle("POST /internal/dlq", pushAuthMw(http.HandlerFunc(h.receive)))
}

func (h *DLQHandler) receive(w http.ResponseWriter, r *http.Request) {
	var req dto.PubSubPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Malformed Pub/Sub push payload")
		writeError(w, http.StatusBadRequest, "invalid push payload")
		return
	}

	if err := h.dlqSvc.ProcessAndSave(r.Context(), &req); err != nil {
		h.logger.Error().Err(err).Str("message_id", req.Message.MessageID).Msg("Failed to store dead letter")
		// Non-2xx makes Pub/Sub redeliver the push.
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	h.logger.Info().Str("message_id", req.Message.MessageID).Msg("Dead letter stored")
	w.WriteHeader(http.StatusNoContent)
}
