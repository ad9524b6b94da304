package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/application"
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/contracts"
)

// Handler is the HTTP adapter entrypoint for the notification pipeline.
// Keeping only the application dependency here preserves clean adapter boundaries.
type Handler struct {
	service   *application.Service
	readiness func(ctx context.Context) error
}

func NewHandler(service *application.Service, readiness func(ctx context.Context) error) *Handler {
	return &Handler{service: service, readiness: readiness}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if err := h.readiness(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable")
			return
		}
	}
	writeStatus(w, http.StatusOK, "ok")
}

// receiveNotifications is the webhook endpoint. Two request shapes arrive here:
// the ownership-proof challenge (validationToken query parameter, echoed back
// verbatim) and actual notification batches. Batches are always acknowledged
// as accepted; suppression and per-notification skips never surface to the
// remote sender.
func (h *Handler) receiveNotifications(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("validationToken"); token != "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(token))
		return
	}

	var req contracts.ChangeNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed notification payload")
		return
	}

	result := h.service.ProcessBatch(r.Context(), req.ToDomain())
	httpLogger().InfoContext(r.Context(), "notification batch acknowledged",
		"operation", "receive_notifications",
		"outcome", "success",
		"batch_status", result.Status,
		"dispatched", result.Dispatched,
		"skipped", result.Skipped,
		"request_id", requestIDFromContext(r.Context()),
	)
	writeStatus(w, http.StatusAccepted, "accepted")
}
