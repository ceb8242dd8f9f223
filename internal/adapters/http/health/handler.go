package health

import (
	"log/slog"
	"net/http"

	apphealth "3tcapital/saftprocessor/internal/application/health"
	httpx "3tcapital/saftprocessor/internal/infrastructure/http"
)

// Handler bridges HTTP traffic with the health application service.
type Handler struct {
	service *apphealth.Service
	log     *slog.Logger
}

func NewHandler(service *apphealth.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Status answers 503 only when a critical dependency is down, so a degraded
// instance stays in rotation.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.service.Status(r.Context())

	code := http.StatusOK
	if status.Status == apphealth.StatusDown {
		code = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, code, status, h.log)
}
