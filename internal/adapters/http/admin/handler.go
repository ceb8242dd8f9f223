package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apptask "3tcapital/saftprocessor/internal/application/task"
	"3tcapital/saftprocessor/internal/core/audit"
	coretask "3tcapital/saftprocessor/internal/core/task"
	httpx "3tcapital/saftprocessor/internal/infrastructure/http"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Handler exposes manual cycle triggers and task status polling.
type Handler struct {
	dispatcher apptask.Enqueuer
	jobs       map[coretask.Kind]apptask.Func
	tasks      coretask.Store
	audit      audit.Repository
	log        *slog.Logger
}

// NewHandler creates an admin handler. auditRepo may be nil, in which case the files
// endpoint answers 404.
func NewHandler(dispatcher apptask.Enqueuer, tasks coretask.Store, auditRepo audit.Repository, jobs map[coretask.Kind]apptask.Func, log *slog.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		jobs:       jobs,
		tasks:      tasks,
		audit:      auditRepo,
		log:        log.With("component", "admin_handler"),
	}
}

// Register mounts the admin routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/ingestion/run", h.RunIngestion)
	r.Post("/opengcs/run", h.RunOpenGCs)
	r.Get("/tasks", h.ListTasks)
	r.Get("/tasks/{id}", h.GetTask)
	r.Get("/tasks/{id}/files", h.TaskFiles)
}

// EnqueueResponse is returned by the trigger endpoints.
type EnqueueResponse struct {
	TaskID string        `json:"task_id"`
	Kind   coretask.Kind `json:"kind"`
	Status string        `json:"status"`
}

// FileRecord is the JSON view of an ingestion audit row.
type FileRecord struct {
	File           string    `json:"file"`
	Kind           string    `json:"kind"`
	Status         string    `json:"status"`
	State          string    `json:"state"`
	Message        string    `json:"message,omitempty"`
	Invoices       int       `json:"invoices"`
	ReferencesSeen int       `json:"references_seen"`
	Deactivated    int       `json:"deactivated"`
	Failures       int       `json:"failures"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// RunIngestion handles POST /admin/ingestion/run.
func (h *Handler) RunIngestion(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, coretask.KindIngestionCycle)
}

// RunOpenGCs handles POST /admin/opengcs/run.
func (h *Handler) RunOpenGCs(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, coretask.KindOpenGCsCycle)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request, kind coretask.Kind) {
	fn, ok := h.jobs[kind]
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Job not configured", []string{string(kind) + " is not enabled on this instance"}, h.log)
		return
	}
	if h.dispatcher.Running(kind) {
		httpx.WriteError(w, http.StatusConflict, "Cycle already running", []string{"a " + string(kind) + " task is queued or executing"}, h.log)
		return
	}

	id, err := h.dispatcher.Enqueue(r.Context(), kind, "manual", fn)
	switch {
	case errors.Is(err, apptask.ErrQueueFull), errors.Is(err, apptask.ErrStopped):
		httpx.WriteError(w, http.StatusServiceUnavailable, "Task queue unavailable", []string{err.Error()}, h.log)
		return
	case err != nil:
		h.log.Error("Manual enqueue failed", "kind", kind, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal error", []string{"could not enqueue task"}, h.log)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, EnqueueResponse{TaskID: id, Kind: kind, Status: string(coretask.StatusPending)}, h.log)
}

// GetTask handles GET /admin/tasks/{id}.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		h.log.Error("Task lookup failed", "task_id", id, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal error", []string{"could not read task"}, h.log)
		return
	}
	if t == nil {
		httpx.WriteError(w, http.StatusNotFound, "Task not found", []string{"unknown or expired task id " + id}, h.log)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t, h.log)
}

// ListTasks handles GET /admin/tasks?limit=N.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "Validation failed", []string{"limit must be a positive integer"}, h.log)
			return
		}
		limit = min(n, maxListLimit)
	}

	tasks, err := h.tasks.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error("Listing tasks failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal error", []string{"could not list tasks"}, h.log)
		return
	}
	if tasks == nil {
		tasks = []coretask.Task{}
	}
	httpx.WriteJSON(w, http.StatusOK, tasks, h.log)
}

// TaskFiles handles GET /admin/tasks/{id}/files from the audit log.
func (h *Handler) TaskFiles(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		httpx.WriteError(w, http.StatusNotFound, "Audit log disabled", nil, h.log)
		return
	}
	id := chi.URLParam(r, "id")
	recs, err := h.audit.FindByTaskID(r.Context(), id)
	if err != nil {
		h.log.Error("Audit lookup failed", "task_id", id, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal error", []string{"could not read audit log"}, h.log)
		return
	}

	files := make([]FileRecord, 0, len(recs))
	for _, rec := range recs {
		files = append(files, FileRecord{
			File:           rec.File,
			Kind:           rec.Kind,
			Status:         rec.Status,
			State:          rec.State,
			Message:        rec.Message,
			Invoices:       rec.Invoices,
			ReferencesSeen: rec.ReferencesSeen,
			Deactivated:    rec.Deactivated,
			Failures:       rec.Failures,
			DurationMs:     rec.DurationMs,
			CreatedAt:      rec.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, files, h.log)
}
