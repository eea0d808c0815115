package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/quickshelf/qcom-scraper/internal/jobs"
	"github.com/quickshelf/qcom-scraper/internal/models"
)

type Handlers struct {
	jobs   *jobs.Manager
	logger *slog.Logger
}

func NewHandlers(manager *jobs.Manager) *Handlers {
	return &Handlers{
		jobs:   manager,
		logger: slog.Default().With("component", "api"),
	}
}

// Router wires the HTTP surface.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/availability", h.CheckAvailability)
		r.Post("/jobs", h.CreateJob)
		r.Get("/jobs/{id}", h.GetJob)
	})
	return r
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AvailabilityRequest asks for a single product check.
type AvailabilityRequest struct {
	URL     string `json:"url"`
	Pincode string `json:"pincode"`
}

// CheckAvailability queues a one-row job. The check runs a full browser
// session, so even single checks go through the job queue rather than
// blocking the request.
func (h *Handlers) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if models.DetectPlatform(req.URL) == models.PlatformUnknown {
		h.respondError(w, http.StatusBadRequest, "could not determine platform from url")
		return
	}

	job, err := h.jobs.Submit([]models.InputRow{{URL: req.URL, Pincode: req.Pincode}}, req.Pincode)
	if err != nil {
		h.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.respondJSON(w, http.StatusAccepted, job)
}

// JobRequest submits a batch of availability rows.
type JobRequest struct {
	Rows    []models.InputRow `json:"rows"`
	Pincode string            `json:"pincode"`
}

func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Rows) == 0 {
		h.respondError(w, http.StatusBadRequest, "rows are required")
		return
	}

	job, err := h.jobs.Submit(req.Rows, req.Pincode)
	if err != nil {
		h.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.respondJSON(w, http.StatusAccepted, job)
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.jobs.Get(id)
	if !ok {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, map[string]string{"error": msg})
}
