package wall

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"camwall/internal/platform/loop"
	"camwall/internal/platform/metrics"
	"camwall/internal/playback"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the wall over HTTP using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler for svc. Metrics may be nil to disable metric
// recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Sessions(r.Context())
	if err != nil {
		h.fail(w, "list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GetSession handles GET /sessions/{camera_id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "camera_id")
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	view, err := h.svc.Session(r.Context(), id)
	if err != nil {
		h.fail(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Reload handles POST /sessions/{camera_id}/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "camera_id")
	if err := h.svc.Reload(r.Context(), id); err != nil {
		h.fail(w, "reload", err)
		return
	}
	h.log.Info("session reloaded", slog.String("camera_id", id))
	w.WriteHeader(http.StatusAccepted)
}

// ClickThumbnail handles POST /sessions/{camera_id}/thumbnail/click.
func (h *Handler) ClickThumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "camera_id")
	if err := h.svc.ClickThumbnail(r.Context(), id); err != nil {
		h.fail(w, "thumbnail click", err)
		return
	}
	h.log.Debug("thumbnail clicked", slog.String("camera_id", id))
	w.WriteHeader(http.StatusAccepted)
}

// GetThumbnail handles GET /sessions/{camera_id}/thumbnail.
func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	img, err := h.svc.Thumbnail(r.Context(), chi.URLParam(r, "camera_id"))
	if err != nil {
		h.fail(w, "get thumbnail", err)
		return
	}
	ct := img.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.svc.Health(r.Context())
	code := http.StatusOK
	if health.Error != "" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, playback.ErrUnknownCamera), errors.Is(err, ErrNoThumbnail):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, loop.ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.log.Warn(op+" unavailable", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		h.log.Error(op+" failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		if h.metrics != nil {
			h.metrics.IncErrors()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
