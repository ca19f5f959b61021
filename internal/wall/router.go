package wall

import (
	"log/slog"
	"net/http"

	"camwall/internal/platform/logger"
	"camwall/internal/platform/metrics"
	"camwall/internal/playback"

	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the wall API. m may be nil.
func NewRouter(svc *Service, log *slog.Logger, m *metrics.Metrics) http.Handler {
	h := NewHandler(svc, log, m)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(m))

	r.Get("/healthz", h.Health)
	if m != nil {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			m.Handler(func() {
				counts, err := svc.StateCounts(r.Context())
				if err != nil {
					return
				}
				states := make([]string, 0, len(playback.States()))
				for _, s := range playback.States() {
					states = append(states, string(s))
				}
				m.SetSessionStates(states, counts)
			}).ServeHTTP(w, r)
		})
	}
	r.Get("/events", h.Events)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Route("/{camera_id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/reload", h.Reload)
			r.Get("/thumbnail", h.GetThumbnail)
			r.Post("/thumbnail/click", h.ClickThumbnail)
		})
	})
	return r
}
