package playback

import (
	"errors"
	"fmt"
	"log/slog"

	"camwall/internal/camera"
	"camwall/internal/platform/clock"
)

// SurfaceProvider hands out the two display handles each session needs and
// takes them back when the camera leaves the wall.
type SurfaceProvider interface {
	VideoSurface(cameraID string) VideoSurface
	ThumbnailSurface(cameraID string) ThumbnailSurface
	Release(cameraID string)
}

// URLResolver maps cameras to their manifest and poster URLs.
type URLResolver interface {
	StreamURL(d camera.Descriptor) string
	ThumbnailURL(cameraID, bust string) string
}

// Deps are the collaborators a Registry is built from.
type Deps struct {
	Clock    clock.Clock
	Engines  EngineFactory
	Surfaces SurfaceProvider
	URLs     URLResolver
	Images   ImageLoader // optional; without it no poster is fetched
	Logger   *slog.Logger
	Observer Observer // optional
}

// Registry owns the set of active sessions, one per camera id.
type Registry struct {
	opts     Options
	deps     Deps
	log      *slog.Logger
	sessions map[string]*Session
	order    []string
}

// NewRegistry validates opts and deps and returns an empty Registry.
func NewRegistry(opts Options, deps Deps) (*Registry, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Clock == nil:
		return nil, errors.New("playback: clock is required")
	case deps.Engines == nil:
		return nil, errors.New("playback: engine factory is required")
	case deps.Surfaces == nil:
		return nil, errors.New("playback: surface provider is required")
	case deps.URLs == nil:
		return nil, errors.New("playback: url resolver is required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		opts:     opts,
		deps:     deps,
		log:      log.With(slog.String("component", "playback")),
		sessions: make(map[string]*Session),
	}, nil
}

// SetCameras reconciles sessions against cams: sessions for ids no longer
// present are destroyed, new ids get a started session, and sessions for ids
// already present are left untouched.
func (r *Registry) SetCameras(cams []camera.Descriptor) {
	cams = camera.Normalize(cams)
	wanted := make(map[string]bool, len(cams))
	for _, c := range cams {
		wanted[c.ID] = true
	}

	for id, s := range r.sessions {
		if wanted[id] {
			continue
		}
		r.log.Info("camera removed", slog.String("camera_id", id))
		delete(r.sessions, id)
		s.Destroy()
		r.deps.Surfaces.Release(id)
	}

	order := make([]string, 0, len(cams))
	var created []*Session
	for _, c := range cams {
		order = append(order, c.ID)
		if _, ok := r.sessions[c.ID]; ok {
			continue
		}
		s := r.newSession(c)
		r.sessions[c.ID] = s
		created = append(created, s)
	}
	r.order = order

	for _, s := range created {
		r.log.Info("camera added", slog.String("camera_id", s.CameraID()), slog.String("session_id", s.ID()))
		s.Start()
	}
}

func (r *Registry) newSession(c camera.Descriptor) *Session {
	urls := r.deps.URLs
	id := c.ID
	return newSession(sessionConfig{
		cam:       c,
		streamURL: urls.StreamURL(c),
		thumbURL:  func(bust string) string { return urls.ThumbnailURL(id, bust) },
		opts:      r.opts,
		clk:       r.deps.Clock,
		engines:   r.deps.Engines,
		video:     r.deps.Surfaces.VideoSurface(id),
		thumb:     r.deps.Surfaces.ThumbnailSurface(id),
		images:    r.deps.Images,
		log:       r.log,
		emit:      r.deps.Observer,
	})
}

// TeardownAll destroys every session. Calling it again is a no-op.
func (r *Registry) TeardownAll() {
	for id, s := range r.sessions {
		delete(r.sessions, id)
		s.Destroy()
		r.deps.Surfaces.Release(id)
	}
	r.order = nil
}

// ReloadCamera resets the named session's attempts and starts loading again.
func (r *Registry) ReloadCamera(id string) error {
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("reload %q: %w", id, ErrUnknownCamera)
	}
	s.Reload()
	return nil
}

// ClickThumbnail delivers a poster click to the named session.
func (r *Registry) ClickThumbnail(id string) error {
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("click %q: %w", id, ErrUnknownCamera)
	}
	s.Thumbnail().Click()
	return nil
}

// Session returns the session for id.
func (r *Registry) Session(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// CameraIDs returns the camera ids in list order.
func (r *Registry) CameraIDs() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int { return len(r.sessions) }

// Snapshot returns session infos in camera list order.
func (r *Registry) Snapshot() []Info {
	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		if s, ok := r.sessions[id]; ok {
			out = append(out, s.Info())
		}
	}
	return out
}

// StateCounts returns the number of sessions in each state.
func (r *Registry) StateCounts() map[State]int {
	counts := make(map[State]int, len(States()))
	for _, s := range r.sessions {
		counts[s.State()]++
	}
	return counts
}

// timerCount sums the timers held by every session.
func (r *Registry) timerCount() int {
	n := 0
	for _, s := range r.sessions {
		n += s.timerCount()
	}
	return n
}
