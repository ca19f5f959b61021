// Package wall runs the camera wall: one playback session per camera on a
// single loop goroutine, kept in sync with the backend camera list.
package wall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"camwall/internal/camera"
	"camwall/internal/events"
	"camwall/internal/hls"
	"camwall/internal/platform/clock"
	"camwall/internal/platform/loop"
	"camwall/internal/platform/metrics"
	"camwall/internal/playback"
)

// DefaultRefreshInterval is how often the camera list is re-fetched.
const DefaultRefreshInterval = 60 * time.Second

const teardownTimeout = 5 * time.Second

// ErrNoThumbnail is returned when a camera has no poster image yet.
var ErrNoThumbnail = errors.New("no thumbnail loaded")

// Config wires a Service.
type Config struct {
	Player          playback.Options
	Engine          hls.Options
	RefreshInterval time.Duration
	Bus             *events.Bus      // optional
	Metrics         *metrics.Metrics // optional
	Logger          *slog.Logger
}

// Service owns the loop, the playback registry and the camera list poller.
// Its exported methods are safe to call from any goroutine.
type Service struct {
	client   *camera.Client
	loop     *loop.Loop
	clk      clock.Clock
	reg      *playback.Registry
	surfaces *Surfaces
	bus      *events.Bus
	metrics  *metrics.Metrics
	log      *slog.Logger
	refresh  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	lastSync    time.Time
	lastSyncErr error
}

// NewService builds a Service. Nothing runs until Run is called.
func NewService(client *camera.Client, cfg Config) (*Service, error) {
	if client == nil {
		return nil, errors.New("wall: camera client is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	lp := loop.New(0)
	clk := clock.New(lp.Post)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		client:   client,
		loop:     lp,
		clk:      clk,
		surfaces: NewSurfaces(clk, cfg.Engine.FrameRate),
		bus:      cfg.Bus,
		metrics:  cfg.Metrics,
		log:      log.With(slog.String("component", "wall")),
		refresh:  cfg.RefreshInterval,
		ctx:      ctx,
		cancel:   cancel,
	}

	reg, err := playback.NewRegistry(cfg.Player, playback.Deps{
		Clock:    clk,
		Engines:  hls.NewFactory(lp.Post, cfg.Engine, log),
		Surfaces: s.surfaces,
		URLs:     client,
		Images:   &imageLoader{ctx: ctx, client: client, post: lp.Post},
		Logger:   log,
		Observer: s.observe,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	s.reg = reg
	return s, nil
}

// Run drives the loop and polls the camera list until ctx is cancelled, then
// tears every session down.
func (s *Service) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- s.loop.Run(loopCtx) }()

	s.log.Info("camera wall starting", slog.Duration("refresh_interval", s.refresh))
	s.syncCameras(ctx)

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			stopLoop()
			<-loopDone
			s.log.Info("camera wall stopped")
			return nil
		case <-ticker.C:
			s.syncCameras(ctx)
		}
	}
}

func (s *Service) shutdown() {
	tctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := s.loop.Do(tctx, s.reg.TeardownAll); err != nil {
		s.log.Error("teardown failed", slog.String("error", err.Error()))
	}
	s.cancel()
}

func (s *Service) syncCameras(ctx context.Context) {
	list, err := s.client.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("camera list fetch failed", slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.IncCameraSyncFailures()
		}
		s.recordSync(err)
		return
	}
	if err := s.SetCameras(ctx, list); err != nil {
		s.log.Error("apply camera list failed", slog.String("error", err.Error()))
		s.recordSync(err)
		return
	}
	s.recordSync(nil)
}

func (s *Service) recordSync(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSyncErr = err
	if err == nil {
		s.lastSync = time.Now()
	}
}

// SetCameras reconciles sessions against list and publishes the change, if any.
func (s *Service) SetCameras(ctx context.Context, list []camera.Descriptor) error {
	var before, after []string
	err := s.loop.Do(ctx, func() {
		before = s.reg.CameraIDs()
		s.reg.SetCameras(list)
		after = s.reg.CameraIDs()
	})
	if err != nil {
		return err
	}

	added, removed := diff(before, after)
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}
	s.log.Info("camera list changed",
		slog.Int("cameras", len(after)),
		slog.Any("added", added),
		slog.Any("removed", removed))
	if s.bus != nil {
		s.bus.Publish(events.CamerasSyncedEvent{Cameras: after, Added: added, Removed: removed, At: time.Now()})
	}
	return nil
}

func diff(before, after []string) (added, removed []string) {
	old := make(map[string]bool, len(before))
	for _, id := range before {
		old[id] = true
	}
	cur := make(map[string]bool, len(after))
	for _, id := range after {
		cur[id] = true
		if !old[id] {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if !cur[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// Sessions returns a view of every session in camera list order.
func (s *Service) Sessions(ctx context.Context) ([]SessionView, error) {
	var out []SessionView
	err := s.loop.Do(ctx, func() {
		infos := s.reg.Snapshot()
		out = make([]SessionView, 0, len(infos))
		for _, info := range infos {
			out = append(out, s.view(info))
		}
	})
	return out, err
}

// Session returns the view for one camera.
func (s *Service) Session(ctx context.Context, id string) (SessionView, error) {
	var (
		out   SessionView
		found bool
	)
	err := s.loop.Do(ctx, func() {
		sess, ok := s.reg.Session(id)
		if !ok {
			return
		}
		found = true
		out = s.view(sess.Info())
	})
	if err != nil {
		return out, err
	}
	if !found {
		return out, fmt.Errorf("session %q: %w", id, playback.ErrUnknownCamera)
	}
	return out, nil
}

// view must run on the loop.
func (s *Service) view(info playback.Info) SessionView {
	v := SessionView{Info: info}
	if p, ok := s.surfaces.posters[info.CameraID]; ok {
		v.Message = p.message
		v.HasPoster = p.image.Data != nil
	}
	if vid, ok := s.surfaces.videos[info.CameraID]; ok {
		v.Position = vid.Position()
		v.BufferedEnd = vid.BufferedEnd()
	}
	return v
}

// Reload restarts a camera's session with a fresh attempt count.
func (s *Service) Reload(ctx context.Context, id string) error {
	var err error
	if doErr := s.loop.Do(ctx, func() { err = s.reg.ReloadCamera(id) }); doErr != nil {
		return doErr
	}
	return err
}

// ClickThumbnail delivers a poster click.
func (s *Service) ClickThumbnail(ctx context.Context, id string) error {
	var err error
	if doErr := s.loop.Do(ctx, func() { err = s.reg.ClickThumbnail(id) }); doErr != nil {
		return doErr
	}
	return err
}

// Thumbnail returns the last poster image loaded for id.
func (s *Service) Thumbnail(ctx context.Context, id string) (playback.Image, error) {
	var (
		img   playback.Image
		known bool
	)
	if err := s.loop.Do(ctx, func() {
		p, ok := s.surfaces.posters[id]
		if !ok {
			return
		}
		known = true
		img = p.image
	}); err != nil {
		return img, err
	}
	if !known {
		return img, fmt.Errorf("thumbnail %q: %w", id, playback.ErrUnknownCamera)
	}
	if img.Data == nil {
		return img, ErrNoThumbnail
	}
	return img, nil
}

// StateCounts returns session counts keyed by state name.
func (s *Service) StateCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.loop.Do(ctx, func() {
		for state, n := range s.reg.StateCounts() {
			counts[string(state)] = n
		}
	})
	return counts, err
}

// Health reports camera count and the outcome of the last list sync.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{Status: "ok"}
	var n int
	if err := s.loop.Do(ctx, func() { n = s.reg.Len() }); err != nil {
		h.Status = "unavailable"
		h.Error = err.Error()
	} else {
		h.Cameras = n
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.lastSync.IsZero() {
		t := s.lastSync
		h.LastSync = &t
	}
	if s.lastSyncErr != nil {
		h.LastSyncError = s.lastSyncErr.Error()
		if h.Status == "ok" {
			h.Status = "degraded"
		}
	}
	return h
}

// Bus returns the event bus, or nil.
func (s *Service) Bus() *events.Bus { return s.bus }

// observe runs on the loop for every session event.
func (s *Service) observe(e playback.Event) {
	if s.metrics != nil {
		switch e.Kind {
		case playback.EventRecovering:
			s.metrics.IncRetries()
		case playback.EventFailed:
			s.metrics.IncFailures()
		case playback.EventPlaying:
			s.metrics.ObserveStartup(e.Startup.Seconds())
		case playback.EventRevealed:
			s.metrics.IncReveal(e.Forced)
		case playback.EventLevelChanged:
			dir := "up"
			if e.ToLevel < e.FromLevel {
				dir = "down"
			}
			s.metrics.IncLevelSwitch(dir)
		}
	}
	if s.bus != nil {
		s.bus.Publish(events.SessionEvent{Event: e})
	}
}
