package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"camwall/internal/camera"
	"camwall/internal/platform/clock"

	"github.com/google/uuid"
)

// Session plays one camera. It owns at most one Engine at a time and at most
// one pending timer of each kind; every exit from a state cancels the timers
// that state armed.
type Session struct {
	cam       camera.Descriptor
	id        string
	streamURL string
	opts      Options
	clk       clock.Clock
	engines   EngineFactory
	video     VideoSurface
	thumb     *Thumbnail
	log       *slog.Logger
	emit      Observer

	state      State
	attempts   int
	lastReason string
	startedAt  time.Time // lastAttemptStartedAt
	revealed   bool
	destroyed  bool

	client  Engine
	gen     uint64
	inPlace int

	timeout    clock.Timer
	backoff    clock.Timer
	inPlaceTmr clock.Timer
	health     *healthMonitor
	confirm    *confirmation
}

type sessionConfig struct {
	cam       camera.Descriptor
	streamURL string
	thumbURL  ThumbnailURLFunc
	opts      Options
	clk       clock.Clock
	engines   EngineFactory
	video     VideoSurface
	thumb     ThumbnailSurface
	images    ImageLoader
	log       *slog.Logger
	emit      Observer
}

func newSession(cfg sessionConfig) *Session {
	s := &Session{
		cam:       cfg.cam,
		id:        uuid.NewString(),
		streamURL: cfg.streamURL,
		opts:      cfg.opts,
		clk:       cfg.clk,
		engines:   cfg.engines,
		video:     cfg.video,
		log:       cfg.log.With(slog.String("camera_id", cfg.cam.ID)),
		emit:      cfg.emit,
		state:     StateIdle,
	}
	if s.emit == nil {
		s.emit = func(Event) {}
	}
	s.thumb = newThumbnail(cfg.thumb, cfg.images, cfg.thumbURL, cfg.clk, cfg.opts, s.log, s.thumbnailClicked)
	s.thumb.Show()
	s.video.Hide()
	return s
}

// CameraID returns the camera this session plays.
func (s *Session) CameraID() string { return s.cam.ID }

// ID returns the unique id of this session instance.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Attempts returns the number of consecutive failed attempts since the last
// time the session reached Playing.
func (s *Session) Attempts() int { return s.attempts }

// Thumbnail returns the poster renderer.
func (s *Session) Thumbnail() *Thumbnail { return s.thumb }

// Start leaves Idle and begins loading. It is a no-op in any other state.
func (s *Session) Start() {
	if s.destroyed || s.state != StateIdle {
		return
	}
	s.thumb.Start()
	s.enterLoading()
}

// Reload forces the session back to Idle, resets the attempt count and
// immediately starts loading again.
func (s *Session) Reload() {
	if s.destroyed {
		return
	}
	s.teardownClient()
	s.stop(&s.backoff)
	s.attempts = 0
	s.thumb.ClearError()
	s.state = StateIdle
	s.publish(Event{Kind: EventIdle, Reason: "reload"})
	if s.destroyed {
		return
	}
	s.thumb.Start()
	s.enterLoading()
}

// Destroy releases the engine and every timer. It is idempotent; callbacks
// queued before Destroy are ignored when they run.
func (s *Session) Destroy() {
	if s.destroyed {
		return
	}
	s.teardownClient()
	s.stop(&s.backoff)
	s.thumb.Destroy()
	s.destroyed = true
	s.state = StateIdle
	s.video.Hide()
	s.log.Debug("session destroyed")
	s.emit(s.event(Event{Kind: EventIdle, Reason: "destroyed"}))
}

func (s *Session) thumbnailClicked() {
	if s.state == StateFailed || s.state == StateLoading {
		s.log.Info("thumbnail clicked, reloading", slog.String("state", string(s.state)))
		s.Reload()
	}
}

func (s *Session) enterLoading() {
	if !s.engines.Supported() {
		s.enterFailed(ErrUnsupported)
		return
	}

	s.state = StateLoading
	s.revealed = false
	s.startedAt = s.clk.Now()
	s.thumb.Show()
	s.video.Hide()

	s.gen++
	gen := s.gen
	s.inPlace = 0
	s.client = s.engines.NewEngine(EngineEvents{
		ManifestParsed: func(levels []Level) { s.onManifestParsed(gen, levels) },
		Playing:        func() { s.onPlaying(gen) },
		Error:          func(e EngineError) { s.onEngineError(gen, e) },
	})
	s.timeout = s.clk.AfterFunc(s.opts.StreamTimeout, func() { s.onTimeout(gen) })

	s.log.Info("loading stream", slog.String("url", s.streamURL), slog.Int("attempt", s.attempts+1))
	s.publish(Event{Kind: EventLoading})
	if s.stale(gen) {
		return
	}

	s.client.Attach(s.video)
	s.client.LoadSource(s.streamURL)
	s.client.StartLoad()
}

func (s *Session) onManifestParsed(gen uint64, levels []Level) {
	if s.stale(gen) || s.state != StateLoading {
		return
	}
	s.log.Debug("manifest parsed", slog.Int("levels", len(levels)))
	if err := s.client.Play(); err != nil {
		s.enterRecovering(fmt.Errorf("play: %w", err))
	}
}

func (s *Session) onPlaying(gen uint64) {
	if s.stale(gen) || s.state != StateLoading {
		return
	}
	s.enterPlaying()
}

func (s *Session) onTimeout(gen uint64) {
	if s.stale(gen) {
		return
	}
	s.timeout = nil
	if s.state != StateLoading {
		return
	}
	s.log.Warn("stream timeout", slog.Duration("timeout", s.opts.StreamTimeout))
	s.enterRecovering(ErrStreamTimeout)
}

func (s *Session) onEngineError(gen uint64, e EngineError) {
	if s.stale(gen) || (s.state != StateLoading && s.state != StatePlaying) {
		return
	}
	if !e.Fatal {
		s.log.Debug("engine error", slog.String("error", e.Error()))
		return
	}

	if s.inPlace < s.opts.InPlaceRetries {
		switch e.Kind {
		case ErrorNetwork:
			s.inPlace++
			s.log.Warn("network error, restarting load",
				slog.String("error", e.Error()), slog.Int("in_place", s.inPlace))
			s.stop(&s.inPlaceTmr)
			s.inPlaceTmr = s.clk.AfterFunc(s.opts.BaseRetryDelay, func() {
				if s.stale(gen) {
					return
				}
				s.inPlaceTmr = nil
				s.client.StartLoad()
			})
			return
		case ErrorMedia:
			s.inPlace++
			s.log.Warn("media error, attempting recovery",
				slog.String("error", e.Error()), slog.Int("in_place", s.inPlace))
			s.client.RecoverMediaError()
			return
		}
	}
	s.enterRecovering(e)
}

func (s *Session) enterPlaying() {
	s.stop(&s.timeout)
	s.stop(&s.inPlaceTmr)
	startup := s.clk.Now().Sub(s.startedAt)
	s.state = StatePlaying
	s.attempts = 0
	s.lastReason = ""

	gen := s.gen
	s.health = startHealthMonitor(s, gen)
	s.confirm = startConfirmation(s, gen)

	s.log.Info("playing", slog.Duration("startup", startup))
	s.publish(Event{Kind: EventPlaying, Startup: startup})
}

// enterRecovering tears down the engine and either schedules the next load
// or, once the retry budget is spent, fails the session.
func (s *Session) enterRecovering(cause error) {
	s.teardownClient()
	s.attempts++
	s.lastReason = cause.Error()
	s.state = StateRecovering
	s.thumb.Show()
	s.video.Hide()

	if s.attempts > s.opts.MaxRetries {
		s.enterFailed(cause)
		return
	}

	delay := s.opts.RetryDelay(s.attempts)
	gen := s.gen
	s.stop(&s.backoff)
	s.backoff = s.clk.AfterFunc(delay, func() {
		if s.stale(gen) {
			return
		}
		s.backoff = nil
		if s.state == StateRecovering {
			s.enterLoading()
		}
	})

	s.log.Warn("recovering",
		slog.Int("attempt", s.attempts),
		slog.Int("max_retries", s.opts.MaxRetries),
		slog.Duration("delay", delay),
		slog.String("reason", s.lastReason))
	s.publish(Event{Kind: EventRecovering, Attempt: s.attempts, RetryIn: delay, Reason: s.lastReason})
}

func (s *Session) enterFailed(cause error) {
	s.teardownClient()
	s.stop(&s.backoff)
	s.state = StateFailed
	s.lastReason = cause.Error()
	unsupported := errors.Is(cause, ErrUnsupported)

	s.video.Hide()
	s.thumb.Show()
	if unsupported {
		s.thumb.ShowError(msgUnsupported)
	} else {
		s.thumb.ShowError(msgRetry)
	}

	s.log.Error("stream failed",
		slog.Int("attempts", s.attempts),
		slog.Bool("unsupported", unsupported),
		slog.String("reason", s.lastReason))
	s.publish(Event{Kind: EventFailed, TotalAttempts: s.attempts, Reason: s.lastReason, Unsupported: unsupported})
}

// reveal hides the poster and shows video. Called once per Playing entry.
func (s *Session) reveal(forced bool) {
	if s.revealed {
		return
	}
	s.revealed = true
	s.thumb.Hide()
	s.video.Show()
	if forced {
		s.log.Info("playback not confirmed within grace period, revealing video")
	}
	s.publish(Event{Kind: EventRevealed, Forced: forced})
}

// teardownClient destroys the engine and cancels every timer tied to it.
// Bumping the generation makes any already-queued engine or timer callback stale.
func (s *Session) teardownClient() {
	s.stop(&s.timeout)
	s.stop(&s.inPlaceTmr)
	if s.health != nil {
		s.health.stop()
		s.health = nil
	}
	if s.confirm != nil {
		s.confirm.stop()
		s.confirm = nil
	}
	if s.client != nil {
		s.client.Destroy()
		s.client = nil
	}
	s.gen++
}

func (s *Session) stop(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (s *Session) stale(gen uint64) bool {
	return s.destroyed || gen != s.gen
}

func (s *Session) publish(e Event) {
	s.emit(s.event(e))
}

func (s *Session) event(e Event) Event {
	e.CameraID = s.cam.ID
	e.SessionID = s.id
	e.State = s.state
	e.At = s.clk.Now()
	return e
}

// timerCount returns the timers this session currently holds.
func (s *Session) timerCount() int {
	n := s.thumb.timerCount()
	for _, t := range []clock.Timer{s.timeout, s.backoff, s.inPlaceTmr} {
		if t != nil {
			n++
		}
	}
	if s.health != nil && s.health.ticker != nil {
		n++
	}
	if s.confirm != nil {
		n += s.confirm.timerCount()
	}
	return n
}

// Info is a point-in-time view of a session.
type Info struct {
	CameraID      string    `json:"camera_id"`
	SessionID     string    `json:"session_id"`
	DisplayName   string    `json:"name"`
	Model         string    `json:"model,omitempty"`
	Resolution    string    `json:"resolution,omitempty"`
	State         State     `json:"state"`
	Attempts      int       `json:"attempts"`
	LastReason    string    `json:"last_reason,omitempty"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
	Levels        []Level   `json:"levels,omitempty"`
	CurrentLevel  int       `json:"current_level"`
	VideoVisible  bool      `json:"video_visible"`
	PosterVisible bool      `json:"poster_visible"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	info := Info{
		CameraID:      s.cam.ID,
		SessionID:     s.id,
		DisplayName:   s.cam.DisplayName,
		Model:         s.cam.Model,
		Resolution:    s.cam.Resolution,
		State:         s.state,
		Attempts:      s.attempts,
		LastReason:    s.lastReason,
		LastAttemptAt: s.startedAt,
		CurrentLevel:  -1,
		VideoVisible:  s.revealed && s.state == StatePlaying,
		PosterVisible: s.thumb.Visible(),
	}
	if s.client != nil {
		info.Levels = s.client.Levels()
		info.CurrentLevel = s.client.CurrentLevel()
	}
	return info
}
