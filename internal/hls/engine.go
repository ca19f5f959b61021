// Package hls implements playback.Engine over HTTP live streaming: manifest
// and segment loading, level switching and in-place recovery, feeding a
// headless Surface.
package hls

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"camwall/internal/platform/clock"
	"camwall/internal/playback"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrNoSink is returned by Play when the attached surface cannot take media.
var ErrNoSink = errors.New("attached surface cannot play media")

// MediaSink is the part of a surface an engine feeds.
type MediaSink interface {
	Append(duration float64)
	Play()
	Flush()
}

// Factory creates engines whose events are delivered through post.
type Factory struct {
	post clock.Poster
	opts Options
	http *retryablehttp.Client
	log  *slog.Logger
}

// NewFactory returns a Factory. post must deliver onto the goroutine that
// owns the sessions using these engines.
func NewFactory(post clock.Poster, opts Options, log *slog.Logger) *Factory {
	return &Factory{
		post: post,
		opts: opts,
		http: newHTTPClient(opts),
		log:  log.With(slog.String("component", "hls")),
	}
}

// Supported implements playback.EngineFactory.
func (f *Factory) Supported() bool { return true }

// NewEngine implements playback.EngineFactory.
func (f *Factory) NewEngine(events playback.EngineEvents) playback.Engine {
	return &Engine{f: f, events: events, current: -1, lastSeq: -1}
}

// Engine is a playback.Engine. All methods must be called on the owning
// goroutine; the loader goroutine only talks back through the factory's Poster.
type Engine struct {
	f      *Factory
	events playback.EngineEvents
	source string
	video  playback.VideoSurface
	sink   MediaSink

	levels  []playback.Level
	current int
	want    atomic.Int64
	lastSeq int64

	run       uint64
	cancel    context.CancelFunc
	played    bool
	playing   bool
	destroyed bool
}

// LoadSource sets the manifest URL. Loading begins with StartLoad.
func (e *Engine) LoadSource(url string) {
	e.source = url
}

// Attach binds the engine to a surface and flushes it.
func (e *Engine) Attach(surface playback.VideoSurface) {
	e.video = surface
	e.sink, _ = surface.(MediaSink)
	if e.sink != nil {
		e.sink.Flush()
	}
}

// StartLoad (re)starts the loader from the last appended segment.
func (e *Engine) StartLoad() {
	if e.destroyed || e.source == "" {
		return
	}
	e.stopLoader()
	e.run++
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	l := &loader{
		e:       e,
		run:     e.run,
		hc:      e.f.http,
		opts:    e.f.opts,
		log:     e.f.log,
		source:  e.source,
		levels:  append([]playback.Level(nil), e.levels...),
		level:   e.current,
		lastSeq: e.lastSeq,
		want:    &e.want,
	}
	go l.loop(ctx)
}

// RecoverMediaError drops buffered media and reloads from the last good segment.
func (e *Engine) RecoverMediaError() {
	if e.destroyed {
		return
	}
	e.f.log.Debug("recovering media error", slog.String("url", e.source))
	e.playing = false
	if e.sink != nil {
		e.sink.Flush()
		if e.played {
			e.sink.Play()
		}
	}
	e.StartLoad()
}

// Play starts the surface. Playing is reported once media is buffered.
func (e *Engine) Play() error {
	if e.destroyed {
		return errors.New("engine destroyed")
	}
	if e.sink == nil {
		return ErrNoSink
	}
	e.sink.Play()
	e.played = true
	if !e.playing && e.video.BufferedEnd() > e.video.Position() {
		run := e.run
		e.deliver(run, e.firePlaying)
	}
	return nil
}

// Levels returns a copy of the known quality levels.
func (e *Engine) Levels() []playback.Level {
	return append([]playback.Level(nil), e.levels...)
}

// CurrentLevel returns the level segments are being loaded from, or -1.
func (e *Engine) CurrentLevel() int { return e.current }

// SetNextLevel asks the loader to switch at the next segment boundary.
func (e *Engine) SetNextLevel(level int) {
	if level < 0 || level >= len(e.levels) {
		return
	}
	e.want.Store(int64(level))
}

// Destroy stops the loader. No callbacks run after Destroy returns.
func (e *Engine) Destroy() {
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.stopLoader()
	if e.sink != nil {
		e.sink.Flush()
	}
}

func (e *Engine) stopLoader() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// deliver runs fn on the owning goroutine unless the engine was destroyed or
// the loader that produced it has been replaced.
func (e *Engine) deliver(run uint64, fn func()) {
	e.f.post(func() {
		if e.destroyed || run != e.run {
			return
		}
		fn()
	})
}

func (e *Engine) manifestParsed(levels []playback.Level) {
	if e.levels != nil {
		return
	}
	e.levels = levels
	e.current = 0
	e.want.Store(0)
	if e.events.ManifestParsed != nil {
		e.events.ManifestParsed(e.Levels())
	}
}

func (e *Engine) appended(level int, seq int64, duration float64) {
	e.current = level
	e.lastSeq = seq
	if e.sink != nil {
		e.sink.Append(duration)
	}
	if e.played && !e.playing {
		e.firePlaying()
	}
}

func (e *Engine) firePlaying() {
	if e.playing {
		return
	}
	e.playing = true
	if e.events.Playing != nil {
		e.events.Playing()
	}
}

func (e *Engine) report(kind playback.ErrorKind, fatal bool, err error) {
	if fatal {
		e.stopLoader()
	}
	if e.events.Error != nil {
		e.events.Error(playback.EngineError{Kind: kind, Fatal: fatal, Err: err})
	}
}
