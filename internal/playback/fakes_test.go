package playback

import (
	"errors"
	"testing"
	"time"

	"camwall/internal/camera"
	"camwall/internal/platform/clock"
	"camwall/internal/platform/logger"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeEngine struct {
	events     EngineEvents
	video      *fakeVideo
	source     string
	levels     []Level
	current    int
	playErr    error
	startLoads int
	recovers   int
	plays      int
	nextLevels []int
	destroyed  bool
}

func (e *fakeEngine) LoadSource(url string)        { e.source = url }
func (e *fakeEngine) Attach(surface VideoSurface) { e.video = surface.(*fakeVideo) }
func (e *fakeEngine) StartLoad()                  { e.startLoads++ }
func (e *fakeEngine) RecoverMediaError()          { e.recovers++ }
func (e *fakeEngine) Play() error                 { e.plays++; return e.playErr }
func (e *fakeEngine) Levels() []Level             { return e.levels }
func (e *fakeEngine) CurrentLevel() int           { return e.current }
func (e *fakeEngine) SetNextLevel(level int) {
	e.nextLevels = append(e.nextLevels, level)
	e.current = level
}
func (e *fakeEngine) Destroy() { e.destroyed = true }

func (e *fakeEngine) manifest() { e.events.ManifestParsed(e.levels) }
func (e *fakeEngine) playing()  { e.events.Playing() }
func (e *fakeEngine) fail(kind ErrorKind, fatal bool) {
	e.events.Error(EngineError{Kind: kind, Fatal: fatal, Err: errors.New("boom")})
}

type fakeFactory struct {
	unsupported bool
	levels      []Level
	engines     []*fakeEngine
}

func (f *fakeFactory) Supported() bool { return !f.unsupported }

func (f *fakeFactory) NewEngine(events EngineEvents) Engine {
	e := &fakeEngine{events: events, levels: f.levels, current: len(f.levels) - 1}
	if len(f.levels) == 0 {
		e.current = -1
	}
	f.engines = append(f.engines, e)
	return e
}

// latest returns the last engine attached to the camera's surface.
func (f *fakeFactory) latest(id string) *fakeEngine {
	for i := len(f.engines) - 1; i >= 0; i-- {
		if v := f.engines[i].video; v != nil && v.id == id {
			return f.engines[i]
		}
	}
	return nil
}

func (f *fakeFactory) count(id string) int {
	n := 0
	for _, e := range f.engines {
		if e.video != nil && e.video.id == id {
			n++
		}
	}
	return n
}

type fakeVideo struct {
	id       string
	visible  bool
	pos      float64
	buffered float64
	frames   int
	onBuffer func()
}

func (v *fakeVideo) Show()              { v.visible = true }
func (v *fakeVideo) Hide()              { v.visible = false }
func (v *fakeVideo) Position() float64  { return v.pos }
func (v *fakeVideo) DecodedFrames() int { return v.frames }
func (v *fakeVideo) BufferedEnd() float64 {
	if v.onBuffer != nil {
		v.onBuffer()
	}
	return v.buffered
}

type fakePoster struct {
	visible bool
	image   Image
	images  int
	err     string
}

func (p *fakePoster) Show()              { p.visible = true }
func (p *fakePoster) Hide()              { p.visible = false }
func (p *fakePoster) SetImage(img Image) { p.image = img; p.images++ }
func (p *fakePoster) ShowError(m string) { p.err = m }
func (p *fakePoster) ClearError()        { p.err = "" }

type fakeSurfaces struct {
	videos   map[string]*fakeVideo
	posters  map[string]*fakePoster
	released []string
}

func newFakeSurfaces() *fakeSurfaces {
	return &fakeSurfaces{videos: map[string]*fakeVideo{}, posters: map[string]*fakePoster{}}
}

func (s *fakeSurfaces) VideoSurface(id string) VideoSurface {
	v := &fakeVideo{id: id}
	s.videos[id] = v
	return v
}

func (s *fakeSurfaces) ThumbnailSurface(id string) ThumbnailSurface {
	p := &fakePoster{}
	s.posters[id] = p
	return p
}

func (s *fakeSurfaces) Release(id string) { s.released = append(s.released, id) }

type fakeURLs struct{}

func (fakeURLs) StreamURL(d camera.Descriptor) string { return "http://origin" + d.StreamPath() }
func (fakeURLs) ThumbnailURL(id, bust string) string {
	return "http://origin/thumbnail/" + id + "?t=" + bust
}

type imageRequest struct {
	url  string
	done func(Image, error)
}

type fakeLoader struct {
	requests []imageRequest
}

func (l *fakeLoader) LoadImage(url string, done func(Image, error)) {
	l.requests = append(l.requests, imageRequest{url: url, done: done})
}

// complete resolves every pending request.
func (l *fakeLoader) complete(err error) {
	pending := l.requests
	l.requests = nil
	for _, r := range pending {
		if err != nil {
			r.done(Image{}, err)
		} else {
			r.done(Image{Data: []byte("jpeg"), ContentType: "image/jpeg"}, nil)
		}
	}
}

type harness struct {
	t        *testing.T
	clk      *clock.Manual
	engines  *fakeFactory
	surfaces *fakeSurfaces
	images   *fakeLoader
	reg      *Registry
	events   []Event
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		clk:      clock.NewManual(epoch),
		engines:  &fakeFactory{levels: []Level{{Index: 0, Bandwidth: 400_000}, {Index: 1, Bandwidth: 1_200_000}, {Index: 2, Bandwidth: 3_000_000}}},
		surfaces: newFakeSurfaces(),
		images:   &fakeLoader{},
	}
	reg, err := NewRegistry(opts, Deps{
		Clock:    h.clk,
		Engines:  h.engines,
		Surfaces: h.surfaces,
		URLs:     fakeURLs{},
		Images:   h.images,
		Logger:   logger.Discard(),
		Observer: func(e Event) { h.events = append(h.events, e) },
	})
	require.NoError(t, err)
	h.reg = reg
	return h
}

func cams(ids ...string) []camera.Descriptor {
	out := make([]camera.Descriptor, len(ids))
	for i, id := range ids {
		out[i] = camera.Descriptor{ID: id}
	}
	return out
}

func (h *harness) session(id string) *Session {
	h.t.Helper()
	s, ok := h.reg.Session(id)
	require.True(h.t, ok, "no session for %s", id)
	return s
}

// kinds returns the event kinds emitted for a camera, in order.
func (h *harness) kinds(id string) []EventKind {
	var out []EventKind
	for _, e := range h.events {
		if e.CameraID == id {
			out = append(out, e.Kind)
		}
	}
	return out
}

func (h *harness) eventsOf(id string, kind EventKind) []Event {
	var out []Event
	for _, e := range h.events {
		if e.CameraID == id && e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// toPlaying drives the camera's current engine through manifest and playing.
func (h *harness) toPlaying(id string) *fakeEngine {
	h.t.Helper()
	e := h.engines.latest(id)
	require.NotNil(h.t, e)
	e.manifest()
	e.playing()
	require.Equal(h.t, StatePlaying, h.session(id).State())
	return e
}

func (h *harness) requireTimersBalanced() {
	h.t.Helper()
	require.Equal(h.t, h.clk.Active(), h.reg.timerCount(), "clock timers vs session-held timers")
}
