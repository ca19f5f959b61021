package hls

import (
	"sync"
	"time"

	"camwall/internal/platform/clock"
)

// Surface is a headless video element. Segments appended by an engine extend
// the buffer; once played, the playhead advances with clock time and stops at
// the end of the buffer.
type Surface struct {
	mu        sync.Mutex
	clk       clock.Clock
	frameRate float64

	visible  bool
	playing  bool
	pos      float64
	buffered float64
	lastTick time.Time
	segments int
}

// NewSurface returns an empty, hidden Surface.
func NewSurface(clk clock.Clock, frameRate float64) *Surface {
	if frameRate <= 0 {
		frameRate = DefaultOptions().FrameRate
	}
	return &Surface{clk: clk, frameRate: frameRate}
}

func (s *Surface) Show() {
	s.mu.Lock()
	s.visible = true
	s.mu.Unlock()
}

func (s *Surface) Hide() {
	s.mu.Lock()
	s.visible = false
	s.mu.Unlock()
}

// Visible reports whether the surface is shown.
func (s *Surface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *Surface) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	return s.pos
}

func (s *Surface) BufferedEnd() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	return s.buffered
}

func (s *Surface) DecodedFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	return int(s.pos * s.frameRate)
}

// Segments returns the number of segments appended since the last Flush.
func (s *Surface) Segments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segments
}

// Append extends the buffer by duration seconds of media.
func (s *Surface) Append(duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	s.buffered += duration
	s.segments++
}

// Play starts advancing the playhead.
func (s *Surface) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return
	}
	s.playing = true
	s.lastTick = s.clk.Now()
}

// Flush drops buffered media and rewinds to zero. The surface stays paused
// until Play is called again.
func (s *Surface) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.pos = 0
	s.buffered = 0
	s.segments = 0
}

func (s *Surface) advanceLocked() {
	if !s.playing {
		return
	}
	now := s.clk.Now()
	elapsed := now.Sub(s.lastTick).Seconds()
	s.lastTick = now
	if elapsed <= 0 {
		return
	}
	s.pos += elapsed
	if s.pos > s.buffered {
		s.pos = s.buffered
	}
}
