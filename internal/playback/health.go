package playback

import (
	"log/slog"

	"camwall/internal/platform/clock"
)

// healthMonitor samples buffer health while its session is Playing and
// nudges the engine one quality level at a time.
type healthMonitor struct {
	s       *Session
	gen     uint64
	ticker  clock.Timer
	lastPos float64
	still   int
}

func startHealthMonitor(s *Session, gen uint64) *healthMonitor {
	h := &healthMonitor{s: s, gen: gen, lastPos: s.video.Position()}
	h.ticker = s.clk.Every(s.opts.HealthCheckInterval, h.sample)
	return h
}

func (h *healthMonitor) active() bool {
	return !h.s.stale(h.gen) && h.s.state == StatePlaying
}

func (h *healthMonitor) sample() {
	if !h.active() {
		h.stop()
		return
	}
	s := h.s

	pos := s.video.Position()
	bufferHealth := s.video.BufferedEnd() - pos

	if s.opts.StallSamples > 0 {
		if pos <= h.lastPos {
			h.still++
		} else {
			h.still = 0
		}
		h.lastPos = pos
	}

	// Reading the surface may have run callbacks that moved the session on.
	if !h.active() {
		return
	}

	if s.opts.StallSamples > 0 && h.still >= s.opts.StallSamples {
		s.log.Warn("playhead not advancing", slog.Float64("position", pos), slog.Int("samples", h.still))
		s.enterRecovering(ErrStalled)
		return
	}

	current := s.client.CurrentLevel()
	target, ok := nextLevel(bufferHealth, current, len(s.client.Levels()), s.opts.BufferLowWater, s.opts.BufferHighWater)
	if !ok {
		return
	}
	if !h.active() {
		return
	}

	s.log.Debug("quality change",
		slog.Int("from", current), slog.Int("to", target), slog.Float64("buffer_health", bufferHealth))
	s.client.SetNextLevel(target)
	s.publish(Event{Kind: EventLevelChanged, FromLevel: current, ToLevel: target, BufferHealth: bufferHealth})
}

func (h *healthMonitor) stop() {
	if h.ticker != nil {
		h.ticker.Stop()
		h.ticker = nil
	}
}

// nextLevel picks at most one step down when the buffer is below low, or one
// step up when it is above high. Levels are indexed lowest bandwidth first.
func nextLevel(bufferHealth float64, current, count int, low, high float64) (int, bool) {
	if count <= 1 || current < 0 || current >= count {
		return current, false
	}
	switch {
	case bufferHealth < low && current > 0:
		return current - 1, true
	case bufferHealth > high && current < count-1:
		return current + 1, true
	}
	return current, false
}
