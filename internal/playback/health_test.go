package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextLevel(t *testing.T) {
	tests := []struct {
		name    string
		health  float64
		current int
		count   int
		want    int
		ok      bool
	}{
		{"low_buffer_steps_down", 1.5, 2, 3, 1, true},
		{"low_buffer_at_lowest_stays", 1.5, 0, 3, 0, false},
		{"high_buffer_steps_up", 12, 0, 3, 1, true},
		{"high_buffer_at_highest_stays", 12, 2, 3, 2, false},
		{"between_marks_stays", 5, 1, 3, 1, false},
		{"exactly_low_stays", 3, 1, 3, 1, false},
		{"exactly_high_stays", 10, 1, 3, 1, false},
		{"single_level_never_switches", 0, 0, 1, 0, false},
		{"unknown_current_level", 0, -1, 3, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := nextLevel(tt.health, tt.current, tt.count, 3, 10)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func healthOptions() Options {
	opts := DefaultOptions()
	opts.StallSamples = 0
	return opts
}

func TestHealthMonitor_switches_one_level_per_sample(t *testing.T) {
	h := newHarness(t, healthOptions())
	h.reg.SetCameras(cams("cam1"))
	e := h.toPlaying("cam1")
	v := h.surfaces.videos["cam1"]

	v.pos, v.buffered = 10, 11
	h.clk.Advance(5 * time.Second)
	assert.Equal(t, []int{1}, e.nextLevels)

	h.clk.Advance(5 * time.Second)
	assert.Equal(t, []int{1, 0}, e.nextLevels)

	// Lowest level reached: no further switch down.
	h.clk.Advance(5 * time.Second)
	assert.Equal(t, []int{1, 0}, e.nextLevels)

	v.buffered = 25
	h.clk.Advance(5 * time.Second)
	assert.Equal(t, []int{1, 0, 1}, e.nextLevels)

	changes := h.eventsOf("cam1", EventLevelChanged)
	require.Len(t, changes, 3)
	assert.Equal(t, 2, changes[0].FromLevel)
	assert.Equal(t, 1, changes[0].ToLevel)
	assert.InDelta(t, 1.0, changes[0].BufferHealth, 1e-9)
	assert.Equal(t, StatePlaying, h.session("cam1").State())
	h.requireTimersBalanced()
}

func TestHealthMonitor_only_runs_while_playing(t *testing.T) {
	h := newHarness(t, healthOptions())
	h.reg.SetCameras(cams("cam1"))
	e := h.engines.latest("cam1")
	h.surfaces.videos["cam1"].buffered = 0

	h.clk.Advance(10 * time.Second)
	assert.Empty(t, e.nextLevels)
}

func TestHealthMonitor_stale_sample_does_not_switch(t *testing.T) {
	h := newHarness(t, healthOptions())
	h.reg.SetCameras(cams("cam1"))
	e := h.toPlaying("cam1")
	v := h.surfaces.videos["cam1"]
	v.pos, v.buffered = 10, 10.5
	v.onBuffer = func() {
		v.onBuffer = nil
		e.fail(ErrorOther, true)
	}

	h.clk.Advance(5 * time.Second)

	assert.Empty(t, e.nextLevels)
	assert.Empty(t, h.eventsOf("cam1", EventLevelChanged))
	assert.Equal(t, StateRecovering, h.session("cam1").State())
	h.requireTimersBalanced()
}

func TestHealthMonitor_detects_stall(t *testing.T) {
	opts := DefaultOptions()
	opts.StallSamples = 2
	h := newHarness(t, opts)
	h.reg.SetCameras(cams("cam1"))
	h.toPlaying("cam1")
	v := h.surfaces.videos["cam1"]
	v.pos, v.buffered = 4, 9

	h.clk.Advance(5 * time.Second)
	assert.Equal(t, StatePlaying, h.session("cam1").State())

	h.clk.Advance(5 * time.Second)
	assert.Equal(t, StatePlaying, h.session("cam1").State())

	h.clk.Advance(5 * time.Second)
	s := h.session("cam1")
	assert.Equal(t, StateRecovering, s.State())
	recovering := h.eventsOf("cam1", EventRecovering)
	require.Len(t, recovering, 1)
	assert.Equal(t, ErrStalled.Error(), recovering[0].Reason)
	h.requireTimersBalanced()
}

func TestHealthMonitor_advancing_playhead_is_not_a_stall(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.reg.SetCameras(cams("cam1"))
	h.toPlaying("cam1")
	v := h.surfaces.videos["cam1"]

	for i := 1; i <= 6; i++ {
		v.pos = float64(i * 5)
		v.buffered = v.pos + 5
		h.clk.Advance(5 * time.Second)
	}
	assert.Equal(t, StatePlaying, h.session("cam1").State())
}
