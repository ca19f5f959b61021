package playback

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_validates(t *testing.T) {
	opts := DefaultOptions()
	opts.StreamTimeout = 0
	_, err := NewRegistry(opts, Deps{})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewRegistry(DefaultOptions(), Deps{})
	assert.Error(t, err)
}

func TestRegistry_SetCameras_reconciles(t *testing.T) {
	opts := DefaultOptions()
	h := newHarness(t, opts)
	h.reg.SetCameras(cams("A", "B"))
	a := h.session("A")
	b := h.session("B")
	engineA := h.engines.latest("A")

	// B waits out its first backoff while the list changes.
	h.engines.latest("B").fail(ErrorOther, true)
	require.Equal(t, StateRecovering, b.State())
	require.Equal(t, 1, b.Attempts())
	bTimers := b.timerCount()
	require.Equal(t, 2, bTimers, "backoff and poster refresh")

	h.reg.SetCameras(cams("B", "C"))

	assert.Equal(t, 2, h.reg.Len())
	_, ok := h.reg.Session("A")
	assert.False(t, ok)
	assert.True(t, engineA.destroyed)
	assert.Equal(t, 0, a.timerCount())
	assert.Equal(t, []string{"A"}, h.surfaces.released)

	same := h.session("B")
	assert.Same(t, b, same)
	assert.Equal(t, StateRecovering, same.State())
	assert.Equal(t, 1, same.Attempts())
	assert.Equal(t, bTimers, same.timerCount())
	assert.Equal(t, 1, h.engines.count("B"))

	c := h.session("C")
	assert.Equal(t, StateLoading, c.State())

	snap := h.reg.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "B", snap[0].CameraID)
	assert.Equal(t, "C", snap[1].CameraID)
	h.requireTimersBalanced()

	// The surviving backoff timer still drives B's next attempt.
	h.clk.Advance(opts.RetryDelay(1))
	assert.Equal(t, StateLoading, b.State())
	assert.Equal(t, 1, b.Attempts())
	assert.Equal(t, 2, h.engines.count("B"))
	h.requireTimersBalanced()
}

func TestRegistry_SetCameras_same_list_is_noop(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.reg.SetCameras(cams("A", "B"))
	n := len(h.engines.engines)
	events := len(h.events)

	h.reg.SetCameras(cams("B", "A", "A", ""))

	assert.Len(t, h.engines.engines, n)
	assert.Len(t, h.events, events)
	snap := h.reg.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "B", snap[0].CameraID)
}

func TestRegistry_TeardownAll_twice(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.reg.SetCameras(cams("A", "B", "C"))
	h.toPlaying("A")
	h.clk.Advance(DefaultOptions().StreamTimeout)

	h.reg.TeardownAll()
	h.reg.TeardownAll()

	assert.Equal(t, 0, h.reg.Len())
	assert.Equal(t, 0, h.clk.Active())
	for _, e := range h.engines.engines {
		assert.True(t, e.destroyed)
	}
	assert.ElementsMatch(t, []string{"A", "B", "C"}, h.surfaces.released)

	idle := 0
	for _, e := range h.events {
		if e.Kind == EventIdle && e.Reason == "destroyed" {
			idle++
		}
	}
	assert.Equal(t, 3, idle)
	assert.Empty(t, h.reg.Snapshot())
}

func TestRegistry_unknown_camera(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.reg.SetCameras(cams("A"))

	assert.ErrorIs(t, h.reg.ReloadCamera("nope"), ErrUnknownCamera)
	assert.ErrorIs(t, h.reg.ClickThumbnail("nope"), ErrUnknownCamera)
}

func TestRegistry_StateCounts(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.reg.SetCameras(cams("A", "B", "C"))
	h.toPlaying("A")

	counts := h.reg.StateCounts()
	assert.Equal(t, 1, counts[StatePlaying])
	assert.Equal(t, 2, counts[StateLoading])
}

// Every timer a session arms is either still held by it or already gone from
// the clock, across arbitrary interleavings of engine events, user actions,
// camera list changes and time.
func TestRegistry_timer_accounting_randomized(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRetries = 2
	ids := []string{"A", "B", "C", "D"}

	for seed := int64(1); seed <= 20; seed++ {
		h := newHarness(t, opts)
		rng := rand.New(rand.NewSource(seed))
		h.reg.SetCameras(cams(ids...))

		for step := 0; step < 300; step++ {
			id := ids[rng.Intn(len(ids))]
			e := h.engines.latest(id)
			v := h.surfaces.videos[id]

			switch op := rng.Intn(12); op {
			case 0:
				h.clk.Advance(time.Duration(rng.Intn(15000)) * time.Millisecond)
			case 1:
				if e != nil {
					e.manifest()
				}
			case 2:
				if e != nil {
					e.playing()
				}
			case 3, 4:
				if e != nil {
					e.fail(ErrorKind(rng.Intn(3)), rng.Intn(4) != 0)
				}
			case 5:
				var next []string
				for _, id := range ids {
					if rng.Intn(3) != 0 {
						next = append(next, id)
					}
				}
				h.reg.SetCameras(cams(next...))
			case 6:
				_ = h.reg.ReloadCamera(id)
			case 7:
				_ = h.reg.ClickThumbnail(id)
			case 8:
				if rng.Intn(2) == 0 {
					h.images.complete(nil)
				} else {
					h.images.complete(errors.New("404"))
				}
			case 9:
				if v != nil {
					v.pos += rng.Float64() * 3
					v.buffered = v.pos + rng.Float64()*15
					v.frames += rng.Intn(60)
				}
			case 10:
				if v != nil && e != nil {
					v.onBuffer = func() {
						v.onBuffer = nil
						e.fail(ErrorOther, true)
					}
				}
			case 11:
				h.clk.Advance(time.Duration(rng.Intn(500)) * time.Millisecond)
			}
			require.Equal(t, h.clk.Active(), h.reg.timerCount(), "seed %d step %d", seed, step)
		}

		h.reg.TeardownAll()
		require.Equal(t, 0, h.clk.Active(), "seed %d", seed)
	}
}
