package main

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"camwall/internal/hls"
	"camwall/internal/hlstest"
	"camwall/internal/platform/logger"
	"camwall/internal/playback"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProber(backend string) prober {
	player := playback.DefaultOptions()
	player.StreamTimeout = 2 * time.Second
	player.MaxRetries = 1
	player.BaseRetryDelay = 50 * time.Millisecond
	player.MaxRetryDelay = 100 * time.Millisecond
	player.InPlaceRetries = 0
	player.ConfirmGrace = 300 * time.Millisecond
	player.ConfirmPollInterval = 20 * time.Millisecond
	player.MinDecodedFrames = 1

	engine := hls.DefaultOptions()
	engine.RetryMax = 0
	engine.RetryWaitMin = time.Millisecond
	engine.RetryWaitMax = 5 * time.Millisecond
	engine.MinPollInterval = 50 * time.Millisecond
	engine.Timeout = 2 * time.Second

	return prober{backendURL: backend, player: player, engine: engine, log: logger.Discard()}
}

func probeOrigin(t *testing.T) *hlstest.Origin {
	o := hlstest.NewOrigin()
	t.Cleanup(o.Close)
	o.AddCamera("front", "Front door",
		hlstest.Rendition{Name: "low", Bandwidth: 400_000, Width: 640, Height: 360},
		hlstest.Rendition{Name: "high", Bandwidth: 800_000, Width: 1280, Height: 720},
	)
	o.Append("front", 6, 1)
	return o
}

func TestProbe_camera_id(t *testing.T) {
	o := probeOrigin(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, testProber(o.URL()).run(ctx, "front", &out))

	assert.Contains(t, out.String(), "front")
	assert.Contains(t, out.String(), string(playback.StatePlaying))
	assert.Contains(t, out.String(), "400 kbps 640x360")
	assert.Contains(t, out.String(), "800 kbps 1280x720")
	assert.Positive(t, o.HitsWithPrefix("/stream/front/low/"))
}

func TestProbe_single_rendition_has_no_bandwidth(t *testing.T) {
	o := hlstest.NewOrigin()
	t.Cleanup(o.Close)
	o.AddCamera("side", "")
	o.Append("side", 6, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, testProber(o.URL()).run(ctx, "side", &out))
	assert.Contains(t, out.String(), "unknown bandwidth")
	assert.NotContains(t, out.String(), "0 kbps")
}

func TestLevelLabel(t *testing.T) {
	assert.Equal(t, "unknown bandwidth", levelLabel(playback.Level{}))
	assert.Equal(t, "1200 kbps", levelLabel(playback.Level{Bandwidth: 1_200_000}))
	assert.Equal(t, "3000 kbps 1920x1080", levelLabel(playback.Level{Bandwidth: 3_000_000, Width: 1920, Height: 1080}))
}

func TestProbe_raw_url(t *testing.T) {
	o := probeOrigin(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, testProber("http://127.0.0.1:1").run(ctx, o.StreamURL("front"), &out))
	assert.Contains(t, out.String(), probeID)
	assert.Zero(t, o.Hits("/cameras"))
}

func TestProbe_unknown_camera(t *testing.T) {
	o := probeOrigin(t)
	err := testProber(o.URL()).run(context.Background(), "garage", &bytes.Buffer{})
	assert.ErrorIs(t, err, playback.ErrUnknownCamera)
}

func TestProbe_failed_stream(t *testing.T) {
	o := probeOrigin(t)
	o.SetManifestStatus("front", http.StatusNotFound)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := testProber(o.URL()).run(ctx, "front", &out)
	require.ErrorIs(t, err, ErrProbeFailed)
	assert.Contains(t, out.String(), string(playback.StateFailed))
	assert.Equal(t, 2, o.Hits("/stream/front/index.m3u8"))
}
