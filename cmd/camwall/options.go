package main

import (
	"time"

	"camwall/internal/platform/config"
	"camwall/internal/playback"
)

// playerOptions overlays the non-zero fields of p onto the default policy.
func playerOptions(p config.Player) playback.Options {
	o := playback.DefaultOptions()

	millis(&o.StreamTimeout, p.StreamTimeoutMs)
	millis(&o.BaseRetryDelay, p.BaseRetryDelayMs)
	millis(&o.MaxRetryDelay, p.MaxRetryDelayMs)
	millis(&o.HealthCheckInterval, p.HealthCheckIntervalMs)
	millis(&o.ThumbnailRefreshInterval, p.ThumbnailRefreshIntervalMs)
	millis(&o.ThumbnailRetryDelay, p.ThumbnailRetryDelayMs)
	millis(&o.ConfirmGrace, p.ConfirmGraceMs)

	if p.MaxRetries > 0 {
		o.MaxRetries = p.MaxRetries
	}
	if p.InPlaceRetries > 0 {
		o.InPlaceRetries = p.InPlaceRetries
	}
	if p.BufferLowWaterSec > 0 {
		o.BufferLowWater = p.BufferLowWaterSec
	}
	if p.BufferHighWaterSec > 0 {
		o.BufferHighWater = p.BufferHighWaterSec
	}
	return o
}

func millis(dst *time.Duration, ms int) {
	if ms > 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

// loadPlayerOptions reads the YAML file at path (if any) and validates the
// merged result.
func loadPlayerOptions(path string) (playback.Options, error) {
	p, err := config.LoadPlayer(path)
	if err != nil {
		return playback.Options{}, err
	}
	o := playerOptions(p)
	if err := o.Validate(); err != nil {
		return playback.Options{}, err
	}
	return o, nil
}
