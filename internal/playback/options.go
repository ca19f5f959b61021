package playback

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidOptions is wrapped by Options.Validate failures.
var ErrInvalidOptions = errors.New("invalid playback options")

// Options tunes timeouts, retry policy and buffer-driven quality adaptation.
type Options struct {
	// StreamTimeout is the Loading deadline.
	StreamTimeout time.Duration
	// MaxRetries is the number of autonomous reloads before a session fails.
	MaxRetries int
	// BaseRetryDelay is doubled per attempt and capped at MaxRetryDelay.
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	// InPlaceRetries bounds engine-level recoveries per engine instance.
	InPlaceRetries int

	HealthCheckInterval time.Duration
	BufferLowWater      float64 // seconds
	BufferHighWater     float64 // seconds
	// StallSamples is the number of consecutive health samples without
	// playhead progress that count as a stall. Zero disables stall detection.
	StallSamples int

	ConfirmGrace        time.Duration
	ConfirmPollInterval time.Duration
	MinDecodedFrames    int

	ThumbnailRefreshInterval time.Duration
	ThumbnailRetryDelay      time.Duration
}

// DefaultOptions returns the canonical playback policy.
func DefaultOptions() Options {
	return Options{
		StreamTimeout:            12 * time.Second,
		MaxRetries:               6,
		BaseRetryDelay:           time.Second,
		MaxRetryDelay:            30 * time.Second,
		InPlaceRetries:           2,
		HealthCheckInterval:      5 * time.Second,
		BufferLowWater:           3,
		BufferHighWater:          10,
		StallSamples:             2,
		ConfirmGrace:             3 * time.Second,
		ConfirmPollInterval:      250 * time.Millisecond,
		MinDecodedFrames:         2,
		ThumbnailRefreshInterval: 2 * time.Minute,
		ThumbnailRetryDelay:      3 * time.Second,
	}
}

// Validate reports the first inconsistent setting.
func (o Options) Validate() error {
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"stream timeout", o.StreamTimeout},
		{"base retry delay", o.BaseRetryDelay},
		{"max retry delay", o.MaxRetryDelay},
		{"health check interval", o.HealthCheckInterval},
		{"confirm grace", o.ConfirmGrace},
		{"confirm poll interval", o.ConfirmPollInterval},
		{"thumbnail refresh interval", o.ThumbnailRefreshInterval},
		{"thumbnail retry delay", o.ThumbnailRetryDelay},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidOptions, d.name, d.d)
		}
	}
	if o.MaxRetryDelay < o.BaseRetryDelay {
		return fmt.Errorf("%w: max retry delay %s below base %s", ErrInvalidOptions, o.MaxRetryDelay, o.BaseRetryDelay)
	}
	if o.MaxRetries < 0 || o.InPlaceRetries < 0 || o.StallSamples < 0 || o.MinDecodedFrames < 0 {
		return fmt.Errorf("%w: retry, stall and frame counts must not be negative", ErrInvalidOptions)
	}
	if o.BufferLowWater < 0 || o.BufferHighWater <= o.BufferLowWater {
		return fmt.Errorf("%w: buffer water marks must satisfy 0 <= low (%.1f) < high (%.1f)",
			ErrInvalidOptions, o.BufferLowWater, o.BufferHighWater)
	}
	return nil
}

// RetryDelay returns the backoff before reload number attempt (1-based):
// BaseRetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func (o Options) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := o.BaseRetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= o.MaxRetryDelay {
			return o.MaxRetryDelay
		}
	}
	if d > o.MaxRetryDelay {
		return o.MaxRetryDelay
	}
	return d
}
