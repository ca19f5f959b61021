package hls

import "time"

// Options tunes the engine's loader and fetcher.
type Options struct {
	// LiveEdgeSegments is how far behind the newest segment playback starts.
	LiveEdgeSegments int
	// SegmentRetries is the number of consecutive segment failures tolerated
	// before a fatal network error is reported.
	SegmentRetries int
	// MinPollInterval bounds how often media playlists are refreshed.
	MinPollInterval time.Duration
	// FrameRate converts played seconds into decoded frames on a Surface.
	FrameRate float64

	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// DefaultOptions returns loader settings suited to 1-4s live segments.
func DefaultOptions() Options {
	return Options{
		LiveEdgeSegments: 3,
		SegmentRetries:   3,
		MinPollInterval:  500 * time.Millisecond,
		FrameRate:        25,
		RetryMax:         2,
		RetryWaitMin:     500 * time.Millisecond,
		RetryWaitMax:     2 * time.Second,
		Timeout:          10 * time.Second,
	}
}
