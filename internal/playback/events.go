package playback

import "time"

// EventKind names a session lifecycle event.
type EventKind string

const (
	EventIdle         EventKind = "idle"
	EventLoading      EventKind = "loading"
	EventPlaying      EventKind = "playing"
	EventRevealed     EventKind = "revealed"
	EventRecovering   EventKind = "recovering"
	EventFailed       EventKind = "failed"
	EventLevelChanged EventKind = "level_changed"
)

// Event describes one observable session transition. Fields beyond the
// identity block are set only for the kinds noted.
type Event struct {
	Kind      EventKind `json:"kind"`
	CameraID  string    `json:"camera_id"`
	SessionID string    `json:"session_id"`
	State     State     `json:"state"`
	At        time.Time `json:"at"`

	// recovering
	Attempt int           `json:"attempt,omitempty"`
	RetryIn time.Duration `json:"retry_in,omitempty"`
	// recovering, failed, idle
	Reason string `json:"reason,omitempty"`
	// failed
	TotalAttempts int  `json:"total_attempts,omitempty"`
	Unsupported   bool `json:"unsupported,omitempty"`
	// playing
	Startup time.Duration `json:"startup,omitempty"`
	// revealed
	Forced bool `json:"forced,omitempty"`
	// level_changed
	FromLevel    int     `json:"from_level,omitempty"`
	ToLevel      int     `json:"to_level,omitempty"`
	BufferHealth float64 `json:"buffer_health,omitempty"`
}

// Observer receives events synchronously on the session goroutine. Observers
// must not call back into the Registry.
type Observer func(Event)
