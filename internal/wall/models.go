package wall

import (
	"time"

	"camwall/internal/playback"
)

// SessionView is what the HTTP API reports for one camera.
type SessionView struct {
	playback.Info
	Message     string  `json:"message,omitempty"`
	Position    float64 `json:"position"`
	BufferedEnd float64 `json:"buffered_end"`
	HasPoster   bool    `json:"has_poster"`
}

// Health summarizes the service for /healthz.
type Health struct {
	Status        string     `json:"status"` // ok, degraded or unavailable
	Cameras       int        `json:"cameras"`
	LastSync      *time.Time `json:"last_sync,omitempty"`
	LastSyncError string     `json:"last_sync_error,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// wsMessage is one frame on the /events feed.
type wsMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}
