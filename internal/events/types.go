package events

import (
	"time"

	"camwall/internal/playback"
)

// Event type constants for kelindar/event.
const (
	TypeSession uint32 = iota + 1
	TypeCamerasSynced
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionEvent carries one playback lifecycle event.
type SessionEvent struct {
	playback.Event
}

// Type returns the event type identifier for SessionEvent.
func (e SessionEvent) Type() uint32 { return TypeSession }

// CamerasSyncedEvent is published after the camera list was reconciled.
type CamerasSyncedEvent struct {
	Cameras []string  `json:"cameras"`
	Added   []string  `json:"added,omitempty"`
	Removed []string  `json:"removed,omitempty"`
	At      time.Time `json:"at"`
}

// Type returns the event type identifier for CamerasSyncedEvent.
func (e CamerasSyncedEvent) Type() uint32 { return TypeCamerasSynced }
