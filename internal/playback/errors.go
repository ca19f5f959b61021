package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCamera is returned for camera ids the Registry does not hold.
	ErrUnknownCamera = errors.New("unknown camera")
	// ErrUnsupported means no adaptive engine is available. Never retried.
	ErrUnsupported = errors.New("adaptive streaming not supported")
	// ErrStreamTimeout means Loading did not reach Playing before the deadline.
	ErrStreamTimeout = errors.New("stream timeout")
	// ErrStalled means the playhead stopped advancing while Playing.
	ErrStalled = errors.New("playback stalled")
)

// ErrorKind classifies engine errors.
type ErrorKind int

const (
	// ErrorNetwork covers manifest, playlist and segment fetch failures.
	ErrorNetwork ErrorKind = iota
	// ErrorMedia covers demux and decode failures.
	ErrorMedia
	// ErrorOther covers everything else, e.g. unparseable manifests.
	ErrorOther
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNetwork:
		return "network"
	case ErrorMedia:
		return "media"
	default:
		return "other"
	}
}

// EngineError is reported by an Engine. Fatal errors stop the engine until
// it is told to recover or is destroyed.
type EngineError struct {
	Kind  ErrorKind
	Fatal bool
	Err   error
}

func (e EngineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error", e.Kind)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e EngineError) Unwrap() error { return e.Err }
