// Package playback drives live HLS playback for a wall of cameras.
//
// A Registry owns one Session per camera. Each Session runs the
// Idle → Loading → Playing → Recovering → Failed state machine around a single
// adaptive-streaming Engine bound to one VideoSurface, with a Thumbnail poster
// shown until playback is confirmed.
//
// Nothing in this package is safe for concurrent use. All methods, engine
// callbacks and timer callbacks must run on one goroutine; see
// internal/platform/loop and internal/platform/clock.
package playback
