package playback

// State is the lifecycle state of a Session.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StatePlaying    State = "playing"
	StateRecovering State = "recovering"
	StateFailed     State = "failed"
)

// States lists every State in lifecycle order.
func States() []State {
	return []State{StateIdle, StateLoading, StatePlaying, StateRecovering, StateFailed}
}
