// Package playback simulates a stateful media player on top of an external
// command-line player that offers no runtime controls.
package playback

// State represents the playback state.
type State int

const (
	StateStopped  State = iota // No player process
	StateStarting              // Player launched, completion checks still debounced
	StatePlaying               // Player running
	StatePaused                // Player suspended
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
