package session

// RoomState is the session's tagged state (spec §4.5/§9: "model session
// state as a tagged variant... rather than a bag of booleans; forbids
// illegal combinations like connecting and in-game"). Go has no sum
// types, so this is the nearest idiomatic approximation: a single enum
// field plus the per-state data the session struct already carries,
// with invariants enforced by the methods that drive transitions
// rather than by the type system.
type RoomState int

const (
	StateIdle RoomState = iota
	StateConnecting
	StateLobby
	StateReadyCheck
	StateCountingDown
	StateRacing
	StateFinished
)

func (s RoomState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateLobby:
		return "lobby"
	case StateReadyCheck:
		return "ready-check"
	case StateCountingDown:
		return "counting-down"
	case StateRacing:
		return "racing"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}
