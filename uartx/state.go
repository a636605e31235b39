package uartx

// State is the lifecycle position of one engine direction.
// Completed and Errored exist only inside the critical section that retires
// a transfer, so they are never observed from outside.
type State uint8

const (
	StateIdle       State = iota // no transfer; Write/Read accepted
	StateArmed                   // transfer accepted, no hardware event yet
	StateInProgress              // at least one hardware event consumed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateInProgress:
		return "in-progress"
	default:
		return "unknown"
	}
}
