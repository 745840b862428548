package coordinator

// State is the progress of one connect request.
type State int

const (
	StateListening State = iota
	StateAccepted
	StateJoined
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "LISTENING"
	case StateAccepted:
		return "ACCEPTED"
	case StateJoined:
		return "JOINED"
	case StateRegistered:
		return "REGISTERED"
	default:
		return "UNKNOWN"
	}
}
