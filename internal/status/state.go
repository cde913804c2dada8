// internal/status/state.go
package status

// State is the connection lifecycle of one gateway poller.
//
//	Idle -> Connecting -> Connected -> Polling -> (Connected | Disconnected) -> Idle
type State uint16

const (
	Idle State = iota
	Connecting
	Connected
	Polling
	Disconnected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Polling:
		return "polling"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

// Online reports whether a connection is currently held.
func (s State) Online() bool {
	return s == Connected || s == Polling
}
