package tremotesf

// ConnectionState is the orchestrator's top-level state machine position, per
// spec.md §4.4.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// Status is the externally observable connection status (spec.md §3). Error
// is only meaningful while State == Disconnected; a successful reconnect
// always clears it back to NoError.
type Status struct {
	State                ConnectionState
	Error                ErrorKind
	ErrorMessage         string
	DetailedErrorMessage string
}

func (s Status) IsConnected() bool {
	return s.State == Connected
}
