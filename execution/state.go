package execution

// State is the lifecycle position of a Unit. It only moves forward.
type State int32

const (
	StateCreated State = iota
	StateAcquiringStream
	StateProcessing
	// StateDelivered is terminal: a result was parsed and published.
	StateDelivered
	// StateFailed is terminal: the stream could not be acquired.
	StateFailed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAcquiringStream:
		return "acquiring_stream"
	case StateProcessing:
		return "processing"
	case StateDelivered:
		return "delivered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateFailed
}
