package transfer

// Direction tells which of the two sequences a State belongs to.
type Direction int

const (
	DirectionUpload Direction = iota
	DirectionDownload
)

func (d Direction) String() string {
	if d == DirectionDownload {
		return "download"
	}
	return "upload"
}

// State is a step in an upload or download sequence.
//
// Upload:   Idle -> Starting -> Sending -> Finalizing -> Done | Failed
// Download: Idle -> Starting -> Receiving -> Verifying -> Done | Failed
type State int

const (
	StateIdle State = iota
	StateStarting
	StateSending
	StateFinalizing
	StateReceiving
	StateVerifying
	StateDone
	StateFailed
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateSending:
		return "sending"
	case StateFinalizing:
		return "finalizing"
	case StateReceiving:
		return "receiving"
	case StateVerifying:
		return "verifying"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the sequence has finished, successfully or not.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransitionTo checks if a state transition is valid for the given
// direction. Any non-terminal state may fail.
func (s State) CanTransitionTo(dir Direction, next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}

	switch s {
	case StateIdle:
		return next == StateStarting
	case StateStarting:
		if dir == DirectionUpload {
			return next == StateSending
		}
		return next == StateReceiving
	case StateSending:
		return next == StateSending || next == StateFinalizing
	case StateFinalizing:
		return next == StateDone
	case StateReceiving:
		return next == StateReceiving || next == StateVerifying
	case StateVerifying:
		return next == StateDone
	default:
		return false
	}
}
