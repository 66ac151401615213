package resource

import "fmt"

// Status is the lifecycle state of one resource instance.
type Status int

const (
	// StatusAbsent means the resource does not exist.
	StatusAbsent Status = iota
	// StatusPresent means the resource was created and is tracked.
	StatusPresent
	// StatusDeleted is the terminal state after an explicit delete.
	StatusDeleted
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusPresent:
		return "present"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "absent":
		*s = StatusAbsent
	case "present":
		*s = StatusPresent
	case "deleted":
		*s = StatusDeleted
	default:
		return fmt.Errorf("unknown status %q", string(b))
	}
	return nil
}

// Op is a lifecycle operation that can change a status.
type Op int

// Lifecycle operations.
const (
	OpCreate Op = iota
	OpDelete
)

// Transition returns the status after op completes on a resource in from.
// Failed operations leave the status unchanged. Deleted behaves like absent.
func Transition(from Status, op Op, succeeded bool) Status {
	if !succeeded {
		return from
	}
	switch op {
	case OpCreate:
		if from != StatusPresent {
			return StatusPresent
		}
	case OpDelete:
		if from == StatusPresent {
			return StatusDeleted
		}
	}
	return from
}
