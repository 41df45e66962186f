package ledger

import "fmt"

// Status is the lifecycle state of a transaction row.
//
//	completed → reversed
//
// failed and reversed are terminal.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusReversed  Status = "reversed"
)

var allowedTransitions = map[Status][]Status{
	StatusCompleted: {StatusReversed},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusReversed:
		return true
	}
	return false
}

// Transition validates moving from s to next.
func (s Status) Transition(next Status) error {
	switch s {
	case StatusReversed:
		return ErrAlreadyReversed
	case StatusFailed:
		return ErrNotReversible
	}
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return nil
		}
	}
	return newError(KindInvalidInput, fmt.Sprintf("transition %s -> %s is not allowed", s, next), nil)
}
