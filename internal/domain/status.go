package domain

// Status is the lifecycle state of a scan record.
//
// pending is set at admission, running is entered exactly once by the
// orchestrator, completed and failed are terminal. A job that exhausts its
// retry budget before the orchestrator ever marked the scan running moves
// the record straight from pending to failed. cancelled is reserved in the
// type; no code path currently produces it.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. Terminal states admit nothing.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s Status) String() string { return string(s) }
