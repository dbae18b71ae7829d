package conquest

import "fmt"

// ChallengeState is the per (challenge, team) position in a challenge
// protocol. Location challenges move NotStarted -> EntryPaid -> Passed|Failed
// and may re-enter EntryPaid from Failed. Global challenges only know
// NotAwarded -> Awarded.
type ChallengeState string

const (
	StateNotStarted ChallengeState = "not_started"
	StateEntryPaid  ChallengeState = "entry_paid"
	StatePassed     ChallengeState = "passed"
	StateFailed     ChallengeState = "failed"

	StateNotAwarded ChallengeState = "not_awarded"
	StateAwarded    ChallengeState = "awarded"
)

// Terminal reports whether no further step is accepted.
func (s ChallengeState) Terminal() bool {
	return s == StatePassed || s == StateAwarded
}

// Transition returns the location-challenge state reached by submitting step
// from s. outcome is only consulted for StepResult.
func (s ChallengeState) Transition(step Step, outcome *bool) (ChallengeState, error) {
	if step != StepEntry && step != StepResult {
		return s, fmt.Errorf("%w: %q", ErrInvalidStep, step)
	}

	switch s {
	case StateNotStarted, StateFailed:
		if step == StepResult {
			return s, ErrEntryRequired
		}
		return StateEntryPaid, nil

	case StateEntryPaid:
		if step == StepEntry {
			return s, ErrEntryAlreadyPaid
		}
		if outcome == nil {
			return s, ErrOutcomeRequired
		}
		if *outcome {
			return StatePassed, nil
		}
		return StateFailed, nil

	case StatePassed:
		return s, ErrAlreadyCompleted
	}

	return s, fmt.Errorf("%w: unknown state %q", ErrInvalidStep, s)
}

// Award returns the global-challenge state reached by completing it from s.
func (s ChallengeState) Award() (ChallengeState, error) {
	switch s {
	case StateNotAwarded:
		return StateAwarded, nil
	case StateAwarded:
		return s, ErrAlreadyCompleted
	}
	return s, fmt.Errorf("%w: unknown state %q", ErrInvalidStep, s)
}
