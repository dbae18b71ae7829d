package conquest

import "errors"

// Precondition errors: the request was rejected before any state changed.
var (
	ErrGameInactive      = errors.New("game is not active")
	ErrEvidenceRequired  = errors.New("evidence is required")
	ErrOutcomeRequired   = errors.New("outcome is required")
	ErrInvalidStep       = errors.New("invalid challenge step")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTeamNotFound      = errors.New("team not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrPlayerNotOnTeam   = errors.New("player is not on this team")
	ErrLocationNotFound  = errors.New("location not found")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrCaptureNotFound   = errors.New("capture not found")
	ErrBonusNotFound     = errors.New("bonus not found")
	ErrEntryRequired     = errors.New("challenge entry must be paid first")
	ErrNameTaken         = errors.New("name already taken")
)

// Contention errors: routine outcomes of racing writers. Callers may re-read
// and retry.
var (
	ErrConflict         = errors.New("conflicting update, retry with fresh state")
	ErrLocationLocked   = errors.New("location is locked")
	ErrAlreadyCompleted = errors.New("challenge already completed")
	ErrEntryAlreadyPaid = errors.New("challenge entry already paid")
)

// Partial failures: the authoritative state change was kept but a follow-up
// write did not happen.
var (
	ErrHistoryWriteFailed = errors.New("state committed but history record was not written")
	ErrLockFailed         = errors.New("challenge completed but location lock was not applied")
)

type Class int

const (
	ClassInternal Class = iota
	ClassPrecondition
	ClassContention
	ClassPartial
)

var classes = map[error]Class{
	ErrGameInactive:       ClassPrecondition,
	ErrEvidenceRequired:   ClassPrecondition,
	ErrOutcomeRequired:    ClassPrecondition,
	ErrInvalidStep:        ClassPrecondition,
	ErrInvalidInput:       ClassPrecondition,
	ErrTeamNotFound:       ClassPrecondition,
	ErrPlayerNotFound:     ClassPrecondition,
	ErrPlayerNotOnTeam:    ClassPrecondition,
	ErrLocationNotFound:   ClassPrecondition,
	ErrChallengeNotFound:  ClassPrecondition,
	ErrCaptureNotFound:    ClassPrecondition,
	ErrBonusNotFound:      ClassPrecondition,
	ErrEntryRequired:      ClassPrecondition,
	ErrNameTaken:          ClassPrecondition,
	ErrConflict:           ClassContention,
	ErrLocationLocked:     ClassContention,
	ErrAlreadyCompleted:   ClassContention,
	ErrEntryAlreadyPaid:   ClassContention,
	ErrHistoryWriteFailed: ClassPartial,
	ErrLockFailed:         ClassPartial,
}

// ClassOf reports which part of the error taxonomy err belongs to.
func ClassOf(err error) Class {
	for sentinel, c := range classes {
		if errors.Is(err, sentinel) {
			return c
		}
	}
	return ClassInternal
}
