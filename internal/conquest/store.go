package conquest

import "context"

// The interfaces below are the persistence boundary. Implementations must
// return the package's not-found sentinels for missing rows and must report
// conditional writes that matched no row as (false, nil), never as an error.

type GameReader interface {
	Game(ctx context.Context) (Game, error)
}

type RosterReader interface {
	Team(ctx context.Context, id string) (Team, error)
	Player(ctx context.Context, id string) (Player, error)
}

// OwnershipSwap describes a conditional ownership write: it applies only if
// the location still has FromCount drinks, FromVersion and is unlocked.
type OwnershipSwap struct {
	LocationID  string
	TeamID      string
	FromCount   int64
	FromVersion int64
	ToCount     int64
}

type CaptureStore interface {
	GameReader
	RosterReader
	Location(ctx context.Context, id string) (Location, error)
	SwapOwnership(ctx context.Context, swap OwnershipSwap) (Location, bool, error)
	AppendCapture(ctx context.Context, c Capture) error
}

type ChallengeStore interface {
	GameReader
	RosterReader
	Challenge(ctx context.Context, id string) (Challenge, error)
	Progress(ctx context.Context, challengeID, teamID string) (Progress, error)
	AdvanceProgress(ctx context.Context, challengeID, teamID string, from, to ChallengeState) (bool, error)
	ConsumeChallenge(ctx context.Context, challengeID, teamID string) (Challenge, bool, error)
	ClearCompletion(ctx context.Context, challengeID string) (Challenge, error)
	AppendAttempt(ctx context.Context, a Attempt) error
	AwardBonus(ctx context.Context, b Bonus) (bool, error)
	LockLocation(ctx context.Context, locationID, teamID string) (Location, error)
}

type CorrectionStore interface {
	GameReader
	RosterReader
	SetGame(ctx context.Context, active bool) (Game, error)

	Location(ctx context.Context, id string) (Location, error)
	SetOwnership(ctx context.Context, locationID string, o Ownership) (Location, error)
	Captures(ctx context.Context, locationID string) ([]Capture, error)
	DeleteCapture(ctx context.Context, id string) error

	Challenge(ctx context.Context, id string) (Challenge, error)
	ClearCompletion(ctx context.Context, challengeID string) (Challenge, error)
	DeleteChallenge(ctx context.Context, id string) error
	DeleteAttempts(ctx context.Context, challengeID string) (int, error)
	DeleteBonuses(ctx context.Context, challengeID string) (int, error)
	ClearProgress(ctx context.Context, challengeID string) (int, error)
	ResetProgress(ctx context.Context, challengeID string) (int, error)

	Bonus(ctx context.Context, id string) (Bonus, error)
	DeleteBonus(ctx context.Context, id string) error

	SetPlayerTeam(ctx context.Context, playerID, teamID string) (Player, error)
	DeletePlayer(ctx context.Context, id string) error

	AppendAudit(ctx context.Context, e AuditEntry) error
}

type ScoreSource interface {
	Teams(ctx context.Context) ([]Team, error)
	Locations(ctx context.Context) ([]Location, error)
	Bonuses(ctx context.Context) ([]Bonus, error)
}
