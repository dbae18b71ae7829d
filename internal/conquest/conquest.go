// Package conquest holds the territory game rules: who may capture a pub, how
// challenges advance, how scores are derived and how admins correct history.
// Persistence is reached only through the small store interfaces in store.go.
package conquest

import "time"

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Player struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	Nickname  string    `json:"nickname"`
	Version   int64     `json:"version"`
	JoinedAt  time.Time `json:"joinedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Ownership is the mutable part of a location. An empty TeamID means nobody
// controls the pub.
type Ownership struct {
	TeamID     string `json:"teamId,omitempty"`
	DrinkCount int64  `json:"drinkCount"`
	Locked     bool   `json:"locked"`
	LockedBy   string `json:"lockedBy,omitempty"`
}

type Location struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
	Ownership
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Capture is an immutable record of a successful claim. PlayerID is empty
// once the capturing player has been deleted.
type Capture struct {
	ID         string    `json:"id"`
	LocationID string    `json:"locationId"`
	TeamID     string    `json:"teamId"`
	PlayerID   string    `json:"playerId,omitempty"`
	DrinkCount int64     `json:"drinkCount"`
	Evidence   string    `json:"evidence"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ChallengeKind string

const (
	KindLocation ChallengeKind = "location"
	KindGlobal   ChallengeKind = "global"
)

func (k ChallengeKind) Valid() bool {
	return k == KindLocation || k == KindGlobal
}

type Challenge struct {
	ID          string        `json:"id"`
	Kind        ChallengeKind `json:"kind"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	LocationID  string        `json:"locationId,omitempty"`
	Completed   bool          `json:"completed"`
	CompletedBy string        `json:"completedBy,omitempty"`
	Version     int64         `json:"version"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type Step string

const (
	StepEntry  Step = "entry"
	StepResult Step = "result"
)

// Progress is the persisted state of one team on one location challenge.
type Progress struct {
	ChallengeID string         `json:"challengeId"`
	TeamID      string         `json:"teamId"`
	State       ChallengeState `json:"state"`
	Version     int64          `json:"version"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Key identifies a progress row in change notifications.
func (p Progress) Key() string {
	return p.ChallengeID + ":" + p.TeamID
}

type Attempt struct {
	ID          string    `json:"id"`
	ChallengeID string    `json:"challengeId"`
	TeamID      string    `json:"teamId"`
	PlayerID    string    `json:"playerId,omitempty"`
	Step        Step      `json:"step"`
	Success     *bool     `json:"success,omitempty"`
	Evidence    string    `json:"evidence,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Bonus struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"teamId"`
	ChallengeID string    `json:"challengeId"`
	PlayerID    string    `json:"playerId,omitempty"`
	Evidence    string    `json:"evidence"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AuditAction string

const (
	AuditCaptureUndone    AuditAction = "capture_undone"
	AuditLocationReset    AuditAction = "location_reset"
	AuditLocationReplayed AuditAction = "location_replayed"
	AuditOwnerChanged     AuditAction = "owner_changed"
	AuditDrinksSet        AuditAction = "drinks_set"
	AuditLockToggled      AuditAction = "lock_toggled"
	AuditChallengeDeleted AuditAction = "challenge_deleted"
	AuditChallengeReset   AuditAction = "challenge_reset"
	AuditBonusRevoked     AuditAction = "bonus_revoked"
	AuditGameToggled      AuditAction = "game_toggled"
	AuditPlayerMoved      AuditAction = "player_moved"
	AuditPlayerDeleted    AuditAction = "player_deleted"
)

type AuditEntry struct {
	ID          string         `json:"id"`
	Action      AuditAction    `json:"action"`
	Description string         `json:"description"`
	TeamID      string         `json:"teamId,omitempty"`
	PlayerID    string         `json:"playerId,omitempty"`
	LocationID  string         `json:"locationId,omitempty"`
	ChallengeID string         `json:"challengeId,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Game is the global on/off switch.
type Game struct {
	Active    bool      `json:"active"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}
