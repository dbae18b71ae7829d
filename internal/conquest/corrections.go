package conquest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Correction is the outcome of an admin mutation. AuditErr is set when the
// mutation succeeded but its audit entry could not be written.
type Correction struct {
	Location  *Location   `json:"location,omitempty"`
	Challenge *Challenge  `json:"challenge,omitempty"`
	Player    *Player     `json:"player,omitempty"`
	Game      *Game       `json:"game,omitempty"`
	Bonus     *Bonus      `json:"bonus,omitempty"`
	Capture   *Capture    `json:"capture,omitempty"`
	Audit     *AuditEntry `json:"audit,omitempty"`
	AuditErr  error       `json:"-"`
}

// Corrections applies admin overrides. Every method that changes state
// appends exactly one audit entry; overrides never go through the
// optimistic checks players are subject to.
type Corrections struct {
	store    CorrectionStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewCorrections(store CorrectionStore, notifier Notifier, logger *slog.Logger) *Corrections {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Corrections{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// UndoCapture deletes one capture. Only deleting the newest capture of a
// location moves ownership, back to the next newest record or to nobody at
// zero drinks. Deleting an older capture leaves ownership as it is; use
// ReplayLocation to rebuild it from the remaining history.
func (c *Corrections) UndoCapture(ctx context.Context, captureID, locationID string) (Correction, error) {
	loc, err := c.store.Location(ctx, locationID)
	if err != nil {
		return Correction{}, err
	}
	history, err := c.store.Captures(ctx, locationID)
	if err != nil {
		return Correction{}, fmt.Errorf("listing captures: %w", err)
	}

	pos := -1
	for i, h := range history {
		if h.ID == captureID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return Correction{}, ErrCaptureNotFound
	}
	undone := history[pos]

	// Ownership moves first so a failed restore leaves nothing changed.
	res := Correction{Location: &loc, Capture: &undone}
	wasLatest := pos == 0
	if wasLatest {
		next := latestOwnership(loc.Ownership, history[1:])
		updated, err := c.store.SetOwnership(ctx, loc.ID, next)
		if err != nil {
			return Correction{}, fmt.Errorf("restoring ownership: %w", err)
		}
		res.Location = &updated
	}

	if err := c.store.DeleteCapture(ctx, captureID); err != nil {
		err = fmt.Errorf("deleting capture: %w", err)
		if wasLatest {
			c.auditFailure(ctx, err, AuditEntry{
				Action:      AuditCaptureUndone,
				Description: fmt.Sprintf("Moved ownership of %s but could not delete the capture", loc.Name),
				TeamID:      undone.TeamID,
				PlayerID:    undone.PlayerID,
				LocationID:  loc.ID,
				Metadata: map[string]any{
					"captureId": undone.ID,
					"before":    loc.Ownership,
					"after":     res.Location.Ownership,
				},
			})
		}
		return Correction{}, err
	}

	c.audit(ctx, &res, AuditEntry{
		Action:      AuditCaptureUndone,
		Description: fmt.Sprintf("Undid capture of %s at %d drinks", loc.Name, undone.DrinkCount),
		TeamID:      undone.TeamID,
		PlayerID:    undone.PlayerID,
		LocationID:  loc.ID,
		Metadata: map[string]any{
			"captureId":  undone.ID,
			"wasLatest":  wasLatest,
			"before":     loc.Ownership,
			"after":      res.Location.Ownership,
			"drinkCount": undone.DrinkCount,
		},
	})
	return res, nil
}

// ReplayLocation rebuilds team and drink count by folding every surviving
// capture of the location in order. The lock is kept.
func (c *Corrections) ReplayLocation(ctx context.Context, locationID string) (Correction, error) {
	loc, err := c.store.Location(ctx, locationID)
	if err != nil {
		return Correction{}, err
	}
	history, err := c.store.Captures(ctx, locationID)
	if err != nil {
		return Correction{}, fmt.Errorf("listing captures: %w", err)
	}

	oldestFirst := make([]Capture, len(history))
	for i, h := range history {
		oldestFirst[len(history)-1-i] = h
	}
	base := loc.Ownership
	base.TeamID, base.DrinkCount = "", 0
	next := FoldOwnership(base, oldestFirst)

	updated, err := c.store.SetOwnership(ctx, loc.ID, next)
	if err != nil {
		return Correction{}, fmt.Errorf("replaying ownership: %w", err)
	}

	res := Correction{Location: &updated}
	c.audit(ctx, &res, AuditEntry{
		Action:      AuditLocationReplayed,
		Description: fmt.Sprintf("Replayed %d captures of %s", len(history), loc.Name),
		TeamID:      next.TeamID,
		LocationID:  loc.ID,
		Metadata: map[string]any{
			"captures": len(history),
			"before":   loc.Ownership,
			"after":    updated.Ownership,
		},
	})
	return res, nil
}

// ResetLocation clears ownership, drinks and the lock. Capture history is
// kept.
func (c *Corrections) ResetLocation(ctx context.Context, locationID string) (Correction, error) {
	return c.override(ctx, locationID, AuditLocationReset, func(loc Location) (Ownership, string, error) {
		return Ownership{}, fmt.Sprintf("Reset %s", loc.Name), nil
	})
}

// ChangeOwner hands the location to teamID. A locked location stays locked
// for its new owner. An empty teamID releases the location, lock included.
func (c *Corrections) ChangeOwner(ctx context.Context, locationID, teamID string) (Correction, error) {
	teamName := "nobody"
	if teamID != "" {
		team, err := c.store.Team(ctx, teamID)
		if err != nil {
			return Correction{}, err
		}
		teamName = team.Name
	}
	return c.override(ctx, locationID, AuditOwnerChanged, func(loc Location) (Ownership, string, error) {
		o := loc.Ownership
		o.TeamID = teamID
		switch {
		case teamID == "":
			o.Locked, o.LockedBy = false, ""
		case o.Locked:
			o.LockedBy = teamID
		}
		return o, fmt.Sprintf("Gave %s to %s", loc.Name, teamName), nil
	})
}

func (c *Corrections) SetDrinkCount(ctx context.Context, locationID string, count int64) (Correction, error) {
	if count < 0 {
		return Correction{}, fmt.Errorf("%w: drink count must not be negative", ErrInvalidInput)
	}
	return c.override(ctx, locationID, AuditDrinksSet, func(loc Location) (Ownership, string, error) {
		o := loc.Ownership
		o.DrinkCount = count
		return o, fmt.Sprintf("Set %s to %d drinks", loc.Name, count), nil
	})
}

// ToggleLock locks the location for its controlling team or unlocks it.
func (c *Corrections) ToggleLock(ctx context.Context, locationID string, locked bool) (Correction, error) {
	return c.override(ctx, locationID, AuditLockToggled, func(loc Location) (Ownership, string, error) {
		o := loc.Ownership
		o.Locked = locked
		o.LockedBy = ""
		verb := "Unlocked"
		if locked {
			o.LockedBy = o.TeamID
			verb = "Locked"
		}
		return o, fmt.Sprintf("%s %s", verb, loc.Name), nil
	})
}

func (c *Corrections) override(ctx context.Context, locationID string, action AuditAction, apply func(Location) (Ownership, string, error)) (Correction, error) {
	loc, err := c.store.Location(ctx, locationID)
	if err != nil {
		return Correction{}, err
	}
	next, desc, err := apply(loc)
	if err != nil {
		return Correction{}, err
	}
	updated, err := c.store.SetOwnership(ctx, loc.ID, next)
	if err != nil {
		return Correction{}, fmt.Errorf("overriding ownership: %w", err)
	}

	if loc.Locked && !updated.Locked {
		c.notifier.Notify(ctx, Notification{
			Kind:       NoticeLocationReleased,
			Title:      fmt.Sprintf("%s is open again", loc.Name),
			Body:       "An admin unlocked this location.",
			LocationID: loc.ID,
			At:         c.now().UTC(),
		})
	}

	res := Correction{Location: &updated}
	c.audit(ctx, &res, AuditEntry{
		Action:      action,
		Description: desc,
		TeamID:      updated.TeamID,
		LocationID:  loc.ID,
		Metadata: map[string]any{
			"before": loc.Ownership,
			"after":  updated.Ownership,
		},
	})
	return res, nil
}

// DeleteChallenge removes a challenge after its attempts, bonus awards and
// progress rows. A location the challenge locked stays locked.
func (c *Corrections) DeleteChallenge(ctx context.Context, challengeID string) (Correction, error) {
	ch, err := c.store.Challenge(ctx, challengeID)
	if err != nil {
		return Correction{}, err
	}

	entry := AuditEntry{
		Action:      AuditChallengeDeleted,
		Description: fmt.Sprintf("Deleted challenge %s", ch.Title),
		TeamID:      ch.CompletedBy,
		ChallengeID: ch.ID,
		LocationID:  ch.LocationID,
		Metadata: map[string]any{
			"title":     ch.Title,
			"kind":      ch.Kind,
			"completed": ch.Completed,
		},
	}

	attempts, err := c.store.DeleteAttempts(ctx, ch.ID)
	if err != nil {
		return Correction{}, fmt.Errorf("deleting attempts: %w", err)
	}
	entry.Metadata["attemptsDeleted"] = attempts

	bonuses, err := c.store.DeleteBonuses(ctx, ch.ID)
	if err != nil {
		return Correction{}, c.auditFailure(ctx, fmt.Errorf("deleting bonuses: %w", err), entry)
	}
	entry.Metadata["bonusesDeleted"] = bonuses

	progress, err := c.store.ClearProgress(ctx, ch.ID)
	if err != nil {
		return Correction{}, c.auditFailure(ctx, fmt.Errorf("clearing progress: %w", err), entry)
	}
	entry.Metadata["progressCleared"] = progress

	if err := c.store.DeleteChallenge(ctx, ch.ID); err != nil {
		return Correction{}, c.auditFailure(ctx, fmt.Errorf("deleting challenge: %w", err), entry)
	}

	res := Correction{Challenge: &ch}
	c.audit(ctx, &res, entry)
	return res, nil
}

// ResetChallenge clears completion, bonus awards and progress so the
// challenge can be played again. Attempts are kept as history.
func (c *Corrections) ResetChallenge(ctx context.Context, challengeID string) (Correction, error) {
	ch, err := c.store.Challenge(ctx, challengeID)
	if err != nil {
		return Correction{}, err
	}

	entry := AuditEntry{
		Action:      AuditChallengeReset,
		Description: fmt.Sprintf("Reset challenge %s", ch.Title),
		TeamID:      ch.CompletedBy,
		ChallengeID: ch.ID,
		LocationID:  ch.LocationID,
		Metadata: map[string]any{
			"wasCompleted": ch.Completed,
			"completedBy":  ch.CompletedBy,
		},
	}

	bonuses, err := c.store.DeleteBonuses(ctx, ch.ID)
	if err != nil {
		return Correction{}, fmt.Errorf("deleting bonuses: %w", err)
	}
	entry.Metadata["bonusesDeleted"] = bonuses

	progress, err := c.store.ResetProgress(ctx, ch.ID)
	if err != nil {
		return Correction{}, c.auditFailure(ctx, fmt.Errorf("resetting progress: %w", err), entry)
	}
	entry.Metadata["progressCleared"] = progress

	updated, err := c.store.ClearCompletion(ctx, ch.ID)
	if err != nil {
		return Correction{}, c.auditFailure(ctx, fmt.Errorf("clearing completion: %w", err), entry)
	}

	res := Correction{Challenge: &updated}
	c.audit(ctx, &res, entry)
	return res, nil
}

func (c *Corrections) RevokeBonus(ctx context.Context, bonusID string) (Correction, error) {
	b, err := c.store.Bonus(ctx, bonusID)
	if err != nil {
		return Correction{}, err
	}
	if err := c.store.DeleteBonus(ctx, b.ID); err != nil {
		return Correction{}, fmt.Errorf("deleting bonus: %w", err)
	}

	res := Correction{Bonus: &b}
	c.audit(ctx, &res, AuditEntry{
		Action:      AuditBonusRevoked,
		Description: "Revoked bonus award",
		TeamID:      b.TeamID,
		PlayerID:    b.PlayerID,
		ChallengeID: b.ChallengeID,
		Metadata: map[string]any{
			"bonusId":  b.ID,
			"evidence": b.Evidence,
		},
	})
	return res, nil
}

func (c *Corrections) SetGameActive(ctx context.Context, active bool) (Correction, error) {
	before, err := c.store.Game(ctx)
	if err != nil {
		return Correction{}, fmt.Errorf("reading game: %w", err)
	}
	game, err := c.store.SetGame(ctx, active)
	if err != nil {
		return Correction{}, fmt.Errorf("setting game: %w", err)
	}

	title := "The game is paused"
	if active {
		title = "The game is on"
	}
	c.notifier.Notify(ctx, Notification{Kind: NoticeGameToggled, Title: title, At: c.now().UTC()})

	res := Correction{Game: &game}
	c.audit(ctx, &res, AuditEntry{
		Action:      AuditGameToggled,
		Description: title,
		Metadata: map[string]any{
			"before": before.Active,
			"after":  game.Active,
		},
	})
	return res, nil
}

// ReassignPlayer moves a player to another team. Their past captures stay
// credited to the team they were made for.
func (c *Corrections) ReassignPlayer(ctx context.Context, playerID, teamID string) (Correction, error) {
	before, err := c.store.Player(ctx, playerID)
	if err != nil {
		return Correction{}, err
	}
	team, err := c.store.Team(ctx, teamID)
	if err != nil {
		return Correction{}, err
	}
	p, err := c.store.SetPlayerTeam(ctx, before.ID, team.ID)
	if err != nil {
		return Correction{}, fmt.Errorf("moving player: %w", err)
	}

	res := Correction{Player: &p}
	c.audit(ctx, &res, AuditEntry{
		Action:      AuditPlayerMoved,
		Description: fmt.Sprintf("Moved %s to %s", p.Nickname, team.Name),
		TeamID:      team.ID,
		PlayerID:    p.ID,
		Metadata: map[string]any{
			"fromTeamId": before.TeamID,
			"toTeamId":   team.ID,
		},
	})
	return res, nil
}

// DeletePlayer removes a player. History rows keep their facts with the
// player reference cleared.
func (c *Corrections) DeletePlayer(ctx context.Context, playerID string) (Correction, error) {
	p, err := c.store.Player(ctx, playerID)
	if err != nil {
		return Correction{}, err
	}
	if err := c.store.DeletePlayer(ctx, p.ID); err != nil {
		return Correction{}, fmt.Errorf("deleting player: %w", err)
	}

	res := Correction{Player: &p}
	c.audit(ctx, &res, AuditEntry{
		Action:      AuditPlayerDeleted,
		Description: fmt.Sprintf("Deleted player %s", p.Nickname),
		TeamID:      p.TeamID,
		Metadata: map[string]any{
			"playerId": p.ID,
			"nickname": p.Nickname,
		},
	})
	return res, nil
}

// audit appends e and records the outcome on res. Failures are logged and
// never fail the correction.
func (c *Corrections) audit(ctx context.Context, res *Correction, e AuditEntry) {
	e.ID = uuid.NewString()
	e.CreatedAt = c.now().UTC()
	if err := c.store.AppendAudit(ctx, e); err != nil {
		c.logger.Error("writing audit entry", "action", e.Action, "error", err)
		res.AuditErr = err
		return
	}
	res.Audit = &e
}

// auditFailure records a correction that stopped after some of its writes
// had committed, then returns err.
func (c *Corrections) auditFailure(ctx context.Context, err error, e AuditEntry) error {
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	e.Metadata["incomplete"] = true
	e.Metadata["error"] = err.Error()
	c.audit(ctx, &Correction{}, e)
	return err
}
