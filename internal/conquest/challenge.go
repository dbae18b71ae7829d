package conquest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type StepRequest struct {
	ChallengeID string
	TeamID      string
	PlayerID    string
	Step        Step
	Evidence    string
	// Outcome is the judged result of a StepResult submission.
	Outcome *bool
}

type StepOutcome struct {
	Challenge Challenge      `json:"challenge"`
	State     ChallengeState `json:"state"`
	Attempt   *Attempt       `json:"attempt,omitempty"`
	Bonus     *Bonus         `json:"bonus,omitempty"`
	Location  *Location      `json:"location,omitempty"`
}

// Challenges runs the two-step location protocol and the single-step global
// protocol. All serialization happens in the store through conditional
// writes on progress, completion and bonus uniqueness.
type Challenges struct {
	store    ChallengeStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewChallenges(store ChallengeStore, notifier Notifier, logger *slog.Logger) *Challenges {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Challenges{store: store, notifier: notifier, logger: logger, now: time.Now}
}

func (c *Challenges) SubmitStep(ctx context.Context, req StepRequest) (StepOutcome, error) {
	game, err := c.store.Game(ctx)
	if err != nil {
		return StepOutcome{}, fmt.Errorf("reading game: %w", err)
	}
	if !game.Active {
		return StepOutcome{}, ErrGameInactive
	}

	ch, err := c.store.Challenge(ctx, req.ChallengeID)
	if err != nil {
		return StepOutcome{}, err
	}
	player, err := c.store.Player(ctx, req.PlayerID)
	if err != nil {
		return StepOutcome{}, err
	}
	if player.TeamID != req.TeamID {
		return StepOutcome{}, ErrPlayerNotOnTeam
	}
	team, err := c.store.Team(ctx, req.TeamID)
	if err != nil {
		return StepOutcome{}, err
	}

	req.Evidence = strings.TrimSpace(req.Evidence)
	if ch.Kind == KindGlobal {
		return c.award(ctx, ch, team, player, req)
	}
	return c.advance(ctx, ch, team, player, req)
}

func (c *Challenges) award(ctx context.Context, ch Challenge, team Team, player Player, req StepRequest) (StepOutcome, error) {
	if req.Step != "" && req.Step != StepResult {
		return StepOutcome{}, fmt.Errorf("%w: global challenges take a single %q step", ErrInvalidStep, StepResult)
	}
	if req.Evidence == "" {
		return StepOutcome{}, ErrEvidenceRequired
	}

	bonus := Bonus{
		ID:          uuid.NewString(),
		TeamID:      team.ID,
		ChallengeID: ch.ID,
		PlayerID:    player.ID,
		Evidence:    req.Evidence,
		CreatedAt:   c.now().UTC(),
	}
	inserted, err := c.store.AwardBonus(ctx, bonus)
	if err != nil {
		return StepOutcome{}, fmt.Errorf("awarding bonus: %w", err)
	}
	if !inserted {
		_, err := StateAwarded.Award()
		return StepOutcome{}, err
	}
	state, _ := StateNotAwarded.Award()

	c.notifier.Notify(ctx, Notification{
		Kind:           NoticeBonusAwarded,
		Title:          fmt.Sprintf("%s completed %s", team.Name, ch.Title),
		Body:           "Bonus point awarded.",
		ExceptPlayerID: player.ID,
		TeamID:         team.ID,
		ChallengeID:    ch.ID,
		At:             bonus.CreatedAt,
	})

	return StepOutcome{Challenge: ch, State: state, Bonus: &bonus}, nil
}

func (c *Challenges) advance(ctx context.Context, ch Challenge, team Team, player Player, req StepRequest) (StepOutcome, error) {
	if req.Step != StepEntry && req.Step != StepResult {
		return StepOutcome{}, fmt.Errorf("%w: %q", ErrInvalidStep, req.Step)
	}
	if ch.Completed {
		return StepOutcome{}, ErrAlreadyCompleted
	}
	if req.Step == StepEntry && req.Evidence == "" {
		return StepOutcome{}, ErrEvidenceRequired
	}

	progress, err := c.store.Progress(ctx, ch.ID, team.ID)
	if err != nil {
		return StepOutcome{}, fmt.Errorf("reading progress: %w", err)
	}
	from := progress.State
	to, err := from.Transition(req.Step, req.Outcome)
	if err != nil {
		return StepOutcome{}, err
	}

	ok, err := c.store.AdvanceProgress(ctx, ch.ID, team.ID, from, to)
	if err != nil {
		return StepOutcome{}, fmt.Errorf("advancing progress: %w", err)
	}
	if !ok {
		return StepOutcome{}, ErrConflict
	}

	if to == StatePassed {
		consumed, won, err := c.store.ConsumeChallenge(ctx, ch.ID, team.ID)
		if err != nil || !won {
			c.revert(ctx, ch.ID, team.ID)
			if err != nil {
				return StepOutcome{}, fmt.Errorf("completing challenge: %w", err)
			}
			return StepOutcome{}, ErrAlreadyCompleted
		}
		ch = consumed
	}

	attempt := Attempt{
		ID:          uuid.NewString(),
		ChallengeID: ch.ID,
		TeamID:      team.ID,
		PlayerID:    player.ID,
		Step:        req.Step,
		Evidence:    req.Evidence,
		CreatedAt:   c.now().UTC(),
	}
	if req.Step == StepResult {
		success := to == StatePassed
		attempt.Success = &success
	}

	res := StepOutcome{Challenge: ch, State: to}
	if err := c.store.AppendAttempt(ctx, attempt); err != nil {
		if to == StatePassed && c.rollback(ctx, ch.ID, team.ID) {
			c.logger.Warn("result not recorded, completion rolled back",
				"challenge_id", ch.ID, "team_id", team.ID, "error", err)
			return StepOutcome{}, fmt.Errorf("recording result: %w", err)
		}
		c.logger.Error("challenge step committed without history",
			"challenge_id", ch.ID, "team_id", team.ID, "state", to, "error", err)
		return res, fmt.Errorf("%w: %v", ErrHistoryWriteFailed, err)
	}
	res.Attempt = &attempt

	if to != StatePassed {
		return res, nil
	}

	if ch.LocationID != "" {
		loc, err := c.store.LockLocation(ctx, ch.LocationID, team.ID)
		if err != nil {
			c.logger.Error("challenge completed but lock failed",
				"challenge_id", ch.ID, "location_id", ch.LocationID, "team_id", team.ID, "error", err)
			return res, fmt.Errorf("%w: %v", ErrLockFailed, err)
		}
		res.Location = &loc
	}

	c.notifier.Notify(ctx, Notification{
		Kind:           NoticeChallengePassed,
		Title:          fmt.Sprintf("%s passed %s", team.Name, ch.Title),
		Body:           "The location is now locked.",
		ExceptPlayerID: player.ID,
		TeamID:         team.ID,
		LocationID:     ch.LocationID,
		ChallengeID:    ch.ID,
		At:             attempt.CreatedAt,
	})

	return res, nil
}

// revert returns a team that lost the completion race to EntryPaid.
func (c *Challenges) revert(ctx context.Context, challengeID, teamID string) bool {
	ok, err := c.store.AdvanceProgress(ctx, challengeID, teamID, StatePassed, StateEntryPaid)
	if err != nil || !ok {
		c.logger.Error("reverting challenge progress",
			"challenge_id", challengeID, "team_id", teamID, "reverted", ok, "error", err)
		return false
	}
	return true
}

// rollback undoes a pass whose result could not be recorded, so the team
// can submit the result again. It reports whether both the completion and
// the progress were restored.
func (c *Challenges) rollback(ctx context.Context, challengeID, teamID string) bool {
	if _, err := c.store.ClearCompletion(ctx, challengeID); err != nil {
		c.logger.Error("rolling back challenge completion",
			"challenge_id", challengeID, "team_id", teamID, "error", err)
		return false
	}
	return c.revert(ctx, challengeID, teamID)
}
