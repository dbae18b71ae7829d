package conquest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CaptureRequest struct {
	LocationID string
	TeamID     string
	PlayerID   string
	Evidence   string
}

type CaptureResult struct {
	Location Location  `json:"location"`
	Capture  Capture   `json:"capture"`
	Previous Ownership `json:"previous"`
}

// Resolver decides who owns a location. It performs exactly one conditional
// write per attempt and never retries: a lost race is reported as ErrConflict.
type Resolver struct {
	store    CaptureStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewResolver(store CaptureStore, notifier Notifier, logger *slog.Logger) *Resolver {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Resolver{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// AttemptCapture claims a location for a team, raising its drink count by one.
//
// When the ownership write commits but the capture record cannot be appended,
// the populated result is returned together with ErrHistoryWriteFailed.
func (r *Resolver) AttemptCapture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	game, err := r.store.Game(ctx)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("reading game: %w", err)
	}
	if !game.Active {
		return CaptureResult{}, ErrGameInactive
	}

	req.Evidence = strings.TrimSpace(req.Evidence)
	if req.Evidence == "" {
		return CaptureResult{}, ErrEvidenceRequired
	}

	player, err := r.store.Player(ctx, req.PlayerID)
	if err != nil {
		return CaptureResult{}, err
	}
	if player.TeamID != req.TeamID {
		return CaptureResult{}, ErrPlayerNotOnTeam
	}
	team, err := r.store.Team(ctx, req.TeamID)
	if err != nil {
		return CaptureResult{}, err
	}

	loc, err := r.store.Location(ctx, req.LocationID)
	if err != nil {
		return CaptureResult{}, err
	}
	if loc.Locked {
		return CaptureResult{}, ErrLocationLocked
	}

	next := loc.DrinkCount + 1
	updated, ok, err := r.store.SwapOwnership(ctx, OwnershipSwap{
		LocationID:  loc.ID,
		TeamID:      team.ID,
		FromCount:   loc.DrinkCount,
		FromVersion: loc.Version,
		ToCount:     next,
	})
	if err != nil {
		return CaptureResult{}, fmt.Errorf("swapping ownership: %w", err)
	}
	if !ok {
		return CaptureResult{}, r.lostRace(ctx, loc.ID)
	}

	res := CaptureResult{
		Location: updated,
		Previous: loc.Ownership,
		Capture: Capture{
			ID:         uuid.NewString(),
			LocationID: loc.ID,
			TeamID:     team.ID,
			PlayerID:   player.ID,
			DrinkCount: next,
			Evidence:   req.Evidence,
			CreatedAt:  r.now().UTC(),
		},
	}

	if err := r.store.AppendCapture(ctx, res.Capture); err != nil {
		r.logger.Error("capture committed without history",
			"location_id", loc.ID, "team_id", team.ID, "drink_count", next, "error", err)
		return res, fmt.Errorf("%w: %v", ErrHistoryWriteFailed, err)
	}

	r.notifier.Notify(ctx, Notification{
		Kind:           NoticeCapture,
		Title:          fmt.Sprintf("%s captured %s", team.Name, loc.Name),
		Body:           fmt.Sprintf("%s is now at %d drinks.", loc.Name, next),
		ExceptPlayerID: player.ID,
		TeamID:         team.ID,
		LocationID:     loc.ID,
		At:             res.Capture.CreatedAt,
	})

	return res, nil
}

// lostRace classifies a conditional write that matched no row.
func (r *Resolver) lostRace(ctx context.Context, locationID string) error {
	fresh, err := r.store.Location(ctx, locationID)
	if errors.Is(err, ErrLocationNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: re-read failed: %v", ErrConflict, err)
	}
	if fresh.Locked {
		return ErrLocationLocked
	}
	return ErrConflict
}
