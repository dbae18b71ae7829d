package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/playperu/pubconquest/internal/conquest"
)

// Snapshot is the full view a client starts from before following the change
// stream. History lists are newest first and capped.
type Snapshot struct {
	TakenAt    time.Time             `json:"takenAt"`
	Game       conquest.Game         `json:"game"`
	Teams      []conquest.Team       `json:"teams"`
	Players    []conquest.Player     `json:"players"`
	Locations  []conquest.Location   `json:"locations"`
	Challenges []conquest.Challenge  `json:"challenges"`
	Progress   []conquest.Progress   `json:"progress"`
	Bonuses    []conquest.Bonus      `json:"bonuses"`
	Captures   []conquest.Capture    `json:"captures"`
	Attempts   []conquest.Attempt    `json:"attempts"`
	Audit      []conquest.AuditEntry `json:"audit,omitempty"`
	Scores     []conquest.TeamScore  `json:"scores"`
}

// SnapshotSource reads everything a snapshot contains.
type SnapshotSource interface {
	conquest.ScoreSource
	Game(ctx context.Context) (conquest.Game, error)
	Players(ctx context.Context) ([]conquest.Player, error)
	Challenges(ctx context.Context) ([]conquest.Challenge, error)
	ProgressAll(ctx context.Context) ([]conquest.Progress, error)
	RecentCaptures(ctx context.Context, limit int) ([]conquest.Capture, error)
	RecentAttempts(ctx context.Context, limit int) ([]conquest.Attempt, error)
	RecentAudit(ctx context.Context, limit int) ([]conquest.AuditEntry, error)
}

// BuildSnapshot reads a snapshot. TakenAt is stamped before the first read so
// any change committed during the reads is newer than the snapshot. The audit
// trail is only included when withAudit is set.
func BuildSnapshot(ctx context.Context, src SnapshotSource, limit int, withAudit bool) (Snapshot, error) {
	s := Snapshot{TakenAt: time.Now().UTC()}
	var err error
	if s.Game, err = src.Game(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("reading game: %w", err)
	}
	if s.Teams, err = src.Teams(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("reading teams: %w", err)
	}
	if s.Players, err = src.Players(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("reading players: %w", err)
	}
	if s.Locations, err = src.Locations(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("reading locations: %w", err)
	}
	if s.Challenges, err = src.Challenges(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("reading challenges: %w", err)
	}
	if s.Progress, err = src.ProgressAll(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("reading progress: %w", err)
	}
	if s.Bonuses, err = src.Bonuses(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("reading bonuses: %w", err)
	}
	if s.Captures, err = src.RecentCaptures(ctx, limit); err != nil {
		return Snapshot{}, fmt.Errorf("reading captures: %w", err)
	}
	if s.Attempts, err = src.RecentAttempts(ctx, limit); err != nil {
		return Snapshot{}, fmt.Errorf("reading attempts: %w", err)
	}
	if withAudit {
		if s.Audit, err = src.RecentAudit(ctx, limit); err != nil {
			return Snapshot{}, fmt.Errorf("reading audit: %w", err)
		}
	}
	s.Scores = conquest.Score(s.Teams, s.Locations, s.Bonuses)
	return s, nil
}

// Changes restates the snapshot as insert changes stamped with TakenAt.
func (s Snapshot) Changes() ([]Change, error) {
	var out []Change
	add := func(table Table, id string, version int64, record any) error {
		c, err := NewChange(table, OpInsert, id, version, record)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", table, id, err)
		}
		c.At = s.TakenAt
		out = append(out, c)
		return nil
	}

	if err := add(TableGame, "game", s.Game.Version, s.Game); err != nil {
		return nil, err
	}
	for _, v := range s.Teams {
		if err := add(TableTeams, v.ID, v.Version, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Players {
		if err := add(TablePlayers, v.ID, v.Version, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Locations {
		if err := add(TableLocations, v.ID, v.Version, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Challenges {
		if err := add(TableChallenges, v.ID, v.Version, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Progress {
		if err := add(TableProgress, v.Key(), v.Version, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Bonuses {
		if err := add(TableBonuses, v.ID, 0, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Captures {
		if err := add(TableCaptures, v.ID, 0, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Attempts {
		if err := add(TableAttempts, v.ID, 0, v); err != nil {
			return nil, err
		}
	}
	for _, v := range s.Audit {
		if err := add(TableAudit, v.ID, 0, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}
