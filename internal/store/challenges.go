package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/realtime"
)

const challengeColumns = `id, kind, title, description, location_id, is_completed,
	completed_by_team_id, version, created_at, updated_at`

func scanChallenge(row scanner) (conquest.Challenge, error) {
	var c conquest.Challenge
	var locationID, completedBy sql.NullString
	var completed int
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Kind, &c.Title, &c.Description, &locationID, &completed,
		&completedBy, &c.Version, &createdAt, &updatedAt)
	if err != nil {
		return c, err
	}
	c.LocationID = locationID.String
	c.Completed = completed == 1
	c.CompletedBy = completedBy.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

type NewChallenge struct {
	Kind        conquest.ChallengeKind
	Title       string
	Description string
	LocationID  string
}

func (s *Store) CreateChallenge(ctx context.Context, nc NewChallenge) (conquest.Challenge, error) {
	nc.Title = strings.TrimSpace(nc.Title)
	if nc.Title == "" {
		return conquest.Challenge{}, fmt.Errorf("%w: challenge title is required", conquest.ErrInvalidInput)
	}
	if !nc.Kind.Valid() {
		return conquest.Challenge{}, fmt.Errorf("%w: unknown challenge kind %q", conquest.ErrInvalidInput, nc.Kind)
	}
	if nc.Kind == conquest.KindGlobal && nc.LocationID != "" {
		return conquest.Challenge{}, fmt.Errorf("%w: global challenges have no location", conquest.ErrInvalidInput)
	}
	if nc.Kind == conquest.KindLocation && nc.LocationID == "" {
		return conquest.Challenge{}, fmt.Errorf("%w: location challenges need a location", conquest.ErrInvalidInput)
	}
	if nc.LocationID != "" {
		if _, err := s.Location(ctx, nc.LocationID); err != nil {
			return conquest.Challenge{}, err
		}
	}

	now := s.stamp()
	c, err := scanChallenge(s.db.QueryRowContext(ctx, `
		INSERT INTO challenges (id, kind, title, description, location_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+challengeColumns,
		uuid.NewString(), string(nc.Kind), nc.Title, nc.Description, nullable(nc.LocationID), now, now))
	if err != nil {
		return c, err
	}
	s.emit(realtime.TableChallenges, realtime.OpInsert, c.ID, c.Version, c)
	return c, nil
}

func (s *Store) Challenge(ctx context.Context, id string) (conquest.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return c, conquest.ErrChallengeNotFound
	}
	return c, err
}

func (s *Store) Challenges(ctx context.Context) ([]conquest.Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+challengeColumns+` FROM challenges ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	challenges := []conquest.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

// ConsumeChallenge marks the challenge completed by teamID. won is false when
// it was already completed.
func (s *Store) ConsumeChallenge(ctx context.Context, challengeID, teamID string) (conquest.Challenge, bool, error) {
	c, err := scanChallenge(s.db.QueryRowContext(ctx, `
		UPDATE challenges
		SET is_completed = 1, completed_by_team_id = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND is_completed = 0
		RETURNING `+challengeColumns,
		teamID, s.stamp(), challengeID))
	if errors.Is(err, sql.ErrNoRows) {
		return c, false, nil
	}
	if err != nil {
		return c, false, err
	}
	s.emit(realtime.TableChallenges, realtime.OpUpdate, c.ID, c.Version, c)
	return c, true, nil
}

func (s *Store) ClearCompletion(ctx context.Context, challengeID string) (conquest.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRowContext(ctx, `
		UPDATE challenges
		SET is_completed = 0, completed_by_team_id = NULL, version = version + 1, updated_at = ?
		WHERE id = ?
		RETURNING `+challengeColumns,
		s.stamp(), challengeID))
	if errors.Is(err, sql.ErrNoRows) {
		return c, conquest.ErrChallengeNotFound
	}
	if err != nil {
		return c, err
	}
	s.emit(realtime.TableChallenges, realtime.OpUpdate, c.ID, c.Version, c)
	return c, nil
}

func (s *Store) DeleteChallenge(ctx context.Context, id string) error {
	var deleted string
	err := s.db.QueryRowContext(ctx, `DELETE FROM challenges WHERE id = ? RETURNING id`, id).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return conquest.ErrChallengeNotFound
	}
	if err != nil {
		return err
	}
	s.emit(realtime.TableChallenges, realtime.OpDelete, deleted, 0, nil)
	return nil
}

const progressColumns = `challenge_id, team_id, state, version, updated_at`

func scanProgress(row scanner) (conquest.Progress, error) {
	var p conquest.Progress
	var updatedAt string
	if err := row.Scan(&p.ChallengeID, &p.TeamID, &p.State, &p.Version, &updatedAt); err != nil {
		return p, err
	}
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// Progress returns the team's state on a challenge. Teams that never
// submitted a step are NotStarted.
func (s *Store) Progress(ctx context.Context, challengeID, teamID string) (conquest.Progress, error) {
	p, err := scanProgress(s.db.QueryRowContext(ctx, `
		SELECT `+progressColumns+` FROM challenge_progress
		WHERE challenge_id = ? AND team_id = ?`,
		challengeID, teamID))
	if errors.Is(err, sql.ErrNoRows) {
		return conquest.Progress{ChallengeID: challengeID, TeamID: teamID, State: conquest.StateNotStarted}, nil
	}
	return p, err
}

func (s *Store) ProgressAll(ctx context.Context) ([]conquest.Progress, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+progressColumns+` FROM challenge_progress ORDER BY updated_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all := []conquest.Progress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, p)
	}
	return all, rows.Err()
}

// AdvanceProgress moves a team from one state to another if it is still in
// from. Moving out of NotStarted creates the row, or revives a row that
// ResetProgress returned to NotStarted; versions keep counting up either way.
func (s *Store) AdvanceProgress(ctx context.Context, challengeID, teamID string, from, to conquest.ChallengeState) (bool, error) {
	var row *sql.Row
	if from == conquest.StateNotStarted {
		row = s.db.QueryRowContext(ctx, `
			INSERT INTO challenge_progress (challenge_id, team_id, state, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (challenge_id, team_id) DO UPDATE
			SET state = excluded.state,
				version = challenge_progress.version + 1,
				updated_at = excluded.updated_at
			WHERE challenge_progress.state = ?
			RETURNING `+progressColumns,
			challengeID, teamID, string(to), s.stamp(), string(conquest.StateNotStarted))
	} else {
		row = s.db.QueryRowContext(ctx, `
			UPDATE challenge_progress
			SET state = ?, version = version + 1, updated_at = ?
			WHERE challenge_id = ? AND team_id = ? AND state = ?
			RETURNING `+progressColumns,
			string(to), s.stamp(), challengeID, teamID, string(from))
	}

	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	op := realtime.OpUpdate
	if p.Version == 1 {
		op = realtime.OpInsert
	}
	s.emit(realtime.TableProgress, op, p.Key(), p.Version, p)
	return true, nil
}

// ResetProgress returns every team's progress on a challenge to NotStarted.
// Rows are kept so their versions stay monotonic for listeners.
func (s *Store) ResetProgress(ctx context.Context, challengeID string) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE challenge_progress
		SET state = ?, version = version + 1, updated_at = ?
		WHERE challenge_id = ? AND state != ?
		RETURNING `+progressColumns,
		string(conquest.StateNotStarted), s.stamp(), challengeID, string(conquest.StateNotStarted))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var reset []conquest.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return 0, err
		}
		reset = append(reset, p)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	for _, p := range reset {
		s.emit(realtime.TableProgress, realtime.OpUpdate, p.Key(), p.Version, p)
	}
	return len(reset), nil
}

// ClearProgress deletes every team's progress on a challenge. It is only
// used when the challenge itself goes away.
func (s *Store) ClearProgress(ctx context.Context, challengeID string) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM challenge_progress WHERE challenge_id = ?
		RETURNING challenge_id || ':' || team_id`,
		challengeID)
	if err != nil {
		return 0, err
	}
	keys, err := collectIDs(rows)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		s.emit(realtime.TableProgress, realtime.OpDelete, k, 0, nil)
	}
	return len(keys), nil
}
