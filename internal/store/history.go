package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/realtime"
)

const captureColumns = `id, location_id, team_id, player_id, drink_count, evidence, created_at`

func scanCapture(row scanner) (conquest.Capture, error) {
	var c conquest.Capture
	var playerID sql.NullString
	var createdAt string
	if err := row.Scan(&c.ID, &c.LocationID, &c.TeamID, &playerID, &c.DrinkCount, &c.Evidence, &createdAt); err != nil {
		return c, err
	}
	c.PlayerID = playerID.String
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

func (s *Store) AppendCapture(ctx context.Context, c conquest.Capture) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO captures (id, location_id, team_id, player_id, drink_count, evidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.LocationID, c.TeamID, nullable(c.PlayerID), c.DrinkCount, c.Evidence, formatTime(c.CreatedAt))
	if err != nil {
		return err
	}
	s.emit(realtime.TableCaptures, realtime.OpInsert, c.ID, 0, c)
	return nil
}

// Captures lists the captures of one location, newest first.
func (s *Store) Captures(ctx context.Context, locationID string) ([]conquest.Capture, error) {
	return s.listCaptures(ctx, `
		SELECT `+captureColumns+` FROM captures
		WHERE location_id = ?
		ORDER BY created_at DESC, drink_count DESC, id DESC`, locationID)
}

// RecentCaptures lists the newest captures across all locations.
func (s *Store) RecentCaptures(ctx context.Context, limit int) ([]conquest.Capture, error) {
	return s.listCaptures(ctx, `
		SELECT `+captureColumns+` FROM captures
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
}

func (s *Store) listCaptures(ctx context.Context, query string, args ...any) ([]conquest.Capture, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	captures := []conquest.Capture{}
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}

func (s *Store) DeleteCapture(ctx context.Context, id string) error {
	var deleted string
	err := s.db.QueryRowContext(ctx, `DELETE FROM captures WHERE id = ? RETURNING id`, id).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return conquest.ErrCaptureNotFound
	}
	if err != nil {
		return err
	}
	s.emit(realtime.TableCaptures, realtime.OpDelete, deleted, 0, nil)
	return nil
}

const attemptColumns = `id, challenge_id, team_id, player_id, step, success, evidence, created_at`

func scanAttempt(row scanner) (conquest.Attempt, error) {
	var a conquest.Attempt
	var playerID sql.NullString
	var success sql.NullInt64
	var createdAt string
	if err := row.Scan(&a.ID, &a.ChallengeID, &a.TeamID, &playerID, &a.Step, &success, &a.Evidence, &createdAt); err != nil {
		return a, err
	}
	a.PlayerID = playerID.String
	if success.Valid {
		ok := success.Int64 == 1
		a.Success = &ok
	}
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

func (s *Store) AppendAttempt(ctx context.Context, a conquest.Attempt) error {
	var success any
	if a.Success != nil {
		success = boolInt(*a.Success)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO challenge_attempts (id, challenge_id, team_id, player_id, step, success, evidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ChallengeID, a.TeamID, nullable(a.PlayerID), string(a.Step), success, a.Evidence, formatTime(a.CreatedAt))
	if err != nil {
		return err
	}
	s.emit(realtime.TableAttempts, realtime.OpInsert, a.ID, 0, a)
	return nil
}

func (s *Store) RecentAttempts(ctx context.Context, limit int) ([]conquest.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+attemptColumns+` FROM challenge_attempts
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []conquest.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (s *Store) DeleteAttempts(ctx context.Context, challengeID string) (int, error) {
	return s.deleteMany(ctx, realtime.TableAttempts,
		`DELETE FROM challenge_attempts WHERE challenge_id = ? RETURNING id`, challengeID)
}

const bonusColumns = `id, team_id, challenge_id, player_id, evidence, created_at`

func scanBonus(row scanner) (conquest.Bonus, error) {
	var b conquest.Bonus
	var playerID sql.NullString
	var createdAt string
	if err := row.Scan(&b.ID, &b.TeamID, &b.ChallengeID, &playerID, &b.Evidence, &createdAt); err != nil {
		return b, err
	}
	b.PlayerID = playerID.String
	b.CreatedAt = parseTime(createdAt)
	return b, nil
}

// AwardBonus inserts b unless the team already holds a bonus for the
// challenge. inserted reports which happened.
func (s *Store) AwardBonus(ctx context.Context, b conquest.Bonus) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO bonus_awards (id, team_id, challenge_id, player_id, evidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (team_id, challenge_id) DO NOTHING
		RETURNING id`,
		b.ID, b.TeamID, b.ChallengeID, nullable(b.PlayerID), b.Evidence, formatTime(b.CreatedAt)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.emit(realtime.TableBonuses, realtime.OpInsert, b.ID, 0, b)
	return true, nil
}

func (s *Store) Bonus(ctx context.Context, id string) (conquest.Bonus, error) {
	b, err := scanBonus(s.db.QueryRowContext(ctx, `SELECT `+bonusColumns+` FROM bonus_awards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return b, conquest.ErrBonusNotFound
	}
	return b, err
}

func (s *Store) Bonuses(ctx context.Context) ([]conquest.Bonus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bonusColumns+` FROM bonus_awards ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bonuses := []conquest.Bonus{}
	for rows.Next() {
		b, err := scanBonus(rows)
		if err != nil {
			return nil, err
		}
		bonuses = append(bonuses, b)
	}
	return bonuses, rows.Err()
}

func (s *Store) DeleteBonus(ctx context.Context, id string) error {
	n, err := s.deleteMany(ctx, realtime.TableBonuses, `DELETE FROM bonus_awards WHERE id = ? RETURNING id`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return conquest.ErrBonusNotFound
	}
	return nil
}

func (s *Store) DeleteBonuses(ctx context.Context, challengeID string) (int, error) {
	return s.deleteMany(ctx, realtime.TableBonuses,
		`DELETE FROM bonus_awards WHERE challenge_id = ? RETURNING id`, challengeID)
}

// deleteMany runs a DELETE ... RETURNING id statement and publishes one
// delete per removed row.
func (s *Store) deleteMany(ctx context.Context, table realtime.Table, query string, args ...any) (int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.emit(table, realtime.OpDelete, id, 0, nil)
	}
	return len(ids), nil
}

const auditColumns = `id, action, description, team_id, player_id, location_id, challenge_id, metadata, created_at`

func scanAudit(row scanner) (conquest.AuditEntry, error) {
	var e conquest.AuditEntry
	var teamID, playerID, locationID, challengeID sql.NullString
	var metadata, createdAt string
	err := row.Scan(&e.ID, &e.Action, &e.Description, &teamID, &playerID, &locationID, &challengeID, &metadata, &createdAt)
	if err != nil {
		return e, err
	}
	e.TeamID = teamID.String
	e.PlayerID = playerID.String
	e.LocationID = locationID.String
	e.ChallengeID = challengeID.String
	if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
		return e, fmt.Errorf("decoding audit metadata: %w", err)
	}
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

func (s *Store) AppendAudit(ctx context.Context, e conquest.AuditEntry) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encoding audit metadata: %w", err)
	}
	if e.Metadata == nil {
		metadata = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, action, description, team_id, player_id, location_id, challenge_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Action), e.Description, nullable(e.TeamID), nullable(e.PlayerID),
		nullable(e.LocationID), nullable(e.ChallengeID), string(metadata), formatTime(e.CreatedAt))
	if err != nil {
		return err
	}
	s.emit(realtime.TableAudit, realtime.OpInsert, e.ID, 0, e)
	return nil
}

func (s *Store) RecentAudit(ctx context.Context, limit int) ([]conquest.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditColumns+` FROM audit_entries
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []conquest.AuditEntry{}
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
