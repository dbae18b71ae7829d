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

const gameColumns = `is_active, version, updated_at`

func scanGame(row scanner) (conquest.Game, error) {
	var g conquest.Game
	var active int
	var updatedAt string
	if err := row.Scan(&active, &g.Version, &updatedAt); err != nil {
		return g, err
	}
	g.Active = active == 1
	g.UpdatedAt = parseTime(updatedAt)
	return g, nil
}

func (s *Store) Game(ctx context.Context) (conquest.Game, error) {
	return scanGame(s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM game WHERE id = 1`))
}

func (s *Store) SetGame(ctx context.Context, active bool) (conquest.Game, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx, `
		UPDATE game SET is_active = ?, version = version + 1, updated_at = ?
		WHERE id = 1
		RETURNING `+gameColumns,
		boolInt(active), s.stamp()))
	if err != nil {
		return g, err
	}
	s.emit(realtime.TableGame, realtime.OpUpdate, "game", g.Version, g)
	return g, nil
}

const teamColumns = `id, name, color, version, created_at, updated_at`

func scanTeam(row scanner) (conquest.Team, error) {
	var t conquest.Team
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Name, &t.Color, &t.Version, &createdAt, &updatedAt); err != nil {
		return t, err
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (s *Store) CreateTeam(ctx context.Context, name, color string) (conquest.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return conquest.Team{}, fmt.Errorf("%w: team name is required", conquest.ErrInvalidInput)
	}
	now := s.stamp()
	t, err := scanTeam(s.db.QueryRowContext(ctx, `
		INSERT INTO teams (id, name, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING `+teamColumns,
		uuid.NewString(), name, color, now, now))
	if errors.Is(err, sql.ErrNoRows) {
		return t, conquest.ErrNameTaken
	}
	if err != nil {
		return t, err
	}
	s.emit(realtime.TableTeams, realtime.OpInsert, t.ID, t.Version, t)
	return t, nil
}

func (s *Store) Team(ctx context.Context, id string) (conquest.Team, error) {
	t, err := scanTeam(s.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, conquest.ErrTeamNotFound
	}
	return t, err
}

func (s *Store) Teams(ctx context.Context) ([]conquest.Team, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := []conquest.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

const playerColumns = `id, team_id, nickname, version, joined_at, updated_at`

func scanPlayer(row scanner) (conquest.Player, error) {
	var p conquest.Player
	var joinedAt, updatedAt string
	if err := row.Scan(&p.ID, &p.TeamID, &p.Nickname, &p.Version, &joinedAt, &updatedAt); err != nil {
		return p, err
	}
	p.JoinedAt = parseTime(joinedAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// JoinTeam adds a player to a team and returns their session token.
// Nicknames are unique per team regardless of case.
func (s *Store) JoinTeam(ctx context.Context, teamID, nickname string) (conquest.Player, string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return conquest.Player{}, "", fmt.Errorf("%w: nickname is required", conquest.ErrInvalidInput)
	}
	if _, err := s.Team(ctx, teamID); err != nil {
		return conquest.Player{}, "", err
	}

	now := s.stamp()
	var token string
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO players (id, team_id, nickname, session_token, joined_at, updated_at)
		VALUES (?, ?, ?, lower(hex(randomblob(16))), ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING `+playerColumns+`, session_token`,
		uuid.NewString(), teamID, nickname, now, now)

	var p conquest.Player
	var joinedAt, updatedAt string
	err := row.Scan(&p.ID, &p.TeamID, &p.Nickname, &p.Version, &joinedAt, &updatedAt, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return p, "", conquest.ErrNameTaken
	}
	if err != nil {
		return p, "", err
	}
	p.JoinedAt = parseTime(joinedAt)
	p.UpdatedAt = parseTime(updatedAt)

	s.emit(realtime.TablePlayers, realtime.OpInsert, p.ID, p.Version, p)
	return p, token, nil
}

func (s *Store) Player(ctx context.Context, id string) (conquest.Player, error) {
	p, err := scanPlayer(s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, conquest.ErrPlayerNotFound
	}
	return p, err
}

func (s *Store) PlayerByToken(ctx context.Context, token string) (conquest.Player, error) {
	p, err := scanPlayer(s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE session_token = ?`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNoSession
	}
	return p, err
}

func (s *Store) Players(ctx context.Context) ([]conquest.Player, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY joined_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []conquest.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *Store) SetPlayerTeam(ctx context.Context, playerID, teamID string) (conquest.Player, error) {
	p, err := scanPlayer(s.db.QueryRowContext(ctx, `
		UPDATE players SET team_id = ?, version = version + 1, updated_at = ?
		WHERE id = ?
		RETURNING `+playerColumns,
		teamID, s.stamp(), playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return p, conquest.ErrPlayerNotFound
	}
	if isUniqueViolation(err) {
		return p, conquest.ErrNameTaken
	}
	if err != nil {
		return p, err
	}
	s.emit(realtime.TablePlayers, realtime.OpUpdate, p.ID, p.Version, p)
	return p, nil
}

func (s *Store) DeletePlayer(ctx context.Context, id string) error {
	var deleted string
	err := s.db.QueryRowContext(ctx, `DELETE FROM players WHERE id = ? RETURNING id`, id).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return conquest.ErrPlayerNotFound
	}
	if err != nil {
		return err
	}
	s.emit(realtime.TablePlayers, realtime.OpDelete, deleted, 0, nil)
	return nil
}
