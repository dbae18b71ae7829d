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

const locationColumns = `id, name, lat, lng, controlling_team_id, drink_count,
	is_locked, locked_by_team_id, version, created_at, updated_at`

func scanLocation(row scanner) (conquest.Location, error) {
	var l conquest.Location
	var lat, lng sql.NullFloat64
	var team, lockedBy sql.NullString
	var locked int
	var createdAt, updatedAt string
	err := row.Scan(&l.ID, &l.Name, &lat, &lng, &team, &l.DrinkCount,
		&locked, &lockedBy, &l.Version, &createdAt, &updatedAt)
	if err != nil {
		return l, err
	}
	if lat.Valid {
		l.Lat = &lat.Float64
	}
	if lng.Valid {
		l.Lng = &lng.Float64
	}
	l.TeamID = team.String
	l.Locked = locked == 1
	l.LockedBy = lockedBy.String
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return l, nil
}

func (s *Store) CreateLocation(ctx context.Context, name string, lat, lng *float64) (conquest.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return conquest.Location{}, fmt.Errorf("%w: location name is required", conquest.ErrInvalidInput)
	}
	now := s.stamp()
	l, err := scanLocation(s.db.QueryRowContext(ctx, `
		INSERT INTO locations (id, name, lat, lng, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+locationColumns,
		uuid.NewString(), name, nullableFloat(lat), nullableFloat(lng), now, now))
	if err != nil {
		return l, err
	}
	s.emit(realtime.TableLocations, realtime.OpInsert, l.ID, l.Version, l)
	return l, nil
}

func (s *Store) Location(ctx context.Context, id string) (conquest.Location, error) {
	l, err := scanLocation(s.db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return l, conquest.ErrLocationNotFound
	}
	return l, err
}

func (s *Store) Locations(ctx context.Context) ([]conquest.Location, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := []conquest.Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// SwapOwnership applies swap only if the row still holds the expected drink
// count and version and is unlocked. ok is false when no row matched.
func (s *Store) SwapOwnership(ctx context.Context, swap conquest.OwnershipSwap) (conquest.Location, bool, error) {
	l, err := scanLocation(s.db.QueryRowContext(ctx, `
		UPDATE locations
		SET controlling_team_id = ?, drink_count = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND drink_count = ? AND version = ? AND is_locked = 0
		RETURNING `+locationColumns,
		swap.TeamID, swap.ToCount, s.stamp(),
		swap.LocationID, swap.FromCount, swap.FromVersion))
	if errors.Is(err, sql.ErrNoRows) {
		return l, false, nil
	}
	if err != nil {
		return l, false, err
	}
	s.emit(realtime.TableLocations, realtime.OpUpdate, l.ID, l.Version, l)
	return l, true, nil
}

// SetOwnership overwrites the ownership of a location unconditionally.
func (s *Store) SetOwnership(ctx context.Context, locationID string, o conquest.Ownership) (conquest.Location, error) {
	if o.DrinkCount < 0 {
		return conquest.Location{}, fmt.Errorf("%w: drink count must not be negative", conquest.ErrInvalidInput)
	}
	l, err := scanLocation(s.db.QueryRowContext(ctx, `
		UPDATE locations
		SET controlling_team_id = ?, drink_count = ?, is_locked = ?, locked_by_team_id = ?,
			version = version + 1, updated_at = ?
		WHERE id = ?
		RETURNING `+locationColumns,
		nullable(o.TeamID), o.DrinkCount, boolInt(o.Locked), nullable(o.LockedBy), s.stamp(),
		locationID))
	if errors.Is(err, sql.ErrNoRows) {
		return l, conquest.ErrLocationNotFound
	}
	if err != nil {
		return l, err
	}
	s.emit(realtime.TableLocations, realtime.OpUpdate, l.ID, l.Version, l)
	return l, nil
}

// LockLocation hands the location to teamID and locks it, whatever its
// current state.
func (s *Store) LockLocation(ctx context.Context, locationID, teamID string) (conquest.Location, error) {
	l, err := scanLocation(s.db.QueryRowContext(ctx, `
		UPDATE locations
		SET controlling_team_id = ?, is_locked = 1, locked_by_team_id = ?,
			version = version + 1, updated_at = ?
		WHERE id = ?
		RETURNING `+locationColumns,
		teamID, teamID, s.stamp(), locationID))
	if errors.Is(err, sql.ErrNoRows) {
		return l, conquest.ErrLocationNotFound
	}
	if err != nil {
		return l, err
	}
	s.emit(realtime.TableLocations, realtime.OpUpdate, l.ID, l.Version, l)
	return l, nil
}
