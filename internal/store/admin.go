package store

import (
	"context"
	"database/sql"
	"errors"
)

func (s *Store) CreateAdminSession(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO admin_sessions (id)
		VALUES (lower(hex(randomblob(16))))
		RETURNING id
	`).Scan(&id)
	return id, err
}

// AdminSession returns ErrNoSession unless id names a live admin session.
func (s *Store) AdminSession(ctx context.Context, id string) error {
	var found string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM admin_sessions WHERE id = ?`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoSession
	}
	return err
}

func (s *Store) DeleteAdminSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE id = ?`, id)
	return err
}
