// Package store persists game state in SQLite and publishes a change for
// every committed row write.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/playperu/pubconquest/internal/realtime"
)

// timeLayout is fixed width so that text ordering in SQLite matches time
// ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var ErrNoSession = errors.New("no valid session")

// Publisher receives committed changes. Publish must not block.
type Publisher interface {
	Publish(c realtime.Change)
}

type nopPublisher struct{}

func (nopPublisher) Publish(realtime.Change) {}

type Store struct {
	db  *sql.DB
	pub Publisher
	now func() time.Time
}

func New(db *sql.DB, pub Publisher) *Store {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Store{db: db, pub: pub, now: time.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) stamp() string {
	return formatTime(s.now())
}

func (s *Store) emit(table realtime.Table, op realtime.Op, id string, version int64, record any) {
	c, err := realtime.NewChange(table, op, id, version, record)
	if err != nil {
		return
	}
	s.pub.Publish(c)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scanner interface {
	Scan(dest ...any) error
}

// collectIDs drains a single-column result set.
func collectIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
