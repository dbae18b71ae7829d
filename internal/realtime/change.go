// Package realtime carries store changes to connected clients and merges them
// back into a consistent per-client view.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/playperu/pubconquest/internal/conquest"
)

type Table string

const (
	TableGame       Table = "game"
	TableTeams      Table = "teams"
	TablePlayers    Table = "players"
	TableLocations  Table = "locations"
	TableChallenges Table = "challenges"
	TableProgress   Table = "progress"
	TableCaptures   Table = "captures"
	TableAttempts   Table = "attempts"
	TableBonuses    Table = "bonuses"
	TableAudit      Table = "audit"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one committed row change. Record holds the full row after
// the change and is empty for deletes. Version is the row version for state
// tables and zero for history tables.
type Change struct {
	Table   Table           `json:"table"`
	Op      Op              `json:"op"`
	ID      string          `json:"id"`
	Version int64           `json:"version,omitempty"`
	Record  json.RawMessage `json:"record,omitempty"`
	At      time.Time       `json:"at"`
}

// NewChange encodes record into a Change.
func NewChange(table Table, op Op, id string, version int64, record any) (Change, error) {
	c := Change{Table: table, Op: op, ID: id, Version: version, At: time.Now().UTC()}
	if op == OpDelete || record == nil {
		return c, nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return Change{}, err
	}
	c.Record = data
	return c, nil
}

type EventType string

const (
	EventChange       EventType = "change"
	EventNotification EventType = "notification"
)

// Event is the unit written to stream subscribers and relays. Origin names
// the instance that produced it so relays can drop their own echoes.
type Event struct {
	Type         EventType              `json:"type"`
	Change       *Change                `json:"change,omitempty"`
	Notification *conquest.Notification `json:"notification,omitempty"`
	Origin       string                 `json:"origin,omitempty"`
}
