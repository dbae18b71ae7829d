package realtime

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/playperu/pubconquest/internal/conquest"
)

const (
	DefaultAnimationWindow = 3 * time.Second
	DefaultHistoryLimit    = 50
	defaultRingSize        = 2048
)

// Tables whose rows are mutable and merged last-write-wins by version.
// Bonuses never change after insert but are kept in full for scoring.
var stateTables = map[Table]bool{
	TableGame:       true,
	TableTeams:      true,
	TablePlayers:    true,
	TableLocations:  true,
	TableChallenges: true,
	TableProgress:   true,
	TableBonuses:    true,
}

// Row is one entity held by a Reconciler.
type Row struct {
	ID      string          `json:"id"`
	Version int64           `json:"version"`
	Record  json.RawMessage `json:"record"`
	// At is when the row was last changed on the server.
	At time.Time `json:"at"`
	// Created orders history rows newest first.
	Created time.Time `json:"-"`
}

// Reconciler merges a snapshot and an unordered, possibly duplicated change
// stream into one view. It is safe for concurrent use.
type Reconciler struct {
	mu           sync.Mutex
	now          func() time.Time
	window       time.Duration
	historyLimit int

	state   map[Table]map[string]Row
	history map[Table][]Row
	seen    *ring[struct{}]
	tombs   *ring[time.Time]
	anim    *ring[time.Time]
	taken   time.Time
}

func NewReconciler(historyLimit int, window time.Duration) *Reconciler {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if window <= 0 {
		window = DefaultAnimationWindow
	}
	return &Reconciler{
		now:          time.Now,
		window:       window,
		historyLimit: historyLimit,
		state:        make(map[Table]map[string]Row),
		history:      make(map[Table][]Row),
		seen:         newRing[struct{}](defaultRingSize),
		tombs:        newRing[time.Time](defaultRingSize),
		anim:         newRing[time.Time](defaultRingSize),
	}
}

// Apply merges one live change. It reports whether the view changed.
// Duplicates, stale versions and changes older than a known deletion are
// ignored.
func (r *Reconciler) Apply(c Change) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apply(c, true)
}

// LocalInsert records an optimistic history row before the server echoes it,
// for clients that submit writes themselves.
// The echo is then treated as a duplicate.
func (r *Reconciler) LocalInsert(table Table, id string, record any) error {
	c, err := NewChange(table, OpInsert, id, 0, record)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.apply(c, true)
	return err
}

func (r *Reconciler) apply(c Change, animate bool) (bool, error) {
	if c.ID == "" {
		return false, fmt.Errorf("change on %s has no id", c.Table)
	}
	k := Key{Table: c.Table, ID: c.ID}

	// The tombstone outlives a re-creation so that changes from before the
	// deletion, still in flight, stay dropped.
	if deleted, ok := r.tombs.Get(k); ok && !c.At.After(deleted) {
		return false, nil
	}

	if c.Op == OpDelete {
		r.tombs.Put(k, c.At)
		r.anim.Remove(k)
		return r.remove(k), nil
	}

	row := Row{ID: c.ID, Version: c.Version, Record: c.Record, At: c.At, Created: c.At}
	if stateTables[c.Table] {
		rows := r.state[c.Table]
		if rows == nil {
			rows = make(map[string]Row)
			r.state[c.Table] = rows
		}
		if cur, ok := rows[c.ID]; ok && c.Version <= cur.Version {
			return false, nil
		}
		rows[c.ID] = row
	} else {
		if r.seen.Has(k) || r.holds(k) {
			return false, nil
		}
		var head struct {
			CreatedAt time.Time `json:"createdAt"`
		}
		if len(c.Record) > 0 {
			if err := json.Unmarshal(c.Record, &head); err != nil {
				return false, fmt.Errorf("decoding %s %s: %w", c.Table, c.ID, err)
			}
		}
		if !head.CreatedAt.IsZero() {
			row.Created = head.CreatedAt
		}
		r.seen.Put(k, struct{}{})
		r.insertHistory(c.Table, row)
	}

	if animate {
		r.anim.Put(k, r.now().Add(r.window))
	}
	return true, nil
}

func (r *Reconciler) insertHistory(t Table, row Row) {
	rows := append(r.history[t], row)
	slices.SortStableFunc(rows, func(a, b Row) int {
		return b.Created.Compare(a.Created)
	})
	if len(rows) > r.historyLimit {
		rows = rows[:r.historyLimit]
	}
	r.history[t] = rows
}

func (r *Reconciler) holds(k Key) bool {
	return slices.ContainsFunc(r.history[k.Table], func(row Row) bool { return row.ID == k.ID })
}

func (r *Reconciler) remove(k Key) bool {
	if rows, ok := r.state[k.Table]; ok {
		if _, ok := rows[k.ID]; ok {
			delete(rows, k.ID)
			return true
		}
		return false
	}
	rows := r.history[k.Table]
	for i, row := range rows {
		if row.ID == k.ID {
			r.history[k.Table] = slices.Delete(rows, i, i+1)
			return true
		}
	}
	return false
}

// ApplySnapshot merges a full snapshot without animating. Rows the snapshot
// no longer contains are dropped when they were last seen before the
// snapshot was taken. Replaying the same or an older snapshot is a no-op.
func (r *Reconciler) ApplySnapshot(s Snapshot) error {
	changes, err := s.Changes()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	newer := s.TakenAt.After(r.taken)
	present := make(map[Key]bool, len(changes))
	for _, c := range changes {
		present[Key{Table: c.Table, ID: c.ID}] = true
		// A newer snapshot replaces rows last seen before it, even at a
		// lower version, since a row deleted and created again under the
		// same id starts over at version 1.
		if cur, ok := r.state[c.Table][c.ID]; ok && newer && cur.At.Before(s.TakenAt) && cur.Version != c.Version {
			delete(r.state[c.Table], c.ID)
		}
		if _, err := r.apply(c, false); err != nil {
			return err
		}
	}
	if !newer {
		return nil
	}
	r.taken = s.TakenAt

	for t, rows := range r.state {
		for id, row := range rows {
			k := Key{Table: t, ID: id}
			if !present[k] && row.At.Before(s.TakenAt) {
				delete(rows, id)
				r.tombs.Put(k, s.TakenAt)
			}
		}
	}
	for t, rows := range r.history {
		oldest, ok := oldestIn(changes, t)
		if !ok {
			continue
		}
		kept := rows[:0]
		for _, row := range rows {
			k := Key{Table: t, ID: row.ID}
			if !present[k] && !row.Created.Before(oldest) && row.At.Before(s.TakenAt) {
				r.tombs.Put(k, s.TakenAt)
				continue
			}
			kept = append(kept, row)
		}
		r.history[t] = kept
	}
	return nil
}

func oldestIn(changes []Change, t Table) (time.Time, bool) {
	var oldest time.Time
	found := false
	for _, c := range changes {
		if c.Table != t {
			continue
		}
		var head struct {
			CreatedAt time.Time `json:"createdAt"`
		}
		if json.Unmarshal(c.Record, &head) != nil || head.CreatedAt.IsZero() {
			continue
		}
		if !found || head.CreatedAt.Before(oldest) {
			oldest = head.CreatedAt
			found = true
		}
	}
	return oldest, found
}

// Animating reports whether k arrived within the animation window.
func (r *Reconciler) Animating(k Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.anim.Get(k)
	return ok && r.now().Before(until)
}

// Sweep clears expired animation markers and returns their keys. The seen
// set is kept so a late duplicate does not animate again.
func (r *Reconciler) Sweep() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var expired []Key
	r.anim.Range(func(k Key, until time.Time) bool {
		if !now.Before(until) {
			expired = append(expired, k)
		}
		return true
	})
	for _, k := range expired {
		r.anim.Remove(k)
	}
	return expired
}

// Rows returns a copy of the rows held for t. History tables are newest
// first; state tables are in no particular order.
func (r *Reconciler) Rows(t Table) []Row {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rows, ok := r.state[t]; ok {
		out := make([]Row, 0, len(rows))
		for _, row := range rows {
			out = append(out, row)
		}
		return out
	}
	return slices.Clone(r.history[t])
}

// Decode unmarshals every row of t into a T.
func Decode[T any](r *Reconciler, t Table) ([]T, error) {
	rows := r.Rows(t)
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var v T
		if err := json.Unmarshal(row.Record, &v); err != nil {
			return nil, fmt.Errorf("decoding %s %s: %w", t, row.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Scores ranks teams from the reconciled view. Teams are fed in creation
// order so ties match the server's ranking.
func (r *Reconciler) Scores() ([]conquest.TeamScore, error) {
	teams, err := Decode[conquest.Team](r, TableTeams)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(teams, func(a, b conquest.Team) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	locations, err := Decode[conquest.Location](r, TableLocations)
	if err != nil {
		return nil, err
	}
	bonuses, err := Decode[conquest.Bonus](r, TableBonuses)
	if err != nil {
		return nil, err
	}
	return conquest.Score(teams, locations, bonuses), nil
}
