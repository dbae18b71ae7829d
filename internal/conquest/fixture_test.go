package conquest_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/store"
	"github.com/playperu/pubconquest/internal/store/storetest"
)

var errInjected = errors.New("injected failure")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	ctx   context.Context
	store *store.Store

	red, blue     conquest.Team
	alice, bob    conquest.Player
	crown, anchor conquest.Location
}

// newFixture sets up two teams with one player each, two pubs and an
// active game.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := storetest.New(t, nil)

	f := &fixture{ctx: ctx, store: s}
	var err error
	f.red, err = s.CreateTeam(ctx, "Red", "#e11d48")
	require.NoError(t, err)
	f.blue, err = s.CreateTeam(ctx, "Blue", "#2563eb")
	require.NoError(t, err)
	f.alice, _, err = s.JoinTeam(ctx, f.red.ID, "Alice")
	require.NoError(t, err)
	f.bob, _, err = s.JoinTeam(ctx, f.blue.ID, "Bob")
	require.NoError(t, err)
	f.crown, err = s.CreateLocation(ctx, "The Crown", nil, nil)
	require.NoError(t, err)
	f.anchor, err = s.CreateLocation(ctx, "The Anchor", nil, nil)
	require.NoError(t, err)
	_, err = s.SetGame(ctx, true)
	require.NoError(t, err)
	return f
}

func (f *fixture) location(t *testing.T, id string) conquest.Location {
	t.Helper()
	l, err := f.store.Location(f.ctx, id)
	require.NoError(t, err)
	return l
}

func (f *fixture) capture(t *testing.T, r *conquest.Resolver, team conquest.Team, player conquest.Player, loc conquest.Location) conquest.CaptureResult {
	t.Helper()
	res, err := r.AttemptCapture(f.ctx, conquest.CaptureRequest{
		LocationID: loc.ID, TeamID: team.ID, PlayerID: player.ID, Evidence: "https://img.example/p.jpg",
	})
	require.NoError(t, err)
	return res
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []conquest.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note conquest.Notification) {
	n.mu.Lock()
	n.notes = append(n.notes, note)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []conquest.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]conquest.Notification(nil), n.notes...)
}

// faultyStore wraps the real store and fails selected writes.
type faultyStore struct {
	*store.Store
	failAppendCapture   bool
	failAppendAttempt   bool
	failLock            bool
	failAudit           bool
	failClearCompletion bool
	failSetOwnership    bool
	failDeleteCapture   bool
	failDeleteBonuses   bool
	// staleChallenge hides completion so the engine reaches the completion
	// write as if it had raced.
	staleChallenge bool
}

func (s *faultyStore) AppendCapture(ctx context.Context, c conquest.Capture) error {
	if s.failAppendCapture {
		return errInjected
	}
	return s.Store.AppendCapture(ctx, c)
}

func (s *faultyStore) AppendAttempt(ctx context.Context, a conquest.Attempt) error {
	if s.failAppendAttempt {
		return errInjected
	}
	return s.Store.AppendAttempt(ctx, a)
}

func (s *faultyStore) LockLocation(ctx context.Context, locationID, teamID string) (conquest.Location, error) {
	if s.failLock {
		return conquest.Location{}, errInjected
	}
	return s.Store.LockLocation(ctx, locationID, teamID)
}

func (s *faultyStore) AppendAudit(ctx context.Context, e conquest.AuditEntry) error {
	if s.failAudit {
		return errInjected
	}
	return s.Store.AppendAudit(ctx, e)
}

func (s *faultyStore) Challenge(ctx context.Context, id string) (conquest.Challenge, error) {
	c, err := s.Store.Challenge(ctx, id)
	if s.staleChallenge {
		c.Completed = false
		c.CompletedBy = ""
	}
	return c, err
}

func (s *faultyStore) ClearCompletion(ctx context.Context, challengeID string) (conquest.Challenge, error) {
	if s.failClearCompletion {
		return conquest.Challenge{}, errInjected
	}
	return s.Store.ClearCompletion(ctx, challengeID)
}

func (s *faultyStore) SetOwnership(ctx context.Context, locationID string, o conquest.Ownership) (conquest.Location, error) {
	if s.failSetOwnership {
		return conquest.Location{}, errInjected
	}
	return s.Store.SetOwnership(ctx, locationID, o)
}

func (s *faultyStore) DeleteCapture(ctx context.Context, id string) error {
	if s.failDeleteCapture {
		return errInjected
	}
	return s.Store.DeleteCapture(ctx, id)
}

func (s *faultyStore) DeleteBonuses(ctx context.Context, challengeID string) (int, error) {
	if s.failDeleteBonuses {
		return 0, errInjected
	}
	return s.Store.DeleteBonuses(ctx, challengeID)
}
