package conquest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/pubconquest/internal/conquest"
)

func TestUndoCaptureReconstructsLatest(t *testing.T) {
	f := newFixture(t)
	r := conquest.NewResolver(f.store, nil, discardLogger())
	c1 := f.capture(t, r, f.red, f.alice, f.crown).Capture
	c2 := f.capture(t, r, f.red, f.alice, f.crown).Capture
	c3 := f.capture(t, r, f.blue, f.bob, f.crown).Capture

	fix := conquest.NewCorrections(f.store, nil, discardLogger())

	res, err := fix.UndoCapture(f.ctx, c3.ID, f.crown.ID)
	require.NoError(t, err)
	assert.Equal(t, f.red.ID, res.Location.TeamID)
	assert.EqualValues(t, 2, res.Location.DrinkCount)
	require.NotNil(t, res.Audit)
	assert.Equal(t, conquest.AuditCaptureUndone, res.Audit.Action)

	res, err = fix.UndoCapture(f.ctx, c2.ID, f.crown.ID)
	require.NoError(t, err)
	assert.Equal(t, f.red.ID, res.Location.TeamID)
	assert.EqualValues(t, 1, res.Location.DrinkCount)

	res, err = fix.UndoCapture(f.ctx, c1.ID, f.crown.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Location.TeamID)
	assert.EqualValues(t, 0, res.Location.DrinkCount)

	_, err = fix.UndoCapture(f.ctx, c1.ID, f.crown.ID)
	assert.ErrorIs(t, err, conquest.ErrCaptureNotFound)

	audit, err := f.store.RecentAudit(f.ctx, 10)
	require.NoError(t, err)
	assert.Len(t, audit, 3, "one audit entry per correction")
}

func TestUndoNonLatestThenReplay(t *testing.T) {
	f := newFixture(t)
	r := conquest.NewResolver(f.store, nil, discardLogger())
	c1 := f.capture(t, r, f.red, f.alice, f.crown).Capture
	f.capture(t, r, f.blue, f.bob, f.crown)
	f.capture(t, r, f.red, f.alice, f.crown)

	fix := conquest.NewCorrections(f.store, nil, discardLogger())

	res, err := fix.UndoCapture(f.ctx, c1.ID, f.crown.ID)
	require.NoError(t, err)
	assert.Equal(t, f.red.ID, res.Location.TeamID)
	assert.EqualValues(t, 3, res.Location.DrinkCount, "older deletions leave ownership alone")

	res, err = fix.ReplayLocation(f.ctx, f.crown.ID)
	require.NoError(t, err)
	assert.Equal(t, f.red.ID, res.Location.TeamID)
	assert.EqualValues(t, 2, res.Location.DrinkCount, "replay counts the surviving captures")
	require.NotNil(t, res.Audit)
	assert.Equal(t, conquest.AuditLocationReplayed, res.Audit.Action)
}

func TestFoldOwnership(t *testing.T) {
	base := conquest.Ownership{Locked: true, LockedBy: "x"}
	got := conquest.FoldOwnership(base, []conquest.Capture{
		{TeamID: "x", DrinkCount: 1},
		{TeamID: "y", DrinkCount: 2},
	})
	assert.Equal(t, conquest.Ownership{TeamID: "y", DrinkCount: 2, Locked: true, LockedBy: "x"}, got)
	assert.Equal(t, base, conquest.FoldOwnership(base, nil))
}

func TestLocationOverrides(t *testing.T) {
	f := newFixture(t)
	fix := conquest.NewCorrections(f.store, nil, discardLogger())

	res, err := fix.ChangeOwner(f.ctx, f.crown.ID, f.blue.ID)
	require.NoError(t, err)
	assert.Equal(t, f.blue.ID, res.Location.TeamID)

	res, err = fix.SetDrinkCount(f.ctx, f.crown.ID, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 7, res.Location.DrinkCount)

	_, err = fix.SetDrinkCount(f.ctx, f.crown.ID, -1)
	assert.ErrorIs(t, err, conquest.ErrInvalidInput)

	res, err = fix.ToggleLock(f.ctx, f.crown.ID, true)
	require.NoError(t, err)
	assert.True(t, res.Location.Locked)
	assert.Equal(t, f.blue.ID, res.Location.LockedBy)

	res, err = fix.ChangeOwner(f.ctx, f.crown.ID, f.red.ID)
	require.NoError(t, err)
	assert.Equal(t, f.red.ID, res.Location.LockedBy, "a locked location stays locked for its new owner")

	_, err = fix.ChangeOwner(f.ctx, f.crown.ID, "nobody-team")
	assert.ErrorIs(t, err, conquest.ErrTeamNotFound)

	notes := &recordingNotifier{}
	fix = conquest.NewCorrections(f.store, notes, discardLogger())
	res, err = fix.ResetLocation(f.ctx, f.crown.ID)
	require.NoError(t, err)
	assert.Equal(t, conquest.Ownership{}, res.Location.Ownership)
	require.Len(t, notes.all(), 1)
	assert.Equal(t, conquest.NoticeLocationReleased, notes.all()[0].Kind)

	require.NotNil(t, res.Audit)
	assert.Equal(t, conquest.AuditLocationReset, res.Audit.Action)
	assert.Contains(t, res.Audit.Metadata, "before")
	assert.Contains(t, res.Audit.Metadata, "after")

	_, err = fix.ResetLocation(f.ctx, "missing")
	assert.ErrorIs(t, err, conquest.ErrLocationNotFound)

	audit, err := f.store.RecentAudit(f.ctx, 50)
	require.NoError(t, err)
	assert.Len(t, audit, 5)
}

func TestDeleteChallengeCascades(t *testing.T) {
	f := newFixture(t)
	ch := f.locationChallenge(t, f.crown)
	engine := conquest.NewChallenges(f.store, nil, discardLogger())
	_, err := engine.SubmitStep(f.ctx, entry(ch, f.red, f.alice))
	require.NoError(t, err)
	_, err = engine.SubmitStep(f.ctx, result(ch, f.red, f.alice, true))
	require.NoError(t, err)

	fix := conquest.NewCorrections(f.store, nil, discardLogger())
	res, err := fix.DeleteChallenge(f.ctx, ch.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Audit)
	assert.EqualValues(t, 2, res.Audit.Metadata["attemptsDeleted"])

	_, err = f.store.Challenge(f.ctx, ch.ID)
	assert.ErrorIs(t, err, conquest.ErrChallengeNotFound)
	attempts, err := f.store.RecentAttempts(f.ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	assert.True(t, f.location(t, f.crown.ID).Locked, "the lock is an ownership fact and survives")
}

func TestResetChallengeKeepsAttempts(t *testing.T) {
	f := newFixture(t)
	ch := f.locationChallenge(t, f.crown)
	engine := conquest.NewChallenges(f.store, nil, discardLogger())
	_, err := engine.SubmitStep(f.ctx, entry(ch, f.red, f.alice))
	require.NoError(t, err)
	_, err = engine.SubmitStep(f.ctx, result(ch, f.red, f.alice, true))
	require.NoError(t, err)

	fix := conquest.NewCorrections(f.store, nil, discardLogger())
	res, err := fix.ResetChallenge(f.ctx, ch.ID)
	require.NoError(t, err)
	assert.False(t, res.Challenge.Completed)

	p, err := f.store.Progress(f.ctx, ch.ID, f.red.ID)
	require.NoError(t, err)
	assert.Equal(t, conquest.StateNotStarted, p.State)

	attempts, err := f.store.RecentAttempts(f.ctx, 10)
	require.NoError(t, err)
	assert.Len(t, attempts, 2)

	_, err = engine.SubmitStep(f.ctx, entry(ch, f.blue, f.bob))
	assert.NoError(t, err, "the challenge can be played again")
}

func TestRevokeBonus(t *testing.T) {
	f := newFixture(t)
	ch := f.globalChallenge(t)
	engine := conquest.NewChallenges(f.store, nil, discardLogger())
	res, err := engine.SubmitStep(f.ctx, conquest.StepRequest{
		ChallengeID: ch.ID, TeamID: f.red.ID, PlayerID: f.alice.ID, Evidence: "x",
	})
	require.NoError(t, err)

	fix := conquest.NewCorrections(f.store, nil, discardLogger())
	_, err = fix.RevokeBonus(f.ctx, res.Bonus.ID)
	require.NoError(t, err)
	_, err = fix.RevokeBonus(f.ctx, res.Bonus.ID)
	assert.ErrorIs(t, err, conquest.ErrBonusNotFound)

	_, err = engine.SubmitStep(f.ctx, conquest.StepRequest{
		ChallengeID: ch.ID, TeamID: f.red.ID, PlayerID: f.alice.ID, Evidence: "again",
	})
	assert.NoError(t, err, "a revoked bonus can be earned again")
}

func TestSetGameActive(t *testing.T) {
	f := newFixture(t)
	notes := &recordingNotifier{}
	fix := conquest.NewCorrections(f.store, notes, discardLogger())

	res, err := fix.SetGameActive(f.ctx, false)
	require.NoError(t, err)
	assert.False(t, res.Game.Active)
	assert.Equal(t, false, res.Audit.Metadata["after"])
	require.Len(t, notes.all(), 1)

	r := conquest.NewResolver(f.store, nil, discardLogger())
	_, err = r.AttemptCapture(f.ctx, conquest.CaptureRequest{
		LocationID: f.crown.ID, TeamID: f.red.ID, PlayerID: f.alice.ID, Evidence: "x",
	})
	assert.ErrorIs(t, err, conquest.ErrGameInactive)
}

func TestPlayerCorrections(t *testing.T) {
	f := newFixture(t)
	r := conquest.NewResolver(f.store, nil, discardLogger())
	f.capture(t, r, f.red, f.alice, f.crown)

	fix := conquest.NewCorrections(f.store, nil, discardLogger())
	res, err := fix.ReassignPlayer(f.ctx, f.alice.ID, f.blue.ID)
	require.NoError(t, err)
	assert.Equal(t, f.blue.ID, res.Player.TeamID)

	history, err := f.store.Captures(f.ctx, f.crown.ID)
	require.NoError(t, err)
	assert.Equal(t, f.red.ID, history[0].TeamID, "past captures stay with the old team")

	_, err = fix.DeletePlayer(f.ctx, f.alice.ID)
	require.NoError(t, err)
	_, err = f.store.Player(f.ctx, f.alice.ID)
	assert.ErrorIs(t, err, conquest.ErrPlayerNotFound)

	history, err = f.store.Captures(f.ctx, f.crown.ID)
	require.NoError(t, err)
	assert.Empty(t, history[0].PlayerID)
}

func TestAuditFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	fix := conquest.NewCorrections(&faultyStore{Store: f.store, failAudit: true}, nil, discardLogger())

	res, err := fix.SetDrinkCount(f.ctx, f.crown.ID, 3)
	require.NoError(t, err)
	assert.ErrorIs(t, res.AuditErr, errInjected)
	assert.Nil(t, res.Audit)
	assert.EqualValues(t, 3, f.location(t, f.crown.ID).DrinkCount)
}

func TestChangeOwnerToNobodyUnlocks(t *testing.T) {
	f := newFixture(t)
	fix := conquest.NewCorrections(f.store, nil, discardLogger())

	_, err := fix.ChangeOwner(f.ctx, f.crown.ID, f.red.ID)
	require.NoError(t, err)
	_, err = fix.ToggleLock(f.ctx, f.crown.ID, true)
	require.NoError(t, err)

	res, err := fix.ChangeOwner(f.ctx, f.crown.ID, "")
	require.NoError(t, err)
	assert.Empty(t, res.Location.TeamID)
	assert.False(t, res.Location.Locked, "a location nobody owns cannot stay locked")
	assert.Empty(t, res.Location.LockedBy)
}

func TestUndoCaptureRestoreFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	r := conquest.NewResolver(f.store, nil, discardLogger())
	f.capture(t, r, f.red, f.alice, f.crown)
	c2 := f.capture(t, r, f.blue, f.bob, f.crown).Capture

	fix := conquest.NewCorrections(&faultyStore{Store: f.store, failSetOwnership: true}, nil, discardLogger())
	_, err := fix.UndoCapture(f.ctx, c2.ID, f.crown.ID)
	require.ErrorIs(t, err, errInjected)

	history, err := f.store.Captures(f.ctx, f.crown.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "the capture is kept when ownership cannot move")
	assert.Equal(t, f.blue.ID, f.location(t, f.crown.ID).TeamID)

	audit, err := f.store.RecentAudit(f.ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, audit)
}

func TestUndoCaptureDeleteFailureIsAudited(t *testing.T) {
	f := newFixture(t)
	r := conquest.NewResolver(f.store, nil, discardLogger())
	f.capture(t, r, f.red, f.alice, f.crown)
	c2 := f.capture(t, r, f.blue, f.bob, f.crown).Capture

	fix := conquest.NewCorrections(&faultyStore{Store: f.store, failDeleteCapture: true}, nil, discardLogger())
	_, err := fix.UndoCapture(f.ctx, c2.ID, f.crown.ID)
	require.ErrorIs(t, err, errInjected)

	audit, err := f.store.RecentAudit(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, audit, 1, "the ownership change is on record")
	assert.Equal(t, conquest.AuditCaptureUndone, audit[0].Action)
	assert.Equal(t, true, audit[0].Metadata["incomplete"])
	assert.Equal(t, f.red.ID, f.location(t, f.crown.ID).TeamID)
}

func TestDeleteChallengeFailureIsAudited(t *testing.T) {
	f := newFixture(t)
	ch := f.locationChallenge(t, f.crown)
	engine := conquest.NewChallenges(f.store, nil, discardLogger())
	_, err := engine.SubmitStep(f.ctx, entry(ch, f.red, f.alice))
	require.NoError(t, err)

	fix := conquest.NewCorrections(&faultyStore{Store: f.store, failDeleteBonuses: true}, nil, discardLogger())
	_, err = fix.DeleteChallenge(f.ctx, ch.ID)
	require.ErrorIs(t, err, errInjected)

	audit, err := f.store.RecentAudit(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, audit, 1, "attempts were already deleted")
	assert.Equal(t, conquest.AuditChallengeDeleted, audit[0].Action)
	assert.Equal(t, true, audit[0].Metadata["incomplete"])
	assert.EqualValues(t, 1, audit[0].Metadata["attemptsDeleted"])
	assert.Contains(t, audit[0].Metadata["error"], errInjected.Error())
}

func TestResetChallengeFailureIsAudited(t *testing.T) {
	f := newFixture(t)
	ch := f.locationChallenge(t, f.crown)
	engine := conquest.NewChallenges(f.store, nil, discardLogger())
	_, err := engine.SubmitStep(f.ctx, entry(ch, f.red, f.alice))
	require.NoError(t, err)
	_, err = engine.SubmitStep(f.ctx, result(ch, f.red, f.alice, true))
	require.NoError(t, err)

	fix := conquest.NewCorrections(&faultyStore{Store: f.store, failDeleteBonuses: true}, nil, discardLogger())
	_, err = fix.ResetChallenge(f.ctx, ch.ID)
	require.ErrorIs(t, err, errInjected)
	audit, err := f.store.RecentAudit(f.ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, audit, "nothing had changed yet")

	fix = conquest.NewCorrections(&faultyStore{Store: f.store, failClearCompletion: true}, nil, discardLogger())
	_, err = fix.ResetChallenge(f.ctx, ch.ID)
	require.ErrorIs(t, err, errInjected)

	audit, err = f.store.RecentAudit(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, conquest.AuditChallengeReset, audit[0].Action)
	assert.Equal(t, true, audit[0].Metadata["incomplete"])

	p, err := f.store.Progress(f.ctx, ch.ID, f.red.ID)
	require.NoError(t, err)
	assert.Equal(t, conquest.StateNotStarted, p.State)
}
