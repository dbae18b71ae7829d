package conquest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/playperu/pubconquest/internal/conquest"
)

func TestTransition(t *testing.T) {
	pass, fail := true, false

	tests := []struct {
		from    conquest.ChallengeState
		step    conquest.Step
		outcome *bool
		want    conquest.ChallengeState
		err     error
	}{
		{conquest.StateNotStarted, conquest.StepEntry, nil, conquest.StateEntryPaid, nil},
		{conquest.StateNotStarted, conquest.StepResult, &pass, conquest.StateNotStarted, conquest.ErrEntryRequired},
		{conquest.StateEntryPaid, conquest.StepEntry, nil, conquest.StateEntryPaid, conquest.ErrEntryAlreadyPaid},
		{conquest.StateEntryPaid, conquest.StepResult, nil, conquest.StateEntryPaid, conquest.ErrOutcomeRequired},
		{conquest.StateEntryPaid, conquest.StepResult, &pass, conquest.StatePassed, nil},
		{conquest.StateEntryPaid, conquest.StepResult, &fail, conquest.StateFailed, nil},
		{conquest.StateFailed, conquest.StepEntry, nil, conquest.StateEntryPaid, nil},
		{conquest.StateFailed, conquest.StepResult, &pass, conquest.StateFailed, conquest.ErrEntryRequired},
		{conquest.StatePassed, conquest.StepEntry, nil, conquest.StatePassed, conquest.ErrAlreadyCompleted},
		{conquest.StatePassed, conquest.StepResult, &pass, conquest.StatePassed, conquest.ErrAlreadyCompleted},
		{conquest.StateNotStarted, "skip", nil, conquest.StateNotStarted, conquest.ErrInvalidStep},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.step), func(t *testing.T) {
			got, err := tt.from.Transition(tt.step, tt.outcome)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAward(t *testing.T) {
	got, err := conquest.StateNotAwarded.Award()
	assert.NoError(t, err)
	assert.Equal(t, conquest.StateAwarded, got)
	assert.True(t, got.Terminal())

	_, err = conquest.StateAwarded.Award()
	assert.ErrorIs(t, err, conquest.ErrAlreadyCompleted)
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, conquest.ClassPrecondition, conquest.ClassOf(conquest.ErrGameInactive))
	assert.Equal(t, conquest.ClassContention, conquest.ClassOf(conquest.ErrConflict))
	assert.Equal(t, conquest.ClassPartial, conquest.ClassOf(conquest.ErrLockFailed))
	assert.Equal(t, conquest.ClassInternal, conquest.ClassOf(errInjected))
}
