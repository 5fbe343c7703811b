package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

var allStates = []string{Created, Pending, Confirmed, CheckedIn, Completed, Cancelled, NoShow}

func TestTransitionTable(t *testing.T) {
	allowed := map[[2]string]bool{
		{Created, Confirmed}:   true,
		{Created, Cancelled}:   true,
		{Pending, Confirmed}:   true,
		{Pending, Cancelled}:   true,
		{Confirmed, Completed}: true,
		{Confirmed, Cancelled}: true,
		{Confirmed, NoShow}:    true,
		{CheckedIn, Completed}: true,
	}

	for _, from := range allStates {
		for _, to := range allStates {
			want := allowed[[2]string{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestSelfTransitionNeverValid(t *testing.T) {
	for _, s := range allStates {
		assert.False(t, CanTransition(s, s), s)
		assert.ErrorIs(t, ValidateTransition(s, s), ErrInvalidTransition)
	}
}

func TestTerminalStatesHaveNoTargets(t *testing.T) {
	for _, from := range []string{Completed, Cancelled, NoShow} {
		assert.True(t, IsTerminal(from))
		for _, to := range allStates {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, IsTerminal(Confirmed))
}

func TestValidateTransitionNamesBothStates(t *testing.T) {
	err := ValidateTransition(Completed, Confirmed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Message, Completed)
	assert.Contains(t, appErr.Message, Confirmed)

	assert.NoError(t, ValidateTransition(Pending, Confirmed))
}

func TestCanCheckIn(t *testing.T) {
	assert.True(t, CanCheckIn(Created))
	assert.True(t, CanCheckIn(Confirmed))
	assert.False(t, CanCheckIn(CheckedIn))
	assert.False(t, CanCheckIn(Cancelled))
	assert.False(t, CanCheckIn("Unknown"))
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, "#43A047", ColorFor(Confirmed))
	assert.Equal(t, DefaultColor, ColorFor("Archived"))
	s := &Status{Name: Cancelled}
	assert.Equal(t, ColorFor(Cancelled), s.Color())
}
