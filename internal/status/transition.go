package status

import (
	"fmt"
	"slices"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

// transitions lists the allowed targets for every non-terminal state.
var transitions = map[string][]string{
	Created:   {Confirmed, Cancelled},
	Pending:   {Confirmed, Cancelled},
	Confirmed: {Completed, Cancelled, NoShow},
	CheckedIn: {Completed},
}

// CanTransition reports whether a reservation in state from may move to state to.
func CanTransition(from, to string) bool {
	return slices.Contains(transitions[from], to)
}

// ValidateTransition returns ErrInvalidTransition naming both states when the move is not allowed.
func ValidateTransition(from, to string) error {
	if CanTransition(from, to) {
		return nil
	}
	return apperror.Wrap(ErrInvalidTransition, ErrInvalidTransition.Code,
		fmt.Sprintf("cannot change status from %q to %q", from, to))
}

// IsTerminal reports whether name has no outbound transitions.
func IsTerminal(name string) bool {
	return name == Completed || name == Cancelled || name == NoShow
}

// CanCheckIn reports whether ticket validation may move a reservation in state name to Checked-In.
func CanCheckIn(name string) bool {
	switch name {
	case Created, Pending, Confirmed:
		return true
	}
	return false
}

// IsKnown reports whether name is one of the lifecycle states.
func IsKnown(name string) bool {
	_, ok := descriptions[name]
	return ok
}
