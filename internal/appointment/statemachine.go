package appointment

import (
	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

// Action is a caller-visible transition request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCheckIn Action = "check_in"
	ActionCancel  Action = "cancel"
)

var actionTargets = map[Action]Status{
	ActionApprove: StatusApproved,
	ActionReject:  StatusRejected,
	ActionCheckIn: StatusCheckedIn,
	ActionCancel:  StatusCancelled,
}

// Target maps an action to the status it requests.
func (a Action) Target() (Status, error) {
	to, ok := actionTargets[a]
	if !ok {
		return "", apperr.Validation("unknown action " + string(a)).With("action", string(a))
	}
	return to, nil
}

var allowed = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:  {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an InvalidTransition error naming both states
// unless from -> to is in the table.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return apperr.InvalidTransition(string(from), string(to))
	}
	return nil
}
