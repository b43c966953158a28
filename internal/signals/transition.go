package signals

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/readiness-engine/internal/model"
)

// ErrInvalidTransition is returned for a resolution change the lifecycle
// does not allow.
var ErrInvalidTransition = eris.New("signals: invalid resolution transition")

var transitions = map[model.ResolutionStatus][]model.ResolutionStatus{
	model.StatusOpen:         {model.StatusAcknowledged, model.StatusDismissed, model.StatusResolved},
	model.StatusAcknowledged: {model.StatusDismissed, model.StatusResolved},
	model.StatusDismissed:    {model.StatusOpen},
	model.StatusResolved:     {model.StatusOpen},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to model.ResolutionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns a copy of s moved to status to. Signals are never
// deleted; dismissing or resolving only lowers their rank.
func Transition(s model.Signal, to model.ResolutionStatus) (model.Signal, error) {
	if !to.Valid() {
		return s, eris.Wrapf(model.ErrUnknownStatus, "signals: transition %s to %q", s.ID, to)
	}
	if !CanTransition(s.ResolutionStatus, to) {
		return s, eris.Wrapf(ErrInvalidTransition, "signal %s: %s -> %s", s.ID, s.ResolutionStatus, to)
	}
	s.ResolutionStatus = to
	return s, nil
}
