package schedule

import (
	"time"

	"github.com/adoptly/adoptly/services/interview-service/internal/civiltime"
)

type State int

const (
	NoWindow State = iota
	AwaitingSelection
	ChoiceDeadlinePassed
	Confirmed
	InterviewDatePassed
)

func (s State) String() string {
	switch s {
	case NoWindow:
		return "no_window"
	case AwaitingSelection:
		return "awaiting_selection"
	case ChoiceDeadlinePassed:
		return "choice_deadline_passed"
	case Confirmed:
		return "confirmed"
	case InterviewDatePassed:
		return "interview_date_passed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DeriveState is the only place schedule state is computed. Expiry is measured
// against the end of the relevant civil day, not the instant itself.
func DeriveState(window *Window, confirmed *time.Time, now time.Time, cal civiltime.Calendar) State {
	if confirmed != nil {
		if cal.AfterEndOfDay(now, *confirmed) {
			return InterviewDatePassed
		}
		return Confirmed
	}
	if window == nil {
		return NoWindow
	}
	if cal.AfterEndOfDay(now, window.End) {
		return ChoiceDeadlinePassed
	}
	return AwaitingSelection
}
