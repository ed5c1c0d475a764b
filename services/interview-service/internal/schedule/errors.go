package schedule

import "errors"

var (
	ErrSelectionIncomplete  = errors.New("select both a day and a time")
	ErrOutsideWindow        = errors.New("selected time is outside the availability window")
	ErrInPast               = errors.New("selected time is in the past")
	ErrNotAwaitingSelection = errors.New("interview is not awaiting a selection")
	ErrCommitInFlight       = errors.New("a confirmation is already in progress")
	ErrConfirmFailed        = errors.New("confirm schedule failed")
)

// IsRangeError reports whether err rejects the selected instant itself.
func IsRangeError(err error) bool {
	return errors.Is(err, ErrOutsideWindow) || errors.Is(err, ErrInPast)
}
