package timeslots

import "github.com/adoptly/adoptly/services/interview-service/internal/civiltime"

// JumpToNow returns now rounded up to the next step. The action is unavailable
// (ok=false) when the rounded slot leaves the day or falls outside bounds.
func JumpToNow(now civiltime.TimeOfDay, step int, bounds Bounds) (civiltime.TimeOfDay, bool) {
	if step <= 0 {
		step = DefaultStep
	}
	target := now.CeilToStep(step)
	if !target.Valid() || !bounds.Contains(target) {
		return 0, false
	}
	return target, true
}
