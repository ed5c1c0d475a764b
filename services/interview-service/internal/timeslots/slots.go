// Package timeslots discretizes a day's display range into selectable interview times.
package timeslots

import (
	"github.com/adoptly/adoptly/services/interview-service/internal/civiltime"
)

const (
	DefaultStep = 30
)

var (
	DefaultStartAt = civiltime.NewTimeOfDay(7, 0)
	DefaultEndAt   = civiltime.NewTimeOfDay(22, 0)
)

// Bounds is the validation range of a day. A nil side is unbounded.
type Bounds struct {
	Min *civiltime.TimeOfDay
	Max *civiltime.TimeOfDay
}

// Resolve applies the [00:00,23:59] defaults and drops a degenerate pair (max <= min)
// so that it never yields zero usable slots.
func (b Bounds) Resolve() (min, max civiltime.TimeOfDay) {
	min, max = civiltime.Midnight, civiltime.LastMinute
	if b.Min != nil {
		min = *b.Min
	}
	if b.Max != nil {
		max = *b.Max
	}
	if max <= min {
		return civiltime.Midnight, civiltime.LastMinute
	}
	return min, max
}

// Admits reports whether t satisfies the raw bounds, without the degenerate-pair
// fallback applied by Resolve.
func (b Bounds) Admits(t civiltime.TimeOfDay) bool {
	if b.Min != nil && t < *b.Min {
		return false
	}
	if b.Max != nil && t > *b.Max {
		return false
	}
	return true
}

// Contains reports whether t lies in the resolved bounds.
func (b Bounds) Contains(t civiltime.TimeOfDay) bool {
	min, max := b.Resolve()
	return t >= min && t <= max
}

type Options struct {
	// StartAt and EndAt bound which slots are shown at all.
	StartAt civiltime.TimeOfDay
	EndAt   civiltime.TimeOfDay
	Step    int
	Bounds  Bounds
	Now     civiltime.TimeOfDay
}

func (o Options) withDefaults() Options {
	if o.Step <= 0 {
		o.Step = DefaultStep
	}
	if o.StartAt == 0 && o.EndAt == 0 {
		o.StartAt, o.EndAt = DefaultStartAt, DefaultEndAt
	}
	return o
}

type Slot struct {
	Time      civiltime.TimeOfDay `json:"time"`
	Enabled   bool                `json:"enabled"`
	IsCurrent bool                `json:"is_current"`
}

type HourGroup struct {
	Hour  string `json:"hour"`
	Slots []Slot `json:"slots"`
}

// Grid is the ordered hour-grouped slot list for one day.
type Grid struct {
	Step  int         `json:"step_minutes"`
	Hours []HourGroup `json:"hours"`
}

// Build generates slots from the step multiple at or below StartAt through EndAt
// inclusive. Slots are enabled when inside the resolved bounds; IsCurrent marks the
// slots sharing Now's hour and never affects enablement.
func Build(opts Options) Grid {
	opts = opts.withDefaults()
	min, max := opts.Bounds.Resolve()

	grid := Grid{Step: opts.Step}
	for t := opts.StartAt.FloorToStep(opts.Step); t <= opts.EndAt && t.Valid(); t += civiltime.TimeOfDay(opts.Step) {
		slot := Slot{
			Time:      t,
			Enabled:   t >= min && t <= max,
			IsCurrent: t.Hour() == opts.Now.Hour(),
		}
		label := t.HourLabel()
		if n := len(grid.Hours); n == 0 || grid.Hours[n-1].Hour != label {
			grid.Hours = append(grid.Hours, HourGroup{Hour: label})
		}
		last := &grid.Hours[len(grid.Hours)-1]
		last.Slots = append(last.Slots, slot)
	}
	return grid
}

// ByHour is a map view keyed by hour label.
func (g Grid) ByHour() map[string][]Slot {
	out := make(map[string][]Slot, len(g.Hours))
	for _, h := range g.Hours {
		out[h.Hour] = h.Slots
	}
	return out
}

func (g Grid) Lookup(t civiltime.TimeOfDay) (Slot, bool) {
	for _, h := range g.Hours {
		if h.Hour != t.HourLabel() {
			continue
		}
		for _, s := range h.Slots {
			if s.Time == t {
				return s, true
			}
		}
	}
	return Slot{}, false
}

// Disabled returns a copy of g with every slot disabled, for days that cannot be
// picked at all.
func (g Grid) Disabled() Grid {
	out := Grid{Step: g.Step, Hours: make([]HourGroup, len(g.Hours))}
	for i, h := range g.Hours {
		slots := make([]Slot, len(h.Slots))
		for j, s := range h.Slots {
			s.Enabled = false
			slots[j] = s
		}
		out.Hours[i] = HourGroup{Hour: h.Hour, Slots: slots}
	}
	return out
}

// EnabledCount is the number of selectable slots in the grid.
func (g Grid) EnabledCount() int {
	n := 0
	for _, h := range g.Hours {
		for _, s := range h.Slots {
			if s.Enabled {
				n++
			}
		}
	}
	return n
}
