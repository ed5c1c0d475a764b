package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/adoptly/adoptly/libs/clock"
	"github.com/adoptly/adoptly/services/interview-service/internal/calendar"
	"github.com/adoptly/adoptly/services/interview-service/internal/civiltime"
	"github.com/adoptly/adoptly/services/interview-service/internal/inflight"
	"github.com/adoptly/adoptly/services/interview-service/internal/timeslots"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Confirmer persists the chosen interview instant for a submission.
type Confirmer interface {
	ConfirmSchedule(ctx context.Context, submissionID string, at time.Time) error
}

type ConfirmerFunc func(ctx context.Context, submissionID string, at time.Time) error

func (f ConfirmerFunc) ConfirmSchedule(ctx context.Context, submissionID string, at time.Time) error {
	return f(ctx, submissionID, at)
}

// Selection is the adopter's in-progress choice. Either part may be unset.
type Selection struct {
	Day  *civil.Date
	Time *civiltime.TimeOfDay
}

func (s Selection) Complete() bool {
	return s.Day != nil && s.Time != nil
}

type Config struct {
	Clock        clock.Clock
	Calendar     civiltime.Calendar
	Step         int
	DisplayStart civiltime.TimeOfDay
	DisplayEnd   civiltime.TimeOfDay
	Confirmer    Confirmer
	// Guard is optional; without it only commits through this Resolver are serialized.
	Guard inflight.Guard
}

// Resolver owns one submission's window, confirmed instant and selection.
type Resolver struct {
	submissionID string
	window       *Window
	clock        clock.Clock
	cal          civiltime.Calendar
	step         int
	displayStart civiltime.TimeOfDay
	displayEnd   civiltime.TimeOfDay
	confirmer    Confirmer
	guard        inflight.Guard

	mu        sync.Mutex
	confirmed *time.Time
	selection Selection
	inFlight  bool
}

func NewResolver(submissionID string, window *Window, confirmed *time.Time, cfg Config) *Resolver {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Step <= 0 {
		cfg.Step = timeslots.DefaultStep
	}
	if cfg.DisplayStart == 0 && cfg.DisplayEnd == 0 {
		cfg.DisplayStart, cfg.DisplayEnd = timeslots.DefaultStartAt, timeslots.DefaultEndAt
	}
	var c *time.Time
	if confirmed != nil {
		at := *confirmed
		c = &at
	}
	return &Resolver{
		submissionID: submissionID,
		window:       window,
		clock:        cfg.Clock,
		cal:          cfg.Calendar,
		step:         cfg.Step,
		displayStart: cfg.DisplayStart,
		displayEnd:   cfg.DisplayEnd,
		confirmer:    cfg.Confirmer,
		guard:        cfg.Guard,
		confirmed:    c,
	}
}

func (r *Resolver) SubmissionID() string { return r.submissionID }

func (r *Resolver) Window() (Window, bool) {
	if r.window == nil {
		return Window{}, false
	}
	return *r.window, true
}

func (r *Resolver) Step() int { return r.step }

func (r *Resolver) Calendar() civiltime.Calendar { return r.cal }

func (r *Resolver) Confirmed() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.confirmed == nil {
		return time.Time{}, false
	}
	return *r.confirmed, true
}

func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return DeriveState(r.window, r.confirmed, r.clock.Now(), r.cal)
}

// CalendarBounds returns [max(window start date, today), window end date]. The range
// is inverted once today is past the window, which disables every day. ok is false
// when there is no window.
func (r *Resolver) CalendarBounds() (min, max civil.Date, ok bool) {
	return r.calendarBounds(r.clock.Now())
}

func (r *Resolver) calendarBounds(now time.Time) (civil.Date, civil.Date, bool) {
	if r.window == nil {
		return civil.Date{}, civil.Date{}, false
	}
	min := civiltime.MaxDate(r.cal.DateOf(r.window.Start), r.cal.DateOf(now))
	return min, r.cal.DateOf(r.window.End), true
}

// TimeBounds derives the selectable time range for day. On the window's first day
// and on today the later lower bound wins; on the last day the window end caps it.
// Interior days are unbounded.
func (r *Resolver) TimeBounds(day civil.Date) timeslots.Bounds {
	return r.timeBounds(day, r.clock.Now())
}

func (r *Resolver) timeBounds(day civil.Date, now time.Time) timeslots.Bounds {
	var b timeslots.Bounds
	if r.window == nil {
		return b
	}
	lower := func(t civiltime.TimeOfDay) {
		if b.Min == nil || t > *b.Min {
			b.Min = &t
		}
	}
	if day == r.cal.DateOf(r.window.Start) {
		lower(r.cal.TimeOf(r.window.Start))
	}
	if day == r.cal.DateOf(now) {
		lower(r.cal.CeilNow(now, r.step))
	}
	if day == r.cal.DateOf(r.window.End) {
		end := r.cal.TimeOf(r.window.End)
		b.Max = &end
	}
	return b
}

// SelectDay changes the selected day. A selected time the new day cannot admit
// is cleared.
func (r *Resolver) SelectDay(day civil.Date) {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection.Day = &day
	if r.selection.Time != nil && !r.timeBounds(day, now).Admits(*r.selection.Time) {
		r.selection.Time = nil
	}
}

func (r *Resolver) SelectTime(t civiltime.TimeOfDay) error {
	if !t.Valid() {
		return civiltime.ErrInvalidTimeOfDay
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection.Time = &t
	return nil
}

func (r *Resolver) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection = Selection{}
}

func (r *Resolver) ClearTime() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection.Time = nil
}

func (r *Resolver) Selection() Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection
}

// Validate runs the commit checks for sel without calling the collaborator and
// returns the candidate instant.
func (r *Resolver) Validate(sel Selection) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.validateLocked(sel, r.clock.Now())
}

// validateLocked checks, in order: completeness, the window, the past, the state.
func (r *Resolver) validateLocked(sel Selection, now time.Time) (time.Time, error) {
	if !sel.Complete() {
		return time.Time{}, ErrSelectionIncomplete
	}
	if !sel.Time.Valid() {
		return time.Time{}, fmt.Errorf("%w: %w", ErrSelectionIncomplete, civiltime.ErrInvalidTimeOfDay)
	}
	if r.window == nil {
		return time.Time{}, ErrNotAwaitingSelection
	}

	at := r.cal.Combine(*sel.Day, *sel.Time)
	if !r.window.Contains(at) {
		return time.Time{}, ErrOutsideWindow
	}
	// Slots below the rounded-up "now" are not offered on today, so they are past too.
	if at.Before(now) || (*sel.Day == r.cal.DateOf(now) && *sel.Time < r.cal.CeilNow(now, r.step)) {
		return time.Time{}, ErrInPast
	}
	if DeriveState(r.window, r.confirmed, now, r.cal) != AwaitingSelection {
		return time.Time{}, ErrNotAwaitingSelection
	}
	return at, nil
}

// CanConfirm reports whether the confirm action should be offered right now.
func (r *Resolver) CanConfirm() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight {
		return false
	}
	_, err := r.validateLocked(r.selection, r.clock.Now())
	return err == nil
}

// Confirm commits the current selection.
func (r *Resolver) Confirm(ctx context.Context) (time.Time, error) {
	return r.ConfirmSelection(ctx, r.Selection())
}

// ConfirmSelection validates sel and hands the instant to the collaborator exactly
// once. A collaborator failure leaves state and selection untouched and is not
// retried.
func (r *Resolver) ConfirmSelection(ctx context.Context, sel Selection) (time.Time, error) {
	ctx, span := otel.Tracer("schedule").Start(ctx, "schedule.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("submission_id", r.submissionID))

	at, err := r.beginCommit(sel)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return time.Time{}, err
	}
	defer r.endCommit()

	if r.guard != nil {
		release, err := r.guard.Acquire(ctx, r.submissionID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, inflight.ErrInFlight) {
				return time.Time{}, ErrCommitInFlight
			}
			return time.Time{}, fmt.Errorf("%w: %w", ErrConfirmFailed, err)
		}
		defer release(ctx)
	}

	if r.confirmer == nil {
		return time.Time{}, fmt.Errorf("%w: no collaborator configured", ErrConfirmFailed)
	}
	if err := r.confirmer.ConfirmSchedule(ctx, r.submissionID, at); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm failed")
		return time.Time{}, fmt.Errorf("%w: %w", ErrConfirmFailed, err)
	}

	r.mu.Lock()
	r.confirmed = &at
	r.selection = Selection{}
	r.mu.Unlock()
	span.SetAttributes(attribute.String("selected_schedule", at.Format(time.RFC3339)))
	return at, nil
}

func (r *Resolver) beginCommit(sel Selection) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight {
		return time.Time{}, ErrCommitInFlight
	}
	at, err := r.validateLocked(sel, r.clock.Now())
	if err != nil {
		return time.Time{}, err
	}
	r.inFlight = true
	return at, nil
}

func (r *Resolver) endCommit() {
	r.mu.Lock()
	r.inFlight = false
	r.mu.Unlock()
}

// Slots discretizes the display range of day against its time bounds. Every slot
// is disabled when day itself cannot be picked.
func (r *Resolver) Slots(day civil.Date) timeslots.Grid {
	now := r.clock.Now()
	grid := timeslots.Build(timeslots.Options{
		StartAt: r.displayStart,
		EndAt:   r.displayEnd,
		Step:    r.step,
		Bounds:  r.timeBounds(day, now),
		Now:     r.cal.TimeOf(now),
	})
	if !r.daySelectable(day, now) {
		return grid.Disabled()
	}
	return grid
}

func (r *Resolver) daySelectable(day civil.Date, now time.Time) bool {
	r.mu.Lock()
	state := DeriveState(r.window, r.confirmed, now, r.cal)
	r.mu.Unlock()
	if state != AwaitingSelection {
		return false
	}
	min, max, ok := r.calendarBounds(now)
	return ok && civiltime.InRange(day, &min, &max)
}

// Grid builds the month grid around anchor with today marked. Without a window
// every day is disabled.
func (r *Resolver) Grid(anchor civil.Date) []calendar.Day {
	now := r.clock.Now()
	var days []calendar.Day
	if min, max, ok := r.calendarBounds(now); ok {
		days = calendar.Build(anchor, &min, &max)
	} else {
		days = calendar.Build(anchor, nil, nil)
		for i := range days {
			days[i].Disabled = true
		}
	}
	calendar.MarkToday(days, r.cal.DateOf(now))
	return days
}

// JumpToNow selects day at the next step after now. It is only available on today
// and when that slot would pass commit validation; otherwise the selected time is
// cleared.
func (r *Resolver) JumpToNow(day civil.Date) (civiltime.TimeOfDay, bool) {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if day != r.cal.DateOf(now) {
		r.selection.Time = nil
		return 0, false
	}
	target, ok := timeslots.JumpToNow(r.cal.CeilNow(now, 1), r.step, r.timeBounds(day, now))
	if ok {
		_, err := r.validateLocked(Selection{Day: &day, Time: &target}, now)
		ok = err == nil
	}
	if !ok {
		r.selection.Time = nil
		return 0, false
	}
	r.selection = Selection{Day: &day, Time: &target}
	return target, true
}
