package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/adoptly/adoptly/libs/auth"
	"github.com/adoptly/adoptly/libs/clock"
	"github.com/adoptly/adoptly/libs/httpx"
	"github.com/adoptly/adoptly/services/interview-service/internal/calendar"
	"github.com/adoptly/adoptly/services/interview-service/internal/civiltime"
	"github.com/adoptly/adoptly/services/interview-service/internal/inflight"
	"github.com/adoptly/adoptly/services/interview-service/internal/model"
	"github.com/adoptly/adoptly/services/interview-service/internal/schedule"
	"github.com/adoptly/adoptly/services/interview-service/internal/timeslots"
	"github.com/go-playground/validator/v10"
)

// SubmissionStore is where submissions live: Postgres or the remote adoption API.
type SubmissionStore interface {
	GetSubmission(ctx context.Context, id string) (model.Submission, error)
	SelectSchedule(ctx context.Context, id string, at time.Time) error
}

type Options struct {
	Clock        clock.Clock
	Calendar     civiltime.Calendar
	Step         int
	DisplayStart civiltime.TimeOfDay
	DisplayEnd   civiltime.TimeOfDay
	// Guard serializes commits per submission; defaults to a process-local guard.
	Guard inflight.Guard
}

type InterviewHandler struct {
	store    SubmissionStore
	logger   *slog.Logger
	opts     Options
	validate *validator.Validate
}

const (
	minStep = 5
	maxStep = 120
)

func NewInterviewHandler(store SubmissionStore, logger *slog.Logger, opts Options) *InterviewHandler {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Step <= 0 {
		opts.Step = timeslots.DefaultStep
	}
	if opts.Guard == nil {
		opts.Guard = inflight.NewMemory()
	}
	return &InterviewHandler{
		store:    store,
		logger:   logger,
		opts:     opts,
		validate: newValidator(),
	}
}

type windowView struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Method       string    `json:"method"`
	MethodIsLink bool      `json:"method_is_link"`
}

type dateBoundsView struct {
	MinDate civil.Date `json:"min_date"`
	MaxDate civil.Date `json:"max_date"`
}

type interviewResponse struct {
	SubmissionID     string          `json:"submission_id"`
	Status           string          `json:"status"`
	State            schedule.State  `json:"state"`
	Timezone         string          `json:"timezone"`
	Window           *windowView     `json:"window"`
	SelectedSchedule *time.Time      `json:"selected_schedule"`
	CalendarBounds   *dateBoundsView `json:"calendar_bounds,omitempty"`
	CanSelect        bool            `json:"can_select"`
}

type calendarResponse struct {
	SubmissionID string           `json:"submission_id"`
	State        schedule.State   `json:"state"`
	Month        string           `json:"month"`
	PrevMonth    string           `json:"prev_month"`
	NextMonth    string           `json:"next_month"`
	Bounds       *dateBoundsView  `json:"bounds,omitempty"`
	Weeks        [][]calendar.Day `json:"weeks"`
}

type timeBoundsView struct {
	Min *civiltime.TimeOfDay `json:"min"`
	Max *civiltime.TimeOfDay `json:"max"`
}

type slotsResponse struct {
	SubmissionID string                `json:"submission_id"`
	State        schedule.State        `json:"state"`
	Date         civil.Date            `json:"date"`
	StepMinutes  int                   `json:"step_minutes"`
	Bounds       timeBoundsView        `json:"bounds"`
	Hours        []timeslots.HourGroup `json:"hours"`
	NowSlot      *civiltime.TimeOfDay  `json:"now_slot"`
}

type confirmRequest struct {
	SubmissionID string `json:"submission_id" validate:"required,max=64"`
	Date         string `json:"date" validate:"omitempty,civildate"`
	Time         string `json:"time" validate:"omitempty,hhmm"`
	// Step must match the one the slots were fetched with; 0 means the default.
	Step         int    `json:"step" validate:"omitempty,min=5,max=120"`
}

type confirmResponse struct {
	SubmissionID     string         `json:"submission_id"`
	State            schedule.State `json:"state"`
	SelectedSchedule time.Time      `json:"selected_schedule"`
}

func (h *InterviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := submissionIDParam(w, r)
	if !ok {
		return
	}
	res, sub, ok := h.load(w, r, id, h.opts.Step)
	if !ok {
		return
	}

	state := res.State()
	resp := interviewResponse{
		SubmissionID: id,
		Status:       sub.Status,
		State:        state,
		Timezone:     h.opts.Calendar.Location().String(),
		CanSelect:    state == schedule.AwaitingSelection,
	}
	if win, ok := res.Window(); ok {
		resp.Window = &windowView{
			Start:        h.opts.Calendar.In(win.Start),
			End:          h.opts.Calendar.In(win.End),
			Method:       win.Method,
			MethodIsLink: win.MethodIsLink(),
		}
	}
	if at, ok := res.Confirmed(); ok {
		local := h.opts.Calendar.In(at)
		resp.SelectedSchedule = &local
	}
	if state == schedule.AwaitingSelection {
		resp.CalendarBounds = dateBounds(res)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *InterviewHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := submissionIDParam(w, r)
	if !ok {
		return
	}
	res, _, ok := h.load(w, r, id, h.opts.Step)
	if !ok {
		return
	}

	anchor := h.opts.Calendar.DateOf(h.opts.Clock.Now())
	if min, _, ok := res.CalendarBounds(); ok && res.State() == schedule.AwaitingSelection {
		anchor = min
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		month, err := calendar.ParseMonth(raw)
		if err != nil {
			http.Error(w, "invalid month (expected YYYY-MM)", http.StatusBadRequest)
			return
		}
		anchor = month
	}

	anchor = calendar.FirstOfMonth(anchor)
	httpx.WriteJSON(w, http.StatusOK, calendarResponse{
		SubmissionID: id,
		State:        res.State(),
		Month:        monthLabel(anchor),
		PrevMonth:    monthLabel(calendar.ShiftMonth(anchor, -1)),
		NextMonth:    monthLabel(calendar.ShiftMonth(anchor, 1)),
		Bounds:       dateBounds(res),
		Weeks:        calendar.Weeks(res.Grid(anchor)),
	})
}

func (h *InterviewHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := submissionIDParam(w, r)
	if !ok {
		return
	}
	day, err := civil.ParseDate(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		http.Error(w, "date required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	step := h.opts.Step
	if raw := strings.TrimSpace(r.URL.Query().Get("step")); raw != "" {
		step, err = strconv.Atoi(raw)
		if err != nil || step < minStep || step > maxStep {
			http.Error(w, fmt.Sprintf("step must be between %d and %d minutes", minStep, maxStep), http.StatusBadRequest)
			return
		}
	}
	res, _, ok := h.load(w, r, id, step)
	if !ok {
		return
	}

	grid := res.Slots(day)
	bounds := res.TimeBounds(day)
	resp := slotsResponse{
		SubmissionID: id,
		State:        res.State(),
		Date:         day,
		StepMinutes:  grid.Step,
		Bounds:       timeBoundsView{Min: bounds.Min, Max: bounds.Max},
		Hours:        grid.Hours,
	}
	if now, ok := res.JumpToNow(day); ok {
		resp.NowSlot = &now
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *InterviewHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SubmissionID = strings.TrimSpace(req.SubmissionID)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "invalid field: "+firstInvalidField(err), http.StatusBadRequest)
		return
	}

	step := h.opts.Step
	if req.Step != 0 {
		step = req.Step
	}
	res, _, ok := h.load(w, r, req.SubmissionID, step)
	if !ok {
		return
	}

	var sel schedule.Selection
	if req.Date != "" {
		day, _ := civil.ParseDate(req.Date)
		sel.Day = &day
	}
	if req.Time != "" {
		tod, _ := civiltime.ParseTimeOfDay(req.Time)
		sel.Time = &tod
	}

	at, err := res.ConfirmSelection(r.Context(), sel)
	if err != nil {
		status, msg := confirmErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("confirm schedule failed", "submission_id", req.SubmissionID, "err", err)
		} else {
			h.logger.Info("confirm schedule rejected", "submission_id", req.SubmissionID, "reason", msg)
		}
		http.Error(w, msg, status)
		return
	}

	attrs := []any{
		"submission_id", req.SubmissionID,
		"selected_schedule", at.UTC().Format(time.RFC3339),
		"request_id", httpx.RequestIDFromContext(r.Context()),
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		attrs = append(attrs, "adopter", claims.Sub)
	}
	h.logger.Info("interview scheduled", attrs...)
	httpx.WriteJSON(w, http.StatusOK, confirmResponse{
		SubmissionID:     req.SubmissionID,
		State:            res.State(),
		SelectedSchedule: h.opts.Calendar.In(at),
	})
}

// load fetches the submission and builds its Resolver, writing the error
// response itself when it returns ok=false.
func (h *InterviewHandler) load(w http.ResponseWriter, r *http.Request, id string, step int) (*schedule.Resolver, model.Submission, bool) {
	sub, err := h.store.GetSubmission(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "submission not found", http.StatusNotFound)
			return nil, model.Submission{}, false
		}
		h.logger.Error("load submission failed", "submission_id", id, "err", err)
		http.Error(w, "failed to load submission", http.StatusBadGateway)
		return nil, model.Submission{}, false
	}
	res, err := h.resolverFor(sub, step)
	if err != nil {
		h.logger.Warn("rejecting submission with inverted interview window", "submission_id", id)
		http.Error(w, "interview window is invalid", http.StatusUnprocessableEntity)
		return nil, model.Submission{}, false
	}
	return res, sub, true
}

func (h *InterviewHandler) resolverFor(sub model.Submission, step int) (*schedule.Resolver, error) {
	var (
		window    *schedule.Window
		confirmed *time.Time
	)
	if iv := sub.Interview; iv != nil {
		w, err := schedule.NewWindow(iv.AvailableFrom, iv.AvailableTo, iv.Method)
		if err != nil {
			return nil, err
		}
		window = &w
		confirmed = iv.SelectedSchedule
	}
	return schedule.NewResolver(sub.ID, window, confirmed, schedule.Config{
		Clock:        h.opts.Clock,
		Calendar:     h.opts.Calendar,
		Step:         step,
		DisplayStart: h.opts.DisplayStart,
		DisplayEnd:   h.opts.DisplayEnd,
		Confirmer:    schedule.ConfirmerFunc(h.store.SelectSchedule),
		Guard:        h.opts.Guard,
	}), nil
}

func confirmErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, schedule.ErrSelectionIncomplete):
		return http.StatusBadRequest, schedule.ErrSelectionIncomplete.Error()
	case errors.Is(err, schedule.ErrOutsideWindow):
		return http.StatusUnprocessableEntity, schedule.ErrOutsideWindow.Error()
	case errors.Is(err, schedule.ErrInPast):
		return http.StatusUnprocessableEntity, schedule.ErrInPast.Error()
	case errors.Is(err, schedule.ErrNotAwaitingSelection):
		return http.StatusConflict, schedule.ErrNotAwaitingSelection.Error()
	case errors.Is(err, schedule.ErrCommitInFlight):
		return http.StatusConflict, schedule.ErrCommitInFlight.Error()
	case errors.Is(err, model.ErrAlreadyConfirmed):
		return http.StatusConflict, model.ErrAlreadyConfirmed.Error()
	case errors.Is(err, model.ErrScheduleRejected):
		return http.StatusUnprocessableEntity, model.ErrScheduleRejected.Error()
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "submission not found"
	default:
		return http.StatusBadGateway, "failed to save interview schedule, please try again"
	}
}

func submissionIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.URL.Query().Get("submission_id"))
	if id == "" || len(id) > 64 {
		http.Error(w, "submission_id required", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func dateBounds(res *schedule.Resolver) *dateBoundsView {
	min, max, ok := res.CalendarBounds()
	if !ok {
		return nil
	}
	return &dateBoundsView{MinDate: min, MaxDate: max}
}

func monthLabel(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}
