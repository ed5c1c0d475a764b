package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adoptly/adoptly/libs/clock"
	"github.com/adoptly/adoptly/services/interview-service/internal/civiltime"
	"github.com/adoptly/adoptly/services/interview-service/internal/model"
)

var testCal = civiltime.FixedOffset(7 * 60)

func localTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation("2006-01-02T15:04", s, testCal.Location())
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

type fakeStore struct {
	mu        sync.Mutex
	subs      map[string]model.Submission
	selectErr error
	selected  []time.Time
}

func (s *fakeStore) GetSubmission(_ context.Context, id string) (model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return model.Submission{}, model.ErrNotFound
	}
	if sub.Interview != nil {
		iv := *sub.Interview
		sub.Interview = &iv
	}
	return sub, nil
}

func (s *fakeStore) SelectSchedule(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectErr != nil {
		return s.selectErr
	}
	sub := s.subs[id]
	if sub.Interview.SelectedSchedule != nil {
		return model.ErrAlreadyConfirmed
	}
	iv := *sub.Interview
	iv.SelectedSchedule = &at
	sub.Interview = &iv
	s.subs[id] = sub
	s.selected = append(s.selected, at)
	return nil
}

func newTestHandler(t *testing.T, now string) (*InterviewHandler, *fakeStore) {
	t.Helper()
	store := &fakeStore{subs: map[string]model.Submission{
		"sub-1": {
			ID:     "sub-1",
			Status: "interview",
			Interview: &model.Interview{
				AvailableFrom: localTime(t, "2025-01-10T09:00"),
				AvailableTo:   localTime(t, "2025-01-12T15:00"),
				Method:        "https://meet.example.com/abc",
			},
		},
		"no-window": {ID: "no-window", Status: "submitted"},
		"inverted": {
			ID: "inverted",
			Interview: &model.Interview{
				AvailableFrom: localTime(t, "2025-01-12T09:00"),
				AvailableTo:   localTime(t, "2025-01-10T15:00"),
			},
		},
	}}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h := NewInterviewHandler(store, logger, Options{
		Clock:    clock.NewFixed(localTime(t, now)),
		Calendar: testCal,
		Step:     30,
	})
	return h, store
}

func get(t *testing.T, handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func postConfirm(t *testing.T, h *InterviewHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Confirm(rec, httptest.NewRequest(http.MethodPost, "/api/v1/interview/confirm", bytes.NewBufferString(body)))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestGetInterview(t *testing.T) {
	h, _ := newTestHandler(t, "2025-01-10T08:00")

	rec := get(t, h.Get, "/api/v1/interview?submission_id=sub-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		State  string `json:"state"`
		Window struct {
			MethodIsLink bool `json:"method_is_link"`
		} `json:"window"`
		CalendarBounds struct {
			MinDate string `json:"min_date"`
			MaxDate string `json:"max_date"`
		} `json:"calendar_bounds"`
		CanSelect bool `json:"can_select"`
	}
	decode(t, rec, &resp)
	if resp.State != "awaiting_selection" || !resp.CanSelect {
		t.Fatalf("expected awaiting_selection, got %+v", resp)
	}
	if !resp.Window.MethodIsLink {
		t.Fatal("expected method to be classified as link")
	}
	if resp.CalendarBounds.MinDate != "2025-01-10" || resp.CalendarBounds.MaxDate != "2025-01-12" {
		t.Fatalf("unexpected bounds: %+v", resp.CalendarBounds)
	}
}

func TestGetInterviewErrors(t *testing.T) {
	h, _ := newTestHandler(t, "2025-01-10T08:00")

	if rec := get(t, h.Get, "/api/v1/interview"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without id, got %d", rec.Code)
	}
	if rec := get(t, h.Get, "/api/v1/interview?submission_id=missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := get(t, h.Get, "/api/v1/interview?submission_id=inverted"); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for inverted window, got %d", rec.Code)
	}

	rec := get(t, h.Get, "/api/v1/interview?submission_id=no-window")
	if !strings.Contains(rec.Body.String(), `"state":"no_window"`) {
		t.Fatalf("expected no_window state, got %s", rec.Body.String())
	}
}

func TestCalendar(t *testing.T) {
	h, _ := newTestHandler(t, "2025-01-10T08:00")

	rec := get(t, h.Calendar, "/api/v1/interview/calendar?submission_id=sub-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Month     string `json:"month"`
		PrevMonth string `json:"prev_month"`
		NextMonth string `json:"next_month"`
		Weeks     [][]struct {
			Date     string `json:"date"`
			Disabled bool   `json:"disabled"`
			Today    bool   `json:"today"`
		} `json:"weeks"`
	}
	decode(t, rec, &resp)
	if resp.Month != "2025-01" || resp.PrevMonth != "2024-12" || resp.NextMonth != "2025-02" {
		t.Fatalf("unexpected month navigation: %+v", resp)
	}
	if len(resp.Weeks) != 5 || resp.Weeks[0][0].Date != "2024-12-30" {
		t.Fatalf("expected 5 weeks starting 2024-12-30, got %d weeks", len(resp.Weeks))
	}
	enabled := 0
	for _, week := range resp.Weeks {
		for _, d := range week {
			if !d.Disabled {
				enabled++
			}
		}
	}
	if enabled != 3 {
		t.Fatalf("expected 3 selectable days, got %d", enabled)
	}

	if rec := get(t, h.Calendar, "/api/v1/interview/calendar?submission_id=sub-1&month=2025-13"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad month, got %d", rec.Code)
	}
}

func TestSlots(t *testing.T) {
	h, _ := newTestHandler(t, "2025-01-10T08:00")

	rec := get(t, h.Slots, "/api/v1/interview/slots?submission_id=sub-1&date=2025-01-10")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		StepMinutes int `json:"step_minutes"`
		Bounds      struct {
			Min *string `json:"min"`
			Max *string `json:"max"`
		} `json:"bounds"`
		Hours []struct {
			Hour  string `json:"hour"`
			Slots []struct {
				Time    string `json:"time"`
				Enabled bool   `json:"enabled"`
			} `json:"slots"`
		} `json:"hours"`
		NowSlot *string `json:"now_slot"`
	}
	decode(t, rec, &resp)
	if resp.StepMinutes != 30 {
		t.Fatalf("expected step 30, got %d", resp.StepMinutes)
	}
	if resp.Bounds.Min == nil || *resp.Bounds.Min != "09:00" || resp.Bounds.Max != nil {
		t.Fatalf("unexpected bounds: %+v", resp.Bounds)
	}
	if resp.NowSlot != nil {
		t.Fatalf("expected no now slot before the window opens, got %s", *resp.NowSlot)
	}
	enabled := map[string]bool{}
	for _, hour := range resp.Hours {
		for _, s := range hour.Slots {
			enabled[s.Time] = s.Enabled
		}
	}
	if enabled["08:30"] || !enabled["09:00"] {
		t.Fatalf("expected 08:30 disabled and 09:00 enabled, got %v / %v", enabled["08:30"], enabled["09:00"])
	}

	if rec := get(t, h.Slots, "/api/v1/interview/slots?submission_id=sub-1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without date, got %d", rec.Code)
	}
	if rec := get(t, h.Slots, "/api/v1/interview/slots?submission_id=sub-1&date=2025-01-10&step=1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for tiny step, got %d", rec.Code)
	}
	rec = get(t, h.Slots, "/api/v1/interview/slots?submission_id=sub-1&date=2025-01-11&step=15")
	if !strings.Contains(rec.Body.String(), `"step_minutes":15`) {
		t.Fatalf("expected step override, got %s", rec.Body.String())
	}
}

func TestSlotsNowShortcut(t *testing.T) {
	h, _ := newTestHandler(t, "2025-01-11T10:07")
	rec := get(t, h.Slots, "/api/v1/interview/slots?submission_id=sub-1&date=2025-01-11")
	if !strings.Contains(rec.Body.String(), `"now_slot":"10:30"`) {
		t.Fatalf("expected now slot 10:30, got %s", rec.Body.String())
	}
}

func TestConfirm(t *testing.T) {
	h, store := newTestHandler(t, "2025-01-10T08:00")

	rec := postConfirm(t, h, `{"submission_id":"sub-1","date":"2025-01-11","time":"10:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"state":"confirmed"`) {
		t.Fatalf("expected confirmed state, got %s", rec.Body.String())
	}
	if len(store.selected) != 1 || !store.selected[0].Equal(localTime(t, "2025-01-11T10:00")) {
		t.Fatalf("expected one stored instant 2025-01-11T10:00, got %v", store.selected)
	}

	rec = postConfirm(t, h, `{"submission_id":"sub-1","date":"2025-01-12","time":"10:00"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second confirm, got %d", rec.Code)
	}
	if len(store.selected) != 1 {
		t.Fatalf("expected store untouched by second confirm, got %d writes", len(store.selected))
	}
}

func TestConfirmSlotFromCustomStep(t *testing.T) {
	h, store := newTestHandler(t, "2025-01-10T10:02")

	rec := get(t, h.Slots, "/api/v1/interview/slots?submission_id=sub-1&date=2025-01-10&step=15")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var slots struct {
		Bounds struct {
			Min *string `json:"min"`
		} `json:"bounds"`
		Hours []struct {
			Slots []struct {
				Time    string `json:"time"`
				Enabled bool   `json:"enabled"`
			} `json:"slots"`
		} `json:"hours"`
	}
	decode(t, rec, &slots)
	if slots.Bounds.Min == nil || *slots.Bounds.Min != "10:15" {
		t.Fatalf("expected lower bound 10:15, got %v", slots.Bounds.Min)
	}
	var first string
	for _, hour := range slots.Hours {
		for _, s := range hour.Slots {
			if s.Enabled && first == "" {
				first = s.Time
			}
		}
	}
	if first != "10:15" {
		t.Fatalf("expected 10:15 as the first enabled slot, got %q", first)
	}

	if rec := postConfirm(t, h, `{"submission_id":"sub-1","date":"2025-01-10","time":"10:15","step":3}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range step, got %d", rec.Code)
	}

	rec = postConfirm(t, h, `{"submission_id":"sub-1","date":"2025-01-10","time":"`+first+`","step":15}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected enabled slot to confirm, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.selected) != 1 || !store.selected[0].Equal(localTime(t, "2025-01-10T10:15")) {
		t.Fatalf("expected stored instant 2025-01-10T10:15, got %v", store.selected)
	}
}

func TestConfirmRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown field", `{"submission_id":"sub-1","when":"now"}`, http.StatusBadRequest},
		{"missing id", `{"date":"2025-01-11","time":"10:00"}`, http.StatusBadRequest},
		{"malformed time", `{"submission_id":"sub-1","date":"2025-01-11","time":"9:00"}`, http.StatusBadRequest},
		{"incomplete", `{"submission_id":"sub-1","date":"2025-01-11"}`, http.StatusBadRequest},
		{"before window", `{"submission_id":"sub-1","date":"2025-01-10","time":"08:30"}`, http.StatusUnprocessableEntity},
		{"after window", `{"submission_id":"sub-1","date":"2025-01-12","time":"15:30"}`, http.StatusUnprocessableEntity},
		{"unknown submission", `{"submission_id":"missing","date":"2025-01-11","time":"10:00"}`, http.StatusNotFound},
		{"no window", `{"submission_id":"no-window","date":"2025-01-11","time":"10:00"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		h, store := newTestHandler(t, "2025-01-10T08:00")
		rec := postConfirm(t, h, tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
		if len(store.selected) != 0 {
			t.Fatalf("%s: expected no store writes", tc.name)
		}
	}
}

func TestConfirmInPast(t *testing.T) {
	h, _ := newTestHandler(t, "2025-01-11T12:00")
	rec := postConfirm(t, h, `{"submission_id":"sub-1","date":"2025-01-11","time":"11:30"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestConfirmCollaboratorFailure(t *testing.T) {
	h, store := newTestHandler(t, "2025-01-10T08:00")
	store.selectErr = errors.New("connection reset")

	rec := postConfirm(t, h, `{"submission_id":"sub-1","date":"2025-01-11","time":"10:00"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	rec = get(t, h.Get, "/api/v1/interview?submission_id=sub-1")
	if !strings.Contains(rec.Body.String(), `"state":"awaiting_selection"`) {
		t.Fatalf("expected state unchanged, got %s", rec.Body.String())
	}

	store.selectErr = nil
	if rec := postConfirm(t, h, `{"submission_id":"sub-1","date":"2025-01-11","time":"10:00"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t, "2025-01-10T08:00")
	rec := httptest.NewRecorder()
	h.Confirm(rec, httptest.NewRequest(http.MethodGet, "/api/v1/interview/confirm", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
