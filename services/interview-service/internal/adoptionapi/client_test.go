package adoptionapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adoptly/adoptly/libs/httpx"
	"github.com/adoptly/adoptly/services/interview-service/internal/model"
)

func TestGetSubmission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/submissions/sub-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(httpx.RequestIDHeader) != "req-1" {
			t.Errorf("expected request id forwarded, got %q", r.Header.Get(httpx.RequestIDHeader))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "interview",
			"interview": {
				"availableFrom": "2025-01-10T02:00:00Z",
				"availableTo": "2025-01-12T08:00:00Z",
				"method": "https://meet.example.com/abc",
				"selectedSchedule": null
			}
		}`))
	}))
	defer srv.Close()

	ctx := httpx.ContextWithRequestID(context.Background(), "req-1")
	sub, err := New(srv.URL + "/").GetSubmission(ctx, "sub-1")
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if sub.ID != "sub-1" || sub.Status != "interview" {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if sub.Interview == nil || sub.Interview.SelectedSchedule != nil {
		t.Fatalf("expected interview without selection, got %+v", sub.Interview)
	}
	if !sub.Interview.AvailableFrom.Equal(time.Date(2025, 1, 10, 2, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected availableFrom: %s", sub.Interview.AvailableFrom)
	}
}

func TestGetSubmissionWithoutInterview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"submitted","interview":null}`))
	}))
	defer srv.Close()

	sub, err := New(srv.URL).GetSubmission(context.Background(), "sub-2")
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if sub.Interview != nil {
		t.Fatalf("expected no interview, got %+v", sub.Interview)
	}
}

func TestSelectSchedule(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/submissions/sub-1/select-schedule" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	at := time.Date(2025, 1, 11, 10, 0, 0, 0, time.FixedZone("UTC+07:00", 7*3600))
	if err := New(srv.URL).SelectSchedule(context.Background(), "sub-1", at); err != nil {
		t.Fatalf("select schedule: %v", err)
	}
	if got["selectedSchedule"] != "2025-01-11T03:00:00Z" {
		t.Fatalf("expected UTC RFC3339 instant, got %q", got["selectedSchedule"])
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, model.ErrNotFound},
		{http.StatusConflict, model.ErrAlreadyConfirmed},
		{http.StatusUnprocessableEntity, model.ErrScheduleRejected},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		err := New(srv.URL).SelectSchedule(context.Background(), "sub-1", time.Now())
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "database down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	_, err := New(srv.URL).GetSubmission(context.Background(), "sub-1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected StatusError 503, got %v", err)
	}
	if statusErr.Body != "database down" {
		t.Fatalf("expected body snippet, got %q", statusErr.Body)
	}
}
