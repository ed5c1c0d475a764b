// Package adoptionapi talks to the adoption service that owns submissions.
package adoptionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adoptly/adoptly/libs/httpx"
	"github.com/adoptly/adoptly/services/interview-service/internal/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusError is a non-2xx reply the client has no specific mapping for.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("adoption api: status %d", e.Code)
	}
	return fmt.Sprintf("adoption api: status %d: %s", e.Code, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type interviewDTO struct {
	AvailableFrom    time.Time  `json:"availableFrom"`
	AvailableTo      time.Time  `json:"availableTo"`
	Method           string     `json:"method"`
	SelectedSchedule *time.Time `json:"selectedSchedule"`
}

type submissionDTO struct {
	Status    string        `json:"status"`
	Interview *interviewDTO `json:"interview"`
}

func (c *Client) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	var dto submissionDTO
	if err := c.do(ctx, http.MethodGet, c.submissionURL(id), nil, &dto); err != nil {
		return model.Submission{}, err
	}
	sub := model.Submission{ID: id, Status: dto.Status}
	if iv := dto.Interview; iv != nil && !iv.AvailableFrom.IsZero() && !iv.AvailableTo.IsZero() {
		sub.Interview = &model.Interview{
			AvailableFrom:    iv.AvailableFrom,
			AvailableTo:      iv.AvailableTo,
			Method:           iv.Method,
			SelectedSchedule: iv.SelectedSchedule,
		}
	}
	return sub, nil
}

func (c *Client) SelectSchedule(ctx context.Context, id string, at time.Time) error {
	body := map[string]string{"selectedSchedule": at.UTC().Format(time.RFC3339)}
	return c.do(ctx, http.MethodPut, c.submissionURL(id)+"/select-schedule", body, nil)
}

func (c *Client) submissionURL(id string) string {
	return c.baseURL + "/submissions/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid := httpx.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set(httpx.RequestIDHeader, rid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return model.ErrAlreadyConfirmed
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return model.ErrScheduleRejected
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", target, err)
	}
	return nil
}
