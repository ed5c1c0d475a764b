package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adoptly/adoptly/services/interview-service/internal/schedule"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
)

const TopicWindowOffered = "adoption.interview.window.offered.v1"

// WindowOffered is published by the shelter side when it offers (or changes) an
// interview window for a submission.
type WindowOffered struct {
	SubmissionID  string    `json:"submission_id"`
	Status        string    `json:"status"`
	AvailableFrom time.Time `json:"available_from"`
	AvailableTo   time.Time `json:"available_to"`
	Method        string    `json:"method"`
}

type WindowStore interface {
	OfferWindow(ctx context.Context, tx pgx.Tx, submissionID, status string, w schedule.Window) (bool, error)
}

// decodeWindowOffered validates the event. Malformed payloads and inverted windows
// are permanent errors.
func decodeWindowOffered(msg kafka.Message) (WindowOffered, schedule.Window, error) {
	var evt WindowOffered
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return WindowOffered{}, schedule.Window{}, fmt.Errorf("%w: invalid payload: %v", ErrPermanent, err)
	}
	evt.SubmissionID = strings.TrimSpace(evt.SubmissionID)
	if evt.SubmissionID == "" || evt.AvailableFrom.IsZero() || evt.AvailableTo.IsZero() {
		return WindowOffered{}, schedule.Window{}, fmt.Errorf("%w: submission_id, available_from and available_to are required", ErrPermanent)
	}
	w, err := schedule.NewWindow(evt.AvailableFrom, evt.AvailableTo, evt.Method)
	if err != nil {
		return WindowOffered{}, schedule.Window{}, fmt.Errorf("%w: submission %s: %w", ErrPermanent, evt.SubmissionID, err)
	}
	return evt, w, nil
}

// WindowOfferedHandler stores offered windows. A window offered after the adopter
// already confirmed is ignored.
func WindowOfferedHandler(store WindowStore, onIgnored func(submissionID string)) Handler {
	return func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
		evt, w, err := decodeWindowOffered(msg)
		if err != nil {
			return err
		}
		applied, err := store.OfferWindow(ctx, tx, evt.SubmissionID, evt.Status, w)
		if err != nil {
			return err
		}
		if !applied && onIgnored != nil {
			onIgnored(evt.SubmissionID)
		}
		return nil
	}
}
