package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adoptly/adoptly/libs/db"
	"github.com/adoptly/adoptly/services/interview-service/internal/model"
	"github.com/adoptly/adoptly/services/interview-service/internal/outbox"
	"github.com/adoptly/adoptly/services/interview-service/internal/schedule"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SubmissionRepository is the Postgres-backed submission store. Selecting a
// schedule and recording its outbox event share one transaction.
type SubmissionRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewSubmissionRepository(pool *db.Pool, outboxRepo *outbox.Repository) *SubmissionRepository {
	return &SubmissionRepository{pool: pool, outbox: outboxRepo}
}

type submissionRow struct {
	ID               string
	Status           string
	AvailableFrom    *time.Time
	AvailableTo      *time.Time
	Method           string
	SelectedSchedule *time.Time
}

func (row submissionRow) toModel() model.Submission {
	sub := model.Submission{ID: row.ID, Status: row.Status}
	if row.AvailableFrom == nil || row.AvailableTo == nil {
		return sub
	}
	sub.Interview = &model.Interview{
		AvailableFrom:    *row.AvailableFrom,
		AvailableTo:      *row.AvailableTo,
		Method:           row.Method,
		SelectedSchedule: row.SelectedSchedule,
	}
	return sub
}

func (r *SubmissionRepository) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	row, err := r.selectSubmission(ctx, r.pool, id, false)
	if err != nil {
		return model.Submission{}, err
	}
	return row.toModel(), nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *SubmissionRepository) selectSubmission(ctx context.Context, q querier, id string, forUpdate bool) (submissionRow, error) {
	sql := `
		SELECT id::text, status, interview_available_from, interview_available_to,
			interview_method, selected_schedule
		FROM adoption_submissions
		WHERE id = $1
	`
	if forUpdate {
		sql += " FOR UPDATE"
	}
	var row submissionRow
	err := q.QueryRow(ctx, sql, id).Scan(&row.ID, &row.Status, &row.AvailableFrom, &row.AvailableTo, &row.Method, &row.SelectedSchedule)
	if err != nil {
		if IsNotFound(err) || isInvalidID(err) {
			return submissionRow{}, model.ErrNotFound
		}
		return submissionRow{}, err
	}
	return row, nil
}

// SelectSchedule records at as the interview instant and moves the submission to
// StatusInterviewScheduled. It only succeeds once per submission and only inside
// the stored window.
func (r *SubmissionRepository) SelectSchedule(ctx context.Context, id string, at time.Time) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		return r.selectScheduleTx(ctx, tx, id, at)
	})
}

func (r *SubmissionRepository) selectScheduleTx(ctx context.Context, tx pgx.Tx, id string, at time.Time) error {
	row, err := r.selectSubmission(ctx, tx, id, true)
	if err != nil {
		return err
	}
	if row.SelectedSchedule != nil {
		return model.ErrAlreadyConfirmed
	}
	if row.AvailableFrom == nil || row.AvailableTo == nil || at.Before(*row.AvailableFrom) || at.After(*row.AvailableTo) {
		return model.ErrScheduleRejected
	}

	if _, err := tx.Exec(ctx, `
		UPDATE adoption_submissions
		SET selected_schedule = $2,
			status = $3,
			updated_at = now()
		WHERE id = $1 AND selected_schedule IS NULL
	`, id, at.UTC(), model.StatusInterviewScheduled); err != nil {
		return fmt.Errorf("update selected schedule: %w", err)
	}

	row.Status = model.StatusInterviewScheduled
	payload, err := scheduledPayload(row, at)
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: outbox.AggregateSubmission,
		AggregateID:   row.ID,
		EventType:     outbox.EventInterviewScheduled,
		Payload:       payload,
	})
}

// OfferWindow creates the submission or replaces its interview window. It reports
// false, changing nothing, when a schedule was already selected.
func (r *SubmissionRepository) OfferWindow(ctx context.Context, tx pgx.Tx, id, status string, w schedule.Window) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO adoption_submissions (id, status, interview_available_from, interview_available_to, interview_method)
		VALUES ($1, COALESCE(NULLIF($2, ''), 'submitted'), $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = COALESCE(NULLIF($2, ''), adoption_submissions.status),
			interview_available_from = EXCLUDED.interview_available_from,
			interview_available_to = EXCLUDED.interview_available_to,
			interview_method = EXCLUDED.interview_method,
			updated_at = now()
		WHERE adoption_submissions.selected_schedule IS NULL
	`, id, status, w.Start.UTC(), w.End.UTC(), w.Method)
	if err != nil {
		if isInvalidID(err) {
			return false, model.ErrNotFound
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scheduledPayload(row submissionRow, at time.Time) ([]byte, error) {
	return json.Marshal(map[string]any{
		"submission_id":     row.ID,
		"status":            row.Status,
		"selected_schedule": at.UTC().Format(time.RFC3339),
		"method":            row.Method,
	})
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isInvalidID matches a malformed uuid literal, which can never name a row.
func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
