package inbox

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository deduplicates consumed events by event id.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Record claims eventID inside tx. It returns false when the event was already
// applied; the claim is rolled back together with tx if applying it fails.
func (r *Repository) Record(ctx context.Context, tx pgx.Tx, eventID, eventType string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
