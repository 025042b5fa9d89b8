package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
)

const recordColumns = `id, occurrence_id, version, action, confirmed_at, confirmed_by, notes,
	edited_at, edited_by, edit_of, previous_values, action_id, needs_review, created_at`

func scanRecord(row rowScanner) (models.ConfirmationRecord, error) {
	var r models.ConfirmationRecord
	var action string
	var confirmedAt, editedAt sql.NullTime
	var previous []byte

	err := row.Scan(
		&r.ID, &r.OccurrenceID, &r.Version, &action, &confirmedAt, &r.ConfirmedBy, &r.Notes,
		&editedAt, &r.EditedBy, &r.EditOf, &previous, &r.ActionID, &r.NeedsReview, &r.CreatedAt,
	)
	if err != nil {
		return models.ConfirmationRecord{}, err
	}

	r.Action = models.RecordAction(action)
	r.ConfirmedAt = timePtr(confirmedAt)
	r.EditedAt = timePtr(editedAt)
	if len(previous) > 0 {
		var snap models.RecordSnapshot
		if err := json.Unmarshal(previous, &snap); err != nil {
			return models.ConfirmationRecord{}, fmt.Errorf("parsing previous_values for %s: %w", r.ID, err)
		}
		r.PreviousValues = &snap
	}
	return r, nil
}

func (s *Store) ListConfirmationHistory(ctx context.Context, occurrenceID string) ([]models.ConfirmationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM confirmation_records WHERE occurrence_id = $1 ORDER BY version DESC",
		occurrenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []models.ConfirmationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) GetConfirmationRecord(ctx context.Context, id string) (models.ConfirmationRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM confirmation_records WHERE id = $1", id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ConfirmationRecord{}, fmt.Errorf("confirmation record %s: %w", id, storage.ErrNotFound)
		}
		return models.ConfirmationRecord{}, err
	}
	return rec, nil
}

func (s *Store) AppendConfirmationRecord(ctx context.Context, rec models.ConfirmationRecord) error {
	// Sent as text; pq would encode []byte as bytea.
	var previous sql.NullString
	if rec.PreviousValues != nil {
		b, err := json.Marshal(rec.PreviousValues)
		if err != nil {
			return err
		}
		previous = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO confirmation_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.OccurrenceID, rec.Version, string(rec.Action), nullTime(rec.ConfirmedAt),
		rec.ConfirmedBy, rec.Notes, nullTime(rec.EditedAt), rec.EditedBy, rec.EditOf, previous,
		rec.ActionID, rec.NeedsReview, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("confirmation version %d for %s: %w", rec.Version, rec.OccurrenceID, storage.ErrDuplicate)
		}
		return err
	}
	return nil
}
