package sqlite

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
	var action, createdAt string
	var confirmedAt, editedAt, previous sql.NullString

	err := row.Scan(
		&r.ID, &r.OccurrenceID, &r.Version, &action, &confirmedAt, &r.ConfirmedBy, &r.Notes,
		&editedAt, &r.EditedBy, &r.EditOf, &previous, &r.ActionID, &r.NeedsReview, &createdAt,
	)
	if err != nil {
		return models.ConfirmationRecord{}, err
	}

	r.Action = models.RecordAction(action)
	if r.ConfirmedAt, err = parseNullTime(confirmedAt); err != nil {
		return models.ConfirmationRecord{}, fmt.Errorf("parsing confirmed_at for %s: %w", r.ID, err)
	}
	if r.EditedAt, err = parseNullTime(editedAt); err != nil {
		return models.ConfirmationRecord{}, fmt.Errorf("parsing edited_at for %s: %w", r.ID, err)
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.ConfirmationRecord{}, fmt.Errorf("parsing created_at for %s: %w", r.ID, err)
	}
	if previous.Valid && previous.String != "" {
		var snap models.RecordSnapshot
		if err := json.Unmarshal([]byte(previous.String), &snap); err != nil {
			return models.ConfirmationRecord{}, fmt.Errorf("parsing previous_values for %s: %w", r.ID, err)
		}
		r.PreviousValues = &snap
	}
	return r, nil
}

func (s *Store) ListConfirmationHistory(ctx context.Context, occurrenceID string) ([]models.ConfirmationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM confirmation_records WHERE occurrence_id = ? ORDER BY version DESC",
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
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM confirmation_records WHERE id = ?", id)
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OccurrenceID, rec.Version, string(rec.Action), formatNullTime(rec.ConfirmedAt),
		rec.ConfirmedBy, rec.Notes, formatNullTime(rec.EditedAt), rec.EditedBy, rec.EditOf, previous,
		rec.ActionID, rec.NeedsReview, formatTime(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("confirmation version %d for %s: %w", rec.Version, rec.OccurrenceID, storage.ErrDuplicate)
		}
		return err
	}
	return nil
}
