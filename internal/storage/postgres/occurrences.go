package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
)

const occurrenceColumns = `id, task_definition_id, schedule_slot_id, date, scheduled_at, status,
	confirmed_at, confirmed_by, snooze_until, notes, is_ad_hoc, category, needs_review, created_at`

func scanOccurrence(row rowScanner) (models.Occurrence, error) {
	var o models.Occurrence
	var status string
	var slotID, confirmedBy sql.NullString
	var confirmedAt, snoozeUntil sql.NullTime

	err := row.Scan(
		&o.ID, &o.TaskDefinitionID, &slotID, &o.Date, &o.ScheduledAt, &status,
		&confirmedAt, &confirmedBy, &snoozeUntil, &o.Notes, &o.IsAdHoc, &o.Category, &o.NeedsReview, &o.CreatedAt,
	)
	if err != nil {
		return models.Occurrence{}, err
	}

	o.Status = models.OccurrenceStatus(status)
	o.ScheduleSlotID = stringPtr(slotID)
	o.ConfirmedBy = stringPtr(confirmedBy)
	o.ConfirmedAt = timePtr(confirmedAt)
	o.SnoozeUntil = timePtr(snoozeUntil)
	return o, nil
}

func (s *Store) ListOccurrences(ctx context.Context, date string) ([]models.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+occurrenceColumns+" FROM occurrences WHERE date = $1 ORDER BY scheduled_at, id", date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occs []models.Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		occs = append(occs, occ)
	}
	return occs, rows.Err()
}

func (s *Store) GetOccurrence(ctx context.Context, id string) (models.Occurrence, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+occurrenceColumns+" FROM occurrences WHERE id = $1", id)
	occ, err := scanOccurrence(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Occurrence{}, fmt.Errorf("occurrence %s: %w", id, storage.ErrNotFound)
		}
		return models.Occurrence{}, err
	}
	return occ, nil
}

func (s *Store) CreateOccurrence(ctx context.Context, occ models.Occurrence) (models.Occurrence, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO occurrences (`+occurrenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		occ.ID, occ.TaskDefinitionID, nullString(occ.ScheduleSlotID), occ.Date, occ.ScheduledAt,
		string(occ.Status), nullTime(occ.ConfirmedAt), nullString(occ.ConfirmedBy),
		nullTime(occ.SnoozeUntil), occ.Notes, occ.IsAdHoc, occ.Category, occ.NeedsReview, occ.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Occurrence{}, fmt.Errorf("occurrence %s on %s: %w", occ.TaskDefinitionID, occ.Date, storage.ErrDuplicate)
		}
		return models.Occurrence{}, err
	}
	return occ, nil
}

// patchClauses renders the SET list for patch, numbering placeholders from 1.
func patchClauses(patch models.OccurrencePatch) ([]string, []any) {
	var sets []string
	var args []any
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.ClearConfirmation && patch.ConfirmedAt == nil {
		sets = append(sets, "confirmed_at = NULL")
	}
	if patch.ClearConfirmation && patch.ConfirmedBy == nil {
		sets = append(sets, "confirmed_by = NULL")
	}
	if patch.ClearSnooze && patch.SnoozeUntil == nil {
		sets = append(sets, "snooze_until = NULL")
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.ConfirmedAt != nil {
		add("confirmed_at", *patch.ConfirmedAt)
	}
	if patch.ConfirmedBy != nil {
		add("confirmed_by", *patch.ConfirmedBy)
	}
	if patch.SnoozeUntil != nil {
		add("snooze_until", *patch.SnoozeUntil)
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}
	if patch.NeedsReview != nil {
		add("needs_review", *patch.NeedsReview)
	}
	return sets, args
}

func (s *Store) PatchOccurrence(ctx context.Context, id string, patch models.OccurrencePatch) error {
	sets, args := patchClauses(patch)
	if len(sets) == 0 {
		_, err := s.GetOccurrence(ctx, id)
		return err
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE occurrences SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("occurrence %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
