package sqlite

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
	var slotID, confirmedAt, confirmedBy, snoozeUntil sql.NullString
	var status, scheduledAt, createdAt string

	err := row.Scan(
		&o.ID, &o.TaskDefinitionID, &slotID, &o.Date, &scheduledAt, &status,
		&confirmedAt, &confirmedBy, &snoozeUntil, &o.Notes, &o.IsAdHoc, &o.Category, &o.NeedsReview, &createdAt,
	)
	if err != nil {
		return models.Occurrence{}, err
	}

	o.Status = models.OccurrenceStatus(status)
	o.ScheduleSlotID = stringPtr(slotID)
	o.ConfirmedBy = stringPtr(confirmedBy)

	if o.ScheduledAt, err = parseTime(scheduledAt); err != nil {
		return models.Occurrence{}, fmt.Errorf("parsing scheduled_at for %s: %w", o.ID, err)
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Occurrence{}, fmt.Errorf("parsing created_at for %s: %w", o.ID, err)
	}
	if o.ConfirmedAt, err = parseNullTime(confirmedAt); err != nil {
		return models.Occurrence{}, fmt.Errorf("parsing confirmed_at for %s: %w", o.ID, err)
	}
	if o.SnoozeUntil, err = parseNullTime(snoozeUntil); err != nil {
		return models.Occurrence{}, fmt.Errorf("parsing snooze_until for %s: %w", o.ID, err)
	}
	return o, nil
}

func (s *Store) ListOccurrences(ctx context.Context, date string) ([]models.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+occurrenceColumns+" FROM occurrences WHERE date = ? ORDER BY scheduled_at, id", date)
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
	row := s.db.QueryRowContext(ctx, "SELECT "+occurrenceColumns+" FROM occurrences WHERE id = ?", id)
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		occ.ID, occ.TaskDefinitionID, nullString(occ.ScheduleSlotID), occ.Date, formatTime(occ.ScheduledAt),
		string(occ.Status), formatNullTime(occ.ConfirmedAt), nullString(occ.ConfirmedBy),
		formatNullTime(occ.SnoozeUntil), occ.Notes, occ.IsAdHoc, occ.Category, occ.NeedsReview,
		formatTime(occ.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Occurrence{}, fmt.Errorf("occurrence %s on %s: %w", occ.TaskDefinitionID, occ.Date, storage.ErrDuplicate)
		}
		return models.Occurrence{}, err
	}
	return occ, nil
}

func (s *Store) PatchOccurrence(ctx context.Context, id string, patch models.OccurrencePatch) error {
	var sets []string
	var args []any

	// Clears go first so a patch that clears and sets the same column sets it.
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
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.ConfirmedAt != nil {
		sets = append(sets, "confirmed_at = ?")
		args = append(args, formatTime(*patch.ConfirmedAt))
	}
	if patch.ConfirmedBy != nil {
		sets = append(sets, "confirmed_by = ?")
		args = append(args, *patch.ConfirmedBy)
	}
	if patch.SnoozeUntil != nil {
		sets = append(sets, "snooze_until = ?")
		args = append(args, formatTime(*patch.SnoozeUntil))
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *patch.Notes)
	}
	if patch.NeedsReview != nil {
		sets = append(sets, "needs_review = ?")
		args = append(args, *patch.NeedsReview)
	}

	if len(sets) == 0 {
		_, err := s.GetOccurrence(ctx, id)
		return err
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE occurrences SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("occurrence %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
