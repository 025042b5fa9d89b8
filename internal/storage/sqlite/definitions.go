package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
)

const definitionColumns = `id, subject_id, kind, category, name, dose, location, notes,
	recurrence_type, recurrence_interval_days, recurrence_weekday_mask, active,
	start_date, end_date, conflict_group, placeholder, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (models.TaskDefinition, error) {
	var d models.TaskDefinition
	var kind, recType, weekdays, createdAt string
	var startDate, endDate, group sql.NullString

	err := row.Scan(
		&d.ID, &d.SubjectID, &kind, &d.Category, &d.Name, &d.Dose, &d.Location, &d.Notes,
		&recType, &d.Frequency.IntervalDays, &weekdays, &d.Active,
		&startDate, &endDate, &group, &d.Placeholder, &createdAt,
	)
	if err != nil {
		return models.TaskDefinition{}, err
	}

	d.Kind = models.TaskKind(kind)
	d.Frequency.Type = models.RecurrenceType(recType)
	d.StartDate = startDate.String
	d.EndDate = endDate.String
	d.ConflictGroup = stringPtr(group)

	if weekdays != "" {
		var days []int
		if err := json.Unmarshal([]byte(weekdays), &days); err == nil {
			for _, w := range days {
				d.Frequency.WeekdayMask = append(d.Frequency.WeekdayMask, time.Weekday(w))
			}
		}
	}

	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.TaskDefinition{}, fmt.Errorf("parsing created_at for %s: %w", d.ID, err)
	}
	return d, nil
}

func encodeWeekdays(mask []time.Weekday) (string, error) {
	if len(mask) == 0 {
		return "", nil
	}
	days := make([]int, len(mask))
	for i, w := range mask {
		days[i] = int(w)
	}
	b, err := json.Marshal(days)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Store) AddTaskDefinition(ctx context.Context, def models.TaskDefinition) error {
	weekdays, err := encodeWeekdays(def.Frequency.WeekdayMask)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO task_definitions (`+definitionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ID, def.SubjectID, string(def.Kind), def.Category, def.Name, def.Dose, def.Location, def.Notes,
		string(def.Frequency.Type), def.Frequency.IntervalDays, weekdays, def.Active,
		emptyToNull(def.StartDate), emptyToNull(def.EndDate), nullString(def.ConflictGroup), def.Placeholder,
		formatTime(def.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("task definition %s: %w", def.ID, storage.ErrDuplicate)
		}
		return err
	}

	if err := insertSlots(ctx, tx, def); err != nil {
		return err
	}
	return tx.Commit()
}

func insertSlots(ctx context.Context, tx *sql.Tx, def models.TaskDefinition) error {
	for _, slot := range def.Slots {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schedule_slots (id, task_definition_id, time, label) VALUES (?, ?, ?, ?)",
			slot.ID, def.ID, slot.Time, string(slot.Label))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("schedule slot %s: %w", slot.ID, storage.ErrDuplicate)
			}
			return err
		}
	}
	return nil
}

func (s *Store) loadSlots(ctx context.Context, defID string) ([]models.ScheduleSlot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, task_definition_id, time, label FROM schedule_slots WHERE task_definition_id = ? ORDER BY time, id",
		defID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []models.ScheduleSlot
	for rows.Next() {
		var slot models.ScheduleSlot
		var label string
		if err := rows.Scan(&slot.ID, &slot.TaskDefinitionID, &slot.Time, &label); err != nil {
			return nil, err
		}
		slot.Label = models.SlotLabel(label)
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (s *Store) GetTaskDefinition(ctx context.Context, id string) (models.TaskDefinition, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+definitionColumns+" FROM task_definitions WHERE id = ?", id)
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TaskDefinition{}, fmt.Errorf("task definition %s: %w", id, storage.ErrNotFound)
		}
		return models.TaskDefinition{}, err
	}

	if def.Slots, err = s.loadSlots(ctx, def.ID); err != nil {
		return models.TaskDefinition{}, err
	}
	return def, nil
}

func (s *Store) ListTaskDefinitions(ctx context.Context, includeInactive bool) ([]models.TaskDefinition, error) {
	query := "SELECT " + definitionColumns + " FROM task_definitions"
	if !includeInactive {
		query += " WHERE active = 1"
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	var defs []models.TaskDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		defs = append(defs, def)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Slots are loaded after the cursor is closed; the pool holds one connection.
	for i := range defs {
		if defs[i].Slots, err = s.loadSlots(ctx, defs[i].ID); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

func (s *Store) UpdateTaskDefinition(ctx context.Context, def models.TaskDefinition) error {
	weekdays, err := encodeWeekdays(def.Frequency.WeekdayMask)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE task_definitions SET
			subject_id = ?, kind = ?, category = ?, name = ?, dose = ?, location = ?, notes = ?,
			recurrence_type = ?, recurrence_interval_days = ?, recurrence_weekday_mask = ?, active = ?,
			start_date = ?, end_date = ?, conflict_group = ?, placeholder = ?
		WHERE id = ?`,
		def.SubjectID, string(def.Kind), def.Category, def.Name, def.Dose, def.Location, def.Notes,
		string(def.Frequency.Type), def.Frequency.IntervalDays, weekdays, def.Active,
		emptyToNull(def.StartDate), emptyToNull(def.EndDate), nullString(def.ConflictGroup), def.Placeholder,
		def.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task definition %s: %w", def.ID, storage.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM schedule_slots WHERE task_definition_id = ?", def.ID); err != nil {
		return err
	}
	if err := insertSlots(ctx, tx, def); err != nil {
		return err
	}
	return tx.Commit()
}
