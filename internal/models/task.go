package models

import (
	"fmt"
	"time"

	"github.com/julianstephens/carelog/internal/constants"
)

type TaskKind string

const (
	TaskKindMedication  TaskKind = "medication"
	TaskKindFood        TaskKind = "food"
	TaskKindSupplement  TaskKind = "supplement"
	TaskKindObservation TaskKind = "observation"
)

type RecurrenceType string

const (
	RecurrenceDaily  RecurrenceType = "daily"
	RecurrenceWeekly RecurrenceType = "weekly"
	RecurrenceNDays  RecurrenceType = "n_days"
	RecurrenceAdHoc  RecurrenceType = "ad_hoc"
)

type SlotLabel string

const (
	SlotMorning SlotLabel = "morning"
	SlotMidday  SlotLabel = "midday"
	SlotEvening SlotLabel = "evening"
	SlotNight   SlotLabel = "night"
)

type Recurrence struct {
	Type         RecurrenceType `json:"type"`
	IntervalDays int            `json:"interval_days,omitempty"`
	WeekdayMask  []time.Weekday `json:"weekday_mask,omitempty"`
}

// ScheduleSlot is a time of day at which a task definition is due.
type ScheduleSlot struct {
	ID               string    `json:"id"`
	TaskDefinitionID string    `json:"task_definition_id"`
	Time             string    `json:"time"` // HH:MM format
	Label            SlotLabel `json:"label"`
}

// TaskDefinition describes a recurring care task for one subject.
type TaskDefinition struct {
	ID            string         `json:"id"`
	SubjectID     string         `json:"subject_id"`
	Kind          TaskKind       `json:"kind"`
	Category      string         `json:"category"`
	Name          string         `json:"name"`
	Dose          string         `json:"dose,omitempty"`
	Location      string         `json:"location,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	Frequency     Recurrence     `json:"frequency"`
	Active        bool           `json:"active"`
	StartDate     string         `json:"start_date,omitempty"` // YYYY-MM-DD format
	EndDate       string         `json:"end_date,omitempty"`   // YYYY-MM-DD format
	ConflictGroup *string        `json:"conflict_group,omitempty"`
	Placeholder   bool           `json:"placeholder,omitempty"`
	Slots         []ScheduleSlot `json:"slots,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (d *TaskDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("task name cannot be empty")
	}

	switch d.Kind {
	case TaskKindMedication, TaskKindFood, TaskKindSupplement, TaskKindObservation:
	default:
		return fmt.Errorf("invalid task kind: %q", d.Kind)
	}

	if d.StartDate != "" {
		if _, err := time.Parse(constants.DateFormat, d.StartDate); err != nil {
			return fmt.Errorf("invalid start date (expected YYYY-MM-DD): %w", err)
		}
	}
	if d.EndDate != "" {
		if _, err := time.Parse(constants.DateFormat, d.EndDate); err != nil {
			return fmt.Errorf("invalid end date (expected YYYY-MM-DD): %w", err)
		}
	}
	if d.StartDate != "" && d.EndDate != "" && d.EndDate < d.StartDate {
		return fmt.Errorf("end date %s is before start date %s", d.EndDate, d.StartDate)
	}

	switch d.Frequency.Type {
	case RecurrenceDaily, RecurrenceAdHoc:
	case RecurrenceWeekly:
		if len(d.Frequency.WeekdayMask) == 0 {
			return fmt.Errorf("weekdays must be specified for weekly recurrence")
		}
	case RecurrenceNDays:
		if d.Frequency.IntervalDays < 1 {
			return fmt.Errorf("interval must be at least 1 for n_days recurrence")
		}
	default:
		return fmt.Errorf("invalid recurrence type: %q", d.Frequency.Type)
	}

	seen := make(map[string]bool)
	for _, slot := range d.Slots {
		if _, err := time.Parse(constants.TimeFormat, slot.Time); err != nil {
			return fmt.Errorf("invalid slot time %q (expected HH:MM): %w", slot.Time, err)
		}
		if seen[slot.ID] {
			return fmt.Errorf("duplicate slot id %s", slot.ID)
		}
		seen[slot.ID] = true
	}

	return nil
}

// InWindow reports whether date (YYYY-MM-DD) falls inside the definition's
// inclusive effective window. Missing bounds are open.
func (d *TaskDefinition) InWindow(date string) bool {
	if d.StartDate != "" && date < d.StartDate {
		return false
	}
	if d.EndDate != "" && date > d.EndDate {
		return false
	}
	return true
}

// Group returns the definition's conflict group, or nil when it has none.
func (d *TaskDefinition) Group() *ConflictGroup {
	if d.ConflictGroup == nil || *d.ConflictGroup == "" {
		return nil
	}
	g := NewConflictGroup(*d.ConflictGroup)
	return &g
}

// ConflictGroup is a named set of tasks that must be spaced apart.
type ConflictGroup struct {
	Name       string
	SpacingMin int
}

func NewConflictGroup(name string) ConflictGroup {
	return ConflictGroup{Name: name, SpacingMin: constants.DefaultSpacingMin}
}

func (g ConflictGroup) Window() time.Duration {
	return time.Duration(g.SpacingMin) * time.Minute
}
