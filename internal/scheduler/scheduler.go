// Package scheduler expands recurring task definitions into date-bound
// occurrences.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/carelog/internal/clock"
	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/logger"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
	"github.com/julianstephens/carelog/internal/utils"
)

// Store is the subset of the store port the expander writes through.
type Store interface {
	CreateOccurrence(ctx context.Context, occ models.Occurrence) (models.Occurrence, error)
}

type Scheduler struct {
	store Store
	clock clock.Clock
	loc   *time.Location
	newID func() string
}

func New(store Store, clk clock.Clock, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		store: store,
		clock: clk,
		loc:   loc,
		newID: uuid.NewString,
	}
}

// Plan returns the occurrences date needs that are not in existing. It is
// pure: nothing is persisted.
func (s *Scheduler) Plan(date string, defs []models.TaskDefinition, existing map[models.OccurrenceKey]bool) ([]models.Occurrence, error) {
	day, err := utils.ParseDateInLocation(date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}

	// Copied so a definition listing the same slot twice yields one occurrence
	// without mutating the caller's map.
	seen := maps.Clone(existing)
	if seen == nil {
		seen = make(map[models.OccurrenceKey]bool)
	}

	now := s.clock.Now()
	var planned []models.Occurrence
	for _, def := range defs {
		if !def.Active || def.Placeholder || !def.InWindow(date) {
			continue
		}
		if !utils.ShouldSchedule(def, day) {
			continue
		}

		for _, slot := range def.Slots {
			key := models.OccurrenceKey{TaskDefinitionID: def.ID, ScheduleSlotID: slot.ID}
			if seen[key] {
				continue
			}

			scheduledAt, err := utils.CombineDateAndTime(date, slot.Time, s.loc)
			if err != nil {
				logger.Warn("Skipping slot with invalid time", "definition", def.ID, "slot", slot.ID, "error", err)
				continue
			}

			slotID := slot.ID
			planned = append(planned, models.Occurrence{
				ID:               s.newID(),
				TaskDefinitionID: def.ID,
				ScheduleSlotID:   &slotID,
				Date:             date,
				ScheduledAt:      scheduledAt,
				Status:           models.StatusPending,
				CreatedAt:        now,
			})
			seen[key] = true
		}
	}
	return planned, nil
}

// Expand persists the occurrences Plan returns and reports the ones that
// were written. A failed write is logged and skipped; it never aborts the
// rest of the batch.
func (s *Scheduler) Expand(ctx context.Context, date string, defs []models.TaskDefinition, existing map[models.OccurrenceKey]bool) ([]models.Occurrence, error) {
	planned, err := s.Plan(date, defs, existing)
	if err != nil {
		return nil, err
	}

	created := make([]models.Occurrence, 0, len(planned))
	for _, occ := range planned {
		saved, err := s.store.CreateOccurrence(ctx, occ)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				// Another writer expanded the same slot first.
				logger.Debug("Occurrence already exists", "definition", occ.TaskDefinitionID, "date", date)
				continue
			}
			logger.Warn("Failed to create occurrence",
				"definition", occ.TaskDefinitionID,
				"slot", *occ.ScheduleSlotID,
				"date", date,
				"error", err,
			)
			continue
		}
		created = append(created, saved)
	}

	logger.Info("Expanded schedule", "date", date, "created", len(created), "planned", len(planned))
	return created, nil
}

// ExistingKeys indexes the scheduled occurrences of one date by natural key.
func ExistingKeys(occs []models.Occurrence) map[models.OccurrenceKey]bool {
	keys := make(map[models.OccurrenceKey]bool, len(occs))
	for _, occ := range occs {
		if occ.ScheduleSlotID != nil {
			keys[occ.Key()] = true
		}
	}
	return keys
}

// Today returns the current date string in the scheduler's location.
func (s *Scheduler) Today() string {
	return s.clock.Now().In(s.loc).Format(constants.DateFormat)
}
