// Package snooze defers an occurrence's due time by one of the fixed
// snooze choices.
package snooze

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/julianstephens/carelog/internal/clock"
	"github.com/julianstephens/carelog/internal/constants"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/logger"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
)

type Store interface {
	GetOccurrence(ctx context.Context, id string) (models.Occurrence, error)
	PatchOccurrence(ctx context.Context, id string, patch models.OccurrencePatch) error
}

type Manager struct {
	store Store
	clock clock.Clock
}

func New(store Store, clk clock.Clock) *Manager {
	return &Manager{store: store, clock: clk}
}

// ValidMinutes reports whether minutes is one of the accepted choices.
func ValidMinutes(minutes int) bool {
	return slices.Contains(constants.SnoozeChoices, minutes)
}

// Snooze sets the occurrence to snoozed until now+minutes. Snoozing an
// already snoozed occurrence overwrites the previous deadline. at overrides
// the clock when replaying a queued action.
func (m *Manager) Snooze(ctx context.Context, occurrenceID string, minutes int, at *time.Time) (models.Occurrence, error) {
	if !ValidMinutes(minutes) {
		return models.Occurrence{}, apperr.Validation("snooze", "snooze must be one of %v minutes, got %d", constants.SnoozeChoices, minutes)
	}

	occ, err := m.store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Occurrence{}, apperr.Validation("snooze", "occurrence %s not found", occurrenceID)
		}
		return models.Occurrence{}, err
	}
	if occ.Status == models.StatusConfirmed {
		return models.Occurrence{}, apperr.Validation("snooze", "occurrence %s is already confirmed", occ.ID)
	}

	now := m.clock.Now()
	if at != nil {
		now = *at
	}
	until := now.Add(time.Duration(minutes) * time.Minute)

	patch := models.OccurrencePatch{
		Status:      models.StatusPtr(models.StatusSnoozed),
		SnoozeUntil: &until,
	}
	if err := m.store.PatchOccurrence(ctx, occ.ID, patch); err != nil {
		return models.Occurrence{}, err
	}
	occ.Apply(patch)

	logger.Info("Occurrence snoozed", "occurrence", occ.ID, "minutes", minutes, "until", until.Format(time.RFC3339))
	return occ, nil
}
