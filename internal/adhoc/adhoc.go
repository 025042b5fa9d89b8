// Package adhoc creates unscheduled occurrences: quick logs that are
// confirmed on creation and one-off instances of existing tasks.
package adhoc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/carelog/internal/clock"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/logger"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
	"github.com/julianstephens/carelog/internal/utils"
)

type Store interface {
	AddTaskDefinition(ctx context.Context, def models.TaskDefinition) error
	GetTaskDefinition(ctx context.Context, id string) (models.TaskDefinition, error)
	ListTaskDefinitions(ctx context.Context, includeInactive bool) ([]models.TaskDefinition, error)
	CreateOccurrence(ctx context.Context, occ models.Occurrence) (models.Occurrence, error)
	GetOccurrence(ctx context.Context, id string) (models.Occurrence, error)
	ListConfirmationHistory(ctx context.Context, occurrenceID string) ([]models.ConfirmationRecord, error)
	AppendConfirmationRecord(ctx context.Context, rec models.ConfirmationRecord) error
}

type Logger struct {
	store     Store
	clock     clock.Clock
	loc       *time.Location
	subjectID string
	newID     func() string

	mu           sync.Mutex
	placeholders map[Category]string
}

func New(store Store, clk clock.Clock, loc *time.Location, subjectID string) *Logger {
	if loc == nil {
		loc = time.Local
	}
	return &Logger{
		store:        store,
		clock:        clk,
		loc:          loc,
		subjectID:    subjectID,
		newID:        uuid.NewString,
		placeholders: make(map[Category]string),
	}
}

type QuickLog struct {
	Category Category
	Note     string
	At       *time.Time
	ID       string // preset when replaying a queued create
}

// CreateQuickLog records a free-form event. The occurrence is confirmed
// immediately and gets a first ledger record.
func (l *Logger) CreateQuickLog(ctx context.Context, actor models.Actor, q QuickLog) (models.Occurrence, error) {
	if _, ok := displays[q.Category]; !ok {
		return models.Occurrence{}, apperr.Validation("quick log", "unknown category %q", q.Category)
	}

	defID, err := l.placeholder(ctx, q.Category)
	if err != nil {
		return models.Occurrence{}, err
	}

	now := l.clock.Now()
	if q.At != nil {
		now = *q.At
	}
	id := q.ID
	if id == "" {
		id = l.newID()
	}
	by := actor.ID
	occ := models.Occurrence{
		ID:               id,
		TaskDefinitionID: defID,
		Date:             utils.DateOf(now, l.loc),
		ScheduledAt:      now,
		Status:           models.StatusConfirmed,
		ConfirmedAt:      &now,
		ConfirmedBy:      &by,
		Notes:            Encode(q.Category, q.Note),
		IsAdHoc:          true,
		Category:         string(q.Category),
		CreatedAt:        l.clock.Now(),
	}
	created, err := l.store.CreateOccurrence(ctx, occ)
	if errors.Is(err, storage.ErrDuplicate) && q.ID != "" {
		// A replay of a create whose first record never landed.
		return l.completeQuickLog(ctx, q.ID, err)
	}
	if err != nil {
		return models.Occurrence{}, err
	}

	if err := l.appendFirstRecord(ctx, created); err != nil {
		return created, err
	}

	logger.Info("Quick log recorded", "occurrence", created.ID, "category", q.Category, "by", by)
	return created, nil
}

// completeQuickLog writes the first ledger record of an existing quick log
// when it has none. dup is returned when there is nothing left to do.
func (l *Logger) completeQuickLog(ctx context.Context, id string, dup error) (models.Occurrence, error) {
	occ, err := l.store.GetOccurrence(ctx, id)
	if err != nil {
		return models.Occurrence{}, err
	}
	if !occ.IsAdHoc || occ.Status != models.StatusConfirmed {
		return occ, dup
	}
	history, err := l.store.ListConfirmationHistory(ctx, id)
	if err != nil {
		return occ, err
	}
	if len(history) > 0 {
		return occ, dup
	}
	if err := l.appendFirstRecord(ctx, occ); err != nil {
		return occ, err
	}

	logger.Warn("Recovered quick log missing its first record", "occurrence", id)
	return occ, nil
}

func (l *Logger) appendFirstRecord(ctx context.Context, occ models.Occurrence) error {
	by := ""
	if occ.ConfirmedBy != nil {
		by = *occ.ConfirmedBy
	}
	return l.store.AppendConfirmationRecord(ctx, models.ConfirmationRecord{
		ID:           l.newID(),
		OccurrenceID: occ.ID,
		Version:      1,
		Action:       models.ActionConfirm,
		ConfirmedAt:  occ.ConfirmedAt,
		ConfirmedBy:  by,
		Notes:        occ.Notes,
		CreatedAt:    l.clock.Now(),
	})
}

type OneOff struct {
	DefinitionID string
	At           time.Time
	Notes        string
	ID           string // preset when replaying a queued create
}

// CreateOneOff adds a pending, unscheduled instance of an existing task at
// the given time. It behaves like any other reminder once created.
func (l *Logger) CreateOneOff(ctx context.Context, o OneOff) (models.Occurrence, error) {
	def, err := l.store.GetTaskDefinition(ctx, o.DefinitionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Occurrence{}, apperr.Validation("one-off", "task definition %s not found", o.DefinitionID)
		}
		return models.Occurrence{}, err
	}
	if def.Placeholder {
		return models.Occurrence{}, apperr.Validation("one-off", "%s is a quick-log placeholder; use a quick log instead", def.Name)
	}

	id := o.ID
	if id == "" {
		id = l.newID()
	}
	occ, err := l.store.CreateOccurrence(ctx, models.Occurrence{
		ID:               id,
		TaskDefinitionID: def.ID,
		Date:             utils.DateOf(o.At, l.loc),
		ScheduledAt:      o.At,
		Status:           models.StatusPending,
		Notes:            o.Notes,
		IsAdHoc:          true,
		CreatedAt:        l.clock.Now(),
	})
	if err != nil {
		return models.Occurrence{}, err
	}

	logger.Info("One-off occurrence created", "occurrence", occ.ID, "task", def.Name, "at", o.At.Format(time.RFC3339))
	return occ, nil
}

// placeholder finds or creates the definition quick logs of c hang off.
func (l *Logger) placeholder(ctx context.Context, c Category) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.placeholders[c]; ok {
		return id, nil
	}

	defs, err := l.store.ListTaskDefinitions(ctx, true)
	if err != nil {
		return "", err
	}
	for _, d := range defs {
		if d.Placeholder && d.Category == placeholderPrefix+string(c) {
			l.placeholders[c] = d.ID
			return d.ID, nil
		}
	}

	display := DisplayFor(c)
	def := models.TaskDefinition{
		ID:          l.newID(),
		SubjectID:   l.subjectID,
		Kind:        display.Kind,
		Category:    placeholderPrefix + string(c),
		Name:        display.Name,
		Frequency:   models.Recurrence{Type: models.RecurrenceAdHoc},
		Active:      true,
		Placeholder: true,
		CreatedAt:   l.clock.Now(),
	}
	if err := l.store.AddTaskDefinition(ctx, def); err != nil {
		return "", err
	}
	l.placeholders[c] = def.ID

	logger.Debug("Created quick-log placeholder", "category", c, "definition", def.ID)
	return def.ID, nil
}
