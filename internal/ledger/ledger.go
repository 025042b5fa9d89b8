// Package ledger applies confirm, undo and edit to occurrences and keeps
// the append-only confirmation history for each one.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/carelog/internal/clock"
	"github.com/julianstephens/carelog/internal/conflict"
	"github.com/julianstephens/carelog/internal/constants"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/logger"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
	"github.com/julianstephens/carelog/internal/utils"
)

// appendAttempts bounds retries when a concurrent writer takes the next
// version number first.
const appendAttempts = 3

// Store is what the ledger needs from the store port.
type Store interface {
	storage.OccurrenceStore
	GetTaskDefinition(ctx context.Context, id string) (models.TaskDefinition, error)
}

type Ledger struct {
	store Store
	clock clock.Clock
	loc   *time.Location
	newID func() string
}

// New builds a ledger. loc is the schedule's timezone; occurrence dates are
// calendar days in it.
func New(store Store, clk clock.Clock, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{
		store: store,
		clock: clk,
		loc:   loc,
		newID: uuid.NewString,
	}
}

// ConfirmRequest describes one confirm action. At and ActionID are set when
// replaying a queued offline action; otherwise the clock supplies the time.
type ConfirmRequest struct {
	OccurrenceID     string
	Notes            *string
	OverrideConflict bool
	At               *time.Time
	ActionID         string
}

// UndoRequest reverts a confirmation. At and ActionID work as in
// ConfirmRequest.
type UndoRequest struct {
	OccurrenceID string
	At           *time.Time
	ActionID     string
}

// EditRequest lists the record fields an admin may change. The task an
// occurrence belongs to is never editable.
type EditRequest struct {
	ConfirmedAt *time.Time
	ConfirmedBy *string
	Notes       *string
	ActionID    string
}

func (r EditRequest) empty() bool {
	return r.ConfirmedAt == nil && r.ConfirmedBy == nil && r.Notes == nil
}

func (l *Ledger) at(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return l.clock.Now()
}

func (l *Ledger) getOccurrence(ctx context.Context, op, id string) (models.Occurrence, error) {
	occ, err := l.store.GetOccurrence(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Occurrence{}, apperr.Validation(op, "occurrence %s not found", id)
		}
		return models.Occurrence{}, err
	}
	return occ, nil
}

// Confirm marks an occurrence confirmed by actor and appends a new ledger
// version. Unless OverrideConflict is set, a recent confirmation in the same
// conflict group blocks it with a *errors.ConflictError.
func (l *Ledger) Confirm(ctx context.Context, actor models.Actor, req ConfirmRequest) (models.Occurrence, models.ConfirmationRecord, error) {
	occ, err := l.getOccurrence(ctx, "confirm", req.OccurrenceID)
	if err != nil {
		return models.Occurrence{}, models.ConfirmationRecord{}, err
	}

	history, err := l.store.ListConfirmationHistory(ctx, occ.ID)
	if err != nil {
		return models.Occurrence{}, models.ConfirmationRecord{}, err
	}
	if rec, ok := findAction(history, req.ActionID); ok {
		logger.Debug("Confirm already applied", "occurrence", occ.ID, "action", req.ActionID)
		return occ, rec, nil
	}

	if occ.Status == models.StatusConfirmed {
		return models.Occurrence{}, models.ConfirmationRecord{},
			apperr.Validation("confirm", "occurrence %s is already confirmed", occ.ID)
	}

	now := l.at(req.At)
	if !req.OverrideConflict {
		res, err := l.checkConflict(ctx, occ, now)
		if err != nil {
			return models.Occurrence{}, models.ConfirmationRecord{}, err
		}
		if res.HasConflict {
			logger.Info("Confirmation blocked by conflict group",
				"occurrence", occ.ID,
				"conflicting", res.ConflictingTaskName,
				"remaining_min", res.RemainingMinutes,
			)
			return models.Occurrence{}, models.ConfirmationRecord{}, res.Err()
		}
	}

	notes := occ.Notes
	if req.Notes != nil {
		notes = *req.Notes
	}

	rec := models.ConfirmationRecord{
		OccurrenceID: occ.ID,
		Action:       models.ActionConfirm,
		ConfirmedAt:  &now,
		ConfirmedBy:  actor.ID,
		Notes:        notes,
		ActionID:     req.ActionID,
		CreatedAt:    l.clock.Now(),
	}
	rec, err = l.append(ctx, rec, history)
	if err != nil {
		return models.Occurrence{}, models.ConfirmationRecord{}, err
	}

	patch := models.OccurrencePatch{
		Status:      models.StatusPtr(models.StatusConfirmed),
		ConfirmedAt: &now,
		ConfirmedBy: models.StringPtr(actor.ID),
		Notes:       &notes,
		ClearSnooze: true,
	}
	if err := l.store.PatchOccurrence(ctx, occ.ID, patch); err != nil {
		return models.Occurrence{}, models.ConfirmationRecord{}, err
	}
	occ.Apply(patch)

	logger.Info("Occurrence confirmed", "occurrence", occ.ID, "by", actor.ID, "version", rec.Version, "override", req.OverrideConflict)
	return occ, rec, nil
}

// RecordDuplicate keeps a second confirmation of an already confirmed
// occurrence, typically from another offline device, and flags both the
// record and the occurrence for manual review. The occurrence's own
// confirmation fields are left as they are.
func (l *Ledger) RecordDuplicate(ctx context.Context, actor models.Actor, req ConfirmRequest) (models.ConfirmationRecord, error) {
	occ, err := l.getOccurrence(ctx, "confirm", req.OccurrenceID)
	if err != nil {
		return models.ConfirmationRecord{}, err
	}

	history, err := l.store.ListConfirmationHistory(ctx, occ.ID)
	if err != nil {
		return models.ConfirmationRecord{}, err
	}
	if rec, ok := findAction(history, req.ActionID); ok {
		return rec, nil
	}

	now := l.at(req.At)
	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}
	rec, err := l.append(ctx, models.ConfirmationRecord{
		OccurrenceID: occ.ID,
		Action:       models.ActionConfirm,
		ConfirmedAt:  &now,
		ConfirmedBy:  actor.ID,
		Notes:        notes,
		ActionID:     req.ActionID,
		NeedsReview:  true,
		CreatedAt:    l.clock.Now(),
	}, history)
	if err != nil {
		return models.ConfirmationRecord{}, err
	}

	if err := l.store.PatchOccurrence(ctx, occ.ID, models.OccurrencePatch{NeedsReview: models.BoolPtr(true)}); err != nil {
		return models.ConfirmationRecord{}, err
	}

	logger.Warn("Duplicate confirmation kept for review", "occurrence", occ.ID, "by", actor.ID, "version", rec.Version)
	return rec, nil
}

// Undo returns a confirmed occurrence to pending. The confirmation records
// stay; an undo record is appended and a marker is added to the notes.
func (l *Ledger) Undo(ctx context.Context, actor models.Actor, req UndoRequest) (models.Occurrence, error) {
	occ, err := l.getOccurrence(ctx, "undo", req.OccurrenceID)
	if err != nil {
		return models.Occurrence{}, err
	}

	history, err := l.store.ListConfirmationHistory(ctx, occ.ID)
	if err != nil {
		return models.Occurrence{}, err
	}
	if _, ok := findAction(history, req.ActionID); ok {
		return occ, nil
	}

	if occ.Status != models.StatusConfirmed {
		return models.Occurrence{}, apperr.Validation("undo", "occurrence %s is %s, not confirmed", occ.ID, occ.Status)
	}

	now := l.at(req.At)
	notes := UndoNotes(occ.Notes, now, actor.ID)

	prev := models.RecordSnapshot{ConfirmedAt: occ.ConfirmedAt, ConfirmedBy: occ.ConfirmedBy}
	if occ.Notes != notes {
		old := occ.Notes
		prev.Notes = &old
	}
	if _, err := l.append(ctx, models.ConfirmationRecord{
		OccurrenceID:   occ.ID,
		Action:         models.ActionUndo,
		Notes:          notes,
		EditedAt:       &now,
		EditedBy:       actor.ID,
		PreviousValues: &prev,
		ActionID:       req.ActionID,
		CreatedAt:      l.clock.Now(),
	}, history); err != nil {
		return models.Occurrence{}, err
	}

	patch := models.OccurrencePatch{
		Status:            models.StatusPtr(models.StatusPending),
		Notes:             &notes,
		ClearConfirmation: true,
		ClearSnooze:       true,
	}
	if err := l.store.PatchOccurrence(ctx, occ.ID, patch); err != nil {
		return models.Occurrence{}, err
	}
	occ.Apply(patch)

	logger.Info("Confirmation undone", "occurrence", occ.ID, "by", actor.ID)
	return occ, nil
}

// UndoNotes appends a timestamped undo marker to notes without dropping
// what was already there.
func UndoNotes(notes string, at time.Time, by string) string {
	marker := fmt.Sprintf(constants.UndoMarkerFormat, at.Format(time.RFC3339), by)
	if strings.TrimSpace(notes) == "" {
		return marker
	}
	return notes + " " + marker
}

// Edit appends an edit record for recordID carrying the new values and a
// snapshot of the ones it replaced. Only admins may edit.
func (l *Ledger) Edit(ctx context.Context, actor models.Actor, recordID string, req EditRequest, at *time.Time) (models.ConfirmationRecord, error) {
	if !actor.Admin {
		return models.ConfirmationRecord{}, fmt.Errorf("edit confirmation record: user %q is not an admin: %w", actor.ID, apperr.ErrForbidden)
	}
	if req.empty() {
		return models.ConfirmationRecord{}, apperr.Validation("edit", "no fields to change")
	}

	orig, err := l.store.GetConfirmationRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.ConfirmationRecord{}, apperr.Validation("edit", "confirmation record %s not found", recordID)
		}
		return models.ConfirmationRecord{}, err
	}
	if orig.Action == models.ActionUndo {
		return models.ConfirmationRecord{}, apperr.Validation("edit", "record %s is an undo and cannot be edited", recordID)
	}

	history, err := l.store.ListConfirmationHistory(ctx, orig.OccurrenceID)
	if err != nil {
		return models.ConfirmationRecord{}, err
	}
	if rec, ok := findAction(history, req.ActionID); ok {
		return rec, nil
	}

	edited := orig
	edited.ID = ""
	edited.Action = models.ActionEdit
	edited.EditOf = orig.ID
	edited.ActionID = req.ActionID
	edited.NeedsReview = false

	var prev models.RecordSnapshot
	changed := false
	if req.ConfirmedAt != nil && (orig.ConfirmedAt == nil || !orig.ConfirmedAt.Equal(*req.ConfirmedAt)) {
		prev.ConfirmedAt = orig.ConfirmedAt
		t := *req.ConfirmedAt
		edited.ConfirmedAt = &t
		changed = true
	}
	if req.ConfirmedBy != nil && *req.ConfirmedBy != orig.ConfirmedBy {
		by := orig.ConfirmedBy
		prev.ConfirmedBy = &by
		edited.ConfirmedBy = *req.ConfirmedBy
		changed = true
	}
	if req.Notes != nil && *req.Notes != orig.Notes {
		notes := orig.Notes
		prev.Notes = &notes
		edited.Notes = *req.Notes
		changed = true
	}
	if !changed {
		return models.ConfirmationRecord{}, apperr.Validation("edit", "values match record %s, nothing to change", recordID)
	}

	now := l.at(at)
	edited.EditedAt = &now
	edited.EditedBy = actor.ID
	edited.PreviousValues = &prev
	edited.CreatedAt = l.clock.Now()

	rec, err := l.append(ctx, edited, history)
	if err != nil {
		return models.ConfirmationRecord{}, err
	}

	// Mirror the edit onto the occurrence while it is still confirmed.
	occ, err := l.store.GetOccurrence(ctx, orig.OccurrenceID)
	if err == nil && occ.Status == models.StatusConfirmed {
		patch := models.OccurrencePatch{
			ConfirmedAt: rec.ConfirmedAt,
			ConfirmedBy: models.StringPtr(rec.ConfirmedBy),
			Notes:       models.StringPtr(rec.Notes),
		}
		if err := l.store.PatchOccurrence(ctx, occ.ID, patch); err != nil {
			return rec, err
		}
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return rec, err
	}

	logger.Info("Confirmation record edited", "record", rec.ID, "edit_of", orig.ID, "by", actor.ID, "version", rec.Version)
	return rec, nil
}

// History returns the ledger for one occurrence, newest version first.
func (l *Ledger) History(ctx context.Context, occurrenceID string) ([]models.ConfirmationRecord, error) {
	return l.store.ListConfirmationHistory(ctx, occurrenceID)
}

// append writes rec with the next version number, retrying when another
// writer claims that version first.
func (l *Ledger) append(ctx context.Context, rec models.ConfirmationRecord, history []models.ConfirmationRecord) (models.ConfirmationRecord, error) {
	if rec.ID == "" {
		rec.ID = l.newID()
	}

	var err error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		rec.Version = NextVersion(history)
		err = l.store.AppendConfirmationRecord(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return models.ConfirmationRecord{}, err
		}
		if history, err = l.store.ListConfirmationHistory(ctx, rec.OccurrenceID); err != nil {
			return models.ConfirmationRecord{}, err
		}
	}
	return models.ConfirmationRecord{}, fmt.Errorf("append confirmation record for %s: %w", rec.OccurrenceID, storage.ErrDuplicate)
}

// NextVersion is max(existing versions) + 1.
func NextVersion(history []models.ConfirmationRecord) int {
	maxVersion := 0
	for _, r := range history {
		if r.Version > maxVersion {
			maxVersion = r.Version
		}
	}
	return maxVersion + 1
}

func findAction(history []models.ConfirmationRecord, actionID string) (models.ConfirmationRecord, bool) {
	if actionID == "" {
		return models.ConfirmationRecord{}, false
	}
	for _, r := range history {
		if r.ActionID == actionID {
			return r, true
		}
	}
	return models.ConfirmationRecord{}, false
}

// checkConflict gathers the occurrences around occ and runs the arbiter.
func (l *Ledger) checkConflict(ctx context.Context, occ models.Occurrence, now time.Time) (conflict.Result, error) {
	defs := make(map[string]models.TaskDefinition)
	definition := func(id string) (models.TaskDefinition, error) {
		if d, ok := defs[id]; ok {
			return d, nil
		}
		d, err := l.store.GetTaskDefinition(ctx, id)
		if err != nil {
			return models.TaskDefinition{}, err
		}
		defs[id] = d
		return d, nil
	}

	target, err := definition(occ.TaskDefinitionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return conflict.Result{CanOverride: true}, nil
		}
		return conflict.Result{}, err
	}
	if target.Group() == nil {
		return conflict.Result{CanOverride: true}, nil
	}

	// The spacing window can straddle midnight, so load every day it touches.
	dates := []string{occ.Date}
	for _, t := range []time.Time{now.Add(-target.Group().Window()), now} {
		if d := utils.DateOf(t, l.loc); !slices.Contains(dates, d) {
			dates = append(dates, d)
		}
	}

	var entries []conflict.Entry
	for _, date := range dates {
		occs, err := l.store.ListOccurrences(ctx, date)
		if err != nil {
			return conflict.Result{}, err
		}
		for _, o := range occs {
			if o.Status != models.StatusConfirmed {
				continue
			}
			d, err := definition(o.TaskDefinitionID)
			if err != nil {
				logger.Warn("Skipping occurrence with unknown definition in conflict check", "occurrence", o.ID, "error", err)
				continue
			}
			entries = append(entries, conflict.Entry{Occurrence: o, Definition: d})
		}
	}

	return conflict.Check(conflict.Entry{Occurrence: occ, Definition: target}, entries, now), nil
}
