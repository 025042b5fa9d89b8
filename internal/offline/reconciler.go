// Package offline queues mutating actions taken while disconnected and
// replays them, oldest first, once the store is reachable again.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/carelog/internal/adhoc"
	"github.com/julianstephens/carelog/internal/clock"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/ledger"
	"github.com/julianstephens/carelog/internal/logger"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
)

type Ledger interface {
	Confirm(ctx context.Context, actor models.Actor, req ledger.ConfirmRequest) (models.Occurrence, models.ConfirmationRecord, error)
	RecordDuplicate(ctx context.Context, actor models.Actor, req ledger.ConfirmRequest) (models.ConfirmationRecord, error)
	Undo(ctx context.Context, actor models.Actor, req ledger.UndoRequest) (models.Occurrence, error)
	Edit(ctx context.Context, actor models.Actor, recordID string, req ledger.EditRequest, at *time.Time) (models.ConfirmationRecord, error)
}

type Snoozer interface {
	Snooze(ctx context.Context, occurrenceID string, minutes int, at *time.Time) (models.Occurrence, error)
}

type Creator interface {
	CreateQuickLog(ctx context.Context, actor models.Actor, q adhoc.QuickLog) (models.Occurrence, error)
	CreateOneOff(ctx context.Context, o adhoc.OneOff) (models.Occurrence, error)
}

type OccurrenceGetter interface {
	GetOccurrence(ctx context.Context, id string) (models.Occurrence, error)
}

// Report summarizes one replay pass.
type Report struct {
	Applied    int
	Duplicates int
	Failed     int
	Purged     int
	Errors     []error
}

type Reconciler struct {
	queue   storage.OfflineQueue
	store   OccurrenceGetter
	ledger  Ledger
	snoozer Snoozer
	creator Creator
	clock   clock.Clock
	newID   func() string

	// BeforeReplay runs once before a non-empty queue is replayed, e.g. to
	// snapshot the store. An error aborts the replay.
	BeforeReplay func(ctx context.Context) error
}

func NewReconciler(queue storage.OfflineQueue, store OccurrenceGetter, l Ledger, s Snoozer, c Creator, clk clock.Clock) *Reconciler {
	return &Reconciler{
		queue:   queue,
		store:   store,
		ledger:  l,
		snoozer: s,
		creator: c,
		clock:   clk,
		newID:   uuid.NewString,
	}
}

// Enqueue captures an action for later replay.
func (r *Reconciler) Enqueue(ctx context.Context, kind models.ActionType, payload any) (models.OfflineAction, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return models.OfflineAction{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	action := models.OfflineAction{
		ID:        r.newID(),
		Type:      kind,
		Payload:   data,
		Timestamp: r.clock.Now(),
	}
	if err := r.queue.Enqueue(ctx, action); err != nil {
		return models.OfflineAction{}, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	logger.Info("Action queued for sync", "action", action.ID, "type", kind)
	return action, nil
}

// Pending lists the actions still waiting to sync.
func (r *Reconciler) Pending(ctx context.Context) ([]models.OfflineAction, error) {
	return r.queue.Pending(ctx)
}

// Replay applies every unsynced action in timestamp order. Successful
// actions are marked synced and purged; failures stay queued.
func (r *Reconciler) Replay(ctx context.Context) (Report, error) {
	var report Report

	pending, err := r.queue.Pending(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending actions: %w", err)
	}
	if len(pending) == 0 {
		return report, nil
	}

	if r.BeforeReplay != nil {
		if err := r.BeforeReplay(ctx); err != nil {
			return report, fmt.Errorf("prepare replay: %w", err)
		}
	}

	seen := make(map[string]bool, len(pending))
	for _, action := range pending {
		if seen[action.ID] {
			continue
		}
		seen[action.ID] = true

		dup, err := r.apply(ctx, action)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Errorf("action %s (%s): %w", action.ID, action.Type, err))
			logger.Warn("Replay failed, action stays queued", "action", action.ID, "type", action.Type, "error", err)
			continue
		}
		if dup {
			report.Duplicates++
		}

		if err := r.queue.MarkSynced(ctx, action.ID); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Errorf("mark %s synced: %w", action.ID, err))
			logger.Warn("Could not mark action synced", "action", action.ID, "error", err)
			continue
		}
		report.Applied++
	}

	purged, err := r.queue.PurgeSynced(ctx)
	if err != nil {
		return report, fmt.Errorf("purge synced actions: %w", err)
	}
	report.Purged = purged

	logger.Info("Offline replay finished",
		"applied", report.Applied,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
		"purged", report.Purged,
	)
	return report, nil
}

// apply replays one action. dup reports a confirmation that was kept as a
// duplicate for review.
func (r *Reconciler) apply(ctx context.Context, action models.OfflineAction) (dup bool, err error) {
	at := action.Timestamp

	switch action.Type {
	case models.ActionTypeConfirm:
		var p ConfirmPayload
		if err := decode(action, &p); err != nil {
			return false, err
		}
		return r.applyConfirm(ctx, action, p)

	case models.ActionTypeSnooze:
		var p SnoozePayload
		if err := decode(action, &p); err != nil {
			return false, err
		}
		_, err := r.snoozer.Snooze(ctx, p.OccurrenceID, p.Minutes, &at)
		return false, err

	case models.ActionTypeUndo:
		var p UndoPayload
		if err := decode(action, &p); err != nil {
			return false, err
		}
		_, err := r.ledger.Undo(ctx, models.Actor{ID: p.ActorID}, ledger.UndoRequest{
			OccurrenceID: p.OccurrenceID,
			At:           &at,
			ActionID:     action.ID,
		})
		return false, err

	case models.ActionTypeEdit:
		var p EditPayload
		if err := decode(action, &p); err != nil {
			return false, err
		}
		_, err := r.ledger.Edit(ctx, models.Actor{ID: p.ActorID, Admin: p.Admin}, p.RecordID, ledger.EditRequest{
			ConfirmedAt: p.ConfirmedAt,
			ConfirmedBy: p.ConfirmedBy,
			Notes:       p.Notes,
			ActionID:    action.ID,
		}, &at)
		return false, err

	case models.ActionTypeCreate:
		var p CreatePayload
		if err := decode(action, &p); err != nil {
			return false, err
		}
		return false, r.applyCreate(ctx, p, at)
	}

	return false, apperr.Validation("replay", "unknown action type %q", action.Type)
}

// applyConfirm replays a confirmation with the conflict gate bypassed: the
// caregiver already acted. If someone else confirmed the occurrence in the
// meantime both confirmations are kept and flagged for review.
func (r *Reconciler) applyConfirm(ctx context.Context, action models.OfflineAction, p ConfirmPayload) (bool, error) {
	at := action.Timestamp
	actor := models.Actor{ID: p.ActorID}
	req := ledger.ConfirmRequest{
		OccurrenceID:     p.OccurrenceID,
		Notes:            p.Notes,
		OverrideConflict: true,
		At:               &at,
		ActionID:         action.ID,
	}

	occ, err := r.store.GetOccurrence(ctx, p.OccurrenceID)
	if err != nil {
		return false, err
	}
	if occ.Status != models.StatusConfirmed {
		_, _, err := r.ledger.Confirm(ctx, actor, req)
		return false, err
	}

	// Confirm returns the existing record when this action already landed.
	if _, _, err := r.ledger.Confirm(ctx, actor, req); err == nil {
		return false, nil
	} else if !apperr.IsValidation(err) {
		return false, err
	}

	if _, err := r.ledger.RecordDuplicate(ctx, actor, req); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Reconciler) applyCreate(ctx context.Context, p CreatePayload, at time.Time) error {
	if p.At != nil {
		at = *p.At
	}

	var err error
	if p.Category != "" {
		c, ok := adhoc.ParseCategory(p.Category)
		if !ok {
			return apperr.Validation("replay", "unknown quick-log category %q", p.Category)
		}
		_, err = r.creator.CreateQuickLog(ctx, models.Actor{ID: p.ActorID}, adhoc.QuickLog{
			Category: c,
			Note:     p.Note,
			At:       &at,
			ID:       p.OccurrenceID,
		})
	} else {
		_, err = r.creator.CreateOneOff(ctx, adhoc.OneOff{
			DefinitionID: p.DefinitionID,
			At:           at,
			Notes:        p.Note,
			ID:           p.OccurrenceID,
		})
	}

	// A preset id that already exists means an earlier pass created it.
	if errors.Is(err, storage.ErrDuplicate) {
		logger.Debug("Create already applied", "occurrence", p.OccurrenceID)
		return nil
	}
	return err
}
