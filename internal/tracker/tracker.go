// Package tracker composes the scheduling, classification, ledger, snooze,
// ad-hoc and offline pieces into the operations the CLI and TUI call.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/carelog/internal/adhoc"
	"github.com/julianstephens/carelog/internal/classifier"
	"github.com/julianstephens/carelog/internal/clock"
	"github.com/julianstephens/carelog/internal/constants"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/ledger"
	"github.com/julianstephens/carelog/internal/logger"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/notifier"
	"github.com/julianstephens/carelog/internal/offline"
	"github.com/julianstephens/carelog/internal/scheduler"
	"github.com/julianstephens/carelog/internal/snooze"
	"github.com/julianstephens/carelog/internal/storage"
	"github.com/julianstephens/carelog/internal/utils"
)

type Options struct {
	// Queue receives mutations that fail transiently while Offline is set.
	Queue   storage.OfflineQueue
	Offline bool
	// Triggers, when set, is kept in step with every state change.
	Triggers     *notifier.Scheduler
	BeforeReplay func(ctx context.Context) error
}

type Tracker struct {
	store    storage.Provider
	settings models.Settings
	clock    clock.Clock
	loc      *time.Location
	offline  bool
	newID    func() string

	scheduler  *scheduler.Scheduler
	ledger     *ledger.Ledger
	snoozer    *snooze.Manager
	adhoc      *adhoc.Logger
	reconciler *offline.Reconciler
	triggers   *notifier.Scheduler
}

func New(store storage.Provider, settings models.Settings, clk clock.Clock, opts Options) (*Tracker, error) {
	loc, err := utils.LoadLocation(settings.Timezone)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New(loc)
	}

	t := &Tracker{
		store:     store,
		settings:  settings,
		clock:     clk,
		loc:       loc,
		offline:   opts.Offline,
		newID:     uuid.NewString,
		scheduler: scheduler.New(store, clk, loc),
		ledger:    ledger.New(store, clk, loc),
		snoozer:   snooze.New(store, clk),
		adhoc:     adhoc.New(store, clk, loc, settings.SubjectID),
		triggers:  opts.Triggers,
	}
	if opts.Queue != nil {
		t.reconciler = offline.NewReconciler(opts.Queue, store, t.ledger, t.snoozer, t.adhoc, clk)
		t.reconciler.BeforeReplay = opts.BeforeReplay
	}
	return t, nil
}

func (t *Tracker) Location() *time.Location { return t.loc }

func (t *Tracker) Now() time.Time { return t.clock.Now() }

func (t *Tracker) Today() string { return utils.DateOf(t.clock.Now(), t.loc) }

func (t *Tracker) Settings() models.Settings { return t.settings }

// Actor resolves a user id against the configured admins.
func (t *Tracker) Actor(userID string) models.Actor { return t.settings.ActorFor(userID) }

// Expand generates the occurrences date still lacks and arms their triggers.
func (t *Tracker) Expand(ctx context.Context, date string) ([]models.Occurrence, error) {
	defs, err := t.store.ListTaskDefinitions(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list task definitions: %w", err)
	}
	existing, err := t.store.ListOccurrences(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list occurrences for %s: %w", date, err)
	}

	created, err := t.scheduler.Expand(ctx, date, defs, scheduler.ExistingKeys(existing))
	if err != nil {
		return nil, err
	}

	if t.triggers != nil {
		byID := definitionMap(defs)
		for _, occ := range created {
			t.triggers.Apply(occ, byID[occ.TaskDefinitionID])
		}
	}
	return created, nil
}

// Board is one day's occurrences classified into buckets.
type Board struct {
	classifier.Board
	Date        string
	Now         time.Time
	Definitions map[string]models.TaskDefinition
}

func (b Board) Definition(occ models.Occurrence) models.TaskDefinition {
	return b.Definitions[occ.TaskDefinitionID]
}

// Title is the display line for occ: the quick-log category and note for
// ad-hoc logs, otherwise the task name and dose.
func (b Board) Title(occ models.Occurrence) string {
	if d, text, ok := adhoc.Describe(occ); ok {
		if text == "" {
			return d.Icon + " " + d.Name
		}
		return d.Icon + " " + d.Name + ": " + text
	}
	def := b.Definition(occ)
	if def.Name == "" {
		return occ.TaskDefinitionID
	}
	if def.Dose != "" {
		return def.Name + " " + def.Dose
	}
	return def.Name
}

// Board lists and classifies date's occurrences against the current time.
// It never writes.
func (t *Tracker) Board(ctx context.Context, date string) (Board, error) {
	occs, err := t.store.ListOccurrences(ctx, date)
	if err != nil {
		return Board{}, fmt.Errorf("list occurrences for %s: %w", date, err)
	}
	defs, err := t.store.ListTaskDefinitions(ctx, true)
	if err != nil {
		return Board{}, fmt.Errorf("list task definitions: %w", err)
	}

	now := t.clock.Now()
	return Board{
		Board:       classifier.Group(occs, now),
		Date:        date,
		Now:         now,
		Definitions: definitionMap(defs),
	}, nil
}

// ArmTriggers syncs the trigger timers with date's occurrences.
func (t *Tracker) ArmTriggers(ctx context.Context, date string) (int, error) {
	if t.triggers == nil {
		return 0, nil
	}
	board, err := t.Board(ctx, date)
	if err != nil {
		return 0, err
	}
	var occs []models.Occurrence
	for _, bucket := range classifier.Buckets {
		occs = append(occs, board.Get(bucket)...)
	}
	t.triggers.Sync(occs, board.Definitions)
	return len(t.triggers.Armed()), nil
}

func (t *Tracker) Confirm(ctx context.Context, actor models.Actor, req ledger.ConfirmRequest) (models.Occurrence, models.ConfirmationRecord, error) {
	occ, rec, err := t.ledger.Confirm(ctx, actor, req)
	if err != nil {
		return occ, rec, t.capture(ctx, err, models.ActionTypeConfirm, offline.ConfirmPayload{
			OccurrenceID: req.OccurrenceID,
			Notes:        req.Notes,
			ActorID:      actor.ID,
		})
	}
	t.refreshTrigger(ctx, occ)
	return occ, rec, nil
}

func (t *Tracker) Undo(ctx context.Context, actor models.Actor, occurrenceID string) (models.Occurrence, error) {
	occ, err := t.ledger.Undo(ctx, actor, ledger.UndoRequest{OccurrenceID: occurrenceID})
	if err != nil {
		return occ, t.capture(ctx, err, models.ActionTypeUndo, offline.UndoPayload{
			OccurrenceID: occurrenceID,
			ActorID:      actor.ID,
		})
	}
	t.refreshTrigger(ctx, occ)
	return occ, nil
}

func (t *Tracker) Edit(ctx context.Context, actor models.Actor, recordID string, req ledger.EditRequest) (models.ConfirmationRecord, error) {
	rec, err := t.ledger.Edit(ctx, actor, recordID, req, nil)
	if err != nil {
		return rec, t.capture(ctx, err, models.ActionTypeEdit, offline.EditPayload{
			RecordID:    recordID,
			ConfirmedAt: req.ConfirmedAt,
			ConfirmedBy: req.ConfirmedBy,
			Notes:       req.Notes,
			ActorID:     actor.ID,
			Admin:       actor.Admin,
		})
	}
	return rec, nil
}

func (t *Tracker) Snooze(ctx context.Context, actor models.Actor, occurrenceID string, minutes int) (models.Occurrence, error) {
	occ, err := t.snoozer.Snooze(ctx, occurrenceID, minutes, nil)
	if err != nil {
		return occ, t.capture(ctx, err, models.ActionTypeSnooze, offline.SnoozePayload{
			OccurrenceID: occurrenceID,
			Minutes:      minutes,
			ActorID:      actor.ID,
		})
	}
	t.refreshTrigger(ctx, occ)
	return occ, nil
}

func (t *Tracker) QuickLog(ctx context.Context, actor models.Actor, category adhoc.Category, note string) (models.Occurrence, error) {
	id := t.newID()
	occ, err := t.adhoc.CreateQuickLog(ctx, actor, adhoc.QuickLog{Category: category, Note: note, ID: id})
	if err != nil {
		return occ, t.capture(ctx, err, models.ActionTypeCreate, offline.CreatePayload{
			OccurrenceID: id,
			Category:     string(category),
			Note:         note,
			ActorID:      actor.ID,
		})
	}
	return occ, nil
}

func (t *Tracker) OneOff(ctx context.Context, actor models.Actor, definitionID string, at time.Time, notes string) (models.Occurrence, error) {
	id := t.newID()
	occ, err := t.adhoc.CreateOneOff(ctx, adhoc.OneOff{DefinitionID: definitionID, At: at, Notes: notes, ID: id})
	if err != nil {
		return occ, t.capture(ctx, err, models.ActionTypeCreate, offline.CreatePayload{
			OccurrenceID: id,
			DefinitionID: definitionID,
			Note:         notes,
			At:           &at,
			ActorID:      actor.ID,
		})
	}
	t.refreshTrigger(ctx, occ)
	return occ, nil
}

func (t *Tracker) History(ctx context.Context, occurrenceID string) ([]models.ConfirmationRecord, error) {
	return t.ledger.History(ctx, occurrenceID)
}

// NeedsReview lists occurrences flagged by duplicate offline confirmations
// between from and to inclusive.
func (t *Tracker) NeedsReview(ctx context.Context, from, to string) ([]models.Occurrence, error) {
	start, err := utils.ParseDateInLocation(from, t.loc)
	if err != nil {
		return nil, apperr.Validation("review", "invalid from date %q", from)
	}
	end, err := utils.ParseDateInLocation(to, t.loc)
	if err != nil {
		return nil, apperr.Validation("review", "invalid to date %q", to)
	}

	var flagged []models.Occurrence
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		occs, err := t.store.ListOccurrences(ctx, day.Format(constants.DateFormat))
		if err != nil {
			return nil, err
		}
		for _, occ := range occs {
			if occ.NeedsReview {
				flagged = append(flagged, occ)
			}
		}
	}
	return flagged, nil
}

// Sync replays the offline queue.
func (t *Tracker) Sync(ctx context.Context) (offline.Report, error) {
	if t.reconciler == nil {
		return offline.Report{}, fmt.Errorf("no offline queue configured")
	}
	return t.reconciler.Replay(ctx)
}

// Queued lists actions waiting to sync.
func (t *Tracker) Queued(ctx context.Context) ([]models.OfflineAction, error) {
	if t.reconciler == nil {
		return nil, nil
	}
	return t.reconciler.Pending(ctx)
}

// capture queues a mutation that failed transiently while offline. Other
// errors, and every error while online, are returned unchanged.
func (t *Tracker) capture(ctx context.Context, err error, kind models.ActionType, payload any) error {
	if !t.offline || t.reconciler == nil || !apperr.IsTransient(err) {
		return err
	}
	action, qerr := t.reconciler.Enqueue(ctx, kind, payload)
	if qerr != nil {
		logger.Error("Could not queue offline action", "type", kind, "error", qerr)
		return err
	}
	return fmt.Errorf("%s saved as %s: %w", kind, action.ID, apperr.ErrQueued)
}

func (t *Tracker) refreshTrigger(ctx context.Context, occ models.Occurrence) {
	if t.triggers == nil {
		return
	}
	def, err := t.store.GetTaskDefinition(ctx, occ.TaskDefinitionID)
	if err != nil {
		logger.Warn("Could not refresh trigger", "occurrence", occ.ID, "error", err)
		t.triggers.Cancel(occ.ID)
		return
	}
	t.triggers.Apply(occ, def)
}

func definitionMap(defs []models.TaskDefinition) map[string]models.TaskDefinition {
	m := make(map[string]models.TaskDefinition, len(defs))
	for _, d := range defs {
		m[d.ID] = d
	}
	return m
}
