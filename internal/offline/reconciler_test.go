package offline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/carelog/internal/adhoc"
	"github.com/julianstephens/carelog/internal/clock"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/ledger"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/snooze"
	"github.com/julianstephens/carelog/internal/storage"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store  *storage.JSONStore
	clock  *clock.Manual
	ledger *ledger.Ledger
	rec    *Reconciler
}

func setup(t *testing.T, queue storage.OfflineQueue) fixture {
	t.Helper()
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "carelog.json"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if queue == nil {
		queue = store
	}
	clk := clock.NewManual(t0)
	l := ledger.New(store, clk, time.UTC)
	rec := NewReconciler(queue, store, l, snooze.New(store, clk), adhoc.New(store, clk, time.UTC, "default"), clk)

	_, err := store.CreateOccurrence(context.Background(), models.Occurrence{
		ID:               "occ-1",
		TaskDefinitionID: "def-1",
		Date:             "2026-03-02",
		ScheduledAt:      t0,
		Status:           models.StatusPending,
		CreatedAt:        t0,
	})
	if err != nil {
		t.Fatalf("CreateOccurrence failed: %v", err)
	}
	return fixture{store: store, clock: clk, ledger: l, rec: rec}
}

func (f fixture) enqueue(t *testing.T, at time.Time, kind models.ActionType, payload any) models.OfflineAction {
	t.Helper()
	f.clock.Set(at)
	a, err := f.rec.Enqueue(context.Background(), kind, payload)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	return a
}

func TestReplayInTimestampOrder(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	// Enqueued out of order: the snooze happened first.
	f.enqueue(t, t0.Add(2*time.Minute), models.ActionTypeConfirm, ConfirmPayload{OccurrenceID: "occ-1", ActorID: "nurse"})
	f.enqueue(t, t0.Add(time.Minute), models.ActionTypeSnooze, SnoozePayload{OccurrenceID: "occ-1", Minutes: 15, ActorID: "nurse"})

	f.clock.Set(t0.Add(time.Hour))
	report, err := f.rec.Replay(ctx)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if report.Applied != 2 || report.Failed != 0 || report.Purged != 2 {
		t.Errorf("report = %+v", report)
	}

	occ, _ := f.store.GetOccurrence(ctx, "occ-1")
	if occ.Status != models.StatusConfirmed || occ.SnoozeUntil != nil {
		t.Errorf("occurrence = %+v", occ)
	}
	if !occ.ConfirmedAt.Equal(t0.Add(2 * time.Minute)) {
		t.Errorf("ConfirmedAt = %v, want action timestamp", occ.ConfirmedAt)
	}

	pending, _ := f.rec.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestReplayKeepsDuplicateConfirmations(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	f.enqueue(t, t0.Add(time.Minute), models.ActionTypeConfirm, ConfirmPayload{OccurrenceID: "occ-1", ActorID: "tablet"})

	// Another caregiver confirmed online before the tablet reconnected.
	f.clock.Set(t0.Add(2 * time.Minute))
	if _, _, err := f.ledger.Confirm(ctx, models.Actor{ID: "phone"}, ledger.ConfirmRequest{OccurrenceID: "occ-1"}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	report, err := f.rec.Replay(ctx)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if report.Applied != 1 || report.Duplicates != 1 {
		t.Errorf("report = %+v", report)
	}

	history, _ := f.ledger.History(ctx, "occ-1")
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if !history[0].NeedsReview || history[0].ConfirmedBy != "tablet" {
		t.Errorf("duplicate record = %+v", history[0])
	}

	occ, _ := f.store.GetOccurrence(ctx, "occ-1")
	if !occ.NeedsReview || *occ.ConfirmedBy != "phone" {
		t.Errorf("occurrence = %+v", occ)
	}
}

func TestReplayFailureStaysQueued(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	bad := f.enqueue(t, t0, models.ActionTypeConfirm, ConfirmPayload{OccurrenceID: "missing", ActorID: "nurse"})
	f.enqueue(t, t0.Add(time.Minute), models.ActionTypeConfirm, ConfirmPayload{OccurrenceID: "occ-1", ActorID: "nurse"})

	report, err := f.rec.Replay(ctx)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if report.Applied != 1 || report.Failed != 1 || len(report.Errors) != 1 {
		t.Errorf("report = %+v", report)
	}

	pending, _ := f.rec.Pending(ctx)
	if len(pending) != 1 || pending[0].ID != bad.ID {
		t.Errorf("pending = %+v, want only the failed action", pending)
	}
}

// flakyQueue fails MarkSynced once so the same action is replayed twice.
type flakyQueue struct {
	*storage.JSONStore
	failures int
}

func (q *flakyQueue) MarkSynced(ctx context.Context, id string) error {
	if q.failures > 0 {
		q.failures--
		return errors.New("disk full")
	}
	return q.JSONStore.MarkSynced(ctx, id)
}

// lossyStore fails the first ledger append after the occurrence was written.
type lossyStore struct {
	*storage.JSONStore
	failures int
}

func (s *lossyStore) AppendConfirmationRecord(ctx context.Context, rec models.ConfirmationRecord) error {
	if s.failures > 0 {
		s.failures--
		return apperr.Transient("append record", errors.New("connection reset"))
	}
	return s.JSONStore.AppendConfirmationRecord(ctx, rec)
}

func TestReplayCompletesQuickLogMissingRecord(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	store := &lossyStore{JSONStore: f.store, failures: 1}
	logs := adhoc.New(store, f.clock, time.UTC, "default")
	f.rec = NewReconciler(f.store, store, f.ledger, snooze.New(store, f.clock), logs, f.clock)

	_, err := logs.CreateQuickLog(ctx, models.Actor{ID: "nurse"}, adhoc.QuickLog{
		Category: adhoc.CategorySnack,
		Note:     "treat",
		ID:       "quick-1",
	})
	if !apperr.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
	f.enqueue(t, t0, models.ActionTypeCreate, CreatePayload{
		OccurrenceID: "quick-1",
		Category:     "snack",
		Note:         "treat",
		ActorID:      "nurse",
	})

	report, err := f.rec.Replay(ctx)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if report.Applied != 1 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}

	history, err := f.store.ListConfirmationHistory(ctx, "quick-1")
	if err != nil {
		t.Fatalf("ListConfirmationHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Version != 1 || history[0].ConfirmedBy != "nurse" {
		t.Errorf("history = %+v, want one v1 record by nurse", history)
	}

	// A second replay of the same create adds nothing.
	f.enqueue(t, t0.Add(time.Minute), models.ActionTypeCreate, CreatePayload{OccurrenceID: "quick-1", Category: "snack", ActorID: "nurse"})
	if _, err := f.rec.Replay(ctx); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	history, _ = f.store.ListConfirmationHistory(ctx, "quick-1")
	if len(history) != 1 {
		t.Errorf("history length = %d, want 1", len(history))
	}
}

func TestReplayIsDeduplicatedByActionID(t *testing.T) {
	queueStore := storage.NewJSONStore(filepath.Join(t.TempDir(), "queue.json"))
	if err := queueStore.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	queue := &flakyQueue{JSONStore: queueStore, failures: 1}
	f := setup(t, queue)
	ctx := context.Background()

	f.enqueue(t, t0, models.ActionTypeConfirm, ConfirmPayload{OccurrenceID: "occ-1", ActorID: "nurse"})
	f.enqueue(t, t0.Add(time.Minute), models.ActionTypeCreate, CreatePayload{OccurrenceID: "log-1", Category: "snack", Note: "treat", ActorID: "nurse"})

	first, err := f.rec.Replay(ctx)
	if err != nil {
		t.Fatalf("first Replay failed: %v", err)
	}
	if first.Failed != 1 || first.Applied != 1 {
		t.Errorf("first report = %+v", first)
	}

	second, err := f.rec.Replay(ctx)
	if err != nil {
		t.Fatalf("second Replay failed: %v", err)
	}
	if second.Applied != 1 || second.Failed != 0 || second.Duplicates != 0 {
		t.Errorf("second report = %+v", second)
	}

	history, _ := f.ledger.History(ctx, "occ-1")
	if len(history) != 1 {
		t.Errorf("history length = %d, want 1", len(history))
	}
	log, err := f.store.GetOccurrence(ctx, "log-1")
	if err != nil {
		t.Fatalf("quick log not created: %v", err)
	}
	if log.Status != models.StatusConfirmed || !log.IsAdHoc {
		t.Errorf("quick log = %+v", log)
	}
}

func TestReplayUndoAndEdit(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, rec, err := f.ledger.Confirm(ctx, models.Actor{ID: "nurse"}, ledger.ConfirmRequest{OccurrenceID: "occ-1"})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	notes := "half dose"
	f.enqueue(t, t0.Add(time.Minute), models.ActionTypeEdit, EditPayload{RecordID: rec.ID, Notes: &notes, ActorID: "admin", Admin: true})
	f.enqueue(t, t0.Add(2*time.Minute), models.ActionTypeUndo, UndoPayload{OccurrenceID: "occ-1", ActorID: "nurse"})

	report, err := f.rec.Replay(ctx)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if report.Applied != 2 {
		t.Errorf("report = %+v", report)
	}

	history, _ := f.ledger.History(ctx, "occ-1")
	if len(history) != 3 || history[0].Action != models.ActionUndo || history[1].Action != models.ActionEdit {
		t.Errorf("history = %+v", history)
	}
}

func TestBeforeReplay(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	calls := 0
	f.rec.BeforeReplay = func(context.Context) error {
		calls++
		return errors.New("backup failed")
	}

	if _, err := f.rec.Replay(ctx); err != nil {
		t.Fatalf("Replay on empty queue failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("BeforeReplay called %d times for empty queue", calls)
	}

	f.enqueue(t, t0, models.ActionTypeSnooze, SnoozePayload{OccurrenceID: "occ-1", Minutes: 30})
	if _, err := f.rec.Replay(ctx); err == nil {
		t.Error("expected Replay to abort when BeforeReplay fails")
	}
	if pending, _ := f.rec.Pending(ctx); len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
}

func TestReplayUnknownType(t *testing.T) {
	f := setup(t, nil)
	f.enqueue(t, t0, models.ActionType("teleport"), struct{}{})

	report, err := f.rec.Replay(context.Background())
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
}
