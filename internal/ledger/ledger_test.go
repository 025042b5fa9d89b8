package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/carelog/internal/clock"
	"github.com/julianstephens/carelog/internal/constants"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store  *storage.JSONStore
	clock  *clock.Manual
	ledger *Ledger
}

func setup(t *testing.T) fixture {
	t.Helper()
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "carelog.json"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	clk := clock.NewManual(t0)
	return fixture{store: store, clock: clk, ledger: New(store, clk, time.UTC)}
}

func (f fixture) addTask(t *testing.T, id, name, group string) models.Occurrence {
	t.Helper()
	return f.addTaskAt(t, id, name, group, t0)
}

// addTaskAt creates a daily task with one pending occurrence scheduled at.
func (f fixture) addTaskAt(t *testing.T, id, name, group string, at time.Time) models.Occurrence {
	t.Helper()
	ctx := context.Background()
	def := models.TaskDefinition{
		ID:        "def-" + id,
		SubjectID: "default",
		Kind:      models.TaskKindMedication,
		Name:      name,
		Frequency: models.Recurrence{Type: models.RecurrenceDaily},
		Active:    true,
		CreatedAt: t0,
	}
	if group != "" {
		def.ConflictGroup = &group
	}
	if err := f.store.AddTaskDefinition(ctx, def); err != nil {
		t.Fatalf("AddTaskDefinition failed: %v", err)
	}
	slot := "slot-" + id
	occ, err := f.store.CreateOccurrence(ctx, models.Occurrence{
		ID:               id,
		TaskDefinitionID: def.ID,
		ScheduleSlotID:   &slot,
		Date:             at.Format(constants.DateFormat),
		ScheduledAt:      at,
		Status:           models.StatusPending,
		CreatedAt:        at,
	})
	if err != nil {
		t.Fatalf("CreateOccurrence failed: %v", err)
	}
	return occ
}

var (
	nurse = models.Actor{ID: "nurse"}
	admin = models.Actor{ID: "admin", Admin: true}
)

func TestConfirm(t *testing.T) {
	f := setup(t)
	f.addTask(t, "occ-1", "Vitamin D", "")
	ctx := context.Background()

	notes := "with breakfast"
	occ, rec, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "occ-1", Notes: &notes})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if occ.Status != models.StatusConfirmed || occ.ConfirmedBy == nil || *occ.ConfirmedBy != "nurse" {
		t.Errorf("occurrence = %+v", occ)
	}
	if rec.Version != 1 || rec.Action != models.ActionConfirm || rec.Notes != notes {
		t.Errorf("record = %+v", rec)
	}

	stored, err := f.store.GetOccurrence(ctx, "occ-1")
	if err != nil {
		t.Fatalf("GetOccurrence failed: %v", err)
	}
	if stored.Status != models.StatusConfirmed || !stored.ConfirmedAt.Equal(t0) {
		t.Errorf("stored = %+v", stored)
	}
}

func TestConfirmTwiceIsValidationError(t *testing.T) {
	f := setup(t)
	f.addTask(t, "occ-1", "Vitamin D", "")
	ctx := context.Background()

	if _, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "occ-1"}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	_, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "occ-1"})
	if !apperr.IsValidation(err) {
		t.Errorf("second Confirm err = %v, want validation error", err)
	}
}

func TestConfirmMissingOccurrence(t *testing.T) {
	f := setup(t)
	_, _, err := f.ledger.Confirm(context.Background(), nurse, ConfirmRequest{OccurrenceID: "nope"})
	if !apperr.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestConfirmSameActionIDIsIdempotent(t *testing.T) {
	f := setup(t)
	f.addTask(t, "occ-1", "Vitamin D", "")
	ctx := context.Background()

	req := ConfirmRequest{OccurrenceID: "occ-1", ActionID: "act-1"}
	_, first, err := f.ledger.Confirm(ctx, nurse, req)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	_, second, err := f.ledger.Confirm(ctx, nurse, req)
	if err != nil {
		t.Fatalf("replayed Confirm failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("replay produced a new record: %s != %s", second.ID, first.ID)
	}

	history, _ := f.ledger.History(ctx, "occ-1")
	if len(history) != 1 {
		t.Errorf("history length = %d, want 1", len(history))
	}
}

func TestConfirmConflictThenOverride(t *testing.T) {
	f := setup(t)
	f.addTask(t, "drops", "Left eye drops", "leftEye")
	f.addTask(t, "ointment", "Left eye ointment", "leftEye")
	ctx := context.Background()

	if _, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "drops"}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	f.clock.Advance(2 * time.Minute)
	_, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "ointment"})
	c, ok := apperr.AsConflict(err)
	if !ok {
		t.Fatalf("err = %v, want conflict", err)
	}
	if c.RemainingMinutes != 3 || c.ConflictingTaskName != "Left eye drops" {
		t.Errorf("conflict = %+v", c)
	}

	occ, _ := f.store.GetOccurrence(ctx, "ointment")
	if occ.Status != models.StatusPending {
		t.Errorf("blocked occurrence status = %s, want pending", occ.Status)
	}

	occ, _, err = f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "ointment", OverrideConflict: true})
	if err != nil {
		t.Fatalf("override Confirm failed: %v", err)
	}
	if occ.Status != models.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", occ.Status)
	}
}

func TestConfirmAfterWindowElapsed(t *testing.T) {
	f := setup(t)
	f.addTask(t, "drops", "Left eye drops", "leftEye")
	f.addTask(t, "ointment", "Left eye ointment", "leftEye")
	ctx := context.Background()

	if _, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "drops"}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	f.clock.Advance(5 * time.Minute)
	if _, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "ointment"}); err != nil {
		t.Errorf("Confirm after window failed: %v", err)
	}
}

func TestConfirmConflictAcrossMidnight(t *testing.T) {
	f := setup(t)
	lateNight := time.Date(2026, 3, 1, 23, 58, 0, 0, time.UTC)
	f.addTaskAt(t, "drops", "Left eye drops", "leftEye", lateNight)
	f.addTaskAt(t, "ointment", "Left eye ointment", "leftEye", lateNight.Add(2*time.Minute))
	ctx := context.Background()

	f.clock.Set(lateNight.Add(time.Minute))
	if _, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "drops"}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	f.clock.Set(lateNight.Add(4 * time.Minute))
	_, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "ointment"})
	c, ok := apperr.AsConflict(err)
	if !ok {
		t.Fatalf("err = %v, want conflict", err)
	}
	if c.RemainingMinutes != 2 || c.ConflictingTaskName != "Left eye drops" {
		t.Errorf("conflict = %+v", c)
	}
}

func TestConfirmConflictUsesScheduleTimezone(t *testing.T) {
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "carelog.json"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	loc := time.FixedZone("UTC-5", -5*60*60)
	// 23:58 local on March 1 is stored as 04:58 UTC on March 2.
	lateNight := time.Date(2026, 3, 1, 23, 58, 0, 0, loc)
	f := fixture{store: store, clock: clock.NewManual(lateNight.UTC())}
	f.ledger = New(store, f.clock, loc)
	ctx := context.Background()

	for _, o := range []struct {
		id, name, date string
		at             time.Time
	}{
		{"drops", "Left eye drops", "2026-03-01", lateNight},
		{"ointment", "Left eye ointment", "2026-03-02", lateNight.Add(2 * time.Minute)},
	} {
		group := "leftEye"
		def := models.TaskDefinition{
			ID:            "def-" + o.id,
			SubjectID:     "default",
			Kind:          models.TaskKindMedication,
			Name:          o.name,
			Frequency:     models.Recurrence{Type: models.RecurrenceDaily},
			ConflictGroup: &group,
			Active:        true,
			CreatedAt:     o.at,
		}
		if err := store.AddTaskDefinition(ctx, def); err != nil {
			t.Fatalf("AddTaskDefinition failed: %v", err)
		}
		slot := "slot-" + o.id
		if _, err := store.CreateOccurrence(ctx, models.Occurrence{
			ID:               o.id,
			TaskDefinitionID: def.ID,
			ScheduleSlotID:   &slot,
			Date:             o.date,
			ScheduledAt:      o.at.UTC(),
			Status:           models.StatusPending,
			CreatedAt:        o.at.UTC(),
		}); err != nil {
			t.Fatalf("CreateOccurrence failed: %v", err)
		}
	}

	f.clock.Set(lateNight.Add(time.Minute).UTC())
	if _, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "drops"}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	f.clock.Set(lateNight.Add(4 * time.Minute).UTC())
	_, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "ointment"})
	if c, ok := apperr.AsConflict(err); !ok || c.RemainingMinutes != 2 {
		t.Fatalf("err = %v, want conflict with 2 minutes remaining", err)
	}
}

func TestUndo(t *testing.T) {
	f := setup(t)
	f.addTask(t, "occ-1", "Vitamin D", "")
	ctx := context.Background()

	notes := "given late"
	if _, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "occ-1", Notes: &notes}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	f.clock.Advance(time.Minute)

	occ, err := f.ledger.Undo(ctx, nurse, UndoRequest{OccurrenceID: "occ-1"})
	if err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if occ.Status != models.StatusPending || occ.ConfirmedAt != nil || occ.ConfirmedBy != nil {
		t.Errorf("occurrence = %+v", occ)
	}
	if !strings.HasPrefix(occ.Notes, "given late [undone ") || !strings.HasSuffix(occ.Notes, " by nurse]") {
		t.Errorf("notes = %q", occ.Notes)
	}

	history, err := f.ledger.History(ctx, "occ-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	undo := history[0]
	if undo.Action != models.ActionUndo || undo.Version != 2 {
		t.Errorf("undo record = %+v", undo)
	}
	if undo.PreviousValues == nil || undo.PreviousValues.ConfirmedAt == nil || !undo.PreviousValues.ConfirmedAt.Equal(t0) {
		t.Errorf("undo previous values = %+v", undo.PreviousValues)
	}
}

func TestUndoPendingIsValidationError(t *testing.T) {
	f := setup(t)
	f.addTask(t, "occ-1", "Vitamin D", "")

	_, err := f.ledger.Undo(context.Background(), nurse, UndoRequest{OccurrenceID: "occ-1"})
	if !apperr.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestEditRequiresAdmin(t *testing.T) {
	f := setup(t)
	f.addTask(t, "occ-1", "Vitamin D", "")
	ctx := context.Background()

	_, rec, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "occ-1"})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	notes := "changed"
	_, err = f.ledger.Edit(ctx, nurse, rec.ID, EditRequest{Notes: &notes}, nil)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("err = %v, want forbidden", err)
	}

	history, _ := f.ledger.History(ctx, "occ-1")
	if len(history) != 1 {
		t.Errorf("history length = %d, want 1", len(history))
	}
}

func TestEditWithoutChangesIsValidationError(t *testing.T) {
	f := setup(t)
	f.addTask(t, "occ-1", "Vitamin D", "")
	ctx := context.Background()

	_, rec, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "occ-1"})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if _, err := f.ledger.Edit(ctx, admin, rec.ID, EditRequest{}, nil); !apperr.IsValidation(err) {
		t.Errorf("empty edit err = %v, want validation error", err)
	}
	same := "nurse"
	if _, err := f.ledger.Edit(ctx, admin, rec.ID, EditRequest{ConfirmedBy: &same}, nil); !apperr.IsValidation(err) {
		t.Errorf("no-op edit err = %v, want validation error", err)
	}
}

func TestAuditTrailSurvivesConfirmEditUndo(t *testing.T) {
	f := setup(t)
	f.addTask(t, "occ-1", "Vitamin D", "")
	ctx := context.Background()

	_, rec, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "occ-1"})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	f.clock.Advance(10 * time.Minute)
	corrected := t0.Add(-15 * time.Minute)
	edited, err := f.ledger.Edit(ctx, admin, rec.ID, EditRequest{ConfirmedAt: &corrected}, nil)
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if edited.Version != 2 || edited.EditOf != rec.ID || edited.EditedBy != "admin" {
		t.Errorf("edit record = %+v", edited)
	}
	if edited.PreviousValues == nil || edited.PreviousValues.ConfirmedAt == nil || !edited.PreviousValues.ConfirmedAt.Equal(t0) {
		t.Errorf("edit previous values = %+v", edited.PreviousValues)
	}
	if edited.PreviousValues.Notes != nil || edited.PreviousValues.ConfirmedBy != nil {
		t.Errorf("unchanged fields captured: %+v", edited.PreviousValues)
	}

	occ, _ := f.store.GetOccurrence(ctx, "occ-1")
	if occ.ConfirmedAt == nil || !occ.ConfirmedAt.Equal(corrected) {
		t.Errorf("occurrence confirmed_at = %v, want %v", occ.ConfirmedAt, corrected)
	}

	if _, err := f.ledger.Undo(ctx, nurse, UndoRequest{OccurrenceID: "occ-1"}); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}

	history, err := f.ledger.History(ctx, "occ-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) < 3 {
		t.Fatalf("history length = %d, want at least 3", len(history))
	}
	want := []models.RecordAction{models.ActionUndo, models.ActionEdit, models.ActionConfirm}
	for i, action := range want {
		if history[i].Action != action || history[i].Version != len(want)-i {
			t.Errorf("history[%d] = %s v%d, want %s v%d", i, history[i].Action, history[i].Version, action, len(want)-i)
		}
	}
	for _, r := range history[:2] {
		if r.PreviousValues == nil {
			t.Errorf("%s record has no previous values", r.Action)
		}
	}
}

func TestEditUndoRecordRejected(t *testing.T) {
	f := setup(t)
	f.addTask(t, "occ-1", "Vitamin D", "")
	ctx := context.Background()

	if _, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "occ-1"}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if _, err := f.ledger.Undo(ctx, nurse, UndoRequest{OccurrenceID: "occ-1"}); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	history, _ := f.ledger.History(ctx, "occ-1")

	notes := "x"
	if _, err := f.ledger.Edit(ctx, admin, history[0].ID, EditRequest{Notes: &notes}, nil); !apperr.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestRecordDuplicateFlagsReview(t *testing.T) {
	f := setup(t)
	f.addTask(t, "occ-1", "Vitamin D", "")
	ctx := context.Background()

	if _, _, err := f.ledger.Confirm(ctx, nurse, ConfirmRequest{OccurrenceID: "occ-1"}); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	at := t0.Add(3 * time.Minute)
	rec, err := f.ledger.RecordDuplicate(ctx, models.Actor{ID: "tablet"}, ConfirmRequest{OccurrenceID: "occ-1", At: &at, ActionID: "act-9"})
	if err != nil {
		t.Fatalf("RecordDuplicate failed: %v", err)
	}
	if !rec.NeedsReview || rec.Version != 2 || !rec.ConfirmedAt.Equal(at) {
		t.Errorf("record = %+v", rec)
	}

	occ, _ := f.store.GetOccurrence(ctx, "occ-1")
	if !occ.NeedsReview || *occ.ConfirmedBy != "nurse" {
		t.Errorf("occurrence = %+v", occ)
	}
}

type racingStore struct {
	*storage.JSONStore
	collisions int
}

func (s *racingStore) AppendConfirmationRecord(ctx context.Context, rec models.ConfirmationRecord) error {
	if s.collisions > 0 {
		s.collisions--
		return storage.ErrDuplicate
	}
	return s.JSONStore.AppendConfirmationRecord(ctx, rec)
}

func TestAppendRetriesOnVersionCollision(t *testing.T) {
	f := setup(t)
	f.addTask(t, "occ-1", "Vitamin D", "")
	store := &racingStore{JSONStore: f.store, collisions: 2}
	l := New(store, f.clock, time.UTC)

	if _, _, err := l.Confirm(context.Background(), nurse, ConfirmRequest{OccurrenceID: "occ-1"}); err != nil {
		t.Fatalf("Confirm failed after collisions: %v", err)
	}

	store.collisions = appendAttempts
	f.clock.Advance(time.Minute)
	if _, err := l.Undo(context.Background(), nurse, UndoRequest{OccurrenceID: "occ-1"}); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate after exhausting retries", err)
	}
}

func TestNextVersion(t *testing.T) {
	if got := NextVersion(nil); got != 1 {
		t.Errorf("NextVersion(nil) = %d, want 1", got)
	}
	history := []models.ConfirmationRecord{{Version: 2}, {Version: 5}, {Version: 3}}
	if got := NextVersion(history); got != 6 {
		t.Errorf("NextVersion = %d, want 6", got)
	}
}
