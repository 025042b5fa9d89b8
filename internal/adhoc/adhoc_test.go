package adhoc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/carelog/internal/clock"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*storage.JSONStore, *Logger) {
	t.Helper()
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "carelog.json"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return store, New(store, clock.NewManual(t0), time.UTC, "default")
}

func TestCreateQuickLog(t *testing.T) {
	store, l := setup(t)
	ctx := context.Background()

	occ, err := l.CreateQuickLog(ctx, models.Actor{ID: "nurse"}, QuickLog{Category: CategorySnack, Note: "treat"})
	if err != nil {
		t.Fatalf("CreateQuickLog failed: %v", err)
	}
	if occ.Status != models.StatusConfirmed || !occ.IsAdHoc {
		t.Errorf("occurrence = %+v", occ)
	}
	if occ.ConfirmedAt == nil || !occ.ConfirmedAt.Equal(t0) || !occ.ScheduledAt.Equal(t0) {
		t.Errorf("times = %v / %v", occ.ConfirmedAt, occ.ScheduledAt)
	}
	if occ.Notes != "[snack] treat" || occ.Category != "snack" {
		t.Errorf("notes = %q category = %q", occ.Notes, occ.Category)
	}

	display, text, ok := Describe(occ)
	if !ok || display.Name != "Snack" || display.Kind != models.TaskKindFood || text != "treat" {
		t.Errorf("Describe = %+v %q %v", display, text, ok)
	}

	history, err := store.ListConfirmationHistory(ctx, occ.ID)
	if err != nil {
		t.Fatalf("ListConfirmationHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Version != 1 {
		t.Errorf("history = %+v", history)
	}
}

func TestPlaceholderReused(t *testing.T) {
	store, l := setup(t)
	ctx := context.Background()
	actor := models.Actor{ID: "nurse"}

	for i := 0; i < 3; i++ {
		if _, err := l.CreateQuickLog(ctx, actor, QuickLog{Category: CategorySymptom}); err != nil {
			t.Fatalf("CreateQuickLog failed: %v", err)
		}
	}
	if _, err := l.CreateQuickLog(ctx, actor, QuickLog{Category: CategoryBehavior}); err != nil {
		t.Fatalf("CreateQuickLog failed: %v", err)
	}

	// A fresh logger finds the existing rows instead of creating more.
	fresh := New(store, clock.NewManual(t0), time.UTC, "default")
	if _, err := fresh.CreateQuickLog(ctx, actor, QuickLog{Category: CategorySymptom}); err != nil {
		t.Fatalf("CreateQuickLog failed: %v", err)
	}

	defs, err := store.ListTaskDefinitions(ctx, true)
	if err != nil {
		t.Fatalf("ListTaskDefinitions failed: %v", err)
	}
	if len(defs) != 2 {
		t.Errorf("placeholder definitions = %d, want 2", len(defs))
	}
	for _, d := range defs {
		if !d.Placeholder || d.Frequency.Type != models.RecurrenceAdHoc {
			t.Errorf("definition = %+v", d)
		}
	}
}

func TestCreateQuickLogUnknownCategory(t *testing.T) {
	_, l := setup(t)
	_, err := l.CreateQuickLog(context.Background(), models.Actor{ID: "nurse"}, QuickLog{Category: "nap"})
	if !apperr.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestCreateOneOff(t *testing.T) {
	store, l := setup(t)
	ctx := context.Background()

	def := models.TaskDefinition{
		ID:        "def-1",
		Kind:      models.TaskKindMedication,
		Name:      "Pain relief",
		Frequency: models.Recurrence{Type: models.RecurrenceDaily},
		Active:    true,
	}
	if err := store.AddTaskDefinition(ctx, def); err != nil {
		t.Fatalf("AddTaskDefinition failed: %v", err)
	}

	at := t0.Add(3 * time.Hour)
	occ, err := l.CreateOneOff(ctx, OneOff{DefinitionID: "def-1", At: at, Notes: "extra dose"})
	if err != nil {
		t.Fatalf("CreateOneOff failed: %v", err)
	}
	if occ.Status != models.StatusPending || !occ.IsAdHoc || occ.ScheduleSlotID != nil || occ.Date != "2026-03-02" {
		t.Errorf("occurrence = %+v", occ)
	}

	if _, err := l.CreateOneOff(ctx, OneOff{DefinitionID: "missing", At: at}); !apperr.IsValidation(err) {
		t.Errorf("missing definition err = %v, want validation error", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		notes    string
		category Category
		text     string
		ok       bool
	}{
		{"[snack] treat", CategorySnack, "treat", true},
		{"[behavior]", CategoryBehavior, "", true},
		{"[other] scratched at door", CategoryOther, "scratched at door", true},
		{"plain note", "", "plain note", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		c, text, ok := Decode(tt.notes)
		if c != tt.category || text != tt.text || ok != tt.ok {
			t.Errorf("Decode(%q) = %q, %q, %v", tt.notes, c, text, ok)
		}
	}

	if got := Encode(CategorySnack, "  "); got != "[snack]" {
		t.Errorf("Encode empty = %q", got)
	}
}

func TestDescribeLegacyRow(t *testing.T) {
	occ := models.Occurrence{IsAdHoc: true, Notes: "[symptom] sneezing"}
	d, text, ok := Describe(occ)
	if !ok || d.Category != CategorySymptom || d.Icon == "" || text != "sneezing" {
		t.Errorf("Describe = %+v %q %v", d, text, ok)
	}

	if _, _, ok := Describe(models.Occurrence{Notes: "[snack] not adhoc"}); ok {
		t.Error("scheduled occurrence described as quick log")
	}

	d = DisplayFor("walk")
	if d.Name != "Walk" || d.Kind != models.TaskKindObservation {
		t.Errorf("DisplayFor unknown = %+v", d)
	}
}
