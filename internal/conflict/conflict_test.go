package conflict

import (
	"testing"
	"time"

	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/models"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func entry(id, name, group string, confirmedAt *time.Time) Entry {
	def := models.TaskDefinition{ID: "def-" + id, Name: name}
	if group != "" {
		def.ConflictGroup = &group
	}
	occ := models.Occurrence{ID: id, TaskDefinitionID: def.ID, Status: models.StatusPending}
	if confirmedAt != nil {
		occ.Status = models.StatusConfirmed
		occ.ConfirmedAt = confirmedAt
	}
	return Entry{Occurrence: occ, Definition: def}
}

func TestCheckScenarioRemainingThree(t *testing.T) {
	a := entry("a", "Left eye drops", "leftEye", &t0)
	b := entry("b", "Left eye ointment", "leftEye", nil)

	res := Check(b, []Entry{a, b}, t0.Add(2*time.Minute))
	if !res.HasConflict {
		t.Fatal("expected conflict")
	}
	if res.RemainingMinutes != 3 {
		t.Errorf("RemainingMinutes = %d, want 3", res.RemainingMinutes)
	}
	if res.ConflictingTaskName != "Left eye drops" || !res.CanOverride {
		t.Errorf("result = %+v", res)
	}

	c, ok := apperr.AsConflict(res.Err())
	if !ok {
		t.Fatalf("Err() = %v, want ConflictError", res.Err())
	}
	if got := c.Error(); got != "Wait 3 min - Left eye drops was just given" {
		t.Errorf("message = %q", got)
	}
}

func TestCheckNoConflict(t *testing.T) {
	confirmed := t0
	tests := []struct {
		name   string
		target Entry
		all    []Entry
		now    time.Time
	}{
		{
			name:   "no group",
			target: entry("b", "B", "", nil),
			all:    []Entry{entry("a", "A", "leftEye", &confirmed)},
			now:    t0.Add(time.Minute),
		},
		{
			name:   "other group",
			target: entry("b", "B", "rightEye", nil),
			all:    []Entry{entry("a", "A", "leftEye", &confirmed)},
			now:    t0.Add(time.Minute),
		},
		{
			name:   "window elapsed",
			target: entry("b", "B", "leftEye", nil),
			all:    []Entry{entry("a", "A", "leftEye", &confirmed)},
			now:    t0.Add(5 * time.Minute),
		},
		{
			name:   "peer not confirmed",
			target: entry("b", "B", "leftEye", nil),
			all:    []Entry{entry("a", "A", "leftEye", nil)},
			now:    t0,
		},
		{
			name:   "self is ignored",
			target: entry("a", "A", "leftEye", &confirmed),
			all:    []Entry{entry("a", "A", "leftEye", &confirmed)},
			now:    t0.Add(time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Check(tt.target, tt.all, tt.now)
			if res.HasConflict || res.Err() != nil {
				t.Errorf("unexpected conflict: %+v", res)
			}
			if !res.CanOverride {
				t.Error("CanOverride must always be true")
			}
		})
	}
}

func TestCheckPicksMostRecent(t *testing.T) {
	older := t0
	newer := t0.Add(2 * time.Minute)
	all := []Entry{
		entry("a", "Older", "leftEye", &older),
		entry("b", "Newer", "leftEye", &newer),
	}

	res := Check(entry("c", "C", "leftEye", nil), all, t0.Add(3*time.Minute))
	if res.ConflictingTaskName != "Newer" || res.RemainingMinutes != 4 {
		t.Errorf("result = %+v, want Newer with 4 min", res)
	}
}

func TestRemainingMinutesBound(t *testing.T) {
	window := 5 * time.Minute
	for s := -600; s <= 600; s += 7 {
		elapsed := time.Duration(s) * time.Second
		m := remainingMinutes(window, elapsed)
		if m < 1 || m > 5 {
			t.Fatalf("elapsed %v: remaining %d out of [1, 5]", elapsed, m)
		}
	}

	// Sub-minute remainders round up.
	if m := remainingMinutes(window, 4*time.Minute+50*time.Second); m != 1 {
		t.Errorf("remaining = %d, want 1", m)
	}
	if m := remainingMinutes(window, 30*time.Second); m != 5 {
		t.Errorf("remaining = %d, want 5", m)
	}
}
