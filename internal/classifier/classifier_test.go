package classifier

import (
	"fmt"
	"testing"
	"time"

	"github.com/julianstephens/carelog/internal/models"
)

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func occ(status models.OccurrenceStatus, scheduledAt time.Time) models.Occurrence {
	return models.Occurrence{ID: fmt.Sprintf("%s-%d", status, scheduledAt.Unix()), Status: status, ScheduledAt: scheduledAt}
}

func TestClassify(t *testing.T) {
	snoozedUntil := base.Add(15 * time.Minute)
	snoozed := occ(models.StatusSnoozed, base.Add(-time.Hour))
	snoozed.SnoozeUntil = &snoozedUntil

	tests := []struct {
		name string
		occ  models.Occurrence
		now  time.Time
		want Bucket
	}{
		{"confirmed", occ(models.StatusConfirmed, base), base, BucketConfirmed},
		{"expired", occ(models.StatusExpired, base.Add(time.Hour)), base, BucketOverdue},
		{"upcoming", occ(models.StatusPending, base.Add(time.Minute)), base, BucketUpcoming},
		{"due at scheduled time", occ(models.StatusPending, base), base, BucketDue},
		{"due just under threshold", occ(models.StatusPending, base), base.Add(29*time.Minute + 59*time.Second), BucketDue},
		{"overdue at threshold", occ(models.StatusPending, base), base.Add(30 * time.Minute), BucketOverdue},
		{"snoozed before until", snoozed, base, BucketSnoozed},
		{"snoozed at until", snoozed, snoozedUntil, BucketDue},
		{"snoozed without until", occ(models.StatusSnoozed, base), base, BucketDue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.occ, tt.now); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSnoozeTransitionWithoutWrites(t *testing.T) {
	// Snoozed 15 minutes at T: snoozed on [T, T+15), due at T+15.
	until := base.Add(15 * time.Minute)
	o := occ(models.StatusSnoozed, base.Add(-10*time.Minute))
	o.SnoozeUntil = &until

	for m := 0; m < 15; m++ {
		now := base.Add(time.Duration(m) * time.Minute)
		if got := Classify(o, now); got != BucketSnoozed {
			t.Fatalf("at T+%dm got %s, want snoozed", m, got)
		}
	}
	if got := Classify(o, until); got != BucketDue {
		t.Errorf("at T+15m got %s, want due", got)
	}
}

func TestGroupTotality(t *testing.T) {
	var occs []models.Occurrence
	statuses := []models.OccurrenceStatus{models.StatusPending, models.StatusConfirmed, models.StatusSnoozed, models.StatusExpired}
	for i := -90; i <= 90; i += 10 {
		for _, st := range statuses {
			o := occ(st, base.Add(time.Duration(i)*time.Minute))
			if st == models.StatusSnoozed {
				until := base.Add(time.Duration(i+20) * time.Minute)
				o.SnoozeUntil = &until
			}
			occs = append(occs, o)
		}
	}

	for _, now := range []time.Time{base.Add(-2 * time.Hour), base, base.Add(45 * time.Minute)} {
		board := Group(occs, now)
		if board.Total() != len(occs) {
			t.Errorf("now=%v: total %d, want %d", now, board.Total(), len(occs))
		}
		upcoming := len(board.Get(BucketUpcoming))
		if board.PendingCount()+board.ConfirmedCount()+upcoming != len(occs) {
			t.Errorf("now=%v: pending %d + confirmed %d + upcoming %d != %d",
				now, board.PendingCount(), board.ConfirmedCount(), upcoming, len(occs))
		}
	}
}

func TestGroupSortsByEffectiveTime(t *testing.T) {
	early := occ(models.StatusPending, base.Add(-20*time.Minute))
	late := occ(models.StatusPending, base.Add(-5*time.Minute))

	// Scheduled earliest but its snooze has already lapsed after the others.
	lapsed := occ(models.StatusSnoozed, base.Add(-60*time.Minute))
	until := base.Add(-1 * time.Minute)
	lapsed.SnoozeUntil = &until

	board := Group([]models.Occurrence{lapsed, late, early}, base)
	due := board.Get(BucketDue)
	if len(due) != 3 {
		t.Fatalf("due = %d, want 3", len(due))
	}
	if due[0].ID != early.ID || due[1].ID != late.ID || due[2].ID != lapsed.ID {
		t.Errorf("due order = %s, %s, %s", due[0].ID, due[1].ID, due[2].ID)
	}
}
