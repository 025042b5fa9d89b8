package models

import (
	"testing"
	"time"

	"github.com/julianstephens/carelog/internal/constants"
)

func TestTaskDefinitionValidate(t *testing.T) {
	valid := func() TaskDefinition {
		return TaskDefinition{
			ID:        "def-1",
			Name:      "Eye drops",
			Kind:      TaskKindMedication,
			Frequency: Recurrence{Type: RecurrenceDaily},
			Slots:     []ScheduleSlot{{ID: "s1", Time: "08:00"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(d *TaskDefinition)
		wantErr bool
	}{
		{"valid", func(d *TaskDefinition) {}, false},
		{"empty name", func(d *TaskDefinition) { d.Name = "" }, true},
		{"bad kind", func(d *TaskDefinition) { d.Kind = "potion" }, true},
		{"bad start date", func(d *TaskDefinition) { d.StartDate = "03/02/2026" }, true},
		{"end before start", func(d *TaskDefinition) { d.StartDate, d.EndDate = "2026-03-10", "2026-03-01" }, true},
		{"weekly without days", func(d *TaskDefinition) { d.Frequency = Recurrence{Type: RecurrenceWeekly} }, true},
		{"weekly with days", func(d *TaskDefinition) {
			d.Frequency = Recurrence{Type: RecurrenceWeekly, WeekdayMask: []time.Weekday{time.Monday}}
		}, false},
		{"n_days zero interval", func(d *TaskDefinition) { d.Frequency = Recurrence{Type: RecurrenceNDays} }, true},
		{"unknown recurrence", func(d *TaskDefinition) { d.Frequency = Recurrence{Type: "hourly"} }, true},
		{"bad slot time", func(d *TaskDefinition) { d.Slots[0].Time = "8am" }, true},
		{"duplicate slot id", func(d *TaskDefinition) { d.Slots = append(d.Slots, ScheduleSlot{ID: "s1", Time: "20:00"}) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(&d)
			if err := d.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInWindow(t *testing.T) {
	d := TaskDefinition{StartDate: "2026-03-02", EndDate: "2026-03-04"}
	for date, want := range map[string]bool{
		"2026-03-01": false,
		"2026-03-02": true,
		"2026-03-04": true,
		"2026-03-05": false,
	} {
		if got := d.InWindow(date); got != want {
			t.Errorf("InWindow(%s) = %v, want %v", date, got, want)
		}
	}
	if open := (TaskDefinition{}); !open.InWindow("1999-01-01") {
		t.Error("open window should include every date")
	}
}

func TestGroup(t *testing.T) {
	d := TaskDefinition{}
	if d.Group() != nil {
		t.Error("definition without group returned one")
	}
	d.ConflictGroup = StringPtr("")
	if d.Group() != nil {
		t.Error("empty group name should mean no group")
	}
	d.ConflictGroup = StringPtr("leftEye")
	g := d.Group()
	if g == nil || g.Name != "leftEye" || g.Window() != constants.DefaultSpacingMin*time.Minute {
		t.Errorf("Group() = %+v", g)
	}
}

func TestOccurrenceApply(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	occ := Occurrence{
		Status:      StatusConfirmed,
		ConfirmedAt: TimePtr(now),
		ConfirmedBy: StringPtr("nurse"),
		Notes:       "given",
	}

	occ.Apply(OccurrencePatch{
		Status:            StatusPtr(StatusSnoozed),
		ClearConfirmation: true,
		SnoozeUntil:       TimePtr(now.Add(15 * time.Minute)),
	})
	if occ.Status != StatusSnoozed || occ.ConfirmedAt != nil || occ.ConfirmedBy != nil {
		t.Errorf("after snooze patch: %+v", occ)
	}
	if occ.SnoozeUntil == nil || !occ.SnoozeUntil.Equal(now.Add(15*time.Minute)) || occ.Notes != "given" {
		t.Errorf("after snooze patch: %+v", occ)
	}

	occ.Apply(OccurrencePatch{ClearSnooze: true, NeedsReview: BoolPtr(true), Notes: StringPtr("")})
	if occ.SnoozeUntil != nil || !occ.NeedsReview || occ.Notes != "" {
		t.Errorf("after clear patch: %+v", occ)
	}
}

func TestOccurrenceKey(t *testing.T) {
	slotted := Occurrence{TaskDefinitionID: "def-1", ScheduleSlotID: StringPtr("s1")}
	if k := slotted.Key(); k != (OccurrenceKey{"def-1", "s1"}) {
		t.Errorf("Key() = %+v", k)
	}
	adhoc := Occurrence{TaskDefinitionID: "def-1"}
	if k := adhoc.Key(); k.ScheduleSlotID != "" {
		t.Errorf("Key() = %+v", k)
	}
}

func TestActorFor(t *testing.T) {
	s := Settings{Admins: []string{"alice"}}
	if a := s.ActorFor("alice"); !a.Admin || a.ID != "alice" {
		t.Errorf("ActorFor(alice) = %+v", a)
	}
	if a := s.ActorFor("bob"); a.Admin {
		t.Errorf("ActorFor(bob) = %+v", a)
	}
}

func TestSettingsMapRoundTrip(t *testing.T) {
	s := Settings{
		Timezone:             "America/Chicago",
		SubjectID:            "grandma",
		Admins:               []string{"alice", "bob"},
		NotificationsEnabled: false,
		NotificationSink:     constants.SinkRedis,
		SinkAddress:          "localhost:6379",
		SinkTopic:            "care",
	}
	got := MapToSettings(SettingsToMap(s))
	if got.Timezone != s.Timezone || got.SubjectID != s.SubjectID || got.NotificationsEnabled ||
		got.NotificationSink != s.NotificationSink || got.SinkAddress != s.SinkAddress || got.SinkTopic != s.SinkTopic {
		t.Errorf("MapToSettings = %+v", got)
	}
	if len(got.Admins) != 2 || got.Admins[0] != "alice" || got.Admins[1] != "bob" {
		t.Errorf("admins = %v", got.Admins)
	}

	defaults := MapToSettings(map[string]string{constants.SettingAdmins: " , carol ,"})
	if defaults.Timezone != constants.DefaultTimezone || !defaults.NotificationsEnabled {
		t.Errorf("missing keys should keep defaults: %+v", defaults)
	}
	if len(defaults.Admins) != 1 || defaults.Admins[0] != "carol" {
		t.Errorf("admins = %v", defaults.Admins)
	}
}
