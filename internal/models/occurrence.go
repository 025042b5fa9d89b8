package models

import "time"

type OccurrenceStatus string

const (
	StatusPending   OccurrenceStatus = "pending"
	StatusConfirmed OccurrenceStatus = "confirmed"
	StatusSnoozed   OccurrenceStatus = "snoozed"
	StatusExpired   OccurrenceStatus = "expired"
)

// Occurrence is one date-bound instance of a task definition.
type Occurrence struct {
	ID               string           `json:"id"`
	TaskDefinitionID string           `json:"task_definition_id"`
	ScheduleSlotID   *string          `json:"schedule_slot_id,omitempty"`
	Date             string           `json:"date"` // YYYY-MM-DD format
	ScheduledAt      time.Time        `json:"scheduled_at"`
	Status           OccurrenceStatus `json:"status"`
	ConfirmedAt      *time.Time       `json:"confirmed_at,omitempty"`
	ConfirmedBy      *string          `json:"confirmed_by,omitempty"`
	SnoozeUntil      *time.Time       `json:"snooze_until,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	IsAdHoc          bool             `json:"is_ad_hoc"`
	Category         string           `json:"category,omitempty"`
	NeedsReview      bool             `json:"needs_review,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// OccurrenceKey identifies a scheduled occurrence within one date.
type OccurrenceKey struct {
	TaskDefinitionID string
	ScheduleSlotID   string
}

func (o Occurrence) Key() OccurrenceKey {
	k := OccurrenceKey{TaskDefinitionID: o.TaskDefinitionID}
	if o.ScheduleSlotID != nil {
		k.ScheduleSlotID = *o.ScheduleSlotID
	}
	return k
}

// OccurrencePatch lists the mutable fields of an occurrence. Nil fields are
// left untouched; the Clear flags null the corresponding columns.
type OccurrencePatch struct {
	Status            *OccurrenceStatus `json:"status,omitempty"`
	ConfirmedAt       *time.Time        `json:"confirmed_at,omitempty"`
	ConfirmedBy       *string           `json:"confirmed_by,omitempty"`
	SnoozeUntil       *time.Time        `json:"snooze_until,omitempty"`
	Notes             *string           `json:"notes,omitempty"`
	NeedsReview       *bool             `json:"needs_review,omitempty"`
	ClearConfirmation bool              `json:"clear_confirmation,omitempty"`
	ClearSnooze       bool              `json:"clear_snooze,omitempty"`
}

func (o *Occurrence) Apply(p OccurrencePatch) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.ClearConfirmation {
		o.ConfirmedAt = nil
		o.ConfirmedBy = nil
	}
	if p.ConfirmedAt != nil {
		t := *p.ConfirmedAt
		o.ConfirmedAt = &t
	}
	if p.ConfirmedBy != nil {
		by := *p.ConfirmedBy
		o.ConfirmedBy = &by
	}
	if p.ClearSnooze {
		o.SnoozeUntil = nil
	}
	if p.SnoozeUntil != nil {
		t := *p.SnoozeUntil
		o.SnoozeUntil = &t
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	if p.NeedsReview != nil {
		o.NeedsReview = *p.NeedsReview
	}
}

func StatusPtr(s OccurrenceStatus) *OccurrenceStatus { return &s }

func StringPtr(s string) *string { return &s }

func TimePtr(t time.Time) *time.Time { return &t }

func BoolPtr(b bool) *bool { return &b }
