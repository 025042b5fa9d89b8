package models

import "time"

type RecordAction string

const (
	ActionConfirm RecordAction = "confirm"
	ActionEdit    RecordAction = "edit"
	ActionUndo    RecordAction = "undo"
)

// RecordSnapshot holds the values a record had before an edit changed them.
// Only changed fields are set.
type RecordSnapshot struct {
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy *string    `json:"confirmed_by,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

// ConfirmationRecord is an append-only ledger entry for one occurrence.
type ConfirmationRecord struct {
	ID             string          `json:"id"`
	OccurrenceID   string          `json:"occurrence_id"`
	Version        int             `json:"version"`
	Action         RecordAction    `json:"action"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	ConfirmedBy    string          `json:"confirmed_by,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	EditedAt       *time.Time      `json:"edited_at,omitempty"`
	EditedBy       string          `json:"edited_by,omitempty"`
	EditOf         string          `json:"edit_of,omitempty"` // id of the record this one edits
	PreviousValues *RecordSnapshot `json:"previous_values,omitempty"`
	ActionID       string          `json:"action_id,omitempty"` // offline action that produced this record
	NeedsReview    bool            `json:"needs_review,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
