package models

import (
	"encoding/json"
	"time"
)

type ActionType string

const (
	ActionTypeConfirm ActionType = "confirm"
	ActionTypeSnooze  ActionType = "snooze"
	ActionTypeEdit    ActionType = "edit"
	ActionTypeCreate  ActionType = "create"
	ActionTypeUndo    ActionType = "undo"
)

// OfflineAction is a mutation captured while disconnected.
type OfflineAction struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	Synced    bool            `json:"synced"`
}
