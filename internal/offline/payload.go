package offline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/julianstephens/carelog/internal/models"
)

// Payloads carry the acting user so replay credits the right person.

type ConfirmPayload struct {
	OccurrenceID string  `json:"occurrence_id"`
	Notes        *string `json:"notes,omitempty"`
	ActorID      string  `json:"actor_id"`
}

type SnoozePayload struct {
	OccurrenceID string `json:"occurrence_id"`
	Minutes      int    `json:"minutes"`
	ActorID      string `json:"actor_id"`
}

type UndoPayload struct {
	OccurrenceID string `json:"occurrence_id"`
	ActorID      string `json:"actor_id"`
}

type EditPayload struct {
	RecordID    string     `json:"record_id"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy *string    `json:"confirmed_by,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	ActorID     string     `json:"actor_id"`
	Admin       bool       `json:"admin"`
}

// CreatePayload is either a quick log (Category set) or a one-off instance
// of an existing definition (DefinitionID set).
type CreatePayload struct {
	OccurrenceID string     `json:"occurrence_id"`
	Category     string     `json:"category,omitempty"`
	Note         string     `json:"note,omitempty"`
	DefinitionID string     `json:"definition_id,omitempty"`
	At           *time.Time `json:"at,omitempty"`
	ActorID      string     `json:"actor_id"`
}

func decode(action models.OfflineAction, v any) error {
	if err := json.Unmarshal(action.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload for action %s: %w", action.Type, action.ID, err)
	}
	return nil
}
