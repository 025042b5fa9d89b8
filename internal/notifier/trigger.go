// Package notifier keeps one reminder timer per pending occurrence and
// hands due triggers to a delivery sink.
package notifier

import (
	"context"
	"strings"
	"time"

	"github.com/julianstephens/carelog/internal/models"
)

// Trigger is a reminder for one occurrence.
type Trigger struct {
	OccurrenceID string    `json:"occurrence_id"`
	At           time.Time `json:"at"`
	Payload      string    `json:"payload"`
}

// Sink delivers fired triggers.
type Sink interface {
	Send(ctx context.Context, t Trigger) error
	Close() error
}

// Payload renders "{location}: {name} {dose} due now", dropping the parts
// a definition does not set.
func Payload(def models.TaskDefinition) string {
	var b strings.Builder
	if def.Location != "" {
		b.WriteString(def.Location)
		b.WriteString(": ")
	}
	b.WriteString(def.Name)
	if def.Dose != "" {
		b.WriteString(" ")
		b.WriteString(def.Dose)
	}
	b.WriteString(" due now")
	return b.String()
}

// TriggerFor returns the trigger an occurrence needs, or false when it
// should have none. Pending occurrences fire at their scheduled time and
// snoozed ones when the snooze ends.
func TriggerFor(occ models.Occurrence, def models.TaskDefinition) (Trigger, bool) {
	var at time.Time
	switch occ.Status {
	case models.StatusPending:
		at = occ.ScheduledAt
	case models.StatusSnoozed:
		if occ.SnoozeUntil == nil {
			return Trigger{}, false
		}
		at = *occ.SnoozeUntil
	default:
		return Trigger{}, false
	}
	return Trigger{OccurrenceID: occ.ID, At: at, Payload: Payload(def)}, true
}
