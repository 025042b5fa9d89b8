package storage

import (
	"context"
	"errors"

	"github.com/julianstephens/carelog/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write would violate a natural key,
	// e.g. a second occurrence for the same (definition, slot, date).
	ErrDuplicate = errors.New("duplicate")
)

// OccurrenceStore is the port the scheduling and ledger core depends on.
type OccurrenceStore interface {
	ListOccurrences(ctx context.Context, date string) ([]models.Occurrence, error)
	GetOccurrence(ctx context.Context, id string) (models.Occurrence, error)
	CreateOccurrence(ctx context.Context, occ models.Occurrence) (models.Occurrence, error)
	PatchOccurrence(ctx context.Context, id string, patch models.OccurrencePatch) error

	// ListConfirmationHistory returns the ledger for one occurrence ordered
	// by version descending.
	ListConfirmationHistory(ctx context.Context, occurrenceID string) ([]models.ConfirmationRecord, error)
	GetConfirmationRecord(ctx context.Context, id string) (models.ConfirmationRecord, error)
	AppendConfirmationRecord(ctx context.Context, rec models.ConfirmationRecord) error
}

// DefinitionStore holds task definitions and their schedule slots.
type DefinitionStore interface {
	AddTaskDefinition(ctx context.Context, def models.TaskDefinition) error
	GetTaskDefinition(ctx context.Context, id string) (models.TaskDefinition, error)
	ListTaskDefinitions(ctx context.Context, includeInactive bool) ([]models.TaskDefinition, error)
	UpdateTaskDefinition(ctx context.Context, def models.TaskDefinition) error
}

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Settings
	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error

	DefinitionStore
	OccurrenceStore

	// Utils
	GetConfigPath() string
}

// OfflineQueue is a local durable FIFO of actions captured while
// disconnected. It has no size or age limit.
type OfflineQueue interface {
	Enqueue(ctx context.Context, action models.OfflineAction) error
	// Pending returns unsynced actions ordered by timestamp ascending.
	Pending(ctx context.Context) ([]models.OfflineAction, error)
	MarkSynced(ctx context.Context, id string) error
	PurgeSynced(ctx context.Context) (int, error)
}
