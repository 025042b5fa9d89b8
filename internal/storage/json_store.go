package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/julianstephens/carelog/internal/models"
)

type document struct {
	Version        int                                  `json:"version"`
	Settings       models.Settings                      `json:"settings"`
	Definitions    map[string]models.TaskDefinition     `json:"definitions"`
	Occurrences    map[string]models.Occurrence         `json:"occurrences"`
	Confirmations  map[string]models.ConfirmationRecord `json:"confirmations"`
	OfflineActions map[string]models.OfflineAction      `json:"offline_actions"`
}

// JSONStore is the local fallback backend: a single JSON document on disk.
// It also implements OfflineQueue.
type JSONStore struct {
	mu   sync.Mutex
	path string
	doc  *document
}

func NewJSONStore(configPath string) *JSONStore {
	return &JSONStore{
		path: configPath,
	}
}

func (s *JSONStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("storage already initialized at %s", s.path)
	}

	s.doc = &document{
		Version:  1,
		Settings: models.DefaultSettings(),
	}
	s.ensureMaps()

	return s.save()
}

func (s *JSONStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage not initialized, run 'carelog init' first")
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	s.doc = &document{}
	if err := json.Unmarshal(data, s.doc); err != nil {
		return fmt.Errorf("failed to parse storage: %w", err)
	}
	s.ensureMaps()

	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) GetConfigPath() string {
	return s.path
}

func (s *JSONStore) ensureMaps() {
	if s.doc.Definitions == nil {
		s.doc.Definitions = make(map[string]models.TaskDefinition)
	}
	if s.doc.Occurrences == nil {
		s.doc.Occurrences = make(map[string]models.Occurrence)
	}
	if s.doc.Confirmations == nil {
		s.doc.Confirmations = make(map[string]models.ConfirmationRecord)
	}
	if s.doc.OfflineActions == nil {
		s.doc.OfflineActions = make(map[string]models.OfflineAction)
	}
}

// save must be called with mu held.
func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}

	return nil
}

func (s *JSONStore) loaded() error {
	if s.doc == nil {
		return fmt.Errorf("storage not loaded")
	}
	return nil
}

func (s *JSONStore) GetSettings(ctx context.Context) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return models.Settings{}, err
	}
	return s.doc.Settings, nil
}

func (s *JSONStore) SaveSettings(ctx context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	s.doc.Settings = settings
	return s.save()
}

func (s *JSONStore) AddTaskDefinition(ctx context.Context, def models.TaskDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	if _, ok := s.doc.Definitions[def.ID]; ok {
		return fmt.Errorf("task definition %s: %w", def.ID, ErrDuplicate)
	}
	s.doc.Definitions[def.ID] = def
	return s.save()
}

func (s *JSONStore) GetTaskDefinition(ctx context.Context, id string) (models.TaskDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return models.TaskDefinition{}, err
	}
	def, ok := s.doc.Definitions[id]
	if !ok {
		return models.TaskDefinition{}, fmt.Errorf("task definition %s: %w", id, ErrNotFound)
	}
	return def, nil
}

func (s *JSONStore) ListTaskDefinitions(ctx context.Context, includeInactive bool) ([]models.TaskDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return nil, err
	}

	defs := make([]models.TaskDefinition, 0, len(s.doc.Definitions))
	for _, def := range s.doc.Definitions {
		if !includeInactive && !def.Active {
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].CreatedAt.Before(defs[j].CreatedAt) ||
			(defs[i].CreatedAt.Equal(defs[j].CreatedAt) && defs[i].ID < defs[j].ID)
	})
	return defs, nil
}

func (s *JSONStore) UpdateTaskDefinition(ctx context.Context, def models.TaskDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	if _, ok := s.doc.Definitions[def.ID]; !ok {
		return fmt.Errorf("task definition %s: %w", def.ID, ErrNotFound)
	}
	s.doc.Definitions[def.ID] = def
	return s.save()
}

func (s *JSONStore) ListOccurrences(ctx context.Context, date string) ([]models.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return nil, err
	}

	var occs []models.Occurrence
	for _, occ := range s.doc.Occurrences {
		if occ.Date == date {
			occs = append(occs, occ)
		}
	}
	sort.Slice(occs, func(i, j int) bool {
		if !occs[i].ScheduledAt.Equal(occs[j].ScheduledAt) {
			return occs[i].ScheduledAt.Before(occs[j].ScheduledAt)
		}
		return occs[i].ID < occs[j].ID
	})
	return occs, nil
}

func (s *JSONStore) GetOccurrence(ctx context.Context, id string) (models.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return models.Occurrence{}, err
	}
	occ, ok := s.doc.Occurrences[id]
	if !ok {
		return models.Occurrence{}, fmt.Errorf("occurrence %s: %w", id, ErrNotFound)
	}
	return occ, nil
}

func (s *JSONStore) CreateOccurrence(ctx context.Context, occ models.Occurrence) (models.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return models.Occurrence{}, err
	}

	if _, ok := s.doc.Occurrences[occ.ID]; ok {
		return models.Occurrence{}, fmt.Errorf("occurrence %s: %w", occ.ID, ErrDuplicate)
	}
	// Natural key applies to scheduled rows only; ad-hoc rows have no slot.
	if occ.ScheduleSlotID != nil {
		key := occ.Key()
		for _, existing := range s.doc.Occurrences {
			if existing.Date == occ.Date && existing.ScheduleSlotID != nil && existing.Key() == key {
				return models.Occurrence{}, fmt.Errorf("occurrence for %s/%s on %s: %w",
					key.TaskDefinitionID, key.ScheduleSlotID, occ.Date, ErrDuplicate)
			}
		}
	}

	s.doc.Occurrences[occ.ID] = occ
	if err := s.save(); err != nil {
		delete(s.doc.Occurrences, occ.ID)
		return models.Occurrence{}, err
	}
	return occ, nil
}

func (s *JSONStore) PatchOccurrence(ctx context.Context, id string, patch models.OccurrencePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	occ, ok := s.doc.Occurrences[id]
	if !ok {
		return fmt.Errorf("occurrence %s: %w", id, ErrNotFound)
	}
	occ.Apply(patch)
	s.doc.Occurrences[id] = occ
	return s.save()
}

func (s *JSONStore) ListConfirmationHistory(ctx context.Context, occurrenceID string) ([]models.ConfirmationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return nil, err
	}

	var recs []models.ConfirmationRecord
	for _, rec := range s.doc.Confirmations {
		if rec.OccurrenceID == occurrenceID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Version > recs[j].Version
	})
	return recs, nil
}

func (s *JSONStore) GetConfirmationRecord(ctx context.Context, id string) (models.ConfirmationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return models.ConfirmationRecord{}, err
	}
	rec, ok := s.doc.Confirmations[id]
	if !ok {
		return models.ConfirmationRecord{}, fmt.Errorf("confirmation record %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (s *JSONStore) AppendConfirmationRecord(ctx context.Context, rec models.ConfirmationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}

	if _, ok := s.doc.Confirmations[rec.ID]; ok {
		return fmt.Errorf("confirmation record %s: %w", rec.ID, ErrDuplicate)
	}
	for _, existing := range s.doc.Confirmations {
		if existing.OccurrenceID == rec.OccurrenceID && existing.Version == rec.Version {
			return fmt.Errorf("confirmation version %d for %s: %w", rec.Version, rec.OccurrenceID, ErrDuplicate)
		}
	}

	s.doc.Confirmations[rec.ID] = rec
	return s.save()
}

func (s *JSONStore) Enqueue(ctx context.Context, action models.OfflineAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	if _, ok := s.doc.OfflineActions[action.ID]; ok {
		return fmt.Errorf("offline action %s: %w", action.ID, ErrDuplicate)
	}
	s.doc.OfflineActions[action.ID] = action
	return s.save()
}

func (s *JSONStore) Pending(ctx context.Context) ([]models.OfflineAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return nil, err
	}

	var actions []models.OfflineAction
	for _, a := range s.doc.OfflineActions {
		if !a.Synced {
			actions = append(actions, a)
		}
	}
	sort.Slice(actions, func(i, j int) bool {
		if !actions[i].Timestamp.Equal(actions[j].Timestamp) {
			return actions[i].Timestamp.Before(actions[j].Timestamp)
		}
		return actions[i].ID < actions[j].ID
	})
	return actions, nil
}

func (s *JSONStore) MarkSynced(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}
	a, ok := s.doc.OfflineActions[id]
	if !ok {
		return fmt.Errorf("offline action %s: %w", id, ErrNotFound)
	}
	a.Synced = true
	s.doc.OfflineActions[id] = a
	return s.save()
}

func (s *JSONStore) PurgeSynced(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return 0, err
	}

	purged := 0
	for id, a := range s.doc.OfflineActions {
		if a.Synced {
			delete(s.doc.OfflineActions, id)
			purged++
		}
	}
	if purged == 0 {
		return 0, nil
	}
	return purged, s.save()
}
