// Package remote adapts a hosted carelog REST API to storage.Provider.
//
// Endpoints:
//
//	GET  /health
//	GET  /settings                      PUT /settings
//	GET  /definitions?include_inactive= POST /definitions
//	GET  /definitions/{id}              PUT /definitions/{id}
//	GET  /occurrences?date=             POST /occurrences
//	GET  /occurrences/{id}              PATCH /occurrences/{id}
//	GET  /occurrences/{id}/records      POST /records
//	GET  /records/{id}
package remote

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/julianstephens/carelog/internal/constants"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/logger"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
)

type Store struct {
	baseURL string
	http    *resty.Client
}

func New(baseURL, token string) *Store {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(constants.RemoteTimeout).
		SetRetryCount(constants.RemoteRetryCount).
		SetRetryWaitTime(constants.RemoteRetryWait).
		SetRetryMaxWaitTime(constants.RemoteRetryMaxWait).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}

	return &Store{
		baseURL: baseURL,
		http:    client,
	}
}

// check maps a resty response onto the store error contract: transport
// failures and 5xx are transient, 404 and 409 map to the storage sentinels.
func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		logger.Warn("Remote store call failed", "op", op, "error", err)
		return apperr.Transient(op, err)
	}

	switch code := resp.StatusCode(); {
	case code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	case code == http.StatusConflict:
		return fmt.Errorf("%s: %w", op, storage.ErrDuplicate)
	case code >= 500:
		return apperr.Transient(op, fmt.Errorf("status %d: %s", code, resp.String()))
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", op, code, resp.String())
	}
}

func (s *Store) Init() error {
	return s.Load()
}

func (s *Store) Load() error {
	resp, err := s.http.R().Get("/health")
	return check("health", resp, err)
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) GetConfigPath() string {
	return s.baseURL
}

func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	var settings models.Settings
	resp, err := s.http.R().SetContext(ctx).SetResult(&settings).Get("/settings")
	if err := check("get settings", resp, err); err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	resp, err := s.http.R().SetContext(ctx).SetBody(settings).Put("/settings")
	return check("save settings", resp, err)
}

func (s *Store) AddTaskDefinition(ctx context.Context, def models.TaskDefinition) error {
	resp, err := s.http.R().SetContext(ctx).SetBody(def).Post("/definitions")
	return check("add task definition", resp, err)
}

func (s *Store) GetTaskDefinition(ctx context.Context, id string) (models.TaskDefinition, error) {
	var def models.TaskDefinition
	resp, err := s.http.R().SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&def).
		Get("/definitions/{id}")
	if err := check("get task definition "+id, resp, err); err != nil {
		return models.TaskDefinition{}, err
	}
	return def, nil
}

func (s *Store) ListTaskDefinitions(ctx context.Context, includeInactive bool) ([]models.TaskDefinition, error) {
	var defs []models.TaskDefinition
	resp, err := s.http.R().SetContext(ctx).
		SetQueryParam("include_inactive", strconv.FormatBool(includeInactive)).
		SetResult(&defs).
		Get("/definitions")
	if err := check("list task definitions", resp, err); err != nil {
		return nil, err
	}
	return defs, nil
}

func (s *Store) UpdateTaskDefinition(ctx context.Context, def models.TaskDefinition) error {
	resp, err := s.http.R().SetContext(ctx).
		SetPathParam("id", def.ID).
		SetBody(def).
		Put("/definitions/{id}")
	return check("update task definition "+def.ID, resp, err)
}

func (s *Store) ListOccurrences(ctx context.Context, date string) ([]models.Occurrence, error) {
	var occs []models.Occurrence
	resp, err := s.http.R().SetContext(ctx).
		SetQueryParam("date", date).
		SetResult(&occs).
		Get("/occurrences")
	if err := check("list occurrences", resp, err); err != nil {
		return nil, err
	}
	return occs, nil
}

func (s *Store) GetOccurrence(ctx context.Context, id string) (models.Occurrence, error) {
	var occ models.Occurrence
	resp, err := s.http.R().SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&occ).
		Get("/occurrences/{id}")
	if err := check("get occurrence "+id, resp, err); err != nil {
		return models.Occurrence{}, err
	}
	return occ, nil
}

func (s *Store) CreateOccurrence(ctx context.Context, occ models.Occurrence) (models.Occurrence, error) {
	var created models.Occurrence
	resp, err := s.http.R().SetContext(ctx).
		SetBody(occ).
		SetResult(&created).
		Post("/occurrences")
	if err := check("create occurrence", resp, err); err != nil {
		return models.Occurrence{}, err
	}
	if created.ID == "" {
		return occ, nil
	}
	return created, nil
}

func (s *Store) PatchOccurrence(ctx context.Context, id string, patch models.OccurrencePatch) error {
	resp, err := s.http.R().SetContext(ctx).
		SetPathParam("id", id).
		SetBody(patch).
		Patch("/occurrences/{id}")
	return check("patch occurrence "+id, resp, err)
}

func (s *Store) ListConfirmationHistory(ctx context.Context, occurrenceID string) ([]models.ConfirmationRecord, error) {
	var recs []models.ConfirmationRecord
	resp, err := s.http.R().SetContext(ctx).
		SetPathParam("id", occurrenceID).
		SetResult(&recs).
		Get("/occurrences/{id}/records")
	if err := check("list confirmation history", resp, err); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *Store) GetConfirmationRecord(ctx context.Context, id string) (models.ConfirmationRecord, error) {
	var rec models.ConfirmationRecord
	resp, err := s.http.R().SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&rec).
		Get("/records/{id}")
	if err := check("get confirmation record "+id, resp, err); err != nil {
		return models.ConfirmationRecord{}, err
	}
	return rec, nil
}

func (s *Store) AppendConfirmationRecord(ctx context.Context, rec models.ConfirmationRecord) error {
	resp, err := s.http.R().SetContext(ctx).SetBody(rec).Post("/records")
	return check("append confirmation record", resp, err)
}
