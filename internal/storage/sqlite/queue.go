package sqlite

import (
	"context"
	"fmt"

	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
)

func (s *Store) Enqueue(ctx context.Context, action models.OfflineAction) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO offline_actions (id, type, payload, timestamp, synced) VALUES (?, ?, ?, ?, ?)",
		action.ID, string(action.Type), string(action.Payload), formatTime(action.Timestamp), action.Synced)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("offline action %s: %w", action.ID, storage.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *Store) Pending(ctx context.Context) ([]models.OfflineAction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, type, payload, timestamp, synced FROM offline_actions WHERE synced = 0 ORDER BY timestamp, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []models.OfflineAction
	for rows.Next() {
		var a models.OfflineAction
		var typ, payload, ts string
		if err := rows.Scan(&a.ID, &typ, &payload, &ts, &a.Synced); err != nil {
			return nil, err
		}
		a.Type = models.ActionType(typ)
		a.Payload = []byte(payload)
		if a.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parsing timestamp for %s: %w", a.ID, err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (s *Store) MarkSynced(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE offline_actions SET synced = 1 WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("offline action %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) PurgeSynced(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM offline_actions WHERE synced = 1")
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
