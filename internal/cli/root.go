package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/carelog/internal/backup"
	"github.com/julianstephens/carelog/internal/clock"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/keyring"
	"github.com/julianstephens/carelog/internal/logger"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/notifier"
	"github.com/julianstephens/carelog/internal/storage"
	"github.com/julianstephens/carelog/internal/storage/postgres"
	"github.com/julianstephens/carelog/internal/storage/remote"
	"github.com/julianstephens/carelog/internal/storage/sqlite"
	"github.com/julianstephens/carelog/internal/tracker"
	"github.com/julianstephens/carelog/internal/utils"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendJSON     Backend = "json"
	BackendPostgres Backend = "postgres"
	BackendRemote   Backend = "remote"
)

// Context is shared by every command.
type Context struct {
	Store   storage.Provider
	Backend Backend
	// Queue holds offline actions. For local backends it is the store itself.
	Queue     storage.OfflineQueue
	QueuePath string
	User      string
	Offline   bool
	Clock     clock.Clock

	closers []func() error
}

// DetectBackend classifies a --config value.
func DetectBackend(config string) Backend {
	lower := strings.ToLower(config)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"), strings.Contains(lower, "host="):
		return BackendPostgres
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return BackendRemote
	case strings.HasSuffix(lower, ".json"):
		return BackendJSON
	default:
		return BackendSQLite
	}
}

// ExpandHome resolves a leading ~ against the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// OpenStore builds the provider for a --config value. Postgres DSNs with an
// embedded password are rejected; the keyring or CARELOG_DB_CONNECTION may
// supply a full connection string instead.
func OpenStore(config string) (storage.Provider, Backend, error) {
	backend := DetectBackend(config)
	switch backend {
	case BackendPostgres:
		if _, err := postgres.ValidateConnString(config); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return nil, backend, fmt.Errorf("PostgreSQL connection strings with embedded credentials are not allowed; use 'carelog keyring set db' or %s", keyring.ConnectionString.EnvVar)
			}
			return nil, backend, err
		}
		return postgres.New(config), backend, nil
	case BackendRemote:
		token, err := keyring.Resolve(keyring.APIToken)
		if err != nil {
			logger.Warn("API token lookup failed", "error", err)
		}
		return remote.New(config, token), backend, nil
	case BackendJSON:
		return storage.NewJSONStore(ExpandHome(config)), backend, nil
	default:
		return sqlite.NewStore(ExpandHome(config)), backend, nil
	}
}

// ResolveConfig prefers an explicit --config, then a keyring connection
// string, then the default sqlite path.
func ResolveConfig(config string) string {
	if config != "" {
		return config
	}
	if conn, err := keyring.Resolve(keyring.ConnectionString); err == nil && conn != "" {
		return conn
	}
	return ""
}

// Local reports whether the store lives on this machine.
func (c *Context) Local() bool {
	return c.Backend == BackendSQLite || c.Backend == BackendJSON
}

// Load opens the store and the offline queue. In offline mode an unreachable
// shared backend is tolerated so mutations can still be captured.
func (c *Context) Load() error {
	if err := c.Store.Load(); err != nil {
		if !(c.Offline && apperr.IsTransient(err)) {
			return err
		}
		logger.Warn("Backend unreachable, continuing offline", "error", err)
	}
	c.closers = append(c.closers, c.Store.Close)
	return c.openQueue()
}

func (c *Context) openQueue() error {
	if c.Queue != nil {
		return nil
	}
	if q, ok := c.Store.(storage.OfflineQueue); ok && c.Local() {
		c.Queue = q
		return nil
	}
	if c.QueuePath == "" {
		return nil
	}
	q := sqlite.NewStore(ExpandHome(c.QueuePath))
	if err := q.Init(); err != nil {
		return fmt.Errorf("failed to open offline queue: %w", err)
	}
	c.Queue = q
	c.closers = append(c.closers, q.Close)
	return nil
}

func (c *Context) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warn("Close failed", "error", err)
		}
	}
	c.closers = nil
}

// Settings reads settings from the store. A separate queue database keeps
// the last copy seen so offline sessions still know the timezone and admins.
func (c *Context) Settings(ctx context.Context) (models.Settings, error) {
	settings, err := c.Store.GetSettings(ctx)
	cache, hasCache := c.Queue.(storage.Provider)
	hasCache = hasCache && !c.Local()
	if err == nil {
		if hasCache {
			if err := cache.SaveSettings(ctx, settings); err != nil {
				logger.Warn("Failed to cache settings", "error", err)
			}
		}
		return settings, nil
	}
	if c.Offline && hasCache && apperr.IsTransient(err) {
		return cache.GetSettings(ctx)
	}
	return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
}

// Tracker wires the core operations against the loaded store. triggers may
// be nil.
func (c *Context) Tracker(ctx context.Context, triggers *notifier.Scheduler) (*tracker.Tracker, error) {
	settings, err := c.Settings(ctx)
	if err != nil {
		return nil, err
	}
	opts := tracker.Options{
		Queue:    c.Queue,
		Offline:  c.Offline,
		Triggers: triggers,
	}
	if c.Backend == BackendSQLite {
		opts.BeforeReplay = c.BackupManager().BeforeReplay
	}
	return tracker.New(c.Store, settings, c.Clock, opts)
}

// BackupManager snapshots the sqlite store, or the queue database for
// shared backends.
func (c *Context) BackupManager() *backup.Manager {
	path := c.Store.GetConfigPath()
	if !c.Local() && c.QueuePath != "" {
		path = ExpandHome(c.QueuePath)
	}
	return backup.NewManager(path, c.Clock)
}

// Actor resolves the --user flag against the configured admins.
func (c *Context) Actor(t *tracker.Tracker) (models.Actor, error) {
	if c.User == "" {
		return models.Actor{}, apperr.Validation("actor", "no user set; pass --user or set CARELOG_USER")
	}
	return t.Actor(c.User), nil
}

// ParseWeekdays parses a comma-separated list of weekdays
func ParseWeekdays(s string) ([]time.Weekday, error) {
	parts := strings.Split(s, ",")
	var weekdays []time.Weekday

	dayMap := map[string]time.Weekday{
		"sun":       time.Sunday,
		"sunday":    time.Sunday,
		"mon":       time.Monday,
		"monday":    time.Monday,
		"tue":       time.Tuesday,
		"tuesday":   time.Tuesday,
		"wed":       time.Wednesday,
		"wednesday": time.Wednesday,
		"thu":       time.Thursday,
		"thursday":  time.Thursday,
		"fri":       time.Friday,
		"friday":    time.Friday,
		"sat":       time.Saturday,
		"saturday":  time.Saturday,
	}

	for _, part := range parts {
		part = strings.TrimSpace(strings.ToLower(part))
		if wd, ok := dayMap[part]; ok {
			weekdays = append(weekdays, wd)
			continue
		}
		// 0=Sunday, 6=Saturday
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 || num > 6 {
			return nil, fmt.Errorf("invalid weekday: %s", part)
		}
		weekdays = append(weekdays, time.Weekday(num))
	}

	return weekdays, nil
}

func FormatRecurrence(rec models.Recurrence) string {
	switch rec.Type {
	case models.RecurrenceDaily:
		return "daily"
	case models.RecurrenceWeekly:
		if len(rec.WeekdayMask) > 0 {
			var days []string
			for _, wd := range rec.WeekdayMask {
				days = append(days, wd.String()[:3])
			}
			return fmt.Sprintf("weekly on %s", strings.Join(days, ","))
		}
		return "weekly"
	case models.RecurrenceNDays:
		return fmt.Sprintf("every %d days", rec.IntervalDays)
	case models.RecurrenceAdHoc:
		return "ad-hoc"
	default:
		return "unknown"
	}
}

// ResolveDate returns date, or today in loc when it is empty.
func ResolveDate(date string, t *tracker.Tracker) (string, error) {
	if date == "" {
		return t.Today(), nil
	}
	if _, err := utils.ParseDateInLocation(date, t.Location()); err != nil {
		return "", apperr.Validation("date", "invalid date %q (expected YYYY-MM-DD)", date)
	}
	return date, nil
}

// ParseClock parses HH:MM on date in the tracker's timezone, or an RFC3339
// timestamp.
func ParseClock(value, date string, t *tracker.Tracker) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	if date == "" {
		date = t.Today()
	}
	ts, err := utils.CombineDateAndTime(date, value, t.Location())
	if err != nil {
		return time.Time{}, apperr.Validation("time", "invalid time %q (expected HH:MM or RFC3339)", value)
	}
	return ts, nil
}
