package system

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/keyring"
	"github.com/julianstephens/carelog/internal/migration"
	"github.com/julianstephens/carelog/internal/storage/sqlite"
	"github.com/julianstephens/carelog/internal/utils"
	"github.com/julianstephens/carelog/internal/validation"
	"github.com/julianstephens/carelog/migrations"
)

type DoctorCmd struct{}

type check struct {
	name    string
	run     func(ctx context.Context, c *cli.Context) error
	warning bool
}

var checks = []check{
	{name: "Store reachable", run: checkStore},
	{name: "Schema version", run: checkSchema},
	{name: "Settings", run: checkSettings},
	{name: "Task definitions", run: checkDefinitions},
	{name: "Schedule", run: checkSchedule, warning: true},
	{name: "Offline queue", run: checkQueue, warning: true},
	{name: "Backups present", run: checkBackups, warning: true},
	{name: "Keyring", run: checkKeyring, warning: true},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	bg := context.Background()
	hasError := false
	for _, c := range checks {
		err := c.run(bg, ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warning:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	fmt.Println("All diagnostics passed!")
	return nil
}

func checkStore(ctx context.Context, c *cli.Context) error {
	if s, ok := c.Store.(*sqlite.Store); ok {
		db := s.GetDB()
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		var result int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
		return nil
	}
	_, err := c.Store.GetSettings(ctx)
	return err
}

func checkSchema(ctx context.Context, c *cli.Context) error {
	s, ok := c.Store.(*sqlite.Store)
	if !ok || s.GetDB() == nil {
		return nil
	}
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return err
	}
	return migration.NewRunner(s.GetDB(), subFS).ValidateVersion()
}

func checkSettings(ctx context.Context, c *cli.Context) error {
	settings, err := c.Settings(ctx)
	if err != nil {
		return err
	}
	if !utils.ValidateTimezone(settings.Timezone) {
		return fmt.Errorf("invalid timezone %q", settings.Timezone)
	}
	if len(settings.Admins) == 0 {
		fmt.Println("   Note: no admins configured; nobody can edit confirmations")
	}
	return nil
}

func checkDefinitions(ctx context.Context, c *cli.Context) error {
	defs, err := c.Store.ListTaskDefinitions(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	seen := make(map[string]bool)
	for _, def := range defs {
		if seen[def.ID] {
			return fmt.Errorf("duplicate task ID found: %s", def.ID)
		}
		seen[def.ID] = true
		if err := def.Validate(); err != nil {
			return fmt.Errorf("task %s: %w", def.Name, err)
		}
	}
	return nil
}

func checkSchedule(ctx context.Context, c *cli.Context) error {
	defs, err := c.Store.ListTaskDefinitions(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	result := validation.New().ValidateTasks(defs)
	if result.HasIssues() {
		return fmt.Errorf("%s", strings.TrimSpace(result.FormatReport()))
	}
	return nil
}

func checkQueue(ctx context.Context, c *cli.Context) error {
	if c.Queue == nil {
		return nil
	}
	pending, err := c.Queue.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		oldest := time.Since(pending[0].Timestamp).Round(time.Minute)
		return fmt.Errorf("%d actions waiting to sync (oldest %s ago) - run 'carelog sync'", len(pending), oldest)
	}
	return nil
}

func checkBackups(ctx context.Context, c *cli.Context) error {
	if c.Backend == cli.BackendJSON {
		return nil
	}
	backups, err := c.BackupManager().List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'carelog backup create'")
	}
	return nil
}

func checkKeyring(ctx context.Context, c *cli.Context) error {
	if c.Local() {
		return nil
	}
	if !keyring.IsAvailable() {
		return fmt.Errorf("OS keyring is not available; secrets must come from the environment")
	}
	return nil
}
