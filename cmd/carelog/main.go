package main

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/cli/backups"
	"github.com/julianstephens/carelog/internal/cli/care"
	"github.com/julianstephens/carelog/internal/cli/system"
	"github.com/julianstephens/carelog/internal/cli/tasks"
	"github.com/julianstephens/carelog/internal/clock"
	"github.com/julianstephens/carelog/internal/constants"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"SQLite path, PostgreSQL connection string or http(s) API URL. PostgreSQL credentials must NOT be embedded; use the keyring or CARELOG_DB_CONNECTION." env:"CARELOG_CONFIG"`
	User    string `short:"u" help:"Caregiver performing the action." env:"CARELOG_USER"`
	Offline bool   `help:"Queue mutations locally when the backend is unreachable." env:"CARELOG_OFFLINE"`
	Queue   string `help:"Offline queue database for shared backends." default:"${queue_path}"`
	Debug   bool   `help:"Mirror debug logs to stderr."`

	Init     system.InitCmd     `cmd:"" help:"Initialize carelog storage."`
	Tui      system.TuiCmd      `cmd:"" help:"Launch the interactive today board." default:"1"`
	Expand   care.ExpandCmd     `cmd:"" help:"Generate occurrences for a day."`
	Today    care.TodayCmd      `cmd:"" help:"Show today's board."`
	Confirm  care.ConfirmCmd    `cmd:"" help:"Confirm an occurrence was given."`
	Undo     care.UndoCmd       `cmd:"" help:"Undo a confirmation."`
	Snooze   care.SnoozeCmd     `cmd:"" help:"Snooze an occurrence."`
	Edit     care.EditCmd       `cmd:"" help:"Correct a confirmation record (admins only)."`
	History  care.HistoryCmd    `cmd:"" help:"Show the confirmation ledger of an occurrence."`
	Log      care.LogCmd        `cmd:"" help:"Quick-log a snack, behavior, symptom or other event."`
	Oneoff   care.OneOffCmd     `cmd:"" help:"Add a one-off instance of a task."`
	Review   care.ReviewCmd     `cmd:"" help:"List occurrences flagged for review."`
	Sync     system.SyncCmd     `cmd:"" help:"Replay the offline queue."`
	Queued   system.QueueCmd    `cmd:"" name:"queue" help:"List actions waiting to sync."`
	Notify   system.NotifyCmd   `cmd:"" help:"Keep reminder triggers armed for today."`
	Export   system.ExportCmd   `cmd:"" help:"Export occurrences and ledger to a spreadsheet."`
	Settings system.SettingsCmd `cmd:"" help:"Manage application settings."`
	Doctor   system.DoctorCmd   `cmd:"" help:"Run health checks and diagnostics."`
	Task     struct {
		Add  tasks.TaskAddCmd  `cmd:"" help:"Add a task definition."`
		List tasks.TaskListCmd `cmd:"" help:"List task definitions."`
		Slot tasks.TaskSlotCmd `cmd:"" help:"Change a task's slots or active state."`
	} `cmd:"" help:"Manage task definitions."`
	Backup struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`
	Keyring struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store a secret (db|token)."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show a stored secret, masked."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove a stored secret."`
		Status system.KeyringStatusCmd `cmd:"" help:"Check keyring availability."`
	} `cmd:"" help:"Manage secrets in the OS keyring."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Care task tracker for medications, meals and observations"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":    constants.Version,
			"queue_path": constants.DefaultQueuePath,
		},
	)

	config := cli.ResolveConfig(CLI.Config)
	if config == "" {
		config = constants.DefaultConfigPath
	}

	logDir := filepath.Dir(cli.ExpandHome(constants.DefaultConfigPath))
	if cli.DetectBackend(config) == cli.BackendSQLite {
		logDir = filepath.Dir(cli.ExpandHome(config))
	}
	if err := logger.Init(logger.Config{Debug: CLI.Debug, ConfigDir: logDir}); err != nil {
		apperr.Fatal(err)
	}

	store, backend, err := cli.OpenStore(config)
	if err != nil {
		apperr.Fatal(err)
	}

	appCtx := &cli.Context{
		Store:     store,
		Backend:   backend,
		QueuePath: CLI.Queue,
		User:      CLI.User,
		Offline:   CLI.Offline,
		Clock:     clock.New(time.Local),
	}

	// init creates the store itself; keyring commands never touch it.
	command := ctx.Command()
	if !strings.HasPrefix(command, "init") && !strings.HasPrefix(command, "keyring") {
		if err := appCtx.Load(); err != nil {
			apperr.Fatal(err)
		}
	}

	err = ctx.Run(appCtx)
	appCtx.Close()
	apperr.Fatal(err)
}
