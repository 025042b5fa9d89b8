package constants

import "time"

const (
	AppName             = "carelog"
	DefaultKeyringUser  = "database-connection"
	APITokenKeyringUser = "api-token"
	DefaultConfigPath   = "~/.config/carelog/carelog.db"
	DefaultQueuePath    = "~/.config/carelog/queue.db"
	Version             = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// OverdueThreshold is how long a pending occurrence stays "due" before it is shown as overdue.
	OverdueThreshold = 30 * time.Minute

	// DefaultSpacingMin is the conflict group spacing window in minutes.
	DefaultSpacingMin = 5

	// UndoMarkerFormat is appended to occurrence notes when a confirmation is undone.
	UndoMarkerFormat = "[undone %s by %s]"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "carelog-"
	BackupFileSuffix = ".db"

	// Notify constants
	NotifyMaxRetries       = 3
	NotifyRetryDelay       = 100 * time.Millisecond
	NotifierLockfileName   = "carelog-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.carelog"
	TrayExecutable         = "carelog-tray"
	TraySecretHeader       = "X-Carelog-Secret"
	DefaultRedisStream     = "carelog:triggers"
	DefaultMQTTTopic       = "carelog/triggers"

	// Remote API
	RemoteTimeout      = 10 * time.Second
	RemoteRetryCount   = 2
	RemoteRetryWait    = 500 * time.Millisecond
	RemoteRetryMaxWait = 3 * time.Second
)

// SnoozeChoices are the only snooze durations accepted, in minutes.
var SnoozeChoices = []int{15, 30, 60}
