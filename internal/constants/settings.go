package constants

const (
	SettingTimezone             = "timezone"
	SettingSubjectID            = "subject_id"
	SettingAdmins               = "admins"
	SettingNotificationsEnabled = "notifications_enabled"
	SettingNotificationSink     = "notification_sink"
	SettingSinkAddress          = "sink_address"
	SettingSinkTopic            = "sink_topic"

	// Notification sinks
	SinkTray  = "tray"
	SinkRedis = "redis"
	SinkMQTT  = "mqtt"
	SinkLog   = "log"

	// Default Settings Values
	DefaultTimezone             = "Local" // Use system local timezone by default
	DefaultSubjectID            = "default"
	DefaultNotificationsEnabled = true
	DefaultNotificationSink     = SinkTray
)
