package models

import "slices"

// Settings represents application-wide settings
type Settings struct {
	Timezone             string   `json:"timezone"`              // IANA timezone name, or "Local" for system timezone
	SubjectID            string   `json:"subject_id"`            // the cared-for subject
	Admins               []string `json:"admins"`                // user ids allowed to edit ledger records
	NotificationsEnabled bool     `json:"notifications_enabled"` // whether reminder triggers fire
	NotificationSink     string   `json:"notification_sink"`     // tray, redis, mqtt or log
	SinkAddress          string   `json:"sink_address"`          // redis addr or mqtt broker url
	SinkTopic            string   `json:"sink_topic"`            // redis stream or mqtt topic
}

// Actor is the user performing an operation.
type Actor struct {
	ID    string
	Admin bool
}

// ActorFor resolves a user id against the configured admins.
func (s Settings) ActorFor(userID string) Actor {
	return Actor{ID: userID, Admin: slices.Contains(s.Admins, userID)}
}
