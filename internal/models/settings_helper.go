package models

import (
	"strconv"
	"strings"

	"github.com/julianstephens/carelog/internal/constants"
)

// MapToSettings converts a map of key-value pairs to a Settings struct.
func MapToSettings(data map[string]string) Settings {
	settings := DefaultSettings()

	for key, value := range data {
		switch key {
		case constants.SettingTimezone:
			settings.Timezone = value
		case constants.SettingSubjectID:
			settings.SubjectID = value
		case constants.SettingAdmins:
			settings.Admins = nil
			for _, a := range strings.Split(value, ",") {
				if a = strings.TrimSpace(a); a != "" {
					settings.Admins = append(settings.Admins, a)
				}
			}
		case constants.SettingNotificationsEnabled:
			settings.NotificationsEnabled = value == "true"
		case constants.SettingNotificationSink:
			settings.NotificationSink = value
		case constants.SettingSinkAddress:
			settings.SinkAddress = value
		case constants.SettingSinkTopic:
			settings.SinkTopic = value
		}
	}
	return settings
}

// SettingsToMap is the inverse of MapToSettings.
func SettingsToMap(s Settings) map[string]string {
	return map[string]string{
		constants.SettingTimezone:             s.Timezone,
		constants.SettingSubjectID:            s.SubjectID,
		constants.SettingAdmins:               strings.Join(s.Admins, ","),
		constants.SettingNotificationsEnabled: strconv.FormatBool(s.NotificationsEnabled),
		constants.SettingNotificationSink:     s.NotificationSink,
		constants.SettingSinkAddress:          s.SinkAddress,
		constants.SettingSinkTopic:            s.SinkTopic,
	}
}

func DefaultSettings() Settings {
	return Settings{
		Timezone:             constants.DefaultTimezone,
		SubjectID:            constants.DefaultSubjectID,
		NotificationsEnabled: constants.DefaultNotificationsEnabled,
		NotificationSink:     constants.DefaultNotificationSink,
	}
}
