package system

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/utils"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	Timezone             *string  `help:"IANA timezone for the care schedule."`
	Subject              *string  `help:"ID of the person being cared for."`
	AddAdmin             []string `help:"Grant edit rights to a user. Repeatable."`
	RemoveAdmin          []string `help:"Revoke edit rights from a user. Repeatable."`
	NotificationsEnabled *bool    `help:"Enable or disable reminder triggers."`
	Sink                 *string  `help:"Reminder sink (tray|redis|mqtt|log)."`
	SinkAddress          *string  `help:"Redis address or MQTT broker URL."`
	SinkTopic            *string  `help:"Redis stream or MQTT topic."`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}

	if c.List {
		fmt.Println("Current Settings:")
		fmt.Printf("  Timezone:              %s\n", settings.Timezone)
		fmt.Printf("  Subject:               %s\n", settings.SubjectID)
		fmt.Printf("  Admins:                %s\n", strings.Join(settings.Admins, ", "))
		fmt.Println("\nNotification Settings:")
		fmt.Printf("  Notifications Enabled: %v\n", settings.NotificationsEnabled)
		fmt.Printf("  Sink:                  %s\n", settings.NotificationSink)
		fmt.Printf("  Sink Address:          %s\n", settings.SinkAddress)
		fmt.Printf("  Sink Topic:            %s\n", settings.SinkTopic)
		return nil
	}

	updated := false
	if c.Timezone != nil {
		if !utils.ValidateTimezone(*c.Timezone) {
			return fmt.Errorf("invalid timezone: %s", *c.Timezone)
		}
		settings.Timezone = *c.Timezone
		updated = true
	}
	if c.Subject != nil {
		settings.SubjectID = *c.Subject
		updated = true
	}
	for _, a := range c.AddAdmin {
		if !slices.Contains(settings.Admins, a) {
			settings.Admins = append(settings.Admins, a)
		}
		updated = true
	}
	if len(c.RemoveAdmin) > 0 {
		settings.Admins = slices.DeleteFunc(settings.Admins, func(a string) bool {
			return slices.Contains(c.RemoveAdmin, a)
		})
		updated = true
	}
	if c.NotificationsEnabled != nil {
		settings.NotificationsEnabled = *c.NotificationsEnabled
		updated = true
	}
	if c.Sink != nil {
		switch *c.Sink {
		case constants.SinkTray, constants.SinkRedis, constants.SinkMQTT, constants.SinkLog:
		default:
			return fmt.Errorf("invalid sink %q", *c.Sink)
		}
		settings.NotificationSink = *c.Sink
		updated = true
	}
	if c.SinkAddress != nil {
		settings.SinkAddress = *c.SinkAddress
		updated = true
	}
	if c.SinkTopic != nil {
		settings.SinkTopic = *c.SinkTopic
		updated = true
	}

	if !updated {
		fmt.Println("No changes specified. Use --list to view settings or flags to update them.")
		return nil
	}
	if err := ctx.Store.SaveSettings(bg, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Println("Settings updated successfully.")
	return nil
}
