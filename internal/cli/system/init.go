package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/utils"
)

type InitCmd struct {
	Timezone string   `help:"IANA timezone for the care schedule." default:"Local"`
	Subject  string   `help:"ID of the person being cared for."`
	Admin    []string `help:"User allowed to edit confirmations. Repeatable."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if !utils.ValidateTimezone(c.Timezone) {
		return fmt.Errorf("invalid timezone: %s", c.Timezone)
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized carelog storage at: %s\n", ctx.Store.GetConfigPath())

	bg := context.Background()
	settings, err := ctx.Store.GetSettings(bg)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	settings.Timezone = c.Timezone
	if c.Subject != "" {
		settings.SubjectID = c.Subject
	}
	if len(c.Admin) > 0 {
		settings.Admins = c.Admin
	}
	if err := ctx.Store.SaveSettings(bg, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
