package care

import (
	"context"
	"fmt"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/ledger"
)

type ConfirmCmd struct {
	ID       string `arg:"" help:"Occurrence ID."`
	Notes    string `short:"n" help:"Notes to record with the confirmation."`
	Override bool   `help:"Confirm even if a task in the same conflict group was just given."`
}

func (c *ConfirmCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}
	actor, err := ctx.Actor(t)
	if err != nil {
		return err
	}

	req := ledger.ConfirmRequest{OccurrenceID: c.ID, OverrideConflict: c.Override}
	if c.Notes != "" {
		req.Notes = &c.Notes
	}
	_, rec, err := t.Confirm(bg, actor, req)
	if err != nil {
		return settle(err)
	}

	fmt.Printf("✓ Confirmed %s by %s (record %s, v%d)\n", c.ID, actor.ID, rec.ID, rec.Version)
	return nil
}

type UndoCmd struct {
	ID string `arg:"" help:"Occurrence ID."`
}

func (c *UndoCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}
	actor, err := ctx.Actor(t)
	if err != nil {
		return err
	}

	if _, err := t.Undo(bg, actor, c.ID); err != nil {
		return settle(err)
	}
	fmt.Printf("↶ Undid confirmation of %s\n", c.ID)
	return nil
}

type SnoozeCmd struct {
	ID      string `arg:"" help:"Occurrence ID."`
	Minutes int    `short:"m" help:"Minutes to snooze (15, 30 or 60)." default:"15"`
}

func (c *SnoozeCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}
	actor, err := ctx.Actor(t)
	if err != nil {
		return err
	}

	occ, err := t.Snooze(bg, actor, c.ID, c.Minutes)
	if err != nil {
		return settle(err)
	}
	fmt.Printf("⏰ Snoozed %s until %s\n", c.ID, occ.SnoozeUntil.In(t.Location()).Format("15:04"))
	return nil
}
