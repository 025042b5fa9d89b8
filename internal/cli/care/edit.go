package care

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/ledger"
	"github.com/julianstephens/carelog/internal/models"
)

type EditCmd struct {
	RecordID string  `arg:"" help:"Confirmation record ID."`
	At       string  `help:"Corrected confirmation time (HH:MM or RFC3339)."`
	Date     string  `help:"Date for an HH:MM --at (YYYY-MM-DD). Defaults to today."`
	By       *string `help:"Corrected caregiver."`
	Notes    *string `short:"n" help:"Corrected notes."`
}

func (c *EditCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}
	actor, err := ctx.Actor(t)
	if err != nil {
		return err
	}

	req := ledger.EditRequest{ConfirmedBy: c.By, Notes: c.Notes}
	if c.At != "" {
		at, err := cli.ParseClock(c.At, c.Date, t)
		if err != nil {
			return err
		}
		req.ConfirmedAt = &at
	}

	rec, err := t.Edit(bg, actor, c.RecordID, req)
	if err != nil {
		return settle(err)
	}
	fmt.Printf("✎ Recorded edit %s (v%d) of %s\n", rec.ID, rec.Version, c.RecordID)
	return nil
}

type HistoryCmd struct {
	ID string `arg:"" help:"Occurrence ID."`
}

func (c *HistoryCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}

	records, err := t.History(bg, c.ID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No confirmation history")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VER\tACTION\tAT\tBY\tNOTES\tRECORD")
	for _, rec := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", rec.Version, rec.Action, recordTime(rec, t.Location()), recordBy(rec), rec.Notes, rec.ID)
	}
	return w.Flush()
}

func recordBy(rec models.ConfirmationRecord) string {
	if rec.Action == models.ActionEdit {
		return rec.ConfirmedBy + " (edited by " + rec.EditedBy + ")"
	}
	if rec.NeedsReview {
		return rec.ConfirmedBy + " (needs review)"
	}
	return rec.ConfirmedBy
}
