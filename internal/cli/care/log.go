package care

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/carelog/internal/adhoc"
	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/constants"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/models"
)

type LogCmd struct {
	Category string   `arg:"" help:"Category (snack|behavior|symptom|other)."`
	Note     []string `arg:"" optional:"" help:"What happened."`
}

func (c *LogCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	cat, ok := adhoc.ParseCategory(c.Category)
	if !ok {
		return apperr.Validation("log", "unknown category %q", c.Category)
	}

	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}
	actor, err := ctx.Actor(t)
	if err != nil {
		return err
	}

	occ, err := t.QuickLog(bg, actor, cat, strings.Join(c.Note, " "))
	if err != nil {
		return settle(err)
	}
	d := adhoc.DisplayFor(cat)
	fmt.Printf("%s Logged %s at %s (ID: %s)\n", d.Icon, d.Name, occ.ScheduledAt.In(t.Location()).Format(constants.TimeFormat), occ.ID)
	return nil
}

type OneOffCmd struct {
	TaskID string `arg:"" help:"Task ID."`
	At     string `help:"When it is due (HH:MM or RFC3339). Defaults to now."`
	Date   string `help:"Date for an HH:MM --at (YYYY-MM-DD). Defaults to today."`
	Notes  string `short:"n" help:"Notes for this instance."`
}

func (c *OneOffCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}
	actor, err := ctx.Actor(t)
	if err != nil {
		return err
	}

	at := t.Now()
	if c.At != "" {
		if at, err = cli.ParseClock(c.At, c.Date, t); err != nil {
			return err
		}
	}
	occ, err := t.OneOff(bg, actor, c.TaskID, at, c.Notes)
	if err != nil {
		return settle(err)
	}
	fmt.Printf("Added one-off for %s at %s (ID: %s)\n", occ.Date, at.In(t.Location()).Format(constants.TimeFormat), occ.ID)
	return nil
}

type ReviewCmd struct {
	From string `help:"First date (YYYY-MM-DD). Defaults to 7 days ago."`
	To   string `help:"Last date (YYYY-MM-DD). Defaults to today."`
}

func (c *ReviewCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}

	to := c.To
	if to == "" {
		to = t.Today()
	}
	from := c.From
	if from == "" {
		from = t.Now().In(t.Location()).AddDate(0, 0, -7).Format(constants.DateFormat)
	}

	flagged, err := t.NeedsReview(bg, from, to)
	if err != nil {
		return err
	}
	if len(flagged) == 0 {
		fmt.Printf("Nothing needs review between %s and %s\n", from, to)
		return nil
	}

	fmt.Printf("%d occurrences need review:\n", len(flagged))
	for _, occ := range flagged {
		fmt.Printf("  %s %s  %s  %s\n", occ.Date, occ.ScheduledAt.In(t.Location()).Format(constants.TimeFormat), occ.ID, by(occ))
	}
	fmt.Println("\nInspect with 'carelog history <id>' and correct with 'carelog edit'.")
	return nil
}

func by(occ models.Occurrence) string {
	if occ.ConfirmedBy == nil {
		return ""
	}
	return "confirmed by " + *occ.ConfirmedBy
}

func recordTime(rec models.ConfirmationRecord, loc *time.Location) string {
	if rec.ConfirmedAt == nil {
		return "-"
	}
	return rec.ConfirmedAt.In(loc).Format("2006-01-02 15:04")
}
