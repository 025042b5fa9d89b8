package care

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/julianstephens/carelog/internal/classifier"
	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/tracker"
)

type ExpandCmd struct {
	Date string `help:"Date to expand (YYYY-MM-DD). Defaults to today."`
}

func (c *ExpandCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}
	date, err := cli.ResolveDate(c.Date, t)
	if err != nil {
		return err
	}

	created, err := t.Expand(bg, date)
	if err != nil {
		return err
	}
	fmt.Printf("Expanded %s: %d new occurrences\n", date, len(created))
	return nil
}

type TodayCmd struct {
	Date   string `help:"Date to show (YYYY-MM-DD). Defaults to today."`
	Expand bool   `help:"Expand the date first." default:"true" negatable:""`
}

func (c *TodayCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}
	date, err := cli.ResolveDate(c.Date, t)
	if err != nil {
		return err
	}
	if c.Expand {
		if _, err := t.Expand(bg, date); err != nil {
			return err
		}
	}

	board, err := t.Board(bg, date)
	if err != nil {
		return err
	}
	PrintBoard(os.Stdout, board, t)
	return nil
}

// PrintBoard writes the bucketed board as plain text.
func PrintBoard(w io.Writer, board tracker.Board, t *tracker.Tracker) {
	fmt.Fprintf(w, "%s  (%d/%d done)\n", board.Date, board.ConfirmedCount(), board.Total())
	if board.Total() == 0 {
		fmt.Fprintln(w, "\n  Nothing scheduled. Add tasks with 'carelog task add'.")
		return
	}

	for _, bucket := range classifier.Buckets {
		occs := board.Get(bucket)
		if len(occs) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", strings.ToUpper(string(bucket)))
		for _, occ := range occs {
			fmt.Fprintf(w, "  %s  %-32s  %s\n", occ.ScheduledAt.In(t.Location()).Format(constants.TimeFormat), board.Title(occ), detail(occ, t))
		}
	}
}

func detail(occ models.Occurrence, t *tracker.Tracker) string {
	parts := []string{occ.ID}
	switch occ.Status {
	case models.StatusConfirmed:
		if occ.ConfirmedAt != nil {
			by := ""
			if occ.ConfirmedBy != nil {
				by = " by " + *occ.ConfirmedBy
			}
			parts = append(parts, "✓ "+occ.ConfirmedAt.In(t.Location()).Format(constants.TimeFormat)+by)
		}
	case models.StatusSnoozed:
		if occ.SnoozeUntil != nil {
			parts = append(parts, "until "+occ.SnoozeUntil.In(t.Location()).Format(constants.TimeFormat))
		}
	}
	if occ.NeedsReview {
		parts = append(parts, "needs review")
	}
	return strings.Join(parts, "  ")
}
