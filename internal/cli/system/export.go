package system

import (
	"context"
	"fmt"
	"os"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/export"
)

type ExportCmd struct {
	From string `help:"First date (YYYY-MM-DD). Defaults to 30 days ago."`
	To   string `help:"Last date (YYYY-MM-DD). Defaults to today."`
	Out  string `short:"o" help:"Output file." default:"carelog.xlsx" type:"path"`
}

func (c *ExportCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}

	to, err := cli.ResolveDate(c.To, t)
	if err != nil {
		return err
	}
	from := c.From
	if from == "" {
		from = t.Now().In(t.Location()).AddDate(0, 0, -30).Format(constants.DateFormat)
	}

	data, err := export.Workbook(bg, ctx.Store, from, to, t.Location())
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Out, data, 0600); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Printf("✓ Exported %s to %s into %s\n", from, to, c.Out)
	return nil
}
