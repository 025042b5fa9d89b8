package system

import (
	"context"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}
	actor, err := ctx.Actor(t)
	if err != nil {
		return err
	}
	return tui.Run(bg, t, actor)
}
