package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/carelog/internal/cli"
)

type SyncCmd struct{}

func (c *SyncCmd) Run(ctx *cli.Context) error {
	if ctx.Offline {
		return fmt.Errorf("cannot sync with --offline set")
	}
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}

	report, err := t.Sync(bg)
	if err != nil {
		return err
	}
	fmt.Printf("Synced: %d applied, %d duplicates, %d failed, %d purged\n", report.Applied, report.Duplicates, report.Failed, report.Purged)
	for _, e := range report.Errors {
		fmt.Printf("  ! %v\n", e)
	}
	if report.Duplicates > 0 {
		fmt.Println("Duplicate confirmations were kept and flagged; see 'carelog review'.")
	}
	return nil
}

type QueueCmd struct{}

func (c *QueueCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	t, err := ctx.Tracker(bg, nil)
	if err != nil {
		return err
	}

	pending, err := t.Queued(bg)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("Offline queue is empty")
		return nil
	}
	fmt.Printf("%d actions waiting to sync:\n", len(pending))
	for _, a := range pending {
		fmt.Printf("  %s  %-8s %s  %s\n", a.Timestamp.In(t.Location()).Format("2006-01-02 15:04:05"), a.Type, a.ID, string(a.Payload))
	}
	return nil
}
