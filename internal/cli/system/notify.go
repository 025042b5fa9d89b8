package system

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/logger"
	"github.com/julianstephens/carelog/internal/notifier"
	"github.com/julianstephens/carelog/internal/tracker"
)

// NotifyCmd keeps reminder triggers armed for today's occurrences until
// interrupted, rolling over to the next day at midnight.
type NotifyCmd struct {
	DryRun  bool          `help:"Print reminders to stdout instead of sending them."`
	Refresh time.Duration `help:"How often to pick up changes made elsewhere." default:"1m"`
	Once    bool          `help:"Arm today's triggers, list them and exit."`
}

type stdoutSink struct{}

func (stdoutSink) Send(ctx context.Context, t notifier.Trigger) error {
	fmt.Printf("%s  %s\n", t.At.Format(time.Kitchen), t.Payload)
	return nil
}

func (stdoutSink) Close() error { return nil }

func (c *NotifyCmd) Run(ctx *cli.Context) error {
	bg, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	if !settings.NotificationsEnabled && !c.DryRun {
		fmt.Println("Notifications are disabled in settings.")
		return nil
	}

	var sink notifier.Sink = stdoutSink{}
	if !c.DryRun {
		if sink, err = notifier.NewSink(settings); err != nil {
			return err
		}
	}
	defer sink.Close()

	triggers := notifier.NewScheduler(sink, ctx.Clock)
	defer triggers.Stop()

	t, err := ctx.Tracker(bg, triggers)
	if err != nil {
		return err
	}

	date := t.Today()
	if err := arm(bg, t, date); err != nil {
		return err
	}
	if c.Once {
		for _, tr := range triggers.Armed() {
			fmt.Printf("  %s  %s\n", tr.At.In(t.Location()).Format(time.Kitchen), tr.Payload)
		}
		return nil
	}

	ticker := time.NewTicker(c.Refresh)
	defer ticker.Stop()
	for {
		select {
		case <-bg.Done():
			return nil
		case <-ticker.C:
			date = t.Today()
			if err := arm(bg, t, date); err != nil {
				logger.Warn("Trigger refresh failed", "date", date, "error", err)
			}
		}
	}
}

func arm(ctx context.Context, t *tracker.Tracker, date string) error {
	if _, err := t.Expand(ctx, date); err != nil {
		return err
	}
	n, err := t.ArmTriggers(ctx, date)
	if err != nil {
		return err
	}
	logger.Debug("Triggers armed", "date", date, "count", n)
	return nil
}
