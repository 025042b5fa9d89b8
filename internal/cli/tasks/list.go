package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/carelog/internal/cli"
)

type TaskListCmd struct {
	All bool `help:"Include inactive and placeholder tasks."`
}

func (c *TaskListCmd) Run(ctx *cli.Context) error {
	defs, err := ctx.Store.ListTaskDefinitions(context.Background(), c.All)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(defs) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	fmt.Println("Tasks:")
	for _, def := range defs {
		if def.Placeholder && !c.All {
			continue
		}
		status := "active"
		if !def.Active {
			status = "inactive"
		}

		line := fmt.Sprintf("  [%s] %s (%s, %s)", status, def.Name, def.Kind, cli.FormatRecurrence(def.Frequency))
		if def.Dose != "" {
			line += " " + def.Dose
		}
		fmt.Println(line)
		fmt.Printf("      ID: %s\n", def.ID)

		if len(def.Slots) > 0 {
			var slots []string
			for _, s := range def.Slots {
				slots = append(slots, fmt.Sprintf("%s %s", s.Time, s.Label))
			}
			fmt.Printf("      Slots: %s\n", strings.Join(slots, ", "))
		}
		if g := def.Group(); g != nil {
			fmt.Printf("      Group: %s (%d min spacing)\n", g.Name, g.SpacingMin)
		}
		if def.StartDate != "" || def.EndDate != "" {
			fmt.Printf("      Window: %s - %s\n", orOpen(def.StartDate), orOpen(def.EndDate))
		}
	}

	return nil
}

func orOpen(date string) string {
	if date == "" {
		return "open"
	}
	return date
}
