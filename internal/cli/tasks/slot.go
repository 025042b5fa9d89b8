package tasks

import (
	"context"
	"fmt"
	"slices"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/models"
)

// TaskSlotCmd adds or removes schedule slots. Occurrences already expanded
// keep their slot.
type TaskSlotCmd struct {
	ID         string   `arg:"" help:"Task ID."`
	Add        []string `short:"a" help:"Slot to add as HH:MM or HH:MM=label. Repeatable."`
	Remove     []string `short:"r" help:"Slot time (HH:MM) or slot ID to remove. Repeatable."`
	Deactivate bool     `help:"Stop expanding this task."`
	Activate   bool     `help:"Resume expanding this task."`
}

func (c *TaskSlotCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	def, err := ctx.Store.GetTaskDefinition(bg, c.ID)
	if err != nil {
		return fmt.Errorf("failed to get task %s: %w", c.ID, err)
	}

	for _, s := range c.Add {
		slot, err := ParseSlot(def.ID, s)
		if err != nil {
			return err
		}
		def.Slots = append(def.Slots, slot)
	}
	for _, r := range c.Remove {
		before := len(def.Slots)
		def.Slots = slices.DeleteFunc(def.Slots, func(s models.ScheduleSlot) bool {
			return s.ID == r || s.Time == r
		})
		if len(def.Slots) == before {
			return fmt.Errorf("no slot %q on task %s", r, def.Name)
		}
	}
	switch {
	case c.Deactivate:
		def.Active = false
	case c.Activate:
		def.Active = true
	}

	if err := def.Validate(); err != nil {
		return err
	}
	if err := ctx.Store.UpdateTaskDefinition(bg, def); err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	fmt.Printf("Updated task: %s (%d slots)\n", def.Name, len(def.Slots))
	warnSchedule(bg, ctx)
	return nil
}
