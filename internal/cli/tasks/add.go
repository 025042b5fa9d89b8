package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/validation"
)

type TaskAddCmd struct {
	Name       string   `arg:"" help:"Task name."`
	Kind       string   `short:"k" help:"Task kind (medication|food|supplement|observation)." default:"medication"`
	Category   string   `short:"c" help:"Free-form category."`
	Dose       string   `short:"d" help:"Dose, e.g. '5 ml'."`
	Location   string   `short:"l" help:"Where the task happens, e.g. 'Kitchen'."`
	Notes      string   `short:"n" help:"Notes shown with the task."`
	Recurrence string   `short:"r" help:"Recurrence type (daily|weekly|n_days|ad_hoc)." default:"daily"`
	Interval   int      `short:"i" help:"Interval for n_days recurrence." default:"1"`
	Weekdays   string   `short:"w" help:"Comma-separated weekdays for weekly recurrence."`
	Start      string   `help:"First date the task applies (YYYY-MM-DD)."`
	End        string   `help:"Last date the task applies (YYYY-MM-DD)."`
	Group      string   `short:"g" help:"Conflict group; tasks in a group are spaced apart."`
	Slot       []string `short:"s" help:"Slot as HH:MM or HH:MM=label (morning|midday|evening|night). Repeatable."`
}

func (c *TaskAddCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}

	rec := models.Recurrence{
		Type:         models.RecurrenceType(c.Recurrence),
		IntervalDays: c.Interval,
	}
	if rec.Type == models.RecurrenceWeekly && c.Weekdays != "" {
		wds, err := cli.ParseWeekdays(c.Weekdays)
		if err != nil {
			return err
		}
		rec.WeekdayMask = wds
	}

	def := models.TaskDefinition{
		ID:        uuid.NewString(),
		SubjectID: settings.SubjectID,
		Kind:      models.TaskKind(c.Kind),
		Category:  c.Category,
		Name:      c.Name,
		Dose:      c.Dose,
		Location:  c.Location,
		Notes:     c.Notes,
		Frequency: rec,
		Active:    true,
		StartDate: c.Start,
		EndDate:   c.End,
		CreatedAt: time.Now(),
	}
	if c.Group != "" {
		def.ConflictGroup = models.StringPtr(c.Group)
	}
	for _, s := range c.Slot {
		slot, err := ParseSlot(def.ID, s)
		if err != nil {
			return err
		}
		def.Slots = append(def.Slots, slot)
	}

	if err := def.Validate(); err != nil {
		return err
	}
	if err := ctx.Store.AddTaskDefinition(bg, def); err != nil {
		return fmt.Errorf("failed to add task: %w", err)
	}

	fmt.Printf("Added task: %s (ID: %s)\n", def.Name, def.ID)
	warnSchedule(bg, ctx)
	return nil
}

// warnSchedule prints schedule lint for the active definitions. It never
// fails the command.
func warnSchedule(bg context.Context, ctx *cli.Context) {
	defs, err := ctx.Store.ListTaskDefinitions(bg, false)
	if err != nil {
		return
	}
	if result := validation.New().ValidateTasks(defs); result.HasIssues() {
		fmt.Printf("\n⚠️  %s", result.FormatReport())
	}
}

// ParseSlot reads "HH:MM" or "HH:MM=label". Without a label one is derived
// from the hour.
func ParseSlot(defID, value string) (models.ScheduleSlot, error) {
	at, label, hasLabel := strings.Cut(strings.TrimSpace(value), "=")
	t, err := time.Parse(constants.TimeFormat, at)
	if err != nil {
		return models.ScheduleSlot{}, fmt.Errorf("invalid slot time %q (expected HH:MM)", at)
	}

	slot := models.ScheduleSlot{
		ID:               uuid.NewString(),
		TaskDefinitionID: defID,
		Time:             at,
		Label:            labelFor(t.Hour()),
	}
	if hasLabel {
		switch l := models.SlotLabel(strings.ToLower(label)); l {
		case models.SlotMorning, models.SlotMidday, models.SlotEvening, models.SlotNight:
			slot.Label = l
		default:
			return models.ScheduleSlot{}, fmt.Errorf("invalid slot label %q", label)
		}
	}
	return slot, nil
}

func labelFor(hour int) models.SlotLabel {
	switch {
	case hour >= 5 && hour < 11:
		return models.SlotMorning
	case hour >= 11 && hour < 16:
		return models.SlotMidday
	case hour >= 16 && hour < 21:
		return models.SlotEvening
	default:
		return models.SlotNight
	}
}
