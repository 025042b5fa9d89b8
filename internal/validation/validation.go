// Package validation lints task definitions for schedules that can never be
// followed as written.
package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/utils"
)

// IssueType represents the kind of problem found
type IssueType string

const (
	IssueDuplicateTaskName IssueType = "duplicate_task_name"
	IssueDuplicateSlot     IssueType = "duplicate_slot"
	IssueInvalidTime       IssueType = "invalid_time"
	IssueNoSlots           IssueType = "no_slots"
	IssueGroupTooClose     IssueType = "group_too_close"
)

// Issue is one problem found in the task definitions
type Issue struct {
	Type        IssueType
	Description string
	Items       []string // Task names involved
	TaskIDs     []string
}

// ValidationResult contains all detected issues
type ValidationResult struct {
	Issues []Issue
}

func (vr *ValidationResult) HasIssues() bool {
	return len(vr.Issues) > 0
}

// FormatReport returns a human-readable report of all issues
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasIssues() {
		return "No issues detected."
	}

	var b strings.Builder
	b.WriteString("Issues detected:\n")
	for _, issue := range vr.Issues {
		fmt.Fprintf(&b, "- %s\n", issue.Description)
	}
	return b.String()
}

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateTasks checks every active definition regardless of date.
func (v *Validator) ValidateTasks(defs []models.TaskDefinition) ValidationResult {
	return v.ValidateTasksForDate(defs, nil)
}

// ValidateTasksForDate checks definitions, scoping the conflict group check
// to those that recur on date when one is given.
func (v *Validator) ValidateTasksForDate(defs []models.TaskDefinition, date *time.Time) ValidationResult {
	result := ValidationResult{Issues: []Issue{}}

	var active []models.TaskDefinition
	for _, def := range defs {
		if def.Active && !def.Placeholder {
			active = append(active, def)
		}
	}

	// Same name for the same person is almost always an accidental re-add.
	names := make(map[string][]string)
	display := make(map[string]string)
	var order []string
	for _, def := range active {
		if def.Name == "" {
			continue
		}
		key := def.SubjectID + "\x00" + strings.ToLower(def.Name)
		if _, ok := names[key]; !ok {
			order = append(order, key)
			display[key] = def.Name
		}
		names[key] = append(names[key], def.ID)
	}
	for _, key := range order {
		ids := names[key]
		if len(ids) < 2 {
			continue
		}
		name := display[key]
		result.Issues = append(result.Issues, Issue{
			Type:        IssueDuplicateTaskName,
			Description: fmt.Sprintf("Duplicate task name: \"%s\" (IDs: %v)", name, ids),
			Items:       []string{name},
			TaskIDs:     ids,
		})
	}

	for _, def := range active {
		seen := make(map[string]bool)
		for _, slot := range def.Slots {
			if !utils.ValidateTimeFormat(slot.Time) {
				result.Issues = append(result.Issues, Issue{
					Type:        IssueInvalidTime,
					Description: fmt.Sprintf("Task \"%s\" has invalid slot time: %s", def.Name, slot.Time),
					Items:       []string{def.Name},
					TaskIDs:     []string{def.ID},
				})
				continue
			}
			if seen[slot.Time] {
				result.Issues = append(result.Issues, Issue{
					Type:        IssueDuplicateSlot,
					Description: fmt.Sprintf("Task \"%s\" has two slots at %s", def.Name, slot.Time),
					Items:       []string{def.Name},
					TaskIDs:     []string{def.ID},
				})
			}
			seen[slot.Time] = true
		}
		if len(def.Slots) == 0 && def.Frequency.Type != models.RecurrenceAdHoc {
			result.Issues = append(result.Issues, Issue{
				Type:        IssueNoSlots,
				Description: fmt.Sprintf("Task \"%s\" recurs %s but has no slots", def.Name, def.Frequency.Type),
				Items:       []string{def.Name},
				TaskIDs:     []string{def.ID},
			})
		}
	}

	result.Issues = append(result.Issues, groupIssues(active, date)...)
	return result
}

type groupedSlot struct {
	def     models.TaskDefinition
	time    string
	minutes int
}

// groupIssues flags slots of different tasks in one conflict group that are
// closer than the spacing window. The second task would always be blocked.
func groupIssues(defs []models.TaskDefinition, date *time.Time) []Issue {
	groups := make(map[string][]groupedSlot)
	var names []string
	for _, def := range defs {
		g := def.Group()
		if g == nil {
			continue
		}
		if date != nil && (!utils.ShouldSchedule(def, *date) || !def.InWindow(date.Format(constants.DateFormat))) {
			continue
		}
		if _, ok := groups[g.Name]; !ok {
			names = append(names, g.Name)
		}
		for _, slot := range def.Slots {
			m, err := parseTimeToMinutes(slot.Time)
			if err != nil {
				continue
			}
			groups[g.Name] = append(groups[g.Name], groupedSlot{def: def, time: slot.Time, minutes: m})
		}
	}
	sort.Strings(names)

	var issues []Issue
	for _, name := range names {
		slots := groups[name]
		sort.Slice(slots, func(i, j int) bool { return slots[i].minutes < slots[j].minutes })
		window := models.NewConflictGroup(name).SpacingMin

		for i := 0; i < len(slots); i++ {
			for j := i + 1; j < len(slots) && slots[j].minutes-slots[i].minutes < window; j++ {
				a, b := slots[i], slots[j]
				if a.def.ID == b.def.ID || !recurrenceOverlaps(a.def.Frequency, b.def.Frequency) {
					continue
				}
				issues = append(issues, Issue{
					Type: IssueGroupTooClose,
					Description: fmt.Sprintf("Group \"%s\": \"%s\" at %s and \"%s\" at %s are less than %d min apart",
						name, a.def.Name, a.time, b.def.Name, b.time, window),
					Items:   []string{a.def.Name, b.def.Name},
					TaskIDs: []string{a.def.ID, b.def.ID},
				})
			}
		}
	}
	return issues
}

// recurrenceOverlaps checks if two recurrence patterns can occur on the same day
func recurrenceOverlaps(r1, r2 models.Recurrence) bool {
	if r1.Type == models.RecurrenceDaily || r2.Type == models.RecurrenceDaily {
		return true
	}

	if r1.Type == models.RecurrenceWeekly && r2.Type == models.RecurrenceWeekly {
		if len(r1.WeekdayMask) == 0 || len(r2.WeekdayMask) == 0 {
			return true
		}
		for _, d1 := range r1.WeekdayMask {
			for _, d2 := range r2.WeekdayMask {
				if d1 == d2 {
					return true
				}
			}
		}
		return false
	}

	// n_days cycles drift against each other; assume they meet.
	return true
}

func parseTimeToMinutes(s string) (int, error) {
	t, err := time.Parse(constants.TimeFormat, s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
