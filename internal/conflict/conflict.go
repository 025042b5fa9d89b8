// Package conflict enforces soft spacing between tasks that share a
// conflict group.
package conflict

import (
	"math"
	"time"

	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/models"
)

// Entry pairs an occurrence with the definition that owns its group.
type Entry struct {
	Occurrence models.Occurrence
	Definition models.TaskDefinition
}

// Result is advisory. CanOverride is always true.
type Result struct {
	HasConflict         bool
	ConflictingTaskName string
	RemainingMinutes    int
	CanOverride         bool
}

// Err returns the conflict as a *errors.ConflictError, or nil.
func (r Result) Err() error {
	if !r.HasConflict {
		return nil
	}
	return &apperr.ConflictError{
		ConflictingTaskName: r.ConflictingTaskName,
		RemainingMinutes:    r.RemainingMinutes,
	}
}

// Check looks for another confirmed occurrence in target's conflict group
// whose confirmation falls inside the spacing window around now. When
// several match, the most recently confirmed one is reported.
func Check(target Entry, all []Entry, now time.Time) Result {
	res := Result{CanOverride: true}

	group := target.Definition.Group()
	if group == nil {
		return res
	}
	window := group.Window()

	var latest *Entry
	for i := range all {
		e := &all[i]
		if e.Occurrence.ID == target.Occurrence.ID {
			continue
		}
		other := e.Definition.Group()
		if other == nil || other.Name != group.Name {
			continue
		}
		if e.Occurrence.Status != models.StatusConfirmed || e.Occurrence.ConfirmedAt == nil {
			continue
		}

		elapsed := now.Sub(*e.Occurrence.ConfirmedAt)
		if elapsed >= window || elapsed <= -window {
			continue
		}
		if latest == nil || e.Occurrence.ConfirmedAt.After(*latest.Occurrence.ConfirmedAt) {
			latest = e
		}
	}

	if latest == nil {
		return res
	}

	res.HasConflict = true
	res.ConflictingTaskName = latest.Definition.Name
	res.RemainingMinutes = remainingMinutes(window, now.Sub(*latest.Occurrence.ConfirmedAt))
	return res
}

// remainingMinutes rounds window-elapsed up to whole minutes and clamps it
// to [1, window].
func remainingMinutes(window, elapsed time.Duration) int {
	maxMin := int(window / time.Minute)
	if maxMin < 1 {
		maxMin = 1
	}
	m := int(math.Ceil((window - elapsed).Minutes()))
	if m < 1 {
		return 1
	}
	if m > maxMin {
		return maxMin
	}
	return m
}
