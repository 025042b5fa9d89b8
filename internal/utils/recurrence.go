package utils

import (
	"slices"
	"time"

	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/models"
)

// ShouldSchedule reports whether def recurs on date. It does not check the
// active flag or the effective window.
func ShouldSchedule(def models.TaskDefinition, date time.Time) bool {
	switch def.Frequency.Type {
	case models.RecurrenceDaily, "":
		return true
	case models.RecurrenceWeekly:
		return slices.Contains(def.Frequency.WeekdayMask, date.Weekday())
	case models.RecurrenceNDays:
		if def.Frequency.IntervalDays <= 1 {
			return true
		}
		anchor, ok := nDaysAnchor(def)
		if !ok {
			return true
		}
		days := daysBetween(anchor, date)
		return days >= 0 && days%def.Frequency.IntervalDays == 0
	case models.RecurrenceAdHoc:
		return false
	default:
		return false
	}
}

// nDaysAnchor is the first day of an n_days cycle: the start date, or the
// creation date when the definition has no window.
func nDaysAnchor(def models.TaskDefinition) (time.Time, bool) {
	if def.StartDate != "" {
		t, err := time.Parse(constants.DateFormat, def.StartDate)
		return t, err == nil
	}
	if def.CreatedAt.IsZero() {
		return time.Time{}, false
	}
	y, m, d := def.CreatedAt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

// daysBetween counts calendar days from a to b, ignoring clock time and
// zone so DST shifts do not skew the result.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
