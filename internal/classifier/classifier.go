// Package classifier derives display buckets from occurrences. Nothing here
// writes state; buckets are recomputed on every read.
package classifier

import (
	"sort"
	"time"

	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/models"
)

type Bucket string

const (
	BucketUpcoming  Bucket = "upcoming"
	BucketDue       Bucket = "due"
	BucketOverdue   Bucket = "overdue"
	BucketSnoozed   Bucket = "snoozed"
	BucketConfirmed Bucket = "confirmed"
)

// Buckets lists every bucket in board order.
var Buckets = []Bucket{BucketOverdue, BucketDue, BucketSnoozed, BucketUpcoming, BucketConfirmed}

// Classify places occ in exactly one bucket relative to now.
func Classify(occ models.Occurrence, now time.Time) Bucket {
	switch occ.Status {
	case models.StatusConfirmed:
		return BucketConfirmed
	case models.StatusExpired:
		return BucketOverdue
	case models.StatusSnoozed:
		if occ.SnoozeUntil != nil && occ.SnoozeUntil.After(now) {
			return BucketSnoozed
		}
		return BucketDue
	}

	// pending, and any unknown status treated as pending
	if occ.ScheduledAt.After(now) {
		return BucketUpcoming
	}
	if now.Sub(occ.ScheduledAt) >= constants.OverdueThreshold {
		return BucketOverdue
	}
	return BucketDue
}

// EffectiveTime is the time an occurrence sorts by: snoozeUntil for
// snoozed items, scheduledAt otherwise.
func EffectiveTime(occ models.Occurrence) time.Time {
	if occ.Status == models.StatusSnoozed && occ.SnoozeUntil != nil {
		return *occ.SnoozeUntil
	}
	return occ.ScheduledAt
}

// Board is a bucketed view of one day's occurrences.
type Board struct {
	Groups map[Bucket][]models.Occurrence
}

// Group classifies occs against now and sorts each bucket ascending by
// effective time.
func Group(occs []models.Occurrence, now time.Time) Board {
	b := Board{Groups: make(map[Bucket][]models.Occurrence, len(Buckets))}
	for _, occ := range occs {
		bucket := Classify(occ, now)
		b.Groups[bucket] = append(b.Groups[bucket], occ)
	}

	for _, items := range b.Groups {
		sort.SliceStable(items, func(i, j int) bool {
			ti, tj := EffectiveTime(items[i]), EffectiveTime(items[j])
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return items[i].ID < items[j].ID
		})
	}
	return b
}

func (b Board) Get(bucket Bucket) []models.Occurrence {
	return b.Groups[bucket]
}

// PendingCount is overdue + due + snoozed. Upcoming items are not counted.
func (b Board) PendingCount() int {
	return len(b.Groups[BucketOverdue]) + len(b.Groups[BucketDue]) + len(b.Groups[BucketSnoozed])
}

func (b Board) ConfirmedCount() int {
	return len(b.Groups[BucketConfirmed])
}

func (b Board) Total() int {
	n := 0
	for _, items := range b.Groups {
		n += len(items)
	}
	return n
}
