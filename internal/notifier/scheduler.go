package notifier

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/julianstephens/carelog/internal/clock"
	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/logger"
	"github.com/julianstephens/carelog/internal/models"
)

type timer interface {
	Stop() bool
}

var afterFunc = func(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

var retryDelay = constants.NotifyRetryDelay

type entry struct {
	trigger Trigger
	timer   timer
}

// Scheduler holds the armed timers, keyed by occurrence id. Scheduling an
// id that already has a timer replaces it.
type Scheduler struct {
	sink  Sink
	clock clock.Clock

	mu     sync.Mutex
	timers map[string]*entry
}

func NewScheduler(sink Sink, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New(time.Local)
	}
	return &Scheduler{
		sink:   sink,
		clock:  clk,
		timers: make(map[string]*entry),
	}
}

// Schedule arms a timer for t. Triggers already in the past fire at once
// unless they are past the overdue threshold, which are not armed at all.
func (s *Scheduler) Schedule(t Trigger) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(t.OccurrenceID)

	now := s.clock.Now()
	if now.Sub(t.At) > constants.OverdueThreshold {
		logger.Debug("Stale trigger skipped", "occurrence", t.OccurrenceID, "at", t.At.Format(time.RFC3339))
		return false
	}
	delay := t.At.Sub(now)
	if delay < 0 {
		delay = 0
	}
	e := &entry{trigger: t}
	e.timer = afterFunc(delay, func() { s.fire(e) })
	s.timers[t.OccurrenceID] = e

	logger.Debug("Trigger scheduled", "occurrence", t.OccurrenceID, "at", t.At.Format(time.RFC3339))
	return true
}

// Cancel drops the timer for an occurrence, if any.
func (s *Scheduler) Cancel(occurrenceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(occurrenceID)
}

func (s *Scheduler) cancelLocked(id string) bool {
	e, ok := s.timers[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.timers, id)
	return true
}

// Reschedule moves an armed trigger to a new time, keeping its payload. It
// reports false when no trigger was armed or the new time is stale.
func (s *Scheduler) Reschedule(occurrenceID string, at time.Time) bool {
	s.mu.Lock()
	e, ok := s.timers[occurrenceID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	t := e.trigger
	t.At = at
	return s.Schedule(t)
}

// Apply brings one occurrence's timer in line with its current state.
func (s *Scheduler) Apply(occ models.Occurrence, def models.TaskDefinition) {
	if t, ok := TriggerFor(occ, def); ok {
		s.Schedule(t)
		return
	}
	if s.Cancel(occ.ID) {
		logger.Debug("Trigger cancelled", "occurrence", occ.ID, "status", occ.Status)
	}
}

// Sync applies every occurrence and drops timers for ids no longer listed.
func (s *Scheduler) Sync(occs []models.Occurrence, defs map[string]models.TaskDefinition) {
	listed := make(map[string]bool, len(occs))
	for _, occ := range occs {
		listed[occ.ID] = true
		def, ok := defs[occ.TaskDefinitionID]
		if !ok {
			s.Cancel(occ.ID)
			continue
		}
		s.Apply(occ, def)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.timers {
		if !listed[id] {
			s.cancelLocked(id)
		}
	}
}

// Armed lists the triggers waiting to fire, earliest first.
func (s *Scheduler) Armed() []Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Trigger, 0, len(s.timers))
	for _, e := range s.timers {
		out = append(out, e.trigger)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].OccurrenceID < out[j].OccurrenceID
	})
	return out
}

// Stop cancels every timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.timers {
		s.cancelLocked(id)
	}
}

func (s *Scheduler) fire(e *entry) {
	s.mu.Lock()
	current, ok := s.timers[e.trigger.OccurrenceID]
	if !ok || current != e {
		// Replaced or cancelled after the timer started firing.
		s.mu.Unlock()
		return
	}
	delete(s.timers, e.trigger.OccurrenceID)
	s.mu.Unlock()

	var err error
	for attempt := 1; attempt <= constants.NotifyMaxRetries; attempt++ {
		if err = s.sink.Send(context.Background(), e.trigger); err == nil {
			logger.Info("Trigger delivered", "occurrence", e.trigger.OccurrenceID, "attempt", attempt)
			return
		}
		if attempt < constants.NotifyMaxRetries {
			time.Sleep(retryDelay)
		}
	}
	logger.Warn("Trigger delivery failed", "occurrence", e.trigger.OccurrenceID, "error", err)
}
