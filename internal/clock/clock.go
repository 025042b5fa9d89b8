// Package clock supplies the current time. Core packages take a Clock
// instead of calling time.Now so classification and conflict math stay
// deterministic under test.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// System reads the wall clock in a fixed location.
type System struct {
	Location *time.Location
}

func New(loc *time.Location) System {
	if loc == nil {
		loc = time.Local
	}
	return System{Location: loc}
}

func (s System) Now() time.Time {
	return time.Now().In(s.Location)
}

// Manual is a settable clock for tests and replays.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
