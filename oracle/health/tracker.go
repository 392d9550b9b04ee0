// Package health tracks per-source fetch success/failure and derives a
// per-source exponential backoff window, so a single failing endpoint
// never starves the others and never blocks forever.
package health

import (
	"time"

	"github.com/ojo-network/rofl-price-oracle/oracle/types"
)

const (
	DefaultBaseBackoff = 5 * time.Second
	DefaultMaxBackoff  = 300 * time.Second
)

// Status is the diagnostic and scheduling state kept for one source.
type Status struct {
	ConsecutiveFailures uint32
	BackoffUntil        time.Time
	TotalFailures       uint64
	TotalSuccesses      uint64
}

// Tracker owns one Status per source name for a single pair observer.
// It is never called concurrently (§5): all mutation happens on the
// orchestrator's single cooperative tick.
type Tracker struct {
	base   time.Duration
	max    time.Duration
	status map[types.SourceName]*Status
	// order preserves configuration order so ActiveSources is stable.
	order []types.SourceName
}

// NewTracker builds a tracker seeded with the given sources, in order.
// base/max of zero fall back to the package defaults.
func NewTracker(sources []types.SourceName, base, max time.Duration) *Tracker {
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	if max <= 0 {
		max = DefaultMaxBackoff
	}

	t := &Tracker{
		base:   base,
		max:    max,
		status: make(map[types.SourceName]*Status, len(sources)),
		order:  append([]types.SourceName(nil), sources...),
	}
	for _, s := range sources {
		t.status[s] = &Status{}
	}
	return t
}

// AddSource registers a new source with fresh status if not already present.
func (t *Tracker) AddSource(s types.SourceName) {
	if _, ok := t.status[s]; ok {
		return
	}
	t.status[s] = &Status{}
	t.order = append(t.order, s)
}

// RemoveSource forgets a source entirely.
func (t *Tracker) RemoveSource(s types.SourceName) {
	delete(t.status, s)
	for i, name := range t.order {
		if name == s {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// RecordFailure increments the failure streak and schedules the next
// backoff window as min(base * 2^(consecutiveFailures-1), max). It
// returns the scheduled backoff duration.
func (t *Tracker) RecordFailure(s types.SourceName, now time.Time) time.Duration {
	st := t.statusFor(s)
	st.ConsecutiveFailures++
	st.TotalFailures++

	backoff := t.base << (st.ConsecutiveFailures - 1)
	if st.ConsecutiveFailures > 32 || backoff > t.max || backoff <= 0 {
		backoff = t.max
	}

	st.BackoffUntil = now.Add(backoff)
	return backoff
}

// RecordSuccess clears the failure streak and any pending backoff.
func (t *Tracker) RecordSuccess(s types.SourceName) {
	st := t.statusFor(s)
	st.ConsecutiveFailures = 0
	st.BackoffUntil = time.Time{}
	st.TotalSuccesses++
}

// IsActive reports whether s is eligible to be queried at now.
func (t *Tracker) IsActive(s types.SourceName, now time.Time) bool {
	st, ok := t.status[s]
	if !ok {
		return false
	}
	return !now.Before(st.BackoffUntil)
}

// BackoffRemaining returns how long until s becomes active again, or
// zero if it is already active.
func (t *Tracker) BackoffRemaining(s types.SourceName, now time.Time) time.Duration {
	st, ok := t.status[s]
	if !ok {
		return 0
	}
	if !now.Before(st.BackoffUntil) {
		return 0
	}
	return st.BackoffUntil.Sub(now)
}

// ActiveSources returns the subset of tracked sources eligible to be
// queried at now, preserving configuration order.
func (t *Tracker) ActiveSources(now time.Time) []types.SourceName {
	active := make([]types.SourceName, 0, len(t.order))
	for _, s := range t.order {
		if t.IsActive(s, now) {
			active = append(active, s)
		}
	}
	return active
}

// Status returns a copy of the tracked status for s.
func (t *Tracker) Status(s types.SourceName) (Status, bool) {
	st, ok := t.status[s]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// AllStatus returns a copy of every tracked source's status.
func (t *Tracker) AllStatus() map[types.SourceName]Status {
	out := make(map[types.SourceName]Status, len(t.status))
	for name, st := range t.status {
		out[name] = *st
	}
	return out
}

// Reset clears a single source back to its initial state.
func (t *Tracker) Reset(s types.SourceName) {
	if _, ok := t.status[s]; ok {
		t.status[s] = &Status{}
	}
}

// ResetAll clears every tracked source back to its initial state.
func (t *Tracker) ResetAll() {
	for s := range t.status {
		t.status[s] = &Status{}
	}
}

func (t *Tracker) statusFor(s types.SourceName) *Status {
	st, ok := t.status[s]
	if !ok {
		st = &Status{}
		t.status[s] = st
		t.order = append(t.order, s)
	}
	return st
}
