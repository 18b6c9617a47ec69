package common

import (
	"sync/atomic"
	"time"
)

// DefaultSnapshotTTL is the default validity window for cached market snapshots.
const DefaultSnapshotTTL = 300 * time.Second

type slotEntry[T any] struct {
	payload   T
	fetchedAt time.Time
}

// Slot is a single-value cache with a fixed TTL. Readers never block:
// Get loads the current entry through one atomic pointer read, and Set
// builds a new entry out-of-band before swapping it in. A payload is
// replaced wholesale, never mutated in place, so a reader either sees
// the previous complete value or the new one.
type Slot[T any] struct {
	ttl time.Duration
	ptr atomic.Pointer[slotEntry[T]]

	// now is injectable for tests
	now func() time.Time
}

// NewSlot creates an empty slot with the given TTL. A zero or negative
// TTL falls back to DefaultSnapshotTTL.
func NewSlot[T any](ttl time.Duration) *Slot[T] {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Slot[T]{
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the cached payload if it is still fresh.
func (s *Slot[T]) Get() (T, bool) {
	entry := s.ptr.Load()
	if entry == nil || s.now().Sub(entry.fetchedAt) >= s.ttl {
		var zero T
		return zero, false
	}
	return entry.payload, true
}

// Set replaces the cached payload and stamps the current time.
func (s *Slot[T]) Set(payload T) {
	s.ptr.Store(&slotEntry[T]{
		payload:   payload,
		fetchedAt: s.now(),
	})
}

// IsFresh reports whether the slot holds an unexpired payload.
func (s *Slot[T]) IsFresh() bool {
	entry := s.ptr.Load()
	return entry != nil && s.now().Sub(entry.fetchedAt) < s.ttl
}

// FetchedAt returns the timestamp of the cached payload, or the zero
// time when the slot is empty.
func (s *Slot[T]) FetchedAt() time.Time {
	entry := s.ptr.Load()
	if entry == nil {
		return time.Time{}
	}
	return entry.fetchedAt
}

// SetClock overrides the time source. Tests use this to step through
// TTL expiry without sleeping.
func (s *Slot[T]) SetClock(now func() time.Time) {
	s.now = now
}
