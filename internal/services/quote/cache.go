package quote

import (
	"time"

	"github.com/dawnsea/tidescan/internal/common"
	"github.com/dawnsea/tidescan/internal/models"
)

// SnapshotCache is the single-slot market snapshot cache. One writer swaps
// a complete snapshot in; concurrent readers keep the prior value until the
// swap lands. Entries expire on the configured TTL.
type SnapshotCache struct {
	slot *common.Slot[*models.QuoteSnapshot]
}

// NewSnapshotCache creates an empty cache with the given TTL.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{slot: common.NewSlot[*models.QuoteSnapshot](ttl)}
}

// Get returns the cached snapshot if it is still fresh.
func (c *SnapshotCache) Get() (*models.QuoteSnapshot, bool) {
	return c.slot.Get()
}

// Set replaces the cached snapshot.
func (c *SnapshotCache) Set(snapshot *models.QuoteSnapshot) {
	c.slot.Set(snapshot)
}

// IsFresh reports whether the cache holds an unexpired snapshot.
func (c *SnapshotCache) IsFresh() bool {
	return c.slot.IsFresh()
}

// SetClock overrides the time source for TTL checks in tests.
func (c *SnapshotCache) SetClock(now func() time.Time) {
	c.slot.SetClock(now)
}
