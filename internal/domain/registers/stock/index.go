package stock

import (
	"sort"
	"sync"
	"time"

	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
)

// productIndex is an immutable, ordered view of one product's entries.
type productIndex struct {
	entries []Entry
	rev     Revision
}

func newProductIndex(entries []Entry) *productIndex {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return before(&sorted[i], &sorted[j]) })
	rev := Revision{Entries: int64(len(sorted))}
	for i := range sorted {
		if sorted[i].IsVoided() {
			rev.Voided++
		}
	}
	return &productIndex{entries: sorted, rev: rev}
}

func (x *productIndex) current() types.Quantity {
	if len(x.entries) == 0 {
		return 0
	}
	return x.entries[len(x.entries)-1].RunningBalance
}

// upTo returns the number of entries dated on or before date.
func (x *productIndex) upTo(date time.Time) int {
	day := types.DateOf(date)
	return sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].OccurredOn.After(day)
	})
}

func (x *productIndex) asOf(date time.Time) types.Quantity {
	n := x.upTo(date)
	if n == 0 {
		return 0
	}
	return x.entries[n-1].RunningBalance
}

func (x *productIndex) lastInwardValue(date time.Time) *types.Money {
	for i := x.upTo(date) - 1; i >= 0; i-- {
		e := &x.entries[i]
		if !e.IsVoided() && e.IsInward() {
			v := e.UnitValue
			return &v
		}
	}
	return nil
}

func (x *productIndex) history() []Entry {
	out := make([]Entry, len(x.entries))
	copy(out, x.entries)
	return out
}

// indexCache holds committed per-product indexes. An index is only served
// while its revision matches the repository's. Each product carries a
// generation; a reader may only install an index built from the generation
// it observed before loading, so a slow reader cannot overwrite a newer
// index installed by a commit.
type indexCache struct {
	mu      sync.RWMutex
	indexes map[id.ID]*productIndex
	gens    map[id.ID]uint64
}

func newIndexCache() *indexCache {
	return &indexCache{
		indexes: make(map[id.ID]*productIndex),
		gens:    make(map[id.ID]uint64),
	}
}

func (c *indexCache) get(productID id.ID) (*productIndex, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[productID]
	return idx, c.gens[productID], ok
}

// install stores idx if no commit happened since gen was read.
func (c *indexCache) install(productID id.ID, idx *productIndex, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[productID] != gen {
		return false
	}
	c.indexes[productID] = idx
	return true
}

// replace is called after a commit and always wins.
func (c *indexCache) replace(productID id.ID, idx *productIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[productID]++
	c.indexes[productID] = idx
}

// invalidate drops every index, e.g. after an external repair.
func (c *indexCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.indexes {
		c.gens[p]++
	}
	c.indexes = make(map[id.ID]*productIndex)
}
