package survey

import (
	"slices"
	"sync"
)

// Collection is the append-only set of entries captured in a session.
// Readers work on snapshots so an export never sees a half-applied append.
type Collection struct {
	mu      sync.RWMutex
	entries []*Entry
	version uint64
}

// NewCollection returns a collection seeded with entries, typically the
// ones loaded from the datastore at startup.
func NewCollection(entries ...*Entry) *Collection {
	c := &Collection{}
	for _, e := range entries {
		if e != nil {
			c.entries = append(c.entries, e)
		}
	}
	return c
}

// Append adds entries in order and bumps the version once.
func (c *Collection) Append(entries ...*Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := false
	for _, e := range entries {
		if e == nil {
			continue
		}
		c.entries = append(c.entries, e)
		added = true
	}
	if added {
		c.version++
	}
}

// Snapshot returns the entries in capture order. The slice is a copy;
// the entries themselves are shared and must be treated as read-only.
func (c *Collection) Snapshot() []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.entries)
}

// SnapshotVersion returns a snapshot together with the version it
// corresponds to.
func (c *Collection) SnapshotVersion() ([]*Entry, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.entries), c.version
}

// Len returns the number of entries.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get returns the first entry with id.
func (c *Collection) Get(id string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Reset drops every entry.
func (c *Collection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.version++
}

// Version changes on every mutation.
func (c *Collection) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
