package index

import (
	"sync"

	"github.com/graphdb-core/graphdb/internal/store"
)

// RelReader is the subset of RelStore the adjacency cache needs to walk
// a node's linked lists.
type RelReader interface {
	ReadRel(id uint64) (store.RelRecord, error)
}

type adjEntry struct {
	out []uint64 // relationship IDs in this node's outgoing list, head to tail
	in  []uint64
}

// AdjacencyCache lazily materializes the outgoing/incoming relationship-
// ID sequence for a node by walking its doubly-linked list once, then
// serves subsequent lookups from memory. The record store's OutHead/
// InHead/Next*/Prev* pointers remain the canonical source of truth
// (spec section 4.5); this cache is purely an accelerator and is
// invalidated entry-by-entry whenever a mutation touches that node's
// list, never trusted blindly across a write.
type AdjacencyCache struct {
	rels RelReader

	mu      sync.Mutex
	entries map[uint64]*adjEntry
}

func NewAdjacencyCache(rels RelReader) *AdjacencyCache {
	return &AdjacencyCache{rels: rels, entries: make(map[uint64]*adjEntry)}
}

// Invalidate drops the cached entry for nodeID, forcing the next Out/In
// call to re-walk the store. Call this whenever a relationship incident
// to nodeID is created or deleted.
func (c *AdjacencyCache) Invalidate(nodeID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, nodeID)
}

// entryFor returns the cached entry for nodeID, materializing it by
// walking both lists from outHead/inHead on first access. Both heads
// must be supplied together since a partial walk (only one direction)
// would poison the cache for the other.
func (c *AdjacencyCache) entryFor(nodeID, outHead, inHead uint64) (*adjEntry, error) {
	c.mu.Lock()
	if e, ok := c.entries[nodeID]; ok {
		c.mu.Unlock()
		return e, nil
	}
	c.mu.Unlock()

	out, err := c.walk(outHead, func(r store.RelRecord) uint64 { return r.NextOutOfSrc })
	if err != nil {
		return nil, err
	}
	in, err := c.walk(inHead, func(r store.RelRecord) uint64 { return r.NextInToDst })
	if err != nil {
		return nil, err
	}

	e := &adjEntry{out: out, in: in}
	c.mu.Lock()
	c.entries[nodeID] = e
	c.mu.Unlock()
	return e, nil
}

func (c *AdjacencyCache) walk(head uint64, next func(store.RelRecord) uint64) ([]uint64, error) {
	var ids []uint64
	for cur := head; cur != store.NoPointer; {
		rec, err := c.rels.ReadRel(cur)
		if err != nil {
			return nil, err
		}
		ids = append(ids, cur)
		cur = next(rec)
	}
	return ids, nil
}

// Out returns nodeID's outgoing relationship IDs, head to tail, walking
// and caching both of the store's linked lists on first access.
func (c *AdjacencyCache) Out(nodeID, outHead, inHead uint64) ([]uint64, error) {
	e, err := c.entryFor(nodeID, outHead, inHead)
	if err != nil {
		return nil, err
	}
	return e.out, nil
}

// In returns nodeID's incoming relationship IDs, head to tail.
func (c *AdjacencyCache) In(nodeID, outHead, inHead uint64) ([]uint64, error) {
	e, err := c.entryFor(nodeID, outHead, inHead)
	if err != nil {
		return nil, err
	}
	return e.in, nil
}
