package index

import (
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/graphdb-core/graphdb/internal/value"
)

// PropKey identifies one optional property index: the (label, property
// key) pair named in CREATE INDEX (spec section 4.5).
type PropKey struct {
	Label uint32
	Key   uint32
}

// PropIndex maps property value -> node IDs for one (label, key) pair.
// Values are bucketed by value.SortKey, the same canonicalization the
// expression evaluator already uses for ORDER BY/DISTINCT, so index
// lookups and in-memory comparisons agree on equality.
type PropIndex struct {
	mu      sync.RWMutex
	buckets map[string]*roaring.Bitmap
}

func newPropIndex() *PropIndex {
	return &PropIndex{buckets: make(map[string]*roaring.Bitmap)}
}

func (p *PropIndex) add(v value.Value, nodeID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := value.SortKey(v)
	b, ok := p.buckets[key]
	if !ok {
		b = roaring.New()
		p.buckets[key] = b
	}
	b.Add(uint32(nodeID))
}

func (p *PropIndex) remove(v value.Value, nodeID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.buckets[value.SortKey(v)]; ok {
		b.Remove(uint32(nodeID))
	}
}

func (p *PropIndex) lookup(v value.Value) *roaring.Bitmap {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if b, ok := p.buckets[value.SortKey(v)]; ok {
		return b.Clone()
	}
	return roaring.New()
}

// PropIndexSet is the engine-wide registry of optional property indexes,
// created and dropped via CREATE INDEX / DROP INDEX (spec section 4.5).
type PropIndexSet struct {
	mu      sync.RWMutex
	indexes map[PropKey]*PropIndex
}

func NewPropIndexSet() *PropIndexSet {
	return &PropIndexSet{indexes: make(map[PropKey]*PropIndex)}
}

// Create registers a new, initially empty index for key. Safe to call
// again for an already-indexed key (no-op); the caller (engine) is
// responsible for the bulk scan that populates it from the record store.
func (s *PropIndexSet) Create(key PropKey) *PropIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[key]; ok {
		return idx
	}
	idx := newPropIndex()
	s.indexes[key] = idx
	return idx
}

// Drop removes the index for key. Idempotent.
func (s *PropIndexSet) Drop(key PropKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, key)
}

// Lookup returns the index for key, or nil if none exists.
func (s *PropIndexSet) Lookup(key PropKey) *PropIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexes[key]
}

// List reports every currently registered (label, key) pair, for the
// list_indexes engine operation.
func (s *PropIndexSet) List() []PropKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]PropKey, 0, len(s.indexes))
	for k := range s.indexes {
		keys = append(keys, k)
	}
	return keys
}

// OnPropertySet updates every registered index for label/key when a
// node's property value changes from old to new (old may be the zero
// Value/absent - callers pass value.Null when there was no prior value).
// Called synchronously from the write path (spec section 4.5).
func (s *PropIndexSet) OnPropertySet(label, key uint32, nodeID uint64, oldVal, newVal value.Value) {
	idx := s.Lookup(PropKey{Label: label, Key: key})
	if idx == nil {
		return
	}
	if !oldVal.IsNull() {
		idx.remove(oldVal, nodeID)
	}
	if !newVal.IsNull() {
		idx.add(newVal, nodeID)
	}
}

// OnPropertyRemoved clears nodeID from label/key's index, if registered.
func (s *PropIndexSet) OnPropertyRemoved(label, key uint32, nodeID uint64, oldVal value.Value) {
	idx := s.Lookup(PropKey{Label: label, Key: key})
	if idx == nil || oldVal.IsNull() {
		return
	}
	idx.remove(oldVal, nodeID)
}

// Equals returns the candidate node IDs whose label/key property equals
// v, or (nil, false) if no index is registered for that pair (caller
// should fall back to a label scan + filter).
func (s *PropIndexSet) Equals(label, key uint32, v value.Value) (*roaring.Bitmap, bool) {
	idx := s.Lookup(PropKey{Label: label, Key: key})
	if idx == nil {
		return nil, false
	}
	return idx.lookup(v), true
}
