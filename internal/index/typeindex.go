package index

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// TypeIndex maps relationship type ID -> roaring bitmap of relationship
// IDs carrying that type. Same shape as LabelIndex but kept as a
// distinct type since node IDs and relationship IDs are separate ID
// spaces (spec section 3).
type TypeIndex struct {
	mu     sync.RWMutex
	byType map[uint32]*roaring.Bitmap
}

func NewTypeIndex() *TypeIndex {
	return &TypeIndex{byType: make(map[uint32]*roaring.Bitmap)}
}

func (idx *TypeIndex) Add(typeID uint32, relID uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	b, ok := idx.byType[typeID]
	if !ok {
		b = roaring.New()
		idx.byType[typeID] = b
	}
	b.Add(uint32(relID))
}

func (idx *TypeIndex) Remove(typeID uint32, relID uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if b, ok := idx.byType[typeID]; ok {
		b.Remove(uint32(relID))
	}
}

func (idx *TypeIndex) Contains(typeID uint32, relID uint64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	b, ok := idx.byType[typeID]
	return ok && b.Contains(uint32(relID))
}

func (idx *TypeIndex) Rels(typeID uint32) *roaring.Bitmap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if b, ok := idx.byType[typeID]; ok {
		return b.Clone()
	}
	return roaring.New()
}

// Union returns the relationship IDs carrying any of types - used for
// planner support of pipe-separated relationship type patterns
// ([r:A|B]) (spec section 9 design notes).
func (idx *TypeIndex) Union(types ...uint32) *roaring.Bitmap {
	result := roaring.New()
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, t := range types {
		if b, ok := idx.byType[t]; ok {
			result.Or(b)
		}
	}
	return result
}

func (idx *TypeIndex) Count(typeID uint32) uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if b, ok := idx.byType[typeID]; ok {
		return b.GetCardinality()
	}
	return 0
}
