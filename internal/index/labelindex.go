// Package index implements component C5: label and relationship-type
// bitmap indexes, a lazily-materialized adjacency cache, and optional
// property indexes (spec section 4.5).
//
// Every index hit is a candidate, never a final answer: callers must
// re-validate the candidate node/relationship's (created_epoch,
// deleted_epoch) against their own snapshot before returning it, since
// the bitmap itself carries no MVCC information (spec invariant
// "label_index[L].contains(n) <=> bit L set on visible n" is enforced by
// the executor's re-check, not by this package).
package index

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// LabelIndex maps label ID -> roaring bitmap of node IDs carrying that
// label. Grounded on the teacher's use of RoaringBitmap/roaring
// (internal/store/index_sqlite.go column encoding); a dense bitmap of
// node IDs is exactly the structure a roaring bitmap compresses well.
type LabelIndex struct {
	mu     sync.RWMutex
	byLabel map[uint32]*roaring.Bitmap
}

func NewLabelIndex() *LabelIndex {
	return &LabelIndex{byLabel: make(map[uint32]*roaring.Bitmap)}
}

func (idx *LabelIndex) bitmapLocked(label uint32) *roaring.Bitmap {
	b, ok := idx.byLabel[label]
	if !ok {
		b = roaring.New()
		idx.byLabel[label] = b
	}
	return b
}

// readLocked returns label's bitmap without inserting a missing entry,
// safe to call while holding only a read lock.
func (idx *LabelIndex) readLocked(label uint32) *roaring.Bitmap {
	if b, ok := idx.byLabel[label]; ok {
		return b
	}
	return roaring.New()
}

// Add records that nodeID carries label. Synchronous: called inline with
// the write that sets the label bit on the node record (spec section 4.5:
// "maintained synchronously alongside the write path").
func (idx *LabelIndex) Add(label uint32, nodeID uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.bitmapLocked(label).Add(uint32(nodeID))
}

// Remove undoes Add. Used both for explicit REMOVE label and for node
// deletion cleanup.
func (idx *LabelIndex) Remove(label uint32, nodeID uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if b, ok := idx.byLabel[label]; ok {
		b.Remove(uint32(nodeID))
	}
}

// Contains reports whether nodeID is a member of label's bitmap. This is
// only ever a candidate check; callers must still re-validate visibility.
func (idx *LabelIndex) Contains(label uint32, nodeID uint64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	b, ok := idx.byLabel[label]
	return ok && b.Contains(uint32(nodeID))
}

// Nodes returns a snapshot copy of the bitmap for label, or an empty one
// if the label has never been indexed.
func (idx *LabelIndex) Nodes(label uint32) *roaring.Bitmap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if b, ok := idx.byLabel[label]; ok {
		return b.Clone()
	}
	return roaring.New()
}

// Intersect returns the node IDs carrying every one of labels, via
// repeated roaring AND - used by the planner for multi-label MATCH
// patterns like (n:Person:Employee).
func (idx *LabelIndex) Intersect(labels ...uint32) *roaring.Bitmap {
	if len(labels) == 0 {
		return roaring.New()
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := idx.readLocked(labels[0]).Clone()
	for _, l := range labels[1:] {
		result.And(idx.readLocked(l))
	}
	return result
}

// Count returns the cardinality of label's bitmap, used by the planner's
// selectivity estimation when choosing between NodeByLabel and
// AllNodesScan.
func (idx *LabelIndex) Count(label uint32) uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if b, ok := idx.byLabel[label]; ok {
		return b.GetCardinality()
	}
	return 0
}
