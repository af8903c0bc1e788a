package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb-core/graphdb/internal/store"
	"github.com/graphdb-core/graphdb/internal/value"
)

func TestLabelIndexAddRemoveContains(t *testing.T) {
	idx := NewLabelIndex()
	idx.Add(1, 10)
	idx.Add(1, 11)
	idx.Add(2, 10)

	require.True(t, idx.Contains(1, 10))
	require.True(t, idx.Contains(2, 10))
	require.False(t, idx.Contains(2, 11))
	require.EqualValues(t, 2, idx.Count(1))

	idx.Remove(1, 10)
	require.False(t, idx.Contains(1, 10))
	require.EqualValues(t, 1, idx.Count(1))
}

func TestLabelIndexIntersect(t *testing.T) {
	idx := NewLabelIndex()
	idx.Add(1, 10) // Person
	idx.Add(1, 11)
	idx.Add(2, 10) // Employee
	idx.Add(2, 12)

	both := idx.Intersect(1, 2)
	require.True(t, both.Contains(10))
	require.False(t, both.Contains(11))
	require.False(t, both.Contains(12))
}

func TestLabelIndexNodesReturnsSnapshotCopy(t *testing.T) {
	idx := NewLabelIndex()
	idx.Add(1, 10)
	snap := idx.Nodes(1)
	idx.Add(1, 11)
	require.False(t, snap.Contains(11), "mutating the index after Nodes() must not affect the earlier snapshot")
}

func TestTypeIndexUnion(t *testing.T) {
	idx := NewTypeIndex()
	idx.Add(1, 100) // KNOWS
	idx.Add(2, 101) // LIKES
	idx.Add(1, 102)

	u := idx.Union(1, 2)
	require.True(t, u.Contains(100))
	require.True(t, u.Contains(101))
	require.True(t, u.Contains(102))
	require.EqualValues(t, 2, idx.Count(1))
}

func TestTypeIndexRemove(t *testing.T) {
	idx := NewTypeIndex()
	idx.Add(1, 100)
	idx.Remove(1, 100)
	require.False(t, idx.Contains(1, 100))
}

// fakeRelReader implements RelReader over an in-memory map for adjacency
// cache tests, standing in for a real RelStore.
type fakeRelReader struct {
	rels map[uint64]store.RelRecord
}

func (f *fakeRelReader) ReadRel(id uint64) (store.RelRecord, error) {
	return f.rels[id], nil
}

func TestAdjacencyCacheWalksAndCaches(t *testing.T) {
	// a -[1]-> b -[2]-> c, node a has OutHead=1, node b has OutHead=2 InHead=1.
	reader := &fakeRelReader{rels: map[uint64]store.RelRecord{
		1: {Src: 0, Dst: 1, NextOutOfSrc: store.NoPointer, NextInToDst: store.NoPointer},
		2: {Src: 1, Dst: 2, NextOutOfSrc: store.NoPointer, NextInToDst: store.NoPointer},
	}}
	cache := NewAdjacencyCache(reader)

	out, err := cache.Out(0, 1, store.NoPointer)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, out)

	in, err := cache.In(1, store.NoPointer, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, in)
}

func TestAdjacencyCacheInvalidate(t *testing.T) {
	reader := &fakeRelReader{rels: map[uint64]store.RelRecord{
		1: {NextOutOfSrc: store.NoPointer},
	}}
	cache := NewAdjacencyCache(reader)

	out, err := cache.Out(0, 1, store.NoPointer)
	require.NoError(t, err)
	require.Len(t, out, 1)

	// Mutate the underlying store and confirm the stale cache entry is
	// served until explicitly invalidated.
	reader.rels[2] = store.RelRecord{NextOutOfSrc: store.NoPointer}
	reader.rels[1] = store.RelRecord{NextOutOfSrc: 2}
	stale, err := cache.Out(0, 1, store.NoPointer)
	require.NoError(t, err)
	require.Len(t, stale, 1, "cache should still serve the pre-mutation walk until Invalidate")

	cache.Invalidate(0)
	fresh, err := cache.Out(0, 1, store.NoPointer)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
}

func TestPropIndexSetCreateEqualsDrop(t *testing.T) {
	set := NewPropIndexSet()
	key := PropKey{Label: 1, Key: 5}
	set.Create(key)

	set.OnPropertySet(1, 5, 10, value.Null, value.Int(30))
	set.OnPropertySet(1, 5, 11, value.Null, value.Int(40))
	set.OnPropertySet(1, 5, 12, value.Null, value.Int(30))

	bm, ok := set.Equals(1, 5, value.Int(30))
	require.True(t, ok)
	require.True(t, bm.Contains(10))
	require.True(t, bm.Contains(12))
	require.False(t, bm.Contains(11))

	// Update 10's age from 30 to 40: must move buckets.
	set.OnPropertySet(1, 5, 10, value.Int(30), value.Int(40))
	bm30, _ := set.Equals(1, 5, value.Int(30))
	require.False(t, bm30.Contains(10))
	bm40, _ := set.Equals(1, 5, value.Int(40))
	require.True(t, bm40.Contains(10))

	set.Drop(key)
	_, ok = set.Equals(1, 5, value.Int(40))
	require.False(t, ok)
}

func TestPropIndexSetEqualsWithoutIndexReturnsFalse(t *testing.T) {
	set := NewPropIndexSet()
	_, ok := set.Equals(1, 5, value.Int(1))
	require.False(t, ok)
}

func TestPropIndexSetOnPropertyRemoved(t *testing.T) {
	set := NewPropIndexSet()
	key := PropKey{Label: 1, Key: 5}
	set.Create(key)
	set.OnPropertySet(1, 5, 10, value.Null, value.Str("alice"))

	set.OnPropertyRemoved(1, 5, 10, value.Str("alice"))
	bm, ok := set.Equals(1, 5, value.Str("alice"))
	require.True(t, ok)
	require.False(t, bm.Contains(10))
}

func TestPropIndexSetListReportsRegisteredKeys(t *testing.T) {
	set := NewPropIndexSet()
	set.Create(PropKey{Label: 1, Key: 5})
	set.Create(PropKey{Label: 2, Key: 6})
	keys := set.List()
	require.Len(t, keys, 2)
}
