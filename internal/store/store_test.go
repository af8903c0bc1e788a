package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb-core/graphdb/internal/catalog"
	"github.com/graphdb-core/graphdb/internal/value"
)

func openCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Open(context.Background(), t.TempDir()+"/catalog.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func TestNodeStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	ns, err := OpenNodeStore(t.TempDir(), DefaultPageSize, cat)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ns.Close() })

	id, err := ns.AllocNode(ctx)
	require.NoError(t, err)

	rec := NodeRecord{
		LabelBits:    1 << 3,
		OutHead:      NoPointer,
		InHead:       NoPointer,
		PropHead:     NoPointer,
		CreatedEpoch: 7,
		DeletedEpoch: EpochInfinite,
	}
	require.NoError(t, ns.WriteNode(id, rec))

	got, err := ns.ReadNode(id)
	require.NoError(t, err)
	require.Equal(t, rec, got)
	require.True(t, got.Visible(7))
	require.False(t, got.Visible(6))
	require.True(t, got.HasLabel(3))
	require.False(t, got.HasLabel(4))
}

func TestNodeStoreAllocReusesFreedIDs(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	ns, err := OpenNodeStore(t.TempDir(), DefaultPageSize, cat)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ns.Close() })

	a, err := ns.AllocNode(ctx)
	require.NoError(t, err)
	b, err := ns.AllocNode(ctx)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	ns.FreeNode(a)
	c, err := ns.AllocNode(ctx)
	require.NoError(t, err)
	require.Equal(t, a, c)
}

func TestNodeStoreDetectsPageCorruption(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	ns, err := OpenNodeStore(t.TempDir(), DefaultPageSize, cat)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ns.Close() })

	id, err := ns.AllocNode(ctx)
	require.NoError(t, err)
	require.NoError(t, ns.WriteNode(id, NodeRecord{DeletedEpoch: EpochInfinite}))

	loc := locateSlot(id, NodeRecordSize, DefaultPageSize)
	require.NoError(t, ns.file.withWrite(func(data []byte) error {
		data[loc.fileOffset] ^= 0xFF
		return nil
	}))

	_, err = ns.ReadNode(id)
	require.Error(t, err)
}

func TestRelStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	rs, err := OpenRelStore(t.TempDir(), DefaultPageSize, cat)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	id, err := rs.AllocRel(ctx)
	require.NoError(t, err)

	rec := RelRecord{
		Src:          1,
		Dst:          2,
		NextOutOfSrc: NoPointer,
		PrevOutOfSrc: NoPointer,
		NextInToDst:  NoPointer,
		PrevInToDst:  NoPointer,
		PropHead:     NoPointer,
		TypeID:       5,
		CreatedEpoch: 3,
		DeletedEpoch: EpochInfinite,
	}
	require.NoError(t, rs.WriteRel(id, rec))

	got, err := rs.ReadRel(id)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestPropStoreChainNewestWins(t *testing.T) {
	strs, err := OpenStringStore(t.TempDir(), DefaultPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = strs.Close() })

	props, err := OpenPropStore(t.TempDir(), DefaultPageSize, strs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = props.Close() })

	head := uint64(NoPointer)
	head, err = props.AppendProperty(head, 1, value.Int(10))
	require.NoError(t, err)
	head, err = props.AppendProperty(head, 2, value.Str("hello"))
	require.NoError(t, err)
	head, err = props.AppendProperty(head, 1, value.Int(99))
	require.NoError(t, err)

	chain, err := props.ReadChain(head)
	require.NoError(t, err)
	require.Equal(t, int64(99), chain[1].Int())
	require.Equal(t, "hello", chain[2].Str())
}

func TestPropStoreTombstoneHidesKey(t *testing.T) {
	strs, err := OpenStringStore(t.TempDir(), DefaultPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = strs.Close() })

	props, err := OpenPropStore(t.TempDir(), DefaultPageSize, strs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = props.Close() })

	head := uint64(NoPointer)
	head, err = props.AppendProperty(head, 1, value.Int(10))
	require.NoError(t, err)
	head, err = props.RemoveProperty(head, 1)
	require.NoError(t, err)

	chain, err := props.ReadChain(head)
	require.NoError(t, err)
	_, ok := chain[1]
	require.False(t, ok)
}

func TestPropStoreLongStringIsInterned(t *testing.T) {
	strs, err := OpenStringStore(t.TempDir(), DefaultPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = strs.Close() })

	props, err := OpenPropStore(t.TempDir(), DefaultPageSize, strs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = props.Close() })

	long := "this string is deliberately longer than the inline short-string limit of this store"
	head, err := props.AppendProperty(NoPointer, 9, value.Str(long))
	require.NoError(t, err)

	chain, err := props.ReadChain(head)
	require.NoError(t, err)
	require.Equal(t, long, chain[9].Str())
}

func TestPropStoreListAndMapRoundtrip(t *testing.T) {
	strs, err := OpenStringStore(t.TempDir(), DefaultPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = strs.Close() })

	props, err := OpenPropStore(t.TempDir(), DefaultPageSize, strs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = props.Close() })

	list := value.List([]value.Value{value.Int(1), value.Str("two"), value.Bool(true)})
	head, err := props.AppendProperty(NoPointer, 1, list)
	require.NoError(t, err)

	m := value.Map(map[string]value.Value{"a": value.Int(1), "b": value.Str("x")})
	head, err = props.AppendProperty(head, 2, m)
	require.NoError(t, err)

	chain, err := props.ReadChain(head)
	require.NoError(t, err)
	require.Equal(t, list.List(), chain[1].List())
	require.Equal(t, m.Map(), chain[2].Map())
}

func TestStringStoreRoundtrip(t *testing.T) {
	ss, err := OpenStringStore(t.TempDir(), DefaultPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	off1, err := ss.InternString([]byte("first"))
	require.NoError(t, err)
	off2, err := ss.InternString([]byte("second, a fair bit longer than first"))
	require.NoError(t, err)

	got1, err := ss.ReadString(off1)
	require.NoError(t, err)
	require.Equal(t, "first", string(got1))

	got2, err := ss.ReadString(off2)
	require.NoError(t, err)
	require.Equal(t, "second, a fair bit longer than first", string(got2))
}

func TestStringStoreDoesNotDeduplicate(t *testing.T) {
	ss, err := OpenStringStore(t.TempDir(), DefaultPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	off1, err := ss.InternString([]byte("repeat me"))
	require.NoError(t, err)
	off2, err := ss.InternString([]byte("repeat me"))
	require.NoError(t, err)
	require.NotEqual(t, off1, off2)
}

func TestStringStoreDetectsCRCMismatch(t *testing.T) {
	ss, err := OpenStringStore(t.TempDir(), DefaultPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	off, err := ss.InternString([]byte("tamper target"))
	require.NoError(t, err)

	require.NoError(t, ss.arena.file.withWrite(func(data []byte) error {
		data[int(off)+stringHeaderSize] ^= 0xFF
		firstPage := int(off) / ss.arena.pageSize * ss.arena.pageSize
		stampPage(data, firstPage, ss.arena.pageSize)
		return nil
	}))

	_, err = ss.ReadString(off)
	require.Error(t, err)
}

func TestArenaRecoversTailAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ss, err := OpenStringStore(dir, DefaultPageSize)
	require.NoError(t, err)

	off1, err := ss.InternString([]byte("persisted across reopen"))
	require.NoError(t, err)
	require.NoError(t, ss.Sync())
	require.NoError(t, ss.Close())

	reopened, err := OpenStringStore(dir, DefaultPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.ReadString(off1)
	require.NoError(t, err)
	require.Equal(t, "persisted across reopen", string(got))

	off2, err := reopened.InternString([]byte("written after reopen"))
	require.NoError(t, err)
	require.Greater(t, off2, off1)
}

func TestGrowthByDoublingPreservesExistingData(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	ns, err := OpenNodeStore(t.TempDir(), DefaultPageSize, cat)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ns.Close() })

	first, err := ns.AllocNode(ctx)
	require.NoError(t, err)
	require.NoError(t, ns.WriteNode(first, NodeRecord{LabelBits: 0xABCD, DeletedEpoch: EpochInfinite}))

	var last uint64
	for i := 0; i < 4096; i++ {
		last, err = ns.AllocNode(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, ns.WriteNode(last, NodeRecord{LabelBits: 0x1234, DeletedEpoch: EpochInfinite}))

	got, err := ns.ReadNode(first)
	require.NoError(t, err)
	require.Equal(t, uint64(0xABCD), got.LabelBits)
}
