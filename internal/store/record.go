// Package store implements component C2: fixed-size node and relationship
// records accessed by offset, and append-only property/string arenas,
// memory-mapped with per-page checksumming (spec section 4.2, 6).
package store

import "encoding/binary"

// NoPointer is the sentinel value for an absent list/chain pointer,
// reusing the all-ones convention the teacher's slotcache uses for its
// bucket tombstone sentinel (pkg/slotcache/format.go: bucketTombstone).
const NoPointer = ^uint64(0)

// EpochInfinite marks a record that has never been deleted
// (deleted_epoch = infinity per spec section 3 lifecycle rules).
const EpochInfinite = ^uint32(0)

// NodeRecordSize is the on-disk size of one node slot. Spec section 6
// gives a "32 B target" but then lists four uint64 pointer fields plus
// two uint32 epoch fields, which sum to 40 bytes; this implementation
// keeps the field widths as specified (see DESIGN.md) rather than
// truncating epochs or pointers to hit the target literally.
const NodeRecordSize = 40

// NodeRecord is the fixed-size on-disk representation of one node
// (spec section 3, 6).
type NodeRecord struct {
	LabelBits    uint64 // bit i set => label i present (labels beyond 63 only in index.LabelIndex)
	OutHead      uint64 // head of outgoing relationship list, or NoPointer
	InHead       uint64 // head of incoming relationship list, or NoPointer
	PropHead     uint64 // head of property chain (byte offset into props.store), or NoPointer
	CreatedEpoch uint32
	DeletedEpoch uint32
}

// Visible reports whether the record is visible to a reader pinned at
// snapshot epoch e, per spec invariant 2: created_epoch <= e < deleted_epoch.
func (r NodeRecord) Visible(snapshot uint64) bool {
	return uint64(r.CreatedEpoch) <= snapshot && snapshot < uint64(r.DeletedEpoch)
}

// HasLabel reports whether bit id is set, for ids < 64. Labels >= 64 are
// tracked only in the in-memory index.LabelIndex, not in this bitmap.
func (r NodeRecord) HasLabel(id uint32) bool {
	if id >= 64 {
		return false
	}
	return r.LabelBits&(1<<uint(id)) != 0
}

func (r NodeRecord) encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], r.LabelBits)
	binary.LittleEndian.PutUint64(buf[8:16], r.OutHead)
	binary.LittleEndian.PutUint64(buf[16:24], r.InHead)
	binary.LittleEndian.PutUint64(buf[24:32], r.PropHead)
	binary.LittleEndian.PutUint32(buf[32:36], r.CreatedEpoch)
	binary.LittleEndian.PutUint32(buf[36:40], r.DeletedEpoch)
}

func decodeNode(buf []byte) NodeRecord {
	return NodeRecord{
		LabelBits:    binary.LittleEndian.Uint64(buf[0:8]),
		OutHead:      binary.LittleEndian.Uint64(buf[8:16]),
		InHead:       binary.LittleEndian.Uint64(buf[16:24]),
		PropHead:     binary.LittleEndian.Uint64(buf[24:32]),
		CreatedEpoch: binary.LittleEndian.Uint32(buf[32:36]),
		DeletedEpoch: binary.LittleEndian.Uint32(buf[36:40]),
	}
}

// RelRecordSize is the on-disk size of one relationship slot. Spec
// section 3 requires a true doubly-linked adjacency list (invariant 1:
// "list pointers form a consistent doubly-linked list"), which needs a
// prev pointer in each direction; section 6's compact layout only names
// next_out/next_in. This implementation keeps both next and prev
// pointers per direction (see DESIGN.md) since invariant 1 is tested and
// a next-only list cannot support O(1) unlink from the middle.
const RelRecordSize = 72

// RelRecord is the fixed-size on-disk representation of one relationship.
type RelRecord struct {
	Src          uint64
	Dst          uint64
	NextOutOfSrc uint64 // next link in src's outgoing list, or NoPointer
	PrevOutOfSrc uint64 // prev link in src's outgoing list, or NoPointer
	NextInToDst  uint64 // next link in dst's incoming list, or NoPointer
	PrevInToDst  uint64 // prev link in dst's incoming list, or NoPointer
	PropHead     uint64 // head of property chain, or NoPointer
	TypeID       uint32
	Flags        uint16
	CreatedEpoch uint32
	DeletedEpoch uint32
}

func (r RelRecord) Visible(snapshot uint64) bool {
	return uint64(r.CreatedEpoch) <= snapshot && snapshot < uint64(r.DeletedEpoch)
}

func (r RelRecord) encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], r.Src)
	binary.LittleEndian.PutUint64(buf[8:16], r.Dst)
	binary.LittleEndian.PutUint64(buf[16:24], r.NextOutOfSrc)
	binary.LittleEndian.PutUint64(buf[24:32], r.PrevOutOfSrc)
	binary.LittleEndian.PutUint64(buf[32:40], r.NextInToDst)
	binary.LittleEndian.PutUint64(buf[40:48], r.PrevInToDst)
	binary.LittleEndian.PutUint64(buf[48:56], r.PropHead)
	binary.LittleEndian.PutUint32(buf[56:60], r.TypeID)
	binary.LittleEndian.PutUint16(buf[60:62], r.Flags)
	binary.LittleEndian.PutUint32(buf[62:66], r.CreatedEpoch)
	binary.LittleEndian.PutUint32(buf[66:70], r.DeletedEpoch)
	// buf[70:72] reserved, left zero.
}

func decodeRel(buf []byte) RelRecord {
	return RelRecord{
		Src:          binary.LittleEndian.Uint64(buf[0:8]),
		Dst:          binary.LittleEndian.Uint64(buf[8:16]),
		NextOutOfSrc: binary.LittleEndian.Uint64(buf[16:24]),
		PrevOutOfSrc: binary.LittleEndian.Uint64(buf[24:32]),
		NextInToDst:  binary.LittleEndian.Uint64(buf[32:40]),
		PrevInToDst:  binary.LittleEndian.Uint64(buf[40:48]),
		PropHead:     binary.LittleEndian.Uint64(buf[48:56]),
		TypeID:       binary.LittleEndian.Uint32(buf[56:60]),
		Flags:        binary.LittleEndian.Uint16(buf[60:62]),
		CreatedEpoch: binary.LittleEndian.Uint32(buf[62:66]),
		DeletedEpoch: binary.LittleEndian.Uint32(buf[66:70]),
	}
}
