package wal

import "encoding/binary"

// NodeIDPayload carries the node id affected, used for both NODE_CREATE
// and NODE_DELETE frames.
type NodeIDPayload struct {
	NodeID uint64
}

func (p NodeIDPayload) encode() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, p.NodeID)
	return buf
}

func decodeNodeIDPayload(b []byte) NodeIDPayload {
	return NodeIDPayload{NodeID: binary.LittleEndian.Uint64(b)}
}

// Encode exposes the wire encoding to callers outside package wal (the
// executor builds frames without going through the WAL's own write path).
func (p NodeIDPayload) Encode() []byte { return p.encode() }

// DecodeNodeIDPayload exposes the wire decoding to callers outside package
// wal (recovery replay reconstructs mutations from raw frame payloads).
func DecodeNodeIDPayload(b []byte) NodeIDPayload { return decodeNodeIDPayload(b) }

// NodeLabelPayload carries a node id and label id for add/remove.
type NodeLabelPayload struct {
	NodeID  uint64
	LabelID uint32
}

func (p NodeLabelPayload) encode() []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint64(buf[0:8], p.NodeID)
	binary.LittleEndian.PutUint32(buf[8:12], p.LabelID)
	return buf
}

func decodeNodeLabelPayload(b []byte) NodeLabelPayload {
	return NodeLabelPayload{
		NodeID:  binary.LittleEndian.Uint64(b[0:8]),
		LabelID: binary.LittleEndian.Uint32(b[8:12]),
	}
}

// Encode exposes the wire encoding to callers outside package wal.
func (p NodeLabelPayload) Encode() []byte { return p.encode() }

// DecodeNodeLabelPayload exposes the wire decoding to callers outside
// package wal.
func DecodeNodeLabelPayload(b []byte) NodeLabelPayload { return decodeNodeLabelPayload(b) }

// RelCreatePayload carries everything needed to reconstruct a relationship
// creation without consulting the store (the WAL must be self-contained).
type RelCreatePayload struct {
	RelID  uint64
	Src    uint64
	Dst    uint64
	TypeID uint32
}

func (p RelCreatePayload) encode() []byte {
	buf := make([]byte, 28)
	binary.LittleEndian.PutUint64(buf[0:8], p.RelID)
	binary.LittleEndian.PutUint64(buf[8:16], p.Src)
	binary.LittleEndian.PutUint64(buf[16:24], p.Dst)
	binary.LittleEndian.PutUint32(buf[24:28], p.TypeID)
	return buf
}

func decodeRelCreatePayload(b []byte) RelCreatePayload {
	return RelCreatePayload{
		RelID:  binary.LittleEndian.Uint64(b[0:8]),
		Src:    binary.LittleEndian.Uint64(b[8:16]),
		Dst:    binary.LittleEndian.Uint64(b[16:24]),
		TypeID: binary.LittleEndian.Uint32(b[24:28]),
	}
}

// Encode exposes the wire encoding to callers outside package wal.
func (p RelCreatePayload) Encode() []byte { return p.encode() }

// DecodeRelCreatePayload exposes the wire decoding to callers outside
// package wal.
func DecodeRelCreatePayload(b []byte) RelCreatePayload { return decodeRelCreatePayload(b) }

// RelIDPayload carries the relationship id affected (for REL_DELETE).
type RelIDPayload struct {
	RelID uint64
}

func (p RelIDPayload) encode() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, p.RelID)
	return buf
}

func decodeRelIDPayload(b []byte) RelIDPayload {
	return RelIDPayload{RelID: binary.LittleEndian.Uint64(b)}
}

// Encode exposes the wire encoding to callers outside package wal.
func (p RelIDPayload) Encode() []byte { return p.encode() }

// DecodeRelIDPayload exposes the wire decoding to callers outside package
// wal.
func DecodeRelIDPayload(b []byte) RelIDPayload { return decodeRelIDPayload(b) }

// PropOwnerKind distinguishes whether a property mutation targets a node
// or a relationship.
type PropOwnerKind uint8

const (
	PropOwnerNode PropOwnerKind = iota
	PropOwnerRel
)

// PropSetPayload carries a raw, pre-encoded property value (the same
// kind+bytes format store.PropStore uses) so replay doesn't need to
// re-derive the string/list/map encoding.
type PropSetPayload struct {
	OwnerKind  PropOwnerKind
	OwnerID    uint64
	KeyID      uint32
	ValueKind  uint8
	ValueBytes []byte
}

func (p PropSetPayload) encode() []byte {
	buf := make([]byte, 1+8+4+1+4+len(p.ValueBytes))
	off := 0
	buf[off] = byte(p.OwnerKind)
	off++
	binary.LittleEndian.PutUint64(buf[off:off+8], p.OwnerID)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:off+4], p.KeyID)
	off += 4
	buf[off] = p.ValueKind
	off++
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(p.ValueBytes)))
	off += 4
	copy(buf[off:], p.ValueBytes)
	return buf
}

func decodePropSetPayload(b []byte) PropSetPayload {
	off := 0
	kind := PropOwnerKind(b[off])
	off++
	ownerID := binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	keyID := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	valueKind := b[off]
	off++
	vlen := int(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	return PropSetPayload{
		OwnerKind:  kind,
		OwnerID:    ownerID,
		KeyID:      keyID,
		ValueKind:  valueKind,
		ValueBytes: append([]byte(nil), b[off:off+vlen]...),
	}
}

// Encode exposes the wire encoding to callers outside package wal.
func (p PropSetPayload) Encode() []byte { return p.encode() }

// DecodePropSetPayload exposes the wire decoding to callers outside package
// wal.
func DecodePropSetPayload(b []byte) PropSetPayload { return decodePropSetPayload(b) }

// PropRemovePayload identifies the key removed from an owner's chain.
type PropRemovePayload struct {
	OwnerKind PropOwnerKind
	OwnerID   uint64
	KeyID     uint32
}

func (p PropRemovePayload) encode() []byte {
	buf := make([]byte, 1+8+4)
	buf[0] = byte(p.OwnerKind)
	binary.LittleEndian.PutUint64(buf[1:9], p.OwnerID)
	binary.LittleEndian.PutUint32(buf[9:13], p.KeyID)
	return buf
}

func decodePropRemovePayload(b []byte) PropRemovePayload {
	return PropRemovePayload{
		OwnerKind: PropOwnerKind(b[0]),
		OwnerID:   binary.LittleEndian.Uint64(b[1:9]),
		KeyID:     binary.LittleEndian.Uint32(b[9:13]),
	}
}

// Encode exposes the wire encoding to callers outside package wal.
func (p PropRemovePayload) Encode() []byte { return p.encode() }

// DecodePropRemovePayload exposes the wire decoding to callers outside
// package wal.
func DecodePropRemovePayload(b []byte) PropRemovePayload { return decodePropRemovePayload(b) }

// CheckpointPayload marks the epoch through which the record stores are
// known durable. Recover reports the last one it sees as
// RecoveryResult.DurableEpoch; replay does not skip frames by it.
type CheckpointPayload struct {
	DurableEpoch uint64
}

func (p CheckpointPayload) encode() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, p.DurableEpoch)
	return buf
}

func decodeCheckpointPayload(b []byte) CheckpointPayload {
	return CheckpointPayload{DurableEpoch: binary.LittleEndian.Uint64(b)}
}
