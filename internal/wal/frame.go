// Package wal implements component C3: the write-ahead log. Every
// mutation is appended as a length-prefixed, CRC-checked frame before it
// is applied to the record stores, and the log is replayed forward on
// startup to restore committed state (spec section 4, 6).
//
// The frame format (length | type | tx_id | epoch | payload | crc32) is
// grounded on the teacher's WAL checksum discipline (pkg/mddb/wal.go,
// internal/store/wal.go): CRC32 Castagnoli over the frame body, written
// so a torn write during a crash is detectable and truncatable rather
// than silently accepted.
package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// EntryType identifies the kind of mutation (or control marker) a frame
// records.
type EntryType uint8

const (
	EntryBegin EntryType = iota + 1
	EntryNodeCreate
	EntryNodeDelete
	EntryNodeLabelAdd
	EntryNodeLabelRemove
	EntryRelCreate
	EntryRelDelete
	EntryPropSet
	EntryPropRemove
	EntryCommit
	EntryAbort
	EntryCheckpoint
)

func (t EntryType) String() string {
	switch t {
	case EntryBegin:
		return "BEGIN"
	case EntryNodeCreate:
		return "NODE_CREATE"
	case EntryNodeDelete:
		return "NODE_DELETE"
	case EntryNodeLabelAdd:
		return "NODE_LABEL_ADD"
	case EntryNodeLabelRemove:
		return "NODE_LABEL_REMOVE"
	case EntryRelCreate:
		return "REL_CREATE"
	case EntryRelDelete:
		return "REL_DELETE"
	case EntryPropSet:
		return "PROP_SET"
	case EntryPropRemove:
		return "PROP_REMOVE"
	case EntryCommit:
		return "COMMIT"
	case EntryAbort:
		return "ABORT"
	case EntryCheckpoint:
		return "CHECKPOINT"
	default:
		return "UNKNOWN"
	}
}

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// frameHeaderSize is Length(4) + Type(1) + TxID(8) + Epoch(8).
const frameHeaderSize = 4 + 1 + 8 + 8

// frameTrailerSize is the trailing CRC32 over type+tx_id+epoch+payload.
const frameTrailerSize = 4

// Frame is one WAL record: a single mutation or control marker within a
// transaction.
type Frame struct {
	Type    EntryType
	TxID    uint64
	Epoch   uint64
	Payload []byte
}

// encode serializes f into the on-disk frame format. Length covers
// type+tx_id+epoch+payload, matching what the CRC is computed over.
func (f Frame) encode() []byte {
	body := make([]byte, 1+8+8+len(f.Payload))
	body[0] = byte(f.Type)
	binary.LittleEndian.PutUint64(body[1:9], f.TxID)
	binary.LittleEndian.PutUint64(body[9:17], f.Epoch)
	copy(body[17:], f.Payload)

	buf := make([]byte, 4+len(body)+frameTrailerSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(body)))
	copy(buf[4:], body)
	crc := crc32.Checksum(body, crcTable)
	binary.LittleEndian.PutUint32(buf[4+len(body):], crc)
	return buf
}

// decodeFrame parses one frame starting at the head of buf, returning the
// frame, the number of bytes consumed, and whether the frame's CRC is
// valid. A false ok with a non-zero consumed count means the frame was
// structurally readable but corrupt (truncate here); a false ok with
// zero consumed means buf doesn't even hold a complete frame yet.
func decodeFrame(buf []byte) (f Frame, consumed int, ok bool) {
	if len(buf) < 4 {
		return Frame{}, 0, false
	}
	bodyLen := binary.LittleEndian.Uint32(buf[0:4])
	total := 4 + int(bodyLen) + frameTrailerSize
	if len(buf) < total {
		return Frame{}, 0, false
	}
	body := buf[4 : 4+bodyLen]
	if len(body) < 17 {
		return Frame{}, total, false
	}
	wantCRC := binary.LittleEndian.Uint32(buf[4+bodyLen : total])
	if crc32.Checksum(body, crcTable) != wantCRC {
		return Frame{}, total, false
	}

	f = Frame{
		Type:  EntryType(body[0]),
		TxID:  binary.LittleEndian.Uint64(body[1:9]),
		Epoch: binary.LittleEndian.Uint64(body[9:17]),
	}
	if len(body) > 17 {
		f.Payload = append([]byte(nil), body[17:]...)
	}
	return f, total, true
}

// validateHeader reports a gross structural error (bodyLen implausibly
// large) useful for bounding how far recovery should even attempt to
// read before giving up.
func validateHeader(buf []byte, maxFrameSize int) error {
	if len(buf) < 4 {
		return fmt.Errorf("short frame header")
	}
	bodyLen := binary.LittleEndian.Uint32(buf[0:4])
	if int(bodyLen) > maxFrameSize {
		return fmt.Errorf("implausible frame length %d", bodyLen)
	}
	return nil
}
