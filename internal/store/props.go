package store

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/graphdb-core/graphdb/internal/value"
)

// Property value kinds persisted in a property record (spec section 3).
const (
	vkNull uint8 = iota
	vkBool
	vkInt
	vkFloat
	vkShortString
	vkLongString
	vkList
	vkMap
	vkTombstone // marks an older version of a key as deleted (invariant 4)
)

// shortStringLimit is the inline/offset threshold: strings at or under
// this length are stored inline in the property record; longer strings
// are interned in strings.store and referenced by offset.
const shortStringLimit = 23

// propRecordHeaderSize is KeyID(4) + ValueKind(1) + PayloadLen(4) + NextPtr(8).
const propRecordHeaderSize = 4 + 1 + 4 + 8

// PropStore is the append-only arena backing props.store.
type PropStore struct {
	arena   *arena
	strings *StringStore
}

func OpenPropStore(dir string, pageSize int, strings *StringStore) (*PropStore, error) {
	a, err := openArena(filepath.Join(dir, "props.store"), pageSize)
	if err != nil {
		return nil, err
	}
	return &PropStore{arena: a, strings: strings}, nil
}

func (p *PropStore) Close() error { return p.arena.close() }
func (p *PropStore) Sync() error  { return p.arena.sync() }

// AppendProperty writes a new property record at the end of the arena
// with the given key/value, chaining it ahead of chainHead, and returns
// the new chain head. Existing records are never rewritten (spec section
// 4.2): the chain is a reverse-chronological singly-linked list, so
// ReadChain resolves invariant 4 (duplicate keys: newest wins) by
// stopping at the first occurrence of each key while walking from head.
func (p *PropStore) AppendProperty(chainHead uint64, keyID uint32, v value.Value) (uint64, error) {
	kind, payload, err := p.encodeValue(v)
	if err != nil {
		return 0, err
	}
	return p.appendRecord(chainHead, keyID, kind, payload)
}

// RemoveProperty appends a tombstone for keyID, shadowing any earlier
// value for that key when the chain is read.
func (p *PropStore) RemoveProperty(chainHead uint64, keyID uint32) (uint64, error) {
	return p.appendRecord(chainHead, keyID, vkTombstone, nil)
}

// AppendRawProperty appends a record whose kind+payload were already
// encoded (e.g. recovered from a WAL PROP_SET frame), bypassing
// encodeValue so replay reproduces the exact bytes originally written.
func (p *PropStore) AppendRawProperty(chainHead uint64, keyID uint32, kind uint8, payload []byte) (uint64, error) {
	return p.appendRecord(chainHead, keyID, kind, payload)
}

func (p *PropStore) appendRecord(chainHead uint64, keyID uint32, kind uint8, payload []byte) (uint64, error) {
	buf := make([]byte, propRecordHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], keyID)
	buf[4] = kind
	binary.LittleEndian.PutUint32(buf[5:9], uint32(len(payload)))
	binary.LittleEndian.PutUint64(buf[9:17], chainHead)
	copy(buf[17:], payload)

	offset, err := p.arena.append(buf)
	if err != nil {
		return 0, fmt.Errorf("append property record: %w", err)
	}
	return uint64(offset), nil
}

// ReadChain materializes every live (non-tombstoned) key in the chain
// rooted at head, newest version per key.
func (p *PropStore) ReadChain(head uint64) (map[uint32]value.Value, error) {
	out := make(map[uint32]value.Value)
	seen := make(map[uint32]bool)

	ptr := head
	for ptr != NoPointer {
		keyID, kind, payload, next, err := p.readRecord(ptr)
		if err != nil {
			return nil, err
		}
		if !seen[keyID] {
			seen[keyID] = true
			if kind != vkTombstone {
				v, err := p.decodeValue(kind, payload)
				if err != nil {
					return nil, err
				}
				out[keyID] = v
			}
		}
		ptr = next
	}
	return out, nil
}

func (p *PropStore) readRecord(offset uint64) (keyID uint32, kind uint8, payload []byte, next uint64, err error) {
	header, err := p.arena.read(int64(offset), propRecordHeaderSize)
	if err != nil {
		return 0, 0, nil, 0, err
	}
	keyID = binary.LittleEndian.Uint32(header[0:4])
	kind = header[4]
	payloadLen := binary.LittleEndian.Uint32(header[5:9])
	next = binary.LittleEndian.Uint64(header[9:17])

	if payloadLen == 0 {
		return keyID, kind, nil, next, nil
	}
	payload, err = p.arena.read(int64(offset)+propRecordHeaderSize, int(payloadLen))
	if err != nil {
		return 0, 0, nil, 0, err
	}
	return keyID, kind, payload, next, nil
}

// EncodeValue exposes the on-disk kind+payload encoding for a value,
// used by callers (the executor's mutation operators) that must build a
// WAL payload identical to what AppendProperty would persist.
func (p *PropStore) EncodeValue(v value.Value) (uint8, []byte, error) {
	return p.encodeValue(v)
}

func (p *PropStore) encodeValue(v value.Value) (uint8, []byte, error) {
	switch v.Kind() {
	case value.KindNull:
		return vkNull, nil, nil
	case value.KindBool:
		b := byte(0)
		if v.Bool() {
			b = 1
		}
		return vkBool, []byte{b}, nil
	case value.KindInt:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v.Int()))
		return vkInt, buf, nil
	case value.KindFloat:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, floatBits(v.Float()))
		return vkFloat, buf, nil
	case value.KindStr:
		s := v.Str()
		if len(s) <= shortStringLimit {
			return vkShortString, []byte(s), nil
		}
		offset, err := p.strings.InternString([]byte(s))
		if err != nil {
			return 0, nil, fmt.Errorf("intern long string: %w", err)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, offset)
		return vkLongString, buf, nil
	case value.KindList:
		payload, err := encodeListPayload(v.List())
		return vkList, payload, err
	case value.KindMap:
		payload, err := encodeMapPayload(v.Map())
		return vkMap, payload, err
	default:
		return 0, nil, fmt.Errorf("property values cannot hold a %s", v.Kind())
	}
}

func (p *PropStore) decodeValue(kind uint8, payload []byte) (value.Value, error) {
	switch kind {
	case vkNull:
		return value.Null, nil
	case vkBool:
		return value.Bool(payload[0] != 0), nil
	case vkInt:
		return value.Int(int64(binary.LittleEndian.Uint64(payload))), nil
	case vkFloat:
		return value.Float(floatFromBits(binary.LittleEndian.Uint64(payload))), nil
	case vkShortString:
		return value.Str(string(payload)), nil
	case vkLongString:
		offset := binary.LittleEndian.Uint64(payload)
		s, err := p.strings.ReadString(offset)
		if err != nil {
			return value.Null, fmt.Errorf("resolve long string: %w", err)
		}
		return value.Str(string(s)), nil
	case vkList:
		return decodeListPayload(payload)
	case vkMap:
		return decodeMapPayload(payload)
	default:
		return value.Null, fmt.Errorf("unknown property value kind %d", kind)
	}
}
