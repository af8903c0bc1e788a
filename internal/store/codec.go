package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/graphdb-core/graphdb/internal/value"
)

// floatBits and floatFromBits round-trip a float64 through its IEEE-754
// bit pattern for fixed-width on-disk storage.
func floatBits(f float64) uint64      { return math.Float64bits(f) }
func floatFromBits(b uint64) float64  { return math.Float64frombits(b) }

// encodeListPayload serializes a []value.Value as a property payload:
// a count followed by length-prefixed, self-describing elements. Lists
// and maps may only hold the scalar property kinds (spec section 2:
// properties are "a scalar or a list of scalars"), so nesting here is
// intentionally shallow - it exists to support list-typed properties,
// not arbitrary composite values.
func encodeListPayload(items []value.Value) ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(items)))
	for _, item := range items {
		kind, payload, err := encodeScalar(item)
		if err != nil {
			return nil, fmt.Errorf("encode list element: %w", err)
		}
		elem := make([]byte, 1+4+len(payload))
		elem[0] = kind
		binary.LittleEndian.PutUint32(elem[1:5], uint32(len(payload)))
		copy(elem[5:], payload)
		buf = append(buf, elem...)
	}
	return buf, nil
}

func decodeListPayload(buf []byte) (value.Value, error) {
	if len(buf) < 4 {
		return value.Null, fmt.Errorf("truncated list payload")
	}
	count := binary.LittleEndian.Uint32(buf[0:4])
	items := make([]value.Value, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+5 > len(buf) {
			return value.Null, fmt.Errorf("truncated list element header")
		}
		kind := buf[off]
		length := int(binary.LittleEndian.Uint32(buf[off+1 : off+5]))
		off += 5
		if off+length > len(buf) {
			return value.Null, fmt.Errorf("truncated list element payload")
		}
		v, err := decodeScalar(kind, buf[off:off+length])
		if err != nil {
			return value.Null, err
		}
		items = append(items, v)
		off += length
	}
	return value.List(items), nil
}

// encodeMapPayload serializes a map[string]value.Value the same way as
// a list, with each entry carrying its key alongside the scalar value.
func encodeMapPayload(m map[string]value.Value) ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(m)))
	for k, v := range m {
		kind, payload, err := encodeScalar(v)
		if err != nil {
			return nil, fmt.Errorf("encode map value: %w", err)
		}
		entry := make([]byte, 4+len(k)+1+4+len(payload))
		off := 0
		binary.LittleEndian.PutUint32(entry[off:off+4], uint32(len(k)))
		off += 4
		copy(entry[off:], k)
		off += len(k)
		entry[off] = kind
		off++
		binary.LittleEndian.PutUint32(entry[off:off+4], uint32(len(payload)))
		off += 4
		copy(entry[off:], payload)
		buf = append(buf, entry...)
	}
	return buf, nil
}

func decodeMapPayload(buf []byte) (value.Value, error) {
	if len(buf) < 4 {
		return value.Null, fmt.Errorf("truncated map payload")
	}
	count := binary.LittleEndian.Uint32(buf[0:4])
	out := make(map[string]value.Value, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+4 > len(buf) {
			return value.Null, fmt.Errorf("truncated map key length")
		}
		klen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		if off+klen+5 > len(buf) {
			return value.Null, fmt.Errorf("truncated map key/value header")
		}
		key := string(buf[off : off+klen])
		off += klen
		kind := buf[off]
		vlen := int(binary.LittleEndian.Uint32(buf[off+1 : off+5]))
		off += 5
		if off+vlen > len(buf) {
			return value.Null, fmt.Errorf("truncated map value payload")
		}
		v, err := decodeScalar(kind, buf[off:off+vlen])
		if err != nil {
			return value.Null, err
		}
		out[key] = v
		off += vlen
	}
	return value.Map(out), nil
}

// encodeScalar/decodeScalar handle the non-recursive value kinds legal
// as list/map elements. Long strings are stored inline here rather than
// interned, since list/map payloads are themselves already out-of-line
// in the property arena.
func encodeScalar(v value.Value) (uint8, []byte, error) {
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
		return vkShortString, []byte(v.Str()), nil
	default:
		return 0, nil, fmt.Errorf("list/map elements cannot hold a %s", v.Kind())
	}
}

func decodeScalar(kind uint8, payload []byte) (value.Value, error) {
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
	default:
		return value.Null, fmt.Errorf("unknown scalar kind %d", kind)
	}
}
