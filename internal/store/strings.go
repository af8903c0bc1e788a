package store

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"path/filepath"

	"github.com/graphdb-core/graphdb/internal/errs"
)

// stringHeaderSize is Length(4) + CRC32(4) preceding each interned
// string's bytes (spec section 3).
const stringHeaderSize = 4 + 4

// StringStore is the append-only arena backing strings.store. Interning
// is content-addressed by offset only: it does not deduplicate equal
// strings (spec section 4.2 calls that out explicitly as a later
// optimization), so the same string value interned twice occupies two
// slots.
type StringStore struct {
	arena *arena
}

func OpenStringStore(dir string, pageSize int) (*StringStore, error) {
	a, err := openArena(filepath.Join(dir, "strings.store"), pageSize)
	if err != nil {
		return nil, err
	}
	return &StringStore{arena: a}, nil
}

func (s *StringStore) Close() error { return s.arena.close() }
func (s *StringStore) Sync() error  { return s.arena.sync() }

// InternString appends b to the arena and returns its offset.
func (s *StringStore) InternString(b []byte) (uint64, error) {
	buf := make([]byte, stringHeaderSize+len(b))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(b)))
	binary.LittleEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(b))
	copy(buf[stringHeaderSize:], b)

	offset, err := s.arena.append(buf)
	if err != nil {
		return 0, fmt.Errorf("intern string: %w", err)
	}
	return uint64(offset), nil
}

// ReadString reads the string at offset, verifying its CRC32 in
// addition to the page-level checksum the arena already checks.
func (s *StringStore) ReadString(offset uint64) ([]byte, error) {
	header, err := s.arena.read(int64(offset), stringHeaderSize)
	if err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[0:4])
	wantCRC := binary.LittleEndian.Uint32(header[4:8])

	b, err := s.arena.read(int64(offset)+stringHeaderSize, int(length))
	if err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(b) != wantCRC {
		return nil, fmt.Errorf("%w: string at offset %d fails CRC32", errs.ErrStorageCorrupt, offset)
	}
	return b, nil
}
