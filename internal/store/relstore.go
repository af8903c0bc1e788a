package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/graphdb-core/graphdb/internal/errs"
)

// RelStore is the fixed-slot array backing rels.store.
type RelStore struct {
	mu       sync.Mutex
	file     *mmapFile
	pageSize int
	hw       HighWaterSource
	free     []uint64
}

func OpenRelStore(dir string, pageSize int, hw HighWaterSource) (*RelStore, error) {
	path := filepath.Join(dir, "rels.store")
	initial := bytesForSlots(1024, RelRecordSize, pageSize)
	f, err := openMmapFile(path, initial, pageSize)
	if err != nil {
		return nil, err
	}
	return &RelStore{file: f, pageSize: pageSize, hw: hw}, nil
}

func (s *RelStore) Close() error { return s.file.close() }

func (s *RelStore) AllocRel(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.free); n > 0 {
		id := s.free[n-1]
		s.free = s.free[:n-1]
		return id, nil
	}

	hw, err := s.hw.RelHighWaterMark(ctx)
	if err != nil {
		return 0, fmt.Errorf("read rel high water mark: %w", err)
	}
	id := hw
	if err := s.hw.SetRelHighWaterMark(ctx, hw+1); err != nil {
		return 0, fmt.Errorf("bump rel high water mark: %w", err)
	}
	return id, nil
}

func (s *RelStore) FreeRel(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.free = append(s.free, id)
}

func (s *RelStore) ReadRel(id uint64) (RelRecord, error) {
	loc := locateSlot(id, RelRecordSize, s.pageSize)
	if err := s.file.ensure(int64(loc.pageStart + s.pageSize)); err != nil {
		return RelRecord{}, err
	}

	var rec RelRecord
	err := s.file.withRead(func(data []byte) error {
		if !verifyPage(data, loc.pageStart, s.pageSize) {
			return fmt.Errorf("%w: rel page at offset %d", errs.ErrStorageCorrupt, loc.pageStart)
		}
		rec = decodeRel(data[loc.fileOffset : loc.fileOffset+RelRecordSize])
		return nil
	})
	return rec, err
}

func (s *RelStore) WriteRel(id uint64, rec RelRecord) error {
	loc := locateSlot(id, RelRecordSize, s.pageSize)
	if err := s.file.ensure(int64(loc.pageStart + s.pageSize)); err != nil {
		return err
	}
	return s.file.withWrite(func(data []byte) error {
		rec.encode(data[loc.fileOffset : loc.fileOffset+RelRecordSize])
		stampPage(data, loc.pageStart, s.pageSize)
		return nil
	})
}

func (s *RelStore) Sync() error { return s.file.sync() }
