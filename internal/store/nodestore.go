package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/graphdb-core/graphdb/internal/errs"
)

// HighWaterSource supplies and persists the node/relationship high-water
// marks the Catalog owns (spec section 4.2: alloc falls back to the
// catalog's high-water mark once the free list is exhausted).
type HighWaterSource interface {
	NodeHighWaterMark(ctx context.Context) (uint64, error)
	SetNodeHighWaterMark(ctx context.Context, v uint64) error
	RelHighWaterMark(ctx context.Context) (uint64, error)
	SetRelHighWaterMark(ctx context.Context, v uint64) error
}

// NodeStore is the fixed-slot array backing nodes.store.
type NodeStore struct {
	mu       sync.Mutex
	file     *mmapFile
	pageSize int
	hw       HighWaterSource
	free     []uint64
}

// OpenNodeStore opens or creates dir/nodes.store.
func OpenNodeStore(dir string, pageSize int, hw HighWaterSource) (*NodeStore, error) {
	path := filepath.Join(dir, "nodes.store")
	initial := bytesForSlots(1024, NodeRecordSize, pageSize)
	f, err := openMmapFile(path, initial, pageSize)
	if err != nil {
		return nil, err
	}
	return &NodeStore{file: f, pageSize: pageSize, hw: hw}, nil
}

func (s *NodeStore) Close() error { return s.file.close() }

// AllocNode pops a free id if available, otherwise bumps the catalog
// high-water mark (spec section 4.2).
func (s *NodeStore) AllocNode(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.free); n > 0 {
		id := s.free[n-1]
		s.free = s.free[:n-1]
		return id, nil
	}

	hw, err := s.hw.NodeHighWaterMark(ctx)
	if err != nil {
		return 0, fmt.Errorf("read node high water mark: %w", err)
	}
	id := hw
	if err := s.hw.SetNodeHighWaterMark(ctx, hw+1); err != nil {
		return 0, fmt.Errorf("bump node high water mark: %w", err)
	}
	return id, nil
}

// FreeNode pushes id back onto the free list. Called by GC once no
// snapshot can still observe the deleted version (spec section 4.4).
func (s *NodeStore) FreeNode(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.free = append(s.free, id)
}

// ReadNode reads the slot for id, verifying its page checksum first.
func (s *NodeStore) ReadNode(id uint64) (NodeRecord, error) {
	loc := locateSlot(id, NodeRecordSize, s.pageSize)
	if err := s.file.ensure(int64(loc.pageStart + s.pageSize)); err != nil {
		return NodeRecord{}, err
	}

	var rec NodeRecord
	err := s.file.withRead(func(data []byte) error {
		if !verifyPage(data, loc.pageStart, s.pageSize) {
			return fmt.Errorf("%w: node page at offset %d", errs.ErrStorageCorrupt, loc.pageStart)
		}
		rec = decodeNode(data[loc.fileOffset : loc.fileOffset+NodeRecordSize])
		return nil
	})
	return rec, err
}

// WriteNode writes rec into slot id and restamps the owning page's
// checksum. Writer-only; callers must already hold the engine's single
// writer lock (spec section 4.2, 5).
func (s *NodeStore) WriteNode(id uint64, rec NodeRecord) error {
	loc := locateSlot(id, NodeRecordSize, s.pageSize)
	if err := s.file.ensure(int64(loc.pageStart + s.pageSize)); err != nil {
		return err
	}
	return s.file.withWrite(func(data []byte) error {
		rec.encode(data[loc.fileOffset : loc.fileOffset+NodeRecordSize])
		stampPage(data, loc.pageStart, s.pageSize)
		return nil
	})
}

// Sync flushes the node store to disk.
func (s *NodeStore) Sync() error { return s.file.sync() }
