package store

import (
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/graphdb-core/graphdb/internal/errs"
)

// mmapFile wraps a growable, memory-mapped file. Growth doubles the file
// size, unmaps, and remaps (spec section 4.2: "readers holding references
// across growth must re-resolve their page", which is why every accessor
// in this package goes through resolve() rather than retaining slices).
//
// Grounded on the teacher's pkg/slotcache mmap handling (syscall.Mmap /
// syscall.Munmap directly, not golang.org/x/sys/unix).
type mmapFile struct {
	mu       sync.RWMutex
	f        *os.File
	data     []byte
	pageSize int
}

func openMmapFile(path string, initialSize int64, pageSize int) (*mmapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	size := info.Size()
	if size == 0 {
		size = initialSize
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("truncate %s: %w", path, err)
		}
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &mmapFile{f: f, data: data, pageSize: pageSize}, nil
}

// size returns the current mapped length.
func (m *mmapFile) size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

// ensure grows the file to at least minSize, doubling each step, if it
// currently maps less. Growth failure is fatal to the operation per spec
// section 4.2.
func (m *mmapFile) ensure(minSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int64(len(m.data)) >= minSize {
		return nil
	}
	newSize := int64(len(m.data))
	if newSize == 0 {
		newSize = int64(m.pageSize)
	}
	for newSize < minSize {
		newSize *= 2
	}

	if err := syscall.Munmap(m.data); err != nil {
		return fmt.Errorf("munmap before grow: %w", err)
	}
	if err := m.f.Truncate(newSize); err != nil {
		return fmt.Errorf("grow file to %d: %w", newSize, err)
	}
	data, err := syscall.Mmap(int(m.f.Fd()), 0, int(newSize), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("remap after grow: %w", err)
	}
	m.data = data
	return nil
}

// withRead calls fn with the current mapping held for read.
func (m *mmapFile) withRead(fn func(data []byte) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.data)
}

// withWrite calls fn with the current mapping held for write.
func (m *mmapFile) withWrite(fn func(data []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

// sync flushes dirty pages to disk via fsync on the backing fd. The
// teacher's slotcache takes the same approach (fsync the fd rather than
// msync the mapping) for its WritebackSync mode.
func (m *mmapFile) sync() error {
	if err := m.f.Sync(); err != nil {
		return fmt.Errorf("%w: fsync: %w", errs.ErrDurabilityFailed, err)
	}
	return nil
}

func (m *mmapFile) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data != nil {
		if err := syscall.Munmap(m.data); err != nil {
			return fmt.Errorf("munmap: %w", err)
		}
		m.data = nil
	}
	return m.f.Close()
}
