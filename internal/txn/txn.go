// Package txn implements component C4: the epoch-based MVCC transaction
// manager. A single monotonically increasing epoch counter stands in for
// a timestamp; every record carries the epoch it was created and (if
// applicable) deleted in, and a reader's snapshot is just the epoch
// published at the moment it began (spec section 4.4).
//
// The single-writer serialization and timeout-bounded lock acquisition
// is grounded on the teacher's file-lock pattern (lock.go:
// acquireLockWithTimeout) adapted to an in-process semaphore, since
// there is exactly one writer per open database rather than one per
// process contending over a filesystem lock file.
package txn

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/graphdb-core/graphdb/internal/errs"
	"github.com/graphdb-core/graphdb/internal/log"
)

// EpochSource persists the published epoch across restarts (spec section
// 4.4: recovery republishes the epoch recovered from the WAL/catalog
// before any new transaction begins).
type EpochSource interface {
	Epoch(ctx context.Context) (uint64, error)
	SetEpoch(ctx context.Context, epoch uint64) error
}

// Config controls transaction timeouts (spec section 4.4, 9).
type Config struct {
	ReadTxIdleTimeout time.Duration
	WriteTxWarnAfter  time.Duration
	WriteLockTimeout  time.Duration // 0 = block indefinitely
}

// Manager owns the epoch counter, the single-writer lock, and the set of
// active read snapshots needed to compute a GC watermark.
type Manager struct {
	cfg    Config
	epoch  atomic.Uint64
	nextID atomic.Uint64

	writeSem chan struct{}

	mu            sync.Mutex
	activeReaders map[uint64]*ReadTx
	currentWriter *WriteTx

	log zerolog.Logger
}

// Open creates a Manager, republishing the epoch from src.
func Open(ctx context.Context, src EpochSource, cfg Config) (*Manager, error) {
	epoch, err := src.Epoch(ctx)
	if err != nil {
		return nil, fmt.Errorf("load epoch: %w", err)
	}
	m := &Manager{
		cfg:           cfg,
		writeSem:      make(chan struct{}, 1),
		activeReaders: make(map[uint64]*ReadTx),
		log:           log.Component("txn"),
	}
	m.epoch.Store(epoch)
	m.writeSem <- struct{}{}
	return m, nil
}

// CurrentEpoch returns the last published epoch.
func (m *Manager) CurrentEpoch() uint64 { return m.epoch.Load() }

// MinActiveSnapshot returns the lowest snapshot epoch any open
// transaction (reader or writer) can still observe. Record versions
// deleted at or below this epoch can never be read again and are safe
// for FreeNode/FreeRel to reclaim (spec section 4.4).
func (m *Manager) MinActiveSnapshot() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	min := m.epoch.Load()
	for _, r := range m.activeReaders {
		if r.snapshot < min {
			min = r.snapshot
		}
	}
	if m.currentWriter != nil && m.currentWriter.snapshot < min {
		min = m.currentWriter.snapshot
	}
	return min
}

// ActiveReaderCount reports the number of open read transactions, used
// by stats().
func (m *Manager) ActiveReaderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activeReaders)
}

// WriteLockHeld reports whether a write transaction currently holds the
// single writer slot, used by stats().
func (m *Manager) WriteLockHeld() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentWriter != nil
}

func (m *Manager) nextTxID() uint64 { return m.nextID.Add(1) }

// acquireWriteLock blocks until the single writer slot is free or the
// configured timeout elapses (0 means block indefinitely), mirroring the
// teacher's deadline-bounded lock acquisition but via a channel instead
// of a polling retry loop, since this lock never crosses process
// boundaries.
func (m *Manager) acquireWriteLock(ctx context.Context) error {
	if m.cfg.WriteLockTimeout <= 0 {
		select {
		case <-m.writeSem:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	timer := time.NewTimer(m.cfg.WriteLockTimeout)
	defer timer.Stop()

	select {
	case <-m.writeSem:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: acquiring write lock after %s", errs.ErrTxTimeout, m.cfg.WriteLockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) releaseWriteLock() {
	m.writeSem <- struct{}{}
}
