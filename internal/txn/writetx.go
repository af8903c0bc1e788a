package txn

import (
	"context"
	"fmt"
	"time"
)

// WriteTx is the single in-flight write transaction. Only one may exist
// at a time across the whole database (spec section 4.4: "writers are
// fully serialized").
type WriteTx struct {
	id        uint64
	snapshot  uint64 // epoch in effect when the write began
	mgr       *Manager
	startedAt time.Time
	warnTimer *time.Timer
	done      bool
}

// BeginWrite blocks until the write lock is available (bounded by
// Config.WriteLockTimeout) and returns the new write transaction.
func (m *Manager) BeginWrite(ctx context.Context) (*WriteTx, error) {
	if err := m.acquireWriteLock(ctx); err != nil {
		return nil, err
	}

	tx := &WriteTx{
		id:        m.nextTxID(),
		snapshot:  m.epoch.Load(),
		mgr:       m,
		startedAt: time.Now(),
	}

	m.mu.Lock()
	m.currentWriter = tx
	m.mu.Unlock()

	if m.cfg.WriteTxWarnAfter > 0 {
		tx.warnTimer = time.AfterFunc(m.cfg.WriteTxWarnAfter, func() {
			m.log.Warn().
				Uint64("tx_id", tx.id).
				Dur("elapsed", time.Since(tx.startedAt)).
				Msg("write transaction held open longer than expected")
		})
	}

	return tx, nil
}

func (tx *WriteTx) ID() uint64       { return tx.id }
func (tx *WriteTx) Snapshot() uint64 { return tx.snapshot }

// Commit publishes a new epoch one past the transaction's snapshot,
// persists it via src (the catalog), and releases the write lock. The
// caller is responsible for having already made the transaction's
// mutations durable in the WAL before calling Commit (spec section 4.3:
// the WAL commit frame is the durability boundary, not epoch
// publication).
func (tx *WriteTx) Commit(ctx context.Context, src EpochSource) (uint64, error) {
	if tx.done {
		return 0, fmt.Errorf("transaction %d already finished", tx.id)
	}
	newEpoch := tx.mgr.epoch.Load() + 1
	if err := src.SetEpoch(ctx, newEpoch); err != nil {
		return 0, fmt.Errorf("persist epoch: %w", err)
	}
	tx.mgr.epoch.Store(newEpoch)
	tx.finish()
	return newEpoch, nil
}

// Abort releases the write lock without advancing the epoch. Callers
// must have already rolled back any in-memory mutation state and
// appended an ABORT frame to the WAL.
func (tx *WriteTx) Abort() error {
	if tx.done {
		return nil
	}
	tx.finish()
	return nil
}

func (tx *WriteTx) finish() {
	tx.done = true
	if tx.warnTimer != nil {
		tx.warnTimer.Stop()
	}
	tx.mgr.mu.Lock()
	tx.mgr.currentWriter = nil
	tx.mgr.mu.Unlock()
	tx.mgr.releaseWriteLock()
}
