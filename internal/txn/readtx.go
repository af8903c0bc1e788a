package txn

import (
	"fmt"
	"time"
)

// ReadTx is a read-only snapshot transaction (spec section 4.4: readers
// never block and never block the writer, pinned to the epoch published
// at BeginRead).
type ReadTx struct {
	id        uint64
	snapshot  uint64
	mgr       *Manager
	startedAt time.Time
	closed    bool
}

// BeginRead opens a read snapshot pinned at the currently published
// epoch.
func (m *Manager) BeginRead() *ReadTx {
	tx := &ReadTx{
		id:        m.nextTxID(),
		snapshot:  m.epoch.Load(),
		mgr:       m,
		startedAt: time.Now(),
	}
	m.mu.Lock()
	m.activeReaders[tx.id] = tx
	m.mu.Unlock()
	return tx
}

func (tx *ReadTx) ID() uint64       { return tx.id }
func (tx *ReadTx) Snapshot() uint64 { return tx.snapshot }

// Close releases the snapshot. Idempotent.
func (tx *ReadTx) Close() error {
	tx.mgr.mu.Lock()
	defer tx.mgr.mu.Unlock()
	if tx.closed {
		return nil
	}
	tx.closed = true
	delete(tx.mgr.activeReaders, tx.id)
	return nil
}

// idleDuration reports how long the transaction has been open.
func (tx *ReadTx) idleDuration() time.Duration { return time.Since(tx.startedAt) }

func (tx *ReadTx) String() string {
	return fmt.Sprintf("ReadTx{id=%d, snapshot=%d}", tx.id, tx.snapshot)
}
