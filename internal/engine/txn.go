package engine

import (
	"context"
	"fmt"

	"github.com/graphdb-core/graphdb/internal/errs"
	"github.com/graphdb-core/graphdb/internal/txn"
	"github.com/graphdb-core/graphdb/internal/wal"
)

// Tx is a caller-held transaction handle, returned by BeginRead/BeginWrite
// and accepted by Execute/Commit/Abort (spec section 6's begin_read,
// begin_write, commit, abort). A write Tx accumulates WAL frames across
// every Execute call made against it; Commit appends them all as one
// transaction before publishing the epoch, so a caller that issues
// several statements inside one explicit write transaction still gets a
// single atomic commit.
type Tx struct {
	read   *txn.ReadTx
	write  *txn.WriteTx
	frames []wal.Frame
}

func (t *Tx) snapshot() uint64 {
	if t.write != nil {
		return t.write.Snapshot()
	}
	return t.read.Snapshot()
}

// BeginRead opens a new read snapshot pinned at the current epoch.
func (e *Engine) BeginRead() *Tx {
	return &Tx{read: e.txns.BeginRead()}
}

// BeginWrite blocks until the single writer lock is available.
func (e *Engine) BeginWrite(ctx context.Context) (*Tx, error) {
	w, err := e.txns.BeginWrite(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{write: w}, nil
}

// Commit is only valid for a write transaction; a read transaction is
// released with Abort. It wraps tx's accumulated frames in BEGIN/COMMIT
// control frames, fsyncs them to the WAL, and only then publishes the
// new epoch (spec section 4.3/4.4: the WAL commit frame is the
// durability boundary, epoch publication comes after).
func (e *Engine) Commit(ctx context.Context, tx *Tx) error {
	if tx.write == nil {
		return fmt.Errorf("commit: not a write transaction")
	}
	newEpoch := tx.write.Snapshot() + 1
	frames := make([]wal.Frame, 0, len(tx.frames)+2)
	frames = append(frames, wal.Frame{Type: wal.EntryBegin, TxID: tx.write.ID(), Epoch: newEpoch})
	frames = append(frames, tx.frames...)
	frames = append(frames, wal.Frame{Type: wal.EntryCommit, TxID: tx.write.ID(), Epoch: newEpoch})

	if err := e.wal.AppendTransaction(ctx, frames); err != nil {
		_ = tx.write.Abort()
		return errs.Wrap(errs.KindDurabilityFailed, "append wal transaction", err)
	}
	_, err := tx.write.Commit(ctx, e.cat)
	return err
}

// Abort ends tx without advancing the epoch (write) or simply releases
// the snapshot (read). A write transaction's already-applied record
// mutations are never rolled back in place; they stay tagged with an
// epoch that is never published, so Visible() hides them from every
// future reader (see internal/engine/recovery.go's replay doc comment).
func (e *Engine) Abort(tx *Tx) error {
	if tx.write != nil {
		return tx.write.Abort()
	}
	return tx.read.Close()
}
