// Package exec implements component C6's executor half: pull-based
// physical operators interpreting a plan.PhysicalOp tree, and the
// expression evaluator they share (spec section 4.6).
package exec

import (
	"context"

	"github.com/graphdb-core/graphdb/internal/catalog"
	"github.com/graphdb-core/graphdb/internal/index"
	"github.com/graphdb-core/graphdb/internal/store"
	"github.com/graphdb-core/graphdb/internal/value"
	"github.com/graphdb-core/graphdb/internal/wal"
)

// Row is one tuple of variable bindings flowing through the pipeline.
type Row map[string]value.Value

// Clone returns a shallow copy of r, used whenever an operator must hand
// out a row while continuing to mutate its own working copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// WriteState is attached to a Context only for read-write statements. It
// carries the epoch the transaction's new/deleted records are tagged
// with (not yet published - spec section 4.4) and accumulates the WAL
// frames the mutation operators produce, so the engine can append and
// fsync them as one transaction before publishing the epoch (spec
// section 4.4's "writes COMMIT to WAL; on fsync success, publishes
// E+1").
type WriteState struct {
	TxID     uint64
	NewEpoch uint64
	Frames   []wal.Frame
}

func (w *WriteState) emit(f wal.Frame) {
	f.TxID = w.TxID
	f.Epoch = w.NewEpoch
	w.Frames = append(w.Frames, f)
}

// Context bundles every component an operator or the expression
// evaluator needs to reach: the record stores, the catalog, the
// in-memory indexes, the reader's snapshot epoch, query parameters, and
// (for a write statement) the pending WAL frame accumulator.
type Context struct {
	Ctx context.Context

	Nodes *store.NodeStore
	Rels  *store.RelStore
	Props *store.PropStore

	Cat *catalog.Catalog

	Labels  *index.LabelIndex
	Types   *index.TypeIndex
	Adj     *index.AdjacencyCache
	PropIdx *index.PropIndexSet

	Snapshot uint64
	Params   map[string]value.Value

	Write *WriteState // nil for a read-only statement

	Cancelled func() bool // returns true once the statement should abort between rows
}

func (c *Context) checkCancelled() error {
	if c.Cancelled != nil && c.Cancelled() {
		return errCancelled
	}
	return nil
}
