package engine

import (
	"context"
	"fmt"

	"github.com/graphdb-core/graphdb/internal/index"
	"github.com/graphdb-core/graphdb/internal/value"
)

// CreateIndex registers a secondary equality index over (label, key) and
// bulk-populates it from every currently visible node carrying that
// label (spec section 6's create_index). The plan cache is invalidated
// wholesale afterward since a cached plan may have chosen a scan
// strategy that predates the new index.
func (e *Engine) CreateIndex(ctx context.Context, label, key uint32) error {
	if err := e.cat.RegisterPropIndex(ctx, label, key); err != nil {
		return err
	}
	e.propIdx.Create(index.PropKey{Label: label, Key: key})

	snapshot, err := e.cat.Epoch(ctx)
	if err != nil {
		return fmt.Errorf("read epoch: %w", err)
	}
	hw, err := e.cat.NodeHighWaterMark(ctx)
	if err != nil {
		return fmt.Errorf("read node high water mark: %w", err)
	}
	// Property indexes are only maintained for the inline 64-bit label
	// fast path, the same limitation rebuildIndexes and nodeByLabelScan
	// document: a label id at or beyond that has no membership test here.
	if label >= 64 {
		e.cache.Invalidate()
		return nil
	}
	for id := uint64(0); id < hw; id++ {
		rec, err := e.nodes.ReadNode(id)
		if err != nil {
			return fmt.Errorf("read node %d: %w", id, err)
		}
		if !rec.Visible(snapshot) || !rec.HasLabel(label) {
			continue
		}
		chain, err := e.props.ReadChain(rec.PropHead)
		if err != nil {
			return fmt.Errorf("read node %d property chain: %w", id, err)
		}
		if v, ok := chain[key]; ok {
			e.propIdx.OnPropertySet(label, key, id, value.Null, v)
		}
	}
	e.cache.Invalidate()
	return nil
}

// DropIndex removes a secondary index and invalidates the plan cache.
func (e *Engine) DropIndex(ctx context.Context, label, key uint32) error {
	if err := e.cat.UnregisterPropIndex(ctx, label, key); err != nil {
		return err
	}
	e.propIdx.Drop(index.PropKey{Label: label, Key: key})
	e.cache.Invalidate()
	return nil
}

// ListIndexes reports every registered (label, key) secondary index.
func (e *Engine) ListIndexes() []index.PropKey {
	return e.propIdx.List()
}
