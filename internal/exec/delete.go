package exec

import (
	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/value"
	"github.com/graphdb-core/graphdb/internal/wal"
)

// deleteIter implements DELETE / DETACH DELETE (spec section 4.6
// DeleteNode): marks the target's deleted_epoch so it drops out of every
// snapshot from the write epoch onward. DETACH DELETE removes incident
// relationships first; a plain DELETE of a node that still has
// relationships is a runtime error, matching Cypher's own behavior.
type deleteIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp
}

func (d *deleteIter) Next() (Row, bool, error) {
	row, ok, err := d.child.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	for _, item := range d.op.Items {
		target, err := eval(d.ctx, row, item.Expr)
		if err != nil {
			return nil, false, err
		}
		switch target.Kind() {
		case value.KindNode:
			if err := d.deleteNode(target.NodeID()); err != nil {
				return nil, false, err
			}
		case value.KindRel:
			if err := d.deleteRel(target.RelID()); err != nil {
				return nil, false, err
			}
		case value.KindNull:
			// already unbound (e.g. an OPTIONAL MATCH miss); nothing to do.
		default:
			return nil, false, runtimeErrorf("DELETE target is not a node or relationship")
		}
	}
	return row, true, nil
}

func (d *deleteIter) deleteNode(id uint64) error {
	rec, err := d.ctx.Nodes.ReadNode(id)
	if err != nil {
		return err
	}
	if !rec.Visible(d.ctx.Snapshot) {
		return nil
	}

	incident, err := adjacencyIDs(d.ctx, id, rec, ast.DirEither)
	if err != nil {
		return err
	}
	var live []uint64
	for _, relID := range incident {
		r, err := d.ctx.Rels.ReadRel(relID)
		if err != nil {
			return err
		}
		if r.Visible(d.ctx.Snapshot) {
			live = append(live, relID)
		}
	}
	if len(live) > 0 {
		if !d.op.DetachDelete {
			return runtimeErrorf("cannot delete node %d with relationships still attached; use DETACH DELETE", id)
		}
		for _, relID := range live {
			if err := d.deleteRel(relID); err != nil {
				return err
			}
		}
	}

	rec.DeletedEpoch = uint32(d.ctx.Write.NewEpoch)
	if err := d.ctx.Nodes.WriteNode(id, rec); err != nil {
		return err
	}
	for _, label := range nodeLabels(rec) {
		d.ctx.Labels.Remove(label, id)
	}
	d.ctx.Write.emit(wal.Frame{Type: wal.EntryNodeDelete, Payload: wal.NodeIDPayload{NodeID: id}.Encode()})
	return nil
}

func (d *deleteIter) deleteRel(id uint64) error {
	rec, err := d.ctx.Rels.ReadRel(id)
	if err != nil {
		return err
	}
	if !rec.Visible(d.ctx.Snapshot) {
		return nil
	}
	rec.DeletedEpoch = uint32(d.ctx.Write.NewEpoch)
	if err := d.ctx.Rels.WriteRel(id, rec); err != nil {
		return err
	}
	d.ctx.Types.Remove(rec.TypeID, id)
	d.ctx.Adj.Invalidate(rec.Src)
	d.ctx.Adj.Invalidate(rec.Dst)
	d.ctx.Write.emit(wal.Frame{Type: wal.EntryRelDelete, Payload: wal.RelIDPayload{RelID: id}.Encode()})
	return nil
}
