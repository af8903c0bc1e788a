package exec

import (
	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/store"
	"github.com/graphdb-core/graphdb/internal/value"
	"github.com/graphdb-core/graphdb/internal/wal"
)

// nodeLabels returns the inline (id < 64) label ids set on rec, the only
// ones a NodeRecord can report without consulting the label index.
func nodeLabels(rec store.NodeRecord) []uint32 {
	var out []uint32
	for id := uint32(0); id < 64; id++ {
		if rec.HasLabel(id) {
			out = append(out, id)
		}
	}
	return out
}

// setPropertyIter implements SET n.key = expr (spec section 4.6
// SetProperty): appends the new value onto the owner's property chain
// and keeps any registered property index in sync.
type setPropertyIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp
}

func (s *setPropertyIter) Next() (Row, bool, error) {
	row, ok, err := s.child.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	target, err := eval(s.ctx, row, s.op.Items[0].Expr)
	if err != nil {
		return nil, false, err
	}
	newVal, err := eval(s.ctx, row, s.op.Expr)
	if err != nil {
		return nil, false, err
	}

	switch target.Kind() {
	case value.KindNode:
		id := target.NodeID()
		rec, err := s.ctx.Nodes.ReadNode(id)
		if err != nil {
			return nil, false, err
		}
		old, err := s.ctx.Props.ReadChain(rec.PropHead)
		if err != nil {
			return nil, false, err
		}
		oldVal := old[s.op.PropKey]
		head, err := appendOneProperty(s.ctx, wal.PropOwnerNode, id, rec.PropHead, s.op.PropKey, newVal)
		if err != nil {
			return nil, false, err
		}
		rec.PropHead = head
		if err := s.ctx.Nodes.WriteNode(id, rec); err != nil {
			return nil, false, err
		}
		for _, label := range nodeLabels(rec) {
			s.ctx.PropIdx.OnPropertySet(label, s.op.PropKey, id, oldVal, newVal)
		}
	case value.KindRel:
		id := target.RelID()
		rec, err := s.ctx.Rels.ReadRel(id)
		if err != nil {
			return nil, false, err
		}
		head, err := appendOneProperty(s.ctx, wal.PropOwnerRel, id, rec.PropHead, s.op.PropKey, newVal)
		if err != nil {
			return nil, false, err
		}
		rec.PropHead = head
		if err := s.ctx.Rels.WriteRel(id, rec); err != nil {
			return nil, false, err
		}
	default:
		return nil, false, runtimeErrorf("SET target is not a node or relationship")
	}
	return row, true, nil
}

// removePropertyIter implements REMOVE n.key (spec section 4.6
// RemoveProperty).
type removePropertyIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp
}

func (r *removePropertyIter) Next() (Row, bool, error) {
	row, ok, err := r.child.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	target, err := eval(r.ctx, row, r.op.Items[0].Expr)
	if err != nil {
		return nil, false, err
	}
	switch target.Kind() {
	case value.KindNode:
		id := target.NodeID()
		rec, err := r.ctx.Nodes.ReadNode(id)
		if err != nil {
			return nil, false, err
		}
		old, err := r.ctx.Props.ReadChain(rec.PropHead)
		if err != nil {
			return nil, false, err
		}
		oldVal, had := old[r.op.PropKey]
		head, err := r.ctx.Props.RemoveProperty(rec.PropHead, r.op.PropKey)
		if err != nil {
			return nil, false, err
		}
		rec.PropHead = head
		if err := r.ctx.Nodes.WriteNode(id, rec); err != nil {
			return nil, false, err
		}
		if r.ctx.Write != nil {
			r.ctx.Write.emit(wal.Frame{
				Type:    wal.EntryPropRemove,
				Payload: wal.PropRemovePayload{OwnerKind: wal.PropOwnerNode, OwnerID: id, KeyID: r.op.PropKey}.Encode(),
			})
		}
		if had {
			for _, label := range nodeLabels(rec) {
				r.ctx.PropIdx.OnPropertyRemoved(label, r.op.PropKey, id, oldVal)
			}
		}
	case value.KindRel:
		id := target.RelID()
		rec, err := r.ctx.Rels.ReadRel(id)
		if err != nil {
			return nil, false, err
		}
		head, err := r.ctx.Props.RemoveProperty(rec.PropHead, r.op.PropKey)
		if err != nil {
			return nil, false, err
		}
		rec.PropHead = head
		if err := r.ctx.Rels.WriteRel(id, rec); err != nil {
			return nil, false, err
		}
		if r.ctx.Write != nil {
			r.ctx.Write.emit(wal.Frame{
				Type:    wal.EntryPropRemove,
				Payload: wal.PropRemovePayload{OwnerKind: wal.PropOwnerRel, OwnerID: id, KeyID: r.op.PropKey}.Encode(),
			})
		}
	default:
		return nil, false, runtimeErrorf("REMOVE target is not a node or relationship")
	}
	return row, true, nil
}

// addLabelIter implements SET n:Label (spec section 4.6 AddLabel).
type addLabelIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp
}

func (a *addLabelIter) Next() (Row, bool, error) {
	row, ok, err := a.child.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	target, err := eval(a.ctx, row, a.op.Items[0].Expr)
	if err != nil {
		return nil, false, err
	}
	if target.Kind() != value.KindNode {
		return nil, false, runtimeErrorf("SET label target is not a node")
	}
	id := target.NodeID()
	rec, err := a.ctx.Nodes.ReadNode(id)
	if err != nil {
		return nil, false, err
	}
	if a.op.Label < 64 {
		rec.LabelBits |= 1 << uint(a.op.Label)
		if err := a.ctx.Nodes.WriteNode(id, rec); err != nil {
			return nil, false, err
		}
	}
	a.ctx.Labels.Add(a.op.Label, id)
	if a.ctx.Write != nil {
		a.ctx.Write.emit(wal.Frame{Type: wal.EntryNodeLabelAdd, Payload: wal.NodeLabelPayload{NodeID: id, LabelID: a.op.Label}.Encode()})
	}
	return row, true, nil
}

// removeLabelIter implements REMOVE n:Label (spec section 4.6 RemoveLabel).
type removeLabelIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp
}

func (r *removeLabelIter) Next() (Row, bool, error) {
	row, ok, err := r.child.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	target, err := eval(r.ctx, row, r.op.Items[0].Expr)
	if err != nil {
		return nil, false, err
	}
	if target.Kind() != value.KindNode {
		return nil, false, runtimeErrorf("REMOVE label target is not a node")
	}
	id := target.NodeID()
	rec, err := r.ctx.Nodes.ReadNode(id)
	if err != nil {
		return nil, false, err
	}
	if r.op.Label < 64 {
		rec.LabelBits &^= 1 << uint(r.op.Label)
		if err := r.ctx.Nodes.WriteNode(id, rec); err != nil {
			return nil, false, err
		}
	}
	r.ctx.Labels.Remove(r.op.Label, id)
	if r.ctx.Write != nil {
		r.ctx.Write.emit(wal.Frame{Type: wal.EntryNodeLabelRemove, Payload: wal.NodeLabelPayload{NodeID: id, LabelID: r.op.Label}.Encode()})
	}
	return row, true, nil
}
