package exec

import (
	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/store"
	"github.com/graphdb-core/graphdb/internal/value"
	"github.com/graphdb-core/graphdb/internal/wal"
)

// mergeIter implements MERGE (spec section 4.6 Merge): probes for a
// subgraph matching op.MergePattern's nodes and relationships, binding
// whatever already exists and creating whatever doesn't, hop by hop
// starting from Nodes[0]; ON MATCH runs only if nothing had to be
// created, ON CREATE otherwise.
type mergeIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp
}

func newMergeIter(ctx *Context, child Iterator, op *plan.PhysicalOp) (*mergeIter, error) {
	return &mergeIter{ctx: ctx, child: child, op: op}, nil
}

func (m *mergeIter) Next() (Row, bool, error) {
	row, ok, err := m.child.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	pattern := m.op.MergePattern
	if len(pattern.Nodes) == 0 {
		return nil, false, runtimeErrorf("MERGE requires at least one node pattern")
	}

	out := row.Clone()
	anyCreated := false

	id, created, err := m.resolveOrCreateNode(out, pattern.Nodes[0], m.op.MergePatternLabels)
	if err != nil {
		return nil, false, err
	}
	anyCreated = anyCreated || created
	out[pattern.Nodes[0].Var] = value.NodeRef(id)
	fromID := id

	for i, rel := range pattern.Rels {
		toNode := pattern.Nodes[i+1]
		typeIDs := m.op.MergeRelTypes[i]

		toID, found, err := m.probeEdge(fromID, rel, typeIDs, toNode, out)
		if err != nil {
			return nil, false, err
		}
		if !found {
			anyCreated = true
			toID, _, err = m.resolveOrCreateNode(out, toNode, m.op.MergeNodeLabels[i+1])
			if err != nil {
				return nil, false, err
			}
			if err := m.createEdge(out, fromID, toID, rel, typeIDs); err != nil {
				return nil, false, err
			}
		}
		if toNode.Var != "" {
			out[toNode.Var] = value.NodeRef(toID)
		}
		fromID = toID
	}

	items := m.op.MergeOnCreate
	if !anyCreated {
		items = m.op.MergeOnMatch
	}
	if err := m.applySets(out, items); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// resolveOrCreateNode probes for an existing node carrying labelIDs and
// matching np's inline properties, creating one if none matches.
func (m *mergeIter) resolveOrCreateNode(row Row, np ast.NodePattern, labelIDs []uint32) (uint64, bool, error) {
	wantProps, err := m.evalProps(row, np.Props, true)
	if err != nil {
		return 0, false, err
	}
	id, found, err := m.probeNode(labelIDs, wantProps)
	if err != nil {
		return 0, false, err
	}
	if found {
		return id, false, nil
	}
	id, err = m.createNode(row, np, labelIDs)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// evalProps evaluates np's inline properties against row, resolving
// property-key names to catalog IDs. When skipUnknown is true, a
// never-before-seen key name is dropped instead of erroring, since no
// existing node could carry a key nothing has ever written.
func (m *mergeIter) evalProps(row Row, props map[string]ast.Expr, skipUnknown bool) (map[uint32]value.Value, error) {
	out := make(map[uint32]value.Value, len(props))
	for name, expr := range props {
		keyID, ok, err := m.ctx.Cat.LookupKeyID(m.ctx.Ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			if skipUnknown {
				continue
			}
			keyID, err = m.ctx.Cat.GetOrCreateKey(m.ctx.Ctx, name)
			if err != nil {
				return nil, err
			}
		}
		v, err := eval(m.ctx, row, expr)
		if err != nil {
			return nil, err
		}
		out[keyID] = v
	}
	return out, nil
}

// probeNode returns the first visible node carrying every label in
// labelIDs and matching every entry of wantProps.
func (m *mergeIter) probeNode(labelIDs []uint32, wantProps map[uint32]value.Value) (uint64, bool, error) {
	var candidates []uint32
	if len(labelIDs) > 0 {
		candidates = m.ctx.Labels.Intersect(labelIDs...).ToArray()
	} else {
		hw, err := m.ctx.Cat.NodeHighWaterMark(m.ctx.Ctx)
		if err != nil {
			return 0, false, err
		}
		for i := uint64(0); i < hw; i++ {
			candidates = append(candidates, uint32(i))
		}
	}

	for _, c := range candidates {
		id := uint64(c)
		ok, err := m.nodeMatches(id, labelIDs, wantProps)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (m *mergeIter) nodeMatches(id uint64, labelIDs []uint32, wantProps map[uint32]value.Value) (bool, error) {
	rec, err := m.ctx.Nodes.ReadNode(id)
	if err != nil {
		return false, err
	}
	if !rec.Visible(m.ctx.Snapshot) {
		return false, nil
	}
	for _, label := range labelIDs {
		if label < 64 && !rec.HasLabel(label) {
			return false, nil
		}
	}
	if len(wantProps) == 0 {
		return true, nil
	}
	chain, err := m.ctx.Props.ReadChain(rec.PropHead)
	if err != nil {
		return false, err
	}
	for keyID, want := range wantProps {
		got, ok := chain[keyID]
		if !ok || !value.Equal(got, want) {
			return false, nil
		}
	}
	return true, nil
}

// probeEdge looks for an existing, visible relationship of one of
// typeIDs (any type, if typeIDs is empty) leaving/entering fromID in
// rel's direction, whose other endpoint matches toNode's labels and
// inline properties - the same adjacency walk expandIter uses.
func (m *mergeIter) probeEdge(fromID uint64, rel ast.RelPattern, typeIDs []uint32, toNode ast.NodePattern, row Row) (uint64, bool, error) {
	rec, err := m.ctx.Nodes.ReadNode(fromID)
	if err != nil {
		return 0, false, err
	}
	ids, err := adjacencyIDs(m.ctx, fromID, rec, rel.Dir)
	if err != nil {
		return 0, false, err
	}
	wantProps, err := m.evalProps(row, toNode.Props, true)
	if err != nil {
		return 0, false, err
	}
	var toLabels []uint32
	for _, l := range toNode.Labels {
		id, ok, err := m.ctx.Cat.LookupLabelID(m.ctx.Ctx, l)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return 0, false, nil // label never used before, so nothing can match
		}
		toLabels = append(toLabels, id)
	}

	for _, relID := range ids {
		relRec, err := m.ctx.Rels.ReadRel(relID)
		if err != nil {
			return 0, false, err
		}
		if !relRec.Visible(m.ctx.Snapshot) {
			continue
		}
		if len(typeIDs) > 0 && !containsType(typeIDs, relRec.TypeID) {
			continue
		}
		other := otherEndpoint(fromID, relRec, rel.Dir)
		ok, err := m.nodeMatches(other, toLabels, wantProps)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return other, true, nil
		}
	}
	return 0, false, nil
}

func (m *mergeIter) createNode(row Row, np ast.NodePattern, labelIDs []uint32) (uint64, error) {
	id, err := m.ctx.Nodes.AllocNode(m.ctx.Ctx)
	if err != nil {
		return 0, err
	}
	rec := store.NodeRecord{
		OutHead: store.NoPointer, InHead: store.NoPointer, PropHead: store.NoPointer,
		CreatedEpoch: uint32(m.ctx.Write.NewEpoch), DeletedEpoch: store.EpochInfinite,
	}
	for _, label := range labelIDs {
		if label < 64 {
			rec.LabelBits |= 1 << uint(label)
		}
	}
	for name, expr := range np.Props {
		keyID, err := m.ctx.Cat.GetOrCreateKey(m.ctx.Ctx, name)
		if err != nil {
			return 0, err
		}
		v, err := eval(m.ctx, row, expr)
		if err != nil {
			return 0, err
		}
		head, err := appendOneProperty(m.ctx, wal.PropOwnerNode, id, rec.PropHead, keyID, v)
		if err != nil {
			return 0, err
		}
		rec.PropHead = head
	}
	if err := m.ctx.Nodes.WriteNode(id, rec); err != nil {
		return 0, err
	}
	for _, label := range labelIDs {
		m.ctx.Labels.Add(label, id)
		m.ctx.Write.emit(wal.Frame{Type: wal.EntryNodeLabelAdd, Payload: wal.NodeLabelPayload{NodeID: id, LabelID: label}.Encode()})
	}
	m.ctx.Write.emit(wal.Frame{Type: wal.EntryNodeCreate, Payload: wal.NodeIDPayload{NodeID: id}.Encode()})
	return id, nil
}

// createEdge splices a new relationship between fromID and toID,
// following rel's direction (DirIn reverses which endpoint is Src),
// grounded on exec/mutate.go's createRelIter adjacency-splice logic.
func (m *mergeIter) createEdge(row Row, fromID, toID uint64, rel ast.RelPattern, typeIDs []uint32) error {
	src, dst := fromID, toID
	if rel.Dir == ast.DirIn {
		src, dst = dst, src
	}
	var typeID uint32
	if len(typeIDs) > 0 {
		typeID = typeIDs[0]
	} else {
		return runtimeErrorf("MERGE relationship pattern must name a type")
	}

	id, err := m.ctx.Rels.AllocRel(m.ctx.Ctx)
	if err != nil {
		return err
	}
	srcRec, err := m.ctx.Nodes.ReadNode(src)
	if err != nil {
		return err
	}
	dstRec, err := m.ctx.Nodes.ReadNode(dst)
	if err != nil {
		return err
	}
	rec := store.RelRecord{
		Src: src, Dst: dst, TypeID: typeID,
		NextOutOfSrc: srcRec.OutHead, PrevOutOfSrc: store.NoPointer,
		NextInToDst: dstRec.InHead, PrevInToDst: store.NoPointer,
		PropHead:     store.NoPointer,
		CreatedEpoch: uint32(m.ctx.Write.NewEpoch), DeletedEpoch: store.EpochInfinite,
	}
	for name, expr := range rel.Props {
		keyID, err := m.ctx.Cat.GetOrCreateKey(m.ctx.Ctx, name)
		if err != nil {
			return err
		}
		v, err := eval(m.ctx, row, expr)
		if err != nil {
			return err
		}
		head, err := appendOneProperty(m.ctx, wal.PropOwnerRel, id, rec.PropHead, keyID, v)
		if err != nil {
			return err
		}
		rec.PropHead = head
	}

	if srcRec.OutHead != store.NoPointer {
		old, err := m.ctx.Rels.ReadRel(srcRec.OutHead)
		if err != nil {
			return err
		}
		old.PrevOutOfSrc = id
		if err := m.ctx.Rels.WriteRel(srcRec.OutHead, old); err != nil {
			return err
		}
	}
	if dstRec.InHead != store.NoPointer {
		old, err := m.ctx.Rels.ReadRel(dstRec.InHead)
		if err != nil {
			return err
		}
		old.PrevInToDst = id
		if err := m.ctx.Rels.WriteRel(dstRec.InHead, old); err != nil {
			return err
		}
	}
	srcRec.OutHead = id
	dstRec.InHead = id
	if err := m.ctx.Nodes.WriteNode(src, srcRec); err != nil {
		return err
	}
	if err := m.ctx.Nodes.WriteNode(dst, dstRec); err != nil {
		return err
	}
	if err := m.ctx.Rels.WriteRel(id, rec); err != nil {
		return err
	}

	m.ctx.Adj.Invalidate(src)
	m.ctx.Adj.Invalidate(dst)
	m.ctx.Types.Add(typeID, id)
	m.ctx.Write.emit(wal.Frame{
		Type:    wal.EntryRelCreate,
		Payload: wal.RelCreatePayload{RelID: id, Src: src, Dst: dst, TypeID: typeID}.Encode(),
	})
	return nil
}

// applySets runs ON CREATE/ON MATCH SET items against row in place.
func (m *mergeIter) applySets(row Row, items []ast.SetItem) error {
	for _, item := range items {
		if item.IsLabel {
			v, err := eval(m.ctx, row, item.Target)
			if err != nil {
				return err
			}
			if v.Kind() != value.KindNode {
				continue
			}
			labelID, err := m.ctx.Cat.GetOrCreateLabel(m.ctx.Ctx, item.Label)
			if err != nil {
				return err
			}
			id := v.NodeID()
			rec, err := m.ctx.Nodes.ReadNode(id)
			if err != nil {
				return err
			}
			if labelID < 64 {
				rec.LabelBits |= 1 << uint(labelID)
				if err := m.ctx.Nodes.WriteNode(id, rec); err != nil {
					return err
				}
			}
			m.ctx.Labels.Add(labelID, id)
			m.ctx.Write.emit(wal.Frame{Type: wal.EntryNodeLabelAdd, Payload: wal.NodeLabelPayload{NodeID: id, LabelID: labelID}.Encode()})
			continue
		}

		pa, ok := item.Target.(*ast.PropertyAccess)
		if !ok {
			continue
		}
		target, err := eval(m.ctx, row, pa.Target)
		if err != nil {
			return err
		}
		if target.Kind() != value.KindNode {
			continue
		}
		newVal, err := eval(m.ctx, row, item.Value)
		if err != nil {
			return err
		}
		keyID, err := m.ctx.Cat.GetOrCreateKey(m.ctx.Ctx, pa.Key)
		if err != nil {
			return err
		}
		id := target.NodeID()
		rec, err := m.ctx.Nodes.ReadNode(id)
		if err != nil {
			return err
		}
		head, err := appendOneProperty(m.ctx, wal.PropOwnerNode, id, rec.PropHead, keyID, newVal)
		if err != nil {
			return err
		}
		rec.PropHead = head
		if err := m.ctx.Nodes.WriteNode(id, rec); err != nil {
			return err
		}
	}
	return nil
}
