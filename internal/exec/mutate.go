package exec

import (
	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/store"
	"github.com/graphdb-core/graphdb/internal/value"
	"github.com/graphdb-core/graphdb/internal/wal"
)

// appendOneProperty appends v for keyID onto the chain rooted at head,
// emitting the matching PROP_SET frame, and returns the new head.
func appendOneProperty(ctx *Context, ownerKind wal.PropOwnerKind, ownerID, head uint64, keyID uint32, v value.Value) (uint64, error) {
	newHead, err := ctx.Props.AppendProperty(head, keyID, v)
	if err != nil {
		return 0, err
	}
	if ctx.Write != nil {
		kind, bytes, err := ctx.Props.EncodeValue(v)
		if err != nil {
			return 0, err
		}
		ctx.Write.emit(wal.Frame{
			Type: wal.EntryPropSet,
			Payload: wal.PropSetPayload{
				OwnerKind: ownerKind, OwnerID: ownerID, KeyID: keyID,
				ValueKind: kind, ValueBytes: bytes,
			}.Encode(),
		})
	}
	return newHead, nil
}

// writeProperties evaluates op.Items (key-alias-tagged property
// expressions, see plan.Planner.propItems) against row and appends each
// onto the chain rooted at head, returning the new head.
func writeProperties(ctx *Context, row Row, items []plan.ProjectItem, ownerKind wal.PropOwnerKind, ownerID, head uint64) (uint64, error) {
	for _, item := range items {
		v, err := eval(ctx, row, item.Expr)
		if err != nil {
			return 0, err
		}
		keyID := parseKeyAlias(item.Alias)
		newHead, err := appendOneProperty(ctx, ownerKind, ownerID, head, keyID, v)
		if err != nil {
			return 0, err
		}
		head = newHead
	}
	return head, nil
}

// parseKeyAlias inverts plan.keyAlias's "#<id>" encoding.
func parseKeyAlias(alias string) uint32 {
	var id uint32
	for _, c := range alias[1:] {
		id = id*10 + uint32(c-'0')
	}
	return id
}

// createNodeIter implements CREATE (n:Label {props}) (spec section 4.6
// CreateNode): allocates a node id, sets its label bits and property
// chain, and binds op.NodeVar in the outgoing row.
type createNodeIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp
}

func (c *createNodeIter) Next() (Row, bool, error) {
	row, ok, err := c.child.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	id, err := c.ctx.Nodes.AllocNode(c.ctx.Ctx)
	if err != nil {
		return nil, false, err
	}
	rec := store.NodeRecord{
		OutHead: store.NoPointer, InHead: store.NoPointer, PropHead: store.NoPointer,
		CreatedEpoch: uint32(c.ctx.Write.NewEpoch), DeletedEpoch: store.EpochInfinite,
	}
	for _, label := range c.op.MergePatternLabels {
		if label < 64 {
			rec.LabelBits |= 1 << uint(label)
		}
	}
	head, err := writeProperties(c.ctx, row, c.op.Items, wal.PropOwnerNode, id, rec.PropHead)
	if err != nil {
		return nil, false, err
	}
	rec.PropHead = head
	if err := c.ctx.Nodes.WriteNode(id, rec); err != nil {
		return nil, false, err
	}
	for _, label := range c.op.MergePatternLabels {
		c.ctx.Labels.Add(label, id)
		c.ctx.Write.emit(wal.Frame{Type: wal.EntryNodeLabelAdd, Payload: wal.NodeLabelPayload{NodeID: id, LabelID: label}.Encode()})
	}
	c.ctx.Write.emit(wal.Frame{Type: wal.EntryNodeCreate, Payload: wal.NodeIDPayload{NodeID: id}.Encode()})

	out := row.Clone()
	out[c.op.NodeVar] = value.NodeRef(id)
	return out, true, nil
}

// createRelIter implements CREATE (a)-[r:TYPE {props}]->(b) (spec section
// 4.6 CreateRel): splices the new relationship into both endpoints'
// adjacency lists, invalidating their cached entries.
type createRelIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp
}

func (c *createRelIter) Next() (Row, bool, error) {
	row, ok, err := c.child.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	fromV, toV := row[c.op.FromVar], row[c.op.ToVar]
	src, dst := fromV.NodeID(), toV.NodeID()
	if c.op.Dir == ast.DirIn {
		src, dst = dst, src
	}

	id, err := c.ctx.Rels.AllocRel(c.ctx.Ctx)
	if err != nil {
		return nil, false, err
	}

	srcRec, err := c.ctx.Nodes.ReadNode(src)
	if err != nil {
		return nil, false, err
	}
	dstRec, err := c.ctx.Nodes.ReadNode(dst)
	if err != nil {
		return nil, false, err
	}

	rec := store.RelRecord{
		Src: src, Dst: dst, TypeID: c.op.Label,
		NextOutOfSrc: srcRec.OutHead, PrevOutOfSrc: store.NoPointer,
		NextInToDst: dstRec.InHead, PrevInToDst: store.NoPointer,
		PropHead:     store.NoPointer,
		CreatedEpoch: uint32(c.ctx.Write.NewEpoch), DeletedEpoch: store.EpochInfinite,
	}
	head, err := writeProperties(c.ctx, row, c.op.Items, wal.PropOwnerRel, id, rec.PropHead)
	if err != nil {
		return nil, false, err
	}
	rec.PropHead = head

	if srcRec.OutHead != store.NoPointer {
		old, err := c.ctx.Rels.ReadRel(srcRec.OutHead)
		if err != nil {
			return nil, false, err
		}
		old.PrevOutOfSrc = id
		if err := c.ctx.Rels.WriteRel(srcRec.OutHead, old); err != nil {
			return nil, false, err
		}
	}
	if dstRec.InHead != store.NoPointer {
		old, err := c.ctx.Rels.ReadRel(dstRec.InHead)
		if err != nil {
			return nil, false, err
		}
		old.PrevInToDst = id
		if err := c.ctx.Rels.WriteRel(dstRec.InHead, old); err != nil {
			return nil, false, err
		}
	}
	srcRec.OutHead = id
	dstRec.InHead = id
	if err := c.ctx.Nodes.WriteNode(src, srcRec); err != nil {
		return nil, false, err
	}
	if err := c.ctx.Nodes.WriteNode(dst, dstRec); err != nil {
		return nil, false, err
	}
	if err := c.ctx.Rels.WriteRel(id, rec); err != nil {
		return nil, false, err
	}

	c.ctx.Adj.Invalidate(src)
	c.ctx.Adj.Invalidate(dst)
	c.ctx.Types.Add(c.op.Label, id)
	c.ctx.Write.emit(wal.Frame{
		Type:    wal.EntryRelCreate,
		Payload: wal.RelCreatePayload{RelID: id, Src: src, Dst: dst, TypeID: c.op.Label}.Encode(),
	})

	out := row.Clone()
	if c.op.RelVar2 != "" {
		out[c.op.RelVar2] = value.RelRef(id)
	}
	return out, true, nil
}
