package exec

import (
	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/store"
	"github.com/graphdb-core/graphdb/internal/value"
)

// expandIter enumerates, for each input row, the relationships incident
// to the bound FromVar node in the requested direction (spec section
// 4.6 Expand). Relationship candidates come from the adjacency cache and
// are re-validated for type and visibility before being yielded.
type expandIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp

	cur    Row
	relIDs []uint64
	pos    int
	loaded bool
}

func (e *expandIter) Next() (Row, bool, error) {
	for {
		if err := e.ctx.checkCancelled(); err != nil {
			return nil, false, err
		}
		if e.loaded {
			for e.pos < len(e.relIDs) {
				relID := e.relIDs[e.pos]
				e.pos++
				row, ok, err := e.yield(relID)
				if err != nil {
					return nil, false, err
				}
				if ok {
					return row, true, nil
				}
			}
			e.loaded = false
		}

		row, ok, err := e.child.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		e.cur = row
		nodeV := row[e.op.FromVar]
		if nodeV.Kind() != value.KindNode {
			continue
		}
		rec, err := e.ctx.Nodes.ReadNode(nodeV.NodeID())
		if err != nil {
			return nil, false, err
		}
		ids, err := adjacencyIDs(e.ctx, nodeV.NodeID(), rec, e.op.Dir)
		if err != nil {
			return nil, false, err
		}
		e.relIDs = ids
		e.pos = 0
		e.loaded = true
	}
}

// adjacencyIDs returns the candidate relationship IDs for dir, unioning
// both directions when dir is unspecified.
func adjacencyIDs(ctx *Context, nodeID uint64, rec store.NodeRecord, dir ast.Direction) ([]uint64, error) {
	switch dir {
	case ast.DirOut:
		return ctx.Adj.Out(nodeID, rec.OutHead, rec.InHead)
	case ast.DirIn:
		return ctx.Adj.In(nodeID, rec.OutHead, rec.InHead)
	default:
		out, err := ctx.Adj.Out(nodeID, rec.OutHead, rec.InHead)
		if err != nil {
			return nil, err
		}
		in, err := ctx.Adj.In(nodeID, rec.OutHead, rec.InHead)
		if err != nil {
			return nil, err
		}
		return append(append([]uint64{}, out...), in...), nil
	}
}

func (e *expandIter) yield(relID uint64) (Row, bool, error) {
	rec, err := e.ctx.Rels.ReadRel(relID)
	if err != nil {
		return nil, false, err
	}
	if !rec.Visible(e.ctx.Snapshot) {
		return nil, false, nil
	}
	if len(e.op.RelTypes) > 0 && !containsType(e.op.RelTypes, rec.TypeID) {
		return nil, false, nil
	}
	other := otherEndpoint(e.cur[e.op.FromVar].NodeID(), rec, e.op.Dir)
	row := e.cur.Clone()
	if e.op.RelVar != "" {
		row[e.op.RelVar] = value.RelRef(relID)
	}
	row[e.op.ToVar] = value.NodeRef(other)
	return row, true, nil
}

func containsType(types []uint32, t uint32) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// otherEndpoint returns whichever of Src/Dst isn't from; direction has
// already been used to select the candidate relationship set, so the
// endpoint resolution itself is direction-agnostic - a self-loop
// (Src == Dst == from) resolves to from, same as the record's other
// field.
func otherEndpoint(from uint64, rec store.RelRecord, dir ast.Direction) uint64 {
	if rec.Src == from {
		return rec.Dst
	}
	return rec.Src
}
