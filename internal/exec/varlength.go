package exec

import (
	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/value"
)

// walkFrame is one partial path in the variable-length BFS frontier.
type walkFrame struct {
	node    uint64
	visited map[uint64]bool // nodes visited within this path only (spec: "walks, not trails")
	length  int
}

// varLengthIter implements VariableLengthExpand: BFS from each bound
// source node, emitting one row per path whose length falls in
// [MinHops, MaxHops], respecting the no-revisit-within-path rule (spec
// section 4.6).
type varLengthIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp

	curRow  Row
	results []uint64 // node IDs reached, queued for emission once computed per input row
	pos     int
	loaded  bool
}

func (v *varLengthIter) Next() (Row, bool, error) {
	for {
		if err := v.ctx.checkCancelled(); err != nil {
			return nil, false, err
		}
		if v.loaded {
			for v.pos < len(v.results) {
				target := v.results[v.pos]
				v.pos++
				row := v.curRow.Clone()
				row[v.op.ToVar] = value.NodeRef(target)
				return row, true, nil
			}
			v.loaded = false
		}

		row, ok, err := v.child.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		v.curRow = row
		nodeV := row[v.op.FromVar]
		if nodeV.Kind() != value.KindNode {
			continue
		}
		results, err := v.walk(nodeV.NodeID())
		if err != nil {
			return nil, false, err
		}
		v.results = results
		v.pos = 0
		v.loaded = true
	}
}

func (v *varLengthIter) walk(src uint64) ([]uint64, error) {
	var out []uint64
	if v.op.MinHops == 0 {
		out = append(out, src)
	}

	frontier := []walkFrame{{node: src, visited: map[uint64]bool{src: true}, length: 0}}
	for len(frontier) > 0 && frontier[0].length < v.op.MaxHops {
		var next []walkFrame
		for _, f := range frontier {
			rec, err := v.ctx.Nodes.ReadNode(f.node)
			if err != nil {
				return nil, err
			}
			relIDs, err := adjacencyIDs(v.ctx, f.node, rec, v.op.Dir)
			if err != nil {
				return nil, err
			}
			for _, relID := range relIDs {
				rel, err := v.ctx.Rels.ReadRel(relID)
				if err != nil {
					return nil, err
				}
				if !rel.Visible(v.ctx.Snapshot) {
					continue
				}
				if len(v.op.RelTypes) > 0 && !containsType(v.op.RelTypes, rel.TypeID) {
					continue
				}
				other := otherEndpoint(f.node, rel, v.op.Dir)
				if f.visited[other] {
					continue
				}
				length := f.length + 1
				visited := make(map[uint64]bool, len(f.visited)+1)
				for k := range f.visited {
					visited[k] = true
				}
				visited[other] = true
				if length >= v.op.MinHops {
					out = append(out, other)
				}
				next = append(next, walkFrame{node: other, visited: visited, length: length})
			}
		}
		frontier = next
	}
	return out, nil
}
