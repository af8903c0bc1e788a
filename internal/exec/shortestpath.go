package exec

import (
	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/value"
)

// shortestPathIter implements ShortestPath: a breadth-first search that
// expands from the bound SrcVar node only (not from both ends) until it
// reaches DstVar, returning the first path found. AllShortestPaths
// (op.AllPaths) instead returns every path tied for the minimum length.
type shortestPathIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp

	results []value.Path
	pos     int
	loaded  bool
	curRow  Row
}

func (s *shortestPathIter) Next() (Row, bool, error) {
	for {
		if s.loaded {
			for s.pos < len(s.results) {
				p := s.results[s.pos]
				s.pos++
				row := s.curRow.Clone()
				row[s.op.PathVar] = value.PathRef(p)
				return row, true, nil
			}
			s.loaded = false
		}

		row, ok, err := s.child.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		s.curRow = row
		srcV, dstV := row[s.op.SrcVar], row[s.op.DstVar]
		if srcV.Kind() != value.KindNode || dstV.Kind() != value.KindNode {
			continue
		}
		paths, err := s.search(srcV.NodeID(), dstV.NodeID())
		if err != nil {
			return nil, false, err
		}
		s.results = paths
		s.pos = 0
		s.loaded = true
	}
}

type bfsNode struct {
	node  uint64
	rel   uint64
	from  *bfsNode
}

func (p *bfsNode) toPath() value.Path {
	var nodes []uint64
	var rels []uint64
	for n := p; n != nil; n = n.from {
		nodes = append([]uint64{n.node}, nodes...)
		if n.from != nil {
			rels = append([]uint64{n.rel}, rels...)
		}
	}
	return value.Path{Nodes: nodes, Rels: rels}
}

// search performs a single-direction BFS from src, capped at
// maxSearchHops to bound pathological graphs, and returns either the
// first path found or, for AllPaths, every path at that minimal length.
func (s *shortestPathIter) search(src, dst uint64) ([]value.Path, error) {
	const maxSearchHops = 64
	if src == dst {
		return []value.Path{{Nodes: []uint64{src}}}, nil
	}

	// depth is the hop count at which each node was first reached. With
	// AllPaths a node may be entered again at that same depth, so every
	// tied path keeps its own parent chain.
	depth := map[uint64]int{src: 0}
	frontier := []*bfsNode{{node: src}}
	var found []*bfsNode

	for hop := 0; hop < maxSearchHops && found == nil; hop++ {
		var next []*bfsNode
		for _, f := range frontier {
			rec, err := s.ctx.Nodes.ReadNode(f.node)
			if err != nil {
				return nil, err
			}
			relIDs, err := adjacencyIDs(s.ctx, f.node, rec, s.op.Dir)
			if err != nil {
				return nil, err
			}
			for _, relID := range relIDs {
				rel, err := s.ctx.Rels.ReadRel(relID)
				if err != nil {
					return nil, err
				}
				if !rel.Visible(s.ctx.Snapshot) {
					continue
				}
				if len(s.op.RelTypes) > 0 && !containsType(s.op.RelTypes, rel.TypeID) {
					continue
				}
				other := otherEndpoint(f.node, rel, s.op.Dir)
				candidate := &bfsNode{node: other, rel: relID, from: f}
				if other == dst {
					found = append(found, candidate)
					if !s.op.AllPaths {
						break
					}
					continue
				}
				if d, seen := depth[other]; seen && !(s.op.AllPaths && d == hop+1) {
					continue
				}
				depth[other] = hop + 1
				next = append(next, candidate)
			}
			if found != nil && !s.op.AllPaths {
				break
			}
		}
		if found != nil {
			break
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	paths := make([]value.Path, 0, len(found))
	for _, f := range found {
		paths = append(paths, f.toPath())
	}
	return paths, nil
}
