package exec

import (
	"fmt"

	"github.com/graphdb-core/graphdb/internal/plan"
)

// Iterator is the pull-based interface every physical operator
// implements (spec section 4.6: "all pipelined, pull-based"). Next
// returns ok=false once the operator is exhausted; a nil error and
// ok=false together mean normal end of stream.
type Iterator interface {
	Next() (Row, bool, error)
}

// Build lowers one plan.PhysicalOp (and its children, recursively) into
// an executable Iterator.
func Build(ctx *Context, op *plan.PhysicalOp) (Iterator, error) {
	// OpCrossJoin rebuilds its right-hand operand fresh per left row (a
	// nested-loop join needs a rewindable inner iterator), so it must not
	// share the eager single-build-per-child path the other operators use.
	if op.Kind == plan.OpCrossJoin {
		left, err := Build(ctx, op.Children[0])
		if err != nil {
			return nil, err
		}
		rightOp := op.Children[1]
		return newCrossJoin(ctx, left, func() (Iterator, error) { return Build(ctx, rightOp) }), nil
	}

	var kids []Iterator
	for _, c := range op.Children {
		it, err := Build(ctx, c)
		if err != nil {
			return nil, err
		}
		kids = append(kids, it)
	}
	// A single-child operator with no planned child (a statement that
	// opens with CREATE/MERGE rather than a MATCH) still runs exactly
	// once, against one empty row - same as Cypher's implicit single
	// input row for a leading write clause.
	if len(kids) == 0 && op.Kind != plan.OpAllNodesScan && op.Kind != plan.OpNodeByLabel {
		kids = append(kids, &unitIter{})
	}

	switch op.Kind {
	case plan.OpAllNodesScan:
		return newAllNodesScan(ctx, op), nil
	case plan.OpNodeByLabel:
		return newNodeByLabelScan(ctx, op), nil
	case plan.OpFilter:
		return &filterIter{ctx: ctx, child: kids[0], pred: op.Expr}, nil
	case plan.OpExpand:
		return &expandIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpVarLengthExpand:
		return &varLengthIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpShortestPath:
		return &shortestPathIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpProject:
		return &projectIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpDistinct:
		return &distinctIter{child: kids[0], seen: make(map[string]bool)}, nil
	case plan.OpAggregate:
		return newAggregateIter(ctx, kids[0], op)
	case plan.OpOrderBy:
		return newOrderByIter(ctx, kids[0], op)
	case plan.OpTopK:
		return newTopKIter(ctx, kids[0], op)
	case plan.OpSkip:
		return newSkipIter(ctx, kids[0], op)
	case plan.OpLimit:
		return newLimitIter(ctx, kids[0], op)
	case plan.OpUnwind:
		return &unwindIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpUnion:
		return &unionIter{ctx: ctx, left: kids[0], right: kids[1]}, nil
	case plan.OpCreateNode:
		return &createNodeIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpCreateRel:
		return &createRelIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpSetProperty:
		return &setPropertyIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpRemoveProperty:
		return &removePropertyIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpAddLabel:
		return &addLabelIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpRemoveLabel:
		return &removeLabelIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpDeleteNode:
		return &deleteIter{ctx: ctx, child: kids[0], op: op}, nil
	case plan.OpMerge:
		return newMergeIter(ctx, kids[0], op)
	default:
		return nil, fmt.Errorf("exec: unhandled operator %s", op.Kind)
	}
}

// Drain pulls every row from it, primarily for write statements whose
// side effects matter more than their row stream and for tests.
func Drain(it Iterator) ([]Row, error) {
	var rows []Row
	for {
		row, ok, err := it.Next()
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}
