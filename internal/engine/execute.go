package engine

import (
	"context"
	"sort"

	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/exec"
	"github.com/graphdb-core/graphdb/internal/metrics"
	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/value"
)

// ResultSet is execute's return value (spec section 6): an ordered list
// of column names and the rows produced, each cell a typed value.Value.
type ResultSet struct {
	Columns []string
	Rows    []exec.Row
}

// isWriteStatement reports whether stmt contains a clause that mutates
// the graph, determining whether Execute opens an implicit read or
// write transaction.
func isWriteStatement(stmt *ast.Statement) bool {
	for _, c := range stmt.Clauses {
		switch c.(type) {
		case *ast.CreateClause, *ast.SetClause, *ast.RemoveClause,
			*ast.DeleteClause, *ast.MergeClause, *ast.ForeachClause:
			return true
		}
	}
	return false
}

// Execute plans and runs stmt. If tx is nil, Execute opens its own
// read-only or read-write transaction (chosen by inspecting stmt) and
// commits or aborts it before returning; if tx is non-nil, the caller
// owns its lifecycle and must Commit/Abort it explicitly (spec section
// 6: "executes... within a fresh transaction, or within the
// caller-supplied one").
func (e *Engine) Execute(ctx context.Context, stmt *ast.Statement, params map[string]value.Value, tx *Tx) (*ResultSet, error) {
	timer := metrics.NewTimer()
	kind := "read"

	owned := tx == nil
	if owned {
		if isWriteStatement(stmt) {
			kind = "write"
			w, err := e.BeginWrite(ctx)
			if err != nil {
				return nil, err
			}
			tx = w
		} else {
			tx = e.BeginRead()
		}
	} else if tx.write != nil {
		kind = "write"
	}
	defer timer.ObserveDuration(e.metrics.QueryDuration.WithLabelValues(kind))

	rs, err := e.run(ctx, stmt, params, tx)

	if owned {
		if tx.write != nil {
			if err != nil {
				_ = e.Abort(tx)
			} else if cerr := e.Commit(ctx, tx); cerr != nil {
				err = cerr
			}
		} else {
			_ = e.Abort(tx)
		}
	}

	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (e *Engine) run(ctx context.Context, stmt *ast.Statement, params map[string]value.Value, tx *Tx) (*ResultSet, error) {
	op, err := e.planner.Plan(ctx, stmt)
	if err != nil {
		return nil, err
	}

	ectx := &exec.Context{
		Ctx:      ctx,
		Nodes:    e.nodes,
		Rels:     e.rels,
		Props:    e.props,
		Cat:      e.cat,
		Labels:   e.labels,
		Types:    e.types,
		Adj:      e.adj,
		PropIdx:  e.propIdx,
		Snapshot: tx.snapshot(),
		Params:   params,
		Cancelled: func() bool {
			return ctx.Err() != nil
		},
	}
	if tx.write != nil {
		ectx.Write = &exec.WriteState{
			TxID:     tx.write.ID(),
			NewEpoch: tx.write.Snapshot() + 1,
		}
	}

	it, err := exec.Build(ectx, op)
	if err != nil {
		return nil, err
	}
	rows, err := exec.Drain(it)
	if err != nil {
		return nil, err
	}

	if tx.write != nil {
		tx.frames = append(tx.frames, ectx.Write.Frames...)
	}

	return &ResultSet{Columns: columnsOf(op, rows), Rows: rows}, nil
}

// columnsOf derives the ResultSet's ordered column list from the final
// projection/aggregation in the plan, falling back to the first row's
// keys (sorted) for a bare `RETURN *` or a write statement with no
// RETURN clause at all.
func columnsOf(op *plan.PhysicalOp, rows []exec.Row) []string {
	if names := projectedColumns(op); names != nil {
		return names
	}
	if len(rows) == 0 {
		return nil
	}
	names := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func projectedColumns(op *plan.PhysicalOp) []string {
	switch op.Kind {
	case plan.OpProject:
		names := make([]string, len(op.Items))
		for i, it := range op.Items {
			names[i] = it.Alias
		}
		return names
	case plan.OpAggregate:
		names := make([]string, 0, len(op.GroupKeys)+len(op.Aggs))
		for _, gk := range op.GroupKeys {
			names = append(names, gk.Alias)
		}
		for _, a := range op.Aggs {
			names = append(names, a.Alias)
		}
		return names
	case plan.OpDistinct, plan.OpOrderBy, plan.OpTopK, plan.OpSkip, plan.OpLimit:
		if len(op.Children) == 1 {
			return projectedColumns(op.Children[0])
		}
	}
	return nil
}
