package exec

import (
	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/value"
)

// skipIter drops the first N rows, N evaluated once against an empty row
// (spec section 4.6: SKIP takes an integer literal or parameter, not a
// per-row expression).
type skipIter struct {
	child   Iterator
	n       int64
	skipped int64
}

func newSkipIter(ctx *Context, child Iterator, op *plan.PhysicalOp) (*skipIter, error) {
	n, err := evalCount(ctx, op.Expr)
	if err != nil {
		return nil, err
	}
	return &skipIter{child: child, n: n}, nil
}

func (s *skipIter) Next() (Row, bool, error) {
	for s.skipped < s.n {
		_, ok, err := s.child.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		s.skipped++
	}
	return s.child.Next()
}

// limitIter caps the row count at N.
type limitIter struct {
	child   Iterator
	n       int64
	emitted int64
}

func newLimitIter(ctx *Context, child Iterator, op *plan.PhysicalOp) (*limitIter, error) {
	n, err := evalCount(ctx, op.Expr)
	if err != nil {
		return nil, err
	}
	return &limitIter{child: child, n: n}, nil
}

func (l *limitIter) Next() (Row, bool, error) {
	if l.emitted >= l.n {
		return nil, false, nil
	}
	row, ok, err := l.child.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	l.emitted++
	return row, true, nil
}

func evalCount(ctx *Context, expr ast.Expr) (int64, error) {
	v, err := eval(ctx, Row{}, expr)
	if err != nil {
		return 0, err
	}
	if v.Kind() != value.KindInt {
		return 0, runtimeErrorf("SKIP/LIMIT requires an integer value")
	}
	if v.Int() < 0 {
		return 0, runtimeErrorf("SKIP/LIMIT requires a non-negative value")
	}
	return v.Int(), nil
}

// unwindIter expands a list-valued expression into one row per element,
// bound to op.UnwindVar (spec section 4.6 Unwind). A non-list value is
// treated as a single-element list, and null unwinds to zero rows.
type unwindIter struct {
	ctx    *Context
	child  Iterator
	op     *plan.PhysicalOp
	curRow Row
	items  []value.Value
	pos    int
	loaded bool
}

func (u *unwindIter) Next() (Row, bool, error) {
	for {
		if u.loaded {
			if u.pos < len(u.items) {
				row := u.curRow.Clone()
				row[u.op.UnwindVar] = u.items[u.pos]
				u.pos++
				return row, true, nil
			}
			u.loaded = false
		}

		row, ok, err := u.child.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		u.curRow = row
		v, err := eval(u.ctx, row, u.op.Expr)
		if err != nil {
			return nil, false, err
		}
		switch v.Kind() {
		case value.KindNull:
			u.items = nil
		case value.KindList:
			u.items = v.List()
		default:
			u.items = []value.Value{v}
		}
		u.pos = 0
		u.loaded = true
	}
}

// unionIter concatenates left then right (spec section 4.6 Union). UNION
// vs UNION ALL distinctness is handled by wrapping the result in
// distinctIter at the planner level, not here.
type unionIter struct {
	ctx       *Context
	left      Iterator
	right     Iterator
	leftDone  bool
}

func (u *unionIter) Next() (Row, bool, error) {
	if !u.leftDone {
		row, ok, err := u.left.Next()
		if err != nil {
			return nil, false, err
		}
		if ok {
			return row, true, nil
		}
		u.leftDone = true
	}
	return u.right.Next()
}
