package exec

import (
	"container/heap"
	"sort"

	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/value"
)

// orderByIter sorts the full materialized input by op.OrderKeys (spec
// section 4.6 OrderBy). Rows incomparable under value.Compare (mixed
// types) sort as equal, preserving their relative input order since
// sort.SliceStable is used.
type orderByIter struct {
	rows []Row
	pos  int
}

func newOrderByIter(ctx *Context, child Iterator, op *plan.PhysicalOp) (*orderByIter, error) {
	rows, err := drainSorted(ctx, child, op)
	if err != nil {
		return nil, err
	}
	return &orderByIter{rows: rows}, nil
}

func drainSorted(ctx *Context, child Iterator, op *plan.PhysicalOp) ([]Row, error) {
	var rows []Row
	for {
		row, ok, err := child.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	sortErr := error(nil)
	sort.SliceStable(rows, func(i, j int) bool {
		less, err := rowLess(ctx, rows[i], rows[j], op.OrderKeys)
		if err != nil {
			sortErr = err
		}
		return less
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return rows, nil
}

func rowLess(ctx *Context, a, b Row, keys []plan.OrderKey) (bool, error) {
	for _, k := range keys {
		av, err := eval(ctx, a, k.Expr)
		if err != nil {
			return false, err
		}
		bv, err := eval(ctx, b, k.Expr)
		if err != nil {
			return false, err
		}
		cmp, ok := value.Compare(av, bv)
		if !ok || cmp == 0 {
			continue
		}
		if k.Descending {
			return cmp > 0, nil
		}
		return cmp < 0, nil
	}
	return false, nil
}

func (o *orderByIter) Next() (Row, bool, error) {
	if o.pos >= len(o.rows) {
		return nil, false, nil
	}
	row := o.rows[o.pos]
	o.pos++
	return row, true, nil
}

// topKHeap is a max-heap (by the ORDER BY comparator's "worse than"
// sense) over at most K rows, used to fuse ORDER BY + LIMIT into one
// bounded pass (spec section 4.6's TopK fusion) instead of a full sort.
type topKHeap struct {
	rows []Row
	ctx  *Context
	keys []plan.OrderKey
	err  error
}

func (h *topKHeap) Len() int      { return len(h.rows) }
func (h *topKHeap) Swap(i, j int) { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *topKHeap) Less(i, j int) bool {
	// Inverted: heap.Pop removes the worst-ranked row first so the root
	// is always the current worst of the retained set.
	less, err := rowLess(h.ctx, h.rows[i], h.rows[j], h.keys)
	if err != nil {
		h.err = err
	}
	return !less
}
func (h *topKHeap) Push(x any) { h.rows = append(h.rows, x.(Row)) }
func (h *topKHeap) Pop() any {
	n := len(h.rows)
	x := h.rows[n-1]
	h.rows = h.rows[:n-1]
	return x
}

type topKIter struct {
	rows []Row
	pos  int
}

func newTopKIter(ctx *Context, child Iterator, op *plan.PhysicalOp) (*topKIter, error) {
	h := &topKHeap{ctx: ctx, keys: op.OrderKeys}
	for {
		row, ok, err := child.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		heap.Push(h, row)
		if h.err != nil {
			return nil, h.err
		}
		if h.Len() > op.K {
			heap.Pop(h)
			if h.err != nil {
				return nil, h.err
			}
		}
	}
	// Pop everything off to get ascending "worst first" order, then reverse.
	out := make([]Row, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Row)
		if h.err != nil {
			return nil, h.err
		}
	}
	return &topKIter{rows: out}, nil
}

func (t *topKIter) Next() (Row, bool, error) {
	if t.pos >= len(t.rows) {
		return nil, false, nil
	}
	row := t.rows[t.pos]
	t.pos++
	return row, true, nil
}
