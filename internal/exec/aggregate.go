package exec

import (
	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/value"
)

// aggBucket accumulates one GROUP BY group's running aggregate state.
type aggBucket struct {
	groupRow Row
	counts   []int64
	sums     []float64
	sumIsInt []bool
	mins     []value.Value
	maxs     []value.Value
	haveMM   []bool
	collects [][]value.Value
	seen     []map[string]bool // per-agg seen-set, only populated when Distinct
}

// aggregateIter groups rows by GroupKeys and folds each group through
// op.Aggs, emitting one output row per group once the child is exhausted
// (spec section 4.6 Aggregate; spec section 8's invariant that COLLECT
// preserves first-occurrence insertion order per group).
type aggregateIter struct {
	ctx  *Context
	op   *plan.PhysicalOp
	rows []Row
	pos  int
}

func newAggregateIter(ctx *Context, child Iterator, op *plan.PhysicalOp) (*aggregateIter, error) {
	order := make([]string, 0)
	buckets := make(map[string]*aggBucket)

	for {
		row, ok, err := child.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		groupRow := make(Row, len(op.GroupKeys))
		var key string
		for _, gk := range op.GroupKeys {
			v, err := eval(ctx, row, gk.Expr)
			if err != nil {
				return nil, err
			}
			groupRow[gk.Alias] = v
			key += gk.Alias + ":" + value.SortKey(v) + ";"
		}
		b, ok := buckets[key]
		if !ok {
			b = &aggBucket{
				groupRow: groupRow,
				counts:   make([]int64, len(op.Aggs)),
				sums:     make([]float64, len(op.Aggs)),
				sumIsInt: make([]bool, len(op.Aggs)),
				mins:     make([]value.Value, len(op.Aggs)),
				maxs:     make([]value.Value, len(op.Aggs)),
				haveMM:   make([]bool, len(op.Aggs)),
				collects: make([][]value.Value, len(op.Aggs)),
				seen:     make([]map[string]bool, len(op.Aggs)),
			}
			for i, a := range op.Aggs {
				b.sumIsInt[i] = true
				if a.Distinct {
					b.seen[i] = make(map[string]bool)
				}
			}
			buckets[key] = b
			order = append(order, key)
		}
		for i, a := range op.Aggs {
			if err := foldAgg(ctx, row, b, i, a); err != nil {
				return nil, err
			}
		}
	}
	// Without grouping keys an empty input still yields one row: count is
	// 0, sum is 0, avg/min/max are null and collect is an empty list.
	if len(order) == 0 && len(op.GroupKeys) == 0 {
		buckets[""] = &aggBucket{
			groupRow: Row{},
			counts:   make([]int64, len(op.Aggs)),
			sums:     make([]float64, len(op.Aggs)),
			sumIsInt: make([]bool, len(op.Aggs)),
			haveMM:   make([]bool, len(op.Aggs)),
			collects: make([][]value.Value, len(op.Aggs)),
		}
		order = append(order, "")
	}

	rows := make([]Row, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		out := make(Row, len(op.GroupKeys)+len(op.Aggs))
		for k, v := range b.groupRow {
			out[k] = v
		}
		for i, a := range op.Aggs {
			out[a.Alias] = finishAgg(b, i, a)
		}
		rows = append(rows, out)
	}
	return &aggregateIter{ctx: ctx, op: op, rows: rows}, nil
}

func foldAgg(ctx *Context, row Row, b *aggBucket, i int, a plan.AggSpec) error {
	var v value.Value
	if !a.Star {
		var err error
		v, err = eval(ctx, row, a.Arg)
		if err != nil {
			return err
		}
		if v.IsNull() {
			// count(expr) and the other aggregates all skip nulls.
			return nil
		}
	}

	if a.Distinct && !a.Star {
		k := value.SortKey(v)
		if b.seen[i][k] {
			return nil
		}
		b.seen[i][k] = true
	}

	switch a.Func {
	case "count":
		b.counts[i]++
	case "sum", "avg":
		if !v.IsNumeric() {
			return runtimeErrorf("aggregate function applied to non-numeric value")
		}
		if v.Kind() != value.KindInt {
			b.sumIsInt[i] = false
		}
		b.sums[i] += v.Float()
		b.counts[i]++
	case "min":
		if !b.haveMM[i] {
			b.mins[i] = v
			b.haveMM[i] = true
		} else if cmp, ok := value.Compare(v, b.mins[i]); ok && cmp < 0 {
			b.mins[i] = v
		}
	case "max":
		if !b.haveMM[i] {
			b.maxs[i] = v
			b.haveMM[i] = true
		} else if cmp, ok := value.Compare(v, b.maxs[i]); ok && cmp > 0 {
			b.maxs[i] = v
		}
	case "collect":
		b.collects[i] = append(b.collects[i], v)
	default:
		return runtimeErrorf("unknown aggregate function: %s", a.Func)
	}
	return nil
}

func finishAgg(b *aggBucket, i int, a plan.AggSpec) value.Value {
	switch a.Func {
	case "count":
		return value.Int(b.counts[i])
	case "sum":
		if b.sumIsInt[i] {
			return value.Int(int64(b.sums[i]))
		}
		return value.Float(b.sums[i])
	case "avg":
		if b.counts[i] == 0 {
			return value.Null
		}
		return value.Float(b.sums[i] / float64(b.counts[i]))
	case "min":
		if !b.haveMM[i] {
			return value.Null
		}
		return b.mins[i]
	case "max":
		if !b.haveMM[i] {
			return value.Null
		}
		return b.maxs[i]
	case "collect":
		return value.List(b.collects[i])
	default:
		return value.Null
	}
}

func (a *aggregateIter) Next() (Row, bool, error) {
	if a.pos >= len(a.rows) {
		return nil, false, nil
	}
	row := a.rows[a.pos]
	a.pos++
	return row, true, nil
}
