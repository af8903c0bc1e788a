package exec

import (
	"sort"
	"strings"

	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/value"
)

// projectIter evaluates op.Items against each input row, producing a new
// row keyed by alias (spec section 4.6 Project). WITH/RETURN both lower
// to this operator; the planner distinguishes them only by whether a
// Distinct/Aggregate/OrderBy wraps the projection.
type projectIter struct {
	ctx   *Context
	child Iterator
	op    *plan.PhysicalOp
}

func (p *projectIter) Next() (Row, bool, error) {
	row, ok, err := p.child.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	out := make(Row, len(p.op.Items))
	for _, item := range p.op.Items {
		v, err := eval(p.ctx, row, item.Expr)
		if err != nil {
			return nil, false, err
		}
		out[item.Alias] = v
	}
	return out, true, nil
}

// distinctIter drops rows whose full tuple (rendered via value.SortKey,
// the same canonicalization the property index uses) has already been
// seen (spec section 4.6 Distinct).
type distinctIter struct {
	child Iterator
	seen  map[string]bool
}

func rowKey(row Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte(':')
		sb.WriteString(value.SortKey(row[k]))
		sb.WriteByte(';')
	}
	return sb.String()
}

func (d *distinctIter) Next() (Row, bool, error) {
	for {
		row, ok, err := d.child.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		k := rowKey(row)
		if d.seen[k] {
			continue
		}
		d.seen[k] = true
		return row, true, nil
	}
}
