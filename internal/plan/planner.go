package plan

import (
	"context"
	"fmt"

	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/catalog"
	"github.com/graphdb-core/graphdb/internal/errs"
	"github.com/graphdb-core/graphdb/internal/index"
	"github.com/graphdb-core/graphdb/internal/value"
)

var aggregateFuncs = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true, "collect": true,
}

// Planner lowers a parsed ast.Statement into a PhysicalOp tree, resolving
// label/type/property-key names against the catalog and consulting the
// label index for cardinality estimates (spec section 4.6).
type Planner struct {
	cat    *catalog.Catalog
	labels *index.LabelIndex
	types  *index.TypeIndex
	cache  *Cache
}

func NewPlanner(cat *catalog.Catalog, labels *index.LabelIndex, types *index.TypeIndex, cache *Cache) *Planner {
	return &Planner{cat: cat, labels: labels, types: types, cache: cache}
}

// Plan returns the physical plan for stmt, serving a cached plan when the
// canonical fingerprint (parameters erased) has been seen before (spec
// section 4.6: plan cache keyed by AST fingerprint, LRU+TTL, xxh3 hash).
func (p *Planner) Plan(ctx context.Context, stmt *ast.Statement) (*PhysicalOp, error) {
	fp := Fingerprint(stmt)
	if p.cache != nil {
		if cached, ok := p.cache.Get(fp); ok {
			return cached, nil
		}
	}

	root, err := p.build(ctx, stmt)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.Put(fp, root)
	}
	return root, nil
}

func (p *Planner) build(ctx context.Context, stmt *ast.Statement) (*PhysicalOp, error) {
	var root *PhysicalOp
	for _, c := range stmt.Clauses {
		next, err := p.buildClause(ctx, c, root)
		if err != nil {
			return nil, err
		}
		root = next
	}
	if root == nil {
		return nil, fmt.Errorf("%w: empty statement", errs.ErrPlanError)
	}
	return root, nil
}

func (p *Planner) buildClause(ctx context.Context, c ast.Clause, child *PhysicalOp) (*PhysicalOp, error) {
	switch cl := c.(type) {
	case *ast.MatchClause:
		return p.buildMatch(ctx, cl, child)
	case *ast.WhereClause:
		return &PhysicalOp{Kind: OpFilter, Children: children(child), Expr: cl.Predicate}, nil
	case *ast.ReturnClause:
		return p.buildProjection(ctx, cl.ProjectionClause, child, nil)
	case *ast.WithClause:
		return p.buildProjection(ctx, cl.ProjectionClause, child, cl.Where)
	case *ast.CreateClause:
		return p.buildCreate(ctx, cl, child)
	case *ast.SetClause:
		return p.buildSet(ctx, cl, child)
	case *ast.RemoveClause:
		return p.buildRemove(ctx, cl, child)
	case *ast.DeleteClause:
		return &PhysicalOp{
			Kind:         OpDeleteNode,
			Children:     children(child),
			Items:        itemsFromExprs(cl.Vars),
			DetachDelete: cl.Detach,
		}, nil
	case *ast.UnwindClause:
		return &PhysicalOp{Kind: OpUnwind, Children: children(child), Expr: cl.List, UnwindVar: cl.Var}, nil
	case *ast.MergeClause:
		return p.buildMerge(ctx, cl, child)
	case *ast.UnionClause:
		other, err := p.build(ctx, cl.Other)
		if err != nil {
			return nil, err
		}
		kids := []*PhysicalOp{child, other}
		join := &PhysicalOp{Kind: OpUnion, Children: kids, UnionAll: cl.All}
		if !cl.All {
			return &PhysicalOp{Kind: OpDistinct, Children: []*PhysicalOp{join}}, nil
		}
		return join, nil
	case *ast.CallClause:
		return nil, fmt.Errorf("%w: unknown procedure %q", errs.ErrPlanError, cl.Procedure)
	case *ast.ForeachClause:
		return nil, fmt.Errorf("%w: FOREACH is not supported by this planner", errs.ErrPlanError)
	default:
		return nil, fmt.Errorf("%w: unhandled clause %T", errs.ErrPlanError, c)
	}
}

func itemsFromExprs(exprs []ast.Expr) []ProjectItem {
	items := make([]ProjectItem, len(exprs))
	for i, e := range exprs {
		items[i] = ProjectItem{Expr: e}
	}
	return items
}

func children(child *PhysicalOp) []*PhysicalOp {
	if child == nil {
		return nil
	}
	return []*PhysicalOp{child}
}

// buildMatch implements the scan-selection, filter-pushdown, and
// pattern-ordering decisions from spec section 4.6, steps 1-4.
func (p *Planner) buildMatch(ctx context.Context, m *ast.MatchClause, outer *PhysicalOp) (*PhysicalOp, error) {
	ordered, err := p.orderPatterns(ctx, m.Patterns)
	if err != nil {
		return nil, err
	}

	var root *PhysicalOp
	for _, pat := range ordered {
		sub, err := p.buildPattern(ctx, pat)
		if err != nil {
			return nil, err
		}
		if root == nil {
			root = sub
		} else {
			root = &PhysicalOp{Kind: OpCrossJoin, Children: []*PhysicalOp{root, sub}}
		}
	}
	if outer != nil {
		if root == nil {
			root = outer
		} else {
			root = &PhysicalOp{Kind: OpCrossJoin, Children: []*PhysicalOp{outer, root}}
		}
	}
	if m.Where != nil {
		root = &PhysicalOp{Kind: OpFilter, Children: []*PhysicalOp{root}, Expr: m.Where}
	}
	return root, nil
}

// orderPatterns implements step 3: the pattern with the lowest estimated
// cardinality (via label bitmap counts) is scanned first.
func (p *Planner) orderPatterns(ctx context.Context, patterns []ast.PatternElement) ([]ast.PatternElement, error) {
	if len(patterns) <= 1 {
		return patterns, nil
	}
	type scored struct {
		pat   ast.PatternElement
		score uint64
	}
	scoredPats := make([]scored, len(patterns))
	for i, pat := range patterns {
		scoredPats[i] = scored{pat: pat, score: p.estimateCardinality(ctx, pat)}
	}
	// stable selection sort keeps original order among ties, good enough
	// for the small pattern counts a single MATCH clause has.
	for i := range scoredPats {
		min := i
		for j := i + 1; j < len(scoredPats); j++ {
			if scoredPats[j].score < scoredPats[min].score {
				min = j
			}
		}
		scoredPats[i], scoredPats[min] = scoredPats[min], scoredPats[i]
	}
	out := make([]ast.PatternElement, len(scoredPats))
	for i, s := range scoredPats {
		out[i] = s.pat
	}
	return out, nil
}

func (p *Planner) estimateCardinality(ctx context.Context, pat ast.PatternElement) uint64 {
	if len(pat.Nodes) == 0 || len(pat.Nodes[0].Labels) == 0 {
		return ^uint64(0) // AllNodesScan: treat as maximally expensive
	}
	id, ok, err := p.cat.LookupLabelID(ctx, pat.Nodes[0].Labels[0])
	if err != nil || !ok {
		return ^uint64(0)
	}
	return p.labels.Count(id)
}

func (p *Planner) buildPattern(ctx context.Context, pat ast.PatternElement) (*PhysicalOp, error) {
	if len(pat.Nodes) == 0 {
		return nil, fmt.Errorf("%w: empty pattern", errs.ErrPlanError)
	}
	// Nodes alternate with Rels within a single PatternElement - a second
	// disconnected node belongs in its own comma-separated PatternElement
	// (a Cartesian-product join, same as two separate MATCH patterns).
	// Catch that shape here instead of silently scanning only Nodes[0]
	// and dropping the rest.
	if len(pat.Nodes) != len(pat.Rels)+1 {
		return nil, fmt.Errorf("%w: pattern has %d node(s) but %d relationship hop(s); "+
			"disconnected nodes must be separate comma-separated patterns",
			errs.ErrPlanError, len(pat.Nodes), len(pat.Rels))
	}

	root, err := p.buildNodeScan(ctx, pat.Nodes[0])
	if err != nil {
		return nil, err
	}

	for i, rel := range pat.Rels {
		toNode := pat.Nodes[i+1]
		typeIDs, err := p.resolveTypes(ctx, rel.Types)
		if err != nil {
			return nil, err
		}

		if rel.VarLength {
			root = &PhysicalOp{
				Kind:     OpVarLengthExpand,
				Children: []*PhysicalOp{root},
				Dir:      rel.Dir,
				RelTypes: typeIDs,
				FromVar:  pat.Nodes[i].Var,
				ToVar:    toNode.Var,
				RelVar:   rel.Var,
				MinHops:  rel.MinHops,
				MaxHops:  rel.MaxHops,
			}
		} else {
			root = &PhysicalOp{
				Kind:     OpExpand,
				Children: []*PhysicalOp{root},
				Dir:      rel.Dir,
				RelTypes: typeIDs,
				FromVar:  pat.Nodes[i].Var,
				ToVar:    toNode.Var,
				RelVar:   rel.Var,
			}
		}

		if filter := p.pushdownFilter(toNode); filter != nil {
			filter.Children = []*PhysicalOp{root}
			root = filter
		}
	}
	return root, nil
}

func (p *Planner) buildNodeScan(ctx context.Context, n ast.NodePattern) (*PhysicalOp, error) {
	var op *PhysicalOp
	if len(n.Labels) > 0 {
		id, err := p.cat.GetOrCreateLabel(ctx, n.Labels[0])
		if err != nil {
			return nil, err
		}
		op = &PhysicalOp{Kind: OpNodeByLabel, Label: id, Items: []ProjectItem{{Alias: n.Var}}}
	} else {
		op = &PhysicalOp{Kind: OpAllNodesScan, Items: []ProjectItem{{Alias: n.Var}}}
	}

	// Additional labels beyond the first become LabelPredicate filters.
	for _, extra := range n.Labels[minInt(1, len(n.Labels)):] {
		op = &PhysicalOp{
			Kind:     OpFilter,
			Children: []*PhysicalOp{op},
			Expr:     &ast.LabelPredicate{Target: &ast.Variable{Name: n.Var}, Label: extra},
		}
	}

	if filter := p.pushdownFilter(n); filter != nil {
		filter.Children = []*PhysicalOp{op}
		op = filter
	}
	return op, nil
}

// pushdownFilter implements step 2: inline property equalities in a
// pattern become a Filter immediately after the scan/expand that bound
// the variable.
func (p *Planner) pushdownFilter(n ast.NodePattern) *PhysicalOp {
	if len(n.Props) == 0 {
		return nil
	}
	var pred ast.Expr
	for k, v := range n.Props {
		eq := &ast.BinaryExpr{
			Op:    ast.OpEq,
			Left:  &ast.PropertyAccess{Target: &ast.Variable{Name: n.Var}, Key: k},
			Right: v,
		}
		if pred == nil {
			pred = eq
		} else {
			pred = &ast.BinaryExpr{Op: ast.OpAnd, Left: pred, Right: eq}
		}
	}
	return &PhysicalOp{Kind: OpFilter, Expr: pred}
}

func (p *Planner) resolveTypes(ctx context.Context, names []string) ([]uint32, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]uint32, 0, len(names))
	for _, n := range names {
		id, err := p.cat.GetOrCreateType(ctx, n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// buildProjection implements step 5 (TopK fusion) and step 6
// (aggregation detection) for RETURN/WITH.
func (p *Planner) buildProjection(ctx context.Context, proj ast.ProjectionClause, child *PhysicalOp, extraWhere ast.Expr) (*PhysicalOp, error) {
	root := child
	items := make([]ProjectItem, len(proj.Items))
	for i, it := range proj.Items {
		items[i] = ProjectItem{Expr: it.Expr, Alias: it.Alias}
	}

	var err error
	root, items, err = p.hoistShortestPaths(ctx, root, items)
	if err != nil {
		return nil, err
	}

	if aggs, groupKeys, ok := splitAggregates(items); ok {
		root = &PhysicalOp{Kind: OpAggregate, Children: children(root), Aggs: aggs, GroupKeys: groupKeys}
	} else if !proj.Star {
		root = &PhysicalOp{Kind: OpProject, Children: children(root), Items: items, Distinct: proj.Distinct}
	}

	if extraWhere != nil {
		root = &PhysicalOp{Kind: OpFilter, Children: children(root), Expr: extraWhere}
	}
	if proj.Distinct && root.Kind != OpAggregate {
		root = &PhysicalOp{Kind: OpDistinct, Children: children(root)}
	}

	if len(proj.OrderBy) > 0 {
		keys := make([]OrderKey, len(proj.OrderBy))
		for i, o := range proj.OrderBy {
			keys[i] = OrderKey{Expr: o.Expr, Descending: o.Descending}
		}
		if proj.Limit != nil {
			if lit, ok := proj.Limit.(*ast.Literal); ok && lit.Value.Kind() == value.KindInt {
				root = &PhysicalOp{Kind: OpTopK, Children: children(root), OrderKeys: keys, K: int(lit.Value.Int())}
				if proj.Skip != nil {
					root = &PhysicalOp{Kind: OpSkip, Children: children(root), Expr: proj.Skip}
				}
				return root, nil
			}
		}
		root = &PhysicalOp{Kind: OpOrderBy, Children: children(root), OrderKeys: keys}
	}
	if proj.Skip != nil {
		root = &PhysicalOp{Kind: OpSkip, Children: children(root), Expr: proj.Skip}
	}
	if proj.Limit != nil {
		root = &PhysicalOp{Kind: OpLimit, Children: children(root), Expr: proj.Limit}
	}
	return root, nil
}

// hoistShortestPaths rewrites any top-level shortestPath(...)/
// allShortestPaths(...) projection item into an OpShortestPath operator
// layered onto root, binding the computed path(s) to a synthetic
// variable that the rewritten item now just reads - the same hoist a
// generic optimizer does for any expression with side-effecting or
// iterator-shaped evaluation that doesn't fit a plain scalar Eval call
// (spec section 6: "the path keywords shortestPath/allShortestPaths").
func (p *Planner) hoistShortestPaths(ctx context.Context, root *PhysicalOp, items []ProjectItem) (*PhysicalOp, []ProjectItem, error) {
	out := make([]ProjectItem, len(items))
	copy(out, items)
	for i, it := range out {
		sp, ok := it.Expr.(*ast.ShortestPathExpr)
		if !ok {
			continue
		}
		if len(sp.Pattern.Nodes) < 2 {
			return nil, nil, fmt.Errorf("%w: shortestPath requires two bound endpoints", errs.ErrPlanError)
		}
		var dir ast.Direction
		var typeIDs []uint32
		if len(sp.Pattern.Rels) > 0 {
			dir = sp.Pattern.Rels[0].Dir
			ids, err := p.resolveTypes(ctx, sp.Pattern.Rels[0].Types)
			if err != nil {
				return nil, nil, err
			}
			typeIDs = ids
		}
		pathVar := fmt.Sprintf("#shortestpath_%d", i)
		root = &PhysicalOp{
			Kind:     OpShortestPath,
			Children: children(root),
			SrcVar:   sp.Pattern.Nodes[0].Var,
			DstVar:   sp.Pattern.Nodes[len(sp.Pattern.Nodes)-1].Var,
			Dir:      dir,
			RelTypes: typeIDs,
			AllPaths: sp.All,
			PathVar:  pathVar,
		}
		out[i] = ProjectItem{Expr: &ast.Variable{Name: pathVar}, Alias: it.Alias}
	}
	return root, out, nil
}

func splitAggregates(items []ProjectItem) ([]AggSpec, []ProjectItem, bool) {
	var aggs []AggSpec
	var groupKeys []ProjectItem
	hasAgg := false
	for _, it := range items {
		if fn, ok := it.Expr.(*ast.FunctionCall); ok && aggregateFuncs[lower(fn.Name)] {
			hasAgg = true
			aggs = append(aggs, AggSpec{Func: lower(fn.Name), Arg: firstArg(fn), Star: fn.Star, Distinct: fn.Distinct, Alias: it.Alias})
		} else {
			groupKeys = append(groupKeys, it)
		}
	}
	if !hasAgg {
		return nil, nil, false
	}
	return aggs, groupKeys, true
}

func firstArg(fn *ast.FunctionCall) ast.Expr {
	if len(fn.Args) == 0 {
		return nil
	}
	return fn.Args[0]
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (p *Planner) buildCreate(ctx context.Context, cl *ast.CreateClause, child *PhysicalOp) (*PhysicalOp, error) {
	root := child
	for _, pat := range cl.Patterns {
		for _, n := range pat.Nodes {
			labelIDs := make([]uint32, len(n.Labels))
			for i, l := range n.Labels {
				id, err := p.cat.GetOrCreateLabel(ctx, l)
				if err != nil {
					return nil, err
				}
				labelIDs[i] = id
			}
			propItems, err := p.propItems(ctx, n.Props)
			if err != nil {
				return nil, err
			}
			root = &PhysicalOp{
				Kind: OpCreateNode, Children: children(root),
				NodeVar: n.Var, MergePatternLabels: labelIDs, Items: propItems,
			}
		}
		for i, r := range pat.Rels {
			typeIDs, err := p.resolveTypes(ctx, r.Types)
			if err != nil {
				return nil, err
			}
			var typeID uint32
			if len(typeIDs) > 0 {
				typeID = typeIDs[0]
			}
			propItems, err := p.propItems(ctx, r.Props)
			if err != nil {
				return nil, err
			}
			root = &PhysicalOp{
				Kind: OpCreateRel, Children: children(root),
				FromVar: pat.Nodes[i].Var, ToVar: pat.Nodes[i+1].Var, RelVar2: r.Var,
				Label: typeID, Dir: r.Dir, Items: propItems,
			}
		}
	}
	return root, nil
}

func (p *Planner) propItems(ctx context.Context, props map[string]ast.Expr) ([]ProjectItem, error) {
	items := make([]ProjectItem, 0, len(props))
	for k, v := range props {
		id, err := p.cat.GetOrCreateKey(ctx, k)
		if err != nil {
			return nil, err
		}
		items = append(items, ProjectItem{Expr: v, Alias: keyAlias(id)})
	}
	return items, nil
}

func keyAlias(id uint32) string { return fmt.Sprintf("#%d", id) }

func (p *Planner) buildSet(ctx context.Context, cl *ast.SetClause, child *PhysicalOp) (*PhysicalOp, error) {
	root := child
	for _, item := range cl.Items {
		if item.IsLabel {
			id, err := p.cat.GetOrCreateLabel(ctx, item.Label)
			if err != nil {
				return nil, err
			}
			root = &PhysicalOp{Kind: OpAddLabel, Children: children(root), Label: id, Items: []ProjectItem{{Expr: item.Target}}}
			continue
		}
		pa, ok := item.Target.(*ast.PropertyAccess)
		if !ok {
			return nil, fmt.Errorf("%w: SET target must be a property access or label", errs.ErrPlanError)
		}
		keyID, err := p.cat.GetOrCreateKey(ctx, pa.Key)
		if err != nil {
			return nil, err
		}
		root = &PhysicalOp{
			Kind: OpSetProperty, Children: children(root), PropKey: keyID,
			Items: []ProjectItem{{Expr: pa.Target}}, Expr: item.Value,
		}
	}
	return root, nil
}

func (p *Planner) buildRemove(ctx context.Context, cl *ast.RemoveClause, child *PhysicalOp) (*PhysicalOp, error) {
	root := child
	for _, item := range cl.Items {
		if item.IsLabel {
			id, err := p.cat.GetOrCreateLabel(ctx, item.Label)
			if err != nil {
				return nil, err
			}
			root = &PhysicalOp{Kind: OpRemoveLabel, Children: children(root), Label: id, Items: []ProjectItem{{Expr: item.Target}}}
			continue
		}
		pa, ok := item.Target.(*ast.PropertyAccess)
		if !ok {
			return nil, fmt.Errorf("%w: REMOVE target must be a property access or label", errs.ErrPlanError)
		}
		keyID, err := p.cat.GetOrCreateKey(ctx, pa.Key)
		if err != nil {
			return nil, err
		}
		root = &PhysicalOp{Kind: OpRemoveProperty, Children: children(root), PropKey: keyID, Items: []ProjectItem{{Expr: pa.Target}}}
	}
	return root, nil
}

func (p *Planner) buildMerge(ctx context.Context, cl *ast.MergeClause, child *PhysicalOp) (*PhysicalOp, error) {
	var onCreate, onMatch []ast.SetItem
	for _, a := range cl.Actions {
		if a.OnMatch {
			onMatch = append(onMatch, a.Sets...)
		} else {
			onCreate = append(onCreate, a.Sets...)
		}
	}
	pattern := cl.Pattern

	nodeLabels := make([][]uint32, len(pattern.Nodes))
	for i, n := range pattern.Nodes {
		ids := make([]uint32, 0, len(n.Labels))
		for _, l := range n.Labels {
			id, err := p.cat.GetOrCreateLabel(ctx, l)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		nodeLabels[i] = ids
	}

	relTypes := make([][]uint32, len(pattern.Rels))
	for i, rel := range pattern.Rels {
		ids := make([]uint32, 0, len(rel.Types))
		for _, tname := range rel.Types {
			id, err := p.cat.GetOrCreateType(ctx, tname)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		relTypes[i] = ids
	}

	var labelIDs []uint32
	if len(nodeLabels) > 0 {
		labelIDs = nodeLabels[0]
	}
	return &PhysicalOp{
		Kind: OpMerge, Children: children(child),
		MergePattern: &pattern, MergePatternLabels: labelIDs,
		MergeNodeLabels: nodeLabels, MergeRelTypes: relTypes,
		MergeOnCreate: onCreate, MergeOnMatch: onMatch,
	}, nil
}
