package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/config"
	"github.com/graphdb-core/graphdb/internal/index"
	"github.com/graphdb-core/graphdb/internal/value"
)

func cfgAt(dir string) config.Config {
	cfg := config.Default()
	cfg.Dir = dir
	return cfg
}

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(context.Background(), cfgAt(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func indexKeyOf(label, key uint32) index.PropKey {
	return index.PropKey{Label: label, Key: key}
}

func must(t *testing.T, rs *ResultSet, err error) *ResultSet {
	t.Helper()
	require.NoError(t, err)
	return rs
}

// lit wraps a value.Value as a Literal expression.
func lit(v value.Value) ast.Expr { return &ast.Literal{Value: v} }

func variable(name string) ast.Expr { return &ast.Variable{Name: name} }

func prop(varName, key string) ast.Expr {
	return &ast.PropertyAccess{Target: variable(varName), Key: key}
}

func call(name string, star bool, args ...ast.Expr) ast.Expr {
	return &ast.FunctionCall{Name: name, Args: args, Star: star}
}

// createScenarioGraph builds the Alice/Bob graph from spec section 8,
// scenario 1: two Person nodes and a single KNOWS relationship.
func createScenarioGraph(t *testing.T, e *Engine, ctx context.Context) {
	t.Helper()
	stmt := &ast.Statement{Clauses: []ast.Clause{
		&ast.CreateClause{Patterns: []ast.PatternElement{
			{Nodes: []ast.NodePattern{{
				Var: "a", Labels: []string{"Person"},
				Props: map[string]ast.Expr{"name": lit(value.Str("Alice")), "age": lit(value.Int(30))},
			}}},
		}},
		&ast.CreateClause{Patterns: []ast.PatternElement{
			{Nodes: []ast.NodePattern{{
				Var: "b", Labels: []string{"Person"},
				Props: map[string]ast.Expr{"name": lit(value.Str("Bob")), "age": lit(value.Int(40))},
			}}},
		}},
	}}
	_, err := e.Execute(ctx, stmt, nil, nil)
	require.NoError(t, err)

	// CREATE (a)-[:KNOWS {since:2020}]->(b), addressed by property match
	// since the statement above has finished and its bindings do not
	// carry over to a new Execute call.
	connect := &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{
			{Nodes: []ast.NodePattern{{Var: "a", Labels: []string{"Person"}, Props: map[string]ast.Expr{"name": lit(value.Str("Alice"))}}}},
			{Nodes: []ast.NodePattern{{Var: "b", Labels: []string{"Person"}, Props: map[string]ast.Expr{"name": lit(value.Str("Bob"))}}}},
		}},
		&ast.CreateClause{Patterns: []ast.PatternElement{{
			Nodes: []ast.NodePattern{{Var: "a"}, {Var: "b"}},
			Rels: []ast.RelPattern{{
				Var: "r", Types: []string{"KNOWS"}, Dir: ast.DirOut,
				Props:   map[string]ast.Expr{"since": lit(value.Int(2020))},
				MinHops: 1, MaxHops: 1,
			}},
		}}},
	}}
	_, err = e.Execute(ctx, connect, nil, nil)
	require.NoError(t, err)
}

// Scenario 1: filter + order by.
func TestScenario1FilterOrderBy(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	createScenarioGraph(t, e, ctx)

	stmt := &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{
			Patterns: []ast.PatternElement{{Nodes: []ast.NodePattern{{Var: "p", Labels: []string{"Person"}}}}},
			Where:    &ast.BinaryExpr{Op: ast.OpGte, Left: prop("p", "age"), Right: lit(value.Int(30))},
		},
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{
			Items:   []ast.ReturnItem{{Expr: prop("p", "name"), Alias: "name"}},
			OrderBy: []ast.OrderItem{{Expr: prop("p", "age")}},
		}},
	}}
	rs := must(t, e.Execute(ctx, stmt, nil, nil))
	require.Len(t, rs.Rows, 2)
	require.Equal(t, "Alice", rs.Rows[0]["name"].Str())
	require.Equal(t, "Bob", rs.Rows[1]["name"].Str())
}

// Scenario 2: cross-product count.
func TestScenario2CartesianCount(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	createScenarioGraph(t, e, ctx)

	stmt := &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{
			{Nodes: []ast.NodePattern{{Var: "p1", Labels: []string{"Person"}}}},
			{Nodes: []ast.NodePattern{{Var: "p2", Labels: []string{"Person"}}}},
		}},
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{
			Items: []ast.ReturnItem{{Expr: call("count", true), Alias: "count"}},
		}},
	}}
	rs := must(t, e.Execute(ctx, stmt, nil, nil))
	require.Len(t, rs.Rows, 1)
	require.Equal(t, int64(4), rs.Rows[0]["count"].Int())
}

// Scenario 3: single-hop expand.
func TestScenario3Expand(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	createScenarioGraph(t, e, ctx)

	stmt := &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{{
			Nodes: []ast.NodePattern{
				{Var: "a", Labels: []string{"Person"}, Props: map[string]ast.Expr{"name": lit(value.Str("Alice"))}},
				{Var: "b"},
			},
			Rels: []ast.RelPattern{{Types: []string{"KNOWS"}, Dir: ast.DirOut, MinHops: 1, MaxHops: 1}},
		}}},
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{
			Items: []ast.ReturnItem{{Expr: prop("b", "name"), Alias: "name"}},
		}},
	}}
	rs := must(t, e.Execute(ctx, stmt, nil, nil))
	require.Len(t, rs.Rows, 1)
	require.Equal(t, "Bob", rs.Rows[0]["name"].Str())
}

// Scenario 4: DETACH DELETE removes nodes and incident relationships.
func TestScenario4DetachDelete(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	createScenarioGraph(t, e, ctx)

	del := &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{{Nodes: []ast.NodePattern{{Var: "n", Labels: []string{"Person"}}}}}},
		&ast.DeleteClause{Vars: []ast.Expr{variable("n")}, Detach: true},
	}}
	_, err := e.Execute(ctx, del, nil, nil)
	require.NoError(t, err)

	count := &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{{Nodes: []ast.NodePattern{{Var: "n"}}}}},
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{
			Items: []ast.ReturnItem{{Expr: call("count", true), Alias: "count"}},
		}},
	}}
	rs := must(t, e.Execute(ctx, count, nil, nil))
	require.Len(t, rs.Rows, 1)
	require.Equal(t, int64(0), rs.Rows[0]["count"].Int())
}

// Scenario 5: string/list literal operators, no graph state required.
func TestScenario5LiteralExpressions(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	concat := &ast.Statement{Clauses: []ast.Clause{
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{Items: []ast.ReturnItem{{
			Expr: &ast.BinaryExpr{
				Op:   ast.OpAdd,
				Left: &ast.BinaryExpr{Op: ast.OpAdd, Left: lit(value.Str("Hello")), Right: lit(value.Str(" "))},
				Right: lit(value.Str("World")),
			},
			Alias: "s",
		}}},
	}}}
	rs := must(t, e.Execute(ctx, concat, nil, nil))
	require.Len(t, rs.Rows, 1)
	require.Equal(t, "Hello World", rs.Rows[0]["s"].Str())

	slice := &ast.Statement{Clauses: []ast.Clause{
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{Items: []ast.ReturnItem{{
			Expr: &ast.SliceExpr{
				List: &ast.ListLiteral{Items: []ast.Expr{
					lit(value.Int(1)), lit(value.Int(2)), lit(value.Int(3)), lit(value.Int(4)), lit(value.Int(5)),
				}},
				Lo: lit(value.Int(1)), Hi: lit(value.Int(3)),
			},
			Alias: "sliced",
		}}},
	}}}
	rs = must(t, e.Execute(ctx, slice, nil, nil))
	require.Len(t, rs.Rows, 1)
	got := rs.Rows[0]["sliced"].List()
	require.Len(t, got, 2)
	require.Equal(t, int64(2), got[0].Int())
	require.Equal(t, int64(3), got[1].Int())
}

// buildChain creates a-[:R]->b-[:R]->c-[:R]->d for the variable-length
// and shortest-path scenarios.
func buildChain(t *testing.T, e *Engine, ctx context.Context) {
	t.Helper()
	names := []string{"a", "b", "c", "d"}
	for _, n := range names {
		stmt := &ast.Statement{Clauses: []ast.Clause{
			&ast.CreateClause{Patterns: []ast.PatternElement{{
				Nodes: []ast.NodePattern{{Var: "n", Labels: []string{"Chain"}, Props: map[string]ast.Expr{"name": lit(value.Str(n))}}},
			}}},
		}}
		_, err := e.Execute(ctx, stmt, nil, nil)
		require.NoError(t, err)
	}
	for i := 0; i < len(names)-1; i++ {
		src, dst := names[i], names[i+1]
		stmt := &ast.Statement{Clauses: []ast.Clause{
			&ast.MatchClause{Patterns: []ast.PatternElement{
				{Nodes: []ast.NodePattern{{Var: "x", Labels: []string{"Chain"}, Props: map[string]ast.Expr{"name": lit(value.Str(src))}}}},
				{Nodes: []ast.NodePattern{{Var: "y", Labels: []string{"Chain"}, Props: map[string]ast.Expr{"name": lit(value.Str(dst))}}}},
			}},
			&ast.CreateClause{Patterns: []ast.PatternElement{{
				Nodes: []ast.NodePattern{{Var: "x"}, {Var: "y"}},
				Rels:  []ast.RelPattern{{Types: []string{"R"}, Dir: ast.DirOut, MinHops: 1, MaxHops: 1}},
			}}},
		}}
		_, err := e.Execute(ctx, stmt, nil, nil)
		require.NoError(t, err)
	}
}

// Scenario 6: variable-length expand, bounded 1..2 hops from a.
func TestScenario6VariableLength(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	buildChain(t, e, ctx)

	stmt := &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{{
			Nodes: []ast.NodePattern{
				{Var: "a", Labels: []string{"Chain"}, Props: map[string]ast.Expr{"name": lit(value.Str("a"))}},
				{Var: "x"},
			},
			Rels: []ast.RelPattern{{Types: []string{"R"}, Dir: ast.DirOut, MinHops: 1, MaxHops: 2, VarLength: true}},
		}}},
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{
			Items:   []ast.ReturnItem{{Expr: prop("x", "name"), Alias: "name"}},
			OrderBy: []ast.OrderItem{{Expr: prop("x", "name")}},
		}},
	}}
	rs := must(t, e.Execute(ctx, stmt, nil, nil))
	got := make([]string, len(rs.Rows))
	for i, row := range rs.Rows {
		got[i] = row["name"].Str()
	}
	require.Equal(t, []string{"b", "c"}, got)
}

// Scenario 7: shortest path from a to d over the same chain.
func TestScenario7ShortestPath(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	buildChain(t, e, ctx)

	stmt := &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{
			{Nodes: []ast.NodePattern{{Var: "a", Labels: []string{"Chain"}, Props: map[string]ast.Expr{"name": lit(value.Str("a"))}}}},
			{Nodes: []ast.NodePattern{{Var: "d", Labels: []string{"Chain"}, Props: map[string]ast.Expr{"name": lit(value.Str("d"))}}}},
		}},
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{Items: []ast.ReturnItem{{
			Expr: &ast.ShortestPathExpr{Pattern: ast.PatternElement{
				Nodes: []ast.NodePattern{{Var: "a"}, {Var: "d"}},
				Rels:  []ast.RelPattern{{Types: []string{"R"}, Dir: ast.DirEither, VarLength: true}},
			}},
			Alias: "path",
		}}}},
	}}
	rs := must(t, e.Execute(ctx, stmt, nil, nil))
	require.Len(t, rs.Rows, 1)
	p := rs.Rows[0]["path"].Path()
	require.Len(t, p.Nodes, 4)
}

// Property-style test: MVCC snapshot stability. A ReadTx pinned before a
// concurrent write keeps seeing the pre-write state.
func TestMVCCSnapshotStability(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	createScenarioGraph(t, e, ctx)

	reader := e.BeginRead()
	defer func() { _ = e.Abort(reader) }()

	countStmt := &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{{Nodes: []ast.NodePattern{{Var: "n", Labels: []string{"Person"}}}}}},
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{Items: []ast.ReturnItem{{Expr: call("count", true), Alias: "count"}}}},
	}}
	before := must(t, e.Execute(ctx, countStmt, nil, reader))
	require.Equal(t, int64(2), before.Rows[0]["count"].Int())

	createOne := &ast.Statement{Clauses: []ast.Clause{
		&ast.CreateClause{Patterns: []ast.PatternElement{{
			Nodes: []ast.NodePattern{{Var: "c", Labels: []string{"Person"}, Props: map[string]ast.Expr{"name": lit(value.Str("Carol"))}}},
		}}},
	}}
	_, err := e.Execute(ctx, createOne, nil, nil)
	require.NoError(t, err)

	after := must(t, e.Execute(ctx, countStmt, nil, reader))
	require.Equal(t, int64(2), after.Rows[0]["count"].Int(), "pinned reader must not observe the concurrent insert")

	fresh := e.BeginRead()
	defer func() { _ = e.Abort(fresh) }()
	freshCount := must(t, e.Execute(ctx, countStmt, nil, fresh))
	require.Equal(t, int64(3), freshCount.Rows[0]["count"].Int())
}

// create_index/drop_index/list_indexes roundtrip.
func TestCreateIndexRoundtrip(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	createScenarioGraph(t, e, ctx)

	label, err := e.LabelID(ctx, "Person")
	require.NoError(t, err)
	key, err := e.KeyID(ctx, "name")
	require.NoError(t, err)

	require.NoError(t, e.CreateIndex(ctx, label, key))
	require.Contains(t, e.ListIndexes(), indexKeyOf(label, key))

	require.NoError(t, e.DropIndex(ctx, label, key))
	require.NotContains(t, e.ListIndexes(), indexKeyOf(label, key))
}

func TestStatsReportsNodeAndRelCounts(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	createScenarioGraph(t, e, ctx)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.NodesPerLabel["Person"])
	require.Equal(t, int64(1), stats.RelsPerType["KNOWS"])
	require.False(t, stats.WriteTxHeld)
}

func TestInstanceIDStableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := cfgAt(dir)

	e1, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	id1, err := e1.InstanceID(context.Background())
	require.NoError(t, err)
	require.NoError(t, e1.Close())

	e2, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = e2.Close() }()
	id2, err := e2.InstanceID(context.Background())
	require.NoError(t, err)

	require.Equal(t, id1, id2)
}
