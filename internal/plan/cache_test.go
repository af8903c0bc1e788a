package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/value"
)

func TestFingerprintDistinguishesLiteralValues(t *testing.T) {
	stmtA := &ast.Statement{Clauses: []ast.Clause{&ast.MatchClause{
		Patterns: []ast.PatternElement{{Nodes: []ast.NodePattern{{Var: "p", Labels: []string{"Person"}, Props: map[string]ast.Expr{
			"age": &ast.Literal{Value: value.Int(30)},
		}}}}},
	}}}
	stmtB := &ast.Statement{Clauses: []ast.Clause{&ast.MatchClause{
		Patterns: []ast.PatternElement{{Nodes: []ast.NodePattern{{Var: "p", Labels: []string{"Person"}, Props: map[string]ast.Expr{
			"age": &ast.Literal{Value: value.Int(99)},
		}}}}},
	}}}

	require.NotEqual(t, Fingerprint(stmtA), Fingerprint(stmtB))
}

func TestFingerprintDistinguishesParameters(t *testing.T) {
	stmtA := &ast.Statement{Clauses: []ast.Clause{&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{
		Items: []ast.ReturnItem{{Expr: &ast.Parameter{Name: "x"}}},
	}}}}
	stmtB := &ast.Statement{Clauses: []ast.Clause{&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{
		Items: []ast.ReturnItem{{Expr: &ast.Parameter{Name: "y"}}},
	}}}}
	require.NotEqual(t, Fingerprint(stmtA), Fingerprint(stmtB))
}

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Put(1, &PhysicalOp{Kind: OpAllNodesScan})
	c.Put(2, &PhysicalOp{Kind: OpAllNodesScan})
	c.Put(3, &PhysicalOp{Kind: OpAllNodesScan})

	_, ok := c.Get(1)
	require.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get(2)
	require.True(t, ok)
	_, ok = c.Get(3)
	require.True(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(10, time.Millisecond)
	c.Put(1, &PhysicalOp{Kind: OpAllNodesScan})
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(1)
	require.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.Put(1, &PhysicalOp{Kind: OpAllNodesScan})
	c.Invalidate()
	require.Equal(t, 0, c.Len())
}
