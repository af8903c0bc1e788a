package exec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/value"
)

// The expression forms exercised here never touch ctx's store/catalog
// fields, so a zero-value Context is enough (spec section 4.6's
// three-valued-logic and overloaded operator rules).
func evalCtx() *Context { return &Context{} }

func lit(v value.Value) ast.Expr { return &ast.Literal{Value: v} }

func binary(op ast.BinaryOp, l, r ast.Expr) ast.Expr {
	return &ast.BinaryExpr{Op: op, Left: l, Right: r}
}

func TestEvalArithmetic(t *testing.T) {
	v, err := eval(evalCtx(), nil, binary(ast.OpAdd, lit(value.Int(2)), lit(value.Int(3))))
	require.NoError(t, err)
	require.Equal(t, int64(5), v.Int())

	v, err = eval(evalCtx(), nil, binary(ast.OpDiv, lit(value.Int(7)), lit(value.Int(2))))
	require.NoError(t, err)
	require.Equal(t, int64(3), v.Int())

	v, err = eval(evalCtx(), nil, binary(ast.OpMul, lit(value.Float(1.5)), lit(value.Int(2))))
	require.NoError(t, err)
	require.Equal(t, 3.0, v.Float())

	_, err = eval(evalCtx(), nil, binary(ast.OpDiv, lit(value.Int(1)), lit(value.Int(0))))
	require.Error(t, err)
}

func TestEvalComparisonNullPropagation(t *testing.T) {
	v, err := eval(evalCtx(), nil, binary(ast.OpLt, lit(value.Null), lit(value.Int(1))))
	require.NoError(t, err)
	require.True(t, v.IsNull())

	v, err = eval(evalCtx(), nil, binary(ast.OpGte, lit(value.Int(5)), lit(value.Int(5))))
	require.NoError(t, err)
	b, ok := v.Truthy()
	require.True(t, ok)
	require.True(t, b)
}

func TestEvalThreeValuedAnd(t *testing.T) {
	// false AND NULL = false, not NULL - the short-circuit spec calls out.
	v, err := eval(evalCtx(), nil, binary(ast.OpAnd, lit(value.Bool(false)), lit(value.Null)))
	require.NoError(t, err)
	b, ok := v.Truthy()
	require.True(t, ok)
	require.False(t, b)

	// true AND NULL = NULL.
	v, err = eval(evalCtx(), nil, binary(ast.OpAnd, lit(value.Bool(true)), lit(value.Null)))
	require.NoError(t, err)
	require.True(t, v.IsNull())
}

func TestEvalStringOperators(t *testing.T) {
	v, err := eval(evalCtx(), nil, binary(ast.OpStartsWith, lit(value.Str("hello")), lit(value.Str("he"))))
	require.NoError(t, err)
	b, _ := v.Truthy()
	require.True(t, b)

	v, err = eval(evalCtx(), nil, binary(ast.OpContains, lit(value.Str("hello")), lit(value.Str("ell"))))
	require.NoError(t, err)
	b, _ = v.Truthy()
	require.True(t, b)
}

func TestEvalInOperator(t *testing.T) {
	list := lit(value.List([]value.Value{value.Int(1), value.Int(2), value.Int(3)}))
	v, err := eval(evalCtx(), nil, binary(ast.OpIn, lit(value.Int(2)), list))
	require.NoError(t, err)
	b, _ := v.Truthy()
	require.True(t, b)

	v, err = eval(evalCtx(), nil, binary(ast.OpIn, lit(value.Int(9)), list))
	require.NoError(t, err)
	b, _ = v.Truthy()
	require.False(t, b)
}

func TestEvalCaseExpr(t *testing.T) {
	// CASE WHEN 1 > 2 THEN 'a' WHEN 2 > 1 THEN 'b' ELSE 'c' END
	ce := &ast.CaseExpr{
		Whens: []ast.CaseWhen{
			{When: binary(ast.OpGt, lit(value.Int(1)), lit(value.Int(2))), Then: lit(value.Str("a"))},
			{When: binary(ast.OpGt, lit(value.Int(2)), lit(value.Int(1))), Then: lit(value.Str("b"))},
		},
		Else: lit(value.Str("c")),
	}
	v, err := eval(evalCtx(), nil, ce)
	require.NoError(t, err)
	require.Equal(t, "b", v.Str())
}

func TestEvalListComprehension(t *testing.T) {
	// [x IN [1,2,3,4] WHERE x % 2 = 0 | x * 10]
	lc := &ast.ListComprehension{
		Var:  "x",
		List: lit(value.List([]value.Value{value.Int(1), value.Int(2), value.Int(3), value.Int(4)})),
		Where: binary(ast.OpEq,
			binary(ast.OpMod, &ast.Variable{Name: "x"}, lit(value.Int(2))),
			lit(value.Int(0)),
		),
		Project: binary(ast.OpMul, &ast.Variable{Name: "x"}, lit(value.Int(10))),
	}
	v, err := eval(evalCtx(), Row{}, lc)
	require.NoError(t, err)
	items := v.List()
	require.Len(t, items, 2)
	require.Equal(t, int64(20), items[0].Int())
	require.Equal(t, int64(40), items[1].Int())
}

func TestEvalPatternComprehensionRequiresBoundStart(t *testing.T) {
	pc := &ast.PatternComprehension{
		Pattern: ast.PatternElement{
			Nodes: []ast.NodePattern{{Var: "a"}, {Var: "b"}},
			Rels:  []ast.RelPattern{{Dir: ast.DirOut, MinHops: 1, MaxHops: 1}},
		},
		Project: &ast.Variable{Name: "b"},
	}
	_, err := eval(evalCtx(), Row{}, pc)
	require.Error(t, err)
}
