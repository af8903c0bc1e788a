package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/value"
)

// The REPL accepts a small, fixed command grammar and builds ast.Statement
// nodes directly from it - it is not a general Cypher parser (explicitly
// out of scope, spec section 1 Non-goals; see ast's package doc: "front
// ends construct these nodes directly, or a parser package outside this
// module's scope does"). Each command below maps one REPL line to one
// Statement via the same constructors a real parser would use.

// parseKV parses a "key=value" token into a property assignment,
// guessing the value's type the way a human would type it: integer,
// float, boolean, else a bare string.
func parseKV(tok string) (string, value.Value, error) {
	k, v, ok := strings.Cut(tok, "=")
	if !ok {
		return "", value.Null, fmt.Errorf("expected key=value, got %q", tok)
	}
	return k, parseScalar(v), nil
}

func parseScalar(s string) value.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return value.Bool(b)
	}
	return value.Str(s)
}

func idExpr(v string) (ast.Expr, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", v, err)
	}
	return &ast.Literal{Value: value.Int(id)}, nil
}

func idEquals(varName, idTok string) (ast.Expr, error) {
	rhs, err := idExpr(idTok)
	if err != nil {
		return nil, err
	}
	return &ast.BinaryExpr{
		Op:   ast.OpEq,
		Left: &ast.FunctionCall{Name: "id", Args: []ast.Expr{&ast.Variable{Name: varName}}},
		Right: rhs,
	}, nil
}

// buildCreateNode builds `CREATE (n:Label1:Label2 {k: v, ...}) RETURN id(n) AS id`.
func buildCreateNode(labels []string, props map[string]ast.Expr) *ast.Statement {
	return &ast.Statement{Clauses: []ast.Clause{
		&ast.CreateClause{Patterns: []ast.PatternElement{{
			Nodes: []ast.NodePattern{{Var: "n", Labels: labels, Props: props}},
		}}},
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{
			Items: []ast.ReturnItem{{
				Expr:  &ast.FunctionCall{Name: "id", Args: []ast.Expr{&ast.Variable{Name: "n"}}},
				Alias: "id",
			}},
		}},
	}}
}

// buildMatchByLabel builds
// `MATCH (n:Label {k: v, ...}) RETURN id(n) AS id, n AS node LIMIT <limit>`.
func buildMatchByLabel(label string, props map[string]ast.Expr, limit int64) *ast.Statement {
	proj := ast.ProjectionClause{Items: []ast.ReturnItem{
		{Expr: &ast.FunctionCall{Name: "id", Args: []ast.Expr{&ast.Variable{Name: "n"}}}, Alias: "id"},
		{Expr: &ast.Variable{Name: "n"}, Alias: "node"},
	}}
	if limit > 0 {
		proj.Limit = &ast.Literal{Value: value.Int(limit)}
	}
	var labels []string
	if label != "" {
		labels = []string{label}
	}
	return &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{{
			Nodes: []ast.NodePattern{{Var: "n", Labels: labels, Props: props}},
		}}},
		&ast.ReturnClause{ProjectionClause: proj},
	}}
}

// buildGetNode builds `MATCH (n) WHERE id(n) = <id> RETURN n AS node`.
func buildGetNode(id string) (*ast.Statement, error) {
	where, err := idEquals("n", id)
	if err != nil {
		return nil, err
	}
	return &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{{Nodes: []ast.NodePattern{{Var: "n"}}}}, Where: where},
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{Items: []ast.ReturnItem{
			{Expr: &ast.Variable{Name: "n"}, Alias: "node"},
		}}},
	}}, nil
}

// buildSetProps builds `MATCH (n) WHERE id(n) = <id> SET n.k = v, ...`.
func buildSetProps(id string, props map[string]ast.Expr) (*ast.Statement, error) {
	where, err := idEquals("n", id)
	if err != nil {
		return nil, err
	}
	items := make([]ast.SetItem, 0, len(props))
	for k, v := range props {
		items = append(items, ast.SetItem{
			Target: &ast.PropertyAccess{Target: &ast.Variable{Name: "n"}, Key: k},
			Value:  v,
		})
	}
	return &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{{Nodes: []ast.NodePattern{{Var: "n"}}}}, Where: where},
		&ast.SetClause{Items: items},
	}}, nil
}

// buildDeleteNode builds `MATCH (n) WHERE id(n) = <id> DELETE n` (or
// DETACH DELETE n).
func buildDeleteNode(id string, detach bool) (*ast.Statement, error) {
	where, err := idEquals("n", id)
	if err != nil {
		return nil, err
	}
	return &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{{Nodes: []ast.NodePattern{{Var: "n"}}}}, Where: where},
		&ast.DeleteClause{Vars: []ast.Expr{&ast.Variable{Name: "n"}}, Detach: detach},
	}}, nil
}

// buildConnect builds
// `MATCH (a), (b) WHERE id(a) = <src> AND id(b) = <dst>
//  CREATE (a)-[r:TYPE {k: v, ...}]->(b) RETURN id(r) AS id`.
func buildConnect(src, relType, dst string, props map[string]ast.Expr) (*ast.Statement, error) {
	srcEq, err := idEquals("a", src)
	if err != nil {
		return nil, err
	}
	dstEq, err := idEquals("b", dst)
	if err != nil {
		return nil, err
	}
	return &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{
			{Nodes: []ast.NodePattern{{Var: "a"}}},
			{Nodes: []ast.NodePattern{{Var: "b"}}},
		}, Where: &ast.BinaryExpr{Op: ast.OpAnd, Left: srcEq, Right: dstEq}},
		&ast.CreateClause{Patterns: []ast.PatternElement{{
			Nodes: []ast.NodePattern{{Var: "a"}, {Var: "b"}},
			Rels:  []ast.RelPattern{{Var: "r", Types: []string{relType}, Dir: ast.DirOut, Props: props, MinHops: 1, MaxHops: 1}},
		}}},
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{Items: []ast.ReturnItem{
			{Expr: &ast.FunctionCall{Name: "id", Args: []ast.Expr{&ast.Variable{Name: "r"}}}, Alias: "id"},
		}}},
	}}, nil
}

// buildRels builds
// `MATCH (n)-[r]-(m) WHERE id(n) = <id> RETURN id(r) AS rel, type(r) AS type, id(m) AS other`.
func buildRels(id string) (*ast.Statement, error) {
	where, err := idEquals("n", id)
	if err != nil {
		return nil, err
	}
	return &ast.Statement{Clauses: []ast.Clause{
		&ast.MatchClause{Patterns: []ast.PatternElement{{
			Nodes: []ast.NodePattern{{Var: "n"}, {Var: "m"}},
			Rels:  []ast.RelPattern{{Var: "r", Dir: ast.DirEither, MinHops: 1, MaxHops: 1}},
		}}, Where: where},
		&ast.ReturnClause{ProjectionClause: ast.ProjectionClause{Items: []ast.ReturnItem{
			{Expr: &ast.FunctionCall{Name: "id", Args: []ast.Expr{&ast.Variable{Name: "r"}}}, Alias: "rel"},
			{Expr: &ast.FunctionCall{Name: "type", Args: []ast.Expr{&ast.Variable{Name: "r"}}}, Alias: "type"},
			{Expr: &ast.FunctionCall{Name: "id", Args: []ast.Expr{&ast.Variable{Name: "m"}}}, Alias: "other"},
		}}},
	}}, nil
}

// formatValue renders a cell for REPL output.
func formatValue(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "null"
	case value.KindBool:
		return strconv.FormatBool(v.Bool())
	case value.KindInt:
		return strconv.FormatInt(v.Int(), 10)
	case value.KindFloat:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case value.KindStr:
		return strconv.Quote(v.Str())
	case value.KindNode:
		return fmt.Sprintf("(node:%d)", v.NodeID())
	case value.KindRel:
		return fmt.Sprintf("[rel:%d]", v.RelID())
	case value.KindList:
		parts := make([]string, len(v.List()))
		for i, item := range v.List() {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case value.KindMap:
		var b strings.Builder
		b.WriteByte('{')
		first := true
		for k, item := range v.Map() {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&b, "%s: %s", k, formatValue(item))
		}
		b.WriteByte('}')
		return b.String()
	default:
		return "<path>"
	}
}
