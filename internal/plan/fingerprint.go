package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/value"
)

// Fingerprint canonicalizes stmt and hashes the result with xxh3, the
// same non-cryptographic hash the page checksums use elsewhere in this
// codebase. Parameters appear only by name, so `WHERE age = $a` shares a
// plan across parameter values; literal values are part of the key,
// because the planner copies them into the plan, so `WHERE age = 30` and
// `WHERE age = 40` get separate plans.
func Fingerprint(stmt *ast.Statement) uint64 {
	var sb strings.Builder
	writeStatement(&sb, stmt)
	return xxh3.HashString(sb.String())
}

func writeStatement(sb *strings.Builder, stmt *ast.Statement) {
	sb.WriteString("STMT(")
	for _, c := range stmt.Clauses {
		writeClause(sb, c)
		sb.WriteByte(';')
	}
	sb.WriteString(")")
}

func writeClause(sb *strings.Builder, c ast.Clause) {
	switch cl := c.(type) {
	case *ast.MatchClause:
		sb.WriteString("MATCH[")
		for _, p := range cl.Patterns {
			writePattern(sb, p)
		}
		if cl.Where != nil {
			sb.WriteString("WHERE(")
			writeExpr(sb, cl.Where)
			sb.WriteString(")")
		}
		sb.WriteString("]")
	case *ast.WhereClause:
		sb.WriteString("WHERE(")
		writeExpr(sb, cl.Predicate)
		sb.WriteString(")")
	case *ast.ReturnClause:
		sb.WriteString("RETURN")
		writeProjection(sb, cl.ProjectionClause)
	case *ast.WithClause:
		sb.WriteString("WITH")
		writeProjection(sb, cl.ProjectionClause)
		if cl.Where != nil {
			sb.WriteString("WHERE(")
			writeExpr(sb, cl.Where)
			sb.WriteString(")")
		}
	case *ast.CreateClause:
		sb.WriteString("CREATE[")
		for _, p := range cl.Patterns {
			writePattern(sb, p)
		}
		sb.WriteString("]")
	case *ast.SetClause:
		sb.WriteString("SET[")
		for _, it := range cl.Items {
			fmt.Fprintf(sb, "%v,%s,%v,", it.IsLabel, it.Label, it.IsReplace)
			if it.Target != nil {
				writeExpr(sb, it.Target)
			}
			if it.Value != nil {
				writeExpr(sb, it.Value)
			}
		}
		sb.WriteString("]")
	case *ast.RemoveClause:
		sb.WriteString("REMOVE[")
		for _, it := range cl.Items {
			fmt.Fprintf(sb, "%v,%s,", it.IsLabel, it.Label)
			if it.Target != nil {
				writeExpr(sb, it.Target)
			}
		}
		sb.WriteString("]")
	case *ast.DeleteClause:
		fmt.Fprintf(sb, "DELETE(detach=%v)[", cl.Detach)
		for _, v := range cl.Vars {
			writeExpr(sb, v)
		}
		sb.WriteString("]")
	case *ast.UnwindClause:
		sb.WriteString("UNWIND(")
		writeExpr(sb, cl.List)
		fmt.Fprintf(sb, "->%s)", cl.Var)
	case *ast.MergeClause:
		sb.WriteString("MERGE[")
		writePattern(sb, cl.Pattern)
		sb.WriteString("]")
	case *ast.UnionClause:
		fmt.Fprintf(sb, "UNION(all=%v)[", cl.All)
		writeStatement(sb, cl.Other)
		sb.WriteString("]")
	case *ast.CallClause:
		fmt.Fprintf(sb, "CALL(%s)", cl.Procedure)
	case *ast.ForeachClause:
		sb.WriteString("FOREACH(")
		writeExpr(sb, cl.List)
		sb.WriteString(")")
	default:
		sb.WriteString("UNKNOWN")
	}
}

func writePattern(sb *strings.Builder, p ast.PatternElement) {
	for i, n := range p.Nodes {
		writeNodePattern(sb, n)
		if i < len(p.Rels) {
			writeRelPattern(sb, p.Rels[i])
		}
	}
}

func writeNodePattern(sb *strings.Builder, n ast.NodePattern) {
	sb.WriteString("(")
	labels := append([]string(nil), n.Labels...)
	sort.Strings(labels)
	sb.WriteString(strings.Join(labels, ":"))
	keys := make([]string, 0, len(n.Props))
	for k := range n.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		writeExpr(sb, n.Props[k])
	}
	sb.WriteString(")")
}

func writeRelPattern(sb *strings.Builder, r ast.RelPattern) {
	fmt.Fprintf(sb, "-[%v,%d,%d,%v:", r.Dir, r.MinHops, r.MaxHops, r.VarLength)
	types := append([]string(nil), r.Types...)
	sort.Strings(types)
	sb.WriteString(strings.Join(types, "|"))
	writeExpr(sb, &ast.MapLiteral{Entries: r.Props})
	sb.WriteString("]-")
}

func writeProjection(sb *strings.Builder, p ast.ProjectionClause) {
	fmt.Fprintf(sb, "(star=%v,distinct=%v)[", p.Star, p.Distinct)
	for _, it := range p.Items {
		writeExpr(sb, it.Expr)
		sb.WriteString("AS")
		sb.WriteString(it.Alias)
		sb.WriteByte(',')
	}
	sb.WriteString("]ORDER[")
	for _, o := range p.OrderBy {
		writeExpr(sb, o.Expr)
		fmt.Fprintf(sb, "%v,", o.Descending)
	}
	sb.WriteString("]")
	if p.Skip != nil {
		sb.WriteString("SKIP")
		writeExpr(sb, p.Skip)
	}
	if p.Limit != nil {
		sb.WriteString("LIMIT")
		writeExpr(sb, p.Limit)
	}
}

func writeExpr(sb *strings.Builder, e ast.Expr) {
	switch x := e.(type) {
	case *ast.Literal:
		fmt.Fprintf(sb, "lit(%s)", value.SortKey(x.Value))
	case *ast.Parameter:
		fmt.Fprintf(sb, "$%s", x.Name)
	case *ast.Variable:
		fmt.Fprintf(sb, "%s", x.Name)
	case *ast.PropertyAccess:
		writeExpr(sb, x.Target)
		sb.WriteByte('.')
		sb.WriteString(x.Key)
	case *ast.LabelPredicate:
		writeExpr(sb, x.Target)
		sb.WriteByte(':')
		sb.WriteString(x.Label)
	case *ast.BinaryExpr:
		sb.WriteByte('(')
		writeExpr(sb, x.Left)
		sb.WriteString(string(x.Op))
		writeExpr(sb, x.Right)
		sb.WriteByte(')')
	case *ast.UnaryExpr:
		sb.WriteString(string(x.Op))
		sb.WriteByte('(')
		writeExpr(sb, x.Operand)
		sb.WriteByte(')')
	case *ast.FunctionCall:
		fmt.Fprintf(sb, "%s(distinct=%v,star=%v,", x.Name, x.Distinct, x.Star)
		for _, a := range x.Args {
			writeExpr(sb, a)
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case *ast.ListLiteral:
		sb.WriteByte('[')
		for _, it := range x.Items {
			writeExpr(sb, it)
			sb.WriteByte(',')
		}
		sb.WriteByte(']')
	case *ast.MapLiteral:
		sb.WriteByte('{')
		keys := make([]string, 0, len(x.Entries))
		for k := range x.Entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(k)
			sb.WriteByte(':')
			writeExpr(sb, x.Entries[k])
			sb.WriteByte(',')
		}
		sb.WriteByte('}')
	case *ast.IndexExpr:
		writeExpr(sb, x.List)
		sb.WriteByte('[')
		writeExpr(sb, x.Index)
		sb.WriteByte(']')
	case *ast.SliceExpr:
		writeExpr(sb, x.List)
		sb.WriteString("[..]")
	case *ast.CaseExpr:
		sb.WriteString("CASE")
		for _, w := range x.Whens {
			writeExpr(sb, w.When)
			writeExpr(sb, w.Then)
		}
	case *ast.ListComprehension:
		sb.WriteString("COMPR(")
		writeExpr(sb, x.List)
		sb.WriteByte(')')
	case *ast.PatternComprehension:
		sb.WriteString("PCOMPR(")
		writePattern(sb, x.Pattern)
		sb.WriteByte(')')
	case *ast.ShortestPathExpr:
		fmt.Fprintf(sb, "SHORTEST(all=%v,", x.All)
		writePattern(sb, x.Pattern)
		sb.WriteByte(')')
	case nil:
		sb.WriteString("nil")
	default:
		sb.WriteString("?expr")
	}
}
