package exec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/graphdb-core/graphdb/internal/ast"
	"github.com/graphdb-core/graphdb/internal/store"
	"github.com/graphdb-core/graphdb/internal/value"
)

// eval evaluates e against row's bindings, implementing the three-valued
// logic and overloaded operators from spec section 4.6.
func eval(ctx *Context, row Row, e ast.Expr) (value.Value, error) {
	switch x := e.(type) {
	case nil:
		return value.Null, nil
	case *ast.Literal:
		return x.Value, nil
	case *ast.Parameter:
		v, ok := ctx.Params[x.Name]
		if !ok {
			return value.Null, nil
		}
		return v, nil
	case *ast.Variable:
		return row[x.Name], nil
	case *ast.PropertyAccess:
		return evalPropertyAccess(ctx, row, x)
	case *ast.LabelPredicate:
		return evalLabelPredicate(ctx, row, x)
	case *ast.BinaryExpr:
		return evalBinary(ctx, row, x)
	case *ast.UnaryExpr:
		return evalUnary(ctx, row, x)
	case *ast.FunctionCall:
		return evalFunction(ctx, row, x)
	case *ast.ListLiteral:
		items := make([]value.Value, len(x.Items))
		for i, it := range x.Items {
			v, err := eval(ctx, row, it)
			if err != nil {
				return value.Null, err
			}
			items[i] = v
		}
		return value.List(items), nil
	case *ast.MapLiteral:
		m := make(map[string]value.Value, len(x.Entries))
		for k, it := range x.Entries {
			v, err := eval(ctx, row, it)
			if err != nil {
				return value.Null, err
			}
			m[k] = v
		}
		return value.Map(m), nil
	case *ast.IndexExpr:
		return evalIndex(ctx, row, x)
	case *ast.SliceExpr:
		return evalSlice(ctx, row, x)
	case *ast.CaseExpr:
		return evalCase(ctx, row, x)
	case *ast.ListComprehension:
		return evalListComprehension(ctx, row, x)
	case *ast.PatternComprehension:
		return evalPatternComprehension(ctx, row, x)
	default:
		return value.Null, runtimeErrorf("unsupported expression %T", e)
	}
}

func evalPropertyAccess(ctx *Context, row Row, x *ast.PropertyAccess) (value.Value, error) {
	target, err := eval(ctx, row, x.Target)
	if err != nil {
		return value.Null, err
	}
	keyID, ok, err := ctx.Cat.LookupKeyID(ctx.Ctx, x.Key)
	if err != nil {
		return value.Null, err
	}
	if !ok {
		return value.Null, nil
	}
	var head uint64
	switch target.Kind() {
	case value.KindNode:
		rec, err := ctx.Nodes.ReadNode(target.NodeID())
		if err != nil {
			return value.Null, err
		}
		head = rec.PropHead
	case value.KindRel:
		rec, err := ctx.Rels.ReadRel(target.RelID())
		if err != nil {
			return value.Null, err
		}
		head = rec.PropHead
	case value.KindMap:
		if v, ok := target.Map()[x.Key]; ok {
			return v, nil
		}
		return value.Null, nil
	default:
		return value.Null, nil
	}
	if head == store.NoPointer {
		return value.Null, nil
	}
	props, err := ctx.Props.ReadChain(head)
	if err != nil {
		return value.Null, err
	}
	if v, ok := props[keyID]; ok {
		return v, nil
	}
	return value.Null, nil
}

func evalLabelPredicate(ctx *Context, row Row, x *ast.LabelPredicate) (value.Value, error) {
	target, err := eval(ctx, row, x.Target)
	if err != nil {
		return value.Null, err
	}
	if target.Kind() != value.KindNode {
		return value.Bool(false), nil
	}
	id, ok, err := ctx.Cat.LookupLabelID(ctx.Ctx, x.Label)
	if err != nil {
		return value.Null, err
	}
	if !ok {
		return value.Bool(false), nil
	}
	return value.Bool(ctx.Labels.Contains(id, target.NodeID())), nil
}

func evalBinary(ctx *Context, row Row, x *ast.BinaryExpr) (value.Value, error) {
	// AND/OR short-circuit with three-valued logic before evaluating both
	// sides unconditionally.
	if x.Op == ast.OpAnd || x.Op == ast.OpOr {
		return evalLogical(ctx, row, x)
	}

	l, err := eval(ctx, row, x.Left)
	if err != nil {
		return value.Null, err
	}
	r, err := eval(ctx, row, x.Right)
	if err != nil {
		return value.Null, err
	}

	switch x.Op {
	case ast.OpAdd:
		return value.Add(l, r)
	case ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		return evalArith(x.Op, l, r)
	case ast.OpEq:
		if l.IsNull() || r.IsNull() {
			return value.Null, nil
		}
		return value.Bool(value.Equal(l, r)), nil
	case ast.OpNeq:
		if l.IsNull() || r.IsNull() {
			return value.Null, nil
		}
		return value.Bool(!value.Equal(l, r)), nil
	case ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		return evalCompare(x.Op, l, r)
	case ast.OpXor:
		lb, lok := l.Truthy()
		rb, rok := r.Truthy()
		if !lok || !rok {
			return value.Null, nil
		}
		return value.Bool(lb != rb), nil
	case ast.OpRegex:
		if l.IsNull() || r.IsNull() {
			return value.Null, nil
		}
		re, err := regexp.Compile(r.Str())
		if err != nil {
			return value.Null, runtimeErrorf("invalid regex %q: %v", r.Str(), err)
		}
		return value.Bool(re.MatchString(l.Str())), nil
	case ast.OpStartsWith:
		if l.IsNull() || r.IsNull() {
			return value.Null, nil
		}
		return value.Bool(strings.HasPrefix(l.Str(), r.Str())), nil
	case ast.OpEndsWith:
		if l.IsNull() || r.IsNull() {
			return value.Null, nil
		}
		return value.Bool(strings.HasSuffix(l.Str(), r.Str())), nil
	case ast.OpContains:
		if l.IsNull() || r.IsNull() {
			return value.Null, nil
		}
		return value.Bool(strings.Contains(l.Str(), r.Str())), nil
	case ast.OpIn:
		if r.IsNull() {
			return value.Null, nil
		}
		for _, item := range r.List() {
			if value.Equal(l, item) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	default:
		return value.Null, runtimeErrorf("unsupported operator %s", x.Op)
	}
}

func evalLogical(ctx *Context, row Row, x *ast.BinaryExpr) (value.Value, error) {
	l, err := eval(ctx, row, x.Left)
	if err != nil {
		return value.Null, err
	}
	lb, lok := l.Truthy()
	if x.Op == ast.OpAnd && lok && !lb {
		return value.Bool(false), nil
	}
	if x.Op == ast.OpOr && lok && lb {
		return value.Bool(true), nil
	}

	r, err := eval(ctx, row, x.Right)
	if err != nil {
		return value.Null, err
	}
	rb, rok := r.Truthy()

	if x.Op == ast.OpAnd {
		if rok && !rb {
			return value.Bool(false), nil
		}
		if lok && rok {
			return value.Bool(lb && rb), nil
		}
		return value.Null, nil
	}
	// OR
	if rok && rb {
		return value.Bool(true), nil
	}
	if lok && rok {
		return value.Bool(lb || rb), nil
	}
	return value.Null, nil
}

func evalArith(op ast.BinaryOp, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.Null, nil
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return value.Null, runtimeErrorf("type mismatch: %s is not numeric for %s", op, op)
	}
	bothInt := l.Kind() == value.KindInt && r.Kind() == value.KindInt
	switch op {
	case ast.OpSub:
		if bothInt {
			return value.Int(l.Int() - r.Int()), nil
		}
		return value.Float(l.Float() - r.Float()), nil
	case ast.OpMul:
		if bothInt {
			return value.Int(l.Int() * r.Int()), nil
		}
		return value.Float(l.Float() * r.Float()), nil
	case ast.OpDiv:
		if bothInt {
			if r.Int() == 0 {
				return value.Null, runtimeErrorf("division by zero")
			}
			return value.Int(l.Int() / r.Int()), nil
		}
		if r.Float() == 0 {
			return value.Null, runtimeErrorf("division by zero")
		}
		return value.Float(l.Float() / r.Float()), nil
	case ast.OpMod:
		if bothInt {
			if r.Int() == 0 {
				return value.Null, runtimeErrorf("division by zero")
			}
			return value.Int(l.Int() % r.Int()), nil
		}
		return value.Null, runtimeErrorf("modulo requires integer operands")
	}
	return value.Null, runtimeErrorf("unsupported arithmetic operator %s", op)
}

func evalCompare(op ast.BinaryOp, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.Null, nil
	}
	cmp, ok := value.Compare(l, r)
	if !ok {
		return value.Null, nil
	}
	switch op {
	case ast.OpLt:
		return value.Bool(cmp < 0), nil
	case ast.OpLte:
		return value.Bool(cmp <= 0), nil
	case ast.OpGt:
		return value.Bool(cmp > 0), nil
	case ast.OpGte:
		return value.Bool(cmp >= 0), nil
	}
	return value.Null, runtimeErrorf("unsupported comparison operator %s", op)
}

func evalUnary(ctx *Context, row Row, x *ast.UnaryExpr) (value.Value, error) {
	v, err := eval(ctx, row, x.Operand)
	if err != nil {
		return value.Null, err
	}
	switch x.Op {
	case ast.OpNeg:
		if v.IsNull() {
			return value.Null, nil
		}
		if v.Kind() == value.KindInt {
			return value.Int(-v.Int()), nil
		}
		return value.Float(-v.Float()), nil
	case ast.OpNot:
		b, ok := v.Truthy()
		if !ok {
			return value.Null, nil
		}
		return value.Bool(!b), nil
	case ast.OpIsNull:
		return value.Bool(v.IsNull()), nil
	case ast.OpIsNotNull:
		return value.Bool(!v.IsNull()), nil
	default:
		return value.Null, runtimeErrorf("unsupported unary operator %s", x.Op)
	}
}

func evalIndex(ctx *Context, row Row, x *ast.IndexExpr) (value.Value, error) {
	list, err := eval(ctx, row, x.List)
	if err != nil {
		return value.Null, err
	}
	idx, err := eval(ctx, row, x.Index)
	if err != nil {
		return value.Null, err
	}
	if list.IsNull() || idx.IsNull() {
		return value.Null, nil
	}
	v, ok := value.Index(list.List(), int(idx.Int()))
	if !ok {
		return value.Null, nil
	}
	return v, nil
}

func evalSlice(ctx *Context, row Row, x *ast.SliceExpr) (value.Value, error) {
	list, err := eval(ctx, row, x.List)
	if err != nil {
		return value.Null, err
	}
	if list.IsNull() {
		return value.Null, nil
	}
	var lo, hi int
	var hasLo, hasHi bool
	if x.Lo != nil {
		v, err := eval(ctx, row, x.Lo)
		if err != nil {
			return value.Null, err
		}
		if !v.IsNull() {
			lo, hasLo = int(v.Int()), true
		}
	}
	if x.Hi != nil {
		v, err := eval(ctx, row, x.Hi)
		if err != nil {
			return value.Null, err
		}
		if !v.IsNull() {
			hi, hasHi = int(v.Int()), true
		}
	}
	return value.List(value.Slice(list.List(), lo, hasLo, hi, hasHi)), nil
}

func evalCase(ctx *Context, row Row, x *ast.CaseExpr) (value.Value, error) {
	var operand value.Value
	if x.Operand != nil {
		v, err := eval(ctx, row, x.Operand)
		if err != nil {
			return value.Null, err
		}
		operand = v
	}
	for _, w := range x.Whens {
		cond, err := eval(ctx, row, w.When)
		if err != nil {
			return value.Null, err
		}
		match := false
		if x.Operand != nil {
			match = value.Equal(operand, cond)
		} else if b, ok := cond.Truthy(); ok {
			match = b
		}
		if match {
			return eval(ctx, row, w.Then)
		}
	}
	if x.Else != nil {
		return eval(ctx, row, x.Else)
	}
	return value.Null, nil
}

func evalListComprehension(ctx *Context, row Row, x *ast.ListComprehension) (value.Value, error) {
	list, err := eval(ctx, row, x.List)
	if err != nil {
		return value.Null, err
	}
	var out []value.Value
	for _, item := range list.List() {
		inner := row.Clone()
		inner[x.Var] = item
		if x.Where != nil {
			cond, err := eval(ctx, inner, x.Where)
			if err != nil {
				return value.Null, err
			}
			if b, ok := cond.Truthy(); !ok || !b {
				continue
			}
		}
		if x.Project == nil {
			out = append(out, item)
			continue
		}
		projected, err := eval(ctx, inner, x.Project)
		if err != nil {
			return value.Null, err
		}
		out = append(out, projected)
	}
	return value.List(out), nil
}

// evalPatternComprehension evaluates `[(a)-[:R]->(b) WHERE pred | expr]`
// (spec section 6's AST contract). The leading node must already be
// bound in row - a pattern comprehension restates part of the outer
// query's pattern, it doesn't introduce a fresh label scan - after which
// each relationship hop is walked the same way expandIter walks a plain
// Expand operator, hop by hop, binding every intermediate variable
// before the trailing WHERE/projection runs once per completed path.
func evalPatternComprehension(ctx *Context, row Row, x *ast.PatternComprehension) (value.Value, error) {
	if err := ctx.checkCancelled(); err != nil {
		return value.Null, err
	}
	pat := x.Pattern
	if len(pat.Nodes) == 0 {
		return value.List(nil), nil
	}
	startVar := pat.Nodes[0].Var
	start, ok := row[startVar]
	if !ok || start.Kind() != value.KindNode {
		return value.Null, runtimeErrorf("pattern comprehension requires %q to already be bound", startVar)
	}

	var out []value.Value
	var walk func(cur Row, nodeID uint64, hop int) error
	walk = func(cur Row, nodeID uint64, hop int) error {
		if hop >= len(pat.Rels) {
			if x.Where != nil {
				cond, err := eval(ctx, cur, x.Where)
				if err != nil {
					return err
				}
				if b, ok := cond.Truthy(); !ok || !b {
					return nil
				}
			}
			if x.Project == nil {
				out = append(out, cur[pat.Nodes[hop].Var])
				return nil
			}
			projected, err := eval(ctx, cur, x.Project)
			if err != nil {
				return err
			}
			out = append(out, projected)
			return nil
		}
		relPat := pat.Rels[hop]
		if relPat.VarLength {
			return runtimeErrorf("pattern comprehension does not support variable-length hops")
		}
		rec, err := ctx.Nodes.ReadNode(nodeID)
		if err != nil {
			return err
		}
		ids, err := adjacencyIDs(ctx, nodeID, rec, relPat.Dir)
		if err != nil {
			return err
		}
		typeIDs, err := resolveRelTypeIDs(ctx, relPat.Types)
		if err != nil {
			return err
		}
		for _, relID := range ids {
			relRec, err := ctx.Rels.ReadRel(relID)
			if err != nil {
				return err
			}
			if !relRec.Visible(ctx.Snapshot) {
				continue
			}
			if len(typeIDs) > 0 && !containsType(typeIDs, relRec.TypeID) {
				continue
			}
			other := otherEndpoint(nodeID, relRec, relPat.Dir)
			next := cur.Clone()
			if relPat.Var != "" {
				next[relPat.Var] = value.RelRef(relID)
			}
			toVar := pat.Nodes[hop+1].Var
			if toVar != "" {
				next[toVar] = value.NodeRef(other)
			}
			if err := walk(next, other, hop+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(row.Clone(), start.NodeID(), 0); err != nil {
		return value.Null, err
	}
	return value.List(out), nil
}

// resolveRelTypeIDs maps relationship type names to catalog IDs,
// skipping (not erroring on) a name with no existing mapping since an
// unknown type simply matches nothing.
func resolveRelTypeIDs(ctx *Context, names []string) ([]uint32, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]uint32, 0, len(names))
	for _, n := range names {
		id, ok, err := ctx.Cat.LookupTypeID(ctx.Ctx, n)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func evalFunction(ctx *Context, row Row, x *ast.FunctionCall) (value.Value, error) {
	name := strings.ToLower(x.Name)
	args := make([]value.Value, len(x.Args))
	for i, a := range x.Args {
		v, err := eval(ctx, row, a)
		if err != nil {
			return value.Null, err
		}
		args[i] = v
	}
	switch name {
	case "id":
		if len(args) != 1 {
			return value.Null, runtimeErrorf("id() takes exactly one argument")
		}
		switch args[0].Kind() {
		case value.KindNode:
			return value.Int(int64(args[0].NodeID())), nil
		case value.KindRel:
			return value.Int(int64(args[0].RelID())), nil
		}
		return value.Null, nil
	case "labels":
		if len(args) != 1 || args[0].Kind() != value.KindNode {
			return value.Null, nil
		}
		rec, err := ctx.Nodes.ReadNode(args[0].NodeID())
		if err != nil {
			return value.Null, err
		}
		names, err := ctx.Cat.AllLabels(ctx.Ctx)
		if err != nil {
			return value.Null, err
		}
		var out []value.Value
		for id, n := range names {
			if rec.HasLabel(id) {
				out = append(out, value.Str(n))
			}
		}
		return value.List(out), nil
	case "type":
		if len(args) != 1 || args[0].Kind() != value.KindRel {
			return value.Null, nil
		}
		rec, err := ctx.Rels.ReadRel(args[0].RelID())
		if err != nil {
			return value.Null, err
		}
		n, err := ctx.Cat.LookupTypeName(ctx.Ctx, rec.TypeID)
		if err != nil {
			return value.Null, err
		}
		return value.Str(n), nil
	case "size":
		if len(args) != 1 {
			return value.Null, nil
		}
		if args[0].Kind() == value.KindStr {
			return value.Int(int64(len(args[0].Str()))), nil
		}
		return value.Int(int64(len(args[0].List()))), nil
	case "keys":
		if len(args) != 1 {
			return value.Null, nil
		}
		return value.List(mapKeys(args[0].Map())), nil
	case "toupper":
		return value.Str(strings.ToUpper(argStr(args))), nil
	case "tolower":
		return value.Str(strings.ToLower(argStr(args))), nil
	case "tostring":
		if len(args) != 1 {
			return value.Null, nil
		}
		return value.Str(fmt.Sprintf("%v", args[0])), nil
	case "toint", "tointeger":
		if len(args) != 1 || !args[0].IsNumeric() {
			return value.Null, nil
		}
		return value.Int(int64(args[0].Float())), nil
	case "tofloat":
		if len(args) != 1 || !args[0].IsNumeric() {
			return value.Null, nil
		}
		return value.Float(args[0].Float()), nil
	case "abs":
		if len(args) != 1 || !args[0].IsNumeric() {
			return value.Null, nil
		}
		if args[0].Kind() == value.KindInt {
			v := args[0].Int()
			if v < 0 {
				v = -v
			}
			return value.Int(v), nil
		}
		v := args[0].Float()
		if v < 0 {
			v = -v
		}
		return value.Float(v), nil
	case "coalesce":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return value.Null, nil
	default:
		return value.Null, runtimeErrorf("unknown function %q", x.Name)
	}
}

func argStr(args []value.Value) string {
	if len(args) == 0 || args[0].Kind() != value.KindStr {
		return ""
	}
	return args[0].Str()
}

func mapKeys(m map[string]value.Value) []value.Value {
	out := make([]value.Value, 0, len(m))
	for k := range m {
		out = append(out, value.Str(k))
	}
	return out
}
