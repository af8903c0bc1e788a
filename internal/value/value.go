// Package value implements the tagged-union dynamic value used for
// property values and expression results throughout the engine.
package value

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the dynamic type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindList
	KindMap
	KindNode
	KindRel
	KindPath
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindNode:
		return "node"
	case KindRel:
		return "relationship"
	case KindPath:
		return "path"
	default:
		return "unknown"
	}
}

// Path is a sequence of alternating node and relationship IDs,
// starting and ending on a node: Nodes[i] -[Rels[i]]-> Nodes[i+1].
type Path struct {
	Nodes []uint64
	Rels  []uint64
}

// Value is a dynamic, heterogenous value: the unit of data flowing through
// property chains and the expression evaluator.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
	node uint64
	rel  uint64
	path Path
}

var Null = Value{kind: KindNull}

func Bool(b bool) Value  { return Value{kind: KindBool, b: b} }
func Int(i int64) Value  { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func Str(s string) Value { return Value{kind: KindStr, s: s} }
func List(vs []Value) Value { return Value{kind: KindList, list: vs} }
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }
func NodeRef(id uint64) Value { return Value{kind: KindNode, node: id} }
func RelRef(id uint64) Value  { return Value{kind: KindRel, rel: id} }
func PathRef(p Path) Value    { return Value{kind: KindPath, path: p} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

func (v Value) Bool() bool   { return v.b }
func (v Value) Int() int64   { return v.i }
func (v Value) Float() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}
func (v Value) Str() string      { return v.s }
func (v Value) List() []Value    { return v.list }
func (v Value) Map() map[string]Value { return v.m }
func (v Value) NodeID() uint64   { return v.node }
func (v Value) RelID() uint64    { return v.rel }
func (v Value) Path() Path       { return v.path }

// Truthy implements three-valued logic truthiness: returns (value, known).
// known is false for null and for non-boolean operands.
func (v Value) Truthy() (bool, bool) {
	if v.kind == KindNull {
		return false, false
	}
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Add implements the overloaded `+` operator from spec section 4.6:
// numeric addition when both sides are numeric, string concatenation when
// either side is a string, list concatenation when both sides are lists,
// and null propagation when either operand is null.
func Add(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null, nil
	}
	switch {
	case a.kind == KindStr || b.kind == KindStr:
		return Str(a.displayString() + b.displayString()), nil
	case a.kind == KindList && b.kind == KindList:
		out := make([]Value, 0, len(a.list)+len(b.list))
		out = append(out, a.list...)
		out = append(out, b.list...)
		return List(out), nil
	case a.IsNumeric() && b.IsNumeric():
		if a.kind == KindInt && b.kind == KindInt {
			return Int(a.i + b.i), nil
		}
		return Float(a.Float() + b.Float()), nil
	default:
		return Null, fmt.Errorf("type mismatch: cannot add %s and %s", a.kind, b.kind)
	}
}

// displayString renders a value as it would appear concatenated into a
// string by `+`; this is intentionally distinct from a debug %v format.
func (v Value) displayString() string {
	switch v.kind {
	case KindStr:
		return v.s
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Compare orders two values for ORDER BY / comparisons. ok is false when
// the values are not order-comparable (mixed, non-numeric types).
func Compare(a, b Value) (cmp int, ok bool) {
	if a.kind != b.kind {
		if a.IsNumeric() && b.IsNumeric() {
			af, bf := a.Float(), b.Float()
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	switch a.kind {
	case KindInt:
		switch {
		case a.i < b.i:
			return -1, true
		case a.i > b.i:
			return 1, true
		default:
			return 0, true
		}
	case KindFloat:
		switch {
		case a.f < b.f:
			return -1, true
		case a.f > b.f:
			return 1, true
		default:
			return 0, true
		}
	case KindStr:
		return strings.Compare(a.s, b.s), true
	case KindBool:
		if a.b == b.b {
			return 0, true
		}
		if !a.b && b.b {
			return -1, true
		}
		return 1, true
	default:
		return 0, false
	}
}

// Equal implements value equality used by `=`/`<>`/DISTINCT/IN. Unlike
// Compare, it is defined across all kinds (two nulls are not equal under
// Cypher's three-valued semantics - callers needing that distinction
// should check IsNull separately).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		if a.IsNumeric() && b.IsNumeric() {
			return a.Float() == b.Float()
		}
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindStr:
		return a.s == b.s
	case KindNode:
		return a.node == b.node
	case KindRel:
		return a.rel == b.rel
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Slice implements Cypher list slicing a[i..j]: half-open, either bound
// omissible via hasLo/hasHi, negative indices counted from the end.
func Slice(list []Value, lo int, hasLo bool, hi int, hasHi bool) []Value {
	n := len(list)
	start := 0
	end := n
	if hasLo {
		start = normalizeIndex(lo, n)
	}
	if hasHi {
		end = normalizeIndex(hi, n)
	}
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= end {
		return []Value{}
	}
	out := make([]Value, end-start)
	copy(out, list[start:end])
	return out
}

// Index implements a[i] with negative indices counted from the end.
// ok is false if the index is out of bounds.
func Index(list []Value, i int) (Value, bool) {
	idx := normalizeIndex(i, len(list))
	if idx < 0 || idx >= len(list) {
		return Null, false
	}
	return list[idx], true
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		return n + i
	}
	return i
}

// SortKey renders a value into a stable, comparable string used as a hash
// map key for DISTINCT / aggregate GROUP BY bucketing.
func SortKey(v Value) string {
	var sb strings.Builder
	writeSortKey(&sb, v)
	return sb.String()
}

func writeSortKey(sb *strings.Builder, v Value) {
	switch v.kind {
	case KindNull:
		sb.WriteString("N")
	case KindBool:
		fmt.Fprintf(sb, "B%t", v.b)
	case KindInt:
		fmt.Fprintf(sb, "I%d", v.i)
	case KindFloat:
		fmt.Fprintf(sb, "F%g", v.f)
	case KindStr:
		fmt.Fprintf(sb, "S%d:%s", len(v.s), v.s)
	case KindNode:
		fmt.Fprintf(sb, "n%d", v.node)
	case KindRel:
		fmt.Fprintf(sb, "r%d", v.rel)
	case KindList:
		sb.WriteString("L(")
		for _, e := range v.list {
			writeSortKey(sb, e)
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("M(")
		for _, k := range keys {
			sb.WriteString(k)
			sb.WriteByte(':')
			writeSortKey(sb, v.m[k])
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case KindPath:
		fmt.Fprintf(sb, "P%v/%v", v.path.Nodes, v.path.Rels)
	}
}
