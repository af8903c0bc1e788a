// Package plan implements component C6's planning half: lowering a
// parsed ast.Statement into a tree of physical operators the exec
// package interprets, plus the plan cache (spec section 4.6).
package plan

import "github.com/graphdb-core/graphdb/internal/ast"

// OpKind tags a PhysicalOp the way spec section 9's design notes ask
// for - "a tagged variant PhysicalOp where each operator owns its child
// operator(s)... avoid inheritance hierarchies" - realized in Go as one
// struct with a kind tag and kind-specific fields rather than a type
// hierarchy.
type OpKind uint8

const (
	OpAllNodesScan OpKind = iota
	OpNodeByLabel
	OpFilter
	OpExpand
	OpVarLengthExpand
	OpShortestPath
	OpProject
	OpDistinct
	OpAggregate
	OpOrderBy
	OpTopK
	OpSkip
	OpLimit
	OpUnwind
	OpUnion
	OpCreateNode
	OpCreateRel
	OpSetProperty
	OpRemoveProperty
	OpAddLabel
	OpRemoveLabel
	OpDeleteNode
	OpMerge
	OpCrossJoin
)

func (k OpKind) String() string {
	names := [...]string{
		"AllNodesScan", "NodeByLabel", "Filter", "Expand", "VarLengthExpand",
		"ShortestPath", "Project", "Distinct", "Aggregate", "OrderBy", "TopK",
		"Skip", "Limit", "Unwind", "Union", "CreateNode", "CreateRel",
		"SetProperty", "RemoveProperty", "AddLabel", "RemoveLabel",
		"DeleteNode", "Merge", "CrossJoin",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// ProjectItem is one evaluated output column.
type ProjectItem struct {
	Expr  ast.Expr
	Alias string
}

// OrderKey is one ORDER BY sort key.
type OrderKey struct {
	Expr       ast.Expr
	Descending bool
}

// AggSpec is one aggregate function applied during OpAggregate.
type AggSpec struct {
	Func     string // count, sum, avg, min, max, collect
	Arg      ast.Expr
	Star     bool
	Distinct bool
	Alias    string
}

// PhysicalOp is one node in the pull-based operator tree (spec section
// 4.6 "Physical operators"). Children are executed by the exec package
// in the order given; most operators have exactly one child, Union has
// two, scans have none.
type PhysicalOp struct {
	Kind     OpKind
	Children []*PhysicalOp

	// OpNodeByLabel / OpAddLabel / OpRemoveLabel / OpCreateNode
	Label uint32

	// OpFilter / OpSkip / OpLimit (count expr) / OpUnwind (list expr) /
	// OpCreateNode, OpCreateRel property-map source / OpSetProperty value
	Expr ast.Expr

	// OpExpand / OpVarLengthExpand
	Dir                ast.Direction
	RelTypes           []uint32
	FromVar, ToVar     string
	RelVar             string
	MinHops, MaxHops   int

	// OpShortestPath
	SrcVar, DstVar string
	AllPaths       bool
	PathVar        string

	// OpProject
	Items    []ProjectItem
	Distinct bool

	// OpAggregate
	GroupKeys []ProjectItem
	Aggs      []AggSpec

	// OpOrderBy / OpTopK
	OrderKeys []OrderKey
	K         int

	// OpUnwind
	UnwindVar string

	// OpUnion
	UnionAll bool

	// mutation targets: which row variable names the operator reads
	NodeVar, RelVar2 string
	PropKey          uint32

	// OpMerge
	MergePattern       *ast.PatternElement
	MergeOnCreate      []ast.SetItem
	MergeOnMatch       []ast.SetItem
	MergePatternLabels []uint32   // pattern.Nodes[0]'s resolved label IDs
	MergeNodeLabels    [][]uint32 // resolved label IDs per pattern.Nodes entry
	MergeRelTypes      [][]uint32 // resolved type IDs per pattern.Rels entry

	// OpDeleteNode
	DetachDelete bool
}
