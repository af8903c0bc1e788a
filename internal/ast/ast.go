// Package ast defines the contract types the planner consumes: a
// Cypher-like statement tree handed in already parsed (the parser itself
// is explicitly out of scope, per spec section 1 Non-goals). Front-ends
// construct these nodes directly, or a parser package outside this
// module's scope does.
package ast

// Direction is a relationship pattern's traversal direction.
type Direction uint8

const (
	DirEither Direction = iota
	DirOut
	DirIn
)

// Statement is a complete query: a sequence of clauses executed in
// order, terminated by an optional RETURN (spec section 4.6).
type Statement struct {
	Clauses []Clause
}

// Clause is one of MATCH, WHERE, WITH, RETURN, ORDER BY, SKIP, LIMIT,
// CREATE, MERGE, SET, DELETE, REMOVE, UNWIND, FOREACH, UNION, CALL.
type Clause interface{ clause() }

// NodePattern is one node in a MATCH/CREATE pattern: an optional binding
// variable, zero or more labels, and an inline property-equality map
// (spec section 4.6: "inline property equalities... become Filter").
type NodePattern struct {
	Var    string
	Labels []string
	Props  map[string]Expr
}

// RelPattern is one relationship hop in a pattern.
type RelPattern struct {
	Var       string
	Types     []string // pipe-separated set, e.g. [:A|B]
	Dir       Direction
	Props     map[string]Expr
	MinHops   int  // variable-length lower bound; 1 for a plain single hop
	MaxHops   int  // variable-length upper bound; 1 for a plain single hop
	VarLength bool // true for *min..max syntax, even *1..1
}

// PatternElement alternates NodePattern/RelPattern, always starting and
// ending on a NodePattern: Nodes[i] -RelPattern[i]- Nodes[i+1].
type PatternElement struct {
	Nodes []NodePattern
	Rels  []RelPattern
}

// MatchClause matches zero or more patterns (comma-separated patterns
// form a Cartesian product unless they share a variable).
type MatchClause struct {
	Patterns []PatternElement
	Optional bool
	Where    Expr // nil if absent
}

func (*MatchClause) clause() {}

// WhereClause filters rows by predicate; also usable standalone after
// WITH/UNWIND (MATCH carries its own inline Where field for convenience,
// mirroring how most Cypher grammars attach WHERE to the preceding
// clause).
type WhereClause struct{ Predicate Expr }

func (*WhereClause) clause() {}

// ReturnItem is one projected expression with an optional alias.
type ReturnItem struct {
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr       Expr
	Descending bool
}

// ProjectionClause is shared shape for RETURN and WITH: a projection
// list plus optional DISTINCT/ORDER BY/SKIP/LIMIT riding along.
type ProjectionClause struct {
	Items    []ReturnItem
	Star     bool // RETURN * / WITH *
	Distinct bool
	OrderBy  []OrderItem
	Skip     Expr
	Limit    Expr
}

// ReturnClause terminates a statement and produces the ResultSet.
type ReturnClause struct{ ProjectionClause }

func (*ReturnClause) clause() {}

// WithClause re-projects and re-binds variables mid-pipeline, optionally
// filtering the re-bound rows (WITH ... WHERE ...).
type WithClause struct {
	ProjectionClause
	Where Expr
}

func (*WithClause) clause() {}

// CreateClause creates the given patterns. A pattern's NodePattern.Var
// may refer to an existing binding (e.g. CREATE (a)-[:R]->(b) where a
// was matched earlier), in which case the planner emits a CreateRel
// rather than a CreateNode for that element.
type CreateClause struct{ Patterns []PatternElement }

func (*CreateClause) clause() {}

// SetItem is one `SET x.k = expr`, `SET x:Label`, or `SET x = {map}`
// assignment.
type SetItem struct {
	Target   Expr // PropertyAccess, Variable (for whole-entity SET), etc.
	Label    string
	Value    Expr
	IsLabel  bool
	IsReplace bool // SET n = {...} replaces the whole property map
}

type SetClause struct{ Items []SetItem }

func (*SetClause) clause() {}

// RemoveItem is `REMOVE x.k` or `REMOVE x:Label`.
type RemoveItem struct {
	Target  Expr
	Label   string
	IsLabel bool
}

type RemoveClause struct{ Items []RemoveItem }

func (*RemoveClause) clause() {}

// DeleteClause deletes the bound entities named by Vars. Detach controls
// whether incident relationships are removed first (spec section 4.6,
// 9: "DETACH DELETE ... full relationship removal before node removal").
type DeleteClause struct {
	Vars   []Expr
	Detach bool
}

func (*DeleteClause) clause() {}

// UnwindClause expands a list-valued expression into one row per
// element, bound to Var.
type UnwindClause struct {
	List Expr
	Var  string
}

func (*UnwindClause) clause() {}

// ForeachClause runs Do once per element of List, with Var bound in
// each iteration; a side-effecting analogue of UNWIND.
type ForeachClause struct {
	List Expr
	Var  string
	Do   []Clause
}

func (*ForeachClause) clause() {}

// UnionClause combines the statement built so far with Other; All
// selects UNION ALL (no dedup) vs UNION (implicit Distinct).
type UnionClause struct {
	Other *Statement
	All   bool
}

func (*UnionClause) clause() {}

// CallClause invokes a registered procedure by name. Out of the spec's
// core scope beyond the contract shape; the executor treats an unknown
// procedure as a PlanError.
type CallClause struct {
	Procedure string
	Args      []Expr
	Yield     []string
}

func (*CallClause) clause() {}

// MergeAction is one ON CREATE/ON MATCH SET list attached to a MERGE.
type MergeAction struct {
	OnMatch bool // false = ON CREATE
	Sets    []SetItem
}

// MergeClause probes for Pattern; if absent, creates it and runs the
// ON CREATE actions, otherwise runs the ON MATCH actions (spec section
// 4.6).
type MergeClause struct {
	Pattern PatternElement
	Actions []MergeAction
}

func (*MergeClause) clause() {}
