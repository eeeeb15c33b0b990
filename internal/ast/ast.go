// Package ast defines the typed AST produced by the parser: Contract,
// Options, Parameter, Function, Statement, and Expression nodes, each
// carrying a source Span for diagnostics.
package ast

// Span marks where a node came from in the source text.
type Span struct {
	Line int
}

// Type is a parameter or witness-argument type: one of the scalar base
// types, or an array of a base type with a compile-time length.
type Type struct {
	Base     string // "pubkey","signature","bytes","bytes20","bytes32","int","bool","asset"
	IsArray  bool
	ArrayLen int
}

func (t Type) String() string {
	if t.IsArray {
		return t.Base + "[]"
	}
	return t.Base
}

// Parameter is a named, typed constructor or witness argument.
type Parameter struct {
	Name string
	Type Type
	Span Span
}

// Options captures the recognized `options { ... }` block.
type Options struct {
	ServerParam string // identifier naming the server pubkey parameter, "" if absent
	Exit        *int64 // relative timelock block count, required
	Renew       *int64 // reserved, not consumed by codegen
	Span        Span
}

// Function is a named spending path (or, if Internal, an inlined helper).
type Function struct {
	Name     string
	Params   []*Parameter
	Internal bool
	Body     []Statement
	Span     Span
}

// Contract is the top-level compilation unit.
type Contract struct {
	Name      string
	Params    []*Parameter
	Options   *Options
	Functions []*Function
	Span      Span
}

// ParamByName looks up a constructor parameter by name.
func (c *Contract) ParamByName(name string) *Parameter {
	for _, p := range c.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// FuncByName looks up a function (internal or not) by name.
func (c *Contract) FuncByName(name string) *Function {
	for _, f := range c.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Statement is implemented by every statement node.
type Statement interface {
	stmtNode()
	SpanOf() Span
}

// RequireStmt asserts Cond is truthy; Message is attached to the require
// summary but never to the emitted assembly.
type RequireStmt struct {
	Cond    Expr
	Message *string
	Span    Span
}

// LetStmt introduces an immutable binding.
type LetStmt struct {
	Name  string
	Value Expr
	Span  Span
}

// AssignStmt reassigns an existing let-binding.
type AssignStmt struct {
	Name  string
	Value Expr
	Span  Span
}

// IfStmt is a conditional with an optional else branch.
type IfStmt struct {
	Cond Expr
	Then []Statement
	Else []Statement
	Span Span
}

// ForStmt iterates a statically-bounded iterable.
type ForStmt struct {
	IndexName string
	ValueName string
	Iterable  Expr
	Body      []Statement
	Span      Span
}

// ExprStmt evaluates an expression for its side effects (a bare call).
type ExprStmt struct {
	X    Expr
	Span Span
}

func (*RequireStmt) stmtNode() {}
func (*LetStmt) stmtNode()     {}
func (*AssignStmt) stmtNode()  {}
func (*IfStmt) stmtNode()      {}
func (*ForStmt) stmtNode()     {}
func (*ExprStmt) stmtNode()    {}

func (s *RequireStmt) SpanOf() Span { return s.Span }
func (s *LetStmt) SpanOf() Span     { return s.Span }
func (s *AssignStmt) SpanOf() Span  { return s.Span }
func (s *IfStmt) SpanOf() Span      { return s.Span }
func (s *ForStmt) SpanOf() Span     { return s.Span }
func (s *ExprStmt) SpanOf() Span    { return s.Span }

// Expr is implemented by every expression node.
type Expr interface {
	exprNode()
	SpanOf() Span
}

// IntLit is a plain decimal integer literal.
type IntLit struct {
	Value int64
	Span  Span
}

// HexLit is a 0x-prefixed literal. It is used both for byte-string
// constants (pubkeys, hashes) and for hex-written integers; the semantic
// analyzer decides which based on context.
type HexLit struct {
	Raw   string // digits only, no 0x prefix, original case
	Bytes []byte // big-endian decoding of Raw, left-padded to an even length
	Span  Span
}

// BoolLit is a literal `true`/`false`.
type BoolLit struct {
	Value bool
	Span  Span
}

// StringLit is a quoted message string, only valid as the second argument
// to require().
type StringLit struct {
	Value string
	Span  Span
}

// Ident is an identifier reference: a constructor parameter, a witness
// parameter, or a let-binding.
type Ident struct {
	Name string
	Span Span
}

// ArrayLit is an inline array literal, e.g. the argument lists to
// checkMultisig([a, b], [sigA, sigB]).
type ArrayLit struct {
	Elems []Expr
	Span  Span
}

// IndexExpr is a[i].
type IndexExpr struct {
	X     Expr
	Index Expr
	Span  Span
}

// FieldExpr is x.f.
type FieldExpr struct {
	X     Expr
	Field string
	Span  Span
}

// CallExpr is a call to a built-in or internal function. Callee is the
// expression being called: an Ident for plain calls (checkSig(...)), or a
// FieldExpr chain for method-style built-ins (tx.assetGroups.find(id)).
type CallExpr struct {
	Callee Expr
	Args   []Expr
	Span   Span
}

// NewExpr is `new P2TR(pk [, tweak])`.
type NewExpr struct {
	TypeName string
	Args     []Expr
	Span     Span
}

// BinaryExpr is a binary operator application.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
	Span  Span
}

// UnaryExpr is a unary operator application (only `!` is defined).
type UnaryExpr struct {
	Op   string
	X    Expr
	Span Span
}

func (*IntLit) exprNode()     {}
func (*HexLit) exprNode()     {}
func (*BoolLit) exprNode()    {}
func (*StringLit) exprNode()  {}
func (*Ident) exprNode()      {}
func (*ArrayLit) exprNode()   {}
func (*IndexExpr) exprNode()  {}
func (*FieldExpr) exprNode()  {}
func (*CallExpr) exprNode()   {}
func (*NewExpr) exprNode()    {}
func (*BinaryExpr) exprNode() {}
func (*UnaryExpr) exprNode()  {}

func (e *IntLit) SpanOf() Span     { return e.Span }
func (e *HexLit) SpanOf() Span     { return e.Span }
func (e *BoolLit) SpanOf() Span    { return e.Span }
func (e *StringLit) SpanOf() Span  { return e.Span }
func (e *Ident) SpanOf() Span      { return e.Span }
func (e *ArrayLit) SpanOf() Span   { return e.Span }
func (e *IndexExpr) SpanOf() Span  { return e.Span }
func (e *FieldExpr) SpanOf() Span  { return e.Span }
func (e *CallExpr) SpanOf() Span   { return e.Span }
func (e *NewExpr) SpanOf() Span    { return e.Span }
func (e *BinaryExpr) SpanOf() Span { return e.Span }
func (e *UnaryExpr) SpanOf() Span  { return e.Span }
