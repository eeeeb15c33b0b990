package sema

import (
	"fmt"

	"github.com/arkade-os/arkade-script/internal/ast"
	"github.com/arkade-os/arkade-script/internal/errs"
)

// expandCtx threads the inputs an expansion pass needs: the contract (for
// internal-function and array-length lookups), a substitution table for
// identifiers bound by loop unrolling or call-site inlining, and a gensym
// counter used to alpha-rename inlined locals so they never collide with
// a caller's own let-bindings of the same name.
type expandCtx struct {
	contract    *ast.Contract
	subst       map[string]ast.Expr // identifier name -> replacement expression
	rename      map[string]string   // local-binding name -> alpha-renamed name, this inlining frame only
	arrayParams map[string]int      // statically-known array length, by parameter name (read-only, shared)
	gensym      *int
	depth       int // inlining recursion guard
}

const maxInlineDepth = 32

func newExpandCtx(c *ast.Contract, fn *ast.Function) *expandCtx {
	n := 0
	arr := map[string]int{}
	for _, p := range c.Params {
		if p.Type.IsArray {
			arr[p.Name] = p.Type.ArrayLen
		}
	}
	for _, p := range fn.Params {
		if p.Type.IsArray {
			arr[p.Name] = p.Type.ArrayLen
		}
	}
	return &expandCtx{contract: c, subst: map[string]ast.Expr{}, rename: map[string]string{}, arrayParams: arr, gensym: &n}
}

func (c *expandCtx) child() *expandCtx {
	return &expandCtx{contract: c.contract, subst: copyExprMap(c.subst), rename: copyStrMap(c.rename), arrayParams: c.arrayParams, gensym: c.gensym, depth: c.depth}
}

func copyExprMap(m map[string]ast.Expr) map[string]ast.Expr {
	out := make(map[string]ast.Expr, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStrMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (c *expandCtx) fresh(base string) string {
	*c.gensym++
	return fmt.Sprintf("%s$%d", base, *c.gensym)
}

// ExpandFunction inlines internal-function calls and unrolls bounded for
// loops in fn's body, returning a flat(ter) statement list containing only
// Require/Let/Assign/If/ExprStmt nodes (no ForStmt, no calls to internal
// functions survive).
func ExpandFunction(contract *ast.Contract, fn *ast.Function) ([]ast.Statement, error) {
	ctx := newExpandCtx(contract, fn)
	return expandBlock(fn.Body, ctx)
}

func expandBlock(stmts []ast.Statement, ctx *expandCtx) ([]ast.Statement, error) {
	var out []ast.Statement
	for _, s := range stmts {
		expanded, err := expandStmt(s, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func expandStmt(s ast.Statement, ctx *expandCtx) ([]ast.Statement, error) {
	switch st := s.(type) {
	case *ast.RequireStmt:
		pre, cond, err := expandExpr(st.Cond, ctx)
		if err != nil {
			return nil, err
		}
		return append(pre, &ast.RequireStmt{Cond: cond, Message: st.Message, Span: st.Span}), nil

	case *ast.LetStmt:
		pre, val, err := expandExpr(st.Value, ctx)
		if err != nil {
			return nil, err
		}
		name := ctx.renamed(st.Name)
		return append(pre, &ast.LetStmt{Name: name, Value: val, Span: st.Span}), nil

	case *ast.AssignStmt:
		pre, val, err := expandExpr(st.Value, ctx)
		if err != nil {
			return nil, err
		}
		name := ctx.renamed(st.Name)
		return append(pre, &ast.AssignStmt{Name: name, Value: val, Span: st.Span}), nil

	case *ast.IfStmt:
		pre, cond, err := expandExpr(st.Cond, ctx)
		if err != nil {
			return nil, err
		}
		thenOut, err := expandBlock(st.Then, ctx.child())
		if err != nil {
			return nil, err
		}
		elseOut, err := expandBlock(st.Else, ctx.child())
		if err != nil {
			return nil, err
		}
		return append(pre, &ast.IfStmt{Cond: cond, Then: thenOut, Else: elseOut, Span: st.Span}), nil

	case *ast.ForStmt:
		return expandFor(st, ctx)

	case *ast.ExprStmt:
		if call, ok := st.X.(*ast.CallExpr); ok {
			if callee, ok := call.Callee.(*ast.Ident); ok && !builtinNames[callee.Name] && ctx.contract.FuncByName(callee.Name) != nil {
				return expandCallAsEffect(call, ctx)
			}
		}
		pre, x, err := expandExpr(st.X, ctx)
		if err != nil {
			return nil, err
		}
		return append(pre, &ast.ExprStmt{X: x, Span: st.Span}), nil
	}
	return nil, errs.Internal(0, "unknown statement node %T", s)
}

// renamed returns the current alpha-renamed form of a locally-declared
// name, or name unchanged if this frame never renamed it.
func (c *expandCtx) renamed(name string) string {
	if r, ok := c.rename[name]; ok {
		return r
	}
	return name
}

func expandFor(st *ast.ForStmt, ctx *expandCtx) ([]ast.Statement, error) {
	pre, iterExpr, err := expandExpr(st.Iterable, ctx)
	if err != nil {
		return nil, err
	}
	length, elemAt, err := staticIterable(ctx, iterExpr, st.Span.Line)
	if err != nil {
		return nil, err
	}
	var out []ast.Statement
	out = append(out, pre...)
	for i := 0; i < length; i++ {
		inner := ctx.child()
		inner.subst[st.IndexName] = &ast.IntLit{Value: int64(i), Span: st.Span}
		inner.subst[st.ValueName] = elemAt(i)
		body, err := expandBlock(st.Body, inner)
		if err != nil {
			return nil, err
		}
		out = append(out, body...)
	}
	return out, nil
}

// staticIterable resolves the statically-known length of a `for (i, v) in
// iter` iterable and a function producing the expression for iter's k-th
// element. Two iterable shapes are supported: a reference to a
// fixed-length array parameter (constructor or witness), whose length is
// part of its declared type; and `tx.assetGroups`, bounded by the
// constructor parameter named `numGroups`. Since a plain `int` parameter
// carries no compile-time value (it is witness-resolved like every other
// parameter), `numGroups` must be declared as a fixed-length array type
// (conventionally `bool[N]`) purely to carry its static length N — see
// the "numGroups bound" entry in DESIGN.md for why this convention was
// chosen over alternatives.
func staticIterable(ctx *expandCtx, iter ast.Expr, line int) (int, func(int) ast.Expr, error) {
	if id, ok := iter.(*ast.Ident); ok {
		n, ok := ctx.arrayParams[id.Name]
		if !ok {
			return 0, nil, errs.Shape(line, "for-loop iterable %q is not a fixed-length array parameter", id.Name)
		}
		return n, func(k int) ast.Expr {
			return &ast.IndexExpr{X: &ast.Ident{Name: id.Name, Span: iter.SpanOf()}, Index: &ast.IntLit{Value: int64(k), Span: iter.SpanOf()}, Span: iter.SpanOf()}
		}, nil
	}
	if fe, ok := iter.(*ast.FieldExpr); ok {
		if root, ok := fe.X.(*ast.Ident); ok && root.Name == "tx" && fe.Field == "assetGroups" {
			n, ok := ctx.arrayParams["numGroups"]
			if !ok {
				return 0, nil, errs.Shape(line, "for-loop over tx.assetGroups requires a constructor parameter named numGroups declared with a fixed array length")
			}
			return n, func(k int) ast.Expr {
				groups := &ast.FieldExpr{X: &ast.Ident{Name: "tx", Span: iter.SpanOf()}, Field: "assetGroups", Span: iter.SpanOf()}
				return &ast.IndexExpr{X: groups, Index: &ast.IntLit{Value: int64(k), Span: iter.SpanOf()}, Span: iter.SpanOf()}
			}, nil
		}
	}
	return 0, nil, errs.Shape(line, "for-loop requires a statically-bounded iterable (a fixed-length array parameter, or tx.assetGroups)")
}

// expandExpr rewrites expr under ctx's substitution/rename tables and
// inlines any internal-function call it contains. It returns a (possibly
// empty) list of statements that must be spliced immediately before the
// statement currently being expanded (the inlined callee's side-effecting
// statements), plus the rewritten expression standing in for the original.
func expandExpr(e ast.Expr, ctx *expandCtx) ([]ast.Statement, ast.Expr, error) {
	switch x := e.(type) {
	case *ast.IntLit, *ast.HexLit, *ast.BoolLit, *ast.StringLit:
		return nil, e, nil

	case *ast.Ident:
		if repl, ok := ctx.subst[x.Name]; ok {
			return nil, repl, nil
		}
		if r, ok := ctx.rename[x.Name]; ok {
			return nil, &ast.Ident{Name: r, Span: x.Span}, nil
		}
		return nil, x, nil

	case *ast.ArrayLit:
		var pre []ast.Statement
		elems := make([]ast.Expr, len(x.Elems))
		for i, el := range x.Elems {
			p, ne, err := expandExpr(el, ctx)
			if err != nil {
				return nil, nil, err
			}
			pre = append(pre, p...)
			elems[i] = ne
		}
		return pre, &ast.ArrayLit{Elems: elems, Span: x.Span}, nil

	case *ast.IndexExpr:
		pre1, xe, err := expandExpr(x.X, ctx)
		if err != nil {
			return nil, nil, err
		}
		pre2, idx, err := expandExpr(x.Index, ctx)
		if err != nil {
			return nil, nil, err
		}
		return append(pre1, pre2...), &ast.IndexExpr{X: xe, Index: idx, Span: x.Span}, nil

	case *ast.FieldExpr:
		pre, xe, err := expandExpr(x.X, ctx)
		if err != nil {
			return nil, nil, err
		}
		return pre, &ast.FieldExpr{X: xe, Field: x.Field, Span: x.Span}, nil

	case *ast.NewExpr:
		var pre []ast.Statement
		args := make([]ast.Expr, len(x.Args))
		for i, a := range x.Args {
			p, ne, err := expandExpr(a, ctx)
			if err != nil {
				return nil, nil, err
			}
			pre = append(pre, p...)
			args[i] = ne
		}
		return pre, &ast.NewExpr{TypeName: x.TypeName, Args: args, Span: x.Span}, nil

	case *ast.UnaryExpr:
		pre, xe, err := expandExpr(x.X, ctx)
		if err != nil {
			return nil, nil, err
		}
		return pre, &ast.UnaryExpr{Op: x.Op, X: xe, Span: x.Span}, nil

	case *ast.BinaryExpr:
		pre1, l, err := expandExpr(x.Left, ctx)
		if err != nil {
			return nil, nil, err
		}
		pre2, r, err := expandExpr(x.Right, ctx)
		if err != nil {
			return nil, nil, err
		}
		return append(pre1, pre2...), &ast.BinaryExpr{Op: x.Op, Left: l, Right: r, Span: x.Span}, nil

	case *ast.CallExpr:
		return expandCall(x, ctx)
	}
	return nil, nil, errs.Internal(0, "unknown expression node %T", e)
}

// builtinNames never resolve to a user function, so a CallExpr whose
// callee is a bare identifier in this set is never a candidate for
// inlining.
var builtinNames = map[string]bool{
	"checkSig": true, "checkMultisig": true, "checkSigFromStack": true, "sha256": true,
}

func expandCall(call *ast.CallExpr, ctx *expandCtx) ([]ast.Statement, ast.Expr, error) {
	callee, isIdent := call.Callee.(*ast.Ident)
	if !isIdent || builtinNames[callee.Name] {
		prefix, newCallee, err := expandExpr(call.Callee, ctx)
		if err != nil {
			return nil, nil, err
		}
		var pre []ast.Statement
		pre = append(pre, prefix...)
		args := make([]ast.Expr, len(call.Args))
		for i, a := range call.Args {
			p, ne, err := expandExpr(a, ctx)
			if err != nil {
				return nil, nil, err
			}
			pre = append(pre, p...)
			args[i] = ne
		}
		return pre, &ast.CallExpr{Callee: newCallee, Args: args, Span: call.Span}, nil
	}

	return expandCallAsValue(call, callee.Name, ctx)
}

// expandCallAsEffect inlines a call to an internal function used as a bare
// statement: its side-effecting statements (requires, lets, ifs) are
// spliced in verbatim and any trailing value-producing expression
// statement is kept as a (now meaningless but harmless) expression
// statement rather than rejected, since nothing consumes its value.
func expandCallAsEffect(call *ast.CallExpr, ctx *expandCtx) ([]ast.Statement, error) {
	callee := call.Callee.(*ast.Ident)
	expanded, argPre, _, err := inlineCall(call, callee.Name, ctx)
	if err != nil {
		return nil, err
	}
	return append(argPre, expanded...), nil
}

// expandCallAsValue inlines a call to an internal function used in
// expression position. The callee's last statement must be an expression
// statement; its expression becomes the value the call reduces to, and
// every statement before it (across the whole call tree) is hoisted as a
// prefix to the enclosing statement.
func expandCallAsValue(call *ast.CallExpr, name string, ctx *expandCtx) ([]ast.Statement, ast.Expr, error) {
	expanded, argPre, fn, err := inlineCall(call, name, ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(expanded) == 0 {
		return nil, nil, errs.Shape(call.Span.Line, "internal function %q has no statements to produce a value", name)
	}
	last := expanded[len(expanded)-1]
	exprStmt, ok := last.(*ast.ExprStmt)
	if !ok {
		return append(argPre, expanded...), nil, errs.Shape(call.Span.Line, "internal function %q used in value position must end with an expression statement", fn.Name)
	}
	return append(argPre, expanded[:len(expanded)-1]...), exprStmt.X, nil
}

// inlineCall performs the substitution, alpha-renaming, and recursive
// expansion shared by both call forms, returning the callee's fully
// expanded body, the hoisted argument-evaluation prefix, and the resolved
// function (for error messages).
func inlineCall(call *ast.CallExpr, name string, ctx *expandCtx) ([]ast.Statement, []ast.Statement, *ast.Function, error) {
	fn := ctx.contract.FuncByName(name)
	if fn == nil {
		return nil, nil, nil, errs.Scope(call.Span.Line, "call to unknown function %q", name)
	}
	if !fn.Internal {
		return nil, nil, nil, errs.Shape(call.Span.Line, "%q is not an internal function and cannot be called", name)
	}
	if ctx.depth >= maxInlineDepth {
		return nil, nil, nil, errs.Shape(call.Span.Line, "internal call depth exceeds %d (recursive internal functions are not supported)", maxInlineDepth)
	}
	if len(call.Args) != len(fn.Params) {
		return nil, nil, nil, errs.Shape(call.Span.Line, "call to %q passes %d arguments, expected %d", name, len(call.Args), len(fn.Params))
	}

	callCtx := ctx.child()
	callCtx.depth++
	var argPre []ast.Statement
	for i, param := range fn.Params {
		pre, argExpr, err := expandExpr(call.Args[i], ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		argPre = append(argPre, pre...)
		callCtx.subst[param.Name] = argExpr
	}

	body, err := alphaRenameLocals(fn.Body, callCtx)
	if err != nil {
		return nil, nil, nil, err
	}
	expanded, err := expandBlock(body, callCtx)
	if err != nil {
		return nil, nil, nil, err
	}
	return expanded, argPre, fn, nil
}

// alphaRenameLocals walks fn's body and assigns a fresh name to every
// let-bound local so an inlined copy never collides with a sibling
// inlining or with the caller's own bindings. Parameters are not
// renamed; they're substituted directly via callCtx.subst.
func alphaRenameLocals(body []ast.Statement, ctx *expandCtx) ([]ast.Statement, error) {
	for _, s := range body {
		collectLocalNames(s, ctx)
	}
	return body, nil
}

func collectLocalNames(s ast.Statement, ctx *expandCtx) {
	switch st := s.(type) {
	case *ast.LetStmt:
		if _, already := ctx.rename[st.Name]; !already {
			ctx.rename[st.Name] = ctx.fresh(st.Name)
		}
	case *ast.IfStmt:
		for _, inner := range st.Then {
			collectLocalNames(inner, ctx)
		}
		for _, inner := range st.Else {
			collectLocalNames(inner, ctx)
		}
	case *ast.ForStmt:
		for _, inner := range st.Body {
			collectLocalNames(inner, ctx)
		}
	}
}
