package sema

import (
	"github.com/arkade-os/arkade-script/internal/ast"
	"github.com/arkade-os/arkade-script/internal/errs"
)

// Reprs maps every expression node reachable from a function's expanded
// body to the representation type the analyzer assigned it. Codegen
// consumes this instead of re-deriving representations from scratch.
type Reprs map[ast.Expr]Repr

// CheckFunction walks an already-expanded function body (no ForStmt, no
// calls to internal functions), resolving every identifier against env,
// assigning a representation to every expression, and validating the
// representation-transition rules of the data model. It returns the
// per-expression representation map codegen will read back.
func CheckFunction(body []ast.Statement, env *Env) (Reprs, error) {
	r := Reprs{}
	if err := checkBlock(body, env, r); err != nil {
		return nil, err
	}
	return r, nil
}

func checkBlock(stmts []ast.Statement, env *Env, r Reprs) error {
	for _, s := range stmts {
		if err := checkStmt(s, env, r); err != nil {
			return err
		}
	}
	return nil
}

func checkStmt(s ast.Statement, env *Env, r Reprs) error {
	switch st := s.(type) {
	case *ast.RequireStmt:
		repr, err := infer(st.Cond, env, r)
		if err != nil {
			return err
		}
		if repr != ReprCSN {
			return errs.Representation(st.Span.Line, "require() condition must be a boolean/csn value, got %s", repr)
		}
		return nil

	case *ast.LetStmt:
		repr, err := infer(st.Value, env, r)
		if err != nil {
			return err
		}
		env.Define(&Symbol{Name: st.Name, Repr: repr, Origin: OriginLet})
		return nil

	case *ast.AssignStmt:
		sym, ok := env.Lookup(st.Name)
		if !ok {
			return errs.Scope(st.Span.Line, "assignment to undeclared variable %q", st.Name)
		}
		if sym.Origin != OriginLet {
			return errs.Scope(st.Span.Line, "%q is not a reassignable let-binding", st.Name)
		}
		repr, err := infer(st.Value, env, r)
		if err != nil {
			return err
		}
		if !Convertible(repr, sym.Repr) && repr != sym.Repr {
			return errs.Representation(st.Span.Line, "cannot assign %s value to %s-typed binding %q", repr, sym.Repr, st.Name)
		}
		sym.Repr = repr
		return nil

	case *ast.IfStmt:
		condRepr, err := infer(st.Cond, env, r)
		if err != nil {
			return err
		}
		if condRepr != ReprCSN {
			return errs.Representation(st.Span.Line, "if condition must be a boolean/csn value, got %s", condRepr)
		}
		if err := checkBlock(st.Then, env.Push(), r); err != nil {
			return err
		}
		return checkBlock(st.Else, env.Push(), r)

	case *ast.ExprStmt:
		_, err := infer(st.X, env, r)
		return err

	case *ast.ForStmt:
		return errs.Internal(st.Span.Line, "representation check ran on an un-expanded for-loop")
	}
	return errs.Internal(0, "unknown statement node %T", s)
}

func infer(e ast.Expr, env *Env, r Reprs) (Repr, error) {
	repr, err := inferUncached(e, env, r)
	if err != nil {
		return ReprUnknown, err
	}
	r[e] = repr
	return repr, nil
}

func inferUncached(e ast.Expr, env *Env, r Reprs) (Repr, error) {
	switch x := e.(type) {
	case *ast.IntLit:
		return ReprCSN, nil

	case *ast.HexLit:
		return ReprBytes, nil

	case *ast.BoolLit:
		return ReprCSN, nil

	case *ast.StringLit:
		return ReprBytes, nil

	case *ast.Ident:
		// "tx" is the transaction-introspection pseudo-namespace, never a
		// bound value in its own right — only its field/index chain carries
		// a repr. Codegen never emits a lookup receiver, pushes only the
		// index of tx.inputs/outputs/assetGroups, and special-cases tx.time;
		// any other property read off an un-indexed tx chain (e.g.
		// tx.assetGroups.length) reaches a bare "tx" there and fails, since
		// "tx" has no binding.
		if x.Name == "tx" {
			return ReprUnknown, nil
		}
		sym, ok := env.Lookup(x.Name)
		if !ok {
			return ReprUnknown, errs.Scope(x.Span.Line, "unknown identifier %q", x.Name)
		}
		return sym.Repr, nil

	case *ast.ArrayLit:
		var elemRepr Repr = ReprUnknown
		for _, el := range x.Elems {
			rep, err := infer(el, env, r)
			if err != nil {
				return ReprUnknown, err
			}
			if elemRepr == ReprUnknown {
				elemRepr = rep
			}
		}
		return elemRepr, nil

	case *ast.IndexExpr:
		return inferIndex(x, env, r)

	case *ast.FieldExpr:
		return inferField(x, env, r)

	case *ast.CallExpr:
		return inferCall(x, env, r)

	case *ast.NewExpr:
		for _, a := range x.Args {
			if _, err := infer(a, env, r); err != nil {
				return ReprUnknown, err
			}
		}
		return ReprBytes, nil

	case *ast.UnaryExpr:
		rep, err := infer(x.X, env, r)
		if err != nil {
			return ReprUnknown, err
		}
		if x.Op != "!" {
			return ReprUnknown, errs.Representation(x.Span.Line, "unary %q is not supported", x.Op)
		}
		if rep != ReprCSN {
			return ReprUnknown, errs.Representation(x.Span.Line, "! requires a boolean/csn operand, got %s", rep)
		}
		return ReprCSN, nil

	case *ast.BinaryExpr:
		return inferBinary(x, env, r)
	}
	return ReprUnknown, errs.Internal(0, "unknown expression node %T", e)
}

// inferIndex covers a[i] on a known array symbol (witness quorum arrays,
// constructor pubkey/signer arrays) and the asset-group/transaction
// collection index forms recognized under inferField's tx.* handling —
// those arrive here as IndexExpr whose X is itself a FieldExpr, so the
// element representation is delegated to the field's own rule.
func inferIndex(x *ast.IndexExpr, env *Env, r Reprs) (Repr, error) {
	if _, err := infer(x.Index, env, r); err != nil {
		return ReprUnknown, err
	}
	if id, ok := x.X.(*ast.Ident); ok {
		sym, ok := env.Lookup(id.Name)
		if !ok {
			return ReprUnknown, errs.Scope(x.Span.Line, "unknown identifier %q", id.Name)
		}
		return sym.Repr, nil
	}
	// tx.inputs[i], tx.outputs[o], tx.assetGroups[k]: the index selects
	// one element of an opaque transaction-introspection collection; its
	// own field accesses (.value, .assetId, …) carry the real repr.
	if _, err := infer(x.X, env, r); err != nil {
		return ReprUnknown, err
	}
	return ReprBytes, nil
}

// txPropertyRepr maps a recognized tx.*/group.* trailing field name to
// its representation. Names not present here (e.g. a bare `tx.inputs`
// used only as a base for further indexing) return ReprUnknown and are
// not meant to be read as a value directly.
var txPropertyRepr = map[string]Repr{
	"time":         ReprU32LE,
	"value":        ReprU64LE,
	"scriptPubKey": ReprBytes,
	"length":       ReprCSN,
	"assetId":      ReprBytes,
	"isFresh":      ReprCSN,
	"control":      ReprBytes,
	"metadataHash": ReprBytes,
	"numInputs":    ReprCSN,
	"numOutputs":   ReprCSN,
	"sumInputs":    ReprU64LE,
	"sumOutputs":   ReprU64LE,
	"delta":        ReprU64LE,
}

func inferField(x *ast.FieldExpr, env *Env, r Reprs) (Repr, error) {
	if _, err := infer(x.X, env, r); err != nil {
		return ReprUnknown, err
	}
	if repr, ok := txPropertyRepr[x.Field]; ok {
		return repr, nil
	}
	// A struct-ish field on a non-tx value (e.g. chained property access
	// the grammar otherwise admits) falls back to bytes: the only
	// concrete field-bearing receivers this language defines are the
	// tx/group introspection properties enumerated above.
	return ReprBytes, nil
}

var builtinSig = map[string]Repr{
	"checkSig":          ReprCSN,
	"checkMultisig":     ReprCSN,
	"checkSigFromStack": ReprCSN,
	"sha256":             ReprBytes,
}

func inferCall(x *ast.CallExpr, env *Env, r Reprs) (Repr, error) {
	for _, a := range x.Args {
		if _, err := infer(a, env, r); err != nil {
			return ReprUnknown, err
		}
	}
	if id, ok := x.Callee.(*ast.Ident); ok {
		if repr, ok := builtinSig[id.Name]; ok {
			return repr, nil
		}
		return ReprUnknown, errs.Scope(x.Span.Line, "call to unresolved function %q (internal calls must be inlined before type-checking)", id.Name)
	}
	if fe, ok := x.Callee.(*ast.FieldExpr); ok && (fe.Field == "find" || fe.Field == "lookup") {
		if _, err := infer(fe.X, env, r); err != nil {
			return ReprUnknown, err
		}
		return ReprSentinel, nil
	}
	return ReprUnknown, errs.Shape(x.Span.Line, "unsupported call expression")
}

// inferBinary implements §4.3.2's forced-widening rule: arithmetic
// between two representable numeric operands forces u64le (asset
// amounts), except when both sides are already plain csn counters, which
// stay csn per §4.3.6 (quorum counts, loop indices, block heights never
// need 64-bit arithmetic). Comparison accepts any two numeric operands:
// csn counters and u32le heights/timestamps (tx.time) compare as small
// values, and u64le is forced only when at least one side already is.
// Equality/inequality is permitted across any pair of mutually
// convertible reprs.
//
// A raw sentinel operand is only legal here as the bare `== 0` presence
// check spec.md §3 carves out; every other consumption — the opposite
// side of an equality that isn't a zero literal, any order comparison,
// any arithmetic operand — first passes through guardSentinel, which
// retypes it csn and flags the underlying lookup call for codegen to
// emit its guard sequence against.
func inferBinary(x *ast.BinaryExpr, env *Env, r Reprs) (Repr, error) {
	left, err := infer(x.Left, env, r)
	if err != nil {
		return ReprUnknown, err
	}
	right, err := infer(x.Right, env, r)
	if err != nil {
		return ReprUnknown, err
	}

	switch x.Op {
	case "&&", "||":
		if left != ReprCSN || right != ReprCSN {
			return ReprUnknown, errs.Representation(x.Span.Line, "%s requires boolean/csn operands", x.Op)
		}
		return ReprCSN, nil

	case "==", "!=":
		if left == ReprSentinel && !isZeroLit(x.Right) {
			left = guardSentinel(x.Left, r)
		}
		if right == ReprSentinel && !isZeroLit(x.Left) {
			right = guardSentinel(x.Right, r)
		}
		if left == ReprSentinel || right == ReprSentinel {
			return ReprCSN, nil
		}
		if left != right && !Convertible(left, right) && !Convertible(right, left) {
			return ReprUnknown, errs.Representation(x.Span.Line, "cannot compare %s with %s", left, right)
		}
		return ReprCSN, nil

	case "<", "<=", ">", ">=":
		if left == ReprSentinel {
			left = guardSentinel(x.Left, r)
		}
		if right == ReprSentinel {
			right = guardSentinel(x.Right, r)
		}
		if left == ReprU64LE || right == ReprU64LE {
			if !numericRepr(left) || !numericRepr(right) {
				return ReprUnknown, errs.Representation(x.Span.Line, "comparison operand is not numeric")
			}
			return ReprCSN, nil
		}
		if !numericRepr(left) || !numericRepr(right) {
			return ReprUnknown, errs.Representation(x.Span.Line, "comparison requires numeric operands, got %s and %s", left, right)
		}
		return ReprCSN, nil

	case "+", "-", "*", "/":
		if left == ReprSentinel {
			left = guardSentinel(x.Left, r)
		}
		if right == ReprSentinel {
			right = guardSentinel(x.Right, r)
		}
		if !numericRepr(left) || !numericRepr(right) {
			return ReprUnknown, errs.Representation(x.Span.Line, "arithmetic requires numeric operands, got %s and %s", left, right)
		}
		if left == ReprCSN && right == ReprCSN {
			return ReprCSN, nil
		}
		return ReprU64LE, nil
	}
	return ReprUnknown, errs.Internal(x.Span.Line, "unknown binary operator %q", x.Op)
}

// guardSentinel marks e — an asset-lookup CallExpr typed ReprSentinel by
// inferCall — as requiring its runtime guard sequence, by overwriting its
// recorded representation to ReprCSN (the guard's verified-present
// output, per spec.md §3's "sentinel: via guard only" transitions).
// internal/codegen/calls.go's emitLookup reads this back via reprOf(call)
// to decide whether to emit the guard.
func guardSentinel(e ast.Expr, r Reprs) Repr {
	r[e] = ReprCSN
	return ReprCSN
}

func isZeroLit(e ast.Expr) bool {
	lit, ok := e.(*ast.IntLit)
	return ok && lit.Value == 0
}

// numericRepr intentionally excludes ReprSentinel: a sentinel reaching
// this check has already been guarded (and retyped ReprCSN) by the
// caller above, or it's the bare `== 0` presence check, which never
// calls numericRepr at all. A raw, unguarded sentinel must never be
// accepted as numeric.
func numericRepr(r Repr) bool {
	return r == ReprCSN || r == ReprU32LE || r == ReprU64LE
}
