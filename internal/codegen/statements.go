package codegen

import (
	"github.com/arkade-os/arkade-script/internal/ast"
	"github.com/arkade-os/arkade-script/internal/errs"
	"github.com/arkade-os/arkade-script/internal/sema"
)

// emitStmt emits one already-expanded statement (no ForStmt, no internal
// calls) and reports which require-summary tags it contributed.
func (g *fn) emitStmt(s ast.Statement, tags *tagSet) error {
	switch st := s.(type) {
	case *ast.RequireStmt:
		return g.emitRequire(st, tags)
	case *ast.LetStmt:
		repr, err := g.emitExpr(st.Value)
		if err != nil {
			return err
		}
		if repr == sema.ReprAssetIDSeed {
			return errs.Shape(st.Span.Line, "asset-id seed %q cannot be bound by let; use it directly as a lookup argument", st.Name)
		}
		g.e.popAnon()
		g.e.pushNamedToken(st.Name, repr)
		// Scope-legality was already enforced by sema.CheckFunction; this
		// registration only needs to make the name resolvable to codegen's
		// flat environment for the remainder of this leaf's walk.
		g.env.Define(&sema.Symbol{Name: st.Name, Repr: repr, Origin: sema.OriginLet})
		return nil
	case *ast.AssignStmt:
		if _, err := g.emitExpr(st.Value); err != nil {
			return err
		}
		return g.e.reassign(st.Name, st.Span.Line)
	case *ast.IfStmt:
		return g.emitIf(st, tags)
	case *ast.ExprStmt:
		_, err := g.emitExpr(st.X)
		return err
	case *ast.ForStmt:
		return errs.Internal(st.Span.Line, "codegen reached an un-expanded for-loop")
	}
	return errs.Internal(0, "unknown statement node %T", s)
}

// pushNamedToken re-labels the transient entry just pushed by emitExpr
// (popped as anonymous above) under the let-binding's name, without
// re-emitting any tokens.
func (e *Emitter) pushNamedToken(name string, repr sema.Repr) {
	e.stack = append(e.stack, slot{name: name, repr: repr})
}

// emitRequire special-cases `tx.time >= X` into the canonical
// locktime idiom (scenario S4): `<X>, OP_CHECKLOCKTIMEVERIFY, OP_DROP`,
// rather than loading tx.time and comparing generically.
//
// Every other condition emits normally, but a trailing OP_VERIFY is only
// appended when the condition's own terminal opcode doesn't already fail
// the leaf on a falsy result. S1-S3 show require(checkSig(...)),
// require(checkMultisig(...)), and require(sha256(...) == hash) each
// ending at the check's own opcode (OP_CHECKSIG / OP_CHECKMULTISIG /
// OP_EQUAL) with no separate OP_VERIFY; S5 shows require(count >=
// threshold) ending in OP_GREATERTHANOREQUAL *then* OP_VERIFY. So the
// signature/multisig built-ins and equality comparisons are
// self-verifying in this opcode dialect; order comparisons and anything
// else are not and still need the explicit guard.
func (g *fn) emitRequire(st *ast.RequireStmt, tags *tagSet) error {
	if bin, ok := st.Cond.(*ast.BinaryExpr); ok && bin.Op == ">=" {
		if isTxTime(bin.Left) {
			if _, err := g.emitExpr(bin.Right); err != nil {
				return err
			}
			g.e.popAnon()
			g.e.Emit("OP_CHECKLOCKTIMEVERIFY", "OP_DROP")
			tags.add("locktime")
			return nil
		}
	}
	noteTags(st.Cond, tags)
	if _, err := g.emitExpr(st.Cond); err != nil {
		return err
	}
	g.e.popAnon()
	if !isSelfVerifying(st.Cond) {
		g.e.Emit("OP_VERIFY")
	}
	return nil
}

// isSelfVerifying reports whether cond's own terminal opcode already
// fails the leaf on a falsy result, per the require-emission note above.
func isSelfVerifying(cond ast.Expr) bool {
	switch x := cond.(type) {
	case *ast.CallExpr:
		if id, ok := x.Callee.(*ast.Ident); ok {
			switch id.Name {
			case "checkSig", "checkMultisig", "checkSigFromStack":
				return true
			}
		}
		return false
	case *ast.BinaryExpr:
		return x.Op == "==" || x.Op == "!="
	}
	return false
}

func isTxTime(e ast.Expr) bool {
	fe, ok := e.(*ast.FieldExpr)
	if !ok || fe.Field != "time" {
		return false
	}
	id, ok := fe.X.(*ast.Ident)
	return ok && id.Name == "tx"
}

// tagSet accumulates the ordered, de-duplicated require-summary tags for
// one leaf.
type tagSet struct {
	seen  map[string]bool
	order []string
}

func newTagSet() *tagSet {
	return &tagSet{seen: map[string]bool{}}
}

func (t *tagSet) add(tag string) {
	if t.seen[tag] {
		return
	}
	t.seen[tag] = true
	t.order = append(t.order, tag)
}

// noteTags inspects a require condition for the built-ins whose presence
// the artifact's require summary documents (signature checks, hashing);
// it does not itself emit anything.
func noteTags(e ast.Expr, tags *tagSet) {
	switch x := e.(type) {
	case *ast.BinaryExpr:
		noteTags(x.Left, tags)
		noteTags(x.Right, tags)
	case *ast.UnaryExpr:
		noteTags(x.X, tags)
	case *ast.CallExpr:
		if id, ok := x.Callee.(*ast.Ident); ok {
			switch id.Name {
			case "checkSig", "checkMultisig", "checkSigFromStack":
				tags.add("signature")
			case "sha256":
				tags.add("hash")
			}
		}
		for _, a := range x.Args {
			noteTags(a, tags)
		}
	case *ast.ArrayLit:
		for _, el := range x.Elems {
			noteTags(el, tags)
		}
	}
}

// emitIf implements §4.4's branch normalization: both arms are emitted
// from an identical starting stack snapshot; whichever arm nets fewer
// pushes is padded with `OP_0` until both arms' net stack growth is
// equal, and that common surplus is dropped right after `OP_ENDIF`, so the
// statement as a whole leaves the stack as it found it. This satisfies
// "equal net stack effect" (testable property 7) and keeps the emitter's
// let-stack bookkeeping sound afterward, since per §3's lifecycle rule no
// binding declared inside an if survives past its endif.
func (g *fn) emitIf(st *ast.IfStmt, tags *tagSet) error {
	if _, err := g.emitExpr(st.Cond); err != nil {
		return err
	}
	g.e.popAnon()
	g.e.Emit("OP_IF")

	pre := g.e.snapshot()
	if err := g.emitBranch(st.Then, tags); err != nil {
		return err
	}
	thenDelta := len(g.e.stack) - len(pre)
	thenTokenCount := len(g.e.tokens)

	g.e.restore(pre)
	g.e.Emit("OP_ELSE")
	if err := g.emitBranch(st.Else, tags); err != nil {
		return err
	}
	elseDelta := len(g.e.stack) - len(pre)

	if thenDelta != elseDelta {
		// One arm ran strictly after the other in token order; since Go
		// emits the Then tokens into g.e.tokens before OP_ELSE is
		// appended, padding the (already-emitted) smaller arm requires
		// inserting tokens mid-slice: padArm splices the OP_0 pads in at
		// the recorded boundary.
		if err := g.padArm(thenTokenCount, thenDelta, elseDelta, pre); err != nil {
			return err
		}
	}
	g.e.Emit("OP_ENDIF")
	surplus := thenDelta
	if elseDelta > surplus {
		surplus = elseDelta
	}
	for i := 0; i < surplus; i++ {
		g.e.Emit("OP_DROP")
	}
	g.e.restore(pre)
	return nil
}

func (g *fn) emitBranch(stmts []ast.Statement, tags *tagSet) error {
	for _, s := range stmts {
		if err := g.emitStmt(s, tags); err != nil {
			return err
		}
	}
	return nil
}

// padArm inserts OP_0 pushes immediately before the OP_ELSE marker (i.e.
// at the end of the Then arm) if Then pushed fewer net items than Else,
// or immediately before OP_ENDIF (end of the Else arm) in the opposite
// case, so both arms leave the same net number of items behind.
func (g *fn) padArm(thenEnd int, thenDelta, elseDelta int, pre []slot) error {
	diff := elseDelta - thenDelta
	pad := make([]string, 0, 2*abs(diff))
	for i := 0; i < abs(diff); i++ {
		pad = append(pad, "OP_0")
	}
	if diff > 0 {
		// Then pushed fewer: pad right after its last token, before OP_ELSE.
		g.tokens_insert(thenEnd, pad)
	} else if diff < 0 {
		// Else pushed fewer: pad at the very end, right before OP_ENDIF
		// gets appended by the caller.
		g.e.tokens = append(g.e.tokens, pad...)
	}
	return nil
}

func (g *fn) tokens_insert(at int, toks []string) {
	out := make([]string, 0, len(g.e.tokens)+len(toks))
	out = append(out, g.e.tokens[:at]...)
	out = append(out, toks...)
	out = append(out, g.e.tokens[at:]...)
	g.e.tokens = out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
