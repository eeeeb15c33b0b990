package codegen

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/arkade-os/arkade-script/internal/ast"
	"github.com/arkade-os/arkade-script/internal/errs"
	"github.com/arkade-os/arkade-script/internal/sema"
)

// shaChunkBound is the largest single-push byte width the target
// OP_SHA256 accepts before the code generator must fall back to a
// streaming init/update/finalize sequence.
const shaChunkBound = 520

// byteWidth returns the statically-known on-stack byte width for a
// representation, or 0/false when the width depends on runtime content
// (e.g. a bare `bytes` parameter with no fixed length) or on a declared
// type byteWidth can't see (bytes20/bytes32 collapse to the same
// ReprBytes as a size-less `bytes` parameter — see operandByteWidth,
// which additionally consults the declared type for those).
func byteWidth(r sema.Repr) (int, bool) {
	switch r {
	case sema.ReprU32LE:
		return 4, true
	case sema.ReprU64LE:
		return 8, true
	case sema.ReprSignature:
		return 64, true
	case sema.ReprPubkey:
		return 32, true
	}
	return 0, false
}

// operandByteWidth is byteWidth extended to resolve the fixed widths of
// bytes20/bytes32-typed operands, which ReprBytes alone can't
// distinguish from a size-less `bytes` value: it consults the operand's
// declared ast.Type (for an identifier or array element reference) or
// its literal length (for a hex literal) before falling back to
// byteWidth's representation-only table.
func (g *fn) operandByteWidth(e ast.Expr) (int, bool) {
	if w, ok := byteWidth(g.reprOf(e)); ok {
		return w, ok
	}
	switch x := e.(type) {
	case *ast.HexLit:
		return len(x.Bytes), true
	case *ast.Ident:
		if sym, ok := g.env.Lookup(x.Name); ok {
			return fixedBytesWidth(sym.Type)
		}
	case *ast.IndexExpr:
		if id, ok := x.X.(*ast.Ident); ok {
			if sym, ok := g.env.Lookup(id.Name); ok {
				return fixedBytesWidth(sym.Type)
			}
		}
	}
	return 0, false
}

func fixedBytesWidth(t ast.Type) (int, bool) {
	switch t.Base {
	case "bytes32":
		return 32, true
	case "bytes20":
		return 20, true
	}
	return 0, false
}

// fn is the per-leaf codegen context: the emitter, the analyzer's
// per-expression representation map, the seed set, and the environment
// used to resolve identifiers to their origin (constructor param,
// witness param, or let).
type fn struct {
	e     *Emitter
	types sema.Reprs
	seeds map[string]bool
	env   *sema.Env
}

func (g *fn) reprOf(e ast.Expr) sema.Repr {
	if r, ok := g.types[e]; ok {
		return r
	}
	return sema.ReprUnknown
}

// emitExpr emits tokens for e and returns its representation, leaving
// exactly one value (or, for an asset-id seed reference, exactly the
// two-item txid/gidx pair) on the virtual stack.
func (g *fn) emitExpr(e ast.Expr) (sema.Repr, error) {
	switch x := e.(type) {
	case *ast.IntLit:
		return g.emitIntLit(x)
	case *ast.HexLit:
		g.e.Emit("0x" + x.Raw)
		g.e.pushAnon(sema.ReprBytes)
		return sema.ReprBytes, nil
	case *ast.BoolLit:
		if x.Value {
			g.e.Emit("OP_1")
		} else {
			g.e.Emit("OP_0")
		}
		g.e.pushAnon(sema.ReprCSN)
		return sema.ReprCSN, nil
	case *ast.StringLit:
		return sema.ReprUnknown, errs.Shape(x.Span.Line, "string literals are only valid as a require() message")
	case *ast.Ident:
		return g.emitIdent(x)
	case *ast.IndexExpr:
		return g.emitIndex(x)
	case *ast.FieldExpr:
		return g.emitField(x)
	case *ast.CallExpr:
		return g.emitCall(x)
	case *ast.NewExpr:
		return g.emitNew(x)
	case *ast.UnaryExpr:
		return g.emitUnary(x)
	case *ast.BinaryExpr:
		return g.emitBinary(x)
	case *ast.ArrayLit:
		return sema.ReprUnknown, errs.Internal(x.Span.Line, "bare array literal reached codegen outside a call argument")
	}
	return sema.ReprUnknown, errs.Internal(0, "unknown expression node %T", e)
}

func (g *fn) emitIntLit(x *ast.IntLit) (sema.Repr, error) {
	return g.emitIntLitAs(x, g.reprOf(x))
}

// emitIntLitAs folds a literal directly into the byte encoding `want`
// calls for, rather than pushing its default csn form and converting at
// runtime: the one boundary crossing that can always be resolved at
// compile time. Used both for a literal's own inferred representation
// (via emitIntLit) and, from emitOperand, for a literal forced into a
// wider sibling operand's representation (e.g. the `1` in `valid + 1`
// widened to u64le because `valid` holds an asset amount).
func (g *fn) emitIntLitAs(x *ast.IntLit, want sema.Repr) (sema.Repr, error) {
	switch want {
	case sema.ReprU64LE:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(x.Value))
		g.e.Emit("0x" + hex.EncodeToString(buf[:]))
		g.e.pushAnon(sema.ReprU64LE)
		return sema.ReprU64LE, nil
	case sema.ReprU32LE:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(x.Value))
		g.e.Emit("0x" + hex.EncodeToString(buf[:]))
		g.e.pushAnon(sema.ReprU32LE)
		return sema.ReprU32LE, nil
	}
	g.e.Emit(csnPushToken(x.Value))
	g.e.pushAnon(sema.ReprCSN)
	return sema.ReprCSN, nil
}

// conversionOpcode names the runtime conversion bridging a non-literal
// value's actual representation to the representation its consuming
// opcode requires, per spec.md §3's transition table (csn<->u64le,
// u32le->u64le). A literal operand never needs one of these: its value
// is folded directly into the target encoding by emitIntLitAs instead.
var conversionOpcode = map[[2]sema.Repr]string{
	{sema.ReprCSN, sema.ReprU64LE}:   "OP_SCRIPTNUMTOLE64",
	{sema.ReprU32LE, sema.ReprU64LE}: "OP_LE32TOLE64",
	{sema.ReprU64LE, sema.ReprCSN}:   "OP_LE64TOSCRIPTNUM",
}

// emitOperand emits e and bridges it to the representation `want` if the
// two differ: a literal is folded directly into want's encoding; any
// other expression is emitted in its own native representation and then
// re-encoded with the matching conversionOpcode entry. want ==
// ReprUnknown means "no coercion, emit as-is" (used by equality, which
// only needs to bridge mismatched numeric widths, not every pair).
func (g *fn) emitOperand(e ast.Expr, want sema.Repr) (sema.Repr, error) {
	if want == sema.ReprUnknown {
		return g.emitExpr(e)
	}
	if lit, ok := e.(*ast.IntLit); ok {
		return g.emitIntLitAs(lit, want)
	}
	actual, err := g.emitExpr(e)
	if err != nil {
		return sema.ReprUnknown, err
	}
	if actual == want {
		return actual, nil
	}
	conv, ok := conversionOpcode[[2]sema.Repr{actual, want}]
	if !ok {
		return sema.ReprUnknown, errs.Representation(e.SpanOf().Line, "cannot bridge %s to %s", actual, want)
	}
	g.e.popAnon()
	g.e.Emit(conv)
	g.e.pushAnon(want)
	return want, nil
}

// csnPushToken renders a small integer as the minimal scriptnum push
// form: OP_0/OP_1…OP_16 for the canonical small range, a bare decimal
// literal otherwise (the artifact serializer and assembler downstream
// are responsible for the exact minimal-push encoding of larger values).
func csnPushToken(v int64) string {
	if v == 0 {
		return "OP_0"
	}
	if v >= 1 && v <= 16 {
		return fmt.Sprintf("OP_%d", v)
	}
	return fmt.Sprintf("%d", v)
}

func (g *fn) emitIdent(x *ast.Ident) (sema.Repr, error) {
	sym, ok := g.env.Lookup(x.Name)
	if !ok {
		return sema.ReprUnknown, errs.Scope(x.Span.Line, "unknown identifier %q", x.Name)
	}
	switch sym.Origin {
	case sema.OriginConstructorParam, sema.OriginWitnessParam:
		if sym.AssetSeed {
			txid, gidx := sema.SeedFieldNames(x.Name)
			g.e.Emit("<" + txid + ">")
			g.e.pushAnon(sema.ReprBytes)
			g.e.Emit("<" + gidx + ">")
			g.e.pushAnon(sema.ReprCSN)
			return sema.ReprAssetIDSeed, nil
		}
		g.e.Emit("<" + x.Name + ">")
		g.e.pushAnon(sym.Repr)
		return sym.Repr, nil
	case sema.OriginLet:
		repr, err := g.e.pick(x.Name, x.Span.Line)
		return repr, err
	}
	return sema.ReprUnknown, errs.Internal(x.Span.Line, "identifier %q has unknown origin", x.Name)
}

// emitIndex covers `arrayParam[k]` with a literal index (always true
// post-unroll for any index that must be static) and tx introspection
// indices (tx.inputs[i], tx.outputs[o], tx.assetGroups[k]), which carry
// no separate value of their own: only the index is pushed, for the
// trailing field access's opcode to consume. Any other indexing is
// rejected.
func (g *fn) emitIndex(x *ast.IndexExpr) (sema.Repr, error) {
	if id, ok := x.X.(*ast.Ident); ok {
		sym, ok := g.env.Lookup(id.Name)
		if !ok {
			return sema.ReprUnknown, errs.Scope(x.Span.Line, "unknown identifier %q", id.Name)
		}
		lit, ok := x.Index.(*ast.IntLit)
		if !ok {
			return sema.ReprUnknown, errs.Shape(x.Span.Line, "array index must be a compile-time-known literal")
		}
		name := fmt.Sprintf("%s_%d", id.Name, lit.Value)
		g.e.Emit("<" + name + ">")
		g.e.pushAnon(sym.Repr)
		return sym.Repr, nil
	}
	if coll, ok := x.X.(*ast.FieldExpr); ok {
		switch coll.Field {
		case "inputs", "outputs", "assetGroups":
			return g.emitExpr(x.Index)
		}
	}
	return sema.ReprUnknown, errs.Shape(x.Span.Line, "indexing is only meaningful on a fixed-length array parameter")
}

// txIntrospectionOpcode names the opcode a recognized tx/group field
// access compiles to. Every one of these is a read-only query against
// the spending transaction or its precomputed asset-group table; none
// consumes any operands beyond what its surrounding IndexExpr already
// pushed (the input/output/group index).
var txIntrospectionOpcode = map[string]string{
	"time":         "OP_TXTIME",
	"value":        "OP_INSPECTINPUTVALUE",
	"scriptPubKey": "OP_INSPECTINPUTSCRIPTPUBKEY",
	"length":       "OP_INSPECTNUMINPUTS",
	"assetId":      "OP_INSPECTGROUPASSETID",
	"isFresh":      "OP_INSPECTGROUPISFRESH",
	"control":      "OP_INSPECTGROUPCONTROL",
	"metadataHash": "OP_INSPECTGROUPMETADATAHASH",
	"numInputs":    "OP_INSPECTGROUPNUMINPUTS",
	"numOutputs":   "OP_INSPECTGROUPNUMOUTPUTS",
	"sumInputs":    "OP_INSPECTGROUPSUMINPUTS",
	"sumOutputs":   "OP_INSPECTGROUPSUMOUTPUTS",
}

func (g *fn) emitField(x *ast.FieldExpr) (sema.Repr, error) {
	if x.Field == "delta" {
		return g.emitDelta(x)
	}
	if root, ok := x.X.(*ast.Ident); ok && root.Name == "tx" && x.Field == "time" {
		g.e.Emit("OP_TXTIME")
		g.e.pushAnon(sema.ReprU32LE)
		return sema.ReprU32LE, nil
	}
	if _, err := g.emitExpr(x.X); err != nil {
		return sema.ReprUnknown, err
	}
	op, ok := txIntrospectionOpcode[x.Field]
	if !ok {
		return sema.ReprUnknown, errs.Shape(x.SpanOf().Line, "unsupported property %q", x.Field)
	}
	repr := g.reprOf(x)
	g.e.Emit(op)
	g.e.popAnon()
	g.e.pushAnon(repr)
	return repr, nil
}

// emitDelta desugars group.delta to sumOutputs - sumInputs with the
// usual overflow-verify coupling.
func (g *fn) emitDelta(x *ast.FieldExpr) (sema.Repr, error) {
	if _, err := g.emitExpr(x.X); err != nil {
		return sema.ReprUnknown, err
	}
	g.e.Emit("OP_INSPECTGROUPSUMOUTPUTS")
	if _, err := g.emitExpr(x.X); err != nil {
		return sema.ReprUnknown, err
	}
	g.e.Emit("OP_INSPECTGROUPSUMINPUTS")
	g.e.popAnon()
	g.e.popAnon()
	g.e.Emit("OP_SUB64", "OP_VERIFY")
	g.e.pushAnon(sema.ReprU64LE)
	return sema.ReprU64LE, nil
}

func (g *fn) emitUnary(x *ast.UnaryExpr) (sema.Repr, error) {
	if _, err := g.emitExpr(x.X); err != nil {
		return sema.ReprUnknown, err
	}
	g.e.Emit("OP_NOT")
	g.e.popAnon()
	g.e.pushAnon(sema.ReprCSN)
	return sema.ReprCSN, nil
}

var logicalOpcode = map[string]string{"&&": "OP_BOOLAND", "||": "OP_BOOLOR"}

// csnCompareOpcode and u64CompareOpcode are the two widths order
// comparisons can run at: plain scriptnum opcodes for small counters
// (loop indices, quorum counts, block heights — spec.md §4.3.6), the
// "64" siblings when either operand is an asset amount.
var csnCompareOpcode = map[string]string{
	"<": "OP_LESSTHAN", "<=": "OP_LESSTHANOREQUAL", ">": "OP_GREATERTHAN", ">=": "OP_GREATERTHANOREQUAL",
}
var u64CompareOpcode = map[string]string{
	"<": "OP_LESSTHAN64", "<=": "OP_LESSTHANOREQUAL64", ">": "OP_GREATERTHAN64", ">=": "OP_GREATERTHANOREQUAL64",
}

// csnArithOpcode and u64ArithOpcode mirror the same csn/u64le split for
// +,-,*,/: a small-integer counter increment like a quorum's `valid =
// valid + 1` stays on the plain scriptnum opcodes with no overflow flag
// to consume, while asset-amount arithmetic runs on the 64-bit opcodes
// and must verify their overflow flag immediately after.
var csnArithOpcode = map[string]string{"+": "OP_ADD", "-": "OP_SUB", "*": "OP_MUL", "/": "OP_DIV"}
var u64ArithOpcode = map[string]string{"+": "OP_ADD64", "-": "OP_SUB64", "*": "OP_MUL64", "/": "OP_DIV64"}

func (g *fn) emitBinary(x *ast.BinaryExpr) (sema.Repr, error) {
	// tx.time >= X inside a require is special-cased by the statement
	// emitter directly into the locktime idiom; reaching here means it's
	// used in some other position, which falls through to the generic
	// comparison form below (still correct, just not the idiomatic CLTV
	// opcode).
	leftRepr := g.reprOf(x.Left)
	rightRepr := g.reprOf(x.Right)

	switch x.Op {
	case "&&", "||":
		if _, err := g.emitExpr(x.Left); err != nil {
			return sema.ReprUnknown, err
		}
		if _, err := g.emitExpr(x.Right); err != nil {
			return sema.ReprUnknown, err
		}
		g.e.popAnon()
		g.e.popAnon()
		g.e.Emit(logicalOpcode[x.Op])
		g.e.pushAnon(sema.ReprCSN)
		return sema.ReprCSN, nil

	case "==", "!=":
		return g.emitEquality(x, leftRepr, rightRepr)

	case "<", "<=", ">", ">=":
		return g.emitComparison(x, leftRepr, rightRepr)

	case "+", "-", "*", "/":
		return g.emitArith(x, leftRepr, rightRepr)
	}
	return sema.ReprUnknown, errs.Internal(x.Span.Line, "unknown binary operator %q", x.Op)
}

// equalityWidth reports the representation mismatched numeric operands
// must be bridged to before OP_EQUAL; ReprUnknown means "emit both
// operands as-is", which covers same-repr pairs, byte-string/pubkey/
// signature comparisons, and the bare sentinel-vs-zero presence check
// (a raw sentinel and a csn 0 compare correctly without any bridging).
func equalityWidth(left, right sema.Repr) sema.Repr {
	if left == sema.ReprU64LE || right == sema.ReprU64LE {
		return sema.ReprU64LE
	}
	if left == sema.ReprU32LE || right == sema.ReprU32LE {
		return sema.ReprU32LE
	}
	return sema.ReprUnknown
}

func (g *fn) emitEquality(x *ast.BinaryExpr, leftRepr, rightRepr sema.Repr) (sema.Repr, error) {
	want := equalityWidth(leftRepr, rightRepr)
	if _, err := g.emitOperand(x.Left, want); err != nil {
		return sema.ReprUnknown, err
	}
	if _, err := g.emitOperand(x.Right, want); err != nil {
		return sema.ReprUnknown, err
	}
	g.e.popAnon()
	g.e.popAnon()
	g.e.Emit("OP_EQUAL")
	if x.Op == "!=" {
		g.e.Emit("OP_NOT")
	}
	g.e.pushAnon(sema.ReprCSN)
	return sema.ReprCSN, nil
}

func (g *fn) emitComparison(x *ast.BinaryExpr, leftRepr, rightRepr sema.Repr) (sema.Repr, error) {
	want := sema.ReprCSN
	if leftRepr == sema.ReprU64LE || rightRepr == sema.ReprU64LE {
		want = sema.ReprU64LE
	}
	if _, err := g.emitOperand(x.Left, want); err != nil {
		return sema.ReprUnknown, err
	}
	if _, err := g.emitOperand(x.Right, want); err != nil {
		return sema.ReprUnknown, err
	}
	g.e.popAnon()
	g.e.popAnon()
	table := csnCompareOpcode
	if want == sema.ReprU64LE {
		table = u64CompareOpcode
	}
	g.e.Emit(table[x.Op])
	g.e.pushAnon(sema.ReprCSN)
	return sema.ReprCSN, nil
}

// emitArith keeps plain csn arithmetic for small-integer counters
// (spec.md §4.3.6) and only widens to the 64-bit opcodes — with their
// mandatory overflow-flag verify — when an operand is an actual asset
// amount or other non-csn numeric value.
func (g *fn) emitArith(x *ast.BinaryExpr, leftRepr, rightRepr sema.Repr) (sema.Repr, error) {
	want := sema.ReprCSN
	if leftRepr != sema.ReprCSN || rightRepr != sema.ReprCSN {
		want = sema.ReprU64LE
	}
	if _, err := g.emitOperand(x.Left, want); err != nil {
		return sema.ReprUnknown, err
	}
	if _, err := g.emitOperand(x.Right, want); err != nil {
		return sema.ReprUnknown, err
	}
	g.e.popAnon()
	g.e.popAnon()
	if want == sema.ReprU64LE {
		g.e.Emit(u64ArithOpcode[x.Op])
		g.e.Emit("OP_VERIFY")
		g.e.pushAnon(sema.ReprU64LE)
		return sema.ReprU64LE, nil
	}
	g.e.Emit(csnArithOpcode[x.Op])
	g.e.pushAnon(sema.ReprCSN)
	return sema.ReprCSN, nil
}

func (g *fn) emitNew(x *ast.NewExpr) (sema.Repr, error) {
	if x.TypeName != "P2TR" {
		return sema.ReprUnknown, errs.Shape(x.Span.Line, "unknown constructor new %s(...)", x.TypeName)
	}
	if len(x.Args) == 0 {
		return sema.ReprUnknown, errs.Shape(x.Span.Line, "new P2TR requires a key argument")
	}
	g.e.Emit("0x51", "0x20")
	if _, err := g.emitExpr(x.Args[0]); err != nil {
		return sema.ReprUnknown, err
	}
	g.e.popAnon()
	if len(x.Args) > 1 {
		if _, err := g.emitExpr(x.Args[1]); err != nil {
			return sema.ReprUnknown, err
		}
		g.e.popAnon()
		g.e.Emit("OP_CAT", "OP_CAT")
	} else {
		g.e.Emit("OP_CAT")
	}
	g.e.pushAnon(sema.ReprBytes)
	return sema.ReprBytes, nil
}
