package codegen

import (
	"strings"
	"testing"

	"github.com/arkade-os/arkade-script/internal/ast"
	"github.com/arkade-os/arkade-script/internal/parser"
	"github.com/arkade-os/arkade-script/internal/sema"
)

func compileContract(t *testing.T, src, fnName string) *Leaf {
	t.Helper()
	c, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if err := ast.Validate(c); err != nil {
		t.Fatalf("validate error: %v", err)
	}
	an, err := sema.Analyze(c)
	if err != nil {
		t.Fatalf("analyze error: %v", err)
	}
	var af *sema.AnalyzedFunction
	for _, f := range an.Functions {
		if f.Func.Name == fnName {
			af = f
		}
	}
	if af == nil {
		t.Fatalf("no analyzed function named %q", fnName)
	}
	leaves, err := GenerateFunction(an, af)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	return leaves[0] // cooperative
}

func compileExitLeaf(t *testing.T, src, fnName string) *Leaf {
	t.Helper()
	c, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if err := ast.Validate(c); err != nil {
		t.Fatalf("validate error: %v", err)
	}
	an, err := sema.Analyze(c)
	if err != nil {
		t.Fatalf("analyze error: %v", err)
	}
	var af *sema.AnalyzedFunction
	for _, f := range an.Functions {
		if f.Func.Name == fnName {
			af = f
		}
	}
	leaves, err := GenerateFunction(an, af)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	return leaves[1] // exit
}

func join(toks []string) string {
	return strings.Join(toks, ", ")
}

// TestBareVTXOCooperativeLeaf reproduces scenario S1: single-signature
// spend, cooperative variant ends with the server co-signature suffix.
func TestBareVTXOCooperativeLeaf(t *testing.T) {
	src := `
options { server = server; exit = 144; }
contract BareVTXO(pubkey user, pubkey server) {
	function spend(signature userSig) {
		require(checkSig(userSig, user));
	}
}
`
	leaf := compileContract(t, src, "spend")
	got := join(leaf.Asm)
	wantPrefix := "<user>, <userSig>, OP_CHECKSIG"
	wantSuffix := "<SERVER_KEY>, <serverSig>, OP_CHECKSIG"
	if !strings.HasPrefix(got, wantPrefix) {
		t.Fatalf("asm %q does not start with %q", got, wantPrefix)
	}
	if !strings.HasSuffix(got, wantSuffix) {
		t.Fatalf("asm %q does not end with %q", got, wantSuffix)
	}
}

// TestBareVTXOExitLeaf reproduces scenario S1's exit variant.
func TestBareVTXOExitLeaf(t *testing.T) {
	src := `
options { server = server; exit = 144; }
contract BareVTXO(pubkey user, pubkey server) {
	function spend(signature userSig) {
		require(checkSig(userSig, user));
	}
}
`
	leaf := compileExitLeaf(t, src, "spend")
	got := join(leaf.Asm)
	wantPrefix := "<user>, <userSig>, OP_CHECKSIG"
	wantSuffix := "144, OP_CHECKSEQUENCEVERIFY, OP_DROP"
	if !strings.HasPrefix(got, wantPrefix) {
		t.Fatalf("asm %q does not start with %q", got, wantPrefix)
	}
	if !strings.HasSuffix(got, wantSuffix) {
		t.Fatalf("asm %q does not end with %q", got, wantSuffix)
	}
}

// TestHTLCClaimCooperativeLeaf reproduces scenario S2 exactly, including
// the bytes32 preimage hashed by sha256 — the operand-width fix under
// test here, since byteWidth alone can't size a bytes32 parameter.
func TestHTLCClaimCooperativeLeaf(t *testing.T) {
	src := `
options { server = server; exit = 144; }
contract HTLC(pubkey receiver, pubkey server, bytes32 hash) {
	function claim(signature receiverSig, bytes32 preimage) {
		require(checkSig(receiverSig, receiver));
		require(sha256(preimage) == hash);
	}
}
`
	leaf := compileContract(t, src, "claim")
	want := "<receiver>, <receiverSig>, OP_CHECKSIG, <preimage>, OP_SHA256, <hash>, OP_EQUAL, <SERVER_KEY>, <serverSig>, OP_CHECKSIG"
	if got := join(leaf.Asm); got != want {
		t.Fatalf("asm mismatch:\n got:  %s\n want: %s", got, want)
	}
}

// TestCheckMultisigOrdersCountKeysCountSigs reproduces scenario S3's
// shape: quorum signing over a fixed set of cosigners.
func TestCheckMultisigOrdersCountKeysCountSigs(t *testing.T) {
	src := `
options { server = server; exit = 144; }
contract Multisig(pubkey a, pubkey b, pubkey server) {
	function spend(signature sigA, signature sigB) {
		require(checkMultisig([a, b], [sigA, sigB]));
	}
}
`
	leaf := compileContract(t, src, "spend")
	asm := leaf.Asm
	wantPrefix := "OP_2, <a>, <b>, OP_2, <sigA>, <sigB>, OP_CHECKMULTISIG"
	if got := join(asm); !strings.HasPrefix(got, wantPrefix) {
		t.Fatalf("asm %q does not start with %q", got, wantPrefix)
	}
	if len(asm) == 0 || asm[len(asm)-4] != "OP_CHECKMULTISIG" {
		t.Fatalf("expected OP_CHECKMULTISIG before the server-variant suffix, got %v", asm)
	}
	// No trailing OP_VERIFY directly after OP_CHECKMULTISIG: the call is
	// self-verifying per the require-elision rule.
	for i, tok := range asm {
		if tok == "OP_CHECKMULTISIG" && i+1 < len(asm) && asm[i+1] == "OP_VERIFY" {
			t.Fatalf("unexpected OP_VERIFY immediately after OP_CHECKMULTISIG: %v", asm)
		}
	}
}

// TestLocktimeRequireEmitsCheckLockTimeVerify reproduces scenario S4's
// absolute-timelock require idiom.
func TestLocktimeRequireEmitsCheckLockTimeVerify(t *testing.T) {
	src := `
options { server = server; exit = 144; }
contract TimedVault(pubkey owner, pubkey server) {
	function spend(signature ownerSig) {
		require(tx.time >= 500000);
		require(checkSig(ownerSig, owner));
	}
}
`
	leaf := compileContract(t, src, "spend")
	got := join(leaf.Asm)
	want := "500000, OP_CHECKLOCKTIMEVERIFY, OP_DROP, <owner>, <ownerSig>, OP_CHECKSIG, <SERVER_KEY>, <serverSig>, OP_CHECKSIG"
	if got != want {
		t.Fatalf("asm mismatch:\n got:  %s\n want: %s", got, want)
	}
}

// TestQuorumRequireAppendsVerifyAfterOrderComparison reproduces scenario
// S5's non-self-verifying require: an order comparison still gets an
// explicit trailing OP_VERIFY.
func TestQuorumRequireAppendsVerifyAfterOrderComparison(t *testing.T) {
	src := `
options { server = server; exit = 144; }
contract Quorum(pubkey[3] signers, pubkey server) {
	function spend(signature[3] sigs) {
		let valid = 0;
		for (i, pk) in signers {
			let ok = checkSigFromStack(sigs[i], pk, 0x01);
			if (ok) {
				valid = valid + 1;
			}
		}
		require(valid >= 2);
	}
}
`
	leaf := compileContract(t, src, "spend")
	asm := leaf.Asm
	found := false
	for i, tok := range asm {
		if tok == "OP_GREATERTHANOREQUAL" {
			found = true
			if i+1 >= len(asm) || asm[i+1] != "OP_VERIFY" {
				t.Fatalf("expected OP_VERIFY right after OP_GREATERTHANOREQUAL, got %v", asm)
			}
		}
	}
	if !found {
		t.Fatalf("expected an OP_GREATERTHANOREQUAL in %v", asm)
	}
}

// TestSentinelGuardEmittedBeforeOrderComparison confirms an asset-lookup
// result consumed by an order comparison (not the bare `== 0` presence
// check) gets the mandatory dup/-1/equal/not/verify guard sequence
// immediately after the lookup opcode, before the comparison ever sees
// the raw -1-capable value.
func TestSentinelGuardEmittedBeforeOrderComparison(t *testing.T) {
	src := `
options { server = srv; exit = 144; }
contract Htlc(bytes32 assetId, pubkey srv) {
	function claim(signature receiverSig) {
		require(checkSig(receiverSig, srv));
		require(tx.assetGroups.find(assetId) >= 0);
	}
}
`
	leaf := compileContract(t, src, "claim")
	asm := leaf.Asm
	idx := -1
	for i, tok := range asm {
		if tok == "OP_INSPECTGROUPFIND" {
			idx = i
			break
		}
	}
	if idx == -1 {
		t.Fatalf("expected OP_INSPECTGROUPFIND in %v", asm)
	}
	wantGuard := []string{"OP_INSPECTGROUPFIND", "OP_DUP", "-1", "OP_EQUAL", "OP_NOT", "OP_VERIFY"}
	if idx+len(wantGuard) > len(asm) || join(asm[idx:idx+len(wantGuard)]) != join(wantGuard) {
		t.Fatalf("expected guard sequence %v right after the lookup, got %v", wantGuard, asm[idx:])
	}
	if idx+len(wantGuard) >= len(asm) || asm[idx+len(wantGuard)] != "OP_0" {
		t.Fatalf("expected the literal 0 comparand right after the guard, got %v", asm[idx:])
	}
}

// TestSentinelBareZeroCheckSkipsGuard confirms the one case spec.md
// carves out — a lookup result consumed only by a bare `== 0` presence
// check — compiles with no guard sequence at all, matching the existing
// sema-level TestAssetIDSeedDecomposesWhenUsedAsLookupArgument scenario.
func TestSentinelBareZeroCheckSkipsGuard(t *testing.T) {
	src := `
options { server = srv; exit = 144; }
contract Htlc(bytes32 assetId, pubkey srv) {
	function claim(signature receiverSig) {
		require(checkSig(receiverSig, srv));
		let found = tx.assetGroups.find(assetId);
		require(found == 0);
	}
}
`
	leaf := compileContract(t, src, "claim")
	asm := leaf.Asm
	for i, tok := range asm {
		if tok == "OP_INSPECTGROUPFIND" {
			if i+1 < len(asm) && asm[i+1] == "OP_DUP" {
				t.Fatalf("bare == 0 presence check must not be guarded, got %v", asm[i:])
			}
		}
	}
}

// TestCounterArithmeticStaysCSN confirms a small-integer counter
// increment (S5's `valid = valid + 1`) compiles to the plain scriptnum
// OP_ADD with no overflow-verify, never OP_ADD64.
func TestCounterArithmeticStaysCSN(t *testing.T) {
	src := `
options { server = server; exit = 144; }
contract Quorum(pubkey[3] signers, pubkey server) {
	function spend(signature[3] sigs) {
		let valid = 0;
		for (i, pk) in signers {
			let ok = checkSigFromStack(sigs[i], pk, 0x01);
			if (ok) {
				valid = valid + 1;
			}
		}
		require(valid >= 2);
	}
}
`
	leaf := compileContract(t, src, "spend")
	asm := leaf.Asm
	foundAdd := false
	for i, tok := range asm {
		if tok == "OP_ADD" {
			foundAdd = true
			if i+1 < len(asm) && asm[i+1] == "OP_VERIFY" {
				t.Fatalf("csn counter increment must not be followed by an overflow OP_VERIFY, got %v", asm)
			}
		}
		if tok == "OP_ADD64" {
			t.Fatalf("small-integer counter increment must use OP_ADD, not OP_ADD64: %v", asm)
		}
	}
	if !foundAdd {
		t.Fatalf("expected an OP_ADD in %v", asm)
	}
}

// TestAssetAmountArithmeticWidensToU64 confirms genuine asset-amount
// arithmetic (an actual u64le-typed value, not a csn counter) still
// widens to the 64-bit opcode and consumes its overflow flag with
// OP_VERIFY.
func TestAssetAmountArithmeticWidensToU64(t *testing.T) {
	src := `
options { server = server; exit = 144; }
contract Split(pubkey owner, pubkey server, asset totalIn) {
	function spend(signature ownerSig, asset share) {
		require(checkSig(ownerSig, owner));
		require(totalIn + share >= 1000);
	}
}
`
	leaf := compileContract(t, src, "spend")
	asm := leaf.Asm
	idx := -1
	for i, tok := range asm {
		if tok == "OP_ADD64" {
			idx = i
		}
	}
	if idx == -1 {
		t.Fatalf("expected an OP_ADD64 for asset-amount addition in %v", asm)
	}
	if idx+1 >= len(asm) || asm[idx+1] != "OP_VERIFY" {
		t.Fatalf("expected OP_VERIFY right after OP_ADD64, got %v", asm[idx:])
	}
	foundCmp := false
	for _, tok := range asm {
		if tok == "OP_GREATERTHANOREQUAL64" {
			foundCmp = true
		}
	}
	if !foundCmp {
		t.Fatalf("expected the comparison to widen to OP_GREATERTHANOREQUAL64 in %v", asm)
	}
}

// TestNonLiteralCSNToU64Conversion confirms a non-literal csn value
// compared against a genuine u64le asset amount gets a real runtime
// OP_SCRIPTNUMTOLE64 conversion, not a silent same-width assumption.
func TestNonLiteralCSNToU64Conversion(t *testing.T) {
	src := `
options { server = server; exit = 144; }
contract Check(pubkey owner, pubkey server, asset share) {
	function spend(signature ownerSig, int count) {
		require(checkSig(ownerSig, owner));
		let n = count;
		require(n == share);
	}
}
`
	leaf := compileContract(t, src, "spend")
	asm := leaf.Asm
	found := false
	for _, tok := range asm {
		if tok == "OP_SCRIPTNUMTOLE64" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a OP_SCRIPTNUMTOLE64 conversion bridging the csn let-binding to u64le, got %v", asm)
	}
}

// TestSha256RejectsUnsizedBytesOperand confirms a bare `bytes` (not
// bytes20/bytes32) operand is still correctly rejected: its width is
// genuinely variable, so this isn't something operandByteWidth should
// resolve.
func TestSha256RejectsUnsizedBytesOperand(t *testing.T) {
	src := `
options { server = server; exit = 144; }
contract Foo(pubkey owner, pubkey server, bytes32 hash) {
	function spend(signature ownerSig, bytes blob) {
		require(checkSig(ownerSig, owner));
		require(sha256(blob) == hash);
	}
}
`
	c, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if err := ast.Validate(c); err != nil {
		t.Fatalf("validate error: %v", err)
	}
	an, err := sema.Analyze(c)
	if err != nil {
		t.Fatalf("analyze error: %v", err)
	}
	var af *sema.AnalyzedFunction
	for _, f := range an.Functions {
		if f.Func.Name == "spend" {
			af = f
		}
	}
	if _, err := GenerateFunction(an, af); err == nil {
		t.Fatal("expected an error: a bare `bytes` operand has no statically-determined width")
	}
}
