package sema

import (
	"testing"

	"github.com/arkade-os/arkade-script/internal/ast"
	"github.com/arkade-os/arkade-script/internal/parser"
)

// countCalls walks an already-expanded body and counts the calls whose
// callee is the identifier name, used below to confirm loop unrolling
// produced the expected number of copies rather than relying on internal
// substitution-table shape.
func countCalls(stmts []ast.Statement, name string) int {
	n := 0
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		if e == nil {
			return
		}
		if call, ok := e.(*ast.CallExpr); ok {
			if id, ok := call.Callee.(*ast.Ident); ok && id.Name == name {
				n++
			}
			for _, a := range call.Args {
				walk(a)
			}
			walk(call.Callee)
			return
		}
		switch x := e.(type) {
		case *ast.BinaryExpr:
			walk(x.Left)
			walk(x.Right)
		case *ast.UnaryExpr:
			walk(x.X)
		case *ast.IndexExpr:
			walk(x.X)
			walk(x.Index)
		case *ast.FieldExpr:
			walk(x.X)
		case *ast.ArrayLit:
			for _, el := range x.Elems {
				walk(el)
			}
		}
	}
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.RequireStmt:
			walk(st.Cond)
		case *ast.LetStmt:
			walk(st.Value)
		case *ast.AssignStmt:
			walk(st.Value)
		case *ast.ExprStmt:
			walk(st.X)
		case *ast.IfStmt:
			walk(st.Cond)
			n += countCalls(st.Then, name)
			n += countCalls(st.Else, name)
		}
	}
	return n
}

func TestExpandUnrollsFixedLengthArrayParam(t *testing.T) {
	// Scenario S5's quorum shape: three checkSigFromStack calls, one per
	// signer, after unrolling a for-loop over a pubkey[3] parameter.
	src := `
options { server = srv; exit = 144; }
contract Quorum(pubkey[3] signers, pubkey srv) {
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
	c, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	fn := c.FuncByName("spend")
	body, err := ExpandFunction(c, fn)
	if err != nil {
		t.Fatalf("unexpected expansion error: %v", err)
	}
	for _, s := range body {
		if _, ok := s.(*ast.ForStmt); ok {
			t.Fatal("expanded body must contain no ForStmt")
		}
	}
	if got := countCalls(body, "checkSigFromStack"); got != 3 {
		t.Fatalf("expected 3 unrolled checkSigFromStack calls, got %d", got)
	}
}

func TestExpandInlinesInternalFunctionAsEffect(t *testing.T) {
	src := `
options { server = srv; exit = 144; }
contract Foo(pubkey srv) {
	internal function assertPositive(int x) {
		require(x >= 0);
	}
	function spend(signature sig) {
		assertPositive(5);
		require(checkSig(sig, srv));
	}
}
`
	c, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	fn := c.FuncByName("spend")
	body, err := ExpandFunction(c, fn)
	if err != nil {
		t.Fatalf("unexpected expansion error: %v", err)
	}
	// The inlined internal function contributes its own require, so the
	// expanded body has two RequireStmts: the inlined one plus the
	// caller's own checkSig require.
	reqCount := 0
	for _, s := range body {
		if _, ok := s.(*ast.RequireStmt); ok {
			reqCount++
		}
	}
	if reqCount != 2 {
		t.Fatalf("expected 2 require statements after inlining, got %d", reqCount)
	}
}

func TestExpandCallAsValueRequiresTrailingExprStmt(t *testing.T) {
	src := `
options { server = srv; exit = 144; }
contract Foo(pubkey srv) {
	internal function noValue(int x) {
		require(x >= 0);
	}
	function spend(signature sig) {
		let y = noValue(1);
		require(checkSig(sig, srv));
	}
}
`
	c, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	fn := c.FuncByName("spend")
	if _, err := ExpandFunction(c, fn); err == nil {
		t.Fatal("expected an error: noValue's body doesn't end with an expression statement")
	}
}

func TestExpandForLoopOverNonArrayIterableErrors(t *testing.T) {
	src := `
options { server = srv; exit = 144; }
contract Foo(int n, pubkey srv) {
	function spend(signature sig) {
		for (i, v) in n {
			require(true);
		}
		require(checkSig(sig, srv));
	}
}
`
	c, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	fn := c.FuncByName("spend")
	if _, err := ExpandFunction(c, fn); err == nil {
		t.Fatal("expected an error: n is a scalar int, not a statically-bounded iterable")
	}
}

func TestExpandAssetGroupsLoopRequiresNumGroupsArrayBound(t *testing.T) {
	src := `
options { server = srv; exit = 144; }
contract Foo(bool[4] numGroups, pubkey srv) {
	function spend(signature sig) {
		for (i, g) in tx.assetGroups {
			require(true);
		}
		require(checkSig(sig, srv));
	}
}
`
	c, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	fn := c.FuncByName("spend")
	body, err := ExpandFunction(c, fn)
	if err != nil {
		t.Fatalf("unexpected expansion error: %v", err)
	}
	reqCount := 0
	for _, s := range body {
		if _, ok := s.(*ast.RequireStmt); ok {
			reqCount++
		}
	}
	// 4 unrolled `require(true)` copies plus the trailing checkSig require.
	if reqCount != 5 {
		t.Fatalf("expected 5 require statements (4 unrolled + 1 own), got %d", reqCount)
	}
}
