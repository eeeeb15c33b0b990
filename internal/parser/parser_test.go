package parser

import (
	"testing"

	"github.com/arkade-os/arkade-script/internal/ast"
)

const bareVTXO = `
options { server = server; exit = 144; }
contract BareVTXO(pubkey user, pubkey server) {
	function spend(signature userSig) {
		require(checkSig(userSig, user));
	}
}
`

func TestParseBareVTXOShape(t *testing.T) {
	c, err := Parse(bareVTXO)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if c.Name != "BareVTXO" {
		t.Fatalf("got contract name %q", c.Name)
	}
	if len(c.Params) != 2 || c.Params[0].Name != "user" || c.Params[1].Name != "server" {
		t.Fatalf("unexpected constructor params: %+v", c.Params)
	}
	if c.Options == nil || c.Options.ServerParam != "server" || c.Options.Exit == nil || *c.Options.Exit != 144 {
		t.Fatalf("unexpected options: %+v", c.Options)
	}
	if len(c.Functions) != 1 || c.Functions[0].Name != "spend" {
		t.Fatalf("unexpected functions: %+v", c.Functions)
	}
	body := c.Functions[0].Body
	if len(body) != 1 {
		t.Fatalf("expected a single require statement, got %d", len(body))
	}
	req, ok := body[0].(*ast.RequireStmt)
	if !ok {
		t.Fatalf("expected *ast.RequireStmt, got %T", body[0])
	}
	call, ok := req.Cond.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected a call condition, got %T", req.Cond)
	}
	callee, ok := call.Callee.(*ast.Ident)
	if !ok || callee.Name != "checkSig" {
		t.Fatalf("expected checkSig callee, got %+v", call.Callee)
	}
}

func TestParseArrayTypeAndIndexing(t *testing.T) {
	src := `
options { server = srv; exit = 100; }
contract Quorum(pubkey[3] signers, pubkey srv) {
	function spend(signature[3] sigs) {
		let ok = checkSigFromStack(sigs[0], signers[0], 0x01);
		require(ok);
	}
}
`
	c, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	p := c.ParamByName("signers")
	if p == nil || !p.Type.IsArray || p.Type.ArrayLen != 3 || p.Type.Base != "pubkey" {
		t.Fatalf("unexpected signers param: %+v", p)
	}
	fn := c.FuncByName("spend")
	letStmt, ok := fn.Body[0].(*ast.LetStmt)
	if !ok {
		t.Fatalf("expected let statement, got %T", fn.Body[0])
	}
	if letStmt.Name != "ok" {
		t.Fatalf("got let name %q", letStmt.Name)
	}
}

func TestParseForLoopOverAssetGroups(t *testing.T) {
	src := `
options { server = srv; exit = 50; }
contract Groups(bool[4] numGroups, pubkey srv) {
	internal function noop() {
		require(true);
	}
	function spend() {
		for (i, g) in tx.assetGroups {
			require(true);
		}
	}
}
`
	c, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	fn := c.FuncByName("spend")
	forStmt, ok := fn.Body[0].(*ast.ForStmt)
	if !ok {
		t.Fatalf("expected for statement, got %T", fn.Body[0])
	}
	if forStmt.IndexName != "i" || forStmt.ValueName != "g" {
		t.Fatalf("unexpected loop vars: %+v", forStmt)
	}
	internalFn := c.FuncByName("noop")
	if internalFn == nil || !internalFn.Internal {
		t.Fatalf("expected an internal function named noop")
	}
}

func TestMissingServerOptionsStillParses(t *testing.T) {
	// Parsing never rejects this; options.server mandatoriness is a
	// semantic-analysis concern (scenario S6), not a grammar one.
	src := `
options { exit = 144; }
contract Foo(pubkey user) {
	function spend(signature sig) {
		require(checkSig(sig, user));
	}
}
`
	if _, err := Parse(src); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
}

func TestUnrecognizedOptionsKeyErrors(t *testing.T) {
	src := `
options { bogus = 1; }
contract Foo(pubkey user) {
	function spend(signature sig) { require(checkSig(sig, user)); }
}
`
	if _, err := Parse(src); err == nil {
		t.Fatal("expected an error for an unrecognized options key")
	}
}

func TestTrailingInputErrors(t *testing.T) {
	src := bareVTXO + "\nextra"
	if _, err := Parse(src); err == nil {
		t.Fatal("expected an error for trailing input after the contract")
	}
}
