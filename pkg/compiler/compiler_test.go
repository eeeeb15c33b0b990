package compiler

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/arkade-os/arkade-script/internal/artifact"
)

const bareVTXOSrc = `
options { server = server; exit = 144; }
contract BareVTXO(pubkey user, pubkey server) {
	function spend(signature userSig) {
		require(checkSig(userSig, user));
	}
}
`

func TestCompileProducesTwoLeavesPerFunction(t *testing.T) {
	out, err := Compile(bareVTXOSrc)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var doc artifact.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if doc.ContractName != "BareVTXO" {
		t.Fatalf("expected contractName BareVTXO, got %q", doc.ContractName)
	}
	if len(doc.Functions) != 2 {
		t.Fatalf("expected 2 function entries, got %d", len(doc.Functions))
	}
	if doc.Compiler.Name != compilerName || doc.Compiler.Version != compilerVersion {
		t.Fatalf("unexpected compiler identity: %+v", doc.Compiler)
	}
}

// TestCompileMissingServerIsConfigurationError confirms a contract
// missing options.server fails before codegen runs, surfacing as a
// configuration-tagged error rather than a partial artifact.
func TestCompileMissingServerIsConfigurationError(t *testing.T) {
	src := `
options { exit = 144; }
contract BareVTXO(pubkey user) {
	function spend(signature userSig) {
		require(checkSig(userSig, user));
	}
}
`
	out, err := Compile(src)
	if err == nil {
		t.Fatalf("expected a configuration error, got artifact: %s", out)
	}
	if !strings.Contains(err.Error(), "options.server") {
		t.Fatalf("expected error to mention options.server, got: %v", err)
	}
}

func TestCompileUnparseableSourceErrors(t *testing.T) {
	if _, err := Compile("this is not arkade script"); err == nil {
		t.Fatal("expected a parse error for unparseable source")
	}
}

func TestVersionIsStable(t *testing.T) {
	if Version() != compilerVersion {
		t.Fatalf("Version() should report compilerVersion, got %q vs %q", Version(), compilerVersion)
	}
}
