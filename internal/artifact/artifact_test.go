package artifact

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/arkade-os/arkade-script/internal/ast"
	"github.com/arkade-os/arkade-script/internal/codegen"
	"github.com/arkade-os/arkade-script/internal/parser"
	"github.com/arkade-os/arkade-script/internal/sema"
)

func analyzeAndGenerate(t *testing.T, src string) (*sema.Analyzed, map[string][2]*codegen.Leaf) {
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
	leaves := map[string][2]*codegen.Leaf{}
	for _, af := range an.Functions {
		pair, err := codegen.GenerateFunction(an, af)
		if err != nil {
			t.Fatalf("generate error: %v", err)
		}
		leaves[af.Func.Name] = pair
	}
	return an, leaves
}

const bareVTXOSrc = `
options { server = server; exit = 144; }
contract BareVTXO(pubkey user, pubkey server) {
	function spend(signature userSig) {
		require(checkSig(userSig, user));
	}
}
`

// TestBuildFieldOrder confirms the document's JSON field order matches
// §4.5: contractName, constructorInputs, functions, source, compiler,
// updatedAt.
func TestBuildFieldOrder(t *testing.T) {
	an, leaves := analyzeAndGenerate(t, bareVTXOSrc)
	out, err := Build(bareVTXOSrc, an, leaves, "arkadec", "0.1.0", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	for _, key := range []string{"contractName", "constructorInputs", "functions", "source", "compiler", "updatedAt"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("artifact missing expected field %q", key)
		}
	}
	order, err := topLevelKeyOrder(out)
	if err != nil {
		t.Fatalf("could not read key order: %v", err)
	}
	want := []string{"contractName", "constructorInputs", "functions", "source", "compiler", "updatedAt"}
	if len(order) != len(want) {
		t.Fatalf("got %d top-level keys, want %d: %v", len(order), len(want), order)
	}
	for i, k := range want {
		if order[i] != k {
			t.Fatalf("field order mismatch at position %d: got %q, want %q (%v)", i, order[i], k, order)
		}
	}
}

// topLevelKeyOrder walks the raw JSON token stream to recover the
// declaration order of a flat top-level object's keys, since decoding
// into a map loses it.
func topLevelKeyOrder(raw string) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	if _, err := dec.Token(); err != nil { // consume opening '{'
		return nil, err
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if s, ok := tok.(string); ok {
			keys = append(keys, s)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func TestBuildTwoFunctionEntriesPerSpendingPath(t *testing.T) {
	an, leaves := analyzeAndGenerate(t, bareVTXOSrc)
	out, err := Build(bareVTXOSrc, an, leaves, "arkadec", "0.1.0", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	var doc Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(doc.Functions) != 2 {
		t.Fatalf("expected 2 function entries (cooperative + exit), got %d", len(doc.Functions))
	}
	if doc.Functions[0].ServerVariant == doc.Functions[1].ServerVariant {
		t.Fatal("expected exactly one cooperative and one exit entry")
	}
}

const quorumSrc = `
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

// TestConstructorInputsFlattenFixedArray confirms testable property 3:
// a fixed-length array constructor parameter flattens to name_0..name_{N-1}.
func TestConstructorInputsFlattenFixedArray(t *testing.T) {
	an, leaves := analyzeAndGenerate(t, quorumSrc)
	out, err := Build(quorumSrc, an, leaves, "arkadec", "0.1.0", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	var doc Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	want := []string{"signers_0", "signers_1", "signers_2", "server"}
	if len(doc.ConstructorInputs) != len(want) {
		t.Fatalf("got %d constructor inputs, want %d: %+v", len(doc.ConstructorInputs), len(want), doc.ConstructorInputs)
	}
	for i, name := range want {
		if doc.ConstructorInputs[i].Name != name {
			t.Fatalf("constructor input %d: got %q, want %q", i, doc.ConstructorInputs[i].Name, name)
		}
	}
}

const assetSeedSrc = `
options { server = server; exit = 144; }
contract AssetGated(pubkey owner, pubkey server, bytes32 assetId) {
	function spend(signature ownerSig) {
		require(tx.assetGroups.find(assetId) == 0);
		require(checkSig(ownerSig, owner));
	}
}
`

// TestConstructorInputsDecomposeAssetIDSeed confirms testable property 4:
// a bytes32 constructor parameter used as a lookup argument decomposes
// into its _txid/_gidx ABI pair instead of appearing as a plain bytes32.
func TestConstructorInputsDecomposeAssetIDSeed(t *testing.T) {
	an, leaves := analyzeAndGenerate(t, assetSeedSrc)
	out, err := Build(assetSeedSrc, an, leaves, "arkadec", "0.1.0", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	var doc Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	found := map[string]string{}
	for _, e := range doc.ConstructorInputs {
		found[e.Name] = e.Type
	}
	if found["assetId_txid"] != "bytes32" {
		t.Fatalf("expected assetId_txid:bytes32 in constructor inputs, got %+v", doc.ConstructorInputs)
	}
	if found["assetId_gidx"] != "int" {
		t.Fatalf("expected assetId_gidx:int in constructor inputs, got %+v", doc.ConstructorInputs)
	}
	if _, ok := found["assetId"]; ok {
		t.Fatalf("assetId should not appear undecomposed, got %+v", doc.ConstructorInputs)
	}
}
