// Package artifact packages a compiled contract's metadata, ABI, and
// per-variant assembly into the JSON document described in spec.md
// §4.5, preserving its exact field order and flattening rules.
package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/arkade-os/arkade-script/internal/ast"
	"github.com/arkade-os/arkade-script/internal/codegen"
	"github.com/arkade-os/arkade-script/internal/sema"
)

var packageLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// SetLogger mirrors internal/codegen.SetLogger for artifact assembly
// diagnostics (debug-level: field counts, trace id per compilation).
func SetLogger(l *logrus.Logger) {
	if l == nil {
		packageLogger.SetOutput(io.Discard)
		return
	}
	packageLogger.SetOutput(l.Out)
	packageLogger.SetLevel(l.Level)
	packageLogger.SetFormatter(l.Formatter)
}

// ABIEntry is one constructor- or function-input ABI element.
type ABIEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FunctionEntry is one compiled spending-path variant.
type FunctionEntry struct {
	Name           string     `json:"name"`
	FunctionInputs []ABIEntry `json:"functionInputs"`
	ServerVariant  bool       `json:"serverVariant"`
	Require        []string   `json:"require"`
	Asm            []string   `json:"asm"`
}

// CompilerIdentity is the {name, version} pair attached to every artifact.
type CompilerIdentity struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Document is the full artifact, field order fixed by its struct tags
// (Go's encoding/json preserves declaration order for struct fields).
type Document struct {
	ContractName      string           `json:"contractName"`
	ConstructorInputs []ABIEntry       `json:"constructorInputs"`
	Functions         []FunctionEntry  `json:"functions"`
	Source            string           `json:"source"`
	Compiler          CompilerIdentity `json:"compiler"`
	UpdatedAt         string           `json:"updatedAt"`
}

// Build assembles the JSON artifact for a fully analyzed and
// code-generated contract.
func Build(source string, an *sema.Analyzed, leaves map[string][2]*codegen.Leaf, compilerName, compilerVersion string, now time.Time) (string, error) {
	traceID := uuid.NewString()
	log := packageLogger.WithField("trace", traceID)

	doc := Document{
		ContractName:      an.Contract.Name,
		ConstructorInputs: flattenParams(an.Contract.Params, an.AssetSeeds),
		Source:            source,
		Compiler:          CompilerIdentity{Name: compilerName, Version: compilerVersion},
		UpdatedAt:         now.UTC().Format(time.RFC3339),
	}
	log.Debugf("assembling artifact for contract %q: %d constructor entries", doc.ContractName, len(doc.ConstructorInputs))

	for _, af := range an.Functions {
		pair, ok := leaves[af.Func.Name]
		if !ok {
			return "", fmt.Errorf("artifact: no compiled leaves for function %q", af.Func.Name)
		}
		inputs := flattenParams(af.Func.Params, nil)
		for _, leaf := range pair {
			if leaf == nil {
				continue
			}
			doc.Functions = append(doc.Functions, FunctionEntry{
				Name:           af.Func.Name,
				FunctionInputs: inputs,
				ServerVariant:  leaf.ServerVariant,
				Require:        nonNilStrings(leaf.Require),
				Asm:            nonNilStrings(leaf.Asm),
			})
		}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("artifact: marshal: %w", err)
	}
	log.Debugf("artifact assembled: %d bytes, %d function entries", len(out), len(doc.Functions))
	return string(out), nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// flattenParams expands array parameters to name_0..name_{N-1} entries
// and asset-id seeds to their _txid/_gidx pair, per §4.5 and testable
// properties 3 and 4. seeds is nil for witness parameter lists, which
// are never decomposed (only constructor bytes32 parameters can be
// seeds).
func flattenParams(params []*ast.Parameter, seeds map[string]bool) []ABIEntry {
	var out []ABIEntry
	for _, p := range params {
		if seeds != nil && seeds[p.Name] {
			txid, gidx := sema.SeedFieldNames(p.Name)
			out = append(out, ABIEntry{Name: txid, Type: "bytes32"}, ABIEntry{Name: gidx, Type: "int"})
			continue
		}
		if p.Type.IsArray {
			for i := 0; i < p.Type.ArrayLen; i++ {
				out = append(out, ABIEntry{Name: fmt.Sprintf("%s_%d", p.Name, i), Type: p.Type.Base})
			}
			continue
		}
		out = append(out, ABIEntry{Name: p.Name, Type: p.Type.Base})
	}
	if out == nil {
		out = []ABIEntry{}
	}
	return out
}
