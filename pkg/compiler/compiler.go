// Package compiler exposes the pure compile(source) -> artifact | error
// entry point: the only API surface the rest of this module's internal
// packages exist to serve.
package compiler

import (
	"time"

	"github.com/arkade-os/arkade-script/internal/artifact"
	"github.com/arkade-os/arkade-script/internal/ast"
	"github.com/arkade-os/arkade-script/internal/codegen"
	"github.com/arkade-os/arkade-script/internal/errs"
	"github.com/arkade-os/arkade-script/internal/parser"
	"github.com/arkade-os/arkade-script/internal/sema"
	"github.com/arkade-os/arkade-script/pkg/config"
)

const (
	compilerName    = "arkadec"
	compilerVersion = "0.1.0"
)

// Version reports the compiler's semantic version, per §6.
func Version() string {
	return compilerVersion
}

// Compile runs the full pipeline — lex, parse, validate, analyze,
// generate, serialize — over a single Arkade Script translation unit
// and returns the JSON artifact as a string, or the first error
// encountered (the compiler never partially produces an artifact).
func Compile(source string) (string, error) {
	return CompileWithOptions(source, config.Default())
}

// CompileWithOptions is Compile with tunables pulled from an explicit
// config.Config rather than the built-in defaults — the seam
// pkg/config.Load wires the CLI host into. Only cfg.CompilerName is read
// (it is recorded as the artifact's compiler name); MaxInlineDepth and
// ShaChunkBound are not consumed, since sema and codegen apply their own
// fixed bounds.
func CompileWithOptions(source string, cfg *config.Config) (string, error) {
	contract, err := parser.Parse(source)
	if err != nil {
		return "", err
	}
	if err := ast.Validate(contract); err != nil {
		return "", err
	}

	analyzed, err := sema.Analyze(contract)
	if err != nil {
		return "", err
	}

	leaves := map[string][2]*codegen.Leaf{}
	for _, af := range analyzed.Functions {
		pair, err := codegen.GenerateFunction(analyzed, af)
		if err != nil {
			return "", err
		}
		leaves[af.Func.Name] = pair
	}

	out, err := artifact.Build(source, analyzed, leaves, cfg.CompilerName, compilerVersion, compileTime())
	if err != nil {
		return "", errs.Internal(0, "%s", err.Error())
	}
	return out, nil
}

// compileTime is the artifact's updatedAt source. Factored out so tests
// can't accidentally depend on wall-clock time leaking into compiled
// output beyond what spec.md's determinism property already excludes.
var compileTime = func() time.Time { return time.Now() }
