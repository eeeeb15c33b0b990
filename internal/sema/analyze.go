package sema

import (
	"github.com/arkade-os/arkade-script/internal/ast"
	"github.com/arkade-os/arkade-script/internal/errs"
)

// AnalyzedFunction is one non-internal function, fully expanded (no
// ForStmt, no internal-function calls) and type-checked, ready for
// codegen to walk twice (cooperative, then exit).
type AnalyzedFunction struct {
	Func  *ast.Function
	Body  []ast.Statement
	Env   *Env
	Types Reprs
}

// Analyzed is the complete output of the semantic analyzer: the
// validated contract, the set of constructor parameters decomposed into
// asset-id seeds, and one AnalyzedFunction per spending path (internal
// functions are consumed by inlining and do not appear here).
type Analyzed struct {
	Contract   *ast.Contract
	AssetSeeds map[string]bool
	RootEnv    *Env
	Functions  []*AnalyzedFunction
}

// Analyze runs the full semantic pipeline over a parsed, AST-validated
// contract: options validation, asset-id seed discovery, per-function
// loop unrolling and internal-function inlining, scope resolution, and
// representation-type checking.
func Analyze(c *ast.Contract) (*Analyzed, error) {
	if err := validateOptions(c); err != nil {
		return nil, err
	}

	seeds := FindAssetIDSeeds(c)
	root := buildRootEnv(c, seeds)

	var fns []*AnalyzedFunction
	for _, fn := range c.Functions {
		if fn.Internal {
			continue
		}
		body, err := ExpandFunction(c, fn)
		if err != nil {
			return nil, err
		}
		fnEnv := root.Push()
		for _, p := range fn.Params {
			fnEnv.Define(&Symbol{Name: p.Name, Repr: ReprOfBaseType(p.Type.Base), Origin: OriginWitnessParam, Type: p.Type})
		}
		types, err := CheckFunction(body, fnEnv)
		if err != nil {
			return nil, err
		}
		fns = append(fns, &AnalyzedFunction{Func: fn, Body: body, Env: fnEnv, Types: types})
	}

	return &Analyzed{Contract: c, AssetSeeds: seeds, RootEnv: root, Functions: fns}, nil
}

// buildRootEnv defines every constructor parameter in the outermost
// scope shared by all functions. An asset-id seed is defined three ways:
// under its own name with ReprAssetIDSeed (so `checkSig`-style direct
// use is rejected rather than silently misinterpreted — seeds are only
// meaningful as lookup arguments), and under its two flattened ABI names
// (`_txid` bytes, `_gidx` csn index) for anything that needs the
// decomposed pieces directly.
func buildRootEnv(c *ast.Contract, seeds map[string]bool) *Env {
	root := NewEnv()
	for _, p := range c.Params {
		if seeds[p.Name] {
			txid, gidx := SeedFieldNames(p.Name)
			root.Define(&Symbol{Name: p.Name, Repr: ReprAssetIDSeed, Origin: OriginConstructorParam, Type: p.Type, AssetSeed: true})
			root.Define(&Symbol{Name: txid, Repr: ReprBytes, Origin: OriginConstructorParam, Type: ast.Type{Base: "bytes32"}})
			root.Define(&Symbol{Name: gidx, Repr: ReprCSN, Origin: OriginConstructorParam, Type: ast.Type{Base: "int"}})
			continue
		}
		root.Define(&Symbol{Name: p.Name, Repr: ReprOfBaseType(p.Type.Base), Origin: OriginConstructorParam, Type: p.Type})
	}
	return root
}

// validateOptions enforces §3's Options rules: `server` is required and
// must name an existing pubkey constructor parameter; `exit` is
// required; `renew`, if present, is accepted without further use here.
func validateOptions(c *ast.Contract) error {
	opts := c.Options
	if opts == nil {
		return errs.Shape(c.Span.Line, "missing required options block (exit is mandatory)")
	}
	if opts.Exit == nil {
		return errs.Shape(opts.Span.Line, "options.exit is required")
	}
	if *opts.Exit < 0 {
		return errs.Shape(opts.Span.Line, "options.exit must be non-negative")
	}
	if opts.Renew != nil && *opts.Renew < 0 {
		return errs.Shape(opts.Span.Line, "options.renew must be non-negative")
	}
	// Every non-internal function emits a cooperative leaf (testable
	// property "dual-variant completeness"), so a server co-signer must
	// be resolvable even though the grammar treats `server` as just
	// another recognized options key.
	if opts.ServerParam == "" {
		return errs.Configuration(opts.Span.Line, "options.server is required (every function emits a cooperative leaf)")
	}
	p := c.ParamByName(opts.ServerParam)
	if p == nil {
		return errs.Configuration(opts.Span.Line, "options.server names unknown parameter %q", opts.ServerParam)
	}
	if p.Type.Base != "pubkey" || p.Type.IsArray {
		return errs.Configuration(opts.Span.Line, "options.server parameter %q must be declared pubkey", opts.ServerParam)
	}
	return nil
}
