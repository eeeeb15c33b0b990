package ast

import "github.com/arkade-os/arkade-script/internal/errs"

// Validate performs the AST-builder checks of the pipeline's second
// stage: every parameter type is recognized by the parser already (it
// cannot construct a Type otherwise), so what remains is uniqueness of
// names within each scope and uniqueness of function names.
func Validate(c *Contract) error {
	seen := map[string]bool{}
	for _, p := range c.Params {
		if seen[p.Name] {
			return errs.Scope(p.Span.Line, "duplicate constructor parameter %q", p.Name)
		}
		seen[p.Name] = true
	}

	fnNames := map[string]bool{}
	for _, fn := range c.Functions {
		if fnNames[fn.Name] {
			return errs.Scope(fn.Span.Line, "duplicate function %q", fn.Name)
		}
		fnNames[fn.Name] = true

		fnSeen := map[string]bool{}
		for _, p := range fn.Params {
			if fnSeen[p.Name] {
				return errs.Scope(p.Span.Line, "duplicate parameter %q in function %q", p.Name, fn.Name)
			}
			fnSeen[p.Name] = true
		}
	}
	return nil
}
