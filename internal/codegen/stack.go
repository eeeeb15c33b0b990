// Package codegen walks a semantically analyzed function twice — once
// per spending variant — emitting tapscript assembly tokens under a
// virtual stack model. Constructor and witness parameters are referenced
// by placeholder token, never by computed pick/roll index (wallets fill
// placeholders in at witness-construction time); the virtual stack
// tracked here models only let-bindings and other values computed at
// codegen time, which is the slice of §4.4 that actually needs pick/roll
// arithmetic. See DESIGN.md for why this splits from the spec prose.
package codegen

import (
	"fmt"

	"github.com/arkade-os/arkade-script/internal/errs"
	"github.com/arkade-os/arkade-script/internal/sema"
)

// slot is one entry of the virtual stack: a computed (let-bound or
// transient) value with its representation, used only to compute
// pick/roll depths for later references to the same let-binding.
type slot struct {
	name string // "" for an anonymous transient (e.g. a require condition, consumed by the verify that follows)
	repr sema.Repr
}

// Emitter accumulates assembly tokens and tracks the computed-value
// portion of the virtual stack for one leaf (one function, one variant).
type Emitter struct {
	tokens []string
	stack  []slot
	log    *traceLogger
}

func newEmitter(log *traceLogger) *Emitter {
	return &Emitter{log: log}
}

// Emit appends raw assembly tokens verbatim (opcodes, placeholders,
// numeric literals) with no stack bookkeeping.
func (e *Emitter) Emit(tokens ...string) {
	e.tokens = append(e.tokens, tokens...)
}

// Tokens returns the accumulated assembly, in emission order.
func (e *Emitter) Tokens() []string {
	return e.tokens
}

// pushNamed emits tokens for a computed value and registers it under
// name so a later reference can pick/roll it back.
func (e *Emitter) pushNamed(name string, repr sema.Repr, tokens ...string) {
	e.Emit(tokens...)
	e.stack = append(e.stack, slot{name: name, repr: repr})
}

// pushAnon registers a transient computed value (a require condition, an
// intermediate sub-expression) with no name — still occupies a stack
// position so subsequent depth arithmetic accounts for it, but can never
// be picked back by name.
func (e *Emitter) pushAnon(repr sema.Repr) {
	e.stack = append(e.stack, slot{repr: repr})
}

// popAnon removes the top transient entry pushed by pushAnon, called
// once the opcode that consumes it (typically OP_VERIFY) has been
// emitted.
func (e *Emitter) popAnon() {
	e.stack = e.stack[:len(e.stack)-1]
}

// depthOf returns the 0-based pick/roll depth of the named slot counting
// from the top of the computed-value stack (0 = top).
func (e *Emitter) depthOf(name string) (int, sema.Repr, bool) {
	for i := len(e.stack) - 1; i >= 0; i-- {
		if e.stack[i].name == name {
			return len(e.stack) - 1 - i, e.stack[i].repr, true
		}
	}
	return 0, sema.ReprUnknown, false
}

// pick emits a copy of the named let-binding onto the top of the stack.
func (e *Emitter) pick(name string, line int) (sema.Repr, error) {
	depth, repr, ok := e.depthOf(name)
	if !ok {
		return sema.ReprUnknown, errs.Internal(line, "virtual-stack pick of unknown binding %q", name)
	}
	e.Emit(fmt.Sprintf("%d", depth), "OP_PICK")
	e.stack = append(e.stack, slot{repr: repr})
	return repr, nil
}

// reassign implements `x = e`: e has already been pushed to the top of
// the stack by the caller (as an anonymous entry); reassign rolls the
// old x slot to the top and drops it, leaving e occupying x's former
// logical position, then re-registers that position under name.
func (e *Emitter) reassign(name string, line int) error {
	// depthOf is called after the new value e has already been pushed
	// (anonymously) to the top, so the old x slot's reported depth
	// already accounts for that push.
	depth, repr, ok := e.depthOf(name)
	if !ok {
		return errs.Internal(line, "assignment to unknown binding %q", name)
	}
	e.Emit(fmt.Sprintf("%d", depth), "OP_ROLL", "OP_DROP")
	oldIdx := len(e.stack) - 1 - depth
	e.stack = append(e.stack[:oldIdx], e.stack[oldIdx+1:]...)
	for i := len(e.stack) - 1; i >= 0; i-- {
		if e.stack[i].name == "" {
			e.stack[i] = slot{name: name, repr: repr}
			break
		}
	}
	return nil
}

// snapshot returns a copy of the current stack shape, for branch
// normalization in if/else.
func (e *Emitter) snapshot() []slot {
	out := make([]slot, len(e.stack))
	copy(out, e.stack)
	return out
}

func (e *Emitter) restore(s []slot) {
	e.stack = append([]slot(nil), s...)
}
