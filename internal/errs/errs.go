// Package errs implements the tagged error taxonomy of the compiler's
// error-handling design: every failure mode the pipeline can raise is one
// of a small set of tags, each carrying the offending source line so the
// host can extract a `line N` token for its editor.
package errs

import "fmt"

// Tag classifies a compilation failure.
type Tag string

const (
	TagParse          Tag = "Parse error"
	TagScope          Tag = "Scope error"
	TagRepresentation Tag = "Type error"
	TagShape          Tag = "Shape error"
	TagConfiguration  Tag = "Configuration error"
	TagInternal       Tag = "Internal error"
)

// CompileError is the single error value the compiler ever returns. It
// always carries a tag and, where known, the 1-based source line the
// failure originated from.
type CompileError struct {
	Tag     Tag
	Line    int // 0 means unknown/not line-addressable
	Message string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Tag, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Tag, e.Message)
}

func New(tag Tag, line int, format string, args ...any) *CompileError {
	return &CompileError{Tag: tag, Line: line, Message: fmt.Sprintf(format, args...)}
}

func Parse(line int, format string, args ...any) *CompileError {
	return New(TagParse, line, format, args...)
}

func Scope(line int, format string, args ...any) *CompileError {
	return New(TagScope, line, format, args...)
}

func Representation(line int, format string, args ...any) *CompileError {
	return New(TagRepresentation, line, format, args...)
}

func Shape(line int, format string, args ...any) *CompileError {
	return New(TagShape, line, format, args...)
}

func Configuration(line int, format string, args ...any) *CompileError {
	return New(TagConfiguration, line, format, args...)
}

func Internal(line int, format string, args ...any) *CompileError {
	return New(TagInternal, line, format, args...)
}
