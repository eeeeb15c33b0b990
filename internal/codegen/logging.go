package codegen

import (
	"io"

	"github.com/sirupsen/logrus"
)

// traceLogger wraps a *logrus.Entry scoped to one function/variant
// compilation. The package-level logger stays silent by default so
// Compile remains referentially transparent from the caller's point of
// view; a host embedding this compiler long-running can redirect it with
// SetLogger, mirroring how the teacher's core services accept an
// injected *logrus.Logger per service instead of writing to os.Stdout.
type traceLogger struct {
	entry *logrus.Entry
}

var packageLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// SetLogger redirects codegen's diagnostic trace output. Passing nil
// restores the silent default.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		packageLogger.SetOutput(io.Discard)
		return
	}
	packageLogger.SetOutput(l.Out)
	packageLogger.SetLevel(l.Level)
	packageLogger.SetFormatter(l.Formatter)
}

func newTraceLogger(functionName string, variant string) *traceLogger {
	return &traceLogger{entry: packageLogger.WithFields(logrus.Fields{
		"function": functionName,
		"variant":  variant,
	})}
}

func (t *traceLogger) debugf(format string, args ...any) {
	if t == nil || t.entry == nil {
		return
	}
	t.entry.Debugf(format, args...)
}

func (t *traceLogger) trace(msg string) {
	if t == nil || t.entry == nil {
		return
	}
	t.entry.Trace(msg)
}

func (t *traceLogger) warnf(format string, args ...any) {
	if t == nil || t.entry == nil {
		return
	}
	t.entry.Warnf(format, args...)
}
