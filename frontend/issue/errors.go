package issue

import (
	"fmt"
	"runtime/debug"

	"github.com/cottand/typeflow/frontend/ast"
	"github.com/pkg/errors"
)

// ConfigError is a fatal startup error: a malformed configuration file,
// severity rule or signature delta. Analysis must not proceed past one.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Configf creates a ConfigError for source.
func Configf(source string, format string, args ...any) error {
	return &ConfigError{Source: source, Err: errors.Errorf(format, args...)}
}

// WrapConfig annotates err and marks it as a ConfigError for source.
// It returns nil if err is nil.
func WrapConfig(err error, source string, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Source: source, Err: errors.Wrapf(err, format, args...)}
}

// Internal is raised (as a panic value) when the analyzer meets a tree it has
// no rule for. It is recovered at the per-file boundary and turned into an
// InternalError issue for that file only.
type Internal struct {
	ast.Range
	Msg   string
	stack []byte
}

func (e *Internal) Error() string {
	return fmt.Sprintf("internal error at %v: %s", e.Range, e.Msg)
}

// Stack is the analyzer stack at the point the violation was detected.
func (e *Internal) Stack() []byte { return e.stack }

// Internalf creates an Internal error located at node.
func Internalf(at ast.Positioner, format string, args ...any) *Internal {
	return &Internal{
		Range: ast.RangeOf(at),
		Msg:   fmt.Sprintf(format, args...),
		stack: debug.Stack(),
	}
}
