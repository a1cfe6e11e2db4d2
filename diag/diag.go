// package diag defines the diagnostics reported by the compiler.
package diag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
)

// Code is a stable identifier for a class of compile error.
type Code int

const (
	Success               Code = 0
	SerializationError    Code = 1
	InvalidCompileTarget  Code = 3
	ArgumentCountMismatch Code = 6
	InfiniteLoop          Code = 35
	UnknownError          Code = 9999
)

func (c Code) String() string {
	return fmt.Sprintf("ELE%d", int(c))
}

// Error is a compile error with a stable code.
type Error struct {
	Code Code
	Msg  string
}

func (e Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Code, e.Msg)
}

func Errorf(code Code, format string, args ...any) Error {
	return Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first Error in err's chain.
// UnknownError is returned for errors which did not come from the compiler
// and Success is returned for nil.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}
	return UnknownError
}

// Trace is a sink for diagnostics.
type Trace interface {
	Trace(ctx context.Context, code Code, msg string)
}

// TraceFunc adapts a function to a Trace
type TraceFunc func(ctx context.Context, code Code, msg string)

func (f TraceFunc) Trace(ctx context.Context, code Code, msg string) {
	f(ctx, code, msg)
}

// LogTrace reports diagnostics to the logger in the context.
type LogTrace struct{}

func (LogTrace) Trace(ctx context.Context, code Code, msg string) {
	logctx.Error(ctx, msg, zap.Stringer("code", code))
}

// Report sends err to t, if err is not nil, and returns err.
func Report(ctx context.Context, t Trace, err error) error {
	if err == nil || t == nil {
		return err
	}
	var e Error
	if errors.As(err, &e) {
		t.Trace(ctx, e.Code, e.Msg)
	} else {
		t.Trace(ctx, UnknownError, err.Error())
	}
	return err
}

// Messages collects diagnostics in memory.
type Messages struct {
	mu   sync.Mutex
	list []Error
}

func (m *Messages) Trace(ctx context.Context, code Code, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, Error{Code: code, Msg: msg})
}

// List returns the diagnostics collected so far.
func (m *Messages) List() []Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Error{}, m.list...)
}
