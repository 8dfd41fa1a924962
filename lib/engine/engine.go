// Package engine defines the boundary to the JavaScript runtime that renders
// components, plus a bounded pool of engines and a client for engines that
// run in a separate host process.
package engine

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrEngineClosed is returned when an engine's transport has gone away.
	// An engine in this state should be discarded, not returned to a pool.
	ErrEngineClosed = errors.New("engine: closed")
	// ErrPoolClosed is returned by Acquire after the pool has been closed.
	ErrPoolClosed = errors.New("engine: pool closed")
	// ErrUnsupported is returned by a Func engine missing the requested
	// evaluation.
	ErrUnsupported = errors.New("engine: evaluation not supported")
)

// Engine evaluates JavaScript expressions.
type Engine interface {
	// EvaluateString evaluates expr and returns its string value. An
	// exception thrown by the expression is reported as *RuntimeError.
	EvaluateString(ctx context.Context, expr string) (string, error)
	// EvaluateBool evaluates expr and returns its boolean value.
	EvaluateBool(ctx context.Context, expr string) (bool, error)
}

// RuntimeError is an exception thrown by an expression inside the engine.
type RuntimeError struct {
	Expression string
	Message    string
	Stack      string
}

func (e *RuntimeError) Error() string {
	return "engine: runtime error: " + e.Message
}

// IsRuntimeError reports whether err is, or wraps, a *RuntimeError.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}

// Func adapts plain functions to the Engine interface.
type Func struct {
	String func(ctx context.Context, expr string) (string, error)
	Bool   func(ctx context.Context, expr string) (bool, error)
}

// EvaluateString implements Engine.
func (f Func) EvaluateString(ctx context.Context, expr string) (string, error) {
	if f.String == nil {
		return "", ErrUnsupported
	}
	return f.String(ctx, expr)
}

// EvaluateBool implements Engine.
func (f Func) EvaluateBool(ctx context.Context, expr string) (bool, error) {
	if f.Bool == nil {
		return false, ErrUnsupported
	}
	return f.Bool(ctx, expr)
}
