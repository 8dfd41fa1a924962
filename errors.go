package ssr

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/pthm/ssr/lib/engine"
	"github.com/pthm/ssr/lib/pagewriter"
	"github.com/pthm/ssr/lib/pool"
)

// Sentinel errors for rendering operations.
var (
	ErrInvalidComponent  = errors.New("ssr: invalid component name")
	ErrInvalidContainer  = errors.New("ssr: invalid container attribute")
	ErrComponentNotFound = errors.New("ssr: component not found")
	ErrServerRendering   = errors.New("ssr: server rendering failed")
	ErrScopeClosed       = errors.New("ssr: scope closed")
	ErrNoEnginePool      = errors.New("ssr: no engine pool")
)

// Re-exported from the lib packages so callers only need this one.
var (
	// ErrClosed is returned when a pooled writer is used after it was closed.
	ErrClosed = pagewriter.ErrClosed
	// ErrContractViolation is the panic value for buffer pool misuse.
	ErrContractViolation = pool.ErrContractViolation
)

// ServerRenderingError is returned by the default exception handler when a
// component throws inside the engine.
type ServerRenderingError struct {
	Component   string
	ContainerID string
	Err         error
}

func (e *ServerRenderingError) Error() string {
	return fmt.Sprintf("ssr: error while rendering %q to %q: %v", e.Component, e.ContainerID, e.Err)
}

func (e *ServerRenderingError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrServerRendering) match.
func (e *ServerRenderingError) Is(target error) bool {
	return target == ErrServerRendering
}

// IsInvalidComponent checks if err is an invalid component name error.
func IsInvalidComponent(err error) bool {
	return errors.Is(err, ErrInvalidComponent)
}

// IsInvalidContainer checks if err is an unusable container id, tag or
// class.
func IsInvalidContainer(err error) bool {
	return errors.Is(err, ErrInvalidContainer)
}

// IsComponentNotFound checks if err came from a failed existence check.
func IsComponentNotFound(err error) bool {
	return errors.Is(err, ErrComponentNotFound)
}

// IsEngineError checks if err is an exception thrown inside the engine.
func IsEngineError(err error) bool {
	return engine.IsRuntimeError(err)
}

// IsServerRenderingError checks if err was produced by the default
// exception handler.
func IsServerRenderingError(err error) bool {
	return errors.Is(err, ErrServerRendering)
}
