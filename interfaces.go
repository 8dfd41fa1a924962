package ssr

import (
	"context"
	"io"

	"github.com/pthm/ssr/lib/engine"
)

// EnginePool lends engines to scopes. *engine.Pool implements it.
//
// A scope acquires at most one engine, on first use, and gives it back
// exactly once when it closes: through Release when the engine is healthy,
// or Discard when its transport failed.
type EnginePool interface {
	Acquire(ctx context.Context) (engine.Engine, error)
	Release(e engine.Engine)
	Discard(e engine.Engine)
}

// Serializer writes a structured text encoding of v into w. Props are
// serialized straight into a pooled writer, so implementations should
// stream rather than build an intermediate buffer.
type Serializer interface {
	Serialize(w io.Writer, v any) error
}

// ExceptionHandler decides what happens when a component throws inside the
// engine during a server render.
//
// err is the *engine.RuntimeError. The returned string is used as the
// component's inner markup. A non-nil error aborts the render and is
// returned to the caller unchanged. Returning ("", nil) suppresses the
// failure and leaves the container empty.
//
// Example, rendering a fallback:
//
//	func(err error, name, containerID string) (string, error) {
//	    return `<p class="ssr-error">Unavailable</p>`, nil
//	}
type ExceptionHandler func(err error, componentName, containerID string) (string, error)

var _ EnginePool = (*engine.Pool)(nil)
