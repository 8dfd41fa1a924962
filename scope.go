package ssr

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/pthm/ssr/lib/engine"
)

// Scope groups the components rendered for one page or request.
//
// A scope borrows at most one engine, on first use, and returns it to the
// pool exactly once in Close, whatever happened in between. Scopes are not
// safe for concurrent use; create one per request.
//
//	scope := env.NewScope()
//	defer scope.Close()
//
//	comp, err := scope.CreateComponent("App.Header", props, ssr.ComponentOptions{})
//	...
//	html, err := comp.HTML(ctx, ssr.RenderOptions{})
//	...
//	err = scope.InitScript().Render(ctx, w)
type Scope struct {
	env        *Environment
	eng        engine.Engine
	broken     bool
	closed     bool
	components []*Component
}

// CreateComponent validates name and registers a component with the scope.
// Its client initialization is emitted by InitJavaScript.
func (s *Scope) CreateComponent(name string, props any, opts ComponentOptions) (*Component, error) {
	if s.closed {
		return nil, ErrScopeClosed
	}
	if err := ValidateIdentifier(name); err != nil {
		return nil, err
	}

	id := opts.ContainerID
	if id == "" {
		id = GenerateContainerID()
	}
	tag := opts.ContainerTag
	if tag == "" {
		tag = s.env.cfg.ContainerTag
	}
	if err := validateContainer(id, tag, opts.ContainerClass); err != nil {
		return nil, err
	}

	c := &Component{
		env:      s.env,
		engines:  s,
		name:     name,
		props:    props,
		id:       id,
		tag:      tag,
		class:    opts.ContainerClass,
		client:   opts.ClientOnly,
		server:   opts.ServerOnly,
		onEngine: opts.ExceptionHandler,
	}
	s.components = append(s.components, c)
	return c, nil
}

// Components returns the components created in this scope, in order.
func (s *Scope) Components() []*Component {
	return s.components
}

// InitJavaScript writes the client initialization call of every component
// that needs one, each terminated by ";\n". Server-only components are
// skipped.
func (s *Scope) InitJavaScript(w io.Writer) error {
	for _, c := range s.components {
		if c.server {
			continue
		}
		if err := c.RenderJavaScript(w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ";\n"); err != nil {
			return err
		}
	}
	return nil
}

// InitScript returns a templ component rendering InitJavaScript inside a
// <script> element carrying the environment's nonce.
func (s *Scope) InitScript() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return WriteScriptTag(w, s.env.scriptNonce(ctx), s.InitJavaScript)
	})
}

// Close releases every component's buffers and gives the engine back to
// the pool. A second Close does nothing.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	for _, c := range s.components {
		c.Close()
	}
	if s.eng != nil {
		if s.broken {
			level.Warn(s.env.logger).Log("msg", "discarding engine after transport failure")
			s.env.engines.Discard(s.eng)
		} else {
			s.env.engines.Release(s.eng)
		}
		s.eng = nil
	}
	return nil
}

func (s *Scope) engine(ctx context.Context) (engine.Engine, error) {
	if s.closed {
		return nil, ErrScopeClosed
	}
	if s.eng == nil {
		e, err := s.env.engines.Acquire(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "ssr: acquire engine")
		}
		s.eng = e
	}
	return s.eng, nil
}

func (s *Scope) engineFailed(err error) {
	if errors.Is(err, engine.ErrEngineClosed) {
		s.broken = true
	}
}
