package ssr

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/pkg/errors"

	"github.com/pthm/ssr/lib/engine"
	"github.com/pthm/ssr/lib/pagewriter"
)

// ComponentOptions configures a component when a scope creates it.
type ComponentOptions struct {
	// ContainerID is the id of the wrapping element. Generated when empty.
	ContainerID string
	// ContainerTag defaults to Config.ContainerTag.
	ContainerTag   string
	ContainerClass string
	// ClientOnly skips server rendering; the client renders into an empty
	// container.
	ClientOnly bool
	// ServerOnly renders static markup with no container and no client
	// initialization.
	ServerOnly bool
	// ExceptionHandler overrides Environment.OnEngineError for this
	// component.
	ExceptionHandler ExceptionHandler
}

// RenderOptions adjusts a single render. Flags combine with the
// component's own.
type RenderOptions struct {
	ContainerOnly    bool
	ServerOnly       bool
	ExceptionHandler ExceptionHandler
}

// engineSource hands a component the engine of its scope.
type engineSource interface {
	engine(ctx context.Context) (engine.Engine, error)
	engineFailed(err error)
}

// Component is one component instance: an engine-side name, its props, and
// the element it renders into.
//
// Components are created through Scope.CreateComponent and are not safe for
// concurrent use. Serialized props are cached on first use and reused by
// both the server render and the client initialization script.
type Component struct {
	env     *Environment
	engines engineSource

	name       string
	props      any
	id         string
	tag        string
	class      string
	client     bool
	server     bool
	onEngine   ExceptionHandler
	serialized *pagewriter.Writer
}

// Name returns the component's engine-side identifier.
func (c *Component) Name() string { return c.name }

// ContainerID returns the id of the wrapping element.
func (c *Component) ContainerID() string { return c.id }

// ContainerTag returns the tag of the wrapping element.
func (c *Component) ContainerTag() string { return c.tag }

// ContainerClass returns the class of the wrapping element.
func (c *Component) ContainerClass() string { return c.class }

// ClientOnly reports whether the component skips server rendering.
func (c *Component) ClientOnly() bool { return c.client }

// ServerOnly reports whether the component renders static markup.
func (c *Component) ServerOnly() bool { return c.server }

// Props returns the current props.
func (c *Component) Props() any { return c.props }

// SetProps replaces the props and drops any cached serialization.
func (c *Component) SetProps(props any) {
	c.props = props
	c.releaseProps()
}

// RenderHTML writes the component's markup to w.
//
// Container-only renders (requested, ClientOnly, or server rendering
// disabled) produce an empty container without touching the engine.
// Otherwise the component is rendered in the scope's engine and wrapped in
// its container; server-only renders emit the markup bare.
//
// An exception thrown by the component goes to the exception handler
// (RenderOptions, then ComponentOptions, then Environment.OnEngineError),
// whose result replaces the markup. Other failures are returned as-is.
func (c *Component) RenderHTML(ctx context.Context, w io.Writer, opts RenderOptions) error {
	containerOnly := opts.ContainerOnly || c.client || !c.env.cfg.ServerSideRendering
	serverOnly := opts.ServerOnly || c.server

	if containerOnly {
		return c.writeContainer(w, "")
	}

	if c.env.cfg.ComponentExistsChecks {
		if err := c.ensureExists(ctx); err != nil {
			return err
		}
	}

	html, err := c.renderMarkup(ctx, serverOnly, c.handler(opts))
	if err != nil {
		return err
	}
	if serverOnly {
		_, err := io.WriteString(w, html)
		return err
	}
	return c.writeContainer(w, html)
}

// HTML renders the component to a string.
func (c *Component) HTML(ctx context.Context, opts RenderOptions) (string, error) {
	buf := pagewriter.New(c.env.alloc)
	defer buf.Close()

	if err := c.RenderHTML(ctx, buf, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Templ adapts the component to templ.Component so it can be embedded in
// templ templates:
//
//	@comp.Templ(ssr.RenderOptions{})
func (c *Component) Templ(opts RenderOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return c.RenderHTML(ctx, w, opts)
	})
}

// RenderJavaScript writes the client call that attaches the component to
// its container: ReactDOM.hydrate for server-rendered markup, ReactDOM.render
// for client-only components.
func (c *Component) RenderJavaScript(w io.Writer) error {
	sw := &stickyWriter{w: w}
	if c.client {
		sw.str("ReactDOM.render(")
	} else {
		sw.str("ReactDOM.hydrate(")
	}
	c.writeInitializer(sw)
	sw.str(`, document.getElementById("`)
	sw.str(c.id)
	sw.str(`"))`)
	return sw.err
}

// JavaScript returns the client initialization call as a string.
func (c *Component) JavaScript() (string, error) {
	buf := pagewriter.New(c.env.alloc)
	defer buf.Close()

	if err := c.RenderJavaScript(buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Close releases the cached props buffer. The component can still render
// afterwards; props are serialized again on demand.
func (c *Component) Close() error {
	c.releaseProps()
	return nil
}

func (c *Component) handler(opts RenderOptions) ExceptionHandler {
	switch {
	case opts.ExceptionHandler != nil:
		return opts.ExceptionHandler
	case c.onEngine != nil:
		return c.onEngine
	default:
		return c.env.OnEngineError
	}
}

func (c *Component) ensureExists(ctx context.Context) error {
	eng, err := c.engines.engine(ctx)
	if err != nil {
		return err
	}
	ok, err := eng.EvaluateBool(ctx, "typeof "+c.name+" !== 'undefined'")
	if err != nil {
		c.engines.engineFailed(err)
		return errors.Wrapf(err, "ssr: check component %s", c.name)
	}
	if !ok {
		return errors.Wrapf(ErrComponentNotFound,
			"could not find a component named %q; is it exposed by the engine bundle", c.name)
	}
	return nil
}

func (c *Component) renderMarkup(ctx context.Context, serverOnly bool, handle ExceptionHandler) (string, error) {
	expr := pagewriter.New(c.env.alloc)
	defer expr.Close()

	sw := &stickyWriter{w: expr}
	if serverOnly {
		sw.str("ReactDOMServer.renderToStaticMarkup(")
	} else {
		sw.str("ReactDOMServer.renderToString(")
	}
	c.writeInitializer(sw)
	sw.str(")")
	if sw.err != nil {
		return "", sw.err
	}

	eng, err := c.engines.engine(ctx)
	if err != nil {
		return "", err
	}
	html, err := eng.EvaluateString(ctx, expr.String())
	if err == nil {
		return html, nil
	}
	if !engine.IsRuntimeError(err) {
		c.engines.engineFailed(err)
		return "", errors.Wrapf(err, "ssr: render %s", c.name)
	}
	return handle(err, c.name, c.id)
}

// writeInitializer writes React.createElement(<name>, <props>).
func (c *Component) writeInitializer(sw *stickyWriter) {
	sw.str("React.createElement(")
	sw.str(c.name)
	sw.str(", ")
	if sw.err == nil {
		sw.err = c.writeProps(sw.w)
	}
	sw.str(")")
}

func (c *Component) writeProps(w io.Writer) error {
	if c.serialized == nil {
		buf := pagewriter.New(c.env.alloc)
		if err := c.env.serializer.Serialize(buf, c.props); err != nil {
			buf.Close()
			return errors.Wrapf(err, "ssr: serialize props for %s", c.name)
		}
		c.serialized = buf
	}
	_, err := c.serialized.WriteTo(w)
	return err
}

func (c *Component) writeContainer(w io.Writer, html string) error {
	sw := &stickyWriter{w: w}
	sw.str("<")
	sw.str(c.tag)
	sw.str(` id="`)
	sw.str(c.id)
	sw.str(`"`)
	if c.class != "" {
		sw.str(` class="`)
		sw.str(c.class)
		sw.str(`"`)
	}
	sw.str(">")
	sw.str(html)
	sw.str("</")
	sw.str(c.tag)
	sw.str(">")
	return sw.err
}

func (c *Component) releaseProps() {
	if c.serialized != nil {
		c.serialized.Close()
		c.serialized = nil
	}
}

// stickyWriter keeps the first write error and skips later writes.
type stickyWriter struct {
	w   io.Writer
	err error
}

func (s *stickyWriter) str(v string) {
	if s.err == nil {
		_, s.err = io.WriteString(s.w, v)
	}
}
