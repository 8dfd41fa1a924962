package ssr

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/ssr/lib/engine"
)

func renderingEngine(html string) *StubEngine {
	return &StubEngine{
		RenderFunc: func(string) (string, error) { return html, nil },
	}
}

func throwingEngine(msg string) *StubEngine {
	return &StubEngine{
		RenderFunc: func(expr string) (string, error) {
			return "", &engine.RuntimeError{Expression: expr, Message: msg}
		},
	}
}

// countingSerializer wraps JSONSerializer and counts calls.
type countingSerializer struct {
	calls int
	err   error
}

func (s *countingSerializer) Serialize(w io.Writer, v any) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return JSONSerializer{}.Serialize(w, v)
}

func newComponent(t *testing.T, env *Environment, name string, props any, opts ComponentOptions) (*Scope, *Component) {
	t.Helper()
	scope := env.NewScope()
	t.Cleanup(func() { scope.Close() })
	c, err := scope.CreateComponent(name, props, opts)
	require.NoError(t, err)
	return scope, c
}

func TestRenderHTML(t *testing.T) {
	eng := renderingEngine("<p>hi</p>")
	env, engines := NewTestEnvironment(eng)
	scope, c := newComponent(t, env, "App.Widget", map[string]any{"x": 1}, ComponentOptions{
		ContainerID:  "w1",
		ContainerTag: "section",
	})

	html, err := c.HTML(context.Background(), RenderOptions{})
	require.NoError(t, err)

	assert.Equal(t, `<section id="w1"><p>hi</p></section>`, html)
	assert.Equal(t, []string{
		`ReactDOMServer.renderToString(React.createElement(App.Widget, {"x":1}))`,
	}, eng.Expressions())

	require.NoError(t, scope.Close())
	assert.Equal(t, 1, engines.Acquired())
	assert.Equal(t, 1, engines.Released())
}

func TestRenderHTMLContainerClass(t *testing.T) {
	env, _ := NewTestEnvironment(renderingEngine("x"))
	_, c := newComponent(t, env, "Box", nil, ComponentOptions{ContainerID: "b", ContainerClass: "wide dark"})

	html, err := c.HTML(context.Background(), RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, `<div id="b" class="wide dark">x</div>`, html)
}

func TestRenderHTMLContainerOnly(t *testing.T) {
	tests := []struct {
		name   string
		cfg    func(*Config)
		opts   ComponentOptions
		render RenderOptions
	}{
		{"requested", nil, ComponentOptions{}, RenderOptions{ContainerOnly: true}},
		{"client only", nil, ComponentOptions{ClientOnly: true}, RenderOptions{}},
		{"rendering disabled", func(c *Config) { c.ServerSideRendering = false }, ComponentOptions{}, RenderOptions{}},
		{"rendering disabled beats server only", func(c *Config) { c.ServerSideRendering = false }, ComponentOptions{ServerOnly: true}, RenderOptions{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ComponentExistsChecks = true
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			eng := renderingEngine("<p>never</p>")
			env, engines := NewTestEnvironmentWithConfig(cfg, eng)

			opts := tt.opts
			opts.ContainerID = "c1"
			scope, c := newComponent(t, env, "App", map[string]any{}, opts)

			html, err := c.HTML(context.Background(), tt.render)
			require.NoError(t, err)
			assert.Equal(t, `<div id="c1"></div>`, html)
			assert.Empty(t, eng.Expressions())

			require.NoError(t, scope.Close())
			assert.Zero(t, engines.Acquired())
		})
	}
}

func TestRenderHTMLServerOnly(t *testing.T) {
	for _, tt := range []struct {
		name   string
		opts   ComponentOptions
		render RenderOptions
	}{
		{"component flag", ComponentOptions{ServerOnly: true}, RenderOptions{}},
		{"render flag", ComponentOptions{}, RenderOptions{ServerOnly: true}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			eng := renderingEngine("<footer>static</footer>")
			env, _ := NewTestEnvironment(eng)
			_, c := newComponent(t, env, "Footer", map[string]int{"year": 2024}, tt.opts)

			html, err := c.HTML(context.Background(), tt.render)
			require.NoError(t, err)
			assert.Equal(t, "<footer>static</footer>", html)
			assert.Equal(t, []string{
				`ReactDOMServer.renderToStaticMarkup(React.createElement(Footer, {"year":2024}))`,
			}, eng.Expressions())
		})
	}
}

func TestRenderHTMLServerOnlyFallback(t *testing.T) {
	eng := throwingEngine("boom")
	env, _ := NewTestEnvironment(eng)

	var calls []string
	_, c := newComponent(t, env, "Footer", nil, ComponentOptions{
		ContainerID: "f",
		ServerOnly:  true,
		ExceptionHandler: func(err error, name, id string) (string, error) {
			calls = append(calls, name+"#"+id)
			return "<p>fallback</p>", nil
		},
	})

	html, err := c.HTML(context.Background(), RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "<p>fallback</p>", html, "server-only output has no container even after a fallback")
	assert.Equal(t, []string{"Footer#f"}, calls)
	assert.Equal(t, []string{
		`ReactDOMServer.renderToStaticMarkup(React.createElement(Footer, null))`,
	}, eng.Expressions())
}

func TestRenderHTMLExistenceCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ComponentExistsChecks = true

	t.Run("missing", func(t *testing.T) {
		eng := renderingEngine("<p>never</p>")
		eng.ExistsFunc = func(string) (bool, error) { return false, nil }
		env, engines := NewTestEnvironmentWithConfig(cfg, eng)
		scope, c := newComponent(t, env, "App.Missing", nil, ComponentOptions{})

		_, err := c.HTML(context.Background(), RenderOptions{})
		assert.True(t, IsComponentNotFound(err), "got %v", err)
		assert.Contains(t, err.Error(), `"App.Missing"`)
		assert.Equal(t, []string{"typeof App.Missing !== 'undefined'"}, eng.Expressions())

		require.NoError(t, scope.Close())
		assert.Equal(t, 1, engines.Acquired())
		assert.Equal(t, 1, engines.Released())
	})

	t.Run("present", func(t *testing.T) {
		eng := renderingEngine("<p>ok</p>")
		env, engines := NewTestEnvironmentWithConfig(cfg, eng)
		scope, c := newComponent(t, env, "App", nil, ComponentOptions{ContainerID: "a"})

		html, err := c.HTML(context.Background(), RenderOptions{})
		require.NoError(t, err)
		assert.Equal(t, `<div id="a"><p>ok</p></div>`, html)
		assert.Len(t, eng.Expressions(), 2)

		require.NoError(t, scope.Close())
		assert.Equal(t, 1, engines.Acquired())
	})

	t.Run("probe fails", func(t *testing.T) {
		eng := &StubEngine{ExistsFunc: func(string) (bool, error) {
			return false, errors.Wrap(engine.ErrEngineClosed, "broken pipe")
		}}
		env, engines := NewTestEnvironmentWithConfig(cfg, eng)
		scope, c := newComponent(t, env, "App", nil, ComponentOptions{})

		_, err := c.HTML(context.Background(), RenderOptions{})
		assert.ErrorIs(t, err, engine.ErrEngineClosed)

		require.NoError(t, scope.Close())
		assert.Equal(t, 1, engines.Discarded())
		assert.Zero(t, engines.Released())
	})
}

func TestRenderHTMLDefaultHandler(t *testing.T) {
	env, _ := NewTestEnvironment(throwingEngine("props.items is undefined"))
	_, c := newComponent(t, env, "App.List", nil, ComponentOptions{ContainerID: "list"})

	_, err := c.HTML(context.Background(), RenderOptions{})
	require.Error(t, err)

	var renderErr *ServerRenderingError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "App.List", renderErr.Component)
	assert.Equal(t, "list", renderErr.ContainerID)
	assert.True(t, IsEngineError(err))
}

func TestRenderHTMLExceptionHandlers(t *testing.T) {
	type call struct {
		err       error
		component string
		container string
	}

	newHandler := func(markup string, calls *[]call) ExceptionHandler {
		return func(err error, name, id string) (string, error) {
			*calls = append(*calls, call{err, name, id})
			return markup, nil
		}
	}

	t.Run("render option", func(t *testing.T) {
		var calls []call
		env, _ := NewTestEnvironment(throwingEngine("boom"))
		_, c := newComponent(t, env, "App", nil, ComponentOptions{
			ContainerID:      "c1",
			ExceptionHandler: newHandler("<p>component</p>", new([]call)),
		})

		html, err := c.HTML(context.Background(), RenderOptions{
			ExceptionHandler: newHandler("<p>fallback</p>", &calls),
		})
		require.NoError(t, err)
		assert.Equal(t, `<div id="c1"><p>fallback</p></div>`, html)

		require.Len(t, calls, 1)
		assert.Equal(t, "App", calls[0].component)
		assert.Equal(t, "c1", calls[0].container)
		assert.True(t, engine.IsRuntimeError(calls[0].err))
	})

	t.Run("component option", func(t *testing.T) {
		var calls []call
		env, _ := NewTestEnvironment(throwingEngine("boom"))
		_, c := newComponent(t, env, "App", nil, ComponentOptions{
			ContainerID:      "c2",
			ExceptionHandler: newHandler("<p>component</p>", &calls),
		})

		html, err := c.HTML(context.Background(), RenderOptions{})
		require.NoError(t, err)
		assert.Equal(t, `<div id="c2"><p>component</p></div>`, html)
		assert.Len(t, calls, 1)
	})

	t.Run("environment override", func(t *testing.T) {
		var calls []call
		env, _ := NewTestEnvironment(throwingEngine("boom"))
		env.OnEngineError = newHandler("", &calls)
		_, c := newComponent(t, env, "App", nil, ComponentOptions{ContainerID: "c3"})

		html, err := c.HTML(context.Background(), RenderOptions{})
		require.NoError(t, err)
		assert.Equal(t, `<div id="c3"></div>`, html)
		assert.Len(t, calls, 1)
	})

	t.Run("handler error aborts", func(t *testing.T) {
		abort := errors.New("abort page")
		env, _ := NewTestEnvironment(throwingEngine("boom"))
		_, c := newComponent(t, env, "App", nil, ComponentOptions{})

		_, err := c.HTML(context.Background(), RenderOptions{
			ExceptionHandler: func(error, string, string) (string, error) { return "", abort },
		})
		assert.Same(t, abort, err)
	})
}

func TestRenderHTMLTransportFailure(t *testing.T) {
	var handled bool
	eng := &StubEngine{RenderFunc: func(string) (string, error) {
		return "", errors.Wrap(engine.ErrEngineClosed, "host exited")
	}}
	env, engines := NewTestEnvironment(eng)
	scope, c := newComponent(t, env, "App", nil, ComponentOptions{
		ExceptionHandler: func(error, string, string) (string, error) {
			handled = true
			return "", nil
		},
	})

	_, err := c.HTML(context.Background(), RenderOptions{})
	assert.ErrorIs(t, err, engine.ErrEngineClosed)
	assert.False(t, handled, "transport failures bypass exception handlers")

	require.NoError(t, scope.Close())
	assert.Equal(t, 1, engines.Discarded())
	assert.Zero(t, engines.Released())
}

func TestRenderHTMLAcquireFailure(t *testing.T) {
	env, engines := NewTestEnvironment(&StubEngine{})
	engines.AcquireErr = context.DeadlineExceeded
	scope, c := newComponent(t, env, "App", nil, ComponentOptions{})

	_, err := c.HTML(context.Background(), RenderOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "ssr: acquire engine")

	require.NoError(t, scope.Close())
	assert.Zero(t, engines.Outstanding())
}

func TestPropsSerializedOnce(t *testing.T) {
	ser := &countingSerializer{}
	env, _ := NewTestEnvironment(renderingEngine("<p/>"), WithSerializer(ser))
	_, c := newComponent(t, env, "App", map[string]string{"q": "v"}, ComponentOptions{ContainerID: "a"})

	_, err := c.HTML(context.Background(), RenderOptions{})
	require.NoError(t, err)
	js, err := c.JavaScript()
	require.NoError(t, err)
	_, err = c.HTML(context.Background(), RenderOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, ser.calls)
	assert.Equal(t, `ReactDOM.hydrate(React.createElement(App, {"q":"v"}), document.getElementById("a"))`, js)

	c.SetProps(map[string]string{"q": "w"})
	js, err = c.JavaScript()
	require.NoError(t, err)
	assert.Equal(t, 2, ser.calls)
	assert.Contains(t, js, `{"q":"w"}`)
}

func TestSerializationFailureReleasesEngine(t *testing.T) {
	for _, checks := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.ComponentExistsChecks = checks
		eng := renderingEngine("<p/>")
		env, engines := NewTestEnvironmentWithConfig(cfg, eng, WithSerializer(&countingSerializer{err: errors.New("cyclic props")}))
		scope, c := newComponent(t, env, "App", nil, ComponentOptions{})

		_, err := c.HTML(context.Background(), RenderOptions{})
		assert.ErrorContains(t, err, "cyclic props")
		assert.ErrorContains(t, err, "ssr: serialize props for App")

		require.NoError(t, scope.Close())
		assert.Zero(t, engines.Outstanding(), "checks=%v", checks)
		assert.Zero(t, engines.Discarded(), "checks=%v", checks)
		for _, expr := range eng.Expressions() {
			assert.False(t, strings.HasPrefix(expr, "ReactDOMServer"), "nothing rendered with checks=%v", checks)
		}
	}
}

func TestRenderJavaScript(t *testing.T) {
	env, _ := NewTestEnvironment(&StubEngine{})

	tests := []struct {
		name string
		opts ComponentOptions
		want string
	}{
		{
			"hydrate",
			ComponentOptions{ContainerID: "w1"},
			`ReactDOM.hydrate(React.createElement(App.Widget, {"x":1}), document.getElementById("w1"))`,
		},
		{
			"client only renders",
			ComponentOptions{ContainerID: "w2", ClientOnly: true},
			`ReactDOM.render(React.createElement(App.Widget, {"x":1}), document.getElementById("w2"))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newComponent(t, env, "App.Widget", map[string]int{"x": 1}, tt.opts)
			js, err := c.JavaScript()
			require.NoError(t, err)
			assert.Equal(t, tt.want, js)
		})
	}
}

func TestComponentTempl(t *testing.T) {
	env, _ := NewTestEnvironment(renderingEngine("<nav/>"))
	_, c := newComponent(t, env, "Nav", nil, ComponentOptions{ContainerID: "nav"})

	var sb strings.Builder
	require.NoError(t, c.Templ(RenderOptions{}).Render(context.Background(), &sb))
	assert.Equal(t, `<div id="nav"><nav/></div>`, sb.String())
}

func TestComponentAccessors(t *testing.T) {
	env, _ := NewTestEnvironment(&StubEngine{})
	_, c := newComponent(t, env, "App", 42, ComponentOptions{ContainerClass: "x", ServerOnly: true})

	assert.Equal(t, "App", c.Name())
	assert.Equal(t, 42, c.Props())
	assert.Equal(t, "div", c.ContainerTag())
	assert.Equal(t, "x", c.ContainerClass())
	assert.True(t, strings.HasPrefix(c.ContainerID(), "react_"))
	assert.True(t, c.ServerOnly())
	assert.False(t, c.ClientOnly())
}
