package ssr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		eng := &StubEngine{}
		html, err := eng.EvaluateString(ctx, "a")
		require.NoError(t, err)
		assert.Empty(t, html)

		ok, err := eng.EvaluateBool(ctx, "b")
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, []string{"a", "b"}, eng.Expressions())
	})

	t.Run("funcs", func(t *testing.T) {
		eng := &StubEngine{
			RenderFunc: func(expr string) (string, error) { return "<" + expr + ">", nil },
			ExistsFunc: func(string) (bool, error) { return false, errors.New("no") },
		}
		html, err := eng.EvaluateString(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, "<x>", html)

		_, err = eng.EvaluateBool(ctx, "y")
		assert.EqualError(t, err, "no")
	})

	t.Run("cancelled", func(t *testing.T) {
		eng := &StubEngine{}
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := eng.EvaluateString(cctx, "a")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, eng.Expressions())
	})
}

func TestStubPool(t *testing.T) {
	eng := &StubEngine{}
	p := &StubPool{Engine: eng}

	got, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, eng, got)
	assert.Equal(t, 1, p.Outstanding())

	p.Release(got)
	_, _ = p.Acquire(context.Background())
	p.Discard(got)

	assert.Equal(t, 2, p.Acquired())
	assert.Equal(t, 1, p.Released())
	assert.Equal(t, 1, p.Discarded())
	assert.Zero(t, p.Outstanding())
}

func TestTestRender(t *testing.T) {
	eng := renderingEngine("<h1>Hello, Ada</h1>")

	result, err := TestRender(eng, "App.Greeting", map[string]string{"name": "Ada"}, ComponentOptions{ContainerID: "g"})
	require.NoError(t, err)

	assert.True(t, result.HTMLContains("Hello, Ada"))
	assert.True(t, result.HTMLContainsAll(`<div id="g">`, "<h1>", "</div>"))
	assert.True(t, result.HTMLContainsAny("<h2>", "<h1>"))
	assert.False(t, result.HTMLContainsAll("<h1>", "<h2>"))
	assert.False(t, result.HTMLContainsAny("<h2>", "<h3>"))
	assert.True(t, result.Evaluated(`ReactDOMServer.renderToString(React.createElement(App.Greeting, {"name":"Ada"}))`))
	assert.Equal(t, 1, result.Acquired)
	assert.Equal(t, 1, result.Released)
}

func TestTestRenderError(t *testing.T) {
	_, err := TestRender(throwingEngine("boom"), "App", nil, ComponentOptions{})
	assert.True(t, IsServerRenderingError(err))

	_, err = TestRender(&StubEngine{}, "not valid", nil, ComponentOptions{})
	assert.True(t, IsInvalidComponent(err))
}
