// Package ssrecho provides Echo framework integration for ssr.
//
// Middleware gives every request its own Scope, closed once the handler
// returns, so the engine a request borrowed always goes back to the pool:
//
//	e := echo.New()
//	e.Use(ssrecho.Middleware(env, ssrecho.WithNonce()))
//
//	e.GET("/", func(c echo.Context) error {
//	    return ssrecho.RenderComponent(c, "App.Home", props, ssr.ComponentOptions{})
//	})
//
// Build the environment with ssr.WithScriptNonce(ssrecho.NonceFromContext)
// so emitted <script> elements carry the request's CSP nonce.
package ssrecho

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/ssr"
)

const scopeKey = "ssr.scope"

type nonceKey struct{}

// Option configures Middleware.
type Option func(*options)

type options struct {
	nonce bool
}

// WithNonce generates a random nonce per request, exposes it through
// NonceFromContext and adds a matching Content-Security-Policy header.
func WithNonce() Option {
	return func(o *options) {
		o.nonce = true
	}
}

// Middleware opens a Scope for each request and closes it after the
// handler returns.
func Middleware(env *ssr.Environment, opts ...Option) echo.MiddlewareFunc {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if o.nonce {
				nonce := newNonce()
				req := c.Request()
				c.SetRequest(req.WithContext(context.WithValue(req.Context(), nonceKey{}, nonce)))
				c.Response().Header().Set("Content-Security-Policy", "script-src 'nonce-"+nonce+"'")
			}

			scope := env.NewScope()
			defer scope.Close()
			c.Set(scopeKey, scope)
			return next(c)
		}
	}
}

// Scope returns the request's scope. It panics if Middleware is not
// installed on the route.
func Scope(c echo.Context) *ssr.Scope {
	scope, ok := c.Get(scopeKey).(*ssr.Scope)
	if !ok {
		panic("ssrecho: no scope on context; is Middleware installed?")
	}
	return scope
}

// NonceFromContext returns the nonce WithNonce stored for the request, or
// "" when there is none. Pass it to ssr.WithScriptNonce.
func NonceFromContext(ctx context.Context) string {
	nonce, _ := ctx.Value(nonceKey{}).(string)
	return nonce
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return ssrecho.Render(c, layout(ssrecho.Scope(c)))
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}

// RenderComponent renders one component in the request's scope, followed
// by the scope's initialization script.
func RenderComponent(c echo.Context, name string, props any, opts ssr.ComponentOptions) error {
	scope := Scope(c)
	comp, err := scope.CreateComponent(name, props, opts)
	if err != nil {
		return err
	}
	return Render(c, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := comp.RenderHTML(ctx, w, ssr.RenderOptions{}); err != nil {
			return err
		}
		return scope.InitScript().Render(ctx, w)
	}))
}

func newNonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("ssrecho: failed to generate nonce: %v", err))
	}
	return base64.StdEncoding.EncodeToString(b)
}
