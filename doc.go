// Package ssr renders JavaScript UI components to HTML on the server.
//
// Components live in a JavaScript engine (a pooled external process, see
// lib/engine). ssr validates component names, serializes props, asks the
// engine to render, and wraps the markup in a container element the client
// later hydrates.
//
// # Environments and Scopes
//
// An Environment is built once at startup from a Config and an engine pool:
//
//	cfg, err := ssr.LoadConfig("SSR")
//	engines, err := engine.NewPool(factory, engine.PoolConfig{MaxEngines: cfg.MaxEngines})
//	env, err := ssr.NewEnvironment(cfg, engines, ssr.WithLogger(logger))
//
// Each request renders in a Scope, which borrows one engine lazily and
// returns it when closed:
//
//	scope := env.NewScope()
//	defer scope.Close()
//
//	header, err := scope.CreateComponent("App.Header", props, ssr.ComponentOptions{
//	    ContainerID: "header",
//	})
//	html, err := header.HTML(ctx, ssr.RenderOptions{})
//
// For one-off renders, Environment.Render and Environment.RenderWithInit
// manage the scope themselves.
//
// # Render Modes
//
// A normal render produces
//
//	<div id="header">...server markup...</div>
//
// and the client calls ReactDOM.hydrate on it. ClientOnly components (or
// any component when Config.ServerSideRendering is false) render an empty
// container and are initialized with ReactDOM.render. ServerOnly
// components render static markup with no container and no client script.
//
// # Client Initialization
//
// Scope.InitScript returns a templ.Component writing one <script> element
// that initializes every component of the scope:
//
//	@scope.InitScript()
//
// Components also adapt to templ directly via Component.Templ.
//
// # Errors
//
// Exceptions thrown by a component during a server render go to an
// ExceptionHandler. The default, Environment.OnEngineError, logs and
// returns a *ServerRenderingError; replace it to render fallback markup.
// Invalid names fail with ErrInvalidComponent before the engine is
// touched. Transport failures mark the engine broken and it is discarded
// rather than returned to the pool.
//
// # Buffers
//
// Expressions, serialized props and rendered markup are built in paged
// writers (lib/pagewriter) backed by a bucketed buffer pool (lib/pool), so
// steady-state rendering allocates little beyond the final strings.
package ssr
