package ssr

import (
	"context"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm/ssr/lib/pagewriter"
	"github.com/pthm/ssr/lib/pool"
)

// Environment holds what every render shares: configuration, the engine
// pool, the buffer allocator and the props serializer.
//
// An Environment is safe for concurrent use. Per-request state lives in a
// Scope.
type Environment struct {
	cfg        Config
	engines    EnginePool
	alloc      pool.Allocator[byte]
	serializer Serializer
	logger     log.Logger
	registerer prometheus.Registerer
	nonce      func(ctx context.Context) string

	// OnEngineError handles exceptions thrown by components when neither
	// the render call nor the component supplies a handler.
	//
	// The default logs the exception and returns a *ServerRenderingError.
	// Override it after NewEnvironment to render fallbacks instead:
	//
	//	env.OnEngineError = func(err error, name, id string) (string, error) {
	//	    metrics.RenderFailures.Inc()
	//	    return "", nil
	//	}
	OnEngineError ExceptionHandler
}

// Option configures an Environment.
type Option func(*Environment)

// WithAllocator sets the buffer allocator. Without it the environment uses
// pool.Shared() when Config.PoolMaxPerBucket has its default value and no
// registerer is set, and a dedicated bucketed pool otherwise.
func WithAllocator(a pool.Allocator[byte]) Option {
	return func(e *Environment) { e.alloc = a }
}

// WithSerializer sets the props serializer. Defaults to JSONSerializer.
func WithSerializer(s Serializer) Option {
	return func(e *Environment) { e.serializer = s }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l log.Logger) Option {
	return func(e *Environment) { e.logger = l }
}

// WithRegisterer registers the metrics of the environment's own buffer
// pool on reg. It has no effect together with WithAllocator. Registering two
// environments on one registry panics, as promauto does for duplicates.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Environment) { e.registerer = reg }
}

// WithScriptNonce sets the source of the nonce attribute on emitted
// <script> elements, typically read from the request context by a CSP
// middleware.
func WithScriptNonce(f func(ctx context.Context) string) Option {
	return func(e *Environment) { e.nonce = f }
}

// NewEnvironment creates an Environment rendering through engines.
func NewEnvironment(cfg Config, engines EnginePool, opts ...Option) (*Environment, error) {
	if engines == nil {
		return nil, ErrNoEnginePool
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	env := &Environment{
		cfg:        cfg,
		engines:    engines,
		serializer: JSONSerializer{},
		logger:     log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(env)
	}
	if env.alloc == nil {
		alloc, err := env.newAllocator()
		if err != nil {
			return nil, err
		}
		env.alloc = alloc
	}
	env.OnEngineError = env.defaultEngineError
	return env, nil
}

func (env *Environment) newAllocator() (pool.Allocator[byte], error) {
	if env.registerer == nil && env.cfg.PoolMaxPerBucket == pool.DefaultOptions().MaxPerBucket {
		return pool.Shared(), nil
	}
	opts := pool.DefaultOptions()
	opts.MaxPerBucket = env.cfg.PoolMaxPerBucket
	if env.registerer != nil {
		opts.Metrics = pool.NewMetrics(env.registerer, "render")
	}
	alloc, err := pool.NewBucketed[byte](opts)
	if err != nil {
		return nil, errors.Wrap(err, "ssr: buffer pool")
	}
	return alloc, nil
}

func (env *Environment) defaultEngineError(err error, name, containerID string) (string, error) {
	level.Error(env.logger).Log(
		"msg", "component threw during server render",
		"component", name,
		"container", containerID,
		"err", err,
	)
	return "", &ServerRenderingError{Component: name, ContainerID: containerID, Err: err}
}

// Config returns the environment's configuration.
func (env *Environment) Config() Config {
	return env.cfg
}

// NewScope starts a scope. The caller must Close it.
func (env *Environment) NewScope() *Scope {
	return &Scope{env: env}
}

// Render renders a single component in its own scope and returns the
// markup. The engine is back in the pool when Render returns.
func (env *Environment) Render(ctx context.Context, name string, props any, opts ComponentOptions) (string, error) {
	scope := env.NewScope()
	defer scope.Close()

	c, err := scope.CreateComponent(name, props, opts)
	if err != nil {
		return "", err
	}
	return c.HTML(ctx, RenderOptions{})
}

// RenderWithInit renders a component followed by a newline and a <script>
// element initializing it on the client. Server-only components get no
// script.
func (env *Environment) RenderWithInit(ctx context.Context, name string, props any, opts ComponentOptions) (string, error) {
	scope := env.NewScope()
	defer scope.Close()

	c, err := scope.CreateComponent(name, props, opts)
	if err != nil {
		return "", err
	}

	buf := pagewriter.New(env.alloc)
	defer buf.Close()

	if err := c.RenderHTML(ctx, buf, RenderOptions{}); err != nil {
		return "", err
	}
	if !c.server {
		if _, err := io.WriteString(buf, "\n"); err != nil {
			return "", err
		}
		if err := WriteScriptTag(buf, env.scriptNonce(ctx), c.RenderJavaScript); err != nil {
			return "", errors.Wrap(err, "ssr: write init script")
		}
	}
	return buf.String(), nil
}

func (env *Environment) scriptNonce(ctx context.Context) string {
	if env.nonce == nil {
		return ""
	}
	return env.nonce(ctx)
}
