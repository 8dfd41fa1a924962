package ssr

import (
	"context"
	"strings"
	"sync"

	"github.com/pthm/ssr/lib/engine"
	"github.com/pthm/ssr/lib/pool"
)

// StubEngine is an in-memory engine for tests. It records every expression
// it is asked to evaluate.
//
// RenderFunc and ExistsFunc answer EvaluateString and EvaluateBool. When
// nil, EvaluateString returns "" and EvaluateBool returns true.
//
//	eng := &ssr.StubEngine{
//	    RenderFunc: func(expr string) (string, error) {
//	        return "<h1>Hello</h1>", nil
//	    },
//	}
type StubEngine struct {
	RenderFunc func(expr string) (string, error)
	ExistsFunc func(expr string) (bool, error)

	mu          sync.Mutex
	expressions []string
}

// EvaluateString implements engine.Engine.
func (s *StubEngine) EvaluateString(ctx context.Context, expr string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.record(expr)
	if s.RenderFunc == nil {
		return "", nil
	}
	return s.RenderFunc(expr)
}

// EvaluateBool implements engine.Engine.
func (s *StubEngine) EvaluateBool(ctx context.Context, expr string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.record(expr)
	if s.ExistsFunc == nil {
		return true, nil
	}
	return s.ExistsFunc(expr)
}

// Expressions returns the expressions evaluated so far, in order.
func (s *StubEngine) Expressions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.expressions...)
}

func (s *StubEngine) record(expr string) {
	s.mu.Lock()
	s.expressions = append(s.expressions, expr)
	s.mu.Unlock()
}

// StubPool is an EnginePool lending a single engine. It counts how often
// the engine was acquired, released and discarded.
type StubPool struct {
	Engine engine.Engine
	// AcquireErr, when set, fails every Acquire.
	AcquireErr error

	mu        sync.Mutex
	acquired  int
	released  int
	discarded int
}

// Acquire implements EnginePool.
func (p *StubPool) Acquire(ctx context.Context) (engine.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.AcquireErr != nil {
		return nil, p.AcquireErr
	}
	p.mu.Lock()
	p.acquired++
	p.mu.Unlock()
	return p.Engine, nil
}

// Release implements EnginePool.
func (p *StubPool) Release(engine.Engine) {
	p.mu.Lock()
	p.released++
	p.mu.Unlock()
}

// Discard implements EnginePool.
func (p *StubPool) Discard(engine.Engine) {
	p.mu.Lock()
	p.discarded++
	p.mu.Unlock()
}

// Acquired returns the number of successful Acquire calls.
func (p *StubPool) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}

// Released returns the number of Release calls.
func (p *StubPool) Released() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Discarded returns the number of Discard calls.
func (p *StubPool) Discarded() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discarded
}

// Outstanding returns engines acquired and not yet given back.
func (p *StubPool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired - p.released - p.discarded
}

// NewTestEnvironment builds an Environment around eng with the default
// configuration and an unpooled allocator, so tests never share buffers
// with each other.
func NewTestEnvironment(eng engine.Engine, opts ...Option) (*Environment, *StubPool) {
	return NewTestEnvironmentWithConfig(DefaultConfig(), eng, opts...)
}

// NewTestEnvironmentWithConfig is NewTestEnvironment with a custom config.
// It panics if cfg is invalid.
func NewTestEnvironmentWithConfig(cfg Config, eng engine.Engine, opts ...Option) (*Environment, *StubPool) {
	engines := &StubPool{Engine: eng}
	opts = append([]Option{WithAllocator(pool.Heap[byte]{})}, opts...)
	env, err := NewEnvironment(cfg, engines, opts...)
	if err != nil {
		panic(err)
	}
	return env, engines
}

// TestResult holds the outcome of a test render.
type TestResult struct {
	HTML string
	// Expressions lists what the engine was asked to evaluate.
	Expressions []string
	// Acquired and Released count engine pool traffic during the render.
	Acquired int
	Released int
}

// TestRender renders one component against eng and returns the markup
// together with the expressions the engine received.
//
//	result, err := ssr.TestRender(eng, "App.Header", props, ssr.ComponentOptions{})
//	if !result.HTMLContains("<h1>") {
//	    t.Fatal("missing heading")
//	}
func TestRender(eng *StubEngine, name string, props any, opts ComponentOptions) (*TestResult, error) {
	return TestRenderWithContext(context.Background(), eng, name, props, opts)
}

// TestRenderWithContext is TestRender with a caller-supplied context.
func TestRenderWithContext(ctx context.Context, eng *StubEngine, name string, props any, opts ComponentOptions) (*TestResult, error) {
	env, engines := NewTestEnvironment(eng)
	html, err := env.Render(ctx, name, props, opts)
	if err != nil {
		return nil, err
	}
	return &TestResult{
		HTML:        html,
		Expressions: eng.Expressions(),
		Acquired:    engines.Acquired(),
		Released:    engines.Released(),
	}, nil
}

// HTMLContains checks if the rendered HTML contains substr.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the rendered HTML contains all substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLContainsAny checks if the rendered HTML contains any of the substrings.
func (r *TestResult) HTMLContainsAny(substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(r.HTML, s) {
			return true
		}
	}
	return false
}

// Evaluated checks if the engine received exactly expr.
func (r *TestResult) Evaluated(expr string) bool {
	for _, e := range r.Expressions {
		if e == expr {
			return true
		}
	}
	return false
}

var (
	_ engine.Engine = (*StubEngine)(nil)
	_ EnginePool    = (*StubPool)(nil)
)
