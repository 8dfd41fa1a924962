package engine

import (
	"context"
	"io"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Factory creates a new engine for the pool.
type Factory func(ctx context.Context) (Engine, error)

// PoolConfig configures a Pool.
type PoolConfig struct {
	// MaxEngines bounds how many engines exist at once.
	MaxEngines int
	Logger     log.Logger
	// Registerer receives the pool gauges. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// Pool lends engines to renders. Engines are created lazily up to
// MaxEngines; once all exist and are lent, Acquire waits for a Release or
// for its context to end.
type Pool struct {
	factory Factory
	logger  log.Logger

	// slots holds one token per live engine; idle holds engines not lent.
	slots chan struct{}
	idle  chan Engine

	mu     sync.Mutex
	closed bool
	// done is closed by Close to wake waiting Acquire calls.
	done chan struct{}

	inUse     prometheus.Gauge
	created   prometheus.Counter
	discarded prometheus.Counter
}

// NewPool creates an empty pool.
func NewPool(factory Factory, cfg PoolConfig) (*Pool, error) {
	if factory == nil {
		return nil, errors.New("engine: nil factory")
	}
	if cfg.MaxEngines <= 0 {
		return nil, errors.Errorf("engine: max engines must be positive, got %d", cfg.MaxEngines)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	reg := promauto.With(cfg.Registerer)
	return &Pool{
		factory: factory,
		logger:  log.With(logger, "component", "engine-pool"),
		slots:   make(chan struct{}, cfg.MaxEngines),
		idle:    make(chan Engine, cfg.MaxEngines),
		done:    make(chan struct{}),
		inUse: reg.NewGauge(prometheus.GaugeOpts{
			Namespace: "ssr",
			Subsystem: "engine_pool",
			Name:      "in_use",
			Help:      "Number of engines currently lent to renders.",
		}),
		created: reg.NewCounter(prometheus.CounterOpts{
			Namespace: "ssr",
			Subsystem: "engine_pool",
			Name:      "created_total",
			Help:      "Total number of engines created.",
		}),
		discarded: reg.NewCounter(prometheus.CounterOpts{
			Namespace: "ssr",
			Subsystem: "engine_pool",
			Name:      "discarded_total",
			Help:      "Total number of engines discarded after a failure.",
		}),
	}, nil
}

// Acquire lends an engine. Every successful Acquire must be paired with
// exactly one Release or Discard.
func (p *Pool) Acquire(ctx context.Context) (Engine, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	// Prefer an idle engine over creating another one.
	select {
	case e := <-p.idle:
		p.inUse.Inc()
		return e, nil
	default:
	}

	select {
	case e := <-p.idle:
		p.inUse.Inc()
		return e, nil
	case p.slots <- struct{}{}:
		// A slot freed by a release after Close must not start a new engine.
		if p.isClosed() {
			<-p.slots
			return nil, ErrPoolClosed
		}
		e, err := p.factory(ctx)
		if err != nil {
			<-p.slots
			return nil, errors.Wrap(err, "engine: create")
		}
		p.mu.Lock()
		if p.closed {
			p.destroy(e)
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		p.mu.Unlock()
		p.created.Inc()
		p.inUse.Inc()
		level.Debug(p.logger).Log("msg", "created engine", "engines", len(p.slots))
		return e, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Release returns a healthy engine to the pool.
func (p *Pool) Release(e Engine) {
	p.inUse.Dec()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.destroy(e)
		return
	}
	p.idle <- e
}

// Discard closes an engine that must not be reused and frees its slot.
func (p *Pool) Discard(e Engine) {
	p.inUse.Dec()
	p.discarded.Inc()
	level.Warn(p.logger).Log("msg", "discarding engine")

	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroy(e)
}

// Close closes idle engines and makes waiting and later Acquire calls fail
// with ErrPoolClosed. Engines still lent are closed when they come back.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	for {
		select {
		case e := <-p.idle:
			p.destroy(e)
		default:
			return nil
		}
	}
}

// destroy closes e and frees its slot. Callers hold p.mu.
func (p *Pool) destroy(e Engine) {
	if c, ok := e.(io.Closer); ok {
		if err := c.Close(); err != nil {
			level.Warn(p.logger).Log("msg", "failed to close engine", "err", err)
		}
	}
	<-p.slots
}
