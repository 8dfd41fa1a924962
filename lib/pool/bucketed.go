package pool

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// probeDepth is how many size classes Rent inspects, starting at the home
// bucket, before it gives up and allocates.
const probeDepth = 2

// Options configures a Bucketed pool.
type Options struct {
	// MaxLength is the length of the largest size class. Requests above it
	// are served by plain allocations that are never pooled. Must be a power
	// of two between MinBucketLength and MaxBucketLength.
	MaxLength int
	// MaxPerBucket bounds how many idle slices one size class retains.
	MaxPerBucket int
	// Metrics, when set, receives a count of every pool operation.
	Metrics *Metrics
}

// DefaultOptions returns the options used by Shared.
func DefaultOptions() Options {
	return Options{
		MaxLength:    MaxBucketLength,
		MaxPerBucket: 50,
	}
}

// Bucketed is an Allocator that keeps idle slices in power-of-two size
// classes. Each size class has its own lock, so goroutines renting different
// sizes never contend.
type Bucketed[T any] struct {
	maxLength int
	buckets   []*bucket[T]
	empty     []T
	metrics   *Metrics

	rents   atomic.Uint64
	hits    atomic.Uint64
	returns atomic.Uint64
	drops   atomic.Uint64
}

// NewBucketed creates a pool covering [MinBucketLength, opts.MaxLength].
func NewBucketed[T any](opts Options) (*Bucketed[T], error) {
	if opts.MaxLength < MinBucketLength || opts.MaxLength > MaxBucketLength || opts.MaxLength&(opts.MaxLength-1) != 0 {
		return nil, errors.Errorf("pool: max length %d must be a power of two in [%d, %d]", opts.MaxLength, MinBucketLength, MaxBucketLength)
	}
	if opts.MaxPerBucket <= 0 {
		return nil, errors.Errorf("pool: max per bucket must be positive, got %d", opts.MaxPerBucket)
	}

	n := SelectBucket(opts.MaxLength) + 1
	p := &Bucketed[T]{
		maxLength: opts.MaxLength,
		buckets:   make([]*bucket[T], n),
		empty:     make([]T, 0),
		metrics:   opts.Metrics,
	}
	for i := range p.buckets {
		p.buckets[i] = newBucket[T](BucketLength(i), opts.MaxPerBucket)
	}
	return p, nil
}

// Rent returns a slice of length >= minimumLength. A zero-length request
// returns a shared empty slice. Rent never blocks: when no idle slice is
// available a new one is allocated.
func (p *Bucketed[T]) Rent(minimumLength int) []T {
	if minimumLength < 0 {
		panic(errors.Wrapf(ErrContractViolation, "negative length %d", minimumLength))
	}
	if minimumLength == 0 {
		return p.empty
	}
	p.rents.Inc()

	if minimumLength > p.maxLength {
		p.metrics.miss()
		return make([]T, minimumLength)
	}

	home := SelectBucket(minimumLength)
	for i := home; i < len(p.buckets) && i < home+probeDepth; i++ {
		if buf := p.buckets[i].pop(); buf != nil {
			p.hits.Inc()
			p.metrics.hit()
			return buf
		}
	}

	p.metrics.miss()
	return make([]T, p.buckets[home].length)
}

// Return hands buf back to its size class. The slice must have the length it
// was rented with. Slices longer than the largest size class are dropped, as
// are slices whose size class is already full. A slice of any other length
// that matches no size class panics with ErrContractViolation.
func (p *Bucketed[T]) Return(buf []T) {
	n := len(buf)
	if n == 0 {
		return
	}
	if n > p.maxLength {
		p.drops.Inc()
		p.metrics.drop()
		return
	}

	i := SelectBucket(n)
	if p.buckets[i].length != n {
		panic(errors.Wrapf(ErrContractViolation, "returned slice of length %d belongs to no size class", n))
	}

	if p.buckets[i].push(buf) {
		p.returns.Inc()
		p.metrics.ret()
		return
	}
	p.drops.Inc()
	p.metrics.drop()
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	Rents   uint64
	Hits    uint64
	Returns uint64
	Drops   uint64
	// Idle holds the number of idle slices per size class, indexed like
	// SelectBucket.
	Idle []int
}

// Misses is the number of non-empty rents that had to allocate.
func (s Stats) Misses() uint64 {
	return s.Rents - s.Hits
}

// Stats returns a snapshot of the pool's counters.
func (p *Bucketed[T]) Stats() Stats {
	idle := make([]int, len(p.buckets))
	for i, b := range p.buckets {
		idle[i] = b.idle()
	}
	return Stats{
		Rents:   p.rents.Load(),
		Hits:    p.hits.Load(),
		Returns: p.returns.Load(),
		Drops:   p.drops.Load(),
		Idle:    idle,
	}
}
