// Package pool lends fixed-length slices out of size-class buckets so hot
// rendering paths can reuse memory instead of allocating per request.
//
// Two allocators are provided. Bucketed keeps idle slices in power-of-two
// size classes and is safe for concurrent use. Heap allocates on every Rent
// and ignores Return; it is useful in tests and where pooling buys nothing.
//
// Slices handed out by Rent are not zeroed. Once a slice has been returned
// the caller must not touch it again.
package pool

import "github.com/pkg/errors"

// ErrContractViolation is the panic value (possibly wrapped) raised when the
// pool is misused: a negative length is requested, or a slice is returned
// whose length does not match any size class.
var ErrContractViolation = errors.New("pool: contract violation")

// Allocator rents and reclaims slices of T.
type Allocator[T any] interface {
	// Rent returns a slice whose length is at least minimumLength.
	Rent(minimumLength int) []T
	// Return hands a rented slice back. The slice must not be used afterwards.
	Return(buf []T)
}

// Heap allocates a fresh slice on every Rent and drops every Return.
type Heap[T any] struct{}

// Rent implements Allocator.
func (Heap[T]) Rent(minimumLength int) []T {
	if minimumLength < 0 {
		panic(errors.Wrapf(ErrContractViolation, "negative length %d", minimumLength))
	}
	return make([]T, minimumLength)
}

// Return implements Allocator.
func (Heap[T]) Return([]T) {}

var (
	_ Allocator[byte] = Heap[byte]{}
	_ Allocator[byte] = (*Bucketed[byte])(nil)
)
