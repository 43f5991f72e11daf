// Package pool provides generic object pooling. The inference pipeline uses it
// for per-row feature vectors so a long stream does not allocate one slice per
// row.
//
// Example usage:
//
//	vectors := pool.NewVectorPool(len(featureOrder))
//	buf := vectors.Get()
//	defer vectors.Put(buf)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and an optional reset hook.
// The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
	}
}

// New creates a new typed pool. newFn is called when the pool is empty;
// reset, if non-nil, is called on every object handed back with Put.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object from the pool, allocating one if necessary.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool for reuse.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the number of objects ever allocated and the number
// currently checked out.
func (p *Pool[T]) Stats() (allocated, inUse int64) {
	return atomic.LoadInt64(&p.stats.allocated), atomic.LoadInt64(&p.stats.inUse)
}

// Vector is a pooled fixed-width feature buffer.
type Vector struct {
	Values []float64
}

// VectorPool hands out zeroed vectors of a single width.
type VectorPool struct {
	width int
	pool  *Pool[*Vector]
}

// NewVectorPool creates a pool of vectors of the given width.
func NewVectorPool(width int) *VectorPool {
	return &VectorPool{
		width: width,
		pool: New(
			func() *Vector { return &Vector{Values: make([]float64, width)} },
			func(v *Vector) { clear(v.Values) },
		),
	}
}

// Width returns the length of every vector handed out.
func (vp *VectorPool) Width() int {
	return vp.width
}

// Get returns a zeroed vector.
func (vp *VectorPool) Get() *Vector {
	return vp.pool.Get()
}

// Put returns v to the pool. The caller must not use v afterwards.
func (vp *VectorPool) Put(v *Vector) {
	if v == nil || len(v.Values) != vp.width {
		return
	}
	vp.pool.Put(v)
}

// InUse returns the number of vectors currently checked out.
func (vp *VectorPool) InUse() int64 {
	_, inUse := vp.pool.Stats()
	return inUse
}
