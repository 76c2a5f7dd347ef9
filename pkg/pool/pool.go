// Package pool provides typed object pools and a size-bucketed byte buffer
// pool used for decompressed pack bodies.
//
// Example usage:
//
//	bufs := pool.NewBufferPool()
//	buf := bufs.Get(4096)
//	defer bufs.Put(buf)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a type-safe wrapper around sync.Pool that tracks allocation
// statistics and optionally resets objects before they are reused.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a pool. newFn allocates an object when the pool is empty and
// reset, if non-nil, is applied to every object handed back with Put.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object, allocating one if the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns obj to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the number of objects allocated, currently checked out,
// and the number of Get calls served without allocating.
func (p *Pool[T]) Stats() (allocated, inUse, reused int64) {
	allocated = atomic.LoadInt64(&p.stats.allocated)
	reused = atomic.LoadInt64(&p.stats.gets) - allocated
	if reused < 0 {
		reused = 0
	}
	return allocated, atomic.LoadInt64(&p.stats.inUse), reused
}

// BufferPool hands out byte buffers from power-of-four size buckets between
// 4KB and 64MB. Larger requests are allocated directly and never pooled.
type BufferPool struct {
	pools []*Pool[[]byte]
	sizes []int
}

// DefaultBufferSizes are the bucket sizes used by NewBufferPool.
var DefaultBufferSizes = []int{
	4 << 10,  // 4KB
	16 << 10, // 16KB
	64 << 10, // 64KB
	256 << 10,
	1 << 20, // 1MB
	4 << 20,
	16 << 20,
	64 << 20, // 64MB
}

// NewBufferPool creates a buffer pool using DefaultBufferSizes.
func NewBufferPool() *BufferPool {
	return NewBufferPoolWithSizes(DefaultBufferSizes)
}

// NewBufferPoolWithSizes creates a buffer pool with the given ascending
// bucket sizes.
func NewBufferPoolWithSizes(sizes []int) *BufferPool {
	pools := make([]*Pool[[]byte], len(sizes))
	for i, size := range sizes {
		size := size
		pools[i] = New(func() []byte { return make([]byte, size) }, nil)
	}
	return &BufferPool{pools: pools, sizes: append([]int(nil), sizes...)}
}

// Get returns a buffer of length size. Its capacity is that of the smallest
// bucket that fits.
func (p *BufferPool) Get(size int) []byte {
	for i, s := range p.sizes {
		if s >= size {
			buf := p.pools[i].Get()
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the bucket matching its capacity. Buffers that match
// no bucket are left to the garbage collector.
func (p *BufferPool) Put(buf []byte) {
	size := cap(buf)
	for i, s := range p.sizes {
		if s == size {
			p.pools[i].Put(buf[:size])
			return
		}
	}
}

// Stats sums the statistics of every bucket.
func (p *BufferPool) Stats() (allocated, inUse, reused int64) {
	for _, bucket := range p.pools {
		a, u, r := bucket.Stats()
		allocated += a
		inUse += u
		reused += r
	}
	return allocated, inUse, reused
}
