// Package bufpool recycles read buffers in three size classes.
package bufpool

import (
	"sync"
)

var pool = NewPool(1<<10, 1<<12, 1<<14)

// Get returns a buffer of length size from the default pool.
func Get(size int) []byte {
	return pool.Get(size)
}

// Put returns a buffer obtained from Get to the default pool.
func Put(b []byte) {
	pool.Put(b)
}

// NewPool returns a Pool with the given size classes.
// It panics unless 0 < min < middle < max.
func NewPool(min, middle, max int) *Pool {
	if min <= 0 || middle <= 0 || max <= 0 {
		panic("min, middle, max must be greater than 0")
	}
	if min >= middle || middle >= max {
		panic("min, middle, max must be in ascending order")
	}

	p := &Pool{
		sizes: [3]int{min, middle, max},
	}
	for i, size := range p.sizes {
		size := size
		p.pools[i] = &sync.Pool{
			New: func() any {
				b := make([]byte, size)
				return &b
			},
		}
	}

	return p
}

// Pool hands out byte slices whose capacity is one of three size classes.
// Requests larger than the biggest class are allocated and not recycled.
type Pool struct {
	pools [3]*sync.Pool
	sizes [3]int
}

// Get returns a slice of length size backed by the smallest fitting class.
func (p *Pool) Get(size int) []byte {
	for i, class := range p.sizes {
		if size <= class {
			b := p.pools[i].Get().(*[]byte)
			return (*b)[:size]
		}
	}
	return make([]byte, size)
}

// Put recycles b when its capacity matches a size class.
func (p *Pool) Put(b []byte) {
	c := cap(b)
	for i, class := range p.sizes {
		if c == class {
			b = b[:c]
			p.pools[i].Put(&b)
			return
		}
	}
	// If the capacity does not match any class, GC the slice
}
