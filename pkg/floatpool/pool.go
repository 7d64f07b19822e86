// Package floatpool recycles fixed-size float32 scratch buffers, so that per-tick
// model decoding doesn't allocate.
package floatpool

import "sync"

// Pool hands out float32 buffers of an exact length.
// A buffer returned by Acquire must not be used after it has been passed to Release.
type Pool interface {
	Acquire(size int) []float32
	Release(buf []float32)
}

// SizePool keeps a free list per buffer size. It is safe for concurrent use.
type SizePool struct {
	PageAligned bool // Allocate new buffers on a page boundary

	lock    sync.Mutex
	free    map[int][][]float32
	maxFree int // Maximum number of idle buffers retained per size
	nAlloc  int
	nReuse  int
}

// Create a new SizePool that retains up to maxFree idle buffers of each size.
// If maxFree is zero, we use a default of 8.
func NewSizePool(maxFree int) *SizePool {
	if maxFree <= 0 {
		maxFree = 8
	}
	return &SizePool{
		free:    map[int][][]float32{},
		maxFree: maxFree,
	}
}

// Acquire returns a buffer of exactly 'size' elements. The contents are undefined.
func (p *SizePool) Acquire(size int) []float32 {
	p.lock.Lock()
	list := p.free[size]
	if n := len(list); n != 0 {
		buf := list[n-1]
		list[n-1] = nil
		p.free[size] = list[:n-1]
		p.nReuse++
		p.lock.Unlock()
		return buf
	}
	p.nAlloc++
	p.lock.Unlock()

	if p.PageAligned {
		return PageAlignedFloats(size)
	}
	return make([]float32, size)
}

// Release returns buf to the pool. Releasing nil is a no-op.
func (p *SizePool) Release(buf []float32) {
	if buf == nil {
		return
	}
	// Restore the full length, in case the caller resliced it
	buf = buf[:cap(buf)]
	p.lock.Lock()
	defer p.lock.Unlock()
	size := len(buf)
	if len(p.free[size]) >= p.maxFree {
		return
	}
	p.free[size] = append(p.free[size], buf)
}

// Stats returns the number of fresh allocations and the number of reused buffers
func (p *SizePool) Stats() (allocated, reused int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.nAlloc, p.nReuse
}
