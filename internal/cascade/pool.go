package cascade

import (
	"context"
	"runtime"
)

// Pool bounds how many cascades run concurrently. Decoding is CPU-bound;
// letting every request run at once only trades throughput for latency.
type Pool struct {
	slots chan struct{}
}

// NewPool creates a pool with the given number of slots. size <= 0 means one
// slot per CPU.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or the context is done.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired with Acquire.
func (p *Pool) Release() {
	<-p.slots
}

// Size returns the slot count.
func (p *Pool) Size() int {
	return cap(p.slots)
}
