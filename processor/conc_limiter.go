package processor

import (
	"context"
	"sync"
)

// ConcLimiter bounds the number of queries a client keeps in flight.
type ConcLimiter struct {
	wg   sync.WaitGroup
	Pool chan struct{}
}

// Acquire blocks until a slot is free or ctx is done.
func (c *ConcLimiter) Acquire(ctx context.Context) error {
	select {
	case c.Pool <- struct{}{}:
		c.wg.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ConcLimiter) Release() {
	select {
	case <-c.Pool:
		c.wg.Done()
	default:
	}
}

// Wait blocks until every acquired slot has been released.
func (c *ConcLimiter) Wait() {
	c.wg.Wait()
}

func NewConcLimiter(cLevel int) *ConcLimiter {
	if cLevel <= 0 {
		cLevel = 1
	}
	return &ConcLimiter{Pool: make(chan struct{}, cLevel)}
}
