package processor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestConcLimiter(t *testing.T) {
	cl := NewConcLimiter(2)

	var running, peak int32
	for i := 0; i < 8; i++ {
		if err := cl.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		go func() {
			defer cl.Release()
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	cl.Wait()

	if peak > 2 {
		t.Errorf("expected at most 2 concurrent holders, actual %d", peak)
	}
}

func TestConcLimiterAcquireCancel(t *testing.T) {
	cl := NewConcLimiter(0)
	if err := cl.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := cl.Acquire(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected a deadline error, actual %v", err)
	}
	cl.Release()
	cl.Wait()
}
