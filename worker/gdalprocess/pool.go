package gdalprocess

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

const DefaultQueueSizePerProcess = 200

var ErrPoolClosed = fmt.Errorf("process pool is closed")

// ProcessPool runs GDAL commands on a fixed number of workers sharing one
// bounded task queue.
type ProcessPool struct {
	Pool      []*Process
	TaskQueue chan *Task

	mu     sync.RWMutex
	closed bool
}

func (p *ProcessPool) AddQueue(task *Task) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		task.Error <- ErrPoolClosed
		return
	}
	if len(p.TaskQueue) > DefaultQueueSizePerProcess*len(p.Pool)-10 {
		task.Error <- fmt.Errorf("Pool TaskQueue is full")
		return
	}
	p.TaskQueue <- task
}

// Run queues one command and waits for its output.
func (p *ProcessPool) Run(ctx context.Context, binary string, args ...string) (*Result, error) {
	task := NewTask(ctx, binary, args...)
	p.AddQueue(task)

	select {
	case res := <-task.Resp:
		return res, nil
	case err := <-task.Error:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the workers once the queued tasks drain.
func (p *ProcessPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.TaskQueue)
	}
}

func CreateProcessPool(n int, binDir string, log zerolog.Logger) (*ProcessPool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid process pool size: %d", n)
	}

	p := &ProcessPool{TaskQueue: make(chan *Task, DefaultQueueSizePerProcess*n)}
	for i := 0; i < n; i++ {
		proc := NewProcess(p.TaskQueue, binDir, i, log)
		proc.Start()
		p.Pool = append(p.Pool, proc)
	}

	log.Info().Int("workers", n).Str("bin_dir", binDir).Msg("GDAL process pool started")
	return p, nil
}
