package processor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanografia/bathy/metrics"
)

const (
	ArtifactTTL     = 60 * time.Second
	CollectorPeriod = 60 * time.Second
)

// Collector is the only component that deletes published artifacts. It
// sweeps the publish directory once on Start and then every Interval,
// removing entries at least TTL old.
type Collector struct {
	Dir      string
	TTL      time.Duration
	Interval time.Duration
	Log      zerolog.Logger

	// Now is the sweep clock.
	Now func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func NewCollector(dir string, log zerolog.Logger) *Collector {
	return &Collector{
		Dir:      dir,
		TTL:      ArtifactTTL,
		Interval: CollectorPeriod,
		Log:      log,
		Now:      time.Now,
	}
}

// Start runs the first sweep synchronously and schedules the rest until ctx
// is cancelled or Stop is called.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	c.Sweep(ctx)
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep(ctx)
			}
		}
	}()
}

// Stop cancels the schedule and waits for a running sweep to finish. A
// stopped collector can be started again.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
}

// Sweep deletes every expired entry of the publish directory and returns the
// number removed. A failed listing or stat ends the sweep early; a failed
// delete only skips its entry.
func (c *Collector) Sweep(ctx context.Context) int {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		metrics.IncCollectorFailure("list")
		c.Log.Error().Err(err).Str("dir", c.Dir).Msg("listing publish directory")
		return 0
	}

	now := c.Now()
	deleted := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		path := filepath.Join(c.Dir, entry.Name())
		info, err := os.Lstat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			metrics.IncCollectorFailure("stat")
			c.Log.Error().Err(err).Str("path", path).Msg("reading artifact modification time")
			break
		}

		if now.Sub(info.ModTime()) < c.TTL {
			continue
		}

		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			metrics.IncCollectorFailure("delete")
			c.Log.Error().Err(newQueryError(ErrArtifactIO, "collect", "", nil, err)).
				Str("path", path).Msg("deleting artifact")
			continue
		}
		metrics.IncCollectorDeleted()
		deleted++
	}

	if deleted > 0 {
		c.Log.Debug().Int("deleted", deleted).Str("dir", c.Dir).Msg("publish directory swept")
	}
	return deleted
}
