package processor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanografia/bathy/utils"
	"github.com/oceanografia/bathy/worker/gdalprocess"
)

// Service wires a Provider to the GDAL process pool and runs the artifact
// collector over its publish directory.
type Service struct {
	Provider  *Provider
	Collector *Collector

	pool *gdalprocess.ProcessPool
}

func NewService(ctx context.Context, conf *utils.Config, log zerolog.Logger) (*Service, error) {
	sc := conf.ServiceConfig

	pool, err := gdalprocess.CreateProcessPool(sc.ToolkitWorkers, sc.GDALBinDir, log.With().Str("component", "gdal").Logger())
	if err != nil {
		return nil, err
	}

	results, err := NewResultCache(sc.ResultCacheSize, sc.MemcacheAddress, time.Duration(sc.ResultCacheTTL)*time.Second, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	provider, err := NewProvider(conf, gdalprocess.NewToolkit(pool), results, log.With().Str("component", "provider").Logger())
	if err != nil {
		pool.Close()
		return nil, err
	}

	if sc.OOMThresholdKB > 0 {
		mon := gdalprocess.NewOOMMonitor(sc.OOMThresholdKB, log.With().Str("component", "oom").Logger())
		go func() {
			if err := mon.Run(ctx); err != nil {
				log.Error().Err(err).Msg("OOM monitor stopped")
			}
		}()
	}

	collector := NewCollector(provider.PublishDir(), log.With().Str("component", "collector").Logger())
	collector.Start(ctx)

	return &Service{Provider: provider, Collector: collector, pool: pool}, nil
}

// Close stops the collector and the toolkit workers.
func (s *Service) Close() {
	s.Collector.Stop()
	s.pool.Close()
}
