package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/oceanografia/bathy/metrics"
)

// metadataCell is written at most once. A failed inspection leaves it empty
// so the next caller retries. Holding a token in sem guards md and marks an
// inspection in flight.
type metadataCell struct {
	sem chan struct{}
	md  *DatasetMetadata
}

// MetadataCache memoises dataset metadata for the process lifetime.
type MetadataCache struct {
	toolkit Toolkit
	paths   map[string]string
	log     zerolog.Logger

	mu    sync.Mutex
	cells map[string]*metadataCell
}

// NewMetadataCache serves the datasets in paths, keyed by dataset id.
func NewMetadataCache(toolkit Toolkit, paths map[string]string, log zerolog.Logger) *MetadataCache {
	p := make(map[string]string, len(paths))
	for k, v := range paths {
		p[k] = v
	}
	return &MetadataCache{
		toolkit: toolkit,
		paths:   p,
		log:     log,
		cells:   make(map[string]*metadataCell),
	}
}

func (c *MetadataCache) cell(datasetID string) *metadataCell {
	c.mu.Lock()
	defer c.mu.Unlock()
	cell, ok := c.cells[datasetID]
	if !ok {
		cell = &metadataCell{sem: make(chan struct{}, 1)}
		c.cells[datasetID] = cell
	}
	return cell
}

// Get returns the metadata of datasetID, inspecting the source on first use.
// Concurrent first callers wait for a single inspection, or until their own
// ctx is done.
func (c *MetadataCache) Get(ctx context.Context, datasetID string) (*DatasetMetadata, error) {
	path, ok := c.paths[datasetID]
	if !ok {
		return nil, newQueryError(ErrDatasetUnavailable, "metadata", datasetID, nil, fmt.Errorf("unknown dataset"))
	}

	cell := c.cell(datasetID)
	select {
	case cell.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-cell.sem }()

	if cell.md != nil {
		return cell.md, nil
	}

	md, err := c.inspect(ctx, path)
	metrics.ObserveInspection(err)
	if err != nil {
		c.log.Error().Err(err).Str("dataset", datasetID).Str("path", path).Msg("dataset inspection failed")
		return nil, newQueryError(ErrDatasetUnavailable, "metadata", datasetID, nil, err)
	}

	c.log.Info().Str("dataset", datasetID).
		Int("width", md.Width).Int("height", md.Height).
		Floats64("extent", md.Extent.Slice()).
		Msg("dataset metadata loaded")
	cell.md = md
	return md, nil
}

func (c *MetadataCache) inspect(ctx context.Context, path string) (*DatasetMetadata, error) {
	info, err := c.toolkit.Inspect(ctx, path, false)
	if err != nil {
		return nil, err
	}
	md := &DatasetMetadata{
		Extent:     GeoBox{Lng0: info.Lng0, Lat0: info.Lat0, Lng1: info.Lng1, Lat1: info.Lat1},
		Width:      info.Width,
		Height:     info.Height,
		NoData:     info.NoData,
		Attributes: info.Metadata,
	}
	if md.Width <= 0 || md.Height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", md.Width, md.Height)
	}
	if !(md.DX() > 0) || !(md.DY() > 0) {
		return nil, fmt.Errorf("invalid pixel size dx=%v dy=%v", md.DX(), md.DY())
	}
	return md, nil
}
