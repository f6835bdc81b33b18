// Package processortest provides a scripted raster toolkit and a matching
// configuration for testing code built on processor.Provider without GDAL.
package processortest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/oceanografia/bathy/utils"
	"github.com/oceanografia/bathy/worker/gdalprocess"
)

// Dataset is the layer code served by Config.
const Dataset = "BATIMETRIA_2019"

// Toolkit fakes a 1000x500 bathymetry grid covering [-10, -5, 10, 5]. Every
// output file it is asked for is created empty. Contour bands fail for
// intervals above 1000.
type Toolkit struct {
	mu sync.Mutex

	// InspectErr fails dataset inspections.
	InspectErr error
	// SampleErr fails point samples.
	SampleErr error
	// Value is returned for every sampled or extracted cell.
	Value float64

	lastW, lastH int
}

func NewToolkit() *Toolkit {
	return &Toolkit{Value: -100}
}

func touch(path string) error {
	return os.WriteFile(path, nil, 0644)
}

func (t *Toolkit) Inspect(ctx context.Context, path string, computeStats bool) (*gdalprocess.RasterInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if computeStats {
		return &gdalprocess.RasterInfo{
			Path: path, Width: t.lastW, Height: t.lastH,
			HasRange: true, Min: t.Value, Max: t.Value,
			Metadata: map[string]string{"elevation#units": "m"},
		}, nil
	}
	if t.InspectErr != nil {
		return nil, t.InspectErr
	}
	nd := -32767.0
	return &gdalprocess.RasterInfo{
		Path: path, Width: 1000, Height: 500,
		Lng0: -10, Lat0: -5, Lng1: 10, Lat1: 5,
		NoData:   &nd,
		Metadata: map[string]string{"elevation#units": "m", "NC_GLOBAL#title": "GEBCO"},
	}, nil
}

func (t *Toolkit) CropResample(ctx context.Context, win gdalprocess.SrcWindow, src, dst string, outWidth, outHeight int) error {
	t.mu.Lock()
	t.lastW, t.lastH = outWidth, outHeight
	t.mu.Unlock()
	return touch(dst)
}

func (t *Toolkit) SampleAtPixel(ctx context.Context, x, y int, src string) (float64, error) {
	if t.SampleErr != nil {
		return 0, t.SampleErr
	}
	return t.Value, nil
}

func (t *Toolkit) ExtractMatrix(ctx context.Context, win gdalprocess.SrcWindow, src, scratch string, outWidth, outHeight int) (*gdalprocess.Grid, error) {
	if err := touch(scratch); err != nil {
		return nil, err
	}
	g := &gdalprocess.Grid{NCols: outWidth, NRows: outHeight, Data: make([]float64, outWidth*outHeight)}
	for i := range g.Data {
		g.Data[i] = t.Value
	}
	return g, nil
}

func (t *Toolkit) ContourLines(ctx context.Context, src, dst string, interval float64) error {
	return touch(dst)
}

func (t *Toolkit) ContourBands(ctx context.Context, src, dst string, interval float64) error {
	if interval > 1000 {
		return fmt.Errorf("gdal_contour: too few levels")
	}
	return touch(dst)
}

// Config serves Dataset from publishDir with every supported kind enabled.
func Config(publishDir string) *utils.Config {
	return &utils.Config{
		ServiceConfig: utils.ServiceConfig{PublishDir: publishDir, DataDir: "/data"},
		Origins:       []utils.Origin{{Code: "gebco", Name: "GEBCO"}},
		Layers: []utils.Layer{{
			Code:     Dataset,
			Name:     "Bathymetry 2019",
			Origin:   "gebco",
			DataFile: "gebco_2019.nc",
			Variable: "elevation",
			Unit:     "m",
			Formats:  []string{"contour-lines", "contour-bands", "point-value", "rectangular-matrix"},
		}},
	}
}
