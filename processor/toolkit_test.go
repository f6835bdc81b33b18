package processor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/oceanografia/bathy/utils"
	"github.com/oceanografia/bathy/worker/gdalprocess"
)

const testDataset = "BATIMETRIA_2019"

func testNoData() *float64 {
	nd := -32767.0
	return &nd
}

// fakeToolkit stands in for the GDAL utilities. Every output file it is asked
// for is created empty so the provider's existence checks pass.
type fakeToolkit struct {
	mu       sync.Mutex
	inspects int
	calls    []string

	inspectErr error
	// inspectGate, when set, holds dataset inspections until it is closed.
	inspectGate    chan struct{}
	inspectStarted chan struct{}
	dataset    *gdalprocess.RasterInfo
	window     *gdalprocess.RasterInfo
	sample     func(x, y int) (float64, error)
	matrix     func(win gdalprocess.SrcWindow, w, h int) (*gdalprocess.Grid, error)
	contourErr error
	noOutput   bool

	lastWin      gdalprocess.SrcWindow
	lastW, lastH int
	lastScratch  string
}

func newFakeToolkit() *fakeToolkit {
	return &fakeToolkit{
		dataset: &gdalprocess.RasterInfo{
			Width: 1000, Height: 500,
			Lng0: -10, Lat0: -5, Lng1: 10, Lat1: 5,
			NoData: testNoData(),
			Metadata: map[string]string{
				"elevation#units": "m",
				"NC_GLOBAL#title": "GEBCO",
				"AREA_OR_POINT":   "Area",
			},
		},
		window: &gdalprocess.RasterInfo{HasRange: true, Min: -5000, Max: -10, Metadata: map[string]string{}},
	}
}

func (f *fakeToolkit) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func touch(path string) error {
	return os.WriteFile(path, nil, 0644)
}

func (f *fakeToolkit) Inspect(ctx context.Context, path string, computeStats bool) (*gdalprocess.RasterInfo, error) {
	if !computeStats && f.inspectGate != nil {
		select {
		case f.inspectStarted <- struct{}{}:
		default:
		}
		<-f.inspectGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !computeStats {
		f.inspects++
		if f.inspectErr != nil {
			return nil, f.inspectErr
		}
		info := *f.dataset
		return &info, nil
	}
	info := *f.window
	info.Path = path
	info.Width, info.Height = f.lastW, f.lastH
	return &info, nil
}

func (f *fakeToolkit) CropResample(ctx context.Context, win gdalprocess.SrcWindow, src, dst string, outWidth, outHeight int) error {
	f.mu.Lock()
	f.lastWin, f.lastW, f.lastH = win, outWidth, outHeight
	f.mu.Unlock()
	f.record("crop_resample")
	return touch(dst)
}

func (f *fakeToolkit) SampleAtPixel(ctx context.Context, x, y int, src string) (float64, error) {
	f.record("sample_at_pixel")
	if f.sample == nil {
		return 0, fmt.Errorf("no sample configured")
	}
	return f.sample(x, y)
}

func (f *fakeToolkit) ExtractMatrix(ctx context.Context, win gdalprocess.SrcWindow, src, scratch string, outWidth, outHeight int) (*gdalprocess.Grid, error) {
	f.mu.Lock()
	f.lastWin, f.lastW, f.lastH, f.lastScratch = win, outWidth, outHeight, scratch
	f.mu.Unlock()
	f.record("extract_matrix")
	if f.matrix == nil {
		return nil, fmt.Errorf("no matrix configured")
	}
	return f.matrix(win, outWidth, outHeight)
}

func (f *fakeToolkit) contour(dst string) error {
	if f.contourErr != nil {
		return f.contourErr
	}
	if f.noOutput {
		return nil
	}
	return touch(dst)
}

func (f *fakeToolkit) ContourLines(ctx context.Context, src, dst string, interval float64) error {
	f.record("contour_lines")
	return f.contour(dst)
}

func (f *fakeToolkit) ContourBands(ctx context.Context, src, dst string, interval float64) error {
	f.record("contour_bands")
	return f.contour(dst)
}

func (f *fakeToolkit) numCalls(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func intPtr(v int) *int {
	return &v
}

func testConfig(t *testing.T) *utils.Config {
	return &utils.Config{
		ServiceConfig: utils.ServiceConfig{
			PublishDir: t.TempDir(),
			DataDir:    "/data",
		},
		Origins: []utils.Origin{{Code: "gebco", Name: "GEBCO"}},
		Layers: []utils.Layer{
			{
				Code:     testDataset,
				Name:     "Bathymetry 2019",
				Origin:   "gebco",
				DataFile: "gebco_2019.nc",
				Variable: "elevation",
				Unit:     "m",
				Formats:  []string{"contour-lines", "contour-bands", "point-value", "rectangular-matrix"},
			},
			{
				Code:            "DEPTH",
				Name:            "Depth",
				Origin:          "gebco",
				DataFile:        "gebco_2019.nc",
				Variable:        "elevation",
				Unit:            "m",
				Decimals:        intPtr(1),
				Formats:         []string{"point-value", "rectangular-matrix"},
				ValueExpression: "-value",
			},
		},
	}
}

func newTestProvider(t *testing.T, tk Toolkit) *Provider {
	p, err := NewProvider(testConfig(t), tk, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	var seq int64 = 1000
	p.NameSeq = func() int64 {
		seq++
		return seq
	}
	return p
}
