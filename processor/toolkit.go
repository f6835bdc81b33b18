package processor

import (
	"context"

	"github.com/oceanografia/bathy/worker/gdalprocess"
)

// Toolkit is the external raster toolkit. *gdalprocess.Toolkit implements it
// on top of the GDAL command line utilities.
type Toolkit interface {
	Inspect(ctx context.Context, path string, computeStats bool) (*gdalprocess.RasterInfo, error)
	CropResample(ctx context.Context, win gdalprocess.SrcWindow, src, dst string, outWidth, outHeight int) error
	SampleAtPixel(ctx context.Context, x, y int, src string) (float64, error)
	ExtractMatrix(ctx context.Context, win gdalprocess.SrcWindow, src, scratch string, outWidth, outHeight int) (*gdalprocess.Grid, error)
	ContourLines(ctx context.Context, src, dst string, interval float64) error
	ContourBands(ctx context.Context, src, dst string, interval float64) error
}

// SrcWindow converts a pixel box to the toolkit's upper-left based window.
func (p PixelBox) SrcWindow() gdalprocess.SrcWindow {
	return gdalprocess.SrcWindow{
		XOff:  p.X0,
		YOff:  p.Y1,
		XSize: p.RawWidth(),
		YSize: p.RawHeight(),
	}
}
