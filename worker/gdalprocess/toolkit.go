package gdalprocess

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/oceanografia/bathy/metrics"
)

// SrcWindow is a GDAL -srcwin pixel window: offsets of the upper-left pixel
// plus the window size in pixels.
type SrcWindow struct {
	XOff, YOff   int
	XSize, YSize int
}

func (w SrcWindow) args() []string {
	return []string{"-srcwin",
		strconv.Itoa(w.XOff), strconv.Itoa(w.YOff),
		strconv.Itoa(w.XSize), strconv.Itoa(w.YSize)}
}

func (w SrcWindow) validate(outWidth, outHeight int) error {
	if w.XOff < 0 || w.YOff < 0 || w.XSize <= 0 || w.YSize <= 0 {
		return fmt.Errorf("invalid source window %+v", w)
	}
	if outWidth <= 0 || outHeight <= 0 {
		return fmt.Errorf("invalid output size %dx%d", outWidth, outHeight)
	}
	return nil
}

// Toolkit drives the GDAL command line utilities through a ProcessPool.
type Toolkit struct {
	pool *ProcessPool
}

func NewToolkit(pool *ProcessPool) *Toolkit {
	return &Toolkit{pool: pool}
}

func (t *Toolkit) run(ctx context.Context, op, binary string, args ...string) (*Result, error) {
	start := time.Now()
	res, err := t.pool.Run(ctx, binary, args...)
	metrics.ObserveToolkitCall(op, time.Since(start), err)
	return res, err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
