package gdalprocess

import (
	"context"
	"fmt"
)

func checkInterval(interval float64) error {
	if !(interval > 0) {
		return fmt.Errorf("invalid contour interval %v", interval)
	}
	return nil
}

// ContourLines writes isolines of src every interval units into the
// shapefile dst, with the level stored in the "value" attribute.
func (t *Toolkit) ContourLines(ctx context.Context, src, dst string, interval float64) error {
	if err := checkInterval(interval); err != nil {
		return err
	}
	_, err := t.run(ctx, "contour_lines", "gdal_contour", "-q", "-a", "value", "-i", formatFloat(interval), src, dst)
	return err
}

// ContourBands writes polygons between consecutive levels, with the band
// limits stored in the "min" and "max" attributes.
func (t *Toolkit) ContourBands(ctx context.Context, src, dst string, interval float64) error {
	if err := checkInterval(interval); err != nil {
		return err
	}
	_, err := t.run(ctx, "contour_bands", "gdal_contour", "-q", "-p", "-amin", "min", "-amax", "max", "-i", formatFloat(interval), src, dst)
	return err
}
