package gdalprocess

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// CropResample copies the source window of src into dst at outWidth x
// outHeight pixels. Resizing uses bilinear resampling, a 1:1 copy uses the
// nearest pixel.
func (t *Toolkit) CropResample(ctx context.Context, win SrcWindow, src, dst string, outWidth, outHeight int) error {
	if err := win.validate(outWidth, outHeight); err != nil {
		return err
	}

	args := win.args()
	args = append(args, "-outsize", strconv.Itoa(outWidth), strconv.Itoa(outHeight))
	if outWidth != win.XSize || outHeight != win.YSize {
		args = append(args, "-r", "bilinear")
	}
	args = append(args, "-of", "GTiff", "-q", src, dst)

	_, err := t.run(ctx, "crop_resample", "gdal_translate", args...)
	return err
}

// ExtractMatrix renders the source window as an ESRI ASCII grid in scratch
// and parses it back. The scratch file is left in place.
func (t *Toolkit) ExtractMatrix(ctx context.Context, win SrcWindow, src, scratch string, outWidth, outHeight int) (*Grid, error) {
	if err := win.validate(outWidth, outHeight); err != nil {
		return nil, err
	}

	args := []string{"-of", "AAIGrid"}
	args = append(args, win.args()...)
	args = append(args, "-outsize", strconv.Itoa(outWidth), strconv.Itoa(outHeight))
	if outWidth != win.XSize || outHeight != win.YSize {
		args = append(args, "-r", "bilinear")
	}
	args = append(args, "-q", src, scratch)

	if _, err := t.run(ctx, "extract_matrix", "gdal_translate", args...); err != nil {
		return nil, err
	}

	f, err := os.Open(scratch)
	if err != nil {
		return nil, fmt.Errorf("error opening matrix output %s: %v", scratch, err)
	}
	defer f.Close()

	grid, err := ParseAAIGrid(f)
	if err != nil {
		return nil, fmt.Errorf("error parsing matrix output %s: %v", scratch, err)
	}
	return grid, nil
}
