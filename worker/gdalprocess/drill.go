package gdalprocess

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// SampleAtPixel reads the value of the first band at pixel (x, y) of src.
func (t *Toolkit) SampleAtPixel(ctx context.Context, x, y int, src string) (float64, error) {
	if x < 0 || y < 0 {
		return 0, fmt.Errorf("invalid pixel (%d, %d)", x, y)
	}

	res, err := t.run(ctx, "sample_at_pixel", "gdallocationinfo", "-valonly", "-b", "1", src, strconv.Itoa(x), strconv.Itoa(y))
	if err != nil {
		return 0, err
	}

	out := strings.TrimSpace(string(res.Stdout))
	if len(out) == 0 {
		return 0, fmt.Errorf("gdallocationinfo returned no value for pixel (%d, %d) of %s", x, y, src)
	}
	if i := strings.IndexByte(out, '\n'); i >= 0 {
		out = strings.TrimSpace(out[:i])
	}

	v, err := ParseValue(out)
	if err != nil {
		return 0, fmt.Errorf("gdallocationinfo returned invalid value %q: %v", out, err)
	}
	return v, nil
}
