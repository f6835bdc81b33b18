package gdalprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// RasterInfo is the part of a gdalinfo report the query core consumes.
type RasterInfo struct {
	Path     string
	Width    int
	Height   int
	Lng0     float64
	Lat0     float64
	Lng1     float64
	Lat1     float64
	Metadata map[string]string
	HasRange bool
	Min      float64
	Max      float64
	NoData   *float64
}

type gdalInfoBand struct {
	Band        int      `json:"band"`
	ComputedMin *float64 `json:"computedMin"`
	ComputedMax *float64 `json:"computedMax"`
	Minimum     *float64 `json:"minimum"`
	Maximum     *float64 `json:"maximum"`
	NoDataValue *noDataValue `json:"noDataValue"`
}

// noDataValue accepts both forms gdalinfo uses: a JSON number, or a string
// such as "nan" for values JSON cannot represent.
type noDataValue float64

func (v *noDataValue) UnmarshalJSON(b []byte) error {
	f, err := ParseValue(strings.Trim(string(b), `"`))
	if err != nil {
		return fmt.Errorf("invalid noDataValue %s", b)
	}
	*v = noDataValue(f)
	return nil
}

type gdalInfoReport struct {
	Description       string                       `json:"description"`
	Size              []int                        `json:"size"`
	GeoTransform      []float64                    `json:"geoTransform"`
	CornerCoordinates map[string][]float64         `json:"cornerCoordinates"`
	Metadata          map[string]map[string]string `json:"metadata"`
	Bands             []gdalInfoBand               `json:"bands"`
}

// Inspect runs gdalinfo over path. With computeStats the band minimum and
// maximum are computed from the pixels.
func (t *Toolkit) Inspect(ctx context.Context, path string, computeStats bool) (*RasterInfo, error) {
	args := []string{"-json"}
	if computeStats {
		args = append(args, "-mm")
	}
	args = append(args, path)

	res, err := t.run(ctx, "inspect", "gdalinfo", args...)
	if err != nil {
		return nil, err
	}
	return ParseGDALInfo(path, res.Stdout)
}

// ParseGDALInfo decodes the output of `gdalinfo -json`.
func ParseGDALInfo(path string, out []byte) (*RasterInfo, error) {
	var report gdalInfoReport
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("error decoding gdalinfo output for %s: %v", path, err)
	}

	if len(report.Size) != 2 || report.Size[0] <= 0 || report.Size[1] <= 0 {
		return nil, fmt.Errorf("gdalinfo reported invalid size %v for %s", report.Size, path)
	}

	info := &RasterInfo{
		Path:     path,
		Width:    report.Size[0],
		Height:   report.Size[1],
		Metadata: map[string]string{},
	}

	switch {
	case len(report.GeoTransform) == 6:
		gt := report.GeoTransform
		if gt[2] != 0 || gt[4] != 0 {
			return nil, fmt.Errorf("rotated rasters are not supported: %s", path)
		}
		info.Lng0 = gt[0]
		info.Lat1 = gt[3]
		info.Lng1 = gt[0] + gt[1]*float64(info.Width)
		info.Lat0 = gt[3] + gt[5]*float64(info.Height)
	case len(report.CornerCoordinates["upperLeft"]) == 2 && len(report.CornerCoordinates["lowerRight"]) == 2:
		ul := report.CornerCoordinates["upperLeft"]
		lr := report.CornerCoordinates["lowerRight"]
		info.Lng0, info.Lat1 = ul[0], ul[1]
		info.Lng1, info.Lat0 = lr[0], lr[1]
	default:
		return nil, fmt.Errorf("gdalinfo reported no georeferencing for %s", path)
	}

	for k, v := range report.Metadata[""] {
		info.Metadata[k] = v
	}

	if len(report.Bands) > 0 {
		b := report.Bands[0]
		if b.NoDataValue != nil {
			nd := float64(*b.NoDataValue)
			info.NoData = &nd
		}
		switch {
		case b.ComputedMin != nil && b.ComputedMax != nil:
			info.HasRange = true
			info.Min, info.Max = *b.ComputedMin, *b.ComputedMax
		case b.Minimum != nil && b.Maximum != nil:
			info.HasRange = true
			info.Min, info.Max = *b.Minimum, *b.Maximum
		}
	}

	return info, nil
}
