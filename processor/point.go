package processor

import (
	"context"
	"math"
)

// PointResult is the value of the pixel containing the requested point. Lng
// and Lat are the centre of that pixel, not the requested coordinate.
type PointResult struct {
	Lng      float64           `json:"lng"`
	Lat      float64           `json:"lat"`
	X        int               `json:"x"`
	Y        int               `json:"y"`
	Time     string            `json:"time,omitempty"`
	Value    *float64          `json:"value"`
	Unit     string            `json:"unit,omitempty"`
	Metadata map[string]string `json:"metadata"`
}

// roundTo rounds v to the layer's configured number of decimals. Negative
// decimals leave v untouched.
func roundTo(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// isNoData reports whether raw carries no value: the dataset marker or NaN.
func isNoData(raw float64, nodata *float64) bool {
	return math.IsNaN(raw) || (nodata != nil && raw == *nodata)
}

// finite is false for results JSON cannot carry.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (p *Provider) pointValue(ctx context.Context, params ResolveParams) (*PointResult, error) {
	l, err := p.layerFor(KindPointValue, params.Variable)
	if err != nil {
		return nil, err
	}
	md, err := p.cache.Get(ctx, l.Code)
	if err != nil {
		return nil, err
	}
	x, y, err := ToPixel(params.Lng, params.Lat, md)
	if err != nil {
		return nil, err
	}

	key := CacheKey(KindPointValue, l.Code, float64(x), float64(y))
	res := &PointResult{}
	if !p.results.Load(key, res) {
		res, err = p.samplePoint(ctx, l, md, x, y)
		if err != nil {
			return nil, err
		}
		p.results.Store(key, res)
	}
	res.Time = params.Time
	return res, nil
}

func (p *Provider) samplePoint(ctx context.Context, l *layerDef, md *DatasetMetadata, x, y int) (*PointResult, error) {
	lng, lat := PixelCenter(x, y, md)
	box := GeoBox{Lng0: lng, Lat0: lat, Lng1: lng, Lat1: lat}

	raw, err := p.toolkit.SampleAtPixel(ctx, x, y, l.path)
	if err != nil {
		return nil, toolkitError("sample_at_pixel", l.Code, &box, err)
	}

	res := &PointResult{
		Lng:      lng,
		Lat:      lat,
		X:        x,
		Y:        y,
		Unit:     l.Unit,
		Metadata: p.attributes(l, nil, md),
	}
	if isNoData(raw, md.NoData) {
		return res, nil
	}
	v, err := l.expr.Apply(raw)
	if err != nil {
		return nil, newQueryError(ErrToolkitFailure, "value_expression", l.Code, &box, err)
	}
	if !finite(v) {
		return res, nil
	}
	v = roundTo(v, l.decimals)
	res.Value = &v
	return res, nil
}
