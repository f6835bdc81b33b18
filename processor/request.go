package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/oceanografia/bathy/metrics"
	"github.com/oceanografia/bathy/utils"
)

const maxRequestSize = 1 << 20

// PreconsultRequest is the body of a preconsult call.
type PreconsultRequest struct {
	Dataset   string `json:"dataset"`
	Box       GeoBox `json:"bbox"`
	MaxWidth  int    `json:"maxWidth"`
	MaxHeight int    `json:"maxHeight"`
}

// ResolveRequest is the body of a resolve call. Kind may also come from the
// transport, e.g. the URL path. A GeoJSON point Feature overrides Lng/Lat.
type ResolveRequest struct {
	Kind ArtifactKind `json:"kind"`
	ResolveParams
	Feature json.RawMessage `json:"feature,omitempty"`
}

func decodeJSON(r io.Reader, out interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r, maxRequestSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func DecodePreconsultRequest(r io.Reader) (*PreconsultRequest, error) {
	req := &PreconsultRequest{}
	if err := decodeJSON(r, req); err != nil {
		return nil, err
	}
	if err := utils.CheckCode(req.Dataset); err != nil {
		return nil, err
	}
	return req, nil
}

func DecodeResolveRequest(r io.Reader) (*ResolveRequest, error) {
	req := &ResolveRequest{}
	if err := decodeJSON(r, req); err != nil {
		return nil, err
	}
	if err := req.normalise(); err != nil {
		return nil, err
	}
	return req, nil
}

func (req *ResolveRequest) normalise() error {
	if len(req.Variable) > 0 {
		if err := utils.CheckCode(req.Variable); err != nil {
			return err
		}
	}
	if len(req.Feature) > 0 {
		lng, lat, err := utils.ParsePointFeature(req.Feature)
		if err != nil {
			return err
		}
		req.Lng, req.Lat = lng, lat
		req.Feature = nil
	}
	return nil
}

// RunPreconsult serves req and records it in the query log.
func (p *Provider) RunPreconsult(ctx context.Context, req *PreconsultRequest, mc *metrics.QueryCollector) (*PreconsultResult, error) {
	mc.Info.Kind = "preconsult"
	mc.Info.Dataset = req.Dataset
	mc.Info.BBox = req.Box.Slice()

	res, err := p.Preconsult(ctx, req.Dataset, req.Box, req.MaxWidth, req.MaxHeight)
	if err == nil {
		mc.Info.OutputWidth = res.ResX
		mc.Info.OutputHeight = res.ResY
		mc.Info.Interpolated = res.Interpolated
	}
	mc.Finish(err)
	return res, err
}

// RunResolve serves req and records it in the query log.
func (p *Provider) RunResolve(ctx context.Context, req *ResolveRequest, mc *metrics.QueryCollector) (interface{}, error) {
	mc.Info.Kind = req.Kind.String()
	mc.Info.Dataset = req.Variable
	switch req.Kind {
	case KindRectangularMatrix:
		mc.Info.BBox = req.Box.Slice()
	case KindPointValue:
		mc.Info.BBox = []float64{req.Lng, req.Lat, req.Lng, req.Lat}
	}

	res, err := p.Resolve(ctx, req.Kind, req.ResolveParams)
	if m, ok := res.(*MatrixResult); ok && err == nil {
		mc.Info.OutputWidth = m.NCols
		mc.Info.OutputHeight = m.NRows
		mc.Info.Interpolated = m.Interpolated
	}
	mc.Finish(err)
	return res, err
}
