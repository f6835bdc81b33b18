package processor

import (
	"context"
	"fmt"
)

// MatrixResult is a dense value grid over the query box. Rows run from north
// to south; nodata cells are null.
type MatrixResult struct {
	Lng0         float64           `json:"lng0"`
	Lat0         float64           `json:"lat0"`
	Lng1         float64           `json:"lng1"`
	Lat1         float64           `json:"lat1"`
	NCols        int               `json:"ncols"`
	NRows        int               `json:"nrows"`
	DX           float64           `json:"dx"`
	DY           float64           `json:"dy"`
	Rows         [][]*float64      `json:"rows"`
	Min          *float64          `json:"min"`
	Max          *float64          `json:"max"`
	Unit         string            `json:"unit,omitempty"`
	Interpolated bool              `json:"interpolated"`
	Attributes   map[string]string `json:"attributes"`
	Warnings     []string          `json:"warnings,omitempty"`
}

func (p *Provider) rectangularMatrix(ctx context.Context, params ResolveParams) (*MatrixResult, error) {
	l, err := p.layerFor(KindRectangularMatrix, params.Variable)
	if err != nil {
		return nil, err
	}
	box := params.Box
	md, err := p.cache.Get(ctx, l.Code)
	if err != nil {
		return nil, err
	}
	pb, err := ToPixelBox(box, md)
	if err != nil {
		return nil, err
	}

	maxWidth, maxHeight := capsOrDefault(params.MaxWidth, params.MaxHeight, DefaultMatrixSize)
	out := Resolve(pb, maxWidth, maxHeight)

	key := CacheKey(KindRectangularMatrix, l.Code, box.Lng0, box.Lat0, box.Lng1, box.Lat1,
		float64(out.Width), float64(out.Height))
	res := &MatrixResult{}
	if p.results.Load(key, res) {
		return res, nil
	}

	res, err = p.extractMatrix(ctx, l, md, box, pb, out)
	if err != nil {
		return nil, err
	}
	p.results.Store(key, res)
	return res, nil
}

func (p *Provider) extractMatrix(ctx context.Context, l *layerDef, md *DatasetMetadata, box GeoBox, pb PixelBox, out ResolvedOutput) (*MatrixResult, error) {
	_, scratch := p.newArtifactName("tmp_", ".asc")
	grid, err := p.toolkit.ExtractMatrix(ctx, pb.SrcWindow(), l.path, scratch, out.Width, out.Height)
	if err != nil {
		return nil, toolkitError("extract_matrix", l.Code, &box, err)
	}
	if grid.NCols <= 0 || grid.NRows <= 0 || len(grid.Data) != grid.NCols*grid.NRows {
		return nil, newQueryError(ErrToolkitFailure, "extract_matrix", l.Code, &box,
			fmt.Errorf("unusable %dx%d grid with %d cells", grid.NCols, grid.NRows, len(grid.Data)))
	}

	res := &MatrixResult{
		Lng0:         box.Lng0,
		Lat0:         box.Lat0,
		Lng1:         box.Lng1,
		Lat1:         box.Lat1,
		NCols:        grid.NCols,
		NRows:        grid.NRows,
		DX:           (box.Lng1 - box.Lng0) / float64(grid.NCols),
		DY:           (box.Lat1 - box.Lat0) / float64(grid.NRows),
		Rows:         make([][]*float64, grid.NRows),
		Unit:         l.Unit,
		Interpolated: out.Interpolated,
		Attributes:   p.attributes(l, nil, md),
	}

	for row := 0; row < grid.NRows; row++ {
		cells := make([]*float64, grid.NCols)
		for col := 0; col < grid.NCols; col++ {
			raw := grid.At(col, row)
			if grid.IsNoData(raw) || isNoData(raw, md.NoData) {
				continue
			}
			v, err := l.expr.Apply(raw)
			if err != nil {
				return nil, newQueryError(ErrToolkitFailure, "value_expression", l.Code, &box, err)
			}
			if !finite(v) {
				continue
			}
			v = roundTo(v, l.decimals)
			cells[col] = &v
			if res.Min == nil || v < *res.Min {
				res.Min = &v
			}
			if res.Max == nil || v > *res.Max {
				res.Max = &v
			}
		}
		res.Rows[row] = cells
	}

	if out.Interpolated {
		res.Warnings = append(res.Warnings, Advisory(pb, out))
	}
	return res, nil
}
