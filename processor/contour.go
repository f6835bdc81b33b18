package processor

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// windowNameRe matches the window artifacts written by Preconsult. Contour
// requests may only name such files so they cannot reach outside the publish
// directory.
var windowNameRe = regexp.MustCompile(`^tmp_[0-9]+\.tif$`)

type ContourResult struct {
	FileName string `json:"fileName"`
}

type contourFunc func(ctx context.Context, src, dst string, interval float64) error

func (p *Provider) contourLines(ctx context.Context, params ResolveParams) (*ContourResult, error) {
	return p.contour(ctx, KindContourLines, params, "isolines", p.toolkit.ContourLines)
}

func (p *Provider) contourBands(ctx context.Context, params ResolveParams) (*ContourResult, error) {
	return p.contour(ctx, KindContourBands, params, "isobands", p.toolkit.ContourBands)
}

func (p *Provider) contour(ctx context.Context, kind ArtifactKind, params ResolveParams, suffix string, generate contourFunc) (*ContourResult, error) {
	op := kind.String()
	if len(params.Variable) > 0 {
		if _, err := p.layerFor(kind, params.Variable); err != nil {
			return nil, err
		}
	}
	if !(params.Increment > 0) || math.IsInf(params.Increment, 0) {
		return nil, newQueryError(ErrUnsupportedOperation, op, params.Variable, nil,
			fmt.Errorf("invalid contour increment %v", params.Increment))
	}
	if !windowNameRe.MatchString(params.TmpFileName) {
		return nil, newQueryError(ErrArtifactIO, op, params.Variable, nil,
			fmt.Errorf("invalid window artifact name %q", params.TmpFileName))
	}

	src := filepath.Join(p.publishDir, params.TmpFileName)
	if _, err := os.Stat(src); err != nil {
		return nil, newQueryError(ErrArtifactIO, op, params.Variable, nil, err)
	}

	stem := strings.TrimSuffix(params.TmpFileName, ".tif")
	name, dst := p.newArtifactName(stem+".", "."+suffix+".shp")
	if err := generate(ctx, src, dst, params.Increment); err != nil {
		return nil, toolkitError(op, params.Variable, nil, err)
	}
	if _, err := os.Stat(dst); err != nil {
		return nil, newQueryError(ErrToolkitFailure, op, params.Variable, nil,
			fmt.Errorf("%s not produced: %v", name, err))
	}

	p.log.Debug().Str("kind", op).Str("source", params.TmpFileName).
		Float64("increment", params.Increment).Str("artifact", name).Msg("contours generated")
	return &ContourResult{FileName: name}, nil
}
