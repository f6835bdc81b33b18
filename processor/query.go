package processor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanografia/bathy/utils"
)

// ProviderCode identifies this provider in the layer catalog.
const ProviderCode = "fixed"

type layerDef struct {
	utils.Layer
	path    string
	formats map[ArtifactKind]bool
	expr    *ValueExpr

	// decimals is -1 when values are reported unrounded.
	decimals int
}

func (l *layerDef) enabled(kind ArtifactKind) bool {
	return l.formats[kind]
}

// Provider answers the catalog framework's two entry points, Preconsult and
// Resolve, for the configured raster layers.
type Provider struct {
	toolkit    Toolkit
	cache      *MetadataCache
	results    *ResultCache
	publishDir string
	origins    []utils.Origin
	layers     map[string]*layerDef
	order      []string
	log        zerolog.Logger

	// NameSeq draws the random digits of artifact names.
	NameSeq func() int64
}

func compileLayer(conf *utils.Config, l utils.Layer) (*layerDef, error) {
	def := &layerDef{Layer: l, path: conf.DataPath(&l), formats: make(map[ArtifactKind]bool), decimals: -1}
	if l.Decimals != nil {
		def.decimals = *l.Decimals
	}
	for _, f := range l.Formats {
		kind, err := ParseArtifactKind(f)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %v", l.Code, err)
		}
		def.formats[kind] = true
	}
	expr, err := ParseValueExpr(l.ValueExpression)
	if err != nil {
		return nil, fmt.Errorf("layer %s: invalid value_expression: %v", l.Code, err)
	}
	def.expr = expr
	return def, nil
}

// ValidateLayers checks the formats and value expressions of every layer.
func ValidateLayers(conf *utils.Config) error {
	for _, l := range conf.Layers {
		if _, err := compileLayer(conf, l); err != nil {
			return err
		}
	}
	return nil
}

func NewProvider(conf *utils.Config, toolkit Toolkit, results *ResultCache, log zerolog.Logger) (*Provider, error) {
	p := &Provider{
		toolkit:    toolkit,
		results:    results,
		publishDir: conf.ServiceConfig.PublishDir,
		origins:    conf.Origins,
		layers:     make(map[string]*layerDef),
		log:        log,
		NameSeq:    func() int64 { return rand.Int63n(9999999999) },
	}

	paths := make(map[string]string)
	for _, l := range conf.Layers {
		def, err := compileLayer(conf, l)
		if err != nil {
			return nil, err
		}
		p.layers[l.Code] = def
		p.order = append(p.order, l.Code)
		paths[l.Code] = def.path
	}
	p.cache = NewMetadataCache(toolkit, paths, log)

	if err := os.MkdirAll(p.publishDir, 0755); err != nil {
		return nil, fmt.Errorf("publish directory %s: %v", p.publishDir, err)
	}
	return p, nil
}

// PublishDir is where every artifact is written.
func (p *Provider) PublishDir() string {
	return p.publishDir
}

// Metadata exposes the dataset metadata cache.
func (p *Provider) Metadata(ctx context.Context, datasetID string) (*DatasetMetadata, error) {
	return p.cache.Get(ctx, datasetID)
}

func (p *Provider) layer(code string, op string) (*layerDef, error) {
	l, ok := p.layers[code]
	if !ok {
		return nil, newQueryError(ErrUnsupportedOperation, op, code, nil, fmt.Errorf("unknown layer %q", code))
	}
	return l, nil
}

// layerFor resolves the variable code of a kind that requires one.
func (p *Provider) layerFor(kind ArtifactKind, code string) (*layerDef, error) {
	l, ok := p.layers[code]
	if !ok || !l.enabled(kind) {
		return nil, newQueryError(ErrUnsupportedOperation, kind.String(), code, nil,
			fmt.Errorf("layer '%s' does not support %s", code, kind))
	}
	return l, nil
}

// newArtifactName draws a fresh random name in the publish directory.
func (p *Provider) newArtifactName(prefix, suffix string) (string, string) {
	for {
		name := fmt.Sprintf("%s%d%s", prefix, p.NameSeq(), suffix)
		path := filepath.Join(p.publishDir, name)
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return name, path
		}
	}
}

func (p *Provider) attributes(l *layerDef, produced map[string]string, md *DatasetMetadata) map[string]string {
	attrs := FilterAttributes(produced, l.Variable, GlobalNamespace)
	if len(attrs) == 0 && md != nil {
		attrs = FilterAttributes(md.Attributes, l.Variable, GlobalNamespace)
	}
	return attrs
}

// failed stamps err with the query's context and logs it.
func (p *Provider) failed(kind, dataset string, box *GeoBox, err error) error {
	var qe *QueryError
	if errors.As(err, &qe) {
		if len(qe.Dataset) == 0 {
			qe.Dataset = dataset
		}
		if qe.Box == nil {
			qe.Box = box
		}
	}

	ev := p.log.Error().Err(err).Str("kind", kind).Str("dataset", dataset)
	if box != nil {
		ev = ev.Floats64("bbox", box.Slice())
	}
	ev.Msg("query failed")
	return err
}

func toolkitError(op, dataset string, box *GeoBox, err error) error {
	return newQueryError(ErrToolkitFailure, op, dataset, box, err)
}

type PreconsultResult struct {
	TmpFileName  string            `json:"tmpFileName"`
	Min          float64           `json:"min"`
	Max          float64           `json:"max"`
	ResX         int               `json:"resX"`
	ResY         int               `json:"resY"`
	Interpolated bool              `json:"interpolated"`
	Attributes   map[string]string `json:"attributes"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// Preconsult crops and resamples the query box of a layer into a new window
// artifact and reports its value range.
func (p *Provider) Preconsult(ctx context.Context, datasetID string, box GeoBox, maxWidth, maxHeight int) (*PreconsultResult, error) {
	start := time.Now()
	res, err := p.preconsult(ctx, datasetID, box, maxWidth, maxHeight)
	if err != nil {
		return nil, p.failed("preconsult", datasetID, &box, err)
	}
	p.log.Debug().Str("dataset", datasetID).Floats64("bbox", box.Slice()).
		Str("artifact", res.TmpFileName).Dur("took", time.Since(start)).Msg("preconsult done")
	return res, nil
}

func (p *Provider) preconsult(ctx context.Context, datasetID string, box GeoBox, maxWidth, maxHeight int) (*PreconsultResult, error) {
	l, err := p.layer(datasetID, "preconsult")
	if err != nil {
		return nil, err
	}
	md, err := p.cache.Get(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	pb, err := ToPixelBox(box, md)
	if err != nil {
		return nil, err
	}

	maxWidth, maxHeight = capsOrDefault(maxWidth, maxHeight, DefaultWindowSize)
	out := Resolve(pb, maxWidth, maxHeight)

	name, path := p.newArtifactName("tmp_", ".tif")
	if err := p.toolkit.CropResample(ctx, pb.SrcWindow(), l.path, path, out.Width, out.Height); err != nil {
		return nil, toolkitError("crop_resample", datasetID, &box, err)
	}

	info, err := p.toolkit.Inspect(ctx, path, true)
	if err != nil {
		return nil, toolkitError("inspect", datasetID, &box, err)
	}
	if !info.HasRange || !finite(info.Min) || !finite(info.Max) {
		return nil, newQueryError(ErrToolkitFailure, "inspect", datasetID, &box, fmt.Errorf("%s has no valid pixels", name))
	}
	min, max, err := l.expr.ApplyRange(info.Min, info.Max)
	if err != nil {
		return nil, newQueryError(ErrToolkitFailure, "value_expression", datasetID, &box, err)
	}

	res := &PreconsultResult{
		TmpFileName:  name,
		Min:          min,
		Max:          max,
		ResX:         info.Width,
		ResY:         info.Height,
		Interpolated: out.Interpolated,
		Attributes:   p.attributes(l, info.Metadata, md),
	}
	if out.Interpolated {
		res.Warnings = append(res.Warnings, Advisory(pb, out))
	}
	return res, nil
}

// ResolveParams carries the kind specific arguments of Resolve.
type ResolveParams struct {
	Variable    string  `json:"variable"`
	TmpFileName string  `json:"tmpFileName"`
	Increment   float64 `json:"increment"`
	Lng         float64 `json:"lng"`
	Lat         float64 `json:"lat"`
	Time        string  `json:"time,omitempty"`
	Box         GeoBox  `json:"bbox"`
	MaxWidth    int     `json:"maxWidth"`
	MaxHeight   int     `json:"maxHeight"`
}

// Resolve produces the artifact of the requested kind.
func (p *Provider) Resolve(ctx context.Context, kind ArtifactKind, params ResolveParams) (interface{}, error) {
	var (
		res interface{}
		err error
		box *GeoBox
	)

	switch kind {
	case KindContourLines:
		res, err = p.contourLines(ctx, params)
	case KindContourBands:
		res, err = p.contourBands(ctx, params)
	case KindPointValue:
		res, err = p.pointValue(ctx, params)
	case KindRectangularMatrix:
		box = &params.Box
		res, err = p.rectangularMatrix(ctx, params)
	default:
		err = newQueryError(ErrUnsupportedOperation, kind.String(), params.Variable, nil,
			fmt.Errorf("format %s not supported", kind))
	}

	if err != nil {
		return nil, p.failed(kind.String(), params.Variable, box, err)
	}
	return res, nil
}
