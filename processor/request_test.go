package processor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/oceanografia/bathy/metrics"
)

type recordLogger struct {
	mu    sync.Mutex
	infos []*metrics.QueryInfo
}

func (l *recordLogger) Log(info *metrics.QueryInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, info)
}

func TestDecodePreconsultRequest(t *testing.T) {
	req, err := DecodePreconsultRequest(strings.NewReader(`{"dataset":"BATIMETRIA_2019","bbox":{"lng0":0,"lat0":0,"lng1":5,"lat1":2.5},"maxWidth":100}`))
	if err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}
	if req.Dataset != testDataset || req.Box.Lat1 != 2.5 || req.MaxWidth != 100 || req.MaxHeight != 0 {
		t.Errorf("unexpected request: %+v", req)
	}

	for _, body := range []string{
		`{"dataset":"../etc","bbox":{}}`,
		`{"dataset":"BATIMETRIA_2019","box":{}}`,
		`{"dataset":`,
	} {
		if _, err := DecodePreconsultRequest(strings.NewReader(body)); err == nil {
			t.Errorf("expected %s to be rejected", body)
		}
	}
}

func TestDecodeResolveRequest(t *testing.T) {
	body := `{"kind":"point-value","variable":"BATIMETRIA_2019","lng":9,"lat":9,
		"feature":{"type":"Feature","geometry":{"type":"Point","coordinates":[1.5,-2.5]},"properties":{}}}`
	req, err := DecodeResolveRequest(strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}
	if req.Kind != KindPointValue || req.Variable != testDataset {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.Lng != 1.5 || req.Lat != -2.5 {
		t.Errorf("expected the feature to override the coordinates, actual (%v, %v)", req.Lng, req.Lat)
	}

	if _, err := DecodeResolveRequest(strings.NewReader(`{"kind":"heatmap"}`)); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("expected UnsupportedOperation for an unknown kind, actual %v", err)
	}
	if _, err := DecodeResolveRequest(strings.NewReader(`{"kind":"point-value","variable":"a b"}`)); err == nil {
		t.Errorf("expected an invalid variable to be rejected")
	}
}

func TestRunPreconsultLogsQuery(t *testing.T) {
	p := newTestProvider(t, newFakeToolkit())
	logger := &recordLogger{}

	req := &PreconsultRequest{Dataset: testDataset, Box: GeoBox{Lng0: 0, Lat0: 0, Lng1: 5, Lat1: 2.5}}
	if _, err := p.RunPreconsult(context.Background(), req, metrics.NewQueryCollector(logger, "http")); err != nil {
		t.Fatalf("preconsult failed: %v", err)
	}

	req.Box = GeoBox{Lng0: 20, Lat0: 0, Lng1: 30, Lat1: 1}
	if _, err := p.RunPreconsult(context.Background(), req, metrics.NewQueryCollector(logger, "http")); err == nil {
		t.Fatalf("expected an empty window")
	}

	if len(logger.infos) != 2 {
		t.Fatalf("expected 2 query records, actual %d", len(logger.infos))
	}
	ok, failed := logger.infos[0], logger.infos[1]
	if ok.Kind != "preconsult" || ok.Status != "ok" || ok.OutputWidth != 200 || !ok.Interpolated {
		t.Errorf("unexpected record: %+v", ok)
	}
	if failed.Status != "error" || !strings.Contains(failed.Error, "empty window") || len(failed.BBox) != 4 {
		t.Errorf("unexpected record: %+v", failed)
	}
}

func TestRunResolveLogsQuery(t *testing.T) {
	p := newTestProvider(t, newFakeToolkit())
	logger := &recordLogger{}

	req := &ResolveRequest{Kind: KindUV, ResolveParams: ResolveParams{Variable: testDataset}}
	if _, err := p.RunResolve(context.Background(), req, metrics.NewQueryCollector(logger, "grpc")); !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("expected UnsupportedOperation, actual %v", err)
	}
	if len(logger.infos) != 1 || logger.infos[0].Kind != "uv" || logger.infos[0].Transport != "grpc" {
		t.Errorf("unexpected records: %+v", logger.infos)
	}
}
