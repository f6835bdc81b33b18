package processor

import (
	"bytes"
	"strings"
	"testing"
)

func TestCatalog(t *testing.T) {
	p := newTestProvider(t, newFakeToolkit())
	cat := p.Catalog()

	if cat.Provider != ProviderCode || len(cat.Origins) != 1 {
		t.Errorf("unexpected catalog header: %+v", cat)
	}
	if len(cat.Layers) != 2 || cat.Layers[0].Code != testDataset || cat.Layers[1].Code != "DEPTH" {
		t.Fatalf("expected layers in configuration order, actual %+v", cat.Layers)
	}

	l := cat.Layers[0]
	if len(l.Formats) != len(AllKinds) {
		t.Errorf("expected every kind to be listed, actual %v", l.Formats)
	}
	for _, kind := range []string{"contour-lines", "contour-bands", "point-value", "rectangular-matrix"} {
		if !l.Formats[kind] {
			t.Errorf("expected %s to be enabled", kind)
		}
	}
	if l.Formats["time-series"] || l.Formats["uv"] {
		t.Errorf("unexpected enabled kinds: %v", l.Formats)
	}

	depth := cat.Layers[1]
	if depth.Decimals == nil || *depth.Decimals != 1 || depth.Formats["contour-lines"] {
		t.Errorf("unexpected DEPTH layer: %+v", depth)
	}
}

func TestRenderCatalogHTML(t *testing.T) {
	p := newTestProvider(t, newFakeToolkit())

	var buf bytes.Buffer
	if err := RenderCatalogHTML(&buf, p.Catalog()); err != nil {
		t.Fatalf("failed to render catalog: %v", err)
	}

	page := buf.String()
	for _, want := range []string{"<td>" + testDataset + "</td>", "Bathymetry 2019", "GEBCO", "rectangular-matrix"} {
		if !strings.Contains(page, want) {
			t.Errorf("catalog page does not contain %q", want)
		}
	}
}
