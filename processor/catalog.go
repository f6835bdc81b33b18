package processor

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/edisonguo/jet"

	"github.com/oceanografia/bathy/utils"
)

// CatalogLayer is a layer as registered with the catalog framework. Formats
// lists every artifact kind, enabled or not.
type CatalogLayer struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Origin   string          `json:"origin"`
	Unit     string          `json:"unit,omitempty"`
	Decimals *int            `json:"decimals,omitempty"`
	Icon     string          `json:"icon,omitempty"`
	Groups   []string        `json:"groups,omitempty"`
	Temporal bool            `json:"temporal"`
	Formats  map[string]bool `json:"formats"`
}

type Catalog struct {
	Provider string         `json:"provider"`
	Origins  []utils.Origin `json:"origins"`
	Layers   []CatalogLayer `json:"layers"`
}

// Catalog describes the origins and layers served by p, in configuration
// order.
func (p *Provider) Catalog() *Catalog {
	cat := &Catalog{Provider: ProviderCode, Origins: p.origins}
	for _, code := range p.order {
		l := p.layers[code]
		cl := CatalogLayer{
			Code:     l.Code,
			Name:     l.Name,
			Origin:   l.Origin,
			Unit:     l.Unit,
			Decimals: l.Decimals,
			Icon:     l.Icon,
			Groups:   l.Groups,
			Formats:  make(map[string]bool, len(AllKinds)),
		}
		for _, kind := range AllKinds {
			cl.Formats[kind.String()] = l.enabled(kind)
		}
		cat.Layers = append(cat.Layers, cl)
	}
	return cat
}

const catalogTemplate = `<!DOCTYPE html>
<html>
<head><title>{{ .Provider }} layers</title></head>
<body>
<h1>Origins</h1>
<ul>
{{ range i, o := .Origins }}<li><a href="{{ o.URL }}">{{ o.Name }}</a> ({{ o.Code }})</li>
{{ end }}</ul>
<h1>Layers</h1>
<table>
<tr><th>Code</th><th>Name</th><th>Origin</th><th>Unit</th><th>Formats</th></tr>
{{ range i, l := .Layers }}<tr><td>{{ l.Code }}</td><td>{{ l.Name }}</td><td>{{ l.Origin }}</td><td>{{ l.Unit }}</td><td>{{ range j, k := kinds }}{{ if l.Formats[k] }}{{ k }} {{ end }}{{ end }}</td></tr>
{{ end }}</table>
</body>
</html>
`

var (
	catalogView     *jet.Template
	catalogViewErr  error
	catalogViewOnce sync.Once
)

func catalogViewTemplate() (*jet.Template, error) {
	catalogViewOnce.Do(func() {
		kinds := make([]string, len(AllKinds))
		for i, k := range AllKinds {
			kinds[i] = k.String()
		}
		view := jet.NewHTMLSet()
		view.AddGlobal("kinds", kinds)
		catalogView, catalogViewErr = view.LoadTemplate("catalog.html", catalogTemplate)
	})
	return catalogView, catalogViewErr
}

// RenderCatalogHTML writes the human readable catalog page.
func RenderCatalogHTML(w io.Writer, cat *Catalog) error {
	tmpl, err := catalogViewTemplate()
	if err != nil {
		return fmt.Errorf("catalog template: %v", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, make(jet.VarMap), cat); err != nil {
		return fmt.Errorf("catalog template: %v", err)
	}
	_, err = buf.WriteTo(w)
	return err
}
