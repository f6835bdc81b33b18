package gdalprocess

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Grid is a dense raster read from an ESRI ASCII grid. Data is row-major,
// first row northernmost.
type Grid struct {
	NCols, NRows int
	XLLCorner    float64
	YLLCorner    float64
	DX, DY       float64
	NoData       *float64
	Data         []float64
}

func (g *Grid) At(col, row int) float64 {
	return g.Data[row*g.NCols+col]
}

// IsNoData reports whether v is the grid's nodata marker. NaN cells carry no
// value whatever the header says.
func (g *Grid) IsNoData(v float64) bool {
	return math.IsNaN(v) || (g.NoData != nil && v == *g.NoData)
}

// ParseValue parses a number as printed by the GDAL utilities, which write
// NaN as "nan" or "-nan" depending on the platform.
func ParseValue(s string) (float64, error) {
	if strings.EqualFold(strings.TrimLeft(s, "+-"), "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func isValueToken(s string) bool {
	if c := s[0]; (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' {
		return true
	}
	_, err := ParseValue(s)
	return err == nil
}

// ParseAAIGrid reads the header and cells of an ESRI ASCII grid as written by
// the GDAL AAIGrid driver.
func ParseAAIGrid(r io.Reader) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	scanner.Split(bufio.ScanWords)

	g := &Grid{}
	var centered bool
	var pending string

	for scanner.Scan() {
		key := strings.ToLower(scanner.Text())
		if len(key) == 0 {
			continue
		}
		if isValueToken(key) {
			pending = scanner.Text()
			break
		}

		if !scanner.Scan() {
			return nil, fmt.Errorf("missing value for header field %q", key)
		}
		val := scanner.Text()

		var err error
		switch key {
		case "ncols":
			g.NCols, err = strconv.Atoi(val)
		case "nrows":
			g.NRows, err = strconv.Atoi(val)
		case "xllcorner":
			g.XLLCorner, err = strconv.ParseFloat(val, 64)
		case "yllcorner":
			g.YLLCorner, err = strconv.ParseFloat(val, 64)
		case "xllcenter":
			centered = true
			g.XLLCorner, err = strconv.ParseFloat(val, 64)
		case "yllcenter":
			centered = true
			g.YLLCorner, err = strconv.ParseFloat(val, 64)
		case "cellsize":
			g.DX, err = strconv.ParseFloat(val, 64)
			g.DY = g.DX
		case "dx":
			g.DX, err = strconv.ParseFloat(val, 64)
		case "dy":
			g.DY, err = strconv.ParseFloat(val, 64)
		case "nodata_value":
			var nd float64
			nd, err = ParseValue(val)
			g.NoData = &nd
		default:
			return nil, fmt.Errorf("unknown header field %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for header field %q: %v", val, key, err)
		}
	}

	if g.NCols <= 0 || g.NRows <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", g.NCols, g.NRows)
	}
	if centered {
		g.XLLCorner -= g.DX / 2
		g.YLLCorner -= g.DY / 2
	}

	n := g.NCols * g.NRows
	g.Data = make([]float64, 0, n)
	parse := func(s string) error {
		v, err := ParseValue(s)
		if err != nil {
			return fmt.Errorf("invalid cell value %q at index %d", s, len(g.Data))
		}
		g.Data = append(g.Data, v)
		return nil
	}

	if len(pending) > 0 {
		if err := parse(pending); err != nil {
			return nil, err
		}
	}
	for len(g.Data) < n && scanner.Scan() {
		if err := parse(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(g.Data) != n {
		return nil, fmt.Errorf("expected %d cells, read %d", n, len(g.Data))
	}

	return g, nil
}
