package processor

import (
	"fmt"
	"time"
)

// GeoBox is a longitude/latitude rectangle; Lat1 is the northern edge.
type GeoBox struct {
	Lng0 float64 `json:"lng0"`
	Lat0 float64 `json:"lat0"`
	Lng1 float64 `json:"lng1"`
	Lat1 float64 `json:"lat1"`
}

func (b GeoBox) Valid() bool {
	return b.Lng1 > b.Lng0 && b.Lat1 > b.Lat0
}

func (b GeoBox) Slice() []float64 {
	return []float64{b.Lng0, b.Lat0, b.Lng1, b.Lat1}
}

func (b GeoBox) String() string {
	return fmt.Sprintf("[%g,%g,%g,%g]", b.Lng0, b.Lat0, b.Lng1, b.Lat1)
}

// DatasetMetadata describes a source raster. It never changes once built.
type DatasetMetadata struct {
	Extent     GeoBox
	Width      int
	Height     int
	NoData     *float64
	Attributes map[string]string
}

func (m *DatasetMetadata) DX() float64 {
	return (m.Extent.Lng1 - m.Extent.Lng0) / float64(m.Width)
}

func (m *DatasetMetadata) DY() float64 {
	return (m.Extent.Lat1 - m.Extent.Lat0) / float64(m.Height)
}

// PixelBox is a window of a dataset grid. Row indices grow southwards so Y0,
// the southern row, is never smaller than Y1, the northern row.
type PixelBox struct {
	X0, Y0 int
	X1, Y1 int
}

func (p PixelBox) RawWidth() int {
	return p.X1 - p.X0 + 1
}

func (p PixelBox) RawHeight() int {
	return p.Y0 - p.Y1 + 1
}

// ResolvedOutput is the pixel size an artifact is delivered at.
type ResolvedOutput struct {
	Width        int
	Height       int
	Interpolated bool
}

// Artifact is a file in the publish directory.
type Artifact struct {
	FileName string
	Created  time.Time
}
