package processor

import (
	"fmt"
	"math"
)

// lngToCol and latToRow follow the upper-left origin convention: pixel (0,0)
// is the north-west corner and rows grow southwards. Both clamp into the
// raster.
func lngToCol(lng float64, md *DatasetMetadata) int {
	return gridIndex((lng-md.Extent.Lng0)/md.DX(), md.Width)
}

func latToRow(lat float64, md *DatasetMetadata) int {
	return gridIndex((md.Extent.Lat1-lat)/md.DY(), md.Height)
}

// gridIndex rounds v and clamps it into [0, n-1] while still a float, so
// huge or infinite coordinates never reach the int conversion.
func gridIndex(v float64, n int) int {
	v = math.Round(v)
	if !(v >= 0) {
		return 0
	}
	if hi := float64(n - 1); v > hi {
		return n - 1
	}
	return int(v)
}

func outside(box GeoBox, md *DatasetMetadata) bool {
	e := md.Extent
	return box.Lng1 < e.Lng0 || box.Lng0 > e.Lng1 || box.Lat1 < e.Lat0 || box.Lat0 > e.Lat1
}

// ToPixelBox maps a geographic box onto the dataset grid, clamping it into
// the raster. Boxes that miss the dataset, or collapse after clamping, fail
// with ErrEmptyWindow.
func ToPixelBox(box GeoBox, md *DatasetMetadata) (PixelBox, error) {
	if !box.Valid() {
		return PixelBox{}, newQueryError(ErrEmptyWindow, "window", "", &box, fmt.Errorf("degenerate box"))
	}
	if outside(box, md) {
		return PixelBox{}, newQueryError(ErrEmptyWindow, "window", "", &box, fmt.Errorf("box outside dataset extent %s", md.Extent))
	}

	pb := PixelBox{
		X0: lngToCol(box.Lng0, md),
		X1: lngToCol(box.Lng1, md),
		Y0: latToRow(box.Lat0, md),
		Y1: latToRow(box.Lat1, md),
	}
	if pb.X1 < pb.X0 || pb.Y0 < pb.Y1 {
		return PixelBox{}, newQueryError(ErrEmptyWindow, "window", "", &box, fmt.Errorf("pixel box %+v", pb))
	}
	return pb, nil
}

// ToPixel is the single point form of ToPixelBox.
func ToPixel(lng, lat float64, md *DatasetMetadata) (int, int, error) {
	e := md.Extent
	if lng < e.Lng0 || lng > e.Lng1 || lat < e.Lat0 || lat > e.Lat1 || math.IsNaN(lng) || math.IsNaN(lat) {
		box := GeoBox{Lng0: lng, Lat0: lat, Lng1: lng, Lat1: lat}
		return 0, 0, newQueryError(ErrEmptyWindow, "pixel", "", &box, fmt.Errorf("point outside dataset extent %s", e))
	}
	return lngToCol(lng, md), latToRow(lat, md), nil
}

// PixelCenter returns the geographic centre of pixel (x, y).
func PixelCenter(x, y int, md *DatasetMetadata) (float64, float64) {
	lng := md.Extent.Lng0 + (float64(x)+0.5)*md.DX()
	lat := md.Extent.Lat1 - (float64(y)+0.5)*md.DY()
	return lng, lat
}

// GeoCorners converts a pixel box back to the geographic coordinates of its
// grid nodes.
func GeoCorners(pb PixelBox, md *DatasetMetadata) GeoBox {
	return GeoBox{
		Lng0: md.Extent.Lng0 + float64(pb.X0)*md.DX(),
		Lng1: md.Extent.Lng0 + float64(pb.X1)*md.DX(),
		Lat0: md.Extent.Lat1 - float64(pb.Y0)*md.DY(),
		Lat1: md.Extent.Lat1 - float64(pb.Y1)*md.DY(),
	}
}
