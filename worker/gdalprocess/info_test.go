package gdalprocess

import (
	"math"
	"testing"
)

const gebcoInfo = `{
  "description":"/data/gebco_2019.nc",
  "size":[1440, 720],
  "geoTransform":[-180.0, 0.25, 0.0, 90.0, 0.0, -0.25],
  "metadata":{"":{"elevation#units":"m","NC_GLOBAL#title":"GEBCO"}},
  "bands":[{"band":1,"noDataValue":-32767,"minimum":-10880,"maximum":8613}]
}`

func TestParseGDALInfo(t *testing.T) {
	info, err := ParseGDALInfo("/data/gebco_2019.nc", []byte(gebcoInfo))
	if err != nil {
		t.Fatalf("failed to parse report: %v", err)
	}

	if info.Width != 1440 || info.Height != 720 {
		t.Errorf("unexpected size %dx%d", info.Width, info.Height)
	}
	if info.Lng0 != -180 || info.Lat1 != 90 || info.Lng1 != 180 || info.Lat0 != -90 {
		t.Errorf("unexpected extent [%v %v %v %v]", info.Lng0, info.Lat0, info.Lng1, info.Lat1)
	}
	if info.Metadata["elevation#units"] != "m" || info.Metadata["NC_GLOBAL#title"] != "GEBCO" {
		t.Errorf("unexpected metadata %v", info.Metadata)
	}
	if info.NoData == nil || *info.NoData != -32767 {
		t.Errorf("unexpected nodata %v", info.NoData)
	}
	if !info.HasRange || info.Min != -10880 || info.Max != 8613 {
		t.Errorf("unexpected range %v [%v, %v]", info.HasRange, info.Min, info.Max)
	}
}

func TestParseGDALInfoComputedRange(t *testing.T) {
	report := `{"size":[10,5],"cornerCoordinates":{"upperLeft":[0,5],"lowerRight":[10,0]},
		"bands":[{"band":1,"computedMin":-20.5,"computedMax":-1,"minimum":-99,"maximum":99}]}`
	info, err := ParseGDALInfo("tmp_1.tif", []byte(report))
	if err != nil {
		t.Fatalf("failed to parse report: %v", err)
	}
	if info.Lng0 != 0 || info.Lat0 != 0 || info.Lng1 != 10 || info.Lat1 != 5 {
		t.Errorf("unexpected extent [%v %v %v %v]", info.Lng0, info.Lat0, info.Lng1, info.Lat1)
	}
	if info.Min != -20.5 || info.Max != -1 {
		t.Errorf("expected the computed range, actual [%v, %v]", info.Min, info.Max)
	}
	if len(info.Metadata) != 0 {
		t.Errorf("unexpected metadata %v", info.Metadata)
	}
}

func TestParseGDALInfoNaNNoData(t *testing.T) {
	report := `{"size":[10,5],"geoTransform":[0,1,0,5,0,-1],"bands":[{"band":1,"noDataValue":"nan"}]}`
	info, err := ParseGDALInfo("/data/srtm.tif", []byte(report))
	if err != nil {
		t.Fatalf("failed to parse report: %v", err)
	}
	if info.NoData == nil || !math.IsNaN(*info.NoData) {
		t.Errorf("expected NaN nodata, actual %v", info.NoData)
	}

	report = `{"size":[10,5],"geoTransform":[0,1,0,5,0,-1],"bands":[{"band":1,"noDataValue":null}]}`
	info, err = ParseGDALInfo("/data/srtm.tif", []byte(report))
	if err != nil {
		t.Fatalf("failed to parse report: %v", err)
	}
	if info.NoData != nil {
		t.Errorf("expected no nodata, actual %v", *info.NoData)
	}

	report = `{"size":[10,5],"geoTransform":[0,1,0,5,0,-1],"bands":[{"band":1,"noDataValue":"none"}]}`
	if _, err := ParseGDALInfo("/data/srtm.tif", []byte(report)); err == nil {
		t.Errorf("expected an error for an invalid noDataValue")
	}
}

func TestParseGDALInfoErrors(t *testing.T) {
	for _, report := range []string{
		`not json`,
		`{"size":[0,10],"geoTransform":[0,1,0,0,0,-1]}`,
		`{"size":[10,10]}`,
		`{"size":[10,10],"geoTransform":[0,1,0.1,0,0,-1]}`,
	} {
		if _, err := ParseGDALInfo("x.tif", []byte(report)); err == nil {
			t.Errorf("expected %s to be rejected", report)
		}
	}

	info, err := ParseGDALInfo("x.tif", []byte(`{"size":[2,2],"geoTransform":[0,1,0,2,0,-1],"bands":[{"band":1}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if info.HasRange {
		t.Errorf("a band without statistics has no range")
	}
}
