package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"

	geo "github.com/nci/geometry"
)

var reCode = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-\.]*$`)

// CheckCode validates layer and variable codes taken from requests.
func CheckCode(code string) error {
	if !reCode.MatchString(code) {
		return fmt.Errorf("invalid code %q", code)
	}
	return nil
}

// ParsePointFeature extracts the coordinates of a GeoJSON Feature whose
// geometry is a Point.
func ParsePointFeature(raw []byte) (float64, float64, error) {
	var feat geo.Feature
	if err := json.Unmarshal(raw, &feat); err != nil {
		return 0, 0, fmt.Errorf("Problem unmarshalling feature: %v", err)
	}

	switch geom := feat.Geometry.(type) {
	case *geo.Point:
		geomJSON, err := json.Marshal(geom)
		if err != nil {
			return 0, 0, fmt.Errorf("Problem marshaling GeoJSON geometry: %v", err)
		}
		var pt struct {
			Coordinates []float64 `json:"coordinates"`
		}
		if err := json.Unmarshal(geomJSON, &pt); err != nil {
			return 0, 0, fmt.Errorf("Problem decoding point coordinates: %v", err)
		}
		if len(pt.Coordinates) < 2 {
			return 0, 0, fmt.Errorf("point has %d coordinates", len(pt.Coordinates))
		}
		lng, lat := pt.Coordinates[0], pt.Coordinates[1]
		if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
			return 0, 0, fmt.Errorf("invalid point coordinates")
		}
		return lng, lat, nil
	default:
		return 0, 0, fmt.Errorf("geometry type %T is not a Point", feat.Geometry)
	}
}
