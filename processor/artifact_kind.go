package processor

import (
	"fmt"
	"strings"
)

// ArtifactKind enumerates the formats a layer can be queried in.
type ArtifactKind int

const (
	KindContourLines ArtifactKind = iota + 1
	KindContourBands
	KindPointValue
	KindRectangularMatrix
	KindTimeSeries
	KindUV
	KindWindGLPNG
)

var kindNames = map[ArtifactKind]string{
	KindContourLines:      "contour-lines",
	KindContourBands:      "contour-bands",
	KindPointValue:        "point-value",
	KindRectangularMatrix: "rectangular-matrix",
	KindTimeSeries:        "time-series",
	KindUV:                "uv",
	KindWindGLPNG:         "windgl-png",
}

// AllKinds lists every kind in declaration order.
var AllKinds = []ArtifactKind{KindContourLines, KindContourBands, KindPointValue, KindRectangularMatrix, KindTimeSeries, KindUV, KindWindGLPNG}

func (k ArtifactKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseArtifactKind accepts the catalog name of a kind, case insensitive.
func ParseArtifactKind(name string) (ArtifactKind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, kn := range kindNames {
		if kn == n {
			return k, nil
		}
	}
	return 0, newQueryError(ErrUnsupportedOperation, "kind", "", nil, fmt.Errorf("unknown artifact kind %q", name))
}

func (k ArtifactKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ArtifactKind) UnmarshalText(b []byte) error {
	kind, err := ParseArtifactKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}
