package processor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDatasetUnavailable   = errors.New("dataset unavailable")
	ErrEmptyWindow          = errors.New("empty window")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrToolkitFailure       = errors.New("raster toolkit failure")
	ErrArtifactIO           = errors.New("artifact io failure")
)

// QueryError ties a failure to the query that produced it. It matches its
// Kind with errors.Is.
type QueryError struct {
	Kind    error
	Op      string
	Dataset string
	Box     *GeoBox
	Err     error
}

func (e *QueryError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if len(e.Dataset) > 0 {
		fmt.Fprintf(&b, " %s", e.Dataset)
	}
	if e.Box != nil {
		fmt.Fprintf(&b, " %s", e.Box)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == e.Kind }

func newQueryError(kind error, op, dataset string, box *GeoBox, err error) *QueryError {
	return &QueryError{Kind: kind, Op: op, Dataset: dataset, Box: box, Err: err}
}

// ErrorKind returns the taxonomy sentinel of err, or nil when err is not a
// query failure.
func ErrorKind(err error) error {
	for _, kind := range []error{ErrDatasetUnavailable, ErrEmptyWindow, ErrUnsupportedOperation, ErrToolkitFailure, ErrArtifactIO} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
