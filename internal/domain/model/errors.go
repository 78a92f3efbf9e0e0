package model

import "fmt"

// NoDataError means a feature could not be computed because the source had nothing usable.
type NoDataError struct {
	Reason string
	Date   string
	BBox   BoundingBox
}

func (e *NoDataError) Error() string {
	if e.Date != "" {
		return fmt.Sprintf("no data: %s (date %s, bbox %s)", e.Reason, e.Date, e.BBox)
	}
	return fmt.Sprintf("no data: %s (bbox %s)", e.Reason, e.BBox)
}

// UpstreamUnavailableError wraps a collaborator failure that survived the single retry.
type UpstreamUnavailableError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream unavailable: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream unavailable: %s: %v", e.Op, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Err
}

// ShapeMismatchError means a decoded raster does not have the expected band layout.
// Reason, when set, describes a defect other than the band count (bad size,
// undecodable payload, missing raster).
type ShapeMismatchError struct {
	Kind      RasterKind
	Date      string
	WantBands int
	GotBands  int
	Reason    string
}

func (e *ShapeMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unexpected raster for %s %s: %s", e.Kind, e.Date, e.Reason)
	}
	return fmt.Sprintf("unexpected raster shape for %s %s: want %d bands, got %d",
		e.Kind, e.Date, e.WantBands, e.GotBands)
}

// InvalidInputError rejects caller-supplied values.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
