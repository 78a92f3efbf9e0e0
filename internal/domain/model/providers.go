package model

import (
	"context"
	"time"
)

// RasterKind selects which product a raster request returns.
type RasterKind int

const (
	// RasterCloudMask is a two-band 8-bit raster: validity mask, cloud flag.
	RasterCloudMask RasterKind = iota
	// RasterElevation is a single-band raster of heights in metres.
	RasterElevation
)

func (k RasterKind) String() string {
	switch k {
	case RasterCloudMask:
		return "cloud-mask"
	case RasterElevation:
		return "elevation"
	default:
		return "unknown"
	}
}

// Bands returns the number of bands a raster of this kind carries.
func (k RasterKind) Bands() int {
	if k == RasterCloudMask {
		return 2
	}
	return 1
}

// CatalogEntry is one product found by a catalog search.
type CatalogEntry struct {
	ProductID       string `json:"product_id"`
	AcquisitionDate string `json:"acquisition_date"` // ISO 8601, e.g. 2023-01-05T10:12:34.000Z
}

// RasterRequest describes one raster fetch. Date is ignored for elevation.
type RasterRequest struct {
	BBox   BoundingBox
	Kind   RasterKind
	Date   time.Time
	Width  int
	Height int
}

// Raster is a decoded observation. Bands are stored band-major, row-major inside a band.
type Raster struct {
	Kind   RasterKind
	Date   string
	Width  int
	Height int
	Bands  [][]float64
}

// At returns the value of band b at column x, row y.
func (r *Raster) At(b, x, y int) float64 {
	return r.Bands[b][y*r.Width+x]
}

// RasterProvider is the remote-sensing data source.
type RasterProvider interface {
	// SearchCatalog returns at most maxRecords products intersecting bbox within window.
	// Order is provider-defined and treated as canonical.
	SearchCatalog(ctx context.Context, bbox BoundingBox, window TimeWindow, maxRecords int) ([]CatalogEntry, error)

	// FetchRaster returns a decoded raster for the request.
	FetchRaster(ctx context.Context, req RasterRequest) (*Raster, error)
}

// InfrastructureClass selects what a proximity query measures the distance to.
type InfrastructureClass string

const (
	InfrastructureRoad InfrastructureClass = "road"
	InfrastructureGrid InfrastructureClass = "grid"
)

// ProximityProvider answers distance-to-nearest-infrastructure queries.
type ProximityProvider interface {
	// NearestDistance returns the distance in metres from p to the closest feature of class.
	NearestDistance(ctx context.Context, p Point, class InfrastructureClass) (float64, error)
}

// ScoreRecorder persists computed site scores.
type ScoreRecorder interface {
	SaveScore(ctx context.Context, rec ScoreRecord) error
}
