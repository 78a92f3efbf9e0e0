package model

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for acquisition days and time windows.
const DateLayout = "2006-01-02"

// AreaOfInterest is a circular analysis area around a WGS84 point.
type AreaOfInterest struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	RadiusM float64 `json:"radius_m"`
}

func (a AreaOfInterest) Validate() error {
	if !(a.Lat >= -90 && a.Lat <= 90) {
		return &InvalidInputError{Field: "lat", Reason: fmt.Sprintf("%v out of range [-90, 90]", a.Lat)}
	}
	if !(a.Lon >= -180 && a.Lon <= 180) {
		return &InvalidInputError{Field: "lon", Reason: fmt.Sprintf("%v out of range [-180, 180]", a.Lon)}
	}
	if !(a.RadiusM > 0) {
		return &InvalidInputError{Field: "radius_m", Reason: "must be positive"}
	}
	return nil
}

// Center returns the center point of the area.
func (a AreaOfInterest) Center() Point {
	return Point{Lat: a.Lat, Lon: a.Lon}
}

// TimeWindow is an inclusive range of calendar dates.
type TimeWindow struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// NewTimeWindow parses two YYYY-MM-DD dates into a validated window.
func NewTimeWindow(start, end string) (TimeWindow, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return TimeWindow{}, &InvalidInputError{Field: "start_date", Reason: "use YYYY-MM-DD"}
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return TimeWindow{}, &InvalidInputError{Field: "end_date", Reason: "use YYYY-MM-DD"}
	}
	w := TimeWindow{Start: s, End: e}
	return w, w.Validate()
}

func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return &InvalidInputError{Field: "time_range", Reason: "start and end dates are required"}
	}
	if w.End.Before(w.Start) {
		return &InvalidInputError{Field: "time_range", Reason: "end_date must not be before start_date"}
	}
	return nil
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox is an EPSG:4326 rectangle.
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// WKT renders the box as a closed polygon in lon/lat order.
func (b BoundingBox) WKT() string {
	return fmt.Sprintf("POLYGON((%f %f,%f %f,%f %f,%f %f,%f %f))",
		b.MinLon, b.MinLat,
		b.MaxLon, b.MinLat,
		b.MaxLon, b.MaxLat,
		b.MinLon, b.MaxLat,
		b.MinLon, b.MinLat)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// SceneCloudMetric is the cloud reduction of one acquisition day.
type SceneCloudMetric struct {
	Date          string  `json:"date"`
	CloudFraction float64 `json:"cloud_fraction"`
	ValidRatio    float64 `json:"valid_ratio"`
}

// CloudinessStats aggregates the kept scenes of one area and time window.
// Exemplars always reference entries of Scenes.
type CloudinessStats struct {
	ScenesUsed     int                `json:"scenes_used"`
	Scenes         []SceneCloudMetric `json:"scenes"`
	MeanCloudiness float64            `json:"mean_cloudiness"`
	ClearRatio     float64            `json:"clear_ratio"` // доля сцен с cloud fraction < 0.2
	LeastCloudy    SceneCloudMetric   `json:"least_cloudy"`
	MostCloudy     SceneCloudMetric   `json:"most_cloudy"`
	NearMean       SceneCloudMetric   `json:"near_mean"`
}

// FeatureScore is one normalized, weighted dimension of a site score.
type FeatureScore struct {
	Name         string  `json:"name"`
	RawValue     float64 `json:"raw_value"`
	Normalized   float64 `json:"normalized"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Weights are the per-feature multipliers. They are not required to sum to one.
type Weights struct {
	Cloud     float64 `json:"cloud" koanf:"cloud"`
	Elevation float64 `json:"elevation" koanf:"elevation"`
	Road      float64 `json:"road" koanf:"road"`
	Grid      float64 `json:"grid" koanf:"grid"`
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"cloud":     w.Cloud,
		"elevation": w.Elevation,
		"road":      w.Road,
		"grid":      w.Grid,
	} {
		if v < 0 {
			return &InvalidInputError{Field: "weights." + name, Reason: "must be non-negative"}
		}
	}
	return nil
}

// SiteScoreResult is the final weighted score with the features it was built from.
type SiteScoreResult struct {
	FinalScore float64      `json:"final_score"`
	Cloud      FeatureScore `json:"cloud"`
	Elevation  FeatureScore `json:"elevation"`
	RoadAccess FeatureScore `json:"road_access"`
	GridAccess FeatureScore `json:"grid_access"`
	ComputedAt time.Time    `json:"computed_at"`
}

// NewSiteScoreResult sums the contributions of the four features.
func NewSiteScoreResult(cloud, elevation, road, grid FeatureScore, at time.Time) SiteScoreResult {
	return SiteScoreResult{
		FinalScore: cloud.Contribution + elevation.Contribution + road.Contribution + grid.Contribution,
		Cloud:      cloud,
		Elevation:  elevation,
		RoadAccess: road,
		GridAccess: grid,
		ComputedAt: at,
	}
}

// Features returns the four feature scores in a fixed order.
func (r SiteScoreResult) Features() []FeatureScore {
	return []FeatureScore{r.Cloud, r.Elevation, r.RoadAccess, r.GridAccess}
}

// ScoreRecord is what gets persisted for a computed analysis.
type ScoreRecord struct {
	LocationName string
	Area         AreaOfInterest
	Window       TimeWindow
	Result       SiteScoreResult
}
