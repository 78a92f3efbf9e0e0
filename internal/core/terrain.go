package core

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
	"github.com/Solar-crew/solar-detector/internal/geo"
	"github.com/Solar-crew/solar-detector/internal/logging"
)

// NoDataElevation is the sentinel at or below which an elevation is undefined.
const NoDataElevation = -10000.0

type SlopeOptions struct {
	Resolution int `koanf:"resolution" json:"resolution"`
}

func DefaultSlopeOptions() SlopeOptions {
	return SlopeOptions{Resolution: 64}
}

func (o SlopeOptions) Validate() error {
	if o.Resolution < 2 {
		return &model.InvalidInputError{Field: "resolution", Reason: "must be at least 2 pixels"}
	}
	return nil
}

// SlopeAnalyzer derives the mean terrain slope of an area from an elevation raster.
type SlopeAnalyzer struct {
	provider model.RasterProvider
}

func NewSlopeAnalyzer(provider model.RasterProvider) *SlopeAnalyzer {
	return &SlopeAnalyzer{provider: provider}
}

// MeanSlope returns the mean slope of the area in degrees.
func (a *SlopeAnalyzer) MeanSlope(ctx context.Context, aoi model.AreaOfInterest, opts SlopeOptions) (float64, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}
	bbox, err := geo.AreaBoundingBox(aoi)
	if err != nil {
		return 0, err
	}

	raster, err := a.provider.FetchRaster(ctx, model.RasterRequest{
		BBox:   bbox,
		Kind:   model.RasterElevation,
		Width:  opts.Resolution,
		Height: opts.Resolution,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch elevation: %w", err)
	}

	grid, err := elevationGrid(raster)
	if err != nil {
		return 0, err
	}
	if grid == nil {
		return 0, &model.NoDataError{Reason: "elevation raster is entirely undefined", BBox: bbox}
	}

	pixel := geo.PixelSizeMeters(aoi.RadiusM, opts.Resolution)
	slope, err := MeanSlopeDegrees(grid, pixel, pixel)
	if err != nil {
		var noData *model.NoDataError
		if errors.As(err, &noData) {
			noData.BBox = bbox
		}
		return 0, err
	}

	logging.Ctx(ctx).Debug().
		Str("component", "terrain").
		Float64("pixel_m", pixel).
		Float64("mean_slope_deg", slope).
		Msg("slope computed")
	return slope, nil
}

// elevationGrid converts a single-band raster into a rows×cols matrix with
// NaN for undefined cells. It returns nil when every cell is undefined.
func elevationGrid(r *model.Raster) (*mat.Dense, error) {
	want := model.RasterElevation.Bands()
	if r == nil {
		return nil, &model.ShapeMismatchError{
			Kind: model.RasterElevation, WantBands: want, Reason: "provider returned no raster",
		}
	}
	if len(r.Bands) != want || r.Width <= 0 || r.Height <= 0 || len(r.Bands[0]) != r.Width*r.Height {
		return nil, &model.ShapeMismatchError{
			Kind: model.RasterElevation, Date: r.Date, WantBands: want, GotBands: len(r.Bands),
		}
	}

	data := make([]float64, len(r.Bands[0]))
	defined := 0
	for i, v := range r.Bands[0] {
		if v <= NoDataElevation || math.IsNaN(v) {
			data[i] = math.NaN()
			continue
		}
		data[i] = v
		defined++
	}
	if defined == 0 {
		return nil, nil
	}
	return mat.NewDense(r.Height, r.Width, data), nil
}

// MeanSlopeDegrees computes the mean of atan(|∇h|) over the grid, in degrees.
// dx is the column step and dy the row step in metres. NaN cells are undefined:
// they get no slope themselves, and neighbours fall back to a one-sided
// difference on the defined side.
func MeanSlopeDegrees(grid *mat.Dense, dx, dy float64) (float64, error) {
	rows, cols := grid.Dims()
	slopes := make([]float64, 0, rows*cols)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if math.IsNaN(grid.At(y, x)) {
				continue
			}
			gx, okX := derivative(func(i int) float64 { return grid.At(y, i) }, x, cols, dx)
			gy, okY := derivative(func(i int) float64 { return grid.At(i, x) }, y, rows, dy)
			if !okX || !okY {
				continue
			}
			magnitude := math.Hypot(gx, gy)
			slopes = append(slopes, math.Atan(magnitude)*180/math.Pi)
		}
	}

	if len(slopes) == 0 {
		return 0, &model.NoDataError{Reason: "no pixel yields a defined slope"}
	}
	return stat.Mean(slopes, nil), nil
}

// derivative is the numerical gradient at index i of a line of n samples:
// central difference when both neighbours are defined, one-sided otherwise.
func derivative(at func(int) float64, i, n int, step float64) (float64, bool) {
	center := at(i)
	hasPrev := i > 0 && !math.IsNaN(at(i-1))
	hasNext := i < n-1 && !math.IsNaN(at(i+1))

	switch {
	case hasPrev && hasNext:
		return (at(i+1) - at(i-1)) / (2 * step), true
	case hasNext:
		return (at(i+1) - center) / step, true
	case hasPrev:
		return (center - at(i-1)) / step, true
	default:
		return 0, false
	}
}
