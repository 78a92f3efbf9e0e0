package core

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
	"github.com/Solar-crew/solar-detector/internal/geo"
	"github.com/Solar-crew/solar-detector/internal/logging"
	"github.com/Solar-crew/solar-detector/internal/metrics"
)

// ClearSkyThreshold is the cloud fraction below which a scene counts as clear.
const ClearSkyThreshold = 0.2

// CloudOptions parameterize one cloudiness computation.
type CloudOptions struct {
	MaxRecords    int     `koanf:"max_records" json:"max_records"`
	MinValidRatio float64 `koanf:"min_valid_ratio" json:"min_valid_ratio"`
	Width         int     `koanf:"width" json:"width"`
	Height        int     `koanf:"height" json:"height"`
	Concurrency   int     `koanf:"concurrency" json:"concurrency"`
}

func DefaultCloudOptions() CloudOptions {
	return CloudOptions{
		MaxRecords:    50,
		MinValidRatio: 0.8,
		Width:         256,
		Height:        256,
		Concurrency:   4,
	}
}

func (o CloudOptions) Validate() error {
	if o.MaxRecords <= 0 {
		return &model.InvalidInputError{Field: "max_records", Reason: "must be positive"}
	}
	if o.MinValidRatio < 0 || o.MinValidRatio > 1 {
		return &model.InvalidInputError{Field: "min_valid_ratio", Reason: "must be within [0, 1]"}
	}
	if o.Width <= 0 || o.Height <= 0 {
		return &model.InvalidInputError{Field: "width/height", Reason: "must be positive"}
	}
	return nil
}

// CloudAnalyzer reduces a catalog of cloud-mask rasters into CloudinessStats.
type CloudAnalyzer struct {
	provider model.RasterProvider
}

func NewCloudAnalyzer(provider model.RasterProvider) *CloudAnalyzer {
	return &CloudAnalyzer{provider: provider}
}

// sceneResult is the outcome of one acquisition day.
type sceneResult struct {
	metric model.SceneCloudMetric
	kept   bool
}

// Compute returns cloudiness statistics for the area and window.
func (a *CloudAnalyzer) Compute(
	ctx context.Context,
	aoi model.AreaOfInterest,
	window model.TimeWindow,
	opts CloudOptions,
) (*model.CloudinessStats, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	bbox, err := geo.AreaBoundingBox(aoi)
	if err != nil {
		return nil, err
	}

	log := logging.Ctx(ctx).With().Str("component", "cloud").Str("bbox", bbox.String()).Logger()

	entries, err := a.provider.SearchCatalog(ctx, bbox, window, opts.MaxRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}
	days := acquisitionDays(entries)
	if len(days) == 0 {
		return nil, &model.NoDataError{Reason: "no products found for this area and time range", BBox: bbox}
	}
	log.Debug().Int("products", len(entries)).Int("days", len(days)).Msg("catalog search done")

	results, err := a.fetchScenes(ctx, bbox, days, opts, log)
	if err != nil {
		return nil, err
	}

	scenes := make([]model.SceneCloudMetric, 0, len(results))
	for _, r := range results {
		if r.kept {
			scenes = append(scenes, r.metric)
		}
	}
	if len(scenes) == 0 {
		return nil, &model.NoDataError{Reason: "all scenes were skipped due to low coverage", BBox: bbox}
	}

	return AggregateCloudiness(scenes)
}

// fetchScenes fetches and reduces every day concurrently. Results are indexed
// by catalog position so completion order does not matter.
func (a *CloudAnalyzer) fetchScenes(
	ctx context.Context,
	bbox model.BoundingBox,
	days []acquisitionDay,
	opts CloudOptions,
	log zerolog.Logger,
) ([]sceneResult, error) {
	results := make([]sceneResult, len(days))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	for i, day := range days {
		g.Go(func() error {
			raster, err := a.provider.FetchRaster(gctx, model.RasterRequest{
				BBox:   bbox,
				Kind:   model.RasterCloudMask,
				Date:   day.Date,
				Width:  opts.Width,
				Height: opts.Height,
			})
			if err != nil {
				return fmt.Errorf("failed to fetch cloud mask for %s: %w", day.Key, err)
			}
			if raster == nil {
				return &model.ShapeMismatchError{
					Kind: model.RasterCloudMask, Date: day.Key, WantBands: model.RasterCloudMask.Bands(), Reason: "provider returned no raster",
				}
			}
			if raster.Date == "" {
				raster.Date = day.Key
			}

			metric, kept, err := SceneMetric(raster, opts.MinValidRatio)
			if err != nil {
				return err
			}
			results[i] = sceneResult{metric: metric, kept: kept}

			if kept {
				metrics.ScenesProcessed.WithLabelValues("kept").Inc()
			} else {
				metrics.ScenesProcessed.WithLabelValues("skipped").Inc()
				log.Debug().Str("date", day.Key).Float64("valid_ratio", metric.ValidRatio).Msg("scene skipped")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SceneMetric reduces a two-band cloud-mask raster. Band 0 is validity, band 1
// the cloud flag. kept is false when the valid-pixel ratio is zero or below
// minValidRatio; the metric still carries the ratio in that case.
func SceneMetric(r *model.Raster, minValidRatio float64) (model.SceneCloudMetric, bool, error) {
	want := model.RasterCloudMask.Bands()
	if r == nil {
		return model.SceneCloudMetric{}, false, &model.ShapeMismatchError{
			Kind: model.RasterCloudMask, WantBands: want, Reason: "provider returned no raster",
		}
	}
	if len(r.Bands) < want {
		return model.SceneCloudMetric{}, false, &model.ShapeMismatchError{
			Kind: model.RasterCloudMask, Date: r.Date, WantBands: want, GotBands: len(r.Bands),
		}
	}
	mask, cloud := r.Bands[0], r.Bands[1]
	if len(mask) == 0 || len(mask) != len(cloud) {
		return model.SceneCloudMetric{}, false, &model.ShapeMismatchError{
			Kind: model.RasterCloudMask, Date: r.Date, WantBands: want, GotBands: len(r.Bands),
		}
	}

	var valid, cloudy int
	for i, m := range mask {
		if m == 0 {
			continue
		}
		valid++
		if cloud[i] != 0 {
			cloudy++
		}
	}

	metric := model.SceneCloudMetric{
		Date:       r.Date,
		ValidRatio: float64(valid) / float64(len(mask)),
	}
	if valid == 0 || metric.ValidRatio < minValidRatio {
		return metric, false, nil
	}

	metric.CloudFraction = float64(cloudy) / float64(valid)
	return metric, true, nil
}

// AggregateCloudiness computes the summary of a non-empty scene sequence. Ties
// in exemplar selection go to the earliest scene.
func AggregateCloudiness(scenes []model.SceneCloudMetric) (*model.CloudinessStats, error) {
	if len(scenes) == 0 {
		return nil, &model.NoDataError{Reason: "no scenes to aggregate"}
	}

	fractions := make([]float64, len(scenes))
	clear := 0
	for i, s := range scenes {
		fractions[i] = s.CloudFraction
		if s.CloudFraction < ClearSkyThreshold {
			clear++
		}
	}

	mean := stat.Mean(fractions, nil)

	nearMean := 0
	for i, f := range fractions {
		if math.Abs(f-mean) < math.Abs(fractions[nearMean]-mean) {
			nearMean = i
		}
	}

	return &model.CloudinessStats{
		ScenesUsed:     len(scenes),
		Scenes:         append([]model.SceneCloudMetric(nil), scenes...),
		MeanCloudiness: mean,
		ClearRatio:     float64(clear) / float64(len(scenes)),
		LeastCloudy:    scenes[floats.MinIdx(fractions)],
		MostCloudy:     scenes[floats.MaxIdx(fractions)],
		NearMean:       scenes[nearMean],
	}, nil
}
