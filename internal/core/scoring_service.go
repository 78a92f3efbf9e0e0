package core

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
	"github.com/Solar-crew/solar-detector/internal/logging"
	"github.com/Solar-crew/solar-detector/internal/metrics"
)

// Feature names as they appear in results and metrics.
const (
	FeatureCloud     = "cloud"
	FeatureElevation = "elevation"
	FeatureRoad      = "road_access"
	FeatureGrid      = "grid_access"
)

// ScoringService combines the four feature computations into a site score.
type ScoringService struct {
	cloud      *CloudAnalyzer
	slope      *SlopeAnalyzer
	proximity  model.ProximityProvider
	thresholds Thresholds
	cloudOpts  CloudOptions
	slopeOpts  SlopeOptions
	recorder   model.ScoreRecorder
	saveData   bool
	now        func() time.Time
}

// ServiceOption customizes a ScoringService.
type ServiceOption func(*ScoringService)

func WithThresholds(t Thresholds) ServiceOption {
	return func(s *ScoringService) { s.thresholds = t }
}

func WithCloudOptions(o CloudOptions) ServiceOption {
	return func(s *ScoringService) { s.cloudOpts = o }
}

func WithSlopeOptions(o SlopeOptions) ServiceOption {
	return func(s *ScoringService) { s.slopeOpts = o }
}

// WithRecorder stores every successful score through r.
func WithRecorder(r model.ScoreRecorder) ServiceOption {
	return func(s *ScoringService) {
		s.recorder = r
		s.saveData = r != nil
	}
}

func NewScoringService(
	rasters model.RasterProvider,
	proximity model.ProximityProvider,
	opts ...ServiceOption,
) *ScoringService {
	s := &ScoringService{
		cloud:      NewCloudAnalyzer(rasters),
		slope:      NewSlopeAnalyzer(rasters),
		proximity:  proximity,
		thresholds: DefaultThresholds(),
		cloudOpts:  DefaultCloudOptions(),
		slopeOpts:  DefaultSlopeOptions(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CloudOptions returns the defaults used for the cloud feature.
func (s *ScoringService) CloudOptions() CloudOptions {
	return s.cloudOpts
}

// ComputeCloudiness exposes the cloud statistics on their own, for diagnostics.
func (s *ScoringService) ComputeCloudiness(
	ctx context.Context,
	aoi model.AreaOfInterest,
	window model.TimeWindow,
	opts CloudOptions,
) (*model.CloudinessStats, error) {
	return s.cloud.Compute(ctx, aoi, window, opts)
}

// ComputeSiteScore runs the four features in parallel and sums their
// contributions. Any feature failure aborts the whole score.
func (s *ScoringService) ComputeSiteScore(
	ctx context.Context,
	aoi model.AreaOfInterest,
	window model.TimeWindow,
	weights model.Weights,
) (*model.SiteScoreResult, error) {
	start := time.Now()

	if err := aoi.Validate(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	var cloud, elevation, road, grid model.FeatureScore

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.cloud.Compute(gctx, aoi, window, s.cloudOpts)
		if err != nil {
			return fmt.Errorf("cloud feature: %w", err)
		}
		cloud = s.thresholds.Cloud.Score(FeatureCloud, stats.MeanCloudiness, weights.Cloud)
		return nil
	})
	g.Go(func() error {
		slope, err := s.slope.MeanSlope(gctx, aoi, s.slopeOpts)
		if err != nil {
			return fmt.Errorf("elevation feature: %w", err)
		}
		elevation = s.thresholds.Slope.Score(FeatureElevation, slope, weights.Elevation)
		return nil
	})
	g.Go(func() error {
		d, err := s.proximity.NearestDistance(gctx, aoi.Center(), model.InfrastructureRoad)
		if err != nil {
			return fmt.Errorf("road feature: %w", err)
		}
		road = s.thresholds.Road.Score(FeatureRoad, d, weights.Road)
		return nil
	})
	g.Go(func() error {
		d, err := s.proximity.NearestDistance(gctx, aoi.Center(), model.InfrastructureGrid)
		if err != nil {
			return fmt.Errorf("grid feature: %w", err)
		}
		grid = s.thresholds.Grid.Score(FeatureGrid, d, weights.Grid)
		return nil
	})

	if err := g.Wait(); err != nil {
		metrics.ScoreRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	result := model.NewSiteScoreResult(cloud, elevation, road, grid, s.now().UTC())
	metrics.ScoreRequests.WithLabelValues("ok").Inc()
	metrics.ScoreDuration.Observe(time.Since(start).Seconds())

	log := logging.Ctx(ctx)
	log.Info().
		Float64("lat", aoi.Lat).
		Float64("lon", aoi.Lon).
		Float64("radius_m", aoi.RadiusM).
		Float64("final_score", result.FinalScore).
		Dur("took", time.Since(start)).
		Msg("site score computed")

	if s.saveData {
		rec := model.ScoreRecord{Area: aoi, Window: window, Result: result}
		if err := s.recorder.SaveScore(ctx, rec); err != nil {
			log.Warn().Err(err).Msg("failed to save score")
		}
	}

	return &result, nil
}
