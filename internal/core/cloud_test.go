package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

var testArea = model.AreaOfInterest{Lat: 46.77, Lon: 23.59, RadiusM: 500}

func testWindow(t *testing.T) model.TimeWindow {
	t.Helper()
	w, err := model.NewTimeWindow("2023-01-01", "2023-01-31")
	require.NoError(t, err)
	return w
}

func entry(id, date string) model.CatalogEntry {
	return model.CatalogEntry{ProductID: id, AcquisitionDate: date + "T10:00:00.000Z"}
}

func TestAcquisitionDays(t *testing.T) {
	days := acquisitionDays([]model.CatalogEntry{
		{ProductID: "a", AcquisitionDate: "2023-01-07T10:00:00Z"},
		{ProductID: "b", AcquisitionDate: "2023-01-05T09:00:00Z"},
		{ProductID: "c", AcquisitionDate: "2023-01-07T11:30:00Z"},
		{ProductID: "d", AcquisitionDate: "2023-01"},
		{ProductID: "e", AcquisitionDate: "not-a-date"},
	})

	require.Len(t, days, 2)
	assert.Equal(t, "2023-01-07", days[0].Key)
	assert.Equal(t, "2023-01-05", days[1].Key)
	assert.Equal(t, time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), days[1].Date)
}

func TestSceneMetric(t *testing.T) {
	m, kept, err := SceneMetric(cloudScene("2023-01-05", 100, 25), 0.8)
	require.NoError(t, err)
	assert.True(t, kept)
	assert.Equal(t, "2023-01-05", m.Date)
	assert.InDelta(t, 0.25, m.CloudFraction, 1e-12)
	assert.InDelta(t, 1.0, m.ValidRatio, 1e-12)
}

func TestSceneMetric_ValidRatioBoundary(t *testing.T) {
	m, kept, err := SceneMetric(cloudScene("2023-01-05", 80, 0), 0.8)
	require.NoError(t, err)
	assert.True(t, kept, "ratio equal to the minimum is kept")
	assert.InDelta(t, 0.8, m.ValidRatio, 1e-12)

	m, kept, err = SceneMetric(cloudScene("2023-01-06", 79, 0), 0.8)
	require.NoError(t, err)
	assert.False(t, kept)
	assert.InDelta(t, 0.79, m.ValidRatio, 1e-12)
}

func TestSceneMetric_NoValidPixels(t *testing.T) {
	_, kept, err := SceneMetric(cloudScene("2023-01-05", 0, 0), 0)
	require.NoError(t, err)
	assert.False(t, kept, "an all-invalid scene is skipped even without a minimum")
}

func TestSceneMetric_ShapeMismatch(t *testing.T) {
	r := &model.Raster{Date: "2023-01-05", Width: 1, Height: 1, Bands: [][]float64{{1}}}
	_, _, err := SceneMetric(r, 0.8)

	var shape *model.ShapeMismatchError
	require.True(t, errors.As(err, &shape))
	assert.Equal(t, 2, shape.WantBands)
	assert.Equal(t, 1, shape.GotBands)
}

func TestAggregateCloudiness(t *testing.T) {
	scenes := []model.SceneCloudMetric{
		{Date: "2023-01-01", CloudFraction: 0.1, ValidRatio: 1},
		{Date: "2023-01-02", CloudFraction: 0.9, ValidRatio: 1},
		{Date: "2023-01-03", CloudFraction: 0.5, ValidRatio: 1},
	}

	stats, err := AggregateCloudiness(scenes)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.ScenesUsed)
	assert.InDelta(t, 0.5, stats.MeanCloudiness, 1e-12)
	assert.InDelta(t, 1.0/3, stats.ClearRatio, 1e-12)
	assert.Equal(t, "2023-01-01", stats.LeastCloudy.Date)
	assert.Equal(t, "2023-01-02", stats.MostCloudy.Date)
	assert.Equal(t, "2023-01-03", stats.NearMean.Date)
	assert.Equal(t, scenes, stats.Scenes)
}

func TestAggregateCloudiness_TiesGoToFirst(t *testing.T) {
	scenes := []model.SceneCloudMetric{
		{Date: "a", CloudFraction: 0.25},
		{Date: "b", CloudFraction: 0.25},
		{Date: "c", CloudFraction: 0.75},
		{Date: "d", CloudFraction: 0.75},
	}

	stats, err := AggregateCloudiness(scenes)
	require.NoError(t, err)
	assert.Equal(t, "a", stats.LeastCloudy.Date)
	assert.Equal(t, "c", stats.MostCloudy.Date)
	assert.Equal(t, "a", stats.NearMean.Date, "0.25 and 0.75 are equally far from 0.5")
	assert.Zero(t, stats.ClearRatio)
}

func TestAggregateCloudiness_ClearThresholdIsStrict(t *testing.T) {
	stats, err := AggregateCloudiness([]model.SceneCloudMetric{
		{Date: "a", CloudFraction: 0.2},
		{Date: "b", CloudFraction: 0.19},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, stats.ClearRatio, 1e-12)
}

func TestAggregateCloudiness_Empty(t *testing.T) {
	_, err := AggregateCloudiness(nil)
	var noData *model.NoDataError
	assert.True(t, errors.As(err, &noData))
}

func TestCloudAnalyzer_Compute(t *testing.T) {
	provider := &fakeRasters{
		entries: []model.CatalogEntry{
			entry("p1", "2023-01-03"),
			entry("p2", "2023-01-08"),
			entry("p2b", "2023-01-08"),
			entry("p3", "2023-01-13"),
			entry("p4", "2023-01-18"),
		},
		scenes: map[string]*model.Raster{
			"2023-01-03": cloudScene("2023-01-03", 100, 10),
			"2023-01-08": cloudScene("2023-01-08", 100, 90),
			"2023-01-13": cloudScene("2023-01-13", 79, 0), // below coverage
			"2023-01-18": cloudScene("2023-01-18", 100, 50),
		},
		// later days finish first
		delays: map[string]time.Duration{
			"2023-01-03": 30 * time.Millisecond,
			"2023-01-08": 20 * time.Millisecond,
			"2023-01-13": 10 * time.Millisecond,
		},
	}

	stats, err := NewCloudAnalyzer(provider).Compute(context.Background(), testArea, testWindow(t), DefaultCloudOptions())
	require.NoError(t, err)

	assert.Equal(t, 4, provider.fetchCount(), "one fetch per distinct day")
	assert.Equal(t, 3, stats.ScenesUsed)

	dates := make([]string, 0, len(stats.Scenes))
	for _, s := range stats.Scenes {
		dates = append(dates, s.Date)
	}
	assert.Equal(t, []string{"2023-01-03", "2023-01-08", "2023-01-18"}, dates, "catalog order is preserved")

	assert.InDelta(t, 0.5, stats.MeanCloudiness, 1e-12)
	assert.Equal(t, "2023-01-03", stats.LeastCloudy.Date)
	assert.Equal(t, "2023-01-08", stats.MostCloudy.Date)
	assert.Equal(t, "2023-01-18", stats.NearMean.Date)
}

func TestCloudAnalyzer_RequestShape(t *testing.T) {
	provider := &fakeRasters{
		entries: []model.CatalogEntry{entry("p1", "2023-01-03")},
		scenes:  map[string]*model.Raster{"2023-01-03": cloudScene("2023-01-03", 100, 0)},
	}
	opts := DefaultCloudOptions()
	opts.Width, opts.Height = 32, 16

	_, err := NewCloudAnalyzer(provider).Compute(context.Background(), testArea, testWindow(t), opts)
	require.NoError(t, err)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.Equal(t, model.RasterCloudMask, req.Kind)
	assert.Equal(t, 32, req.Width)
	assert.Equal(t, 16, req.Height)
	assert.Less(t, req.BBox.MinLat, testArea.Lat)
	assert.Greater(t, req.BBox.MaxLon, testArea.Lon)
}

func TestCloudAnalyzer_EmptyCatalog(t *testing.T) {
	provider := &fakeRasters{}

	_, err := NewCloudAnalyzer(provider).Compute(context.Background(), testArea, testWindow(t), DefaultCloudOptions())

	var noData *model.NoDataError
	require.True(t, errors.As(err, &noData))
	assert.Contains(t, noData.Reason, "no products")
	assert.Zero(t, provider.fetchCount())
}

func TestCloudAnalyzer_AllScenesSkipped(t *testing.T) {
	provider := &fakeRasters{
		entries: []model.CatalogEntry{entry("p1", "2023-01-03"), entry("p2", "2023-01-08")},
		scenes: map[string]*model.Raster{
			"2023-01-03": cloudScene("2023-01-03", 0, 0),
			"2023-01-08": cloudScene("2023-01-08", 50, 10),
		},
	}

	_, err := NewCloudAnalyzer(provider).Compute(context.Background(), testArea, testWindow(t), DefaultCloudOptions())

	var noData *model.NoDataError
	require.True(t, errors.As(err, &noData))
	assert.Contains(t, noData.Reason, "skipped")
}

func TestCloudAnalyzer_SearchFailure(t *testing.T) {
	provider := &fakeRasters{searchErr: &model.UpstreamUnavailableError{Op: "catalog", StatusCode: 503}}

	_, err := NewCloudAnalyzer(provider).Compute(context.Background(), testArea, testWindow(t), DefaultCloudOptions())

	var upstream *model.UpstreamUnavailableError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 503, upstream.StatusCode)
}

func TestCloudAnalyzer_ShapeMismatchAborts(t *testing.T) {
	bad := &model.Raster{Date: "2023-01-08", Width: 1, Height: 1, Bands: [][]float64{{1}}}
	provider := &fakeRasters{
		entries: []model.CatalogEntry{entry("p1", "2023-01-03"), entry("p2", "2023-01-08")},
		scenes: map[string]*model.Raster{
			"2023-01-03": cloudScene("2023-01-03", 100, 0),
			"2023-01-08": bad,
		},
	}

	_, err := NewCloudAnalyzer(provider).Compute(context.Background(), testArea, testWindow(t), DefaultCloudOptions())

	var shape *model.ShapeMismatchError
	require.True(t, errors.As(err, &shape))
	assert.Equal(t, "2023-01-08", shape.Date)
}

func TestCloudAnalyzer_NilSceneIsShapeMismatch(t *testing.T) {
	provider := &fakeRasters{
		entries: []model.CatalogEntry{entry("p1", "2023-01-03")},
		scenes:  map[string]*model.Raster{"2023-01-03": nil},
	}

	_, err := NewCloudAnalyzer(provider).Compute(context.Background(), testArea, testWindow(t), DefaultCloudOptions())

	var shape *model.ShapeMismatchError
	require.True(t, errors.As(err, &shape))
	assert.Equal(t, "2023-01-03", shape.Date)
	assert.Equal(t, model.RasterCloudMask, shape.Kind)
}

func TestSceneMetric_NilRaster(t *testing.T) {
	_, kept, err := SceneMetric(nil, 0.5)
	assert.False(t, kept)
	var shape *model.ShapeMismatchError
	assert.True(t, errors.As(err, &shape))
}

func TestCloudAnalyzer_InvalidInput(t *testing.T) {
	analyzer := NewCloudAnalyzer(&fakeRasters{})
	window := testWindow(t)

	opts := DefaultCloudOptions()
	opts.MinValidRatio = 1.5
	_, err := analyzer.Compute(context.Background(), testArea, window, opts)
	var invalid *model.InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "min_valid_ratio", invalid.Field)

	_, err = analyzer.Compute(context.Background(), model.AreaOfInterest{Lat: 89.9, Lon: 0, RadiusM: 500}, window, DefaultCloudOptions())
	assert.True(t, errors.As(err, &invalid))
}

func TestCloudAnalyzer_NaNLongitudeNeverReachesProvider(t *testing.T) {
	provider := &fakeRasters{
		entries: []model.CatalogEntry{entry("p1", "2023-01-05")},
		scenes:  map[string]*model.Raster{"2023-01-05": cloudScene("2023-01-05", 100, 0)},
	}
	analyzer := NewCloudAnalyzer(provider)

	_, err := analyzer.Compute(context.Background(),
		model.AreaOfInterest{Lat: 10, Lon: math.NaN(), RadiusM: 500}, testWindow(t), DefaultCloudOptions())

	var invalid *model.InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "lon", invalid.Field)
	assert.Zero(t, provider.fetchCount())
}
