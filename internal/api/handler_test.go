package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Solar-crew/solar-detector/internal/core"
	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

type fakeScorer struct {
	result *model.SiteScoreResult
	stats  *model.CloudinessStats
	err    error

	gotAOI     model.AreaOfInterest
	gotWindow  model.TimeWindow
	gotWeights model.Weights
	gotOpts    core.CloudOptions
}

func (f *fakeScorer) ComputeSiteScore(_ context.Context, aoi model.AreaOfInterest, window model.TimeWindow, weights model.Weights) (*model.SiteScoreResult, error) {
	f.gotAOI, f.gotWindow, f.gotWeights = aoi, window, weights
	return f.result, f.err
}

func (f *fakeScorer) ComputeCloudiness(_ context.Context, aoi model.AreaOfInterest, window model.TimeWindow, opts core.CloudOptions) (*model.CloudinessStats, error) {
	f.gotAOI, f.gotWindow, f.gotOpts = aoi, window, opts
	return f.stats, f.err
}

func (f *fakeScorer) CloudOptions() core.CloudOptions {
	return core.DefaultCloudOptions()
}

var defaultWeights = model.Weights{Cloud: 0.4, Elevation: 0.3, Road: 0.2, Grid: 0.1}

func newTestServer(scorer Scorer) http.Handler {
	return NewRouter(NewHandler(scorer, defaultWeights), time.Minute)
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestSiteScore_OK(t *testing.T) {
	result := model.NewSiteScoreResult(
		model.FeatureScore{Name: "cloud", Contribution: 0.3},
		model.FeatureScore{Name: "elevation", Contribution: 0.3},
		model.FeatureScore{Name: "road_access", Contribution: 0.1},
		model.FeatureScore{Name: "grid_access", Contribution: 0.05},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	)
	scorer := &fakeScorer{result: &result}

	rec := post(t, newTestServer(scorer), "/api/v1/site-score", `{
		"location": {"lat": 46.77, "lon": 23.59},
		"time_range": {"start_date": "2023-01-01", "end_date": "2023-03-31"},
		"weights": {"cloud": 0.6}
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	assert.Equal(t, DefaultRadiusM, scorer.gotAOI.RadiusM)
	assert.Equal(t, 46.77, scorer.gotAOI.Lat)
	assert.Equal(t, time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), scorer.gotWindow.End)
	assert.Equal(t, model.Weights{Cloud: 0.6, Elevation: 0.3, Road: 0.2, Grid: 0.1}, scorer.gotWeights)

	var got model.SiteScoreResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.InDelta(t, 0.75, got.FinalScore, 1e-9)
	assert.Equal(t, "road_access", got.RoadAccess.Name)
}

func TestSiteScore_EquatorIsValid(t *testing.T) {
	result := model.SiteScoreResult{}
	scorer := &fakeScorer{result: &result}

	rec := post(t, newTestServer(scorer), "/api/v1/site-score", `{
		"location": {"lat": 0, "lon": 0, "radius_m": 250},
		"time_range": {"start_date": "2023-01-01", "end_date": "2023-01-02"}
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 250.0, scorer.gotAOI.RadiusM)
	assert.Equal(t, defaultWeights, scorer.gotWeights)
}

func TestSiteScore_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "not json", body: `{`, code: "INVALID_BODY"},
		{name: "unknown field", body: `{"location":{"lat":1,"lon":1},"time_range":{"start_date":"2023-01-01","end_date":"2023-01-02"},"extra":1}`, code: "INVALID_BODY"},
		{name: "missing lat", body: `{"location":{"lon":1},"time_range":{"start_date":"2023-01-01","end_date":"2023-01-02"}}`, code: "VALIDATION_ERROR"},
		{name: "lat out of range", body: `{"location":{"lat":95,"lon":1},"time_range":{"start_date":"2023-01-01","end_date":"2023-01-02"}}`, code: "VALIDATION_ERROR"},
		{name: "bad date", body: `{"location":{"lat":1,"lon":1},"time_range":{"start_date":"01.01.2023","end_date":"2023-01-02"}}`, code: "VALIDATION_ERROR"},
		{name: "negative weight", body: `{"location":{"lat":1,"lon":1},"time_range":{"start_date":"2023-01-01","end_date":"2023-01-02"},"weights":{"road":-1}}`, code: "VALIDATION_ERROR"},
		{name: "reversed window", body: `{"location":{"lat":1,"lon":1},"time_range":{"start_date":"2023-02-01","end_date":"2023-01-02"}}`, code: "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, newTestServer(&fakeScorer{}), "/api/v1/site-score", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestSiteScore_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: &model.InvalidInputError{Field: "lat", Reason: "too close to a pole"}, status: http.StatusBadRequest, code: "INVALID_INPUT"},
		{err: fmt.Errorf("cloud feature: %w", &model.NoDataError{Reason: "no products"}), status: http.StatusUnprocessableEntity, code: "NO_DATA"},
		{err: &model.ShapeMismatchError{WantBands: 2, GotBands: 1}, status: http.StatusBadGateway, code: "SHAPE_MISMATCH"},
		{err: &model.UpstreamUnavailableError{Op: "catalog", StatusCode: 503}, status: http.StatusBadGateway, code: "UPSTREAM_UNAVAILABLE"},
		{err: fmt.Errorf("boom"), status: http.StatusInternalServerError, code: "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := post(t, newTestServer(&fakeScorer{err: tt.err}), "/api/v1/site-score", `{
				"location": {"lat": 46.77, "lon": 23.59},
				"time_range": {"start_date": "2023-01-01", "end_date": "2023-03-31"}
			}`)
			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, rec.Header().Get(requestIDHeader), body.RequestID)
		})
	}
}

func TestCloudiness_OK(t *testing.T) {
	stats := &model.CloudinessStats{
		ScenesUsed:     1,
		Scenes:         []model.SceneCloudMetric{{Date: "2023-01-05", CloudFraction: 0.1, ValidRatio: 0.95}},
		MeanCloudiness: 0.1,
		ClearRatio:     1,
	}
	scorer := &fakeScorer{stats: stats}

	rec := post(t, newTestServer(scorer), "/api/v1/cloudiness", `{
		"center_lat": 46.77, "center_lon": 23.59, "radius_m": 300,
		"start_date": "2023-01-01", "end_date": "2023-01-31",
		"max_records": 10, "min_valid_ratio": 0.5, "width": 64
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 10, scorer.gotOpts.MaxRecords)
	assert.Equal(t, 0.5, scorer.gotOpts.MinValidRatio)
	assert.Equal(t, 64, scorer.gotOpts.Width)
	assert.Equal(t, 256, scorer.gotOpts.Height)
	assert.Equal(t, 300.0, scorer.gotAOI.RadiusM)

	var got model.CloudinessStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.ScenesUsed)
	assert.Equal(t, "2023-01-05", got.Scenes[0].Date)
}

func TestCloudiness_RequiresRadius(t *testing.T) {
	rec := post(t, newTestServer(&fakeScorer{}), "/api/v1/cloudiness", `{
		"center_lat": 46.77, "center_lon": 23.59,
		"start_date": "2023-01-01", "end_date": "2023-01-31"
	}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "RadiusM")
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	newTestServer(&fakeScorer{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
	assert.JSONEq(t, `{"status":"ok","service":"solar-detector"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeScorer{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeScorer{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/site-score", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
