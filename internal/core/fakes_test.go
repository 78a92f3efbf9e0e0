package core

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

// fakeRasters serves canned catalog entries and rasters keyed by day.
type fakeRasters struct {
	mu sync.Mutex

	entries   []model.CatalogEntry
	searchErr error
	scenes    map[string]*model.Raster
	delays    map[string]time.Duration
	elevation *model.Raster
	fetchErr  error

	requests []model.RasterRequest
}

func (f *fakeRasters) SearchCatalog(
	_ context.Context,
	_ model.BoundingBox,
	_ model.TimeWindow,
	maxRecords int,
) ([]model.CatalogEntry, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.entries) > maxRecords {
		return f.entries[:maxRecords], nil
	}
	return f.entries, nil
}

func (f *fakeRasters) FetchRaster(ctx context.Context, req model.RasterRequest) (*model.Raster, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	if req.Kind == model.RasterElevation {
		return f.elevation, nil
	}

	key := req.Date.Format(model.DateLayout)
	if d := f.delays[key]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r, ok := f.scenes[key]
	if !ok {
		return nil, &model.NoDataError{Reason: "missing scene", Date: key}
	}
	return r, nil
}

func (f *fakeRasters) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// cloudScene builds a 10x10 mask raster with the given number of valid and
// cloudy pixels.
func cloudScene(date string, valid, cloudy int) *model.Raster {
	const w, h = 10, 10
	mask := make([]float64, w*h)
	cloud := make([]float64, w*h)
	for i := 0; i < valid; i++ {
		mask[i] = 1
		if i < cloudy {
			cloud[i] = 1
		}
	}
	return &model.Raster{
		Kind:   model.RasterCloudMask,
		Date:   date,
		Width:  w,
		Height: h,
		Bands:  [][]float64{mask, cloud},
	}
}

// elevationRaster builds an n×n raster from h(x, y).
func elevationRaster(n int, h func(x, y int) float64) *model.Raster {
	band := make([]float64, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			band[y*n+x] = h(x, y)
		}
	}
	return &model.Raster{Kind: model.RasterElevation, Width: n, Height: n, Bands: [][]float64{band}}
}

type fakeProximity struct {
	distances map[model.InfrastructureClass]float64
	err       error
}

func (f fakeProximity) NearestDistance(_ context.Context, _ model.Point, class model.InfrastructureClass) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	d, ok := f.distances[class]
	if !ok {
		return math.NaN(), nil
	}
	return d, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []model.ScoreRecord
	err     error
}

func (f *fakeRecorder) SaveScore(_ context.Context, rec model.ScoreRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.err
}
