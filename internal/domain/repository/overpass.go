package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/serjvanilla/go-overpass"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
	"github.com/Solar-crew/solar-detector/internal/geo"
	"github.com/Solar-crew/solar-detector/internal/logging"
	"github.com/Solar-crew/solar-detector/internal/metrics"
)

type OverpassConfig struct {
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`
	// Search radii per class. A class with nothing inside its radius reports
	// the radius itself.
	RoadRadiusM float64 `koanf:"road_radius_m"`
	GridRadiusM float64 `koanf:"grid_radius_m"`
}

func DefaultOverpassConfig() OverpassConfig {
	return OverpassConfig{
		Endpoint:    "https://overpass-api.de/api/interpreter",
		Timeout:     30 * time.Second,
		RoadRadiusM: 2000,
		GridRadiusM: 5000,
	}
}

// OverpassRepository measures distances to OSM roads and power infrastructure.
type OverpassRepository struct {
	client *overpass.Client
	cfg    OverpassConfig
}

func NewOverpassRepository(cfg OverpassConfig) *OverpassRepository {
	return NewOverpassRepositoryWithHTTP(cfg, &http.Client{Timeout: cfg.Timeout})
}

// NewOverpassRepositoryWithHTTP uses httpClient for the interpreter calls.
func NewOverpassRepositoryWithHTTP(cfg OverpassConfig, httpClient *http.Client) *OverpassRepository {
	client := overpass.NewWithSettings(cfg.Endpoint, 2, httpClient)
	return &OverpassRepository{
		client: &client,
		cfg:    cfg,
	}
}

// NearestDistance implements model.ProximityProvider.
func (r *OverpassRepository) NearestDistance(
	ctx context.Context,
	p model.Point,
	class model.InfrastructureClass,
) (float64, error) {
	radius, err := r.radius(class)
	if err != nil {
		return 0, err
	}

	query := buildProximityQuery(class, p, radius)
	result, err := r.executeQuery(ctx, query)
	if err != nil {
		metrics.ProximityQueries.WithLabelValues(string(class), "error").Inc()
		return 0, &model.UpstreamUnavailableError{Op: "overpass:" + string(class), Err: err}
	}

	features := convertToFeatures(result)
	d, ok := geo.NearestDistance(p, features)
	if !ok || d > radius {
		metrics.ProximityQueries.WithLabelValues(string(class), "none").Inc()
		logging.Ctx(ctx).Debug().
			Str("class", string(class)).
			Float64("radius_m", radius).
			Msg("no infrastructure within search radius")
		return radius, nil
	}

	metrics.ProximityQueries.WithLabelValues(string(class), "found").Inc()
	return d, nil
}

func (r *OverpassRepository) radius(class model.InfrastructureClass) (float64, error) {
	switch class {
	case model.InfrastructureRoad:
		return r.cfg.RoadRadiusM, nil
	case model.InfrastructureGrid:
		return r.cfg.GridRadiusM, nil
	default:
		return 0, &model.InvalidInputError{Field: "class", Reason: fmt.Sprintf("unknown infrastructure class %q", class)}
	}
}

// buildProximityQuery returns an Overpass QL query for the features of class
// within radius metres of p. Ways are returned with their member nodes.
func buildProximityQuery(class model.InfrastructureClass, p model.Point, radius float64) string {
	around := fmt.Sprintf("(around:%.0f,%f,%f)", radius, p.Lat, p.Lon)

	var body string
	switch class {
	case model.InfrastructureRoad:
		body = fmt.Sprintf(`
			way["highway"~"^(motorway|trunk|primary|secondary|tertiary|unclassified|residential|service|track)$"]%s;`,
			around)
	case model.InfrastructureGrid:
		body = fmt.Sprintf(`
			way["power"~"^(line|minor_line|cable)$"]%[1]s;
			way["power"="substation"]%[1]s;
			node["power"~"^(substation|tower|pole|transformer)$"]%[1]s;`,
			around)
	}

	return fmt.Sprintf(`
		[out:json][timeout:25];
		(%s
		);
		out body;
		>;
		out skel qt;
	`, body)
}

// executeQuery runs the query and gives up when ctx is done. The client has no
// context support; the abandoned call is bounded by the HTTP client timeout.
func (r *OverpassRepository) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	type outcome struct {
		result overpass.Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := r.client.Query(query)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		if o.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", o.err)
		}
		return &o.result, nil
	}
}

// convertToFeatures flattens tagged nodes and ways. Untagged nodes are way
// members from the recursion and are only used through their ways.
func convertToFeatures(result *overpass.Result) []model.InfrastructureFeature {
	var features []model.InfrastructureFeature

	for _, node := range result.Nodes {
		if len(node.Tags) == 0 {
			continue
		}
		features = append(features, model.InfrastructureFeature{
			ID:     node.ID,
			Type:   string(overpass.ElementTypeNode),
			Tags:   node.Tags,
			Points: []model.Point{{Lat: node.Lat, Lon: node.Lon}},
		})
	}

	for _, way := range result.Ways {
		points := make([]model.Point, 0, len(way.Nodes))
		for _, node := range way.Nodes {
			if node == nil || (node.Lat == 0 && node.Lon == 0) {
				continue
			}
			points = append(points, model.Point{Lat: node.Lat, Lon: node.Lon})
		}
		if len(points) == 0 {
			continue
		}
		features = append(features, model.InfrastructureFeature{
			ID:     way.ID,
			Type:   string(overpass.ElementTypeWay),
			Tags:   way.Tags,
			Points: points,
		})
	}

	return features
}
