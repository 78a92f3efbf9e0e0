package repository

import (
	"context"
	"fmt"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
	"github.com/Solar-crew/solar-detector/internal/metrics"
)

// Fixed distances reported by StaticProximity.
const (
	StaticRoadDistanceM = 800.0
	StaticGridDistanceM = 3000.0
)

// StaticProximity answers every proximity query with a constant. It is used
// when no OSM backend is configured.
type StaticProximity struct {
	Road float64
	Grid float64
}

func NewStaticProximity() StaticProximity {
	return StaticProximity{Road: StaticRoadDistanceM, Grid: StaticGridDistanceM}
}

func (s StaticProximity) NearestDistance(_ context.Context, _ model.Point, class model.InfrastructureClass) (float64, error) {
	metrics.ProximityQueries.WithLabelValues(string(class), "static").Inc()
	switch class {
	case model.InfrastructureRoad:
		return s.Road, nil
	case model.InfrastructureGrid:
		return s.Grid, nil
	default:
		return 0, &model.InvalidInputError{Field: "class", Reason: fmt.Sprintf("unknown infrastructure class %q", class)}
	}
}
