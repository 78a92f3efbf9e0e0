package geo

import (
	"math"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

// Haversine returns the great-circle distance between two points in metres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// DistanceToSegment returns the distance in metres from p to the segment a-b.
// The segment is projected onto a local equirectangular plane centered on p,
// which is accurate for the short segments OSM ways are made of.
func DistanceToSegment(p, a, b model.Point) float64 {
	kx := math.Cos(p.Lat*math.Pi/180) * math.Pi / 180 * EarthRadiusM
	ky := math.Pi / 180 * EarthRadiusM

	ax, ay := (a.Lon-p.Lon)*kx, (a.Lat-p.Lat)*ky
	bx, by := (b.Lon-p.Lon)*kx, (b.Lat-p.Lat)*ky

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return Haversine(p.Lat, p.Lon, a.Lat, a.Lon)
	}

	// проекция p (начало координат) на отрезок
	t := -(ax*dx + ay*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	cx, cy := ax+t*dx, ay+t*dy
	return math.Hypot(cx, cy)
}

// NearestDistance returns the smallest distance from p to any of the features,
// and false when there are no features with coordinates.
func NearestDistance(p model.Point, features []model.InfrastructureFeature) (float64, bool) {
	best := math.Inf(1)
	found := false

	for _, f := range features {
		switch {
		case f.IsLine():
			for i := 1; i < len(f.Points); i++ {
				if d := DistanceToSegment(p, f.Points[i-1], f.Points[i]); d < best {
					best = d
				}
			}
			found = true
		case len(f.Points) == 1:
			if d := Haversine(p.Lat, p.Lon, f.Points[0].Lat, f.Points[0].Lon); d < best {
				best = d
			}
			found = true
		}
	}

	if !found {
		return 0, false
	}
	return best, true
}
