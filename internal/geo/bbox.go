// Package geo holds the spherical-Earth approximations used to turn an analysis
// circle into raster queries and to measure distances to infrastructure.
package geo

import (
	"fmt"
	"math"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

// EarthRadiusM is the mean Earth radius of the spherical model.
const EarthRadiusM = 6371000.0

// MaxAbsLatitude is the largest |lat| accepted for a circle center. Closer to the
// poles the longitude half-extent grows without bound.
const MaxAbsLatitude = 89.0

// CircleToBoundingBox approximates a circle on the Earth's surface with an
// EPSG:4326 box. Good for radii of kilometres, not hundreds of kilometres.
// Boxes that would reach a pole or cross the antimeridian are rejected.
func CircleToBoundingBox(lat, lon, radiusM float64) (model.BoundingBox, error) {
	if !(radiusM > 0) || math.IsInf(radiusM, 0) {
		return model.BoundingBox{}, &model.InvalidInputError{Field: "radius_m", Reason: "must be positive and finite"}
	}
	if math.IsNaN(lat) || math.Abs(lat) > MaxAbsLatitude {
		return model.BoundingBox{}, &model.InvalidInputError{
			Field:  "lat",
			Reason: fmt.Sprintf("%v outside supported range [-%v, %v]", lat, MaxAbsLatitude, MaxAbsLatitude),
		}
	}
	if !(lon >= -180 && lon <= 180) {
		return model.BoundingBox{}, &model.InvalidInputError{Field: "lon", Reason: fmt.Sprintf("%v out of range [-180, 180]", lon)}
	}

	dLat := (radiusM / EarthRadiusM) * (180.0 / math.Pi)
	dLon := dLat / math.Cos(lat*math.Pi/180)

	box := model.BoundingBox{
		MinLon: lon - dLon,
		MinLat: lat - dLat,
		MaxLon: lon + dLon,
		MaxLat: lat + dLat,
	}
	if box.MinLat < -90 || box.MaxLat > 90 {
		return model.BoundingBox{}, &model.InvalidInputError{Field: "radius_m", Reason: "area reaches a pole"}
	}
	if box.MinLon < -180 || box.MaxLon > 180 {
		return model.BoundingBox{}, &model.InvalidInputError{Field: "radius_m", Reason: "area crosses the antimeridian"}
	}
	return box, nil
}

// AreaBoundingBox is CircleToBoundingBox for an AreaOfInterest.
func AreaBoundingBox(aoi model.AreaOfInterest) (model.BoundingBox, error) {
	if err := aoi.Validate(); err != nil {
		return model.BoundingBox{}, err
	}
	return CircleToBoundingBox(aoi.Lat, aoi.Lon, aoi.RadiusM)
}

// PixelSizeMeters is the ground size of one pixel when a box spanning about
// 2*radius is sampled with the given number of pixels.
func PixelSizeMeters(radiusM float64, pixels int) float64 {
	return 2 * radiusM / float64(pixels)
}
