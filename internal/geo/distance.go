// Package geo provides great-circle distance helpers for listing/request coordinates.
package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

// EarthRadiusKM is the mean Earth radius used for haversine distances.
const EarthRadiusKM = 6371.0

// RadiusCheck is the outcome of a radius containment test.
// DistanceKM is nil when either side lacks coordinates.
type RadiusCheck struct {
	Within     bool
	DistanceKM *float64
}

// DistanceKM returns the haversine distance between two points in kilometers,
// rounded to one decimal place.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return math.Round(EarthRadiusKM*c*10) / 10
}

// WithinRadius reports whether the second point lies within radiusKM of the first.
// Any missing coordinate yields Within=false and a nil distance.
func WithinRadius(lat1, lon1, lat2, lon2 *float64, radiusKM float64) RadiusCheck {
	a, okA := Point(lat1, lon1)
	b, okB := Point(lat2, lon2)
	if !okA || !okB {
		return RadiusCheck{}
	}
	return WithinPoints(a, b, radiusKM)
}

// WithinPoints is WithinRadius for points built with Point.
func WithinPoints(a, b *geom.Point, radiusKM float64) RadiusCheck {
	d := DistancePoints(a, b)
	return RadiusCheck{Within: d <= radiusKM, DistanceKM: &d}
}

// Point builds an XY point (x=lon, y=lat). Returns false unless both values are set.
func Point(lat, lon *float64) (*geom.Point, bool) {
	if lat == nil || lon == nil {
		return nil, false
	}
	return geom.NewPointFlat(geom.XY, []float64{*lon, *lat}).SetSRID(4326), true
}

// DistancePoints is DistanceKM for points built with Point.
func DistancePoints(a, b *geom.Point) float64 {
	return DistanceKM(a.Y(), a.X(), b.Y(), b.X())
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
