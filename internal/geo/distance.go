// Package geo holds the distance, radius-search and buffer primitives every
// analyzer builds on. Distances are great-circle (haversine) on a spherical
// earth, which is accurate to well under 0.5% at regional scale.
package geo

import "math"

const (
	// EarthRadiusKM is the mean earth radius used by Haversine.
	EarthRadiusKM = 6371.0

	// KMPerDegreeLat approximates one degree of latitude in kilometers,
	// used for degree-based buffer construction.
	KMPerDegreeLat = 111.0
)

// Haversine returns the great-circle distance in kilometers between two
// WGS84 coordinate pairs.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKM * c
}
