package model

import "math"

// Municipality is a single municipality record with pre-computed biogas
// potential figures, keyed by category (e.g. "total", "cana", "citros").
// Records are read-only inputs to the analyzers; DistanceKM is the only
// field an analysis annotates, and always on a copy.
type Municipality struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Lat        float64            `json:"lat"`
	Lon        float64            `json:"lon"`
	Population int64              `json:"population"`
	Potential  map[string]float64 `json:"potential"`
	DistanceKM float64            `json:"distance_km,omitempty"`
}

// Point returns the municipality's coordinate pair.
func (m Municipality) Point() GeoPoint {
	return GeoPoint{Lat: m.Lat, Lon: m.Lon}
}

// HasCoordinates reports whether both coordinates are present and finite.
// Loaders encode missing coordinates as NaN.
func (m Municipality) HasCoordinates() bool {
	return !math.IsNaN(m.Lat) && !math.IsNaN(m.Lon) &&
		!math.IsInf(m.Lat, 0) && !math.IsInf(m.Lon, 0)
}

// PotentialOf returns the potential value for a category, or 0 when the
// category is absent (missing columns degrade gracefully).
func (m Municipality) PotentialOf(category string) float64 {
	return m.Potential[category]
}

// Clone returns a deep copy, so annotations never touch the source record.
func (m Municipality) Clone() Municipality {
	c := m
	if m.Potential != nil {
		c.Potential = make(map[string]float64, len(m.Potential))
		for k, v := range m.Potential {
			c.Potential[k] = v
		}
	}
	return c
}
