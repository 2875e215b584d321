package geo

import (
	"sort"

	"github.com/cp2b/biogas-cli/internal/model"
)

// WithinRadius returns copies of the municipalities whose centroid lies
// within radiusKM of center, annotated with their distance and sorted
// nearest-first. Records without usable coordinates are skipped. The input
// slice is never mutated.
func WithinRadius(ms []model.Municipality, center model.GeoPoint, radiusKM float64) []model.Municipality {
	var out []model.Municipality
	for _, m := range ms {
		if !m.HasCoordinates() {
			continue
		}
		d := Haversine(center.Lat, center.Lon, m.Lat, m.Lon)
		if d > radiusKM {
			continue
		}
		c := m.Clone()
		c.DistanceKM = d
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKM < out[j].DistanceKM
	})
	return out
}
