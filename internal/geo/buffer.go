package geo

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/cp2b/biogas-cli/internal/model"
)

// bufferSegments is the number of arc segments in a circular buffer ring.
const bufferSegments = 64

// CircularBuffer approximates a circle of radiusKM around center as a
// closed polygon in degree space. Longitudinal extent is widened by
// 1/cos(lat) so the ring stays roughly circular on the ground away from
// the equator.
func CircularBuffer(center model.GeoPoint, radiusKM float64) *geom.Polygon {
	latDeg := radiusKM / KMPerDegreeLat
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	lonDeg := latDeg / cosLat

	coords := make([]geom.Coord, 0, bufferSegments+1)
	for i := 0; i < bufferSegments; i++ {
		theta := 2 * math.Pi * float64(i) / bufferSegments
		coords = append(coords, geom.Coord{
			center.Lon + lonDeg*math.Cos(theta),
			center.Lat + latDeg*math.Sin(theta),
		})
	}
	coords = append(coords, coords[0])

	p := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{coords})
	p.SetSRID(4326)
	return p
}
