package raster

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/cp2b/biogas-cli/internal/analysis"
)

// webMercatorRadius is the sphere radius of EPSG:3857, in meters.
const webMercatorRadius = 6378137.0

// forward transforms a WGS84 lon/lat into the raster CRS. Only EPSG:4326
// (identity) and EPSG:3857 (spherical mercator) are supported; MapBiomas
// collections ship in 4326 and the web-tiled derivatives in 3857.
func forward(epsg int, lon, lat float64) (x, y float64, err error) {
	switch epsg {
	case 4326:
		return lon, lat, nil
	case 3857:
		x = webMercatorRadius * lon * math.Pi / 180
		y = webMercatorRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
		return x, y, nil
	default:
		return 0, 0, eris.Wrapf(analysis.ErrComputation, "raster: unsupported CRS EPSG:%d", epsg)
	}
}

// inverseLat recovers the WGS84 latitude of a raster CRS y coordinate.
// The pixel-to-hectare conversion is latitude dependent, so zonal stats
// need this even for projected rasters.
func inverseLat(epsg int, y float64) (float64, error) {
	switch epsg {
	case 4326:
		return y, nil
	case 3857:
		return (2*math.Atan(math.Exp(y/webMercatorRadius)) - math.Pi/2) * 180 / math.Pi, nil
	default:
		return 0, eris.Wrapf(analysis.ErrComputation, "raster: unsupported CRS EPSG:%d", epsg)
	}
}
