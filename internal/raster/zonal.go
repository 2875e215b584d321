package raster

import (
	"context"
	"math"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/cp2b/biogas-cli/internal/analysis"
	"github.com/cp2b/biogas-cli/internal/geo"
	"github.com/cp2b/biogas-cli/internal/model"
)

// metersPerDegreeLat is the north-south extent of one degree of latitude.
// The east-west extent shrinks by cos(latitude); the per-pixel hectare
// conversion must apply that correction or areas drift with latitude.
const metersPerDegreeLat = 111320.0

// Config holds the tunable zonal-statistics parameters.
type Config struct {
	// MinAreaHa drops classes whose masked area is at or below this
	// threshold (noise filter). The historical default is 0.01 ha.
	MinAreaHa float64
}

// DefaultConfig matches the thresholds of the original analysis.
func DefaultConfig() Config {
	return Config{MinAreaHa: 0.01}
}

// Analyzer computes zonal statistics for circular catchments.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an Analyzer with the given config.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.MinAreaHa <= 0 {
		cfg.MinAreaHa = DefaultConfig().MinAreaHa
	}
	return &Analyzer{cfg: cfg}
}

// ZonalStats masks the raster at path against a circular buffer around
// center and tallies land-use class areas inside it.
//
// Error kinds: a missing raster or a mask with no valid pixels yields
// analysis.ErrNoData; an unreadable raster or unsupported CRS yields
// analysis.ErrComputation; an invalid center or radius yields
// analysis.ErrInvalidInput.
func (a *Analyzer) ZonalStats(ctx context.Context, path string, center model.GeoPoint, radiusKM float64, legend Legend) (*model.ZonalResult, error) {
	if err := center.Validate(); err != nil {
		return nil, eris.Wrap(analysis.ErrInvalidInput, err.Error())
	}
	if radiusKM <= 0 {
		return nil, eris.Wrapf(analysis.ErrInvalidInput, "raster: radius %.2f km must be positive", radiusKM)
	}

	if _, err := os.Stat(path); err != nil {
		zap.L().Warn("raster: file not found", zap.String("path", path))
		return nil, eris.Wrapf(analysis.ErrNoData, "raster: %s not found", path)
	}

	r, err := Open(path)
	if err != nil {
		zap.L().Warn("raster: open failed", zap.String("path", path), zap.Error(err))
		return nil, eris.Wrap(analysis.ErrComputation, eris.ToString(err, false))
	}

	ring, err := projectRing(geo.CircularBuffer(center, radiusKM), r.EPSG)
	if err != nil {
		return nil, err
	}

	counts, areas, pixels, err := a.tally(ctx, r, ring)
	if err != nil {
		return nil, err
	}
	if pixels == 0 {
		zap.L().Warn("raster: no valid pixels in buffer",
			zap.String("path", path),
			zap.Float64("lat", center.Lat),
			zap.Float64("lon", center.Lon),
			zap.Float64("radius_km", radiusKM))
		return nil, eris.Wrap(analysis.ErrNoData, "raster: no valid pixels in masked area")
	}

	result := &model.ZonalResult{
		Center:     center,
		RadiusKM:   radiusKM,
		PixelCount: pixels,
		Source:     path,
	}

	var total float64
	for code, areaHa := range areas {
		if areaHa <= a.cfg.MinAreaHa {
			continue
		}
		result.Classes = append(result.Classes, model.ClassArea{
			ClassID:    code,
			Name:       legend.Name(code),
			AreaHa:     areaHa,
			PixelCount: counts[code],
			Color:      legend.Color(code),
		})
		total += areaHa
	}

	result.TotalAreaHa = total
	result.TotalAreaKM = total / 100
	for i := range result.Classes {
		if total > 0 {
			result.Classes[i].Percentage = result.Classes[i].AreaHa / total * 100
		}
	}
	sort.SliceStable(result.Classes, func(i, j int) bool {
		return result.Classes[i].AreaHa > result.Classes[j].AreaHa
	})

	zap.L().Info("raster: zonal stats complete",
		zap.String("path", path),
		zap.Int("classes", len(result.Classes)),
		zap.Int("pixels", pixels),
		zap.Float64("total_area_ha", total))

	return result, nil
}

// tally walks the buffer's pixel window and accumulates per-class pixel
// counts and hectare areas. Area per pixel depends on the pixel row's
// latitude, so the conversion factor is recomputed once per row.
func (a *Analyzer) tally(ctx context.Context, r *Raster, ring []float64) (map[int]int, map[int]float64, int, error) {
	minX, minY, maxX, maxY := ringBounds(ring)
	c0, r0, c1, r1 := r.Window(minX, minY, maxX, maxY)

	counts := make(map[int]int)
	areas := make(map[int]float64)
	pixels := 0

	for row := r0; row < r1; row++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, eris.Wrap(err, "raster: tally cancelled")
		}

		_, rowY := r.PixelCenter(0, row)
		lat, err := inverseLat(r.EPSG, rowY)
		if err != nil {
			return nil, nil, 0, err
		}
		pixelHa := pixelAreaHa(r, lat)

		for col := c0; col < c1; col++ {
			x, y := r.PixelCenter(col, row)
			if !xy.IsPointInRing(geom.XY, geom.Coord{x, y}, ring) {
				continue
			}
			v, ok := r.ValueAt(col, row)
			if !ok {
				continue
			}
			code := int(v)
			counts[code]++
			areas[code] += pixelHa
			pixels++
		}
	}

	return counts, areas, pixels, nil
}

// pixelAreaHa converts one pixel at the given latitude to hectares.
func pixelAreaHa(r *Raster, lat float64) float64 {
	cosLat := math.Cos(lat * math.Pi / 180)
	switch r.EPSG {
	case 3857:
		// Mercator inflates both axes by 1/cos(lat); undo both.
		return r.ScaleX * r.ScaleY * cosLat * cosLat / 10000
	default:
		// Geographic: degrees to meters, east-west corrected by latitude.
		wM := r.ScaleX * metersPerDegreeLat * cosLat
		hM := r.ScaleY * metersPerDegreeLat
		return wM * hM / 10000
	}
}

// projectRing transforms the buffer's outer ring into the raster CRS and
// flattens it for point-in-ring testing.
func projectRing(buffer *geom.Polygon, epsg int) ([]float64, error) {
	ring := buffer.LinearRing(0)
	n := ring.NumCoords()
	flat := make([]float64, 0, n*2)
	for i := 0; i < n; i++ {
		c := ring.Coord(i)
		x, y, err := forward(epsg, c.X(), c.Y())
		if err != nil {
			return nil, err
		}
		flat = append(flat, x, y)
	}
	return flat, nil
}

// ringBounds returns the bounding box of a flat coordinate ring.
func ringBounds(ring []float64) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for i := 0; i+1 < len(ring); i += 2 {
		minX = math.Min(minX, ring[i])
		maxX = math.Max(maxX, ring[i])
		minY = math.Min(minY, ring[i+1])
		maxY = math.Max(maxY, ring[i+1])
	}
	return minX, minY, maxX, maxY
}
