// Package optimize performs a brute-force grid search for plant sites:
// every grid point inside the bounds gets a fixed-radius catchment
// analysis, and candidates are ranked by a weighted multi-criteria score.
//
// The search is O(grid points x catchment cost) with no spatial index. It
// is intended for coarse grids over a bounded region; the resolution flag
// is the only safety valve.
package optimize

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cp2b/biogas-cli/internal/analysis"
	"github.com/cp2b/biogas-cli/internal/catchment"
	"github.com/cp2b/biogas-cli/internal/model"
)

// Config holds the scoring weights and normalization constants. Normalized
// terms are clamped to 1.0 before weighting, so Score stays in [0, 1].
type Config struct {
	RadiusKM   float64 `yaml:"radius_km" mapstructure:"radius_km"`
	TopN       int     `yaml:"top_n" mapstructure:"top_n"`
	Workers    int     `yaml:"workers" mapstructure:"workers"`
	Weights    Weights `yaml:"weights" mapstructure:"weights"`
	Norms      Norms   `yaml:"norms" mapstructure:"norms"`
}

// Weights are the multi-criteria score weights; they sum to 1.0.
type Weights struct {
	Potential     float64 `yaml:"potential" mapstructure:"potential"`
	Count         float64 `yaml:"count" mapstructure:"count"`
	Concentration float64 `yaml:"concentration" mapstructure:"concentration"`
	Transport     float64 `yaml:"transport" mapstructure:"transport"`
}

// Norms are the fixed normalization constants each raw term is divided by.
type Norms struct {
	Potential     float64 `yaml:"potential" mapstructure:"potential"`           // m3/yr
	Count         float64 `yaml:"count" mapstructure:"count"`                   // municipalities
	Concentration float64 `yaml:"concentration" mapstructure:"concentration"`   // m3 per municipality
	Transport     float64 `yaml:"transport" mapstructure:"transport"`           // transport units
}

// DefaultConfig returns the weights and constants of the original study.
func DefaultConfig() Config {
	return Config{
		RadiusKM: 30,
		TopN:     10,
		Workers:  1,
		Weights:  Weights{Potential: 0.4, Count: 0.2, Concentration: 0.2, Transport: 0.2},
		Norms:    Norms{Potential: 1_000_000, Count: 10, Concentration: 500_000, Transport: 1_000_000},
	}
}

// Optimizer runs the grid search on top of a catchment analyzer.
type Optimizer struct {
	cfg      Config
	analyzer *catchment.Analyzer
}

// New creates an Optimizer.
func New(cfg Config, analyzer *catchment.Analyzer) *Optimizer {
	def := DefaultConfig()
	if cfg.RadiusKM <= 0 {
		cfg.RadiusKM = def.RadiusKM
	}
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	zeroW := Weights{}
	if cfg.Weights == zeroW {
		cfg.Weights = def.Weights
	}
	zeroN := Norms{}
	if cfg.Norms == zeroN {
		cfg.Norms = def.Norms
	}
	return &Optimizer{cfg: cfg, analyzer: analyzer}
}

// FindOptimalLocations grid-searches bounds at the given resolution and
// returns the top candidates, descending by score, ties kept in grid
// order. Grid rows are analyzed on an errgroup worker pool; the merged
// result is identical to a sequential run.
func (o *Optimizer) FindOptimalLocations(ctx context.Context, ms []model.Municipality, bounds model.BBox, resolutionDeg float64) ([]model.LocationCandidate, error) {
	if err := bounds.Validate(); err != nil {
		return nil, eris.Wrap(analysis.ErrInvalidInput, err.Error())
	}
	if resolutionDeg <= 0 {
		return nil, eris.Wrapf(analysis.ErrInvalidInput, "optimize: resolution %.4f must be positive", resolutionDeg)
	}
	if len(ms) == 0 {
		return nil, eris.Wrap(analysis.ErrNoData, "optimize: no municipalities to search over")
	}

	rows := int(math.Floor((bounds.MaxLat-bounds.MinLat)/resolutionDeg)) + 1
	cols := int(math.Floor((bounds.MaxLon-bounds.MinLon)/resolutionDeg)) + 1

	zap.L().Info("optimize: starting grid search",
		zap.Int("rows", rows),
		zap.Int("cols", cols),
		zap.Float64("radius_km", o.cfg.RadiusKM),
		zap.Int("workers", o.cfg.Workers))

	rowResults := make([][]model.LocationCandidate, rows)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	for i := 0; i < rows; i++ {
		g.Go(func() error {
			lat := bounds.MinLat + float64(i)*resolutionDeg
			var found []model.LocationCandidate
			for j := 0; j < cols; j++ {
				lon := bounds.MinLon + float64(j)*resolutionDeg
				cand, err := o.evaluate(gctx, ms, model.GeoPoint{Lat: lat, Lon: lon})
				if err != nil {
					return err
				}
				if cand != nil {
					found = append(found, *cand)
				}
			}
			rowResults[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "optimize: grid search")
	}

	var candidates []model.LocationCandidate
	for _, row := range rowResults {
		candidates = append(candidates, row...)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > o.cfg.TopN {
		candidates = candidates[:o.cfg.TopN]
	}

	zap.L().Info("optimize: grid search complete",
		zap.Int("candidates", len(candidates)))

	return candidates, nil
}

// evaluate scores one grid point; nil means the point was skipped (outside
// the soft regional bounds or an empty catchment).
func (o *Optimizer) evaluate(ctx context.Context, ms []model.Municipality, p model.GeoPoint) (*model.LocationCandidate, error) {
	res, err := o.analyzer.Analyze(ctx, catchment.Request{
		Center:   p,
		RadiusKM: o.cfg.RadiusKM,
	}, ms)
	if err != nil {
		if eris.Is(err, analysis.ErrInvalidInput) {
			return nil, nil // grid point itself invalid, skip
		}
		return nil, err
	}
	if res.OutsideRegion || res.Count == 0 {
		return nil, nil
	}

	stats := res.Statistics[statColumn(res)]
	totalPotential := stats.Total

	var transport float64
	for _, ts := range res.Transport {
		transport += ts.Score
	}
	concentration := totalPotential / float64(res.Count)

	w, n := o.cfg.Weights, o.cfg.Norms
	score := w.Potential*clamp01(totalPotential/n.Potential) +
		w.Count*clamp01(float64(res.Count)/n.Count) +
		w.Concentration*clamp01(concentration/n.Concentration) +
		w.Transport*clamp01(transport/n.Transport)

	return &model.LocationCandidate{
		Point:          p,
		Score:          score,
		Count:          res.Count,
		TotalPotential: totalPotential,
	}, nil
}

// statColumn returns the single column the optimizer analyzes.
func statColumn(res *model.CatchmentResult) string {
	for col := range res.Statistics {
		return col
	}
	return ""
}

func clamp01(v float64) float64 {
	return math.Min(v, 1.0)
}
