// Package catchment orchestrates radius searches over municipality data
// into full catchment analyses: descriptive statistics per potential
// column, distance-weighted aggregates, feasibility tiers, and transport
// metrics.
package catchment

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cp2b/biogas-cli/internal/analysis"
	"github.com/cp2b/biogas-cli/internal/geo"
	"github.com/cp2b/biogas-cli/internal/model"
	"github.com/cp2b/biogas-cli/internal/scenario"
)

// Tier is one feasibility bucket, matched top-down by MinPotential.
type Tier struct {
	Name         string  `yaml:"name" mapstructure:"name"`
	MinPotential float64 `yaml:"min_potential" mapstructure:"min_potential"`
	Description  string  `yaml:"description" mapstructure:"description"`
}

// Config holds the domain constants of the analysis. These are assumptions
// of the original study, not derived values; they are configuration so
// deployments can tune them.
type Config struct {
	MaxRadiusKM    float64    `yaml:"max_radius_km" mapstructure:"max_radius_km"`
	Region         model.BBox `yaml:"region" mapstructure:"region"`
	KWhPerM3       float64    `yaml:"kwh_per_m3" mapstructure:"kwh_per_m3"`
	CapacityFactor float64    `yaml:"capacity_factor" mapstructure:"capacity_factor"`
	TotalColumn    string     `yaml:"total_column" mapstructure:"total_column"`
	Tiers          []Tier     `yaml:"tiers" mapstructure:"tiers"`
}

// DefaultConfig returns the constants of the original São Paulo study.
func DefaultConfig() Config {
	return Config{
		MaxRadiusKM: 200,
		// São Paulo State, loosely: a soft check only.
		Region:         model.BBox{MinLat: -25.5, MinLon: -53.5, MaxLat: -19.5, MaxLon: -44.0},
		KWhPerM3:       6,
		CapacityFactor: 0.8,
		TotalColumn:    "total",
		Tiers: []Tier{
			{Name: "Very High", MinPotential: 50_000_000, Description: "Excellent region for large-scale biogas plants"},
			{Name: "High", MinPotential: 20_000_000, Description: "Strong potential for commercial plants"},
			{Name: "Medium", MinPotential: 5_000_000, Description: "Viable for mid-size cooperative plants"},
			{Name: "Low", MinPotential: 1_000_000, Description: "Only small community digesters are viable"},
			{Name: "Very Low", MinPotential: 0, Description: "Insufficient potential for dedicated plants"},
		},
	}
}

// concentrationBands are the fixed distance rings of the transport metrics.
var concentrationBands = [][2]float64{{0, 10}, {10, 25}, {25, 50}, {50, 100}}

// Request is one catchment analysis request.
type Request struct {
	Center   model.GeoPoint     `json:"center"`
	RadiusKM float64            `json:"radius_km"`
	Columns  []string           `json:"columns,omitempty"`
	Scenario *scenario.Scenario `json:"scenario,omitempty"`
}

// Analyzer runs catchment analyses against an in-memory municipality set.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an Analyzer with the given config.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.MaxRadiusKM <= 0 {
		cfg.MaxRadiusKM = def.MaxRadiusKM
	}
	if cfg.Region == (model.BBox{}) {
		cfg.Region = def.Region
	}
	if cfg.KWhPerM3 <= 0 {
		cfg.KWhPerM3 = def.KWhPerM3
	}
	if cfg.CapacityFactor <= 0 {
		cfg.CapacityFactor = def.CapacityFactor
	}
	if cfg.TotalColumn == "" {
		cfg.TotalColumn = def.TotalColumn
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = def.Tiers
	}
	return &Analyzer{cfg: cfg}
}

// Analyze validates the request, runs the radius search, and derives all
// catchment metrics. Invalid centers or radii yield analysis.ErrInvalidInput;
// an empty catchment is not an error, it returns a zero-count result with
// an explanatory message.
func (a *Analyzer) Analyze(ctx context.Context, req Request, ms []model.Municipality) (*model.CatchmentResult, error) {
	if err := req.Center.Validate(); err != nil {
		return nil, eris.Wrap(analysis.ErrInvalidInput, err.Error())
	}
	if req.RadiusKM <= 0 || req.RadiusKM > a.cfg.MaxRadiusKM {
		return nil, eris.Wrapf(analysis.ErrInvalidInput,
			"catchment: radius %.1f km outside (0, %.0f]", req.RadiusKM, a.cfg.MaxRadiusKM)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "catchment: analyze")
	}

	result := &model.CatchmentResult{
		Center:   req.Center,
		RadiusKM: req.RadiusKM,
	}

	if !a.cfg.Region.Contains(req.Center) {
		result.OutsideRegion = true
		zap.L().Warn("catchment: center outside configured region",
			zap.Float64("lat", req.Center.Lat),
			zap.Float64("lon", req.Center.Lon))
	}

	found := geo.WithinRadius(ms, req.Center, req.RadiusKM)
	if req.Scenario != nil {
		result.Scenario = req.Scenario.Name
		for i := range found {
			found[i] = req.Scenario.Apply(found[i])
		}
	}

	result.Municipalities = found
	result.Count = len(found)
	if len(found) == 0 {
		result.Message = "no municipalities within the analysis radius"
		zap.L().Info("catchment: empty catchment",
			zap.Float64("radius_km", req.RadiusKM))
		return result, nil
	}

	columns := req.Columns
	if len(columns) == 0 {
		columns = []string{a.cfg.TotalColumn}
	}

	distances := make([]float64, len(found))
	for i, m := range found {
		distances[i] = m.DistanceKM
	}

	result.Statistics = make(map[string]model.Statistics, len(columns))
	for _, col := range columns {
		values := make([]float64, len(found))
		for i, m := range found {
			values[i] = m.PotentialOf(col)
		}
		s := computeStatistics(values)
		s.WeightedMean = weightedMean(values, distances)
		result.Statistics[col] = s
	}

	result.Feasibility = a.assessFeasibility(result.Statistics[a.cfg.TotalColumn].Total, columns)
	result.Transport = transportScores(found, a.cfg.TotalColumn)
	result.Concentration = concentration(found, a.cfg.TotalColumn)

	zap.L().Info("catchment: analysis complete",
		zap.Int("municipalities", result.Count),
		zap.Float64("radius_km", req.RadiusKM))

	return result, nil
}

// assessFeasibility buckets the summed potential into a tier and estimates
// plant capacity as m3/yr * kWh/m3 * capacity factor / (8760 h * 1000).
func (a *Analyzer) assessFeasibility(total float64, columns []string) *model.Feasibility {
	hasTotal := false
	for _, c := range columns {
		if c == a.cfg.TotalColumn {
			hasTotal = true
			break
		}
	}
	if !hasTotal {
		return nil
	}

	f := &model.Feasibility{
		TotalPotential:  total,
		PlantCapacityMW: total * a.cfg.KWhPerM3 * a.cfg.CapacityFactor / (8760 * 1000),
	}
	for _, tier := range a.cfg.Tiers {
		if total >= tier.MinPotential {
			f.Tier = tier.Name
			f.Description = tier.Description
			break
		}
	}
	return f
}

// transportScores ranks each municipality by potential discounted by haul
// distance: potential / (distance + 1).
func transportScores(ms []model.Municipality, column string) []model.TransportScore {
	scores := make([]model.TransportScore, 0, len(ms))
	for _, m := range ms {
		scores = append(scores, model.TransportScore{
			MunicipalityID: m.ID,
			Name:           m.Name,
			DistanceKM:     m.DistanceKM,
			Score:          m.PotentialOf(column) / (m.DistanceKM + 1),
		})
	}
	return scores
}

// concentration aggregates municipalities into fixed distance bands.
func concentration(ms []model.Municipality, column string) []model.DistanceBand {
	bands := make([]model.DistanceBand, len(concentrationBands))
	for i, b := range concentrationBands {
		bands[i] = model.DistanceBand{MinKM: b[0], MaxKM: b[1]}
	}
	for _, m := range ms {
		for i := range bands {
			if m.DistanceKM >= bands[i].MinKM && m.DistanceKM < bands[i].MaxKM {
				bands[i].Count++
				bands[i].Potential += m.PotentialOf(column)
				break
			}
		}
	}
	return bands
}
