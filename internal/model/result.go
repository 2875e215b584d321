package model

import "time"

// Statistics summarizes a single potential column over a catchment.
type Statistics struct {
	Total        float64         `json:"total"`
	Mean         float64         `json:"mean"`
	Median       float64         `json:"median"`
	Std          float64         `json:"std"`
	Min          float64         `json:"min"`
	Max          float64         `json:"max"`
	Count        int             `json:"count"`
	Percentiles  map[int]float64 `json:"percentiles"`
	Distribution Distribution    `json:"distribution"`
	WeightedMean float64         `json:"weighted_mean"`
}

// Distribution buckets municipalities by potential magnitude.
type Distribution struct {
	Zeros  int `json:"zeros"`
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Feasibility is the tier assessment for a catchment's total potential.
type Feasibility struct {
	Tier            string  `json:"tier"`
	Description     string  `json:"description"`
	TotalPotential  float64 `json:"total_potential_m3_year"`
	PlantCapacityMW float64 `json:"plant_capacity_mw"`
}

// DistanceBand is one ring of the concentration breakdown.
type DistanceBand struct {
	MinKM     float64 `json:"min_km"`
	MaxKM     float64 `json:"max_km"`
	Count     int     `json:"count"`
	Potential float64 `json:"potential"`
}

// TransportScore ranks a municipality by potential discounted by distance.
type TransportScore struct {
	MunicipalityID string  `json:"municipality_id"`
	Name           string  `json:"name"`
	DistanceKM     float64 `json:"distance_km"`
	Score          float64 `json:"score"`
}

// CatchmentResult is the full output of a catchment analysis.
type CatchmentResult struct {
	Center         GeoPoint              `json:"center"`
	RadiusKM       float64               `json:"radius_km"`
	Scenario       string                `json:"scenario,omitempty"`
	OutsideRegion  bool                  `json:"outside_region,omitempty"`
	Count          int                   `json:"municipalities_found"`
	Message        string                `json:"message,omitempty"`
	Municipalities []Municipality        `json:"municipalities,omitempty"`
	Statistics     map[string]Statistics `json:"statistics,omitempty"`
	Feasibility    *Feasibility          `json:"feasibility,omitempty"`
	Transport      []TransportScore      `json:"transport,omitempty"`
	Concentration  []DistanceBand        `json:"concentration,omitempty"`
}

// ClassArea is the per-class share of a zonal raster analysis.
type ClassArea struct {
	ClassID    int     `json:"class_id"`
	Name       string  `json:"name"`
	AreaHa     float64 `json:"area_ha"`
	Percentage float64 `json:"percentage"`
	PixelCount int     `json:"pixel_count"`
	Color      string  `json:"color,omitempty"`
}

// ZonalResult is the output of a zonal raster analysis over a circular buffer.
type ZonalResult struct {
	Center      GeoPoint    `json:"center"`
	RadiusKM    float64     `json:"radius_km"`
	TotalAreaHa float64     `json:"total_area_ha"`
	TotalAreaKM float64     `json:"total_area_km2"`
	PixelCount  int         `json:"pixel_count"`
	Source      string      `json:"source"`
	Classes     []ClassArea `json:"classes"`
}

// LocationCandidate is a scored grid cell from a location search.
type LocationCandidate struct {
	Point          GeoPoint `json:"point"`
	Score          float64  `json:"score"`
	Count          int      `json:"municipalities_found"`
	TotalPotential float64  `json:"total_potential"`
}

// AnalysisKind labels a persisted analysis run.
type AnalysisKind string

const (
	AnalysisCatchment AnalysisKind = "catchment"
	AnalysisZonal     AnalysisKind = "zonal"
	AnalysisOptimize  AnalysisKind = "optimize"
)

// AnalysisRun is a persisted analysis: parameters and result as JSON blobs.
type AnalysisRun struct {
	ID        string       `json:"id"`
	Kind      AnalysisKind `json:"kind"`
	Params    string       `json:"params"`
	Result    string       `json:"result"`
	CreatedAt time.Time    `json:"created_at"`
}
