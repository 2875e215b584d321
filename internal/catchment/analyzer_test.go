package catchment

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cp2b/biogas-cli/internal/analysis"
	"github.com/cp2b/biogas-cli/internal/model"
	"github.com/cp2b/biogas-cli/internal/scenario"
)

func sampleMunicipalities() []model.Municipality {
	return []model.Municipality{
		{ID: "3538709", Name: "Piracicaba", Lat: -22.7253, Lon: -47.6489,
			Potential: map[string]float64{"total": 45_000_000, "cana": 40_000_000}},
		{ID: "3532009", Name: "Limeira", Lat: -22.5645, Lon: -47.4016,
			Potential: map[string]float64{"total": 15_000_000, "cana": 9_000_000}},
		{ID: "3509502", Name: "Campinas", Lat: -22.9099, Lon: -47.0626,
			Potential: map[string]float64{"total": 20_000_000, "cana": 5_000_000}},
		{ID: "3550308", Name: "São Paulo", Lat: -23.5505, Lon: -46.6333,
			Potential: map[string]float64{"total": 12_000_000, "cana": 0}},
	}
}

func TestAnalyze_FullResult(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	req := Request{
		Center:   model.GeoPoint{Lat: -22.7253, Lon: -47.6489},
		RadiusKM: 80,
		Columns:  []string{"total", "cana"},
	}

	res, err := a.Analyze(context.Background(), req, sampleMunicipalities())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Count) // São Paulo is ~100 km out
	assert.False(t, res.OutsideRegion)
	assert.Empty(t, res.Message)

	// Ascending distance, Piracicaba first at zero.
	assert.Equal(t, "Piracicaba", res.Municipalities[0].Name)
	assert.Zero(t, res.Municipalities[0].DistanceKM)

	total := res.Statistics["total"]
	assert.Equal(t, 80_000_000.0, total.Total)
	assert.Equal(t, 3, total.Count)
	assert.Greater(t, total.WeightedMean, 0.0)

	cana := res.Statistics["cana"]
	assert.Equal(t, 54_000_000.0, cana.Total)

	require.NotNil(t, res.Feasibility)
	assert.Equal(t, "Very High", res.Feasibility.Tier)

	require.Len(t, res.Transport, 3)
	assert.Equal(t, "Piracicaba", res.Transport[0].Name)
	// At distance zero the transport score equals the potential.
	assert.Equal(t, 45_000_000.0, res.Transport[0].Score)

	require.Len(t, res.Concentration, 4)
	assert.Equal(t, 1, res.Concentration[0].Count) // 0-10 km: Piracicaba itself
	var bandTotal int
	for _, b := range res.Concentration {
		bandTotal += b.Count
	}
	assert.Equal(t, 3, bandTotal)
}

func TestAnalyze_Validation(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	ms := sampleMunicipalities()

	cases := []Request{
		{Center: model.GeoPoint{Lat: -91, Lon: -47}, RadiusKM: 50},
		{Center: model.GeoPoint{Lat: -22, Lon: 181}, RadiusKM: 50},
		{Center: model.GeoPoint{Lat: -22.7, Lon: -47.6}, RadiusKM: 0},
		{Center: model.GeoPoint{Lat: -22.7, Lon: -47.6}, RadiusKM: 250},
	}
	for _, req := range cases {
		_, err := a.Analyze(context.Background(), req, ms)
		require.Error(t, err)
		assert.True(t, eris.Is(err, analysis.ErrInvalidInput), "request %+v", req)
	}
}

func TestAnalyze_OutsideRegionIsSoft(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())

	// Rio de Janeiro: valid coordinates, outside the São Paulo box.
	req := Request{Center: model.GeoPoint{Lat: -22.9068, Lon: -43.1729}, RadiusKM: 50}
	res, err := a.Analyze(context.Background(), req, sampleMunicipalities())

	require.NoError(t, err)
	assert.True(t, res.OutsideRegion)
	assert.Zero(t, res.Count)
}

func TestAnalyze_EmptyCatchment(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	req := Request{Center: model.GeoPoint{Lat: -20.0, Lon: -50.0}, RadiusKM: 10}

	res, err := a.Analyze(context.Background(), req, sampleMunicipalities())
	require.NoError(t, err)

	assert.Zero(t, res.Count)
	assert.NotEmpty(t, res.Message)
	assert.Nil(t, res.Statistics)
	assert.Nil(t, res.Feasibility)
}

func TestAnalyze_FeasibilityTiers(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	center := model.GeoPoint{Lat: -22.7253, Lon: -47.6489}

	cases := []struct {
		potential float64
		tier      string
	}{
		{60_000_000, "Very High"},
		{25_000_000, "High"},
		{7_000_000, "Medium"},
		{2_000_000, "Low"},
		{500_000, "Very Low"},
	}
	for _, tc := range cases {
		ms := []model.Municipality{{
			ID: "x", Name: "X", Lat: center.Lat, Lon: center.Lon,
			Potential: map[string]float64{"total": tc.potential},
		}}
		res, err := a.Analyze(context.Background(), Request{Center: center, RadiusKM: 10}, ms)
		require.NoError(t, err)
		require.NotNil(t, res.Feasibility)
		assert.Equal(t, tc.tier, res.Feasibility.Tier, "potential %.0f", tc.potential)
		assert.NotEmpty(t, res.Feasibility.Description)
	}
}

func TestAnalyze_PlantCapacity(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	center := model.GeoPoint{Lat: -22.7253, Lon: -47.6489}
	ms := []model.Municipality{{
		ID: "x", Name: "X", Lat: center.Lat, Lon: center.Lon,
		Potential: map[string]float64{"total": 10_000_000},
	}}

	res, err := a.Analyze(context.Background(), Request{Center: center, RadiusKM: 10}, ms)
	require.NoError(t, err)
	require.NotNil(t, res.Feasibility)

	// 10M m3 * 6 kWh/m3 * 0.8 / (8760 h * 1000) MW.
	assert.InDelta(t, 10_000_000*6*0.8/(8760*1000), res.Feasibility.PlantCapacityMW, 1e-9)
}

func TestAnalyze_ScenarioMultipliers(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	req := Request{
		Center:   model.GeoPoint{Lat: -22.7253, Lon: -47.6489},
		RadiusKM: 80,
		Columns:  []string{"total"},
		Scenario: &scenario.Scenario{Name: "conservative", Factors: map[string]float64{"total": 0.5}},
	}

	ms := sampleMunicipalities()
	res, err := a.Analyze(context.Background(), req, ms)
	require.NoError(t, err)

	assert.Equal(t, "conservative", res.Scenario)
	assert.Equal(t, 40_000_000.0, res.Statistics["total"].Total)
	// Source data keeps full potential.
	assert.Equal(t, 45_000_000.0, ms[0].Potential["total"])
}

func TestAnalyze_MissingColumnDegrades(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	req := Request{
		Center:   model.GeoPoint{Lat: -22.7253, Lon: -47.6489},
		RadiusKM: 80,
		Columns:  []string{"nonexistent"},
	}

	res, err := a.Analyze(context.Background(), req, sampleMunicipalities())
	require.NoError(t, err)

	s, ok := res.Statistics["nonexistent"]
	require.True(t, ok)
	assert.Zero(t, s.Total)
	assert.Equal(t, 3, s.Count)
	// No total column requested, so no feasibility assessment.
	assert.Nil(t, res.Feasibility)
}

func TestAnalyze_ContextCancelled(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, Request{
		Center: model.GeoPoint{Lat: -22.7, Lon: -47.6}, RadiusKM: 50,
	}, sampleMunicipalities())
	assert.Error(t, err)
}
