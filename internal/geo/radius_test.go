package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cp2b/biogas-cli/internal/model"
)

func testMunicipalities() []model.Municipality {
	return []model.Municipality{
		{ID: "3538709", Name: "Piracicaba", Lat: -22.7253, Lon: -47.6489, Potential: map[string]float64{"total": 45_000_000}},
		{ID: "3550308", Name: "São Paulo", Lat: -23.5505, Lon: -46.6333, Potential: map[string]float64{"total": 12_000_000}},
		{ID: "3509502", Name: "Campinas", Lat: -22.9099, Lon: -47.0626, Potential: map[string]float64{"total": 20_000_000}},
		{ID: "3529005", Name: "Marília", Lat: -22.2139, Lon: -49.9458, Potential: map[string]float64{"total": 8_000_000}},
	}
}

func TestWithinRadiusFiltersAndOrders(t *testing.T) {
	center := model.GeoPoint{Lat: -22.9099, Lon: -47.0626} // Campinas
	got := WithinRadius(testMunicipalities(), center, 100)

	require.NotEmpty(t, got)
	assert.Equal(t, "Campinas", got[0].Name)
	assert.Zero(t, got[0].DistanceKM)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].DistanceKM, got[i-1].DistanceKM)
		assert.LessOrEqual(t, got[i].DistanceKM, 100.0)
	}
	// Marília is ~300 km away.
	for _, m := range got {
		assert.NotEqual(t, "Marília", m.Name)
	}
}

func TestWithinRadiusSmallRadius(t *testing.T) {
	center := model.GeoPoint{Lat: -22.7253, Lon: -47.6489} // Piracicaba
	got := WithinRadius(testMunicipalities(), center, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "Piracicaba", got[0].Name)
}

func TestWithinRadiusMonotonic(t *testing.T) {
	center := model.GeoPoint{Lat: -22.9099, Lon: -47.0626}
	small := WithinRadius(testMunicipalities(), center, 60)
	large := WithinRadius(testMunicipalities(), center, 200)
	assert.LessOrEqual(t, len(small), len(large))

	inLarge := map[string]bool{}
	for _, m := range large {
		inLarge[m.ID] = true
	}
	for _, m := range small {
		assert.True(t, inLarge[m.ID])
	}
}

func TestWithinRadiusSkipsMissingCoordinates(t *testing.T) {
	ms := append(testMunicipalities(), model.Municipality{
		ID: "9999999", Name: "NoCoords", Lat: math.NaN(), Lon: math.NaN(),
	})
	got := WithinRadius(ms, model.GeoPoint{Lat: -22.9099, Lon: -47.0626}, 5000)
	for _, m := range got {
		assert.NotEqual(t, "NoCoords", m.Name)
	}
}

func TestWithinRadiusEmptyInput(t *testing.T) {
	got := WithinRadius(nil, model.GeoPoint{Lat: -22.9, Lon: -47.0}, 50)
	assert.Empty(t, got)
}

func TestWithinRadiusZeroRadius(t *testing.T) {
	center := model.GeoPoint{Lat: -22.7253, Lon: -47.6489}
	got := WithinRadius(testMunicipalities(), center, 0)
	require.Len(t, got, 1)
	assert.Equal(t, "Piracicaba", got[0].Name)
}

func TestWithinRadiusDoesNotMutateInput(t *testing.T) {
	ms := testMunicipalities()
	got := WithinRadius(ms, model.GeoPoint{Lat: -22.9099, Lon: -47.0626}, 200)
	require.NotEmpty(t, got)
	got[0].Potential["total"] = -1
	got[0].DistanceKM = 12345

	for _, m := range ms {
		assert.Zero(t, m.DistanceKM)
		assert.Greater(t, m.Potential["total"], 0.0)
	}
}
