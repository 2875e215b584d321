package main

import (
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/cp2b/biogas-cli/internal/model"
)

func exportFixture() []model.Municipality {
	return []model.Municipality{
		{ID: "3538709", Name: "Piracicaba", Lat: -22.7253, Lon: -47.6489,
			Population: 407_252, Potential: map[string]float64{"total": 45_000_000, "cana": 40_000_000}},
		{ID: "9999999", Name: "Sem Coordenadas", Lat: math.NaN(), Lon: math.NaN(),
			Potential: map[string]float64{"total": 1_000_000}},
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, exportCSV(context.Background(), exportFixture(), path, false))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "name", "lat", "lon", "population", "cana", "total"}, rows[0])
	// Missing coordinates export as empty cells.
	assert.Empty(t, rows[2][2])
	assert.Empty(t, rows[2][3])
}

func TestExportCSVWithDistance(t *testing.T) {
	ms := []model.Municipality{
		{ID: "3509502", Name: "Campinas", Lat: -22.9099, Lon: -47.0626,
			DistanceKM: 12.5, Potential: map[string]float64{"total": 20_000_000}},
	}
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, exportCSV(context.Background(), ms, path, true))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "distance_km", rows[0][5])
	assert.Equal(t, "12.5", rows[1][5])
}

func TestExportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, exportXLSX(context.Background(), exportFixture(), path, false))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "id", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "Piracicaba", sheet.Rows[1].Cells[1].Value)
}

func TestExportShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.shp")
	require.NoError(t, exportShapefile(context.Background(), exportFixture(), path, false))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	n := 0
	for r.Next() {
		_, shape := r.Shape()
		p, ok := shape.(*shp.Point)
		require.True(t, ok)
		assert.InDelta(t, -47.6489, p.X, 1e-6)
		// Attributes made it into the DBF.
		assert.Equal(t, "3538709", strings.TrimSpace(r.Attribute(0)))
		assert.Equal(t, "Piracicaba", strings.TrimSpace(r.Attribute(1)))
		n++
	}
	// The record without coordinates is skipped.
	assert.Equal(t, 1, n)
}

func TestExportShapefileWithDistance(t *testing.T) {
	ms := []model.Municipality{
		{ID: "3509502", Name: "Campinas", Lat: -22.9099, Lon: -47.0626,
			DistanceKM: 12.5, Potential: map[string]float64{"total": 20_000_000}},
	}
	path := filepath.Join(t.TempDir(), "out.shp")
	require.NoError(t, exportShapefile(context.Background(), ms, path, true))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.Next())
	// Field 3 is DIST_KM when distances are exported.
	dist, err := strconv.ParseFloat(strings.TrimSpace(r.Attribute(3)), 64)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, dist, 1e-3)
}

func TestPotentialColumnsSortedUnion(t *testing.T) {
	cols := potentialColumns(exportFixture())
	assert.Equal(t, []string{"cana", "total"}, cols)
}
