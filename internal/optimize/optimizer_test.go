package optimize

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cp2b/biogas-cli/internal/analysis"
	"github.com/cp2b/biogas-cli/internal/catchment"
	"github.com/cp2b/biogas-cli/internal/model"
)

func regionMunicipalities() []model.Municipality {
	return []model.Municipality{
		{ID: "3538709", Name: "Piracicaba", Lat: -22.7253, Lon: -47.6489,
			Potential: map[string]float64{"total": 45_000_000}},
		{ID: "3532009", Name: "Limeira", Lat: -22.5645, Lon: -47.4016,
			Potential: map[string]float64{"total": 15_000_000}},
		{ID: "3509502", Name: "Campinas", Lat: -22.9099, Lon: -47.0626,
			Potential: map[string]float64{"total": 20_000_000}},
	}
}

func searchBounds() model.BBox {
	return model.BBox{MinLat: -23.2, MinLon: -48.0, MaxLat: -22.4, MaxLon: -46.8}
}

func TestFindOptimalLocations_RanksByScore(t *testing.T) {
	o := New(DefaultConfig(), catchment.NewAnalyzer(catchment.DefaultConfig()))

	got, err := o.FindOptimalLocations(context.Background(), regionMunicipalities(), searchBounds(), 0.2)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), DefaultConfig().TopN)

	for i, c := range got {
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
		assert.Positive(t, c.Count)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Score, c.Score)
		}
	}

	// The best candidate sits near the data, not at an empty corner.
	best := got[0]
	assert.Positive(t, best.TotalPotential)
}

func TestFindOptimalLocations_ParallelMatchesSequential(t *testing.T) {
	seqCfg := DefaultConfig()
	seqCfg.Workers = 1
	parCfg := DefaultConfig()
	parCfg.Workers = 4

	an := catchment.NewAnalyzer(catchment.DefaultConfig())
	seq, err := New(seqCfg, an).FindOptimalLocations(context.Background(), regionMunicipalities(), searchBounds(), 0.2)
	require.NoError(t, err)
	par, err := New(parCfg, an).FindOptimalLocations(context.Background(), regionMunicipalities(), searchBounds(), 0.2)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
}

func TestFindOptimalLocations_SkipsOutsideRegion(t *testing.T) {
	// Bounds straddling the regional box edge: points past it are skipped.
	bounds := model.BBox{MinLat: -22.0, MinLon: -44.5, MaxLat: -21.0, MaxLon: -43.0}
	o := New(DefaultConfig(), catchment.NewAnalyzer(catchment.DefaultConfig()))

	got, err := o.FindOptimalLocations(context.Background(), regionMunicipalities(), bounds, 0.5)
	require.NoError(t, err)
	// Nothing near these bounds has municipalities in range.
	assert.Empty(t, got)
}

func TestFindOptimalLocations_InvalidInput(t *testing.T) {
	o := New(DefaultConfig(), catchment.NewAnalyzer(catchment.DefaultConfig()))
	ms := regionMunicipalities()

	_, err := o.FindOptimalLocations(context.Background(), ms, model.BBox{MinLat: 5, MaxLat: -5, MinLon: 0, MaxLon: 1}, 0.5)
	require.Error(t, err)
	assert.True(t, eris.Is(err, analysis.ErrInvalidInput))

	_, err = o.FindOptimalLocations(context.Background(), ms, searchBounds(), 0)
	require.Error(t, err)
	assert.True(t, eris.Is(err, analysis.ErrInvalidInput))

	_, err = o.FindOptimalLocations(context.Background(), nil, searchBounds(), 0.5)
	require.Error(t, err)
	assert.True(t, eris.Is(err, analysis.ErrNoData))
}

func TestFindOptimalLocations_TopNTruncation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopN = 3
	o := New(cfg, catchment.NewAnalyzer(catchment.DefaultConfig()))

	got, err := o.FindOptimalLocations(context.Background(), regionMunicipalities(), searchBounds(), 0.1)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFindOptimalLocations_Cancelled(t *testing.T) {
	o := New(DefaultConfig(), catchment.NewAnalyzer(catchment.DefaultConfig()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.FindOptimalLocations(ctx, regionMunicipalities(), searchBounds(), 0.2)
	assert.Error(t, err)
}
