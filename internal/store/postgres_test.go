package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cp2b/biogas-cli/internal/model"
)

func newMockPostgres(t *testing.T) (*postgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &postgresStore{pool: mock}, mock
}

func TestPostgresGetMunicipality(t *testing.T) {
	s, mock := newMockPostgres(t)
	lat, lon := -22.7253, -47.6489

	mock.ExpectQuery(`SELECT id, name, lat, lon, population, potential FROM municipalities WHERE id`).
		WithArgs("3538709").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "lat", "lon", "population", "potential"}).
			AddRow("3538709", "Piracicaba", &lat, &lon, int64(407_252), []byte(`{"total":45000000}`)))

	m, err := s.GetMunicipality(context.Background(), "3538709")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Piracicaba", m.Name)
	assert.Equal(t, 45_000_000.0, m.PotentialOf("total"))
	assert.True(t, m.HasCoordinates())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetMunicipalityNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT id, name, lat, lon, population, potential FROM municipalities WHERE id`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	m, err := s.GetMunicipality(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListMunicipalitiesNullCoords(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT id, name, lat, lon, population, potential FROM municipalities ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "lat", "lon", "population", "potential"}).
			AddRow("9999999", "Sem Coordenadas", (*float64)(nil), (*float64)(nil), int64(0), []byte(`{}`)))

	ms, err := s.ListMunicipalities(context.Background())
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.False(t, ms[0].HasCoordinates())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertMunicipalities(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO municipalities`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.UpsertMunicipalities(context.Background(), []model.Municipality{
		{ID: "3538709", Name: "Piracicaba", Lat: -22.7253, Lon: -47.6489,
			Potential: map[string]float64{"total": 45_000_000}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveAndGetAnalysis(t *testing.T) {
	s, mock := newMockPostgres(t)
	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO analyses`).
		WithArgs("run-1", "catchment", `{"radius_km":50}`, `{}`, createdAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveAnalysis(context.Background(), model.AnalysisRun{
		ID: "run-1", Kind: model.AnalysisCatchment,
		Params: `{"radius_km":50}`, Result: `{}`, CreatedAt: createdAt,
	})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, kind, params, result, created_at FROM analyses WHERE id`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "kind", "params", "result", "created_at"}).
			AddRow("run-1", "catchment", `{"radius_km":50}`, `{}`, createdAt))

	got, err := s.GetAnalysis(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.AnalysisCatchment, got.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}
