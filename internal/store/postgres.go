package store

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cp2b/biogas-cli/internal/geo"
	"github.com/cp2b/biogas-cli/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS municipalities (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	name_normalized TEXT NOT NULL,
	lat             DOUBLE PRECISION,
	lon             DOUBLE PRECISION,
	population      BIGINT NOT NULL DEFAULT 0,
	potential       JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_municipalities_name ON municipalities(name_normalized);

CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	params     JSONB NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_analyses_kind ON analyses(kind, created_at DESC);
`

// pgxPool is the slice of pgxpool.Pool the store uses. pgxmock satisfies
// it, which keeps the postgres backend testable without a live server.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

type postgresStore struct {
	pool pgxPool
}

func openPostgres(ctx context.Context, dsn string) (Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: open postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}
	zap.L().Debug("postgres store opened")
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "store: migrate postgres")
	}
	return nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *postgresStore) ListMunicipalities(ctx context.Context) ([]model.Municipality, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, lat, lon, population, potential FROM municipalities ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list municipalities")
	}
	defer rows.Close()
	return scanPgMunicipalities(rows)
}

func (s *postgresStore) GetMunicipality(ctx context.Context, id string) (*model.Municipality, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, lat, lon, population, potential FROM municipalities WHERE id = $1`, id)
	m, err := scanPgMunicipality(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get municipality %s", id)
	}
	return m, nil
}

func (s *postgresStore) SearchMunicipalities(ctx context.Context, name string) ([]model.Municipality, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, lat, lon, population, potential FROM municipalities
		 WHERE name_normalized LIKE $1 ORDER BY name`,
		"%"+geo.Normalize(name)+"%")
	if err != nil {
		return nil, eris.Wrap(err, "store: search municipalities")
	}
	defer rows.Close()
	return scanPgMunicipalities(rows)
}

func (s *postgresStore) UpsertMunicipalities(ctx context.Context, ms []model.Municipality) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "store: begin upsert")
	}
	defer tx.Rollback(ctx)

	n := 0
	for _, m := range ms {
		potential, err := json.Marshal(m.Potential)
		if err != nil {
			return n, eris.Wrapf(err, "store: encode potential for %s", m.ID)
		}
		lat, lon := pgCoords(m)
		if _, err := tx.Exec(ctx, `
			INSERT INTO municipalities (id, name, name_normalized, lat, lon, population, potential)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				name_normalized = excluded.name_normalized,
				lat = excluded.lat,
				lon = excluded.lon,
				population = excluded.population,
				potential = excluded.potential`,
			m.ID, m.Name, geo.Normalize(m.Name), lat, lon, m.Population, string(potential)); err != nil {
			return n, eris.Wrapf(err, "store: upsert municipality %s", m.ID)
		}
		n++
	}
	if err := tx.Commit(ctx); err != nil {
		return n, eris.Wrap(err, "store: commit upsert")
	}
	return n, nil
}

func (s *postgresStore) SaveAnalysis(ctx context.Context, run model.AnalysisRun) error {
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analyses (id, kind, params, result, created_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, string(run.Kind), run.Params, run.Result, createdAt)
	if err != nil {
		return eris.Wrapf(err, "store: save analysis %s", run.ID)
	}
	return nil
}

func (s *postgresStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, params, result, created_at FROM analyses WHERE id = $1`, id)
	var run model.AnalysisRun
	var kind string
	err := row.Scan(&run.ID, &kind, &run.Params, &run.Result, &run.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get analysis %s", id)
	}
	run.Kind = model.AnalysisKind(kind)
	return &run, nil
}

func (s *postgresStore) ListAnalyses(ctx context.Context, kind model.AnalysisKind, limit int) ([]model.AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, params, result, created_at FROM analyses
		 WHERE kind = $1 ORDER BY created_at DESC LIMIT $2`,
		string(kind), limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list analyses")
	}
	defer rows.Close()

	var runs []model.AnalysisRun
	for rows.Next() {
		var run model.AnalysisRun
		var k string
		if err := rows.Scan(&run.ID, &k, &run.Params, &run.Result, &run.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan analysis")
		}
		run.Kind = model.AnalysisKind(k)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanPgMunicipality(row pgx.Row) (*model.Municipality, error) {
	var m model.Municipality
	var lat, lon *float64
	var potential []byte
	if err := row.Scan(&m.ID, &m.Name, &lat, &lon, &m.Population, &potential); err != nil {
		return nil, err
	}
	m.Lat, m.Lon = math.NaN(), math.NaN()
	if lat != nil && lon != nil {
		m.Lat, m.Lon = *lat, *lon
	}
	if err := json.Unmarshal(potential, &m.Potential); err != nil {
		return nil, eris.Wrapf(err, "store: decode potential for %s", m.ID)
	}
	return &m, nil
}

func scanPgMunicipalities(rows pgx.Rows) ([]model.Municipality, error) {
	var ms []model.Municipality
	for rows.Next() {
		m, err := scanPgMunicipality(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan municipality")
		}
		ms = append(ms, *m)
	}
	return ms, rows.Err()
}

func pgCoords(m model.Municipality) (*float64, *float64) {
	if !m.HasCoordinates() {
		return nil, nil
	}
	lat, lon := m.Lat, m.Lon
	return &lat, &lon
}
