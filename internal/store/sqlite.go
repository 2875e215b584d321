package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/cp2b/biogas-cli/internal/geo"
	"github.com/cp2b/biogas-cli/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS municipalities (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	name_normalized TEXT NOT NULL,
	lat             REAL,
	lon             REAL,
	population      INTEGER NOT NULL DEFAULT 0,
	potential       TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_municipalities_name ON municipalities(name_normalized);

CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	params     TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_analyses_kind ON analyses(kind, created_at DESC);
`

type sqliteStore struct {
	db *sql.DB
}

func openSQLite(ctx context.Context, path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	// Single writer; WAL keeps readers unblocked during imports.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: %s", pragma)
		}
	}
	zap.L().Debug("sqlite store opened", zap.String("path", path))
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "store: migrate sqlite")
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) ListMunicipalities(ctx context.Context) ([]model.Municipality, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, lat, lon, population, potential FROM municipalities ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list municipalities")
	}
	defer rows.Close()
	return scanMunicipalities(rows)
}

func (s *sqliteStore) GetMunicipality(ctx context.Context, id string) (*model.Municipality, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, lat, lon, population, potential FROM municipalities WHERE id = ?`, id)
	m, err := scanMunicipality(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get municipality %s", id)
	}
	return m, nil
}

func (s *sqliteStore) SearchMunicipalities(ctx context.Context, name string) ([]model.Municipality, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, lat, lon, population, potential FROM municipalities
		 WHERE name_normalized LIKE ? ORDER BY name`,
		"%"+geo.Normalize(name)+"%")
	if err != nil {
		return nil, eris.Wrap(err, "store: search municipalities")
	}
	defer rows.Close()
	return scanMunicipalities(rows)
}

func (s *sqliteStore) UpsertMunicipalities(ctx context.Context, ms []model.Municipality) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: begin upsert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO municipalities (id, name, name_normalized, lat, lon, population, potential)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			name_normalized = excluded.name_normalized,
			lat = excluded.lat,
			lon = excluded.lon,
			population = excluded.population,
			potential = excluded.potential`)
	if err != nil {
		return 0, eris.Wrap(err, "store: prepare upsert")
	}
	defer stmt.Close()

	n := 0
	for _, m := range ms {
		potential, err := json.Marshal(m.Potential)
		if err != nil {
			return n, eris.Wrapf(err, "store: encode potential for %s", m.ID)
		}
		lat, lon := coordsToNull(m)
		if _, err := stmt.ExecContext(ctx, m.ID, m.Name, geo.Normalize(m.Name),
			lat, lon, m.Population, string(potential)); err != nil {
			return n, eris.Wrapf(err, "store: upsert municipality %s", m.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "store: commit upsert")
	}
	return n, nil
}

func (s *sqliteStore) SaveAnalysis(ctx context.Context, run model.AnalysisRun) error {
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, kind, params, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Params, run.Result, createdAt)
	if err != nil {
		return eris.Wrapf(err, "store: save analysis %s", run.ID)
	}
	return nil
}

func (s *sqliteStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, params, result, created_at FROM analyses WHERE id = ?`, id)
	var run model.AnalysisRun
	var kind string
	err := row.Scan(&run.ID, &kind, &run.Params, &run.Result, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get analysis %s", id)
	}
	run.Kind = model.AnalysisKind(kind)
	return &run, nil
}

func (s *sqliteStore) ListAnalyses(ctx context.Context, kind model.AnalysisKind, limit int) ([]model.AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, params, result, created_at FROM analyses
		 WHERE kind = ? ORDER BY created_at DESC LIMIT ?`,
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMunicipality(row rowScanner) (*model.Municipality, error) {
	var m model.Municipality
	var lat, lon sql.NullFloat64
	var potential string
	if err := row.Scan(&m.ID, &m.Name, &lat, &lon, &m.Population, &potential); err != nil {
		return nil, err
	}
	m.Lat, m.Lon = coordsFromNull(lat, lon)
	if err := json.Unmarshal([]byte(potential), &m.Potential); err != nil {
		return nil, eris.Wrapf(err, "store: decode potential for %s", m.ID)
	}
	return &m, nil
}

func scanMunicipalities(rows *sql.Rows) ([]model.Municipality, error) {
	var ms []model.Municipality
	for rows.Next() {
		m, err := scanMunicipality(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan municipality")
		}
		ms = append(ms, *m)
	}
	return ms, rows.Err()
}

// coordsToNull maps missing coordinates (NaN) to SQL NULL and back.
func coordsToNull(m model.Municipality) (sql.NullFloat64, sql.NullFloat64) {
	if !m.HasCoordinates() {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: m.Lat, Valid: true},
		sql.NullFloat64{Float64: m.Lon, Valid: true}
}

func coordsFromNull(lat, lon sql.NullFloat64) (float64, float64) {
	if !lat.Valid || !lon.Valid {
		return math.NaN(), math.NaN()
	}
	return lat.Float64, lon.Float64
}
