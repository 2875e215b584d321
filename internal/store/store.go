// Package store persists municipalities and analysis runs. SQLite is the
// default embedded backend; Postgres is available for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cp2b/biogas-cli/internal/model"
)

// Config selects and configures a backend.
type Config struct {
	Driver      string // "sqlite" (default) or "postgres"
	DatabaseURL string // file path for sqlite, DSN for postgres
}

// Store is the persistence surface the CLI and server run against.
type Store interface {
	ListMunicipalities(ctx context.Context) ([]model.Municipality, error)
	GetMunicipality(ctx context.Context, id string) (*model.Municipality, error)
	SearchMunicipalities(ctx context.Context, name string) ([]model.Municipality, error)
	UpsertMunicipalities(ctx context.Context, ms []model.Municipality) (int, error)

	SaveAnalysis(ctx context.Context, run model.AnalysisRun) error
	GetAnalysis(ctx context.Context, id string) (*model.AnalysisRun, error)
	ListAnalyses(ctx context.Context, kind model.AnalysisKind, limit int) ([]model.AnalysisRun, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns a store for the configured driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.DatabaseURL
		if path == "" {
			path = "cp2b.db"
		}
		return openSQLite(ctx, path)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires a database URL")
		}
		return openPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
