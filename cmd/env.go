package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cp2b/biogas-cli/internal/cache"
	"github.com/cp2b/biogas-cli/internal/catchment"
	"github.com/cp2b/biogas-cli/internal/model"
	"github.com/cp2b/biogas-cli/internal/optimize"
	"github.com/cp2b/biogas-cli/internal/store"
)

// appEnv holds the shared analysis dependencies a command needs.
type appEnv struct {
	Store store.Store
	Cache *cache.ResultCache
}

func initEnv(ctx context.Context) (*appEnv, error) {
	s, err := store.Open(ctx, store.Config{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return &appEnv{
		Store: s,
		Cache: cache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMinutes)*time.Minute),
	}, nil
}

func (e *appEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("closing store", zap.Error(err))
	}
}

func (e *appEnv) catchmentAnalyzer() *catchment.Analyzer {
	return catchment.NewAnalyzer(catchment.Config{
		MaxRadiusKM:    cfg.Catchment.MaxRadiusKM,
		Region:         cfg.Catchment.Region,
		KWhPerM3:       cfg.Catchment.KWhPerM3,
		CapacityFactor: cfg.Catchment.CapacityFactor,
		TotalColumn:    cfg.Catchment.TotalColumn,
		Tiers:          cfg.Catchment.Tiers,
	})
}

func (e *appEnv) optimizer() *optimize.Optimizer {
	return optimize.New(optimize.Config{
		RadiusKM: cfg.Optimize.RadiusKM,
		TopN:     cfg.Optimize.TopN,
		Workers:  cfg.Optimize.Workers,
		Weights:  cfg.Optimize.Weights,
		Norms:    cfg.Optimize.Norms,
	}, e.catchmentAnalyzer())
}

// saveRun persists an analysis run with its params and result as JSON.
// Persistence failures are logged, not fatal: the analysis already ran.
func (e *appEnv) saveRun(ctx context.Context, kind model.AnalysisKind, params, result any) {
	p, err := json.Marshal(params)
	if err != nil {
		zap.L().Warn("encode analysis params", zap.Error(err))
		return
	}
	r, err := json.Marshal(result)
	if err != nil {
		zap.L().Warn("encode analysis result", zap.Error(err))
		return
	}
	run := model.AnalysisRun{
		ID:        uuid.NewString(),
		Kind:      kind,
		Params:    string(p),
		Result:    string(r),
		CreatedAt: time.Now().UTC(),
	}
	if err := e.Store.SaveAnalysis(ctx, run); err != nil {
		zap.L().Warn("save analysis run", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	zap.L().Info("analysis saved", zap.String("id", run.ID), zap.String("kind", string(kind)))
}

// printJSON writes v to stdout, indented.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "cmd: encode output")
	}
	return nil
}

// loadMunicipalities lists the stored municipality set, failing loudly when
// the database is empty so users know to run import first.
func (e *appEnv) loadMunicipalities(ctx context.Context) ([]model.Municipality, error) {
	ms, err := e.Store.ListMunicipalities(ctx)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, eris.Errorf("no municipalities in %s database, run 'cp2b import' first", cfg.Store.Driver)
	}
	return ms, nil
}
