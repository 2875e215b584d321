package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cp2b/biogas-cli/internal/analysis"
	"github.com/cp2b/biogas-cli/internal/cache"
	"github.com/cp2b/biogas-cli/internal/catchment"
	"github.com/cp2b/biogas-cli/internal/model"
	"github.com/cp2b/biogas-cli/internal/raster"
	"github.com/cp2b/biogas-cli/internal/scenario"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{env: env}

		r := chi.NewRouter()
		r.Use(requestID)
		r.Use(rateLimit(rate.Limit(cfg.Server.RatePerSec), cfg.Server.RateBurst))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", api.health)
		r.Route("/api", func(r chi.Router) {
			r.Get("/municipalities", api.listMunicipalities)
			r.Get("/municipalities/{id}", api.getMunicipality)
			r.Post("/catchment", api.catchment)
			r.Post("/zonal", api.zonal)
			r.Post("/optimize", api.optimize)
			r.Get("/analyses", api.listAnalyses)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go shutdownOnDone(ctx, srv, 10*time.Second)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownOnDone waits for ctx cancellation and then drains in-flight
// requests. The drain runs on a fresh timeout context; the signal context
// is already cancelled at this point and would cut the drain to zero.
func shutdownOnDone(ctx context.Context, srv *http.Server, timeout time.Duration) {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

type apiServer struct {
	env *appEnv
}

func (a *apiServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *apiServer) listMunicipalities(w http.ResponseWriter, r *http.Request) {
	var (
		ms  []model.Municipality
		err error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		ms, err = a.env.Store.SearchMunicipalities(r.Context(), q)
	} else {
		ms, err = a.env.Store.ListMunicipalities(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (a *apiServer) getMunicipality(w http.ResponseWriter, r *http.Request) {
	m, err := a.env.Store.GetMunicipality(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if m == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "municipality not found"})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type catchmentRequest struct {
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	RadiusKM float64  `json:"radius_km"`
	Columns  []string `json:"columns,omitempty"`
	Scenario string   `json:"scenario,omitempty"`
}

func (a *apiServer) catchment(w http.ResponseWriter, r *http.Request) {
	var req catchmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	key := cache.Key("catchment", req)
	if v, ok := a.env.Cache.Get(key); ok {
		writeJSON(w, http.StatusOK, v)
		return
	}

	var sc *scenario.Scenario
	if req.Scenario != "" {
		set, err := loadScenarios()
		if err != nil {
			writeError(w, r, err)
			return
		}
		if sc, err = set.Get(req.Scenario); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	ms, err := a.env.Store.ListMunicipalities(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	creq := catchment.Request{
		Center:   model.GeoPoint{Lat: req.Lat, Lon: req.Lon},
		RadiusKM: req.RadiusKM,
		Columns:  req.Columns,
		Scenario: sc,
	}
	result, err := a.env.catchmentAnalyzer().Analyze(r.Context(), creq, ms)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.env.Cache.Put(key, result)
	a.env.saveRun(r.Context(), model.AnalysisCatchment, creq, result)
	writeJSON(w, http.StatusOK, result)
}

type zonalRequest struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKM float64 `json:"radius_km"`
}

func (a *apiServer) zonal(w http.ResponseWriter, r *http.Request) {
	var req zonalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	key := cache.Key("zonal", req)
	if v, ok := a.env.Cache.Get(key); ok {
		writeJSON(w, http.StatusOK, v)
		return
	}

	legend, err := raster.LoadLegend(cfg.Raster.Legend)
	if err != nil {
		zap.L().Warn("legend unavailable, using class codes", zap.Error(err))
		legend = raster.Legend{}
	}

	analyzer := raster.NewAnalyzer(raster.Config{MinAreaHa: cfg.Raster.MinAreaHa})
	center := model.GeoPoint{Lat: req.Lat, Lon: req.Lon}
	result, err := analyzer.ZonalStats(r.Context(), cfg.Raster.Path, center, req.RadiusKM, legend)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.env.Cache.Put(key, result)
	a.env.saveRun(r.Context(), model.AnalysisZonal, req, result)
	writeJSON(w, http.StatusOK, result)
}

type optimizeRequest struct {
	MinLat        float64 `json:"min_lat"`
	MinLon        float64 `json:"min_lon"`
	MaxLat        float64 `json:"max_lat"`
	MaxLon        float64 `json:"max_lon"`
	ResolutionDeg float64 `json:"resolution_deg"`
}

func (a *apiServer) optimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	key := cache.Key("optimize", req)
	if v, ok := a.env.Cache.Get(key); ok {
		writeJSON(w, http.StatusOK, v)
		return
	}

	ms, err := a.env.Store.ListMunicipalities(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	bounds := model.BBox{
		MinLat: req.MinLat, MinLon: req.MinLon,
		MaxLat: req.MaxLat, MaxLon: req.MaxLon,
	}
	candidates, err := a.env.optimizer().FindOptimalLocations(r.Context(), ms, bounds, req.ResolutionDeg)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.env.Cache.Put(key, candidates)
	a.env.saveRun(r.Context(), model.AnalysisOptimize, req, candidates)
	writeJSON(w, http.StatusOK, candidates)
}

func (a *apiServer) listAnalyses(w http.ResponseWriter, r *http.Request) {
	kind := model.AnalysisKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = model.AnalysisCatchment
	}
	runs, err := a.env.Store.ListAnalyses(r.Context(), kind, 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// requestID tags every request with a UUID for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		zap.L().Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies a global token-bucket limit across all clients.
func rateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps analysis error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case eris.Is(err, analysis.ErrInvalidInput):
		status = http.StatusBadRequest
	case eris.Is(err, analysis.ErrNoData):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
