// Package config loads application configuration from config.yaml and the
// CP2B_* environment, with defaults for every analysis constant.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cp2b/biogas-cli/internal/catchment"
	"github.com/cp2b/biogas-cli/internal/model"
	"github.com/cp2b/biogas-cli/internal/optimize"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Catchment CatchmentConfig `yaml:"catchment" mapstructure:"catchment"`
	Raster    RasterConfig    `yaml:"raster" mapstructure:"raster"`
	Optimize  OptimizeConfig  `yaml:"optimize" mapstructure:"optimize"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CatchmentConfig configures the catchment analyzer.
type CatchmentConfig struct {
	MaxRadiusKM    float64          `yaml:"max_radius_km" mapstructure:"max_radius_km"`
	Region         model.BBox       `yaml:"region" mapstructure:"region"`
	KWhPerM3       float64          `yaml:"kwh_per_m3" mapstructure:"kwh_per_m3"`
	CapacityFactor float64          `yaml:"capacity_factor" mapstructure:"capacity_factor"`
	TotalColumn    string           `yaml:"total_column" mapstructure:"total_column"`
	Tiers          []catchment.Tier `yaml:"tiers" mapstructure:"tiers"`
}

// RasterConfig configures zonal raster analysis.
type RasterConfig struct {
	Path      string  `yaml:"path" mapstructure:"path"`
	Legend    string  `yaml:"legend" mapstructure:"legend"`
	MinAreaHa float64 `yaml:"min_area_ha" mapstructure:"min_area_ha"`
}

// OptimizeConfig configures the location grid search.
type OptimizeConfig struct {
	RadiusKM float64          `yaml:"radius_km" mapstructure:"radius_km"`
	TopN     int              `yaml:"top_n" mapstructure:"top_n"`
	Workers  int              `yaml:"workers" mapstructure:"workers"`
	Weights  optimize.Weights `yaml:"weights" mapstructure:"weights"`
	Norms    optimize.Norms   `yaml:"norms" mapstructure:"norms"`
}

// CacheConfig configures the in-process result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	RatePerSec   float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst    int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowOrigins []string `yaml:"allow_origins" mapstructure:"allow_origins"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml (optional) and CP2B_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CP2B")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cp2b.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("catchment.max_radius_km", 200.0)
	v.SetDefault("catchment.kwh_per_m3", 6.0)
	v.SetDefault("catchment.capacity_factor", 0.8)
	v.SetDefault("catchment.total_column", "total")
	catchDef := catchment.DefaultConfig()
	v.SetDefault("catchment.region.min_lat", catchDef.Region.MinLat)
	v.SetDefault("catchment.region.min_lon", catchDef.Region.MinLon)
	v.SetDefault("catchment.region.max_lat", catchDef.Region.MaxLat)
	v.SetDefault("catchment.region.max_lon", catchDef.Region.MaxLon)
	tiers := make([]map[string]any, 0, len(catchDef.Tiers))
	for _, t := range catchDef.Tiers {
		tiers = append(tiers, map[string]any{
			"name":          t.Name,
			"min_potential": t.MinPotential,
			"description":   t.Description,
		})
	}
	v.SetDefault("catchment.tiers", tiers)
	v.SetDefault("raster.path", "data/mapbiomas_sp.tif")
	v.SetDefault("raster.legend", "configs/mapbiomas_legend.yaml")
	v.SetDefault("raster.min_area_ha", 0.01)
	v.SetDefault("optimize.radius_km", 30.0)
	v.SetDefault("optimize.top_n", 10)
	v.SetDefault("optimize.workers", 4)
	optDef := optimize.DefaultConfig()
	v.SetDefault("optimize.weights.potential", optDef.Weights.Potential)
	v.SetDefault("optimize.weights.count", optDef.Weights.Count)
	v.SetDefault("optimize.weights.concentration", optDef.Weights.Concentration)
	v.SetDefault("optimize.weights.transport", optDef.Weights.Transport)
	v.SetDefault("optimize.norms.potential", optDef.Norms.Potential)
	v.SetDefault("optimize.norms.count", optDef.Norms.Count)
	v.SetDefault("optimize.norms.concentration", optDef.Norms.Concentration)
	v.SetDefault("optimize.norms.transport", optDef.Norms.Transport)
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_sec", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.allow_origins", []string{"*"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger builds the global zap logger from LogConfig.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
