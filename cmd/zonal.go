package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cp2b/biogas-cli/internal/model"
	"github.com/cp2b/biogas-cli/internal/raster"
)

var (
	zonalLat    float64
	zonalLon    float64
	zonalRadius float64
	zonalRaster string
	zonalLegend string
)

var zonalCmd = &cobra.Command{
	Use:   "zonal",
	Short: "Land-use class areas within a radius of a point",
	Long:  "Masks the land-use raster with a circular buffer and reports per-class areas in hectares.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rasterPath := zonalRaster
		if rasterPath == "" {
			rasterPath = cfg.Raster.Path
		}
		legendPath := zonalLegend
		if legendPath == "" {
			legendPath = cfg.Raster.Legend
		}

		legend, err := raster.LoadLegend(legendPath)
		if err != nil {
			zap.L().Warn("legend unavailable, using class codes", zap.Error(err))
			legend = raster.Legend{}
		}

		analyzer := raster.NewAnalyzer(raster.Config{MinAreaHa: cfg.Raster.MinAreaHa})
		center := model.GeoPoint{Lat: zonalLat, Lon: zonalLon}
		result, err := analyzer.ZonalStats(ctx, rasterPath, center, zonalRadius, legend)
		if err != nil {
			return err
		}

		zap.L().Info("zonal analysis complete",
			zap.Int("classes", len(result.Classes)),
			zap.Float64("total_area_ha", result.TotalAreaHa),
		)
		env.saveRun(ctx, model.AnalysisZonal, map[string]any{
			"center": center, "radius_km": zonalRadius, "raster": rasterPath,
		}, result)
		return printJSON(result)
	},
}

func init() {
	zonalCmd.Flags().Float64Var(&zonalLat, "lat", 0, "center latitude (required)")
	zonalCmd.Flags().Float64Var(&zonalLon, "lon", 0, "center longitude (required)")
	zonalCmd.Flags().Float64Var(&zonalRadius, "radius", 10, "buffer radius in km")
	zonalCmd.Flags().StringVar(&zonalRaster, "raster", "", "GeoTIFF path (default from config)")
	zonalCmd.Flags().StringVar(&zonalLegend, "legend", "", "class legend YAML (default from config)")
	zonalCmd.MarkFlagRequired("lat")
	zonalCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(zonalCmd)
}
