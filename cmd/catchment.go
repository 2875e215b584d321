package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cp2b/biogas-cli/internal/catchment"
	"github.com/cp2b/biogas-cli/internal/model"
	"github.com/cp2b/biogas-cli/internal/scenario"
)

var (
	catchmentLat      float64
	catchmentLon      float64
	catchmentRadius   float64
	catchmentColumns  []string
	catchmentScenario string
)

var catchmentCmd = &cobra.Command{
	Use:   "catchment",
	Short: "Analyze biogas potential within a radius of a point",
	Long:  "Finds municipalities within the radius, computes per-column statistics, feasibility tier, transport scores and distance concentration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ms, err := env.loadMunicipalities(ctx)
		if err != nil {
			return err
		}

		var sc *scenario.Scenario
		if catchmentScenario != "" {
			set, err := loadScenarios()
			if err != nil {
				return err
			}
			if sc, err = set.Get(catchmentScenario); err != nil {
				return err
			}
		}

		req := catchment.Request{
			Center:   model.GeoPoint{Lat: catchmentLat, Lon: catchmentLon},
			RadiusKM: catchmentRadius,
			Columns:  catchmentColumns,
			Scenario: sc,
		}
		result, err := env.catchmentAnalyzer().Analyze(ctx, req, ms)
		if err != nil {
			return err
		}

		zap.L().Info("catchment analysis complete",
			zap.Int("municipalities", result.Count),
			zap.Float64("radius_km", catchmentRadius),
		)
		env.saveRun(ctx, model.AnalysisCatchment, req, result)
		return printJSON(result)
	},
}

func init() {
	catchmentCmd.Flags().Float64Var(&catchmentLat, "lat", 0, "center latitude (required)")
	catchmentCmd.Flags().Float64Var(&catchmentLon, "lon", 0, "center longitude (required)")
	catchmentCmd.Flags().Float64Var(&catchmentRadius, "radius", 50, "catchment radius in km")
	catchmentCmd.Flags().StringSliceVar(&catchmentColumns, "columns", []string{"total"}, "potential columns to analyze")
	catchmentCmd.Flags().StringVar(&catchmentScenario, "scenario", "", "availability scenario name from scenarios.yaml")
	catchmentCmd.MarkFlagRequired("lat")
	catchmentCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(catchmentCmd)
}
