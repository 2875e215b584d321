package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cp2b/biogas-cli/internal/model"
)

var (
	optMinLat     float64
	optMinLon     float64
	optMaxLat     float64
	optMaxLon     float64
	optResolution float64
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid-search candidate plant locations",
	Long:  "Scores a regular grid over the bounding box by potential, municipality count, concentration and transport, and prints the top candidates.",
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

		bounds := model.BBox{
			MinLat: optMinLat, MinLon: optMinLon,
			MaxLat: optMaxLat, MaxLon: optMaxLon,
		}
		candidates, err := env.optimizer().FindOptimalLocations(ctx, ms, bounds, optResolution)
		if err != nil {
			return err
		}

		zap.L().Info("optimization complete", zap.Int("candidates", len(candidates)))
		env.saveRun(ctx, model.AnalysisOptimize, map[string]any{
			"bounds": bounds, "resolution_deg": optResolution,
		}, candidates)
		return printJSON(candidates)
	},
}

func init() {
	optimizeCmd.Flags().Float64Var(&optMinLat, "min-lat", -25.5, "south bound")
	optimizeCmd.Flags().Float64Var(&optMinLon, "min-lon", -53.5, "west bound")
	optimizeCmd.Flags().Float64Var(&optMaxLat, "max-lat", -19.5, "north bound")
	optimizeCmd.Flags().Float64Var(&optMaxLon, "max-lon", -44.0, "east bound")
	optimizeCmd.Flags().Float64Var(&optResolution, "resolution", 0.25, "grid resolution in degrees")
	rootCmd.AddCommand(optimizeCmd)
}
