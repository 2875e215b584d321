package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cp2b/biogas-cli/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <municipalities.csv>",
	Short: "Import municipality records from a CSV export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ms, err := store.LoadCSV(args[0])
		if err != nil {
			return err
		}
		n, err := env.Store.UpsertMunicipalities(ctx, ms)
		if err != nil {
			return err
		}

		// Any cached analysis may now be stale.
		env.Cache.Invalidate("catchment")
		env.Cache.Invalidate("optimize")

		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int("municipalities", n),
		)
		return nil
	},
}

func init() { rootCmd.AddCommand(importCmd) }
