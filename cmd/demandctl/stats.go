package main

import (
	"context"

	"github.com/richxcame/taxi-demand/internal/demandforecast"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print training log statistics and model weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd, func(ctx context.Context, c *demandforecast.Components) error {
			return printJSON(cmd.OutOrStdout(), c.Predictor.Stats())
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
