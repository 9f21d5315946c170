package main

import (
	"context"

	"github.com/richxcame/taxi-demand/internal/demandforecast"
	"github.com/richxcame/taxi-demand/pkg/geo"
	"github.com/richxcame/taxi-demand/pkg/validation"
	"github.com/spf13/cobra"
)

var weatherFlags struct {
	lat float64
	lng float64
}

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Show the current weather used for predictions",
	RunE:  runWeather,
}

func init() {
	weatherCmd.Flags().Float64Var(&weatherFlags.lat, "lat", 0, "latitude")
	weatherCmd.Flags().Float64Var(&weatherFlags.lng, "lng", 0, "longitude")
	_ = weatherCmd.MarkFlagRequired("lat")
	_ = weatherCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(weatherCmd)
}

func runWeather(cmd *cobra.Command, args []string) error {
	if err := validation.ValidateCoordinates(weatherFlags.lat, weatherFlags.lng); err != nil {
		return err
	}

	loc := geo.Coordinate{Latitude: weatherFlags.lat, Longitude: weatherFlags.lng}
	return withComponents(cmd, func(ctx context.Context, c *demandforecast.Components) error {
		reading := c.Weather.GetCurrentWeather(ctx, loc)
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"weather": reading,
			"client":  c.Weather.Stats(),
		})
	})
}
