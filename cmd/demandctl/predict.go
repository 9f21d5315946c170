package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/richxcame/taxi-demand/internal/demandforecast"
	"github.com/richxcame/taxi-demand/pkg/geo"
	"github.com/richxcame/taxi-demand/pkg/validation"
	"github.com/spf13/cobra"
)

var predictFlags struct {
	lat       float64
	lng       float64
	condition string
	temp      float64
	humidity  float64
	hour      int
	day       int
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict demand for a location",
	Example: `  demandctl predict --lat 35.6762 --lng 139.6503
  demandctl predict --lat 35.6762 --lng 139.6503 --condition heavy_rain --hour 8 --day 1`,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.Float64Var(&predictFlags.lat, "lat", 0, "latitude")
	f.Float64Var(&predictFlags.lng, "lng", 0, "longitude")
	f.StringVar(&predictFlags.condition, "condition", "", "weather condition; fetched when empty")
	f.Float64Var(&predictFlags.temp, "temp", math.NaN(), "temperature in °C")
	f.Float64Var(&predictFlags.humidity, "humidity", math.NaN(), "relative humidity in %")
	f.IntVar(&predictFlags.hour, "hour", -1, "hour of day 0-23; current hour when unset")
	f.IntVar(&predictFlags.day, "day", -1, "day of week 0-6 (0 = Sunday); today when unset")
	_ = predictCmd.MarkFlagRequired("lat")
	_ = predictCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	if err := validation.ValidateCoordinates(predictFlags.lat, predictFlags.lng); err != nil {
		return err
	}

	var weather *demandforecast.WeatherReading
	if predictFlags.condition != "" {
		if err := validation.Validate.Var(predictFlags.condition, "weather_condition"); err != nil {
			return fmt.Errorf("--condition must be one of %s, got %q", conditionNames(), predictFlags.condition)
		}
		reading := demandforecast.WeatherReading{
			Condition:    demandforecast.WeatherCondition(predictFlags.condition),
			TemperatureC: predictFlags.temp,
			HumidityPct:  predictFlags.humidity,
		}.Normalized()
		weather = &reading
	}

	flags := cmd.Flags()
	tm, err := timeContextFromFlags(flags.Changed("hour"), flags.Changed("day"), time.Now())
	if err != nil {
		return err
	}

	loc := geo.Coordinate{Latitude: predictFlags.lat, Longitude: predictFlags.lng}
	return withComponents(cmd, func(ctx context.Context, c *demandforecast.Components) error {
		return printJSON(cmd.OutOrStdout(), c.Predictor.Predict(ctx, loc, weather, tm))
	})
}

// timeContextFromFlags returns nil when neither --hour nor --day is set, so
// the predictor uses its own clock. A single flag is completed from now.
func timeContextFromFlags(hourSet, daySet bool, now time.Time) (*demandforecast.TimeContext, error) {
	if !hourSet && !daySet {
		return nil, nil
	}

	tm := demandforecast.TimeContextAt(now)
	if hourSet {
		if err := validation.Validate.Var(predictFlags.hour, "gte=0,lte=23"); err != nil {
			return nil, fmt.Errorf("--hour must be 0-23, got %d", predictFlags.hour)
		}
		tm.HourOfDay = predictFlags.hour
	}
	if daySet {
		if err := validation.Validate.Var(predictFlags.day, "gte=0,lte=6"); err != nil {
			return nil, fmt.Errorf("--day must be 0-6, got %d", predictFlags.day)
		}
		tm.DayOfWeek = predictFlags.day
	}
	return &tm, nil
}

func conditionNames() string {
	names := make([]string, len(demandforecast.WeatherConditions))
	for i, c := range demandforecast.WeatherConditions {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
