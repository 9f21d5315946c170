package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/richxcame/taxi-demand/internal/demandforecast"
	"github.com/richxcame/taxi-demand/pkg/config"
	"github.com/richxcame/taxi-demand/pkg/logger"
	"github.com/spf13/cobra"
)

const serviceName = "demandctl"

var (
	storageBackend string
	commandTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "demandctl",
	Short:         "Query the taxi demand predictor from the command line",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storageBackend, "storage", "", "override STORAGE_BACKEND (file, memory, redis, postgres, s3)")
	rootCmd.PersistentFlags().DurationVar(&commandTimeout, "timeout", 30*time.Second, "overall command timeout")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// withComponents loads configuration, wires the predictor and hands it to fn.
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *demandforecast.Components) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if storageBackend != "" {
		if err := os.Setenv("STORAGE_BACKEND", storageBackend); err != nil {
			return err
		}
	}

	cfg, err := config.Load(serviceName)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Server.Environment); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	components, cleanup, err := demandforecast.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize predictor: %w", err)
	}
	defer cleanup()

	return fn(ctx, components)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
