package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"libdb.so/bleglow"
	"libdb.so/bleglow/internal/vis"
)

var (
	config      = "bleglow.toml"
	verbose     = false
	testMode    = false
	mode        = ""
	sensitivity = -1.0
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
	pflag.BoolVarP(&testMode, "test", "t", testMode, "analyze audio and log levels without driving the fixture")
	pflag.StringVarP(&mode, "mode", "m", mode, "override the visualization mode")
	pflag.Float64VarP(&sensitivity, "sensitivity", "s", sensitivity, "override the sensitivity (0.0-1.0)")
}

func main() {
	pflag.Parse()

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	if mode != "" {
		cfg.Visualization.Mode = vis.Mode(mode)
	}
	if sensitivity >= 0 {
		cfg.Visualization.Sensitivity = sensitivity
	}
	cfg.Visualization.Active = !testMode

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if testMode {
		return runTest(ctx, cfg)
	}

	d, err := bleglow.NewDaemon(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon failed: %w", err)
	}

	return nil
}

// runTest runs the monitor without a fixture and logs analysis levels.
func runTest(ctx context.Context, cfg *bleglow.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.Default()
	monitor := bleglow.NewMonitor(cfg, logger)

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		return monitor.Run(ctx)
	})
	errg.Go(func() error {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			logger.Info("audio levels",
				"energy", monitor.Energy(cfg.Visualization.Range),
				"bpm", monitor.BPM())
		}
	})

	if err := errg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("monitor failed: %w", err)
	}
	return nil
}

func readConfig() (*bleglow.Config, error) {
	f, err := os.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return bleglow.ParseConfig(f)
}
