// Package bleglow drives an ELK-BLEDOM style LED fixture from live audio: a
// spectral analyzer turns captured samples into band energies, beats and a
// tempo estimate, and a visualization engine maps those onto color,
// brightness and fixture effects.
package bleglow

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"libdb.so/bleglow/ledble"
)

// detailLogEvery is the number of applies between detailed analysis logs.
const detailLogEvery = 50

// Daemon is the main bleglow daemon: it runs the audio monitor and applies
// its decisions to the fixture on its own cadence.
type Daemon struct {
	cfg     *Config
	logger  *slog.Logger
	monitor *Monitor
}

// NewDaemon creates a new bleglow daemon.
func NewDaemon(cfg *Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &Daemon{
		cfg:     cfg,
		logger:  logger,
		monitor: NewMonitor(cfg, logger),
	}, nil
}

// Monitor returns the daemon's audio monitor for runtime control and
// diagnostics.
func (d *Daemon) Monitor() *Monitor { return d.monitor }

// Run starts the daemon. It blocks until the given context is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	dev, err := ledble.Dial(d.cfg.Device, d.cfg.Baud, d.cfg.Fixture, d.logger)
	if err != nil {
		return errors.Wrap(err, "failed to open fixture transport")
	}
	defer dev.Close()

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		return d.monitor.Run(ctx)
	})
	errg.Go(func() error {
		return d.applyLoop(ctx, dev)
	})

	return errg.Wait()
}

// applyLoop polls the latest decision and applies it to the fixture. A failed
// apply is logged and retried on the next tick; the analysis loop keeps
// running regardless of fixture state.
func (d *Daemon) applyLoop(ctx context.Context, dev *ledble.Device) error {
	interval := time.Duration(d.monitor.Visualization().UpdateInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	applies := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := d.monitor.Apply(dev); err != nil {
			d.logger.Warn("failed to apply decision to fixture", "error", err)
			continue
		}

		applies++
		if applies%detailLogEvery == 0 {
			d.logDetailedAnalysis()
		}
	}
}

// logDetailedAnalysis logs one line of analysis diagnostics. Called
// periodically to avoid flooding the log at the apply cadence.
func (d *Daemon) logDetailedAnalysis() {
	viz := d.monitor.Visualization()
	d.logger.Debug("audio analysis",
		"mode", viz.Mode,
		"active", viz.Active,
		"sensitivity", viz.Sensitivity,
		"range", viz.Range,
		"energy", d.monitor.Energy(viz.Range),
		"bpm", d.monitor.BPM())
}
