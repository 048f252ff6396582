package bleglow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"libdb.so/bleglow/internal/analyzer"
	"libdb.so/bleglow/internal/capture"
	"libdb.so/bleglow/internal/vis"
	"libdb.so/bleglow/ledble"
)

const (
	// sampleQueueSize bounds the capture-to-pipeline queue. When it fills,
	// the producer drops samples instead of blocking the audio thread.
	sampleQueueSize = 4096

	// schedulingQuantum bounds CPU usage of the pipeline loop between
	// passes without materially delaying responsiveness.
	schedulingQuantum = time.Millisecond
)

// Monitor state machine. Stopped is terminal: a new run needs a new Monitor.
const (
	monitorIdle int32 = iota
	monitorRunning
	monitorStopped
)

// Monitor owns the audio capture stream and the analysis pipeline. It
// republishes the most recent visualization decision and a diagnostic
// snapshot; readers always observe the latest value, never a backlog.
type Monitor struct {
	logger *slog.Logger
	audio  capture.Config

	vizMu sync.RWMutex
	viz   Visualization

	samples chan float64
	state   atomic.Int32

	decision atomic.Pointer[vis.Decision]
	snapshot atomic.Pointer[analyzer.Snapshot]
}

// NewMonitor creates a monitor from a validated configuration.
func NewMonitor(cfg *Config, logger *slog.Logger) *Monitor {
	return &Monitor{
		logger:  logger,
		audio:   cfg.captureConfig(),
		viz:     cfg.Visualization,
		samples: make(chan float64, sampleQueueSize),
	}
}

// Run opens the capture device and runs the analysis loop until ctx is
// canceled. A capture failure is fatal and returned immediately. Run may be
// called at most once.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.state.CompareAndSwap(monitorIdle, monitorRunning) {
		return errors.New("monitor already started")
	}
	defer m.state.Store(monitorStopped)

	stream, err := capture.Open(m.audio, m.pushSample, m.logger)
	if err != nil {
		return errors.Wrap(err, "failed to open audio capture")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return errors.Wrap(err, "failed to start capture stream")
	}

	m.logger.Info("audio monitoring started",
		"sample_rate", m.audio.SampleRate)

	an := analyzer.New(m.audio.SampleRate, m.logger)
	var lastTick time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		m.pass(an, &lastTick, time.Now())
		time.Sleep(schedulingQuantum)
	}
}

// pushSample enqueues a captured sample without ever blocking. A full queue
// drops the sample; stalling the audio thread would corrupt capture timing.
func (m *Monitor) pushSample(s float64) {
	select {
	case m.samples <- s:
	default:
	}
}

// pass is one scheduling pass: drain buffered samples into the analyzer and,
// if the configured interval has elapsed, recompute and republish.
func (m *Monitor) pass(an *analyzer.Analyzer, lastTick *time.Time, now time.Time) {
drain:
	for {
		select {
		case s := <-m.samples:
			an.AddSample(s)
		default:
			break drain
		}
	}

	m.vizMu.RLock()
	viz := m.viz
	m.vizMu.RUnlock()

	if now.Sub(*lastTick) < time.Duration(viz.UpdateInterval) {
		return
	}
	*lastTick = now

	an.Analyze(now)
	snap := an.Snapshot(now)
	m.snapshot.Store(&snap)

	// Analysis stays live while inactive; only publication is gated.
	if !viz.Active {
		return
	}

	d := vis.Decide(snap, viz.Params(), now)
	m.decision.Store(&d)
}

// Visualization returns a copy of the current visualization settings.
func (m *Monitor) Visualization() Visualization {
	m.vizMu.RLock()
	defer m.vizMu.RUnlock()
	return m.viz
}

// SetVisualization replaces the visualization settings. Out-of-range values
// are clamped with a warning. The change takes effect on the next pass.
func (m *Monitor) SetVisualization(v Visualization) {
	if v.normalize() {
		m.logger.Warn("visualization settings out of range, clamped",
			"sensitivity", v.Sensitivity)
	}

	m.vizMu.Lock()
	m.viz = v
	m.vizMu.Unlock()
}

// SetActive toggles whether new decisions are published.
func (m *Monitor) SetActive(active bool) {
	m.vizMu.Lock()
	m.viz.Active = active
	m.vizMu.Unlock()
}

// LatestDecision returns the most recently published decision, if any.
func (m *Monitor) LatestDecision() (vis.Decision, bool) {
	d := m.decision.Load()
	if d == nil {
		return vis.Decision{}, false
	}
	return *d, true
}

// Energy returns the last known normalized energy for a frequency range.
func (m *Monitor) Energy(b analyzer.Band) float64 {
	snap := m.snapshot.Load()
	if snap == nil {
		return 0
	}
	switch b {
	case analyzer.Bass:
		return snap.Bass
	case analyzer.Mid:
		return snap.Mid
	case analyzer.High:
		return snap.High
	default:
		return snap.Full
	}
}

// BPM returns the last known tempo estimate.
func (m *Monitor) BPM() float64 {
	snap := m.snapshot.Load()
	if snap == nil {
		return 0
	}
	return snap.BPM
}

// Apply pushes the latest decision to the fixture: at most one effect or
// color command, plus one brightness command. The fixture is powered on
// first if needed. Errors are returned to the caller; the analysis pipeline
// is unaffected.
func (m *Monitor) Apply(dev *ledble.Device) error {
	d, ok := m.LatestDecision()
	if !ok {
		return nil
	}

	if !dev.IsOn() {
		if err := dev.PowerOn(); err != nil {
			return errors.Wrap(err, "failed to power on fixture")
		}
	}

	if d.Effect != ledble.EffectNone {
		if err := dev.SetEffect(d.Effect); err != nil {
			return errors.Wrap(err, "failed to set effect")
		}
	} else {
		if err := dev.SetColor(d.R, d.G, d.B); err != nil {
			return errors.Wrap(err, "failed to set color")
		}
	}

	return errors.Wrap(dev.SetBrightness(d.Brightness), "failed to set brightness")
}
