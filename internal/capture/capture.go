// Package capture provides the live audio input stream feeding the monitor.
package capture

import (
	"encoding/binary"
	"log/slog"
	"math"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/pkg/errors"
)

// Config selects and shapes the capture stream.
type Config struct {
	// Device is matched as a substring against capture device names.
	// Empty selects the default capture device.
	Device string
	// SampleRate is the capture rate in Hz.
	SampleRate int
	// Gain is applied to every sample before it is handed off.
	Gain float64
}

// Stream is an open capture session. Samples are delivered through the
// callback passed to Open, on the audio thread.
type Stream struct {
	logger *slog.Logger
	ctx    *malgo.AllocatedContext
	dev    *malgo.Device
}

// Open opens the configured capture device. onSample is invoked from the
// audio subsystem's own thread for every captured sample and must never
// block; dropping is the caller's policy.
func Open(cfg Config, onSample func(float64), logger *slog.Logger) (*Stream, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize audio context")
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = 1
	devCfg.SampleRate = uint32(cfg.SampleRate)
	devCfg.Alsa.NoMMap = 1

	if cfg.Device != "" {
		infos, err := mctx.Devices(malgo.Capture)
		if err != nil {
			closeContext(mctx)
			return nil, errors.Wrap(err, "failed to enumerate capture devices")
		}

		found := false
		for i := range infos {
			if strings.Contains(infos[i].Name(), cfg.Device) {
				devCfg.Capture.DeviceID = infos[i].ID.Pointer()
				logger.Info("using capture device", "name", infos[i].Name())
				found = true
				break
			}
		}
		if !found {
			closeContext(mctx)
			return nil, errors.Errorf("no capture device matching %q", cfg.Device)
		}
	}

	gain := cfg.Gain
	if gain <= 0 {
		gain = 1
	}

	onRecv := func(_, in []byte, frameCount uint32) {
		for i := uint32(0); i < frameCount; i++ {
			bits := binary.LittleEndian.Uint32(in[i*4 : i*4+4])
			onSample(float64(math.Float32frombits(bits)) * gain)
		}
	}

	dev, err := malgo.InitDevice(mctx.Context, devCfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		closeContext(mctx)
		return nil, errors.Wrap(err, "failed to open capture device")
	}

	logger.Debug("capture stream opened",
		"sample_rate", cfg.SampleRate,
		"gain", gain)

	return &Stream{logger: logger, ctx: mctx, dev: dev}, nil
}

// Start begins capturing. Samples flow until Close.
func (s *Stream) Start() error {
	return s.dev.Start()
}

// Close stops capturing and releases the device. It is idempotent in effect:
// a closed stream stays closed.
func (s *Stream) Close() error {
	s.dev.Uninit()
	return errors.Wrap(closeContext(s.ctx), "failed to release audio context")
}

func closeContext(ctx *malgo.AllocatedContext) error {
	err := ctx.Uninit()
	ctx.Free()
	return err
}
