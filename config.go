package bleglow

import (
	"encoding"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"libdb.so/bleglow/internal/analyzer"
	"libdb.so/bleglow/internal/capture"
	"libdb.so/bleglow/internal/vis"
	"libdb.so/bleglow/ledble"
)

// Config is the configuration for the bleglow daemon.
type Config struct {
	// Device is the serial port of the bridge fronting the fixture.
	// This is usually /dev/ttyUSB0 or /dev/ttyACM0.
	Device string `toml:"device"`
	// Baud is the baud rate for the serial connection.
	Baud int `toml:"baud"`
	// Fixture is the LED fixture variant on the other end.
	Fixture ledble.DeviceType `toml:"fixture"`
	// Audio configures the capture stream.
	Audio AudioConfig `toml:"audio"`
	// Visualization holds the initial visualization settings.
	Visualization Visualization `toml:"visualization"`
}

// AudioConfig is the configuration for audio capture.
type AudioConfig struct {
	// Device is matched as a substring against capture device names.
	// Empty selects the default capture device.
	Device string `toml:"device"`
	// SampleRate is the capture rate in Hz.
	SampleRate int `toml:"sample_rate"`
	// Gain is applied to raw samples before analysis.
	Gain float64 `toml:"gain"`
}

// Visualization holds the settings the pipeline reads every tick. It may be
// replaced at runtime through Monitor.SetVisualization.
type Visualization struct {
	// Range is the frequency range reported by diagnostic logging.
	Range analyzer.Band `toml:"range"`
	// Mode selects how audio maps to light output.
	Mode vis.Mode `toml:"mode"`
	// Sensitivity scales energy-to-output conversion, 0.0-1.0.
	Sensitivity float64 `toml:"sensitivity"`
	// BassTrigger, MidTrigger and HighTrigger gate which beats fire effects
	// in the beat-effects mode.
	BassTrigger bool `toml:"bass_trigger"`
	MidTrigger  bool `toml:"mid_trigger"`
	HighTrigger bool `toml:"high_trigger"`
	// UpdateInterval is the minimum time between visualization updates.
	UpdateInterval TOMLDuration `toml:"update_interval"`
	// Active controls whether decisions are published for the fixture.
	Active bool `toml:"active"`
}

// DefaultVisualization returns the settings the monitor starts with.
func DefaultVisualization() Visualization {
	return Visualization{
		Range:          analyzer.Full,
		Mode:           vis.FrequencyColor,
		Sensitivity:    0.7,
		BassTrigger:    true,
		MidTrigger:     true,
		HighTrigger:    true,
		UpdateInterval: TOMLDuration(50 * time.Millisecond),
		Active:         false,
	}
}

// Params converts the settings into the engine's knobs.
func (v Visualization) Params() vis.Params {
	return vis.Params{
		Mode:        v.Mode,
		Sensitivity: v.Sensitivity,
		BassTrigger: v.BassTrigger,
		MidTrigger:  v.MidTrigger,
		HighTrigger: v.HighTrigger,
	}
}

// normalize clamps out-of-range values and fills zero values with defaults.
// It reports whether anything was clamped.
func (v *Visualization) normalize() bool {
	clamped := false
	if v.Sensitivity < 0 {
		v.Sensitivity = 0
		clamped = true
	}
	if v.Sensitivity > 1 {
		v.Sensitivity = 1
		clamped = true
	}
	if v.Mode == "" {
		v.Mode = vis.FrequencyColor
	}
	if v.UpdateInterval <= 0 {
		v.UpdateInterval = TOMLDuration(50 * time.Millisecond)
	}
	return clamped
}

// Validate validates the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Device == "" {
		return errors.New("no fixture device configured")
	}
	if c.Baud == 0 {
		c.Baud = 115200
	}
	if c.Fixture == "" {
		c.Fixture = ledble.ElkBLE
	} else if !c.Fixture.Valid() {
		return errors.Errorf("unknown fixture type %q", c.Fixture)
	}

	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 44100
	}
	if c.Audio.SampleRate < 0 {
		return errors.Errorf("invalid sample rate %d", c.Audio.SampleRate)
	}
	if c.Audio.Gain == 0 {
		c.Audio.Gain = 5.0
	}

	c.Visualization.normalize()
	if !c.Visualization.Mode.Valid() {
		return errors.Errorf("unknown visualization mode %q", c.Visualization.Mode)
	}
	return nil
}

func (c *Config) captureConfig() capture.Config {
	return capture.Config{
		Device:     c.Audio.Device,
		SampleRate: c.Audio.SampleRate,
		Gain:       c.Audio.Gain,
	}
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader.
func ParseConfig(r io.Reader) (*Config, error) {
	config := Config{Visualization: DefaultVisualization()}
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
