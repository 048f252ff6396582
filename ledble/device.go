package ledble

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

const (
	commandAttempts = 3
	retryBackoff    = 300 * time.Millisecond
)

// Device is a connected LED fixture. It serializes commands, enforces the
// minimum inter-command delay the fixture needs, and retries transient write
// failures. All methods are safe for concurrent use.
type Device struct {
	logger *slog.Logger
	typ    DeviceType
	delay  time.Duration

	mu         sync.Mutex
	port       io.WriteCloser
	lastCmd    time.Time
	isOn       bool
	color      [3]uint8
	brightness uint8
	effect     Effect
}

// Dial opens the serial port of the bridge fronting the fixture and returns a
// Device speaking through it.
func Dial(path string, baud int, typ DeviceType, logger *slog.Logger) (*Device, error) {
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}
	return NewDevice(port, typ, logger), nil
}

// NewDevice wraps an already-open transport. The transport must deliver each
// written frame to the fixture as-is.
func NewDevice(port io.WriteCloser, typ DeviceType, logger *slog.Logger) *Device {
	return &Device{
		logger: logger,
		typ:    typ,
		delay:  time.Duration(typ.params().commandDelay) * time.Millisecond,
		port:   port,
	}
}

// Close closes the underlying transport.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return errors.Wrap(d.port.Close(), "failed to close transport")
}

// IsOn reports the last known power state of the fixture.
func (d *Device) IsOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isOn
}

// PowerOn turns the fixture on.
func (d *Device) PowerOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.send(d.typ.PowerOnCommand()); err != nil {
		return err
	}
	d.isOn = true
	d.logger.Info("fixture powered on")
	return nil
}

// PowerOff turns the fixture off.
func (d *Device) PowerOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.send(d.typ.PowerOffCommand()); err != nil {
		return err
	}
	d.isOn = false
	d.logger.Info("fixture powered off")
	return nil
}

// SetColor sets a static RGB color, clearing any active effect first.
func (d *Device) SetColor(r, g, b uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.clearEffect(); err != nil {
		return err
	}
	if err := d.send(SetColorCommand(r, g, b)); err != nil {
		return err
	}
	d.color = [3]uint8{r, g, b}
	d.effect = EffectNone
	d.logger.Debug("color set", "r", r, "g", g, "b", b)
	return nil
}

// SetBrightness sets the brightness percentage. Out-of-range values are
// clamped to 100 with a warning rather than rejected.
func (d *Device) SetBrightness(value uint8) error {
	if value > 100 {
		d.logger.Warn("brightness out of range, clamping",
			"value", value,
			"max", 100)
		value = 100
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.send(SetBrightnessCommand(value)); err != nil {
		return err
	}
	d.brightness = value
	d.logger.Debug("brightness set", "value", value)
	return nil
}

// SetEffect activates one of the fixture's built-in animated effects.
func (d *Device) SetEffect(e Effect) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.send(SetEffectCommand(e)); err != nil {
		return err
	}
	d.effect = e
	d.logger.Debug("effect set", "effect", e)
	return nil
}

// SetColorTemp sets a white color temperature in Kelvin. Values outside the
// fixture's supported range are clamped with a warning.
func (d *Device) SetColorTemp(kelvin int) error {
	p := d.typ.params()
	clamped := kelvin
	if clamped < p.minKelvin {
		clamped = p.minKelvin
	}
	if clamped > p.maxKelvin {
		clamped = p.maxKelvin
	}
	if clamped != kelvin {
		d.logger.Warn("color temperature out of range, clamping",
			"kelvin", kelvin,
			"min", p.minKelvin,
			"max", p.maxKelvin)
	}
	warm := uint8((clamped - p.minKelvin) * 100 / (p.maxKelvin - p.minKelvin))

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.clearEffect(); err != nil {
		return err
	}
	if err := d.send(SetColorTempCommand(warm)); err != nil {
		return err
	}
	d.effect = EffectNone
	d.logger.Debug("color temperature set", "kelvin", clamped)
	return nil
}

// clearEffect leaves effect mode if an effect is active. Callers must hold mu.
func (d *Device) clearEffect() error {
	if d.effect == EffectNone {
		return nil
	}
	d.logger.Debug("clearing active effect", "effect", d.effect)
	return d.send(ClearEffectCommand())
}

// send writes one frame, waiting out the fixture's command delay and retrying
// transient failures. Callers must hold mu.
func (d *Device) send(cmd Command) error {
	if since := time.Since(d.lastCmd); since < d.delay {
		time.Sleep(d.delay - since)
	}

	var lastErr error
	for attempt := 1; attempt <= commandAttempts; attempt++ {
		_, err := d.port.Write(cmd[:])
		if err == nil {
			d.lastCmd = time.Now()
			return nil
		}
		lastErr = err
		d.logger.Warn("command write failed",
			"command", cmd,
			"attempt", attempt,
			"error", err)
		if attempt < commandAttempts {
			time.Sleep(retryBackoff)
		}
	}

	d.lastCmd = time.Now()
	return errors.Wrapf(lastErr, "command failed after %d attempts", commandAttempts)
}
