// Package vis turns an analyzer snapshot into a single color, brightness and
// effect decision under one of several selectable modes.
package vis

import (
	"fmt"
	"math"
	"time"

	"libdb.so/bleglow/internal/analyzer"
	"libdb.so/bleglow/ledble"
)

// Mode selects how audio analysis maps to light output.
type Mode string

const (
	// FrequencyColor maps band energies to color channels: bass is red, mid
	// is green, high is blue.
	FrequencyColor Mode = "frequency-color"
	// EnergyBrightness picks a color from the dominant band and drives
	// brightness from overall energy.
	EnergyBrightness Mode = "energy-brightness"
	// BeatEffects triggers fixture effects on detected beats.
	BeatEffects Mode = "beat-effects"
	// SpectralFlow modulates colors with slow time-based phases weighted by
	// band energy.
	SpectralFlow Mode = "spectral-flow"
	// EnhancedFrequencyColor mixes warm tones for bass and cool tones for
	// highs additively.
	EnhancedFrequencyColor Mode = "enhanced-frequency-color"
	// BpmSync synchronizes effects to the estimated tempo.
	BpmSync Mode = "bpm-sync"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	switch m {
	case FrequencyColor, EnergyBrightness, BeatEffects, SpectralFlow,
		EnhancedFrequencyColor, BpmSync:
		return true
	default:
		return false
	}
}

// Params are the knobs Decide reads. Sensitivity scales every energy-to-
// channel conversion and is expected to be in [0, 1].
type Params struct {
	Mode        Mode
	Sensitivity float64
	BassTrigger bool
	MidTrigger  bool
	HighTrigger bool
}

// Decision is the output of one analysis tick: a static color and brightness,
// or an animated effect and brightness. It is immutable once published.
type Decision struct {
	R, G, B    uint8
	Brightness uint8 // 0-100
	Effect     ledble.Effect
}

func (d Decision) String() string {
	if d.Effect != ledble.EffectNone {
		return fmt.Sprintf("effect %s at %d%%", d.Effect, d.Brightness)
	}
	return fmt.Sprintf("rgb(%d, %d, %d) at %d%%", d.R, d.G, d.B, d.Brightness)
}

// Decide computes the decision for one tick. It is pure: identical inputs
// always produce identical decisions.
func Decide(snap analyzer.Snapshot, p Params, now time.Time) Decision {
	switch p.Mode {
	case EnergyBrightness:
		return energyBrightness(snap, p)
	case BeatEffects:
		return beatEffects(snap, p)
	case SpectralFlow:
		return spectralFlow(snap, p, now)
	case EnhancedFrequencyColor:
		return enhancedFrequencyColor(snap, p)
	case BpmSync:
		return bpmSync(snap, p)
	default:
		return frequencyColor(snap, p)
	}
}

func frequencyColor(snap analyzer.Snapshot, p Params) Decision {
	s := p.Sensitivity
	d := Decision{
		R:          channel(snap.Bass * 255 * s),
		G:          channel(snap.Mid * 255 * s),
		B:          channel(snap.High * 255 * s),
		Brightness: 100,
	}
	if snap.Full > 0.05 {
		d.R = max(d.R, 10)
		d.G = max(d.G, 10)
		d.B = max(d.B, 10)
	}
	return d
}

func energyBrightness(snap analyzer.Snapshot, p Params) Decision {
	var d Decision
	switch {
	case snap.Bass > snap.Mid && snap.Bass > snap.High && snap.Bass > 0.1:
		d.R = 255
	case snap.Mid > snap.Bass && snap.Mid > snap.High && snap.Mid > 0.1:
		d.G = 255
	case snap.High > snap.Bass && snap.High > snap.Mid && snap.High > 0.1:
		d.B = 255
	default:
		d.R, d.G, d.B = 255, 255, 255
	}
	d.Brightness = brightness(snap.Full*100*p.Sensitivity, 5, 100)
	return d
}

func beatEffects(snap analyzer.Snapshot, p Params) Decision {
	var d Decision
	switch {
	case snap.BassBeat && p.BassTrigger:
		d.R = 255
		d.Effect = ledble.EffectCrossfadeRed
	case snap.MidBeat && p.MidTrigger:
		d.G = 255
		d.Effect = ledble.EffectCrossfadeGreen
	case snap.HighBeat && p.HighTrigger:
		d.B = 255
		d.Effect = ledble.EffectCrossfadeBlue
	default:
		d.R, d.G, d.B = 255, 255, 255
	}
	d.Brightness = brightness(snap.Full*100*p.Sensitivity, 20, 100)
	return d
}

func spectralFlow(snap analyzer.Snapshot, p Params, now time.Time) Decision {
	s := p.Sensitivity
	t := seconds(now)
	energy := snap.Bass*0.5 + snap.Mid*0.3 + snap.High*0.2

	var d Decision
	if energy < 0.05 {
		// No sound: a gentle time-based pulse in blue-leaning tones.
		pulse := math.Sin(t*0.5)*0.5 + 0.5
		d.R = channel(pulse * 50)
		d.G = channel(pulse * 50)
		d.B = channel(pulse * 80)
		d.Effect = ledble.EffectCrossfadeRGB
	} else {
		bassPhase := math.Sin(t*0.7)*0.5 + 0.5
		midPhase := math.Sin(t*0.7+2)*0.5 + 0.5
		highPhase := math.Sin(t*0.7+4)*0.5 + 0.5
		d.R = channel(bassPhase * 255 * snap.Bass * s)
		d.G = channel(midPhase * 255 * snap.Mid * s)
		d.B = channel(highPhase * 255 * snap.High * s)

		if snap.BassBeat && snap.Bass > 0.7 {
			d.Effect = ledble.EffectJumpAll
		} else {
			d.Effect = ledble.EffectCrossfadeRGB
		}
	}

	d.Brightness = brightness(math.Max(energy*100*s, 20), 0, 100)
	return d
}

func enhancedFrequencyColor(snap analyzer.Snapshot, p Params) Decision {
	s := p.Sensitivity
	var r, g, b float64

	// Additive mixing: bass contributes warm red/yellow, mid green/cyan,
	// high blue/white.
	if snap.Bass > 0.05 {
		r += 255 * snap.Bass * s
		g += 150 * snap.Bass * snap.Bass * s
	}
	if snap.Mid > 0.05 {
		g += 255 * snap.Mid * s
		b += 100 * snap.Mid * snap.Mid * s
	}
	if snap.High > 0.05 {
		b += 255 * snap.High * s
		r += 180 * snap.High * snap.High * s
		g += 180 * snap.High * snap.High * s
	}

	d := Decision{
		R: channel(r),
		G: channel(g),
		B: channel(b),
	}
	if snap.Full > 0.05 {
		d.R = max(d.R, 10)
		d.G = max(d.G, 10)
		d.B = max(d.B, 10)
	}
	d.Brightness = brightness(snap.Full*100*s, 20, 100)

	// Strongly bass-dominant content overrides to amber, strongly
	// treble-dominant to near-white blue.
	if snap.Bass > 0.7 && snap.Bass > 1.5*snap.Mid && snap.Bass > 2*snap.High {
		d.R = 255
		d.G = channel(120 * snap.Bass * s)
		d.B = 0
	}
	if snap.High > 0.7 && snap.High > 1.5*snap.Mid && snap.High > 2*snap.Bass {
		d.R = channel(210 * snap.High * s)
		d.G = channel(220 * snap.High * s)
		d.B = 255
	}
	return d
}

func bpmSync(snap analyzer.Snapshot, p Params) Decision {
	s := p.Sensitivity
	r := channel(snap.Bass * 255 * s * 1.2)
	g := channel(snap.Mid * 255 * s * 1.1)
	b := channel(snap.High * 255 * s * 1.2)

	var d Decision
	switch {
	case snap.BPM < 70:
		// Slow tempo: smooth transitions.
		if snap.OnBeat && snap.BassBeat {
			d.R = 255
			d.G = channel(float64(g) * 0.7)
			d.B = channel(float64(b) * 0.6)
			d.Effect = ledble.EffectCrossfadeRed
		} else {
			d.R, d.G, d.B = r, g, b
			d.Effect = ledble.EffectCrossfadeRGB
		}

	case snap.BPM < 120:
		// Medium tempo: pulse on beats.
		switch {
		case snap.OnBeat && snap.BassBeat:
			d.R, d.G, d.B = 255, 40, 0
			d.Effect = ledble.EffectJumpRGB
		case snap.OnBeat:
			d.R, d.G, d.B = 255, 255, 255
			d.Effect = ledble.EffectCrossfadeWhite
		default:
			d.R, d.G, d.B = r, g, b
		}

	default:
		// Fast tempo: flashy.
		switch {
		case snap.OnBeat && snap.BassBeat:
			d.R, d.G, d.B = 255, 255, 255
			d.Effect = ledble.EffectJumpAll
		case snap.OnBeat:
			d.R, d.G, d.B = r, g, b
			d.Effect = ledble.EffectBlinkAll
		default:
			d.R = channel(float64(r) * 0.7)
			d.G = channel(float64(g) * 0.7)
			d.B = channel(float64(b) * 0.7)
		}
	}

	base := math.Max(60*s, 20)
	if snap.OnBeat {
		d.Brightness = brightness(base+40*s, 0, 100)
	} else {
		d.Brightness = brightness(base, 0, 100)
	}
	return d
}

// channel truncates a float channel value into 0-255.
func channel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// brightness truncates a float percentage into [lo, hi].
func brightness(v, lo, hi float64) uint8 {
	return uint8(math.Min(math.Max(v, lo), hi))
}

func seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
