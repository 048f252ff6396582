package vis

import (
	"testing"
	"time"

	"libdb.so/bleglow/internal/analyzer"
	"libdb.so/bleglow/ledble"
)

var testTime = time.Unix(1700000000, 0)

func params(m Mode) Params {
	return Params{
		Mode:        m,
		Sensitivity: 1.0,
		BassTrigger: true,
		MidTrigger:  true,
		HighTrigger: true,
	}
}

func TestDecideIdempotent(t *testing.T) {
	snap := analyzer.Snapshot{
		Bass: 0.8, Mid: 0.4, High: 0.2, Full: 0.45,
		BassBeat: true, BPM: 130, OnBeat: true,
	}

	modes := []Mode{
		FrequencyColor, EnergyBrightness, BeatEffects,
		SpectralFlow, EnhancedFrequencyColor, BpmSync,
	}
	for _, m := range modes {
		first := Decide(snap, params(m), testTime)
		second := Decide(snap, params(m), testTime)
		if first != second {
			t.Errorf("%s: Decide is not idempotent: %v != %v", m, first, second)
		}
	}
}

func TestFrequencyColorBassDominant(t *testing.T) {
	snap := analyzer.Snapshot{Bass: 0.9, Mid: 0.2, High: 0.1, Full: 0.4}
	p := params(FrequencyColor)
	p.Sensitivity = 0.7

	d := Decide(snap, p, testTime)
	if d.R <= d.G || d.R <= d.B {
		t.Errorf("bass-heavy tone: r=%d not the largest channel (g=%d, b=%d)", d.R, d.G, d.B)
	}
	if d.Effect != ledble.EffectNone {
		t.Errorf("unexpected effect %s", d.Effect)
	}
	// Full energy above the floor threshold keeps every channel lit.
	if d.G < 10 || d.B < 10 {
		t.Errorf("channel floor not applied: g=%d, b=%d", d.G, d.B)
	}
}

func TestEnergyBrightnessScaling(t *testing.T) {
	snap := analyzer.Snapshot{Full: 0.5}
	d := Decide(snap, params(EnergyBrightness), testTime)
	if d.Brightness != 50 {
		t.Errorf("brightness = %d, want 50", d.Brightness)
	}
	// No band dominates: white.
	if d.R != 255 || d.G != 255 || d.B != 255 {
		t.Errorf("color = (%d, %d, %d), want white", d.R, d.G, d.B)
	}
}

func TestEnergyBrightnessDominance(t *testing.T) {
	tests := []struct {
		name    string
		snap    analyzer.Snapshot
		r, g, b uint8
	}{
		{"bass", analyzer.Snapshot{Bass: 0.6, Mid: 0.2, High: 0.1, Full: 0.3}, 255, 0, 0},
		{"mid", analyzer.Snapshot{Bass: 0.2, Mid: 0.6, High: 0.1, Full: 0.3}, 0, 255, 0},
		{"high", analyzer.Snapshot{Bass: 0.1, Mid: 0.2, High: 0.6, Full: 0.3}, 0, 0, 255},
		{"quiet", analyzer.Snapshot{Bass: 0.09, Mid: 0.05, High: 0.02, Full: 0.05}, 255, 255, 255},
	}
	for _, test := range tests {
		d := Decide(test.snap, params(EnergyBrightness), testTime)
		if d.R != test.r || d.G != test.g || d.B != test.b {
			t.Errorf("%s: color = (%d, %d, %d), want (%d, %d, %d)",
				test.name, d.R, d.G, d.B, test.r, test.g, test.b)
		}
	}
}

func TestEnergyBrightnessFloor(t *testing.T) {
	d := Decide(analyzer.Snapshot{}, params(EnergyBrightness), testTime)
	if d.Brightness != 5 {
		t.Errorf("brightness = %d, want floor 5", d.Brightness)
	}
}

func TestBeatEffectsBassWins(t *testing.T) {
	snap := analyzer.Snapshot{
		Bass: 0.9, Mid: 0.9, High: 0.9, Full: 0.9,
		BassBeat: true, MidBeat: true, HighBeat: true,
	}
	d := Decide(snap, params(BeatEffects), testTime)
	if d.R != 255 || d.G != 0 || d.B != 0 {
		t.Errorf("color = (%d, %d, %d), want (255, 0, 0)", d.R, d.G, d.B)
	}
	if d.Effect != ledble.EffectCrossfadeRed {
		t.Errorf("effect = %s, want %s", d.Effect, ledble.EffectCrossfadeRed)
	}
}

func TestBeatEffectsTriggerGates(t *testing.T) {
	snap := analyzer.Snapshot{BassBeat: true, MidBeat: true, Full: 0.5}
	p := params(BeatEffects)
	p.BassTrigger = false

	d := Decide(snap, p, testTime)
	if d.Effect != ledble.EffectCrossfadeGreen {
		t.Errorf("effect = %s, want %s with bass trigger off",
			d.Effect, ledble.EffectCrossfadeGreen)
	}
}

func TestBeatEffectsNoBeat(t *testing.T) {
	d := Decide(analyzer.Snapshot{}, params(BeatEffects), testTime)
	if d.Effect != ledble.EffectNone {
		t.Errorf("effect = %s, want none", d.Effect)
	}
	if d.R != 255 || d.G != 255 || d.B != 255 {
		t.Errorf("color = (%d, %d, %d), want white", d.R, d.G, d.B)
	}
	if d.Brightness != 20 {
		t.Errorf("brightness = %d, want floor 20", d.Brightness)
	}
}

func TestSpectralFlowQuiet(t *testing.T) {
	d := Decide(analyzer.Snapshot{}, params(SpectralFlow), testTime)
	if d.Effect != ledble.EffectCrossfadeRGB {
		t.Errorf("effect = %s, want %s", d.Effect, ledble.EffectCrossfadeRGB)
	}
	if d.Brightness != 20 {
		t.Errorf("brightness = %d, want floor 20", d.Brightness)
	}
	if d.B < d.R || d.B < d.G {
		t.Errorf("quiet pulse not blue-leaning: (%d, %d, %d)", d.R, d.G, d.B)
	}
}

func TestSpectralFlowBassJump(t *testing.T) {
	snap := analyzer.Snapshot{Bass: 0.9, Mid: 0.3, High: 0.2, BassBeat: true}
	d := Decide(snap, params(SpectralFlow), testTime)
	if d.Effect != ledble.EffectJumpAll {
		t.Errorf("effect = %s, want %s", d.Effect, ledble.EffectJumpAll)
	}
}

func TestEnhancedFrequencyColorAmberOverride(t *testing.T) {
	snap := analyzer.Snapshot{Bass: 0.9, Mid: 0.1, High: 0.05, Full: 0.35}
	d := Decide(snap, params(EnhancedFrequencyColor), testTime)
	if d.R != 255 {
		t.Errorf("r = %d, want 255 for bass-heavy override", d.R)
	}
	if d.B != 0 {
		t.Errorf("b = %d, want 0 for bass-heavy override", d.B)
	}
}

func TestEnhancedFrequencyColorCoolOverride(t *testing.T) {
	snap := analyzer.Snapshot{Bass: 0.05, Mid: 0.1, High: 0.9, Full: 0.35}
	d := Decide(snap, params(EnhancedFrequencyColor), testTime)
	if d.B != 255 {
		t.Errorf("b = %d, want 255 for treble-heavy override", d.B)
	}
}

func TestEnhancedFrequencyColorSaturates(t *testing.T) {
	snap := analyzer.Snapshot{Bass: 0.69, Mid: 1.0, High: 1.0, Full: 0.9}
	d := Decide(snap, params(EnhancedFrequencyColor), testTime)
	// mid green 255 + high white tint 180 must clamp, not wrap.
	if d.G != 255 {
		t.Errorf("g = %d, want saturated 255", d.G)
	}
}

func TestBpmSyncSlowOnBeat(t *testing.T) {
	snap := analyzer.Snapshot{
		Bass: 0.5, Mid: 0.5, High: 0.5,
		BPM: 50, OnBeat: true, BassBeat: true,
	}
	d := Decide(snap, params(BpmSync), testTime)
	if d.R != 255 {
		t.Errorf("r = %d, want 255 on slow-tempo bass beat", d.R)
	}
	if d.Effect != ledble.EffectCrossfadeRed {
		t.Errorf("effect = %s, want %s", d.Effect, ledble.EffectCrossfadeRed)
	}
	// base 60 + pulse 40 at full sensitivity.
	if d.Brightness != 100 {
		t.Errorf("brightness = %d, want 100", d.Brightness)
	}
}

func TestBpmSyncMediumOffBeat(t *testing.T) {
	snap := analyzer.Snapshot{Bass: 0.5, Mid: 0.5, High: 0.5, BPM: 100}
	d := Decide(snap, params(BpmSync), testTime)
	if d.Effect != ledble.EffectNone {
		t.Errorf("effect = %s, want none off beat", d.Effect)
	}
	if d.Brightness != 60 {
		t.Errorf("brightness = %d, want base 60", d.Brightness)
	}
}

func TestBpmSyncFastOffBeatDims(t *testing.T) {
	snap := analyzer.Snapshot{Bass: 1.0, Mid: 0, High: 0, BPM: 150}
	d := Decide(snap, params(BpmSync), testTime)
	// bass channel 255*1.2 clamps to 255, dimmed to 70%.
	if d.R != 178 {
		t.Errorf("r = %d, want 178", d.R)
	}
	if d.Effect != ledble.EffectNone {
		t.Errorf("effect = %s, want none off beat", d.Effect)
	}
}

func TestChannelTruncation(t *testing.T) {
	if got := channel(-3); got != 0 {
		t.Errorf("channel(-3) = %d, want 0", got)
	}
	if got := channel(300); got != 255 {
		t.Errorf("channel(300) = %d, want 255", got)
	}
	if got := channel(99.9); got != 99 {
		t.Errorf("channel(99.9) = %d, want 99", got)
	}
}
