package analyzer

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"
)

const testSampleRate = 44100

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// feedSine fills the analyzer with n samples of a pure tone.
func feedSine(a *Analyzer, freq float64, n int) {
	for i := 0; i < n; i++ {
		a.AddSample(0.8 * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate))
	}
}

func TestAnalyzeColdStart(t *testing.T) {
	a := New(testSampleRate, testLogger())
	feedSine(a, 440, WindowSize-1)

	a.Analyze(time.Now())

	for i, e := range a.energy {
		if e != 0 {
			t.Errorf("band %d: energy %f after partial window, want 0", i, e)
		}
	}
	if a.BeatDetected(Full) {
		t.Error("beat detected before the window filled")
	}
	if a.BPM() != defaultBPM {
		t.Errorf("BPM perturbed before the window filled: %f", a.BPM())
	}
}

func TestDominantBand(t *testing.T) {
	tests := []struct {
		freq float64
		band Band
	}{
		{100, Bass},
		{1000, Mid},
		{5000, High},
	}

	for _, test := range tests {
		a := New(testSampleRate, testLogger())
		feedSine(a, test.freq, WindowSize)
		a.Analyze(time.Now())

		for b := Bass; b <= High; b++ {
			if b == test.band {
				continue
			}
			if a.energy[b] >= a.energy[test.band] {
				t.Errorf("%.0f Hz tone: %s energy %f not below %s energy %f",
					test.freq, b, a.energy[b], test.band, a.energy[test.band])
			}
		}
	}
}

func TestSnapshotMirrorsAnalyzer(t *testing.T) {
	a := New(testSampleRate, testLogger())
	feedSine(a, 100, WindowSize)
	now := time.Now()
	a.Analyze(now)

	snap := a.Snapshot(now)
	if snap.Bass != a.NormalizedEnergy(Bass) ||
		snap.Mid != a.NormalizedEnergy(Mid) ||
		snap.High != a.NormalizedEnergy(High) ||
		snap.Full != a.NormalizedEnergy(Full) {
		t.Errorf("snapshot energies %+v do not mirror the accessors", snap)
	}
	if snap.BassBeat != a.BeatDetected(Bass) ||
		snap.MidBeat != a.BeatDetected(Mid) ||
		snap.HighBeat != a.BeatDetected(High) {
		t.Errorf("snapshot beat flags %+v do not mirror the accessors", snap)
	}
	if snap.BPM != a.BPM() {
		t.Errorf("snapshot BPM = %f, analyzer BPM = %f", snap.BPM, a.BPM())
	}
	if snap.OnBeat != a.IsOnBeat(now) {
		t.Errorf("snapshot OnBeat = %v, analyzer = %v", snap.OnBeat, a.IsOnBeat(now))
	}
}

func TestNormalizedEnergyBounds(t *testing.T) {
	a := New(testSampleRate, testLogger())

	// Smoothed energy above the decayed maximum must still clamp to 1.
	a.smoothed[Bass] = 5
	a.maxEnergy[Bass] = 2
	if got := a.NormalizedEnergy(Bass); got != 1 {
		t.Errorf("NormalizedEnergy(Bass) = %f, want 1", got)
	}

	// A zero maximum contributes zero, never NaN.
	a.maxEnergy[Mid] = 0
	a.smoothed[Mid] = 3
	if got := a.NormalizedEnergy(Mid); got != 0 {
		t.Errorf("NormalizedEnergy(Mid) = %f, want 0", got)
	}
	if full := a.NormalizedEnergy(Full); math.IsNaN(full) || full < 0 || full > 1 {
		t.Errorf("NormalizedEnergy(Full) = %f, want value in [0, 1]", full)
	}
}

func TestBeatRefractory(t *testing.T) {
	a := New(testSampleRate, testLogger())
	a.maxEnergy[Bass] = 1

	start := time.Unix(1000, 0)
	for i := 0; i < 40; i++ {
		// Alternate loud and quiet bass so every loud tick is a spike.
		if i%2 == 0 {
			a.energy[Bass] = 1.0
		} else {
			a.energy[Bass] = 0.05
		}
		a.detectBeats(start.Add(time.Duration(i) * 50 * time.Millisecond))
	}

	if len(a.beatTimes) < 2 {
		t.Fatalf("expected multiple recorded beats, got %d", len(a.beatTimes))
	}
	for i := 1; i < len(a.beatTimes); i++ {
		if gap := a.beatTimes[i].Sub(a.beatTimes[i-1]); gap <= beatRefractory {
			t.Errorf("beats %d and %d only %v apart, want > %v",
				i-1, i, gap, beatRefractory)
		}
	}
}

func TestBPMRejectsImplausibleTempo(t *testing.T) {
	a := New(testSampleRate, testLogger())

	// Beats 100 ms apart imply 600 BPM; the estimate must not move.
	start := time.Unix(2000, 0)
	for i := 0; i < 8; i++ {
		a.recordBassBeat(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	if a.BPM() != defaultBPM {
		t.Errorf("BPM = %f after implausible beats, want %f", a.BPM(), defaultBPM)
	}
}

func TestBPMBlendsPlausibleTempo(t *testing.T) {
	a := New(testSampleRate, testLogger())

	// Beats 600 ms apart imply 100 BPM; starting from 120, the first
	// accepted estimate blends to 120*0.7 + 100*0.3 = 114.
	start := time.Unix(3000, 0)
	for i := 0; i < minBeatsForBPM; i++ {
		a.recordBassBeat(start.Add(time.Duration(i) * 600 * time.Millisecond))
	}
	if got := a.BPM(); math.Abs(got-114) > 1e-9 {
		t.Errorf("BPM = %f, want 114", got)
	}
}

func TestBeatTimesEviction(t *testing.T) {
	a := New(testSampleRate, testLogger())

	start := time.Unix(4000, 0)
	for i := 0; i < 20; i++ {
		a.recordBassBeat(start.Add(time.Duration(i) * 600 * time.Millisecond))
	}

	newest := a.beatTimes[len(a.beatTimes)-1]
	for _, ts := range a.beatTimes {
		if newest.Sub(ts) > beatMemory {
			t.Errorf("beat at %v older than %v retained", ts, beatMemory)
		}
	}
}

func TestIsOnBeat(t *testing.T) {
	a := New(testSampleRate, testLogger())
	a.bpm = 120 // 500 ms per beat
	a.lastBeat = time.Unix(5000, 0)

	tests := []struct {
		offset time.Duration
		want   bool
	}{
		{50 * time.Millisecond, true},
		{250 * time.Millisecond, false},
		{460 * time.Millisecond, true},
		{550 * time.Millisecond, true},
	}
	for _, test := range tests {
		if got := a.IsOnBeat(a.lastBeat.Add(test.offset)); got != test.want {
			t.Errorf("IsOnBeat(+%v) = %v, want %v", test.offset, got, test.want)
		}
	}

	a.bpm = 0
	if a.IsOnBeat(a.lastBeat) {
		t.Error("IsOnBeat with zero BPM, want false")
	}
}

func TestTransformFailureSkipsTick(t *testing.T) {
	a := New(testSampleRate, testLogger())
	feedSine(a, 100, WindowSize)
	a.Analyze(time.Now())
	before := a.energy

	a.AddSample(math.NaN())
	a.Analyze(time.Now())

	if a.energy != before {
		t.Errorf("energy changed on a failed transform: %v != %v", a.energy, before)
	}
}

func TestWindowEviction(t *testing.T) {
	a := New(testSampleRate, testLogger())
	for i := 0; i < WindowSize*2; i++ {
		a.AddSample(float64(i))
	}
	if a.filled != WindowSize {
		t.Fatalf("filled = %d, want %d", a.filled, WindowSize)
	}

	// The ring must hold the newest WindowSize samples oldest-first.
	n := copy(a.scratch[:], a.samples[a.head:])
	copy(a.scratch[n:], a.samples[:a.head])
	if a.scratch[0] != float64(WindowSize) {
		t.Errorf("oldest retained sample = %f, want %d", a.scratch[0], WindowSize)
	}
	if a.scratch[WindowSize-1] != float64(WindowSize*2-1) {
		t.Errorf("newest retained sample = %f, want %d", a.scratch[WindowSize-1], WindowSize*2-1)
	}
}
