// Package analyzer extracts the audio features that drive the visualization:
// per-band spectral energy, beat detection and tempo estimation over a
// sliding window of samples.
package analyzer

import (
	"log/slog"
	"math"
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"
	"github.com/noriah/catnip/util"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// WindowSize is the number of samples analyzed per tick. It must be a power
// of two for the FFT.
const WindowSize = 2048

const (
	minFreq = 20.0
	maxFreq = 20000.0

	// energyScaling matches the spectrum scaling the fixture tuning was done
	// against. Do not re-derive.
	energyScaling = 0.8

	maxEnergyDecay = 0.9995
	energySmooth   = 0.3
	historyLen     = 20

	beatRefractory = 200 * time.Millisecond
	beatMemory     = 5 * time.Second
	minBeatsForBPM = 4
	minBPM         = 60.0
	maxBPM         = 200.0
	defaultBPM     = 120.0
	bpmBlend       = 0.3
	onBeatSlack    = 0.1 // seconds around a beat boundary counted as on-beat
)

// bandEdges are the fixed frequency spans, in Hz, that energy is aggregated
// over: bass, mid, high.
var bandEdges = [numBands][2]float64{
	{20, 250},
	{250, 2000},
	{2000, 20000},
}

// beatThresholds are the per-band energy spike ratios that qualify as a beat.
var beatThresholds = [numBands]float64{1.4, 1.3, 1.2}

// Analyzer holds the sliding sample window and all band and tempo state. It
// is not safe for concurrent use: a single goroutine feeds and ticks it, and
// shares results through Snapshot values.
type Analyzer struct {
	logger     *slog.Logger
	sampleRate int

	samples [WindowSize]float64
	head    int
	filled  int
	scratch [WindowSize]float64

	energy    [numBands]float64
	smoothed  [numBands]float64
	prev      [numBands]float64
	maxEnergy [numBands]float64
	beat      [numBands]bool
	history   [numBands]*util.MovingWindow

	bpm       float64
	beatTimes []time.Time
	lastBeat  time.Time
}

// New creates an analyzer for samples captured at the given rate.
func New(sampleRate int, logger *slog.Logger) *Analyzer {
	a := &Analyzer{
		logger:     logger,
		sampleRate: sampleRate,
		bpm:        defaultBPM,
	}
	for i := range a.history {
		a.history[i] = util.NewMovingWindow(historyLen)
	}
	for i := range a.maxEnergy {
		// Seed above zero so normalization never divides by zero.
		a.maxEnergy[i] = 0.01
	}
	return a
}

// AddSample appends a sample to the analysis window, evicting the oldest one
// once the window is full. It never blocks and never fails.
func (a *Analyzer) AddSample(s float64) {
	a.samples[a.head] = s
	a.head = (a.head + 1) % WindowSize
	if a.filled < WindowSize {
		a.filled++
	}
}

// Analyze runs one analysis tick: transform, band energy extraction and beat
// detection. It is a no-op until the window has filled. A failed transform is
// logged and the tick skipped; band and tempo state carry over unchanged.
func (a *Analyzer) Analyze(now time.Time) {
	if a.filled < WindowSize {
		return
	}

	mags, err := a.spectrum()
	if err != nil {
		a.logger.Warn("spectrum analysis failed, skipping tick", "error", err)
		return
	}

	a.extractEnergy(mags)
	a.detectBeats(now)
}

// spectrum windows the sample ring and returns the magnitude of each
// transform bin up to the Nyquist frequency.
func (a *Analyzer) spectrum() ([]float64, error) {
	// Unroll the ring oldest-first. With a full window, head points at the
	// oldest sample.
	n := copy(a.scratch[:], a.samples[a.head:])
	copy(a.scratch[n:], a.samples[:a.head])

	for _, s := range a.scratch {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, errors.New("window contains non-finite samples")
		}
	}

	window.Hann(a.scratch[:])
	spectrum := fft.FFTReal(a.scratch[:])

	mags := make([]float64, WindowSize/2+1)
	for i := range mags {
		mags[i] = cmplx.Abs(spectrum[i])
	}
	return mags, nil
}

// extractEnergy averages bin magnitudes per band and updates the smoothed and
// maximum energies. Bands with no bins in range are left unchanged.
func (a *Analyzer) extractEnergy(mags []float64) {
	binWidth := float64(a.sampleRate) / WindowSize

	for i, edges := range bandEdges {
		lo := math.Max(edges[0], minFreq)
		hi := math.Min(edges[1], maxFreq)

		start := int(math.Ceil(lo / binWidth))
		end := int(math.Floor(hi / binWidth))
		if end > len(mags)-1 {
			end = len(mags) - 1
		}
		if start > end {
			continue
		}

		band := mags[start : end+1]
		e := floats.Sum(band) / float64(len(band)) * energyScaling

		a.energy[i] = e
		a.maxEnergy[i] = a.maxEnergy[i]*maxEnergyDecay + e*(1-maxEnergyDecay)
		if e > a.maxEnergy[i] {
			a.maxEnergy[i] = e
		}
		a.smoothed[i] = a.smoothed[i]*(1-energySmooth) + e*energySmooth
	}
}

// detectBeats flags per-band beats for this tick and feeds the bass beats
// into the tempo estimate.
func (a *Analyzer) detectBeats(now time.Time) {
	for i := range a.energy {
		e := a.energy[i]
		localAvg, _ := a.history[i].Update(e)

		a.beat[i] = false

		normalized := 0.0
		if a.maxEnergy[i] > 0 {
			normalized = e / a.maxEnergy[i]
		}

		sinceLast := now.Sub(a.lastBeat)
		isBeat := normalized > 0.3 &&
			(e > a.prev[i]*beatThresholds[i] ||
				(e > localAvg*1.3 && sinceLast > beatRefractory))

		if isBeat {
			a.beat[i] = true

			// Tempo tracks the bass band only.
			if Band(i) == Bass && sinceLast > beatRefractory {
				a.recordBassBeat(now)
			}
		}

		a.prev[i] = e
	}
}

// recordBassBeat appends a bass beat timestamp and refreshes the BPM
// estimate from the beats of the last few seconds.
func (a *Analyzer) recordBassBeat(now time.Time) {
	a.lastBeat = now
	a.beatTimes = append(a.beatTimes, now)
	for len(a.beatTimes) > 0 && now.Sub(a.beatTimes[0]) > beatMemory {
		a.beatTimes = a.beatTimes[1:]
	}

	if len(a.beatTimes) < minBeatsForBPM {
		return
	}

	span := a.beatTimes[len(a.beatTimes)-1].Sub(a.beatTimes[0]).Seconds()
	if span <= 0 {
		return
	}

	instant := float64(len(a.beatTimes)-1) * 60.0 / span
	if instant < minBPM || instant > maxBPM {
		// Implausible tempo; keep the running estimate.
		return
	}
	a.bpm = a.bpm*(1-bpmBlend) + instant*bpmBlend
}

// NormalizedEnergy returns the smoothed energy of a band scaled into [0, 1]
// by its running maximum. Full averages the three bands; a band whose maximum
// is zero contributes zero.
func (a *Analyzer) NormalizedEnergy(b Band) float64 {
	if b == Full {
		sum := 0.0
		for i := Bass; i <= High; i++ {
			sum += a.normalized(int(i))
		}
		return sum / numBands
	}
	return a.normalized(int(b))
}

func (a *Analyzer) normalized(i int) float64 {
	if a.maxEnergy[i] <= 0 {
		return 0
	}
	return math.Min(a.smoothed[i]/a.maxEnergy[i], 1)
}

// BeatDetected reports whether a beat was flagged in the band on the current
// tick. Full reports a beat in any band.
func (a *Analyzer) BeatDetected(b Band) bool {
	if b == Full {
		return a.beat[Bass] || a.beat[Mid] || a.beat[High]
	}
	return a.beat[b]
}

// BPM returns the current tempo estimate in beats per minute.
func (a *Analyzer) BPM() float64 { return a.bpm }

// IsOnBeat reports whether now falls within the on-beat slack of a beat
// boundary predicted by the tempo estimate.
func (a *Analyzer) IsOnBeat(now time.Time) bool {
	if a.bpm <= 0 {
		return false
	}
	spb := 60.0 / a.bpm
	pos := math.Mod(now.Sub(a.lastBeat).Seconds(), spb)
	return pos < onBeatSlack || pos > spb-onBeatSlack
}

// Snapshot captures the analyzer outputs for one tick. It is an immutable
// value; the visualization engine is a pure function over it.
type Snapshot struct {
	Bass float64
	Mid  float64
	High float64
	Full float64

	BassBeat bool
	MidBeat  bool
	HighBeat bool

	BPM    float64
	OnBeat bool
}

// Snapshot returns the current analyzer outputs.
func (a *Analyzer) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		Bass:     a.NormalizedEnergy(Bass),
		Mid:      a.NormalizedEnergy(Mid),
		High:     a.NormalizedEnergy(High),
		Full:     a.NormalizedEnergy(Full),
		BassBeat: a.beat[Bass],
		MidBeat:  a.beat[Mid],
		HighBeat: a.beat[High],
		BPM:      a.bpm,
		OnBeat:   a.IsOnBeat(now),
	}
}
