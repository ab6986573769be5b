// Package analysis turns raw audio energy and facial landmark frames into
// the smoothed delivery metrics shown to the candidate and attached to each
// question assessment.
//
// The package is split into three layers: Accumulator (rolling-window audio
// statistics, pure computation), the gaze classifier in gaze.go (per-frame
// geometric test plus history, pure computation), and Engine (owns the live
// MetricsSnapshot and serializes ticks).
package analysis

import (
	"math"
	"time"
)

const (
	// levelCeiling is the energy value that maps to audioLevel 100 under
	// logarithmic compression.
	levelCeiling = 200.0

	// noiseFloor is the minimum energy admitted to the volume-stability
	// buffer; quieter samples are treated as background noise.
	noiseFloor = 5.0

	// speechEnergyThreshold classifies a tick as speech inside the rolling
	// speech window.
	speechEnergyThreshold = 10.0

	// speechWindow is the length of the rolling (timestamp, isSpeech) window.
	speechWindow = 500 * time.Millisecond

	// volumeBufferSize is the number of recent above-floor energy samples
	// kept for the stability variance.
	volumeBufferSize = 5

	// wordsPerActiveSecond is the empirical speech-to-words conversion
	// factor. A heuristic proxy, not a word counter; treat as tunable.
	wordsPerActiveSecond = 2.5
)

type speechSample struct {
	ts       time.Duration
	isSpeech bool
}

// AudioStats is the per-tick output of the Accumulator.
type AudioStats struct {
	// AudioLevel is the log-compressed energy, 0–100.
	AudioLevel float64

	// VolumeStability is 10 minus a variance penalty, clamped at 0.
	VolumeStability float64

	// SpeechRate is the extrapolated words-per-minute estimate, ≥0.
	SpeechRate float64

	// PauseRatio is the non-speech fraction of the window, 0–100.
	PauseRatio float64
}

// Accumulator maintains rolling-window statistics over raw energy samples.
// It is pure computation with no I/O and is not safe for concurrent use;
// the Engine serializes access.
type Accumulator struct {
	energies []float64
	window   []speechSample
	stats    AudioStats
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		energies: make([]float64, 0, volumeBufferSize),
	}
}

// Observe folds one energy sample at timestamp ts into the rolling windows
// and returns the updated statistics. ts must be monotonic across calls.
func (a *Accumulator) Observe(energy float64, ts time.Duration) AudioStats {
	a.stats.AudioLevel = compressLevel(energy)
	a.observeVolume(energy)
	a.observeSpeech(energy, ts)
	return a.stats
}

// Stats returns the most recently computed statistics.
func (a *Accumulator) Stats() AudioStats { return a.stats }

// Reset clears all rolling buffers.
func (a *Accumulator) Reset() {
	a.energies = a.energies[:0]
	a.window = nil
	a.stats = AudioStats{}
}

// compressLevel applies logarithmic compression to an energy value,
// mapping [0, levelCeiling] onto [0, 100].
func compressLevel(energy float64) float64 {
	if energy < 0 {
		energy = 0
	}
	level := math.Log10(energy+1) / math.Log10(levelCeiling) * 100
	return clamp(level, 0, 100)
}

// observeVolume updates the 5-sample stability buffer. Samples below the
// noise floor are ignored so silence does not read as instability.
func (a *Accumulator) observeVolume(energy float64) {
	if energy < noiseFloor {
		return
	}
	if len(a.energies) == volumeBufferSize {
		copy(a.energies, a.energies[1:])
		a.energies = a.energies[:volumeBufferSize-1]
	}
	a.energies = append(a.energies, energy)

	stability := 10 - math.Sqrt(variance(a.energies))/5
	a.stats.VolumeStability = round1(math.Max(0, stability))
}

// observeSpeech updates the 500 ms speech window and derives speech rate and
// pause ratio from the in-window speech fraction.
func (a *Accumulator) observeSpeech(energy float64, ts time.Duration) {
	a.window = append(a.window, speechSample{ts: ts, isSpeech: energy > speechEnergyThreshold})

	// Prune entries older than the window.
	cutoff := ts - speechWindow
	keep := 0
	for keep < len(a.window) && a.window[keep].ts <= cutoff {
		keep++
	}
	a.window = a.window[keep:]

	speech := 0
	for _, s := range a.window {
		if s.isSpeech {
			speech++
		}
	}

	if speech == 0 {
		a.stats.SpeechRate = 0
		a.stats.PauseRatio = 100
		return
	}

	fraction := float64(speech) / float64(len(a.window))
	activeSeconds := fraction * speechWindow.Seconds()
	words := activeSeconds * wordsPerActiveSecond
	a.stats.SpeechRate = words / speechWindow.Seconds() * 60
	a.stats.PauseRatio = (1 - fraction) * 100
}

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return sq / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
