package analysis

import (
	"sync"
	"time"

	"github.com/cadenza-ai/cadenza/pkg/audio"
	"github.com/cadenza-ai/cadenza/pkg/provider/landmarks"
	"github.com/cadenza-ai/cadenza/pkg/session"
)

const (
	// energyScale maps normalized RMS (0..1) onto the energy range used by
	// the accumulator, so full-scale PCM approaches the level ceiling.
	energyScale = 200.0

	// paceLower and paceUpper bound the words-per-minute range scored as
	// ideal pace. Tunable.
	paceLower = 90.0
	paceUpper = 140.0
)

// Engine owns the live delivery metrics for one interview session. Audio and
// video ticks arrive from independent loops; the Engine serializes them and
// keeps a single MetricsSnapshot current.
//
// After Stop, ticks become no-ops and Snapshot keeps returning the final
// values.
type Engine struct {
	mu      sync.Mutex
	acc     *Accumulator
	gaze    *GazeTracker
	metrics session.MetricsSnapshot
	stopped bool
}

// NewEngine creates an Engine with empty rolling state.
func NewEngine() *Engine {
	return &Engine{
		acc:  NewAccumulator(),
		gaze: NewGazeTracker(),
	}
}

// AudioTick folds one captured PCM frame into the audio metrics. ts is the
// frame's capture timestamp and must be monotonic across calls.
func (e *Engine) AudioTick(pcm []byte, ts time.Duration) {
	e.ObserveEnergy(audio.RMS(pcm)*energyScale, ts)
}

// ObserveEnergy folds one raw energy sample into the audio metrics.
func (e *Engine) ObserveEnergy(energy float64, ts time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}

	stats := e.acc.Observe(energy, ts)
	e.metrics.AudioLevel = stats.AudioLevel
	e.metrics.VolumeStability = stats.VolumeStability
	e.metrics.SpeechRate = stats.SpeechRate
	e.metrics.PauseRatio = stats.PauseRatio
	if stats.SpeechRate > 0 {
		e.metrics.Clarity = round1(0.5*stats.VolumeStability + 0.5*stats.AudioLevel/10)
	}
	e.metrics.Confidence = e.confidence()
}

// VideoTick folds one landmark detection into the gaze metrics. A nil frame
// means no face was detected; the tick then reports zero eye contact and zero
// confidence without polluting the gaze history.
func (e *Engine) VideoTick(frame *landmarks.Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}

	if frame == nil {
		e.metrics.EyeContact = 0
		e.metrics.Confidence = 0
		return
	}
	e.metrics.EyeContact = e.gaze.Observe(frame)
	e.metrics.Confidence = e.confidence()
}

// confidence blends the current metrics. While the candidate is speaking the
// score weighs eye contact, volume stability and pace; while listening it
// tracks eye contact alone. Callers must hold e.mu.
func (e *Engine) confidence() float64 {
	if e.metrics.SpeechRate <= 0 {
		return e.metrics.EyeContact
	}
	score := 0.4*e.metrics.EyeContact +
		0.3*(e.metrics.VolumeStability*10) +
		0.3*paceScore(e.metrics.SpeechRate)
	return round1(score)
}

// paceScore rates the speech rate against the ideal band.
func paceScore(wpm float64) float64 {
	switch {
	case wpm > paceUpper:
		return 70
	case wpm < paceLower:
		return 60
	default:
		return 100
	}
}

// Snapshot returns a copy of the current metrics.
func (e *Engine) Snapshot() session.MetricsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// Stop freezes the metrics and clears the rolling buffers. Subsequent ticks
// are no-ops; Snapshot keeps returning the values from just before Stop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	e.acc.Reset()
	e.gaze.Reset()
}
