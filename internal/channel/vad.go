package channel

import "time"

// Default VAD tuning. Energy is normalized RMS in [0, 1].
const (
	DefaultVoiceThreshold = 0.02
	DefaultHangover       = 800 * time.Millisecond
)

// vadGate classifies capture frames as speech or silence using energy
// thresholding with a trailing hangover window: once voice is detected the
// gate stays open until the hangover has elapsed since the last voiced frame,
// so natural inter-word gaps do not chop the stream.
//
// Not safe for concurrent use; owned by the capture loop.
type vadGate struct {
	threshold float64
	hangover  time.Duration

	speaking  bool
	lastVoice time.Duration
}

func newVADGate(threshold float64, hangover time.Duration) *vadGate {
	if threshold <= 0 {
		threshold = DefaultVoiceThreshold
	}
	if hangover <= 0 {
		hangover = DefaultHangover
	}
	return &vadGate{threshold: threshold, hangover: hangover}
}

// Classify reports whether the frame at ts should be transmitted as speech.
// ts must be monotonic across calls.
func (v *vadGate) Classify(energy float64, ts time.Duration) bool {
	if energy > v.threshold {
		v.speaking = true
		v.lastVoice = ts
		return true
	}
	if v.speaking && ts-v.lastVoice <= v.hangover {
		return true
	}
	v.speaking = false
	return false
}
