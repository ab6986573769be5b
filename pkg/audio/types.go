package audio

import "time"

// Frame represents a single block of audio flowing through the pipeline.
// Frames are the atomic unit of audio transport — captured from the
// microphone, gated by VAD, resampled for transmission, and scheduled for
// playback. A frame is created by the capture or decode step, consumed
// exactly once by the transmit or playback step, then discarded.
type Frame struct {
	// PCM is little-endian signed 16-bit mono audio data.
	PCM []byte

	// SampleRate in Hz (e.g., 48000 for a typical capture device,
	// 16000 for agent input, 24000 for agent output).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame at its sample rate.
func (f Frame) Duration() time.Duration {
	return PCMDuration(len(f.PCM), f.SampleRate)
}

// PCMDuration returns the playback length of n bytes of s16le mono PCM at
// the given sample rate.
func PCMDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 || n <= 0 {
		return 0
	}
	samples := n / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// SilentPCM returns a zero-filled s16le mono PCM buffer covering d at the
// given sample rate. Used to keep a live channel fed during silence without
// leaking speech content.
func SilentPCM(d time.Duration, sampleRate int) []byte {
	if d <= 0 || sampleRate <= 0 {
		return nil
	}
	samples := int(int64(d) * int64(sampleRate) / int64(time.Second))
	return make([]byte, samples*2)
}
