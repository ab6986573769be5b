package analysis

import (
	"math"
	"testing"
	"time"
)

func TestCompressLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		energy float64
		want   float64
	}{
		{name: "silence", energy: 0, want: 0},
		{name: "negative clamps to zero", energy: -3, want: 0},
		{name: "ceiling maps to 100", energy: 199, want: 100},
		{name: "above ceiling clamps", energy: 10000, want: 100},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := compressLevel(tt.energy)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("compressLevel(%v) = %v, want %v", tt.energy, got, tt.want)
			}
		})
	}
}

func TestCompressLevel_Monotonic(t *testing.T) {
	t.Parallel()

	prev := compressLevel(0)
	for energy := 1.0; energy < 200; energy++ {
		got := compressLevel(energy)
		if got < prev {
			t.Fatalf("compressLevel not monotonic at energy %v: %v < %v", energy, got, prev)
		}
		prev = got
	}
}

func TestVolumeStability_ConstantInput(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	var stats AudioStats
	for i := 0; i < 5; i++ {
		stats = acc.Observe(10, time.Duration(i)*50*time.Millisecond)
	}
	if stats.VolumeStability != 10.0 {
		t.Errorf("VolumeStability = %v, want 10.0 for constant input", stats.VolumeStability)
	}
}

func TestVolumeStability_HighVarianceClampsAtZero(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	var stats AudioStats
	for i, energy := range []float64{5, 200, 5, 200, 5} {
		stats = acc.Observe(energy, time.Duration(i)*50*time.Millisecond)
	}
	if stats.VolumeStability != 0 {
		t.Errorf("VolumeStability = %v, want 0 for wildly varying input", stats.VolumeStability)
	}
}

func TestVolumeStability_IgnoresBelowNoiseFloor(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	for i := 0; i < 5; i++ {
		acc.Observe(50, time.Duration(i)*50*time.Millisecond)
	}
	// Near-silence must not register as instability.
	stats := acc.Observe(1, 250*time.Millisecond)
	if stats.VolumeStability != 10.0 {
		t.Errorf("VolumeStability = %v, want 10.0 after sub-floor sample", stats.VolumeStability)
	}
}

func TestSpeechWindow_EmptyWindowDefaults(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	stats := acc.Observe(0, 0)
	if stats.SpeechRate != 0 {
		t.Errorf("SpeechRate = %v, want 0", stats.SpeechRate)
	}
	if stats.PauseRatio != 100 {
		t.Errorf("PauseRatio = %v, want 100", stats.PauseRatio)
	}
}

func TestSpeechWindow_ContinuousSpeech(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	var stats AudioStats
	for i := 0; i < 10; i++ {
		stats = acc.Observe(50, time.Duration(i)*50*time.Millisecond)
	}
	if want := 150.0; stats.SpeechRate != want {
		t.Errorf("SpeechRate = %v, want %v for a fully active window", stats.SpeechRate, want)
	}
	if stats.PauseRatio != 0 {
		t.Errorf("PauseRatio = %v, want 0", stats.PauseRatio)
	}
}

func TestSpeechWindow_SingleBurstExpires(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	stats := acc.Observe(50, 0)
	if stats.SpeechRate <= 0 {
		t.Fatalf("SpeechRate = %v, want > 0 right after the burst", stats.SpeechRate)
	}

	// Silent ticks inside the window: the burst still counts.
	for _, ms := range []int{100, 200, 300, 400} {
		stats = acc.Observe(0, time.Duration(ms)*time.Millisecond)
		if stats.SpeechRate <= 0 {
			t.Fatalf("SpeechRate = %v at %dms, want > 0 while burst is in window", stats.SpeechRate, ms)
		}
		if stats.PauseRatio >= 100 {
			t.Fatalf("PauseRatio = %v at %dms, want < 100 while burst is in window", stats.PauseRatio, ms)
		}
	}

	// Once the window has rolled past the burst, both revert.
	stats = acc.Observe(0, 500*time.Millisecond)
	if stats.SpeechRate != 0 {
		t.Errorf("SpeechRate = %v after window expiry, want 0", stats.SpeechRate)
	}
	if stats.PauseRatio != 100 {
		t.Errorf("PauseRatio = %v after window expiry, want 100", stats.PauseRatio)
	}
}

func TestSpeechWindow_MixedSpeech(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	var stats AudioStats
	// Alternate speech and silence at 50ms ticks: half the window is active.
	for i := 0; i < 10; i++ {
		energy := 0.0
		if i%2 == 0 {
			energy = 50
		}
		stats = acc.Observe(energy, time.Duration(i)*50*time.Millisecond)
	}
	if want := 75.0; stats.SpeechRate != want {
		t.Errorf("SpeechRate = %v, want %v for a half-active window", stats.SpeechRate, want)
	}
	if want := 50.0; stats.PauseRatio != want {
		t.Errorf("PauseRatio = %v, want %v", stats.PauseRatio, want)
	}
}

func TestAccumulator_Reset(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	for i := 0; i < 5; i++ {
		acc.Observe(50, time.Duration(i)*50*time.Millisecond)
	}
	acc.Reset()
	if got := acc.Stats(); got != (AudioStats{}) {
		t.Errorf("Stats after Reset = %+v, want zero value", got)
	}
}
