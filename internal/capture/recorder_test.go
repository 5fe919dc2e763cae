package capture

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func pcmBytes(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func writeWav(t *testing.T, pcm []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.wav")
	data := append(make([]byte, wavHeaderBytes), pcm...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestPCMRMS_Amplitudes(t *testing.T) {
	if got := pcmRMS(pcmBytes(make([]int16, 2048))); got != 0 {
		t.Fatalf("silence level = %v, want 0", got)
	}

	loud := make([]int16, 2048)
	for i := range loud {
		if i%2 == 0 {
			loud[i] = 32767
		} else {
			loud[i] = -32767
		}
	}
	if got := pcmRMS(pcmBytes(loud)); got < 0.99 || got > 1 {
		t.Fatalf("full-scale level = %v, want ~1", got)
	}

	half := make([]int16, 2048)
	for i := range half {
		if i%2 == 0 {
			half[i] = 16384
		} else {
			half[i] = -16384
		}
	}
	if got := pcmRMS(pcmBytes(half)); math.Abs(got-0.5) > 0.01 {
		t.Fatalf("half-scale level = %v, want ~0.5", got)
	}

	if got := pcmRMS(nil); got != 0 {
		t.Fatalf("empty level = %v, want 0", got)
	}
}

func TestWavTailLevel_ReadsNewestSamples(t *testing.T) {
	// Loud start, quiet tail: the meter must follow the tail.
	loud := make([]int16, 8192)
	for i := range loud {
		if i%2 == 0 {
			loud[i] = 30000
		} else {
			loud[i] = -30000
		}
	}
	quiet := make([]int16, 8192)
	path := writeWav(t, append(pcmBytes(loud), pcmBytes(quiet)...))

	if got := wavTailLevel(path, 8192); got != 0 {
		t.Fatalf("tail level = %v, want 0 (quiet tail)", got)
	}
	// A window spanning the whole file picks the loud samples back up.
	if got := wavTailLevel(path, 1<<20); got < 0.5 {
		t.Fatalf("full-window level = %v, want loud", got)
	}
}

func TestWavTailLevel_DegradesToSilence(t *testing.T) {
	if got := wavTailLevel(filepath.Join(t.TempDir(), "missing.wav"), 8192); got != 0 {
		t.Fatalf("missing file level = %v, want 0", got)
	}
	// Header only: no samples yet.
	if got := wavTailLevel(writeWav(t, nil), 8192); got != 0 {
		t.Fatalf("header-only level = %v, want 0", got)
	}
}

func TestRecorderLevel_ZeroWhenNotRunning(t *testing.T) {
	r := NewRecorder(RecorderConfig{SampleRate: 16000, Channels: 1})
	if got := r.Level(); got != 0 {
		t.Fatalf("idle level = %v, want 0", got)
	}
}
