package transcoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/voicenotes-backend/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// stubRunner answers ffprobe with canned JSON and records every ffmpeg
// invocation, writing the output path so the post-run stat succeeds.
type stubRunner struct {
	probeJSON  string
	probeErr   error
	ffmpegErr  error
	ffmpegArgs [][]string
}

func (s *stubRunner) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	if bin == "ffprobe" {
		if s.probeErr != nil {
			return []byte("probe failed"), s.probeErr
		}
		return []byte(s.probeJSON), nil
	}
	s.ffmpegArgs = append(s.ffmpegArgs, args)
	if s.ffmpegErr != nil {
		return []byte("ffmpeg failed"), s.ffmpegErr
	}
	// Last positional arg is the output path.
	out := args[len(args)-1]
	if err := os.WriteFile(out, []byte("RIFF"), 0o644); err != nil {
		return nil, err
	}
	return nil, nil
}

func probeJSON(format string, durationSec float64, sampleRate, channels int) string {
	doc := map[string]any{
		"format": map[string]any{
			"format_name": format,
			"duration":    fmt.Sprintf("%.2f", durationSec),
			"size":        "160000",
			"bit_rate":    "256000",
		},
		"streams": []map[string]any{
			{"codec_type": "audio", "sample_rate": fmt.Sprint(sampleRate), "channels": channels},
		},
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func TestProbe_ParsesStreamAndFormat(t *testing.T) {
	stub := &stubRunner{probeJSON: probeJSON("wav", 5.0, 44100, 2)}
	tr := NewWithRunner(testLogger(t), stub.run)

	res, err := tr.Probe(context.Background(), "/tmp/in.wav")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if res.DurationSeconds != 5.0 || res.SampleRate != 44100 || res.Channels != 2 {
		t.Fatalf("unexpected probe result: %+v", res)
	}
	if res.Format != "wav" || res.BitrateKbps != 256 {
		t.Fatalf("unexpected format fields: %+v", res)
	}
}

func TestProbe_NoAudioStreamIsProbeError(t *testing.T) {
	stub := &stubRunner{probeJSON: `{"format":{"format_name":"mp4"},"streams":[{"codec_type":"video"}]}`}
	tr := NewWithRunner(testLogger(t), stub.run)

	_, err := tr.Probe(context.Background(), "/tmp/in.mp4")
	var pe *ProbeError
	if !errors.As(err, &pe) {
		t.Fatalf("want ProbeError, got %v", err)
	}
	if !strings.Contains(pe.Error(), "no audio stream") {
		t.Fatalf("unexpected reason: %v", pe)
	}
}

func TestTranscode_CanonicalInputSkipsConversionSteps(t *testing.T) {
	// Already mono 16kHz: no -ar, no -ac; format + volume still applied.
	stub := &stubRunner{probeJSON: probeJSON("wav", 5.0, 16000, 1)}
	tr := NewWithRunner(testLogger(t), stub.run)

	arena, err := NewArena(t.TempDir())
	if err != nil {
		t.Fatalf("arena: %v", err)
	}
	defer arena.Cleanup(nil)

	res, err := tr.Transcode(context.Background(), arena, "/tmp/in.wav", DefaultOptions())
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if res.Resampled || res.Rechanneled {
		t.Fatalf("expected no conversion steps, got %+v", res)
	}
	if len(stub.ffmpegArgs) != 1 {
		t.Fatalf("expected one ffmpeg invocation, got %d", len(stub.ffmpegArgs))
	}
	args := stub.ffmpegArgs[0]
	if hasFlag(args, "-ar") || hasFlag(args, "-ac") {
		t.Fatalf("conversion flags present on canonical input: %v", args)
	}
	if !hasFlag(args, "-af") {
		t.Fatalf("volume normalization must always run: %v", args)
	}
	if !hasFlag(args, "-f") {
		t.Fatalf("format rewrite must always run: %v", args)
	}
}

func TestTranscode_MismatchedInputAppliesBothSteps(t *testing.T) {
	stub := &stubRunner{probeJSON: probeJSON("mp3", 12.0, 44100, 2)}
	tr := NewWithRunner(testLogger(t), stub.run)

	arena, err := NewArena(t.TempDir())
	if err != nil {
		t.Fatalf("arena: %v", err)
	}
	defer arena.Cleanup(nil)

	res, err := tr.Transcode(context.Background(), arena, "/tmp/in.mp3", DefaultOptions())
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if !res.Resampled || !res.Rechanneled {
		t.Fatalf("expected both conversion steps, got %+v", res)
	}
	args := stub.ffmpegArgs[0]
	if !hasFlag(args, "-ar") || !hasFlag(args, "-ac") {
		t.Fatalf("missing conversion flags: %v", args)
	}
}

func TestTranscode_FailureLeavesNoIntermediateFiles(t *testing.T) {
	stub := &stubRunner{
		probeJSON: probeJSON("mp3", 12.0, 44100, 2),
		ffmpegErr: errors.New("exit status 1"),
	}
	tr := NewWithRunner(testLogger(t), stub.run)

	base := t.TempDir()
	arena, err := NewArena(base)
	if err != nil {
		t.Fatalf("arena: %v", err)
	}
	arenaDir := arena.Dir()

	_, err = tr.Transcode(context.Background(), arena, "/tmp/in.mp3", DefaultOptions())
	if err == nil {
		t.Fatalf("expected transcode failure")
	}

	// The failure path still cleans every registered intermediate.
	arena.Cleanup(nil)

	if _, statErr := os.Stat(arenaDir); !os.IsNotExist(statErr) {
		t.Fatalf("arena dir survived cleanup: %v", statErr)
	}
	entries, _ := filepath.Glob(filepath.Join(base, "ingest-*", "*"))
	if len(entries) != 0 {
		t.Fatalf("intermediate files survived: %v", entries)
	}
}

func TestArena_CleanupRemovesRegisteredPaths(t *testing.T) {
	arena, err := NewArena(t.TempDir())
	if err != nil {
		t.Fatalf("arena: %v", err)
	}

	p1 := arena.NewPath("a.wav")
	p2 := arena.NewPath("b.wav")
	for _, p := range []string{p1, p2} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	arena.Cleanup(nil)

	for _, p := range []string{p1, p2} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("path %s survived cleanup", p)
		}
	}
}
