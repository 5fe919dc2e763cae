package transcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/voicenotes-backend/internal/logger"
)

// ProbeError marks an input the transcoder cannot work with (no audio
// stream, unreadable container). It is terminal for the ingestion: a
// malformed file does not become well-formed on retry.
type ProbeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("probe %s: %s", e.Path, e.Reason)
}

func (e *ProbeError) Unwrap() error { return e.Err }

type ProbeResult struct {
	DurationSeconds float64
	Format          string
	SizeBytes       int64
	SampleRate      int
	Channels        int
	BitrateKbps     int
}

type Options struct {
	TargetFormat     string // container/codec, default "wav"
	TargetSampleRate int    // default 16000
	TargetChannels   int    // default 1
	NormalizeVolume  bool
}

func DefaultOptions() Options {
	return Options{
		TargetFormat:     "wav",
		TargetSampleRate: 16000,
		TargetChannels:   1,
		NormalizeVolume:  true,
	}
}

// TranscodeResult records which conversion steps actually ran. Resample and
// rechannel are skipped when the input already matches the target to avoid
// generation loss; the container rewrite and volume normalization always
// run because downstream acceptance depends on them.
type TranscodeResult struct {
	OutputPath  string
	Resampled   bool
	Rechanneled bool
}

// Runner executes an external tool and returns its combined output. The
// indirection exists so tests can observe invocations without ffmpeg.
type Runner func(ctx context.Context, bin string, args ...string) ([]byte, error)

type Transcoder struct {
	log *logger.Logger

	ffmpegPath  string
	ffprobePath string

	run Runner

	defaultTimeout time.Duration
}

func New(log *logger.Logger) *Transcoder {
	slog := log.With("service", "Transcoder")
	t := &Transcoder{
		log:            slog,
		ffmpegPath:     "ffmpeg",
		ffprobePath:    "ffprobe",
		defaultTimeout: 5 * time.Minute,
	}
	t.run = t.execRun
	return t
}

// NewWithRunner is the test constructor: external invocations go through r.
func NewWithRunner(log *logger.Logger, r Runner) *Transcoder {
	t := New(log)
	t.run = r
	return t
}

func (t *Transcoder) AssertReady(ctx context.Context) error {
	for _, bin := range []string{t.ffmpegPath, t.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	return nil
}

func (t *Transcoder) execRun(ctx context.Context, bin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.defaultTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, bin, args...)
	return cmd.CombinedOutput()
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Probe inspects an audio file without rewriting it.
func (t *Transcoder) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if path == "" {
		return nil, &ProbeError{Path: path, Reason: "path required"}
	}

	out, err := t.run(ctx, t.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, &ProbeError{Path: path, Reason: "cannot open input: " + strings.TrimSpace(string(out)), Err: err}
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, &ProbeError{Path: path, Reason: "unparseable ffprobe output", Err: err}
	}

	res := &ProbeResult{Format: probe.Format.FormatName}
	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		res.DurationSeconds = d
	}
	if s, err := strconv.ParseInt(probe.Format.Size, 10, 64); err == nil {
		res.SizeBytes = s
	}
	if b, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		res.BitrateKbps = int(b / 1000)
	}

	foundAudio := false
	for _, st := range probe.Streams {
		if st.CodecType != "audio" {
			continue
		}
		foundAudio = true
		if sr, err := strconv.Atoi(st.SampleRate); err == nil {
			res.SampleRate = sr
		}
		res.Channels = st.Channels
		break
	}
	if !foundAudio {
		return nil, &ProbeError{Path: path, Reason: "no audio stream"}
	}

	return res, nil
}

// Transcode rewrites path into the canonical form the transcription service
// accepts, writing the output inside the arena. Only the steps the input
// actually needs are applied.
func (t *Transcoder) Transcode(ctx context.Context, arena *Arena, path string, opts Options) (*TranscodeResult, error) {
	if arena == nil {
		return nil, fmt.Errorf("arena required")
	}
	if opts.TargetFormat == "" {
		opts.TargetFormat = "wav"
	}
	if opts.TargetSampleRate <= 0 {
		opts.TargetSampleRate = 16000
	}
	if opts.TargetChannels <= 0 {
		opts.TargetChannels = 1
	}

	probe, err := t.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	res := &TranscodeResult{
		Resampled:   probe.SampleRate != 0 && probe.SampleRate != opts.TargetSampleRate,
		Rechanneled: probe.Channels != 0 && probe.Channels != opts.TargetChannels,
	}

	outPath := arena.NewPath("canonical." + opts.TargetFormat)

	args := []string{"-y", "-i", path, "-vn"}
	if res.Resampled {
		args = append(args, "-ar", strconv.Itoa(opts.TargetSampleRate))
	}
	if res.Rechanneled {
		args = append(args, "-ac", strconv.Itoa(opts.TargetChannels))
	}
	if opts.NormalizeVolume {
		args = append(args, "-af", "loudnorm=I=-16:TP=-1.5:LRA=11")
	}
	args = append(args, "-f", opts.TargetFormat, outPath)

	out, err := t.run(ctx, t.ffmpegPath, args...)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg transcode failed: %w; out=%s", err, strings.TrimSpace(string(out)))
	}

	if _, statErr := os.Stat(outPath); statErr != nil {
		return nil, fmt.Errorf("transcode output missing at %s", outPath)
	}

	res.OutputPath = outPath
	return res, nil
}
