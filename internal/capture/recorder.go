package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Recorder captures microphone audio to a local file. Start and the
// terminal calls (Stop or Cancel) come from different goroutines; the
// implementation must release the microphone on every exit path.
type Recorder interface {
	Start(ctx context.Context) error
	// Stop ends recording and returns the path to the captured file.
	Stop() (string, error)
	// Cancel ends recording and discards the captured file.
	Cancel() error
	// Level reports the most recent input amplitude in [0,1]. Meter data
	// only; zero when unknown.
	Level() float64
}

// ffmpegRecorder records the default input device through ffmpeg. The
// capture backend differs per platform; the output is always wav at the
// configured rate.
type ffmpegRecorder struct {
	cfg RecorderConfig

	mu      sync.Mutex
	cmd     *exec.Cmd
	outPath string
	started time.Time
}

func NewRecorder(cfg RecorderConfig) Recorder {
	return &ffmpegRecorder{cfg: cfg}
}

func (r *ffmpegRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return fmt.Errorf("recorder already running")
	}

	workDir := r.cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	r.outPath = filepath.Join(workDir, fmt.Sprintf("capture-%d.wav", time.Now().UnixNano()))

	inputFlag, device := captureInput(r.cfg.Device)
	args := []string{
		"-y",
		"-f", inputFlag,
		"-i", device,
		"-ar", strconv.Itoa(r.cfg.SampleRate),
		"-ac", strconv.Itoa(r.cfg.Channels),
		r.outPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg capture: %w", err)
	}

	r.cmd = cmd
	r.started = time.Now()
	return nil
}

// Stop sends ffmpeg its quit key and waits for the file to be finalized.
func (r *ffmpegRecorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return "", fmt.Errorf("recorder not running")
	}
	path := r.outPath
	err := r.finishLocked()
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return "", fmt.Errorf("capture produced no file: %w", statErr)
	}
	return path, nil
}

func (r *ffmpegRecorder) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return fmt.Errorf("recorder not running")
	}
	path := r.outPath
	err := r.finishLocked()
	if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
		return removeErr
	}
	return err
}

// finishLocked terminates the ffmpeg process and clears the handle so the
// microphone is released exactly once. Callers hold r.mu.
func (r *ffmpegRecorder) finishLocked() error {
	cmd := r.cmd
	r.cmd = nil

	if cmd.Process != nil {
		// Graceful stop lets ffmpeg write the wav header.
		_ = cmd.Process.Signal(os.Interrupt)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return nil
	}
}

// levelWindowBytes is the tail slice Level reads: about a quarter second
// of mono 16 kHz pcm_s16le.
const levelWindowBytes = 8192

func (r *ffmpegRecorder) Level() float64 {
	r.mu.Lock()
	running := r.cmd != nil
	path := r.outPath
	r.mu.Unlock()

	if !running {
		return 0
	}
	// ffmpeg appends samples to the wav as it captures; the newest ones
	// are the live amplitude.
	return wavTailLevel(path, levelWindowBytes)
}

// wav header size for the canonical single-chunk layout ffmpeg writes.
const wavHeaderBytes = 44

// wavTailLevel reports the RMS amplitude of the newest samples in a
// growing pcm_s16le wav file, scaled to [0,1]. Read failures read as
// silence; the meter is display-only.
func wavTailLevel(path string, window int64) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() <= wavHeaderBytes {
		return 0
	}
	off := info.Size() - window
	if off < wavHeaderBytes {
		off = wavHeaderBytes
	}
	// Keep 16-bit sample alignment.
	if (info.Size()-off)%2 != 0 {
		off++
	}
	buf := make([]byte, info.Size()-off)
	if _, err := f.ReadAt(buf, off); err != nil && err != io.EOF {
		return 0
	}
	return pcmRMS(buf)
}

func pcmRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
		sum += s * s
	}
	level := math.Sqrt(sum/float64(n)) / 32768
	if level > 1 {
		level = 1
	}
	return level
}

// captureInput maps the platform to ffmpeg's capture backend and the
// device string for the default input.
func captureInput(device string) (string, string) {
	switch runtime.GOOS {
	case "darwin":
		if device == "" {
			device = ":0"
		}
		return "avfoundation", device
	case "windows":
		if device == "" {
			device = "audio=default"
		}
		return "dshow", device
	default:
		if device == "" {
			device = "default"
		}
		return "pulse", device
	}
}
