package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Phase is one step of the capture lifecycle.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRecording    Phase = "recording"
	PhaseUploading    Phase = "uploading"
	PhaseTranscribing Phase = "transcribing"
	PhaseSummarizing  Phase = "summarizing"
	PhaseDone         Phase = "done"
	PhaseError        Phase = "error"
)

// ErrInvalidPhase is returned when an operation is not legal in the
// machine's current phase.
var ErrInvalidPhase = errors.New("operation not valid in current phase")

// ErrPollTimeout means the backend never reached a terminal status within
// the poll budget. Distinct from a server-side failure: the ingestion may
// still finish, and CheckTranscript can re-check it.
var ErrPollTimeout = errors.New("transcript poll timed out")

// Backend is the slice of the API client the machine needs; tests stub it.
type Backend interface {
	UploadRecording(ctx context.Context, path string) (*IngestionRef, error)
	SubmitText(ctx context.Context, text string) (*IngestionRef, error)
	Status(ctx context.Context, ingestionID string) (*StatusInfo, error)
	Transcript(ctx context.Context, ingestionID string) (*TranscriptInfo, error)
	ExtractTasks(ctx context.Context, ingestionID, text string) ([]TaskInfo, error)
	GenerateStickies(ctx context.Context, text string) (string, []StickyInfo, error)
}

// Machine drives one recording through capture, upload, and transcript
// retrieval. All phase reads and writes go through the mutex; the long
// operations run unlocked so Cancel stays responsive.
type Machine struct {
	recorder Recorder
	backend  Backend

	pollInterval time.Duration
	pollAttempts int
	sleep        func(time.Duration)

	mu          sync.Mutex
	phase       Phase
	ingestionID string
	transcript  *TranscriptInfo
	lastErr     error
	startedAt   time.Time
}

func NewMachine(recorder Recorder, backend Backend, cfg PollConfig) *Machine {
	return &Machine{
		recorder:     recorder,
		backend:      backend,
		pollInterval: time.Duration(cfg.Interval) * time.Second,
		pollAttempts: cfg.Attempts,
		sleep:        time.Sleep,
		phase:        PhaseIdle,
	}
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) IngestionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ingestionID
}

func (m *Machine) Transcript() *TranscriptInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcript
}

func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Elapsed reports how long the current recording has been running.
func (m *Machine) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseRecording {
		return 0
	}
	return time.Since(m.startedAt)
}

func (m *Machine) Level() float64 {
	return m.recorder.Level()
}

// StartRecording moves idle -> recording and acquires the microphone.
func (m *Machine) StartRecording(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseIdle {
		return fmt.Errorf("%w: cannot record from %s", ErrInvalidPhase, m.phase)
	}
	if err := m.recorder.Start(ctx); err != nil {
		return err
	}
	m.phase = PhaseRecording
	m.startedAt = time.Now()
	return nil
}

// Cancel discards an in-flight recording and returns to idle. Legal only
// while recording; the loser of a cancel/stop race finds the phase already
// changed and no-ops.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseRecording {
		return nil
	}
	err := m.recorder.Cancel()
	m.phase = PhaseIdle
	return err
}

// StopAndProcess ends the recording, uploads it, and polls until the
// transcript is available or the poll budget runs out.
func (m *Machine) StopAndProcess(ctx context.Context) (*TranscriptInfo, error) {
	m.mu.Lock()
	if m.phase != PhaseRecording {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot stop from %s", ErrInvalidPhase, m.phase)
	}
	m.phase = PhaseUploading
	m.mu.Unlock()

	path, err := m.recorder.Stop()
	if err != nil {
		return nil, m.fail(fmt.Errorf("stop recording: %w", err))
	}

	ref, err := m.backend.UploadRecording(ctx, path)
	if err != nil {
		return nil, m.fail(fmt.Errorf("upload recording: %w", err))
	}

	m.mu.Lock()
	m.ingestionID = ref.IngestionID
	m.phase = PhaseTranscribing
	m.mu.Unlock()

	return m.pollTranscript(ctx, ref.IngestionID)
}

// SubmitTypedNote sends a typed note instead of a recording. The server
// completes typed ingestions synchronously, so the machine lands directly
// in done with the note as its transcript; no polling happens.
func (m *Machine) SubmitTypedNote(ctx context.Context, text string) (*TranscriptInfo, error) {
	m.mu.Lock()
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot submit a note from %s", ErrInvalidPhase, m.phase)
	}
	m.phase = PhaseUploading
	m.mu.Unlock()

	ref, err := m.backend.SubmitText(ctx, text)
	if err != nil {
		return nil, m.fail(fmt.Errorf("submit note: %w", err))
	}

	info := &TranscriptInfo{
		IngestionID: ref.IngestionID,
		Transcript:  text,
		Confidence:  1,
	}
	m.mu.Lock()
	m.ingestionID = ref.IngestionID
	m.transcript = info
	m.phase = PhaseDone
	m.mu.Unlock()
	return info, nil
}

// ServerStatus reads the backend's view of the in-flight ingestion. It is
// a read-only check for the transcribing phase; failures are reported but
// never move the machine.
func (m *Machine) ServerStatus(ctx context.Context) (*StatusInfo, error) {
	m.mu.Lock()
	if m.phase != PhaseTranscribing {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: no ingestion in flight from %s", ErrInvalidPhase, m.phase)
	}
	ingestionID := m.ingestionID
	m.mu.Unlock()

	return m.backend.Status(ctx, ingestionID)
}

// pollTranscript checks sequentially at the configured interval, exiting
// early the moment the backend reports a terminal state.
func (m *Machine) pollTranscript(ctx context.Context, ingestionID string) (*TranscriptInfo, error) {
	for attempt := 1; attempt <= m.pollAttempts; attempt++ {
		info, err := m.backend.Transcript(ctx, ingestionID)
		if err != nil {
			return nil, m.fail(fmt.Errorf("fetch transcript: %w", err))
		}
		if info != nil {
			m.mu.Lock()
			m.transcript = info
			m.phase = PhaseDone
			m.mu.Unlock()
			return info, nil
		}
		if attempt < m.pollAttempts {
			select {
			case <-ctx.Done():
				return nil, m.fail(ctx.Err())
			default:
			}
			m.sleep(m.pollInterval)
		}
	}
	// The phase stays transcribing: the server may still finish, and a
	// manual CheckTranscript can pick the result up later.
	return nil, ErrPollTimeout
}

// CheckTranscript is the manual re-check after a poll timeout.
func (m *Machine) CheckTranscript(ctx context.Context) (*TranscriptInfo, error) {
	m.mu.Lock()
	if m.phase != PhaseTranscribing {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: nothing to check from %s", ErrInvalidPhase, m.phase)
	}
	ingestionID := m.ingestionID
	m.mu.Unlock()

	info, err := m.backend.Transcript(ctx, ingestionID)
	if err != nil {
		return nil, m.fail(fmt.Errorf("fetch transcript: %w", err))
	}
	if info == nil {
		return nil, ErrPollTimeout
	}

	m.mu.Lock()
	m.transcript = info
	m.phase = PhaseDone
	m.mu.Unlock()
	return info, nil
}

// Summarize extracts tasks from the finished transcript. User-invoked;
// never runs automatically.
func (m *Machine) Summarize(ctx context.Context) ([]TaskInfo, error) {
	transcript, err := m.beginSummarize()
	if err != nil {
		return nil, err
	}

	tasks, err := m.backend.ExtractTasks(ctx, transcript.IngestionID, transcript.Transcript)
	m.endSummarize()
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// GenerateStickies builds learning stickies from the finished transcript.
func (m *Machine) GenerateStickies(ctx context.Context) (string, []StickyInfo, error) {
	transcript, err := m.beginSummarize()
	if err != nil {
		return "", nil, err
	}

	domain, stickies, err := m.backend.GenerateStickies(ctx, transcript.Transcript)
	m.endSummarize()
	if err != nil {
		return "", nil, err
	}
	return domain, stickies, nil
}

func (m *Machine) beginSummarize() (*TranscriptInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseDone || m.transcript == nil {
		return nil, fmt.Errorf("%w: no transcript to summarize from %s", ErrInvalidPhase, m.phase)
	}
	m.phase = PhaseSummarizing
	return m.transcript, nil
}

func (m *Machine) endSummarize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseSummarizing {
		m.phase = PhaseDone
	}
}

// Reset returns to idle. Legal from the terminal phases only.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseDone && m.phase != PhaseError {
		return fmt.Errorf("%w: cannot reset from %s", ErrInvalidPhase, m.phase)
	}
	m.phase = PhaseIdle
	m.ingestionID = ""
	m.transcript = nil
	m.lastErr = nil
	return nil
}

// fail records the error and moves to the error phase.
func (m *Machine) fail(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = PhaseError
	m.lastErr = err
	return err
}
