package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubRecorder struct {
	started   bool
	stopped   bool
	cancelled bool
	stopPath  string
	stopErr   error
}

func (r *stubRecorder) Start(context.Context) error {
	r.started = true
	return nil
}

func (r *stubRecorder) Stop() (string, error) {
	r.stopped = true
	if r.stopPath == "" {
		r.stopPath = "/tmp/capture-test.wav"
	}
	return r.stopPath, r.stopErr
}

func (r *stubRecorder) Cancel() error {
	r.cancelled = true
	return nil
}

func (r *stubRecorder) Level() float64 { return 0.5 }

type stubBackend struct {
	uploadRef *IngestionRef
	uploadErr error

	textRef   *IngestionRef
	textErr   error
	textCalls int
	gotText   string

	status      *StatusInfo
	statusCalls int

	// transcriptQueue entries are returned in order; nil means "still in
	// flight". When exhausted, the last entry repeats.
	transcriptQueue []*TranscriptInfo
	transcriptErr   error
	transcriptCalls int

	tasks    []TaskInfo
	tasksErr error

	domain   string
	stickies []StickyInfo
}

func (b *stubBackend) UploadRecording(context.Context, string) (*IngestionRef, error) {
	if b.uploadErr != nil {
		return nil, b.uploadErr
	}
	if b.uploadRef == nil {
		b.uploadRef = &IngestionRef{IngestionID: "ing_test", Status: "completed"}
	}
	return b.uploadRef, nil
}

func (b *stubBackend) SubmitText(_ context.Context, text string) (*IngestionRef, error) {
	b.textCalls++
	b.gotText = text
	if b.textErr != nil {
		return nil, b.textErr
	}
	if b.textRef == nil {
		b.textRef = &IngestionRef{IngestionID: "text_test", Status: "completed"}
	}
	return b.textRef, nil
}

func (b *stubBackend) Status(context.Context, string) (*StatusInfo, error) {
	b.statusCalls++
	if b.status == nil {
		return &StatusInfo{IngestionID: "ing_test", Status: "processing"}, nil
	}
	return b.status, nil
}

func (b *stubBackend) Transcript(context.Context, string) (*TranscriptInfo, error) {
	b.transcriptCalls++
	if b.transcriptErr != nil {
		return nil, b.transcriptErr
	}
	if len(b.transcriptQueue) == 0 {
		return nil, nil
	}
	info := b.transcriptQueue[0]
	if len(b.transcriptQueue) > 1 {
		b.transcriptQueue = b.transcriptQueue[1:]
	}
	return info, nil
}

func (b *stubBackend) ExtractTasks(context.Context, string, string) ([]TaskInfo, error) {
	return b.tasks, b.tasksErr
}

func (b *stubBackend) GenerateStickies(context.Context, string) (string, []StickyInfo, error) {
	return b.domain, b.stickies, nil
}

func newTestMachine(recorder *stubRecorder, backend *stubBackend) (*Machine, *[]time.Duration) {
	m := NewMachine(recorder, backend, PollConfig{Interval: 1, Attempts: 60})
	var sleeps []time.Duration
	m.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return m, &sleeps
}

func TestMachine_FullFlow(t *testing.T) {
	recorder := &stubRecorder{}
	done := &TranscriptInfo{IngestionID: "ing_test", Transcript: "buy milk tomorrow", Confidence: 0.9}
	backend := &stubBackend{transcriptQueue: []*TranscriptInfo{nil, nil, done}}
	m, sleeps := newTestMachine(recorder, backend)

	if m.Phase() != PhaseIdle {
		t.Fatalf("initial phase = %s", m.Phase())
	}
	if err := m.StartRecording(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.Phase() != PhaseRecording || !recorder.started {
		t.Fatalf("phase = %s, recorder started = %v", m.Phase(), recorder.started)
	}

	info, err := m.StopAndProcess(context.Background())
	if err != nil {
		t.Fatalf("stop and process: %v", err)
	}
	if m.Phase() != PhaseDone {
		t.Errorf("phase = %s, want done", m.Phase())
	}
	if info.Transcript != "buy milk tomorrow" {
		t.Errorf("transcript = %q", info.Transcript)
	}
	if m.IngestionID() != "ing_test" {
		t.Errorf("ingestion id = %q", m.IngestionID())
	}
	// Two in-flight polls before the result: two sleeps at the interval.
	if len(*sleeps) != 2 {
		t.Errorf("slept %d times, want 2", len(*sleeps))
	}
	for _, d := range *sleeps {
		if d != time.Second {
			t.Errorf("sleep = %v, want 1s", d)
		}
	}

	// Summarize is legal from done and returns to done.
	backend.tasks = []TaskInfo{{Title: "buy milk"}}
	tasks, err := m.Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(tasks) != 1 || m.Phase() != PhaseDone {
		t.Errorf("tasks = %v, phase = %s", tasks, m.Phase())
	}

	if err := m.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if m.Phase() != PhaseIdle || m.Transcript() != nil {
		t.Errorf("reset left phase %s, transcript %v", m.Phase(), m.Transcript())
	}
}

func TestMachine_PollTimeoutLeavesTranscribing(t *testing.T) {
	recorder := &stubRecorder{}
	backend := &stubBackend{} // transcript never arrives
	m, sleeps := newTestMachine(recorder, backend)

	if err := m.StartRecording(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := m.StopAndProcess(context.Background())
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if backend.transcriptCalls != 60 {
		t.Errorf("polled %d times, want 60", backend.transcriptCalls)
	}
	// No sleep after the final attempt.
	if len(*sleeps) != 59 {
		t.Errorf("slept %d times, want 59", len(*sleeps))
	}
	// Timeout is not a server-side failure: the phase stays transcribing
	// and a manual re-check can still succeed.
	if m.Phase() != PhaseTranscribing {
		t.Fatalf("phase = %s, want transcribing", m.Phase())
	}

	backend.transcriptQueue = []*TranscriptInfo{{IngestionID: "ing_test", Transcript: "late arrival"}}
	info, err := m.CheckTranscript(context.Background())
	if err != nil {
		t.Fatalf("manual re-check: %v", err)
	}
	if info.Transcript != "late arrival" || m.Phase() != PhaseDone {
		t.Errorf("re-check: %+v, phase = %s", info, m.Phase())
	}
}

func TestMachine_TypedNoteCompletesWithoutPolling(t *testing.T) {
	recorder := &stubRecorder{}
	backend := &stubBackend{}
	m, sleeps := newTestMachine(recorder, backend)

	info, err := m.SubmitTypedNote(context.Background(), "day after tomorrow at 3pm dentist")
	if err != nil {
		t.Fatalf("submit note: %v", err)
	}
	if m.Phase() != PhaseDone {
		t.Fatalf("phase = %s, want done", m.Phase())
	}
	if info.Transcript != "day after tomorrow at 3pm dentist" || info.IngestionID != "text_test" {
		t.Errorf("transcript info = %+v", info)
	}
	if backend.textCalls != 1 || backend.gotText != "day after tomorrow at 3pm dentist" {
		t.Errorf("submit calls = %d, text = %q", backend.textCalls, backend.gotText)
	}
	// Typed notes complete synchronously: no transcript polls, no sleeps,
	// and the recorder is never touched.
	if backend.transcriptCalls != 0 || len(*sleeps) != 0 {
		t.Errorf("polled %d times, slept %d times, want 0/0", backend.transcriptCalls, len(*sleeps))
	}
	if recorder.started {
		t.Error("typed note started the recorder")
	}

	// The transcript feeds task extraction like a voice note's would.
	backend.tasks = []TaskInfo{{Title: "dentist"}}
	tasks, err := m.Summarize(context.Background())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("tasks = %v", tasks)
	}

	if _, err := m.SubmitTypedNote(context.Background(), "another"); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("submit from done: err = %v, want ErrInvalidPhase", err)
	}
}

func TestMachine_TypedNoteFailureEntersErrorPhase(t *testing.T) {
	backend := &stubBackend{textErr: errors.New("server error (http 400, empty_text): text is required")}
	m, _ := newTestMachine(&stubRecorder{}, backend)

	if _, err := m.SubmitTypedNote(context.Background(), ""); err == nil {
		t.Fatal("expected submit failure")
	}
	if m.Phase() != PhaseError || m.Err() == nil {
		t.Fatalf("phase = %s, err = %v", m.Phase(), m.Err())
	}
}

func TestMachine_ServerStatusWhileTranscribing(t *testing.T) {
	recorder := &stubRecorder{}
	backend := &stubBackend{} // transcript never arrives
	m, _ := newTestMachine(recorder, backend)

	// Legal only while an ingestion is in flight.
	if _, err := m.ServerStatus(context.Background()); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("status from idle: err = %v, want ErrInvalidPhase", err)
	}

	if err := m.StartRecording(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.StopAndProcess(context.Background()); !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("want poll timeout, got %v", err)
	}

	backend.status = &StatusInfo{IngestionID: "ing_test", Status: "processing", Duration: 12.5}
	info, err := m.ServerStatus(context.Background())
	if err != nil {
		t.Fatalf("server status: %v", err)
	}
	if info.Status != "processing" || backend.statusCalls != 1 {
		t.Errorf("status = %+v, calls = %d", info, backend.statusCalls)
	}
	// The read is side-effect free: still transcribing, re-check possible.
	if m.Phase() != PhaseTranscribing {
		t.Fatalf("phase = %s, want transcribing", m.Phase())
	}
}

func TestMachine_ServerFailureEntersErrorPhase(t *testing.T) {
	recorder := &stubRecorder{}
	backend := &stubBackend{uploadErr: errors.New("server error (http 413): file too large")}
	m, _ := newTestMachine(recorder, backend)

	if err := m.StartRecording(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.StopAndProcess(context.Background()); err == nil {
		t.Fatal("expected upload failure")
	}
	if m.Phase() != PhaseError {
		t.Fatalf("phase = %s, want error", m.Phase())
	}
	if m.Err() == nil {
		t.Error("error phase with no recorded error")
	}

	// Error is terminal but resettable.
	if err := m.Reset(); err != nil {
		t.Fatalf("reset from error: %v", err)
	}
	if m.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle", m.Phase())
	}
}

func TestMachine_CancelStopRace(t *testing.T) {
	recorder := &stubRecorder{}
	backend := &stubBackend{transcriptQueue: []*TranscriptInfo{{IngestionID: "ing_test", Transcript: "x"}}}
	m, _ := newTestMachine(recorder, backend)

	if err := m.StartRecording(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Stop wins: phase leaves recording, the late cancel no-ops and must
	// not touch the recorder.
	if _, err := m.StopAndProcess(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := m.Cancel(); err != nil {
		t.Fatalf("late cancel should no-op, got %v", err)
	}
	if recorder.cancelled {
		t.Error("late cancel reached the recorder after stop won the race")
	}

	// Cancel wins: recording is discarded and the machine is idle again.
	if err := m.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	recorder2 := &stubRecorder{}
	m2, _ := newTestMachine(recorder2, backend)
	if err := m2.StartRecording(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m2.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !recorder2.cancelled || m2.Phase() != PhaseIdle {
		t.Errorf("cancelled = %v, phase = %s", recorder2.cancelled, m2.Phase())
	}
	if _, err := m2.StopAndProcess(context.Background()); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("late stop after cancel: err = %v, want ErrInvalidPhase", err)
	}
}

func TestMachine_PhaseGuards(t *testing.T) {
	m, _ := newTestMachine(&stubRecorder{}, &stubBackend{})

	if _, err := m.StopAndProcess(context.Background()); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("stop from idle: %v", err)
	}
	if _, err := m.Summarize(context.Background()); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("summarize from idle: %v", err)
	}
	if err := m.Reset(); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("reset from idle: %v", err)
	}

	if err := m.StartRecording(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.StartRecording(context.Background()); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("double start: %v", err)
	}
	if err := m.Reset(); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("reset while recording: %v", err)
	}
}
