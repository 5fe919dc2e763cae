package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/voicenotes-backend/internal/apierr"
	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/metrics"
	"github.com/yungbote/voicenotes-backend/internal/repos"
	"github.com/yungbote/voicenotes-backend/internal/transcoder"
	"github.com/yungbote/voicenotes-backend/internal/transcription"
	"github.com/yungbote/voicenotes-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(`CREATE TABLE ingestion (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		original_filename TEXT,
		file_size_bytes INTEGER,
		duration_seconds REAL,
		audio_format TEXT,
		language TEXT,
		transcript TEXT,
		segments TEXT,
		confidence REAL,
		error_message TEXT,
		created_at DATETIME,
		completed_at DATETIME
	)`).Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// canonicalProbeJSON describes input that already matches the pipeline
// target: 16 kHz mono wav.
const canonicalProbeJSON = `{
	"format": {"format_name": "wav", "duration": "12.5", "size": "400000", "bit_rate": "256000"},
	"streams": [{"codec_type": "audio", "sample_rate": "16000", "channels": 1}]
}`

const longProbeJSON = `{
	"format": {"format_name": "mp3", "duration": "722.0", "size": "9000000", "bit_rate": "128000"},
	"streams": [{"codec_type": "audio", "sample_rate": "44100", "channels": 2}]
}`

// stubRunner answers ffprobe with canned JSON and satisfies ffmpeg by
// writing the requested output file.
func stubRunner(probeJSON string, ffmpegCalls *[][]string) transcoder.Runner {
	return func(_ context.Context, bin string, args ...string) ([]byte, error) {
		if strings.Contains(bin, "ffprobe") {
			return []byte(probeJSON), nil
		}
		if ffmpegCalls != nil {
			*ffmpegCalls = append(*ffmpegCalls, args)
		}
		outPath := args[len(args)-1]
		if err := os.WriteFile(outPath, []byte("riff"), 0o600); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

type stubSTT struct {
	result *transcription.Result
	err    error

	gotPath     string
	gotLanguage string
}

func (s *stubSTT) Transcribe(_ context.Context, path, language string) (*transcription.Result, error) {
	s.gotPath = path
	s.gotLanguage = language
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubSTT) Translate(_ context.Context, path string) (*transcription.Result, error) {
	s.gotPath = path
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestService(t *testing.T, probeJSON string, stt transcription.Client, ffmpegCalls *[][]string) (IngestionService, repos.IngestionRepo) {
	t.Helper()
	log := testLogger(t)
	repo := repos.NewIngestionRepo(newTestDB(t), log)
	tc := transcoder.NewWithRunner(log, stubRunner(probeJSON, ffmpegCalls))
	m := metrics.NewMetrics(prometheus.NewRegistry())
	svc := NewIngestionService(log, repo, tc, stt, m, t.TempDir())
	return svc, repo
}

func TestIngestionService_UploadCanonicalWav(t *testing.T) {
	stt := &stubSTT{result: &transcription.Result{
		Text:            "buy milk tomorrow",
		Language:        "en",
		DurationSeconds: 12.5,
		Segments: []transcription.Segment{
			{ID: 0, Start: 0, End: 5.1, Text: "buy milk", AvgLogProb: -0.2},
			{ID: 1, Start: 5.1, End: 12.5, Text: "tomorrow", AvgLogProb: -0.3},
		},
		Confidence: 0.78,
	}}
	var ffmpegCalls [][]string
	svc, _ := newTestService(t, canonicalProbeJSON, stt, &ffmpegCalls)
	owner := uuid.New()

	ing, err := svc.Upload(context.Background(), owner, "note.wav", []byte("riff-data"), "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if ing.Status != types.IngestionStatusCompleted {
		t.Errorf("status = %q, want completed", ing.Status)
	}
	if !strings.HasPrefix(ing.ID, types.VoiceIngestionPrefix) {
		t.Errorf("id = %q, want %s prefix", ing.ID, types.VoiceIngestionPrefix)
	}
	if ing.Transcript != "buy milk tomorrow" {
		t.Errorf("transcript = %q", ing.Transcript)
	}
	if ing.Language != "en" || ing.Confidence != 0.78 {
		t.Errorf("language/confidence = %q/%v", ing.Language, ing.Confidence)
	}
	if ing.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	var segments []types.TranscriptSegment
	if err := json.Unmarshal(ing.Segments, &segments); err != nil {
		t.Fatalf("segments column: %v", err)
	}
	if len(segments) != 2 || segments[1].Text != "tomorrow" {
		t.Errorf("segments = %+v", segments)
	}

	// Canonical input: one ffmpeg invocation, no resample or rechannel
	// flags, normalization still on.
	if len(ffmpegCalls) != 1 {
		t.Fatalf("ffmpeg ran %d times, want 1", len(ffmpegCalls))
	}
	joined := strings.Join(ffmpegCalls[0], " ")
	if strings.Contains(joined, "-ar ") || strings.Contains(joined, "-ac ") {
		t.Errorf("canonical input should skip -ar/-ac: %s", joined)
	}
	if !strings.Contains(joined, "loudnorm") {
		t.Errorf("volume normalization missing: %s", joined)
	}

	if stt.gotPath == "" {
		t.Error("transcription never received the canonical file")
	}
}

func TestIngestionService_UploadRejectsOversizeBeforeAnyWork(t *testing.T) {
	stt := &stubSTT{}
	svc, repo := newTestService(t, canonicalProbeJSON, stt, nil)
	owner := uuid.New()

	big := bytes.Repeat([]byte("a"), MaxUploadBytes+1)
	_, err := svc.Upload(context.Background(), owner, "big.wav", big, "")

	var aerr *apierr.Error
	if !errors.As(err, &aerr) || aerr.Status != 413 {
		t.Fatalf("err = %v, want 413 apierr", err)
	}
	// No record: the ceiling rejects before anything is durable.
	list, listErr := repo.ListByOwner(context.Background(), nil, owner, 10)
	if listErr != nil {
		t.Fatalf("list: %v", listErr)
	}
	if len(list) != 0 {
		t.Errorf("oversize upload left %d records", len(list))
	}
	if stt.gotPath != "" {
		t.Error("oversize upload reached transcription")
	}
}

func TestIngestionService_UploadRejectsOverlongAudio(t *testing.T) {
	svc, repo := newTestService(t, longProbeJSON, &stubSTT{}, nil)
	owner := uuid.New()

	_, err := svc.Upload(context.Background(), owner, "long.mp3", []byte("mp3-data"), "")
	var aerr *apierr.Error
	if !errors.As(err, &aerr) || aerr.Status != 413 {
		t.Fatalf("err = %v, want 413 apierr", err)
	}

	// The duration ceiling trips after the record exists, so the failure is
	// durable and explains itself.
	list, listErr := repo.ListByOwner(context.Background(), nil, owner, 10)
	if listErr != nil || len(list) != 1 {
		t.Fatalf("list: %v, %d records", listErr, len(list))
	}
	if list[0].Status != types.IngestionStatusFailed {
		t.Errorf("status = %q, want failed", list[0].Status)
	}
	if !strings.Contains(list[0].ErrorMessage, "limit") {
		t.Errorf("error message %q does not explain the ceiling", list[0].ErrorMessage)
	}
}

func TestIngestionService_TranscriptionFailurePersistsBeforeReturning(t *testing.T) {
	stt := &stubSTT{err: &transcription.ServiceError{
		Kind:       transcription.KindServerError,
		StatusCode: 502,
		Message:    "bad gateway",
	}}
	svc, repo := newTestService(t, canonicalProbeJSON, stt, nil)
	owner := uuid.New()

	_, err := svc.Upload(context.Background(), owner, "note.wav", []byte("riff-data"), "")
	if err == nil {
		t.Fatal("expected an error")
	}

	list, listErr := repo.ListByOwner(context.Background(), nil, owner, 10)
	if listErr != nil || len(list) != 1 {
		t.Fatalf("list: %v, %d records", listErr, len(list))
	}
	got := list[0]
	if got.Status != types.IngestionStatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("failure not recorded on the record")
	}
	if got.CompletedAt == nil {
		t.Error("terminal record missing completed_at")
	}
}

func TestIngestionService_SubmitTextCompletesSynchronously(t *testing.T) {
	svc, repo := newTestService(t, canonicalProbeJSON, &stubSTT{}, nil)
	owner := uuid.New()

	ing, err := svc.SubmitText(context.Background(), owner, "  remind me the day after tomorrow at 3pm to call mom  ")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if !strings.HasPrefix(ing.ID, types.TextIngestionPrefix) {
		t.Errorf("id = %q, want %s prefix", ing.ID, types.TextIngestionPrefix)
	}
	if ing.Status != types.IngestionStatusCompleted {
		t.Errorf("status = %q, want completed", ing.Status)
	}
	if ing.Transcript != "remind me the day after tomorrow at 3pm to call mom" {
		t.Errorf("transcript = %q", ing.Transcript)
	}

	got, err := repo.GetByID(context.Background(), nil, owner, ing.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsTextSubmission() || !got.IsTerminal() {
		t.Errorf("stored record: %+v", got)
	}

	if _, err := svc.SubmitText(context.Background(), owner, "   "); err == nil {
		t.Error("blank text accepted")
	}
}

func TestIngestionService_StatusReadsAreOwnerScoped(t *testing.T) {
	svc, _ := newTestService(t, canonicalProbeJSON, &stubSTT{}, nil)
	owner := uuid.New()

	ing, err := svc.SubmitText(context.Background(), owner, "note")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	_, err = svc.Status(context.Background(), uuid.New(), ing.ID)
	var aerr *apierr.Error
	if !errors.As(err, &aerr) || aerr.Status != 404 {
		t.Fatalf("cross-owner status = %v, want 404 apierr", err)
	}

	got, err := svc.Transcript(context.Background(), owner, ing.ID)
	if err != nil || got.Transcript != "note" {
		t.Fatalf("owner transcript read: %v, %+v", err, got)
	}
}
