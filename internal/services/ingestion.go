package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/voicenotes-backend/internal/apierr"
	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/metrics"
	"github.com/yungbote/voicenotes-backend/internal/repos"
	"github.com/yungbote/voicenotes-backend/internal/transcoder"
	"github.com/yungbote/voicenotes-backend/internal/transcription"
	"github.com/yungbote/voicenotes-backend/internal/types"
)

const (
	// MaxUploadBytes is the raw upload ceiling, checked before any disk or
	// subprocess work.
	MaxUploadBytes = 25 << 20
	// MaxDurationSeconds is the probed-duration ceiling, checked before
	// transcoding.
	MaxDurationSeconds = 600.0
)

type IngestionService interface {
	Upload(ctx context.Context, ownerID uuid.UUID, filename string, data []byte, language string) (*types.Ingestion, error)
	SubmitText(ctx context.Context, ownerID uuid.UUID, text string) (*types.Ingestion, error)
	Status(ctx context.Context, ownerID uuid.UUID, id string) (*types.Ingestion, error)
	Transcript(ctx context.Context, ownerID uuid.UUID, id string) (*types.Ingestion, error)
	List(ctx context.Context, ownerID uuid.UUID, limit int) ([]*types.Ingestion, error)
}

type ingestionService struct {
	log     *logger.Logger
	repo    repos.IngestionRepo
	tc      *transcoder.Transcoder
	stt     transcription.Client
	metrics *metrics.Metrics

	workDir string
}

func NewIngestionService(
	log *logger.Logger,
	repo repos.IngestionRepo,
	tc *transcoder.Transcoder,
	stt transcription.Client,
	m *metrics.Metrics,
	workDir string,
) IngestionService {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &ingestionService{
		log:     log.With("service", "IngestionService"),
		repo:    repo,
		tc:      tc,
		stt:     stt,
		metrics: m,
		workDir: workDir,
	}
}

// Upload runs the whole voice pipeline synchronously: validate, probe,
// transcode, transcribe, persist. Every failure is written to the record
// before it surfaces, so a later status read always explains what
// happened.
func (s *ingestionService) Upload(ctx context.Context, ownerID uuid.UUID, filename string, data []byte, language string) (*types.Ingestion, error) {
	if ownerID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "missing_owner", fmt.Errorf("request carries no owner identity"))
	}
	if len(data) == 0 {
		return nil, apierr.New(http.StatusBadRequest, "empty_upload", fmt.Errorf("uploaded file is empty"))
	}
	if len(data) > MaxUploadBytes {
		s.metrics.IngestionsRejected.Inc()
		return nil, apierr.New(http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Errorf("file is %d bytes, limit is %d", len(data), MaxUploadBytes))
	}

	ing := &types.Ingestion{
		ID:               types.NewVoiceIngestionID(),
		OwnerID:          ownerID,
		Status:           types.IngestionStatusPending,
		OriginalFilename: filepath.Base(filename),
		FileSizeBytes:    int64(len(data)),
	}
	if err := s.repo.Create(ctx, nil, ing); err != nil {
		return nil, fmt.Errorf("create ingestion record: %w", err)
	}
	s.metrics.IngestionsStarted.Inc()
	log := s.log.With("ingestion_id", ing.ID)

	arena, err := transcoder.NewArena(s.workDir)
	if err != nil {
		return nil, s.fail(ctx, ing, "workspace setup failed", err)
	}
	defer arena.Cleanup(s.log)

	inputPath := arena.NewPath("input" + filepath.Ext(filename))
	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return nil, s.fail(ctx, ing, "could not stage upload", err)
	}

	probe, err := s.tc.Probe(ctx, inputPath)
	if err != nil {
		s.metrics.IngestionsRejected.Inc()
		return nil, s.failStatus(ctx, ing, http.StatusUnsupportedMediaType, "unsupported_media",
			"file is not decodable audio", err)
	}
	if probe.DurationSeconds > MaxDurationSeconds {
		s.metrics.IngestionsRejected.Inc()
		return nil, s.failStatus(ctx, ing, http.StatusRequestEntityTooLarge, "audio_too_long",
			fmt.Sprintf("audio is %.0fs, limit is %.0fs", probe.DurationSeconds, MaxDurationSeconds), nil)
	}

	meta := map[string]any{
		"duration_seconds": probe.DurationSeconds,
		"audio_format":     probe.Format,
	}
	if err := s.repo.MarkProcessing(ctx, nil, ownerID, ing.ID, meta); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	ing.Status = types.IngestionStatusProcessing
	ing.DurationSeconds = probe.DurationSeconds
	ing.AudioFormat = probe.Format

	transcodeStart := time.Now()
	tr, err := s.tc.Transcode(ctx, arena, inputPath, transcoder.DefaultOptions())
	if err != nil {
		return nil, s.fail(ctx, ing, "audio conversion failed", err)
	}
	s.metrics.TranscodeDuration.Observe(time.Since(transcodeStart).Seconds())
	log.Debug("Transcode finished",
		"resampled", tr.Resampled,
		"rechanneled", tr.Rechanneled,
	)

	transcribeStart := time.Now()
	result, err := s.stt.Transcribe(ctx, tr.OutputPath, language)
	if err != nil {
		return nil, s.fail(ctx, ing, "transcription failed", err)
	}
	s.metrics.TranscribeDuration.Observe(time.Since(transcribeStart).Seconds())

	segments := make([]types.TranscriptSegment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segments = append(segments, types.TranscriptSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	segJSON, err := json.Marshal(segments)
	if err != nil {
		return nil, s.fail(ctx, ing, "could not encode segments", err)
	}

	fields := map[string]any{
		"transcript": strings.TrimSpace(result.Text),
		"segments":   segJSON,
		"language":   result.Language,
		"confidence": result.Confidence,
	}
	if err := s.repo.MarkCompleted(ctx, nil, ownerID, ing.ID, fields); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	s.metrics.IngestionsCompleted.Inc()
	log.Info("Ingestion completed",
		"duration_seconds", probe.DurationSeconds,
		"confidence", result.Confidence,
	)

	return s.repo.GetByID(ctx, nil, ownerID, ing.ID)
}

// fail persists the failure on the record, then returns an error carrying
// the given message. The status write happens first so callers polling the
// record see the terminal state even if this response is lost.
func (s *ingestionService) fail(ctx context.Context, ing *types.Ingestion, msg string, cause error) error {
	return s.failStatus(ctx, ing, http.StatusBadGateway, "ingestion_failed", msg, cause)
}

func (s *ingestionService) failStatus(ctx context.Context, ing *types.Ingestion, status int, code, msg string, cause error) error {
	errorMessage := msg
	if cause != nil {
		errorMessage = fmt.Sprintf("%s: %v", msg, cause)
	}
	if markErr := s.repo.MarkFailed(ctx, nil, ing.OwnerID, ing.ID, errorMessage); markErr != nil {
		s.log.Error("Could not persist ingestion failure",
			"ingestion_id", ing.ID,
			"error", markErr,
		)
	}
	s.metrics.IngestionsFailed.Inc()
	if cause == nil {
		cause = fmt.Errorf("%s", msg)
	}
	return apierr.New(status, code, fmt.Errorf("%s: %w", msg, cause))
}

// SubmitText is the typed path: no audio stages, the record is terminal on
// creation. The id prefix keeps typed submissions distinguishable from
// voice ones forever.
func (s *ingestionService) SubmitText(ctx context.Context, ownerID uuid.UUID, text string) (*types.Ingestion, error) {
	if ownerID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "missing_owner", fmt.Errorf("request carries no owner identity"))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apierr.New(http.StatusBadRequest, "empty_text", fmt.Errorf("text is required"))
	}

	now := time.Now()
	ing := &types.Ingestion{
		ID:          types.NewTextIngestionID(),
		OwnerID:     ownerID,
		Status:      types.IngestionStatusCompleted,
		Transcript:  text,
		Confidence:  1.0,
		CompletedAt: &now,
	}
	if err := s.repo.Create(ctx, nil, ing); err != nil {
		return nil, fmt.Errorf("create text submission: %w", err)
	}
	s.metrics.IngestionsStarted.Inc()
	s.metrics.IngestionsCompleted.Inc()
	return ing, nil
}

func (s *ingestionService) Status(ctx context.Context, ownerID uuid.UUID, id string) (*types.Ingestion, error) {
	return s.get(ctx, ownerID, id)
}

func (s *ingestionService) Transcript(ctx context.Context, ownerID uuid.UUID, id string) (*types.Ingestion, error) {
	return s.get(ctx, ownerID, id)
}

func (s *ingestionService) get(ctx context.Context, ownerID uuid.UUID, id string) (*types.Ingestion, error) {
	if ownerID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "missing_owner", fmt.Errorf("request carries no owner identity"))
	}
	ing, err := s.repo.GetByID(ctx, nil, ownerID, id)
	if errors.Is(err, repos.ErrIngestionNotFound) {
		return nil, apierr.New(http.StatusNotFound, "not_found", err)
	}
	if err != nil {
		return nil, err
	}
	return ing, nil
}

func (s *ingestionService) List(ctx context.Context, ownerID uuid.UUID, limit int) ([]*types.Ingestion, error) {
	if ownerID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "missing_owner", fmt.Errorf("request carries no owner identity"))
	}
	return s.repo.ListByOwner(ctx, nil, ownerID, limit)
}
