package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/metrics"
	"github.com/yungbote/voicenotes-backend/internal/utils"
)

// Segment is one time-aligned span of the hosted service's output.
type Segment struct {
	ID         int     `json:"id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	AvgLogProb float64 `json:"avg_logprob"`
}

// Result is the normalized transcription outcome. Confidence is derived
// from the segment log-probabilities and rescaled into [0,1].
type Result struct {
	Text            string
	Language        string
	DurationSeconds float64
	Segments        []Segment
	Confidence      float64
}

// Client submits canonicalized audio to the hosted speech-to-text service.
type Client interface {
	Transcribe(ctx context.Context, path string, language string) (*Result, error)
	// Translate is the translate-to-English request shape; same retry
	// contract as Transcribe.
	Translate(ctx context.Context, path string) (*Result, error)
}

type client struct {
	log     *logger.Logger
	metrics *metrics.Metrics

	baseURL string
	apiKey  string
	model   string

	httpClient *http.Client

	maxRetries int
	baseDelay  time.Duration
	sleep      func(time.Duration)
}

func NewClient(log *logger.Logger, m *metrics.Metrics) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := strings.TrimSpace(os.Getenv("STT_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing STT_API_KEY")
	}

	baseURL := strings.TrimRight(utils.GetEnv("STT_BASE_URL", "https://api.openai.com", log), "/")
	model := utils.GetEnv("STT_MODEL", "whisper-1", log)
	timeoutSec := utils.GetEnvAsInt("STT_TIMEOUT_SECONDS", 60, log)
	maxRetries := utils.GetEnvAsInt("STT_MAX_RETRIES", 3, log)

	return &client{
		log:        log.With("service", "TranscriptionClient"),
		metrics:    m,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
		baseDelay:  1 * time.Second,
		sleep:      time.Sleep,
	}, nil
}

func (c *client) Transcribe(ctx context.Context, path string, language string) (*Result, error) {
	fields := map[string]string{
		"model":           c.model,
		"response_format": "verbose_json",
	}
	if strings.TrimSpace(language) != "" {
		fields["language"] = strings.TrimSpace(language)
	}
	return c.submit(ctx, "/v1/audio/transcriptions", path, fields)
}

func (c *client) Translate(ctx context.Context, path string) (*Result, error) {
	fields := map[string]string{
		"model":           c.model,
		"response_format": "verbose_json",
	}
	return c.submit(ctx, "/v1/audio/translations", path, fields)
}

// submit runs the request with exponential backoff: delay doubles each
// attempt, non-retryable failures surface immediately, and exhaustion
// surfaces the last classified error.
func (c *client) submit(ctx context.Context, endpoint, path string, fields map[string]string) (*Result, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, &ServiceError{Kind: KindClientError, Message: "cannot read audio file", Err: err}
	}

	var lastErr *ServiceError
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, Classify(0, "", ctx.Err())
		}

		res, svcErr := c.doOnce(ctx, endpoint, filepath.Base(path), audio, fields)
		if svcErr == nil {
			return res, nil
		}
		lastErr = svcErr

		if !svcErr.Retryable() {
			return nil, svcErr
		}
		if attempt == c.maxRetries {
			break
		}

		delay := c.baseDelay * time.Duration(1<<uint(attempt-1))
		c.log.Warn("Transcription request retrying",
			"endpoint", endpoint,
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"kind", string(svcErr.Kind),
			"sleep", delay.String(),
			"error", svcErr.Error(),
		)
		if c.metrics != nil {
			c.metrics.TranscriptionRetries.Inc()
		}
		c.sleep(delay)
	}

	return nil, lastErr
}

type verboseResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

func (c *client) doOnce(ctx context.Context, endpoint, filename string, audio []byte, fields map[string]string) (*Result, *ServiceError) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, Classify(0, "", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, Classify(0, "", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, Classify(0, "", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, Classify(0, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, &body)
	if err != nil {
		return nil, Classify(0, "", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Classify(0, "", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, Classify(0, "", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, Classify(resp.StatusCode, strings.TrimSpace(string(raw)), nil)
	}

	var parsed verboseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// A 2xx with an unparseable body is the service misbehaving, not
		// the caller: classify as server-side and let the retry run.
		return nil, &ServiceError{Kind: KindServerError, StatusCode: resp.StatusCode, Message: "unparseable response body", Err: err}
	}
	if strings.TrimSpace(parsed.Text) == "" && len(parsed.Segments) == 0 {
		return nil, &ServiceError{Kind: KindServerError, StatusCode: resp.StatusCode, Message: "empty transcription response"}
	}

	return &Result{
		Text:            strings.TrimSpace(parsed.Text),
		Language:        parsed.Language,
		DurationSeconds: parsed.Duration,
		Segments:        parsed.Segments,
		Confidence:      confidenceFromSegments(parsed.Segments),
	}, nil
}

// confidenceFromSegments averages segment log-probabilities and rescales
// to [0,1] via exp. No segments means no basis for a confidence estimate.
func confidenceFromSegments(segs []Segment) float64 {
	if len(segs) == 0 {
		return 0
	}
	var sum float64
	for _, s := range segs {
		sum += s.AvgLogProb
	}
	mean := sum / float64(len(segs))
	conf := math.Exp(mean)
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}
