package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// APIClient talks to the voicenotes backend over HTTP.
type APIClient struct {
	baseURL    string
	ownerID    string
	httpClient *http.Client
}

func NewAPIClient(cfg ServerConfig) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		ownerID:    cfg.OwnerID,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

// IngestionRef names a submitted recording or text note.
type IngestionRef struct {
	IngestionID string `json:"ingestion_id"`
	Status      string `json:"status"`
}

// StatusInfo is the backend's view of one ingestion.
type StatusInfo struct {
	IngestionID  string  `json:"ingestion_id"`
	Status       string  `json:"status"`
	Duration     float64 `json:"duration_seconds"`
	ErrorMessage string  `json:"error_message"`
}

// TranscriptInfo is the completed transcript payload.
type TranscriptInfo struct {
	IngestionID string  `json:"ingestion_id"`
	Transcript  string  `json:"transcript"`
	Language    string  `json:"language"`
	Confidence  float64 `json:"confidence"`
}

// TaskInfo is one extracted task as the backend returns it.
type TaskInfo struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Type     string     `json:"type"`
	Priority string     `json:"priority"`
	DueDate  *time.Time `json:"due_date"`
}

// StickyInfo is one generated sticky as the backend returns it.
type StickyInfo struct {
	Concept    string `json:"concept"`
	Definition string `json:"definition"`
	Example    string `json:"example"`
}

type apiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// UploadRecording submits a captured file and returns the ingestion
// reference once the backend finishes the pipeline.
func (c *APIClient) UploadRecording(ctx context.Context, path string) (*IngestionRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("stage recording: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ingestions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var ref IngestionRef
	if err := c.do(req, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// SubmitText submits a typed note.
func (c *APIClient) SubmitText(ctx context.Context, text string) (*IngestionRef, error) {
	var ref IngestionRef
	if err := c.postJSON(ctx, "/api/ingestions/text", map[string]string{"text": text}, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// Status fetches the current pipeline status of an ingestion.
func (c *APIClient) Status(ctx context.Context, ingestionID string) (*StatusInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/ingestions/"+ingestionID+"/status", nil)
	if err != nil {
		return nil, err
	}
	var info StatusInfo
	if err := c.do(req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Transcript fetches the transcript of a completed ingestion. A nil
// result with nil error means the ingestion is still in flight.
func (c *APIClient) Transcript(ctx context.Context, ingestionID string) (*TranscriptInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/ingestions/"+ingestionID+"/transcript", nil)
	if err != nil {
		return nil, err
	}
	c.setIdentity(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusAccepted:
		return nil, nil
	case resp.StatusCode == http.StatusOK:
		var info TranscriptInfo
		if err := json.Unmarshal(body, &info); err != nil {
			return nil, fmt.Errorf("unparseable transcript payload: %w", err)
		}
		return &info, nil
	default:
		return nil, decodeAPIError(resp.StatusCode, body)
	}
}

// ExtractTasks asks the backend to turn text into tasks.
func (c *APIClient) ExtractTasks(ctx context.Context, ingestionID, text string) ([]TaskInfo, error) {
	var out struct {
		Tasks []TaskInfo `json:"tasks"`
	}
	payload := map[string]string{"text": text, "ingestion_id": ingestionID}
	if err := c.postJSON(ctx, "/api/tasks/extract", payload, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// GenerateStickies asks the backend to turn text into learning stickies.
func (c *APIClient) GenerateStickies(ctx context.Context, text string) (string, []StickyInfo, error) {
	var out struct {
		Domain  string       `json:"domain"`
		Created []StickyInfo `json:"created"`
	}
	if err := c.postJSON(ctx, "/api/stickies/generate", map[string]string{"text": text}, &out); err != nil {
		return "", nil, err
	}
	return out.Domain, out.Created, nil
}

func (c *APIClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *APIClient) do(req *http.Request, out any) error {
	c.setIdentity(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unparseable response: %w", err)
	}
	return nil
}

func (c *APIClient) setIdentity(req *http.Request) {
	if c.ownerID != "" {
		req.Header.Set("X-Owner-ID", c.ownerID)
	}
}

func decodeAPIError(status int, body []byte) error {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("server error (http %d, %s): %s", status, envelope.Error.Code, envelope.Error.Message)
	}
	return fmt.Errorf("server error (http %d): %s", status, strings.TrimSpace(string(body)))
}
