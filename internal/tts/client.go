// Package tts adapts job requests onto the standalone speech synthesis service.
//
// The service receives the synthesis controls as JSON, together with the
// optional 16 kHz reference waveform, and answers with a WAV body.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
	contentTypeXWAV   = "audio/x-wav"
)

// Error messages.
const (
	errFmtServiceErrorWithCode = "synthesis service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "synthesis service returned non-OK status: %s, body: %s"
	errFmtUnexpectedContent    = "%w: expected audio/wav, got %q"
)

var (
	// ErrTextCannotBeEmpty is returned before any request is sent for blank text.
	ErrTextCannotBeEmpty = errors.New("text cannot be empty")
	// ErrUnexpectedContentType is returned when the service does not answer with WAV.
	ErrUnexpectedContentType = errors.New("unexpected content type")
	// ErrReceivedEmptyAudio is returned for a successful response without a body.
	ErrReceivedEmptyAudio = errors.New("received empty audio data")
)

// HTTPClient represents a client for the standalone synthesis HTTP service.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// Request defines the JSON payload accepted by the synthesis service.
type Request struct {
	Text string `json:"text"`

	// PromptText is the transcript of the reference audio, when one is given.
	PromptText string `json:"prompt_text,omitempty"`

	// PromptSpeech16k carries the decoded reference waveform at 16 kHz mono.
	// When empty the service selects its default voice.
	PromptSpeech16k []float32 `json:"prompt_speech_16k,omitempty"`

	Gender           string  `json:"gender"`
	Pitch            float64 `json:"pitch"`
	Speed            float64 `json:"speed"`
	MultiSentenceGap float64 `json:"multi_sentence_gap"`
	TaskToken        string  `json:"task_token"`
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	MaxLength        int     `json:"max_length"`
}

// ErrorResponse represents a structured error response from the synthesis service.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates and configures an HTTP client for the synthesis service.
// The baseURL should include the protocol and port (e.g., "http://localhost:8000").
// A zero timeout leaves requests bounded only by their context.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GenerateSpeech sends a synthesis request and returns the raw WAV body.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrTextCannotBeEmpty
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerateSpeech,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to synthesis service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get(headerContentType))
	if mediaType != contentTypeWAV && mediaType != contentTypeXWAV {
		return nil, fmt.Errorf(errFmtUnexpectedContent, ErrUnexpectedContentType, resp.Header.Get(headerContentType))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrReceivedEmptyAudio
	}

	return audioData, nil
}

// HealthCheck verifies that the synthesis service is running and has its model loaded.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse decodes a structured JSON error from the service, falling
// back to the raw body.
func (c *HTTPClient) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
