// Package align provides timed transcription of synthesized audio through a
// whisper-compatible transcription endpoint.
package align

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
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-job-service/internal/core"
)

// Defaults applied when the configuration leaves them empty.
const (
	DefaultModel   = "whisper-1"
	DefaultTimeout = 120 * time.Second
)

// Error messages.
const (
	errFailedToOpenFile        = "failed to open audio file: %w"
	errFailedToCreateFormFile  = "failed to create form file: %w"
	errFailedToCopyFileData    = "failed to copy file data: %w"
	errFailedToWriteField      = "failed to write %s field: %w"
	errFailedToCloseWriter     = "failed to close multipart writer: %w"
	errFailedToCreateRequest   = "failed to create request: %w"
	errFailedToMakeRequest     = "failed to make request: %w"
	errAPIRequestFailed        = "API request failed with status %d: %s"
	errFailedToDecodeResponse  = "failed to decode response: %w"
	errFailedToCloseRespBody   = "Failed to close alignment response body: %v"
	errFmtAlignmentFailureWrap = "%w: %w"
)

// HTTP headers.
const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
)

// Form field names and values.
const (
	formFieldFile                   = "file"
	formFieldModel                  = "model"
	formFieldLanguage               = "language"
	formFieldResponseFormat         = "response_format"
	formFieldTimestampGranularities = "timestamp_granularities[]"
	responseFormatVerboseJSON       = "verbose_json"
	timestampGranularitySegment     = "segment"
)

// Options configures a Client.
type Options struct {
	// URL is the full transcription endpoint, e.g. http://host:9000/v1/audio/transcriptions.
	URL      string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// Client implements core.Aligner against a transcription endpoint.
type Client struct {
	httpClient *http.Client
	options    Options
	log        *logger.Logger
}

// Segment is one transcribed span in a verbose_json response.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Response represents the verbose_json transcription response.
type Response struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments"`
}

// NewClient creates a new alignment client, filling in the default model and timeout.
func NewClient(options Options, log *logger.Logger) *Client {
	if options.Model == "" {
		options.Model = DefaultModel
	}

	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}

	return &Client{
		options: options,
		log:     log,
		httpClient: &http.Client{
			Timeout: options.Timeout,
		},
	}
}

// Align transcribes the audio file and returns its segments in the order the
// service produced them. Every failure wraps core.ErrAlignment.
func (c *Client) Align(ctx context.Context, audioPath string) ([]core.TimedSegment, error) {
	body, contentType, err := c.buildForm(audioPath)
	if err != nil {
		return nil, fmt.Errorf(errFmtAlignmentFailureWrap, core.ErrAlignment, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.URL, body)
	if err != nil {
		return nil, fmt.Errorf(errFmtAlignmentFailureWrap, core.ErrAlignment, fmt.Errorf(errFailedToCreateRequest, err))
	}

	if c.options.APIKey != "" {
		req.Header.Set(headerAuthorization, "Bearer "+c.options.APIKey)
	}

	req.Header.Set(headerContentType, contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf(errFmtAlignmentFailureWrap, core.ErrAlignment, fmt.Errorf(errFailedToMakeRequest, err))
	}

	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			c.log.Warn(errFailedToCloseRespBody, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)

		return nil, fmt.Errorf(errFmtAlignmentFailureWrap, core.ErrAlignment,
			fmt.Errorf(errAPIRequestFailed, resp.StatusCode, string(respBody)))
	}

	var transcription Response

	decodeErr := json.NewDecoder(resp.Body).Decode(&transcription)
	if decodeErr != nil {
		return nil, fmt.Errorf(errFmtAlignmentFailureWrap, core.ErrAlignment,
			fmt.Errorf(errFailedToDecodeResponse, decodeErr))
	}

	segments := make([]core.TimedSegment, 0, len(transcription.Segments))
	for _, segment := range transcription.Segments {
		segments = append(segments, core.TimedSegment{
			Start: segment.Start,
			End:   segment.End,
			Text:  segment.Text,
		})
	}

	c.log.Info("Alignment produced %d segments", len(segments))

	return segments, nil
}

func (c *Client) buildForm(audioPath string) (*bytes.Buffer, string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToOpenFile, err)
	}
	defer file.Close()

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(formFieldFile, filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToCreateFormFile, err)
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return nil, "", fmt.Errorf(errFailedToCopyFileData, err)
	}

	fields := [][2]string{
		{formFieldModel, c.options.Model},
		{formFieldResponseFormat, responseFormatVerboseJSON},
		{formFieldTimestampGranularities, timestampGranularitySegment},
	}

	if c.options.Language != "" {
		fields = append(fields, [2]string{formFieldLanguage, c.options.Language})
	}

	for _, field := range fields {
		writeErr := writer.WriteField(field[0], field[1])
		if writeErr != nil {
			return nil, "", fmt.Errorf(errFailedToWriteField, field[0], writeErr)
		}
	}

	closeErr := writer.Close()
	if closeErr != nil {
		return nil, "", fmt.Errorf(errFailedToCloseWriter, closeErr)
	}

	return &buf, writer.FormDataContentType(), nil
}
