package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribelab/transcribe-client/internal/resilience"
)

// batchResponse is the backend's batch transcription reply: either an error
// string or a completed transcript.
type batchResponse struct {
	Error      string           `json:"error,omitempty"`
	Status     string           `json:"status,omitempty"`
	Transcript *batchTranscript `json:"transcript,omitempty"`
}

type batchTranscript struct {
	Results []batchResult `json:"results"`
}

type batchResult struct {
	StartTime    float64            `json:"start_time"`
	EndTime      float64            `json:"end_time"`
	Alternatives []batchAlternative `json:"alternatives"`
}

type batchAlternative struct {
	Content string `json:"content"`
	Speaker string `json:"speaker,omitempty"`
}

// Client submits cached session audio for batch re-transcription
type Client struct {
	url             string
	fallbackSpeaker string
	hc              *http.Client
	retry           *resilience.RetryConfig
	logger          zerolog.Logger
}

// NewClient creates a batch transcription client. fallbackSpeaker labels
// segments whose alternatives carry no speaker.
func NewClient(url, fallbackSpeaker string, retry *resilience.RetryConfig, logger zerolog.Logger) *Client {
	return &Client{
		url:             url,
		fallbackSpeaker: fallbackSpeaker,
		hc:              &http.Client{Timeout: 10 * time.Minute},
		retry:           retry,
		logger:          logger,
	}
}

// Transcribe posts the audio blob as a multipart payload and returns the
// timestamped segments of the finished transcript. Transient network
// failures are retried; backend-reported errors are not.
func (c *Client) Transcribe(ctx context.Context, audio []byte) ([]Segment, error) {
	// Build multipart payload
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "session-audio.webm")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	var raw []byte
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body.Bytes()))
		if err != nil {
			return fmt.Errorf("build batch request: %w", err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())

		resp, err := c.hc.Do(req)
		if err != nil {
			return fmt.Errorf("batch request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read batch response: %w", err)
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("batch endpoint http %d: %s", resp.StatusCode, string(data))
		}
		raw = data
		return nil
	}

	if err := resilience.Retry(ctx, attempt, c.retry, resilience.IsRetryableNetworkError); err != nil {
		return nil, err
	}

	var br batchResponse
	if err := json.Unmarshal(raw, &br); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	if br.Error != "" {
		return nil, fmt.Errorf("batch transcription failed: %s", br.Error)
	}
	if br.Status != "done" || br.Transcript == nil {
		return nil, fmt.Errorf("unexpected batch status %q", br.Status)
	}

	segments := make([]Segment, 0, len(br.Transcript.Results))
	for _, res := range br.Transcript.Results {
		if len(res.Alternatives) == 0 {
			continue
		}
		// The first alternative is the best hypothesis
		alt := res.Alternatives[0]
		speaker := alt.Speaker
		if speaker == "" {
			speaker = c.fallbackSpeaker
		}
		segments = append(segments, Segment{
			Text:      alt.Content,
			StartTime: res.StartTime,
			EndTime:   res.EndTime,
			Speaker:   speaker,
		})
	}

	c.logger.Info().Int("segments", len(segments)).Msg("Batch transcription completed")
	return segments, nil
}
