// Package stream consumes server-sent event streams from the backend's
// text-generation endpoints (translation, summarization, chat). Each event
// carries a JSON delta with an incremental text piece.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribelab/transcribe-client/internal/observability"
)

// Request is the payload posted to a streaming endpoint. Fields not relevant
// to a given endpoint stay empty and are omitted from the JSON body.
type Request struct {
	Text       string `json:"text,omitempty"`
	Message    string `json:"message,omitempty"`
	Attrs      string `json:"attrs,omitempty"`
	TargetLang string `json:"target_lang,omitempty"`
}

// delta is one SSE data frame
type delta struct {
	Text string `json:"text"`
}

// Client streams incremental text from the backend
type Client struct {
	baseURL string
	hc      *http.Client
	logger  zerolog.Logger
}

// NewClient creates a streaming client rooted at baseURL
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No overall timeout: streams run until the server closes them or
		// the caller cancels the context
		hc:     &http.Client{},
		logger: logger,
	}
}

// Stream posts req to path and invokes onText for every text delta until the
// stream ends. Cancelling ctx stops the stream without error; output already
// delivered stays delivered. Malformed frames are skipped.
func (c *Client) Stream(ctx context.Context, path string, req Request, onText func(string)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("stream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("stream endpoint http %d", resp.StatusCode)
	}

	// Frames are separated by a blank line; scan by double newline
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanFrames)

	deltas := 0
	for scanner.Scan() {
		for _, text := range parseFrame(scanner.Text()) {
			deltas++
			observability.RecordStreamDelta(path)
			onText(text)
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("read stream: %w", err)
	}

	c.logger.Debug().
		Str("path", path).
		Int("deltas", deltas).
		Dur("elapsed", time.Since(start)).
		Msg("Stream completed")
	return nil
}

// Translate streams a translation of text into targetLang
func (c *Client) Translate(ctx context.Context, text, targetLang string, onText func(string)) error {
	return c.Stream(ctx, "/api/translate", Request{Text: text, TargetLang: targetLang}, onText)
}

// Summarize streams a summary of text
func (c *Client) Summarize(ctx context.Context, text string, onText func(string)) error {
	return c.Stream(ctx, "/api/summarize", Request{Text: text}, onText)
}

// Chat streams an answer to message grounded on the transcript attrs
func (c *Client) Chat(ctx context.Context, message, attrs string, onText func(string)) error {
	return c.Stream(ctx, "/api/chat", Request{Message: message, Attrs: attrs}, onText)
}

// scanFrames is a bufio.SplitFunc yielding SSE frames delimited by "\n\n"
func scanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parseFrame extracts the text deltas from one SSE frame, in order. A frame
// may carry several data lines; lines without a data field or with
// unparseable JSON are skipped.
func parseFrame(frame string) []string {
	var texts []string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			continue
		}
		var d delta
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			continue
		}
		texts = append(texts, d.Text)
	}
	return texts
}
