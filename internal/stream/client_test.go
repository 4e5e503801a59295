package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scribelab/transcribe-client/internal/observability"
)

func sseHandler(t *testing.T, frames []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("Server does not support flushing")
		}
		for _, f := range frames {
			_, _ = w.Write([]byte(f + "\n\n"))
			flusher.Flush()
		}
	}
}

func TestStream_DeliversDeltasInOrder(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"text": "你"}`,
		`data: {"text": "好"}`,
		`data: {"text": "。"}`,
	}))
	defer srv.Close()

	c := NewClient(srv.URL, observability.GetLogger())
	var got strings.Builder
	err := c.Stream(context.Background(), "/api/translate", Request{Text: "hello"}, func(text string) {
		got.WriteString(text)
	})

	if err != nil {
		t.Fatalf("Stream() failed: %v", err)
	}
	if got.String() != "你好。" {
		t.Errorf("Expected '你好。', got '%s'", got.String())
	}
}

func TestStream_SkipsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		`data: {"text": "ok1"}`,
		`data: not-json`,
		`: heartbeat comment`,
		`data: {"text": "ok2"}`,
	}))
	defer srv.Close()

	c := NewClient(srv.URL, observability.GetLogger())
	var got []string
	err := c.Stream(context.Background(), "/api/summarize", Request{Text: "x"}, func(text string) {
		got = append(got, text)
	})

	if err != nil {
		t.Fatalf("Stream() failed: %v", err)
	}
	if len(got) != 2 || got[0] != "ok1" || got[1] != "ok2" {
		t.Errorf("Expected deltas [ok1 ok2], got %v", got)
	}
}

func TestStream_PostsRequestPayload(t *testing.T) {
	var received Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Decode request: %v", err)
		}
		_, _ = w.Write([]byte("data: {\"text\": \"done\"}\n\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, observability.GetLogger())
	err := c.Translate(context.Background(), "今日は良い天気です", "en", func(string) {})
	if err != nil {
		t.Fatalf("Translate() failed: %v", err)
	}
	if received.Text != "今日は良い天気です" {
		t.Errorf("Expected source text in payload, got '%s'", received.Text)
	}
	if received.TargetLang != "en" {
		t.Errorf("Expected target_lang 'en', got '%s'", received.TargetLang)
	}
}

func TestStream_CancelKeepsDeliveredOutput(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"text\": \"partial\"}\n\n"))
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())

	c := NewClient(srv.URL, observability.GetLogger())
	got := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Stream(ctx, "/api/chat", Request{Message: "q"}, func(text string) {
			got <- text
		})
	}()

	select {
	case text := <-got:
		if text != "partial" {
			t.Errorf("Expected 'partial', got '%s'", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for first delta")
	}

	cancel()
	select {
	case err := <-done:
		// Cancellation is not an error; delivered output stands
		if err != nil {
			t.Errorf("Expected nil error after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for stream to stop")
	}
}

func TestStream_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, observability.GetLogger())
	if err := c.Stream(context.Background(), "/api/translate", Request{}, func(string) {}); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestParseFrame(t *testing.T) {
	if texts := parseFrame(`data: {"text": "hi"}`); len(texts) != 1 || texts[0] != "hi" {
		t.Errorf("Expected ['hi'], got %v", texts)
	}
	if texts := parseFrame("event: ping"); len(texts) != 0 {
		t.Errorf("Expected frame without data field to yield nothing, got %v", texts)
	}
	if texts := parseFrame("data: [DONE]"); len(texts) != 0 {
		t.Errorf("Expected [DONE] sentinel to yield nothing, got %v", texts)
	}
	if texts := parseFrame("data: {\"text\": \"crlf\"}\r"); len(texts) != 1 || texts[0] != "crlf" {
		t.Errorf("Expected CRLF frame to parse, got %v", texts)
	}
}

func TestParseFrame_MultipleDataLines(t *testing.T) {
	frame := "data: {\"text\": \"一\"}\ndata: not-json\ndata: {\"text\": \"二\"}"
	texts := parseFrame(frame)
	if len(texts) != 2 || texts[0] != "一" || texts[1] != "二" {
		t.Errorf("Expected every valid data line emitted in order, got %v", texts)
	}
}

func TestStream_FrameWithMultipleDataLines(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		"data: {\"text\": \"你\"}\ndata: {\"text\": \"好\"}",
		`data: {"text": "。"}`,
	}))
	defer srv.Close()

	c := NewClient(srv.URL, observability.GetLogger())
	var got strings.Builder
	err := c.Stream(context.Background(), "/api/translate", Request{Text: "hello"}, func(text string) {
		got.WriteString(text)
	})

	if err != nil {
		t.Fatalf("Stream() failed: %v", err)
	}
	if got.String() != "你好。" {
		t.Errorf("Expected '你好。', got '%s'", got.String())
	}
}
