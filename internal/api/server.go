// Package api exposes the local control surface of the transcription client:
// session lifecycle, transcript reads, exports, batch reconciliation, and
// the relayed text-generation streams.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/scribelab/transcribe-client/internal/session"
	"github.com/scribelab/transcribe-client/internal/stream"
	"github.com/scribelab/transcribe-client/internal/transcript"
)

// maxChunkBytes bounds a single posted audio chunk
const maxChunkBytes = 4 << 20

// Server handles the local control API
type Server struct {
	ctrl    *session.Controller
	streams *stream.Client
	logger  zerolog.Logger
}

// NewServer creates a control API server
func NewServer(ctrl *session.Controller, streams *stream.Client, logger zerolog.Logger) *Server {
	return &Server{ctrl: ctrl, streams: streams, logger: logger}
}

// Register mounts all control routes on mux
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/session/start", s.handleStart)
	mux.HandleFunc("/api/session/stop", s.handleStop)
	mux.HandleFunc("/api/session/clear", s.handleClear)
	mux.HandleFunc("/api/session/reconcile", s.handleReconcile)
	mux.HandleFunc("/api/audio", s.handleAudio)
	mux.HandleFunc("/api/transcript", s.handleTranscript)
	mux.HandleFunc("/api/export/text", s.handleExportText)
	mux.HandleFunc("/api/export/audio", s.handleExportAudio)
	mux.HandleFunc("/api/view/translate", s.handleTranslate)
	mux.HandleFunc("/api/view/summarize", s.handleSummarize)
	mux.HandleFunc("/api/view/chat", s.handleChat)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.ctrl.Start(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Session start failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "recording",
		"recordId": s.ctrl.RecordID(),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.ctrl.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.ctrl.ClearSession(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	merged, err := s.ctrl.BatchReconcile(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Batch reconciliation failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"merged": merged})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	chunk, err := io.ReadAll(io.LimitReader(r.Body, maxChunkBytes))
	if err != nil {
		http.Error(w, "read audio chunk", http.StatusBadRequest)
		return
	}
	s.ctrl.HandleAudioChunk(chunk)
	w.WriteHeader(http.StatusAccepted)
}

// transcriptView is the read model returned to renderers
type transcriptView struct {
	Recording bool              `json:"recording"`
	Lines     []transcript.Line `json:"lines"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, transcriptView{
		Recording: s.ctrl.Recording(),
		Lines:     s.ctrl.Store().Lines(),
	})
}

func (s *Server) handleExportText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transcript.txt"`)
	_, _ = io.WriteString(w, s.ctrl.ExportText())
}

func (s *Server) handleExportAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	blob := s.ctrl.ExportAudio()
	if blob == nil {
		http.Error(w, "no audio captured", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="session-audio.webm"`)
	_, _ = w.Write(blob)
}

type viewRequest struct {
	TargetLang string `json:"target_lang,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeViewRequest(w, r)
	if !ok {
		return
	}
	s.relayStream(w, r, func(onText func(string)) error {
		return s.streams.Translate(r.Context(), s.ctrl.SourceText(), req.TargetLang, onText)
	})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.decodeViewRequest(w, r); !ok {
		return
	}
	s.relayStream(w, r, func(onText func(string)) error {
		return s.streams.Summarize(r.Context(), s.ctrl.SourceText(), onText)
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeViewRequest(w, r)
	if !ok {
		return
	}
	if req.Message == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}
	s.relayStream(w, r, func(onText func(string)) error {
		return s.streams.Chat(r.Context(), req.Message, s.ctrl.SourceText(), onText)
	})
}

func (s *Server) decodeViewRequest(w http.ResponseWriter, r *http.Request) (viewRequest, bool) {
	var req viewRequest
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return req, false
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return req, false
		}
	}
	return req, true
}

// relayStream forwards backend text deltas to the caller as an SSE stream.
// A backend failure before the first delta becomes an HTTP error; after
// output has started the stream simply ends.
func (s *Server) relayStream(w http.ResponseWriter, r *http.Request, run func(onText func(string)) error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	started := false
	onText := func(text string) {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		payload, err := json.Marshal(map[string]string{"text": text})
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	if err := run(onText); err != nil {
		s.logger.Error().Err(err).Msg("Stream relay failed")
		if !started {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return
	}
	if !started {
		// Stream produced nothing; still answer with a well-formed SSE body
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
