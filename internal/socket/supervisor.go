// Package socket owns the persistent transcription socket: connection
// lifecycle, exponential-backoff reconnection, and the connect/wait-until-
// ready contract consumed by the recording controller. Outbound frames are
// binary audio; inbound frames are UTF-8 text fragments delivered in arrival
// order to a single registered handler.
package socket

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/scribelab/transcribe-client/internal/observability"
)

// Status is the socket lifecycle state
type Status int

const (
	StatusClosed     Status = iota // No transport
	StatusConnecting               // Dial in progress or scheduled
	StatusOpen                     // Frames flow
	StatusError                    // Reconnection budget exhausted; terminal
)

// String returns the lowercase status name
func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Options holds the reconnection and wait policy
type Options struct {
	MaxAttempts      int           // Reconnection attempts before terminal error
	Backoff          time.Duration // Base backoff (doubles per attempt)
	MaxBackoff       time.Duration // Backoff cap
	WaitPollInterval time.Duration // WaitForConnection polling interval
	WaitPollBudget   int           // Polls before WaitForConnection gives up
}

// DefaultOptions returns the default reconnection policy
func DefaultOptions() Options {
	return Options{
		MaxAttempts:      5,
		Backoff:          1 * time.Second,
		MaxBackoff:       30 * time.Second,
		WaitPollInterval: 100 * time.Millisecond,
		WaitPollBudget:   50,
	}
}

// Supervisor manages the websocket to the transcription backend
type Supervisor struct {
	url    string
	opts   Options
	logger zerolog.Logger
	dialer *websocket.Dialer

	mu             sync.Mutex
	conn           *websocket.Conn
	status         Status
	attempts       int
	manual         bool
	reconnectTimer *time.Timer
	handler        func(text string)
}

// NewSupervisor creates a supervisor for the given websocket URL. Connect
// must be called to establish the transport.
func NewSupervisor(url string, opts Options, logger zerolog.Logger) *Supervisor {
	if opts.Backoff <= 0 {
		opts = DefaultOptions()
	}
	return &Supervisor{
		url:    url,
		opts:   opts,
		logger: logger,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		status: StatusClosed,
	}
}

// OnMessage registers the handler for inbound text fragments. Must be set
// before Connect; fragments are delivered sequentially from one goroutine.
func (s *Supervisor) OnMessage(fn func(text string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Status returns the current lifecycle state
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connect establishes the transport. A no-op when already open. A failed
// dial counts as an unexpected close and goes through the reconnection
// schedule rather than returning an error.
func (s *Supervisor) Connect() {
	s.mu.Lock()
	if s.status == StatusOpen {
		s.mu.Unlock()
		s.logger.Debug().Msg("Socket already connected")
		return
	}
	s.manual = false
	s.status = StatusConnecting
	observability.SetSocketState(int(s.status))
	url := s.url
	s.mu.Unlock()

	s.logger.Info().Str("url", url).Msg("Connecting transcription socket")
	conn, _, err := s.dialer.Dial(url, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.manual {
		// Disconnect raced the dial; drop the fresh connection
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		s.logger.Warn().Err(err).Msg("Socket dial failed")
		s.status = StatusClosed
		observability.SetSocketState(int(s.status))
		s.scheduleReconnectLocked()
		return
	}

	s.conn = conn
	s.status = StatusOpen
	s.attempts = 0
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	observability.SetSocketState(int(s.status))
	s.logger.Info().Msg("Transcription socket open")

	go s.readLoop(conn)
}

// readLoop pumps inbound frames until the connection dies
func (s *Supervisor) readLoop(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("Socket read error")
			}
			break
		}

		if messageType != websocket.TextMessage {
			s.logger.Debug().Int("type", messageType).Msg("Ignoring non-text frame")
			continue
		}

		s.mu.Lock()
		handler := s.handler
		s.mu.Unlock()
		if handler != nil {
			handler(string(data))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != conn {
		// A newer connection already replaced this one
		return
	}
	s.conn = nil
	s.status = StatusClosed
	observability.SetSocketState(int(s.status))

	if s.manual {
		s.logger.Info().Msg("Socket closed by manual disconnect")
		return
	}
	s.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the next reconnection attempt. Callers hold
// s.mu. Exceeding the attempt budget is terminal.
func (s *Supervisor) scheduleReconnectLocked() {
	if s.attempts >= s.opts.MaxAttempts {
		s.logger.Error().
			Int("attempts", s.attempts).
			Msg("Reconnection budget exhausted, giving up")
		s.status = StatusError
		observability.SetSocketState(int(s.status))
		return
	}

	s.attempts++
	observability.RecordReconnectAttempt()
	delay := backoffDelay(s.attempts, s.opts.Backoff, s.opts.MaxBackoff)
	s.logger.Warn().
		Int("attempt", s.attempts).
		Int("max_attempts", s.opts.MaxAttempts).
		Dur("delay", delay).
		Msg("Socket disconnected, scheduling reconnect")

	s.status = StatusConnecting
	observability.SetSocketState(int(s.status))
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	s.reconnectTimer = time.AfterFunc(delay, s.Connect)
}

// backoffDelay computes min(maxBackoff, 2^attempt * base + random jitter up
// to one second).
func backoffDelay(attempt int, base, maxBackoff time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	delay += time.Duration(rand.Int63n(int64(time.Second)))
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// Disconnect closes the transport and suppresses reconnection. Safe to call
// in any state.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manual = true
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.conn != nil {
		// Best-effort close handshake; the read loop observes the close
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.conn.Close()
		s.conn = nil
	}
	s.status = StatusClosed
	observability.SetSocketState(int(s.status))
}

// SendBinary sends one audio frame. Frames attempted while the socket is not
// open are dropped with a warning, never queued.
func (s *Supervisor) SendBinary(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusOpen || s.conn == nil {
		s.logger.Warn().
			Str("status", s.status.String()).
			Int("bytes", len(data)).
			Msg("Dropping audio frame, socket not open")
		observability.RecordFrameDropped("binary")
		return fmt.Errorf("socket is not open (status %s)", s.status)
	}

	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("send audio frame: %w", err)
	}
	return nil
}

// WaitForConnection blocks the caller (polling at a coarse interval, without
// spinning) until the socket is open. It fails once the socket reaches the
// terminal error state, the polling budget elapses, or ctx is done.
func (s *Supervisor) WaitForConnection(ctx context.Context) error {
	if s.Status() == StatusOpen {
		return nil
	}

	ticker := time.NewTicker(s.opts.WaitPollInterval)
	defer ticker.Stop()

	for polls := 0; polls < s.opts.WaitPollBudget; polls++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			switch s.Status() {
			case StatusOpen:
				return nil
			case StatusError:
				return fmt.Errorf("socket entered terminal error state")
			}
		}
	}
	return fmt.Errorf("timed out waiting for socket connection")
}
