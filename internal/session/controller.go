// Package session orchestrates one recording session: it feeds incoming
// transcription fragments through the segmenter into the transcript store,
// retains captured audio, schedules throttled snapshot saves, and runs
// batch reconciliation against the cached audio.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scribelab/transcribe-client/internal/audio"
	"github.com/scribelab/transcribe-client/internal/observability"
	"github.com/scribelab/transcribe-client/internal/persist"
	"github.com/scribelab/transcribe-client/internal/reconcile"
	"github.com/scribelab/transcribe-client/internal/transcript"
)

// Transport is the realtime connection the controller speaks through.
// Satisfied by socket.Supervisor.
type Transport interface {
	Connect()
	Disconnect()
	SendBinary(data []byte) error
	WaitForConnection(ctx context.Context) error
}

// Batcher re-transcribes a complete audio blob. Satisfied by
// reconcile.Client.
type Batcher interface {
	Transcribe(ctx context.Context, audioBlob []byte) ([]reconcile.Segment, error)
}

// Options configures a Controller
type Options struct {
	SessionID        string
	LiveSpeaker      string
	SilenceThreshold float64
	Terminals        string
	SaveInterval     time.Duration
}

// Controller owns the live transcription pipeline for a session
type Controller struct {
	mu        sync.Mutex
	rawBuf    string
	recording bool
	startedAt time.Time
	recordID  string
	lastErr   error

	opts      Options
	store     *transcript.Store
	segmenter *transcript.Segmenter
	chunks    *audio.ChunkBuffer
	gateway   *persist.Gateway
	throttler *persist.Throttler
	transport Transport
	batcher   Batcher
	logger    zerolog.Logger

	// elapsed returns seconds since recording start. Test hook.
	elapsed func() float64
}

// NewController wires a controller from its collaborators. gateway may be nil
// when persistence is disabled; snapshot operations become no-ops.
func NewController(opts Options, transport Transport, batcher Batcher, gateway *persist.Gateway, logger zerolog.Logger) *Controller {
	c := &Controller{
		opts:      opts,
		store:     transcript.NewStore(opts.SilenceThreshold, opts.LiveSpeaker),
		segmenter: transcript.NewSegmenter(opts.Terminals),
		chunks:    audio.NewChunkBuffer(),
		gateway:   gateway,
		transport: transport,
		batcher:   batcher,
		logger:    logger.With().Str("session_id", opts.SessionID).Logger(),
	}
	c.elapsed = func() float64 {
		c.mu.Lock()
		started := c.startedAt
		c.mu.Unlock()
		if started.IsZero() {
			return 0
		}
		return time.Since(started).Seconds()
	}
	c.throttler = persist.NewThrottler(opts.SaveInterval, c.saveSnapshot)
	return c
}

// Store exposes the transcript store for read-side consumers
func (c *Controller) Store() *transcript.Store {
	return c.store
}

// Recording reports whether a recording is in progress
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// RecordID returns the id of the current (or last) recording run
func (c *Controller) RecordID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordID
}

// LastError returns the most recent pipeline error, if any
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Start begins a fresh recording: previous durable and in-memory state is
// discarded, the realtime connection is established, and audio forwarding is
// enabled once the socket is open.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return errors.New("recording already in progress")
	}
	c.rawBuf = ""
	c.recordID = uuid.NewString()
	c.startedAt = time.Now()
	c.lastErr = nil
	c.mu.Unlock()

	c.store.Clear()
	c.chunks.Clear()
	if c.gateway != nil {
		if err := c.gateway.Clear(c.opts.SessionID); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to clear previous snapshot")
		}
	}
	observability.SetTranscriptLines(0)

	c.transport.Connect()
	if err := c.transport.WaitForConnection(ctx); err != nil {
		c.setErr(err)
		return fmt.Errorf("establish realtime connection: %w", err)
	}

	c.mu.Lock()
	c.recording = true
	recordID := c.recordID
	c.mu.Unlock()

	c.logger.Info().Str("record_id", recordID).Msg("Recording started")
	return nil
}

// Stop ends the recording: audio forwarding stops, the socket is closed
// without reconnection, and any pending snapshot is flushed so the final
// state reaches durable storage.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return
	}
	c.recording = false
	c.mu.Unlock()

	c.transport.Disconnect()
	c.throttler.Flush()
	c.logger.Info().Msg("Recording stopped")
}

// HandleFragment processes one transcription fragment from the realtime
// connection: complete sentences move from the raw buffer into the store as
// confirmed segments, the remainder becomes the visible partial text, and a
// snapshot save is scheduled.
func (c *Controller) HandleFragment(text string) {
	if text == "" {
		return
	}
	observability.RecordFragment()

	c.mu.Lock()
	c.rawBuf += text
	sentences, remainder := c.segmenter.Extract(c.rawBuf)
	c.rawBuf = remainder
	c.mu.Unlock()

	now := c.elapsed()
	for _, sentence := range sentences {
		c.store.AppendConfirmed(c.opts.LiveSpeaker, sentence, now, now)
	}
	if len(sentences) > 0 {
		observability.RecordSentencesConfirmed(len(sentences))
	}
	c.store.SetPartial(remainder)
	observability.SetTranscriptLines(c.store.Len())

	c.throttler.Trigger()
}

// HandleAudioChunk retains a captured audio chunk and forwards it upstream.
// Chunks arriving while not recording are dropped; a forward failure keeps
// the chunk cached so batch reconciliation can still cover it.
func (c *Controller) HandleAudioChunk(chunk []byte) {
	c.mu.Lock()
	recording := c.recording
	c.mu.Unlock()
	if !recording || len(chunk) == 0 {
		return
	}

	c.chunks.Append(chunk)
	observability.RecordAudioBytes("captured", len(chunk))

	if err := c.transport.SendBinary(chunk); err != nil {
		c.logger.Warn().Err(err).Int("bytes", len(chunk)).Msg("Audio chunk not forwarded")
		return
	}
	observability.RecordAudioBytes("forwarded", len(chunk))
}

// Consume pumps audio chunks from source into the pipeline until the channel
// closes or ctx is done. Capture and encoding happen outside this process;
// source is whatever feeds the captured chunks in.
func (c *Controller) Consume(ctx context.Context, source <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-source:
			if !ok {
				return
			}
			c.HandleAudioChunk(chunk)
		}
	}
}

// ClearSession wipes the transcript, the raw buffer, the cached audio, and
// the durable snapshot.
func (c *Controller) ClearSession() error {
	c.mu.Lock()
	c.rawBuf = ""
	c.mu.Unlock()

	c.store.Clear()
	c.chunks.Clear()
	observability.SetTranscriptLines(0)

	if c.gateway == nil {
		return nil
	}
	if err := c.gateway.Clear(c.opts.SessionID); err != nil {
		return fmt.Errorf("clear durable session: %w", err)
	}
	return nil
}

// RestoreFromSnapshot loads the persisted snapshot, if any, into the store
// and the audio cache. Returns true when a snapshot was restored.
func (c *Controller) RestoreFromSnapshot() (bool, error) {
	if c.gateway == nil {
		return false, nil
	}
	snap, err := c.gateway.Load(c.opts.SessionID)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}

	c.store.Restore(snap.Lines)
	c.chunks.Clear()
	if len(snap.AudioBlob) > 0 {
		c.chunks.Append(snap.AudioBlob)
	}
	observability.SetTranscriptLines(c.store.Len())

	c.logger.Info().
		Int("lines", len(snap.Lines)).
		Int("audio_bytes", len(snap.AudioBlob)).
		Time("saved_at", snap.Timestamp).
		Msg("Session restored from snapshot")
	return true, nil
}

// BatchReconcile sends the cached audio for batch re-transcription and merges
// segments past the live breakpoint into the store. Refused while recording.
// Returns the number of merged segments.
func (c *Controller) BatchReconcile(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return 0, errors.New("cannot reconcile while recording")
	}
	c.mu.Unlock()

	audioBlob := c.chunks.Concat()
	if len(audioBlob) == 0 {
		return 0, errors.New("no cached audio to reconcile")
	}

	segments, err := c.batcher.Transcribe(ctx, audioBlob)
	if err != nil {
		c.setErr(err)
		observability.RecordBatchRequest(false)
		return 0, err
	}
	observability.RecordBatchRequest(true)

	merged := reconcile.Merge(c.store, segments, c.store.Breakpoint())
	observability.SetTranscriptLines(c.store.Len())

	if merged == 0 {
		// Everything in the cache is already represented; the blob has
		// served its purpose
		c.chunks.Clear()
	} else {
		c.throttler.Trigger()
	}

	c.logger.Info().Int("merged", merged).Msg("Batch reconciliation finished")
	return merged, nil
}

// ExportText renders the confirmed transcript as plain text
func (c *Controller) ExportText() string {
	return c.store.PlainText()
}

// ExportAudio returns the captured session audio as one blob, or nil
func (c *Controller) ExportAudio() []byte {
	return c.chunks.Concat()
}

// SourceText returns the transcript text (confirmed plus partial) used as
// input for the translation, summarization, and chat streams.
func (c *Controller) SourceText() string {
	return c.store.SourceText()
}

// PartialText returns the current unconfirmed raw buffer
func (c *Controller) PartialText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rawBuf
}

// Shutdown flushes pending persistence work and releases the throttler
func (c *Controller) Shutdown() {
	c.Stop()
	c.throttler.Stop()
}

func (c *Controller) saveSnapshot() {
	if c.gateway == nil {
		return
	}

	lines := c.store.Lines()
	snap := persist.Snapshot{
		SessionID: c.opts.SessionID,
		Timestamp: time.Now(),
		Lines:     lines,
		AudioBlob: c.chunks.Concat(),
	}

	if err := c.gateway.Save(snap); err != nil {
		observability.RecordSnapshotSave(false)
		c.logger.Error().Err(err).Msg("Snapshot save failed")
		return
	}
	observability.RecordSnapshotSave(true)
	c.logger.Debug().Int("lines", len(lines)).Msg("Snapshot saved")
}

// FlushSave forces any scheduled snapshot to run now
func (c *Controller) FlushSave() {
	c.throttler.Flush()
}
