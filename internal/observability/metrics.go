package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Live pipeline metrics
	fragmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcribe_client_fragments_total",
		Help: "Total number of live text fragments received from the backend",
	})

	sentencesConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcribe_client_sentences_confirmed_total",
		Help: "Total number of sentences confirmed into the transcript",
	})

	transcriptLines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcribe_client_transcript_lines",
		Help: "Number of lines currently in the transcript store",
	})

	audioBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribe_client_audio_bytes_total",
		Help: "Total audio bytes handled",
	}, []string{"direction"}) // direction: "captured" or "forwarded"

	// Persistence metrics
	snapshotSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribe_client_snapshot_saves_total",
		Help: "Total number of physical snapshot writes",
	}, []string{"status"})

	// Batch reconciliation metrics
	batchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribe_client_batch_requests_total",
		Help: "Total number of batch re-transcription requests",
	}, []string{"status"})

	batchSegmentsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcribe_client_batch_segments_merged_total",
		Help: "Total number of batch segments merged past the breakpoint",
	})

	// Socket metrics
	socketState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcribe_client_socket_state",
		Help: "Transcription socket state (0=closed, 1=connecting, 2=open, 3=error)",
	})

	reconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcribe_client_reconnect_attempts_total",
		Help: "Total number of socket reconnection attempts",
	})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribe_client_frames_dropped_total",
		Help: "Frames dropped because the socket was not open",
	}, []string{"kind"}) // kind: "binary" or "text"

	// Capability stream metrics
	streamDeltas = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcribe_client_stream_deltas_total",
		Help: "Total number of text deltas consumed from capability streams",
	}, []string{"stream"})
)

// RecordFragment records one received live fragment
func RecordFragment() {
	fragmentsTotal.Inc()
}

// RecordSentencesConfirmed records sentences confirmed into the transcript
func RecordSentencesConfirmed(n int) {
	sentencesConfirmed.Add(float64(n))
}

// SetTranscriptLines updates the transcript line gauge
func SetTranscriptLines(n int) {
	transcriptLines.Set(float64(n))
}

// RecordAudioBytes records audio bytes handled in a given direction
func RecordAudioBytes(direction string, bytes int) {
	audioBytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

// RecordSnapshotSave records one physical snapshot write
func RecordSnapshotSave(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	snapshotSaves.WithLabelValues(status).Inc()
}

// RecordBatchRequest records the outcome of a batch re-transcription request
func RecordBatchRequest(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	batchRequests.WithLabelValues(status).Inc()
}

// RecordBatchSegmentsMerged records batch segments merged into the transcript
func RecordBatchSegmentsMerged(n int) {
	batchSegmentsMerged.Add(float64(n))
}

// SetSocketState updates the socket state gauge
func SetSocketState(state int) {
	socketState.Set(float64(state))
}

// RecordReconnectAttempt records one reconnection attempt
func RecordReconnectAttempt() {
	reconnectAttempts.Inc()
}

// RecordFrameDropped records a frame dropped while the socket was not open
func RecordFrameDropped(kind string) {
	framesDropped.WithLabelValues(kind).Inc()
}

// RecordStreamDelta records one text delta consumed from a capability stream
func RecordStreamDelta(stream string) {
	streamDeltas.WithLabelValues(stream).Inc()
}
