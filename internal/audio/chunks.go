// Package audio holds the in-memory buffer of captured audio chunks. Capture
// and encoding happen outside this process; the client only retains the raw
// chunks it has seen so they can be exported or re-transcribed in batch.
package audio

import "sync"

// ChunkBuffer accumulates captured audio chunks for the lifetime of a
// session. Chunks are retained regardless of save throttling; they are
// released only on explicit clear or when a brand-new recording starts.
type ChunkBuffer struct {
	mu     sync.RWMutex
	chunks [][]byte
	bytes  int
}

// NewChunkBuffer creates an empty chunk buffer
func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{}
}

// Append stores a copy of the chunk. Empty chunks are ignored.
func (b *ChunkBuffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, c)
	b.bytes += len(c)
}

// Concat returns all captured audio as a single blob, or nil when empty.
// This is the shape persisted in snapshots and sent for batch transcription.
func (b *ChunkBuffer) Concat() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.bytes == 0 {
		return nil
	}
	out := make([]byte, 0, b.bytes)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

// Len returns the number of stored chunks
func (b *ChunkBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks)
}

// Bytes returns the total number of buffered bytes
func (b *ChunkBuffer) Bytes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bytes
}

// Clear discards all stored chunks
func (b *ChunkBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.bytes = 0
}
