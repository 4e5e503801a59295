package transcript

import (
	"strings"
	"sync"
	"time"
)

// DefaultSilenceThreshold is the silence gap in seconds beyond which a new
// paragraph is started for the same speaker.
const DefaultSilenceThreshold = 2.0

// Store owns the ordered transcript lines and the monotonic line id counter.
// All mutations are synchronous; a read issued after a mutation observes it.
type Store struct {
	mu               sync.RWMutex
	lines            []Line
	nextID           int
	silenceThreshold float64
	placeholder      string
	now              func() float64
}

// NewStore creates an empty store. silenceThreshold <= 0 falls back to
// DefaultSilenceThreshold; placeholder is the speaker assigned to lines
// created for partial text before any sentence is confirmed.
func NewStore(silenceThreshold float64, placeholder string) *Store {
	if silenceThreshold <= 0 {
		silenceThreshold = DefaultSilenceThreshold
	}
	if placeholder == "" {
		placeholder = "Speaker"
	}
	return &Store{
		nextID:           1,
		silenceThreshold: silenceThreshold,
		placeholder:      placeholder,
		now:              func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
}

// SetClock overrides the wall clock used for placeholder lines. Test hook.
func (s *Store) SetClock(now func() float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AppendConfirmed places one confirmed segment using the live grouping rule
// and returns the id of the line it landed on.
func (s *Store) AppendConfirmed(speaker, text string, startTime, endTime float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.place(speaker, ConfirmedSegment{Text: text, StartTime: startTime, EndTime: endTime}, false)
}

// AppendBatch places one confirmed segment using the batch grouping rule
// (backward scan for the most recent line of the same speaker) and returns
// the id of the line it landed on.
func (s *Store) AppendBatch(speaker, text string, startTime, endTime float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.place(speaker, ConfirmedSegment{Text: text, StartTime: startTime, EndTime: endTime}, true)
}

// SetPartial replaces the unconfirmed trailing text. Non-empty text lands on
// the last line, or on a fresh placeholder-speaker line when the store is
// empty. Empty (after trim) text clears the last line's partial instead;
// this is how partial text disappears once its content has been confirmed.
func (s *Store) SetPartial(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		if n := len(s.lines); n > 0 {
			s.lines[n-1].PartialText = ""
		}
		return
	}

	if n := len(s.lines); n > 0 {
		s.lines[n-1].PartialText = text
		return
	}

	s.lines = append(s.lines, Line{
		ID:                 s.nextID,
		Speaker:            s.placeholder,
		ConfirmedSegments:  []ConfirmedSegment{},
		PartialText:        text,
		LastSegmentEndTime: s.now(),
	})
	s.nextID++
}

// Clear resets the store to empty and restarts the id counter
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.nextID = 1
}

// Len returns the number of lines
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Lines returns a deep copy of the transcript, safe to hand to the
// persistence gateway or a renderer while the live pipeline keeps mutating.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Line, len(s.lines))
	for i, l := range s.lines {
		out[i] = l.clone()
	}
	return out
}

// Breakpoint returns the end time of the last confirmed segment of the last
// line, or 0 when the store holds no confirmed segments. Batch segments at or
// before this boundary are already represented by live streaming.
func (s *Store) Breakpoint() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.lines) - 1; i >= 0; i-- {
		if n := len(s.lines[i].ConfirmedSegments); n > 0 {
			return s.lines[i].ConfirmedSegments[n-1].EndTime
		}
	}
	return 0
}

// Restore replaces the store contents with a previously saved transcript and
// advances the id counter past the highest restored id.
func (s *Store) Restore(lines []Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = make([]Line, len(lines))
	maxID := 0
	for i, l := range lines {
		s.lines[i] = l.clone()
		if l.ID > maxID {
			maxID = l.ID
		}
	}
	s.nextID = maxID + 1
}

// PlainText renders the transcript as "speaker: text" paragraphs separated by
// blank lines. Partial text is excluded; only confirmed speech is exported.
func (s *Store) PlainText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parts := make([]string, 0, len(s.lines))
	for _, l := range s.lines {
		parts = append(parts, l.Speaker+": "+l.ConfirmedText())
	}
	return strings.Join(parts, "\n\n")
}

// SourceText renders confirmed plus partial text per line, newline separated.
// This is the text fed to the translation/summarization/chat streams.
func (s *Store) SourceText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parts := make([]string, 0, len(s.lines))
	for _, l := range s.lines {
		if t := l.ConfirmedText() + l.PartialText; t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
