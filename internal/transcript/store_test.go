package transcript

import (
	"reflect"
	"testing"
)

func newTestStore() *Store {
	s := NewStore(2.0, "Speaker")
	s.SetClock(func() float64 { return 100.0 })
	return s
}

func TestAppendConfirmed_EmptyStore(t *testing.T) {
	s := newTestStore()

	id := s.AppendConfirmed("A", "hi", 0, 1)
	if id != 1 {
		t.Errorf("Expected line id 1, got %d", id)
	}

	lines := s.Lines()
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	if lines[0].Speaker != "A" {
		t.Errorf("Expected speaker 'A', got '%s'", lines[0].Speaker)
	}
	if len(lines[0].ConfirmedSegments) != 1 {
		t.Fatalf("Expected 1 confirmed segment, got %d", len(lines[0].ConfirmedSegments))
	}
	if lines[0].LastSegmentEndTime != 1 {
		t.Errorf("Expected lastSegmentEndTime 1, got %f", lines[0].LastSegmentEndTime)
	}
}

func TestAppendConfirmed_SilenceGapStartsNewLine(t *testing.T) {
	s := newTestStore()

	s.AppendConfirmed("A", "hi", 0, 1)
	// gap = 4 - 1 = 3 > 2.0 threshold
	s.AppendConfirmed("A", "again", 4, 5)

	if s.Len() != 2 {
		t.Fatalf("Expected 2 lines after silence gap, got %d", s.Len())
	}
	lines := s.Lines()
	if lines[1].ID != 2 {
		t.Errorf("Expected second line id 2, got %d", lines[1].ID)
	}
	if lines[1].LastSegmentEndTime != 5 {
		t.Errorf("Expected lastSegmentEndTime 5, got %f", lines[1].LastSegmentEndTime)
	}
}

func TestAppendConfirmed_WithinGapAppends(t *testing.T) {
	s := newTestStore()

	s.AppendConfirmed("A", "one", 0, 1)
	id := s.AppendConfirmed("A", "two", 2, 3)

	if id != 1 {
		t.Errorf("Expected segment to land on line 1, got %d", id)
	}
	if s.Len() != 1 {
		t.Fatalf("Expected 1 line, got %d", s.Len())
	}
	lines := s.Lines()
	if len(lines[0].ConfirmedSegments) != 2 {
		t.Errorf("Expected 2 segments, got %d", len(lines[0].ConfirmedSegments))
	}
	if lines[0].LastSegmentEndTime != 3 {
		t.Errorf("Expected lastSegmentEndTime 3, got %f", lines[0].LastSegmentEndTime)
	}
}

func TestAppendConfirmed_SpeakerChangeStartsNewLine(t *testing.T) {
	s := newTestStore()

	s.AppendConfirmed("A", "hello", 0, 1)
	s.AppendConfirmed("B", "hi", 1, 2)

	if s.Len() != 2 {
		t.Fatalf("Expected 2 lines, got %d", s.Len())
	}
	lines := s.Lines()
	if lines[0].Speaker != "A" || lines[1].Speaker != "B" {
		t.Errorf("Expected speakers A,B got %s,%s", lines[0].Speaker, lines[1].Speaker)
	}
}

func TestAppendConfirmed_LiveNeverRejoinsEarlierSpeaker(t *testing.T) {
	s := newTestStore()

	s.AppendConfirmed("A", "one", 0, 1)
	s.AppendConfirmed("B", "two", 1, 2)
	// Live placement only looks at the most recent line overall, so A gets a
	// fresh line even though line 1 belongs to A and the gap is small.
	s.AppendConfirmed("A", "three", 2, 3)

	if s.Len() != 3 {
		t.Errorf("Expected 3 lines for live interleaved speakers, got %d", s.Len())
	}
}

func TestAppendBatch_RejoinsEarlierSpeaker(t *testing.T) {
	s := newTestStore()

	s.AppendBatch("A", "one", 0, 1)
	s.AppendBatch("B", "two", 0.5, 1.5)
	// Batch placement scans backward for speaker A's line; gap 2-1=1 <= 2.0
	id := s.AppendBatch("A", "three", 2, 3)

	if id != 1 {
		t.Errorf("Expected batch segment to rejoin line 1, got line %d", id)
	}
	if s.Len() != 2 {
		t.Fatalf("Expected 2 lines, got %d", s.Len())
	}
	lines := s.Lines()
	if len(lines[0].ConfirmedSegments) != 2 {
		t.Errorf("Expected 2 segments on speaker A's line, got %d", len(lines[0].ConfirmedSegments))
	}
}

func TestAppendBatch_UnknownSpeakerStartsNewLine(t *testing.T) {
	s := newTestStore()

	s.AppendBatch("A", "one", 0, 1)
	s.AppendBatch("C", "new", 1, 2)

	if s.Len() != 2 {
		t.Fatalf("Expected 2 lines, got %d", s.Len())
	}
	if s.Lines()[1].Speaker != "C" {
		t.Errorf("Expected new line for speaker C, got '%s'", s.Lines()[1].Speaker)
	}
}

func TestGrouping_DeterministicUnderChunking(t *testing.T) {
	type in struct {
		speaker    string
		text       string
		start, end float64
	}
	seq := []in{
		{"A", "a1", 0, 1},
		{"A", "a2", 1.5, 2},
		{"B", "b1", 2, 3},
		{"B", "b2", 6, 7},
		{"A", "a3", 7, 8},
	}

	apply := func(chunks [][]in) []Line {
		s := newTestStore()
		for _, chunk := range chunks {
			for _, seg := range chunk {
				s.AppendConfirmed(seg.speaker, seg.text, seg.start, seg.end)
			}
		}
		return s.Lines()
	}

	all := apply([][]in{seq})
	oneByOne := apply([][]in{{seq[0]}, {seq[1]}, {seq[2]}, {seq[3]}, {seq[4]}})
	split := apply([][]in{seq[:2], seq[2:]})

	if !reflect.DeepEqual(all, oneByOne) {
		t.Errorf("Chunking changed the result: %+v vs %+v", all, oneByOne)
	}
	if !reflect.DeepEqual(all, split) {
		t.Errorf("Chunking changed the result: %+v vs %+v", all, split)
	}
}

func TestSetPartial_OnExistingLine(t *testing.T) {
	s := newTestStore()

	s.AppendConfirmed("A", "done", 0, 1)
	s.SetPartial("still talking")

	lines := s.Lines()
	if lines[0].PartialText != "still talking" {
		t.Errorf("Expected partial on last line, got '%s'", lines[0].PartialText)
	}
	// Partial never leaks into confirmed segments
	if len(lines[0].ConfirmedSegments) != 1 {
		t.Errorf("Expected 1 confirmed segment, got %d", len(lines[0].ConfirmedSegments))
	}
}

func TestSetPartial_EmptyStoreCreatesPlaceholderLine(t *testing.T) {
	s := newTestStore()

	s.SetPartial("early words")

	lines := s.Lines()
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	if lines[0].Speaker != "Speaker" {
		t.Errorf("Expected placeholder speaker, got '%s'", lines[0].Speaker)
	}
	if len(lines[0].ConfirmedSegments) != 0 {
		t.Errorf("Expected no confirmed segments, got %d", len(lines[0].ConfirmedSegments))
	}
	if lines[0].LastSegmentEndTime != 100.0 {
		t.Errorf("Expected creation time 100.0, got %f", lines[0].LastSegmentEndTime)
	}
}

func TestSetPartial_ClearedOnceConfirmed(t *testing.T) {
	s := newTestStore()

	s.AppendConfirmed("A", "first", 0, 1)
	s.SetPartial("trail")
	s.AppendConfirmed("A", "trail。", 1, 2)
	s.SetPartial("")

	lines := s.Lines()
	if lines[len(lines)-1].PartialText != "" {
		t.Errorf("Expected partial cleared after confirmation, got '%s'", lines[len(lines)-1].PartialText)
	}
}

func TestSetPartial_ClearedWhenConfirmationStartsNewLine(t *testing.T) {
	s := newTestStore()

	// The trailing partial completes after a silence gap, so its confirmed
	// form lands on a new line; the old line must not keep the stale partial.
	s.AppendConfirmed("Speaker", "你好。", 0, 1)
	s.SetPartial("世界正在")
	s.AppendConfirmed("Speaker", "世界正在变化。", 5, 5)

	lines := s.Lines()
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0].PartialText != "" {
		t.Errorf("Expected stale partial cleared on prior line, got '%s'", lines[0].PartialText)
	}
	if got := s.SourceText(); got != "你好。\n世界正在变化。" {
		t.Errorf("Expected source text without duplicated tail, got '%s'", got)
	}
}

func TestSetPartial_ClearedOnSpeakerChange(t *testing.T) {
	s := newTestStore()

	s.AppendConfirmed("A", "a1", 0, 1)
	s.SetPartial("tail")
	s.AppendConfirmed("B", "b1", 1.5, 2)

	lines := s.Lines()
	if lines[0].PartialText != "" {
		t.Errorf("Expected partial cleared when a new speaker line starts, got '%s'", lines[0].PartialText)
	}
}

func TestClear_ResetsLinesAndIDs(t *testing.T) {
	s := newTestStore()

	s.AppendConfirmed("A", "x", 0, 1)
	s.AppendConfirmed("B", "y", 1, 2)
	s.Clear()

	if s.Len() != 0 {
		t.Errorf("Expected empty store after clear, got %d lines", s.Len())
	}
	id := s.AppendConfirmed("A", "fresh", 0, 1)
	if id != 1 {
		t.Errorf("Expected id counter reset to 1, got %d", id)
	}
}

func TestBreakpoint(t *testing.T) {
	s := newTestStore()

	if s.Breakpoint() != 0 {
		t.Errorf("Expected breakpoint 0 for empty store, got %f", s.Breakpoint())
	}

	s.AppendConfirmed("A", "x", 0, 1)
	s.AppendConfirmed("A", "y", 1.5, 2.5)
	if s.Breakpoint() != 2.5 {
		t.Errorf("Expected breakpoint 2.5, got %f", s.Breakpoint())
	}

	// A trailing partial-only line does not move the breakpoint
	s.AppendConfirmed("B", "z", 3, 4)
	s.SetPartial("trailing")
	if s.Breakpoint() != 4 {
		t.Errorf("Expected breakpoint 4, got %f", s.Breakpoint())
	}
}

func TestRestore_RoundTripAndIDContinuity(t *testing.T) {
	s := newTestStore()
	s.AppendConfirmed("A", "x", 0, 1)
	s.AppendConfirmed("B", "y", 1, 2)
	saved := s.Lines()

	restored := newTestStore()
	restored.Restore(saved)

	if !reflect.DeepEqual(restored.Lines(), saved) {
		t.Errorf("Restore did not round-trip: %+v vs %+v", restored.Lines(), saved)
	}

	// New ids continue past the restored ones
	id := restored.AppendConfirmed("C", "z", 10, 11)
	if id != 3 {
		t.Errorf("Expected next id 3 after restoring ids 1,2, got %d", id)
	}
}

func TestPlainText(t *testing.T) {
	s := newTestStore()
	s.AppendConfirmed("A", "你好。", 0, 1)
	s.AppendConfirmed("A", "再见。", 1, 2)
	s.AppendConfirmed("B", "好的。", 2, 3)
	s.SetPartial("未完")

	want := "A: 你好。再见。\n\nB: 好的。"
	if got := s.PlainText(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestSourceText_IncludesPartial(t *testing.T) {
	s := newTestStore()
	s.AppendConfirmed("A", "你好。", 0, 1)
	s.SetPartial("未完")

	want := "你好。未完"
	if got := s.SourceText(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestLines_ReturnsDeepCopy(t *testing.T) {
	s := newTestStore()
	s.AppendConfirmed("A", "x", 0, 1)

	snapshot := s.Lines()
	snapshot[0].ConfirmedSegments[0].Text = "mutated"
	snapshot[0].PartialText = "mutated"

	fresh := s.Lines()
	if fresh[0].ConfirmedSegments[0].Text != "x" {
		t.Error("Mutating a snapshot leaked into the store")
	}
	if fresh[0].PartialText != "" {
		t.Error("Mutating a snapshot's partial leaked into the store")
	}
}
