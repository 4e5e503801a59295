package transcript

import "strings"

// DefaultTerminals is the sentence-terminal rune set observed from the
// transcription backend: full-width Chinese sentence enders.
const DefaultTerminals = "。？！"

// Segmenter extracts completed sentences from an accumulating text buffer.
// It is pure and deterministic; the terminal rune set is fixed at creation.
type Segmenter struct {
	terminals map[rune]struct{}
}

// NewSegmenter creates a segmenter for the given terminal punctuation set.
// An empty set falls back to DefaultTerminals.
func NewSegmenter(terminals string) *Segmenter {
	if terminals == "" {
		terminals = DefaultTerminals
	}
	set := make(map[rune]struct{}, len(terminals))
	for _, r := range terminals {
		set[r] = struct{}{}
	}
	return &Segmenter{terminals: set}
}

// Extract splits buffer into completed sentences and an unconsumed remainder.
// A sentence is a run of text with at least one non-terminal character,
// followed by one terminal rune; the remainder is the suffix strictly after
// the last terminal rune, or the whole buffer when no terminal is present.
// Sentences are trimmed of surrounding whitespace; pieces that trim to
// nothing but the terminal rune are dropped. The raw pieces always
// reconstruct the buffer: join(rawPieces) + remainder == buffer.
func (s *Segmenter) Extract(buffer string) (sentences []string, remainder string) {
	start := 0
	for i, r := range buffer {
		if _, ok := s.terminals[r]; !ok {
			continue
		}
		end := i + len(string(r))
		trimmed := strings.TrimSpace(buffer[start:end])
		if strings.TrimSpace(strings.TrimSuffix(trimmed, string(r))) != "" {
			sentences = append(sentences, trimmed)
		}
		start = end
	}
	return sentences, buffer[start:]
}

// HasTerminal reports whether buffer contains at least one terminal rune
func (s *Segmenter) HasTerminal(buffer string) bool {
	for _, r := range buffer {
		if _, ok := s.terminals[r]; ok {
			return true
		}
	}
	return false
}
