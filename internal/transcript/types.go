// Package transcript implements incremental transcript assembly: sentence
// segmentation of streamed text fragments, paragraph grouping by speaker
// continuity and silence gaps, and the ordered line store that is the single
// source of truth for rendering and persistence.
package transcript

// ConfirmedSegment is a piece of recognized speech the backend will not
// revise further. Immutable once created. Live segments carry their arrival
// time as both start and end; batch segments carry real timestamps.
type ConfirmedSegment struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// Line is one speaker-attributed paragraph of the transcript.
// ConfirmedSegments is append-only in confirmation order; PartialText holds
// the unconfirmed trailing text and is replaced wholesale, never merged into
// the confirmed segments.
type Line struct {
	ID                 int                `json:"id"`
	Speaker            string             `json:"speaker"`
	ConfirmedSegments  []ConfirmedSegment `json:"confirmedSegments"`
	PartialText        string             `json:"partialText"`
	LastSegmentEndTime float64            `json:"lastSegmentEndTime"`
}

// ConfirmedText returns the concatenation of the line's confirmed segments
func (l Line) ConfirmedText() string {
	var out string
	for _, seg := range l.ConfirmedSegments {
		out += seg.Text
	}
	return out
}

// clone returns a deep copy of the line
func (l Line) clone() Line {
	c := l
	c.ConfirmedSegments = make([]ConfirmedSegment, len(l.ConfirmedSegments))
	copy(c.ConfirmedSegments, l.ConfirmedSegments)
	return c
}
