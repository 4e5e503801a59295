// Package reconcile merges a batch re-transcription result into the live
// transcript. Segments at or before the breakpoint (the end time of the last
// confirmed live segment) are already represented from live streaming and
// are discarded; the remainder is regrouped by speaker continuity using the
// same paragraph policy as live streaming.
package reconcile

import (
	"sort"
	"strings"

	"github.com/scribelab/transcribe-client/internal/observability"
	"github.com/scribelab/transcribe-client/internal/transcript"
)

// Segment is one timestamped piece of a batch transcription result
type Segment struct {
	Text      string
	StartTime float64
	EndTime   float64
	Speaker   string
}

// Merge applies the surviving batch segments to the store in ascending
// start-time order and returns the number merged. Running Merge again with
// the same result against the updated store merges zero segments: the new
// breakpoint sits past everything merged here.
func Merge(store *transcript.Store, segments []Segment, breakpoint float64) int {
	survivors := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		// Strict inequality: a segment ending exactly at the breakpoint was
		// produced by live streaming and must not be duplicated
		if seg.StartTime <= breakpoint {
			continue
		}
		seg.Text = strings.TrimSpace(seg.Text)
		if seg.Text == "" {
			continue
		}
		survivors = append(survivors, seg)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].StartTime < survivors[j].StartTime
	})

	for _, seg := range survivors {
		store.AppendBatch(seg.Speaker, seg.Text, seg.StartTime, seg.EndTime)
	}

	observability.RecordBatchSegmentsMerged(len(survivors))
	return len(survivors)
}
