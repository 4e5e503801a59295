package transcript

// place applies the paragraph grouping policy and returns the id of the line
// the segment landed on. Callers hold s.mu.
//
// The live and batch paths share the policy but differ in which line counts
// as "last": live fragments arrive strictly in order on one socket, so the
// most recent line overall is authoritative; batch results interleave
// speakers in timestamp order, so the most recent line of the *same* speaker
// is scanned for instead.
func (s *Store) place(speaker string, seg ConfirmedSegment, batch bool) int {
	target := -1
	if batch {
		target = s.lastLineOfSpeaker(speaker)
	} else if n := len(s.lines); n > 0 && s.lines[n-1].Speaker == speaker {
		target = n - 1
	}

	if target >= 0 {
		line := &s.lines[target]
		if len(line.ConfirmedSegments) > 0 {
			gap := seg.StartTime - line.LastSegmentEndTime
			if gap > s.silenceThreshold {
				target = -1
			}
		}
		if target >= 0 {
			line.ConfirmedSegments = append(line.ConfirmedSegments, seg)
			line.LastSegmentEndTime = seg.EndTime
			return line.ID
		}
	}

	// The confirmed text supersedes whatever partial was showing on the
	// previous last line; leaving it would duplicate the tail in rendered
	// and persisted output.
	if n := len(s.lines); n > 0 {
		s.lines[n-1].PartialText = ""
	}

	id := s.nextID
	s.nextID++
	s.lines = append(s.lines, Line{
		ID:                 id,
		Speaker:            speaker,
		ConfirmedSegments:  []ConfirmedSegment{seg},
		PartialText:        "",
		LastSegmentEndTime: seg.EndTime,
	})
	return id
}

// lastLineOfSpeaker scans backward for the most recent line of the given
// speaker, returning its index or -1.
func (s *Store) lastLineOfSpeaker(speaker string) int {
	for i := len(s.lines) - 1; i >= 0; i-- {
		if s.lines[i].Speaker == speaker {
			return i
		}
	}
	return -1
}
