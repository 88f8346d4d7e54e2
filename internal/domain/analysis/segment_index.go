package analysis

import "fmt"

// IndexedSegment is one entry of the request-scoped segment index.
// Raw text stays here for the lifetime of the request and is never
// re-exposed; only offsets leave through evidence resolution.
type IndexedSegment struct {
	SymbolicID   string
	TranscriptID string
	StartMs      int64
	EndMs        int64
	Text         string
	Sanitized    string
}

// SegmentIndex assigns seg_<n> IDs sequentially across the whole
// concatenation of a session's transcripts in load order. IDs are
// arena-style: valid for one request only, never persisted or reused.
type SegmentIndex struct {
	segments []IndexedSegment
	byID     map[string]int
}

func NewSegmentIndex() *SegmentIndex {
	return &SegmentIndex{byID: make(map[string]int)}
}

// Add appends a segment and assigns the next symbolic ID.
func (ix *SegmentIndex) Add(transcriptID string, startMs, endMs int64, raw, sanitized string) IndexedSegment {
	seg := IndexedSegment{
		SymbolicID:   fmt.Sprintf("seg_%d", len(ix.segments)+1),
		TranscriptID: transcriptID,
		StartMs:      startMs,
		EndMs:        endMs,
		Text:         raw,
		Sanitized:    sanitized,
	}
	ix.byID[seg.SymbolicID] = len(ix.segments)
	ix.segments = append(ix.segments, seg)
	return seg
}

func (ix *SegmentIndex) Len() int { return len(ix.segments) }

// Segments returns entries in symbolic-ID order.
func (ix *SegmentIndex) Segments() []IndexedSegment { return ix.segments }

// Resolve maps a symbolic ID to its concrete transcript span.
func (ix *SegmentIndex) Resolve(segID string) (Span, bool) {
	i, ok := ix.byID[segID]
	if !ok {
		return Span{}, false
	}
	s := ix.segments[i]
	return Span{TranscriptID: s.TranscriptID, StartMs: s.StartMs, EndMs: s.EndMs}, true
}
