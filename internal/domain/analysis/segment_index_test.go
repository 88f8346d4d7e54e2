package analysis

import (
	"fmt"
	"testing"
)

func TestSegmentIndexAssignsGlobalIDs(t *testing.T) {
	idx := NewSegmentIndex()
	idx.Add("tr-1", 0, 1000, "raw one", "clean one")
	idx.Add("tr-1", 1000, 2000, "raw two", "clean two")
	idx.Add("tr-2", 0, 500, "raw three", "clean three")

	if idx.Len() != 3 {
		t.Fatalf("len = %d, want 3", idx.Len())
	}
	segs := idx.Segments()
	for i, s := range segs {
		want := fmt.Sprintf("seg_%d", i+1)
		if s.SymbolicID != want {
			t.Fatalf("segment %d id = %q, want %q", i, s.SymbolicID, want)
		}
	}
	// numbering continues across transcripts
	if segs[2].TranscriptID != "tr-2" {
		t.Fatalf("seg_3 transcript = %q, want tr-2", segs[2].TranscriptID)
	}
}

func TestSegmentIndexResolve(t *testing.T) {
	idx := NewSegmentIndex()
	idx.Add("tr-1", 100, 900, "raw", "clean")

	span, ok := idx.Resolve("seg_1")
	if !ok {
		t.Fatal("seg_1 should resolve")
	}
	if span.TranscriptID != "tr-1" || span.StartMs != 100 || span.EndMs != 900 {
		t.Fatalf("span = %+v, want tr-1 100..900", span)
	}

	if _, ok := idx.Resolve("seg_2"); ok {
		t.Fatal("seg_2 should not resolve")
	}
	if _, ok := idx.Resolve(""); ok {
		t.Fatal("empty id should not resolve")
	}
}
