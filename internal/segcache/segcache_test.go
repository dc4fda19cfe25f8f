package segcache

import (
	"bytes"
	"testing"
)

func TestPutThenGetAlignedHits(t *testing.T) {
	c := New(10*SegmentSize, SegmentSize)
	payload := bytes.Repeat([]byte{0xAB}, SegmentSize)
	c.Put("u1", 0, payload)

	seg, ok := c.GetAligned("u1", 0)
	if !ok {
		t.Fatal("expected hit")
	}
	if !bytes.Equal(seg.Bytes, payload) {
		t.Fatal("expected exact payload back")
	}
}

func TestGetAlignedMissCountsMiss(t *testing.T) {
	c := New(10*SegmentSize, SegmentSize)
	if _, ok := c.GetAligned("u1", 0); ok {
		t.Fatal("expected miss on empty cache")
	}
	snap := c.Snapshot()
	if snap.Misses != 1 {
		t.Fatalf("expected 1 miss, got %d", snap.Misses)
	}
}

func TestFirstWriterWinsOnDuplicateKey(t *testing.T) {
	c := New(10*SegmentSize, SegmentSize)
	first := bytes.Repeat([]byte{1}, SegmentSize)
	second := bytes.Repeat([]byte{2}, SegmentSize)

	c.Put("u1", 0, first)
	c.Put("u1", 0, second)

	seg, _ := c.GetAligned("u1", 0)
	if !bytes.Equal(seg.Bytes, first) {
		t.Fatal("expected first writer's bytes to survive")
	}
}

func TestEvictsLRUDownToLowWaterMark(t *testing.T) {
	budget := int64(3 * SegmentSize)
	c := New(budget, SegmentSize)

	payload := bytes.Repeat([]byte{1}, SegmentSize)
	c.Put("u1", 0, payload)
	c.Put("u1", SegmentSize, payload)
	c.Put("u1", 2*SegmentSize, payload)

	// Touch segment 0 so it's most-recently-used, leaving segment SegmentSize
	// as the least recently used entry.
	c.GetAligned("u1", 0)

	// This insert overflows capacity (4 segments > 3*SegmentSize), forcing
	// eviction down to 0.7*cap = ~2.1 segments worth, i.e. at most 2 segments.
	c.Put("u1", 3*SegmentSize, payload)

	snap := c.Snapshot()
	if snap.SizeBytes > int64(float64(budget)*0.7)+SegmentSize {
		t.Fatalf("expected size near low-water mark, got %d", snap.SizeBytes)
	}
	if _, ok := c.GetAligned("u1", SegmentSize); ok {
		t.Fatal("expected least-recently-used segment to have been evicted")
	}
}

func TestCoalesceReturnsOverlappingAndAdjacentSegments(t *testing.T) {
	c := New(10*SegmentSize, SegmentSize)
	payload := bytes.Repeat([]byte{1}, SegmentSize)
	c.Put("u1", 0, payload)
	c.Put("u1", SegmentSize, payload)
	c.Put("u1", 5*SegmentSize, payload) // far away, should not be included

	segs := c.Coalesce("u1", 0, SegmentSize-1)
	if len(segs) != 2 {
		t.Fatalf("expected 2 contiguous segments, got %d", len(segs))
	}
	if segs[0].Start != 0 || segs[1].Start != SegmentSize {
		t.Fatalf("expected sorted ascending starts, got %d, %d", segs[0].Start, segs[1].Start)
	}
}

func TestAssembleExactCoverage(t *testing.T) {
	seg0 := &Segment{URL: "u1", Start: 0, Bytes: bytes.Repeat([]byte{1}, SegmentSize)}
	seg1 := &Segment{URL: "u1", Start: SegmentSize, Bytes: bytes.Repeat([]byte{2}, SegmentSize)}

	out, ok := Assemble([]*Segment{seg0, seg1}, 100, SegmentSize+100)
	if !ok {
		t.Fatal("expected coverage")
	}
	if len(out) != int(SegmentSize+1) {
		t.Fatalf("expected %d bytes, got %d", SegmentSize+1, len(out))
	}
	if out[0] != 1 || out[len(out)-1] != 2 {
		t.Fatal("expected assembled bytes to span both segments in order")
	}
}

func TestAssembleDetectsGap(t *testing.T) {
	seg0 := &Segment{URL: "u1", Start: 0, Bytes: bytes.Repeat([]byte{1}, SegmentSize)}
	seg2 := &Segment{URL: "u1", Start: 2 * SegmentSize, Bytes: bytes.Repeat([]byte{3}, SegmentSize)}

	_, ok := Assemble([]*Segment{seg0, seg2}, 0, 2*SegmentSize+100)
	if ok {
		t.Fatal("expected gap to be detected")
	}
}

func TestHasReportsCoverageWithinSegment(t *testing.T) {
	c := New(10*SegmentSize, SegmentSize)
	payload := bytes.Repeat([]byte{1}, SegmentSize)
	c.Put("u1", 0, payload)

	if !c.Has("u1", 10, 100) {
		t.Fatal("expected Has to report coverage")
	}
	if c.Has("u1", 10, SegmentSize+10) {
		t.Fatal("expected Has to report no coverage past segment end")
	}
}
