package chunkindex

import (
	"testing"

	"chunkstore/internal/chunk"
)

func idN(t *testing.T) chunk.ChunkID {
	t.Helper()
	return chunk.NewChunkID()
}

func TestInsertAndCandidatesCovering(t *testing.T) {
	s := NewChunkIDSetPerTime()
	a, b, c := idN(t), idN(t), idN(t)
	s.Insert(a, chunk.TimeRange{Min: 1, Max: 5})
	s.Insert(b, chunk.TimeRange{Min: 10, Max: 20})
	s.Insert(c, chunk.TimeRange{Min: 4, Max: 12})

	got := toSet(s.CandidatesCovering(4))
	if !got[a] || !got[c] || got[b] {
		t.Fatalf("CandidatesCovering(4) = %v, want {a,c}", got)
	}

	got = toSet(s.CandidatesCovering(15))
	if !got[b] || got[a] || got[c] {
		t.Fatalf("CandidatesCovering(15) = %v, want {b}", got)
	}
}

func TestRemoveDropsCandidate(t *testing.T) {
	s := NewChunkIDSetPerTime()
	a := idN(t)
	s.Insert(a, chunk.TimeRange{Min: 1, Max: 5})
	s.Remove(a)
	if got := s.CandidatesCovering(3); len(got) != 0 {
		t.Fatalf("expected no candidates after Remove, got %v", got)
	}
	if s.Len() != 0 {
		t.Fatalf("expected Len()==0, got %d", s.Len())
	}
}

func TestCandidatesOverlapping(t *testing.T) {
	s := NewChunkIDSetPerTime()
	a, b := idN(t), idN(t)
	s.Insert(a, chunk.TimeRange{Min: 1, Max: 100})
	s.Insert(b, chunk.TimeRange{Min: 101, Max: 200})

	got := toSet(s.CandidatesOverlapping(50, 150))
	if !got[a] || !got[b] {
		t.Fatalf("expected both chunks to overlap [50,150], got %v", got)
	}

	got = toSet(s.CandidatesOverlapping(300, 400))
	if len(got) != 0 {
		t.Fatalf("expected no overlap, got %v", got)
	}
}

func TestAllReturnsEveryTrackedID(t *testing.T) {
	s := NewChunkIDSetPerTime()
	a, b := idN(t), idN(t)
	s.Insert(a, chunk.TimeRange{Min: 1, Max: 2})
	s.Insert(b, chunk.TimeRange{Min: 3, Max: 4})
	got := toSet(s.All())
	if !got[a] || !got[b] || len(got) != 2 {
		t.Fatalf("got %v, want {a,b}", got)
	}
}

func TestDescendingByEndOrdersNewestFirst(t *testing.T) {
	s := NewChunkIDSetPerTime()
	a, b, c := idN(t), idN(t), idN(t)
	s.Insert(a, chunk.TimeRange{Min: 1, Max: 5})
	s.Insert(b, chunk.TimeRange{Min: 10, Max: 20})
	s.Insert(c, chunk.TimeRange{Min: 4, Max: 12})

	order := s.DescendingByEnd()
	if len(order) != 3 || order[0] != b || order[2] != a {
		t.Fatalf("got %v, want newest-end-first starting with b and ending with a", order)
	}
}

func toSet(ids []chunk.ChunkID) map[chunk.ChunkID]bool {
	out := make(map[chunk.ChunkID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
