// Package chunkindex implements the two-level chunk index (§4.2): for a
// given (entity, timeline[, component]) key, a sorted-by-time set of chunk
// ids that may cover a queried point or interval.
package chunkindex

import (
	"github.com/google/btree"

	"chunkstore/internal/chunk"
)

// timeBucket groups every chunk id that shares one boundary time, so the
// tree has one node per distinct time rather than one per chunk.
type timeBucket struct {
	time int64
	ids  map[chunk.ChunkID]struct{}
}

func lessBucket(a, b timeBucket) bool { return a.time < b.time }

// ChunkIDSetPerTime is one `per_start_time`/`per_end_time` pair plus the
// `max_interval_length` bound described in §4.2. The two trees are kept in
// sync: every chunk id present in one is present in the other, under its
// start and end time respectively.
type ChunkIDSetPerTime struct {
	perStart          *btree.BTreeG[timeBucket]
	perEnd            *btree.BTreeG[timeBucket]
	ranges            map[chunk.ChunkID]chunk.TimeRange
	maxIntervalLength int64
}

// NewChunkIDSetPerTime returns an empty set.
func NewChunkIDSetPerTime() *ChunkIDSetPerTime {
	return &ChunkIDSetPerTime{
		perStart: btree.NewG(32, lessBucket),
		perEnd:   btree.NewG(32, lessBucket),
		ranges:   make(map[chunk.ChunkID]chunk.TimeRange),
	}
}

func addToBucket(tree *btree.BTreeG[timeBucket], t int64, id chunk.ChunkID) {
	item, ok := tree.Get(timeBucket{time: t})
	if !ok {
		item = timeBucket{time: t, ids: make(map[chunk.ChunkID]struct{}, 1)}
	}
	item.ids[id] = struct{}{}
	tree.ReplaceOrInsert(item)
}

func removeFromBucket(tree *btree.BTreeG[timeBucket], t int64, id chunk.ChunkID) {
	item, ok := tree.Get(timeBucket{time: t})
	if !ok {
		return
	}
	delete(item.ids, id)
	if len(item.ids) == 0 {
		tree.Delete(item)
	} else {
		tree.ReplaceOrInsert(item)
	}
}

// Insert adds id with its effective time range on this key. Updates
// max_interval_length (§4.2 "Insertion").
func (s *ChunkIDSetPerTime) Insert(id chunk.ChunkID, r chunk.TimeRange) {
	if r.IsEmpty() {
		return
	}
	s.ranges[id] = r
	addToBucket(s.perStart, r.Min, id)
	addToBucket(s.perEnd, r.Max, id)
	if l := r.Max - r.Min; l > s.maxIntervalLength {
		s.maxIntervalLength = l
	}
}

// Remove reverses Insert. max_interval_length is left as-is: it becomes a
// stale upper bound, which §4.2 explicitly allows ("Deletion ... may become
// stale (upper bound only); this is acceptable").
func (s *ChunkIDSetPerTime) Remove(id chunk.ChunkID) {
	r, ok := s.ranges[id]
	if !ok {
		return
	}
	delete(s.ranges, id)
	removeFromBucket(s.perStart, r.Min, id)
	removeFromBucket(s.perEnd, r.Max, id)
}

// Len returns the number of distinct chunk ids currently tracked.
func (s *ChunkIDSetPerTime) Len() int { return len(s.ranges) }

// Range returns the range a chunk id was inserted with, if present.
func (s *ChunkIDSetPerTime) Range(id chunk.ChunkID) (chunk.TimeRange, bool) {
	r, ok := s.ranges[id]
	return r, ok
}

// CandidatesCovering returns every chunk id whose range covers time t,
// found by walking per_start_time backward from t bounded by
// max_interval_length, then checking each candidate's remembered end
// (§4.2 "Rationale for storing start and end").
func (s *ChunkIDSetPerTime) CandidatesCovering(t int64) []chunk.ChunkID {
	lowerBound := t - s.maxIntervalLength
	var out []chunk.ChunkID
	s.perStart.DescendRange(timeBucket{time: t}, timeBucket{time: lowerBound - 1}, func(item timeBucket) bool {
		for id := range item.ids {
			if r, ok := s.ranges[id]; ok && r.Max >= t {
				out = append(out, id)
			}
		}
		return true
	})
	return out
}

// CandidatesOverlapping returns every chunk id whose range overlaps
// [lo, hi], used by range queries (§4.4.2).
func (s *ChunkIDSetPerTime) CandidatesOverlapping(lo, hi int64) []chunk.ChunkID {
	lowerBound := lo - s.maxIntervalLength
	var out []chunk.ChunkID
	seen := make(map[chunk.ChunkID]struct{})
	s.perStart.AscendRange(timeBucket{time: lowerBound}, timeBucket{time: hi + 1}, func(item timeBucket) bool {
		for id := range item.ids {
			if _, dup := seen[id]; dup {
				continue
			}
			if r, ok := s.ranges[id]; ok && r.Max >= lo {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
		return true
	})
	return out
}

// All returns every chunk id tracked by this set, in ascending start-time
// order — used by drop_entity_path (§4.4.3) and GC traversal helpers.
func (s *ChunkIDSetPerTime) All() []chunk.ChunkID {
	out := make([]chunk.ChunkID, 0, len(s.ranges))
	s.perStart.Ascend(func(item timeBucket) bool {
		for id := range item.ids {
			out = append(out, id)
		}
		return true
	})
	return out
}

// DescendingByEnd returns every chunk id tracked by this set, in descending
// end-time order — used by protect_latest to walk from the newest data
// backward until enough rows are covered (§4.6).
func (s *ChunkIDSetPerTime) DescendingByEnd() []chunk.ChunkID {
	out := make([]chunk.ChunkID, 0, len(s.ranges))
	s.perEnd.Descend(func(item timeBucket) bool {
		for id := range item.ids {
			out = append(out, id)
		}
		return true
	})
	return out
}

// MaxIntervalLength exposes the current (possibly stale) bound, mostly for tests.
func (s *ChunkIDSetPerTime) MaxIntervalLength() int64 { return s.maxIntervalLength }
