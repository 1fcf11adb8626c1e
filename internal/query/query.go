// Package query implements the read side of the store: latest_at and range
// (§4.4.1, §4.4.2), built on top of the chunk index and chunk registry.
package query

import (
	"sort"

	"chunkstore/internal/chunk"
	"chunkstore/internal/chunkindex"
	"chunkstore/internal/entity"
	"chunkstore/internal/registry"
)

// Engine answers latest_at and range queries. It holds no state of its own
// beyond its collaborators and performs no mutation, so it is safe to call
// concurrently with other readers (§5 "multi-reader").
type Engine struct {
	index *chunkindex.Index
	reg   *registry.Registry
}

// New returns an Engine reading from the given index and registry.
func New(index *chunkindex.Index, reg *registry.Registry) *Engine {
	return &Engine{index: index, reg: reg}
}

// Unit is one matched row, named in the query engine's own vocabulary
// rather than the chunk's: the (entity, component) answer to a point query.
type Unit struct {
	// Static is true when the match came from a static chunk (§4.4.1 step 1).
	Static bool
	Time   int64
	RowID  chunk.RowID
	Chunk  *chunk.Chunk
	Row    int
}

// LatestAt answers one component of §4.4.1. ok is false when there is no
// covering row at all (missing entity, missing component, or no row with
// time <= t).
func (e *Engine) LatestAt(ent entity.Path, timeline string, t int64, comp chunk.ComponentDescriptor) (Unit, bool) {
	if staticID, ok := e.index.StaticChunkID(ent, comp); ok {
		if c, ok := e.reg.Get(staticID); ok {
			if row, ok := lastNonNullRow(c, comp); ok {
				return Unit{Static: true, Chunk: c, Row: row, RowID: c.RowIDs[row]}, true
			}
		}
	}

	set, ok := e.index.FineSet(ent, timeline, comp)
	if !ok {
		return Unit{}, false
	}

	// Every chunk in the set is considered, not only those whose range covers
	// t: a chunk whose range ends before t can still hold the latest row at or
	// before t. latestRowAtOrBefore rejects chunks with no such row.
	var best Unit
	found := false
	for _, id := range set.All() {
		c, ok := e.reg.Get(id)
		if !ok {
			continue
		}
		row, rowTime, ok := latestRowAtOrBefore(c, timeline, comp, t)
		if !ok {
			continue
		}
		candidate := Unit{Chunk: c, Row: row, Time: rowTime, RowID: c.RowIDs[row]}
		if !found || isMoreCurrent(candidate, best) {
			best = candidate
			found = true
		}
	}
	return best, found
}

// isMoreCurrent reports whether a is the winning candidate over b, per the
// §4.4.1 tie-break: greatest (time, row_id).
func isMoreCurrent(a, b Unit) bool {
	if a.Time != b.Time {
		return a.Time > b.Time
	}
	return b.RowID.Less(a.RowID)
}

// latestRowAtOrBefore finds the row with the greatest (time, row_id) such
// that time <= t and the component is non-null, within one chunk. Uses a
// binary search over the time column when the chunk is sorted on timeline,
// a linear scan otherwise (§4.4.1 step 3).
func latestRowAtOrBefore(c *chunk.Chunk, timeline string, comp chunk.ComponentDescriptor, t int64) (row int, rowTime int64, ok bool) {
	tc, hasTimeline := c.Timelines[timeline]
	arr, hasComp := c.ComponentArray(comp)
	if !hasTimeline || !hasComp {
		return 0, 0, false
	}

	candidateRows := rowsAtOrBefore(tc, t)
	best := -1
	for _, r := range candidateRows {
		if arr.IsNull(r) {
			continue
		}
		if best == -1 {
			best = r
			continue
		}
		if tc.Times[r] != tc.Times[best] {
			if tc.Times[r] > tc.Times[best] {
				best = r
			}
			continue
		}
		if c.RowIDs[best].Less(c.RowIDs[r]) {
			best = r
		}
	}
	if best == -1 {
		return 0, 0, false
	}
	return best, tc.Times[best], true
}

// rowsAtOrBefore returns the row indices with time <= t. When the column is
// sorted this is a prefix found via binary search; otherwise every
// qualifying row is returned via linear scan.
func rowsAtOrBefore(tc chunk.TimeColumn, t int64) []int {
	if !tc.Sorted {
		var out []int
		for i, tm := range tc.Times {
			if tm <= t {
				out = append(out, i)
			}
		}
		return out
	}
	n := len(tc.Times)
	idx := sort.Search(n, func(i int) bool { return tc.Times[i] > t })
	out := make([]int, idx)
	for i := range out {
		out[i] = i
	}
	return out
}

func lastNonNullRow(c *chunk.Chunk, comp chunk.ComponentDescriptor) (int, bool) {
	arr, ok := c.ComponentArray(comp)
	if !ok {
		return 0, false
	}
	for i := c.NumRows() - 1; i >= 0; i-- {
		if !arr.IsNull(i) {
			return i, true
		}
	}
	return 0, false
}

// RangeResult is one chunk selected by a range query, alongside whether it
// is the entity's static chunk for the component (static chunks carry no
// timeline of their own, §4.4.2 step 4).
type RangeResult struct {
	Chunk  *chunk.Chunk
	Static bool
}

// Range answers §4.4.2: every chunk (static first, then temporal ascending
// by effective start) that may contribute a row to [lo,hi] for comp.
func (e *Engine) Range(ent entity.Path, timeline string, lo, hi int64, comp chunk.ComponentDescriptor) []RangeResult {
	var out []RangeResult

	if staticID, ok := e.index.StaticChunkID(ent, comp); ok {
		if c, ok := e.reg.Get(staticID); ok {
			out = append(out, RangeResult{Chunk: c, Static: true})
		}
	}

	set, ok := e.index.FineSet(ent, timeline, comp)
	if !ok {
		return out
	}

	ids := set.CandidatesOverlapping(lo, hi)
	type withStart struct {
		id    chunk.ChunkID
		start int64
	}
	withStarts := make([]withStart, 0, len(ids))
	for _, id := range ids {
		r, ok := set.Range(id)
		if !ok {
			continue
		}
		withStarts = append(withStarts, withStart{id: id, start: r.Min})
	}
	sort.Slice(withStarts, func(i, j int) bool { return withStarts[i].start < withStarts[j].start })

	for _, w := range withStarts {
		if c, ok := e.reg.Get(w.id); ok {
			out = append(out, RangeResult{Chunk: c})
		}
	}
	return out
}
