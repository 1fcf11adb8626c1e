// Package chunk defines the immutable column-batch storage unit of the
// store and the invariants it must satisfy (spec §3, §4.1).
package chunk

import (
	"errors"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"

	"chunkstore/internal/entity"
)

var (
	// ErrMalformed wraps a violation of one of the §3 core invariants.
	ErrMalformed = errors.New("chunk: malformed")
	// ErrDuplicateComponent is returned when a builder sees the same
	// descriptor twice for one chunk (invariant 5).
	ErrDuplicateComponent = errors.New("chunk: duplicate component descriptor")
	// ErrRowCountMismatch is returned when a column's length does not match
	// the chunk's row count (invariant 1).
	ErrRowCountMismatch = errors.New("chunk: row count mismatch")
	// ErrStaticHasTimelines is returned when a static chunk is built with a
	// non-empty timeline set (invariant 6).
	ErrStaticHasTimelines = errors.New("chunk: static chunk must not carry timelines")
)

// ComponentDescriptor names one component column. A real deployment would
// also carry an owning archetype name; the store only needs Name for
// identity, lookup, and the type registry (§4.3 "type_registry").
type ComponentDescriptor struct {
	Name string
}

// Chunk is an immutable column batch for one entity over a set of rows
// (§3 "Chunk"). Once constructed it is never mutated: a changed version is a
// new Chunk built with Assemble (as compaction does when it merges two
// chunks).
type Chunk struct {
	ID         ChunkID
	EntityPath entity.Path
	RowIDs     []RowID
	Timelines  map[string]TimeColumn
	Components map[ComponentDescriptor]arrow.Array

	// IsSorted conservatively tracks whether row ids and every time column
	// are jointly sorted (§3 "sorted"). A chunk may be sorted on some
	// timelines and not others; IsSorted is true only if every TimeColumn's
	// own Sorted flag is true AND RowIDs themselves are non-decreasing
	// within ties on each sorted timeline.
	IsSorted bool

	heapSizeBytes int64
	heapSizeValid bool
}

// NumRows returns the chunk's row count.
func (c *Chunk) NumRows() int { return len(c.RowIDs) }

// IsStatic reports whether the chunk carries no timelines (§3 "Static vs
// temporal").
func (c *Chunk) IsStatic() bool { return len(c.Timelines) == 0 }

// RowIDRange returns the closed [min,max] RowID range of the chunk, and
// false if the chunk has no rows.
func (c *Chunk) RowIDRange() (lo, hi RowID, ok bool) {
	if len(c.RowIDs) == 0 {
		return RowID{}, RowID{}, false
	}
	lo, hi = c.RowIDs[0], c.RowIDs[0]
	for _, id := range c.RowIDs[1:] {
		if id.Less(lo) {
			lo = id
		}
		if hi.Less(id) {
			hi = id
		}
	}
	return lo, hi, true
}

// TimeRange returns the chunk's time range on the named timeline. Static
// chunks return Unbounded for any timeline name (§4.1 edge cases).
func (c *Chunk) TimeRange(timeline string) TimeRange {
	if c.IsStatic() {
		return Unbounded()
	}
	tc, ok := c.Timelines[timeline]
	if !ok {
		return EmptyRange()
	}
	return tc.Range()
}

// HasComponent reports whether the chunk carries the named component.
func (c *Chunk) HasComponent(d ComponentDescriptor) bool {
	_, ok := c.Components[d]
	return ok
}

// ComponentArray returns the Arrow array backing a component column.
func (c *Chunk) ComponentArray(d ComponentDescriptor) (arrow.Array, bool) {
	a, ok := c.Components[d]
	return a, ok
}

// ComponentTimeRange returns the time range on timeline restricted to rows
// where component is non-null (§4.1 "per-(component) time range"). Per §9's
// open question, an implementation may use the chunk's global range as a
// conservative upper bound; this one tracks the tighter, exact bound since
// Arrow's null bitmap makes that cheap in the same pass.
func (c *Chunk) ComponentTimeRange(timeline string, d ComponentDescriptor) TimeRange {
	if c.IsStatic() {
		return Unbounded()
	}
	tc, ok := c.Timelines[timeline]
	if !ok {
		return EmptyRange()
	}
	arr, ok := c.Components[d]
	if !ok {
		return EmptyRange()
	}
	first := true
	var lo, hi int64
	for i := 0; i < c.NumRows(); i++ {
		if arr.IsNull(i) {
			continue
		}
		t := tc.Times[i]
		if first {
			lo, hi = t, t
			first = false
			continue
		}
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
	}
	if first {
		return EmptyRange()
	}
	return TimeRange{Min: lo, Max: hi}
}

// Validate checks the chunk against the §3 core invariants that a single
// chunk (as opposed to the whole store) can verify on its own: invariants
// 1 and 4. Invariants 5 and 6 hold by the Chunk's shape (Components is a map
// keyed by descriptor; IsStatic means "no timelines"), so the static check
// below never fails. Invariant 2 (global RowID uniqueness) is enforced by
// construction (the monotone id source) plus a store-level check;
// invariant 3 (ties broken by row_id) is a query-time contract, not a
// structural one; invariant 7 (immutability) is enforced by convention (no
// exported mutators).
func (c *Chunk) Validate() error {
	n := c.NumRows()
	if len(c.RowIDs) != n {
		return fmt.Errorf("%w: row_ids has %d entries, want %d", ErrRowCountMismatch, len(c.RowIDs), n)
	}
	for name, tc := range c.Timelines {
		if len(tc.Times) != n {
			return fmt.Errorf("%w: timeline %q has %d times, want %d", ErrRowCountMismatch, name, len(tc.Times), n)
		}
		if len(tc.Times) > 0 {
			actualMin, actualMax := tc.Times[0], tc.Times[0]
			for _, t := range tc.Times {
				if t < actualMin {
					actualMin = t
				}
				if t > actualMax {
					actualMax = t
				}
			}
			if actualMin != tc.Min || actualMax != tc.Max {
				return fmt.Errorf("%w: timeline %q declared [%d,%d], actual [%d,%d]",
					ErrMalformed, name, tc.Min, tc.Max, actualMin, actualMax)
			}
		}
	}
	for d, arr := range c.Components {
		if arr.Len() != n {
			return fmt.Errorf("%w: component %q has %d rows, want %d", ErrRowCountMismatch, d.Name, arr.Len(), n)
		}
	}
	if c.IsStatic() && len(c.Timelines) != 0 {
		return ErrStaticHasTimelines
	}
	return nil
}

// Assemble builds a Chunk directly from already-columnar data: used by
// Builder.Finish and by compaction, which concatenates two chunks' columns
// without going through the row-at-a-time Builder API.
func Assemble(id ChunkID, entityPath entity.Path, rowIDs []RowID, timelines map[string]TimeColumn, components map[ComponentDescriptor]arrow.Array) (*Chunk, error) {
	c := &Chunk{
		ID:         id,
		EntityPath: entityPath,
		RowIDs:     rowIDs,
		Timelines:  timelines,
		Components: components,
	}
	c.IsSorted = computeIsSorted(c.RowIDs, c.Timelines)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// HeapSizeBytes returns the chunk's approximate in-memory footprint,
// memoized after the first call (§3 "heap_size_bytes: memoized"). Chunks
// are immutable once constructed, so the memoized value never goes stale.
func (c *Chunk) HeapSizeBytes() int64 {
	if c.heapSizeValid {
		return c.heapSizeBytes
	}
	var total int64
	total += int64(len(c.RowIDs) * 16)
	for _, tc := range c.Timelines {
		total += int64(len(tc.Times) * 8)
	}
	for _, arr := range c.Components {
		for _, buf := range arr.Data().Buffers() {
			if buf != nil {
				total += int64(buf.Len())
			}
		}
	}
	c.heapSizeBytes = total
	c.heapSizeValid = true
	return total
}

// computeIsSorted derives the chunk-level IsSorted flag: true iff every
// time column is individually sorted (its own Sorted flag) and, for rows
// sharing the same time on every sorted timeline, RowIDs are non-decreasing
// (§3 "sorted").
func computeIsSorted(rowIDs []RowID, timelines map[string]TimeColumn) bool {
	for _, tc := range timelines {
		if !tc.Sorted {
			return false
		}
	}
	for i := 1; i < len(rowIDs); i++ {
		tie := true
		for _, tc := range timelines {
			if tc.Times[i-1] != tc.Times[i] {
				tie = false
				break
			}
		}
		if tie && rowIDs[i].Less(rowIDs[i-1]) {
			return false
		}
	}
	return true
}

// SortedIndices returns a permutation that would put the chunk into
// canonical order: primary key the chunk's timelines (in a stable,
// deterministic name order), secondary key RowID ascending. Static chunks
// (no timelines) sort by RowID alone.
func (c *Chunk) SortedIndices() []int {
	n := c.NumRows()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	names := make([]string, 0, len(c.Timelines))
	for name := range c.Timelines {
		names = append(names, name)
	}
	sort.Strings(names)

	sort.SliceStable(idx, func(i, j int) bool {
		a, b := idx[i], idx[j]
		for _, name := range names {
			tc := c.Timelines[name]
			if tc.Times[a] != tc.Times[b] {
				return tc.Times[a] < tc.Times[b]
			}
		}
		return c.RowIDs[a].Less(c.RowIDs[b])
	})
	return idx
}
