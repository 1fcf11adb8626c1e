// Package registry holds the store's chunk ownership tables: the only
// strong references that keep a Chunk alive, the min-row-id traversal order
// GC uses, the latest-datatype-per-component map, and compaction lineage
// (§4.3 steps 4-5, §4.6, §9 "Ownership").
package registry

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/btree"

	"chunkstore/internal/chunk"
)

type rowIDEntry struct {
	rowID   chunk.RowID
	chunkID chunk.ChunkID
}

func lessRowIDEntry(a, b rowIDEntry) bool {
	if c := a.rowID.Compare(b.rowID); c != 0 {
		return c < 0
	}
	return a.chunkID.String() < b.chunkID.String()
}

// Registry is `chunks_per_chunk_id` + `chunk_ids_per_min_row_id` +
// `type_registry` from §4.3, plus the compaction lineage table that backs
// find_root_rrd_manifests (§6, supplemented feature).
type Registry struct {
	chunks     map[chunk.ChunkID]*chunk.Chunk
	byMinRowID *btree.BTreeG[rowIDEntry]
	minRowID   map[chunk.ChunkID]chunk.RowID
	types      map[chunk.ComponentDescriptor]arrow.DataType
	lineage    map[chunk.ChunkID][]chunk.ChunkID
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		chunks:     make(map[chunk.ChunkID]*chunk.Chunk),
		byMinRowID: btree.NewG(32, lessRowIDEntry),
		minRowID:   make(map[chunk.ChunkID]chunk.RowID),
		types:      make(map[chunk.ComponentDescriptor]arrow.DataType),
		lineage:    make(map[chunk.ChunkID][]chunk.ChunkID),
	}
}

// Register records c as alive, indexes it by its minimum row id (§4.3 step
// 4), and updates the type registry with the latest Arrow datatype seen per
// component (§4.3 step 5, "latest writer wins").
func (r *Registry) Register(c *chunk.Chunk) {
	r.chunks[c.ID] = c
	if lo, _, ok := c.RowIDRange(); ok {
		r.minRowID[c.ID] = lo
		r.byMinRowID.ReplaceOrInsert(rowIDEntry{rowID: lo, chunkID: c.ID})
	}
	for desc, arr := range c.Components {
		r.types[desc] = arr.DataType()
	}
}

// Unregister removes c from the ownership tables. The type registry is left
// untouched: it tracks the latest datatype ever seen per component, not
// which chunks are currently live. Compaction lineage is kept as well, so a
// lineage walk can pass through intermediate merge outputs that have since
// been compacted away.
func (r *Registry) Unregister(id chunk.ChunkID) {
	delete(r.chunks, id)
	if lo, ok := r.minRowID[id]; ok {
		r.byMinRowID.Delete(rowIDEntry{rowID: lo, chunkID: id})
		delete(r.minRowID, id)
	}
}

// Get returns a live chunk by id.
func (r *Registry) Get(id chunk.ChunkID) (*chunk.Chunk, bool) {
	c, ok := r.chunks[id]
	return c, ok
}

// Len returns the number of live chunks.
func (r *Registry) Len() int { return len(r.chunks) }

// AscendingByMinRowID returns every live chunk id in ascending order of its
// minimum row id — the "global chronological data order" GC walks (§4.6).
func (r *Registry) AscendingByMinRowID() []chunk.ChunkID {
	out := make([]chunk.ChunkID, 0, len(r.minRowID))
	r.byMinRowID.Ascend(func(e rowIDEntry) bool {
		out = append(out, e.chunkID)
		return true
	})
	return out
}

// LookupDatatype returns the latest Arrow datatype observed for a component
// (§6 "lookup_datatype").
func (r *Registry) LookupDatatype(desc chunk.ComponentDescriptor) (arrow.DataType, bool) {
	dt, ok := r.types[desc]
	return dt, ok
}

// IterChunks returns every live chunk (§6 "iter_chunks"). Order is
// unspecified.
func (r *Registry) IterChunks() []*chunk.Chunk {
	out := make([]*chunk.Chunk, 0, len(r.chunks))
	for _, c := range r.chunks {
		out = append(out, c)
	}
	return out
}

// RecordCompaction records that merged was produced by compacting sources
// together, for later lineage walks.
func (r *Registry) RecordCompaction(merged chunk.ChunkID, sources ...chunk.ChunkID) {
	r.lineage[merged] = append(append([]chunk.ChunkID(nil), sources...))
}

// FindRootRRDManifests walks the compaction lineage graph backward from id
// to the set of chunks that were never themselves a compaction output,
// pairing each root with id itself (§6, supplemented feature: gives a
// manifest/prefetch layer a way to map a live chunk id back to the original
// ids a remote manifest might still reference).
func (r *Registry) FindRootRRDManifests(id chunk.ChunkID) [][2]chunk.ChunkID {
	var roots []chunk.ChunkID
	visited := map[chunk.ChunkID]struct{}{}
	var walk func(chunk.ChunkID)
	walk = func(cur chunk.ChunkID) {
		if _, ok := visited[cur]; ok {
			return
		}
		visited[cur] = struct{}{}
		sources, ok := r.lineage[cur]
		if !ok || len(sources) == 0 {
			roots = append(roots, cur)
			return
		}
		for _, s := range sources {
			walk(s)
		}
	}
	walk(id)

	out := make([][2]chunk.ChunkID, 0, len(roots))
	for _, root := range roots {
		out = append(out, [2]chunk.ChunkID{root, id})
	}
	return out
}
