package store

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"chunkstore/internal/chunk"
	"chunkstore/internal/registry"
)

// trackedIDsCapacity bounds the "referenced since last call" set so a
// pathological query burst can't grow it unboundedly between two
// TakeTrackedChunkIds calls.
const trackedIDsCapacity = 4096

// chunkIDTracker records chunk ids referenced by query operations since the
// last drain, backing take_tracked_chunk_ids (§6): a manifest/prefetch layer
// polls this to learn which chunks were touched, and whether each is still
// live or has since been dropped.
type chunkIDTracker struct {
	seen *lru.Cache[chunk.ChunkID, struct{}]
}

func newChunkIDTracker() *chunkIDTracker {
	c, err := lru.New[chunk.ChunkID, struct{}](trackedIDsCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// trackedIDsCapacity never is.
		panic(err)
	}
	return &chunkIDTracker{seen: c}
}

// Track records that id was referenced by a query.
func (t *chunkIDTracker) Track(id chunk.ChunkID) {
	t.seen.Add(id, struct{}{})
}

// TrackAll records every chunk referenced by a query result.
func (t *chunkIDTracker) TrackAll(chunks []*chunk.Chunk) {
	for _, c := range chunks {
		t.Track(c.ID)
	}
}

// Take drains the tracked set, partitioning it against reg into ids that are
// still registered ("used") and ids that are not ("missing") — e.g. because
// a GC pass or compaction removed them since they were last referenced.
func (t *chunkIDTracker) Take(reg *registry.Registry) (used, missing map[chunk.ChunkID]struct{}) {
	used = make(map[chunk.ChunkID]struct{})
	missing = make(map[chunk.ChunkID]struct{})
	for _, id := range t.seen.Keys() {
		if _, ok := reg.Get(id); ok {
			used[id] = struct{}{}
		} else {
			missing[id] = struct{}{}
		}
	}
	t.seen.Purge()
	return used, missing
}
