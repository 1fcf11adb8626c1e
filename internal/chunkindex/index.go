package chunkindex

import (
	"chunkstore/internal/chunk"
	"chunkstore/internal/entity"
)

// Index is the store's two-level chunk index (§4.2 "Two-level layout"):
//
//   - fine:   [entity][timeline][component] -> ChunkIdSetPerTime
//   - coarse: [entity][timeline]            -> ChunkIdSetPerTime (union across components)
//   - static: [entity][component]           -> at most one live ChunkID
//
// Index itself holds no lock; callers (the store façade) serialize
// mutations under their own single-writer lock (§5).
type Index struct {
	fine   map[uint64]map[string]map[chunk.ComponentDescriptor]*ChunkIDSetPerTime
	coarse map[uint64]map[string]*ChunkIDSetPerTime
	static map[uint64]map[chunk.ComponentDescriptor]chunk.ChunkID

	// paths remembers one representative entity.Path per hash so the index
	// can answer "which entities exist" without the caller re-supplying paths.
	paths map[uint64]entity.Path
}

// New returns an empty index.
func New() *Index {
	return &Index{
		fine:   make(map[uint64]map[string]map[chunk.ComponentDescriptor]*ChunkIDSetPerTime),
		coarse: make(map[uint64]map[string]*ChunkIDSetPerTime),
		static: make(map[uint64]map[chunk.ComponentDescriptor]chunk.ChunkID),
		paths:  make(map[uint64]entity.Path),
	}
}

func (ix *Index) remember(e entity.Path) {
	ix.paths[e.Hash()] = e
}

// InsertTemporal records a chunk's presence under (entity, timeline,
// component) in the fine index and under (entity, timeline) in the coarse
// index (§4.2 "Insertion").
func (ix *Index) InsertTemporal(e entity.Path, timeline string, comp chunk.ComponentDescriptor, id chunk.ChunkID, fineRange, coarseRange chunk.TimeRange) {
	ix.remember(e)
	h := e.Hash()

	byTimeline, ok := ix.fine[h]
	if !ok {
		byTimeline = make(map[string]map[chunk.ComponentDescriptor]*ChunkIDSetPerTime)
		ix.fine[h] = byTimeline
	}
	byComponent, ok := byTimeline[timeline]
	if !ok {
		byComponent = make(map[chunk.ComponentDescriptor]*ChunkIDSetPerTime)
		byTimeline[timeline] = byComponent
	}
	set, ok := byComponent[comp]
	if !ok {
		set = NewChunkIDSetPerTime()
		byComponent[comp] = set
	}
	set.Insert(id, fineRange)

	coarseByTimeline, ok := ix.coarse[h]
	if !ok {
		coarseByTimeline = make(map[string]*ChunkIDSetPerTime)
		ix.coarse[h] = coarseByTimeline
	}
	coarseSet, ok := coarseByTimeline[timeline]
	if !ok {
		coarseSet = NewChunkIDSetPerTime()
		coarseByTimeline[timeline] = coarseSet
	}
	coarseSet.Insert(id, coarseRange)
}

// RemoveTemporal reverses InsertTemporal for one (entity, timeline, component).
func (ix *Index) RemoveTemporal(e entity.Path, timeline string, comp chunk.ComponentDescriptor, id chunk.ChunkID) {
	h := e.Hash()
	if byTimeline, ok := ix.fine[h]; ok {
		if byComponent, ok := byTimeline[timeline]; ok {
			if set, ok := byComponent[comp]; ok {
				set.Remove(id)
			}
		}
	}
	if coarseByTimeline, ok := ix.coarse[h]; ok {
		if set, ok := coarseByTimeline[timeline]; ok {
			set.Remove(id)
		}
	}
}

// FineSet returns the (entity, timeline, component) index, if it exists.
func (ix *Index) FineSet(e entity.Path, timeline string, comp chunk.ComponentDescriptor) (*ChunkIDSetPerTime, bool) {
	byTimeline, ok := ix.fine[e.Hash()]
	if !ok {
		return nil, false
	}
	byComponent, ok := byTimeline[timeline]
	if !ok {
		return nil, false
	}
	set, ok := byComponent[comp]
	return set, ok
}

// CoarseSet returns the (entity, timeline) index, if it exists.
func (ix *Index) CoarseSet(e entity.Path, timeline string) (*ChunkIDSetPerTime, bool) {
	byTimeline, ok := ix.coarse[e.Hash()]
	if !ok {
		return nil, false
	}
	set, ok := byTimeline[timeline]
	return set, ok
}

// SetStatic replaces the live static chunk for (entity, component),
// returning the previous chunk id if one existed (§4.2, §4.3 "a new static
// write atomically replaces it").
func (ix *Index) SetStatic(e entity.Path, comp chunk.ComponentDescriptor, id chunk.ChunkID) (prev chunk.ChunkID, hadPrev bool) {
	ix.remember(e)
	h := e.Hash()
	byComponent, ok := ix.static[h]
	if !ok {
		byComponent = make(map[chunk.ComponentDescriptor]chunk.ChunkID)
		ix.static[h] = byComponent
	}
	prev, hadPrev = byComponent[comp]
	byComponent[comp] = id
	return prev, hadPrev
}

// ClearStatic removes the live static entry for (entity, component).
func (ix *Index) ClearStatic(e entity.Path, comp chunk.ComponentDescriptor) (chunk.ChunkID, bool) {
	h := e.Hash()
	byComponent, ok := ix.static[h]
	if !ok {
		return chunk.ChunkID{}, false
	}
	id, ok := byComponent[comp]
	if ok {
		delete(byComponent, comp)
	}
	return id, ok
}

// StaticChunkID returns the live static chunk id for (entity, component), if any.
func (ix *Index) StaticChunkID(e entity.Path, comp chunk.ComponentDescriptor) (chunk.ChunkID, bool) {
	byComponent, ok := ix.static[e.Hash()]
	if !ok {
		return chunk.ChunkID{}, false
	}
	id, ok := byComponent[comp]
	return id, ok
}

// StaticComponentsFor returns every (component -> chunk id) pair for an entity.
func (ix *Index) StaticComponentsFor(e entity.Path) map[chunk.ComponentDescriptor]chunk.ChunkID {
	byComponent, ok := ix.static[e.Hash()]
	if !ok {
		return nil
	}
	out := make(map[chunk.ComponentDescriptor]chunk.ChunkID, len(byComponent))
	for k, v := range byComponent {
		out[k] = v
	}
	return out
}

// TimelinesFor returns the set of timeline names with a coarse entry for an entity.
func (ix *Index) TimelinesFor(e entity.Path) []string {
	byTimeline, ok := ix.coarse[e.Hash()]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(byTimeline))
	for name := range byTimeline {
		out = append(out, name)
	}
	return out
}

// ComponentsFor returns every component with a fine index entry for
// (entity, timeline), used by GC's protect_latest to enumerate the
// (entity, timeline, component) triples it must inspect (§4.6).
func (ix *Index) ComponentsFor(e entity.Path, timeline string) []chunk.ComponentDescriptor {
	byTimeline, ok := ix.fine[e.Hash()]
	if !ok {
		return nil
	}
	byComponent, ok := byTimeline[timeline]
	if !ok {
		return nil
	}
	out := make([]chunk.ComponentDescriptor, 0, len(byComponent))
	for d := range byComponent {
		out = append(out, d)
	}
	return out
}

// Entities returns every entity path that currently has any index entry,
// static or temporal.
func (ix *Index) Entities() []entity.Path {
	out := make([]entity.Path, 0, len(ix.paths))
	for _, p := range ix.paths {
		out = append(out, p)
	}
	return out
}

// DropEntity removes every index entry (fine, coarse, static) for an entity
// and returns the temporal chunk ids that were present, grouped by timeline,
// plus the static chunk ids that were present (§4.4.3 "drop_entity_path").
func (ix *Index) DropEntity(e entity.Path) (temporalByTimeline map[string][]chunk.ChunkID, static []chunk.ChunkID) {
	h := e.Hash()
	temporalByTimeline = make(map[string][]chunk.ChunkID)
	if byTimeline, ok := ix.coarse[h]; ok {
		for name, set := range byTimeline {
			temporalByTimeline[name] = set.All()
		}
	}
	if byComponent, ok := ix.static[h]; ok {
		for _, id := range byComponent {
			static = append(static, id)
		}
	}
	delete(ix.fine, h)
	delete(ix.coarse, h)
	delete(ix.static, h)
	delete(ix.paths, h)
	return temporalByTimeline, static
}
