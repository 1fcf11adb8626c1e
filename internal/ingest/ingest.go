// Package ingest implements insert_chunk's validate -> route -> compact ->
// index -> register -> emit pipeline and drop_entity_path (§4.3, §4.4.3).
package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"chunkstore/internal/chunk"
	"chunkstore/internal/chunkindex"
	"chunkstore/internal/config"
	"chunkstore/internal/entity"
	"chunkstore/internal/eventbus"
	"chunkstore/internal/registry"
)

// Engine runs the ingestion pipeline against a store's shared index,
// registry, and event bus. It is not safe for concurrent use; the caller
// (the store façade) serializes mutating calls under its own lock (§5).
type Engine struct {
	mem   memory.Allocator
	index *chunkindex.Index
	reg   *registry.Registry
	bus   *eventbus.Bus
	cfg   config.StoreConfig

	// openCompactions remembers, per (entity, timeline-set, component-set)
	// signature, the most recently ingested chunk that is still under the
	// size/row thresholds and so remains a candidate for the next adjacent
	// insert to merge into (§4.3 "Attempt compaction").
	openCompactions map[string]chunk.ChunkID
}

// New returns an Engine wired to the given collaborators.
func New(mem memory.Allocator, index *chunkindex.Index, reg *registry.Registry, bus *eventbus.Bus, cfg config.StoreConfig) *Engine {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Engine{
		mem:             mem,
		index:           index,
		reg:             reg,
		bus:             bus,
		cfg:             cfg,
		openCompactions: make(map[string]chunk.ChunkID),
	}
}

// SetConfig updates the thresholds used by future inserts.
func (e *Engine) SetConfig(cfg config.StoreConfig) { e.cfg = cfg }

func signature(c *chunk.Chunk) string {
	var sb strings.Builder
	sb.WriteString(c.EntityPath.String())
	sb.WriteByte('|')

	timelines := make([]string, 0, len(c.Timelines))
	for name := range c.Timelines {
		timelines = append(timelines, name)
	}
	sort.Strings(timelines)
	sb.WriteString(strings.Join(timelines, ","))
	sb.WriteByte('|')

	comps := make([]string, 0, len(c.Components))
	for d := range c.Components {
		comps = append(comps, d.Name)
	}
	sort.Strings(comps)
	sb.WriteString(strings.Join(comps, ","))
	return sb.String()
}

// InsertChunk implements §4.3 steps 1-6.
func (e *Engine) InsertChunk(c *chunk.Chunk) ([]eventbus.Event, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.IsStatic() {
		return e.insertStatic(c), nil
	}
	return e.insertTemporal(c), nil
}

func (e *Engine) insertStatic(c *chunk.Chunk) []eventbus.Event {
	replaced := map[chunk.ChunkID]struct{}{}
	for desc := range c.Components {
		if prev, had := e.index.SetStatic(c.EntityPath, desc, c.ID); had {
			replaced[prev] = struct{}{}
		}
	}

	var events []eventbus.Event
	for prev := range replaced {
		if prevChunk, ok := e.reg.Get(prev); ok {
			if e.cfg.EnableChangelog {
				events = append(events, e.deletionEvent(prevChunk))
			}
			e.reg.Unregister(prev)
		}
	}

	e.reg.Register(c)
	if e.cfg.EnableChangelog {
		events = append(events, e.additionEvent(c))
	}
	return events
}

func (e *Engine) insertTemporal(c *chunk.Chunk) []eventbus.Event {
	var events []eventbus.Event
	result := c

	if !e.cfg.CompactionDisabled() {
		sig := signature(c)
		if candidateID, ok := e.openCompactions[sig]; ok {
			if candidate, ok := e.reg.Get(candidateID); ok && e.mergeFeasible(candidate, c) {
				merged, err := e.mergeChunks(candidate, c)
				if err == nil {
					e.removeTemporalFromIndex(candidate)
					e.reg.Unregister(candidate.ID)
					if e.cfg.EnableChangelog {
						events = append(events, e.deletionEvent(candidate))
					}
					e.reg.RecordCompaction(merged.ID, candidate.ID, c.ID)
					result = merged
				}
			}
		}
	}

	e.indexTemporal(result)
	e.reg.Register(result)
	if e.cfg.EnableChangelog {
		events = append(events, e.additionEvent(result))
	}

	sig := signature(result)
	if !e.cfg.CompactionDisabled() && e.withinCompactionBudget(result) {
		e.openCompactions[sig] = result.ID
	} else {
		delete(e.openCompactions, sig)
	}
	return events
}

// mergeFeasible checks the §4.3 threshold table against the rows/bytes the
// merge *would* produce, without touching Arrow arrays yet.
func (e *Engine) mergeFeasible(a, b *chunk.Chunk) bool {
	mergedRows := a.NumRows() + b.NumRows()
	sorted := wouldStaySorted(a, b)

	rowLimit := e.cfg.ChunkMaxRows
	if !sorted {
		rowLimit = e.cfg.ChunkMaxRowsIfUnsorted
	}
	if rowLimit > 0 && uint64(mergedRows) > rowLimit {
		return false
	}
	if e.cfg.ChunkMaxBytes > 0 && uint64(a.HeapSizeBytes()+b.HeapSizeBytes()) > e.cfg.ChunkMaxBytes {
		return false
	}
	return true
}

func wouldStaySorted(a, b *chunk.Chunk) bool {
	if !a.IsSorted || !b.IsSorted {
		return false
	}
	if len(a.RowIDs) > 0 && len(b.RowIDs) > 0 && b.RowIDs[0].Less(a.RowIDs[len(a.RowIDs)-1]) {
		return false
	}
	for name, atc := range a.Timelines {
		btc, ok := b.Timelines[name]
		if !ok || atc.Max > btc.Min {
			return false
		}
	}
	return true
}

func (e *Engine) withinCompactionBudget(c *chunk.Chunk) bool {
	rowLimit := e.cfg.ChunkMaxRows
	if !c.IsSorted {
		rowLimit = e.cfg.ChunkMaxRowsIfUnsorted
	}
	if rowLimit > 0 && uint64(c.NumRows()) >= rowLimit {
		return false
	}
	if e.cfg.ChunkMaxBytes > 0 && uint64(c.HeapSizeBytes()) >= e.cfg.ChunkMaxBytes {
		return false
	}
	return true
}

func (e *Engine) mergeChunks(a, b *chunk.Chunk) (*chunk.Chunk, error) {
	rowIDs := append(append([]chunk.RowID(nil), a.RowIDs...), b.RowIDs...)

	timelines := make(map[string]chunk.TimeColumn, len(a.Timelines))
	for name, atc := range a.Timelines {
		btc := b.Timelines[name]
		times := append(append([]int64(nil), atc.Times...), btc.Times...)
		timelines[name] = chunk.NewTimeColumn(atc.Timeline, times)
	}

	components := make(map[chunk.ComponentDescriptor]arrow.Array, len(a.Components))
	for desc, aArr := range a.Components {
		bArr, ok := b.Components[desc]
		if !ok {
			return nil, fmt.Errorf("compaction: component %q missing from second chunk", desc.Name)
		}
		merged, err := array.Concatenate([]arrow.Array{aArr, bArr}, e.mem)
		if err != nil {
			return nil, fmt.Errorf("compaction: concatenate component %q: %w", desc.Name, err)
		}
		components[desc] = merged
	}

	return chunk.Assemble(chunk.NewChunkID(), a.EntityPath, rowIDs, timelines, components)
}

func (e *Engine) indexTemporal(c *chunk.Chunk) {
	for timelineName := range c.Timelines {
		coarseRange := c.TimeRange(timelineName)
		for desc := range c.Components {
			fineRange := c.ComponentTimeRange(timelineName, desc)
			e.index.InsertTemporal(c.EntityPath, timelineName, desc, c.ID, fineRange, coarseRange)
		}
	}
}

// RemoveFromIndex removes a temporal chunk's fine/coarse index entries
// without touching the registry or emitting events. Exposed for the GC pass
// (§4.6 step 3 "remove from all indices"), which walks the registry directly
// rather than through InsertChunk's compaction path.
func (e *Engine) RemoveFromIndex(c *chunk.Chunk) {
	e.removeTemporalFromIndex(c)
}

func (e *Engine) removeTemporalFromIndex(c *chunk.Chunk) {
	for timelineName := range c.Timelines {
		for desc := range c.Components {
			e.index.RemoveTemporal(c.EntityPath, timelineName, desc, c.ID)
		}
	}
}

// DropEntityPath removes every chunk for path (static and temporal) and
// emits deletions: static chunks first, then temporal ordered by
// (timeline, time) (§4.4.3).
func (e *Engine) DropEntityPath(path entity.Path) []eventbus.Event {
	temporalByTimeline, staticIDs := e.index.DropEntity(path)

	var events []eventbus.Event
	for _, id := range staticIDs {
		if c, ok := e.reg.Get(id); ok {
			if e.cfg.EnableChangelog {
				events = append(events, e.deletionEvent(c))
			}
			e.reg.Unregister(id)
		}
	}

	timelineNames := make([]string, 0, len(temporalByTimeline))
	for name := range temporalByTimeline {
		timelineNames = append(timelineNames, name)
	}
	sort.Strings(timelineNames)

	for _, name := range timelineNames {
		ids := temporalByTimeline[name]
		sort.Slice(ids, func(i, j int) bool {
			ci, _ := e.reg.Get(ids[i])
			cj, _ := e.reg.Get(ids[j])
			if ci == nil || cj == nil {
				return false
			}
			return ci.TimeRange(name).Min < cj.TimeRange(name).Min
		})
		for _, id := range ids {
			if c, ok := e.reg.Get(id); ok {
				if e.cfg.EnableChangelog {
					events = append(events, e.deletionEvent(c))
				}
				e.reg.Unregister(id)
			}
		}
	}
	return events
}

func (e *Engine) additionEvent(c *chunk.Chunk) eventbus.Event {
	return eventbus.Event{ID: e.bus.NextEventID(), Kind: eventbus.Addition, Chunk: c}
}

func (e *Engine) deletionEvent(c *chunk.Chunk) eventbus.Event {
	return eventbus.Event{ID: e.bus.NextEventID(), Kind: eventbus.Deletion, Chunk: c}
}
