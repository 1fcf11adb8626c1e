// Package store implements the top-level façade (§4.7, §6): the single
// entry point that wires the chunk index, registry, ingestion engine, query
// engine, and event bus together behind one multi-reader/single-writer lock
// (§5).
package store

import (
	"log/slog"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"chunkstore/internal/chunk"
	"chunkstore/internal/chunkindex"
	"chunkstore/internal/config"
	"chunkstore/internal/entity"
	"chunkstore/internal/eventbus"
	"chunkstore/internal/ingest"
	"chunkstore/internal/logging"
	"chunkstore/internal/query"
	"chunkstore/internal/registry"
)

// Store is the top-level façade. It holds the store-level lock: a
// single writer (InsertChunk, GC, DropEntityPath) excludes every other
// operation, but readers (LatestAt, Range, IterChunks, Stats) only need a
// read lock and can run concurrently with each other (§5 "multi-reader/
// single-writer").
type Store struct {
	id     string
	logger *slog.Logger

	mu  sync.RWMutex
	cfg config.StoreConfig

	index *chunkindex.Index
	reg   *registry.Registry
	bus   *eventbus.Bus
	ing   *ingest.Engine
	qry   *query.Engine

	tracker *chunkIDTracker

	insertGeneration uint64
	gcGeneration     uint64
}

// New constructs a Store with its own private index, registry, event bus,
// and ingestion/query engines (§4.7 "new(id, config)").
func New(id string, cfg config.StoreConfig, logger *slog.Logger) *Store {
	logger = logging.Default(logger).With("component", "store", "store_id", id)

	index := chunkindex.New()
	reg := registry.New()
	bus := eventbus.New()

	return &Store{
		id:      id,
		logger:  logger,
		cfg:     cfg,
		index:   index,
		reg:     reg,
		bus:     bus,
		ing:     ingest.New(memory.DefaultAllocator, index, reg, bus, cfg),
		qry:     query.New(index, reg),
		tracker: newChunkIDTracker(),
	}
}

// Config returns the store's current thresholds (§4.7 "config()").
func (s *Store) Config() config.StoreConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// InsertChunk runs the ingestion pipeline and dispatches the resulting
// events to subscribers (§4.3, §4.5).
func (s *Store) InsertChunk(c *chunk.Chunk) ([]eventbus.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.ing.InsertChunk(c)
	if err != nil {
		s.logger.Warn("insert_chunk rejected", "entity_path", c.EntityPath.String(), "error", err)
		return nil, err
	}
	s.insertGeneration++
	s.bus.Dispatch(events)
	if c.IsStatic() {
		s.logger.Debug("inserted static chunk", "entity_path", c.EntityPath.String(), "chunk_id", c.ID)
	}
	return events, nil
}

// DropEntityPath removes every chunk for path and dispatches the resulting
// deletion events (§4.4.3).
func (s *Store) DropEntityPath(path entity.Path) []eventbus.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.ing.DropEntityPath(path)
	s.insertGeneration++
	s.bus.Dispatch(events)
	s.logger.Info("dropped entity path", "entity_path", path.String(), "events", len(events))
	return events
}

// LatestAt answers a point-in-time query for one component (§4.4.1).
func (s *Store) LatestAt(ent entity.Path, timeline string, t int64, comp chunk.ComponentDescriptor) (query.Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unit, ok := s.qry.LatestAt(ent, timeline, t, comp)
	if ok {
		s.tracker.Track(unit.Chunk.ID)
	}
	return unit, ok
}

// Range answers a windowed query for one component (§4.4.2).
func (s *Store) Range(ent entity.Path, timeline string, lo, hi int64, comp chunk.ComponentDescriptor) []query.RangeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := s.qry.Range(ent, timeline, lo, hi, comp)
	for _, r := range results {
		s.tracker.Track(r.Chunk.ID)
	}
	return results
}

// IterChunks returns every live chunk (§6 "iter_chunks").
func (s *Store) IterChunks() []*chunk.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := s.reg.IterChunks()
	s.tracker.TrackAll(chunks)
	return chunks
}

// LookupDatatype returns the latest Arrow datatype observed for a component
// (§6 "lookup_datatype").
func (s *Store) LookupDatatype(comp chunk.ComponentDescriptor) (arrow.DataType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.LookupDatatype(comp)
}

// FindRootRRDManifests exposes the compaction-lineage walk (§6, supplemented
// feature).
func (s *Store) FindRootRRDManifests(id chunk.ChunkID) [][2]chunk.ChunkID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.FindRootRRDManifests(id)
}

// Generation returns a cheap "has anything changed?" probe pair for
// downstream caches (§4.7 "generation() -> (insert_id, gc_id)").
func (s *Store) Generation() (insertID, gcID uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.insertGeneration, s.gcGeneration
}

// Stats returns the store's current size/shape breakdown (§4, supplemented
// feature 2).
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeStats(s.reg.IterChunks(), len(s.index.Entities()))
}

// Subscribe registers handler to receive every future event batch (§4.5).
func (s *Store) Subscribe(handler func([]eventbus.Event)) eventbus.Handle {
	return s.bus.Subscribe(handler)
}

// Unsubscribe removes a previously registered subscriber.
func (s *Store) Unsubscribe(h eventbus.Handle) {
	s.bus.Unsubscribe(h)
}

// TakeTrackedChunkIds drains the set of chunk ids referenced by queries
// since the previous call, split into ones still live ("used") and ones no
// longer registered ("missing") — e.g. dropped by an intervening GC (§6).
func (s *Store) TakeTrackedChunkIds() (used, missing map[chunk.ChunkID]struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker.Take(s.reg)
}

// GC runs the garbage collector (§4.6) and dispatches the resulting
// deletion events.
func (s *Store) GC(req GCRequest) []eventbus.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := s.resolveOptions(req)
	events := s.runGC(opts)
	s.gcGeneration++
	s.bus.Dispatch(events)
	s.logger.Info("gc pass complete", "events", len(events))
	return events
}
