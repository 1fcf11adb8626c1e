package store

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"chunkstore/internal/chunk"
	"chunkstore/internal/config"
	"chunkstore/internal/entity"
	"chunkstore/internal/eventbus"
	"chunkstore/internal/gcpolicy"
)

var pointsComponent = chunk.ComponentDescriptor{Name: "points"}

func temporalChunk(t *testing.T, ent entity.Path, startTime int64, n int) *chunk.Chunk {
	t.Helper()
	b, err := chunk.NewBuilder(memory.DefaultAllocator, ent, []chunk.Timeline{{Name: "frame", Kind: chunk.Sequence}}, []chunk.ComponentType{
		{Descriptor: pointsComponent, Elem: arrow.PrimitiveTypes.Int64},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		tm := startTime + int64(i)
		if err := b.AddRow(chunk.NewRowID(), map[string]int64{"frame": tm}, map[chunk.ComponentDescriptor]chunk.RowCell{
			pointsComponent: {Values: []any{tm}},
		}); err != nil {
			t.Fatal(err)
		}
	}
	c, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestInsertThenLatestAt(t *testing.T) {
	s := New("test", config.Default(), nil)
	ent := entity.MustNew("e")
	if _, err := s.InsertChunk(temporalChunk(t, ent, 0, 5)); err != nil {
		t.Fatal(err)
	}

	unit, ok := s.LatestAt(ent, "frame", 3, pointsComponent)
	if !ok || unit.Time != 3 {
		t.Fatalf("got ok=%v time=%d, want time=3", ok, unit.Time)
	}
}

func TestGenerationAdvancesOnInsertAndGC(t *testing.T) {
	cfg := config.Default()
	s := New("test", cfg, nil)
	ent := entity.MustNew("e")

	insertBefore, gcBefore := s.Generation()
	if _, err := s.InsertChunk(temporalChunk(t, ent, 0, 3)); err != nil {
		t.Fatal(err)
	}
	insertAfter, _ := s.Generation()
	if insertAfter == insertBefore {
		t.Fatal("expected insert generation to advance")
	}

	s.GC(GCRequest{Target: gcpolicy.Never()})
	_, gcAfter := s.Generation()
	if gcAfter == gcBefore {
		t.Fatal("expected gc generation to advance even on a no-op pass")
	}
}

func TestGCDropAtLeastFractionReclaimsOldestFirst(t *testing.T) {
	cfg := config.Default()
	cfg.ChunkMaxRows = 1 // disable compaction so each insert stays its own chunk
	s := New("test", cfg, nil)
	ent := entity.MustNew("e")

	for i := 0; i < 4; i++ {
		if _, err := s.InsertChunk(temporalChunk(t, ent, int64(i*10), 1)); err != nil {
			t.Fatal(err)
		}
	}
	before := s.Stats().NumChunks

	events := s.GC(GCRequest{Target: gcpolicy.DropAtLeastFraction(0.5)})
	if len(events) == 0 {
		t.Fatal("expected GC to drop at least one chunk")
	}
	after := s.Stats().NumChunks
	if after >= before {
		t.Fatalf("expected fewer chunks after GC, got before=%d after=%d", before, after)
	}
	for _, e := range events {
		if e.Kind != eventbus.Deletion {
			t.Fatalf("expected only deletion events from GC, got %v", e.Kind)
		}
	}
}

func TestGCNeverDropsStaticChunks(t *testing.T) {
	s := New("test", config.Default(), nil)
	ent := entity.MustNew("e")

	b, err := chunk.NewBuilder(memory.DefaultAllocator, ent, nil, []chunk.ComponentType{
		{Descriptor: pointsComponent, Elem: arrow.PrimitiveTypes.Int64},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddRow(chunk.NewRowID(), nil, map[chunk.ComponentDescriptor]chunk.RowCell{
		pointsComponent: {Values: []any{int64(1)}},
	}); err != nil {
		t.Fatal(err)
	}
	c, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertChunk(c); err != nil {
		t.Fatal(err)
	}

	s.GC(GCRequest{Everything: true})
	if s.Stats().NumStaticChunks != 1 {
		t.Fatal("expected the static chunk to survive gc_everything")
	}
}

func TestGCProtectLatestKeepsMostRecentRows(t *testing.T) {
	cfg := config.Default()
	cfg.ChunkMaxRows = 1
	s := New("test", cfg, nil)
	ent := entity.MustNew("e")
	for i := 0; i < 3; i++ {
		if _, err := s.InsertChunk(temporalChunk(t, ent, int64(i*10), 1)); err != nil {
			t.Fatal(err)
		}
	}

	s.GC(GCRequest{ProtectLatest: 1})

	unit, ok := s.LatestAt(ent, "frame", 1<<30, pointsComponent)
	if !ok {
		t.Fatal("expected the most recent row to survive protect_latest")
	}
	if unit.Time != 20 {
		t.Fatalf("got time %d, want 20", unit.Time)
	}
}

func TestTakeTrackedChunkIdsReflectsQueries(t *testing.T) {
	s := New("test", config.Default(), nil)
	ent := entity.MustNew("e")
	if _, err := s.InsertChunk(temporalChunk(t, ent, 0, 3)); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.LatestAt(ent, "frame", 2, pointsComponent); !ok {
		t.Fatal("expected a match")
	}

	used, missing := s.TakeTrackedChunkIds()
	if len(used) != 1 || len(missing) != 0 {
		t.Fatalf("got used=%d missing=%d, want used=1 missing=0", len(used), len(missing))
	}

	usedAgain, _ := s.TakeTrackedChunkIds()
	if len(usedAgain) != 0 {
		t.Fatalf("expected the tracked set to drain after Take, got %d", len(usedAgain))
	}
}

func TestSubscribeReceivesInsertEvents(t *testing.T) {
	s := New("test", config.Default(), nil)
	var received []eventbus.Event
	s.Subscribe(func(events []eventbus.Event) { received = append(received, events...) })

	ent := entity.MustNew("e")
	if _, err := s.InsertChunk(temporalChunk(t, ent, 0, 1)); err != nil {
		t.Fatal(err)
	}
	if len(received) != 1 || received[0].Kind != eventbus.Addition {
		t.Fatalf("expected one addition delivered, got %v", received)
	}
}

func TestDropEntityPathRemovesChunksAndAnswersEmpty(t *testing.T) {
	s := New("test", config.Default(), nil)
	ent := entity.MustNew("e")
	if _, err := s.InsertChunk(temporalChunk(t, ent, 0, 3)); err != nil {
		t.Fatal(err)
	}

	events := s.DropEntityPath(ent)
	if len(events) == 0 {
		t.Fatal("expected at least one deletion event")
	}
	if _, ok := s.LatestAt(ent, "frame", 2, pointsComponent); ok {
		t.Fatal("expected no match after dropping the entity path")
	}
}
