package chunk

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"chunkstore/internal/entity"
)

var pointsComponent = ComponentDescriptor{Name: "points"}
var colorsComponent = ComponentDescriptor{Name: "colors"}

func frameTimeline() Timeline { return Timeline{Name: "frame", Kind: Sequence} }

func newTestBuilder(t *testing.T, timelines []Timeline) *Builder {
	t.Helper()
	b, err := NewBuilder(memory.DefaultAllocator, entity.MustNew("points"), timelines, []ComponentType{
		{Descriptor: pointsComponent, Elem: arrow.PrimitiveTypes.Int64},
		{Descriptor: colorsComponent, Elem: arrow.PrimitiveTypes.Int64},
	})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func TestBuilderProducesSortedChunk(t *testing.T) {
	b := newTestBuilder(t, []Timeline{frameTimeline()})

	rows := []struct {
		id   RowID
		time int64
		cell RowCell
	}{
		{NewRowID(), 1, RowCell{Values: []any{int64(1), int64(2)}}},
		{NewRowID(), 3, RowCell{Null: true}},
		{NewRowID(), 5, RowCell{Values: []any{int64(3), int64(4), int64(5)}}},
	}
	for _, r := range rows {
		if err := b.AddRow(r.id, map[string]int64{"frame": r.time}, map[ComponentDescriptor]RowCell{pointsComponent: r.cell}); err != nil {
			t.Fatalf("AddRow: %v", err)
		}
	}

	c, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if c.NumRows() != 3 {
		t.Fatalf("got %d rows, want 3", c.NumRows())
	}
	if !c.IsSorted {
		t.Fatal("expected sorted chunk")
	}
	if c.IsStatic() {
		t.Fatal("chunk has a timeline, should not be static")
	}
	tr := c.TimeRange("frame")
	if tr.Min != 1 || tr.Max != 5 {
		t.Fatalf("got range [%d,%d], want [1,5]", tr.Min, tr.Max)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestBuilderStaticChunkHasNoTimelines(t *testing.T) {
	b := newTestBuilder(t, nil)
	if err := b.AddRow(NewRowID(), nil, map[ComponentDescriptor]RowCell{
		colorsComponent: {Values: []any{int64(9), int64(9), int64(9)}},
	}); err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	c, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !c.IsStatic() {
		t.Fatal("expected static chunk")
	}
	if got := c.TimeRange("frame"); !got.Contains(0) {
		t.Fatalf("expected unbounded range for static chunk, got %+v", got)
	}
}

func TestBuilderRejectsMissingTime(t *testing.T) {
	b := newTestBuilder(t, []Timeline{frameTimeline()})
	err := b.AddRow(NewRowID(), nil, nil)
	if !errors.Is(err, ErrRowCountMismatch) {
		t.Fatalf("got %v, want ErrRowCountMismatch", err)
	}
}

func TestBuilderRejectsUnregisteredComponent(t *testing.T) {
	b := newTestBuilder(t, []Timeline{frameTimeline()})
	unknown := ComponentDescriptor{Name: "labels"}
	err := b.AddRow(NewRowID(), map[string]int64{"frame": 1}, map[ComponentDescriptor]RowCell{
		unknown: {Values: []any{int64(1)}},
	})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestComponentTimeRangeRestrictsToNonNull(t *testing.T) {
	b := newTestBuilder(t, []Timeline{frameTimeline()})
	_ = b.AddRow(NewRowID(), map[string]int64{"frame": 1}, map[ComponentDescriptor]RowCell{
		pointsComponent: {Values: []any{int64(1)}},
	})
	_ = b.AddRow(NewRowID(), map[string]int64{"frame": 3}, map[ComponentDescriptor]RowCell{
		colorsComponent: {Values: []any{int64(9)}},
	})
	_ = b.AddRow(NewRowID(), map[string]int64{"frame": 5}, map[ComponentDescriptor]RowCell{
		pointsComponent: {Values: []any{int64(3)}},
	})
	c, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got := c.ComponentTimeRange("frame", pointsComponent)
	if got.Min != 1 || got.Max != 5 {
		t.Fatalf("got [%d,%d], want [1,5]", got.Min, got.Max)
	}
	colorsRange := c.ComponentTimeRange("frame", colorsComponent)
	if colorsRange.Min != 3 || colorsRange.Max != 3 {
		t.Fatalf("got [%d,%d], want [3,3]", colorsRange.Min, colorsRange.Max)
	}
}
