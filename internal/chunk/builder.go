package chunk

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"chunkstore/internal/entity"
)

// ComponentType names a component and the Arrow type of one list element
// (the chunk's column itself is always List(elem), per §6 "outer list type
// required").
type ComponentType struct {
	Descriptor ComponentDescriptor
	Elem       arrow.DataType
}

// RowCell is one row's contribution to one component column: either a list
// of values (possibly empty) or an explicit null (component absent at this
// row, §3 "Component column").
type RowCell struct {
	Null   bool
	Values []any
}

// Builder assembles rows into an immutable Chunk, validating §3 invariants
// 1-5 eagerly per row rather than only at Finish (supplemented behavior:
// a caller gets a precise failing row index instead of a whole-chunk
// failure).
type Builder struct {
	mem        memory.Allocator
	entityPath entity.Path

	timelineOrder []string
	timelineKind  map[string]TimeKind
	times         map[string][]int64

	componentOrder []ComponentDescriptor
	listBuilders   map[ComponentDescriptor]*array.ListBuilder

	rowIDs []RowID
	numRows int

	seenDescriptors map[ComponentDescriptor]struct{}
}

// NewBuilder creates a Builder for entityPath over the given timelines and
// component types. Passing zero timelines produces a static chunk (§3
// "Static vs temporal").
func NewBuilder(mem memory.Allocator, entityPath entity.Path, timelines []Timeline, components []ComponentType) (*Builder, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := &Builder{
		mem:             mem,
		entityPath:      entityPath,
		timelineKind:    make(map[string]TimeKind, len(timelines)),
		times:           make(map[string][]int64, len(timelines)),
		listBuilders:    make(map[ComponentDescriptor]*array.ListBuilder, len(components)),
		seenDescriptors: make(map[ComponentDescriptor]struct{}, len(components)),
	}
	for _, tl := range timelines {
		if _, dup := b.timelineKind[tl.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate timeline %q", ErrMalformed, tl.Name)
		}
		b.timelineOrder = append(b.timelineOrder, tl.Name)
		b.timelineKind[tl.Name] = tl.Kind
		b.times[tl.Name] = nil
	}
	for _, ct := range components {
		if _, dup := b.seenDescriptors[ct.Descriptor]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateComponent, ct.Descriptor.Name)
		}
		b.seenDescriptors[ct.Descriptor] = struct{}{}
		b.componentOrder = append(b.componentOrder, ct.Descriptor)
		b.listBuilders[ct.Descriptor] = array.NewListBuilder(mem, ct.Elem)
	}
	return b, nil
}

// AddRow appends one row. times must supply exactly the timelines the
// builder was constructed with; cells may omit components (treated as
// null at this row) but must not name a component the builder was not
// constructed with.
func (b *Builder) AddRow(rowID RowID, times map[string]int64, cells map[ComponentDescriptor]RowCell) error {
	for _, name := range b.timelineOrder {
		t, ok := times[name]
		if !ok {
			return fmt.Errorf("%w: row %d missing time for timeline %q", ErrRowCountMismatch, b.numRows, name)
		}
		b.times[name] = append(b.times[name], t)
	}
	if len(times) != len(b.timelineOrder) {
		return fmt.Errorf("%w: row %d supplies times for unknown timelines", ErrMalformed, b.numRows)
	}

	for desc, cell := range cells {
		lb, ok := b.listBuilders[desc]
		if !ok {
			return fmt.Errorf("%w: row %d references unregistered component %q", ErrMalformed, b.numRows, desc.Name)
		}
		if cell.Null {
			lb.AppendNull()
			continue
		}
		lb.Append(true)
		if err := appendValues(lb.ValueBuilder(), cell.Values); err != nil {
			return fmt.Errorf("row %d component %q: %w", b.numRows, desc.Name, err)
		}
	}
	for _, desc := range b.componentOrder {
		if _, given := cells[desc]; !given {
			b.listBuilders[desc].AppendNull()
		}
	}

	b.rowIDs = append(b.rowIDs, rowID)
	b.numRows++
	return nil
}

func appendValues(vb array.Builder, values []any) error {
	for _, v := range values {
		switch tb := vb.(type) {
		case *array.Int64Builder:
			iv, ok := v.(int64)
			if !ok {
				return fmt.Errorf("expected int64 element, got %T", v)
			}
			tb.Append(iv)
		case *array.Float64Builder:
			fv, ok := v.(float64)
			if !ok {
				return fmt.Errorf("expected float64 element, got %T", v)
			}
			tb.Append(fv)
		case *array.StringBuilder:
			sv, ok := v.(string)
			if !ok {
				return fmt.Errorf("expected string element, got %T", v)
			}
			tb.Append(sv)
		case *array.BooleanBuilder:
			bv, ok := v.(bool)
			if !ok {
				return fmt.Errorf("expected bool element, got %T", v)
			}
			tb.Append(bv)
		default:
			return fmt.Errorf("unsupported component element builder %T", vb)
		}
	}
	return nil
}

// Finish assembles the accumulated rows into an immutable Chunk, computing
// sortedness and per-column [min,max] in one pass per timeline (§4.1).
func (b *Builder) Finish() (*Chunk, error) {
	timelines := make(map[string]TimeColumn, len(b.timelineOrder))
	for _, name := range b.timelineOrder {
		timelines[name] = NewTimeColumn(Timeline{Name: name, Kind: b.timelineKind[name]}, b.times[name])
	}

	components := make(map[ComponentDescriptor]arrow.Array, len(b.componentOrder))
	for _, desc := range b.componentOrder {
		lb := b.listBuilders[desc]
		components[desc] = lb.NewListArray()
		lb.Release()
	}

	return Assemble(NewChunkID(), b.entityPath, b.rowIDs, timelines, components)
}
