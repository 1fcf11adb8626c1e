// Package chunktransport converts between a Chunk and its wire
// representation: an Arrow record batch carrying entity path and sortedness
// as schema metadata, row ids as a control column, one column per timeline,
// and one column per component (§6 "Wire representation of a chunk").
package chunktransport

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"chunkstore/internal/chunk"
	"chunkstore/internal/entity"
)

const (
	metaEntityPath = "rerun.chunk.entity_path"
	metaIsSorted   = "rerun.chunk.is_sorted"
	metaFieldKind  = "rerun.field.kind"

	fieldKindTime    = "time"
	fieldKindControl = "control"
	fieldKindData    = "data"

	rowIDFieldName = "rerun.row_id"
)

// metaTimeKind, with timeKindNames/timeKindByName, round-trips a Timeline's
// Kind through a per-field metadata key, since the physical Arrow type alone can't tell
// DurationNs apart from TimestampNs (both ride on Timestamp(ns)).
const metaTimeKind = "rerun.field.time_kind"

var timeKindNames = map[chunk.TimeKind]string{
	chunk.Sequence:    "sequence",
	chunk.DurationNs:  "duration_ns",
	chunk.TimestampNs: "timestamp_ns",
}

var timeKindByName = func() map[string]chunk.TimeKind {
	out := make(map[string]chunk.TimeKind, len(timeKindNames))
	for k, v := range timeKindNames {
		out[v] = k
	}
	return out
}()

// ToTransport encodes c as an Arrow record batch (§6). The returned record
// owns its own array references; release it with Record.Release when done.
func ToTransport(mem memory.Allocator, c *chunk.Chunk) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	var fields []arrow.Field
	var cols []arrow.Array

	rowIDField, rowIDArr, err := encodeRowIDs(mem, c.RowIDs)
	if err != nil {
		return nil, fmt.Errorf("chunktransport: encode row ids: %w", err)
	}
	fields = append(fields, rowIDField)
	cols = append(cols, rowIDArr)

	for name, tc := range c.Timelines {
		field, arr := encodeTimeColumn(mem, name, tc)
		fields = append(fields, field)
		cols = append(cols, arr)
	}

	for desc, arr := range c.Components {
		arr.Retain()
		fields = append(fields, arrow.Field{
			Name:     desc.Name,
			Type:     arr.DataType(),
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{metaFieldKind}, []string{fieldKindData}),
		})
		cols = append(cols, arr)
	}

	isSorted := "false"
	if c.IsSorted {
		isSorted = "true"
	}
	schemaMeta := arrow.NewMetadata(
		[]string{metaEntityPath, metaIsSorted},
		[]string{c.EntityPath.String(), isSorted},
	)
	schema := arrow.NewSchema(fields, &schemaMeta)

	rec := array.NewRecord(schema, cols, int64(c.NumRows()))
	for _, col := range cols {
		col.Release()
	}
	return rec, nil
}

func encodeRowIDs(mem memory.Allocator, rowIDs []chunk.RowID) (arrow.Field, arrow.Array, error) {
	fsbType := &arrow.FixedSizeBinaryType{ByteWidth: 16}
	b := array.NewFixedSizeBinaryBuilder(mem, fsbType)
	defer b.Release()
	for _, id := range rowIDs {
		b.Append(id[:])
	}
	arr := b.NewArray()
	field := arrow.Field{
		Name:     rowIDFieldName,
		Type:     fsbType,
		Nullable: false,
		Metadata: arrow.NewMetadata([]string{metaFieldKind}, []string{fieldKindControl}),
	}
	return field, arr, nil
}

func encodeTimeColumn(mem memory.Allocator, name string, tc chunk.TimeColumn) (arrow.Field, arrow.Array) {
	kindName := timeKindNames[tc.Timeline.Kind]

	if tc.Timeline.Kind == chunk.Sequence {
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(tc.Times, nil)
		arr := b.NewArray()
		field := arrow.Field{
			Name:     name,
			Type:     arrow.PrimitiveTypes.Int64,
			Nullable: false,
			Metadata: arrow.NewMetadata([]string{metaFieldKind, metaTimeKind}, []string{fieldKindTime, kindName}),
		}
		return field, arr
	}

	ts := &arrow.TimestampType{Unit: arrow.Nanosecond}
	b := array.NewTimestampBuilder(mem, ts)
	defer b.Release()
	for _, t := range tc.Times {
		b.Append(arrow.Timestamp(t))
	}
	arr := b.NewArray()
	field := arrow.Field{
		Name:     name,
		Type:     ts,
		Nullable: false,
		Metadata: arrow.NewMetadata([]string{metaFieldKind, metaTimeKind}, []string{fieldKindTime, kindName}),
	}
	return field, arr
}

// FromTransport decodes a record batch produced by ToTransport back into a
// Chunk. Sortedness and per-column [min,max] are re-derived rather than
// trusted from the wire, per §6's round-trip contract.
func FromTransport(rec arrow.Record) (*chunk.Chunk, error) {
	schema := rec.Schema()
	meta := schema.Metadata()

	entityIdx := meta.FindKey(metaEntityPath)
	if entityIdx < 0 {
		return nil, fmt.Errorf("chunktransport: %w: missing %s", chunk.ErrMalformed, metaEntityPath)
	}
	entityPath, err := entity.Parse(meta.Values()[entityIdx])
	if err != nil {
		return nil, fmt.Errorf("chunktransport: %w: bad entity path: %v", chunk.ErrMalformed, err)
	}

	var rowIDs []chunk.RowID
	timelines := make(map[string]chunk.TimeColumn)
	components := make(map[chunk.ComponentDescriptor]arrow.Array)

	for i, field := range schema.Fields() {
		kindIdx := field.Metadata.FindKey(metaFieldKind)
		if kindIdx < 0 {
			return nil, fmt.Errorf("chunktransport: %w: field %q missing %s", chunk.ErrMalformed, field.Name, metaFieldKind)
		}
		kind := field.Metadata.Values()[kindIdx]
		col := rec.Column(i)

		switch kind {
		case fieldKindControl:
			ids, err := decodeRowIDs(col)
			if err != nil {
				return nil, err
			}
			rowIDs = ids
		case fieldKindTime:
			tkIdx := field.Metadata.FindKey(metaTimeKind)
			if tkIdx < 0 {
				return nil, fmt.Errorf("chunktransport: %w: time field %q missing %s", chunk.ErrMalformed, field.Name, metaTimeKind)
			}
			timeKind, ok := timeKindByName[field.Metadata.Values()[tkIdx]]
			if !ok {
				return nil, fmt.Errorf("chunktransport: %w: unknown time kind %q", chunk.ErrMalformed, field.Metadata.Values()[tkIdx])
			}
			times, err := decodeTimeColumn(col, timeKind)
			if err != nil {
				return nil, err
			}
			timelines[field.Name] = chunk.NewTimeColumn(chunk.Timeline{Name: field.Name, Kind: timeKind}, times)
		case fieldKindData:
			col.Retain()
			components[chunk.ComponentDescriptor{Name: field.Name}] = col
		default:
			return nil, fmt.Errorf("chunktransport: %w: unknown field kind %q", chunk.ErrMalformed, kind)
		}
	}

	if rowIDs == nil {
		return nil, fmt.Errorf("chunktransport: %w: missing %s control column", chunk.ErrMalformed, rowIDFieldName)
	}

	return chunk.Assemble(chunk.NewChunkID(), entityPath, rowIDs, timelines, components)
}

func decodeRowIDs(col arrow.Array) ([]chunk.RowID, error) {
	fsb, ok := col.(*array.FixedSizeBinary)
	if !ok {
		return nil, fmt.Errorf("chunktransport: %w: row id column has type %T, want FixedSizeBinary", chunk.ErrMalformed, col)
	}
	out := make([]chunk.RowID, fsb.Len())
	for i := 0; i < fsb.Len(); i++ {
		var id chunk.RowID
		copy(id[:], fsb.Value(i))
		out[i] = id
	}
	return out, nil
}

func decodeTimeColumn(col arrow.Array, kind chunk.TimeKind) ([]int64, error) {
	if kind == chunk.Sequence {
		arr, ok := col.(*array.Int64)
		if !ok {
			return nil, fmt.Errorf("chunktransport: %w: sequence time column has type %T, want Int64", chunk.ErrMalformed, col)
		}
		return append([]int64(nil), arr.Int64Values()...), nil
	}
	arr, ok := col.(*array.Timestamp)
	if !ok {
		return nil, fmt.Errorf("chunktransport: %w: timestamp time column has type %T, want Timestamp", chunk.ErrMalformed, col)
	}
	out := make([]int64, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		out[i] = int64(arr.Value(i))
	}
	return out, nil
}
