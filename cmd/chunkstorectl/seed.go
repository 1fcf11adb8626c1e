package main

import (
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/cobra"

	"chunkstore/internal/chunk"
	"chunkstore/internal/entity"
	"chunkstore/internal/store"
)

// seededStore builds a Store from the command's persistent flags and fills
// it with --seed-rows synthetic rows on a "frame" sequence timeline, one row
// per unit of time starting at 0.
func seededStore(cmd *cobra.Command, logger *slog.Logger) (*store.Store, entity.Path, chunk.ComponentDescriptor, error) {
	cfg, err := configFromEnv()
	if err != nil {
		return nil, entity.Path{}, chunk.ComponentDescriptor{}, err
	}

	entityFlag, _ := cmd.Flags().GetString("entity")
	componentFlag, _ := cmd.Flags().GetString("component")
	seedRows, _ := cmd.Flags().GetInt("seed-rows")

	ent, err := entity.Parse(entityFlag)
	if err != nil {
		return nil, entity.Path{}, chunk.ComponentDescriptor{}, err
	}
	comp := chunk.ComponentDescriptor{Name: componentFlag}

	s := store.New("chunkstorectl", cfg, logger)
	if seedRows > 0 {
		c, err := syntheticChunk(ent, comp, 0, seedRows)
		if err != nil {
			return nil, entity.Path{}, chunk.ComponentDescriptor{}, err
		}
		if _, err := s.InsertChunk(c); err != nil {
			return nil, entity.Path{}, chunk.ComponentDescriptor{}, err
		}
	}
	return s, ent, comp, nil
}

// syntheticChunk builds a sorted temporal chunk of n rows on the "frame"
// sequence timeline, each row's component value equal to its row index.
func syntheticChunk(ent entity.Path, comp chunk.ComponentDescriptor, startTime int64, n int) (*chunk.Chunk, error) {
	b, err := chunk.NewBuilder(memory.DefaultAllocator, ent, []chunk.Timeline{{Name: "frame", Kind: chunk.Sequence}}, []chunk.ComponentType{
		{Descriptor: comp, Elem: arrow.PrimitiveTypes.Int64},
	})
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		tm := startTime + int64(i)
		if err := b.AddRow(chunk.NewRowID(), map[string]int64{"frame": tm}, map[chunk.ComponentDescriptor]chunk.RowCell{
			comp: {Values: []any{tm}},
		}); err != nil {
			return nil, err
		}
	}
	return b.Finish()
}
