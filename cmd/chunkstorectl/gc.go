package main

import (
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"chunkstore/internal/gcpolicy"
	"chunkstore/internal/store"
)

func newGCCmd(logger *slog.Logger) *cobra.Command {
	var dropFraction float64
	var protectLatest int
	var everything bool
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Seed rows, then run garbage collection and report what was dropped",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ent, _, err := seededStore(cmd, logger)
			if err != nil {
				return err
			}
			outputFlag, _ := cmd.Flags().GetString("output")
			before := s.Stats()

			events := s.GC(store.GCRequest{
				Target:        gcpolicy.DropAtLeastFraction(dropFraction),
				ProtectLatest: protectLatest,
				Everything:    everything,
			})
			after := s.Stats()

			p := newPrinter(outputFlag)
			if outputFlag == "json" {
				return p.json(map[string]any{
					"entity_path":          ent.String(),
					"events_emitted":       len(events),
					"temporal_bytes_before": before.TemporalBytes,
					"temporal_bytes_after":  after.TemporalBytes,
					"num_chunks_after":      after.NumChunks,
				})
			}
			p.kv([][2]string{
				{"entity_path", ent.String()},
				{"events_emitted", strconv.Itoa(len(events))},
				{"temporal_bytes_before", strconv.FormatInt(before.TemporalBytes, 10)},
				{"temporal_bytes_after", strconv.FormatInt(after.TemporalBytes, 10)},
				{"num_chunks_after", strconv.Itoa(after.NumChunks)},
			})
			return nil
		},
	}
	cmd.Flags().Float64Var(&dropFraction, "drop-fraction", 0.5, "fraction of temporal bytes to reclaim")
	cmd.Flags().IntVar(&protectLatest, "protect-latest", 0, "protect the N most recent rows per (entity, timeline, component)")
	cmd.Flags().BoolVar(&everything, "everything", false, "drop every eligible temporal chunk, ignoring protections")
	return cmd
}
