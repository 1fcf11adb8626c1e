package main

import (
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
)

func newInsertCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Seed rows and report the resulting change events",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ent, _, err := seededStore(cmd, logger)
			if err != nil {
				return err
			}
			outputFlag, _ := cmd.Flags().GetString("output")
			insertID, gcID := s.Generation()
			stats := s.Stats()

			p := newPrinter(outputFlag)
			if outputFlag == "json" {
				return p.json(map[string]any{
					"entity_path":  ent.String(),
					"insert_id":    insertID,
					"gc_id":        gcID,
					"num_chunks":   stats.NumChunks,
					"temporal_bytes": stats.TemporalBytes,
				})
			}
			p.kv([][2]string{
				{"entity_path", ent.String()},
				{"insert_generation", strconv.FormatUint(insertID, 10)},
				{"num_chunks", strconv.Itoa(stats.NumChunks)},
				{"temporal_bytes", strconv.FormatInt(stats.TemporalBytes, 10)},
			})
			return nil
		},
	}
	return cmd
}
