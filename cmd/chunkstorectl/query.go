package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
)

func newLatestAtCmd(logger *slog.Logger) *cobra.Command {
	var at int64
	cmd := &cobra.Command{
		Use:   "latest-at",
		Short: "Seed rows, then answer a point-in-time query",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ent, comp, err := seededStore(cmd, logger)
			if err != nil {
				return err
			}
			outputFlag, _ := cmd.Flags().GetString("output")

			unit, ok := s.LatestAt(ent, "frame", at, comp)
			p := newPrinter(outputFlag)
			if !ok {
				fmt.Println("no match")
				return nil
			}
			if outputFlag == "json" {
				return p.json(map[string]any{
					"static": unit.Static,
					"time":   unit.Time,
					"row_id": unit.RowID.String(),
				})
			}
			p.kv([][2]string{
				{"static", strconv.FormatBool(unit.Static)},
				{"time", strconv.FormatInt(unit.Time, 10)},
				{"row_id", unit.RowID.String()},
			})
			return nil
		},
	}
	cmd.Flags().Int64Var(&at, "at", 1<<62, "query time (defaults to +infinity, i.e. the latest row)")
	return cmd
}

func newRangeCmd(logger *slog.Logger) *cobra.Command {
	var lo, hi int64
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Seed rows, then answer a windowed range query",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ent, comp, err := seededStore(cmd, logger)
			if err != nil {
				return err
			}
			outputFlag, _ := cmd.Flags().GetString("output")

			results := s.Range(ent, "frame", lo, hi, comp)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				kind := "temporal"
				if r.Static {
					kind = "static"
				}
				rows = append(rows, []string{kind, r.Chunk.ID.String(), strconv.Itoa(r.Chunk.NumRows())})
			}

			p := newPrinter(outputFlag)
			if outputFlag == "json" {
				return p.json(rows)
			}
			p.table([]string{"kind", "chunk_id", "rows"}, rows)
			return nil
		},
	}
	cmd.Flags().Int64Var(&lo, "lo", 0, "window lower bound (inclusive)")
	cmd.Flags().Int64Var(&hi, "hi", 1<<62, "window upper bound (inclusive)")
	return cmd
}
