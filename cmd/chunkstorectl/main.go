// Command chunkstorectl exercises the chunk store façade end to end: seed
// synthetic rows, query them back, and run garbage collection, all against
// one in-process store (there is no persistence layer to attach to between
// invocations).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"chunkstore/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rootCmd := &cobra.Command{
		Use:   "chunkstorectl",
		Short: "Exercise the chunk store's ingest, query, and gc operations",
	}
	rootCmd.PersistentFlags().Int("seed-rows", 100, "synthetic rows to insert before running the command")
	rootCmd.PersistentFlags().String("entity", "demo/points", "entity path to operate on")
	rootCmd.PersistentFlags().String("component", "points", "component name to operate on")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table or json")

	rootCmd.AddCommand(
		newInsertCmd(logger),
		newLatestAtCmd(logger),
		newRangeCmd(logger),
		newGCCmd(logger),
		newStatsCmd(logger),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("dev")
		},
	}
}

// configFromEnv loads StoreConfig from the environment, falling back to the
// documented defaults on success and aborting on a malformed value.
func configFromEnv() (config.StoreConfig, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.StoreConfig{}, fmt.Errorf("load store config: %w", err)
	}
	return cfg, nil
}
