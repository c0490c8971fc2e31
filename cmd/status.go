package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		chunks, err := env.readIndex.CountChunks(ctx)
		if err != nil {
			return err
		}
		bySource, err := env.readIndex.CountChunksBySource(ctx)
		if err != nil {
			return err
		}
		cached, err := env.readIndex.CountCachedQA(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Doc version:   %s\n", cfg.Ingest.DocVersion)
		fmt.Printf("Chunks:        %d\n", chunks)
		fmt.Printf("Cached answers: %d\n", cached)

		if len(bySource) > 0 {
			fmt.Println("\nChunks by source:")
			sources := make([]string, 0, len(bySource))
			for s := range bySource {
				sources = append(sources, s)
			}
			sort.Strings(sources)
			for _, s := range sources {
				fmt.Printf("  %-50s %d\n", s, bySource[s])
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
