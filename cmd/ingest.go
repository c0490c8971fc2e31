package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/housing-tools/handbook-qa/internal/extract"
	"github.com/housing-tools/handbook-qa/internal/ingest"
	"github.com/housing-tools/handbook-qa/internal/textproc"
)

var ingestDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Rebuild the chunk index from handbook PDFs",
	Long:  "Deletes all stored chunks, then extracts, sanitizes, chunks, embeds and stores every PDF in the configured directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.adminIndex.Migrate(ctx); err != nil {
			return err
		}

		dir := ingestDir
		if dir == "" {
			dir = cfg.Ingest.PDFDir
		}

		chunker, err := textproc.NewChunker(cfg.Ingest.MaxTokens, cfg.Ingest.Overlap)
		if err != nil {
			return err
		}

		pipeline := ingest.New(
			env.adminIndex,
			env.embedder,
			extract.NewPdfToText(cfg.Ingest.PdfToTextPath, cfg.Ingest.PdfInfoPath),
			chunker,
			cfg.Ingest.EmbedWorkers,
		)

		results, err := pipeline.Run(ctx, dir)
		if err != nil {
			return err
		}

		total := 0
		for _, r := range results {
			total += r.Inserted
		}
		zap.L().Info("ingestion complete",
			zap.Int("documents", len(results)),
			zap.Int("chunks", total),
			zap.String("doc_version", cfg.Ingest.DocVersion),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "PDF directory (default from config)")
	rootCmd.AddCommand(ingestCmd)
}
