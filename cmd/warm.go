package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/housing-tools/handbook-qa/internal/answer"
)

var warmFile string

// warmCmd pre-populates the semantic cache by asking the frequently asked
// questions once. Served questions then hit the cache instead of the models.
var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Warm the semantic cache from a FAQ file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(warmFile)
		if err != nil {
			return eris.Wrapf(err, "warm: read %s", warmFile)
		}

		var faq struct {
			Questions []string `yaml:"questions"`
		}
		if err := yaml.Unmarshal(data, &faq); err != nil {
			return eris.Wrap(err, "warm: parse faq file")
		}
		if len(faq.Questions) == 0 {
			return eris.Errorf("warm: no questions in %s", warmFile)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// No rate limiter: warming is an operator action, not client traffic.
		svc := answer.New(
			env.embedder,
			env.generator,
			env.cache,
			env.writer,
			env.retriever,
			nil,
			cfg.Generation,
			cfg.Ingest.DocVersion,
		)

		warmed, failed := 0, 0
		for _, q := range faq.Questions {
			resp, err := svc.Ask(ctx, q, "warm")
			if err != nil {
				zap.L().Warn("warm question failed", zap.String("question", q), zap.Error(err))
				failed++
				continue
			}
			if resp.Cached {
				zap.L().Info("already cached", zap.String("question", q))
			}
			warmed++
		}

		// Let the background cache writes land before the index closes.
		env.writer.Flush()

		zap.L().Info("cache warming complete",
			zap.Int("warmed", warmed),
			zap.Int("failed", failed),
		)
		return nil
	},
}

func init() {
	warmCmd.Flags().StringVar(&warmFile, "file", "faq.yaml", "YAML file with a questions list")
	rootCmd.AddCommand(warmCmd)
}
