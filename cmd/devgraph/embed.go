package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var embedForce bool

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Compute node2vec embeddings for the graph",
	Long: `Check embedding coverage and recompute vectors when it falls
below the configured threshold. With --force the recompute runs
regardless of coverage.`,
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().BoolVar(&embedForce, "force", false, "recompute even when coverage is sufficient")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	application, err := newApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer application.Close()

	g, err := application.store.Load(ctx)
	if err != nil {
		return err
	}
	if g.NodeCount() == 0 {
		return fmt.Errorf("graph is empty, run `devgraph fetch` first")
	}

	coverage := application.embedding.Coverage(g)
	logger.WithField("coverage", fmt.Sprintf("%.0f%%", coverage*100)).Info("Current embedding coverage")

	if !embedForce && coverage >= cfg.Embedding.CoverageThreshold {
		logger.Info("Coverage above threshold, nothing to do (use --force to recompute)")
		return nil
	}

	vectors, err := application.embedding.Recompute(ctx, g)
	if err != nil {
		return fmt.Errorf("recompute embeddings: %w", err)
	}

	logger.WithField("nodes", len(vectors)).Info("Embeddings recomputed")
	return nil
}
