package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/agriassist/internal/embedding"
	"github.com/raphaelgruber/agriassist/internal/service"
	"github.com/spf13/cobra"
)

var (
	buildDryRun     bool
	buildNoProgress bool
	buildBatchSize  int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the vector index from advisory records",
	Long: `Build the vector index from the advisory records file.

Every record is validated and encoded into a document, embedded with the
configured embedding provider and saved as a snapshot directory. A failed
build leaves any existing index untouched.

Examples:
  agriassist build
  agriassist build --data data.json --index agri_index
  agriassist build --dry-run
  AGRI_EMBED_PROVIDER=openai agriassist build --batch-size 500`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildDryRun, "dry-run", false, "validate and encode records without embedding")
	buildCmd.Flags().BoolVar(&buildNoProgress, "no-progress", false, "disable the interactive progress bar")
	buildCmd.Flags().IntVar(&buildBatchSize, "batch-size", 0, "documents per embedding request (overrides AGRI_EMBED_BATCH_SIZE)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if buildBatchSize > 0 {
		cfg.EmbedBatchSize = buildBatchSize
	}

	embedder, err := embedding.New(service.EmbedderConfig(cfg))
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}

	opts := service.BuildOptions{
		DataFile:  cfg.DataFile,
		IndexDir:  cfg.IndexDir,
		BatchSize: cfg.EmbedBatchSize,
		DryRun:    buildDryRun,
	}

	if buildNoProgress || buildDryRun {
		res, err := service.BuildIndex(cmd.Context(), embedder, opts, logger)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), buildSummary(defaultTheme, res))
		return nil
	}

	_, err = RunBuildProgress(func(ctx context.Context, onProgress func(done, total int)) (*service.BuildResult, error) {
		opts.Progress = onProgress
		return service.BuildIndex(ctx, embedder, opts, logger)
	})
	return err
}
