package cli

import (
	"fmt"

	"github.com/raphaelgruber/agriassist/internal/db"
	"github.com/raphaelgruber/agriassist/internal/service"
	"github.com/spf13/cobra"
)

var publishBatchSize int

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the built index to SurrealDB",
	Long: `Publish copies the local index snapshot into SurrealDB, replacing any
previously published advisories. Run it after 'agriassist build', then set
AGRI_VECTOR_BACKEND=surrealdb to serve questions from the database.

Examples:
  agriassist publish
  SURREALDB_URL=ws://db:8000/rpc agriassist publish --batch-size 200`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().IntVar(&publishBatchSize, "batch-size", db.DefaultInsertBatch, "advisories per insert query")
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := db.NewClient(ctx, service.DBConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := client.Close(ctx); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	manifest, err := service.PublishIndex(ctx, client, cfg.IndexDir, publishBatchSize, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, defaultTheme.completedStyle().Render("✓ Index published"))
	fmt.Fprintf(out, "\n  Advisories:  %d\n", manifest.Count)
	fmt.Fprintf(out, "  Model:       %s\n", manifest.Model)
	fmt.Fprintf(out, "  Dimension:   %d\n", manifest.Dimension)
	fmt.Fprintf(out, "  Database:    %s/%s\n", cfg.SurrealDBNamespace, cfg.SurrealDBDatabase)
	return nil
}
