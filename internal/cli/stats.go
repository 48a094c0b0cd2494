package cli

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/agriassist/internal/client"
	"github.com/spf13/cobra"
)

var (
	statsServerURL string
	statsSessionID string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server or session statistics",
	Long: `Show statistics from a running agriassist-server.

Without --session the server health and operation metrics are shown.
With --session the statistics of that conversation are shown.

Examples:
  agriassist stats --server http://localhost:8585
  agriassist stats --session 7f3c... --server http://localhost:8585`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsServerURL, "server", "", "agriassist-server URL (default $AGRI_SERVER_URL or "+client.DefaultURL+")")
	statsCmd.Flags().StringVar(&statsSessionID, "session", "", "show statistics for this session")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	c := client.New(statsServerURL)

	if statsSessionID != "" {
		stats, err := c.Statistics(ctx, statsSessionID)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
				return fmt.Errorf("session %s not found", statsSessionID)
			}
			return err
		}
		fmt.Fprint(out, formatStats(defaultTheme, *stats))
		return nil
	}

	health, err := c.Health(ctx)
	if err != nil {
		return err
	}
	snap, err := c.Metrics(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, defaultTheme.statusStyle().Render("agriassist-server "+health.Version))
	fmt.Fprintf(out, "Status:     %s\n", health.Status)
	fmt.Fprintf(out, "Index:      %s, %s (%d dims, %d advisories)\n",
		health.Index.Backend, health.Index.Model, health.Index.Dimension, health.Index.Documents)
	fmt.Fprintf(out, "Sessions:   %d\n", health.Sessions)
	fmt.Fprintf(out, "Audio:      %t\n", health.Transcription)
	fmt.Fprint(out, formatMetrics(*snap))
	return nil
}
