// Package cli provides the command-line interface for agriassist.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/agriassist/internal/config"
	"github.com/raphaelgruber/agriassist/internal/service"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose  bool
	envFile  string
	dataFile string
	indexDir string

	// Global config and logger
	cfg           config.Config
	logger        *slog.Logger
	closeLogger   func() error
	runtimeCloser func(context.Context) error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "agriassist",
	Short: "Agricultural advisory assistant",
	Long: `Agriassist answers farmers' questions from a knowledge base of
curated agricultural advisories (question, answer, region, topic).

Build the vector index once from the advisory records, then ask questions
directly, chat interactively, or connect to a running agriassist-server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		cfg = config.Load()
		if dataFile != "" {
			cfg.DataFile = dataFile
		}
		if indexDir != "" {
			cfg.IndexDir = indexDir
		}

		// Terminal output stays quiet unless --verbose; the log file gets everything.
		stderrLevel := slog.LevelWarn
		if verbose {
			stderrLevel = slog.LevelDebug
		}
		logger, closeLogger = config.SetupConsoleLogger(cfg.LogFile, stderrLevel, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

// cleanup runs after every command, including failed ones.
func cleanup() {
	if runtimeCloser != nil {
		if err := runtimeCloser(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close runtime: %v\n", err)
		}
		runtimeCloser = nil
	}
	if closeLogger != nil {
		_ = closeLogger()
		closeLogger = nil
	}
}

// newRuntime wires the online components from the loaded configuration.
func newRuntime(ctx context.Context) (*service.Runtime, error) {
	rt, err := service.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init runtime: %w", err)
	}
	runtimeCloser = rt.Close
	return rt, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnFinalize(cleanup)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	rootCmd.PersistentFlags().StringVar(&dataFile, "data", "", "advisory records file (overrides AGRI_DATA_FILE)")
	rootCmd.PersistentFlags().StringVar(&indexDir, "index", "", "index directory (overrides AGRI_INDEX_DIR)")

	// Add subcommands
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}
