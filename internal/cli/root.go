package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oshikatsu-collection/oshidata/internal/affiliate"
	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/report"
	"github.com/oshikatsu-collection/oshidata/internal/store"
	"github.com/oshikatsu-collection/oshidata/internal/tmdb"
	"github.com/oshikatsu-collection/oshidata/internal/youtube"
	"github.com/spf13/cobra"
)

var (
	cfgDir     string
	dryRun     bool
	jsonOutput bool
	logLevel   string

	// set by tests to bypass store.Open
	openStore = store.Open
)

var rootCmd = &cobra.Command{
	Use:   "oshidata",
	Short: "Data maintenance for the oshikatsu collection",
	Long: `oshidata seeds, imports, deduplicates, cleans and audits the
celebrity / episode / location dataset behind the oshikatsu collection site.

Examples:
  oshidata seed celebrities
  oshidata import youtube --slug yoninochannel --max 50
  oshidata dedup episodes --dry-run
  oshidata audit --json`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(cfgDir); err != nil {
			return err
		}
		level := config.AppConfig.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		return logger.Init(level, config.AppConfig.Log.Format)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// NewRootCommand exposes the tree for tests.
func NewRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "directory holding config.yaml (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "compute and report changes without writing")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print reports as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func printer(cmd *cobra.Command) *report.Printer {
	return report.New(cmd.OutOrStdout(), jsonOutput)
}

func dataStore() (store.Store, error) {
	st, err := openStore(config.AppConfig)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func youtubeClient() (*youtube.Client, error) {
	cfg := config.AppConfig.YouTube
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("YOUTUBE_API_KEY is not set")
	}
	return youtube.NewClient(cfg.APIKey, cfg.RequestsPerSecond), nil
}

func tmdbClient() (*tmdb.Client, error) {
	cfg := config.AppConfig.TMDB
	if cfg.Token == "" {
		return nil, fmt.Errorf("TMDB_API_TOKEN is not set")
	}
	c := tmdb.NewClient(cfg.Token, cfg.Proxy)
	c.SetRateLimit(cfg.RequestsPerSecond)
	if cfg.Language != "" {
		c.Language = cfg.Language
	}
	return c, nil
}

func affiliateBuilder() affiliate.Builder {
	return affiliate.NewBuilder(config.AppConfig.Affiliate)
}
