package cli

import (
	"fmt"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/service"
	"github.com/oshikatsu-collection/oshidata/pkg/rss"
	"github.com/spf13/cobra"
)

var (
	importSlug   string
	importMax    int
	importSince  string
	importShorts bool
	importFeed   bool
	importQuery  string
	importShow   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import episodes from YouTube or TMDB",
}

var importYouTubeCmd = &cobra.Command{
	Use:   "youtube",
	Short: "Import uploads of one celebrity (--slug) or every active celebrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := importOptions(cmd)
		if err != nil {
			return err
		}
		client, err := youtubeClient()
		if err != nil {
			return err
		}
		st, err := dataStore()
		if err != nil {
			return err
		}
		imp := service.NewYouTubeImporter(st, client, event.GlobalBus)
		imp.Concurrency = config.AppConfig.YouTube.Concurrency
		imp.Feed = rss.NewReader()

		var results []service.ImportResult
		if importSlug != "" {
			celeb, err := st.GetCelebrityBySlug(cmd.Context(), importSlug)
			if err != nil {
				return fmt.Errorf("celebrity %q: %w", importSlug, err)
			}
			res, err := imp.ImportCelebrity(cmd.Context(), *celeb, opts)
			if err != nil {
				return err
			}
			results = append(results, *res)
		} else {
			results, err = imp.ImportAll(cmd.Context(), opts)
			if err != nil {
				// partial results are still worth printing
				_ = printer(cmd).Imports(model.PlatformYouTube, results, dryRun)
				return err
			}
		}
		return printer(cmd).Imports(model.PlatformYouTube, results, dryRun)
	},
}

var importTMDBCmd = &cobra.Command{
	Use:   "tmdb",
	Short: "Import every episode of the TV show linked to --slug (or found with --show)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importSlug == "" {
			return fmt.Errorf("--slug is required")
		}
		client, err := tmdbClient()
		if err != nil {
			return err
		}
		st, err := dataStore()
		if err != nil {
			return err
		}
		celeb, err := st.GetCelebrityBySlug(cmd.Context(), importSlug)
		if err != nil {
			return fmt.Errorf("celebrity %q: %w", importSlug, err)
		}
		imp := service.NewTMDBImporter(st, client, event.GlobalBus)
		if importShow != "" {
			if _, err := imp.LinkShow(cmd.Context(), celeb, importShow, dryRun); err != nil {
				return err
			}
		}
		res, err := imp.ImportShow(cmd.Context(), *celeb, dryRun)
		if err != nil {
			return err
		}
		return printer(cmd).Imports(model.PlatformTMDB, []service.ImportResult{*res}, dryRun)
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill missing celebrity fields from external sources",
}

var enrichTMDBCmd = &cobra.Command{
	Use:   "tmdb",
	Short: "Look up TMDB person ids and profile images for celebrities missing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := tmdbClient()
		if err != nil {
			return err
		}
		st, err := dataStore()
		if err != nil {
			return err
		}
		n, err := service.NewTMDBImporter(st, client, nil).EnrichAll(cmd.Context(), dryRun)
		if err != nil {
			return err
		}
		return printer(cmd).Enrich(n, dryRun)
	},
}

func importOptions(cmd *cobra.Command) (service.ImportOptions, error) {
	cfg := config.AppConfig.YouTube
	opts := service.ImportOptions{
		MaxVideos:     cfg.MaxVideos,
		IncludeShorts: cfg.IncludeShorts,
		DryRun:        dryRun,
		Query:         importQuery,
	}
	if cmd.Flags().Changed("max") {
		opts.MaxVideos = importMax
	}
	if cmd.Flags().Changed("shorts") {
		opts.IncludeShorts = importShorts
	}
	// an explicit --slug always hits the API unless --feed-check is given
	opts.FeedPrecheck = cfg.FeedPrecheck && importSlug == "" && importQuery == ""
	if cmd.Flags().Changed("feed-check") {
		opts.FeedPrecheck = importFeed
	}
	if importSince != "" {
		t, err := time.Parse("2006-01-02", importSince)
		if err != nil {
			return opts, fmt.Errorf("--since wants YYYY-MM-DD: %w", err)
		}
		opts.Since = t
	}
	return opts, nil
}

func init() {
	importCmd.PersistentFlags().StringVar(&importSlug, "slug", "", "celebrity slug")
	importYouTubeCmd.Flags().IntVar(&importMax, "max", 0, "max videos per channel, 0 = all (default youtube.max_videos)")
	importYouTubeCmd.Flags().StringVar(&importSince, "since", "", "skip videos published before YYYY-MM-DD")
	importYouTubeCmd.Flags().BoolVar(&importShorts, "shorts", false, "include Shorts (default youtube.include_shorts)")
	importYouTubeCmd.Flags().BoolVar(&importFeed, "feed-check", false, "skip channels whose RSS feed shows nothing new (default youtube.feed_precheck)")
	importYouTubeCmd.Flags().StringVar(&importQuery, "query", "", "only import channel videos matching this search (max 50)")
	importTMDBCmd.Flags().StringVar(&importShow, "show", "", "search TMDB for this show title and link it to --slug first")

	importCmd.AddCommand(importYouTubeCmd, importTMDBCmd)
	enrichCmd.AddCommand(enrichTMDBCmd)
	rootCmd.AddCommand(importCmd, enrichCmd)
}
