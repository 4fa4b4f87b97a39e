package cli

import (
	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/service"
	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert celebrities or locations from YAML seed files",
}

var seedCelebritiesCmd = &cobra.Command{
	Use:   "celebrities",
	Short: "Seed celebrities (channel stats are fetched when YOUTUBE_API_KEY is set)",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := seedFile
		if path == "" {
			path = config.AppConfig.Seeds.Celebrities
		}
		seeds, err := service.LoadCelebritySeeds(path)
		if err != nil {
			return err
		}
		st, err := dataStore()
		if err != nil {
			return err
		}

		var yt service.YouTubeAPI
		if client, err := youtubeClient(); err == nil {
			yt = client
		} else {
			logger.L().Warnf("Seed: %v, channel stats are skipped", err)
		}

		res, err := service.NewCelebritySeeder(st, yt).Seed(cmd.Context(), seeds, dryRun)
		if res != nil {
			if perr := printer(cmd).CelebritySeed(res, dryRun); perr != nil {
				return perr
			}
		}
		return err
	},
}

var seedLocationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Seed locations and their episode links",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := seedFile
		if path == "" {
			path = config.AppConfig.Seeds.Locations
		}
		seeds, err := service.LoadLocationSeeds(path)
		if err != nil {
			return err
		}
		st, err := dataStore()
		if err != nil {
			return err
		}
		res, err := service.NewLocationSeeder(st, affiliateBuilder(), event.GlobalBus).Seed(cmd.Context(), seeds, dryRun)
		if res != nil {
			if perr := printer(cmd).LocationSeed(res, dryRun); perr != nil {
				return perr
			}
		}
		return err
	},
}

func init() {
	seedCmd.PersistentFlags().StringVarP(&seedFile, "file", "f", "", "seed file (default from seeds.* config)")
	seedCmd.AddCommand(seedCelebritiesCmd, seedLocationsCmd)
	rootCmd.AddCommand(seedCmd)
}
