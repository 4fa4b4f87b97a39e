package cli

import (
	"fmt"

	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/service"
	"github.com/spf13/cobra"
)

var (
	dedupCelebrity string
	auditStrict    bool
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Merge duplicate episodes or locations",
}

var dedupEpisodesCmd = &cobra.Command{
	Use:   "episodes",
	Short: "Merge episodes that point at the same video",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := dataStore()
		if err != nil {
			return err
		}
		opts := service.DedupOptions{DryRun: dryRun}
		if dedupCelebrity != "" {
			celeb, err := st.GetCelebrityBySlug(cmd.Context(), dedupCelebrity)
			if err != nil {
				return fmt.Errorf("celebrity %q: %w", dedupCelebrity, err)
			}
			opts.CelebrityID = celeb.ID
		}
		r, err := service.NewDeduper(st, event.GlobalBus).DedupEpisodes(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return printer(cmd).Dedup(r)
	},
}

var dedupLocationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Merge locations with the same tabelog page, name and address, or coordinates",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := dataStore()
		if err != nil {
			return err
		}
		r, err := service.NewDeduper(st, event.GlobalBus).DedupLocations(cmd.Context(), service.DedupOptions{DryRun: dryRun})
		if err != nil {
			return err
		}
		return printer(cmd).Dedup(r)
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Normalize location fields and drop orphan episode links",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := dataStore()
		if err != nil {
			return err
		}
		r, err := service.NewCleaner(st, affiliateBuilder()).Run(cmd.Context(), dryRun)
		if err != nil {
			return err
		}
		return printer(cmd).Cleanup(r)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Score data quality and list issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := dataStore()
		if err != nil {
			return err
		}
		r, err := service.NewAuditor(st).Audit(cmd.Context())
		if err != nil {
			return err
		}
		if err := printer(cmd).Audit(r); err != nil {
			return err
		}
		if auditStrict && r.IssueCount() > 0 {
			return fmt.Errorf("audit found %d issues (grade %s)", r.IssueCount(), r.Grade)
		}
		return nil
	},
}

var revenueCmd = &cobra.Command{
	Use:   "revenue",
	Short: "Estimate monthly affiliate revenue",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := dataStore()
		if err != nil {
			return err
		}
		a := service.AssumptionsFromConfig(config.AppConfig.Revenue)
		r, err := service.NewRevenueEstimator(st, a).Estimate(cmd.Context())
		if err != nil {
			return err
		}
		return printer(cmd).Revenue(r)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Row counts per table",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := dataStore()
		if err != nil {
			return err
		}
		c, err := st.Counts(cmd.Context())
		if err != nil {
			return err
		}
		return printer(cmd).Stats(c)
	},
}

func init() {
	dedupEpisodesCmd.Flags().StringVar(&dedupCelebrity, "celebrity", "", "only this celebrity slug")
	auditCmd.Flags().BoolVar(&auditStrict, "strict", false, "exit non-zero when any issue is found")

	dedupCmd.AddCommand(dedupEpisodesCmd, dedupLocationsCmd)
	rootCmd.AddCommand(dedupCmd, cleanupCmd, auditCmd, revenueCmd, statsCmd)
}
