package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/api"
	"github.com/oshikatsu-collection/oshidata/internal/backup"
	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/spf13/cobra"
)

var (
	backupUpload bool
	restoreKey   string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the dataset into a local sqlite file (optionally upload to R2)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var remote *backup.Remote
		if backupUpload {
			r, err := backup.NewR2(cmd.Context(), config.AppConfig.Backup.R2)
			if err != nil {
				return err
			}
			remote = r
		}
		st, err := dataStore()
		if err != nil {
			return err
		}
		dir := config.AppConfig.Backup.Dir
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		path := filepath.Join(dir, backup.FileName(time.Now()))
		stats, err := backup.Snapshot(cmd.Context(), st, path)
		if err != nil {
			return err
		}
		if err := printer(cmd).Backup(stats, "Snapshot", false); err != nil {
			return err
		}

		if remote == nil {
			return nil
		}
		key, err := remote.Upload(cmd.Context(), path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "uploaded %s\n", key)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots stored in R2",
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, err := backup.NewR2(cmd.Context(), config.AppConfig.Backup.R2)
		if err != nil {
			return err
		}
		files, err := remote.List(cmd.Context())
		if err != nil {
			return err
		}
		return printer(cmd).RemoteBackups(files)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [file]",
	Short: "Upsert rows from a snapshot file (or --key from R2) into the store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		switch {
		case restoreKey != "":
			remote, err := backup.NewR2(cmd.Context(), config.AppConfig.Backup.R2)
			if err != nil {
				return err
			}
			path, err = remote.Download(cmd.Context(), restoreKey, config.AppConfig.Backup.Dir)
			if err != nil {
				return err
			}
		case len(args) == 1:
			path = args[0]
		default:
			return fmt.Errorf("give a snapshot file or --key")
		}

		st, err := dataStore()
		if err != nil {
			return err
		}
		stats, err := backup.Restore(cmd.Context(), path, st, dryRun)
		if err != nil {
			return err
		}
		return printer(cmd).Backup(stats, "Restore", dryRun)
	},
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <token>",
	Short: "Print the bcrypt hash to put in server.admin_token_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := api.HashToken(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"admin_token_hash": h})
		}
		fmt.Fprintln(cmd.OutOrStdout(), h)
		return nil
	},
}

func init() {
	backupCmd.Flags().BoolVar(&backupUpload, "upload", false, "upload the snapshot to R2 (backup.r2.*)")
	restoreCmd.Flags().StringVar(&restoreKey, "key", "", "download this R2 key first")

	backupCmd.AddCommand(backupListCmd)
	rootCmd.AddCommand(backupCmd, restoreCmd, hashTokenCmd)
}
