package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/db"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/store"
	"gorm.io/gorm"
)

const filePrefix = "oshidata_backup_"

// FileName is the snapshot name for a backup taken at t.
func FileName(t time.Time) string {
	return filePrefix + t.Format("20060102_150405") + ".db"
}

type Stats struct {
	store.Counts
	Path         string `json:"path"`
	SizeBytes    int64  `json:"size_bytes"`
	LastModified string `json:"last_modified"`
}

// Snapshot copies every row of src into a new sqlite file at path.
func Snapshot(ctx context.Context, src store.Store, path string) (*Stats, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("snapshot %s already exists", path)
	}
	gdb, err := db.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer closeDB(gdb)

	if err := copyRows(ctx, src, store.NewGormStore(gdb)); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return inspect(ctx, gdb, path)
}

// Inspect reports what a snapshot file holds without touching the live store.
func Inspect(ctx context.Context, path string) (*Stats, error) {
	gdb, err := openExisting(path)
	if err != nil {
		return nil, err
	}
	defer closeDB(gdb)
	return inspect(ctx, gdb, path)
}

// Restore upserts the rows of a snapshot into dst. Rows missing from the
// snapshot are left alone.
func Restore(ctx context.Context, path string, dst store.Store, dryRun bool) (*Stats, error) {
	gdb, err := openExisting(path)
	if err != nil {
		return nil, err
	}
	defer closeDB(gdb)

	stats, err := inspect(ctx, gdb, path)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return stats, nil
	}
	if err := copyRows(ctx, store.NewGormStore(gdb), dst); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	logger.L().Infof("Backup: restored %d celebrities, %d episodes, %d locations, %d links from %s",
		stats.Celebrities, stats.Episodes, stats.Locations, stats.EpisodeLocations, path)
	return stats, nil
}

// copyRows keeps parents before children so foreign keys on Supabase hold.
func copyRows(ctx context.Context, src, dst store.Store) error {
	celebs, err := src.ListCelebrities(ctx)
	if err != nil {
		return err
	}
	if err := dst.UpsertCelebrities(ctx, celebs); err != nil {
		return err
	}

	eps, err := src.ListEpisodes(ctx, store.EpisodeFilter{})
	if err != nil {
		return err
	}
	if err := dst.UpsertEpisodes(ctx, eps); err != nil {
		return err
	}

	locs, err := src.ListLocations(ctx)
	if err != nil {
		return err
	}
	if err := dst.UpsertLocations(ctx, locs); err != nil {
		return err
	}

	links, err := src.ListEpisodeLocations(ctx)
	if err != nil {
		return err
	}
	return dst.UpsertEpisodeLocations(ctx, links)
}

func openExisting(path string) (*gorm.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("backup file %s not found", path)
		}
		return nil, err
	}
	gdb, err := db.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("invalid backup file: %w", err)
	}
	return gdb, nil
}

func inspect(ctx context.Context, gdb *gorm.DB, path string) (*Stats, error) {
	counts, err := store.NewGormStore(gdb).Counts(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Counts: counts, Path: path}
	if info, err := os.Stat(path); err == nil {
		stats.SizeBytes = info.Size()
		stats.LastModified = info.ModTime().Format("2006-01-02 15:04:05")
	}
	return stats, nil
}

func closeDB(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}
}
