package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects gorm to sqlite (path, ":memory:" allowed) or postgres (dsn).
// sqlite databases are migrated; postgres is assumed to carry the Supabase schema.
func Open(driver, target string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	switch driver {
	case "sqlite":
		if target != ":memory:" {
			// 确保存储目录存在
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, fmt.Errorf("failed to create storage directory: %w", err)
			}
		}
		gdb, err := gorm.Open(sqlite.Open(target), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if target == ":memory:" {
			// every new connection would get its own empty database
			sqlDB, err := gdb.DB()
			if err != nil {
				return nil, err
			}
			sqlDB.SetMaxOpenConns(1)
		}
		if err := Migrate(gdb); err != nil {
			return nil, err
		}
		return gdb, nil

	case "postgres":
		gdb, err := gorm.Open(postgres.Open(target), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		return gdb, nil
	}
	return nil, fmt.Errorf("unsupported gorm driver %q", driver)
}

// Migrate creates the four tables when missing.
func Migrate(gdb *gorm.DB) error {
	// 自动迁移模式
	err := gdb.AutoMigrate(&model.Celebrity{}, &model.Episode{}, &model.Location{}, &model.EpisodeLocation{})
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
