package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	YouTube   YouTubeConfig   `mapstructure:"youtube"`
	TMDB      TMDBConfig      `mapstructure:"tmdb"`
	Affiliate AffiliateConfig `mapstructure:"affiliate"`
	Revenue   RevenueConfig   `mapstructure:"revenue"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Seeds     SeedsConfig     `mapstructure:"seeds"`
	Backup    BackupConfig    `mapstructure:"backup"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug or release
	// bcrypt hash of the admin token; POST routes are closed when empty
	AdminTokenHash string `mapstructure:"admin_token_hash"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // supabase, postgres or sqlite
	Path   string `mapstructure:"path"`   // sqlite file
	DSN    string `mapstructure:"dsn"`    // postgres connection string
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

type SupabaseConfig struct {
	URL            string `mapstructure:"url"`
	ServiceRoleKey string `mapstructure:"service_role_key"`
}

type YouTubeConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MaxVideos         int     `mapstructure:"max_videos"`
	IncludeShorts     bool    `mapstructure:"include_shorts"`
	Concurrency       int     `mapstructure:"concurrency"`
	// check the public channel feed before spending quota
	FeedPrecheck bool `mapstructure:"feed_precheck"`
}

type TMDBConfig struct {
	Token             string  `mapstructure:"token"`
	Language          string  `mapstructure:"language"`
	Proxy             string  `mapstructure:"proxy"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type AffiliateConfig struct {
	ValueCommerceSID string `mapstructure:"valuecommerce_sid"`
	ValueCommercePID string `mapstructure:"valuecommerce_pid"`
	LinkSwitch       bool   `mapstructure:"linkswitch"`
}

// RevenueConfig holds the assumptions behind the affiliate revenue estimate.
type RevenueConfig struct {
	BaseMonthlyViews float64 `mapstructure:"base_monthly_views"`
	ViewsPerEpisode  float64 `mapstructure:"views_per_episode"`
	ClickThroughRate float64 `mapstructure:"click_through_rate"`
	ConversionRate   float64 `mapstructure:"conversion_rate"`
	CommissionYen    float64 `mapstructure:"commission_yen"`
}

type SchedulerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	YouTubeSync string `mapstructure:"youtube_sync"`
}

type SeedsConfig struct {
	Celebrities string `mapstructure:"celebrities"`
	Locations   string `mapstructure:"locations"`
}

type BackupConfig struct {
	Dir string   `mapstructure:"dir"`
	R2  R2Config `mapstructure:"r2"`
}

// R2Config points at a Cloudflare R2 (or any S3 compatible) bucket.
type R2Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// Enabled reports whether uploads can be attempted.
func (c R2Config) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

var AppConfig *Config

func LoadConfig(configPath string) error {
	// .env.local wins over .env, matching the web app's convention
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	v := viper.New()

	// 默认值
	v.SetDefault("server.port", 8307)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "supabase")
	v.SetDefault("database.path", "data/oshidata.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("youtube.requests_per_second", 5.0)
	v.SetDefault("youtube.max_videos", 200)
	v.SetDefault("youtube.include_shorts", false)
	v.SetDefault("youtube.concurrency", 2)
	v.SetDefault("youtube.feed_precheck", true)
	v.SetDefault("tmdb.language", "ja-JP")
	v.SetDefault("tmdb.requests_per_second", 20.0)
	v.SetDefault("affiliate.linkswitch", true)
	v.SetDefault("revenue.base_monthly_views", 120.0)
	v.SetDefault("revenue.views_per_episode", 80.0)
	v.SetDefault("revenue.click_through_rate", 0.03)
	v.SetDefault("revenue.conversion_rate", 0.05)
	v.SetDefault("revenue.commission_yen", 200.0)
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.youtube_sync", "@every 6h")
	v.SetDefault("seeds.celebrities", "data/seeds/celebrities.yaml")
	v.SetDefault("seeds.locations", "data/seeds/locations.yaml")
	v.SetDefault("backup.dir", "data/backups")
	v.SetDefault("backup.r2.prefix", "oshidata/")

	// 配置文件路径
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}

	// 环境变量替换 (使用 OSHI_ 前缀)
	// 比如 OSHI_SERVER_PORT=9090
	v.SetEnvPrefix("OSHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names shared with the Next.js app and the old scripts
	_ = v.BindEnv("supabase.url", "OSHI_SUPABASE_URL", "SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL")
	_ = v.BindEnv("supabase.service_role_key", "OSHI_SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_ROLE_KEY")
	_ = v.BindEnv("youtube.api_key", "OSHI_YOUTUBE_API_KEY", "YOUTUBE_API_KEY")
	_ = v.BindEnv("tmdb.token", "OSHI_TMDB_TOKEN", "TMDB_API_TOKEN", "TMDB_ACCESS_TOKEN")
	_ = v.BindEnv("database.dsn", "OSHI_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("backup.r2.endpoint", "OSHI_BACKUP_R2_ENDPOINT", "R2_ENDPOINT")
	_ = v.BindEnv("backup.r2.access_key", "OSHI_BACKUP_R2_ACCESS_KEY", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("backup.r2.secret_key", "OSHI_BACKUP_R2_SECRET_KEY", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("backup.r2.bucket", "OSHI_BACKUP_R2_BUCKET", "R2_BUCKET")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	AppConfig = cfg

	return nil
}

// Validate checks that the selected database driver has what it needs.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "supabase":
		if c.Supabase.URL == "" || c.Supabase.ServiceRoleKey == "" {
			return fmt.Errorf("supabase driver requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("postgres driver requires database.dsn or DATABASE_URL")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("sqlite driver requires database.path")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}
