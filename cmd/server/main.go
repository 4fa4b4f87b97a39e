package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oshikatsu-collection/oshidata/internal/api"
	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/scheduler"
	"github.com/oshikatsu-collection/oshidata/internal/service"
	"github.com/oshikatsu-collection/oshidata/internal/store"
	"github.com/oshikatsu-collection/oshidata/internal/worker"
	"github.com/oshikatsu-collection/oshidata/internal/youtube"
	"github.com/oshikatsu-collection/oshidata/pkg/rss"
)

func main() {
	// 1. Load Config
	if err := config.LoadConfig("."); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.AppConfig
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. Setup Gin Mode
	gin.SetMode(cfg.Server.Mode)

	st, err := store.Open(cfg)
	if err != nil {
		logger.L().Fatalf("Server: open store: %v", err)
	}
	logger.L().Infof("Server: using %s store", cfg.Database.Driver)

	bus := event.GlobalBus
	importOpts := service.ImportOptions{
		MaxVideos:     cfg.YouTube.MaxVideos,
		IncludeShorts: cfg.YouTube.IncludeShorts,
	}

	var importer *service.YouTubeImporter
	if cfg.YouTube.APIKey != "" {
		importer = service.NewYouTubeImporter(st, youtube.NewClient(cfg.YouTube.APIKey, cfg.YouTube.RequestsPerSecond), bus)
		importer.Concurrency = cfg.YouTube.Concurrency
		importer.Feed = rss.NewReader()
	} else {
		logger.L().Warn("Server: YOUTUBE_API_KEY not set, sync endpoints and scheduler are disabled")
	}

	// 导入完成后自动去重
	dw := worker.NewDedupWorker(bus, service.NewDeduper(st, bus))
	dw.Start()
	defer dw.Stop()

	// Start Scheduler
	if cfg.Scheduler.Enabled && importer != nil {
		scheduled := importOpts
		scheduled.FeedPrecheck = cfg.YouTube.FeedPrecheck
		sch, err := scheduler.NewManager(cfg.Scheduler.YouTubeSync, importer, scheduled)
		if err != nil {
			logger.L().Fatalf("Server: scheduler: %v", err)
		}
		sch.Start()
		defer sch.Stop()
	}

	srv := api.NewServer(st, api.Options{
		Importer:       importer,
		Assumptions:    service.AssumptionsFromConfig(cfg.Revenue),
		Bus:            bus,
		AdminTokenHash: cfg.Server.AdminTokenHash,
		ImportOptions:  importOpts,
	})
	defer srv.Wait()

	r := gin.New()
	r.Use(gin.Recovery())
	srv.InitRoutes(r)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.L().Infof("Server: listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Errorf("Server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.L().Info("Server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.L().Errorf("Server: shutdown: %v", err)
	}
}
