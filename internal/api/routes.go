package api

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/service"
	"github.com/oshikatsu-collection/oshidata/internal/store"
)

// Server holds the dependencies of the admin API handlers.
type Server struct {
	store    store.Store
	importer *service.YouTubeImporter // nil when no YouTube key is configured
	auditor  *service.Auditor
	revenue  *service.RevenueEstimator
	bus      event.Bus

	adminTokenHash string
	importOpts     service.ImportOptions
	syncTimeout    time.Duration

	jobs    sync.WaitGroup
	syncing sync.Map // slug -> struct{}
}

type Options struct {
	Importer       *service.YouTubeImporter
	Assumptions    service.Assumptions
	Bus            event.Bus
	AdminTokenHash string
	ImportOptions  service.ImportOptions
}

func NewServer(st store.Store, opts Options) *Server {
	bus := opts.Bus
	if bus == nil {
		bus = event.GlobalBus
	}
	return &Server{
		store:          st,
		importer:       opts.Importer,
		auditor:        service.NewAuditor(st),
		revenue:        service.NewRevenueEstimator(st, opts.Assumptions),
		bus:            bus,
		adminTokenHash: opts.AdminTokenHash,
		importOpts:     opts.ImportOptions,
		syncTimeout:    30 * time.Minute,
	}
}

func (s *Server) InitRoutes(r *gin.Engine) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", s.HealthHandler)
		apiGroup.GET("/stats", s.StatsHandler)
		apiGroup.GET("/events", s.SSEHandler)

		apiGroup.GET("/celebrities", s.ListCelebritiesHandler)
		apiGroup.GET("/celebrities/:slug/episodes", s.CelebrityEpisodesHandler)
		apiGroup.GET("/locations", s.ListLocationsHandler)

		// Reports
		apiGroup.GET("/reports/quality", s.QualityReportHandler)
		apiGroup.GET("/reports/revenue", s.RevenueReportHandler)

		admin := apiGroup.Group("", AdminMiddleware(s.adminTokenHash))
		admin.POST("/sync/youtube/:slug", s.SyncYouTubeHandler)
	}
}

// Wait blocks until background sync jobs have finished.
func (s *Server) Wait() {
	s.jobs.Wait()
}

func (s *Server) background(slug string, fn func(ctx context.Context)) bool {
	if _, busy := s.syncing.LoadOrStore(slug, struct{}{}); busy {
		return false
	}
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		defer s.syncing.Delete(slug)
		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		defer cancel()
		fn(ctx)
	}()
	return true
}
