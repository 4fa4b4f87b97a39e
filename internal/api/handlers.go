package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
	"github.com/oshikatsu-collection/oshidata/internal/model"
	"github.com/oshikatsu-collection/oshidata/internal/store"
)

func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) StatsHandler(c *gin.Context) {
	counts, err := s.store.Counts(c.Request.Context())
	if err != nil {
		internalError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// ListCelebritiesHandler supports ?status=active|inactive.
func (s *Server) ListCelebritiesHandler(c *gin.Context) {
	celebs, err := s.store.ListCelebrities(c.Request.Context())
	if err != nil {
		internalError(c, "list celebrities", err)
		return
	}
	if status := c.Query("status"); status != "" {
		filtered := celebs[:0]
		for _, cel := range celebs {
			if cel.Status == status {
				filtered = append(filtered, cel)
			}
		}
		celebs = filtered
	}
	if celebs == nil {
		celebs = []model.Celebrity{}
	}
	c.JSON(http.StatusOK, celebs)
}

func (s *Server) CelebrityEpisodesHandler(c *gin.Context) {
	celeb, ok := s.lookupCelebrity(c)
	if !ok {
		return
	}
	eps, err := s.store.ListEpisodes(c.Request.Context(), store.EpisodeFilter{CelebrityID: celeb.ID})
	if err != nil {
		internalError(c, "list episodes", err)
		return
	}
	if eps == nil {
		eps = []model.Episode{}
	}
	c.JSON(http.StatusOK, gin.H{"celebrity": celeb, "episodes": eps})
}

func (s *Server) ListLocationsHandler(c *gin.Context) {
	locs, err := s.store.ListLocations(c.Request.Context())
	if err != nil {
		internalError(c, "list locations", err)
		return
	}
	if category := c.Query("category"); category != "" {
		filtered := locs[:0]
		for _, l := range locs {
			if l.Category == category {
				filtered = append(filtered, l)
			}
		}
		locs = filtered
	}
	if locs == nil {
		locs = []model.Location{}
	}
	c.JSON(http.StatusOK, locs)
}

func (s *Server) QualityReportHandler(c *gin.Context) {
	report, err := s.auditor.Audit(c.Request.Context())
	if err != nil {
		internalError(c, "audit", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) RevenueReportHandler(c *gin.Context) {
	report, err := s.revenue.Estimate(c.Request.Context())
	if err != nil {
		internalError(c, "revenue", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SyncYouTubeHandler starts a background import for one celebrity.
func (s *Server) SyncYouTubeHandler(c *gin.Context) {
	if s.importer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "youtube api key not configured"})
		return
	}
	celeb, ok := s.lookupCelebrity(c)
	if !ok {
		return
	}
	if celeb.YouTubeChannelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "celebrity has no youtube channel"})
		return
	}

	target := *celeb
	started := s.background(target.Slug, func(ctx context.Context) {
		res, err := s.importer.ImportCelebrity(ctx, target, s.importOpts)
		if err != nil {
			logger.L().Errorf("API: youtube sync for %s failed: %v", target.Slug, err)
			return
		}
		logger.L().Infof("API: youtube sync for %s done, new=%d updated=%d", target.Slug, res.New, res.Updated)
	})
	if !started {
		c.JSON(http.StatusConflict, gin.H{"error": "sync already running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "slug": target.Slug})
}

func (s *Server) lookupCelebrity(c *gin.Context) (*model.Celebrity, bool) {
	celeb, err := s.store.GetCelebrityBySlug(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "celebrity not found"})
		return nil, false
	}
	if err != nil {
		internalError(c, "get celebrity", err)
		return nil, false
	}
	return celeb, true
}

func internalError(c *gin.Context, op string, err error) {
	logger.L().Errorf("API: %s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
