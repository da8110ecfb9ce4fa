package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/usecase"
	"github.com/ainaju618-blip/koreanewskorea-sub009/pkg/logger"
)

// Scraper starts extraction runs in the background.
type Scraper interface {
	Start(ctx context.Context, req usecase.LaunchRequest) (string, error)
}

// RunLogs is the read and admin side of the run-log store.
type RunLogs interface {
	GetRunLog(ctx context.Context, id string) (domain.RunLog, error)
	ListRunLogs(ctx context.Context, filter domain.RunLogFilter) ([]domain.RunLog, error)
	ResetStaleRunLogs(ctx context.Context, olderThan time.Time, message string) (int64, error)
}

// Articles drives the rewrite and verification pipeline.
type Articles interface {
	RewriteAndVerify(ctx context.Context, id string) (usecase.RewriteOutcome, error)
	ProcessDrafts(ctx context.Context, batch usecase.DraftBatch) (usecase.BatchReport, error)
}

// Scheduler controls the test sweep schedule.
type Scheduler interface {
	Config(ctx context.Context) (domain.ScheduleConfig, error)
	SaveConfig(ctx context.Context, cfg domain.ScheduleConfig) (domain.ScheduleConfig, error)
	RunSweep(ctx context.Context, trigger string) (domain.SweepSummary, error)
	StartSweep(ctx context.Context, trigger string) error
	History(ctx context.Context, limit int) ([]domain.SweepRecord, error)
}

// Feed serves personalized article feeds.
type Feed interface {
	Feed(ctx context.Context, req usecase.FeedRequest) ([]domain.ScoredArticle, error)
	RecordView(ctx context.Context, viewerID, articleID string) error
	RankSettings(ctx context.Context) (usecase.RankSettings, error)
	SaveRankSettings(ctx context.Context, settings usecase.RankSettings) error
}

// ModelControl stops the local model server.
type ModelControl interface {
	Stop(ctx context.Context) (bool, error)
}

// Deps collects every use case the API exposes.
type Deps struct {
	Scraper   Scraper
	RunLogs   RunLogs
	Articles  Articles
	Scheduler Scheduler
	Feed      Feed
	Model     ModelControl
	Logger    *slog.Logger
	Now       func() time.Time
}

// Handler owns the gin engine and its routes.
type Handler struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
	engine *gin.Engine
}

// New builds the router.
func New(deps Deps) *Handler {
	h := &Handler{deps: deps, logger: deps.Logger, now: deps.Now}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), logger.Requests(h.logger))
	h.engine = engine
	h.routes()
	return h
}

// ServeHTTP lets the handler be mounted on any http.Server.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.engine.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := h.engine.Group("/api")
	api.POST("/scrape", h.startScrape)

	api.GET("/runs", h.listRuns)
	api.GET("/runs/:id", h.getRun)
	api.POST("/runs/reset-stale", h.resetStaleRuns)

	api.POST("/articles/process-drafts", h.processDrafts)
	api.POST("/articles/:id/rewrite", h.rewriteArticle)
	api.POST("/articles/:id/view", h.recordView)

	api.GET("/scheduler/config", h.getSchedulerConfig)
	api.POST("/scheduler/config", h.saveSchedulerConfig)
	api.POST("/scheduler/run", h.runManualTest)
	api.GET("/scheduler/history", h.sweepHistory)

	api.GET("/feed", h.personalizedFeed)
	api.GET("/feed/settings", h.getRankSettings)
	api.POST("/feed/settings", h.saveRankSettings)

	api.POST("/model/stop", h.stopModel)
}

// statusFor maps use-case sentinels onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrUnknownRegion),
		errors.Is(err, usecase.ErrInvalidDayRange),
		errors.Is(err, usecase.ErrInvalidSchedule),
		errors.Is(err, usecase.ErrInvalidSettings),
		errors.Is(err, usecase.ErrEmptySource):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrSweepInProgress),
		errors.Is(err, usecase.ErrAlreadyProcessed),
		errors.Is(err, usecase.ErrArticleInFlight),
		errors.Is(err, domain.ErrStaleWrite):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrEmptyGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func unavailable(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": what + " is not configured"})
}
