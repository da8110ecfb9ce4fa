package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/usecase"
)

const (
	defaultStaleAfter   = 2 * time.Hour
	defaultStaleMessage = "reset by operator: run exceeded its expected lifetime"
)

type scrapeRequest struct {
	Region      string `json:"region" binding:"required"`
	DayRange    int    `json:"days"`
	DryRun      bool   `json:"dry_run"`
	MaxArticles int    `json:"max_articles"`
}

func (h *Handler) startScrape(c *gin.Context) {
	if h.deps.Scraper == nil {
		unavailable(c, "scraper")
		return
	}
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	id, err := h.deps.Scraper.Start(c.Request.Context(), usecase.LaunchRequest{
		Region:      req.Region,
		DayRange:    req.DayRange,
		DryRun:      req.DryRun,
		MaxArticles: req.MaxArticles,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_log_id": id})
}

func (h *Handler) getRun(c *gin.Context) {
	if h.deps.RunLogs == nil {
		unavailable(c, "run log store")
		return
	}
	log, err := h.deps.RunLogs.GetRunLog(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

func (h *Handler) listRuns(c *gin.Context) {
	if h.deps.RunLogs == nil {
		unavailable(c, "run log store")
		return
	}
	filter := domain.RunLogFilter{
		Region: c.Query("region"),
		Status: domain.RunStatus(c.Query("status")),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "since must be RFC3339")
			return
		}
		filter.Since = since
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	filter.Limit = limit

	logs, err := h.deps.RunLogs.ListRunLogs(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	if logs == nil {
		logs = []domain.RunLog{}
	}
	c.JSON(http.StatusOK, logs)
}

type resetStaleRequest struct {
	OlderThanMinutes int    `json:"older_than_minutes"`
	Message          string `json:"message"`
}

func (h *Handler) resetStaleRuns(c *gin.Context) {
	if h.deps.RunLogs == nil {
		unavailable(c, "run log store")
		return
	}
	var req resetStaleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if req.OlderThanMinutes < 0 {
		badRequest(c, "older_than_minutes must be non-negative")
		return
	}
	age := defaultStaleAfter
	if req.OlderThanMinutes > 0 {
		age = time.Duration(req.OlderThanMinutes) * time.Minute
	}
	if req.Message == "" {
		req.Message = defaultStaleMessage
	}

	n, err := h.deps.RunLogs.ResetStaleRunLogs(c.Request.Context(), h.now().Add(-age), req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": n})
}

func (h *Handler) rewriteArticle(c *gin.Context) {
	if h.deps.Articles == nil {
		unavailable(c, "article pipeline")
		return
	}
	outcome, err := h.deps.Articles.RewriteAndVerify(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *Handler) processDrafts(c *gin.Context) {
	if h.deps.Articles == nil {
		unavailable(c, "article pipeline")
		return
	}
	var batch usecase.DraftBatch
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&batch); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	report, err := h.deps.Articles.ProcessDrafts(c.Request.Context(), batch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) recordView(c *gin.Context) {
	if h.deps.Feed == nil {
		unavailable(c, "feed")
		return
	}
	viewer := c.Query("viewer")
	if err := h.deps.Feed.RecordView(c.Request.Context(), viewer, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getSchedulerConfig(c *gin.Context) {
	if h.deps.Scheduler == nil {
		unavailable(c, "scheduler")
		return
	}
	cfg, err := h.deps.Scheduler.Config(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) saveSchedulerConfig(c *gin.Context) {
	if h.deps.Scheduler == nil {
		unavailable(c, "scheduler")
		return
	}
	var cfg domain.ScheduleConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, err.Error())
		return
	}
	saved, err := h.deps.Scheduler.SaveConfig(c.Request.Context(), cfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// runManualTest starts a sweep in the background unless ?wait=true asks for
// the summary in the response.
func (h *Handler) runManualTest(c *gin.Context) {
	if h.deps.Scheduler == nil {
		unavailable(c, "scheduler")
		return
	}
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		summary, err := h.deps.Scheduler.RunSweep(c.Request.Context(), usecase.TriggerManual)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}
	if err := h.deps.Scheduler.StartSweep(c.Request.Context(), usecase.TriggerManual); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (h *Handler) sweepHistory(c *gin.Context) {
	if h.deps.Scheduler == nil {
		unavailable(c, "scheduler")
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	records, err := h.deps.Scheduler.History(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []domain.SweepRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) personalizedFeed(c *gin.Context) {
	if h.deps.Feed == nil {
		unavailable(c, "feed")
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	feed, err := h.deps.Feed.Feed(c.Request.Context(), usecase.FeedRequest{
		ViewerID: c.Query("viewer"),
		Region:   c.Query("region"),
		Limit:    limit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if feed == nil {
		feed = []domain.ScoredArticle{}
	}
	c.JSON(http.StatusOK, feed)
}

func (h *Handler) getRankSettings(c *gin.Context) {
	if h.deps.Feed == nil {
		unavailable(c, "feed")
		return
	}
	settings, err := h.deps.Feed.RankSettings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) saveRankSettings(c *gin.Context) {
	if h.deps.Feed == nil {
		unavailable(c, "feed")
		return
	}
	var settings usecase.RankSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.deps.Feed.SaveRankSettings(c.Request.Context(), settings); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) stopModel(c *gin.Context) {
	if h.deps.Model == nil {
		unavailable(c, "model control")
		return
	}
	stopped, err := h.deps.Model.Stop(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": stopped})
}

// queryInt reads an optional integer query parameter and answers 400 when it
// is malformed.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, key+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
