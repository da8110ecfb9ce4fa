package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

const (
	rankSettingKey   = "personalization_settings"
	defaultFeedLimit = 20
	maxFeedLimit     = 100
	feedOverFetch    = 2
)

// FeedDeps wires the personalized feed.
type FeedDeps struct {
	Articles ports.ArticleStore
	Settings ports.SettingsStore
	Boosts   ports.BoostStore
	Behavior ports.BehaviorStore
	Logger   *slog.Logger
	Now      func() time.Time
}

// FeedService assembles ranked feeds of published articles.
type FeedService struct {
	articles ports.ArticleStore
	settings ports.SettingsStore
	boosts   ports.BoostStore
	behavior ports.BehaviorStore
	logger   *slog.Logger
	now      func() time.Time
}

// FeedRequest is one personalized feed query.
type FeedRequest struct {
	ViewerID string
	Region   string
	Limit    int
}

func NewFeedService(deps FeedDeps) *FeedService {
	f := &FeedService{
		articles: deps.Articles,
		settings: deps.Settings,
		boosts:   deps.Boosts,
		behavior: deps.Behavior,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Feed over-fetches published articles and ranks them for the viewer. Only a
// failure to read articles is an error; every other load failure degrades to
// time-only scoring.
func (f *FeedService) Feed(ctx context.Context, req FeedRequest) ([]domain.ScoredArticle, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	limit = min(limit, maxFeedLimit)

	pool, err := f.articles.ListArticles(ctx, domain.ArticleFilter{
		Statuses: []domain.ArticleStatus{domain.StatusPublished},
		Limit:    limit * feedOverFetch,
	})
	if err != nil {
		return nil, fmt.Errorf("list published articles: %w", err)
	}

	rc := RankContext{Now: f.now(), ViewerRegion: req.Region}
	settings, err := f.RankSettings(ctx)
	if err == nil {
		err = f.loadContext(ctx, req.ViewerID, &rc)
	}
	if err != nil {
		f.logger.Warn("personalization inputs unavailable, ranking by time only", "error", err)
		settings = timeOnlySettings()
		rc = RankContext{Now: rc.Now, Degraded: true}
	}

	return Rank(pool, rc, settings, limit), nil
}

func (f *FeedService) loadContext(ctx context.Context, viewerID string, rc *RankContext) error {
	if f.boosts != nil {
		boosts, err := f.boosts.ActiveBoosts(ctx, rc.Now)
		if err != nil {
			return fmt.Errorf("load boosts: %w", err)
		}
		rc.Boosts = boosts
	}
	if f.behavior != nil && viewerID != "" {
		behavior, err := f.behavior.Behavior(ctx, viewerID)
		if err != nil {
			return fmt.Errorf("load viewer behavior: %w", err)
		}
		rc.Behavior = behavior
	}
	return nil
}

// RecordView counts a view on the article and on the viewer's history.
func (f *FeedService) RecordView(ctx context.Context, viewerID, articleID string) error {
	article, err := f.articles.GetArticle(ctx, articleID)
	if err != nil {
		return fmt.Errorf("load article %s: %w", articleID, err)
	}
	if err := f.articles.IncrementViews(ctx, articleID); err != nil {
		return fmt.Errorf("increment views %s: %w", articleID, err)
	}
	if f.behavior == nil || viewerID == "" {
		return nil
	}
	if err := f.behavior.RecordView(ctx, viewerID, article.Source, article.Category); err != nil {
		f.logger.Warn("record viewer behavior", "viewer_id", viewerID, "article_id", articleID, "error", err)
	}
	return nil
}

// RankSettings reads the stored settings over the defaults.
func (f *FeedService) RankSettings(ctx context.Context) (RankSettings, error) {
	settings := DefaultRankSettings()
	if f.settings == nil {
		return settings, nil
	}
	raw, err := f.settings.GetSetting(ctx, rankSettingKey)
	if errors.Is(err, domain.ErrNotFound) {
		return settings, nil
	}
	if err != nil {
		return RankSettings{}, fmt.Errorf("load rank settings: %w", err)
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return RankSettings{}, fmt.Errorf("decode rank settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return RankSettings{}, fmt.Errorf("stored rank settings: %w", err)
	}
	return settings, nil
}

// SaveRankSettings validates and stores the personalization settings.
func (f *FeedService) SaveRankSettings(ctx context.Context, settings RankSettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if f.settings == nil {
		return errors.New("settings store is not configured")
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode rank settings: %w", err)
	}
	if err := f.settings.PutSetting(ctx, rankSettingKey, raw); err != nil {
		return fmt.Errorf("store rank settings: %w", err)
	}
	return nil
}

// ErrInvalidSettings marks personalization settings that fail validation.
var ErrInvalidSettings = errors.New("invalid personalization settings")
