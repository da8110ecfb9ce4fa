package usecase

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
)

const (
	timeScoreMax       = 100.0
	timeScoreFloor     = 10.0
	timeScorePerHour   = 2.0
	neutralBaseScore   = 50.0
	boostPriorityScale = 10.0
	defaultGeoFactor   = 1.5

	regionViewWeight   = 3
	regionViewCap      = 30
	categoryViewWeight = 2
	categoryViewCap    = 20
)

var boostPrecedence = []domain.BoostKind{domain.BoostRegion, domain.BoostArticle, domain.BoostCategory}

// FactorToggles switches each scoring factor independently.
type FactorToggles struct {
	Time         bool `json:"time"`
	Boost        bool `json:"boost"`
	RegionWeight bool `json:"region_weight"`
	Geolocation  bool `json:"geolocation"`
	Behavior     bool `json:"behavior"`
}

// RankSettings is the typed personalization configuration.
type RankSettings struct {
	Factors       FactorToggles      `json:"factors"`
	RegionWeights map[string]float64 `json:"region_weights,omitempty"`
	GeoFactor     float64            `json:"geo_factor"`
}

// DefaultRankSettings enables every factor with a 1.5 geolocation factor.
func DefaultRankSettings() RankSettings {
	return RankSettings{
		Factors: FactorToggles{
			Time:         true,
			Boost:        true,
			RegionWeight: true,
			Geolocation:  true,
			Behavior:     true,
		},
		GeoFactor: defaultGeoFactor,
	}
}

// timeOnlySettings is the degraded scoring mode.
func timeOnlySettings() RankSettings {
	return RankSettings{Factors: FactorToggles{Time: true}}
}

// Validate rejects weights and factors that would break the ordering.
func (s RankSettings) Validate() error {
	if s.GeoFactor <= 0 || math.IsNaN(s.GeoFactor) || math.IsInf(s.GeoFactor, 0) {
		return fmt.Errorf("geo_factor must be a finite positive number, got %v", s.GeoFactor)
	}
	for region, w := range s.RegionWeights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("region weight for %q must be a finite non-negative number, got %v", region, w)
		}
	}
	return nil
}

// RankContext is the per-request input to the ranker.
type RankContext struct {
	Now          time.Time
	ViewerRegion string
	Behavior     domain.ViewerBehavior
	Boosts       []domain.Boost
	Degraded     bool
}

// Rank scores every article in pool, sorts descending with ties kept in
// retrieval order and truncates to limit. limit <= 0 keeps the whole pool.
func Rank(pool []domain.Article, rc RankContext, settings RankSettings, limit int) []domain.ScoredArticle {
	if rc.Now.IsZero() {
		rc.Now = time.Now()
	}
	boosts := indexBoosts(rc.Boosts, rc.Now)

	scored := make([]domain.ScoredArticle, 0, len(pool))
	for _, article := range pool {
		scored = append(scored, score(article, rc, settings, boosts))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func score(article domain.Article, rc RankContext, settings RankSettings, boosts map[domain.BoostKind]map[string]domain.Boost) domain.ScoredArticle {
	meta := domain.ScoreMeta{Factors: []domain.Factor{}, Degraded: rc.Degraded}

	base := neutralBaseScore
	if settings.Factors.Time {
		base = TimeScore(article.PublishedAt, rc.Now)
		meta.Factors = append(meta.Factors, domain.FactorTime)
	}
	meta.BaseScore = base
	total := base

	if settings.Factors.Boost {
		if boost, ok := matchBoost(article, boosts); ok {
			mult := boost.Priority * boostPriorityScale
			total *= mult
			meta.BoostKind = boost.Kind
			meta.BoostMultiplier = mult
			meta.Factors = append(meta.Factors, domain.FactorBoost)
		}
	}

	if settings.Factors.RegionWeight {
		if w, ok := settings.RegionWeights[article.Source]; ok {
			total *= w
			meta.RegionWeight = w
			meta.Factors = append(meta.Factors, domain.FactorRegionWeight)
		}
	}

	if settings.Factors.Geolocation && rc.ViewerRegion != "" && rc.ViewerRegion == article.Source {
		total *= settings.GeoFactor
		meta.GeoMultiplier = settings.GeoFactor
		meta.Factors = append(meta.Factors, domain.FactorGeolocation)
	}

	if settings.Factors.Behavior {
		if bonus := BehaviorBonus(rc.Behavior, article); bonus > 0 {
			total += bonus
			meta.BehaviorBonus = bonus
			meta.Factors = append(meta.Factors, domain.FactorBehavior)
		}
	}

	return domain.ScoredArticle{Article: article, Score: total, Meta: meta}
}

// TimeScore is max(100 - hoursAgo*2, 10). Articles without a publish time
// score the floor; future times count as zero hours.
func TimeScore(publishedAt, now time.Time) float64 {
	if publishedAt.IsZero() {
		return timeScoreFloor
	}
	hours := now.Sub(publishedAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Max(timeScoreMax-hours*timeScorePerHour, timeScoreFloor)
}

// BehaviorBonus is the capped additive bonus from a viewer's history.
func BehaviorBonus(b domain.ViewerBehavior, article domain.Article) float64 {
	region := min(b.RegionViews[article.Source]*regionViewWeight, regionViewCap)
	category := min(b.CategoryViews[article.Category]*categoryViewWeight, categoryViewCap)
	return float64(region + category)
}

// indexBoosts keeps the highest-priority active boost per kind and target.
func indexBoosts(boosts []domain.Boost, now time.Time) map[domain.BoostKind]map[string]domain.Boost {
	index := map[domain.BoostKind]map[string]domain.Boost{}
	for _, b := range boosts {
		if !b.ActiveAt(now) || b.Priority <= 0 {
			continue
		}
		byTarget, ok := index[b.Kind]
		if !ok {
			byTarget = map[string]domain.Boost{}
			index[b.Kind] = byTarget
		}
		if cur, ok := byTarget[b.Target]; ok && cur.Priority >= b.Priority {
			continue
		}
		byTarget[b.Target] = b
	}
	return index
}

func matchBoost(article domain.Article, index map[domain.BoostKind]map[string]domain.Boost) (domain.Boost, bool) {
	for _, kind := range boostPrecedence {
		var target string
		switch kind {
		case domain.BoostRegion:
			target = article.Source
		case domain.BoostArticle:
			target = article.ID
		case domain.BoostCategory:
			target = article.Category
		}
		if target == "" {
			continue
		}
		if b, ok := index[kind][target]; ok {
			return b, true
		}
	}
	return domain.Boost{}, false
}
