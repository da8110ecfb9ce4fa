package domain

import "time"

// BoostKind selects what a promotional boost matches against.
type BoostKind string

const (
	BoostRegion   BoostKind = "region"
	BoostArticle  BoostKind = "article"
	BoostCategory BoostKind = "category"
)

// Boost is a time-windowed promotional multiplier.
type Boost struct {
	ID       string
	Kind     BoostKind
	Target   string
	Priority float64
	StartAt  time.Time
	EndAt    time.Time
	Active   bool
}

// ActiveAt reports whether the boost window contains now.
func (b Boost) ActiveAt(now time.Time) bool {
	return b.Active && !now.Before(b.StartAt) && !now.After(b.EndAt)
}

// Factor names the scoring factors of the personalization ranker.
type Factor string

const (
	FactorTime         Factor = "time"
	FactorBoost        Factor = "boost"
	FactorRegionWeight Factor = "region_weight"
	FactorGeolocation  Factor = "geolocation"
	FactorBehavior     Factor = "behavior"
)

// ScoreMeta records which factors fired for one article.
type ScoreMeta struct {
	Factors         []Factor  `json:"factors"`
	BaseScore       float64   `json:"base_score"`
	BoostKind       BoostKind `json:"boost_kind,omitempty"`
	BoostMultiplier float64   `json:"boost_multiplier,omitempty"`
	RegionWeight    float64   `json:"region_weight,omitempty"`
	GeoMultiplier   float64   `json:"geo_multiplier,omitempty"`
	BehaviorBonus   float64   `json:"behavior_bonus,omitempty"`
	Degraded        bool      `json:"degraded,omitempty"`
}

// ScoredArticle exists only for the duration of a feed request.
type ScoredArticle struct {
	Article
	Score float64   `json:"score"`
	Meta  ScoreMeta `json:"meta"`
}

// ViewerBehavior holds a viewer's historical interaction counts.
type ViewerBehavior struct {
	RegionViews   map[string]int
	CategoryViews map[string]int
}
