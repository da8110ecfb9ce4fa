package behavior

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/config"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

// retention keeps counters of viewers that stopped reading from piling up.
const retention = 90 * 24 * time.Hour

// RedisStore keeps per-viewer view counters in two Redis hashes.
type RedisStore struct {
	client *redis.Client
}

var _ ports.BehaviorStore = (*RedisStore)(nil)

// NewRedisStore dials the configured Redis instance.
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: rdb}
}

// Ping checks that the server answers.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failure: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func regionsKey(viewerID string) string    { return "viewer:" + viewerID + ":regions" }
func categoriesKey(viewerID string) string { return "viewer:" + viewerID + ":categories" }

// Behavior returns the viewer's view counts. An unknown viewer has empty maps.
func (s *RedisStore) Behavior(ctx context.Context, viewerID string) (domain.ViewerBehavior, error) {
	regions, err := s.client.HGetAll(ctx, regionsKey(viewerID)).Result()
	if err != nil {
		return domain.ViewerBehavior{}, fmt.Errorf("redis hgetall failure: %w", err)
	}
	categories, err := s.client.HGetAll(ctx, categoriesKey(viewerID)).Result()
	if err != nil {
		return domain.ViewerBehavior{}, fmt.Errorf("redis hgetall failure: %w", err)
	}
	return domain.ViewerBehavior{
		RegionViews:   counts(regions),
		CategoryViews: counts(categories),
	}, nil
}

// RecordView bumps the region and category counters for one read.
func (s *RedisStore) RecordView(ctx context.Context, viewerID, region, category string) error {
	if viewerID == "" {
		return nil
	}
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		if region != "" {
			pipe.HIncrBy(ctx, regionsKey(viewerID), region, 1)
			pipe.Expire(ctx, regionsKey(viewerID), retention)
		}
		if category != "" {
			pipe.HIncrBy(ctx, categoriesKey(viewerID), category, 1)
			pipe.Expire(ctx, categoriesKey(viewerID), retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hincrby failure: %w", err)
	}
	return nil
}

func counts(raw map[string]string) map[string]int {
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			continue
		}
		out[k] = n
	}
	return out
}
