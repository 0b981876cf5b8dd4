package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
)

// StatsCache holds fetched post stats for a short TTL so repeated status
// polls do not hammer the platform APIs.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatsCache{client: client, ttl: ttl}
}

func statsKey(jobID string) string {
	return "post_stats:" + jobID
}

// Get returns the cached stats for the job, or (nil, nil) on a miss.
func (c *StatsCache) Get(ctx context.Context, jobID string) (*model.PostStats, error) {
	raw, err := c.client.Get(ctx, statsKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var stats model.PostStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Set stores the stats. Cache write failures are logged, not propagated.
func (c *StatsCache) Set(ctx context.Context, jobID string, stats *model.PostStats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statsKey(jobID), raw, c.ttl).Err(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while caching post stats.")
	}
}
