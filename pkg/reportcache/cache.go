package reportcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/trelay/trelay/pkg/analysis"
	"github.com/trelay/trelay/pkg/hsp"
)

const reportExpiration = 90 * time.Minute

// Cache keeps finished analysis reports in redis so repeat queries for the
// same route and window skip the whole pipeline.
type Cache struct {
	cache *cache.Cache[string]
}

func New(redisClient *redis.Client) *Cache {
	redisStore := redisstore.NewRedis(redisClient, store.WithExpiration(reportExpiration))

	return &Cache{
		cache: cache.New[string](redisStore),
	}
}

func cacheItemPath(request hsp.MetricsRequest) string {
	return fmt.Sprintf(
		"reports/%s/%s/%s_%s/%s_%s/%s",
		request.FromLoc, request.ToLoc,
		request.FromDate, request.ToDate,
		request.FromTime, request.ToTime,
		request.Days,
	)
}

// Get returns a cached report for the request, or nil.
func (c *Cache) Get(ctx context.Context, request hsp.MetricsRequest) *analysis.Report {
	cachedObject, err := c.cache.Get(ctx, cacheItemPath(request))
	if err != nil {
		return nil
	}

	var report *analysis.Report
	if err := json.Unmarshal([]byte(cachedObject), &report); err != nil {
		return nil
	}

	return report
}

// Set stores a finished report for the request.
func (c *Cache) Set(ctx context.Context, request hsp.MetricsRequest, report *analysis.Report) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return
	}

	c.cache.Set(ctx, cacheItemPath(request), string(reportJSON))
}
