package matrix

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	redis "github.com/redis/go-redis/v9"

	"medtransit-route/internal/metrics"
	"medtransit-route/internal/model"
)

// CachedResolver wraps a Provider with a content-addressed Redis
// cache. Cache read/write failures are logged and bypassed — they are
// never fatal to the request, per spec §4.1/§7.
type CachedResolver struct {
	provider Provider
	rdb      *redis.Client
	ttl      time.Duration
}

func NewCachedResolver(provider Provider, rdb *redis.Client, ttl time.Duration) *CachedResolver {
	return &CachedResolver{provider: provider, rdb: rdb, ttl: ttl}
}

// CacheKey returns the "dm:<md5>" key for a set of locations and a
// departure instant: MD5 over a JSON encoding of the sorted,
// 6-decimal-formatted coordinates together with the UTC departure
// date and hour ("YYYYMMDDHH").
func CacheKey(locations []model.Coordinate, departure time.Time) string {
	formatted := make([]string, len(locations))
	for i, c := range locations {
		formatted[i] = fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
	}
	sort.Strings(formatted)
	hourBucket := departure.UTC().Format("2006010215")
	payload, _ := json.Marshal(struct {
		Locs []string `json:"locs"`
		Hour string   `json:"hour"`
	}{Locs: formatted, Hour: hourBucket})
	sum := md5.Sum(payload)
	return "dm:" + hex.EncodeToString(sum[:])
}

// Resolve returns a CachedMatrix, fetching from the provider on a
// cache miss or on any cache-backend error.
func (c *CachedResolver) Resolve(ctx context.Context, locations []model.Coordinate, departure time.Time) (model.CachedMatrix, error) {
	key := CacheKey(locations, departure)

	if c.rdb != nil {
		if raw, err := c.rdb.Get(ctx, key).Result(); err == nil {
			var m model.Matrix
			if err := json.Unmarshal([]byte(raw), &m); err == nil {
				metrics.MatrixCacheResults.WithLabelValues("hit").Inc()
				return model.CachedMatrix{Matrix: m, CacheKey: key, FromCache: true, FetchedAt: time.Now()}, nil
			}
			log.Printf("matrix: cache payload for key=%s unreadable, bypassing cache", key)
		} else if err != redis.Nil {
			log.Printf("matrix: cache read error, proceeding without cache: %v", err)
		}
	}
	metrics.MatrixCacheResults.WithLabelValues("miss").Inc()

	m, err := c.provider.FetchMatrix(ctx, locations, departure)
	if err != nil {
		return model.CachedMatrix{}, err
	}

	if c.rdb != nil {
		if raw, err := json.Marshal(m); err == nil {
			if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				log.Printf("matrix: cache write error, result not cached: %v", err)
			}
		}
	}

	return model.CachedMatrix{Matrix: m, CacheKey: key, FromCache: false, FetchedAt: time.Now()}, nil
}
