// README: Redis-backed cache in front of a distance matrix source.
package maps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"coload/internal/logger"
)

const travelKeyPrefix = "travel:v1:"

// MatrixSource is anything that answers origin x destination matrices.
type MatrixSource interface {
	Matrix(ctx context.Context, origins, destinations []string) ([][]Element, error)
}

// CachedMatrix stores each cell under its own key. A block is only served from
// cache when every cell hits; otherwise the whole block goes to the source.
type CachedMatrix struct {
	next  MatrixSource
	redis *redis.Client
	ttl   time.Duration
	log   logger.Logger
}

func NewCachedMatrix(next MatrixSource, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedMatrix {
	return &CachedMatrix{next: next, redis: rdb, ttl: ttl, log: log}
}

func normalizeAddress(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func travelKey(origin, destination string) string {
	return travelKeyPrefix + normalizeAddress(origin) + "|" + normalizeAddress(destination)
}

func (c *CachedMatrix) Matrix(ctx context.Context, origins, destinations []string) ([][]Element, error) {
	keys := make([]string, 0, len(origins)*len(destinations))
	for _, o := range origins {
		for _, d := range destinations {
			keys = append(keys, travelKey(o, d))
		}
	}

	if out, ok := c.lookup(ctx, keys, len(origins), len(destinations)); ok {
		return out, nil
	}

	out, err := c.next.Matrix(ctx, origins, destinations)
	if err != nil {
		return nil, err
	}
	c.store(ctx, keys, out)
	return out, nil
}

func (c *CachedMatrix) lookup(ctx context.Context, keys []string, rows, cols int) ([][]Element, bool) {
	vals, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn("travel cache read failed", "error", err)
		return nil, false
	}
	out := make([][]Element, rows)
	for i := range out {
		out[i] = make([]Element, cols)
		for j := range out[i] {
			raw, ok := vals[i*cols+j].(string)
			if !ok {
				return nil, false
			}
			var el Element
			if _, err := fmt.Sscanf(raw, "%d:%d", &el.DistanceMeters, &el.DurationSeconds); err != nil {
				return nil, false
			}
			out[i][j] = el
		}
	}
	return out, true
}

func (c *CachedMatrix) store(ctx context.Context, keys []string, m [][]Element) {
	pipe := c.redis.Pipeline()
	k := 0
	for _, row := range m {
		for _, el := range row {
			pipe.Set(ctx, keys[k], fmt.Sprintf("%d:%d", el.DistanceMeters, el.DurationSeconds), c.ttl)
			k++
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("travel cache write failed", "error", err)
	}
}
