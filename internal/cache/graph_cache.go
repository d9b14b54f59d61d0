// Package cache is the Redis-backed read-through store of graph
// snapshots. All operations are fail-open: the online path must never
// block or fail because the store is unavailable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"followgraph/internal/logger"
	"followgraph/internal/metrics"
	"followgraph/pkg/models"
)

// Config configures Redis access for the graph cache.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// GraphCache stores per-subject counts and materialized id lists under
// separate keys, so count reads never load the large lists.
type GraphCache struct {
	client *redis.Client
	prefix string
}

// New constructs a Redis-backed graph cache.
func New(cfg Config) (*GraphCache, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "followgraph:graph"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis graph cache: %w", err)
	}

	return &GraphCache{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix)}, nil
}

// storedCounts is the aggregate-count payload kept separate from the
// id lists.
type storedCounts struct {
	SubjectID      uint64    `json:"subject_id"`
	FollowerCount  int       `json:"follower_count"`
	FollowingCount int       `json:"following_count"`
	LastUpdatedAt  time.Time `json:"last_updated_at"`
}

// Get returns the subject's snapshot counts, or absent. Store errors
// are treated as a miss so callers fall through to the upstream.
func (c *GraphCache) Get(ctx context.Context, subjectID uint64) (*models.GraphSnapshot, bool) {
	raw, err := c.client.Get(ctx, c.countsKey(subjectID)).Result()
	if err == redis.Nil {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	if err != nil {
		metrics.CacheErrorsTotal.Inc()
		logger.Warnf("Graph cache read failed for subject %d, treating as miss: %v", subjectID, err)
		return nil, false
	}

	var counts storedCounts
	if err := json.Unmarshal([]byte(raw), &counts); err != nil {
		metrics.CacheErrorsTotal.Inc()
		logger.Warnf("Graph cache entry for subject %d is corrupt, treating as miss: %v", subjectID, err)
		return nil, false
	}

	metrics.CacheHitsTotal.Inc()
	return &models.GraphSnapshot{
		SubjectID:      counts.SubjectID,
		FollowerCount:  counts.FollowerCount,
		FollowingCount: counts.FollowingCount,
		LastUpdatedAt:  counts.LastUpdatedAt,
	}, true
}

// GetLists returns the subject's materialized follower and following
// id lists, or absent.
func (c *GraphCache) GetLists(ctx context.Context, subjectID uint64) (followers, following []uint64, ok bool) {
	vals, err := c.client.MGet(ctx, c.followersKey(subjectID), c.followingKey(subjectID)).Result()
	if err != nil || len(vals) != 2 {
		metrics.CacheErrorsTotal.Inc()
		logger.Warnf("Graph cache list read failed for subject %d: %v", subjectID, err)
		return nil, nil, false
	}

	followers, ok = decodeIDList(vals[0])
	if !ok {
		return nil, nil, false
	}
	following, ok = decodeIDList(vals[1])
	if !ok {
		return nil, nil, false
	}
	return followers, following, true
}

// Put writes the snapshot atomically from the caller's perspective:
// counts and both id lists go out in one pipelined write that replaces
// the prior entry. A zero ttl means no expiry (refreshed by the next
// backfill run). Failures are logged and swallowed.
func (c *GraphCache) Put(ctx context.Context, snap *models.GraphSnapshot, ttl time.Duration) {
	if snap == nil {
		return
	}

	counts, err := json.Marshal(storedCounts{
		SubjectID:      snap.SubjectID,
		FollowerCount:  snap.FollowerCount,
		FollowingCount: snap.FollowingCount,
		LastUpdatedAt:  snap.LastUpdatedAt,
	})
	if err != nil {
		logger.Errorf("Failed to encode snapshot for subject %d: %v", snap.SubjectID, err)
		return
	}
	followers, err := json.Marshal(snap.Followers)
	if err != nil {
		logger.Errorf("Failed to encode follower list for subject %d: %v", snap.SubjectID, err)
		return
	}
	following, err := json.Marshal(snap.Following)
	if err != nil {
		logger.Errorf("Failed to encode following list for subject %d: %v", snap.SubjectID, err)
		return
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.countsKey(snap.SubjectID), counts, ttl)
	pipe.Set(ctx, c.followersKey(snap.SubjectID), followers, ttl)
	pipe.Set(ctx, c.followingKey(snap.SubjectID), following, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.CacheErrorsTotal.Inc()
		logger.Warnf("Graph cache write failed for subject %d: %v", snap.SubjectID, err)
		return
	}
	metrics.SnapshotWritesTotal.Inc()
}

// Delete removes the subject's snapshot. Failures are logged and
// swallowed.
func (c *GraphCache) Delete(ctx context.Context, subjectID uint64) {
	keys := []string{c.countsKey(subjectID), c.followersKey(subjectID), c.followingKey(subjectID)}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		metrics.CacheErrorsTotal.Inc()
		logger.Warnf("Graph cache delete failed for subject %d: %v", subjectID, err)
	}
}

// Clear removes every key under the cache prefix. Administrative; the
// error is returned rather than swallowed.
func (c *GraphCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 500 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("clear graph cache: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan graph cache keys: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("clear graph cache: %w", err)
		}
	}
	return nil
}

// Close closes Redis resources.
func (c *GraphCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *GraphCache) countsKey(subjectID uint64) string {
	return c.prefix + ":counts:" + strconv.FormatUint(subjectID, 10)
}

func (c *GraphCache) followersKey(subjectID uint64) string {
	return c.prefix + ":followers:" + strconv.FormatUint(subjectID, 10)
}

func (c *GraphCache) followingKey(subjectID uint64) string {
	return c.prefix + ":following:" + strconv.FormatUint(subjectID, 10)
}

func decodeIDList(val interface{}) ([]uint64, bool) {
	raw, ok := val.(string)
	if !ok {
		return nil, false
	}
	var ids []uint64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		logger.Warnf("Graph cache id list is corrupt: %v", err)
		return nil, false
	}
	return ids, true
}
