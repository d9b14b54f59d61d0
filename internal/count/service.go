package count

import (
	"context"
	"sync"
	"time"

	"followgraph/internal/hub"
	"followgraph/internal/logger"
	"followgraph/internal/metrics"
	"followgraph/pkg/models"
)

// Mode selects the latency/accuracy tradeoff of a count operation.
type Mode string

const (
	// ModeFast answers from a single capped page.
	ModeFast Mode = "fast"
	// ModeFull answers from exhaustive pagination, under soft limits.
	ModeFull Mode = "full"
)

// SnapshotCache is the subset of the graph cache the service needs.
// Implementations are fail-open: Get returns absent on store trouble
// and Put never propagates errors.
type SnapshotCache interface {
	Get(ctx context.Context, subjectID uint64) (*models.GraphSnapshot, bool)
	Put(ctx context.Context, snap *models.GraphSnapshot, ttl time.Duration)
}

// Config controls the count service.
type Config struct {
	FastCap      int
	FullMaxPages int
	FullDeadline time.Duration
	FallbackTTL  time.Duration
	PageSize     int
}

// Service answers relationship-count queries: graph cache first, then
// the count strategies against the upstream on a miss.
type Service struct {
	strategies *Strategies
	cache      SnapshotCache
	cfg        Config
	now        func() time.Time
}

// NewService creates a count service.
func NewService(source hub.EdgeSource, cache SnapshotCache, cfg Config) *Service {
	if cfg.FastCap <= 0 {
		cfg.FastCap = 1000
	}
	if cfg.FallbackTTL <= 0 {
		cfg.FallbackTTL = 1 * time.Hour
	}
	return &Service{
		strategies: NewStrategies(source, cfg.PageSize),
		cache:      cache,
		cfg:        cfg,
		now:        time.Now,
	}
}

// FollowCounts returns the subject's follower and following counts.
// A cached snapshot answers without touching the upstream; on a miss
// both directions are counted concurrently. Never returns an error:
// degraded paths produce partial or zero counts with Exact false.
func (s *Service) FollowCounts(ctx context.Context, subjectID uint64, mode Mode) models.FollowCounts {
	start := s.now()
	defer func() {
		metrics.CountDuration.WithLabelValues(string(mode)).Observe(s.now().Sub(start).Seconds())
	}()

	if s.cache != nil {
		if snap, ok := s.cache.Get(ctx, subjectID); ok {
			return models.FollowCounts{
				Followers: snap.FollowerCount,
				Following: snap.FollowingCount,
				Exact:     true,
			}
		}
	}

	if mode == ModeFast {
		var followers, following Result
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			followers = s.strategies.Fast(ctx, followRequest(subjectID, models.DirectionReverse), s.cfg.FastCap)
		}()
		go func() {
			defer wg.Done()
			following = s.strategies.Fast(ctx, followRequest(subjectID, models.DirectionForward), s.cfg.FastCap)
		}()
		wg.Wait()
		return models.FollowCounts{
			Followers: followers.Count,
			Following: following.Count,
			Exact:     followers.Exact && following.Exact,
		}
	}

	limits := Limits{MaxPages: s.cfg.FullMaxPages, Deadline: s.cfg.FullDeadline}

	var (
		followerIDs, followingIDs []uint64
		followers, following      Result
		wg                        sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		followerIDs, followers = s.strategies.Collect(ctx, followRequest(subjectID, models.DirectionReverse), limits)
	}()
	go func() {
		defer wg.Done()
		followingIDs, following = s.strategies.Collect(ctx, followRequest(subjectID, models.DirectionForward), limits)
	}()
	wg.Wait()

	// Exact full counts are worth caching until the next backfill pass
	// refreshes them; truncated ones are not.
	if s.cache != nil && followers.Exact && following.Exact {
		s.cache.Put(ctx, &models.GraphSnapshot{
			SubjectID:      subjectID,
			FollowerCount:  followers.Count,
			FollowingCount: following.Count,
			Followers:      followerIDs,
			Following:      followingIDs,
			LastUpdatedAt:  s.now().UTC(),
		}, s.cfg.FallbackTTL)
	}

	return models.FollowCounts{
		Followers: followers.Count,
		Following: following.Count,
		Exact:     followers.Exact && following.Exact,
	}
}

// ReactionCount returns the count of one reaction kind targeting the
// subject's entry identified by targetID.
func (s *Service) ReactionCount(ctx context.Context, subjectID, targetID uint64, kind models.EdgeKind, mode Mode) Result {
	req := hub.ListRequest{
		SubjectID: subjectID,
		TargetID:  targetID,
		Kind:      kind,
		Direction: models.DirectionReverse,
	}
	if mode == ModeFast {
		return s.strategies.Fast(ctx, req, s.cfg.FastCap)
	}
	return s.strategies.Full(ctx, req, Limits{MaxPages: s.cfg.FullMaxPages, Deadline: s.cfg.FullDeadline})
}

// ReactionTotals holds the like and recast totals for one target.
type ReactionTotals struct {
	Likes   int  `json:"likes"`
	Recasts int  `json:"recasts"`
	Exact   bool `json:"exact"`
}

// ReactionCounts fans out the two reaction kinds for one target. The
// kinds touch disjoint upstream filters, so they run concurrently.
func (s *Service) ReactionCounts(ctx context.Context, subjectID, targetID uint64, mode Mode) ReactionTotals {
	var likes, recasts Result
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		likes = s.ReactionCount(ctx, subjectID, targetID, models.KindLike, mode)
	}()
	go func() {
		defer wg.Done()
		recasts = s.ReactionCount(ctx, subjectID, targetID, models.KindRecast, mode)
	}()
	wg.Wait()

	if !likes.Exact || !recasts.Exact {
		logger.Debugf("Reaction counts degraded for subject=%d target=%d (likes exact=%v recasts exact=%v)",
			subjectID, targetID, likes.Exact, recasts.Exact)
	}
	return ReactionTotals{Likes: likes.Count, Recasts: recasts.Count, Exact: likes.Exact && recasts.Exact}
}

func followRequest(subjectID uint64, direction models.Direction) hub.ListRequest {
	return hub.ListRequest{
		SubjectID: subjectID,
		Kind:      models.KindFollow,
		Direction: direction,
	}
}
