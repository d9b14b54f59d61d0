package count

import (
	"context"
	"sync"
	"testing"
	"time"

	"followgraph/internal/hub"
	"followgraph/pkg/models"
)

// dirSource serves fixed single pages keyed by direction and kind, and
// counts calls. Safe for the service's concurrent fan-out.
type dirSource struct {
	mu    sync.Mutex
	pages map[models.Direction]map[models.EdgeKind]models.EdgePage
	calls int
}

func (s *dirSource) ListEdges(_ context.Context, req hub.ListRequest) (*models.EdgePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	page := s.pages[req.Direction][req.Kind]
	return &page, nil
}

func (s *dirSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memCache struct {
	mu    sync.Mutex
	snaps map[uint64]*models.GraphSnapshot
	ttls  map[uint64]time.Duration
}

func newMemCache() *memCache {
	return &memCache{
		snaps: make(map[uint64]*models.GraphSnapshot),
		ttls:  make(map[uint64]time.Duration),
	}
}

func (c *memCache) Get(_ context.Context, subjectID uint64) (*models.GraphSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[subjectID]
	return snap, ok
}

func (c *memCache) Put(_ context.Context, snap *models.GraphSnapshot, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[snap.SubjectID] = snap
	c.ttls[snap.SubjectID] = ttl
}

func followPages(followers, following int) map[models.Direction]map[models.EdgeKind]models.EdgePage {
	reverse := make([]models.Edge, followers)
	for i := range reverse {
		reverse[i] = models.Edge{SourceID: uint64(i + 100), TargetID: 7, Kind: models.KindFollow}
	}
	forward := make([]models.Edge, following)
	for i := range forward {
		forward[i] = models.Edge{SourceID: 7, TargetID: uint64(i + 500), Kind: models.KindFollow}
	}
	return map[models.Direction]map[models.EdgeKind]models.EdgePage{
		models.DirectionReverse: {models.KindFollow: {Items: reverse}},
		models.DirectionForward: {models.KindFollow: {Items: forward}},
	}
}

func TestFollowCountsCacheHitSkipsUpstream(t *testing.T) {
	src := &dirSource{pages: followPages(999, 999)}
	cache := newMemCache()
	cache.snaps[7] = &models.GraphSnapshot{SubjectID: 7, FollowerCount: 50, FollowingCount: 12}

	svc := NewService(src, cache, Config{})
	got := svc.FollowCounts(context.Background(), 7, ModeFast)

	if got.Followers != 50 || got.Following != 12 || !got.Exact {
		t.Fatalf("unexpected counts: %+v", got)
	}
	if src.callCount() != 0 {
		t.Fatalf("cache hit must make zero upstream calls, made %d", src.callCount())
	}
}

func TestFollowCountsFastMissFansOut(t *testing.T) {
	src := &dirSource{pages: followPages(3, 2)}

	svc := NewService(src, newMemCache(), Config{FastCap: 100})
	got := svc.FollowCounts(context.Background(), 7, ModeFast)

	if got.Followers != 3 || got.Following != 2 {
		t.Fatalf("unexpected counts: %+v", got)
	}
	if !got.Exact {
		t.Fatalf("expected exact counts under the cap")
	}
	if src.callCount() != 2 {
		t.Fatalf("expected one call per direction, got %d", src.callCount())
	}
}

func TestFollowCountsFullWritesBackSnapshot(t *testing.T) {
	src := &dirSource{pages: followPages(3, 2)}
	cache := newMemCache()

	svc := NewService(src, cache, Config{FallbackTTL: 30 * time.Minute})
	got := svc.FollowCounts(context.Background(), 7, ModeFull)

	if got.Followers != 3 || got.Following != 2 || !got.Exact {
		t.Fatalf("unexpected counts: %+v", got)
	}

	snap, ok := cache.snaps[7]
	if !ok {
		t.Fatalf("expected a snapshot write-back")
	}
	if snap.FollowerCount != 3 || snap.FollowingCount != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Followers) != 3 || len(snap.Following) != 2 {
		t.Fatalf("expected materialized id lists, got %d/%d", len(snap.Followers), len(snap.Following))
	}
	if cache.ttls[7] != 30*time.Minute {
		t.Fatalf("fallback write-back must carry the fallback TTL, got %v", cache.ttls[7])
	}
}

func TestReactionCountsFanOutBothKinds(t *testing.T) {
	likes := []models.Edge{
		{SourceID: 9, TargetID: 77, Kind: models.KindLike},
		{SourceID: 10, TargetID: 77, Kind: models.KindLike},
	}
	recasts := []models.Edge{
		{SourceID: 11, TargetID: 77, Kind: models.KindRecast},
	}
	src := &dirSource{pages: map[models.Direction]map[models.EdgeKind]models.EdgePage{
		models.DirectionReverse: {
			models.KindLike:   {Items: likes},
			models.KindRecast: {Items: recasts},
		},
	}}

	svc := NewService(src, nil, Config{})
	got := svc.ReactionCounts(context.Background(), 7, 77, ModeFull)

	if got.Likes != 2 || got.Recasts != 1 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if !got.Exact {
		t.Fatalf("expected exact totals")
	}
}
