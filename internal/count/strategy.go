// Package count implements the online relationship-count strategies
// and the caller-facing count service.
package count

import (
	"context"
	"time"

	"followgraph/internal/hub"
	"followgraph/internal/logger"
	"followgraph/internal/paginate"
	"followgraph/pkg/models"
)

// Result is the outcome of a count strategy. Exact is false when the
// number is a lower bound: the fast cap was reached with data left, a
// full-count safety limit fired, or the upstream failed mid-stream.
// Count operations never fail outright; zero-with-Exact-false is the
// deepest degradation.
type Result struct {
	Count int
	Exact bool
}

// Limits are the soft safety bounds on an exhaustive count. Zero
// values disable the respective bound.
type Limits struct {
	MaxPages int
	Deadline time.Duration
}

// Strategies runs counting strategies against one edge source.
type Strategies struct {
	source   hub.EdgeSource
	pageSize int
	now      func() time.Time
}

// NewStrategies creates a strategy runner over the source. pageSize is
// the page-size hint sent upstream on exhaustive counts; zero selects
// the default.
func NewStrategies(source hub.EdgeSource, pageSize int) *Strategies {
	if pageSize <= 0 {
		pageSize = paginate.DefaultPageSize
	}
	return &Strategies{source: source, pageSize: pageSize, now: time.Now}
}

// Fast counts at most one page of capSize items and returns its
// addition count. The result is a lower bound whenever the true
// cardinality exceeds the cap.
func (s *Strategies) Fast(ctx context.Context, req hub.ListRequest, capSize int) Result {
	if capSize <= 0 {
		capSize = paginate.DefaultPageSize
	}
	req.PageSize = capSize

	it := paginate.New(s.source, req)
	page, ok := it.Next(ctx)
	if !ok {
		return Result{Count: 0, Exact: false}
	}
	return Result{Count: countAdditions(page.Items, req.Kind), Exact: it.Exhausted()}
}

// Full counts to exhaustion, subject to the soft limits. Hitting a
// limit or an upstream error returns the partial sum accumulated so
// far with Exact false; neither is an error.
func (s *Strategies) Full(ctx context.Context, req hub.ListRequest, limits Limits) Result {
	_, res := s.run(ctx, req, limits, false)
	return res
}

// Collect counts to exhaustion like Full and also materializes the ids
// on the far end of each counted edge, in upstream order.
func (s *Strategies) Collect(ctx context.Context, req hub.ListRequest, limits Limits) ([]uint64, Result) {
	return s.run(ctx, req, limits, true)
}

func (s *Strategies) run(ctx context.Context, req hub.ListRequest, limits Limits, collect bool) ([]uint64, Result) {
	req.PageSize = s.pageSize
	it := paginate.New(s.source, req)

	var deadline time.Time
	if limits.Deadline > 0 {
		deadline = s.now().Add(limits.Deadline)
	}

	var ids []uint64
	total := 0
	for {
		page, ok := it.Next(ctx)
		if !ok {
			break
		}
		for _, edge := range page.Items {
			if !counts(edge, req.Kind) {
				continue
			}
			total++
			if collect {
				ids = append(ids, counterpartID(edge, req.Direction))
			}
		}

		// Safety limits only matter while data remains; a naturally
		// exhausted stream is exact regardless of how close it came.
		if it.Exhausted() {
			break
		}
		if limits.MaxPages > 0 && it.Pages() >= limits.MaxPages {
			logger.Infof("Full count hit page limit %d (subject=%d kind=%s direction=%s), returning partial sum %d",
				limits.MaxPages, req.SubjectID, req.Kind, req.Direction, total)
			return ids, Result{Count: total, Exact: false}
		}
		if !deadline.IsZero() && s.now().After(deadline) {
			logger.Infof("Full count hit deadline after %d pages (subject=%d kind=%s direction=%s), returning partial sum %d",
				it.Pages(), req.SubjectID, req.Kind, req.Direction, total)
			return ids, Result{Count: total, Exact: false}
		}
	}

	return ids, Result{Count: total, Exact: it.Err() == nil}
}

// counts reports whether the edge contributes to a total for the
// requested kind. Only addition entries of the requested kind count.
func counts(edge models.Edge, kind models.EdgeKind) bool {
	return !edge.Tombstone && edge.Kind == kind
}

func countAdditions(items []models.Edge, kind models.EdgeKind) int {
	n := 0
	for _, edge := range items {
		if counts(edge, kind) {
			n++
		}
	}
	return n
}

// counterpartID returns the id on the far end of the edge relative to
// the request direction.
func counterpartID(edge models.Edge, direction models.Direction) uint64 {
	if direction == models.DirectionForward {
		return edge.TargetID
	}
	return edge.SourceID
}
