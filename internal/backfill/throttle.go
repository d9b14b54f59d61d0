package backfill

import (
	"context"

	"golang.org/x/time/rate"

	"followgraph/internal/hub"
	"followgraph/pkg/models"
)

// throttledSource applies token-bucket admission control to upstream
// calls. The backfill fan-out is workers x batch size; without this
// the pipeline can overload the upstream.
type throttledSource struct {
	source  hub.EdgeSource
	limiter *rate.Limiter
}

// Throttled wraps the source with a shared rate limiter. A nil
// limiter returns the source unchanged.
func Throttled(source hub.EdgeSource, limiter *rate.Limiter) hub.EdgeSource {
	if limiter == nil {
		return source
	}
	return &throttledSource{source: source, limiter: limiter}
}

func (t *throttledSource) ListEdges(ctx context.Context, req hub.ListRequest) (*models.EdgePage, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.source.ListEdges(ctx, req)
}
