// Package paginate walks the upstream ledger's cursor-paginated read
// API as a lazy, finite, non-restartable sequence of pages.
package paginate

import (
	"context"

	"followgraph/internal/hub"
	"followgraph/internal/logger"
	"followgraph/internal/metrics"
	"followgraph/pkg/models"
)

// DefaultPageSize is the page-size hint sent upstream when the request
// does not carry one. The upstream may return fewer items.
const DefaultPageSize = 1000

// Iterator pages through the edges matching one upstream request. Each
// Next call issues exactly one upstream call; no state persists across
// iterator instances. Termination rules, in priority order: upstream
// error, absent token, end-of-stream sentinel token, short page.
type Iterator struct {
	source  hub.EdgeSource
	req     hub.ListRequest
	token   string
	started bool
	done    bool
	err     error
	pages   int
}

// New creates an iterator over the edges matching req.
func New(source hub.EdgeSource, req hub.ListRequest) *Iterator {
	if req.PageSize <= 0 {
		req.PageSize = DefaultPageSize
	}
	return &Iterator{source: source, req: req}
}

// Next fetches the next page. It returns (nil, false) once the
// sequence is exhausted or an upstream call has failed; Err
// distinguishes the two.
func (it *Iterator) Next(ctx context.Context) (*models.EdgePage, bool) {
	if it.done {
		return nil, false
	}

	req := it.req
	if it.started {
		req.PageToken = it.token
	}

	page, err := it.source.ListEdges(ctx, req)
	if err != nil {
		it.err = err
		it.done = true
		metrics.UpstreamErrorsTotal.Inc()
		logger.Warnf("Edge pagination stopped after %d pages (subject=%d kind=%s direction=%s): %v",
			it.pages, it.req.SubjectID, it.req.Kind, it.req.Direction, err)
		return nil, false
	}

	it.started = true
	it.pages++
	it.token = page.NextToken
	metrics.PagesFetchedTotal.WithLabelValues(string(it.req.Kind), string(it.req.Direction)).Inc()

	// A short page is authoritative end-of-data even when a token is
	// present: upstream tokens have been observed pointing past the end.
	if len(page.Items) < req.PageSize || IsEndOfStreamToken(page.NextToken) {
		it.done = true
	}

	return page, true
}

// Err returns the upstream error that stopped iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Exhausted reports whether the sequence ended normally, with no
// upstream error.
func (it *Iterator) Exhausted() bool {
	return it.done && it.err == nil
}

// Pages returns the number of pages fetched so far.
func (it *Iterator) Pages() int {
	return it.pages
}
