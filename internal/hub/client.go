package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"followgraph/pkg/models"
)

// ListRequest describes one page request against the edge ledger.
type ListRequest struct {
	SubjectID uint64
	TargetID  uint64 // optional reaction-target filter, 0 means unset
	Kind      models.EdgeKind
	Direction models.Direction
	PageSize  int
	PageToken string
}

// EdgeSource is the read contract the engine needs from the upstream
// ledger. The transport behind it is irrelevant to callers.
type EdgeSource interface {
	ListEdges(ctx context.Context, req ListRequest) (*models.EdgePage, error)
}

// SubjectCounter reports the total number of registered subject
// identities, used by backfill enumeration.
type SubjectCounter interface {
	SubjectTotal(ctx context.Context) (uint64, error)
}

// Config configures the hub REST client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

// Client is a REST client for the upstream hub ledger.
type Client struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

var (
	_ EdgeSource     = (*Client)(nil)
	_ SubjectCounter = (*Client)(nil)
)

// NewClient creates a hub REST client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("hub base URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Wire-format payloads. Fields are validated exhaustively at this
// boundary; unexpected shapes are rejected rather than read through.
type linkItem struct {
	Type      string `json:"type"` // add or remove
	Kind      string `json:"kind"`
	Source    uint64 `json:"source"`
	Target    uint64 `json:"target"`
	Timestamp int64  `json:"timestamp"`
}

type linksResponse struct {
	Items         []linkItem `json:"items"`
	NextPageToken string     `json:"next_page_token"`
}

type infoResponse struct {
	SubjectCount uint64 `json:"subject_count"`
}

// ListEdges fetches one page of edges for the request.
func (c *Client) ListEdges(ctx context.Context, req ListRequest) (*models.EdgePage, error) {
	q := url.Values{}
	q.Set("subject", strconv.FormatUint(req.SubjectID, 10))
	if req.TargetID != 0 {
		q.Set("target", strconv.FormatUint(req.TargetID, 10))
	}
	q.Set("kind", string(req.Kind))
	q.Set("direction", string(req.Direction))
	if req.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(req.PageSize))
	}
	if req.PageToken != "" {
		q.Set("page_token", req.PageToken)
	}

	var resp linksResponse
	if err := c.getJSON(ctx, "/v1/links", q, &resp); err != nil {
		return nil, err
	}

	page := &models.EdgePage{
		Items:     make([]models.Edge, 0, len(resp.Items)),
		NextToken: resp.NextPageToken,
	}
	for i, item := range resp.Items {
		edge, err := decodeLinkItem(item)
		if err != nil {
			return nil, fmt.Errorf("malformed edge item %d: %w", i, err)
		}
		page.Items = append(page.Items, edge)
	}
	return page, nil
}

// SubjectTotal returns the registered subject count from the hub.
func (c *Client) SubjectTotal(ctx context.Context) (uint64, error) {
	var resp infoResponse
	if err := c.getJSON(ctx, "/v1/info", nil, &resp); err != nil {
		return 0, err
	}
	if resp.SubjectCount == 0 {
		return 0, fmt.Errorf("hub reported zero registered subjects")
	}
	return resp.SubjectCount, nil
}

func decodeLinkItem(item linkItem) (models.Edge, error) {
	var tombstone bool
	switch item.Type {
	case "add":
	case "remove":
		tombstone = true
	default:
		return models.Edge{}, fmt.Errorf("unknown entry type %q", item.Type)
	}
	if item.Kind == "" {
		return models.Edge{}, fmt.Errorf("missing edge kind")
	}
	if item.Source == 0 || item.Target == 0 {
		return models.Edge{}, fmt.Errorf("missing edge endpoint (source=%d target=%d)", item.Source, item.Target)
	}
	return models.Edge{
		SourceID:  item.Source,
		TargetID:  item.Target,
		Kind:      models.EdgeKind(item.Kind),
		AddedAt:   time.Unix(item.Timestamp, 0).UTC(),
		Tombstone: tombstone,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("hub request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("hub request failed with status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode hub response: %w", err)
	}
	return nil
}
