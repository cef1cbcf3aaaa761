// Package notion wraps the Notion API for reading and seeding a menu database.
package notion

import (
	"context"
	"errors"
	"net/http"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// defaultMaxAttempts is how many 429 responses a call tolerates before the
// SDK gives up.
const defaultMaxAttempts = 3

// Client defines the Notion API operations used by this application.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default Notion rate limit (3 req/s). A
// non-positive rate disables throttling.
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithMaxAttempts sets how many 429 responses a call tolerates, sleeping for
// Notion's Retry-After between them. Values below 1 are raised to 1.
func WithMaxAttempts(n int) ClientOption {
	return func(c *notionClient) {
		c.maxAttempts = max(n, 1)
	}
}

// notionClient implements Client by wrapping a *notionapi.Client.
type notionClient struct {
	inner       *notionapi.Client
	limiter     *rate.Limiter
	maxAttempts int
}

// NewClient creates a new Notion client with the given integration token.
// By default, API calls are throttled to 3 req/s (Notion's rate limit) and
// a call gives up after three 429 responses.
func NewClient(token string, opts ...ClientOption) Client {
	c := &notionClient{
		limiter:     rate.NewLimiter(3, 1),
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.inner = notionapi.NewClient(notionapi.Token(token), notionapi.WithRetry(c.maxAttempts))
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *notionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "notion: rate limit")
	}
	resp, err := c.inner.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query database %s", dbID)
	}
	return resp, nil
}

func (c *notionClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "notion: rate limit")
	}
	page, err := c.inner.Page.Create(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "notion: create page")
	}
	return page, nil
}

// StatusCode extracts the HTTP status from a Notion API error, or 0 when err
// did not come from the API. Exhausted 429 retries report 429.
func StatusCode(err error) int {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var rlErr *notionapi.RateLimitedError
	if errors.As(err, &rlErr) {
		return http.StatusTooManyRequests
	}
	return 0
}
