package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	// DefaultEndpoint is the Messari subgraph URL template on The Graph hosted service.
	DefaultEndpoint = "https://api.thegraph.com/subgraphs/name/messari/{source}"
	// SourcePlaceholder is replaced with the source name in the endpoint template.
	SourcePlaceholder = "{source}"

	defaultHTTPTimeout      = 60 * time.Second
	defaultPageSize         = 1000
	defaultRetryBackoffBase = 250 * time.Millisecond
)

var (
	// ErrUnknownSource indicates a source name outside the configured set.
	ErrUnknownSource = errors.New("subgraph: unknown source")
	// ErrSchemaMismatch indicates the response lacks the queried entity.
	ErrSchemaMismatch = errors.New("subgraph: schema mismatch")
)

// FetchError is the failure of one remote query. It is never retried by the
// pipeline and carries no partial data.
type FetchError struct {
	Source string
	Entity string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("subgraph: fetch %s from %s: %v", e.Entity, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// QueryError is one entry of a GraphQL `errors` payload.
type QueryError struct {
	Message string `json:"message"`
}

// QueryErrors is returned when the endpoint answers with GraphQL errors.
type QueryErrors []QueryError

func (q QueryErrors) Error() string {
	msgs := make([]string, 0, len(q))
	for _, e := range q {
		msgs = append(msgs, e.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// Client runs queries against named subgraph deployments.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	pageSize   int
	sources    map[string]struct{}
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithEndpoint overrides the endpoint template. A template without the
// {source} placeholder is used as-is for every source.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithTimeout bounds every Query call, pagination included.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMaxRetries sets the retry budget for transport failures. Zero by default.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithPageSize overrides the records requested per page.
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithSources restricts the client to a known set of source names.
func WithSources(names ...string) Option {
	return func(c *Client) {
		if len(names) == 0 {
			return
		}
		c.sources = make(map[string]struct{}, len(names))
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				c.sources[name] = struct{}{}
			}
		}
	}
}

// NewClient constructs a subgraph client.
func NewClient(opts ...Option) *Client {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	client := &Client{
		endpoint:   DefaultEndpoint,
		httpClient: httpClient,
		pageSize:   defaultPageSize,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = httpClient
	}
	return client
}

// Sources lists the configured source names in sorted order.
func (c *Client) Sources() []string {
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether source may be queried.
func (c *Client) Known(source string) bool {
	if len(c.sources) == 0 {
		return strings.TrimSpace(source) != ""
	}
	_, ok := c.sources[source]
	return ok
}

// URL resolves the endpoint for a source.
func (c *Client) URL(source string) (string, error) {
	if !c.Known(source) {
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return strings.ReplaceAll(c.endpoint, SourcePlaceholder, source), nil
}

// Query executes q against source and returns the flattened result. Records
// beyond the page size are fetched with id and order field cursors up to
// q.First. Any failed page fails the whole call.
func (c *Client) Query(ctx context.Context, source string, q Query) (*Table, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	url, err := c.URL(source)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	p := &pager{client: c, url: url, limit: q.First}
	if err := p.collect(ctx, q); err != nil {
		return nil, &FetchError{Source: source, Entity: q.Entity, Err: err}
	}
	sel := selectionFor(q.Fields)
	table := NewTable(sel.columns(q.Entity)...)
	for _, obj := range p.out {
		table.appendRecords(flatten(obj, sel, q.Entity))
	}

	logx.WithContext(ctx).WithDuration(time.Since(start)).Infof(
		"subgraph: source=%s entity=%s pages=%d rows=%d", source, q.Entity, p.pages, table.Len())
	return table, nil
}

type graphqlRequest struct {
	Query string `json:"query"`
}

type graphqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors QueryErrors                `json:"errors"`
}

func (c *Client) fetchPage(ctx context.Context, url, entity, doc string) ([]map[string]any, error) {
	var resp graphqlResponse
	if err := c.doRequest(ctx, url, graphqlRequest{Query: doc}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, resp.Errors
	}
	raw, ok := resp.Data[entity]
	if !ok {
		return nil, fmt.Errorf("%w: entity %q missing from response", ErrSchemaMismatch, entity)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrSchemaMismatch, entity, err)
	}
	return records, nil
}

// doRequest posts a GraphQL document and decodes the envelope into result.
func (c *Client) doRequest(ctx context.Context, url string, req graphqlRequest, result interface{}) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var lastErr error
	backoff := defaultRetryBackoffBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("read response: %w", readErr)
			} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			} else {
				if err := json.Unmarshal(body, result); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
				return nil
			}
		}

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return errors.New("request failed without error detail")
}
