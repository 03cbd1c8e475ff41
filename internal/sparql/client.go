package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trivia-quiz-service/internal/domain"
)

const (
	// DefaultEndpoint is the public Wikidata query service.
	DefaultEndpoint = "https://query.wikidata.org/sparql"
	// DefaultUserAgent identifies the service to the endpoint operators.
	DefaultUserAgent = "trivia-quiz-service/1.0"

	labelVar = "label"
	imageVar = "image"

	maxBodyBytes = 4 << 20
	snippetBytes = 512
)

// Client executes SPARQL queries over HTTP and maps result rows to candidates.
type Client struct {
	endpoint   string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. The client is copied, never modified.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-call timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger used for malformed payload reports
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a client for the given endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:  endpoint,
		userAgent: DefaultUserAgent,
		timeout:   10 * time.Second,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	httpClient := &http.Client{}
	if c.httpClient != nil {
		copied := *c.httpClient
		httpClient = &copied
	}
	if c.timeout > 0 {
		httpClient.Timeout = c.timeout
	}
	c.httpClient = httpClient
	return c
}

type resultSet struct {
	Results *struct {
		Bindings []map[string]binding `json:"bindings"`
	} `json:"results"`
}

type binding struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Query runs query restricted to the [offset, offset+limit) result window.
// It does not deduplicate rows.
func (c *Client) Query(ctx context.Context, query string, offset, limit int) ([]domain.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(WithWindow(query, offset, limit)))
	if err != nil {
		return nil, fmt.Errorf("build sparql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The caller gave up; the endpoint is not at fault.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var parsed resultSet
	if err := json.Unmarshal(data, &parsed); err != nil || parsed.Results == nil {
		c.log.Error().
			Err(err).
			Int("status", resp.StatusCode).
			Str("content_type", resp.Header.Get("Content-Type")).
			Str("body", snippet(data)).
			Msg("unexpected sparql response shape")
		return nil, fmt.Errorf("%w: missing results.bindings", domain.ErrMalformedUpstreamData)
	}

	rows := parsed.Results.Bindings
	candidates := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		label, ok := row[labelVar]
		if !ok {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Label:       label.Value,
			ResourceURL: row[imageVar].Value,
		})
	}
	if len(rows) > 0 && len(candidates) == 0 {
		c.log.Error().
			Int("rows", len(rows)).
			Str("body", snippet(data)).
			Msg("sparql rows carry no label binding")
		return nil, fmt.Errorf("%w: no %q binding in %d rows", domain.ErrMalformedUpstreamData, labelVar, len(rows))
	}
	return candidates, nil
}

// WithWindow appends OFFSET and LIMIT clauses to query.
func WithWindow(query string, offset, limit int) string {
	return fmt.Sprintf("%s\nOFFSET %d\nLIMIT %d", strings.TrimSpace(query), offset, limit)
}

func snippet(data []byte) string {
	if len(data) > snippetBytes {
		return string(data[:snippetBytes]) + "..."
	}
	return string(data)
}
