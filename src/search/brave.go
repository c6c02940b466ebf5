package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/plana-bot/plana/src/webclient"
)

const (
	defaultBraveEndpoint = "https://api.search.brave.com/res/v1/web/search"
	braveTimeout         = 20 * time.Second

	// Brave's free tier allows one request per second; spacing calls a
	// little wider keeps bursts of queries inside the quota.
	braveCallSpacing = 1100 * time.Millisecond

	searchUserAgent = "PlanaBot/1.0 (Discord Bot)"
)

// SearchResult is one web hit from the Brave Search API.
type SearchResult struct {
	Title       string
	URL         string
	Description string
}

// BraveClient calls the Brave web search API, spacing consecutive calls.
type BraveClient struct {
	apiKey     string
	endpoint   string
	maxResults int
	spacing    time.Duration
	httpClient *http.Client

	mu       sync.Mutex
	lastCall time.Time
}

// NewBraveClient returns a client requesting up to maxResults hits per
// query. The key may be empty; Search then fails until one is set.
func NewBraveClient(apiKey string, maxResults int) *BraveClient {
	if maxResults < 1 {
		maxResults = 5
	}
	return &BraveClient{
		apiKey:     apiKey,
		endpoint:   defaultBraveEndpoint,
		maxResults: maxResults,
		spacing:    braveCallSpacing,
		httpClient: webclient.NewDefault(braveTimeout),
	}
}

// Configured reports whether an API key is present.
func (c *BraveClient) Configured() bool {
	return c.apiKey != ""
}

// Search runs one web query. An empty result list with a nil error means
// the query genuinely found nothing.
func (c *BraveClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("brave: API key not configured")
	}

	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(c.maxResults))
	params.Set("search_filter", "web")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("brave: unexpected status %d", resp.StatusCode)
	}

	var payload braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}

	results := make([]SearchResult, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Description: r.Description})
	}
	return results, nil
}

// waitTurn blocks until the spacing since the previous call has passed.
// Concurrent callers each reserve their own slot.
func (c *BraveClient) waitTurn(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	var wait time.Duration
	if next := c.lastCall.Add(c.spacing); next.After(now) {
		wait = next.Sub(now)
		c.lastCall = next
	} else {
		c.lastCall = now
	}
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}
