package search

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"

	"github.com/plana-bot/plana/src/webclient"
)

const (
	pageTimeout    = 30 * time.Second
	pageCacheTTL   = time.Hour
	pageFetchTries = 2

	// Read cap on the raw body; pages bigger than this are cut off
	// before extraction, not rejected.
	maxPageBytes = 2 << 20
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// PageFetcher pulls readable text out of web pages, with a shared Redis
// cache so repeated searches do not refetch the same URL.
type PageFetcher struct {
	httpClient *http.Client
	cache      *redis.Client
	sanitizer  *bluemonday.Policy
	maxPerURL  int
	minLength  int
}

// NewPageFetcher builds a fetcher. cache may be nil to disable caching.
func NewPageFetcher(cache *redis.Client, maxPerURL, minLength int) *PageFetcher {
	return &PageFetcher{
		httpClient: webclient.NewDefault(pageTimeout),
		cache:      cache,
		sanitizer:  bluemonday.StrictPolicy(),
		maxPerURL:  maxPerURL,
		minLength:  minLength,
	}
}

// Extract returns the usable text of a page, ok=false when the page is
// unreachable, not text, or too short to be worth citing.
func (f *PageFetcher) Extract(ctx context.Context, pageURL string) (string, bool) {
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		log.Printf("search: invalid URL skipped: %s", pageURL)
		return "", false
	}

	key := pageCacheKey(pageURL)
	if f.cache != nil {
		if cached, err := f.cache.Get(ctx, key).Result(); err == nil {
			return cached, true
		} else if err != redis.Nil {
			log.Printf("search: page cache read: %v", err)
		}
	}

	text, ok := f.fetch(ctx, pageURL)
	if !ok {
		return "", false
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, key, text, pageCacheTTL).Err(); err != nil {
			log.Printf("search: page cache write: %v", err)
		}
	}
	return text, true
}

func (f *PageFetcher) fetch(ctx context.Context, pageURL string) (string, bool) {
	var contentType string

	status, body, err := webclient.DoWithRetry(ctx, pageFetchTries, 500*time.Millisecond, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("User-Agent", searchUserAgent)

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()

		contentType = strings.ToLower(resp.Header.Get("Content-Type"))
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		return resp.StatusCode, b, err
	})
	if err != nil {
		log.Printf("search: fetch %s: %v", pageURL, err)
		return "", false
	}
	if status != http.StatusOK {
		log.Printf("search: fetch %s: status %d", pageURL, status)
		return "", false
	}

	var text string
	switch {
	case strings.Contains(contentType, "application/json"):
		text = flattenJSONText(body)
	case strings.Contains(contentType, "text/html"):
		text = html.UnescapeString(f.sanitizer.Sanitize(string(body)))
	case strings.Contains(contentType, "text/plain"):
		text = string(body)
	default:
		log.Printf("search: skipping content type %q for %s", contentType, pageURL)
		return "", false
	}

	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))

	if runes := []rune(text); len(runes) > f.maxPerURL {
		text = string(runes[:f.maxPerURL]) + "..."
	}
	if len(text) < f.minLength {
		log.Printf("search: content too short (%d chars) for %s", len(text), pageURL)
		return "", false
	}
	return text, true
}

// flattenJSONText concatenates every string value in a JSON document.
// Invalid JSON falls back to the raw text.
func flattenJSONText(body []byte) string {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return string(body)
	}

	var parts []string
	var walk func(node interface{})
	walk = func(node interface{}) {
		switch v := node.(type) {
		case string:
			parts = append(parts, v)
		case map[string]interface{}:
			for _, child := range v {
				walk(child)
			}
		case []interface{}:
			for _, child := range v {
				walk(child)
			}
		}
	}
	walk(doc)
	return strings.Join(parts, " ")
}

func pageCacheKey(pageURL string) string {
	return fmt.Sprintf("search:page:%d", xxhash.Checksum64([]byte(pageURL)))
}
