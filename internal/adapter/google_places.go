package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// GooglePlaces fetches candidates from the Google Places Text Search API.
// Grounded on the teacher's internal/services/places Service: same
// single-request rate-limit gate, same API-key redaction in logs.
type GooglePlaces struct {
	apiKey     string
	rateLimit  time.Duration
	httpClient *http.Client
	logger     arbor.ILogger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewGooglePlaces constructs the adapter. timeout bounds each request;
// rateLimit is the minimum spacing enforced between requests.
func NewGooglePlaces(apiKey string, rateLimit, timeout time.Duration, logger arbor.ILogger) *GooglePlaces {
	return &GooglePlaces{
		apiKey:    apiKey,
		rateLimit: rateLimit,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (g *GooglePlaces) SourceName() string { return "google_places" }

func (g *GooglePlaces) Fetch(ctx context.Context, query string) (map[string]interface{}, error) {
	if err := g.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	apiURL := "https://maps.googleapis.com/maps/api/place/textsearch/json"
	params := url.Values{}
	params.Set("query", query)
	params.Set("key", g.apiKey)
	fullURL := fmt.Sprintf("%s?%s", apiURL, params.Encode())

	logURL := fmt.Sprintf("%s?query=%s&key=***REDACTED***", apiURL, url.QueryEscape(query))
	g.logger.Debug().Str("url", logURL).Msg("calling google places text search")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("google_places: building request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google_places: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google_places: status %d: %s", resp.StatusCode, string(body))
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("google_places: decoding response: %w", err)
	}

	if status, _ := asString(decoded["status"]); status != "" && status != "OK" && status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("google_places: api status %s", status)
	}

	return decoded, nil
}

func (g *GooglePlaces) waitForRateLimit(ctx context.Context) error {
	g.mu.Lock()
	var wait time.Duration
	if !g.lastRequest.IsZero() {
		elapsed := time.Since(g.lastRequest)
		if elapsed < g.rateLimit {
			wait = g.rateLimit - elapsed
		}
	}
	g.lastRequest = time.Now().Add(wait)
	g.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
