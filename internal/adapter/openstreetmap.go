package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// OpenStreetMap fetches candidates from the Overpass API. Discovery-phase,
// free of charge, no api key.
type OpenStreetMap struct {
	endpoint   string
	httpClient *http.Client
	logger     arbor.ILogger
}

func NewOpenStreetMap(timeout time.Duration, logger arbor.ILogger) *OpenStreetMap {
	return &OpenStreetMap{
		endpoint:   "https://overpass-api.de/api/interpreter",
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (o *OpenStreetMap) SourceName() string { return "openstreetmap" }

// Fetch builds an Overpass QL query matching nodes and ways whose name tag
// matches the search query case-insensitively. Relations are not queried,
// and the query carries no bounding box, so results are not
// geographically scoped.
func (o *OpenStreetMap) Fetch(ctx context.Context, query string) (map[string]interface{}, error) {
	escaped := strings.ReplaceAll(query, `"`, `\"`)
	ql := fmt.Sprintf(`[out:json][timeout:25];(node["name"~"%s",i];way["name"~"%s",i];);out body center;`, escaped, escaped)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader([]byte("data="+ql)))
	if err != nil {
		return nil, fmt.Errorf("openstreetmap: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	o.logger.Debug().Str("query", query).Msg("calling overpass api")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openstreetmap: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openstreetmap: status %d: %s", resp.StatusCode, string(body))
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("openstreetmap: decoding response: %w", err)
	}
	return decoded, nil
}
