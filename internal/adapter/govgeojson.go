package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/edinburghfinds/lensfeed/internal/queryfeatures"
)

// GovernmentGeoJSON fetches candidates from a government WFS endpoint that
// serves GeoJSON feature collections for a fixed set of layers.
// Generalized from the original Sport Scotland connector, whose only layer
// was "pub_sptk" (public sports facilities) - see translate.go.
type GovernmentGeoJSON struct {
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
	keywords   queryfeatures.Keywords
}

func NewGovernmentGeoJSON(baseURL string, timeout time.Duration, logger arbor.ILogger) *GovernmentGeoJSON {
	return &GovernmentGeoJSON{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		keywords:   queryfeatures.DefaultKeywords(),
	}
}

func (g *GovernmentGeoJSON) SourceName() string { return "government_geojson" }

func (g *GovernmentGeoJSON) Fetch(ctx context.Context, query string) (map[string]interface{}, error) {
	features := queryfeatures.Extract(query, g.keywords)
	layer := Translate(g.SourceName(), query, features)

	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "2.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeNames", layer)
	params.Set("outputFormat", "application/json")

	fullURL := fmt.Sprintf("%s?%s", g.baseURL, params.Encode())
	g.logger.Debug().Str("layer", layer).Msg("calling government wfs feed")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("government_geojson: building request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("government_geojson: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("government_geojson: status %d: %s", resp.StatusCode, string(body))
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("government_geojson: decoding response: %w", err)
	}
	return decoded, nil
}
