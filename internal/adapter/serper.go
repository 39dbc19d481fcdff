package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
)

// Serper fetches candidates from the Serper.dev Google search proxy. A
// discovery-phase, query-only source: no coordinates, no strong ids, just
// organic result titles and snippets.
type Serper struct {
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
}

func NewSerper(apiKey string, timeout time.Duration, logger arbor.ILogger) *Serper {
	return &Serper{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (s *Serper) SourceName() string { return "serper" }

func (s *Serper) Fetch(ctx context.Context, query string) (map[string]interface{}, error) {
	body, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return nil, fmt.Errorf("serper: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://google.serper.dev/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("serper: building request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	s.logger.Debug().Str("query", query).Msg("calling serper search")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("serper: status %d: %s", resp.StatusCode, string(errBody))
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("serper: decoding response: %w", err)
	}
	return decoded, nil
}
