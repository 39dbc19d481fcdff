package adapter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
)

// OvertureRelease enriches candidates from a locally staged extract of the
// Overture Maps Places release (newline-delimited GeoJSON rows, one
// release slice per lens deployment). It is an enrichment-phase source:
// bulk, no rate limit, filtered in-process rather than queried remotely.
type OvertureRelease struct {
	extractPath string
	logger      arbor.ILogger
}

func NewOvertureRelease(extractPath string, logger arbor.ILogger) *OvertureRelease {
	return &OvertureRelease{extractPath: extractPath, logger: logger}
}

func (o *OvertureRelease) SourceName() string { return "overture_release" }

// Fetch scans the staged NDJSON extract and returns every row whose name
// (top-level "name" or "names.primary") contains the query, case
// insensitively. The result is wrapped under the "features" envelope key
// so it flows through the same ExtractItems precedence as a GeoJSON feed.
func (o *OvertureRelease) Fetch(ctx context.Context, query string) (map[string]interface{}, error) {
	file, err := os.Open(o.extractPath)
	if err != nil {
		return nil, fmt.Errorf("overture_release: opening extract: %w", err)
	}
	defer file.Close()

	needle := strings.ToLower(strings.TrimSpace(query))
	var matches []interface{}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row map[string]interface{}
		if err := json.Unmarshal(line, &row); err != nil {
			continue
		}
		if needle == "" || rowMatchesName(row, needle) {
			matches = append(matches, row)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("overture_release: scanning extract: %w", err)
	}

	o.logger.Debug().Int("matches", len(matches)).Msg("overture release extract scanned")
	return map[string]interface{}{"features": matches}, nil
}

func rowMatchesName(row map[string]interface{}, needle string) bool {
	if name, ok := asString(row["name"]); ok && strings.Contains(strings.ToLower(name), needle) {
		return true
	}
	if names, ok := row["names"].(map[string]interface{}); ok {
		switch primary := names["primary"].(type) {
		case string:
			return strings.Contains(strings.ToLower(primary), needle)
		case map[string]interface{}:
			if v, ok := asString(primary["value"]); ok {
				return strings.Contains(strings.ToLower(v), needle)
			}
		}
	}
	return false
}
