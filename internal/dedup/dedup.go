// Package dedup implements the three-tier plus fuzzy deduplication core
// that decides whether a newly-fetched candidate is a new entity or a
// duplicate of one already accepted. Grounded on orchestrator_state.py's
// OrchestratorState: _generate_entity_key, _find_fuzzy_match, accept_entity.
package dedup

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/edinburghfinds/lensfeed/internal/model"
)

// FuzzyMatchThreshold is the minimum token-set-ratio similarity (0-100)
// for two candidate names to be treated as the same entity.
const FuzzyMatchThreshold = 85

var whitespaceRun = regexp.MustCompile(`\s+`)
var leadingArticle = regexp.MustCompile(`^(the|a|an)\s+`)

// normalizeName casefolds, trims, and collapses internal whitespace runs.
func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	return whitespaceRun.ReplaceAllString(normalized, " ")
}

// removeCommonArticles strips a single leading "the"/"a"/"an" after
// normalizing, so "The Oriam" and "Oriam" compare equal.
func removeCommonArticles(name string) string {
	return leadingArticle.ReplaceAllString(normalizeName(name), "")
}

// hasStrongIdentifier reports whether a candidate carries an external id
// or a coordinate pair, either of which is trusted over fuzzy name
// matching.
func hasStrongIdentifier(c model.Candidate) bool {
	return c.HasStrongID() || c.HasCoords()
}

// GenerateEntityKey produces the deduplication key for a candidate using
// the three-tier strategy: strong ids (sorted lexicographically, first
// non-empty wins) -> geo key (normalized name + coordinates rounded to 4
// decimal places) -> SHA1 of a canonical JSON snapshot. seeds is consulted
// as a tier-1 fallback when the candidate itself carries no ids.
func GenerateEntityKey(c model.Candidate, seeds map[string]string) string {
	ids := c.IDs
	if len(ids) == 0 {
		ids = seeds
	}
	if len(ids) > 0 {
		keys := make([]string, 0, len(ids))
		for k := range ids {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := ids[k]; v != "" {
				return k + ":" + v
			}
		}
	}

	if c.HasCoords() && c.Name != "" {
		normalizedName := normalizeName(c.Name)
		return normalizedName + ":" + roundTo4(*c.Lat) + ":" + roundTo4(*c.Lng)
	}

	return sha1Fallback(c)
}

func roundTo4(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// sha1Fallback builds a canonical sorted-key JSON snapshot (string values
// normalized) and hashes it.
func sha1Fallback(c model.Candidate) string {
	canonical := map[string]interface{}{
		"name":    normalizeName(c.Name),
		"address": normalizeName(c.Address),
		"source":  normalizeName(c.Source),
	}
	encoded, _ := json.Marshal(canonical)

	// json.Marshal on a map sorts keys alphabetically already, but we build
	// the map explicitly above so the set of hashed fields stays fixed
	// regardless of what adapters stash in Raw.
	sum := sha1.Sum(encoded)
	return hex.EncodeToString(sum[:])
}

// FindFuzzyMatch looks for a token-set-ratio match (>= FuzzyMatchThreshold)
// between candidate and the accepted entities, applying the bidirectional
// policy: a weak candidate (no id/coords) is compared against every
// accepted entity; a strong candidate is compared only against weak
// accepted entities. Two strong entities never fuzzy match each other -
// their ids/coords are trusted instead. Returns the matched entity's key
// and true, or ("", false).
func FindFuzzyMatch(candidate model.Candidate, accepted []model.Candidate, seeds map[string]string) (string, bool) {
	if candidate.Name == "" {
		return "", false
	}
	candidateStrong := hasStrongIdentifier(candidate)
	normalizedCandidate := removeCommonArticles(candidate.Name)

	for _, entity := range accepted {
		if entity.Name == "" {
			continue
		}
		entityStrong := hasStrongIdentifier(entity)
		if candidateStrong && entityStrong {
			continue
		}

		normalizedEntity := removeCommonArticles(entity.Name)
		if tokenSetRatio(normalizedCandidate, normalizedEntity) >= FuzzyMatchThreshold {
			return GenerateEntityKey(entity, seeds), true
		}
	}
	return "", false
}

// AcceptResult is the outcome of running a candidate through Accept.
type AcceptResult struct {
	Accepted bool
	Key      string
	Reason   string
	// Replaced is set when a weak accepted entity was replaced in place by
	// a stronger candidate matching it. ReplacedKey is the superseded
	// entity's key (from GenerateEntityKey); callers find it by scanning
	// their accepted-entities slice for that key rather than by index.
	Replaced    bool
	ReplacedKey string
}

// Accept runs the full dedup decision for one candidate against the
// running state: exact key match rejects outright; a fuzzy match either
// replaces a weaker accepted entity (candidate is strong) or rejects the
// candidate (candidate is weak); otherwise the candidate is a new entity.
func Accept(candidate model.Candidate, accepted []model.Candidate, acceptedKeys map[string]struct{}, seeds map[string]string) AcceptResult {
	key := GenerateEntityKey(candidate, seeds)

	if _, exists := acceptedKeys[key]; exists {
		return AcceptResult{Accepted: false, Key: key, Reason: "duplicate"}
	}

	if fuzzyKey, ok := FindFuzzyMatch(candidate, accepted, seeds); ok {
		if hasStrongIdentifier(candidate) {
			return AcceptResult{
				Accepted:    true,
				Key:         key,
				Replaced:    true,
				ReplacedKey: fuzzyKey,
			}
		}
		return AcceptResult{Accepted: false, Key: fuzzyKey, Reason: "duplicate"}
	}

	return AcceptResult{Accepted: true, Key: key}
}
