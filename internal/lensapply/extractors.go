package lensapply

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// extractRegexCapture returns the first capture group of pattern matched
// against text, or "" with ok=false if no match (or no capture group).
func extractRegexCapture(text, pattern string) (string, bool) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", false
	}
	match := re.FindStringSubmatch(text)
	if len(match) < 2 {
		return "", false
	}
	return match[1], true
}

var firstNumber = regexp.MustCompile(`[-+]?\d*\.?\d+`)

// extractNumeric returns the first numeric token in text as either an int
// or a float64, matching the original's int-vs-float split on the
// presence of a decimal point.
func extractNumeric(text string) (interface{}, bool) {
	match := firstNumber.FindString(text)
	if match == "" {
		return nil, false
	}
	if strings.Contains(match, ".") {
		f, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return nil, false
	}
	return n, true
}

// applyNormalizers runs the named normalizer pipeline left to right.
// Unknown normalizer names are skipped, matching the original registry
// lookup's silent no-op on a miss.
func applyNormalizers(value interface{}, normalizers []string) interface{} {
	result := value
	for _, name := range normalizers {
		switch name {
		case "trim":
			result = strings.TrimSpace(fmt.Sprintf("%v", result))
		case "lowercase":
			result = strings.ToLower(fmt.Sprintf("%v", result))
		case "round_integer":
			result = normalizeRoundInteger(result)
		}
	}
	return result
}

func normalizeRoundInteger(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return value
		}
		return int(f)
	case float64:
		return int(v)
	case int:
		return v
	default:
		return value
	}
}
