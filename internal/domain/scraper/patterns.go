package scraper

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	costPattern     = regexp.MustCompile(`Total cost:\s*\$(\d+\.\d{2})`)
	tokensPattern   = regexp.MustCompile(`Total tokens:\s*([\d,]+)\s*\(in:\s*([\d.,KM]+),\s*out:\s*([\d.,KM]+)\)`)
	durationPattern = regexp.MustCompile(`Duration:\s*(?:(\d+)m)?\s*(\d+)s`)
)

// parseGrouped parses comma-grouped digits such as "4,500".
func parseGrouped(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseCompact parses counts like "500", "1,200", "4.0K" or "1.5M". Suffixed
// values are rounded to the nearest integer.
func parseCompact(s string) (int64, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))

	multiplier := 0.0
	switch {
	case strings.HasSuffix(normalized, "K"):
		multiplier = 1_000
	case strings.HasSuffix(normalized, "M"):
		multiplier = 1_000_000
	default:
		n, err := strconv.ParseInt(normalized, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}

	f, err := strconv.ParseFloat(normalized[:len(normalized)-1], 64)
	if err != nil {
		return 0, false
	}
	v := math.Round(f * multiplier)
	if math.IsInf(v, 0) || math.IsNaN(v) || v > math.MaxInt64 || v < math.MinInt64 {
		return 0, false
	}
	return int64(v), true
}
