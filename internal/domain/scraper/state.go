package scraper

import (
	"strconv"
	"strings"
	"time"

	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

// Accumulator collects the fields of one usage summary as its lines arrive.
// Nil fields have not been seen yet.
type Accumulator struct {
	Cost        *float64
	TokensTotal *int64
	TokensIn    *int64
	TokensOut   *int64
	Duration    *int64
	Lines       []string
}

// Apply folds one cleaned line into the accumulator and reports whether it
// matched a pattern. A capture that fails to parse leaves the field as is.
func (a *Accumulator) Apply(line string) bool {
	matched := false

	if m := costPattern.FindStringSubmatch(line); m != nil {
		matched = true
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			a.Cost = &v
		}
	}

	if m := tokensPattern.FindStringSubmatch(line); m != nil {
		matched = true
		if v, ok := parseGrouped(m[1]); ok {
			a.TokensTotal = &v
		}
		if v, ok := parseCompact(m[2]); ok {
			a.TokensIn = &v
		}
		if v, ok := parseCompact(m[3]); ok {
			a.TokensOut = &v
		}
	}

	if m := durationPattern.FindStringSubmatch(line); m != nil {
		matched = true
		if v, ok := parseDuration(m[1], m[2]); ok {
			a.Duration = &v
		}
	}

	if matched {
		a.Lines = append(a.Lines, line)
	}
	return matched
}

// Complete reports whether the accumulator holds a full record once line
// has been applied. A blank line terminates a summary without a duration.
func (a *Accumulator) Complete(line string) bool {
	if a.Cost == nil || a.TokensTotal == nil || a.TokensIn == nil || a.TokensOut == nil {
		return false
	}
	return a.Duration != nil || strings.TrimSpace(line) == ""
}

// Record builds the usage record. Call only when Complete is true.
func (a *Accumulator) Record(sessionID, agent string, capturedAt time.Time) types.UsageRecord {
	r := types.UsageRecord{
		SessionID:   sessionID,
		Agent:       agent,
		CostUSD:     *a.Cost,
		TokensIn:    *a.TokensIn,
		TokensOut:   *a.TokensOut,
		TokensTotal: *a.TokensTotal,
		CapturedAt:  capturedAt,
		RawOutput:   strings.Join(a.Lines, "\n"),
	}
	if a.Duration != nil {
		d := *a.Duration
		r.DurationS = &d
	}
	return r
}

// Reset empties the accumulator.
func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

func parseDuration(minutes, seconds string) (int64, bool) {
	var m int64
	if minutes != "" {
		v, err := strconv.ParseInt(minutes, 10, 64)
		if err != nil {
			return 0, false
		}
		m = v
	}
	s, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil {
		return 0, false
	}
	return m*60 + s, true
}
