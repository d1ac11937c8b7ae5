package types

import "time"

// DefaultAgent labels usage scraped from the assistant's end-of-run summary.
const DefaultAgent = "claude-code"

// UsageRecord is one persisted measurement of a completed assistant run
// inside a terminal session.
type UsageRecord struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Agent       string    `json:"agent"`
	CostUSD     float64   `json:"cost_usd"`
	TokensIn    int64     `json:"tokens_in"`
	TokensOut   int64     `json:"tokens_out"`
	TokensTotal int64     `json:"tokens_total"`
	DurationS   *int64    `json:"duration_s,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
	RawOutput   string    `json:"raw_output"`
}

// Stream identifies the output of one session instance. Every spawn gets a
// new Instance, so a reused session id starts with fresh scrape state.
type Stream struct {
	SessionID string
	Instance  uint64
}
