package model

import "time"

// Recognized event types. Anything else is stored but ignored by aggregation.
const (
	EventSearchResults = "search_results"
	EventDetailsLoaded = "details_loaded"
	EventAPIError      = "api_error"
)

type TelemetryEvent struct {
	SessionID string         `json:"session_id"`
	UIVersion string         `json:"ui_version"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// StoredEvent is the projection returned by range queries: only the fields
// the aggregator needs.
type StoredEvent struct {
	CreatedAt time.Time      `json:"created_at"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
}

// MetricsBucket accumulates counts for one hour-aligned slot. The derived
// rates are nil when their denominator is zero.
type MetricsBucket struct {
	HourStart       time.Time `json:"hour_start"`
	Searches        int64     `json:"searches"`
	ZeroSearches    int64     `json:"zero_searches"`
	ZeroRate        *float64  `json:"zero_rate"`
	AvgLatencyMS    *int64    `json:"avg_latency_ms"`
	DetailsRequests int64     `json:"details_requests"`
	DetailsErrors   int64     `json:"details_errors"`
	DetailsErrRate  *float64  `json:"details_error_rate"`

	LatencySum   int64 `json:"-"`
	LatencyCount int64 `json:"-"`
}

// Finalize computes the derived rates from the accumulated counters.
func (b *MetricsBucket) Finalize() {
	b.ZeroRate = ratio(b.ZeroSearches, b.Searches)
	b.DetailsErrRate = ratio(b.DetailsErrors, b.DetailsRequests)
	if b.LatencyCount > 0 {
		avg := b.LatencySum / b.LatencyCount
		b.AvgLatencyMS = &avg
	}
}

func ratio(num, den int64) *float64 {
	if den == 0 {
		return nil
	}
	r := float64(num) / float64(den)
	return &r
}

// AlertEvaluation is the full result of one alert evaluation over a window.
// Ephemeral, recomputed per request.
type AlertEvaluation struct {
	WindowHours           int             `json:"window_hours"`
	Searches              int64           `json:"searches"`
	ZeroSearches          int64           `json:"zero_searches"`
	ZeroRate              *float64        `json:"zero_rate"`
	ZeroRateThreshold     float64         `json:"zero_rate_threshold"`
	DetailsRequests       int64           `json:"details_requests"`
	DetailsErrors         int64           `json:"details_errors"`
	DetailsErrorRate      *float64        `json:"details_error_rate"`
	DetailsErrorRateLimit float64         `json:"details_error_rate_threshold"`
	MinSearches           int             `json:"min_searches"`
	MinDetailsRequests    int             `json:"min_details_requests"`
	AlertZeroRate         bool            `json:"alert_zero_rate"`
	AlertDetailsErrorRate bool            `json:"alert_details_error_rate"`
	AlertActive           bool            `json:"alert_active"`
	Buckets               []MetricsBucket `json:"buckets"`
}

type CheckStatus string

const (
	CheckOK   CheckStatus = "ok"
	CheckFail CheckStatus = "fail"
)

// SyntheticCheckResult classifies a single probe against the live service.
type SyntheticCheckResult struct {
	Query     string      `json:"query"`
	Status    CheckStatus `json:"status"`
	LatencyMS int64       `json:"latency_ms"`
	Total     *int64      `json:"total,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (r SyntheticCheckResult) OK() bool { return r.Status == CheckOK }

// SyntheticRunSummary covers one monitor iteration.
type SyntheticRunSummary struct {
	RunID       string                 `json:"run_id"`
	BaseURL     string                 `json:"base_url"`
	TotalChecks int                    `json:"total_checks"`
	OKCount     int                    `json:"ok_count"`
	Failures    []SyntheticCheckResult `json:"failures"`
	Results     []SyntheticCheckResult `json:"-"`
	TS          int64                  `json:"ts"`
}
