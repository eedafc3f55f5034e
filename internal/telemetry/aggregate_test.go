package telemetry

import (
	"testing"
	"time"

	"searchwatch/internal/model"
)

var windowEnd = time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

func event(at time.Time, eventType string, payload map[string]any) model.StoredEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	return model.StoredEvent{CreatedAt: at, EventType: eventType, Payload: payload}
}

func TestBucketCountAndOrder(t *testing.T) {
	start := windowEnd.Add(-3 * time.Hour)
	buckets := BucketEvents(nil, start, windowEnd)
	if len(buckets) != 4 {
		t.Fatalf("expected 4 buckets, got %d", len(buckets))
	}
	for i, b := range buckets {
		want := TruncateToHour(start).Add(time.Duration(i) * time.Hour)
		if !b.HourStart.Equal(want) {
			t.Fatalf("bucket %d hour_start %s, want %s", i, b.HourStart, want)
		}
	}
}

func TestEmptyWindowZeroFilled(t *testing.T) {
	start := windowEnd.Add(-2 * time.Hour)
	buckets := BucketEvents(nil, start, windowEnd)
	for _, b := range buckets {
		if b.Searches != 0 || b.DetailsRequests != 0 {
			t.Fatalf("expected zero counts, got %+v", b)
		}
		if b.ZeroRate != nil || b.AvgLatencyMS != nil || b.DetailsErrRate != nil {
			t.Fatalf("expected nil rates for empty bucket, got %+v", b)
		}
	}
}

func TestSearchResultsCounting(t *testing.T) {
	start := windowEnd.Add(-time.Hour)
	at := windowEnd.Add(-10 * time.Minute)
	events := []model.StoredEvent{
		event(at, model.EventSearchResults, map[string]any{"total": float64(5), "latency_ms": float64(100)}),
		event(at, model.EventSearchResults, map[string]any{"total": float64(0), "latency_ms": float64(300)}),
	}
	buckets := BucketEvents(events, start, windowEnd)
	last := buckets[len(buckets)-1]
	if last.Searches != 2 {
		t.Fatalf("searches = %d, want 2", last.Searches)
	}
	if last.ZeroSearches != 1 {
		t.Fatalf("zero_searches = %d, want 1", last.ZeroSearches)
	}
	if last.ZeroRate == nil || *last.ZeroRate != 0.5 {
		t.Fatalf("zero_rate = %v, want 0.5", last.ZeroRate)
	}
	if last.AvgLatencyMS == nil || *last.AvgLatencyMS != 200 {
		t.Fatalf("avg_latency_ms = %v, want 200", last.AvgLatencyMS)
	}
}

func TestMalformedNumericFieldsDegrade(t *testing.T) {
	start := windowEnd.Add(-time.Hour)
	at := windowEnd.Add(-5 * time.Minute)
	events := []model.StoredEvent{
		// total unparsable: defaults to 0 and counts as a zero search.
		event(at, model.EventSearchResults, map[string]any{"total": "garbage", "latency_ms": "fast"}),
		event(at, model.EventSearchResults, map[string]any{"total": "7", "latency_ms": float64(40)}),
	}
	buckets := BucketEvents(events, start, windowEnd)
	last := buckets[len(buckets)-1]
	if last.Searches != 2 || last.ZeroSearches != 1 {
		t.Fatalf("searches=%d zero=%d, want 2/1", last.Searches, last.ZeroSearches)
	}
	if last.LatencyCount != 1 {
		t.Fatalf("latency_count = %d, want 1 (bad latency skipped)", last.LatencyCount)
	}
	if last.AvgLatencyMS == nil || *last.AvgLatencyMS != 40 {
		t.Fatalf("avg_latency_ms = %v, want 40", last.AvgLatencyMS)
	}
}

func TestDetailsRequestCounting(t *testing.T) {
	start := windowEnd.Add(-time.Hour)
	at := windowEnd.Add(-5 * time.Minute)
	events := []model.StoredEvent{
		event(at, model.EventDetailsLoaded, nil),
		event(at, model.EventDetailsLoaded, nil),
		event(at, model.EventAPIError, nil),
		event(at, model.EventAPIError, nil),
	}
	buckets := BucketEvents(events, start, windowEnd)
	last := buckets[len(buckets)-1]
	if last.DetailsRequests != 4 || last.DetailsErrors != 2 {
		t.Fatalf("details=%d errors=%d, want 4/2", last.DetailsRequests, last.DetailsErrors)
	}
	if last.DetailsErrRate == nil || *last.DetailsErrRate != 0.5 {
		t.Fatalf("details_error_rate = %v, want 0.5", last.DetailsErrRate)
	}
}

func TestUnrecognizedEventTypesIgnored(t *testing.T) {
	start := windowEnd.Add(-time.Hour)
	at := windowEnd.Add(-5 * time.Minute)
	events := []model.StoredEvent{
		event(at, "page_view", map[string]any{"total": float64(0)}),
		event(at, "unknown", nil),
	}
	buckets := BucketEvents(events, start, windowEnd)
	for _, b := range buckets {
		if b.Searches != 0 || b.DetailsRequests != 0 {
			t.Fatalf("unrecognized events must not contribute: %+v", b)
		}
	}
}

func TestEventsBucketedByHour(t *testing.T) {
	start := windowEnd.Add(-2 * time.Hour)
	events := []model.StoredEvent{
		event(windowEnd.Add(-105*time.Minute), model.EventSearchResults, map[string]any{"total": float64(3)}),
		event(windowEnd.Add(-10*time.Minute), model.EventSearchResults, map[string]any{"total": float64(3)}),
	}
	buckets := BucketEvents(events, start, windowEnd)
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	if buckets[0].Searches != 1 || buckets[1].Searches != 0 || buckets[2].Searches != 1 {
		t.Fatalf("events landed in the wrong buckets: %d/%d/%d",
			buckets[0].Searches, buckets[1].Searches, buckets[2].Searches)
	}
}
