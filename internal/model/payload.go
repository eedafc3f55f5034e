package model

import (
	"encoding/json"
	"strconv"
)

// EventPayload is a closed union over the recognized event types. Events the
// pipeline does not know about decode to OtherPayload so they are stored but
// contribute nothing to aggregation.
type EventPayload interface {
	eventPayload()
}

type SearchResultsPayload struct {
	Total      int64
	LatencyMS  int64
	HasLatency bool
}

type DetailsLoadedPayload struct{}

type APIErrorPayload struct{}

type OtherPayload struct {
	Raw map[string]any
}

func (SearchResultsPayload) eventPayload() {}
func (DetailsLoadedPayload) eventPayload() {}
func (APIErrorPayload) eventPayload()      {}
func (OtherPayload) eventPayload()         {}

// DecodePayload interprets a raw payload map according to the event type.
// Missing or non-numeric fields degrade to their defaults; a malformed
// payload never produces an error.
func DecodePayload(eventType string, raw map[string]any) EventPayload {
	switch eventType {
	case EventSearchResults:
		p := SearchResultsPayload{}
		if total, ok := coerceInt(raw["total"]); ok {
			p.Total = total
		}
		if latency, ok := coerceInt(raw["latency_ms"]); ok {
			p.LatencyMS = latency
			p.HasLatency = true
		}
		return p
	case EventDetailsLoaded:
		return DetailsLoadedPayload{}
	case EventAPIError:
		return APIErrorPayload{}
	default:
		return OtherPayload{Raw: raw}
	}
}

func coerceInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}
