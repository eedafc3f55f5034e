package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"searchwatch/internal/model"
)

// Mode selects the ingestion contract for a telemetry body.
type Mode int

const (
	// Strict rejects bodies that are not a JSON object.
	Strict Mode = iota
	// Lenient parses best-effort; the caller converts the error into an
	// in-band soft failure instead of surfacing it.
	Lenient
)

var ErrMalformedBody = errors.New("body is not a JSON object")

// ParseEvent decodes a telemetry envelope into a TelemetryEvent, applying
// the ingestion defaults: empty session/version strings, "report" (strict)
// or "unknown" (lenient) event type, empty payload map.
func ParseEvent(body []byte, mode Mode) (model.TelemetryEvent, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return model.TelemetryEvent{}, ErrMalformedBody
	}

	ev := model.TelemetryEvent{
		SessionID: stringField(obj, "session_id"),
		UIVersion: stringField(obj, "ui_version"),
		EventType: stringField(obj, "event_type"),
		Payload:   payloadField(obj),
	}
	if ev.EventType == "" {
		if mode == Strict {
			ev.EventType = "report"
		} else {
			ev.EventType = "unknown"
		}
	}
	return ev, nil
}

func stringField(obj map[string]any, key string) string {
	v, ok := obj[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func payloadField(obj map[string]any) map[string]any {
	if m, ok := obj["payload"].(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}
