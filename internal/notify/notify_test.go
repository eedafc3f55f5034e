package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"searchwatch/internal/model"
)

type spyFallback struct {
	mu       sync.Mutex
	recorded []string
}

func (f *spyFallback) Record(_ context.Context, eventType string, _ any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, eventType)
	return true
}

func TestDispatchPostsEnvelopeToWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fb := &spyFallback{}
	n := New(srv.URL, fb, nil)
	sent := n.Dispatch(context.Background(), "ui_telemetry_alert", map[string]any{"alert_active": true})
	if !sent {
		t.Fatalf("expected webhook_sent=true")
	}
	if got["type"] != "ui_telemetry_alert" {
		t.Fatalf("envelope type = %v", got["type"])
	}
	if _, ok := got["payload"].(map[string]any); !ok {
		t.Fatalf("envelope payload missing: %v", got)
	}
	if len(fb.recorded) != 0 {
		t.Fatalf("fallback must not fire when a webhook is configured")
	}
}

func TestDispatchFallsBackWithoutWebhook(t *testing.T) {
	fb := &spyFallback{}
	n := New("", fb, nil)
	sent := n.Dispatch(context.Background(), "synthetic_monitor_failure", map[string]any{"ok_count": 0})
	if sent {
		t.Fatalf("webhook_sent must be false on the fallback path")
	}
	if len(fb.recorded) != 1 || fb.recorded[0] != "synthetic_monitor_failure" {
		t.Fatalf("fallback recorded %v", fb.recorded)
	}
}

func TestDispatchTaggedUsesFallbackType(t *testing.T) {
	fb := &spyFallback{}
	n := New("", fb, nil)
	if sent := n.DispatchTagged(context.Background(), "synthetic_monitor_failure", "synthetic_failure", nil); sent {
		t.Fatalf("webhook_sent must be false on the fallback path")
	}
	if len(fb.recorded) != 1 || fb.recorded[0] != "synthetic_failure" {
		t.Fatalf("fallback recorded %v", fb.recorded)
	}

	// With a webhook configured the webhook tag is used instead.
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	n = New(srv.URL, fb, nil)
	if sent := n.DispatchTagged(context.Background(), "synthetic_monitor_failure", "synthetic_failure", nil); !sent {
		t.Fatalf("expected webhook_sent=true")
	}
	if got["type"] != "synthetic_monitor_failure" {
		t.Fatalf("webhook envelope type = %v", got["type"])
	}
}

func TestDispatchSwallowsWebhookFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(srv.URL, nil, nil)
	if sent := n.Dispatch(context.Background(), "ui_telemetry_alert", nil); sent {
		t.Fatalf("rejected webhook must report sent=false")
	}

	// Unreachable destination: swallowed the same way.
	n = New("http://127.0.0.1:1", nil, nil)
	if sent := n.Dispatch(context.Background(), "ui_telemetry_alert", nil); sent {
		t.Fatalf("unreachable webhook must report sent=false")
	}
}

type memStore struct {
	mu     sync.Mutex
	events []model.TelemetryEvent
	err    error
}

func (s *memStore) Init(context.Context) error { return nil }
func (s *memStore) Close() error               { return nil }

func (s *memStore) AppendEvent(_ context.Context, ev model.TelemetryEvent) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.CreatedAt = time.Now().UTC()
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) QueryWindow(_ context.Context, start, end time.Time) ([]model.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StoredEvent
	for _, ev := range s.events {
		if ev.CreatedAt.Before(start) || ev.CreatedAt.After(end) {
			continue
		}
		out = append(out, model.StoredEvent{CreatedAt: ev.CreatedAt, EventType: ev.EventType, Payload: ev.Payload})
	}
	return out, nil
}

func TestStoreFallbackRecordsEvent(t *testing.T) {
	store := &memStore{}
	fb := &StoreFallback{Store: store}
	summary := model.SyntheticRunSummary{RunID: "r1", BaseURL: "http://svc", TotalChecks: 2}

	if ok := fb.Record(context.Background(), "synthetic_monitor_failure", summary); !ok {
		t.Fatalf("expected record to succeed")
	}
	if len(store.events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(store.events))
	}
	ev := store.events[0]
	if ev.EventType != "synthetic_monitor_failure" {
		t.Fatalf("event_type = %q", ev.EventType)
	}
	if ev.SessionID != "alerts" {
		t.Fatalf("session_id = %q, want alerts", ev.SessionID)
	}
	if ev.Payload["base_url"] != "http://svc" {
		t.Fatalf("payload not flattened to a map: %v", ev.Payload)
	}
}

func TestTelemetryFallbackPostsLenientEnvelope(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ui/telemetry" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fb := NewTelemetryFallback(srv.URL, nil)
	if ok := fb.Record(context.Background(), "synthetic_monitor_failure", map[string]any{"ok_count": 0}); !ok {
		t.Fatalf("expected record to succeed")
	}
	if got["session_id"] != "synthetic" || got["event_type"] != "synthetic_monitor_failure" {
		t.Fatalf("unexpected envelope: %v", got)
	}
}
