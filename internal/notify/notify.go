// Package notify implements best-effort outward notification: webhook when
// configured, otherwise a self-recorded telemetry event. Dispatch failures
// are logged and swallowed so failure reporting can never become the slow
// path or a new failure source.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"searchwatch/internal/model"
	"searchwatch/internal/storage"
)

// dispatchTimeout is deliberately shorter than the monitor's check timeout.
const dispatchTimeout = 5 * time.Second

// Fallback records a payload as a telemetry event when no webhook is
// configured, keeping the failure durably observable.
type Fallback interface {
	Record(ctx context.Context, eventType string, payload any) bool
}

type Notifier struct {
	webhookURL string
	client     *http.Client
	fallback   Fallback
	logger     *slog.Logger
}

func New(webhookURL string, fallback Fallback, logger *slog.Logger) *Notifier {
	return &Notifier{
		webhookURL: strings.TrimSpace(webhookURL),
		client:     &http.Client{Timeout: dispatchTimeout},
		fallback:   fallback,
		logger:     logger,
	}
}

// Dispatch posts a {type, payload} envelope to the webhook if one is
// configured, else hands the payload to the fallback recorder. The return
// value reports whether the webhook POST itself succeeded.
func (n *Notifier) Dispatch(ctx context.Context, eventType string, payload any) bool {
	return n.dispatch(ctx, eventType, eventType, payload)
}

// DispatchTagged is Dispatch with a distinct event type on the fallback
// path, for callers whose webhook and telemetry tags differ.
func (n *Notifier) DispatchTagged(ctx context.Context, webhookType, fallbackType string, payload any) bool {
	return n.dispatch(ctx, webhookType, fallbackType, payload)
}

func (n *Notifier) dispatch(ctx context.Context, eventType, fallbackType string, payload any) bool {
	if n.webhookURL == "" {
		if n.fallback != nil {
			n.fallback.Record(ctx, fallbackType, payload)
		}
		return false
	}

	body, err := json.Marshal(map[string]any{"type": eventType, "payload": payload})
	if err != nil {
		n.warn("webhook payload marshal failed", err)
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.warn("webhook request build failed", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		n.warn("webhook post failed", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if n.logger != nil {
			n.logger.Warn("webhook rejected dispatch", "status", resp.StatusCode)
		}
		return false
	}
	return true
}

func (n *Notifier) warn(msg string, err error) {
	if n.logger != nil {
		n.logger.Warn(msg, "err", err)
	}
}

// StoreFallback records dispatch payloads directly into the event store
// through the lenient ingestion defaults.
type StoreFallback struct {
	Store  storage.Store
	Logger *slog.Logger
}

func (f *StoreFallback) Record(ctx context.Context, eventType string, payload any) bool {
	ev := model.TelemetryEvent{
		SessionID: "alerts",
		UIVersion: "v1",
		EventType: eventType,
		Payload:   toMap(payload),
	}
	if err := f.Store.AppendEvent(ctx, ev); err != nil {
		if f.Logger != nil {
			f.Logger.Warn("fallback event append failed", "event_type", eventType, "err", err)
		}
		return false
	}
	return true
}

// TelemetryFallback posts dispatch payloads to the service's lenient
// telemetry endpoint. Used by the monitor, which has no store handle.
type TelemetryFallback struct {
	BaseURL string
	Logger  *slog.Logger
	client  *http.Client
}

func NewTelemetryFallback(baseURL string, logger *slog.Logger) *TelemetryFallback {
	return &TelemetryFallback{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Logger:  logger,
		client:  &http.Client{Timeout: dispatchTimeout},
	}
}

func (f *TelemetryFallback) Record(ctx context.Context, eventType string, payload any) bool {
	body, err := json.Marshal(map[string]any{
		"session_id": "synthetic",
		"ui_version": "v1",
		"event_type": eventType,
		"payload":    payload,
	})
	if err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+"/ui/telemetry", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		if f.Logger != nil {
			f.Logger.Warn("telemetry fallback post failed", "err", err)
		}
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func toMap(payload any) map[string]any {
	data, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}
