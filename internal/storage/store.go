package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"searchwatch/internal/config"
	"searchwatch/internal/model"
)

// Store is the append-only telemetry event log. AppendEvent assigns
// created_at at write time; callers never control windowing timestamps.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	AppendEvent(ctx context.Context, ev model.TelemetryEvent) error
	QueryWindow(ctx context.Context, start, end time.Time) ([]model.StoredEvent, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

// decodePayload tolerates unreadable rows: a payload that no longer parses
// yields an empty map rather than failing the query.
func decodePayload(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// normalizeEvent applies the ingestion defaults shared by both drivers.
func normalizeEvent(ev model.TelemetryEvent) model.TelemetryEvent {
	if ev.EventType == "" {
		ev.EventType = "unknown"
	}
	if ev.Payload == nil {
		ev.Payload = map[string]any{}
	}
	ev.CreatedAt = nowUTC()
	return ev
}
