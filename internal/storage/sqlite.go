package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"searchwatch/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:searchwatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ui_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			ui_version TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ui_events_created_at ON ui_events(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) AppendEvent(ctx context.Context, ev model.TelemetryEvent) error {
	ev = normalizeEvent(ev)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ui_events (session_id, ui_version, event_type, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.SessionID,
		ev.UIVersion,
		ev.EventType,
		encodeJSON(ev.Payload),
		ev.CreatedAt.UnixNano(),
	)
	return err
}

func (s *sqliteStore) QueryWindow(ctx context.Context, start, end time.Time) ([]model.StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at, event_type, payload_json FROM ui_events
		WHERE created_at >= ? AND created_at <= ?
		ORDER BY created_at`,
		start.UnixNano(), end.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StoredEvent
	for rows.Next() {
		var createdAt int64
		var eventType, payload string
		if err := rows.Scan(&createdAt, &eventType, &payload); err != nil {
			return nil, err
		}
		out = append(out, model.StoredEvent{
			CreatedAt: time.Unix(0, createdAt).UTC(),
			EventType: eventType,
			Payload:   decodePayload(payload),
		})
	}
	return out, rows.Err()
}
