package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"searchwatch/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/searchwatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ui_events (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			ui_version TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload_json JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
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

func (s *postgresStore) AppendEvent(ctx context.Context, ev model.TelemetryEvent) error {
	ev = normalizeEvent(ev)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ui_events (session_id, ui_version, event_type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.SessionID,
		ev.UIVersion,
		ev.EventType,
		encodeJSON(ev.Payload),
		ev.CreatedAt,
	)
	return err
}

func (s *postgresStore) QueryWindow(ctx context.Context, start, end time.Time) ([]model.StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at, event_type, payload_json FROM ui_events
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StoredEvent
	for rows.Next() {
		var createdAt time.Time
		var eventType, payload string
		if err := rows.Scan(&createdAt, &eventType, &payload); err != nil {
			return nil, err
		}
		out = append(out, model.StoredEvent{
			CreatedAt: createdAt.UTC(),
			EventType: eventType,
			Payload:   decodePayload(payload),
		})
	}
	return out, rows.Err()
}
