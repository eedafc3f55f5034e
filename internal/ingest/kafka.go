package ingest

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"searchwatch/internal/config"
	"searchwatch/internal/storage"
)

// StartKafka consumes telemetry envelopes from a topic and appends them
// through the lenient path. Unparsable messages and store errors are logged
// and skipped; the consumer never stops on bad input.
func StartKafka(ctx context.Context, cfg config.KafkaConfig, store storage.Store, logger *slog.Logger) {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", cfg.Brokers, "topic", cfg.Topic, "group_id", cfg.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				continue
			}
			ev, err := ParseEvent(m.Value, Lenient)
			if err != nil {
				if logger != nil {
					logger.Warn("kafka message dropped", "err", err)
				}
				continue
			}
			if err := store.AppendEvent(ctx, ev); err != nil {
				if logger != nil {
					logger.Warn("kafka event append failed", "event_type", ev.EventType, "err", err)
				}
			}
		}
	}()
}
