package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/config"
	"fleet-tracker/internal/general/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Archiver streams accepted location records to a Kafka topic keyed by driver id,
// so every driver's records land on one partition in order.
type Archiver struct {
	writer messageWriter
	logger *logger.Logger
}

// NewArchiver builds an async writer; delivery failures are reported through the logger.
func NewArchiver(cfg *config.Config, logger *logger.Logger) *Archiver {
	logCtx := context.Background()
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafkago.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafkago.RequireOne,
		Completion: func(messages []kafkago.Message, err error) {
			if err != nil {
				logger.Error(logCtx, "archive_write_failed", "Failed to archive location batch", err, map[string]any{
					"messages": len(messages),
				})
			}
		},
	}
	return &Archiver{writer: w, logger: logger}
}

func (a *Archiver) Archive(ctx context.Context, rec tracking.LocationRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(rec.DriverID),
		Value: body,
		Time:  rec.Timestamp,
	}
	if err := a.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes pending batches.
func (a *Archiver) Close() error {
	return a.writer.Close()
}
