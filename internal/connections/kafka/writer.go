package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"kitchen-sync/internal/common/config"
)

// Writer sends status events to one topic.
type Writer struct {
	*kafka.Writer
}

func NewWriter(cfg config.KafkaConfig) *Writer {
	return &Writer{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return w.Writer.WriteMessages(ctx, msgs...)
}
