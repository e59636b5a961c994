package notifier

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"

	"kitchen-sync/internal/microservices/board/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes status events keyed by order id, so every event of an
// order lands on the same partition.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e models.StatusEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.OrderID, 10)),
		Value: body,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "mutation_id", Value: []byte(e.MutationID)},
			{Key: "outcome", Value: []byte(e.Outcome)},
		},
	})
}
