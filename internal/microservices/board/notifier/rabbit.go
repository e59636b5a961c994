package notifier

import (
	"context"
	"encoding/json"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"

	"kitchen-sync/internal/microservices/board/models"
)

const Exchange = "notifications_fanout"

type amqpPublisher interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
}

// RabbitPublisher fans settled status changes out to every subscriber.
type RabbitPublisher struct {
	client   amqpPublisher
	exchange string
}

func NewRabbitPublisher(client amqpPublisher) *RabbitPublisher {
	return &RabbitPublisher{client: client, exchange: Exchange}
}

func (p *RabbitPublisher) Publish(ctx context.Context, e models.StatusEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.exchange, "", amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     e.MutationID,
		CorrelationId: strconv.FormatInt(e.OrderID, 10),
		Timestamp:     e.Timestamp,
		Headers: amqp.Table{
			"x-source":  "kitchen-sync",
			"x-outcome": string(e.Outcome),
		},
		Body: body,
	})
}
