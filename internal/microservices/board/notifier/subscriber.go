package notifier

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/board/models"
)

const Queue = "kitchen_sync_notifications"

// Subscriber logs every status event it receives from the fanout.
type Subscriber struct {
	lg     *logger.Logger
	handle func(models.StatusEvent)
}

// NewSubscriber builds a subscriber; handle may be nil.
func NewSubscriber(lg *logger.Logger, handle func(models.StatusEvent)) *Subscriber {
	if lg == nil {
		lg = logger.New("notification-subscriber")
	}
	return &Subscriber{lg: lg, handle: handle}
}

// Run consumes until ctx is done or the delivery channel closes.
func (s *Subscriber) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			s.consume(d)
		}
	}
}

func (s *Subscriber) consume(d amqp.Delivery) {
	var e models.StatusEvent
	if err := json.Unmarshal(d.Body, &e); err != nil {
		s.lg.Error("notification_decode_failed", err, map[string]any{"message_id": d.MessageId})
		_ = d.Nack(false, false)
		return
	}
	fields := map[string]any{
		"order_id": e.OrderID, "mesa": e.Table, "old_status": e.OldStatus, "new_status": e.NewStatus,
		"outcome": e.Outcome, "changed_by": e.ChangedBy, "mutation_id": e.MutationID,
	}
	if e.Outcome == models.OutcomeRolledBack {
		fields["error"] = e.Error
		s.lg.Warn("notification_received", fields)
	} else {
		s.lg.Info("notification_received", fields)
	}
	if s.handle != nil {
		s.handle(e)
	}
	_ = d.Ack(false)
}
