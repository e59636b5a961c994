package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/board/models"
)

func event() models.StatusEvent {
	return models.StatusEvent{
		MutationID: "3f1c", OrderID: 42, Table: "Mesa 2",
		OldStatus: models.StatusPending, NewStatus: models.StatusPreparing,
		Outcome: models.OutcomeConfirmed, ChangedBy: "kitchen-sync",
		Timestamp: time.Date(2025, 8, 20, 15, 0, 0, 0, time.UTC),
	}
}

type fakeAMQP struct {
	exchange string
	msg      amqp.Publishing
	err      error
}

func (f *fakeAMQP) Publish(_ context.Context, exchange, _ string, msg amqp.Publishing) error {
	f.exchange, f.msg = exchange, msg
	return f.err
}

func TestRabbitPublisher(t *testing.T) {
	f := &fakeAMQP{}
	require.NoError(t, NewRabbitPublisher(f).Publish(context.Background(), event()))

	assert.Equal(t, "notifications_fanout", f.exchange)
	assert.Equal(t, amqp.Persistent, f.msg.DeliveryMode)
	assert.Equal(t, "3f1c", f.msg.MessageId)
	assert.Equal(t, "42", f.msg.CorrelationId)
	var got models.StatusEvent
	require.NoError(t, json.Unmarshal(f.msg.Body, &got))
	assert.Equal(t, event(), got)

	f.err = errors.New("channel closed")
	assert.Error(t, NewRabbitPublisher(f).Publish(context.Background(), event()))
}

type fakeWriter struct{ msgs []kafka.Message }

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewKafkaPublisher(w).Publish(context.Background(), event()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("42"), w.msgs[0].Key)
	assert.Contains(t, string(w.msgs[0].Value), `"new_status":"preparando"`)
}

type acker struct {
	acked, nacked []uint64
}

func (a *acker) Ack(tag uint64, _ bool) error { a.acked = append(a.acked, tag); return nil }
func (a *acker) Nack(tag uint64, _, _ bool) error {
	a.nacked = append(a.nacked, tag)
	return nil
}
func (a *acker) Reject(tag uint64, _ bool) error { return nil }

func TestSubscriber(t *testing.T) {
	var buf bytes.Buffer
	var seen []models.StatusEvent
	s := NewSubscriber(logger.NewWithWriter("notification-subscriber", &buf), func(e models.StatusEvent) {
		seen = append(seen, e)
	})

	body, _ := json.Marshal(event())
	ack := &acker{}
	ch := make(chan amqp.Delivery, 2)
	ch <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
	ch <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("{")}
	close(ch)

	require.NoError(t, s.Run(context.Background(), ch))
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2}, ack.nacked)
	require.Len(t, seen, 1)
	assert.Equal(t, int64(42), seen[0].OrderID)
	assert.Contains(t, buf.String(), "notification_received")
	assert.Contains(t, buf.String(), "notification_decode_failed")
}
