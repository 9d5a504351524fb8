package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaNotifier struct {
	w     messageWriter
	topic string
}

func NewKafkaNotifier(brokers []string, topic string) Notifier {
	return &kafkaNotifier{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{}, // partition by order id
			RequiredAcks: kafka.RequireOne,
		},
		topic: topic,
	}
}

func (n *kafkaNotifier) OrderPlaced(ctx context.Context, evt *OrderPlaced) error {
	return n.publish(ctx, TypeOrderPlaced, evt.OrderID, evt)
}

func (n *kafkaNotifier) ProfileCreated(ctx context.Context, evt *ProfileCreated) error {
	return n.publish(ctx, TypeProfileCreated, evt.OrderID, evt)
}

func (n *kafkaNotifier) Close() error {
	return n.w.Close()
}

func (n *kafkaNotifier) publish(ctx context.Context, eventType string, orderID uint, data interface{}) error {
	key := strconv.FormatUint(uint64(orderID), 10)
	val, err := json.Marshal(Envelope{
		EventType:    eventType,
		EventVersion: eventVersion,
		OccurredAt:   time.Now().UTC(),
		AggregateID:  key,
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	err = n.w.WriteMessages(ctx, kafka.Message{
		Topic: n.topic,
		Key:   []byte(key),
		Value: val,
	})
	if err != nil {
		return fmt.Errorf("publish %s for order %s: %w", eventType, key, err)
	}

	log.Debug().Str("event", eventType).Str("order_id", key).Msg("event published")
	return nil
}

type logNotifier struct{}

// NewLogNotifier returns a Notifier that only logs, used when no Kafka
// brokers are configured.
func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) OrderPlaced(ctx context.Context, evt *OrderPlaced) error {
	log.Info().
		Uint("order_id", evt.OrderID).
		Str("payment_module", evt.PaymentModule).
		Str("total", evt.Total.StringFixed(2)).
		Str("currency", evt.Currency).
		Msg("order placed")
	return nil
}

func (logNotifier) ProfileCreated(ctx context.Context, evt *ProfileCreated) error {
	log.Info().
		Uint("order_id", evt.OrderID).
		Str("profile_id", evt.ProfileID).
		Str("gateway", evt.Gateway).
		Str("status", evt.Status).
		Msg("recurring profile created")
	return nil
}

func (logNotifier) Close() error { return nil }
