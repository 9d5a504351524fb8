package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestOrderPlacedEnvelope(t *testing.T) {
	w := &recordingWriter{}
	n := &kafkaNotifier{w: w, topic: "orders"}

	err := n.OrderPlaced(context.Background(), &OrderPlaced{
		OrderID:       17,
		Email:         "buyer@example.com",
		PaymentModule: "paypalr",
		Total:         decimal.RequireFromString("21.50"),
		Currency:      "USD",
		StatusID:      2,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "orders", msg.Topic)
	assert.Equal(t, "17", string(msg.Key))

	var env struct {
		EventType    string          `json:"eventType"`
		EventVersion string          `json:"eventVersion"`
		AggregateID  string          `json:"aggregateId"`
		Data         json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, TypeOrderPlaced, env.EventType)
	assert.Equal(t, "1", env.EventVersion)
	assert.Equal(t, "17", env.AggregateID)
	assert.Contains(t, string(env.Data), `"payment_module":"paypalr"`)
	assert.Contains(t, string(env.Data), `"total":"21.5"`)
}

func TestPublishError(t *testing.T) {
	n := &kafkaNotifier{w: &recordingWriter{err: errors.New("broker down")}, topic: "orders"}

	err := n.ProfileCreated(context.Background(), &ProfileCreated{OrderID: 3, ProfileID: "I-1"})
	assert.ErrorContains(t, err, "broker down")
	assert.ErrorContains(t, err, "order 3")
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier()
	assert.NoError(t, n.OrderPlaced(context.Background(), &OrderPlaced{OrderID: 1}))
	assert.NoError(t, n.ProfileCreated(context.Background(), &ProfileCreated{OrderID: 1}))
	assert.NoError(t, n.Close())
}
