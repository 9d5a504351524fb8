// Package events publishes storefront facts (orders placed, recurring
// profiles started) for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeOrderPlaced    = "order.placed"
	TypeProfileCreated = "recurring_profile.created"

	eventVersion = "1"
)

// Envelope is the message schema written to the orders topic.
type Envelope struct {
	EventType    string      `json:"eventType"`
	EventVersion string      `json:"eventVersion"`
	OccurredAt   time.Time   `json:"occurredAt"`
	AggregateID  string      `json:"aggregateId"` // order id
	Data         interface{} `json:"data"`
}

type OrderPlaced struct {
	OrderID       uint            `json:"order_id"`
	CustomerID    uint            `json:"customer_id,omitempty"`
	Email         string          `json:"email"`
	PaymentModule string          `json:"payment_module"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	StatusID      int             `json:"status_id"`
}

type ProfileCreated struct {
	OrderID   uint            `json:"order_id"`
	ProfileID string          `json:"profile_id"`
	Gateway   string          `json:"gateway"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Schedule  string          `json:"schedule"`
}

type Notifier interface {
	OrderPlaced(ctx context.Context, evt *OrderPlaced) error
	ProfileCreated(ctx context.Context, evt *ProfileCreated) error
	Close() error
}
