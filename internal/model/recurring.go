package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type RecurringProfile struct {
	ID               uint            `gorm:"primaryKey"`
	OrderID          uint            `gorm:"index;not null"`
	CustomerID       uint            `gorm:"index"`
	ProductID        uint            `gorm:"index"`
	ProfileID        string          `gorm:"size:64;uniqueIndex;not null"`
	Gateway          string          `gorm:"size:8;not null"` // rest, nvp
	Status           string          `gorm:"size:16;index;not null"`
	BillingPeriod    string          `gorm:"size:16;not null"`
	BillingFrequency int             `gorm:"not null"`
	TotalCycles      int             // 0 = until cancelled
	Amount           decimal.Decimal `gorm:"type:decimal(15,4);not null"`
	Currency         string          `gorm:"size:3;not null"`
	StartDate        time.Time
	ExpirationDate   *time.Time
	NextBillingDate  *time.Time
	LastSyncedAt     *time.Time
	ApprovalURL      string `gorm:"size:512"` // REST only, until the buyer approves
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PayPalPlan caches the REST catalog product and billing plan created for a
// schedule so repeated subscriptions reuse them.
type PayPalPlan struct {
	ID          uint   `gorm:"primaryKey"`
	ScheduleKey string `gorm:"size:191;uniqueIndex;not null"`
	ProductID   string `gorm:"size:64;not null"` // PayPal catalog product id
	PlanID      string `gorm:"size:64;not null"`
	CreatedAt   time.Time
}
