package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address is an order-time snapshot of an address book entry.
type Address struct {
	Name        string `gorm:"size:128"`
	Company     string `gorm:"size:64"`
	Street      string `gorm:"size:128"`
	Suburb      string `gorm:"size:64"`
	City        string `gorm:"size:64"`
	Postcode    string `gorm:"size:16"`
	State       string `gorm:"size:64"`
	CountryCode string `gorm:"size:2"`
	ZoneID      uint
}

type Order struct {
	ID                 uint            `gorm:"primaryKey"`
	CustomerID         uint            `gorm:"index"`
	CustomerEmail      string          `gorm:"size:96"`
	CustomerTelephone  string          `gorm:"size:32"`
	Billing            Address         `gorm:"embedded;embeddedPrefix:billing_"`
	Delivery           Address         `gorm:"embedded;embeddedPrefix:delivery_"`
	PaymentMethod      string          `gorm:"size:128"`
	PaymentModuleCode  string          `gorm:"size:32;index"`
	ShippingMethod     string          `gorm:"size:128"`
	ShippingModuleCode string          `gorm:"size:32"`
	CouponCode         string          `gorm:"size:32"`
	Currency           string          `gorm:"size:3;not null"`
	OrderTotal         decimal.Decimal `gorm:"type:decimal(15,4);not null"`
	OrderTax           decimal.Decimal `gorm:"type:decimal(15,4);not null"`
	OrdersStatus       int             `gorm:"index;not null"`
	Comments           string          `gorm:"type:text"`
	IPAddress          string          `gorm:"size:96"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Products []OrderProduct       `gorm:"foreignKey:OrderID"`
	Totals   []OrderTotal         `gorm:"foreignKey:OrderID"`
	History  []OrderStatusHistory `gorm:"foreignKey:OrderID"`
}

type OrderProduct struct {
	ID         uint            `gorm:"primaryKey"`
	OrderID    uint            `gorm:"index;not null"`
	ProductID  uint            `gorm:"index;not null"`
	Model      string          `gorm:"size:64"`
	Name       string          `gorm:"size:255"`
	Price      decimal.Decimal `gorm:"type:decimal(15,4);not null"`
	Tax        decimal.Decimal `gorm:"type:decimal(7,4);not null"` // percent
	Quantity   int             `gorm:"not null"`
	Attributes string          `gorm:"type:text"` // JSON option -> value
}

// OrderTotal is one line of the order-total summary (ot_subtotal, ot_tax, ...).
type OrderTotal struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   uint            `gorm:"index;not null"`
	Code      string          `gorm:"size:32;not null"`
	Title     string          `gorm:"size:255"`
	Value     decimal.Decimal `gorm:"type:decimal(15,4);not null"`
	SortOrder int
}

type OrderStatusHistory struct {
	ID               uint `gorm:"primaryKey"`
	OrderID          uint `gorm:"index;not null"`
	OrdersStatusID   int  `gorm:"not null"`
	CustomerNotified bool
	Comments         string `gorm:"type:text"`
	UpdatedBy        string `gorm:"size:45"`
	CreatedAt        time.Time
}

func (OrderStatusHistory) TableName() string { return "orders_status_history" }

// PayPalTransaction is a row of the paypal transaction log.
type PayPalTransaction struct {
	ID            uint            `gorm:"primaryKey"`
	OrderID       uint            `gorm:"index"`
	TxnID         string          `gorm:"size:64;uniqueIndex;not null"`
	ParentTxnID   string          `gorm:"size:64;index"` // PayPal order id
	TxnType       string          `gorm:"size:32"`       // CREATE, CAPTURE, AUTHORIZE, REFUND
	PaymentStatus string          `gorm:"size:32;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,4)"`
	Currency      string          `gorm:"size:3"`
	PayerID       string          `gorm:"size:32"`
	PayerEmail    string          `gorm:"size:128"`
	Module        string          `gorm:"size:32"`
	Raw           string          `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PayPalTransaction) TableName() string { return "paypal" }

type BraintreeTransaction struct {
	ID                uint            `gorm:"primaryKey"`
	OrderID           uint            `gorm:"index"`
	TxnID             string          `gorm:"size:64;uniqueIndex;not null"`
	PaymentType       string          `gorm:"size:32"` // paypal_account, venmo_account, credit_card...
	Status            string          `gorm:"size:32"`
	Amount            decimal.Decimal `gorm:"type:decimal(15,4)"`
	Currency          string          `gorm:"size:3"`
	Module            string          `gorm:"size:32"`
	ProcessorResponse string          `gorm:"size:255"`
	CreatedAt         time.Time
}

func (BraintreeTransaction) TableName() string { return "braintree" }

// order status ids as installed by the storefront installer
const (
	OrderStatusPending    = 1
	OrderStatusProcessing = 2
	OrderStatusDelivered  = 3
	OrderStatusRefunded   = 4
)
