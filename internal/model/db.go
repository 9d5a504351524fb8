package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Configuration struct {
	ID                       uint   `gorm:"primaryKey"`
	ConfigurationTitle       string `gorm:"size:255"`
	ConfigurationKey         string `gorm:"size:191;uniqueIndex;not null"`
	ConfigurationValue       string `gorm:"type:text"`
	ConfigurationDescription string `gorm:"type:text"`
	ConfigurationGroupID     int    `gorm:"index;not null;default:0"`
	SortOrder                int
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func (Configuration) TableName() string { return "configuration" }

type Customer struct {
	ID               uint   `gorm:"primaryKey"`
	FirstName        string `gorm:"size:64"`
	LastName         string `gorm:"size:64"`
	Email            string `gorm:"size:96;index"`
	Telephone        string `gorm:"size:32"`
	DefaultAddressID uint
	CreatedAt        time.Time
}

type AddressBook struct {
	ID          uint   `gorm:"primaryKey"`
	CustomerID  uint   `gorm:"index;not null"`
	FirstName   string `gorm:"size:64"`
	LastName    string `gorm:"size:64"`
	Company     string `gorm:"size:64"`
	Street      string `gorm:"size:128"`
	Suburb      string `gorm:"size:64"`
	City        string `gorm:"size:64"`
	Postcode    string `gorm:"size:16"`
	State       string `gorm:"size:64"`
	CountryCode string `gorm:"size:2;not null"` // ISO 3166-1 alpha-2
	ZoneID      uint
}

func (AddressBook) TableName() string { return "address_book" }

// ZoneToGeoZone places a country, or a single zone of it, into a geo zone.
// ZoneID 0 covers the whole country.
type ZoneToGeoZone struct {
	ID          uint   `gorm:"primaryKey"`
	GeoZoneID   uint   `gorm:"index;not null"`
	CountryCode string `gorm:"size:2;not null"`
	ZoneID      uint
}

func (ZoneToGeoZone) TableName() string { return "zones_to_geo_zones" }

type Product struct {
	ID        uint            `gorm:"primaryKey"`
	Model     string          `gorm:"size:64;index"`
	Name      string          `gorm:"size:255;not null"`
	Price     decimal.Decimal `gorm:"type:decimal(15,4);not null"`
	TaxRate   decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"` // percent
	Quantity  int             `gorm:"not null;default:0"`                   // stock on hand
	IsVirtual bool
	Status    bool `gorm:"not null;default:true"`
}

const (
	CouponTypeFixed        = "F"
	CouponTypePercent      = "P"
	CouponTypeFreeShipping = "S"
)

type Coupon struct {
	ID            uint            `gorm:"primaryKey"`
	Code          string          `gorm:"size:32;uniqueIndex;not null"`
	Type          string          `gorm:"size:1;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	MinimumOrder  decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	StartDate     time.Time
	ExpireDate    time.Time
	UsesPerCoupon int // 0 = unlimited
	UsesPerUser   int // 0 = unlimited
	Active        bool `gorm:"not null;default:true"`
}

type CouponRedeemTrack struct {
	ID         uint `gorm:"primaryKey"`
	CouponID   uint `gorm:"index;not null"`
	CustomerID uint `gorm:"index"`
	OrderID    uint `gorm:"index;not null"`
	RedeemedAt time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;uniqueIndex;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// Session is the server side of a storefront cookie session.
type Session struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Data      string    `gorm:"type:text"`
	ExpiresAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}
