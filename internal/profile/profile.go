// Package profile creates and manages recurring payment profiles on either
// PayPal REST subscriptions or legacy NVP recurring profiles.
package profile

import (
	"context"
	"storefront-payments/internal/recurring"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	GatewayREST = "rest"
	GatewayNVP  = "nvp"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusUnknown   Status = "unknown"
)

// NormalizeStatus folds REST states (APPROVAL_PENDING, ACTIVE, ...) and NVP
// states (ActiveProfile, Cancelled, ...) into one vocabulary.
func NormalizeStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("_", "", " ", "", "-", "").Replace(s)
	s = strings.TrimSuffix(s, "profile")

	switch s {
	case "active":
		return StatusActive
	case "approvalpending", "approved", "pending":
		return StatusPending
	case "suspended":
		return StatusSuspended
	case "cancelled", "canceled":
		return StatusCancelled
	case "expired":
		return StatusExpired
	}
	return StatusUnknown
}

type Action string

const (
	ActionCancel     Action = "cancel"
	ActionSuspend    Action = "suspend"
	ActionReactivate Action = "reactivate"
)

// resultingStatus is the status a profile is expected to reach after action.
func (a Action) resultingStatus() Status {
	switch a {
	case ActionCancel:
		return StatusCancelled
	case ActionSuspend:
		return StatusSuspended
	case ActionReactivate:
		return StatusActive
	}
	return StatusUnknown
}

// Profile is the gateway independent view of a recurring profile.
type Profile struct {
	ProfileID          string
	Gateway            string
	Status             Status
	RawStatus          string
	NextBillingDate    *time.Time
	CyclesCompleted    int
	CyclesRemaining    int
	LastPaymentAmount  *decimal.Decimal
	LastPaymentDate    *time.Time
	OutstandingBalance decimal.Decimal
	ApprovalURL        string // REST only, set while the buyer still has to approve
}

type CreateRequest struct {
	Schedule    *recurring.Schedule
	Description string // product name
	CustomID    string // store reference, usually the order id

	PayerEmail string
	GivenName  string
	Surname    string

	// REST approval redirects
	ReturnURL string
	CancelURL string

	// NVP billing agreement from Express Checkout
	Token   string
	PayerID string
}

type Gateway interface {
	Name() string
	Create(ctx context.Context, req *CreateRequest) (*Profile, error)
	Get(ctx context.Context, profileID string) (*Profile, error)
	UpdateStatus(ctx context.Context, profileID string, action Action, note string) error
}
