package dto

import (
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/profile"
	"storefront-payments/internal/session"
	"time"
)

type CartAddRequest struct {
	ProductID  uint              `json:"product_id" form:"products_id"`
	Quantity   int               `json:"quantity" form:"cart_quantity"`
	Attributes map[string]string `json:"attributes"`
}

type CartAddResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	CartCount int    `json:"cart_count"`
}

type OPRCUpdateRequest struct {
	Shipping     string  `json:"shipping" form:"shipping"`
	Payment      string  `json:"payment" form:"payment"`
	Coupon       string  `json:"coupon" form:"dc_redeem_code"`
	RemoveCoupon bool    `json:"remove_coupon" form:"remove_coupon"`
	Comments     *string `json:"comments" form:"comments"`
	Conditions   *bool   `json:"conditions" form:"conditions"`
	BillTo       uint    `json:"billto" form:"billto"`
	SendTo       uint    `json:"sendto" form:"sendto"`
	Email        string  `json:"email" form:"email_address"`
}

type TotalLine struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	Value string `json:"value"`
}

type Totals struct {
	Currency string      `json:"currency"`
	Total    string      `json:"total"`
	Lines    []TotalLine `json:"lines"`
}

func NewTotals(q *checkout.Quote) *Totals {
	t := &Totals{
		Currency: q.Currency,
		Total:    q.Totals.Total.StringFixed(2),
		Lines:    make([]TotalLine, 0, len(q.Totals.Lines)),
	}
	for _, l := range q.Totals.Lines {
		t.Lines = append(t.Lines, TotalLine{Code: l.Code, Title: l.Title, Value: l.Value.StringFixed(2)})
	}
	return t
}

type OPRCUpdateResponse struct {
	Status      string            `json:"status"`
	Message     string            `json:"message,omitempty"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	Totals      *Totals           `json:"totals,omitempty"`
	Messages    []session.Message `json:"messages,omitempty"`
}

type CheckoutProcessRequest struct {
	CartID     string            `json:"cart_id" form:"cart_id"`
	Payment    string            `json:"payment" form:"payment"`
	Comments   string            `json:"comments" form:"comments"`
	Conditions bool              `json:"conditions" form:"conditions"`
	Fields     map[string]string `json:"fields"`
}

type CheckoutProcessResponse struct {
	Status      string            `json:"status"`
	Message     string            `json:"message,omitempty"`
	OrderID     uint              `json:"order_id,omitempty"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	ApprovalURL string            `json:"approval_url,omitempty"`
	Messages    []session.Message `json:"messages,omitempty"`
}

type WalletAddress struct {
	CountryCode string `json:"country_code" form:"country_code"`
	State       string `json:"state" form:"state"`
	City        string `json:"city" form:"city"`
	PostalCode  string `json:"postal_code" form:"postal_code"`
}

type WalletRequest struct {
	Wallet  string        `json:"wallet" form:"wallet"`
	OrderID string        `json:"order_id" form:"order_id"`
	Address WalletAddress `json:"address"`
}

// WalletResponse is embedded in every wallet reply; the browser only reads
// the rest of the body when Success is set.
type WalletResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ClientTokenResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	ClientToken string `json:"client_token,omitempty"`
}

type PaymentModulesResponse struct {
	Status  string                     `json:"status"`
	Modules []*paymentmodule.Bootstrap `json:"modules"`
}

type ProfileNoteRequest struct {
	Note string `json:"note" form:"note"`
}

type ProfileResponse struct {
	ProfileID          string     `json:"profile_id"`
	Gateway            string     `json:"gateway"`
	Status             string     `json:"status"`
	RawStatus          string     `json:"raw_status,omitempty"`
	NextBillingDate    *time.Time `json:"next_billing_date,omitempty"`
	CyclesCompleted    int        `json:"cycles_completed"`
	CyclesRemaining    int        `json:"cycles_remaining"`
	LastPaymentAmount  string     `json:"last_payment_amount,omitempty"`
	LastPaymentDate    *time.Time `json:"last_payment_date,omitempty"`
	OutstandingBalance string     `json:"outstanding_balance"`
	ApprovalURL        string     `json:"approval_url,omitempty"`
}

func NewProfileResponse(p *profile.Profile) *ProfileResponse {
	resp := &ProfileResponse{
		ProfileID:          p.ProfileID,
		Gateway:            p.Gateway,
		Status:             string(p.Status),
		RawStatus:          p.RawStatus,
		NextBillingDate:    p.NextBillingDate,
		CyclesCompleted:    p.CyclesCompleted,
		CyclesRemaining:    p.CyclesRemaining,
		LastPaymentDate:    p.LastPaymentDate,
		OutstandingBalance: p.OutstandingBalance.StringFixed(2),
		ApprovalURL:        p.ApprovalURL,
	}
	if p.LastPaymentAmount != nil {
		resp.LastPaymentAmount = p.LastPaymentAmount.StringFixed(2)
	}
	return resp
}
