// Package session holds the per-shopper state carried between storefront
// requests: cart, checkout selections, wallet progress and the message stack.
package session

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID  uint              `json:"product_id"`
	Quantity   int               `json:"quantity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type ShippingQuote struct {
	Module string          `json:"module"`
	Method string          `json:"method"`
	Title  string          `json:"title"`
	Cost   decimal.Decimal `json:"cost"`
}

// Wallet tracks a PayPal order created for a wallet button.
type Wallet struct {
	Type          string `json:"type"` // paypal, venmo, googlepay, applepay
	PayPalOrderID string `json:"paypal_order_id"`
	ReferenceID   string `json:"reference_id,omitempty"` // purchase unit of PayPalOrderID
	Approved      bool   `json:"approved"`
	PayerID       string `json:"payer_id,omitempty"`
	PayerEmail    string `json:"payer_email,omitempty"`
	PayerName     string `json:"payer_name,omitempty"`
}

type Data struct {
	CustomerID uint       `json:"customer_id,omitempty"`
	Guest      bool       `json:"guest,omitempty"`
	Email      string     `json:"email,omitempty"`
	CartID     string     `json:"cart_id,omitempty"`
	Cart       []CartItem `json:"cart,omitempty"`

	BillTo             uint           `json:"billto,omitempty"`
	SendTo             uint           `json:"sendto,omitempty"`
	Shipping           *ShippingQuote `json:"shipping,omitempty"`
	Payment            string         `json:"payment,omitempty"`
	Comments           string         `json:"comments,omitempty"`
	CouponCode         string         `json:"cc_id,omitempty"`
	ConditionsAccepted bool           `json:"conditions,omitempty"`

	Wallet      *Wallet   `json:"wallet,omitempty"`
	Messages    []Message `json:"messages,omitempty"`
	LastOrderID uint      `json:"last_order_id,omitempty"`
}

func Decode(raw string) (*Data, error) {
	data := &Data{}
	if raw == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(raw), data); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Data) Encode() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Data) LoggedIn() bool {
	return d.CustomerID != 0
}

func (d *Data) CartCount() int {
	count := 0
	for _, item := range d.Cart {
		count += item.Quantity
	}
	return count
}

// AddToCart merges quantities for an identical product/attribute combination
// and rotates the cart id.
func (d *Data) AddToCart(item CartItem) {
	for i := range d.Cart {
		if d.Cart[i].ProductID == item.ProductID && sameAttributes(d.Cart[i].Attributes, item.Attributes) {
			d.Cart[i].Quantity += item.Quantity
			d.touchCart()
			return
		}
	}
	d.Cart = append(d.Cart, item)
	d.touchCart()
}

// ResetCart empties the cart and forgets every checkout selection.
func (d *Data) ResetCart() {
	d.Cart = nil
	d.CartID = ""
	d.Shipping = nil
	d.Payment = ""
	d.Comments = ""
	d.CouponCode = ""
	d.ConditionsAccepted = false
	d.Wallet = nil
}

func (d *Data) touchCart() {
	d.CartID = uuid.NewString()
	// a PayPal order no longer matches a changed cart
	d.Wallet = nil
}

func sameAttributes(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
