package checkout

import (
	"storefront-payments/internal/model"

	"github.com/shopspring/decimal"
)

// Order total module codes, in display order.
const (
	TotalSubtotal = "ot_subtotal"
	TotalShipping = "ot_shipping"
	TotalCoupon   = "ot_coupon"
	TotalTax      = "ot_tax"
	TotalTotal    = "ot_total"
)

var hundred = decimal.NewFromInt(100)

// Line is one cart row resolved against the catalog.
type Line struct {
	Product    *model.Product
	Quantity   int
	Attributes map[string]string
}

func (l Line) Amount() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

func (l Line) Tax() decimal.Decimal {
	return l.Amount().Mul(l.Product.TaxRate).Div(hundred).Round(2)
}

type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Lines    []model.OrderTotal
}

// Shipping is the quote a cart is charged for. A nil *Shipping means the cart
// ships nothing.
type Shipping struct {
	Title string
	Cost  decimal.Decimal
}

// CalculateTotals prices lines. Tax is computed per line and rounded to cents
// before summing. Coupon discounts never exceed what they discount.
func CalculateTotals(lines []Line, shipping *Shipping, coupon *model.Coupon) *Totals {
	t := &Totals{
		Subtotal: decimal.Zero,
		Shipping: decimal.Zero,
		Discount: decimal.Zero,
		Tax:      decimal.Zero,
	}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Amount())
		t.Tax = t.Tax.Add(l.Tax())
	}
	if shipping != nil {
		t.Shipping = shipping.Cost.Round(2)
	}

	if coupon != nil {
		switch coupon.Type {
		case model.CouponTypeFixed:
			t.Discount = decimal.Min(coupon.Amount, t.Subtotal)
		case model.CouponTypePercent:
			t.Discount = t.Subtotal.Mul(coupon.Amount).Div(hundred)
		case model.CouponTypeFreeShipping:
			t.Discount = t.Shipping
		}
		t.Discount = t.Discount.Round(2)
	}

	t.Total = t.Subtotal.Add(t.Shipping).Sub(t.Discount).Add(t.Tax)
	if t.Total.IsNegative() {
		t.Total = decimal.Zero
	}

	t.Lines = append(t.Lines, model.OrderTotal{Code: TotalSubtotal, Title: "Sub-Total:", Value: t.Subtotal, SortOrder: 100})
	if shipping != nil {
		t.Lines = append(t.Lines, model.OrderTotal{Code: TotalShipping, Title: shipping.Title + ":", Value: t.Shipping, SortOrder: 200})
	}
	if coupon != nil && t.Discount.IsPositive() {
		t.Lines = append(t.Lines, model.OrderTotal{Code: TotalCoupon, Title: "Discount Coupon: " + coupon.Code + " :", Value: t.Discount, SortOrder: 280})
	}
	if t.Tax.IsPositive() {
		t.Lines = append(t.Lines, model.OrderTotal{Code: TotalTax, Title: "Tax:", Value: t.Tax, SortOrder: 300})
	}
	t.Lines = append(t.Lines, model.OrderTotal{Code: TotalTotal, Title: "Total:", Value: t.Total, SortOrder: 999})

	return t
}

// Virtual reports whether nothing in lines needs shipping.
func Virtual(lines []Line) bool {
	for _, l := range lines {
		if !l.Product.IsVirtual {
			return false
		}
	}
	return true
}
