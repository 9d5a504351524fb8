// Package paymentmodule holds the storefront payment modules: which ones a
// shopper may use, how their buttons bootstrap, how they charge and how a
// charge is booked against the order.
package paymentmodule

import (
	"storefront-payments/internal/configuration"
)

type Gateway string

const (
	GatewayPayPal    Gateway = "paypal"
	GatewayBraintree Gateway = "braintree"
	GatewayNone      Gateway = "none"
)

const (
	CodePayPal      = "paypalr"
	CodeVenmo       = "paypalr_venmo"
	CodeGooglePay   = "paypalr_googlepay"
	CodeApplePay    = "paypalr_applepay"
	CodeAdvanced    = "paypalac"
	CodeBraintree   = "braintree_paypal"
	CodeFreeCharger = "freecharger"
)

// Definition describes one installable payment module.
type Definition struct {
	Code    string
	Title   string
	Prefix  string
	Gateway Gateway
	// Funding is the PayPal JS SDK funding source, or the wallet name for
	// Braintree.
	Funding string
	Wallet  string
}

func (d Definition) Key(suffix string) string {
	return configuration.ModuleKey(d.Prefix, suffix)
}

func (d Definition) Free() bool {
	return d.Gateway == GatewayNone
}

var definitions = []Definition{
	{
		Code:    CodePayPal,
		Title:   "PayPal",
		Prefix:  configuration.PrefixPayPalR,
		Gateway: GatewayPayPal,
		Funding: "paypal",
		Wallet:  "paypal",
	},
	{
		Code:    CodeVenmo,
		Title:   "Venmo",
		Prefix:  configuration.PrefixPayPalRVenmo,
		Gateway: GatewayPayPal,
		Funding: "venmo",
		Wallet:  "venmo",
	},
	{
		Code:    CodeGooglePay,
		Title:   "Google Pay",
		Prefix:  configuration.PrefixPayPalRGooglePay,
		Gateway: GatewayPayPal,
		Funding: "googlepay",
		Wallet:  "googlepay",
	},
	{
		Code:    CodeApplePay,
		Title:   "Apple Pay",
		Prefix:  configuration.PrefixPayPalRApplePay,
		Gateway: GatewayPayPal,
		Funding: "applepay",
		Wallet:  "applepay",
	},
	{
		Code:    CodeAdvanced,
		Title:   "Credit Card (PayPal Advanced Checkout)",
		Prefix:  configuration.PrefixPayPalAC,
		Gateway: GatewayPayPal,
		Funding: "card",
	},
	{
		Code:    CodeBraintree,
		Title:   "PayPal (Braintree)",
		Prefix:  configuration.PrefixBraintreePayPal,
		Gateway: GatewayBraintree,
		Funding: "paypal",
	},
	{
		Code:    CodeFreeCharger,
		Title:   "Free Checkout",
		Prefix:  configuration.PrefixFreeCharger,
		Gateway: GatewayNone,
	},
}

// All returns every known module in declaration order.
func All() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

func Lookup(code string) (Definition, bool) {
	for _, d := range definitions {
		if d.Code == code {
			return d, true
		}
	}
	return Definition{}, false
}

// ForWallet finds the PayPal module behind a wallet button.
func ForWallet(wallet string) (Definition, bool) {
	if wallet == "" {
		return Definition{}, false
	}
	for _, d := range definitions {
		if d.Wallet == wallet {
			return d, true
		}
	}
	return Definition{}, false
}
