package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/client"
	"storefront-payments/internal/configuration"
	"storefront-payments/internal/model"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/session"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// WalletError is a wallet request the shopper's browser should abandon. Its
// message is safe to show.
type WalletError struct {
	Message string
}

func (e *WalletError) Error() string {
	return e.Message
}

func walletError(format string, args ...interface{}) error {
	return &WalletError{Message: fmt.Sprintf(format, args...)}
}

const msgWalletUnavailable = "This payment method is temporarily unavailable, please choose another."

type WalletItem struct {
	Name     string `json:"name"`
	SKU      string `json:"sku,omitempty"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

type WalletTotals struct {
	Currency string       `json:"currency"`
	Subtotal string       `json:"subtotal"`
	Shipping string       `json:"shipping"`
	Discount string       `json:"discount"`
	Tax      string       `json:"tax"`
	Total    string       `json:"total"`
	Items    []WalletItem `json:"items"`
}

// WalletConfig is what a wallet button needs to start a payment sheet.
type WalletConfig struct {
	Wallet           string `json:"wallet"`
	Module           string `json:"module"`
	ClientID         string `json:"client_id"`
	MerchantID       string `json:"merchant_id,omitempty"`
	Environment      string `json:"environment"`
	Intent           string `json:"intent"`
	ShippingRequired bool   `json:"shipping_required"`
	CountryCode      string `json:"country_code,omitempty"`

	GooglePayMerchantID string `json:"google_merchant_id,omitempty"`
	ApplePayDomain      string `json:"apple_domain,omitempty"`

	WalletTotals
}

// ShippingAddress is the partial address a payment sheet reports before
// approval.
type ShippingAddress struct {
	CountryCode string `json:"country_code" form:"country_code"`
	State       string `json:"state" form:"state"`
	City        string `json:"city" form:"city"`
	Postcode    string `json:"postal_code" form:"postal_code"`
}

type WalletService interface {
	Config(ctx context.Context, sess *session.Data, wallet string) (*WalletConfig, error)
	CreateOrder(ctx context.Context, sess *session.Data, wallet string) (string, error)
	UpdateShipping(ctx context.Context, sess *session.Data, wallet string, address *ShippingAddress) (*WalletTotals, error)
	Approve(ctx context.Context, sess *session.Data, wallet, orderID string) error
	// Return handles the buyer coming back from a PayPal redirect.
	Return(ctx context.Context, sess *session.Data, orderID string) error
}

type walletServiceImpl struct {
	checkout     checkout.Service
	registry     *paymentmodule.Registry
	paypalClient client.PaypalClient
	settings     configuration.Source
	sdk          paymentmodule.PayPalSDK
	baseURL      string
}

func NewWalletService(
	checkoutService checkout.Service,
	registry *paymentmodule.Registry,
	paypalClient client.PaypalClient,
	settings configuration.Source,
	sdk paymentmodule.PayPalSDK,
	baseURL string,
) WalletService {
	return &walletServiceImpl{
		checkout:     checkoutService,
		registry:     registry,
		paypalClient: paypalClient,
		settings:     settings,
		sdk:          sdk,
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

func (s *walletServiceImpl) Config(ctx context.Context, sess *session.Data, wallet string) (*WalletConfig, error) {
	def, settings, err := s.module(ctx, wallet)
	if err != nil {
		return nil, err
	}
	quote, err := s.eligibleQuote(ctx, sess, def, settings, nil)
	if err != nil {
		return nil, err
	}

	cfg := &WalletConfig{
		Wallet:           wallet,
		Module:           def.Code,
		ClientID:         s.sdk.ClientID,
		MerchantID:       s.sdk.MerchantID,
		Environment:      s.sdk.Environment,
		Intent:           paymentmodule.Intent(def, settings),
		ShippingRequired: !checkout.Virtual(quote.Lines),
		WalletTotals:     walletTotals(quote),
	}
	if quote.Billing != nil {
		cfg.CountryCode = quote.Billing.CountryCode
	}
	switch def.Code {
	case paymentmodule.CodeGooglePay:
		cfg.GooglePayMerchantID = settings.String(def.Key(configuration.SuffixMerchantID))
	case paymentmodule.CodeApplePay:
		cfg.ApplePayDomain = settings.String(def.Key(configuration.SuffixMerchantDomain))
	}
	return cfg, nil
}

func (s *walletServiceImpl) CreateOrder(ctx context.Context, sess *session.Data, wallet string) (string, error) {
	def, settings, err := s.module(ctx, wallet)
	if err != nil {
		return "", err
	}
	quote, err := s.eligibleQuote(ctx, sess, def, settings, nil)
	if err != nil {
		return "", err
	}

	unit := purchaseUnit(quote, sess.CartID)
	req := &client.OrderRequest{
		Intent:        strings.ToUpper(paymentmodule.Intent(def, settings)),
		PurchaseUnits: []client.PurchaseUnit{unit},
		ReturnURL:     s.baseURL + "/paypal/return",
		CancelURL:     s.baseURL + "/checkout",
	}
	switch def.Code {
	case paymentmodule.CodePayPal, paymentmodule.CodeVenmo:
		req.FundingSource = def.Funding
	}

	order, err := s.paypalClient.CreateOrder(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("wallet", wallet).Msg("paypal order not created")
		return "", walletError(msgWalletUnavailable)
	}

	sess.Wallet = &session.Wallet{Type: wallet, PayPalOrderID: order.ID, ReferenceID: unit.ReferenceID}
	log.Info().Str("wallet", wallet).Str("paypal_order_id", order.ID).Str("total", quote.Totals.Total.StringFixed(2)).Msg("wallet order created")
	return order.ID, nil
}

// UpdateShipping prices the cart for an address chosen in the payment sheet
// and moves the open PayPal order to the new total. Only the flat rate is
// offered.
func (s *walletServiceImpl) UpdateShipping(ctx context.Context, sess *session.Data, wallet string, address *ShippingAddress) (*WalletTotals, error) {
	def, settings, err := s.module(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if address == nil || address.CountryCode == "" {
		return nil, walletError("Please choose a shipping address.")
	}

	if _, err := s.checkout.Update(ctx, sess, &checkout.UpdateRequest{Shipping: "flat_flat"}); err != nil {
		return nil, s.quoteError(err)
	}
	sheet := &model.AddressBook{
		CountryCode: strings.ToUpper(address.CountryCode),
		State:       address.State,
		City:        address.City,
		Postcode:    address.Postcode,
	}
	quote, err := s.eligibleQuote(ctx, sess, def, settings, sheet)
	if err != nil {
		return nil, err
	}

	if w := sess.Wallet; w != nil && w.Type == wallet && w.PayPalOrderID != "" {
		unit := purchaseUnit(quote, w.ReferenceID)
		if err := s.paypalClient.PatchOrderAmount(ctx, w.PayPalOrderID, w.ReferenceID, &unit.Amount); err != nil {
			log.Error().Err(err).Str("paypal_order_id", w.PayPalOrderID).Msg("paypal order amount not updated")
			return nil, walletError(msgWalletUnavailable)
		}
		log.Info().
			Str("paypal_order_id", w.PayPalOrderID).
			Str("total", quote.Totals.Total.StringFixed(2)).
			Msg("wallet order amount updated")
	}

	totals := walletTotals(quote)
	return &totals, nil
}

func (s *walletServiceImpl) Approve(ctx context.Context, sess *session.Data, wallet, orderID string) error {
	def, ok := paymentmodule.ForWallet(wallet)
	if !ok {
		return walletError("Unknown wallet %q.", wallet)
	}
	return s.approve(ctx, sess, def, orderID)
}

func (s *walletServiceImpl) Return(ctx context.Context, sess *session.Data, orderID string) error {
	if sess.Wallet == nil {
		return walletError("Your PayPal session has expired, please try again.")
	}
	def, ok := paymentmodule.ForWallet(sess.Wallet.Type)
	if !ok {
		return walletError("Unknown wallet %q.", sess.Wallet.Type)
	}
	return s.approve(ctx, sess, def, orderID)
}

func (s *walletServiceImpl) approve(ctx context.Context, sess *session.Data, def paymentmodule.Definition, orderID string) error {
	if orderID == "" || sess.Wallet == nil || sess.Wallet.PayPalOrderID != orderID {
		return walletError("Your PayPal session has expired, please try again.")
	}

	order, err := s.paypalClient.GetOrder(ctx, orderID)
	if err != nil {
		log.Error().Err(err).Str("paypal_order_id", orderID).Msg("paypal order lookup failed")
		return walletError(msgWalletUnavailable)
	}
	if order.Status != "APPROVED" {
		log.Warn().Str("paypal_order_id", orderID).Str("status", order.Status).Msg("wallet order not approved")
		return walletError("PayPal has not approved this payment.")
	}

	sess.Wallet.Approved = true
	sess.Wallet.PayerID = order.PayerID
	sess.Wallet.PayerEmail = order.PayerEmail
	sess.Wallet.PayerName = order.PayerName
	sess.Payment = def.Code
	if !sess.LoggedIn() && sess.Email == "" {
		sess.Email = order.PayerEmail
	}
	return nil
}

// module resolves wallet and checks the settings it cannot work without.
func (s *walletServiceImpl) module(ctx context.Context, wallet string) (paymentmodule.Definition, configuration.Settings, error) {
	def, ok := paymentmodule.ForWallet(wallet)
	if !ok {
		return def, nil, walletError("Unknown wallet %q.", wallet)
	}
	settings, err := configuration.Load(ctx, s.settings)
	if err != nil {
		return def, nil, fmt.Errorf("load configuration: %w", err)
	}

	if s.sdk.ClientID == "" {
		return def, nil, walletError("%s is not configured.", def.Title)
	}
	if !settings.Bool(def.Key(configuration.SuffixStatus)) {
		return def, nil, walletError("%s is not enabled.", def.Title)
	}
	switch def.Code {
	case paymentmodule.CodeGooglePay:
		if s.sdk.Environment == "live" && settings.String(def.Key(configuration.SuffixMerchantID)) == "" {
			return def, nil, walletError("%s is missing its merchant id.", def.Title)
		}
	case paymentmodule.CodeApplePay:
		if settings.String(def.Key(configuration.SuffixMerchantDomain)) == "" {
			return def, nil, walletError("%s is missing its merchant domain.", def.Title)
		}
	}
	return def, settings, nil
}

// eligibleQuote prices the cart and checks def may take the payment. billing
// overrides the session address for the zone check.
func (s *walletServiceImpl) eligibleQuote(
	ctx context.Context,
	sess *session.Data,
	def paymentmodule.Definition,
	settings configuration.Settings,
	billing *model.AddressBook,
) (*checkout.Quote, error) {
	quote, err := s.checkout.Quote(ctx, sess)
	if err != nil {
		return nil, s.quoteError(err)
	}
	if billing == nil {
		billing = quote.Billing
	}

	ok, reason, err := s.registry.Eligible(ctx, def, settings, quote.Totals.Total, quote.Currency, billing)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().Str("module", def.Code).Str("reason", reason).Msg("wallet not eligible")
		return nil, walletError("%s is not available for this order.", def.Title)
	}
	return quote, nil
}

func (s *walletServiceImpl) quoteError(err error) error {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return walletError("Your cart is empty.")
	case errors.Is(err, checkout.ErrProductUnavailable):
		return walletError("An item in your cart is no longer available.")
	}
	return err
}

func walletTotals(q *checkout.Quote) WalletTotals {
	t := WalletTotals{
		Currency: q.Currency,
		Subtotal: q.Totals.Subtotal.StringFixed(2),
		Shipping: q.Totals.Shipping.StringFixed(2),
		Discount: q.Totals.Discount.StringFixed(2),
		Tax:      q.Totals.Tax.StringFixed(2),
		Total:    q.Totals.Total.StringFixed(2),
	}
	for _, l := range q.Lines {
		t.Items = append(t.Items, WalletItem{
			Name:     l.Product.Name,
			SKU:      l.Product.Model,
			Quantity: l.Quantity,
			Price:    l.Product.Price.StringFixed(2),
		})
	}
	return t
}

func money(currency string, v decimal.Decimal) *client.Money {
	return &client.Money{CurrencyCode: currency, Value: v.StringFixed(2)}
}

// purchaseUnit describes the quote to PayPal. The item total is the order
// subtotal. Items are listed only when their two decimal unit prices add up
// to it, which four decimal catalog prices do not always do.
func purchaseUnit(q *checkout.Quote, reference string) client.PurchaseUnit {
	currency := q.Currency
	listed := decimal.Zero
	items := make([]client.OrderItem, 0, len(q.Lines))
	for _, l := range q.Lines {
		price := l.Product.Price.Round(2)
		listed = listed.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))

		category := "PHYSICAL_GOODS"
		if l.Product.IsVirtual {
			category = "DIGITAL_GOODS"
		}
		items = append(items, client.OrderItem{
			Name:       l.Product.Name,
			SKU:        l.Product.Model,
			Quantity:   strconv.Itoa(l.Quantity),
			UnitAmount: *money(currency, price),
			Category:   category,
		})
	}
	if !listed.Equal(q.Totals.Subtotal) {
		items = nil
	}

	breakdown := &client.AmountBreakdown{
		ItemTotal: money(currency, q.Totals.Subtotal),
		TaxTotal:  money(currency, q.Totals.Tax),
	}
	if q.Totals.Shipping.IsPositive() {
		breakdown.Shipping = money(currency, q.Totals.Shipping)
	}
	if q.Totals.Discount.IsPositive() {
		breakdown.Discount = money(currency, q.Totals.Discount)
	}

	return client.PurchaseUnit{
		ReferenceID: reference,
		Amount: client.PurchaseAmount{
			CurrencyCode: currency,
			Value:        q.Totals.Total.StringFixed(2),
			Breakdown:    breakdown,
		},
		Items: items,
	}
}
