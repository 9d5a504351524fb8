package service

import (
	"context"
	"errors"
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/configuration"
	"storefront-payments/internal/model"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/session"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWallet(f *serviceFixture, sdk paymentmodule.PayPalSDK) WalletService {
	return NewWalletService(f.checkout, f.registry, f.paypal, f.config, sdk, "https://shop.example.com")
}

var sandboxSDK = paymentmodule.PayPalSDK{ClientID: "client", Environment: "sandbox"}

func requireWalletError(t *testing.T, err error, message string) {
	t.Helper()
	var werr *WalletError
	require.True(t, errors.As(err, &werr), "want WalletError, got %v", err)
	assert.Equal(t, message, werr.Message)
}

func TestWalletConfigIncomplete(t *testing.T) {
	cases := []struct {
		name     string
		wallet   string
		sdk      paymentmodule.PayPalSDK
		settings map[string]string
		empty    bool
		message  string
	}{
		{
			name:    "unknown wallet",
			wallet:  "bitcoin",
			sdk:     sandboxSDK,
			message: `Unknown wallet "bitcoin".`,
		},
		{
			name:    "no paypal credentials",
			wallet:  "paypal",
			sdk:     paymentmodule.PayPalSDK{Environment: "sandbox"},
			message: "PayPal is not configured.",
		},
		{
			name:    "module disabled",
			wallet:  "venmo",
			sdk:     sandboxSDK,
			message: "Venmo is not enabled.",
		},
		{
			name:     "google pay live without merchant id",
			wallet:   "googlepay",
			sdk:      paymentmodule.PayPalSDK{ClientID: "client", Environment: "live"},
			settings: map[string]string{"MODULE_PAYMENT_PAYPALR_GOOGLEPAY_STATUS": "True"},
			message:  "Google Pay is missing its merchant id.",
		},
		{
			name:     "apple pay without domain",
			wallet:   "applepay",
			sdk:      sandboxSDK,
			settings: map[string]string{"MODULE_PAYMENT_PAYPALR_APPLEPAY_STATUS": "True"},
			message:  "Apple Pay is missing its merchant domain.",
		},
		{
			name:    "empty cart",
			wallet:  "paypal",
			sdk:     sandboxSDK,
			empty:   true,
			message: "Your cart is empty.",
		},
		{
			name:     "over module maximum",
			wallet:   "paypal",
			sdk:      sandboxSDK,
			settings: map[string]string{"MODULE_PAYMENT_PAYPALR_MAX_ORDER_TOTAL": "20"},
			message:  "PayPal is not available for this order.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newServiceFixture(t)
			f.settings(t, tc.settings)

			sess := &session.Data{Guest: true}
			if !tc.empty {
				sess = f.guestCart(t, 3)
			}

			_, err := newWallet(f, tc.sdk).Config(context.Background(), sess, tc.wallet)
			requireWalletError(t, err, tc.message)
		})
	}
}

func TestWalletConfig(t *testing.T) {
	f := newServiceFixture(t)
	f.settings(t, map[string]string{
		"MODULE_PAYMENT_PAYPALR_GOOGLEPAY_STATUS":      "True",
		"MODULE_PAYMENT_PAYPALR_GOOGLEPAY_MERCHANT_ID": "BCR2DN4T",
	})
	sess := f.guestCart(t, 3)

	cfg, err := newWallet(f, sandboxSDK).Config(context.Background(), sess, "googlepay")
	require.NoError(t, err)

	assert.Equal(t, paymentmodule.CodeGooglePay, cfg.Module)
	assert.Equal(t, "client", cfg.ClientID)
	assert.Equal(t, "capture", cfg.Intent)
	assert.Equal(t, "BCR2DN4T", cfg.GooglePayMerchantID)
	assert.True(t, cfg.ShippingRequired)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, "30.00", cfg.Subtotal)
	assert.Equal(t, "2.10", cfg.Tax)
	assert.Equal(t, "32.10", cfg.Total)
	require.Len(t, cfg.Items, 1)
	assert.Equal(t, WalletItem{Name: "Widget", SKU: "W-1", Quantity: 3, Price: "10.00"}, cfg.Items[0])
}

func TestWalletCreateOrderAndApprove(t *testing.T) {
	f := newServiceFixture(t)
	svc := newWallet(f, sandboxSDK)
	ctx := context.Background()
	sess := f.guestCart(t, 3)

	orderID, err := svc.CreateOrder(ctx, sess, "paypal")
	require.NoError(t, err)
	require.NotNil(t, sess.Wallet)
	assert.Equal(t, orderID, sess.Wallet.PayPalOrderID)
	assert.False(t, sess.Wallet.Approved)

	order, ok := f.mock.Order(orderID)
	require.True(t, ok)
	assert.Equal(t, "32.10", order.Amount)
	assert.Equal(t, "CAPTURE", order.Intent)

	err = svc.Approve(ctx, sess, "paypal", orderID)
	requireWalletError(t, err, "PayPal has not approved this payment.")

	f.mock.Approve(orderID, "PAYER1", "buyer@example.com")

	err = svc.Approve(ctx, sess, "paypal", "ORDER-OTHER")
	requireWalletError(t, err, "Your PayPal session has expired, please try again.")

	require.NoError(t, svc.Approve(ctx, sess, "paypal", orderID))
	assert.True(t, sess.Wallet.Approved)
	assert.Equal(t, "PAYER1", sess.Wallet.PayerID)
	assert.Equal(t, paymentmodule.CodePayPal, sess.Payment)
	assert.Equal(t, "guest@example.com", sess.Email)
}

func TestWalletCreateOrderGatewayFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.mock.SetFailure(true, false, false, false)
	sess := f.guestCart(t, 1)

	_, err := newWallet(f, sandboxSDK).CreateOrder(context.Background(), sess, "paypal")
	requireWalletError(t, err, msgWalletUnavailable)
	assert.Nil(t, sess.Wallet)
}

func TestWalletReturn(t *testing.T) {
	f := newServiceFixture(t)
	svc := newWallet(f, sandboxSDK)
	ctx := context.Background()

	err := svc.Return(ctx, &session.Data{}, "ORDER-1")
	requireWalletError(t, err, "Your PayPal session has expired, please try again.")

	sess := f.guestCart(t, 1)
	orderID, err := svc.CreateOrder(ctx, sess, "venmo")
	requireWalletError(t, err, "Venmo is not enabled.")
	assert.Empty(t, orderID)

	f.settings(t, map[string]string{"MODULE_PAYMENT_PAYPALR_VENMO_STATUS": "True"})
	orderID, err = svc.CreateOrder(ctx, sess, "venmo")
	require.NoError(t, err)
	f.mock.Approve(orderID, "PAYER2", "venmo@example.com")

	require.NoError(t, svc.Return(ctx, sess, orderID))
	assert.Equal(t, paymentmodule.CodeVenmo, sess.Payment)
}

func TestWalletUpdateShipping(t *testing.T) {
	f := newServiceFixture(t)
	svc := newWallet(f, sandboxSDK)
	ctx := context.Background()
	sess := f.guestCart(t, 3)

	_, err := svc.UpdateShipping(ctx, sess, "paypal", &ShippingAddress{})
	requireWalletError(t, err, "Please choose a shipping address.")

	totals, err := svc.UpdateShipping(ctx, sess, "paypal", &ShippingAddress{CountryCode: "us", State: "IL", City: "Springfield", Postcode: "62701"})
	require.NoError(t, err)
	assert.Equal(t, "5.00", totals.Shipping)
	assert.Equal(t, "37.10", totals.Total)
	require.NotNil(t, sess.Shipping)
	assert.Equal(t, "flat", sess.Shipping.Module)

	require.NoError(t, f.db.Create(&model.ZoneToGeoZone{GeoZoneID: 7, CountryCode: "US"}).Error)
	f.settings(t, map[string]string{"MODULE_PAYMENT_PAYPALR_ZONE": "7"})

	_, err = svc.UpdateShipping(ctx, sess, "paypal", &ShippingAddress{CountryCode: "CA"})
	requireWalletError(t, err, "PayPal is not available for this order.")

	_, err = svc.UpdateShipping(ctx, sess, "paypal", &ShippingAddress{CountryCode: "US"})
	require.NoError(t, err)
}

func TestWalletShippingFromSheetReachesPayPal(t *testing.T) {
	f := newServiceFixture(t)
	f.settings(t, map[string]string{configuration.OPRCGuestCheckout: "true"})
	svc := newWallet(f, sandboxSDK)
	ctx := context.Background()
	sess := f.guestCart(t, 3)

	orderID, err := svc.CreateOrder(ctx, sess, "paypal")
	require.NoError(t, err)
	order, _ := f.mock.Order(orderID)
	assert.Equal(t, "32.10", order.Amount)

	totals, err := svc.UpdateShipping(ctx, sess, "paypal", &ShippingAddress{CountryCode: "US", State: "IL", Postcode: "62701"})
	require.NoError(t, err)
	assert.Equal(t, "37.10", totals.Total)
	order, _ = f.mock.Order(orderID)
	assert.Equal(t, "37.10", order.Amount)
	assert.Equal(t, 1, f.mock.OrderPatches)

	f.mock.Approve(orderID, "PAYER1", "buyer@example.com")
	require.NoError(t, svc.Approve(ctx, sess, "paypal", orderID))

	res, err := f.checkout.Process(ctx, sess, &checkout.ProcessRequest{CartID: sess.CartID})
	require.NoError(t, err)
	require.Equal(t, checkout.StatusSuccess, res.Status, res.Message)

	placed, err := f.orderRepo.FindByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("37.10").Equal(placed.OrderTotal))
}

func TestWalletUpdateShippingPatchFailure(t *testing.T) {
	f := newServiceFixture(t)
	svc := newWallet(f, sandboxSDK)
	ctx := context.Background()
	sess := f.guestCart(t, 1)

	_, err := svc.CreateOrder(ctx, sess, "paypal")
	require.NoError(t, err)
	sess.Wallet.ReferenceID = "someone-else"

	_, err = svc.UpdateShipping(ctx, sess, "paypal", &ShippingAddress{CountryCode: "US"})
	requireWalletError(t, err, msgWalletUnavailable)
	assert.Zero(t, f.mock.OrderPatches)
}

func TestWalletOrderBreakdownBalancesFourDecimalPrices(t *testing.T) {
	f := newServiceFixture(t)
	svc := newWallet(f, sandboxSDK)
	ctx := context.Background()

	gadget := &model.Product{Model: "G-1", Name: "Gadget", Price: decimal.RequireFromString("9.9950"), Quantity: 10, IsVirtual: true}
	require.NoError(t, f.db.Create(gadget).Error)
	sess := &session.Data{Guest: true, Email: "guest@example.com"}
	require.NoError(t, f.checkout.AddToCart(ctx, sess, &checkout.AddToCartRequest{ProductID: gadget.ID, Quantity: 3}))

	quote, err := f.checkout.Quote(ctx, sess)
	require.NoError(t, err)
	unit := purchaseUnit(quote, sess.CartID)
	assert.Equal(t, "29.99", unit.Amount.Value)
	assert.Equal(t, "29.99", unit.Amount.Breakdown.ItemTotal.Value)
	assert.Empty(t, unit.Items)

	orderID, err := svc.CreateOrder(ctx, sess, "paypal")
	require.NoError(t, err)
	order, ok := f.mock.Order(orderID)
	require.True(t, ok)
	assert.Equal(t, "29.99", order.Amount)

	// two decimal prices keep their item list
	unit = purchaseUnit(f.quote(t, f.guestCart(t, 2)), "ref")
	require.Len(t, unit.Items, 1)
	assert.Equal(t, "10.00", unit.Items[0].UnitAmount.Value)
	assert.Equal(t, "20.00", unit.Amount.Breakdown.ItemTotal.Value)
}
