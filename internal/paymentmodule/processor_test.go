package paymentmodule

import (
	"context"
	"errors"
	"storefront-payments/internal/client"
	"storefront-payments/internal/client/paypaltest"
	"storefront-payments/internal/config"
	"storefront-payments/internal/configuration"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBraintree struct {
	sales   []*client.SaleRequest
	saleErr error
}

func (f *fakeBraintree) GenerateClientToken(ctx context.Context) (string, error) {
	return "token", nil
}

func (f *fakeBraintree) Sale(ctx context.Context, req *client.SaleRequest) (*client.SaleResult, error) {
	f.sales = append(f.sales, req)
	if f.saleErr != nil {
		return nil, f.saleErr
	}
	status := "authorized"
	if req.Settle {
		status = "submitted_for_settlement"
	}
	return &client.SaleResult{
		TransactionID: "bt-txn-1",
		Status:        status,
		PaymentType:   "paypal_account",
		Amount:        req.Amount,
		Currency:      req.Currency,
	}, nil
}

type processorFixture struct {
	mock      *paypaltest.MockPayPal
	paypal    client.PaypalClient
	braintree *fakeBraintree
	processor *Processor
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()

	mock := paypaltest.NewMockPayPal()
	t.Cleanup(mock.Close)

	paypal := client.NewPaypalClient(&config.Paypal{
		BaseApiURL:   mock.URL(),
		ClientID:     "client",
		ClientSecret: "secret",
	})
	bt := &fakeBraintree{}

	return &processorFixture{
		mock:      mock,
		paypal:    paypal,
		braintree: bt,
		processor: NewProcessor(paypal, bt),
	}
}

// approvedOrder creates a PayPal order for value and approves it.
func (f *processorFixture) approvedOrder(t *testing.T, value string) string {
	t.Helper()
	order, err := f.paypal.CreateOrder(context.Background(), &client.OrderRequest{
		PurchaseUnits: []client.PurchaseUnit{{
			Amount: client.PurchaseAmount{CurrencyCode: "USD", Value: value},
		}},
	})
	require.NoError(t, err)
	f.mock.Approve(order.ID, "PAYER123", "buyer@example.com")
	return order.ID
}

func chargeFor(orderID, value string) *ChargeRequest {
	return &ChargeRequest{
		Reference: "42",
		Amount:    decimal.RequireFromString(value),
		Currency:  "USD",
		Fields: map[string]string{
			FieldPayPalOrderID: orderID,
			FieldWallet:        "paypal",
		},
	}
}

func TestChargePayPalCapture(t *testing.T) {
	f := newProcessorFixture(t)
	orderID := f.approvedOrder(t, "21.50")

	result, err := f.processor.Charge(context.Background(), mustLookup(CodePayPal), enabled(CodePayPal), chargeFor(orderID, "21.5"))
	require.NoError(t, err)

	assert.Equal(t, "CAPTURE", result.Type)
	assert.Equal(t, "COMPLETED", result.Status)
	assert.False(t, result.Pending)
	assert.Equal(t, orderID, result.ParentID)
	assert.NotEmpty(t, result.TransactionID)
	assert.True(t, decimal.RequireFromString("21.50").Equal(result.Amount))
	assert.Equal(t, "PAYER123", result.PayerID)
	assert.Equal(t, "buyer@example.com", result.PayerEmail)
	assert.Equal(t, "paypal", result.PaymentType)
	assert.NotEmpty(t, result.Raw)
}

func TestChargePayPalAuthorize(t *testing.T) {
	f := newProcessorFixture(t)
	orderID := f.approvedOrder(t, "10.00")

	def := mustLookup(CodePayPal)
	settings := enabled(CodePayPal)
	settings[def.Key(configuration.SuffixTransactionMode)] = configuration.TransactionModeAuthOnly

	result, err := f.processor.Charge(context.Background(), def, settings, chargeFor(orderID, "10.00"))
	require.NoError(t, err)
	assert.Equal(t, "AUTHORIZE", result.Type)
	assert.Equal(t, "CREATED", result.Status)
}

func TestChargePayPalPending(t *testing.T) {
	f := newProcessorFixture(t)
	f.mock.CaptureStatus = "PENDING"
	orderID := f.approvedOrder(t, "10.00")

	result, err := f.processor.Charge(context.Background(), mustLookup(CodePayPal), enabled(CodePayPal), chargeFor(orderID, "10.00"))
	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.Equal(t, "PENDING_REVIEW", result.StatusReason)
}

func TestChargePayPalDeclined(t *testing.T) {
	f := newProcessorFixture(t)
	f.mock.CaptureStatus = "DECLINED"
	orderID := f.approvedOrder(t, "10.00")

	_, err := f.processor.Charge(context.Background(), mustLookup(CodePayPal), enabled(CodePayPal), chargeFor(orderID, "10.00"))
	assert.ErrorIs(t, err, ErrPaymentDeclined)
}

func TestChargePayPalRejectsBadOrders(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	def := mustLookup(CodePayPal)
	settings := enabled(CodePayPal)

	t.Run("missing order id", func(t *testing.T) {
		_, err := f.processor.Charge(ctx, def, settings, chargeFor("", "10.00"))
		assert.ErrorIs(t, err, ErrMissingPaymentData)
	})

	t.Run("not approved", func(t *testing.T) {
		order, err := f.paypal.CreateOrder(ctx, &client.OrderRequest{
			PurchaseUnits: []client.PurchaseUnit{{
				Amount: client.PurchaseAmount{CurrencyCode: "USD", Value: "10.00"},
			}},
		})
		require.NoError(t, err)

		_, err = f.processor.Charge(ctx, def, settings, chargeFor(order.ID, "10.00"))
		assert.ErrorIs(t, err, ErrOrderNotApproved)
	})

	t.Run("amount changed after approval", func(t *testing.T) {
		orderID := f.approvedOrder(t, "10.00")
		attempts := f.mock.CaptureAttempts

		_, err := f.processor.Charge(ctx, def, settings, chargeFor(orderID, "12.00"))
		assert.ErrorIs(t, err, ErrAmountMismatch)
		assert.Equal(t, attempts, f.mock.CaptureAttempts)
	})

	t.Run("currency changed after approval", func(t *testing.T) {
		orderID := f.approvedOrder(t, "10.00")
		req := chargeFor(orderID, "10.00")
		req.Currency = "EUR"

		_, err := f.processor.Charge(ctx, def, settings, req)
		assert.ErrorIs(t, err, ErrAmountMismatch)
	})

	t.Run("capture failure", func(t *testing.T) {
		orderID := f.approvedOrder(t, "10.00")
		f.mock.SetFailure(false, true, false, false)
		defer f.mock.SetFailure(false, false, false, false)

		_, err := f.processor.Charge(ctx, def, settings, chargeFor(orderID, "10.00"))
		var apiErr *client.PaypalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 500, apiErr.StatusCode)
	})
}

func TestChargeBraintree(t *testing.T) {
	f := newProcessorFixture(t)
	def := mustLookup(CodeBraintree)
	req := &ChargeRequest{
		Reference: "77",
		Amount:    decimal.RequireFromString("35.10"),
		Currency:  "USD",
		Fields:    map[string]string{FieldNonce: "fake-paypal-one-time-nonce"},
	}

	result, err := f.processor.Charge(context.Background(), def, enabled(CodeBraintree), req)
	require.NoError(t, err)
	assert.Equal(t, "SALE", result.Type)
	assert.Equal(t, "bt-txn-1", result.TransactionID)
	require.Len(t, f.braintree.sales, 1)
	assert.True(t, f.braintree.sales[0].Settle)
	assert.Equal(t, "77", f.braintree.sales[0].OrderID)

	f.braintree.saleErr = &client.BraintreeDeclinedError{Status: "processor_declined", ProcessorResponse: "Do Not Honor"}
	_, err = f.processor.Charge(context.Background(), def, enabled(CodeBraintree), req)
	assert.ErrorIs(t, err, ErrPaymentDeclined)

	f.braintree.saleErr = errors.New("dial tcp: connection refused")
	_, err = f.processor.Charge(context.Background(), def, enabled(CodeBraintree), req)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPaymentDeclined)

	req.Fields = map[string]string{}
	_, err = f.processor.Charge(context.Background(), def, enabled(CodeBraintree), req)
	assert.ErrorIs(t, err, ErrMissingPaymentData)
}

func TestChargeFree(t *testing.T) {
	p := NewProcessor(nil, nil)
	def := mustLookup(CodeFreeCharger)

	result, err := p.Charge(context.Background(), def, enabled(CodeFreeCharger), &ChargeRequest{Amount: decimal.Zero, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "FREE", result.Type)

	_, err = p.Charge(context.Background(), def, enabled(CodeFreeCharger), &ChargeRequest{Amount: decimal.NewFromInt(1), Currency: "USD"})
	assert.ErrorIs(t, err, ErrAmountMismatch)
}
