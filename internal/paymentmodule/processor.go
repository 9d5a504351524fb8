package paymentmodule

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/client"
	"storefront-payments/internal/configuration"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingPaymentData = errors.New("payment data missing")
	ErrOrderNotApproved   = errors.New("paypal order not approved")
	ErrAmountMismatch     = errors.New("payment amount does not match order total")
	ErrPaymentDeclined    = errors.New("payment declined")
)

type ChargeRequest struct {
	Reference string // store side reference sent to the gateway
	Amount    decimal.Decimal
	Currency  string
	Fields    map[string]string
}

// PaymentResult is a completed charge, whatever gateway took it.
type PaymentResult struct {
	TransactionID string
	ParentID      string // PayPal order id
	Type          string // CAPTURE, AUTHORIZE, SALE, FREE
	Status        string
	StatusReason  string
	Pending       bool
	Amount        decimal.Decimal
	Currency      string
	PayerID       string
	PayerEmail    string
	PaymentType   string
	Raw           string
}

type Processor struct {
	paypalClient    client.PaypalClient
	braintreeClient client.BraintreeClient
}

func NewProcessor(paypalClient client.PaypalClient, braintreeClient client.BraintreeClient) *Processor {
	return &Processor{
		paypalClient:    paypalClient,
		braintreeClient: braintreeClient,
	}
}

// Charge takes the payment for def using the confirmation form fields.
func (p *Processor) Charge(ctx context.Context, def Definition, settings configuration.Settings, req *ChargeRequest) (*PaymentResult, error) {
	switch def.Gateway {
	case GatewayPayPal:
		return p.chargePayPal(ctx, def, settings, req)
	case GatewayBraintree:
		return p.chargeBraintree(ctx, def, settings, req)
	case GatewayNone:
		if !req.Amount.IsZero() {
			return nil, fmt.Errorf("%w: free checkout with total %s", ErrAmountMismatch, req.Amount.StringFixed(2))
		}
		return &PaymentResult{
			Type:     "FREE",
			Status:   "COMPLETED",
			Amount:   decimal.Zero,
			Currency: req.Currency,
		}, nil
	}
	return nil, fmt.Errorf("unknown gateway %q for module %s", def.Gateway, def.Code)
}

func (p *Processor) chargePayPal(ctx context.Context, def Definition, settings configuration.Settings, req *ChargeRequest) (*PaymentResult, error) {
	if p.paypalClient == nil {
		return nil, fmt.Errorf("%s: paypal client not configured", def.Code)
	}
	orderID := req.Fields[FieldPayPalOrderID]
	if orderID == "" {
		return nil, fmt.Errorf("%w: no PayPal order for %s", ErrMissingPaymentData, def.Code)
	}

	order, err := p.paypalClient.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != "APPROVED" {
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotApproved, orderID, order.Status)
	}
	if err := sameAmount(order.Amount, req.Amount, req.Currency); err != nil {
		return nil, err
	}

	var capture *client.CaptureResult
	txnType := "CAPTURE"
	if Intent(def, settings) == "authorize" {
		txnType = "AUTHORIZE"
		capture, err = p.paypalClient.AuthorizeOrder(ctx, orderID)
	} else {
		capture, err = p.paypalClient.CaptureOrder(ctx, orderID)
	}
	if err != nil {
		return nil, err
	}
	if capture.Status == "DECLINED" || capture.Status == "FAILED" {
		return nil, fmt.Errorf("%w: %s %s", ErrPaymentDeclined, capture.Status, capture.StatusReason)
	}

	amount, err := decimal.NewFromString(capture.Amount.Value)
	if err != nil {
		amount = req.Amount
	}
	payerID := capture.PayerID
	if payerID == "" {
		payerID = order.PayerID
	}
	payerEmail := capture.PayerEmail
	if payerEmail == "" {
		payerEmail = order.PayerEmail
	}

	return &PaymentResult{
		TransactionID: capture.TransactionID,
		ParentID:      orderID,
		Type:          txnType,
		Status:        capture.Status,
		StatusReason:  capture.StatusReason,
		Pending:       capture.Status == "PENDING",
		Amount:        amount,
		Currency:      req.Currency,
		PayerID:       payerID,
		PayerEmail:    payerEmail,
		PaymentType:   req.Fields[FieldWallet],
		Raw:           capture.Raw,
	}, nil
}

func (p *Processor) chargeBraintree(ctx context.Context, def Definition, settings configuration.Settings, req *ChargeRequest) (*PaymentResult, error) {
	if p.braintreeClient == nil {
		return nil, fmt.Errorf("%s: braintree client not configured", def.Code)
	}
	nonce := req.Fields[FieldNonce]
	if nonce == "" {
		return nil, fmt.Errorf("%w: no payment method nonce for %s", ErrMissingPaymentData, def.Code)
	}

	settle := Intent(def, settings) == "capture"
	sale, err := p.braintreeClient.Sale(ctx, &client.SaleRequest{
		Nonce:    nonce,
		Amount:   req.Amount,
		OrderID:  req.Reference,
		Settle:   settle,
		Currency: req.Currency,
	})
	if err != nil {
		var declined *client.BraintreeDeclinedError
		if errors.As(err, &declined) {
			return nil, fmt.Errorf("%w: %w", ErrPaymentDeclined, err)
		}
		return nil, fmt.Errorf("braintree sale: %w", err)
	}

	txnType := "SALE"
	if !settle {
		txnType = "AUTHORIZE"
	}
	return &PaymentResult{
		TransactionID: sale.TransactionID,
		Type:          txnType,
		Status:        sale.Status,
		StatusReason:  sale.ProcessorResponse,
		Amount:        sale.Amount,
		Currency:      sale.Currency,
		PaymentType:   sale.PaymentType,
	}, nil
}

func sameAmount(paid client.Money, expected decimal.Decimal, currency string) error {
	value, err := decimal.NewFromString(paid.Value)
	if err != nil {
		return fmt.Errorf("%w: unreadable amount %q", ErrAmountMismatch, paid.Value)
	}
	if !strings.EqualFold(paid.CurrencyCode, currency) || !value.Equal(expected.Round(2)) {
		return fmt.Errorf("%w: paid %s %s, expected %s %s",
			ErrAmountMismatch, value.StringFixed(2), paid.CurrencyCode, expected.StringFixed(2), currency)
	}
	return nil
}
