package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"storefront-payments/internal/config"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
)

// --- INTERFACE ---

type BraintreeClient interface {
	// GenerateClientToken returns a token the browser SDK initializes with
	GenerateClientToken(ctx context.Context) (string, error)

	// Sale charges a one-time nonce from the browser and submits it for settlement
	Sale(ctx context.Context, req *SaleRequest) (*SaleResult, error)
}

type SaleRequest struct {
	Nonce    string
	Amount   decimal.Decimal
	OrderID  string
	Settle   bool
	Currency string
}

type SaleResult struct {
	TransactionID     string
	Status            string
	PaymentType       string
	Amount            decimal.Decimal
	Currency          string
	ProcessorResponse string
}

// BraintreeDeclinedError is a sale the processor or gateway refused. Other
// Sale errors mean Braintree could not be reached or failed.
type BraintreeDeclinedError struct {
	Status            string
	ProcessorResponse string
}

func (e *BraintreeDeclinedError) Error() string {
	return fmt.Sprintf("transaction %s: %s", e.Status, e.ProcessorResponse)
}

// --- IMPLEMENTATION ---

type braintreeClientImpl struct {
	gateway *braintree.Braintree
}

// NewBraintreeClient initializes the Braintree SDK gateway
func NewBraintreeClient(cfg *config.Braintree) BraintreeClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}
	if cfg.BaseURL != "" {
		env = braintree.NewEnvironment(cfg.BaseURL)
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		gateway: gateway,
	}
}

// --- METHODS ---

func (c *braintreeClientImpl) GenerateClientToken(ctx context.Context) (string, error) {
	token, err := c.gateway.ClientToken().Generate(ctx)
	if err != nil {
		return "", fmt.Errorf("generate client token: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("generate client token: empty token")
	}
	return token, nil
}

func (c *braintreeClientImpl) Sale(ctx context.Context, sale *SaleRequest) (*SaleResult, error) {
	// Braintree expects NewDecimal(unscaled, scale). For 2 decimal places (like USD):
	// "50.00" * 100 = 5000 -> braintree.NewDecimal(5000, 2)
	cents := sale.Amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
	btAmount := braintree.NewDecimal(cents, 2)

	req := &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             btAmount,
		PaymentMethodNonce: sale.Nonce,
		OrderId:            sale.OrderID,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: sale.Settle,
		},
	}

	tx, err := c.gateway.Transaction().Create(ctx, req)
	var apiErr *braintree.BraintreeError
	switch {
	case errors.As(err, &apiErr) && apiErr.Transaction != nil:
		return nil, &BraintreeDeclinedError{
			Status:            string(apiErr.Transaction.Status),
			ProcessorResponse: apiErr.Transaction.ProcessorResponseText,
		}
	case errors.As(err, &apiErr) && apiErr.StatusCode() == http.StatusUnprocessableEntity:
		// validation failures such as a reused nonce
		return nil, &BraintreeDeclinedError{Status: "validation_failed", ProcessorResponse: apiErr.ErrorMessage}
	case err != nil:
		return nil, fmt.Errorf("transaction creation failed: %w", err)
	}

	if tx.Status == braintree.TransactionStatusProcessorDeclined ||
		tx.Status == braintree.TransactionStatusGatewayRejected {
		return nil, &BraintreeDeclinedError{
			Status:            string(tx.Status),
			ProcessorResponse: tx.ProcessorResponseText,
		}
	}

	return &SaleResult{
		TransactionID:     tx.Id,
		Status:            string(tx.Status),
		PaymentType:       string(tx.PaymentInstrumentType),
		Amount:            sale.Amount.Round(2),
		Currency:          sale.Currency,
		ProcessorResponse: tx.ProcessorResponseText,
	}, nil
}
