package paymentmodule

import (
	"context"
	"fmt"
	"storefront-payments/internal/configuration"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"

	"gorm.io/gorm"
)

// Bookkeeper moves an order to the module's configured status and writes the
// gateway transaction log once a payment went through.
type Bookkeeper struct {
	orderRepo       repository.OrderRepository
	transactionRepo repository.TransactionRepository
}

func NewBookkeeper(orderRepo repository.OrderRepository, transactionRepo repository.TransactionRepository) *Bookkeeper {
	return &Bookkeeper{
		orderRepo:       orderRepo,
		transactionRepo: transactionRepo,
	}
}

// StatusFor picks the order status a result should leave the order in.
func StatusFor(def Definition, settings configuration.Settings, result *PaymentResult) int {
	if result.Pending {
		if id := settings.Int(def.Key(configuration.SuffixPendingStatusID)); id > 0 {
			return id
		}
	}
	if id := settings.Int(def.Key(configuration.SuffixOrderStatusID)); id > 0 {
		return id
	}
	return settings.IntOr(configuration.DefaultOrdersStatusID, model.OrderStatusPending)
}

func (b *Bookkeeper) Record(
	ctx context.Context,
	tx *gorm.DB,
	order *model.Order,
	def Definition,
	settings configuration.Settings,
	result *PaymentResult,
) error {
	statusID := StatusFor(def, settings, result)

	comment := fmt.Sprintf("%s %s.", def.Title, result.Type)
	if result.TransactionID != "" {
		comment += fmt.Sprintf(" Transaction ID: %s.", result.TransactionID)
	}
	comment += " Status: " + result.Status
	if result.StatusReason != "" {
		comment += " (" + result.StatusReason + ")"
	}

	if err := b.orderRepo.UpdateStatus(ctx, tx, order.ID, statusID, comment, false); err != nil {
		return fmt.Errorf("update order %d status: %w", order.ID, err)
	}
	order.OrdersStatus = statusID

	switch def.Gateway {
	case GatewayPayPal:
		err := b.transactionRepo.CreatePayPal(ctx, tx, &model.PayPalTransaction{
			OrderID:       order.ID,
			TxnID:         result.TransactionID,
			ParentTxnID:   result.ParentID,
			TxnType:       result.Type,
			PaymentStatus: result.Status,
			Amount:        result.Amount,
			Currency:      result.Currency,
			PayerID:       result.PayerID,
			PayerEmail:    result.PayerEmail,
			Module:        def.Code,
			Raw:           result.Raw,
		})
		if err != nil {
			return fmt.Errorf("log paypal transaction %s: %w", result.TransactionID, err)
		}
	case GatewayBraintree:
		err := b.transactionRepo.CreateBraintree(ctx, tx, &model.BraintreeTransaction{
			OrderID:           order.ID,
			TxnID:             result.TransactionID,
			PaymentType:       result.PaymentType,
			Status:            result.Status,
			Amount:            result.Amount,
			Currency:          result.Currency,
			Module:            def.Code,
			ProcessorResponse: result.StatusReason,
		})
		if err != nil {
			return fmt.Errorf("log braintree transaction %s: %w", result.TransactionID, err)
		}
	}

	return nil
}
