package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"storefront-payments/internal/client"
	"storefront-payments/internal/configuration"
	"storefront-payments/internal/model"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/profile"
	"storefront-payments/internal/repository"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PayPal webhook event types this store acts on.
const (
	EventCaptureCompleted      = "PAYMENT.CAPTURE.COMPLETED"
	EventCapturePending        = "PAYMENT.CAPTURE.PENDING"
	EventCaptureRefunded       = "PAYMENT.CAPTURE.REFUNDED"
	EventCaptureDenied         = "PAYMENT.CAPTURE.DENIED"
	EventSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	EventSubscriptionSuspended = "BILLING.SUBSCRIPTION.SUSPENDED"
	EventSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
	EventSubscriptionExpired   = "BILLING.SUBSCRIPTION.EXPIRED"
)

var subscriptionEventStatus = map[string]profile.Status{
	EventSubscriptionActivated: profile.StatusActive,
	EventSubscriptionSuspended: profile.StatusSuspended,
	EventSubscriptionCancelled: profile.StatusCancelled,
	EventSubscriptionExpired:   profile.StatusExpired,
}

type PaypalService interface {
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
}

type paypalServiceImpl struct {
	db               *gorm.DB
	paypalClient     client.PaypalClient
	settings         configuration.Source
	orderRepo        repository.OrderRepository
	transactionRepo  repository.TransactionRepository
	webhookEventRepo repository.WebhookEventRepository
	profiles         ProfileService
}

func NewPaypalService(
	db *gorm.DB,
	paypalClient client.PaypalClient,
	settings configuration.Source,
	orderRepo repository.OrderRepository,
	transactionRepo repository.TransactionRepository,
	webhookEventRepo repository.WebhookEventRepository,
	profiles ProfileService,
) PaypalService {
	return &paypalServiceImpl{
		db:               db,
		paypalClient:     paypalClient,
		settings:         settings,
		orderRepo:        orderRepo,
		transactionRepo:  transactionRepo,
		webhookEventRepo: webhookEventRepo,
		profiles:         profiles,
	}
}

func (s *paypalServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	err := s.paypalClient.VerifyWebhookSignature(ctx, headers, body)
	if err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	var eventPayload model.PayPalWebhookEvent
	if err := json.Unmarshal(body, &eventPayload); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}
	if eventPayload.ID == "" {
		return fmt.Errorf("decode webhook payload: missing event id")
	}

	seen, err := s.webhookEventRepo.Exists(ctx, eventPayload.ID)
	if err != nil {
		return fmt.Errorf("check webhook event %s: %w", eventPayload.ID, err)
	}
	if seen {
		log.Debug().Str("event_id", eventPayload.ID).Msg("webhook event already processed")
		return nil
	}

	switch eventPayload.EventType {
	case EventCaptureCompleted, EventCapturePending, EventCaptureRefunded, EventCaptureDenied:
		err = s.handleCapture(ctx, &eventPayload)
	case EventSubscriptionActivated, EventSubscriptionSuspended, EventSubscriptionCancelled, EventSubscriptionExpired:
		err = s.handleSubscription(ctx, &eventPayload)
	default:
		log.Debug().Str("event_type", eventPayload.EventType).Msg("webhook event ignored")
	}
	if err != nil {
		return err
	}

	return s.webhookEventRepo.MarkProcessed(ctx, eventPayload.ID, eventPayload.EventType)
}

// handleCapture moves the transaction log row and its order to the reported
// capture state. Captures this store never logged are ignored.
func (s *paypalServiceImpl) handleCapture(ctx context.Context, event *model.PayPalWebhookEvent) error {
	txnID := captureID(&event.Resource)
	if txnID == "" {
		return fmt.Errorf("could not find capture id in webhook payload")
	}

	txn, err := s.transactionRepo.FindPayPalByTxnID(ctx, txnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Str("event_type", event.EventType).Str("transaction_id", txnID).Msg("webhook for unknown capture")
			return nil
		}
		return fmt.Errorf("find transaction %s: %w", txnID, err)
	}

	order, err := s.orderRepo.FindByID(ctx, txn.OrderID)
	if err != nil {
		return fmt.Errorf("find order %d: %w", txn.OrderID, err)
	}
	settings, err := configuration.Load(ctx, s.settings)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	paymentStatus := strings.TrimPrefix(event.EventType, "PAYMENT.CAPTURE.")
	statusID := order.OrdersStatus
	if def, ok := paymentmodule.Lookup(order.PaymentModuleCode); ok {
		switch event.EventType {
		case EventCaptureCompleted:
			statusID = paymentmodule.StatusFor(def, settings, &paymentmodule.PaymentResult{})
		case EventCapturePending:
			statusID = paymentmodule.StatusFor(def, settings, &paymentmodule.PaymentResult{Pending: true})
		}
	}
	if event.EventType == EventCaptureRefunded {
		statusID = model.OrderStatusRefunded
	}

	comment := fmt.Sprintf("PayPal webhook %s. Transaction ID: %s.", event.EventType, txnID)
	if event.Resource.Amount.Value != "" {
		comment += fmt.Sprintf(" Amount: %s %s.", event.Resource.Amount.Value, event.Resource.Amount.Currency)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transactionRepo.UpdatePayPalStatus(ctx, tx, txnID, paymentStatus); err != nil {
			return fmt.Errorf("update transaction %s: %w", txnID, err)
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, statusID, comment, false); err != nil {
			return fmt.Errorf("update order %d status: %w", order.ID, err)
		}
		log.Info().
			Uint("order_id", order.ID).
			Str("transaction_id", txnID).
			Str("payment_status", paymentStatus).
			Int("status_id", statusID).
			Msg("capture webhook applied")
		return nil
	})
}

func (s *paypalServiceImpl) handleSubscription(ctx context.Context, event *model.PayPalWebhookEvent) error {
	resource := event.Resource
	if resource.ID == "" {
		return fmt.Errorf("missing subscription id in %s", event.EventType)
	}

	status := profile.NormalizeStatus(resource.Status)
	if status == profile.StatusUnknown {
		status = subscriptionEventStatus[event.EventType]
	}

	var next *time.Time
	if resource.BillingInfo.NextBillingTime != "" {
		if t, err := time.Parse(time.RFC3339, resource.BillingInfo.NextBillingTime); err == nil {
			next = &t
		}
	}

	err := s.profiles.SyncStatus(ctx, resource.ID, status, next)
	if errors.Is(err, ErrProfileNotFound) {
		log.Warn().Str("event_type", event.EventType).Str("profile_id", resource.ID).Msg("webhook for unknown subscription")
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync profile %s: %w", resource.ID, err)
	}
	return nil
}

// captureID is the capture a payment event is about. Refund resources point
// back to their capture through the "up" link.
func captureID(resource *model.PaypalResource) string {
	for _, link := range resource.Links {
		if link.Rel == "up" && strings.Contains(link.Href, "/captures/") {
			return link.Href[strings.LastIndex(link.Href, "/")+1:]
		}
	}
	return resource.ID
}
