package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/configuration"
	"storefront-payments/internal/events"
	"storefront-payments/internal/model"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/profile"
	"storefront-payments/internal/recurring"
	"storefront-payments/internal/repository"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrProfileNotFound = errors.New("recurring profile not found")

// ProfileService starts recurring profiles for placed orders and serves the
// admin profile actions. Stored profiles are kept in step with what the
// gateway reports.
type ProfileService interface {
	CreateForOrder(
		ctx context.Context,
		order *model.Order,
		item *model.OrderProduct,
		schedule *recurring.Schedule,
		payment *paymentmodule.PaymentResult,
	) (*model.RecurringProfile, error)
	Get(ctx context.Context, profileID string) (*profile.Profile, error)
	Cancel(ctx context.Context, profileID, note string) (*profile.Profile, error)
	Suspend(ctx context.Context, profileID, note string) (*profile.Profile, error)
	Reactivate(ctx context.Context, profileID, note string) (*profile.Profile, error)
	// Approved syncs a subscription of orderID the buyer returned from
	// approving and reports the order's next profile still waiting for
	// approval, if any.
	Approved(ctx context.Context, orderID uint, profileID string) (*profile.Profile, *model.RecurringProfile, error)
	// SyncStatus records a status reported out of band, e.g. by a webhook.
	SyncStatus(ctx context.Context, profileID string, status profile.Status, next *time.Time) error
}

type profileServiceImpl struct {
	manager          *profile.Manager
	subscriptionRepo repository.SubscriptionRepository
	settings         configuration.Source
	notifier         events.Notifier
	baseURL          string
}

func NewProfileService(
	manager *profile.Manager,
	subscriptionRepo repository.SubscriptionRepository,
	settings configuration.Source,
	notifier events.Notifier,
	baseURL string,
) ProfileService {
	return &profileServiceImpl{
		manager:          manager,
		subscriptionRepo: subscriptionRepo,
		settings:         settings,
		notifier:         notifier,
		baseURL:          strings.TrimRight(baseURL, "/"),
	}
}

func (s *profileServiceImpl) CreateForOrder(
	ctx context.Context,
	order *model.Order,
	item *model.OrderProduct,
	schedule *recurring.Schedule,
	payment *paymentmodule.PaymentResult,
) (*model.RecurringProfile, error) {
	// the order capture already paid the first cycle
	remaining, ok := schedule.Remaining()
	if !ok {
		log.Info().
			Uint("order_id", order.ID).
			Uint("product_id", item.ProductID).
			Msg("single cycle paid with the order, no profile created")
		return nil, nil
	}

	settings, err := configuration.Load(ctx, s.settings)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	given, surname, _ := strings.Cut(strings.TrimSpace(order.Billing.Name), " ")
	req := &profile.CreateRequest{
		Schedule:    remaining,
		Description: item.Name,
		CustomID:    strconv.FormatUint(uint64(order.ID), 10),
		PayerEmail:  order.CustomerEmail,
		GivenName:   given,
		Surname:     surname,
		ReturnURL:   s.baseURL + "/paypal/subscription/return",
		CancelURL:   s.baseURL + "/checkout",
	}
	if payment != nil {
		req.Token = payment.ParentID
		req.PayerID = payment.PayerID
		if payment.PayerEmail != "" {
			req.PayerEmail = payment.PayerEmail
		}
	}

	created, err := s.manager.Create(ctx, req, settings.String(configuration.SubscriptionGateway))
	if err != nil {
		return nil, fmt.Errorf("create profile for order %d: %w", order.ID, err)
	}

	record := &model.RecurringProfile{
		OrderID:          order.ID,
		CustomerID:       order.CustomerID,
		ProductID:        item.ProductID,
		ProfileID:        created.ProfileID,
		Gateway:          created.Gateway,
		Status:           string(created.Status),
		BillingPeriod:    string(remaining.Period),
		BillingFrequency: remaining.Frequency,
		TotalCycles:      remaining.TotalCycles,
		Amount:           remaining.Amount,
		Currency:         remaining.Currency,
		StartDate:        remaining.StartDate,
		ExpirationDate:   remaining.ExpirationDate,
		NextBillingDate:  created.NextBillingDate,
		ApprovalURL:      created.ApprovalURL,
	}
	if err := s.subscriptionRepo.CreateProfile(ctx, nil, record); err != nil {
		log.Error().Err(err).
			Uint("order_id", order.ID).
			Str("profile_id", created.ProfileID).
			Msg("profile created at gateway but not stored")
		return nil, fmt.Errorf("store profile %s: %w", created.ProfileID, err)
	}

	err = s.notifier.ProfileCreated(ctx, &events.ProfileCreated{
		OrderID:   order.ID,
		ProfileID: record.ProfileID,
		Gateway:   record.Gateway,
		Status:    record.Status,
		Amount:    record.Amount,
		Currency:  record.Currency,
		Schedule:  remaining.Key(),
	})
	if err != nil {
		log.Warn().Err(err).Str("profile_id", record.ProfileID).Msg("profile created event not published")
	}

	log.Info().
		Uint("order_id", order.ID).
		Str("profile_id", record.ProfileID).
		Str("gateway", record.Gateway).
		Msg("recurring profile created")
	return record, nil
}

func (s *profileServiceImpl) Get(ctx context.Context, profileID string) (*profile.Profile, error) {
	hint, err := s.hint(ctx, profileID)
	if err != nil {
		return nil, err
	}
	p, err := s.manager.Get(ctx, profileID, hint)
	if err != nil {
		return nil, err
	}
	s.sync(ctx, p)
	return p, nil
}

func (s *profileServiceImpl) Approved(ctx context.Context, orderID uint, profileID string) (*profile.Profile, *model.RecurringProfile, error) {
	stored, err := s.subscriptionRepo.GetByProfileID(ctx, profileID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("find profile %s: %w", profileID, err)
	}
	if err != nil || stored.OrderID != orderID {
		return nil, nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
	}

	p, err := s.manager.Get(ctx, profileID, stored.Gateway)
	if err != nil {
		return nil, nil, err
	}
	s.sync(ctx, p)
	if p.Status != profile.StatusActive {
		log.Warn().
			Str("profile_id", profileID).
			Str("status", string(p.Status)).
			Msg("subscription returned from approval but not active")
	}

	next, err := s.subscriptionRepo.NextAwaitingApproval(ctx, stored.OrderID, profileID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find profiles awaiting approval for order %d: %w", stored.OrderID, err)
	}
	return p, next, nil
}

func (s *profileServiceImpl) Cancel(ctx context.Context, profileID, note string) (*profile.Profile, error) {
	return s.apply(ctx, profileID, func(hint string) (*profile.Profile, error) {
		return s.manager.Cancel(ctx, profileID, hint, note)
	})
}

func (s *profileServiceImpl) Suspend(ctx context.Context, profileID, note string) (*profile.Profile, error) {
	return s.apply(ctx, profileID, func(hint string) (*profile.Profile, error) {
		return s.manager.Suspend(ctx, profileID, hint, note)
	})
}

func (s *profileServiceImpl) Reactivate(ctx context.Context, profileID, note string) (*profile.Profile, error) {
	return s.apply(ctx, profileID, func(hint string) (*profile.Profile, error) {
		return s.manager.Reactivate(ctx, profileID, hint, note)
	})
}

func (s *profileServiceImpl) SyncStatus(ctx context.Context, profileID string, status profile.Status, next *time.Time) error {
	err := s.subscriptionRepo.UpdateStatus(ctx, profileID, string(status), next)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
	}
	return err
}

func (s *profileServiceImpl) apply(ctx context.Context, profileID string, action func(hint string) (*profile.Profile, error)) (*profile.Profile, error) {
	hint, err := s.hint(ctx, profileID)
	if err != nil {
		return nil, err
	}
	p, err := action(hint)
	if err != nil {
		return nil, err
	}
	s.sync(ctx, p)
	return p, nil
}

// hint is the gateway that created profileID, or the configured default for
// profiles this store has no record of.
func (s *profileServiceImpl) hint(ctx context.Context, profileID string) (string, error) {
	stored, err := s.subscriptionRepo.GetByProfileID(ctx, profileID)
	if err == nil {
		return stored.Gateway, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("find profile %s: %w", profileID, err)
	}

	settings, err := configuration.Load(ctx, s.settings)
	if err != nil {
		return "", fmt.Errorf("load configuration: %w", err)
	}
	return settings.String(configuration.SubscriptionGateway), nil
}

func (s *profileServiceImpl) sync(ctx context.Context, p *profile.Profile) {
	err := s.subscriptionRepo.UpdateStatus(ctx, p.ProfileID, string(p.Status), p.NextBillingDate)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn().Err(err).Str("profile_id", p.ProfileID).Msg("profile status not synced")
	}
}
