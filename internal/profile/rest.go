package profile

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/client"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type restGatewayImpl struct {
	paypalClient client.PaypalClient
	planRepo     repository.SubscriptionRepository
	now          func() time.Time
}

// NewRESTGateway serves profiles through the PayPal subscriptions API.
// Catalog products and plans are created once per schedule and cached.
func NewRESTGateway(paypalClient client.PaypalClient, planRepo repository.SubscriptionRepository) Gateway {
	return &restGatewayImpl{
		paypalClient: paypalClient,
		planRepo:     planRepo,
		now:          time.Now,
	}
}

func (g *restGatewayImpl) Name() string {
	return GatewayREST
}

func (g *restGatewayImpl) Create(ctx context.Context, req *CreateRequest) (*Profile, error) {
	if req.Schedule == nil {
		return nil, fmt.Errorf("create subscription: missing schedule")
	}

	planID, err := g.ensurePlan(ctx, req)
	if err != nil {
		return nil, err
	}

	subReq := &client.SubscriptionRequest{
		PlanID:     planID,
		CustomID:   req.CustomID,
		PayerEmail: req.PayerEmail,
		GivenName:  req.GivenName,
		Surname:    req.Surname,
		ReturnURL:  req.ReturnURL,
		CancelURL:  req.CancelURL,
	}
	// PayPal rejects a start_time in the past; omitting it starts today
	if start := req.Schedule.StartDate; start.After(g.now()) {
		subReq.StartTime = &start
	}

	result, err := g.paypalClient.CreateSubscription(ctx, subReq)
	if err != nil {
		return nil, err
	}

	return g.toProfile(result), nil
}

func (g *restGatewayImpl) Get(ctx context.Context, profileID string) (*Profile, error) {
	result, err := g.paypalClient.GetSubscription(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return g.toProfile(result), nil
}

func (g *restGatewayImpl) UpdateStatus(ctx context.Context, profileID string, action Action, note string) error {
	switch action {
	case ActionCancel:
		return g.paypalClient.CancelSubscription(ctx, profileID, note)
	case ActionSuspend:
		return g.paypalClient.SuspendSubscription(ctx, profileID, note)
	case ActionReactivate:
		return g.paypalClient.ActivateSubscription(ctx, profileID, note)
	}
	return fmt.Errorf("unsupported profile action %q", action)
}

func (g *restGatewayImpl) ensurePlan(ctx context.Context, req *CreateRequest) (string, error) {
	schedule := req.Schedule
	key := schedule.Key()

	plan, err := g.planRepo.GetPlanByScheduleKey(ctx, key)
	if err == nil {
		return plan.PlanID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("lookup plan %s: %w", key, err)
	}

	name := truncate(req.Description, 127)
	if name == "" {
		name = "Subscription"
	}

	productID, err := g.paypalClient.CreateProduct(ctx, &client.CatalogProductRequest{
		Name:        name,
		Description: truncate(schedule.Description(), 256),
		Type:        "SERVICE",
	})
	if err != nil {
		return "", err
	}

	planReq := &client.PlanRequest{
		ProductID:     productID,
		Name:          truncate(name+" - "+schedule.Description(), 127),
		IntervalUnit:  schedule.IntervalUnit,
		IntervalCount: schedule.IntervalCount,
		TotalCycles:   schedule.TotalCycles,
		Price: client.Money{
			CurrencyCode: schedule.Currency,
			Value:        schedule.Amount.StringFixed(2),
		},
	}
	if schedule.TaxPercentage.IsPositive() {
		planReq.TaxPercentage = schedule.TaxPercentage.String()
	}

	planID, err := g.paypalClient.CreatePlan(ctx, planReq)
	if err != nil {
		return "", err
	}

	if err := g.planRepo.SavePlan(ctx, &model.PayPalPlan{
		ScheduleKey: key,
		ProductID:   productID,
		PlanID:      planID,
	}); err != nil {
		return "", fmt.Errorf("save plan %s: %w", key, err)
	}

	return planID, nil
}

func (g *restGatewayImpl) toProfile(result *client.SubscriptionResult) *Profile {
	p := &Profile{
		ProfileID:       result.ID,
		Gateway:         GatewayREST,
		Status:          NormalizeStatus(result.Status),
		RawStatus:       result.Status,
		NextBillingDate: result.NextBillingTime,
		CyclesCompleted: result.CyclesCompleted,
		CyclesRemaining: result.CyclesRemaining,
		LastPaymentDate: result.LastPaymentTime,
	}
	if p.Status == StatusPending {
		p.ApprovalURL = result.ApproveURL
	}
	if result.LastPaymentAmount != nil {
		if amount, err := decimal.NewFromString(result.LastPaymentAmount.Value); err == nil {
			p.LastPaymentAmount = &amount
		}
	}
	if result.OutstandingBalance != nil {
		if balance, err := decimal.NewFromString(result.OutstandingBalance.Value); err == nil {
			p.OutstandingBalance = balance
		}
	}
	return p
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
