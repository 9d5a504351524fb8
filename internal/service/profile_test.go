package service

import (
	"context"
	"errors"
	"storefront-payments/internal/model"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/profile"
	"storefront-payments/internal/recurring"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthlySchedule(t *testing.T) *recurring.Schedule {
	t.Helper()
	s, err := recurring.NewBuilder().Build(recurring.Terms{
		Period:      recurring.PeriodMonth,
		Frequency:   1,
		TotalCycles: 12,
	}, decimal.RequireFromString("15.00"), decimal.RequireFromString("1.20"), "USD")
	require.NoError(t, err)
	return s
}

func subscriptionOrder() (*model.Order, *model.OrderProduct) {
	order := &model.Order{
		ID:            42,
		CustomerID:    7,
		CustomerEmail: "ada@example.com",
		Billing:       model.Address{Name: "Ada Buyer"},
	}
	return order, &model.OrderProduct{OrderID: 42, ProductID: 3, Name: "Coffee club"}
}

func TestCreateForOrderStoresProfile(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	schedule := monthlySchedule(t)
	order, item := subscriptionOrder()

	rec, err := f.profiles.CreateForOrder(ctx, order, item, schedule, &paymentmodule.PaymentResult{ParentID: "ORDER-1", PayerID: "PAYER1"})
	require.NoError(t, err)
	assert.Equal(t, profile.GatewayREST, rec.Gateway)
	assert.Equal(t, string(profile.StatusPending), rec.Status)

	stored, err := f.subscriptionRepo.GetByProfileID(ctx, rec.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, uint(42), stored.OrderID)
	assert.Equal(t, uint(7), stored.CustomerID)
	assert.Equal(t, uint(3), stored.ProductID)
	assert.Equal(t, "Month", stored.BillingPeriod)
	assert.True(t, decimal.RequireFromString("15.00").Equal(stored.Amount))
	require.NotNil(t, stored.ExpirationDate)
	assert.True(t, schedule.ExpirationDate.Equal(*stored.ExpirationDate))
	assert.Equal(t, rec.ApprovalURL, stored.ApprovalURL)
	assert.Contains(t, stored.ApprovalURL, "ba_token=")

	// the order capture paid the first cycle
	assert.Equal(t, 11, stored.TotalCycles)
	assert.True(t, schedule.BillingDate(1).Equal(stored.StartDate))
	sub := f.mock.Subscriptions[rec.ProfileID]
	require.NotNil(t, sub)
	assert.Equal(t, schedule.BillingDate(1).Format(time.RFC3339), sub.StartTime)

	remaining, ok := schedule.Remaining()
	require.True(t, ok)
	require.Len(t, f.notifier.profiles, 1)
	evt := f.notifier.profiles[0]
	assert.Equal(t, rec.ProfileID, evt.ProfileID)
	assert.Equal(t, uint(42), evt.OrderID)
	assert.Equal(t, remaining.Key(), evt.Schedule)
}

func TestCreateForOrderSingleCyclePaidByOrder(t *testing.T) {
	f := newServiceFixture(t)
	schedule, err := recurring.NewBuilder().Build(recurring.Terms{
		Period:      recurring.PeriodYear,
		Frequency:   1,
		TotalCycles: 1,
	}, decimal.RequireFromString("99.00"), decimal.Zero, "USD")
	require.NoError(t, err)
	order, item := subscriptionOrder()

	rec, err := f.profiles.CreateForOrder(context.Background(), order, item, schedule, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Zero(t, f.mock.SubscriptionAttempts)
	assert.Empty(t, f.notifier.profiles)
}

func TestApprovedChainsPendingProfiles(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	order, item := subscriptionOrder()

	first, err := f.profiles.CreateForOrder(ctx, order, item, monthlySchedule(t), nil)
	require.NoError(t, err)
	second, err := f.profiles.CreateForOrder(ctx, order, &model.OrderProduct{OrderID: 42, ProductID: 4, Name: "Tea club"}, monthlySchedule(t), nil)
	require.NoError(t, err)

	f.mock.SetSubscriptionStatus(first.ProfileID, "ACTIVE")
	p, next, err := f.profiles.Approved(ctx, 42, first.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, profile.StatusActive, p.Status)
	require.NotNil(t, next)
	assert.Equal(t, second.ProfileID, next.ProfileID)
	assert.Equal(t, second.ApprovalURL, next.ApprovalURL)

	stored, err := f.subscriptionRepo.GetByProfileID(ctx, first.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, "active", stored.Status)

	f.mock.SetSubscriptionStatus(second.ProfileID, "ACTIVE")
	_, next, err = f.profiles.Approved(ctx, 42, second.ProfileID)
	require.NoError(t, err)
	assert.Nil(t, next)

	_, _, err = f.profiles.Approved(ctx, 43, second.ProfileID)
	assert.ErrorIs(t, err, ErrProfileNotFound)
	_, _, err = f.profiles.Approved(ctx, 42, "I-UNKNOWN")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestCreateForOrderFallsBackToNVP(t *testing.T) {
	f := newServiceFixture(t)
	f.mock.SetFailure(false, false, true, false)
	order, item := subscriptionOrder()

	rec, err := f.profiles.CreateForOrder(context.Background(), order, item, monthlySchedule(t), &paymentmodule.PaymentResult{ParentID: "EC-TOKEN", PayerID: "PAYER1"})
	require.NoError(t, err)
	assert.Equal(t, profile.GatewayNVP, rec.Gateway)
	assert.Equal(t, string(profile.StatusActive), rec.Status)

	require.Equal(t, 1, f.mock.Calls("CreateRecurringPaymentsProfile"))
	call := f.mock.NVPCalls[0]
	assert.Equal(t, "EC-TOKEN", call.Get("TOKEN"))
	assert.Equal(t, "42", call.Get("PROFILEREFERENCE"))
	assert.Equal(t, "Ada Buyer", call.Get("SUBSCRIBERNAME"))
}

func TestCreateForOrderPrefersConfiguredGateway(t *testing.T) {
	f := newServiceFixture(t)
	f.settings(t, map[string]string{"MODULE_PAYMENT_PAYPALR_SUBSCRIPTION_GATEWAY": "nvp"})
	order, item := subscriptionOrder()

	rec, err := f.profiles.CreateForOrder(context.Background(), order, item, monthlySchedule(t), nil)
	require.NoError(t, err)
	assert.Equal(t, profile.GatewayNVP, rec.Gateway)
	assert.Zero(t, f.mock.SubscriptionAttempts)
}

func TestCreateForOrderAllGatewaysFail(t *testing.T) {
	f := newServiceFixture(t)
	f.mock.SetFailure(false, false, true, true)
	order, item := subscriptionOrder()

	_, err := f.profiles.CreateForOrder(context.Background(), order, item, monthlySchedule(t), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, profile.ErrAllGatewaysFailed))
	assert.Empty(t, f.notifier.profiles)
}

func TestProfileAdminActions(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	order, item := subscriptionOrder()

	rec, err := f.profiles.CreateForOrder(ctx, order, item, monthlySchedule(t), nil)
	require.NoError(t, err)
	f.mock.SetSubscriptionStatus(rec.ProfileID, "ACTIVE")

	p, err := f.profiles.Get(ctx, rec.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, profile.StatusActive, p.Status)
	stored, err := f.subscriptionRepo.GetByProfileID(ctx, rec.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, "active", stored.Status)
	require.NotNil(t, stored.NextBillingDate)

	p, err = f.profiles.Suspend(ctx, rec.ProfileID, "customer asked")
	require.NoError(t, err)
	assert.Equal(t, profile.StatusSuspended, p.Status)

	p, err = f.profiles.Reactivate(ctx, rec.ProfileID, "")
	require.NoError(t, err)
	assert.Equal(t, profile.StatusActive, p.Status)

	p, err = f.profiles.Cancel(ctx, rec.ProfileID, "done")
	require.NoError(t, err)
	assert.Equal(t, profile.StatusCancelled, p.Status)

	stored, err = f.subscriptionRepo.GetByProfileID(ctx, rec.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", stored.Status)
	assert.NotNil(t, stored.LastSyncedAt)
}

func TestProfileActionUsesStoredGateway(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.mock.SetFailure(false, false, true, false)
	order, item := subscriptionOrder()

	rec, err := f.profiles.CreateForOrder(ctx, order, item, monthlySchedule(t), nil)
	require.NoError(t, err)
	require.Equal(t, profile.GatewayNVP, rec.Gateway)

	f.mock.SetFailure(false, false, false, false)
	attempts := f.mock.SubscriptionAttempts

	p, err := f.profiles.Cancel(ctx, rec.ProfileID, "")
	require.NoError(t, err)
	assert.Equal(t, profile.GatewayNVP, p.Gateway)
	assert.Equal(t, profile.StatusCancelled, p.Status)
	assert.Equal(t, attempts, f.mock.SubscriptionAttempts)
	assert.Equal(t, 1, f.mock.Calls("ManageRecurringPaymentsProfileStatus"))
}

func TestSyncStatusUnknownProfile(t *testing.T) {
	f := newServiceFixture(t)

	err := f.profiles.SyncStatus(context.Background(), "I-MISSING", profile.StatusActive, nil)
	assert.True(t, errors.Is(err, ErrProfileNotFound))
}
