package profile

import (
	"context"
	"errors"
	"storefront-payments/internal/client"
	"storefront-payments/internal/client/paypaltest"
	"storefront-payments/internal/config"
	"storefront-payments/internal/recurring"
	"storefront-payments/internal/repository"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayFixture struct {
	mock *paypaltest.MockPayPal
	rest Gateway
	nvp  Gateway
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	mock := paypaltest.NewMockPayPal()
	t.Cleanup(mock.Close)

	db, err := client.OpenDatabase(config.Database{Driver: "sqlite", URL: ":memory:"})
	require.NoError(t, err)

	paypalClient := client.NewPaypalClient(&config.Paypal{
		BaseApiURL:   mock.URL(),
		ClientID:     "client",
		ClientSecret: "secret",
	})
	nvpClient := client.NewNVPClient(&config.PaypalNVP{
		Endpoint:  mock.NVPEndpoint(),
		Username:  "api_user",
		Password:  "api_pass",
		Signature: "api_sig",
	})

	return &gatewayFixture{
		mock: mock,
		rest: NewRESTGateway(paypalClient, repository.NewSubscriptionRepository(db)),
		nvp:  NewNVPGateway(nvpClient),
	}
}

func monthlyRequest(t *testing.T, start time.Time) *CreateRequest {
	t.Helper()
	s, err := recurring.NewBuilder().Build(recurring.Terms{
		Period:      recurring.PeriodMonth,
		Frequency:   1,
		TotalCycles: 12,
		StartDate:   start,
	}, decimal.RequireFromString("15.00"), decimal.RequireFromString("1.20"), "USD")
	require.NoError(t, err)
	return &CreateRequest{
		Schedule:    s,
		Description: "Coffee club",
		CustomID:    "1001",
		PayerEmail:  "buyer@example.com",
		GivenName:   "Test",
		Surname:     "Buyer",
		ReturnURL:   "https://shop.example.com/return",
		CancelURL:   "https://shop.example.com/cancel",
	}
}

func TestRESTGatewayReusesPlan(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	first, err := f.rest.Create(ctx, monthlyRequest(t, time.Time{}))
	require.NoError(t, err)
	assert.Equal(t, GatewayREST, first.Gateway)
	assert.Equal(t, StatusPending, first.Status)
	assert.Contains(t, first.ApprovalURL, first.ProfileID)

	second, err := f.rest.Create(ctx, monthlyRequest(t, time.Now().AddDate(0, 1, 0)))
	require.NoError(t, err)
	assert.NotEqual(t, first.ProfileID, second.ProfileID)

	assert.Equal(t, 1, f.mock.ProductCreates)
	assert.Equal(t, 1, f.mock.PlanCreates)
	assert.Equal(t, 2, f.mock.SubscriptionAttempts)
}

func TestRESTGatewayStatusActions(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	created, err := f.rest.Create(ctx, monthlyRequest(t, time.Time{}))
	require.NoError(t, err)
	f.mock.SetSubscriptionStatus(created.ProfileID, "ACTIVE")

	p, err := f.rest.Get(ctx, created.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, p.Status)
	assert.Empty(t, p.ApprovalURL)
	assert.Equal(t, 1, p.CyclesCompleted)
	assert.Equal(t, 11, p.CyclesRemaining)
	require.NotNil(t, p.NextBillingDate)

	require.NoError(t, f.rest.UpdateStatus(ctx, created.ProfileID, ActionSuspend, "paused"))
	p, err = f.rest.Get(ctx, created.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, p.Status)

	require.NoError(t, f.rest.UpdateStatus(ctx, created.ProfileID, ActionCancel, ""))
	p, err = f.rest.Get(ctx, created.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, p.Status)
}

func TestNVPGatewayLifecycle(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	req := monthlyRequest(t, time.Time{})
	req.Token = "EC-TOKEN"
	req.PayerID = "PAYER1"

	created, err := f.nvp.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, GatewayNVP, created.Gateway)
	assert.Equal(t, StatusActive, created.Status)
	assert.Equal(t, 12, created.CyclesRemaining)

	call := f.mock.NVPCalls[0]
	assert.Equal(t, "CreateRecurringPaymentsProfile", call.Get("METHOD"))
	assert.Equal(t, "Month", call.Get("BILLINGPERIOD"))
	assert.Equal(t, "1", call.Get("BILLINGFREQUENCY"))
	assert.Equal(t, "12", call.Get("TOTALBILLINGCYCLES"))
	assert.Equal(t, "15.00", call.Get("AMT"))
	assert.Equal(t, "1.20", call.Get("TAXAMT"))
	assert.Equal(t, "EC-TOKEN", call.Get("TOKEN"))
	assert.Equal(t, client.NVP_VERSION, call.Get("VERSION"))

	require.NoError(t, f.nvp.UpdateStatus(ctx, created.ProfileID, ActionSuspend, "hold"))
	p, err := f.nvp.Get(ctx, created.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, p.Status)
	assert.Equal(t, "Suspended", p.RawStatus)
	assert.Equal(t, 1, f.mock.Calls("ManageRecurringPaymentsProfileStatus"))
}

func TestNVPGatewayUnknownProfile(t *testing.T) {
	f := newGatewayFixture(t)

	_, err := f.nvp.Get(context.Background(), "I-MISSING")
	var nvpErr *client.NVPError
	require.True(t, errors.As(err, &nvpErr))
	assert.Equal(t, "11552", nvpErr.ErrorCode)
}

func TestManagerFallsBackFromRESTToNVP(t *testing.T) {
	f := newGatewayFixture(t)
	f.mock.SetFailure(false, false, true, false)

	m := NewManager(GatewayREST, f.rest, f.nvp)
	p, err := m.Create(context.Background(), monthlyRequest(t, time.Time{}), "")
	require.NoError(t, err)
	assert.Equal(t, GatewayNVP, p.Gateway)
	assert.Equal(t, 1, f.mock.Calls("CreateRecurringPaymentsProfile"))
}
