package handler

import (
	"net/http"
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/recurring"
	"storefront-payments/internal/session"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayPalWebhook(t *testing.T) {
	f := newHandlerFixture(t)
	event := map[string]interface{}{
		"id":         "WH-EVT-1",
		"event_type": "CHECKOUT.ORDER.APPROVED",
		"resource":   map[string]interface{}{"id": "ORDER-1"},
	}

	rec := serve(t, f.paypal.PayPalWebhook, call{json: event})
	assert.Equal(t, http.StatusOK, rec.Code)

	// redelivery of a processed event
	rec = serve(t, f.paypal.PayPalWebhook, call{json: event})
	assert.Equal(t, http.StatusOK, rec.Code)

	f.mock.WebhookStatus = "FAILURE"
	event["id"] = "WH-EVT-2"
	rec = serve(t, f.paypal.PayPalWebhook, call{json: event})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSubscriptionCheckoutApproval(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := t.Context()
	sess := f.customerSession()

	rec := serve(t, f.checkout.CartAdd, call{
		json: map[string]interface{}{
			"product_id": f.widget.ID,
			"quantity":   1,
			"attributes": map[string]string{
				"Billing Period":       "Month",
				"Total Billing Cycles": "12",
			},
		},
		session: sess,
	})
	require.Equal(t, checkout.StatusSuccess, decode(t, rec)["status"], rec.Body.String())
	serve(t, f.checkout.OPRCUpdate, call{json: map[string]interface{}{"shipping": "flat_flat"}, session: sess})

	rec = serve(t, f.wallet.CreateOrder, call{json: map[string]interface{}{"wallet": "paypal"}, session: sess})
	orderID := decode(t, rec)["order_id"].(string)
	f.mock.Approve(orderID, "PAYER1", "ada@paypal.example")
	serve(t, f.wallet.Approve, call{form: "wallet=paypal&order_id=" + orderID, session: sess})

	rec = serve(t, f.checkout.OPRCCheckoutProcess, call{form: "cart_id=" + sess.CartID, session: sess})
	body := decode(t, rec)
	require.Equal(t, "success", body["status"], rec.Body.String())
	approvalURL, _ := body["approval_url"].(string)
	require.NotEmpty(t, approvalURL)
	assert.Equal(t, approvalURL, body["redirect_url"])

	profiles, err := f.subscriptionRepo.ListByCustomer(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	stored := profiles[0]
	assert.Equal(t, "pending", stored.Status)
	assert.Equal(t, approvalURL, stored.ApprovalURL)
	assert.Equal(t, 11, stored.TotalCycles)

	// the order paid the first month, billing at PayPal starts with the second
	schedule, err := recurring.NewBuilder().Build(recurring.Terms{Period: recurring.PeriodMonth, Frequency: 1, TotalCycles: 12},
		decimal.RequireFromString("10.00"), decimal.Zero, "USD")
	require.NoError(t, err)
	second := schedule.BillingDate(1)
	assert.True(t, second.Equal(stored.StartDate), stored.StartDate)
	assert.Equal(t, second.Format(time.RFC3339), f.mock.Subscriptions[stored.ProfileID].StartTime)

	target := "/paypal/subscription/return?subscription_id=" + stored.ProfileID + "&ba_token=BA-1"
	success := baseURL + "/index.php?main_page=checkout_success"

	t.Run("still awaiting approval", func(t *testing.T) {
		sess.TakeMessages()
		rec := serve(t, f.paypal.HandleSubscriptionReturn, call{method: http.MethodGet, target: target, session: sess})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, success, rec.Header().Get("Location"))
		require.Len(t, sess.Messages, 1)
		assert.Equal(t, session.MessageWarning, sess.Messages[0].Class)
	})

	t.Run("approved", func(t *testing.T) {
		sess.TakeMessages()
		f.mock.SetSubscriptionStatus(stored.ProfileID, "ACTIVE")
		rec := serve(t, f.paypal.HandleSubscriptionReturn, call{method: http.MethodGet, target: target, session: sess})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, success, rec.Header().Get("Location"))
		assert.Empty(t, sess.Messages)

		got, err := f.subscriptionRepo.GetByProfileID(ctx, stored.ProfileID)
		require.NoError(t, err)
		assert.Equal(t, "active", got.Status)
	})

	t.Run("subscription of another order", func(t *testing.T) {
		sess.TakeMessages()
		other := &session.Data{CustomerID: f.customer.ID, LastOrderID: sess.LastOrderID + 1}
		rec := serve(t, f.paypal.HandleSubscriptionReturn, call{method: http.MethodGet, target: target, session: other})
		assert.Equal(t, http.StatusFound, rec.Code)
		require.Len(t, other.Messages, 1)
		assert.Equal(t, msgSubscriptionUnknown, other.Messages[0].Text)
	})

	t.Run("missing id", func(t *testing.T) {
		rec := serve(t, f.paypal.HandleSubscriptionReturn, call{method: http.MethodGet, target: "/paypal/subscription/return", session: sess})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
