package handler

import (
	"net/http"
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/session"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletConfigIncompleteAnswersSuccessFalse(t *testing.T) {
	f := newHandlerFixture(t)
	sess := f.customerSession()
	f.addToCart(t, sess, 1)

	rec := serve(t, f.wallet.Config, call{json: map[string]interface{}{"wallet": "applepay"}, session: sess})
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Apple Pay is not enabled.", body["message"])
	assert.Nil(t, body["client_id"])

	f.settings(t, map[string]string{"MODULE_PAYMENT_PAYPALR_APPLEPAY_STATUS": "True"})
	rec = serve(t, f.wallet.Config, call{json: map[string]interface{}{"wallet": "applepay"}, session: sess})
	assert.Equal(t, "Apple Pay is missing its merchant domain.", decode(t, rec)["message"])
}

func TestWalletConfig(t *testing.T) {
	f := newHandlerFixture(t)
	sess := f.customerSession()
	f.addToCart(t, sess, 3)

	rec := serve(t, f.wallet.Config, call{form: "wallet=paypal", session: sess})
	body := decode(t, rec)
	require.Equal(t, true, body["success"], rec.Body.String())
	assert.Equal(t, "client", body["client_id"])
	assert.Equal(t, "paypalr", body["module"])
	assert.Equal(t, "32.10", body["total"])
	assert.Len(t, body["items"], 1)
}

func TestWalletShipping(t *testing.T) {
	f := newHandlerFixture(t)
	sess := f.customerSession()
	f.addToCart(t, sess, 3)

	rec := serve(t, f.wallet.UpdateShipping, call{
		json: map[string]interface{}{
			"wallet":  "paypal",
			"address": map[string]string{"country_code": "US", "state": "IL", "postal_code": "62701"},
		},
		session: sess,
	})
	body := decode(t, rec)
	require.Equal(t, true, body["success"], rec.Body.String())
	assert.Equal(t, "5.00", body["shipping"])
	assert.Equal(t, "37.10", body["total"])

	rec = serve(t, f.wallet.UpdateShipping, call{form: "wallet=paypal", session: sess})
	body = decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Please choose a shipping address.", body["message"])
}

func TestWalletGatewayFailureIsGeneric(t *testing.T) {
	f := newHandlerFixture(t)
	f.mock.SetFailure(true, false, false, false)
	sess := f.customerSession()
	f.addToCart(t, sess, 1)

	rec := serve(t, f.wallet.CreateOrder, call{json: map[string]interface{}{"wallet": "paypal"}, session: sess})
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, msgWalletUnavailable, body["message"])
	assert.Nil(t, body["order_id"])
}

func TestPayPalReturn(t *testing.T) {
	f := newHandlerFixture(t)

	rec := serve(t, f.paypal.HandleReturn, call{method: http.MethodGet, target: "/paypal/return"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sess := f.customerSession()
	rec = serve(t, f.paypal.HandleReturn, call{method: http.MethodGet, target: "/paypal/return?token=ORDER-X", session: sess})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, baseURL+"/index.php?main_page=checkout", rec.Header().Get("Location"))
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, checkout.StackCheckout, sess.Messages[0].Stack)
	assert.Equal(t, session.MessageError, sess.Messages[0].Class)

	sess = f.customerSession()
	f.addToCart(t, sess, 1)
	rec = serve(t, f.wallet.CreateOrder, call{json: map[string]interface{}{"wallet": "paypal"}, session: sess})
	orderID := decode(t, rec)["order_id"].(string)
	f.mock.Approve(orderID, "PAYER1", "ada@paypal.example")

	rec = serve(t, f.paypal.HandleReturn, call{method: http.MethodGet, target: "/paypal/return?token=" + orderID + "&PayerID=PAYER1", session: sess})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Empty(t, sess.Messages)
	require.NotNil(t, sess.Wallet)
	assert.True(t, sess.Wallet.Approved)
}
