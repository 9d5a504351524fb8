package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/middleware"
	"storefront-payments/internal/profile"
	"storefront-payments/internal/service"
	"storefront-payments/internal/session"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	msgSubscriptionPending = "Your subscription is not active yet. We will let you know once PayPal confirms it."
	msgSubscriptionUnknown = "We could not find that subscription."
)

type PaypalHandler struct {
	paypalService  service.PaypalService
	walletService  service.WalletService
	profileService service.ProfileService
	baseURL        string
}

func NewPaypalHandler(
	paypalService service.PaypalService,
	walletService service.WalletService,
	profileService service.ProfileService,
	baseURL string,
) *PaypalHandler {
	return &PaypalHandler{
		paypalService:  paypalService,
		walletService:  walletService,
		profileService: profileService,
		baseURL:        baseURL,
	}
}

// HandleReturn is where PayPal sends the buyer after approving an order
// outside the in-page popup.
func (h *PaypalHandler) HandleReturn(c echo.Context) error {
	ctx := c.Request().Context()
	sess := middleware.CurrentSession(c)

	orderID := c.QueryParam("token")
	if orderID == "" {
		return c.String(http.StatusBadRequest, "missing order token")
	}

	err := h.walletService.Return(ctx, sess, orderID)
	if err != nil {
		message := msgWalletUnavailable
		var werr *service.WalletError
		if errors.As(err, &werr) {
			message = werr.Message
		} else {
			log.Error().Err(err).Str("paypal_order_id", orderID).Msg("paypal return failed")
		}
		sess.AddMessage(checkout.StackCheckout, session.MessageError, message)
	}

	return c.Redirect(http.StatusFound, pageURL(h.baseURL, checkout.PageCheckout))
}

// HandleSubscriptionReturn is where PayPal sends the buyer after approving a
// subscription started by the last order. Orders with several subscriptions
// chain to the next approval.
func (h *PaypalHandler) HandleSubscriptionReturn(c echo.Context) error {
	ctx := c.Request().Context()
	sess := middleware.CurrentSession(c)

	profileID := c.QueryParam("subscription_id")
	if profileID == "" {
		return c.String(http.StatusBadRequest, "missing subscription id")
	}

	p, next, err := h.profileService.Approved(ctx, sess.LastOrderID, profileID)
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		sess.AddMessage(checkout.StackCheckout, session.MessageError, msgSubscriptionUnknown)
		return c.Redirect(http.StatusFound, pageURL(h.baseURL, checkout.PageSuccess))
	case err != nil:
		log.Error().Err(err).Str("profile_id", profileID).Msg("subscription return failed")
		sess.AddMessage(checkout.StackCheckout, session.MessageWarning, msgSubscriptionPending)
		return c.Redirect(http.StatusFound, pageURL(h.baseURL, checkout.PageSuccess))
	}

	if p.Status != profile.StatusActive {
		sess.AddMessage(checkout.StackCheckout, session.MessageWarning, msgSubscriptionPending)
	}
	if next != nil {
		return c.Redirect(http.StatusFound, next.ApprovalURL)
	}
	return c.Redirect(http.StatusFound, pageURL(h.baseURL, checkout.PageSuccess))
}

func (h *PaypalHandler) PayPalWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	err = h.paypalService.HandleWebhook(ctx, c.Request().Header, body)
	if err != nil {
		return fmt.Errorf("handle webhook: %w", err)
	}

	return c.NoContent(http.StatusOK)
}
