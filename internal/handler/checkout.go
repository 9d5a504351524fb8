package handler

import (
	"errors"
	"net/http"
	"net/url"
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/middleware"
	"storefront-payments/internal/service"
	"storefront-payments/internal/session"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const msgTryAgain = "Something went wrong, please try again."

// checkoutFormKeys are the confirm form inputs that are not payment fields.
var checkoutFormKeys = map[string]bool{
	"cart_id":    true,
	"payment":    true,
	"comments":   true,
	"conditions": true,
}

// pageURL links to a storefront page.
func pageURL(baseURL, page string) string {
	return strings.TrimRight(baseURL, "/") + "/index.php?main_page=" + url.QueryEscape(page)
}

func isForm(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm)
}

type CheckoutHandler struct {
	checkoutService checkout.Service
	moduleService   service.ModuleService
	baseURL         string
}

func NewCheckoutHandler(checkoutService checkout.Service, moduleService service.ModuleService, baseURL string) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		moduleService:   moduleService,
		baseURL:         baseURL,
	}
}

// formAttributes reads the product options of an add to cart form, posted as
// id[option]=value.
func formAttributes(c echo.Context) map[string]string {
	params, err := c.FormParams()
	if err != nil {
		return nil
	}
	var attrs map[string]string
	for k, v := range params {
		if !strings.HasPrefix(k, "id[") || !strings.HasSuffix(k, "]") || len(v) == 0 {
			continue
		}
		if attrs == nil {
			attrs = map[string]string{}
		}
		attrs[k[3:len(k)-1]] = v[0]
	}
	return attrs
}

func (h *CheckoutHandler) CartAdd(c echo.Context) error {
	ctx := c.Request().Context()
	sess := middleware.CurrentSession(c)

	var req dto.CartAddRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.Attributes == nil && isForm(c) {
		req.Attributes = formAttributes(c)
	}

	err := h.checkoutService.AddToCart(ctx, sess, &checkout.AddToCartRequest{
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		Attributes: req.Attributes,
	})
	switch {
	case errors.Is(err, checkout.ErrInvalidQuantity):
		return c.JSON(http.StatusOK, &dto.CartAddResponse{
			Status:    checkout.StatusError,
			Message:   "Please enter a valid quantity.",
			CartCount: sess.CartCount(),
		})
	case errors.Is(err, checkout.ErrProductUnavailable):
		return c.JSON(http.StatusOK, &dto.CartAddResponse{
			Status:    checkout.StatusError,
			Message:   "This product is no longer available.",
			CartCount: sess.CartCount(),
		})
	case err != nil:
		return err
	}

	return c.JSON(http.StatusOK, &dto.CartAddResponse{
		Status:    checkout.StatusSuccess,
		Message:   "Product added to your cart.",
		CartCount: sess.CartCount(),
	})
}

func (h *CheckoutHandler) OPRCUpdate(c echo.Context) error {
	ctx := c.Request().Context()
	sess := middleware.CurrentSession(c)

	var req dto.OPRCUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	quote, err := h.checkoutService.Update(ctx, sess, &checkout.UpdateRequest{
		Shipping:     req.Shipping,
		Payment:      req.Payment,
		CouponCode:   req.Coupon,
		RemoveCoupon: req.RemoveCoupon,
		Comments:     req.Comments,
		Conditions:   req.Conditions,
		BillTo:       req.BillTo,
		SendTo:       req.SendTo,
		GuestEmail:   req.Email,
	})
	if errors.Is(err, checkout.ErrEmptyCart) {
		return c.JSON(http.StatusOK, &dto.OPRCUpdateResponse{
			Status:      checkout.StatusRedirect,
			RedirectURL: pageURL(h.baseURL, checkout.PageShoppingCart),
		})
	}
	if err != nil {
		log.Error().Err(err).Msg("checkout update failed")
		return c.JSON(http.StatusOK, &dto.OPRCUpdateResponse{
			Status:  checkout.StatusError,
			Message: msgTryAgain,
		})
	}

	resp := &dto.OPRCUpdateResponse{
		Status: checkout.StatusSuccess,
		Totals: dto.NewTotals(quote),
	}
	if sess.HasErrors(checkout.StackCheckout) {
		resp.Status = checkout.StatusError
	}
	resp.Messages = sess.TakeMessages()
	for _, m := range resp.Messages {
		if resp.Status == checkout.StatusError && m.Class == session.MessageError {
			resp.Message = m.Text
			break
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// paymentFields collects the submitted payment inputs: the JSON fields
// object, or every form input that is not a checkout field.
func paymentFields(c echo.Context, req *dto.CheckoutProcessRequest) map[string]string {
	if req.Fields != nil || !isForm(c) {
		return req.Fields
	}
	params, err := c.FormParams()
	if err != nil {
		return nil
	}
	fields := map[string]string{}
	for k, v := range params {
		if checkoutFormKeys[k] || len(v) == 0 {
			continue
		}
		fields[k] = v[0]
	}
	return fields
}

func (h *CheckoutHandler) OPRCCheckoutProcess(c echo.Context) error {
	ctx := c.Request().Context()
	sess := middleware.CurrentSession(c)

	var req dto.CheckoutProcessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	result, err := h.checkoutService.Process(ctx, sess, &checkout.ProcessRequest{
		CartID:     req.CartID,
		Payment:    req.Payment,
		Comments:   req.Comments,
		Conditions: req.Conditions,
		Fields:     paymentFields(c, &req),
		IPAddress:  c.RealIP(),
	})
	if err != nil {
		log.Error().Err(err).Str("cart_id", req.CartID).Msg("checkout process failed")
		return c.JSON(http.StatusOK, &dto.CheckoutProcessResponse{
			Status:  checkout.StatusError,
			Message: msgTryAgain,
		})
	}

	resp := &dto.CheckoutProcessResponse{
		Status:      result.Status,
		Message:     result.Message,
		OrderID:     result.OrderID,
		ApprovalURL: result.ApprovalURL,
	}
	if result.Redirect != "" {
		resp.RedirectURL = pageURL(h.baseURL, result.Redirect)
	}
	// the subscription return lands on the success page once approved
	if result.ApprovalURL != "" {
		resp.RedirectURL = result.ApprovalURL
	}
	// the next page shows queued messages; an inline error shows them now
	if result.Status == checkout.StatusError {
		resp.Messages = sess.TakeMessages()
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CheckoutHandler) PaymentModules(c echo.Context) error {
	ctx := c.Request().Context()

	modules, err := h.moduleService.Available(ctx, middleware.CurrentSession(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.PaymentModulesResponse{
		Status:  checkout.StatusSuccess,
		Modules: modules,
	})
}

func (h *CheckoutHandler) BraintreeClientToken(c echo.Context) error {
	ctx := c.Request().Context()

	token, err := h.moduleService.BraintreeClientToken(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("braintree client token unavailable")
		return c.JSON(http.StatusOK, &dto.ClientTokenResponse{
			Success: false,
			Message: "PayPal is temporarily unavailable, please choose another payment method.",
		})
	}

	return c.JSON(http.StatusOK, &dto.ClientTokenResponse{
		Success:     true,
		ClientToken: token,
	})
}
