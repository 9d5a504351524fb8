package handler

import (
	"errors"
	"net/http"
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/middleware"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const msgWalletUnavailable = "This payment method is temporarily unavailable, please choose another."

type WalletHandler struct {
	walletService service.WalletService
	baseURL       string
}

func NewWalletHandler(walletService service.WalletService, baseURL string) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		baseURL:       baseURL,
	}
}

// walletFailure answers {success:false}. Only WalletError messages reach the
// shopper; anything else is logged.
func walletFailure(c echo.Context, wallet string, err error) error {
	var werr *service.WalletError
	if errors.As(err, &werr) {
		log.Info().Str("wallet", wallet).Str("reason", werr.Message).Msg("wallet request refused")
		return c.JSON(http.StatusOK, &dto.WalletResponse{Message: werr.Message})
	}
	log.Error().Err(err).Str("wallet", wallet).Msg("wallet request failed")
	return c.JSON(http.StatusOK, &dto.WalletResponse{Message: msgWalletUnavailable})
}

func bindWallet(c echo.Context) (*dto.WalletRequest, error) {
	var req dto.WalletRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	return &req, nil
}

func (h *WalletHandler) Config(c echo.Context) error {
	ctx := c.Request().Context()
	req, err := bindWallet(c)
	if err != nil {
		return err
	}

	cfg, err := h.walletService.Config(ctx, middleware.CurrentSession(c), req.Wallet)
	if err != nil {
		return walletFailure(c, req.Wallet, err)
	}

	return c.JSON(http.StatusOK, &struct {
		dto.WalletResponse
		*service.WalletConfig
	}{dto.WalletResponse{Success: true}, cfg})
}

func (h *WalletHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	req, err := bindWallet(c)
	if err != nil {
		return err
	}

	orderID, err := h.walletService.CreateOrder(ctx, middleware.CurrentSession(c), req.Wallet)
	if err != nil {
		return walletFailure(c, req.Wallet, err)
	}

	return c.JSON(http.StatusOK, &struct {
		dto.WalletResponse
		OrderID string `json:"order_id"`
	}{dto.WalletResponse{Success: true}, orderID})
}

func (h *WalletHandler) UpdateShipping(c echo.Context) error {
	ctx := c.Request().Context()
	req, err := bindWallet(c)
	if err != nil {
		return err
	}

	totals, err := h.walletService.UpdateShipping(ctx, middleware.CurrentSession(c), req.Wallet, &service.ShippingAddress{
		CountryCode: req.Address.CountryCode,
		State:       req.Address.State,
		City:        req.Address.City,
		Postcode:    req.Address.PostalCode,
	})
	if err != nil {
		return walletFailure(c, req.Wallet, err)
	}

	return c.JSON(http.StatusOK, &struct {
		dto.WalletResponse
		*service.WalletTotals
	}{dto.WalletResponse{Success: true}, totals})
}

func (h *WalletHandler) Approve(c echo.Context) error {
	ctx := c.Request().Context()
	req, err := bindWallet(c)
	if err != nil {
		return err
	}

	if err := h.walletService.Approve(ctx, middleware.CurrentSession(c), req.Wallet, req.OrderID); err != nil {
		return walletFailure(c, req.Wallet, err)
	}

	return c.JSON(http.StatusOK, &struct {
		dto.WalletResponse
		RedirectURL string `json:"redirect_url"`
	}{dto.WalletResponse{Success: true}, pageURL(h.baseURL, checkout.PageCheckout)})
}
