package server

import (
	"context"
	"net/http"
	"storefront-payments/internal/config"
	"storefront-payments/internal/handler"
	appmiddleware "storefront-payments/internal/middleware"
	"storefront-payments/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Checkout  *handler.CheckoutHandler
	Wallet    *handler.WalletHandler
	Paypal    *handler.PaypalHandler
	Recurring *handler.RecurringHandler
}

type Server struct {
	echo        *echo.Echo
	handlers    Handlers
	sessionRepo repository.SessionRepository
	cfg         *config.Config
}

func NewServer(cfg *config.Config, sessionRepo repository.SessionRepository, handlers Handlers) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(echo.WrapMiddleware(otelhttp.NewMiddleware(cfg.Telemetry.ServiceName)))

	s := &Server{
		echo:        e,
		handlers:    handlers,
		sessionRepo: sessionRepo,
		cfg:         cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	sessions := appmiddleware.Session(s.sessionRepo, s.cfg.Session)

	// -------- storefront ajax --------
	ajax := s.echo.Group("/ajax", sessions)
	ajax.POST("/cart_add", s.handlers.Checkout.CartAdd)
	ajax.POST("/oprc_update", s.handlers.Checkout.OPRCUpdate)
	ajax.POST("/oprc_checkout_process", s.handlers.Checkout.OPRCCheckoutProcess)
	ajax.GET("/payment_modules", s.handlers.Checkout.PaymentModules)
	ajax.POST("/braintree/client_token", s.handlers.Checkout.BraintreeClientToken)

	wallet := ajax.Group("/paypalr_wallet")
	wallet.POST("/config", s.handlers.Wallet.Config)
	wallet.POST("/order", s.handlers.Wallet.CreateOrder)
	wallet.POST("/shipping", s.handlers.Wallet.UpdateShipping)
	wallet.POST("/approve", s.handlers.Wallet.Approve)

	// -------- paypal webhooks / callbacks --------
	paypal := s.echo.Group("/paypal")
	paypal.GET("/return", s.handlers.Paypal.HandleReturn, sessions)
	paypal.GET("/subscription/return", s.handlers.Paypal.HandleSubscriptionReturn, sessions)
	paypal.POST("/webhook", s.handlers.Paypal.PayPalWebhook)

	// -------- admin --------
	admin := s.echo.Group("/admin", appmiddleware.AdminAuth(s.cfg.Admin.Token))
	admin.GET("/recurring/:profile_id", s.handlers.Recurring.GetProfile)
	admin.POST("/recurring/:profile_id/cancel", s.handlers.Recurring.CancelProfile)
	admin.POST("/recurring/:profile_id/suspend", s.handlers.Recurring.SuspendProfile)
	admin.POST("/recurring/:profile_id/reactivate", s.handlers.Recurring.ReactivateProfile)
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
