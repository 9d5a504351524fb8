package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/client"
	"storefront-payments/internal/config"
	"storefront-payments/internal/events"
	"storefront-payments/internal/handler"
	"storefront-payments/internal/logging"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/profile"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/server"
	"storefront-payments/internal/service"
	"storefront-payments/internal/telemetry"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.Log, cfg.Environment.Name)

	shutdownTracer := telemetry.InitTracer(cfg.Telemetry)
	defer shutdownTracer()

	db, err := client.OpenDatabase(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	paypalClient := client.NewPaypalClient(&cfg.Paypal)

	configRepo := repository.NewConfigurationRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	var notifier events.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		notifier = events.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic)
	} else {
		notifier = events.NewLogNotifier()
	}
	defer notifier.Close()

	// -------- payment modules --------
	var braintreeClient client.BraintreeClient
	var tokens *paymentmodule.TokenProvider
	if cfg.BrainTree.Configured() {
		braintreeClient = client.NewBraintreeClient(&cfg.BrainTree)
		tokens = paymentmodule.NewTokenProvider(braintreeClient, cfg.BrainTree.TokenAttempts, cfg.BrainTree.TokenRetryDelay)
	}
	sdk := paymentmodule.PayPalSDK{
		ClientID:    cfg.Paypal.ClientID,
		MerchantID:  cfg.Paypal.MerchantID,
		Environment: cfg.Paypal.Environment,
	}
	registry := paymentmodule.NewRegistry(customerRepo, paymentmodule.Credentials{
		PayPal:    cfg.Paypal.ClientID != "" && cfg.Paypal.ClientSecret != "",
		Braintree: cfg.BrainTree.Configured(),
	})
	renderer := paymentmodule.NewRenderer(tokens, sdk, cfg.BrainTree.Environment)

	// -------- recurring profiles --------
	gateways := []profile.Gateway{profile.NewRESTGateway(paypalClient, subscriptionRepo)}
	if cfg.PaypalNVP.Configured() {
		gateways = append(gateways, profile.NewNVPGateway(client.NewNVPClient(&cfg.PaypalNVP)))
	}
	manager := profile.NewManager(profile.GatewayREST, gateways...)
	profileService := service.NewProfileService(manager, subscriptionRepo, configRepo, notifier, cfg.BaseURL)

	checkoutService := checkout.NewService(
		db,
		configRepo,
		repository.NewProductRepository(db),
		orderRepo,
		repository.NewCouponRepository(db),
		repository.NewInventoryRepository(db),
		customerRepo,
		registry,
		renderer,
		paymentmodule.NewProcessor(paypalClient, braintreeClient),
		paymentmodule.NewBookkeeper(orderRepo, transactionRepo),
		profileService,
		notifier,
	)

	walletService := service.NewWalletService(checkoutService, registry, paypalClient, configRepo, sdk, cfg.BaseURL)
	moduleService := service.NewModuleService(checkoutService, registry, renderer, tokens, configRepo)
	paypalService := service.NewPaypalService(
		db,
		paypalClient,
		configRepo,
		orderRepo,
		transactionRepo,
		webhookEventRepo,
		profileService,
	)

	srv := server.NewServer(cfg, sessionRepo, server.Handlers{
		Checkout:  handler.NewCheckoutHandler(checkoutService, moduleService, cfg.BaseURL),
		Wallet:    handler.NewWalletHandler(walletService, cfg.BaseURL),
		Paypal:    handler.NewPaypalHandler(paypalService, walletService, profileService, cfg.BaseURL),
		Recurring: handler.NewRecurringHandler(profileService),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go purgeSessions(ctx, sessionRepo, time.Hour)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	log.Info().Str("addr", serverAddr).Msg("Starting HTTP server")
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info().Msg("Signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
}

// purgeSessions drops expired shopper sessions until ctx is done.
func purgeSessions(ctx context.Context, repo repository.SessionRepository, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := repo.DeleteExpired(ctx, now)
			if err != nil {
				log.Warn().Err(err).Msg("expired sessions not purged")
				continue
			}
			if n > 0 {
				log.Debug().Int64("sessions", n).Msg("expired sessions purged")
			}
		}
	}
}
