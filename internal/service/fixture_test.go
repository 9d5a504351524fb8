package service

import (
	"context"
	"storefront-payments/internal/checkout"
	"storefront-payments/internal/client"
	"storefront-payments/internal/client/paypaltest"
	"storefront-payments/internal/config"
	"storefront-payments/internal/events"
	"storefront-payments/internal/model"
	"storefront-payments/internal/paymentmodule"
	"storefront-payments/internal/profile"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/session"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	placed   []*events.OrderPlaced
	profiles []*events.ProfileCreated
}

func (n *recordingNotifier) OrderPlaced(ctx context.Context, evt *events.OrderPlaced) error {
	n.placed = append(n.placed, evt)
	return nil
}

func (n *recordingNotifier) ProfileCreated(ctx context.Context, evt *events.ProfileCreated) error {
	n.profiles = append(n.profiles, evt)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

type serviceFixture struct {
	db       *gorm.DB
	mock     *paypaltest.MockPayPal
	paypal   client.PaypalClient
	config   repository.ConfigurationRepository
	notifier *recordingNotifier

	orderRepo        repository.OrderRepository
	transactionRepo  repository.TransactionRepository
	subscriptionRepo repository.SubscriptionRepository

	registry *paymentmodule.Registry
	checkout checkout.Service
	profiles ProfileService

	widget *model.Product
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, err := client.OpenDatabase(config.Database{Driver: "sqlite", URL: ":memory:"})
	require.NoError(t, err)

	mock := paypaltest.NewMockPayPal()
	t.Cleanup(mock.Close)
	paypal := client.NewPaypalClient(&config.Paypal{
		BaseApiURL:   mock.URL(),
		ClientID:     "client",
		ClientSecret: "secret",
		WebhookID:    "WH-1",
	})
	nvp := client.NewNVPClient(&config.PaypalNVP{
		Endpoint:  mock.NVPEndpoint(),
		Username:  "api_user",
		Password:  "api_pass",
		Signature: "api_sig",
	})

	f := &serviceFixture{
		db:               db,
		mock:             mock,
		paypal:           paypal,
		config:           repository.NewConfigurationRepository(db),
		notifier:         &recordingNotifier{},
		orderRepo:        repository.NewOrderRepository(db),
		transactionRepo:  repository.NewTransactionRepository(db),
		subscriptionRepo: repository.NewSubscriptionRepository(db),
	}

	f.settings(t, map[string]string{
		"DEFAULT_CURRENCY":                "USD",
		"DEFAULT_ORDERS_STATUS_ID":        "1",
		"MODULE_SHIPPING_FLAT_COST":       "5.00",
		"MODULE_SHIPPING_FLAT_TEXT_TITLE": "Flat Rate",

		"MODULE_PAYMENT_PAYPALR_STATUS":          "True",
		"MODULE_PAYMENT_PAYPALR_ORDER_STATUS_ID": "2",
		"MODULE_PAYMENT_BRAINTREE_PAYPAL_STATUS": "True",
	})

	f.widget = &model.Product{Model: "W-1", Name: "Widget", Price: decimal.RequireFromString("10.00"), TaxRate: decimal.RequireFromString("7"), Quantity: 10}
	require.NoError(t, db.Create(f.widget).Error)

	customerRepo := repository.NewCustomerRepository(db)
	f.registry = paymentmodule.NewRegistry(customerRepo, paymentmodule.Credentials{PayPal: true, Braintree: true})

	manager := profile.NewManager(profile.GatewayREST,
		profile.NewRESTGateway(paypal, f.subscriptionRepo),
		profile.NewNVPGateway(nvp),
	)
	f.profiles = NewProfileService(manager, f.subscriptionRepo, f.config, f.notifier, "https://shop.example.com/")

	f.checkout = checkout.NewService(
		db,
		f.config,
		repository.NewProductRepository(db),
		f.orderRepo,
		repository.NewCouponRepository(db),
		repository.NewInventoryRepository(db),
		customerRepo,
		f.registry,
		paymentmodule.NewRenderer(nil, paymentmodule.PayPalSDK{ClientID: "client"}, "sandbox"),
		paymentmodule.NewProcessor(paypal, nil),
		paymentmodule.NewBookkeeper(f.orderRepo, f.transactionRepo),
		f.profiles,
		f.notifier,
	)
	return f
}

func (f *serviceFixture) settings(t *testing.T, values map[string]string) {
	t.Helper()
	for k, v := range values {
		require.NoError(t, f.config.Set(context.Background(), nil, k, v))
	}
}

// guestCart is a guest session holding qty widgets.
func (f *serviceFixture) guestCart(t *testing.T, qty int) *session.Data {
	t.Helper()
	sess := &session.Data{Guest: true, Email: "guest@example.com"}
	require.NoError(t, f.checkout.AddToCart(context.Background(), sess, &checkout.AddToCartRequest{
		ProductID: f.widget.ID,
		Quantity:  qty,
	}))
	return sess
}

func (f *serviceFixture) quote(t *testing.T, sess *session.Data) *checkout.Quote {
	t.Helper()
	q, err := f.checkout.Quote(context.Background(), sess)
	require.NoError(t, err)
	return q
}
